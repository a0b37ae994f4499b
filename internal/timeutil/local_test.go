package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLocation(t *testing.T) {
	defer SetLocation(Location())

	SetLocation(time.FixedZone("WAT", 3600))
	assert.Equal(t, "WAT", Now().Location().String())
	_, offset := Now().Zone()
	assert.Equal(t, 3600, offset)

	SetLocation(nil)
	assert.Equal(t, "WAT", Location().String())
}
