package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// IDField is the identity column shared by every entity table.
const IDField = "id"

// Row is one record of an entity table keyed by column name.
// Values are scalars: string, number, bool or time.Time.
type Row map[string]any

// ID returns the row's identity. Rows decoded from JSON carry float64 or
// json.Number ids, rows scanned by pgx carry int64/int32.
func (r Row) ID() (int64, bool) {
	if r == nil {
		return 0, false
	}
	return ToID(r[IDField])
}

// ToID normalizes an id value of any supported scalar type.
func ToID(v any) (int64, bool) {
	switch id := v.(type) {
	case int64:
		return id, true
	case int:
		return int64(id), true
	case int32:
		return int64(id), true
	case float64:
		if id != float64(int64(id)) {
			return 0, false
		}
		return int64(id), true
	case json.Number:
		n, err := id.Int64()
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(id, 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

// String returns the field formatted for display and search. Missing and
// nil fields yield "".
func (r Row) String(field string) string {
	v, ok := r[field]
	if !ok || v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	case time.Time:
		return s.Format(time.RFC3339)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return fmt.Sprint(s)
	}
}

// Clone returns a shallow copy; values are scalars so this is a full copy.
func (r Row) Clone() Row {
	if r == nil {
		return nil
	}
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Merge returns a copy of r with every field of patch applied on top.
func (r Row) Merge(patch Row) Row {
	out := r.Clone()
	if out == nil {
		out = Row{}
	}
	for k, v := range patch {
		out[k] = v
	}
	return out
}

// Without returns a copy of r minus the named fields.
func (r Row) Without(fields ...string) Row {
	out := r.Clone()
	for _, f := range fields {
		delete(out, f)
	}
	return out
}
