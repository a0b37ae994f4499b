package crud

import (
	"strings"

	"unifield-backend/internal/models"
)

// Project returns the rows where any of fields contains query, ignoring
// case. Order is preserved and an empty query returns every row. Missing or
// nil fields count as empty text.
func Project(rows []models.Row, query string, fields []string) []models.Row {
	out := make([]models.Row, 0, len(rows))
	if query == "" {
		return append(out, rows...)
	}
	needle := strings.ToLower(query)
	for _, r := range rows {
		if matchAny(r, needle, fields) {
			out = append(out, r)
		}
	}
	return out
}

// Matches reports whether row satisfies the search predicate for query.
func Matches(row models.Row, query string, fields []string) bool {
	if query == "" {
		return true
	}
	return matchAny(row, strings.ToLower(query), fields)
}

func matchAny(row models.Row, needle string, fields []string) bool {
	for _, f := range fields {
		if strings.Contains(strings.ToLower(row.String(f)), needle) {
			return true
		}
	}
	return false
}
