package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cast"

	"unifield-backend/internal/crud"
	"unifield-backend/internal/gateway"
	"unifield-backend/internal/models"
)

// tokenPath is where login keeps the bearer token.
func tokenPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".unifield", "token"), nil
}

func readToken() (string, error) {
	path, err := tokenPath()
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func writeToken(token string) error {
	path, err := tokenPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(token+"\n"), 0o600)
}

// remoteEntity resolves a name to an entity the gateway service stores.
func remoteEntity(name string) (models.Entity, error) {
	entity, err := registry.Get(name)
	if err != nil {
		return entity, fmt.Errorf("%w (valid: %s)", err, strings.Join(remoteNames(), ", "))
	}
	if entity.LocalOnly {
		return entity, fmt.Errorf("%s is managed with the settings command", name)
	}
	return entity, nil
}

func remoteNames() []string {
	var names []string
	for _, e := range registry.Remote() {
		names = append(names, e.Name)
	}
	return names
}

// parseAssignments turns repeated --set key=value flags into form values.
func parseAssignments(sets []string) (map[string]string, error) {
	values := make(map[string]string, len(sets))
	for _, s := range sets {
		key, value, ok := strings.Cut(s, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid assignment %q (expected key=value)", s)
		}
		values[key] = value
	}
	return values, nil
}

// bindForm builds the typed form for entity from --set flags.
func bindForm(entity string, sets []string) (models.Form, error) {
	values, err := parseAssignments(sets)
	if err != nil {
		return nil, err
	}
	form, err := models.NewForm(entity)
	if err != nil {
		return nil, err
	}
	if err := models.BindForm(form, values); err != nil {
		return nil, err
	}
	return form, nil
}

func parseID(arg string) (int64, error) {
	id, err := cast.ToInt64E(arg)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", arg)
	}
	return id, nil
}

// printRows writes rows as JSON or as an aligned table with the search
// fields first.
func printRows(w io.Writer, entity models.Entity, rows []models.Row) error {
	if flagJSON {
		return printJSON(w, rows)
	}
	if len(rows) == 0 {
		fmt.Fprintf(w, "No %s found\n", strings.ReplaceAll(entity.Name, "_", " "))
		return nil
	}

	cols := columns(entity, rows)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.ToUpper(strings.Join(cols, "\t")))
	for _, r := range rows {
		vals := make([]string, len(cols))
		for i, c := range cols {
			vals[i] = r.String(c)
		}
		fmt.Fprintln(tw, strings.Join(vals, "\t"))
	}
	return tw.Flush()
}

// columns orders id, the search fields, then the remaining columns by name.
// Stamp columns are left out of the table view.
func columns(entity models.Entity, rows []models.Row) []string {
	seen := map[string]bool{models.IDField: true}
	cols := []string{models.IDField}
	for _, f := range entity.SearchFields {
		if !seen[f] {
			seen[f] = true
			cols = append(cols, f)
		}
	}
	skip := map[string]bool{
		models.CreatedByField: true, models.CreatedAtField: true,
		models.UpdatedByField: true, models.UpdatedAtField: true,
	}
	var rest []string
	for _, r := range rows {
		for k := range r {
			if !seen[k] && !skip[k] {
				seen[k] = true
				rest = append(rest, k)
			}
		}
	}
	sort.Strings(rest)
	return append(cols, rest...)
}

func printRow(w io.Writer, row models.Row) error {
	if flagJSON {
		return printJSON(w, row)
	}
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, k := range keys {
		fmt.Fprintf(tw, "%s:\t%s\n", k, row.String(k))
	}
	return tw.Flush()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// confirm asks a yes/no question on in.
func confirm(in io.Reader, out io.Writer, question string) bool {
	fmt.Fprintf(out, "%s [y/N]: ", question)
	line, _ := bufio.NewReader(in).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

// describeError turns crud and gateway errors into one line for the terminal.
func describeError(err error) error {
	var verr *crud.ValidationError
	switch {
	case errors.As(err, &verr):
		return fmt.Errorf("missing required fields: %s", strings.Join(verr.Fields, ", "))
	case errors.Is(err, crud.ErrNotAuthenticated), errors.Is(err, gateway.ErrUnauthorized):
		return fmt.Errorf("not logged in (run unifieldctl login): %w", err)
	case errors.Is(err, gateway.ErrConflict):
		return fmt.Errorf("record changed since it was read, fetch it again: %w", err)
	}
	return err
}
