package gateway

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cast"

	"unifield-backend/internal/metrics"
	"unifield-backend/internal/models"
)

// Feed opens change subscriptions. realtime.Hub implements it on top of
// Postgres LISTEN/NOTIFY.
type Feed interface {
	Subscribe(ctx context.Context, table string, kinds ...EventKind) (Subscription, error)
}

// UserFunc reports the authenticated user carried by a request context.
type UserFunc func(ctx context.Context) (string, bool)

// Postgres serves the exposed tables straight from the database. Column
// names are checked against information_schema before they reach SQL.
type Postgres struct {
	pool   *pgxpool.Pool
	feed   Feed
	user   UserFunc
	tables map[string]bool

	mu      sync.RWMutex
	columns map[string]map[string]string // table -> column -> data_type
}

func NewPostgres(pool *pgxpool.Pool, feed Feed, user UserFunc, tables ...string) *Postgres {
	allowed := make(map[string]bool, len(tables))
	for _, t := range tables {
		allowed[t] = true
	}
	return &Postgres{
		pool:    pool,
		feed:    feed,
		user:    user,
		tables:  allowed,
		columns: make(map[string]map[string]string),
	}
}

// Tables lists the exposed table names.
func (p *Postgres) Tables() []string {
	out := make([]string, 0, len(p.tables))
	for t := range p.tables {
		out = append(out, t)
	}
	return out
}

func (p *Postgres) columnTypes(ctx context.Context, table string) (map[string]string, error) {
	if !p.tables[table] {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}

	p.mu.RLock()
	cols, ok := p.columns[table]
	p.mu.RUnlock()
	if ok {
		return cols, nil
	}

	rows, err := p.pool.Query(ctx, `
		SELECT column_name, data_type
		FROM information_schema.columns
		WHERE table_schema = 'public' AND table_name = $1`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols = make(map[string]string)
	for rows.Next() {
		var name, typ string
		if err := rows.Scan(&name, &typ); err != nil {
			return nil, err
		}
		cols[name] = typ
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}

	p.mu.Lock()
	p.columns[table] = cols
	p.mu.Unlock()
	return cols, nil
}

func (p *Postgres) Select(ctx context.Context, table string, q Query) (res *Result, err error) {
	defer observe("select", table, &err)

	cols, err := p.columnTypes(ctx, table)
	if err != nil {
		return nil, err
	}

	where, args, err := whereClause(cols, q.Filters)
	if err != nil {
		return nil, err
	}

	ident := pgx.Identifier{table}.Sanitize()
	query := "SELECT * FROM " + ident + where
	if q.OrderBy != nil {
		if _, ok := cols[q.OrderBy.Column]; !ok {
			return nil, fmt.Errorf("%w: %s.%s", ErrUnknownColumn, table, q.OrderBy.Column)
		}
		dir := "DESC"
		if q.OrderBy.Ascending {
			dir = "ASC"
		}
		query += " ORDER BY " + pgx.Identifier{q.OrderBy.Column}.Sanitize() + " " + dir
	}
	if q.Range != nil {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", max(q.Range.Limit(), 0), max(q.Range.From, 0))
	}

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, err
	}

	res = &Result{Rows: make([]models.Row, 0, len(maps)), Count: -1}
	for _, m := range maps {
		res.Rows = append(res.Rows, normalize(m))
	}

	if q.Count {
		if err := p.pool.QueryRow(ctx, "SELECT count(*) FROM "+ident+where, args...).Scan(&res.Count); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (p *Postgres) Insert(ctx context.Context, table string, row models.Row) (out models.Row, err error) {
	defer observe("insert", table, &err)

	cols, err := p.columnTypes(ctx, table)
	if err != nil {
		return nil, err
	}
	query, args, err := insertQuery(cols, table, row)
	if err != nil {
		return nil, err
	}

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	m, err := pgx.CollectOneRow(rows, pgx.RowToMap)
	if err != nil {
		return nil, err
	}
	return normalize(m), nil
}

// Update applies row to the row with the given id. On tables with a version
// column the version is bumped, and a version sent by the caller must match
// the stored one.
func (p *Postgres) Update(ctx context.Context, table string, row models.Row, id int64) (out models.Row, err error) {
	defer observe("update", table, &err)

	cols, err := p.columnTypes(ctx, table)
	if err != nil {
		return nil, err
	}
	query, args, conditional, err := updateQuery(cols, table, row, id)
	if err != nil {
		return nil, err
	}

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	m, err := pgx.CollectOneRow(rows, pgx.RowToMap)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, missingRow(table, id, conditional, func() bool { return p.exists(ctx, table, id) })
	}
	if err != nil {
		return nil, err
	}
	return normalize(m), nil
}

// insertQuery builds the INSERT for row. A client supplied id is dropped and
// versioned tables start at version 1.
func insertQuery(cols map[string]string, table string, row models.Row) (string, []any, error) {
	fields := row.Without(models.IDField, models.VersionField)
	if len(fields) == 0 {
		return "", nil, ErrEmptyRow
	}
	if _, ok := cols[models.VersionField]; ok {
		fields[models.VersionField] = int64(1)
	}

	names := make([]string, 0, len(fields))
	holders := make([]string, 0, len(fields))
	args := make([]any, 0, len(fields))
	for _, name := range slices.Sorted(maps.Keys(fields)) {
		val, err := coerceColumn(cols, table, name, fields[name])
		if err != nil {
			return "", nil, err
		}
		names = append(names, pgx.Identifier{name}.Sanitize())
		args = append(args, val)
		holders = append(holders, fmt.Sprintf("$%d", len(args)))
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING *",
		pgx.Identifier{table}.Sanitize(), strings.Join(names, ", "), strings.Join(holders, ", "))
	return query, args, nil
}

// updateQuery builds the UPDATE for row. conditional reports whether the
// statement only matches the caller's version.
func updateQuery(cols map[string]string, table string, row models.Row, id int64) (query string, args []any, conditional bool, err error) {
	fields := row.Without(models.IDField, models.VersionField)
	if len(fields) == 0 {
		return "", nil, false, ErrEmptyRow
	}

	var sets []string
	for _, name := range slices.Sorted(maps.Keys(fields)) {
		val, err := coerceColumn(cols, table, name, fields[name])
		if err != nil {
			return "", nil, false, err
		}
		args = append(args, val)
		sets = append(sets, fmt.Sprintf("%s = $%d", pgx.Identifier{name}.Sanitize(), len(args)))
	}

	_, versioned := cols[models.VersionField]
	if versioned {
		sets = append(sets, "version = version + 1")
	}

	args = append(args, id)
	where := fmt.Sprintf(" WHERE id = $%d", len(args))
	expected, sent := row[models.VersionField]
	if versioned && sent {
		v, err := cast.ToInt64E(expected)
		if err != nil {
			return "", nil, false, fmt.Errorf("%w: version %v", ErrConflict, expected)
		}
		args = append(args, v)
		where += fmt.Sprintf(" AND version = $%d", len(args))
		conditional = true
	}

	query = fmt.Sprintf("UPDATE %s SET %s%s RETURNING *",
		pgx.Identifier{table}.Sanitize(), strings.Join(sets, ", "), where)
	return query, args, conditional, nil
}

// missingRow explains an UPDATE that matched nothing: a conditional update of
// a row that still exists lost to a newer version.
func missingRow(table string, id int64, conditional bool, exists func() bool) error {
	if conditional && exists() {
		return fmt.Errorf("%w: %s/%d", ErrConflict, table, id)
	}
	return fmt.Errorf("%w: %s/%d", ErrNotFound, table, id)
}

func (p *Postgres) exists(ctx context.Context, table string, id int64) bool {
	var found bool
	err := p.pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM "+pgx.Identifier{table}.Sanitize()+" WHERE id = $1)", id).Scan(&found)
	return err == nil && found
}

func (p *Postgres) Delete(ctx context.Context, table string, id int64) (err error) {
	defer observe("delete", table, &err)

	if _, err := p.columnTypes(ctx, table); err != nil {
		return err
	}
	tag, err := p.pool.Exec(ctx, "DELETE FROM "+pgx.Identifier{table}.Sanitize()+" WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s/%d", ErrNotFound, table, id)
	}
	return nil
}

func (p *Postgres) Subscribe(ctx context.Context, table string, kinds ...EventKind) (Subscription, error) {
	if !p.tables[table] {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	if p.feed == nil {
		return nil, errors.New("change feed not configured")
	}
	return p.feed.Subscribe(ctx, table, kinds...)
}

func (p *Postgres) CurrentUser(ctx context.Context) (string, bool) {
	if p.user == nil {
		return "", false
	}
	return p.user(ctx)
}

// whereClause compares columns as text so filter values that arrive as query
// string text match numeric and date columns alike.
func whereClause(cols map[string]string, filters []Filter) (string, []any, error) {
	if len(filters) == 0 {
		return "", nil, nil
	}
	conds := make([]string, 0, len(filters))
	args := make([]any, 0, len(filters))
	for _, f := range filters {
		if _, ok := cols[f.Column]; !ok {
			return "", nil, fmt.Errorf("%w: %s", ErrUnknownColumn, f.Column)
		}
		args = append(args, fmt.Sprint(f.Value))
		conds = append(conds, fmt.Sprintf("%s::text = $%d", pgx.Identifier{f.Column}.Sanitize(), len(args)))
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

// coerceColumn converts a decoded JSON value to the Go type pgx encodes for
// the column's data type.
func coerceColumn(cols map[string]string, table, name string, v any) (any, error) {
	typ, ok := cols[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownColumn, table, name)
	}
	if v == nil {
		return nil, nil
	}

	var (
		out any
		err error
	)
	switch typ {
	case "smallint", "integer", "bigint":
		out, err = cast.ToInt64E(v)
	case "numeric", "real", "double precision":
		out, err = cast.ToFloat64E(v)
	case "boolean":
		out, err = cast.ToBoolE(v)
	case "timestamp with time zone", "timestamp without time zone", "date":
		out, err = cast.ToTimeE(v)
	default:
		out, err = cast.ToStringE(v)
	}
	if err != nil {
		return nil, fmt.Errorf("%w for %s.%s: %v", ErrInvalidValue, table, name, err)
	}
	return out, nil
}

// normalize turns pgx scan results into plain scalars.
func normalize(m map[string]any) models.Row {
	row := make(models.Row, len(m))
	for k, v := range m {
		switch val := v.(type) {
		case pgtype.Numeric:
			f, err := val.Float64Value()
			if err != nil || !f.Valid {
				row[k] = nil
				continue
			}
			row[k] = f.Float64
		case int32:
			row[k] = int64(val)
		case int16:
			row[k] = int64(val)
		case time.Time:
			row[k] = val.UTC()
		default:
			row[k] = v
		}
	}
	return row
}

func observe(op, table string, err *error) {
	status := "ok"
	if *err != nil {
		status = "error"
	}
	metrics.GatewayOpsTotal.WithLabelValues(op, table, status).Inc()
}
