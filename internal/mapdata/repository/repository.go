package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"indoormap/internal/mapdata/models"
)

var (
	ErrUnknownTable  = errors.New("unknown table")
	ErrUnknownColumn = errors.New("unknown column")
	ErrNotFound      = errors.New("not found")
	ErrEmptyRecord   = errors.New("empty record")
)

// columns whitelists what each table accepts. Identifiers are always
// quoted, so reserved words like "for" and "desc" are safe.
var columns = map[string][]string{
	models.TableBuildings: {"id", "name", "address", "lat", "lon", "imageUrl"},
	models.TableRooms:     {"id", "title", "room_number", "description", "seats", "bookable", "color", "geometry", "wallified", "av_equipment"},
	models.TableFeatures:  {"id", "type", "geometry", "width", "height", "for", "name", "icon", "label", "rotation", "scaleX", "scaleY", "originalGeometry"},
	models.TablePOI:       {"id", "title", "desc", "lat", "lon", "type", "image_url", "address"},
	models.TableEvents:    {"id", "name", "start_time", "end_time", "description", "poi_id", "participants"},
	models.TableUsers:     {"id", "name", "email", "role", "country", "age"},
}

// Tables lists the served tables in a stable order.
func Tables() []string {
	out := make([]string, 0, len(columns))
	for t := range columns {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Filter is an equality condition on one column.
type Filter struct {
	Column string
	Value  string
}

// ============================================================
// Repository
// ============================================================

type Repository struct {
	db     *sql.DB
	driver string
}

func New(db *sql.DB, driver string) *Repository {
	if driver == "" {
		driver = DriverSQLite
	}
	return &Repository{db: db, driver: driver}
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repository) List(ctx context.Context, table string, filters ...Filter) ([]models.Record, error) {
	cols, err := tableColumns(table)
	if err != nil {
		return nil, err
	}

	var (
		where []string
		args  []any
	)
	for _, f := range filters {
		if err := checkColumn(table, f.Column); err != nil {
			return nil, err
		}
		where = append(where, quote(f.Column)+" = ?")
		args = append(args, f.Value)
	}

	query := fmt.Sprintf("SELECT %s FROM %s", quoteAll(cols), quote(table))
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += ` ORDER BY "id"`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", table, err)
	}
	defer rows.Close()

	out := []models.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows, cols)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *Repository) Get(ctx context.Context, table, id string) (models.Record, error) {
	recs, err := r.List(ctx, table, Filter{Column: "id", Value: id})
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("%s %s: %w", table, id, ErrNotFound)
	}
	return recs[0], nil
}

// Insert stores rec and returns it with its id. Rows without an id get one.
func (r *Repository) Insert(ctx context.Context, table string, rec models.Record) (models.Record, error) {
	if _, err := tableColumns(table); err != nil {
		return nil, err
	}
	row := normalize(rec)
	if row.Str("id") == "" {
		row["id"] = models.NewID()
	}

	keys, err := sortedKeys(table, row)
	if err != nil {
		return nil, err
	}
	args := make([]any, len(keys))
	marks := make([]string, len(keys))
	for i, k := range keys {
		args[i] = row[k]
		marks[i] = "?"
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", quote(table), quoteAll(keys), strings.Join(marks, ", "))
	if _, err := r.db.ExecContext(ctx, r.rebind(query), args...); err != nil {
		return nil, fmt.Errorf("insert %s: %w", table, err)
	}
	return row, nil
}

// Update sets only the columns present in patch.
func (r *Repository) Update(ctx context.Context, table, id string, patch models.Record) error {
	if _, err := tableColumns(table); err != nil {
		return err
	}
	patch = normalize(patch)
	delete(patch, "id")
	if len(patch) == 0 {
		return ErrEmptyRecord
	}
	keys, err := sortedKeys(table, patch)
	if err != nil {
		return err
	}
	sets := make([]string, len(keys))
	args := make([]any, 0, len(keys)+1)
	for i, k := range keys {
		sets[i] = quote(k) + " = ?"
		args = append(args, patch[k])
	}
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE %s SET %s WHERE "id" = ?`, quote(table), strings.Join(sets, ", "))
	res, err := r.db.ExecContext(ctx, r.rebind(query), args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", table, err)
	}
	return expectRows(res, table, id)
}

func (r *Repository) Delete(ctx context.Context, table, id string) error {
	if _, err := tableColumns(table); err != nil {
		return err
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE "id" = ?`, quote(table))
	res, err := r.db.ExecContext(ctx, r.rebind(query), id)
	if err != nil {
		return fmt.Errorf("delete %s: %w", table, err)
	}
	return expectRows(res, table, id)
}

// DeleteWhere removes every row whose column equals value.
func (r *Repository) DeleteWhere(ctx context.Context, table, column, value string) (int64, error) {
	if err := checkColumn(table, column); err != nil {
		return 0, err
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", quote(table), quote(column))
	res, err := r.db.ExecContext(ctx, r.rebind(query), value)
	if err != nil {
		return 0, fmt.Errorf("delete %s where %s: %w", table, column, err)
	}
	return res.RowsAffected()
}

// ============================================================
// Helpers
// ============================================================

func tableColumns(table string) ([]string, error) {
	cols, ok := columns[table]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTable, table)
	}
	return cols, nil
}

func checkColumn(table, column string) error {
	cols, err := tableColumns(table)
	if err != nil {
		return err
	}
	for _, c := range cols {
		if c == column {
			return nil
		}
	}
	return fmt.Errorf("%w: %s.%s", ErrUnknownColumn, table, column)
}

func sortedKeys(table string, rec models.Record) ([]string, error) {
	keys := make([]string, 0, len(rec))
	for k := range rec {
		if err := checkColumn(table, k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// normalize copies rec, flattening nested JSON values into text columns.
func normalize(rec models.Record) models.Record {
	out := make(models.Record, len(rec))
	for k, v := range rec {
		switch v.(type) {
		case map[string]any, []any, []string:
			data, err := json.Marshal(v)
			if err == nil {
				v = string(data)
			}
		}
		out[k] = v
	}
	return out
}

func expectRows(res sql.Result, table, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", table, id, ErrNotFound)
	}
	return nil
}

func scanRecord(rows *sql.Rows, cols []string) (models.Record, error) {
	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	rec := make(models.Record, len(cols))
	for i, c := range cols {
		if b, ok := values[i].([]byte); ok {
			rec[c] = string(b)
			continue
		}
		rec[c] = values[i]
	}
	return rec, nil
}

func quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func quoteAll(idents []string) string {
	out := make([]string, len(idents))
	for i, id := range idents {
		out[i] = quote(id)
	}
	return strings.Join(out, ", ")
}

// rebind переводит плейсхолдеры ? в $n для postgres.
func (r *Repository) rebind(query string) string {
	if r.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, ch := range query {
		if ch == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(ch)
	}
	return b.String()
}
