package source

import (
	"context"
	"database/sql"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"amdash/internal/catalog"
	"amdash/internal/config"
	"amdash/internal/engine"
	"amdash/internal/models"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// SQLite reads datasets from one table per dataset. Tag columns hold
// semicolon-separated text.
type SQLite struct {
	db  *sql.DB
	log *zap.Logger
}

func OpenSQLite(path string, log *zap.Logger) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	return NewSQLite(db, log), nil
}

func NewSQLite(db *sql.DB, log *zap.Logger) *SQLite {
	return &SQLite{db: db, log: log}
}

func (s *SQLite) Backend() string { return config.SourceSQLite }

func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) Fetch(ctx context.Context, q Query) (*models.RecordSet, error) {
	query, args, err := buildSelect(q)
	if err != nil {
		return nil, fetchErr(q, s.Backend(), 0, err)
	}
	s.log.Debug("sqlite query", zap.String("sql", query), zap.Int("args", len(args)))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fetchErr(q, s.Backend(), 0, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fetchErr(q, s.Backend(), 0, err)
	}
	records := []models.Record{}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fetchErr(q, s.Backend(), 0, err)
		}
		raw := make(map[string]any, len(cols))
		for i, c := range cols {
			raw[c] = vals[i]
		}
		records = append(records, q.Dataset.Schema.Coerce(raw))
	}
	if err := rows.Err(); err != nil {
		return nil, fetchErr(q, s.Backend(), 0, err)
	}
	return &models.RecordSet{Dataset: q.Dataset.Name, Records: records, FetchedAt: time.Now()}, nil
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func buildSelect(q Query) (string, []any, error) {
	ds := q.Dataset
	if err := q.Coarse.Validate(ds); err != nil {
		return "", nil, err
	}
	var (
		where []string
		args  []any
	)
	for _, k := range slices.Sorted(maps.Keys(q.Coarse.In)) {
		vals := q.Coarse.In[k]
		if len(vals) == 0 {
			continue
		}
		f, _ := ds.Schema.Field(k)
		marks := make([]string, len(vals))
		for i, v := range vals {
			marks[i] = "?"
			if f.Kind == engine.Numeric {
				n, ok := engine.ParseNumber(v)
				if !ok {
					return "", nil, fmt.Errorf("%s: %q is not a number", k, v)
				}
				args = append(args, n)
			} else {
				args = append(args, f.Canonical(v))
			}
		}
		col := quoteIdent(k)
		if f.Kind != engine.Numeric {
			col += " COLLATE NOCASE"
		}
		where = append(where, fmt.Sprintf("%s IN (%s)", col, strings.Join(marks, ", ")))
	}
	for _, k := range slices.Sorted(maps.Keys(q.Coarse.Ranges)) {
		r := q.Coarse.Ranges[k]
		if r.Min != nil {
			where = append(where, quoteIdent(k)+" >= ?")
			args = append(args, *r.Min)
		}
		if r.Max != nil {
			where = append(where, quoteIdent(k)+" <= ?")
			args = append(args, *r.Max)
		}
	}

	var b strings.Builder
	b.WriteString("SELECT * FROM ")
	b.WriteString(quoteIdent(ds.Table))
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	if key := ds.DefaultSort.Key; key.Field != "" {
		b.WriteString(" ORDER BY ")
		b.WriteString(quoteIdent(key.Field))
		if f, ok := ds.Schema.Field(key.Field); ok && f.Kind != engine.Numeric {
			b.WriteString(" COLLATE NOCASE")
		}
		b.WriteString(" " + strings.ToUpper(key.Dir.String()) + " NULLS LAST")
	}
	b.WriteString(" LIMIT ")
	b.WriteString(strconv.Itoa(q.limit()))
	return b.String(), args, nil
}

// Import replaces the dataset's table with records. It is used to seed a
// database from the static files.
func (s *SQLite) Import(ctx context.Context, ds catalog.Dataset, records []models.Record) error {
	fields := ds.Schema.Fields()
	cols := make([]string, len(fields))
	defs := make([]string, len(fields))
	marks := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = quoteIdent(f.Key)
		typ := "TEXT"
		if f.Kind == engine.Numeric {
			typ = "REAL"
		}
		defs[i] = cols[i] + " " + typ
		marks[i] = "?"
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	table := quoteIdent(ds.Table)
	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
		return fmt.Errorf("drop %s: %w", ds.Table, err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", table, strings.Join(defs, ", "))); err != nil {
		return fmt.Errorf("create %s: %w", ds.Table, err)
	}
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(cols, ", "), strings.Join(marks, ", ")))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, r := range records {
		args := make([]any, len(fields))
		for j, f := range fields {
			args[j] = sqlValue(r.Get(f.Key))
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("insert %s row %d: %w", ds.Table, i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.log.Info("dataset imported", zap.String("dataset", ds.Name), zap.Int("rows", len(records)))
	return nil
}

func sqlValue(v models.Value) any {
	switch v.Kind() {
	case models.KindNull:
		return nil
	case models.KindNumber:
		n, _ := v.Num()
		return n
	case models.KindList:
		return strings.Join(v.Items(), ";")
	default:
		return v.Text()
	}
}
