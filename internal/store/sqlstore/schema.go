package sqlstore

import (
	"context"
	"fmt"
	"strings"
)

// column describes one nullable column with its type per dialect.
type column struct {
	name       string
	sqliteType string
	pgType     string
}

type table struct {
	name    string
	columns []column
}

// Expected schema. The id key column is created with the table and is never
// added by migration; everything listed here may be added to an older store.
var schema = []table{
	{
		name: "bookmarks",
		columns: []column{
			{"name", "TEXT", "TEXT"},
			{"address", "TEXT", "TEXT"},
			{"lat", "REAL", "DOUBLE PRECISION"},
			{"lon", "REAL", "DOUBLE PRECISION"},
			{"image_path", "TEXT", "TEXT"},
			{"rating", "INTEGER", "INTEGER"},
			{"is_recommended", "INTEGER", "INTEGER"},
			{"created_at", "TEXT", "TEXT"},
			{"memo", "TEXT", "TEXT"},
			{"category", "TEXT", "TEXT"},
		},
	},
	{
		name: "photos",
		columns: []column{
			{"store_name", "TEXT", "TEXT"},
			{"date", "TEXT", "TEXT"},
			{"image_path", "TEXT", "TEXT"},
		},
	},
}

// PostgreSQL has no rowid, so insertion order is tracked explicitly.
var pgSeqColumn = column{"seq", "", "BIGSERIAL"}

func (s *SQLStore) tableColumns(t table) []column {
	if s.dbType == Postgres {
		return append([]column{pgSeqColumn}, t.columns...)
	}
	return t.columns
}

func (s *SQLStore) columnType(c column) string {
	if s.dbType == Postgres {
		return c.pgType
	}
	return c.sqliteType
}

func (s *SQLStore) createTableSQL(t table) string {
	defs := []string{"id TEXT PRIMARY KEY"}
	for _, c := range s.tableColumns(t) {
		defs = append(defs, c.name+" "+s.columnType(c))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", t.name, strings.Join(defs, ",\n\t"))
}

// Initialize creates missing tables and adds any missing expected columns.
// Existing columns are never dropped or renamed, so repeated calls are harmless.
func (s *SQLStore) Initialize(ctx context.Context) error {
	for _, t := range schema {
		if _, err := s.db.ExecContext(ctx, s.createTableSQL(t)); err != nil {
			return storageErr("create table "+t.name, err)
		}

		existing, err := s.Columns(ctx, t.name)
		if err != nil {
			return err
		}
		have := make(map[string]bool, len(existing))
		for _, name := range existing {
			have[name] = true
		}

		for _, c := range s.tableColumns(t) {
			if have[c.name] {
				continue
			}
			stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", t.name, c.name, s.columnType(c))
			if _, err := s.db.ExecContext(ctx, stmt); err != nil {
				return storageErr("add column "+t.name+"."+c.name, err)
			}
		}
	}
	return nil
}

// Columns lists the column names of a known table in declaration order.
func (s *SQLStore) Columns(ctx context.Context, name string) ([]string, error) {
	if !knownTable(name) {
		return nil, fmt.Errorf("unknown table %q", name)
	}
	if s.dbType == Postgres {
		return s.pgColumns(ctx, name)
	}
	return s.sqliteColumns(ctx, name)
}

func knownTable(name string) bool {
	for _, t := range schema {
		if t.name == name {
			return true
		}
	}
	return false
}

func (s *SQLStore) sqliteColumns(ctx context.Context, name string) ([]string, error) {
	// PRAGMA does not accept bound parameters; name is checked against schema.
	rows, err := s.db.QueryContext(ctx, "PRAGMA table_info("+name+")")
	if err != nil {
		return nil, storageErr("read columns of "+name, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var (
			cid     int
			colName string
			colType string
			notNull int
			dflt    any
			pk      int
		)
		if err := rows.Scan(&cid, &colName, &colType, &notNull, &dflt, &pk); err != nil {
			return nil, storageErr("scan column of "+name, err)
		}
		cols = append(cols, colName)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("read columns of "+name, err)
	}
	return cols, nil
}

func (s *SQLStore) pgColumns(ctx context.Context, name string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT column_name FROM information_schema.columns WHERE table_schema = current_schema() AND table_name = $1 ORDER BY ordinal_position",
		name)
	if err != nil {
		return nil, storageErr("read columns of "+name, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var colName string
		if err := rows.Scan(&colName); err != nil {
			return nil, storageErr("scan column of "+name, err)
		}
		cols = append(cols, colName)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("read columns of "+name, err)
	}
	return cols, nil
}
