package export

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"regpipe/internal/table"
)

// WriteSQLite replaces the named table in a SQLite file with the contents of
// t. DDL and inserts run in one transaction, so readers never observe a
// half-written export.
//
// Column affinity is inferred from cell kinds: integer metrics get INTEGER,
// everything else TEXT. Dates are stored as YYYY-MM-DD strings; SQLite has
// no native date type and the string form round-trips and sorts correctly.
func WriteSQLite(ctx context.Context, path, name string, t *table.Table) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("sqlite export: table name is empty")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("sqlite open: %w", err)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite ping: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+sqlIdent(name)); err != nil {
		return fmt.Errorf("drop table %s: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, buildCreateSQL(name, t)); err != nil {
		return fmt.Errorf("create table %s: %w", name, err)
	}

	if t.Len() > 0 {
		stmt, err := tx.PrepareContext(ctx, buildInsertSQL(name, t.Cols))
		if err != nil {
			return fmt.Errorf("prepare insert: %w", err)
		}
		defer stmt.Close()

		args := make([]any, len(t.Cols))
		for _, row := range t.Rows {
			for i, v := range row {
				args[i] = cellArg(v)
			}
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				return fmt.Errorf("insert into %s: %w", name, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite commit: %w", err)
	}
	return nil
}

func sqlIdent(id string) string {
	// SQLite supports "quoted identifiers"
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

func buildCreateSQL(name string, t *table.Table) string {
	var b strings.Builder
	b.WriteString("CREATE TABLE ")
	b.WriteString(sqlIdent(name))
	b.WriteString(" (")
	for i, c := range t.Cols {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(sqlIdent(c))
		b.WriteByte(' ')
		b.WriteString(columnAffinity(t, i))
	}
	b.WriteString(")")
	return b.String()
}

// columnAffinity picks INTEGER when the first non-nil cell is an integer,
// otherwise TEXT.
func columnAffinity(t *table.Table, col int) string {
	for _, row := range t.Rows {
		switch row[col].(type) {
		case nil:
			continue
		case int64:
			return "INTEGER"
		default:
			return "TEXT"
		}
	}
	return "TEXT"
}

func buildInsertSQL(name string, cols []string) string {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(sqlIdent(name))
	b.WriteString(" (")
	for i, c := range cols {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(sqlIdent(c))
	}
	b.WriteString(") VALUES (")
	for i := range cols {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('?')
	}
	b.WriteString(")")
	return b.String()
}

func cellArg(v any) any {
	switch x := v.(type) {
	case time.Time:
		return x.Format("2006-01-02")
	default:
		return x
	}
}
