package export

import (
	"bytes"
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"regpipe/internal/table"
)

func resultTable() *table.Table {
	d, _ := time.Parse("2006-01-02", "2024-01-01")
	t := table.New("date", "state", "pincode", "total")
	t.AppendRow(d, "X", "110001", int64(10))
	t.AppendRow(nil, "Y", "200001", int64(3))
	return t
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, resultTable()); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	want := "date,state,pincode,total\n" +
		"2024-01-01,X,110001,10\n" +
		",Y,200001,3\n"
	if buf.String() != want {
		t.Fatalf("csv=\n%s\nwant\n%s", buf.String(), want)
	}
}

func TestWriteCSVEmptyTable(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, table.New("a", "b")); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	if buf.String() != "a,b\n" {
		t.Fatalf("csv=%q", buf.String())
	}
}

func TestWriteSQLiteRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.db")
	ctx := context.Background()

	if err := WriteSQLite(ctx, path, "registrations", resultTable()); err != nil {
		t.Fatalf("WriteSQLite: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM "registrations"`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Fatalf("rows=%d, want 2", n)
	}

	var date, state string
	var total int64
	err = db.QueryRowContext(ctx,
		`SELECT "date", "state", "total" FROM "registrations" WHERE "pincode" = ?`,
		"110001").Scan(&date, &state, &total)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if date != "2024-01-01" || state != "X" || total != 10 {
		t.Fatalf("row=(%s,%s,%d)", date, state, total)
	}
}

// TestWriteSQLiteReplaces: exporting twice leaves only the second table's
// rows; stale rows from a previous run never linger.
func TestWriteSQLiteReplaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.db")
	ctx := context.Background()

	if err := WriteSQLite(ctx, path, "registrations", resultTable()); err != nil {
		t.Fatalf("first write: %v", err)
	}

	small := table.New("state", "total")
	small.AppendRow("Z", int64(1))
	if err := WriteSQLite(ctx, path, "registrations", small); err != nil {
		t.Fatalf("second write: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM "registrations"`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("rows=%d, want 1", n)
	}
}

func TestWriteSQLiteRejectsEmptyName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.db")
	if err := WriteSQLite(context.Background(), path, "  ", resultTable()); err == nil {
		t.Fatalf("expected error for empty table name")
	}
}
