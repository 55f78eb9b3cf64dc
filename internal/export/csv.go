// Package export writes a result table to the sinks the user can ask for:
// a CSV download or a local SQLite file.
package export

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"regpipe/internal/table"
)

// WriteCSV writes t as CSV: header row, then data rows in table order.
// Nil cells are empty fields; dates render as YYYY-MM-DD.
func WriteCSV(w io.Writer, t *table.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Cols); err != nil {
		return err
	}

	rec := make([]string, len(t.Cols))
	for _, row := range t.Rows {
		for i, v := range row {
			rec[i] = cellString(v)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func cellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case time.Time:
		return x.Format("2006-01-02")
	default:
		return ""
	}
}
