package dataset

import (
	"strconv"
	"strings"
	"time"

	"regpipe/internal/table"
)

// Totalize materializes every expected metric column and writes a row-wise
// total.
//
// Per expected column: absent columns are created as zero; present cells are
// coerced to a non-negative integer count (unparsable and negative values
// both become 0, since a count can never be negative). The output column is
// then the exact integer sum of the expected columns, created or overwritten.
//
// The input table is not mutated. A zero-row table is handled without error:
// the expected columns and the total column are materialized empty.
func Totalize(t *table.Table, cols []string, out string) *table.Table {
	res := t.Clone()

	ixs := make([]int, len(cols))
	for i, c := range cols {
		ix := res.AddCol(c, int64(0))
		for _, row := range res.Rows {
			row[ix] = coerceCount(row[ix])
		}
		ixs[i] = ix
	}

	totalIx := res.AddCol(out, int64(0))
	for _, row := range res.Rows {
		var sum int64
		for _, ix := range ixs {
			sum += row[ix].(int64)
		}
		row[totalIx] = sum
	}
	return res
}

// TotalizeCategory is Totalize over a category's declared columns.
func TotalizeCategory(t *table.Table, c Category) *table.Table {
	return Totalize(t, c.MetricCols, c.TotalCol)
}

// coerceCount maps any cell to a non-negative int64.
//
// Numeric strings may arrive as floats ("12.0"); they truncate toward zero.
// Nil, text and negative values are all 0.
func coerceCount(v any) int64 {
	var n int64
	switch x := v.(type) {
	case int64:
		n = x
	case float64:
		n = int64(x)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0
		}
		n = int64(f)
	case time.Time, nil:
		return 0
	default:
		return 0
	}
	if n < 0 {
		return 0
	}
	return n
}
