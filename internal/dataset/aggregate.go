package dataset

import (
	"strings"
	"time"

	"regpipe/internal/table"
)

// KeyCols is the composite key aligning rows across categories. Two rows are
// the same aggregation bucket iff all five fields compare equal; a nil date
// compares equal to another nil date.
var KeyCols = []string{ColDate, ColState, ColDistrict, ColPincode, ColMonth}

// GroupSum collapses a table to one row per composite key, summing the named
// metric column. Key order in the output is first appearance in the input.
//
// Rows that carry the same key (typical when several extracts were
// concatenated) contribute once with their metrics added, never as duplicate
// rows.
func GroupSum(t *table.Table, metric string) *table.Table {
	out := table.New(append(append([]string(nil), KeyCols...), metric)...)

	keyIxs := make([]int, len(KeyCols))
	for i, c := range KeyCols {
		keyIxs[i] = t.Col(c)
	}
	metricIx := t.Col(metric)

	rowFor := make(map[string]int, len(t.Rows))
	for _, row := range t.Rows {
		key := make([]any, len(KeyCols))
		for i, ix := range keyIxs {
			if ix >= 0 {
				key[i] = row[ix]
			}
		}

		var m int64
		if metricIx >= 0 {
			m = coerceCount(row[metricIx])
		}

		k := encodeKey(key)
		if at, ok := rowFor[k]; ok {
			out.Rows[at][len(KeyCols)] = out.Rows[at][len(KeyCols)].(int64) + m
			continue
		}
		rowFor[k] = len(out.Rows)
		out.AppendRow(append(key, m)...)
	}
	return out
}

// Combine produces the combined view from the three totalized category
// tables (metric columns "enrol", "demo", "bio").
//
// Each table is grouped by the composite key, the three aggregates are
// outer-joined on the key, so every key present in any category appears
// exactly once. Metrics absent on a side fill with zero, and "total" is the sum of
// the three. Output order is first appearance across enrolment, then
// demographic, then biometric.
func Combine(enrol, demo, bio *table.Table) *table.Table {
	parts := []*table.Table{
		GroupSum(enrol, Enrolment.CombinedCol),
		GroupSum(demo, Demographic.CombinedCol),
		GroupSum(bio, Biometric.CombinedCol),
	}

	cols := append([]string(nil), KeyCols...)
	cols = append(cols, Enrolment.CombinedCol, Demographic.CombinedCol, Biometric.CombinedCol, "total")
	out := table.New(cols...)

	nk := len(KeyCols)
	rowFor := make(map[string]int)
	for part, g := range parts {
		metricAt := nk + part
		for _, row := range g.Rows {
			k := encodeKey(row[:nk])
			at, ok := rowFor[k]
			if !ok {
				at = len(out.Rows)
				rowFor[k] = at
				joined := make([]any, len(cols))
				copy(joined, row[:nk])
				for m := 0; m < 3; m++ {
					joined[nk+m] = int64(0)
				}
				joined[len(cols)-1] = int64(0)
				out.Rows = append(out.Rows, joined)
			}
			out.Rows[at][metricAt] = out.Rows[at][metricAt].(int64) + row[nk].(int64)
			out.Rows[at][len(cols)-1] = out.Rows[at][len(cols)-1].(int64) + row[nk].(int64)
		}
	}
	return out
}

// encodeKey flattens a composite key into a comparable string. Cell kinds are
// prefixed so the string "2024-01-01" and a parsed date never collide, and a
// nil never collides with an empty string.
func encodeKey(key []any) string {
	var b strings.Builder
	for i, v := range key {
		if i > 0 {
			b.WriteByte(0x1f)
		}
		switch x := v.(type) {
		case nil:
			b.WriteByte('n')
		case string:
			b.WriteByte('s')
			b.WriteString(x)
		case time.Time:
			b.WriteByte('t')
			b.WriteString(x.Format(time.RFC3339))
		default:
			b.WriteByte('?')
			b.WriteString(asString(x))
		}
	}
	return b.String()
}
