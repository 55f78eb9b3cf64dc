package dataset

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"regpipe/internal/table"
)

// Column names the normalizer gives special treatment.
const (
	ColDate     = "date"
	ColMonth    = "month"
	ColState    = "state"
	ColDistrict = "district"
	ColPincode  = "pincode"
)

// dateLayouts are tried in order. The extracts use day-first formats; ISO
// forms are accepted so re-normalizing exported data round-trips.
var dateLayouts = []string{
	"02-01-2006",
	"02/01/2006",
	"2006-01-02",
	"02-01-2006 15:04:05",
	"02/01/2006 15:04:05",
	"2006-01-02 15:04:05",
	"02-Jan-2006",
}

// Normalize canonicalizes one raw category table:
//
//  1. Column names: trim, lowercase, spaces and hyphens to underscores.
//  2. "date": parsed day-first; unparsable cells become nil, never an error.
//     "month" is derived as the "YYYY-MM" bucket, nil where date is nil.
//  3. "state"/"district": stringified and edge-trimmed.
//  4. "pincode": stringified with a trailing ".0" stripped (an artifact of
//     numeric-to-text conversion upstream).
//
// Rows are never dropped. An empty table passes through untouched.
// Normalizing an already-normalized table is a no-op.
func Normalize(t *table.Table) *table.Table {
	if t.Empty() {
		return t
	}
	out := t.Clone()

	cols := make([]string, len(out.Cols))
	for i, c := range out.Cols {
		cols[i] = CanonicalName(c)
	}
	out.RenameCols(cols)

	if out.HasCol(ColDate) {
		monthIx := out.AddCol(ColMonth, nil)
		dateIx := out.Col(ColDate)
		for i, row := range out.Rows {
			d, ok := parseDate(row[dateIx])
			if !ok {
				out.Rows[i][dateIx] = nil
				out.Rows[i][monthIx] = nil
				continue
			}
			out.Rows[i][dateIx] = d
			out.Rows[i][monthIx] = d.Format("2006-01")
		}
	}

	for _, name := range []string{ColState, ColDistrict} {
		if ix := out.Col(name); ix >= 0 {
			for _, row := range out.Rows {
				if row[ix] == nil {
					continue
				}
				row[ix] = strings.TrimSpace(asString(row[ix]))
			}
		}
	}

	if ix := out.Col(ColPincode); ix >= 0 {
		for _, row := range out.Rows {
			if row[ix] == nil {
				continue
			}
			row[ix] = strings.TrimSuffix(asString(row[ix]), ".0")
		}
	}

	return out
}

// CanonicalName maps a raw header to its canonical form.
func CanonicalName(c string) string {
	c = strings.ToLower(strings.TrimSpace(c))
	c = strings.ReplaceAll(c, " ", "_")
	c = strings.ReplaceAll(c, "-", "_")
	return c
}

// parseDate accepts a cell that is already a parsed date or a string in one
// of the known layouts. Anything else is (zero, false). The result is always
// truncated to midnight UTC: "date" is a calendar date, and a stray time of
// day would break inclusive range filtering on the end day.
func parseDate(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return midnight(x), true
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range dateLayouts {
			if d, err := time.Parse(layout, s); err == nil {
				return midnight(d), true
			}
		}
	}
	return time.Time{}, false
}

func midnight(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
}

func asString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case time.Time:
		return x.Format("2006-01-02")
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}
