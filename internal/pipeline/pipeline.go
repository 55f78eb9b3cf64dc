// Package pipeline wires loader, normalizer, totalizer and aggregator into
// the two run shapes the presentation layer asks for: one category, or the
// combined three-way view. It also carries the presentation-facing helpers
// (date filter, summary scalars, time series) so callers never reach into
// table internals.
package pipeline

import (
	"errors"
	"io/fs"
	"sort"
	"time"

	"regpipe/internal/config"
	"regpipe/internal/dataset"
	"regpipe/internal/loader"
	"regpipe/internal/metrics"
	"regpipe/internal/table"
)

// ErrNoData is returned when a built table has zero rows: every configured
// extract was missing or empty. Callers must surface this to the user and
// stop: downstream filtering assumes a populated date column.
var ErrNoData = errors.New("no data loaded")

// Pipeline executes full batch recomputes over the configured extracts.
// It holds no per-run state; one Pipeline may serve concurrent runs.
type Pipeline struct {
	loader *loader.Loader
	inputs config.Inputs
	m      metrics.Backend
}

// New builds a Pipeline over fsys. A nil backend means no metrics.
func New(fsys fs.FS, inputs config.Inputs, m metrics.Backend) *Pipeline {
	if m == nil {
		m = metrics.Nop{}
	}
	return &Pipeline{
		loader: loader.New(fsys),
		inputs: inputs,
		m:      m,
	}
}

// Refresh drops the loader's memoized extracts; the next run re-reads them.
func (p *Pipeline) Refresh() { p.loader.Refresh() }

func (p *Pipeline) files(c dataset.Category) []string {
	switch c.Name {
	case dataset.Enrolment.Name:
		return p.inputs.Enrolment
	case dataset.Demographic.Name:
		return p.inputs.Demographic
	default:
		return p.inputs.Biometric
	}
}

// buildCategory runs load → normalize → totalize for one category, writing
// the metric sums into the given output column.
func (p *Pipeline) buildCategory(c dataset.Category, outCol string) (*table.Table, error) {
	start := time.Now()

	raw, err := p.loader.Load(p.files(c))
	if err != nil {
		p.step("load", "error", start)
		return nil, err
	}

	t := dataset.Totalize(dataset.Normalize(raw), c.MetricCols, outCol)

	p.step("build_"+c.Name, "ok", start)
	p.m.IncCounter(metrics.RecordsTotal, float64(t.Len()), metrics.Labels{"category": c.Name})
	return t, nil
}

// Category produces the single-category view: normalized rows with the
// category's metric columns coerced and summed into "total".
//
// Returns ErrNoData when the result has zero rows.
func (p *Pipeline) Category(c dataset.Category) (*table.Table, error) {
	t, err := p.buildCategory(c, c.TotalCol)
	if err != nil {
		return nil, err
	}
	if t.Empty() {
		return nil, ErrNoData
	}
	return t, nil
}

// Combined produces the three-way combined view: each category grouped by
// the composite key, outer-joined with zero fill, plus a grand total column.
//
// When all three categories are empty this returns ErrNoData without
// attempting the join.
func (p *Pipeline) Combined() (*table.Table, error) {
	enr, err := p.buildCategory(dataset.Enrolment, dataset.Enrolment.CombinedCol)
	if err != nil {
		return nil, err
	}
	dem, err := p.buildCategory(dataset.Demographic, dataset.Demographic.CombinedCol)
	if err != nil {
		return nil, err
	}
	bio, err := p.buildCategory(dataset.Biometric, dataset.Biometric.CombinedCol)
	if err != nil {
		return nil, err
	}

	if enr.Empty() && dem.Empty() && bio.Empty() {
		return nil, ErrNoData
	}

	start := time.Now()
	out := dataset.Combine(enr, dem, bio)
	p.step("combine", "ok", start)
	p.m.IncCounter(metrics.JoinKeysTotal, float64(out.Len()), nil)
	return out, nil
}

func (p *Pipeline) step(step, status string, start time.Time) {
	l := metrics.Labels{"step": step, "status": status}
	p.m.IncCounter(metrics.StepTotal, 1, l)
	p.m.ObserveHistogram(metrics.StepDurationSeconds, time.Since(start).Seconds(), l)
}

// FilterDateRange keeps rows whose date lies in [from, to], inclusive.
//
// Rows with a nil (unparsable or missing) date are always excluded: a row
// that cannot be placed in time cannot be placed in a range. An empty result
// is valid, not an error.
func FilterDateRange(t *table.Table, from, to time.Time) *table.Table {
	out := table.New(t.Cols...)
	ix := t.Col(dataset.ColDate)
	if ix < 0 {
		return out
	}
	for _, row := range t.Rows {
		d, ok := row[ix].(time.Time)
		if !ok {
			continue
		}
		if d.Before(from) || d.After(to) {
			continue
		}
		cp := make([]any, len(row))
		copy(cp, row)
		out.Rows = append(out.Rows, cp)
	}
	return out
}

// DateBounds returns the min and max non-nil dates, and false when the table
// has none.
func DateBounds(t *table.Table) (min, max time.Time, ok bool) {
	ix := t.Col(dataset.ColDate)
	if ix < 0 {
		return
	}
	for _, row := range t.Rows {
		d, isDate := row[ix].(time.Time)
		if !isDate {
			continue
		}
		if !ok || d.Before(min) {
			min = d
		}
		if !ok || d.After(max) {
			max = d
		}
		ok = true
	}
	return
}

// Summary is the KPI triple the presentation layer displays.
type Summary struct {
	Records int   // rows in the (filtered) table
	Total   int64 // sum of the total column
	States  int   // distinct non-nil state values
}

// Summarize computes the KPI scalars over the given total column.
func Summarize(t *table.Table, totalCol string) Summary {
	s := Summary{Records: t.Len()}

	if ix := t.Col(totalCol); ix >= 0 {
		for _, row := range t.Rows {
			if n, ok := row[ix].(int64); ok {
				s.Total += n
			}
		}
	}

	if ix := t.Col(dataset.ColState); ix >= 0 {
		states := map[string]bool{}
		for _, row := range t.Rows {
			if v, ok := row[ix].(string); ok {
				states[v] = true
			}
		}
		s.States = len(states)
	}
	return s
}

// Point is one time-series bucket.
type Point struct {
	Date  time.Time
	Total int64
}

// TimeSeries sums the total column per date, sorted ascending. Rows without
// a date are skipped.
func TimeSeries(t *table.Table, totalCol string) []Point {
	dateIx := t.Col(dataset.ColDate)
	totalIx := t.Col(totalCol)
	if dateIx < 0 || totalIx < 0 {
		return nil
	}

	sums := map[time.Time]int64{}
	for _, row := range t.Rows {
		d, ok := row[dateIx].(time.Time)
		if !ok {
			continue
		}
		if n, ok := row[totalIx].(int64); ok {
			sums[d] += n
		}
	}

	out := make([]Point, 0, len(sums))
	for d, n := range sums {
		out = append(out, Point{Date: d, Total: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}
