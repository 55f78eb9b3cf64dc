package pipeline

import (
	"errors"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"regpipe/internal/config"
	"regpipe/internal/dataset"
	"regpipe/internal/metrics"
	"regpipe/internal/table"
)

// fakeBackend records observations for assertions.
type fakeBackend struct {
	mu       sync.Mutex
	counters map[string]float64 // name|label-values -> sum
	observed int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{counters: map[string]float64{}}
}

func (f *fakeBackend) IncCounter(name string, delta float64, labels metrics.Labels) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := name
	for _, k := range []string{"step", "status", "category"} {
		if v, ok := labels[k]; ok {
			key += "|" + v
		}
	}
	f.counters[key] += delta
}

func (f *fakeBackend) ObserveHistogram(string, float64, metrics.Labels) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.observed++
}

func (f *fakeBackend) Flush() error { return nil }
func (f *fakeBackend) Close() error { return nil }

func day(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func testInputs() config.Inputs {
	return config.Inputs{
		Enrolment:   []string{"enrol.csv"},
		Demographic: []string{"demo.csv"},
		Biometric:   []string{"bio.csv"},
	}
}

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"enrol.csv": {Data: []byte(
			"Date,State,District,Pincode,Age 0-5,Age 5-17,Age 18 Greater\n" +
				"01-01-2024,X,A,110001.0,2,3,5\n" +
				"15-02-2024,Y,B,200001,1,1,1\n")},
		"demo.csv": {Data: []byte(
			"Date,State,District,Pincode,Demo Age 5-17,Demo Age 17-\n" +
				"01-01-2024,X,A,110001.0,4,0\n")},
	}
}

// TestCategoryEnrolment walks one enrolment row through the whole build:
// normalized pincode and month, coerced metrics, derived total.
func TestCategoryEnrolment(t *testing.T) {
	p := New(testFS(), testInputs(), nil)

	got, err := p.Category(dataset.Enrolment)
	if err != nil {
		t.Fatalf("Category: %v", err)
	}

	if got.Len() != 2 {
		t.Fatalf("rows=%d, want 2", got.Len())
	}
	if v := got.Get(0, "pincode"); v != "110001" {
		t.Fatalf("pincode=%v, want 110001", v)
	}
	if v := got.Get(0, "month"); v != "2024-01" {
		t.Fatalf("month=%v, want 2024-01", v)
	}
	if v := got.Get(0, "total"); v != int64(10) {
		t.Fatalf("total=%v, want 10", v)
	}
}

// TestRefreshRereadsExtracts: a long-lived pipeline serves memoized tables
// until Refresh, after which an updated extract is picked up.
func TestRefreshRereadsExtracts(t *testing.T) {
	fsys := testFS()
	p := New(fsys, testInputs(), nil)

	got, err := p.Category(dataset.Enrolment)
	if err != nil {
		t.Fatalf("Category: %v", err)
	}
	if got.Len() != 2 {
		t.Fatalf("rows=%d, want 2", got.Len())
	}

	fsys["enrol.csv"].Data = []byte(
		"Date,State,District,Pincode,Age 0-5,Age 5-17,Age 18 Greater\n" +
			"01-01-2024,X,A,110001.0,2,3,5\n")

	got, err = p.Category(dataset.Enrolment)
	if err != nil {
		t.Fatalf("Category after edit: %v", err)
	}
	if got.Len() != 2 {
		t.Fatalf("rows=%d, want memoized 2", got.Len())
	}

	p.Refresh()
	got, err = p.Category(dataset.Enrolment)
	if err != nil {
		t.Fatalf("Category after Refresh: %v", err)
	}
	if got.Len() != 1 {
		t.Fatalf("rows=%d, want 1 after Refresh", got.Len())
	}
}

// TestCombinedZeroFill: the biometric extract is missing entirely, so every
// combined row carries bio=0 and the grand total comes from the other two.
func TestCombinedZeroFill(t *testing.T) {
	p := New(testFS(), testInputs(), nil)

	got, err := p.Combined()
	if err != nil {
		t.Fatalf("Combined: %v", err)
	}

	if got.Len() != 2 {
		t.Fatalf("rows=%d, want 2 distinct keys", got.Len())
	}
	// Shared key: enrol=10, demo=4, bio=0, total=14.
	if v := got.Get(0, "enrol"); v != int64(10) {
		t.Fatalf("enrol=%v, want 10", v)
	}
	if v := got.Get(0, "demo"); v != int64(4) {
		t.Fatalf("demo=%v, want 4", v)
	}
	if v := got.Get(0, "bio"); v != int64(0) {
		t.Fatalf("bio=%v, want 0", v)
	}
	if v := got.Get(0, "total"); v != int64(14) {
		t.Fatalf("total=%v, want 14", v)
	}
	// Enrolment-only key.
	if v := got.Get(1, "total"); v != int64(3) {
		t.Fatalf("second total=%v, want 3", v)
	}
}

func TestCombinedAllEmptyIsErrNoData(t *testing.T) {
	p := New(fstest.MapFS{}, testInputs(), nil)

	if _, err := p.Combined(); !errors.Is(err, ErrNoData) {
		t.Fatalf("err=%v, want ErrNoData", err)
	}
}

func TestCategoryEmptyIsErrNoData(t *testing.T) {
	p := New(fstest.MapFS{}, testInputs(), nil)

	if _, err := p.Category(dataset.Biometric); !errors.Is(err, ErrNoData) {
		t.Fatalf("err=%v, want ErrNoData", err)
	}
}

func TestMetricsEmitted(t *testing.T) {
	fb := newFakeBackend()
	p := New(testFS(), testInputs(), fb)

	if _, err := p.Combined(); err != nil {
		t.Fatalf("Combined: %v", err)
	}

	fb.mu.Lock()
	defer fb.mu.Unlock()
	if got := fb.counters[metrics.RecordsTotal+"|enrolment"]; got != 2 {
		t.Fatalf("enrolment records counter=%v, want 2", got)
	}
	if got := fb.counters[metrics.JoinKeysTotal]; got != 2 {
		t.Fatalf("join keys counter=%v, want 2", got)
	}
	if fb.observed == 0 {
		t.Fatalf("no durations observed")
	}
}

func datedTable(dates ...any) *table.Table {
	tb := table.New("date", "state", "total")
	for i, d := range dates {
		tb.AppendRow(d, "S", int64(i+1))
	}
	return tb
}

// TestFilterDateRange: range [2024-01-01, 2024-02-28] over
// {2024-01-01, 2024-02-15, 2024-03-01} keeps the first two rows.
func TestFilterDateRange(t *testing.T) {
	tb := datedTable(day("2024-01-01"), day("2024-02-15"), day("2024-03-01"))

	got := FilterDateRange(tb, day("2024-01-01"), day("2024-02-28"))
	if got.Len() != 2 {
		t.Fatalf("rows=%d, want 2", got.Len())
	}
}

// TestFilterDateRangeInclusiveEndDay: a cell carrying a time of day still
// lands on its calendar day, so a range ending on that day keeps the row.
func TestFilterDateRangeInclusiveEndDay(t *testing.T) {
	raw := table.New("date", "state", "total")
	raw.AppendRow("01-01-2024 10:30:00", "S", int64(1))
	tb := dataset.Normalize(raw)

	got := FilterDateRange(tb, day("2024-01-01"), day("2024-01-01"))
	if got.Len() != 1 {
		t.Fatalf("rows=%d, want 1 (row on the end day kept)", got.Len())
	}
}

func TestFilterDateRangeExcludesNilDates(t *testing.T) {
	tb := datedTable(day("2024-01-01"), nil)

	got := FilterDateRange(tb, day("2023-01-01"), day("2025-01-01"))
	if got.Len() != 1 {
		t.Fatalf("rows=%d, want 1 (nil date rows are excluded)", got.Len())
	}
}

func TestFilterDateRangeEmptyResultIsValid(t *testing.T) {
	tb := datedTable(day("2024-01-01"))

	got := FilterDateRange(tb, day("2030-01-01"), day("2030-12-31"))
	if got.Len() != 0 {
		t.Fatalf("rows=%d, want 0", got.Len())
	}
	if len(got.Cols) != len(tb.Cols) {
		t.Fatalf("filtered table lost columns: %v", got.Cols)
	}
}

func TestDateBounds(t *testing.T) {
	tb := datedTable(day("2024-02-15"), day("2024-01-01"), nil, day("2024-03-01"))

	min, max, ok := DateBounds(tb)
	if !ok {
		t.Fatalf("ok=false")
	}
	if !min.Equal(day("2024-01-01")) || !max.Equal(day("2024-03-01")) {
		t.Fatalf("bounds=%v..%v", min, max)
	}

	if _, _, ok := DateBounds(datedTable(nil)); ok {
		t.Fatalf("bounds over nil dates should report !ok")
	}
}

func TestSummarize(t *testing.T) {
	tb := table.New("date", "state", "total")
	tb.AppendRow(day("2024-01-01"), "X", int64(10))
	tb.AppendRow(day("2024-01-02"), "X", int64(5))
	tb.AppendRow(day("2024-01-03"), "Y", int64(1))
	tb.AppendRow(nil, nil, int64(2))

	s := Summarize(tb, "total")
	if s.Records != 4 {
		t.Fatalf("records=%d, want 4", s.Records)
	}
	if s.Total != 18 {
		t.Fatalf("total=%d, want 18", s.Total)
	}
	if s.States != 2 {
		t.Fatalf("states=%d, want 2 (nil does not count)", s.States)
	}
}

func TestTimeSeries(t *testing.T) {
	tb := table.New("date", "total")
	tb.AppendRow(day("2024-01-02"), int64(5))
	tb.AppendRow(day("2024-01-01"), int64(3))
	tb.AppendRow(day("2024-01-02"), int64(2))
	tb.AppendRow(nil, int64(100))

	pts := TimeSeries(tb, "total")
	if len(pts) != 2 {
		t.Fatalf("points=%d, want 2", len(pts))
	}
	if !pts[0].Date.Equal(day("2024-01-01")) || pts[0].Total != 3 {
		t.Fatalf("pts[0]=%+v", pts[0])
	}
	if !pts[1].Date.Equal(day("2024-01-02")) || pts[1].Total != 7 {
		t.Fatalf("pts[1]=%+v", pts[1])
	}
}
