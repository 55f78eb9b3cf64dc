// Package table defines the in-memory tabular value passed between pipeline
// stages. A Table is a plain value: stages never mutate their input, they
// clone and return a new Table (copy-on-write), so the caller always owns
// exactly what it holds.
package table

// Table is an ordered set of named columns over rows of cells.
//
// Cell values are one of:
//   - nil        (null / missing)
//   - string     (raw parsed text)
//   - int64      (coerced numeric metric)
//   - time.Time  (parsed date)
//
// Every row has exactly len(Cols) cells. A Table with zero rows and zero
// columns is the canonical empty Table.
type Table struct {
	Cols []string
	Rows [][]any

	index map[string]int
}

// New returns a Table with the given columns and no rows.
func New(cols ...string) *Table {
	t := &Table{Cols: append([]string(nil), cols...)}
	t.reindex()
	return t
}

func (t *Table) reindex() {
	t.index = make(map[string]int, len(t.Cols))
	for i, c := range t.Cols {
		if _, dup := t.index[c]; dup {
			// First occurrence wins for lookup; duplicate source
			// columns keep their cells but are unreachable by name.
			continue
		}
		t.index[c] = i
	}
}

// Len returns the row count.
func (t *Table) Len() int { return len(t.Rows) }

// Empty reports whether the table has no rows.
func (t *Table) Empty() bool { return len(t.Rows) == 0 }

// Col returns the positional index of a column, or -1 if absent.
func (t *Table) Col(name string) int {
	if t.index == nil {
		t.reindex()
	}
	if i, ok := t.index[name]; ok {
		return i
	}
	return -1
}

// HasCol reports whether a column exists.
func (t *Table) HasCol(name string) bool { return t.Col(name) >= 0 }

// Get returns the cell at row i, column name, or nil when the column is
// absent. Callers must not hold row indexes across table rebuilds.
func (t *Table) Get(i int, name string) any {
	c := t.Col(name)
	if c < 0 {
		return nil
	}
	return t.Rows[i][c]
}

// Set writes the cell at row i, column name. No-op when the column is absent.
func (t *Table) Set(i int, name string, v any) {
	c := t.Col(name)
	if c < 0 {
		return
	}
	t.Rows[i][c] = v
}

// AppendRow appends a row. Short rows are padded with nil, long rows panic
// (that is a programming error, not a data error).
func (t *Table) AppendRow(vals ...any) {
	if len(vals) > len(t.Cols) {
		panic("table: row wider than column set")
	}
	row := make([]any, len(t.Cols))
	copy(row, vals)
	t.Rows = append(t.Rows, row)
}

// Clone returns a deep copy: new column slice, new row slices. Cell values
// themselves are immutable kinds, so they are shared.
func (t *Table) Clone() *Table {
	out := New(t.Cols...)
	out.Rows = make([][]any, len(t.Rows))
	for i, r := range t.Rows {
		row := make([]any, len(r))
		copy(row, r)
		out.Rows[i] = row
	}
	return out
}

// AddCol appends a column filled with the given value for every existing row
// and returns its index. If the column already exists it is left in place and
// its index returned; existing cells are not touched.
func (t *Table) AddCol(name string, fill any) int {
	if c := t.Col(name); c >= 0 {
		return c
	}
	t.Cols = append(t.Cols, name)
	for i := range t.Rows {
		t.Rows[i] = append(t.Rows[i], fill)
	}
	t.reindex()
	return len(t.Cols) - 1
}

// RenameCols replaces the column names wholesale. The new set must have the
// same length as the old one.
func (t *Table) RenameCols(cols []string) {
	if len(cols) != len(t.Cols) {
		panic("table: rename length mismatch")
	}
	t.Cols = append([]string(nil), cols...)
	t.reindex()
}

// Concat concatenates tables positionally into one new Table.
//
// Column set is the union, ordered by first appearance across the inputs.
// Rows from a table lacking a column get nil in that column. No key-based
// dedup, no schema check: this mirrors a plain row append.
func Concat(tables ...*Table) *Table {
	var cols []string
	seen := map[string]bool{}
	for _, in := range tables {
		if in == nil {
			continue
		}
		for _, c := range in.Cols {
			if !seen[c] {
				seen[c] = true
				cols = append(cols, c)
			}
		}
	}

	out := New(cols...)
	for _, in := range tables {
		if in == nil {
			continue
		}
		// Map source position -> output position once per input.
		dst := make([]int, len(in.Cols))
		for i, c := range in.Cols {
			dst[i] = out.Col(c)
		}
		for _, r := range in.Rows {
			row := make([]any, len(out.Cols))
			for i, v := range r {
				if dst[i] >= 0 {
					row[dst[i]] = v
				}
			}
			out.Rows = append(out.Rows, row)
		}
	}
	return out
}
