// Package loader reads the fixed per-category CSV extracts and concatenates
// them into one table per category.
package loader

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"regpipe/internal/parser/csv"
	"regpipe/internal/table"
)

// Loader resolves ordered lists of input names against a file-like source.
//
// Results are memoized per distinct input list: a long-lived caller (a server
// session, a REPL) pays the I/O once. The cache is purely an optimization;
// Refresh drops it when the caller wants the files re-read. Concurrent calls
// for the same list collapse into a single read (singleflight), and cache
// reads are safe from multiple goroutines.
type Loader struct {
	fsys fs.FS
	opt  csv.Options

	// OnRowErr is invoked for each unreadable CSV record (file, 1-based
	// line, error). Nil means log and continue.
	OnRowErr func(file string, line int, err error)

	group singleflight.Group
	mu    sync.RWMutex
	cache map[string]*table.Table
}

// New returns a Loader over fsys. Cells are edge-trimmed during parsing.
func New(fsys fs.FS) *Loader {
	return &Loader{
		fsys:  fsys,
		opt:   csv.Options{TrimSpace: true},
		cache: make(map[string]*table.Table),
	}
}

// Load reads and concatenates, in order, every named input that exists.
//
// Names that do not resolve are skipped silently: a missing extract is an
// expected condition, not an error. If none resolve the result is the empty
// Table. Concatenation is positional; differing schemas across inputs yield
// the union of columns with nil for cells an input did not carry.
//
// The returned Table is owned by the caller.
func (l *Loader) Load(files []string) (*table.Table, error) {
	key := strings.Join(files, "\x00")

	l.mu.RLock()
	cached, ok := l.cache[key]
	l.mu.RUnlock()
	if ok {
		return cached.Clone(), nil
	}

	v, err, _ := l.group.Do(key, func() (any, error) {
		l.mu.RLock()
		t, ok := l.cache[key]
		l.mu.RUnlock()
		if ok {
			return t, nil
		}

		t, err := l.loadAll(files)
		if err != nil {
			return nil, err
		}

		l.mu.Lock()
		l.cache[key] = t
		l.mu.Unlock()
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*table.Table).Clone(), nil
}

// Refresh drops all memoized results so subsequent Loads re-read the source.
func (l *Loader) Refresh() {
	l.mu.Lock()
	l.cache = make(map[string]*table.Table)
	l.mu.Unlock()
}

func (l *Loader) loadAll(files []string) (*table.Table, error) {
	var parts []*table.Table
	for _, name := range files {
		t, err := l.loadOne(name)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, err
		}
		parts = append(parts, t)
	}
	if len(parts) == 0 {
		return table.New(), nil
	}
	return table.Concat(parts...), nil
}

func (l *Loader) loadOne(name string) (*table.Table, error) {
	f, err := l.fsys.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	onErr := func(line int, err error) {
		if l.OnRowErr != nil {
			l.OnRowErr(name, line, err)
			return
		}
		log.Printf("loader: %s line %d: %v", name, line, err)
	}

	t, err := csv.ReadTable(f, l.opt, onErr)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	return t, nil
}
