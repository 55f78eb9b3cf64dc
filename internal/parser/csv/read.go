// Package csv parses comma-separated extracts into table values.
package csv

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"regpipe/internal/table"
)

// Options controls CSV parsing.
type Options struct {
	// Comma is the field delimiter. Zero means ','.
	Comma rune

	// TrimSpace trims edge whitespace from every cell. Defaults handled by
	// callers; the zero Options value means no trimming.
	TrimSpace bool

	// LazyQuotes relaxes quote handling for sloppy exports.
	LazyQuotes bool
}

// ReadTable parses one CSV document into a Table.
//
// Behavior:
//   - The first record is the header; header names are kept verbatim
//     (canonicalization is a later pipeline stage).
//   - Input is decoded with a BOM-aware UTF-8/UTF-16 decoder, so extracts
//     saved from spreadsheet tools parse without manual BOM stripping.
//   - Empty cells become nil. Records may have more or fewer fields than the
//     header: extra fields are dropped, missing fields are nil.
//   - Unreadable records are skipped and reported through onErr (line number
//     is 1-based, counting the header); onErr may be nil.
//   - A zero-byte input yields the empty Table, not an error.
func ReadTable(src io.Reader, opt Options, onErr func(line int, err error)) (*table.Table, error) {
	comma := opt.Comma
	if comma == 0 {
		comma = ','
	}

	dec := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	cr := csv.NewReader(transform.NewReader(src, dec))
	cr.Comma = comma
	cr.ReuseRecord = true
	cr.LazyQuotes = opt.LazyQuotes
	cr.FieldsPerRecord = -1

	var line int
	readRec := func() ([]string, error) {
		line++
		return cr.Read()
	}

	hdr, err := readRec()
	if err == io.EOF {
		return table.New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	cols := make([]string, len(hdr))
	for i, h := range hdr {
		if opt.TrimSpace && hasEdgeSpace(h) {
			h = strings.TrimSpace(h)
		}
		cols[i] = h
	}

	out := table.New(cols...)
	for {
		rec, err := readRec()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			if onErr != nil {
				onErr(line, fmt.Errorf("csv read: %w", err))
			}
			continue
		}

		row := make([]any, len(cols))
		for i := range cols {
			if i >= len(rec) {
				continue
			}
			v := rec[i]
			if opt.TrimSpace && hasEdgeSpace(v) {
				v = strings.TrimSpace(v)
			}
			if v != "" {
				row[i] = v
			}
		}
		out.Rows = append(out.Rows, row)
	}
}

// hasEdgeSpace reports whether s starts or ends with ASCII whitespace.
// Cheaper than unconditionally calling TrimSpace on every cell.
func hasEdgeSpace(s string) bool {
	if s == "" {
		return false
	}
	return isSpace(s[0]) || isSpace(s[len(s)-1])
}

func isSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\r', '\n', '\v', '\f':
		return true
	}
	return false
}
