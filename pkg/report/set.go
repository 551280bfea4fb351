// Package report generates the console reports a run needs and hands the
// structured ones to renderers.
//
// Structured reports are ad-hoc SQL queries against the console's reporting
// data model, returned as CSV. Templated exports (the audit report and the
// raw XML export) are written to disk exactly as the console produced them.
package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/scangate/scangate/pkg/finding"
)

// Set is one parsed structured report. The first CSV record is the header.
// A Set is not modified after Parse returns it.
type Set struct {
	Name   string
	Header []string
	Rows   []Row
}

// Row is one record of a Set. Values keep the header's column order.
type Row struct {
	values []string
	index  map[string]int
}

// Values returns a copy of the row's values in column order.
func (r Row) Values() []string { return slices.Clone(r.values) }

// At returns the value in column i, or "" when the row is shorter.
func (r Row) At(i int) string {
	if i < 0 || i >= len(r.values) {
		return ""
	}
	return r.values[i]
}

// Get returns the value of the named column.
func (r Row) Get(field string) (string, bool) {
	i, ok := r.index[field]
	if !ok {
		return "", false
	}
	return r.At(i), true
}

// Parse reads CSV data into a Set. Empty data yields a Set with no header
// and no rows. Records may be shorter or longer than the header.
func Parse(name string, data []byte) (*Set, error) {
	set := &Set{Name: name}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if len(bytes.TrimSpace(data)) == 0 {
		return set, nil
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: header: %w", ErrGeneration, name, err)
	}
	set.Header = header
	index := make(map[string]int, len(header))
	for i, field := range header {
		key := strings.TrimSpace(field)
		if _, dup := index[key]; !dup {
			index[key] = i
		}
	}

	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrGeneration, name, err)
		}
		set.Rows = append(set.Rows, Row{values: rec, index: index})
	}
	return set, nil
}

// Len returns the number of data rows.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Rows)
}

// Column returns the index of the named header field.
func (s *Set) Column(field string) (int, bool) {
	if s == nil {
		return 0, false
	}
	i := slices.IndexFunc(s.Header, func(h string) bool { return strings.TrimSpace(h) == field })
	return i, i >= 0
}

// Severities tallies the severity column. Rows without one count as
// unknown; a Set without the column yields nil.
func (s *Set) Severities() finding.Counts {
	col, ok := s.Column("severity")
	if !ok {
		return nil
	}
	counts := finding.Counts{}
	for _, row := range s.Rows {
		counts[finding.Parse(row.At(col))]++
	}
	return counts
}
