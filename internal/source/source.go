// Package source turns raw datasets into an ordered list of record ids plus
// the labelled fields shown for each record.
package source

import (
	"fmt"
	"strconv"
)

// Field is one labelled value of a record.
type Field struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Entry is one id/value pair of an ordered mapping.
type Entry struct {
	ID    string
	Value string
}

// Source is a read-only, ordered dataset.
type Source struct {
	ids     []string
	columns []string
	records map[string][]Field
}

func newSource(columns []string) *Source {
	return &Source{columns: columns, records: make(map[string][]Field)}
}

func (s *Source) add(id string, fields []Field) error {
	if _, dup := s.records[id]; dup {
		return fmt.Errorf("duplicate record id %q", id)
	}
	s.ids = append(s.ids, id)
	s.records[id] = fields
	return nil
}

// FromList numbers items from 0; each record has a single "item" field.
func FromList(items []string) *Source {
	s := newSource([]string{"item"})
	for i, it := range items {
		_ = s.add(strconv.Itoa(i), []Field{{Label: "item", Value: it}})
	}
	return s
}

// FromMapping keeps entry order; each record has a single "item" field.
func FromMapping(entries []Entry) (*Source, error) {
	s := newSource([]string{"item"})
	for _, e := range entries {
		if err := s.add(e.ID, []Field{{Label: "item", Value: e.Value}}); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// TableOptions selects the id column and the columns shown per record.
// Without an id column records are numbered from 0. Without item columns
// every non-id column is shown.
type TableOptions struct {
	IDColumn    string
	ItemColumns []string
}

// FromTable builds a source from a header and rows of cells.
func FromTable(header []string, rows [][]string, opts TableOptions) (*Source, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[h] = i
	}

	idCol := -1
	if opts.IDColumn != "" {
		i, ok := index[opts.IDColumn]
		if !ok {
			return nil, fmt.Errorf("id column %q not in header %v", opts.IDColumn, header)
		}
		idCol = i
	}

	var items []int
	if len(opts.ItemColumns) > 0 {
		for _, c := range opts.ItemColumns {
			i, ok := index[c]
			if !ok {
				return nil, fmt.Errorf("item column %q not in header %v", c, header)
			}
			items = append(items, i)
		}
	} else {
		for i := range header {
			if i != idCol {
				items = append(items, i)
			}
		}
	}

	cols := make([]string, len(items))
	for j, i := range items {
		cols[j] = header[i]
	}
	s := newSource(cols)
	for n, row := range rows {
		if len(row) != len(header) {
			return nil, fmt.Errorf("row %d: %d cells for %d columns", n+1, len(row), len(header))
		}
		id := strconv.Itoa(n)
		if idCol >= 0 {
			id = row[idCol]
		}
		fields := make([]Field, len(items))
		for j, i := range items {
			fields[j] = Field{Label: header[i], Value: row[i]}
		}
		if err := s.add(id, fields); err != nil {
			return nil, fmt.Errorf("row %d: %w", n+1, err)
		}
	}
	return s, nil
}

// IDs returns record ids in dataset order.
func (s *Source) IDs() []string { return append([]string(nil), s.ids...) }

// Len is the number of records.
func (s *Source) Len() int { return len(s.ids) }

// Columns are the labels shown for every record.
func (s *Source) Columns() []string { return append([]string(nil), s.columns...) }

// Content returns the fields of record id.
func (s *Source) Content(id string) ([]Field, bool) {
	f, ok := s.records[id]
	return f, ok
}

// Has reports whether id is part of the dataset.
func (s *Source) Has(id string) bool {
	_, ok := s.records[id]
	return ok
}

// Subset keeps the given ids in the given order. Unknown ids are an error.
func (s *Source) Subset(ids []string) ([]string, error) {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !s.Has(id) {
			return nil, fmt.Errorf("record %q not in dataset", id)
		}
		out = append(out, id)
	}
	return out, nil
}
