package persist

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sbenjam1n/annotate/internal/store"
	"github.com/sbenjam1n/annotate/internal/task"
)

const (
	idHeader        = "id"
	timestampHeader = "timestamp"
	userHeader      = "user"
)

// CSV keeps one <name>.csv per annotator plus a <name>.schema.json with the
// full column definitions. The CSV header alone carries name:type pairs, so
// a file edited or produced elsewhere still loads without its schema.
type CSV struct {
	dir string
}

// NewCSV returns a CSV backend rooted at dir, creating it if needed.
func NewCSV(dir string) (*CSV, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	return &CSV{dir: dir}, nil
}

func (c *CSV) paths(name string) (data, schema string) {
	base := filepath.Join(c.dir, name)
	return base + ".csv", base + ".schema.json"
}

// Save writes both files, replacing earlier ones.
func (c *CSV) Save(_ context.Context, name string, tbl *store.Table) error {
	dataPath, schemaPath := c.paths(name)

	var buf strings.Builder
	if err := WriteTable(&buf, tbl); err != nil {
		return err
	}
	if err := writeFileAtomic(dataPath, []byte(buf.String())); err != nil {
		return fmt.Errorf("save %s: %w", name, err)
	}
	schema, err := json.MarshalIndent(tbl.Columns, "", "  ")
	if err != nil {
		return fmt.Errorf("encode schema: %w", err)
	}
	if err := writeFileAtomic(schemaPath, schema); err != nil {
		return fmt.Errorf("save %s schema: %w", name, err)
	}
	return nil
}

// Load reads the saved table for name.
func (c *CSV) Load(_ context.Context, name string) (*store.Table, error) {
	dataPath, schemaPath := c.paths(name)
	f, err := os.Open(dataPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dataPath, err)
	}
	defer f.Close()

	var schema []store.Column
	raw, err := os.ReadFile(schemaPath)
	switch {
	case err == nil:
		if err := json.Unmarshal(raw, &schema); err != nil {
			return nil, fmt.Errorf("decode %s: %w", schemaPath, err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("read %s: %w", schemaPath, err)
	}
	return ReadTable(f, schema)
}

// Annotators counts the records of every <name>.csv in the directory.
func (c *CSV) Annotators(ctx context.Context) (map[string]int, error) {
	matches, err := filepath.Glob(filepath.Join(c.dir, "*.csv"))
	if err != nil {
		return nil, fmt.Errorf("list annotators: %w", err)
	}
	out := map[string]int{}
	for _, path := range matches {
		name := strings.TrimSuffix(filepath.Base(path), ".csv")
		tbl, err := c.Load(ctx, name)
		if err != nil {
			return nil, err
		}
		out[name] = len(tbl.Records)
	}
	return out, nil
}

// Close is a no-op.
func (c *CSV) Close() error { return nil }

// WriteTable writes tbl as CSV: id, one name:type column per task, timestamp
// and user. Null cells are empty.
func WriteTable(w io.Writer, tbl *store.Table) error {
	cw := csv.NewWriter(w)
	header := []string{idHeader}
	for _, col := range tbl.Columns {
		header = append(header, col.Name+":"+col.Type)
	}
	header = append(header, timestampHeader, userHeader)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, rec := range tbl.Records {
		line := append([]string{rec.ID}, rec.Cells...)
		ts := ""
		if !rec.Timestamp.IsZero() {
			ts = rec.Timestamp.Format(time.RFC3339Nano)
		}
		line = append(line, ts, rec.User)
		if err := cw.Write(line); err != nil {
			return fmt.Errorf("write record %s: %w", rec.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadTable parses CSV written by WriteTable. Columns found in schema take
// their full definition from it; others get the type from their header, or
// str when the header has none.
func ReadTable(r io.Reader, schema []store.Column) (*store.Table, error) {
	known := make(map[string]store.Column, len(schema))
	for _, col := range schema {
		known[col.Name] = col
	}

	cr := csv.NewReader(r)
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(rows) == 0 {
		return &store.Table{}, nil
	}

	header := rows[0]
	if len(header) < 3 || header[0] != idHeader ||
		header[len(header)-2] != timestampHeader || header[len(header)-1] != userHeader {
		return nil, fmt.Errorf("parse csv: header must be %s, <tasks...>, %s, %s", idHeader, timestampHeader, userHeader)
	}

	tbl := &store.Table{}
	var inferCategories []int
	for i, h := range header[1 : len(header)-2] {
		name, typ, _ := strings.Cut(h, ":")
		col, ok := known[name]
		if !ok {
			col = store.Column{Name: name, Type: typ, Nullable: true}
			switch col.Type {
			case "", "regex":
				// without a schema the pattern is unknown
				col.Type = "str"
			case "category":
				inferCategories = append(inferCategories, i)
			}
		}
		tbl.Columns = append(tbl.Columns, col)
	}

	n := len(tbl.Columns)
	for i, row := range rows[1:] {
		rec := store.Record{
			ID:    row[0],
			Cells: append([]string(nil), row[1:1+n]...),
			User:  row[len(row)-1],
		}
		if ts := row[len(row)-2]; ts != "" {
			t, err := time.Parse(time.RFC3339Nano, ts)
			if err != nil {
				return nil, fmt.Errorf("record %d: parse timestamp: %w", i+1, err)
			}
			rec.Timestamp = t
		}
		tbl.Records = append(tbl.Records, rec)
	}

	// Category labels seen in the data, in order of first appearance.
	for _, i := range inferCategories {
		var labels []string
		seen := map[string]bool{}
		for _, rec := range tbl.Records {
			if v := rec.Cells[i]; v != "" && !seen[v] {
				seen[v] = true
				labels = append(labels, v)
			}
		}
		if len(labels) == 0 {
			tbl.Columns[i].Type = "str"
			continue
		}
		tbl.Columns[i].Categories = task.CategoriesFromList(labels)
	}
	return tbl, nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
