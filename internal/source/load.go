package source

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadFile reads a dataset by extension: .csv, or .json/.yaml/.yml.
//
// Structured files may hold a list of scalars, a mapping of id to scalar, a
// list of objects (one record per object), or a mapping of id to object.
func LoadFile(path string, opts TableOptions) (*Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read data file: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return ParseCSV(data, opts)
	case ".json", ".yaml", ".yml":
		return ParseStructured(data, opts)
	}
	return nil, fmt.Errorf("unsupported data file %s", filepath.Base(path))
}

// ParseCSV reads a header row followed by records.
func ParseCSV(data []byte, opts TableOptions) (*Source, error) {
	r := csv.NewReader(bytes.NewReader(data))
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("parse csv: missing header")
	}
	return FromTable(records[0], records[1:], opts)
}

// ParseStructured reads JSON or YAML. JSON is valid YAML, so one decoder
// serves both and keeps mapping order.
func ParseStructured(data []byte, opts TableOptions) (*Source, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse data: %w", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return FromList(nil), nil
	}
	root := doc.Content[0]

	switch root.Kind {
	case yaml.SequenceNode:
		if allScalars(root.Content) {
			items := make([]string, len(root.Content))
			for i, n := range root.Content {
				items[i] = n.Value
			}
			return FromList(items), nil
		}
		return objectsTable(nil, root.Content, opts)
	case yaml.MappingNode:
		var keys []string
		var values []*yaml.Node
		for i := 0; i+1 < len(root.Content); i += 2 {
			keys = append(keys, root.Content[i].Value)
			values = append(values, root.Content[i+1])
		}
		if allScalars(values) {
			entries := make([]Entry, len(keys))
			for i := range keys {
				entries[i] = Entry{ID: keys[i], Value: values[i].Value}
			}
			return FromMapping(entries)
		}
		return objectsTable(keys, values, opts)
	}
	return nil, fmt.Errorf("parse data: unsupported top-level %s", nodeKind(root))
}

func allScalars(nodes []*yaml.Node) bool {
	for _, n := range nodes {
		if n.Kind != yaml.ScalarNode {
			return false
		}
	}
	return true
}

// objectsTable flattens mapping nodes into a table. Columns are the union of
// keys in first-seen order; missing keys become empty cells. When keys is
// set it supplies the record ids.
func objectsTable(keys []string, objs []*yaml.Node, opts TableOptions) (*Source, error) {
	var header []string
	seen := map[string]int{}
	var rows []map[string]string
	for i, obj := range objs {
		if obj.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("parse data: record %d is a %s, want an object", i+1, nodeKind(obj))
		}
		row := map[string]string{}
		for j := 0; j+1 < len(obj.Content); j += 2 {
			k, v := obj.Content[j].Value, obj.Content[j+1]
			if _, ok := seen[k]; !ok {
				seen[k] = len(header)
				header = append(header, k)
			}
			row[k] = scalarText(v)
		}
		rows = append(rows, row)
	}

	if keys != nil {
		const idCol = "_id"
		header = append([]string{idCol}, header...)
		for i := range rows {
			rows[i][idCol] = keys[i]
		}
		if opts.IDColumn == "" {
			opts.IDColumn = idCol
		}
	}

	cells := make([][]string, len(rows))
	for i, row := range rows {
		cells[i] = make([]string, len(header))
		for j, h := range header {
			cells[i][j] = row[h]
		}
	}
	return FromTable(header, cells, opts)
}

// scalarText renders nested values as compact YAML so they still display.
func scalarText(n *yaml.Node) string {
	if n.Kind == yaml.ScalarNode {
		if n.Tag == "!!null" {
			return ""
		}
		return n.Value
	}
	out, err := yaml.Marshal(n)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

func nodeKind(n *yaml.Node) string {
	switch n.Kind {
	case yaml.SequenceNode:
		return "list"
	case yaml.MappingNode:
		return "mapping"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	}
	return "document"
}
