package store

import (
	"fmt"
	"log"
	"time"

	"github.com/sbenjam1n/annotate/internal/task"
)

// Column describes one task column in the exchange format. Type is a column
// type name resolved through the task registry.
type Column struct {
	Name        string          `json:"name"`
	Type        string          `json:"type"`
	Nullable    bool            `json:"nullable,omitempty"`
	Instruction string          `json:"instruction,omitempty"`
	Categories  []task.Category `json:"categories,omitempty"`
	Pattern     string          `json:"pattern,omitempty"`
	Flags       string          `json:"flags,omitempty"`
	Format      string          `json:"format,omitempty"`

	Dependencies []task.DependencySpec `json:"dependencies,omitempty"`
}

// Record is one exported row. Cells line up with Table.Columns.
type Record struct {
	ID        string    `json:"id"`
	Cells     []string  `json:"cells"`
	Timestamp time.Time `json:"timestamp"`
	User      string    `json:"user,omitempty"`
}

// Table is the tabular exchange form of a store: task columns followed by
// timestamp and user on every record.
type Table struct {
	Columns []Column `json:"columns"`
	Records []Record `json:"records"`
}

// ColumnFor describes t as an exchange column.
func ColumnFor(t *task.Task) Column {
	var deps []task.DependencySpec
	for _, d := range t.Dependencies {
		deps = append(deps, task.DependencySpec{Condition: d.Condition, Value: d.Raw})
	}
	return Column{
		Name:        t.Name,
		Type:        t.Kind.String(),
		Nullable:    t.Nullable,
		Instruction: t.Prompt,
		Categories:  t.Categories,
		Pattern:     t.Pattern,
		Flags:       t.Flags,
		Format:      t.Format,

		Dependencies: deps,
	}
}

// Export snapshots the store as a Table.
func (s *Store) Export() *Table {
	s.reconcile()
	tbl := &Table{}
	for _, t := range s.tasks.Tasks() {
		tbl.Columns = append(tbl.Columns, ColumnFor(t))
	}
	for _, id := range s.ids {
		row := s.rows[id]
		rec := Record{ID: id, Timestamp: row.Timestamp, User: row.User}
		for _, c := range s.columns {
			rec.Cells = append(rec.Cells, row.Values[c.name].Format())
		}
		tbl.Records = append(tbl.Records, rec)
	}
	return tbl
}

// FromTable rebuilds a store from a table, inferring one task per column
// from its type. Columns whose type the registry does not know are skipped.
func FromTable(tbl *Table, reg *task.Registry) (*Store, error) {
	if reg == nil {
		reg = task.NewRegistry(task.DefaultNullToken)
	}

	var (
		tasks []*task.Task
		keep  []int
	)
	for i, col := range tbl.Columns {
		kind, ok := reg.KindForColumnType(col.Type)
		if !ok {
			log.Printf("skipping column %q: unsupported type %q", col.Name, col.Type)
			continue
		}
		t, err := reg.Build(col.Name, task.Spec{
			Kind:        kind.String(),
			Instruction: col.Instruction,
			Nullable:    col.Nullable,
			Categories:  col.Categories,
			Pattern:     col.Pattern,
			Flags:       col.Flags,
			Format:      col.Format,

			Dependencies: col.Dependencies,
		})
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", col.Name, err)
		}
		tasks = append(tasks, t)
		keep = append(keep, i)
	}

	set, err := task.NewSet(reg, tasks...)
	if err != nil {
		return nil, fmt.Errorf("build tasks from table: %w", err)
	}
	s := New(set)
	for _, rec := range tbl.Records {
		if len(rec.Cells) != len(tbl.Columns) {
			return nil, fmt.Errorf("record %s: %d cells for %d columns", rec.ID, len(rec.Cells), len(tbl.Columns))
		}
		row := s.row(rec.ID)
		for j, colIdx := range keep {
			t := tasks[j]
			v, err := task.ParseCell(t.Kind, rec.Cells[colIdx])
			if err != nil {
				return nil, fmt.Errorf("record %s: %w", rec.ID, err)
			}
			row.Values[t.Name] = v
		}
		row.Timestamp = rec.Timestamp
		row.User = rec.User
	}
	return s, nil
}
