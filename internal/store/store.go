// Package store holds annotation answers: one row per record id, one typed
// column per task, plus the time of the last write and the annotating user.
package store

import (
	"fmt"
	"time"

	"github.com/sbenjam1n/annotate/internal/task"
)

// Row is a record's stored answers.
type Row struct {
	ID        string
	Values    map[string]task.Value
	Timestamp time.Time
	User      string
}

// Value returns the cell for a task column.
func (r Row) Value(name string) (task.Value, bool) {
	v, ok := r.Values[name]
	return v, ok
}

func (r Row) clone() Row {
	values := make(map[string]task.Value, len(r.Values))
	for k, v := range r.Values {
		values[k] = v
	}
	r.Values = values
	return r
}

type column struct {
	name string
	kind task.Kind
}

// Store is an in-memory annotation table keyed by record id. It is not safe
// for concurrent use; a single session goroutine owns it.
type Store struct {
	tasks   *task.Set
	columns []column
	rows    map[string]*Row
	ids     []string

	// Now stamps commits. Tests replace it.
	Now func() time.Time
}

// New creates an empty store whose columns follow tasks.
func New(tasks *task.Set) *Store {
	if tasks == nil {
		tasks, _ = task.NewSet(nil)
	}
	s := &Store{
		tasks: tasks,
		rows:  make(map[string]*Row),
		Now:   time.Now,
	}
	s.EnsureSchema(tasks)
	return s
}

// Tasks returns the task set the columns follow.
func (s *Store) Tasks() *task.Set { return s.tasks }

// EnsureSchema makes every row carry exactly one cell per task in set.
// Missing columns are backfilled with typed nulls, columns of removed tasks
// are dropped, and a column whose kind changed is reset to null.
func (s *Store) EnsureSchema(set *task.Set) {
	s.tasks = set
	cols := make([]column, 0, set.Len())
	for _, t := range set.Tasks() {
		cols = append(cols, column{name: t.Name, kind: t.Kind})
	}
	for _, row := range s.rows {
		values := make(map[string]task.Value, len(cols))
		for _, c := range cols {
			v, ok := row.Values[c.name]
			if !ok || v.Kind != c.kind {
				v = task.NullValue(c.kind)
			}
			values[c.name] = v
		}
		row.Values = values
	}
	s.columns = cols
}

// drifted reports whether the task set changed since the last reconcile.
func (s *Store) drifted() bool {
	tasks := s.tasks.Tasks()
	if len(tasks) != len(s.columns) {
		return true
	}
	for i, t := range tasks {
		if s.columns[i].name != t.Name || s.columns[i].kind != t.Kind {
			return true
		}
	}
	return false
}

func (s *Store) reconcile() {
	if s.drifted() {
		s.EnsureSchema(s.tasks)
	}
}

func (s *Store) row(id string) *Row {
	row, ok := s.rows[id]
	if ok {
		return row
	}
	row = &Row{ID: id, Values: make(map[string]task.Value, len(s.columns))}
	for _, c := range s.columns {
		row.Values[c.name] = task.NullValue(c.kind)
	}
	s.rows[id] = row
	s.ids = append(s.ids, id)
	return row
}

// Commit sets one task's answer for id and refreshes the row timestamp. The
// row is created on the first commit for a new id.
func (s *Store) Commit(id, taskName string, v task.Value) error {
	s.reconcile()
	t, ok := s.tasks.Get(taskName)
	if !ok {
		return fmt.Errorf("commit %s: unknown task %q", id, taskName)
	}
	if v.Kind != t.Kind {
		return fmt.Errorf("commit %s: %s value for %s task %q", id, v.Kind, t.Kind, taskName)
	}
	row := s.row(id)
	row.Values[taskName] = v
	row.Timestamp = s.Now()
	return nil
}

// SetUser stamps the annotating user on a row.
func (s *Store) SetUser(id, user string) {
	s.reconcile()
	row := s.row(id)
	row.User = user
	row.Timestamp = s.Now()
}

// Read returns a copy of the row for id.
func (s *Store) Read(id string) (Row, bool) {
	s.reconcile()
	row, ok := s.rows[id]
	if !ok {
		return Row{}, false
	}
	return row.clone(), true
}

// Has reports whether id has a stored row.
func (s *Store) Has(id string) bool {
	_, ok := s.rows[id]
	return ok
}

// Drop removes the row for id. Dropping an absent id is a no-op.
func (s *Store) Drop(id string) {
	if _, ok := s.rows[id]; !ok {
		return
	}
	delete(s.rows, id)
	for i, existing := range s.ids {
		if existing == id {
			s.ids = append(s.ids[:i], s.ids[i+1:]...)
			break
		}
	}
}

// Put replaces the row for row.ID wholesale. Cells for tasks the store does
// not know are ignored; missing cells become typed nulls.
func (s *Store) Put(row Row) {
	s.reconcile()
	dst := s.row(row.ID)
	for _, c := range s.columns {
		v, ok := row.Values[c.name]
		if !ok || v.Kind != c.kind {
			v = task.NullValue(c.kind)
		}
		dst.Values[c.name] = v
	}
	dst.Timestamp = row.Timestamp
	dst.User = row.User
}

// IDs returns the stored ids in insertion order.
func (s *Store) IDs() []string { return append([]string(nil), s.ids...) }

// Len is the number of stored rows.
func (s *Store) Len() int { return len(s.ids) }

// Unannotated filters ids down to those without a stored row.
func (s *Store) Unannotated(ids []string) []string {
	var out []string
	for _, id := range ids {
		if !s.Has(id) {
			out = append(out, id)
		}
	}
	return out
}

// Equal is deep equality over tasks and data, timestamps included.
func (s *Store) Equal(o *Store) bool {
	return s.equal(o, true)
}

// EqualData is Equal without comparing timestamps.
func (s *Store) EqualData(o *Store) bool {
	return s.equal(o, false)
}

func (s *Store) equal(o *Store, withTime bool) bool {
	if o == nil {
		return false
	}
	s.reconcile()
	o.reconcile()
	if !s.tasks.Equal(o.tasks) || len(s.ids) != len(o.ids) {
		return false
	}
	for i, id := range s.ids {
		if o.ids[i] != id {
			return false
		}
		a, b := s.rows[id], o.rows[id]
		if a.User != b.User {
			return false
		}
		if withTime && !a.Timestamp.Equal(b.Timestamp) {
			return false
		}
		for _, c := range s.columns {
			if !a.Values[c.name].Equal(b.Values[c.name]) {
				return false
			}
		}
	}
	return true
}
