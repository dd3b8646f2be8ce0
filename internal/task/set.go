package task

import (
	"fmt"
	"strings"
)

// Set is an ordered collection of uniquely named tasks. Every member's Pos
// and Of reflect the current order.
type Set struct {
	reg   *Registry
	names []string
	tasks map[string]*Task
}

// NewSet builds a set from tasks in the given order. reg is used when tasks
// are later assigned by kind token; nil means a default registry.
func NewSet(reg *Registry, tasks ...*Task) (*Set, error) {
	if reg == nil {
		reg = NewRegistry(DefaultNullToken)
	}
	s := &Set{reg: reg, tasks: make(map[string]*Task, len(tasks))}
	for _, t := range tasks {
		if t == nil {
			return nil, configErrorf(ErrInvalidTask, "", "nil task")
		}
		if _, dup := s.tasks[t.Name]; dup {
			return nil, &ConfigError{Kind: ErrDuplicateTask, Task: t.Name}
		}
		if err := t.compile(); err != nil {
			return nil, err
		}
		s.tasks[t.Name] = t
		s.names = append(s.names, t.Name)
	}
	s.reindex()
	return s, nil
}

// Build constructs every named spec through reg and returns them as a set.
func Build(reg *Registry, defs []Definition) (*Set, error) {
	if reg == nil {
		reg = NewRegistry(DefaultNullToken)
	}
	tasks := make([]*Task, 0, len(defs))
	for _, d := range defs {
		t, err := reg.Build(d.Name, d.Spec)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return NewSet(reg, tasks...)
}

func (s *Set) reindex() {
	for i, name := range s.names {
		t := s.tasks[name]
		t.Pos = i
		t.Of = len(s.names)
	}
}

// Registry returns the registry used for assignment by kind.
func (s *Set) Registry() *Registry { return s.reg }

// Len is the number of tasks.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.names)
}

// Empty reports whether the set has no tasks. An empty set is valid.
func (s *Set) Empty() bool { return s.Len() == 0 }

// Get looks a task up by name.
func (s *Set) Get(name string) (*Task, bool) {
	if s == nil {
		return nil, false
	}
	t, ok := s.tasks[name]
	return t, ok
}

// Tasks returns the tasks in order.
func (s *Set) Tasks() []*Task {
	if s == nil {
		return nil
	}
	out := make([]*Task, len(s.names))
	for i, name := range s.names {
		out[i] = s.tasks[name]
	}
	return out
}

// Names returns the task names in order.
func (s *Set) Names() []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s.names...)
}

// Order maps each index onto the task name at that position.
func (s *Set) Order() map[int]string {
	order := make(map[int]string, s.Len())
	for i, name := range s.Names() {
		order[i] = name
	}
	return order
}

// Assign stores a task under name. v may be a *Task, a Spec, a Kind, a kind
// token string, or a []string of category labels. When a *Task carries a
// different name, name wins and a warning is returned. Assigning an existing
// name replaces the task in place.
func (s *Set) Assign(name string, v any) ([]string, error) {
	var (
		t        *Task
		err      error
		warnings []string
	)
	switch val := v.(type) {
	case *Task:
		if val == nil {
			return nil, configErrorf(ErrInvalidTask, name, "nil task")
		}
		cp := *val
		if cp.Name != name {
			warnings = append(warnings, fmt.Sprintf(
				"The task name '%s' does not match the id '%s'. Task name is set to '%s'.", cp.Name, name, name))
			cp.Name = name
		}
		t = &cp
		err = t.compile()
	case Spec:
		t, err = s.reg.Build(name, val)
	case Kind:
		t, err = s.reg.Build(name, Spec{Kind: val.String()})
	case string:
		t, err = s.reg.Build(name, Spec{Kind: val})
	case []string:
		t, err = s.reg.Build(name, Spec{Categories: CategoriesFromList(val)})
	case []Category:
		t, err = s.reg.Build(name, Spec{Categories: val})
	default:
		return nil, configErrorf(ErrInvalidTask, name, "cannot build a task from %T", v)
	}
	if err != nil {
		return nil, err
	}

	if _, exists := s.tasks[name]; !exists {
		s.names = append(s.names, name)
	}
	s.tasks[name] = t
	s.reindex()
	return warnings, nil
}

// Reorder sets the order from a full permutation of task names.
func (s *Set) Reorder(names []string) error {
	if len(names) != len(s.names) {
		return configErrorf(ErrInvalidOrder, "", "got %d names for %d tasks", len(names), len(s.names))
	}
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if _, ok := s.tasks[n]; !ok {
			return configErrorf(ErrInvalidOrder, n, "no such task")
		}
		if seen[n] {
			return configErrorf(ErrInvalidOrder, n, "named twice")
		}
		seen[n] = true
	}
	s.names = append([]string(nil), names...)
	s.reindex()
	return nil
}

// ReorderIndex sets the order from a permutation of current positions.
func (s *Set) ReorderIndex(positions []int) error {
	names := make([]string, len(positions))
	for i, p := range positions {
		if p < 0 || p >= len(s.names) {
			return configErrorf(ErrInvalidOrder, "", "position %d out of range", p)
		}
		names[i] = s.names[p]
	}
	return s.Reorder(names)
}

// Equal reports whether both sets hold equal tasks in the same order.
func (s *Set) Equal(o *Set) bool {
	if s.Len() != o.Len() {
		return false
	}
	others := o.Names()
	for i, name := range s.Names() {
		if others[i] != name || !s.tasks[name].Equal(o.tasks[name]) {
			return false
		}
	}
	return true
}

func (s *Set) String() string {
	var b strings.Builder
	for _, t := range s.Tasks() {
		fmt.Fprintf(&b, "%-16s%d\n%s\n", "task", t.Pos, t)
	}
	return b.String()
}
