// Package engine drives an annotation session: it walks record ids in order,
// asks every task about each record through a Presenter, and commits the
// validated answers to a store.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/sbenjam1n/annotate/internal/store"
	"github.com/sbenjam1n/annotate/internal/task"
)

// Prompt is everything a presenter needs to render one screen.
type Prompt struct {
	ID    string
	Index int
	Total int

	// Task is nil when the session has no tasks and records are only browsed.
	Task       *task.Task
	Error      string
	Navigation string

	Fresh bool
	First bool
	Last  bool

	// Annotation is the stored row of a revisited record, with its task
	// columns in order.
	Annotation *store.Row
	Columns    []string
	User       string
}

// Presenter renders prompts and reads raw answers. ReadInput returning io.EOF
// or context.Canceled ends the session like the exit key.
type Presenter interface {
	Show(p Prompt) error
	ReadInput(ctx context.Context) (string, error)
	Clear()
}

// Observer is told about store mutations made by the engine.
type Observer interface {
	Committed(id, taskName string, v task.Value)
	AutoFilled(id, taskName string, v task.Value)
	Dropped(id string)
	// Restored reports that an abandoned revisit put back the row the
	// record had before the visit.
	Restored(id string)
	Resolved(id string)
}

// Stats counts what happened during a run.
type Stats struct {
	Visits     int
	Committed  int
	AutoFilled int
	Resolved   int
	Dropped    int
	Restored   int
}

// Options configures an Engine.
type Options struct {
	Keys      Keys
	User      string
	Observers []Observer
}

// Engine is a single-threaded annotation session over one store.
type Engine struct {
	store     *store.Store
	presenter Presenter
	keys      Keys
	user      string
	observers []Observer

	stats Stats
}

// New validates the key bindings against the store's tasks and returns an
// engine ready to Run.
func New(st *store.Store, p Presenter, opts Options) (*Engine, error) {
	if st == nil || p == nil {
		return nil, errors.New("engine requires a store and a presenter")
	}
	if opts.Keys == (Keys{}) {
		opts.Keys = DefaultKeys()
	}
	if err := opts.Keys.Validate(); err != nil {
		return nil, err
	}
	if err := opts.Keys.CheckTasks(st.Tasks()); err != nil {
		return nil, err
	}
	return &Engine{
		store:     st,
		presenter: p,
		keys:      opts.Keys,
		user:      opts.User,
		observers: opts.Observers,
	}, nil
}

// Stats returns counters for the runs so far.
func (e *Engine) Stats() Stats { return e.stats }

// visit is the state of one record visit.
type visit struct {
	id    string
	index int
	total int
	fresh bool
	first bool
	last  bool

	// prior is the row stored before a fresh visit started, if any.
	prior    store.Row
	hadPrior bool
}

// Run walks ids in order. Each id is first reached as a fresh record and must
// be fully answered before the cursor moves past it. Records behind the
// cursor can be revisited with the previous and next keys; edits to them are
// kept. Run returns when the last record is resolved or on exit.
func (e *Engine) Run(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if e.store.Tasks().Empty() {
		return e.browse(ctx, ids)
	}

	last := len(ids) - 1
	for arrival := range ids {
		cur := arrival
	record:
		for {
			v := visit{
				id:    ids[cur],
				index: cur,
				total: len(ids),
				fresh: cur == arrival,
				first: cur == 0,
				last:  cur == last,
			}
			sig, err := e.performTasks(ctx, &v)
			if err != nil {
				return err
			}
			if sig == Continue {
				if v.fresh {
					break record
				}
				sig = Next
			}
			switch sig {
			case Previous:
				if cur > 0 {
					cur--
				}
			case Next:
				if cur < arrival {
					cur++
				}
			case Exit:
				return nil
			}
		}
	}
	return nil
}

// browse shows records without tasks. Only navigation keys are accepted and
// next is allowed up to the last record.
func (e *Engine) browse(ctx context.Context, ids []string) error {
	last := len(ids) - 1
	cur := 0
	for {
		v := visit{id: ids[cur], index: cur, total: len(ids), first: cur == 0, last: cur == last}
		e.stats.Visits++
		sig, err := e.ask(ctx, &v, nil, "")
		if err != nil {
			return err
		}
		switch sig {
		case Previous:
			if cur > 0 {
				cur--
			}
		case Next:
			if cur < last {
				cur++
			}
		case Exit:
			return nil
		}
	}
}

// askRaw shows one prompt and reads one answer. It returns Continue with the
// raw input when the input is not a navigation key.
func (e *Engine) askRaw(ctx context.Context, v *visit, t *task.Task, msg string) (string, Signal, error) {
	p := Prompt{
		ID:         v.id,
		Index:      v.index,
		Total:      v.total,
		Task:       t,
		Error:      msg,
		Navigation: NavigationHelp(e.keys, v.fresh, v.first, v.last),
		Fresh:      v.fresh,
		First:      v.first,
		Last:       v.last,
		User:       e.user,
	}
	if !v.fresh {
		if row, ok := e.store.Read(v.id); ok {
			p.Annotation = &row
			p.Columns = e.store.Tasks().Names()
		}
	}
	if err := e.presenter.Show(p); err != nil {
		return "", Exit, fmt.Errorf("show record %s: %w", v.id, err)
	}
	raw, err := e.presenter.ReadInput(ctx)
	e.presenter.Clear()
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
			return "", Exit, nil
		}
		return "", Exit, fmt.Errorf("read input for %s: %w", v.id, err)
	}
	if sig, ok := e.keys.Signal(raw); ok {
		return raw, sig, nil
	}
	return raw, Continue, nil
}

// ask re-prompts until a navigation key is entered.
func (e *Engine) ask(ctx context.Context, v *visit, t *task.Task, msg string) (Signal, error) {
	for {
		_, sig, err := e.askRaw(ctx, v, t, msg)
		if err != nil || sig != Continue {
			return sig, err
		}
	}
}

// performTasks runs every task for one record in order. Dependencies are
// tried before prompting. A navigation key aborts the record; if the record
// is fresh, whatever was committed during this visit is rolled back.
func (e *Engine) performTasks(ctx context.Context, v *visit) (Signal, error) {
	e.stats.Visits++
	if v.fresh {
		v.prior, v.hadPrior = e.store.Read(v.id)
	}

	for _, t := range e.store.Tasks().Tasks() {
		if val, ok := e.resolve(v.id, t); ok {
			if err := e.commit(v.id, t, val, true); err != nil {
				return Exit, err
			}
			continue
		}

		var msg string
		for {
			raw, sig, err := e.askRaw(ctx, v, t, msg)
			if err != nil {
				e.abandon(v)
				return Exit, err
			}
			if sig != Continue {
				e.abandon(v)
				return sig, nil
			}
			val, err := t.Validate(raw)
			if err != nil {
				msg = err.Error()
				continue
			}
			if err := e.commit(v.id, t, val, false); err != nil {
				return Exit, err
			}
			break
		}
	}

	if e.user != "" {
		e.store.SetUser(v.id, e.user)
	}
	e.stats.Resolved++
	for _, o := range e.observers {
		o.Resolved(v.id)
	}
	return Continue, nil
}

func (e *Engine) resolve(id string, t *task.Task) (task.Value, bool) {
	if len(t.Dependencies) == 0 {
		return task.Value{}, false
	}
	row, ok := e.store.Read(id)
	if !ok {
		return task.Value{}, false
	}
	return Resolve(row.Values, t.Dependencies)
}

func (e *Engine) commit(id string, t *task.Task, val task.Value, auto bool) error {
	if err := e.store.Commit(id, t.Name, val); err != nil {
		return fmt.Errorf("commit %s: %w", t.Name, err)
	}
	if auto {
		e.stats.AutoFilled++
	} else {
		e.stats.Committed++
	}
	for _, o := range e.observers {
		if auto {
			o.AutoFilled(id, t.Name, val)
		} else {
			o.Committed(id, t.Name, val)
		}
	}
	return nil
}

// abandon undoes a fresh visit. A row that existed before the visit (a redo)
// is put back as it was; otherwise the row is dropped. Stale visits keep
// their edits.
func (e *Engine) abandon(v *visit) {
	if !v.fresh {
		return
	}
	if v.hadPrior {
		e.store.Put(v.prior)
		e.stats.Restored++
		for _, o := range e.observers {
			o.Restored(v.id)
		}
		return
	}
	if !e.store.Has(v.id) {
		return
	}
	e.store.Drop(v.id)
	e.stats.Dropped++
	log.Printf("dropped unfinished record %s", v.id)
	for _, o := range e.observers {
		o.Dropped(v.id)
	}
}

// Pending returns the ids to annotate: all of ids when redo is set, else only
// those without a stored row.
func Pending(ids []string, st *store.Store, redo bool) []string {
	if redo {
		return append([]string(nil), ids...)
	}
	return st.Unannotated(ids)
}
