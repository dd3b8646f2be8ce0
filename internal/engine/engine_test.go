package engine

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sbenjam1n/annotate/internal/store"
	"github.com/sbenjam1n/annotate/internal/task"
)

// script is a presenter that replays canned input and records what it was
// asked to show.
type script struct {
	inputs []string
	shown  []Prompt
	clears int
}

func (s *script) Show(p Prompt) error {
	s.shown = append(s.shown, p)
	return nil
}

func (s *script) ReadInput(ctx context.Context) (string, error) {
	if len(s.inputs) == 0 {
		return "", io.EOF
	}
	in := s.inputs[0]
	s.inputs = s.inputs[1:]
	return in, nil
}

func (s *script) Clear() { s.clears++ }

type recorder struct {
	events []string
}

func (r *recorder) Committed(id, name string, v task.Value) { r.events = append(r.events, "commit "+id+"."+name) }
func (r *recorder) AutoFilled(id, name string, v task.Value) { r.events = append(r.events, "auto "+id+"."+name) }
func (r *recorder) Dropped(id string) { r.events = append(r.events, "drop "+id) }
func (r *recorder) Restored(id string) { r.events = append(r.events, "restore "+id) }
func (r *recorder) Resolved(id string) { r.events = append(r.events, "resolved "+id) }

var clock = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newStore(t *testing.T, deps ...task.DependencySpec) *store.Store {
	t.Helper()
	reg := task.NewRegistry(task.DefaultNullToken)
	set, err := task.NewSet(reg,
		reg.MustBuild("title", task.Spec{Kind: "str"}),
		reg.MustBuild("relevant", task.Spec{Kind: "bool", Nullable: true, Dependencies: deps}),
	)
	if err != nil {
		t.Fatal(err)
	}
	st := store.New(set)
	st.Now = func() time.Time { return clock }
	return st
}

func run(t *testing.T, st *store.Store, ids []string, opts Options, inputs ...string) (*script, *Engine) {
	t.Helper()
	p := &script{inputs: inputs}
	e, err := New(st, p, opts)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if err := e.Run(context.Background(), ids); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	return p, e
}

func shownIDs(p *script) []string {
	ids := make([]string, len(p.shown))
	for i, s := range p.shown {
		ids[i] = s.ID
	}
	return ids
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestAnswerWithNullToken(t *testing.T) {
	st := newStore(t)
	_, e := run(t, st, []string{"r1"}, Options{}, "Hello", "-")

	row, ok := st.Read("r1")
	if !ok {
		t.Fatal("r1 should be stored")
	}
	if row.Values["title"].Str != "Hello" {
		t.Errorf("title = %v", row.Values["title"])
	}
	if rel := row.Values["relevant"]; !rel.Null {
		t.Errorf("relevant = %v, want null", rel)
	}
	if !row.Timestamp.Equal(clock) {
		t.Errorf("timestamp = %v", row.Timestamp)
	}
	if s := e.Stats(); s.Committed != 2 || s.Resolved != 1 {
		t.Errorf("stats = %+v", s)
	}
}

func TestPreviousAfterResolvedRecordKeepsIt(t *testing.T) {
	st := newStore(t)
	p, _ := run(t, st, []string{"r1", "r2"}, Options{},
		"Hello", "-", // r1 resolved
		"<", // r2 fresh, back to r1
		">", // r1 stale, forward to r2
		"Bye", "yes",
	)

	if _, ok := st.Read("r1"); !ok {
		t.Fatal("r1 must survive navigating back")
	}
	row, ok := st.Read("r2")
	if !ok || row.Values["title"].Str != "Bye" || !row.Values["relevant"].Bool {
		t.Errorf("r2 = %+v (stored=%v)", row.Values, ok)
	}
	want := []string{"r1", "r1", "r2", "r1", "r2", "r2"}
	if got := shownIDs(p); !equalStrings(got, want) {
		t.Errorf("shown = %v, want %v", got, want)
	}
	if p.shown[3].Fresh || p.shown[3].Annotation == nil {
		t.Error("a revisited record is stale and shows its stored annotation")
	}
	if !p.shown[2].Fresh || p.shown[2].Annotation != nil {
		t.Error("a fresh record shows no stored annotation")
	}
}

func TestExitDropsFreshIncompleteRecord(t *testing.T) {
	st := newStore(t)
	obs := &recorder{}
	_, e := run(t, st, []string{"r1", "r2"}, Options{Observers: []Observer{obs}},
		"Hello", "no",
		"World", ".",
	)

	if st.Has("r2") {
		t.Error("r2 was abandoned before its last task and must be dropped")
	}
	if !st.Has("r1") {
		t.Error("r1 was resolved and must be kept")
	}
	if e.Stats().Dropped != 1 {
		t.Errorf("dropped = %d, want 1", e.Stats().Dropped)
	}
	want := []string{"commit r1.title", "commit r1.relevant", "resolved r1", "commit r2.title", "drop r2"}
	if !equalStrings(obs.events, want) {
		t.Errorf("events = %v, want %v", obs.events, want)
	}
}

func TestEndOfInputActsAsExit(t *testing.T) {
	st := newStore(t)
	run(t, st, []string{"r1"}, Options{}, "Hello")
	if st.Has("r1") {
		t.Error("a fresh record left unfinished at end of input must be dropped")
	}
}

func TestDependencyAutoFills(t *testing.T) {
	st := newStore(t, task.DependencySpec{Condition: "title == 'Hello'", Value: "yes"})
	p, e := run(t, st, []string{"r1"}, Options{}, "Hello")

	row, ok := st.Read("r1")
	if !ok {
		t.Fatal("r1 should be resolved")
	}
	if rel := row.Values["relevant"]; rel.Null || !rel.Bool {
		t.Errorf("relevant = %v, want true", rel)
	}
	for _, shown := range p.shown {
		if shown.Task != nil && shown.Task.Name == "relevant" {
			t.Error("an auto-filled task must not be prompted")
		}
	}
	if s := e.Stats(); s.AutoFilled != 1 || s.Committed != 1 {
		t.Errorf("stats = %+v", s)
	}
}

func TestDependencyFallsThroughToPrompt(t *testing.T) {
	st := newStore(t, task.DependencySpec{Condition: "title == 'Hello'", Value: "yes"})
	run(t, st, []string{"r1"}, Options{}, "Other", "no")

	row, _ := st.Read("r1")
	if rel := row.Values["relevant"]; rel.Null || rel.Bool {
		t.Errorf("relevant = %v, want false from input", rel)
	}
}

func TestInvalidInputReprompts(t *testing.T) {
	st := newStore(t)
	p, _ := run(t, st, []string{"r1"}, Options{}, "Hello", "maybe", "yes")

	if len(p.shown) != 3 {
		t.Fatalf("shown %d prompts, want 3", len(p.shown))
	}
	if got := p.shown[2].Error; got != "Input cannot be parsed as bool." {
		t.Errorf("error = %q", got)
	}
	if p.shown[2].Task.Name != "relevant" || p.shown[1].Error != "" {
		t.Error("the same task is re-prompted with the rejection message")
	}
	if row, _ := st.Read("r1"); !row.Values["relevant"].Bool {
		t.Error("relevant should be true")
	}
}

func TestExitOnStaleRecordKeepsEdits(t *testing.T) {
	st := newStore(t)
	run(t, st, []string{"r1", "r2"}, Options{},
		"Hello", "yes",
		"<",
		"Changed", ".",
	)
	row, ok := st.Read("r1")
	if !ok || row.Values["title"].Str != "Changed" {
		t.Errorf("stale edits are preserved on exit, got %+v", row.Values)
	}
	if st.Has("r2") {
		t.Error("r2 never got an answer")
	}
}

func TestFinishingStaleRecordMovesForward(t *testing.T) {
	st := newStore(t)
	p, _ := run(t, st, []string{"r1", "r2"}, Options{},
		"a", "yes",
		"<",
		"b", "no",
		"c", "yes",
	)
	row, _ := st.Read("r1")
	if row.Values["title"].Str != "b" || row.Values["relevant"].Bool {
		t.Errorf("r1 = %+v", row.Values)
	}
	if last := p.shown[len(p.shown)-1]; last.ID != "r2" || !last.Fresh {
		t.Errorf("last prompt = %+v", last)
	}
	if !st.Has("r2") {
		t.Error("r2 should be resolved")
	}
}

func TestNavigationLimits(t *testing.T) {
	st := newStore(t)
	p, _ := run(t, st, []string{"r1", "r2"}, Options{},
		"<", // nothing before r1
		">", // r1 is fresh and cannot be skipped
		"a", "yes",
		">", // r2 is fresh and cannot be skipped
		"b", "no",
	)
	want := []string{"r1", "r1", "r1", "r1", "r2", "r2", "r2"}
	if got := shownIDs(p); !equalStrings(got, want) {
		t.Errorf("shown = %v, want %v", got, want)
	}
	if st.Len() != 2 {
		t.Errorf("stored %d rows, want 2", st.Len())
	}
}

func TestAbandonedRedoRestoresPriorRow(t *testing.T) {
	st := newStore(t)
	_ = st.Commit("r1", "title", task.StringValue(task.KindString, "Old"))
	_ = st.Commit("r1", "relevant", task.BoolValue(true))

	obs := &recorder{}
	_, e := run(t, st, Pending([]string{"r1"}, st, true), Options{Observers: []Observer{obs}}, "New", ".")
	row, ok := st.Read("r1")
	if !ok || row.Values["title"].Str != "Old" {
		t.Errorf("abandoned redo must restore the stored row, got %+v", row.Values)
	}
	want := []string{"commit r1.title", "restore r1"}
	if !equalStrings(obs.events, want) {
		t.Errorf("events = %v, want %v", obs.events, want)
	}
	if s := e.Stats(); s.Restored != 1 || s.Dropped != 0 {
		t.Errorf("stats = %+v, want one restore and no drop", s)
	}
}

func TestUserIsStamped(t *testing.T) {
	st := newStore(t)
	p, _ := run(t, st, []string{"r1"}, Options{User: "ada"}, "x", "on")
	row, _ := st.Read("r1")
	if row.User != "ada" {
		t.Errorf("user = %q", row.User)
	}
	if p.shown[0].User != "ada" {
		t.Error("prompts carry the user")
	}
}

func TestBrowseWithoutTasks(t *testing.T) {
	set, _ := task.NewSet(nil)
	st := store.New(set)
	p, _ := run(t, st, []string{"a", "b", "c"}, Options{},
		">", "whatever", ">", ">", "<", ".",
	)
	want := []string{"a", "b", "b", "c", "c", "b"}
	if got := shownIDs(p); !equalStrings(got, want) {
		t.Errorf("shown = %v, want %v", got, want)
	}
	for _, s := range p.shown {
		if s.Task != nil || s.Fresh {
			t.Errorf("browse prompts have no task and are never fresh: %+v", s)
		}
	}
	if st.Len() != 0 {
		t.Error("browsing stores nothing")
	}
}

func TestPending(t *testing.T) {
	st := newStore(t)
	_ = st.Commit("b", "title", task.StringValue(task.KindString, "x"))
	ids := []string{"a", "b", "c"}
	if got := Pending(ids, st, false); !equalStrings(got, []string{"a", "c"}) {
		t.Errorf("Pending = %v", got)
	}
	if got := Pending(ids, st, true); !equalStrings(got, ids) {
		t.Errorf("Pending redo = %v", got)
	}
}

func TestResolve(t *testing.T) {
	reg := task.NewRegistry(task.DefaultNullToken)
	tk := reg.MustBuild("t", task.Spec{Kind: "int", Dependencies: []task.DependencySpec{
		{Condition: "a > 10", Value: "1"},
		{Condition: "a > 5", Value: "2"},
	}})
	cases := []struct {
		name string
		row  map[string]task.Value
		want int64
		ok   bool
	}{
		{"no row", nil, 0, false},
		{"first wins", map[string]task.Value{"a": task.IntValue(20)}, 1, true},
		{"second", map[string]task.Value{"a": task.IntValue(7)}, 2, true},
		{"none", map[string]task.Value{"a": task.IntValue(1)}, 0, false},
		{"null column", map[string]task.Value{"a": task.NullValue(task.KindInt)}, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := Resolve(tc.row, tk.Dependencies)
			if ok != tc.ok || (ok && got.Int != tc.want) {
				t.Errorf("Resolve = %v, %v; want %d, %v", got, ok, tc.want, tc.ok)
			}
		})
	}
}

func TestNavigationHelp(t *testing.T) {
	k := DefaultKeys()
	exit, prev, next := "[.] - exit\n", "[<] - previous\n", "[>] - next\n"
	cases := []struct {
		fresh, first, last bool
		want               string
	}{
		{true, true, false, exit},
		{true, false, false, exit + prev},
		{true, false, true, exit + prev},
		{false, true, false, exit + next},
		{false, false, true, exit + prev},
		{false, false, false, exit + prev + next},
	}
	for _, tc := range cases {
		if got := NavigationHelp(k, tc.fresh, tc.first, tc.last); got != tc.want {
			t.Errorf("NavigationHelp(fresh=%v first=%v last=%v) = %q, want %q", tc.fresh, tc.first, tc.last, got, tc.want)
		}
	}
}

func TestKeysValidate(t *testing.T) {
	cases := []struct {
		name string
		keys Keys
		ok   bool
	}{
		{"defaults", DefaultKeys(), true},
		{"duplicate", Keys{Exit: ".", Previous: ".", Next: ">", Null: "-"}, false},
		{"multi char", Keys{Exit: "q!", Previous: "<", Next: ">", Null: "-"}, false},
		{"empty", Keys{Exit: ".", Previous: "<", Next: ">"}, false},
	}
	for _, tc := range cases {
		err := tc.keys.Validate()
		if (err == nil) != tc.ok {
			t.Errorf("%s: Validate() = %v", tc.name, err)
		}
		if err != nil && !errors.Is(err, task.ErrKeyCollision) {
			t.Errorf("%s: error should wrap ErrKeyCollision", tc.name)
		}
	}
}

func TestNewRejectsKeysThatAreValidAnswers(t *testing.T) {
	reg := task.NewRegistry(task.DefaultNullToken)
	set, _ := task.NewSet(reg,
		reg.MustBuild("free", task.Spec{Kind: "str"}),
		reg.MustBuild("score", task.Spec{Categories: task.CategoriesFromList([]string{"low", "high"})}),
	)
	keys := Keys{Exit: "q", Previous: "1", Next: ">", Null: "-"}
	_, err := New(store.New(set), &script{}, Options{Keys: keys})
	if !errors.Is(err, task.ErrKeyCollision) {
		t.Fatalf("err = %v, want ErrKeyCollision", err)
	}

	keys.Previous = "<"
	if _, err := New(store.New(set), &script{}, Options{Keys: keys}); err != nil {
		t.Errorf("free-text tasks never collide: %v", err)
	}
}

func TestCheckTasksNullTokenShadowsCategory(t *testing.T) {
	reg := task.NewRegistry(task.DefaultNullToken)
	cats := []task.Category{{Code: "+", Label: "positive"}, {Code: "-", Label: "negative"}}
	cases := []struct {
		name     string
		nullable bool
		wantErr  bool
	}{
		{"nullable", true, true},
		{"required", false, false},
	}
	for _, tc := range cases {
		set, err := task.NewSet(reg, reg.MustBuild("tone", task.Spec{Categories: cats, Nullable: tc.nullable}))
		if err != nil {
			t.Fatal(err)
		}
		err = DefaultKeys().CheckTasks(set)
		if (err != nil) != tc.wantErr {
			t.Errorf("%s: CheckTasks() = %v", tc.name, err)
		}
		if err != nil && !errors.Is(err, task.ErrKeyCollision) {
			t.Errorf("%s: error should wrap ErrKeyCollision", tc.name)
		}
	}
}

func TestSignalString(t *testing.T) {
	for sig, want := range map[Signal]string{Continue: "continue", Previous: "previous", Next: "next", Exit: "exit"} {
		if sig.String() != want {
			t.Errorf("%d.String() = %q", sig, sig.String())
		}
	}
}

type cancelled struct{ script }

func (c *cancelled) ReadInput(ctx context.Context) (string, error) {
	if len(c.inputs) == 0 {
		return "", context.Canceled
	}
	return c.script.ReadInput(ctx)
}

func TestCancelledInputActsAsExit(t *testing.T) {
	st := newStore(t)
	p := &cancelled{script{inputs: []string{"a", "yes", "b"}}}
	e, err := New(st, p, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Run(context.Background(), []string{"r1", "r2"}); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if !st.Has("r1") || st.Has("r2") {
		t.Errorf("r1 kept=%v r2 kept=%v", st.Has("r1"), st.Has("r2"))
	}
}
