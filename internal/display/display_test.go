package display

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/sbenjam1n/annotate/internal/engine"
	"github.com/sbenjam1n/annotate/internal/source"
	"github.com/sbenjam1n/annotate/internal/store"
	"github.com/sbenjam1n/annotate/internal/task"
)

func newText(t *testing.T, in string, opts Options) (*Text, *bytes.Buffer) {
	t.Helper()
	src, err := source.FromTable(
		[]string{"id", "title", "body"},
		[][]string{{"n1", "Storm hits coast", "Heavy rain and wind across the region today"}},
		source.TableOptions{IDColumn: "id"},
	)
	if err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	d, err := New(src, strings.NewReader(in), &out, opts)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	return d, &out
}

func TestShowTaskPrompt(t *testing.T) {
	d, out := newText(t, "", Options{Name: "NEWS"})
	reg := task.NewRegistry(task.DefaultNullToken)
	set, _ := task.NewSet(reg,
		reg.MustBuild("topic", task.Spec{Instruction: "Pick one", Categories: task.CategoriesFromList([]string{"weather", "politics"})}),
		reg.MustBuild("relevant", task.Spec{Kind: "bool"}),
	)
	tk, _ := set.Get("topic")

	err := d.Show(engine.Prompt{
		ID: "n1", Index: 0, Total: 12, Task: tk,
		Error:      "Input not in categories [1, 2].",
		Navigation: engine.NavigationHelp(engine.DefaultKeys(), true, true, false),
		Fresh:      true, User: "ada",
	})
	if err != nil {
		t.Fatal(err)
	}
	got := out.String()
	for _, want := range []string{
		"NEWS", "ada", "ID: n1", " 1/12",
		"title", "Storm hits coast",
		"topic", "(category)", "Task 1/2",
		"Pick one", "[1] - weather", "[2] - politics",
		"[.] - exit",
		"Input not in categories [1, 2].",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "Stored annotation") {
		t.Error("fresh prompts carry no stored annotation")
	}
}

func TestShowStoredAnnotation(t *testing.T) {
	d, out := newText(t, "", Options{})
	row := store.Row{
		ID: "n1",
		Values: map[string]task.Value{
			"topic":    task.StringValue(task.KindCategory, "weather"),
			"relevant": task.NullValue(task.KindBool),
		},
		Timestamp: time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC),
		User:      "bob",
	}
	_ = d.Show(engine.Prompt{ID: "n1", Total: 1, Annotation: &row, Columns: []string{"topic", "relevant"}})
	got := out.String()
	for _, want := range []string{"Stored annotation", "weather", "none", "bob", "2024-02-03 04:05:06", "Navigation"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
	if strings.Index(got, "topic") > strings.Index(got, "relevant") {
		t.Error("stored cells follow column order")
	}
}

func TestShowUnknownRecord(t *testing.T) {
	d, out := newText(t, "", Options{})
	_ = d.Show(engine.Prompt{ID: "zz", Total: 1})
	if !strings.Contains(out.String(), "record not in dataset") {
		t.Errorf("output = %s", out.String())
	}
}

func TestTruncate(t *testing.T) {
	cases := []struct {
		in    string
		limit int
		want  string
	}{
		{"one two three", 0, "one two three"},
		{"one two three", 3, "one two three"},
		{"one two three four", 2, "one two [...]"},
	}
	for _, tc := range cases {
		if got := truncate(tc.in, tc.limit); got != tc.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tc.in, tc.limit, got, tc.want)
		}
	}
}

func TestTruncatedBody(t *testing.T) {
	d, out := newText(t, "", Options{TruncateWords: 3})
	_ = d.Show(engine.Prompt{ID: "n1", Total: 1})
	got := out.String()
	if !strings.Contains(got, "Heavy rain and [...]") || strings.Contains(got, "region") {
		t.Errorf("body should be truncated:\n%s", got)
	}
}

func TestHighlightPhrases(t *testing.T) {
	d, _ := newText(t, "", Options{Phrases: []string{"storm", `rain\b`}, IgnoreCase: true})
	if !d.phrases.MatchString("STORM") || !d.phrases.MatchString("rain") {
		t.Error("phrases should match case-insensitively")
	}
	if got := d.highlight("no match here"); got != "no match here" {
		t.Errorf("highlight changed unmatched text: %q", got)
	}

	if _, err := New(source.FromList(nil), strings.NewReader(""), io.Discard, Options{Phrases: []string{"("}}); err == nil {
		t.Error("invalid phrase pattern should fail")
	}
}

func TestBodyIsCached(t *testing.T) {
	d, _ := newText(t, "", Options{})
	first := d.body("n1")
	if !d.bodies.Contains("n1") {
		t.Fatal("rendered body should be cached")
	}
	if d.body("n1") != first {
		t.Error("cached body differs")
	}
}

func TestPreload(t *testing.T) {
	d, _ := newText(t, "", Options{})
	if n := d.Preload(context.Background(), []string{"n1", "missing"}); n != 2 {
		t.Errorf("Preload rendered %d bodies, want 2", n)
	}
	if !d.bodies.Contains("n1") || !d.bodies.Contains("missing") {
		t.Error("preloaded bodies should be cached")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d2, _ := newText(t, "", Options{})
	if n := d2.Preload(ctx, []string{"n1"}); n != 0 || d2.bodies.Len() != 0 {
		t.Errorf("cancelled Preload rendered %d bodies", n)
	}
}

func TestReadInput(t *testing.T) {
	d, _ := newText(t, "Hello\r\n-\nlast", Options{})
	ctx := context.Background()
	for _, want := range []string{"Hello", "-", "last"} {
		got, err := d.ReadInput(ctx)
		if err != nil || got != want {
			t.Errorf("ReadInput = %q, %v; want %q", got, err, want)
		}
	}
	if _, err := d.ReadInput(ctx); !errors.Is(err, io.EOF) {
		t.Errorf("err = %v, want EOF", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := d.ReadInput(cancelled); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestClear(t *testing.T) {
	d, out := newText(t, "", Options{})
	d.Clear()
	if out.Len() != 0 {
		t.Error("Clear writes nothing unless ClearScreen is set")
	}
	d.opts.ClearScreen = true
	d.Clear()
	if !strings.Contains(out.String(), "\033[2J") {
		t.Error("Clear should emit the clear sequence")
	}
}
