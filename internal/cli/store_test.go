package cli

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sbenjam1n/annotate/internal/config"
	"github.com/sbenjam1n/annotate/internal/engine"
	"github.com/sbenjam1n/annotate/internal/persist"
	"github.com/sbenjam1n/annotate/internal/store"
	"github.com/sbenjam1n/annotate/internal/task"
)

// useProject points the package config at a fresh csv project.
func useProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	prev := cfg
	cfg = &config.Config{
		ProjectRoot: root,
		Name:        "ada",
		TasksFile:   "tasks.yaml",
		Backend:     "csv",
		StoreDir:    "annotations",
		Keys:        engine.DefaultKeys(),
	}
	t.Cleanup(func() { cfg = prev })
	return root
}

func writeTasks(t *testing.T, root, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(root, "tasks.yaml"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// saveTitles saves rows r1 and r2 with a single str task "a".
func saveTitles(t *testing.T) {
	t.Helper()
	reg := task.NewRegistry(task.DefaultNullToken)
	set, err := task.NewSet(reg, reg.MustBuild("a", task.Spec{Kind: "str"}))
	if err != nil {
		t.Fatal(err)
	}
	st := store.New(set)
	for _, id := range []string{"r1", "r2"} {
		if err := st.Commit(id, "a", task.StringValue(task.KindString, "v-"+id)); err != nil {
			t.Fatal(err)
		}
	}

	ctx := context.Background()
	b, err := openBackend(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()
	if err := b.Save(ctx, cfg.Name, st.Export()); err != nil {
		t.Fatal(err)
	}
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	ctx := context.Background()
	b, err := openBackend(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()
	st, err := openStore(ctx, b)
	if err != nil {
		t.Fatalf("openStore error: %v", err)
	}
	return st
}

func TestOpenStoreAddsTasksFromFile(t *testing.T) {
	root := useProject(t)
	saveTitles(t)
	writeTasks(t, root, `tasks:
  - name: a
    kind: str
  - name: b
    kind: bool
    nullable: true
`)

	st := openTestStore(t)
	if got := strings.Join(st.Tasks().Names(), ","); got != "a,b" {
		t.Fatalf("tasks = %s, want a,b", got)
	}
	if st.Len() != 2 {
		t.Fatalf("rows = %d, want 2", st.Len())
	}
	row, ok := st.Read("r1")
	if !ok {
		t.Fatal("r1 should survive the schema change")
	}
	if row.Values["a"].Str != "v-r1" {
		t.Errorf("a = %v, want v-r1", row.Values["a"])
	}
	if b := row.Values["b"]; !b.Null || b.Kind != task.KindBool {
		t.Errorf("new column b = %+v, want a bool null", b)
	}
}

func TestOpenStoreResetsChangedKind(t *testing.T) {
	root := useProject(t)
	saveTitles(t)
	writeTasks(t, root, `tasks:
  - name: a
    kind: int
    nullable: true
`)

	st := openTestStore(t)
	row, ok := st.Read("r2")
	if !ok {
		t.Fatal("r2 should be kept")
	}
	if a := row.Values["a"]; !a.Null || a.Kind != task.KindInt {
		t.Errorf("a = %+v, want an int null after the kind change", a)
	}
}

func TestOpenStoreInfersTasksWithoutFile(t *testing.T) {
	useProject(t)
	saveTitles(t)

	st := openTestStore(t)
	if got := strings.Join(st.Tasks().Names(), ","); got != "a" {
		t.Fatalf("tasks = %s, want the saved column a", got)
	}
	row, ok := st.Read("r2")
	if !ok || row.Values["a"].Str != "v-r2" {
		t.Errorf("r2 = %+v, %v", row, ok)
	}
}

func TestOpenStoreEmptyProject(t *testing.T) {
	useProject(t)

	st := openTestStore(t)
	if !st.Tasks().Empty() || st.Len() != 0 {
		t.Errorf("empty project should give an empty store, got %d tasks %d rows", st.Tasks().Len(), st.Len())
	}
}

func TestImportSavesUnderName(t *testing.T) {
	root := useProject(t)
	saveTitles(t)

	// export ada's table, then import it as bob
	ctx := context.Background()
	b, err := openBackend(ctx)
	if err != nil {
		t.Fatal(err)
	}
	tbl, err := b.Load(ctx, "ada")
	b.Close()
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(root, "export.csv")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := persist.WriteTable(f, tbl); err != nil {
		t.Fatal(err)
	}
	f.Close()

	cfg.Name = "bob"
	if err := importCmd.RunE(importCmd, []string{path}); err != nil {
		t.Fatalf("import error: %v", err)
	}
	st := openTestStore(t)
	if st.Len() != 2 {
		t.Errorf("imported rows = %d, want 2", st.Len())
	}

	err = importCmd.RunE(importCmd, []string{path})
	if err == nil || !strings.Contains(err.Error(), "--force") {
		t.Errorf("second import without --force should fail, got %v", err)
	}
}

func TestFormatAnnotators(t *testing.T) {
	got := formatAnnotators(map[string]int{"bob": 0, "ada": 2}, "bob")
	if want := "ada (2), *bob (0)"; got != want {
		t.Errorf("formatAnnotators = %q, want %q", got, want)
	}
}
