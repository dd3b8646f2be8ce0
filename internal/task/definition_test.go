package task

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleTasks = `
tasks:
  - name: title
    kind: str
    instruction: Copy the headline
  - name: relevant
    kind: bool
    nullable: true
    dependencies:
      - condition: title == 'Hello'
        value: true
      - condition: title == ''
        value: null
  - name: topic
    kind:
      p: politics
      s: sports
      o: other
  - name: media
    kind: [not adverse, adverse]
    categories: [ignored]
  - name: code
    kind: regex
    regex: '[a-z]{2}\d'
    flags: i
  - name: published
    kind: date
    format: '%d-%m-%Y'
`

func TestParseDefinitions(t *testing.T) {
	reg := NewRegistry("~")
	defs, warnings, err := reg.ParseDefinitions([]byte(sampleTasks))
	if err != nil {
		t.Fatalf("ParseDefinitions error: %v", err)
	}
	if len(defs) != 6 {
		t.Fatalf("got %d definitions, want 6", len(defs))
	}
	if len(warnings) != 1 {
		t.Errorf("expected one warning for ignored categories, got %v", warnings)
	}

	set, err := Build(reg, defs)
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}

	topic, _ := set.Get("topic")
	wantCodes := []string{"p", "s", "o"}
	for i, c := range topic.Categories {
		if c.Code != wantCodes[i] {
			t.Errorf("topic code %d = %q, want %q (file order)", i, c.Code, wantCodes[i])
		}
	}
	media, _ := set.Get("media")
	if len(media.Categories) != 2 || media.Categories[1].Label != "adverse" {
		t.Errorf("media categories = %+v", media.Categories)
	}

	relevant, _ := set.Get("relevant")
	if len(relevant.Dependencies) != 2 {
		t.Fatalf("relevant dependencies = %d", len(relevant.Dependencies))
	}
	if !relevant.Dependencies[0].Value.Bool {
		t.Error("first dependency value should be true")
	}
	if !relevant.Dependencies[1].Value.Null {
		t.Error("a null dependency value maps onto the null token")
	}

	code, _ := set.Get("code")
	if _, err := code.Validate("AB1"); err != nil {
		t.Errorf("regex with flags should accept AB1: %v", err)
	}
	published, _ := set.Get("published")
	if _, err := published.Validate("31-12-2020"); err != nil {
		t.Errorf("date with strftime format: %v", err)
	}
}

func TestLoadDefinitionsMissingFile(t *testing.T) {
	reg := NewRegistry("")
	if _, _, err := reg.LoadDefinitions(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestLoadDefinitionsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.yaml")
	if err := os.WriteFile(path, []byte(sampleTasks), 0644); err != nil {
		t.Fatal(err)
	}
	defs, _, err := NewRegistry("").LoadDefinitions(path)
	if err != nil {
		t.Fatalf("LoadDefinitions error: %v", err)
	}
	if defs[0].Name != "title" || defs[0].Spec.Instruction != "Copy the headline" {
		t.Errorf("first definition = %+v", defs[0])
	}
}
