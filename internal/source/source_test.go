package source

import (
	"os"
	"path/filepath"
	"testing"
)

func fieldsEqual(a, b []Field) bool {
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

func TestFromList(t *testing.T) {
	s := FromList([]string{"first", "second"})
	if ids := s.IDs(); len(ids) != 2 || ids[0] != "0" || ids[1] != "1" {
		t.Errorf("IDs = %v", ids)
	}
	got, ok := s.Content("1")
	if !ok || !fieldsEqual(got, []Field{{Label: "item", Value: "second"}}) {
		t.Errorf("Content(1) = %v, %v", got, ok)
	}
}

func TestFromMappingKeepsOrder(t *testing.T) {
	s, err := FromMapping([]Entry{{"z", "last letter"}, {"a", "first letter"}})
	if err != nil {
		t.Fatal(err)
	}
	if ids := s.IDs(); ids[0] != "z" || ids[1] != "a" {
		t.Errorf("IDs = %v", ids)
	}
	if _, err := FromMapping([]Entry{{"a", "1"}, {"a", "2"}}); err == nil {
		t.Error("duplicate ids should fail")
	}
}

func TestFromTable(t *testing.T) {
	header := []string{"news_id", "title", "date", "body"}
	rows := [][]string{
		{"n1", "Storm", "2020-01-01", "..."},
		{"n2", "Vote", "2020-01-02", "..."},
	}
	cases := []struct {
		name  string
		opts  TableOptions
		id    string
		first []Field
	}{
		{"index ids", TableOptions{}, "0", []Field{{"news_id", "n1"}, {"title", "Storm"}, {"date", "2020-01-01"}, {"body", "..."}}},
		{"id column", TableOptions{IDColumn: "news_id"}, "n1", []Field{{"title", "Storm"}, {"date", "2020-01-01"}, {"body", "..."}}},
		{"item columns", TableOptions{IDColumn: "news_id", ItemColumns: []string{"date", "title"}}, "n1", []Field{{"date", "2020-01-01"}, {"title", "Storm"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, err := FromTable(header, rows, tc.opts)
			if err != nil {
				t.Fatalf("FromTable error: %v", err)
			}
			got, ok := s.Content(tc.id)
			if !ok || !fieldsEqual(got, tc.first) {
				t.Errorf("Content(%s) = %v, want %v", tc.id, got, tc.first)
			}
		})
	}
}

func TestFromTableErrors(t *testing.T) {
	header := []string{"id", "text"}
	if _, err := FromTable(header, [][]string{{"1", "a"}}, TableOptions{IDColumn: "missing"}); err == nil {
		t.Error("unknown id column should fail")
	}
	if _, err := FromTable(header, [][]string{{"1", "a"}}, TableOptions{ItemColumns: []string{"nope"}}); err == nil {
		t.Error("unknown item column should fail")
	}
	if _, err := FromTable(header, [][]string{{"1"}}, TableOptions{}); err == nil {
		t.Error("short row should fail")
	}
	if _, err := FromTable(header, [][]string{{"1", "a"}, {"1", "b"}}, TableOptions{IDColumn: "id"}); err == nil {
		t.Error("duplicate ids should fail")
	}
}

func TestParseStructured(t *testing.T) {
	cases := []struct {
		name string
		data string
		ids  []string
		cols []string
	}{
		{"list", "- a\n- b\n", []string{"0", "1"}, []string{"item"}},
		{"json list", `["a", "b", "c"]`, []string{"0", "1", "2"}, []string{"item"}},
		{"mapping", "x: one\ny: two\n", []string{"x", "y"}, []string{"item"}},
		{"objects", "- {title: A, score: 1}\n- {title: B, lang: en}\n", []string{"0", "1"}, []string{"title", "score", "lang"}},
		{"keyed objects", `{"k1": {"title": "A"}, "k2": {"title": "B"}}`, []string{"k1", "k2"}, []string{"title"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, err := ParseStructured([]byte(tc.data), TableOptions{})
			if err != nil {
				t.Fatalf("ParseStructured error: %v", err)
			}
			ids, cols := s.IDs(), s.Columns()
			if len(ids) != len(tc.ids) || len(cols) != len(tc.cols) {
				t.Fatalf("ids=%v cols=%v, want %v %v", ids, cols, tc.ids, tc.cols)
			}
			for i := range ids {
				if ids[i] != tc.ids[i] {
					t.Errorf("ids = %v, want %v", ids, tc.ids)
				}
			}
			for i := range cols {
				if cols[i] != tc.cols[i] {
					t.Errorf("cols = %v, want %v", cols, tc.cols)
				}
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "news.csv")
	data := "news_id,title\nn1,\"Storm, flood\"\nn2,Vote\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := LoadFile(path, TableOptions{IDColumn: "news_id"})
	if err != nil {
		t.Fatalf("LoadFile error: %v", err)
	}
	got, _ := s.Content("n1")
	if !fieldsEqual(got, []Field{{"title", "Storm, flood"}}) {
		t.Errorf("Content(n1) = %v", got)
	}

	if _, err := LoadFile(filepath.Join(dir, "data.parquet"), TableOptions{}); err == nil {
		t.Error("unsupported extension should fail")
	}
}

func TestSubset(t *testing.T) {
	s := FromList([]string{"a", "b", "c"})
	got, err := s.Subset([]string{"2", "0"})
	if err != nil || len(got) != 2 || got[0] != "2" {
		t.Errorf("Subset = %v, %v", got, err)
	}
	if _, err := s.Subset([]string{"9"}); err == nil {
		t.Error("unknown id should fail")
	}
}
