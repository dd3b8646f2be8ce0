// Package task defines annotation tasks: typed validation rules that turn raw
// keystrokes into storable values, the dependencies that can answer a task
// without prompting, and the ordered sets tasks are grouped into.
package task

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// DefaultNullToken is the raw input that means "no value" for nullable tasks.
const DefaultNullToken = "-"

// DefaultDateFormat is used when a date task has no explicit format.
const DefaultDateFormat = "%Y-%m-%d"

// BooleanStates is the truthy/falsy token table for bool tasks. Lookups are
// case-insensitive.
var BooleanStates = map[string]bool{
	"yes":   true,
	"no":    false,
	"true":  true,
	"false": false,
	"on":    true,
	"off":   false,
}

// Category is one choice of a category task.
type Category struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}

// Task is one question asked about every record.
type Task struct {
	Name         string
	Kind         Kind
	Prompt       string
	Nullable     bool
	NullToken    string
	Dependencies []Dependency

	Pattern    string
	Flags      string
	Categories []Category
	Format     string

	// Pos is the 0-based position within the owning Set, Of the set size.
	Pos int
	Of  int

	re *regexp.Regexp
}

// Option renders one "[code] - label" instruction line.
func Option(code, label string) string {
	return fmt.Sprintf("[%s] - %s\n", code, label)
}

func (t *Task) nullToken() string {
	if t.NullToken == "" {
		return DefaultNullToken
	}
	return t.NullToken
}

// Instruction is the prompt followed by the enumerated choices and, for
// nullable tasks, the null hint.
func (t *Task) Instruction() string {
	var b strings.Builder
	if t.Prompt != "" {
		b.WriteString(t.Prompt)
		b.WriteString("\n")
	}
	switch t.Kind {
	case KindBool:
		b.WriteString(Option("yes", "True"))
		b.WriteString(Option("no", "False"))
	case KindCategory:
		for _, c := range t.Categories {
			b.WriteString(Option(c.Code, c.Label))
		}
	}
	if t.Nullable {
		b.WriteString(Option(t.nullToken(), "none"))
	}
	return b.String()
}

// Labels returns the category labels in code order.
func (t *Task) Labels() []string {
	labels := make([]string, len(t.Categories))
	for i, c := range t.Categories {
		labels[i] = c.Label
	}
	return labels
}

func (t *Task) codes() []string {
	codes := make([]string, len(t.Categories))
	for i, c := range t.Categories {
		codes[i] = c.Code
	}
	return codes
}

func (t *Task) invalid() *Invalid {
	switch t.Kind {
	case KindRegex:
		return &Invalid{Message: fmt.Sprintf("Input does not match pattern '%s'.", t.Pattern)}
	case KindCategory:
		return &Invalid{Message: fmt.Sprintf("Input not in categories [%s].", strings.Join(t.codes(), ", "))}
	case KindDate:
		return &Invalid{Message: fmt.Sprintf("Input cannot be parsed as date (%s).", t.Format)}
	}
	return &Invalid{Message: fmt.Sprintf("Input cannot be parsed as %s.", t.Kind)}
}

// Validate converts raw input into a value, or returns *Invalid. It reads
// only the task's own state.
func (t *Task) Validate(raw string) (Value, error) {
	if t.Nullable && raw == t.nullToken() {
		return NullValue(t.Kind), nil
	}
	switch t.Kind {
	case KindString:
		return StringValue(KindString, raw), nil
	case KindRegex:
		if t.re == nil || !t.re.MatchString(raw) {
			return Value{}, t.invalid()
		}
		return StringValue(KindRegex, raw), nil
	case KindInt:
		n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return Value{}, t.invalid()
		}
		return IntValue(n), nil
	case KindFloat:
		f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return Value{}, t.invalid()
		}
		return FloatValue(f), nil
	case KindBool:
		b, ok := BooleanStates[strings.ToLower(strings.TrimSpace(raw))]
		if !ok {
			return Value{}, t.invalid()
		}
		return BoolValue(b), nil
	case KindCategory:
		for _, c := range t.Categories {
			if c.Code == raw {
				return StringValue(KindCategory, c.Label), nil
			}
		}
		return Value{}, t.invalid()
	case KindDate:
		d, err := parseDate(t.Format, strings.TrimSpace(raw))
		if err != nil {
			return Value{}, t.invalid()
		}
		return DateValue(d), nil
	}
	return Value{}, t.invalid()
}

// compile prepares kind-specific state and checks the definition's shape.
func (t *Task) compile() error {
	if strings.TrimSpace(t.Name) == "" {
		return configErrorf(ErrInvalidTask, "", "task name is required")
	}
	switch t.Kind {
	case KindRegex:
		if t.Pattern == "" {
			return configErrorf(ErrInvalidTask, t.Name, "regex task needs a pattern")
		}
		expr := "^(?:" + t.Pattern + ")$"
		if t.Flags != "" {
			expr = "(?" + t.Flags + ")" + expr
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return configErrorf(ErrInvalidTask, t.Name, "compile pattern: %v", err)
		}
		t.re = re
	case KindCategory:
		if len(t.Categories) == 0 {
			return configErrorf(ErrInvalidTask, t.Name, "category task needs at least one category")
		}
		seen := make(map[string]bool, len(t.Categories))
		for _, c := range t.Categories {
			if seen[c.Code] {
				return configErrorf(ErrInvalidTask, t.Name, "category code %q is used twice", c.Code)
			}
			seen[c.Code] = true
		}
	case KindDate:
		if t.Format == "" {
			t.Format = DefaultDateFormat
		}
	}
	for i := range t.Dependencies {
		if err := t.compileDependency(&t.Dependencies[i]); err != nil {
			return err
		}
	}
	return nil
}

// Equal compares every field except Pos and Of.
func (t *Task) Equal(o *Task) bool {
	if t == nil || o == nil {
		return t == o
	}
	if t.Name != o.Name || t.Kind != o.Kind || t.Prompt != o.Prompt ||
		t.Nullable != o.Nullable || t.nullToken() != o.nullToken() ||
		t.Pattern != o.Pattern || t.Flags != o.Flags || t.Format != o.Format {
		return false
	}
	if len(t.Categories) != len(o.Categories) || len(t.Dependencies) != len(o.Dependencies) {
		return false
	}
	for i := range t.Categories {
		if t.Categories[i] != o.Categories[i] {
			return false
		}
	}
	for i := range t.Dependencies {
		if !t.Dependencies[i].Equal(o.Dependencies[i]) {
			return false
		}
	}
	return true
}

func (t *Task) String() string {
	return fmt.Sprintf("%-16s%s\n%-16s%s\n%-16s%t\n%-16s%d/%d\n",
		"name", t.Name, "kind", t.Kind, "nullable", t.Nullable, "position", t.Pos+1, t.Of)
}
