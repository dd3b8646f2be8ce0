package task

import (
	"errors"
	"fmt"
	"strings"
)

// Spec describes a task to be built by a Registry. Kind may be left empty
// when Categories is set.
type Spec struct {
	Kind         string
	Instruction  string
	Nullable     bool
	Dependencies []DependencySpec
	Pattern      string
	Flags        string
	Categories   []Category
	Format       string
}

// DependencySpec is an uncompiled (condition, value) pair.
type DependencySpec struct {
	Condition string `yaml:"condition" json:"condition"`
	Value     string `yaml:"value" json:"value"`
}

// Registry builds tasks from kind tokens and maps stored column types back
// onto kinds. One Registry is constructed per process and passed to the
// components that need it.
type Registry struct {
	nullToken string
	aliases   map[string]Kind
}

// NewRegistry returns a registry whose tasks use nullToken as null input.
func NewRegistry(nullToken string) *Registry {
	if nullToken == "" {
		nullToken = DefaultNullToken
	}
	return &Registry{
		nullToken: nullToken,
		aliases: map[string]Kind{
			"str":            KindString,
			"string":         KindString,
			"object":         KindString,
			"regex":          KindRegex,
			"int":            KindInt,
			"int32":          KindInt,
			"int64":          KindInt,
			"Int64":          KindInt,
			"integer":        KindInt,
			"float":          KindFloat,
			"float64":        KindFloat,
			"bool":           KindBool,
			"boolean":        KindBool,
			"category":       KindCategory,
			"date":           KindDate,
			"datetime64[ns]": KindDate,
		},
	}
}

// NullToken is the null input token stamped on built tasks.
func (r *Registry) NullToken() string { return r.nullToken }

// KindForColumnType infers a kind from a stored column type name.
func (r *Registry) KindForColumnType(typ string) (Kind, bool) {
	k, ok := r.aliases[typ]
	if !ok {
		k, ok = r.aliases[strings.ToLower(typ)]
	}
	return k, ok
}

// Build constructs a task named name from spec.
func (r *Registry) Build(name string, spec Spec) (*Task, error) {
	var kind Kind
	switch {
	case spec.Kind != "":
		k, err := ParseKind(spec.Kind)
		if err != nil {
			var cerr *ConfigError
			if errors.As(err, &cerr) {
				cerr.Task = name
			}
			return nil, err
		}
		kind = k
	case len(spec.Categories) > 0:
		kind = KindCategory
	default:
		return nil, configErrorf(ErrUnknownKind, name, "no kind given")
	}

	t := &Task{
		Name:       name,
		Kind:       kind,
		Prompt:     strings.TrimSpace(spec.Instruction),
		Nullable:   spec.Nullable,
		NullToken:  r.nullToken,
		Pattern:    spec.Pattern,
		Flags:      spec.Flags,
		Categories: append([]Category(nil), spec.Categories...),
		Format:     spec.Format,
	}
	for _, d := range spec.Dependencies {
		t.Dependencies = append(t.Dependencies, Dependency{Condition: d.Condition, Raw: d.Value})
	}
	if err := t.compile(); err != nil {
		return nil, err
	}
	return t, nil
}

// MustBuild is Build for statically known definitions.
func (r *Registry) MustBuild(name string, spec Spec) *Task {
	t, err := r.Build(name, spec)
	if err != nil {
		panic(fmt.Sprintf("task: %v", err))
	}
	return t
}

// CategoriesFromList numbers labels "1", "2", ... in list order.
func CategoriesFromList(labels []string) []Category {
	cats := make([]Category, len(labels))
	for i, l := range labels {
		cats[i] = Category{Code: fmt.Sprint(i + 1), Label: l}
	}
	return cats
}
