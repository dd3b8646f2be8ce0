package task

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Definition is a named Spec, as read from a task file.
type Definition struct {
	Name string
	Spec Spec
}

type definitionFile struct {
	Tasks []definitionYAML `yaml:"tasks"`
}

type definitionYAML struct {
	Name         string           `yaml:"name"`
	Kind         yaml.Node        `yaml:"kind"`
	Instruction  string           `yaml:"instruction"`
	Nullable     bool             `yaml:"nullable"`
	Pattern      string           `yaml:"pattern"`
	Regex        string           `yaml:"regex"`
	Flags        string           `yaml:"flags"`
	Categories   yaml.Node        `yaml:"categories"`
	Format       string           `yaml:"format"`
	Dependencies []dependencyYAML `yaml:"dependencies"`
}

type dependencyYAML struct {
	Condition string    `yaml:"condition"`
	Value     yaml.Node `yaml:"value"`
}

// LoadDefinitions reads a YAML task file.
func (r *Registry) LoadDefinitions(path string) ([]Definition, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read task file: %w", err)
	}
	return r.ParseDefinitions(data)
}

// ParseDefinitions decodes task definitions. Category mappings keep their
// file order. A kind given as a list or mapping builds a category task; any
// separate categories are then ignored and a warning is returned.
func (r *Registry) ParseDefinitions(data []byte) ([]Definition, []string, error) {
	var file definitionFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, nil, fmt.Errorf("parse task file: %w", err)
	}

	var (
		defs     []Definition
		warnings []string
	)
	for i, raw := range file.Tasks {
		if raw.Name == "" {
			return nil, nil, configErrorf(ErrInvalidTask, "", "task #%d has no name", i+1)
		}
		spec := Spec{
			Instruction: raw.Instruction,
			Nullable:    raw.Nullable,
			Pattern:     raw.Pattern,
			Flags:       raw.Flags,
			Format:      raw.Format,
		}
		if spec.Pattern == "" {
			spec.Pattern = raw.Regex
		}

		switch raw.Kind.Kind {
		case yaml.ScalarNode:
			spec.Kind = raw.Kind.Value
			cats, err := categoriesFromNode(&raw.Categories)
			if err != nil {
				return nil, nil, configErrorf(ErrInvalidTask, raw.Name, "categories: %v", err)
			}
			spec.Categories = cats
		case yaml.SequenceNode, yaml.MappingNode:
			cats, err := categoriesFromNode(&raw.Kind)
			if err != nil {
				return nil, nil, configErrorf(ErrInvalidTask, raw.Name, "kind: %v", err)
			}
			if raw.Categories.Kind != 0 {
				warnings = append(warnings, fmt.Sprintf(
					"task '%s': building categories from the kind list; categories are ignored", raw.Name))
			}
			spec.Kind = KindCategory.String()
			spec.Categories = cats
		default:
			cats, err := categoriesFromNode(&raw.Categories)
			if err != nil {
				return nil, nil, configErrorf(ErrInvalidTask, raw.Name, "categories: %v", err)
			}
			spec.Categories = cats
		}

		for _, d := range raw.Dependencies {
			value := d.Value.Value
			if d.Value.Kind == 0 || d.Value.Tag == "!!null" {
				value = r.nullToken
			}
			spec.Dependencies = append(spec.Dependencies, DependencySpec{Condition: d.Condition, Value: value})
		}
		defs = append(defs, Definition{Name: raw.Name, Spec: spec})
	}
	return defs, warnings, nil
}

func categoriesFromNode(n *yaml.Node) ([]Category, error) {
	switch n.Kind {
	case 0:
		return nil, nil
	case yaml.SequenceNode:
		var labels []string
		if err := n.Decode(&labels); err != nil {
			return nil, err
		}
		return CategoriesFromList(labels), nil
	case yaml.MappingNode:
		cats := make([]Category, 0, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			cats = append(cats, Category{Code: n.Content[i].Value, Label: n.Content[i+1].Value})
		}
		return cats, nil
	}
	return nil, fmt.Errorf("expected a list or a mapping")
}
