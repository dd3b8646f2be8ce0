package task

import (
	"regexp"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"
	"github.com/expr-lang/expr/types"
	"github.com/expr-lang/expr/vm"
)

// Dependency auto-answers a task: when Condition holds for the record's
// stored answers, Value is committed without prompting.
type Dependency struct {
	Condition string
	Raw       string
	Value     Value

	program *vm.Program
}

var quotedIdent = regexp.MustCompile("`([^`]+)`")

// conditionSource rewrites backquoted column names into $env lookups so
// names with spaces can be referenced.
func conditionSource(condition string) string {
	return quotedIdent.ReplaceAllString(condition, `$$env["$1"]`)
}

func (t *Task) compileDependency(d *Dependency) error {
	value, err := t.Validate(d.Raw)
	if err != nil {
		return configErrorf(ErrInvalidDependency, t.Name,
			"dependency with condition '%s' is associated with an invalid value. %s", d.Condition, err)
	}
	env, err := conditionEnv(d.Condition)
	if err != nil {
		return configErrorf(ErrInvalidDependency, t.Name, "compile condition '%s': %v", d.Condition, err)
	}
	program, err := expr.Compile(conditionSource(d.Condition),
		expr.Env(env), expr.AsBool(), expr.AllowUndefinedVariables())
	if err != nil {
		return configErrorf(ErrInvalidDependency, t.Name, "compile condition '%s': %v", d.Condition, err)
	}
	d.Value = value
	d.program = program
	return nil
}

// conditionEnv declares every column a condition reads as untyped, so that
// a column named like an expr builtin (date, len, type) resolves to the
// column instead of the function.
func conditionEnv(condition string) (types.Map, error) {
	columns, err := ConditionColumns(condition)
	if err != nil {
		return nil, err
	}
	env := types.Map{
		"True":  types.Bool,
		"False": types.Bool,
		"None":  types.Nil,
	}
	for _, name := range columns {
		env[name] = types.Any
	}
	return env, nil
}

// Matches evaluates the condition against stored answers. Evaluation errors
// (comparing a null, say) count as no match.
func (d Dependency) Matches(row map[string]Value) bool {
	if d.program == nil || len(row) == 0 {
		return false
	}
	env := map[string]any{
		"True":  true,
		"False": false,
		"None":  nil,
	}
	for name, v := range row {
		env[name] = v.Interface()
	}
	out, err := expr.Run(d.program, env)
	if err != nil {
		return false
	}
	ok, _ := out.(bool)
	return ok
}

// Equal compares condition text and the validated value.
func (d Dependency) Equal(o Dependency) bool {
	return d.Condition == o.Condition && d.Value.Equal(o.Value)
}

// ConditionColumns lists the column names a condition reads, in order of
// appearance, without duplicates.
func ConditionColumns(condition string) ([]string, error) {
	tree, err := parser.Parse(conditionSource(condition))
	if err != nil {
		return nil, err
	}
	c := &columnCollector{seen: map[string]bool{}, callees: map[string]bool{}}
	ast.Walk(&tree.Node, c)
	var names []string
	for _, name := range c.names {
		if !c.callees[name] {
			names = append(names, name)
		}
	}
	return names, nil
}

type columnCollector struct {
	names   []string
	seen    map[string]bool
	callees map[string]bool
}

func (c *columnCollector) add(name string) {
	switch name {
	case "True", "False", "None", "true", "false", "nil":
		return
	}
	if name == "" || name[0] == '$' || c.seen[name] {
		return
	}
	c.seen[name] = true
	c.names = append(c.names, name)
}

func (c *columnCollector) Visit(node *ast.Node) {
	switch n := (*node).(type) {
	case *ast.IdentifierNode:
		c.add(n.Value)
	case *ast.CallNode:
		if id, ok := n.Callee.(*ast.IdentifierNode); ok {
			c.callees[id.Value] = true
		}
	case *ast.MemberNode:
		// $env["name"] from a backquoted column
		if id, ok := n.Node.(*ast.IdentifierNode); ok && id.Value == "$env" {
			if prop, ok := n.Property.(*ast.StringNode); ok {
				c.add(prop.Value)
			}
		}
	}
}
