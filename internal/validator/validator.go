// Package validator checks an annotation setup before a session starts:
// task definitions, reserved keys and dependencies, and drift between the
// tasks and previously saved annotations.
package validator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sbenjam1n/annotate/internal/engine"
	"github.com/sbenjam1n/annotate/internal/store"
	"github.com/sbenjam1n/annotate/internal/task"
)

// Result is the outcome of running a validation tier.
type Result struct {
	Tier    int      `json:"tier"`
	Passed  bool     `json:"passed"`
	Code    int      `json:"code"`
	Message string   `json:"message"`
	Details []Detail `json:"details,omitempty"`
}

// Detail describes a single check. Fix is set on every failing detail.
type Detail struct {
	Check    string `json:"check"`
	Passed   bool   `json:"passed"`
	Expected string `json:"expected,omitempty"`
	Got      string `json:"got,omitempty"`
	Fix      string `json:"fix,omitempty"`
}

func (r *Result) fail(code int, msg string, d Detail) {
	if r.Passed {
		r.Passed = false
		r.Code = code
		r.Message = msg
	}
	d.Passed = false
	r.Details = append(r.Details, d)
}

// Validator runs the tiers against one registry and key binding.
type Validator struct {
	reg  *task.Registry
	keys engine.Keys
}

// New creates a Validator.
func New(reg *task.Registry, keys engine.Keys) *Validator {
	if reg == nil {
		reg = task.NewRegistry(keys.Null)
	}
	return &Validator{reg: reg, keys: keys}
}

// Validate runs every tier in order and stops at the first failing one.
// stored may be nil when nothing was saved yet.
func (v *Validator) Validate(defs []task.Definition, stored *store.Table) []*Result {
	r0, set := v.Tier0Definitions(defs)
	results := []*Result{r0}
	if !r0.Passed {
		return results
	}
	r1 := v.Tier1Session(set)
	results = append(results, r1)
	if !r1.Passed || stored == nil {
		return results
	}
	return append(results, v.Tier2Drift(set, stored))
}

// Tier0Definitions builds every definition and reports all failures, not
// just the first. The set is returned when every definition builds.
func (v *Validator) Tier0Definitions(defs []task.Definition) (*Result, *task.Set) {
	result := &Result{Tier: 0, Passed: true}
	if len(defs) == 0 {
		result.Details = append(result.Details, Detail{
			Check: "tasks_defined", Passed: true,
			Got: "no tasks; sessions will only browse records",
		})
	}

	seen := map[string]bool{}
	var tasks []*task.Task
	for _, d := range defs {
		if seen[d.Name] {
			result.fail(1, fmt.Sprintf("Task %q is defined twice", d.Name), Detail{
				Check:    "unique_names",
				Expected: "each task name once",
				Got:      fmt.Sprintf("%q repeated", d.Name),
				Fix:      fmt.Sprintf("Rename or remove the second definition of %q.", d.Name),
			})
			continue
		}
		seen[d.Name] = true

		t, err := v.reg.Build(d.Name, d.Spec)
		if err != nil {
			code, check, fix := classify(d, err)
			result.fail(code, err.Error(), Detail{Check: check, Got: err.Error(), Fix: fix})
			continue
		}
		tasks = append(tasks, t)
	}
	if !result.Passed {
		return result, nil
	}

	set, err := task.NewSet(v.reg, tasks...)
	if err != nil {
		result.fail(1, err.Error(), Detail{Check: "task_set", Got: err.Error(), Fix: "Fix the task definitions file."})
		return result, nil
	}
	result.Message = fmt.Sprintf("Tier 0 passed: %d task(s)", set.Len())
	return result, set
}

func classify(d task.Definition, err error) (code int, check, fix string) {
	switch {
	case errors.Is(err, task.ErrUnknownKind):
		return 2, "known_kind", fmt.Sprintf("Use one of %s for task %q, or give it categories.", kindList(), d.Name)
	case errors.Is(err, task.ErrInvalidDependency):
		return 3, "dependency_value", fmt.Sprintf("Make every dependency value of %q a valid answer for it, and every condition a boolean expression.", d.Name)
	}
	return 4, "task_shape", fmt.Sprintf("Check the parameters of %q (pattern, categories, format).", d.Name)
}

func kindList() string {
	var names []string
	for _, k := range task.Kinds() {
		names = append(names, k.String())
	}
	return strings.Join(names, ", ")
}

// Tier1Session checks what the engine needs at run time: usable keys, keys
// that are not valid answers, and dependency conditions that read columns
// answered earlier in the order.
func (v *Validator) Tier1Session(set *task.Set) *Result {
	result := &Result{Tier: 1, Passed: true}

	if err := v.keys.Validate(); err != nil {
		result.fail(-1, "Reserved keys are unusable", Detail{
			Check:    "reserved_keys",
			Expected: "four distinct single characters",
			Got:      err.Error(),
			Fix:      "Set keys.exit, keys.previous, keys.next and keys.null to distinct characters in annotate.yaml.",
		})
	}
	if err := v.keys.CheckTasks(set); err != nil {
		result.fail(-2, "Reserved keys collide with answers", Detail{
			Check:    "key_collision",
			Expected: "navigation keys that no task accepts",
			Got:      err.Error(),
			Fix:      "Pick navigation keys outside the category codes and patterns of your tasks.",
		})
	}

	for _, t := range set.Tasks() {
		for _, d := range t.Dependencies {
			cols, err := task.ConditionColumns(d.Condition)
			if err != nil {
				result.fail(-3, fmt.Sprintf("Condition of %q does not parse", t.Name), Detail{
					Check: "condition_syntax", Got: err.Error(),
					Fix: fmt.Sprintf("Rewrite the condition %q of task %q.", d.Condition, t.Name),
				})
				continue
			}
			for _, c := range cols {
				other, ok := set.Get(c)
				switch {
				case !ok:
					result.fail(-3, fmt.Sprintf("Condition of %q reads unknown column %q", t.Name, c), Detail{
						Check:    "condition_columns",
						Expected: "columns of defined tasks",
						Got:      c,
						Fix:      fmt.Sprintf("Define a task named %q or quote the name in backticks if it has spaces.", c),
					})
				case other.Pos >= t.Pos:
					result.fail(-4, fmt.Sprintf("Condition of %q reads %q, which is asked later", t.Name, c), Detail{
						Check:    "condition_order",
						Expected: fmt.Sprintf("%q before %q", c, t.Name),
						Got:      fmt.Sprintf("%q at %d, %q at %d", c, other.Pos+1, t.Name, t.Pos+1),
						Fix:      fmt.Sprintf("Move %q before %q in the task file.", c, t.Name),
					})
				default:
					result.Details = append(result.Details, Detail{Check: "condition_columns", Passed: true, Got: fmt.Sprintf("%s reads %s", t.Name, c)})
				}
			}
		}
	}

	if result.Passed {
		result.Message = "Tier 1 passed"
	}
	return result
}

// Tier2Drift compares saved columns to the current tasks. New tasks are
// backfilled with nulls and pass; removed tasks and changed kinds lose data
// on the next save and fail.
func (v *Validator) Tier2Drift(set *task.Set, stored *store.Table) *Result {
	result := &Result{Tier: 2, Passed: true}
	saved := map[string]store.Column{}
	for _, c := range stored.Columns {
		saved[c.Name] = c
	}

	for _, t := range set.Tasks() {
		c, ok := saved[t.Name]
		if !ok {
			result.Details = append(result.Details, Detail{
				Check: "new_column", Passed: true,
				Got: fmt.Sprintf("%s will be added with empty answers for %d record(s)", t.Name, len(stored.Records)),
			})
			continue
		}
		kind, known := v.reg.KindForColumnType(c.Type)
		if known && kind != t.Kind {
			result.fail(-1, fmt.Sprintf("Column %q changed kind", t.Name), Detail{
				Check:    "column_kind",
				Expected: t.Kind.String(),
				Got:      c.Type,
				Fix:      fmt.Sprintf("Export the saved annotations before running; answers to %q will be reset.", t.Name),
			})
		}
	}
	for _, c := range stored.Columns {
		if _, ok := set.Get(c.Name); !ok {
			result.fail(-2, fmt.Sprintf("Saved column %q has no task", c.Name), Detail{
				Check:    "removed_column",
				Expected: "a task for every saved column",
				Got:      c.Name,
				Fix:      fmt.Sprintf("Restore the %q task, or export the saved annotations before running.", c.Name),
			})
		}
	}

	if result.Passed {
		result.Message = "Tier 2 passed"
	}
	return result
}
