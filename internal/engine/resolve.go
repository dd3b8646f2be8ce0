package engine

import (
	"github.com/sbenjam1n/annotate/internal/task"
)

// Resolve returns the value of the first dependency whose condition holds
// for row. A record without stored answers never resolves.
func Resolve(row map[string]task.Value, deps []task.Dependency) (task.Value, bool) {
	if len(row) == 0 {
		return task.Value{}, false
	}
	for _, d := range deps {
		if d.Matches(row) {
			return d.Value, true
		}
	}
	return task.Value{}, false
}
