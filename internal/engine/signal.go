package engine

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sbenjam1n/annotate/internal/task"
)

// Signal is the outcome of one record visit.
type Signal int

const (
	// Continue means every task for the record was answered or auto-filled.
	Continue Signal = iota
	// Previous moves the cursor back one record.
	Previous
	// Next moves the cursor forward without finishing the record.
	Next
	// Exit ends the session.
	Exit
)

func (s Signal) String() string {
	switch s {
	case Continue:
		return "continue"
	case Previous:
		return "previous"
	case Next:
		return "next"
	case Exit:
		return "exit"
	}
	return fmt.Sprintf("Signal(%d)", int(s))
}

// Keys are the reserved single-character inputs.
type Keys struct {
	Exit     string `mapstructure:"exit"`
	Previous string `mapstructure:"previous"`
	Next     string `mapstructure:"next"`
	Null     string `mapstructure:"null"`
}

// DefaultKeys returns the stock key bindings.
func DefaultKeys() Keys {
	return Keys{Exit: ".", Previous: "<", Next: ">", Null: task.DefaultNullToken}
}

// Signal maps raw input to a navigation signal.
func (k Keys) Signal(raw string) (Signal, bool) {
	switch raw {
	case k.Exit:
		return Exit, true
	case k.Previous:
		return Previous, true
	case k.Next:
		return Next, true
	}
	return Continue, false
}

// Validate checks that every key is a single character and that no two keys
// are the same.
func (k Keys) Validate() error {
	named := []struct{ name, key string }{
		{"exit", k.Exit}, {"previous", k.Previous}, {"next", k.Next}, {"null", k.Null},
	}
	seen := make(map[string]string, len(named))
	for _, n := range named {
		if utf8.RuneCountInString(n.key) != 1 {
			return &task.ConfigError{Kind: task.ErrKeyCollision, Msg: fmt.Sprintf("%s key %q must be a single character", n.name, n.key)}
		}
		if other, dup := seen[n.key]; dup {
			return &task.ConfigError{Kind: task.ErrKeyCollision, Msg: fmt.Sprintf("%s and %s keys are both %q", other, n.name, n.key)}
		}
		seen[n.key] = n.name
	}
	return nil
}

// CheckTasks reports navigation keys that a task would accept as an answer.
// Free-text tasks accept anything and are skipped; on those tasks the
// navigation keys always win.
func (k Keys) CheckTasks(set *task.Set) error {
	var clashes []string
	for _, t := range set.Tasks() {
		if t.Kind == task.KindString {
			continue
		}
		for _, key := range []string{k.Exit, k.Previous, k.Next} {
			if _, err := t.Validate(key); err == nil {
				clashes = append(clashes, fmt.Sprintf("%q is valid input for %q", key, t.Name))
			}
		}
		if !t.Nullable {
			continue
		}
		if t.NullToken != "" && t.NullToken != k.Null {
			clashes = append(clashes, fmt.Sprintf("task %q uses null token %q, configured %q", t.Name, t.NullToken, k.Null))
		}
		null := t.NullToken
		if null == "" {
			null = k.Null
		}
		// the null token is checked before the categories
		for _, c := range t.Categories {
			if c.Code == null {
				clashes = append(clashes, fmt.Sprintf("category code %q of %q is the null token and cannot be chosen", c.Code, t.Name))
			}
		}
	}
	if len(clashes) > 0 {
		return &task.ConfigError{Kind: task.ErrKeyCollision, Msg: strings.Join(clashes, "; ")}
	}
	return nil
}

// NavigationHelp lists the keys usable at the current position. A fresh
// record cannot be skipped, and there is nothing before the first record or
// after the last revisited one.
func NavigationHelp(k Keys, fresh, first, last bool) string {
	exit := task.Option(k.Exit, "exit")
	prev := task.Option(k.Previous, "previous")
	next := task.Option(k.Next, "next")
	switch {
	case fresh && first:
		return exit
	case fresh:
		return exit + prev
	case first:
		return exit + next
	case last:
		return exit + prev
	}
	return exit + prev + next
}
