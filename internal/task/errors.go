package task

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateTask     = errors.New("duplicate task")
	ErrUnknownKind       = errors.New("unknown task kind")
	ErrInvalidDependency = errors.New("invalid dependency")
	ErrInvalidOrder      = errors.New("invalid task order")
	ErrInvalidTask       = errors.New("invalid task definition")
	ErrKeyCollision      = errors.New("reserved key collision")
)

// ConfigError is a construction-time failure. It is fatal and must be
// reported before any annotation session starts.
type ConfigError struct {
	Kind error
	Task string
	Msg  string
}

func (e *ConfigError) Error() string {
	if e == nil {
		return ""
	}
	prefix := e.Kind.Error()
	if e.Task != "" {
		prefix = fmt.Sprintf("%s %q", prefix, e.Task)
	}
	if e.Msg == "" {
		return prefix
	}
	return prefix + ": " + e.Msg
}

func (e *ConfigError) Unwrap() error { return e.Kind }

func configErrorf(kind error, task, format string, args ...any) error {
	return &ConfigError{Kind: kind, Task: task, Msg: fmt.Sprintf(format, args...)}
}

// Invalid is returned by Task.Validate when raw input cannot be turned into
// a value. Callers check for it with errors.As and re-prompt with Message.
type Invalid struct {
	Message string
}

func (e *Invalid) Error() string { return e.Message }

// IsInvalid reports whether err is a validation rejection.
func IsInvalid(err error) bool {
	var inv *Invalid
	return errors.As(err, &inv)
}
