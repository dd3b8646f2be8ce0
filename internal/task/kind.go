package task

import (
	"fmt"
	"strings"
)

// Kind discriminates how a task turns raw input into a value.
type Kind int

const (
	KindString Kind = iota
	KindRegex
	KindInt
	KindFloat
	KindBool
	KindCategory
	KindDate
)

var kindNames = [...]string{
	KindString:   "str",
	KindRegex:    "regex",
	KindInt:      "int",
	KindFloat:    "float",
	KindBool:     "bool",
	KindCategory: "category",
	KindDate:     "date",
}

// Kinds lists every supported kind in declaration order.
func Kinds() []Kind {
	return []Kind{KindString, KindRegex, KindInt, KindFloat, KindBool, KindCategory, KindDate}
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// ParseKind maps a kind token onto a Kind.
func ParseKind(token string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(token)) {
	case "str", "string", "text":
		return KindString, nil
	case "regex":
		return KindRegex, nil
	case "int", "integer":
		return KindInt, nil
	case "float", "number":
		return KindFloat, nil
	case "bool", "boolean":
		return KindBool, nil
	case "category", "choice":
		return KindCategory, nil
	case "date":
		return KindDate, nil
	}
	return 0, &ConfigError{Kind: ErrUnknownKind, Msg: fmt.Sprintf("%q (choose from %s)", token, strings.Join(kindNames[:], ", "))}
}
