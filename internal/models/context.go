package models

import "fmt"

// ContextLevel identifies the kind of object a privacy context belongs to.
type ContextLevel int

const (
	ContextSystem   ContextLevel = 10
	ContextUser     ContextLevel = 30
	ContextCategory ContextLevel = 40
	ContextCourse   ContextLevel = 50
	ContextModule   ContextLevel = 70
	ContextBlock    ContextLevel = 80
)

func (l ContextLevel) String() string {
	switch l {
	case ContextSystem:
		return "system"
	case ContextUser:
		return "user"
	case ContextCategory:
		return "category"
	case ContextCourse:
		return "course"
	case ContextModule:
		return "module"
	case ContextBlock:
		return "block"
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// ParseContextLevel accepts the names returned by ContextLevel.String.
func ParseContextLevel(s string) (ContextLevel, error) {
	for _, l := range []ContextLevel{ContextSystem, ContextUser, ContextCategory, ContextCourse, ContextModule, ContextBlock} {
		if l.String() == s {
			return l, nil
		}
	}
	return 0, fmt.Errorf("unknown context level %q", s)
}

// Context scopes privacy requests. For module contexts InstanceID is the course
// module id stored in the ledger's cm column.
type Context struct {
	Level      ContextLevel `json:"level"`
	InstanceID int64        `json:"instanceid"`
}

// ModuleContext returns the context of course module cm.
func ModuleContext(cm int64) Context {
	return Context{Level: ContextModule, InstanceID: cm}
}

// IsModule reports whether c is a course module context.
func (c Context) IsModule() bool {
	return c.Level == ContextModule && c.InstanceID > 0
}
