// Package command provides the static command, parser and rollback
// declarations supplied by feature modules, and the normalization rules
// that turn them into live records: implicit handler naming from
// sub-command tokens, default permissions and parser priorities.
package command

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyName is returned when a declaration carries no name. This is a
// fatal configuration error: a module listing such a declaration cannot be
// assembled.
var ErrEmptyName = errors.New("command: declaration with empty name")

// Priority orders parsers in the message pipeline. The zero value is
// PriorityLow, so an undeclared priority defaults to low.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
)

// String implements fmt.Stringer.
func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityMedium:
		return "medium"
	default:
		return "low"
	}
}

// Decl is a static command declaration. Name is the canonical id, unique
// within the owning module. Command overrides the user-visible invocation
// text and defaults to Name. Handler names the handler function and is
// derived from Name when empty. Permission defaults to the broadest tier.
type Decl struct {
	Name       string
	Command    string
	Handler    string
	Permission string
	IsHelper   bool
	DependsOn  []string
}

// ParserDecl is a static message-parser declaration.
type ParserDecl struct {
	Name          string
	Permission    string
	Priority      Priority
	FireAndForget bool
	DependsOn     []string
}

// RollbackDecl is a static rollback-handler declaration.
type RollbackDecl struct {
	Name string
}

// Command is a live, assembled command record consumed by the message
// pipeline.
type Command struct {
	Module     string // owning module, "<area>/<name>"
	ID         string // canonical id (declaration name)
	Command    string // invocable text, possibly renamed by the user
	Handler    string
	Permission string
	IsHelper   bool
}

// Parser is a live, assembled parser record.
type Parser struct {
	Module        string
	ID            string
	Permission    string
	Priority      Priority
	FireAndForget bool
}

// Rollback is a live, assembled rollback record.
type Rollback struct {
	Module  string
	ID      string
	Handler string
}

// DeriveHandler derives a handler name from a command name. A name without
// a sub-command token maps to "main". Otherwise the second space-delimited
// token is camel-cased across hyphens: "foo bar-baz" resolves to "barBaz".
func DeriveHandler(name string) string {
	fields := strings.Fields(name)
	if len(fields) < 2 {
		return "main"
	}
	parts := strings.Split(fields[1], "-")
	var b strings.Builder
	for i, p := range parts {
		if p == "" {
			continue
		}
		if i == 0 || b.Len() == 0 {
			b.WriteString(p)
			continue
		}
		b.WriteString(strings.ToUpper(p[:1]))
		b.WriteString(p[1:])
	}
	if b.Len() == 0 {
		return "main"
	}
	return b.String()
}

// Normalize validates a declaration and fills its implicit fields. The
// returned declaration has Command, Handler and Permission populated.
func (d Decl) Normalize(defaultPermission string) (Decl, error) {
	if strings.TrimSpace(d.Name) == "" {
		return Decl{}, ErrEmptyName
	}
	if d.Command == "" {
		d.Command = d.Name
	}
	if d.Handler == "" {
		d.Handler = DeriveHandler(d.Name)
	}
	if d.Permission == "" {
		d.Permission = defaultPermission
	}
	return d, nil
}

// Normalize validates a parser declaration and fills defaults.
func (d ParserDecl) Normalize(defaultPermission string) (ParserDecl, error) {
	if strings.TrimSpace(d.Name) == "" {
		return ParserDecl{}, fmt.Errorf("parser %w", ErrEmptyName)
	}
	if d.Permission == "" {
		d.Permission = defaultPermission
	}
	return d, nil
}
