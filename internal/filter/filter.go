// Package filter decides which declarations are observable in a module.
package filter

import (
	"fmt"
	"strings"

	"github.com/phobologic/cppmodule/internal/decl"
)

// What is how much of a declaration to expose. Values are ordered.
type What int

const (
	Nothing What = iota
	Declaration
	Definition
)

func (w What) String() string {
	switch w {
	case Nothing:
		return "nothing"
	case Declaration:
		return "declaration"
	case Definition:
		return "definition"
	}
	return fmt.Sprintf("What(%d)", int(w))
}

// ParseWhat converts a config string to a What.
func ParseWhat(s string) (What, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "nothing", "none":
		return Nothing, nil
	case "declaration", "decl":
		return Declaration, nil
	case "definition", "def":
		return Definition, nil
	}
	return Nothing, fmt.Errorf("unknown inclusion level %q", s)
}

// Filter classifies a declaration. Implementations must be pure and total
// over every kind; the builder may call them more than once per entity.
type Filter interface {
	ShouldInclude(d *decl.Decl) What
}

// Func adapts a function to the Filter interface.
type Func func(d *decl.Decl) What

func (f Func) ShouldInclude(d *decl.Decl) What { return f(d) }

// Everything exposes every declaration at definition level.
var Everything Filter = Func(func(*decl.Decl) What { return Definition })
