// Package specs collects documentation comments attached to definitions.
package specs

import (
	"strings"

	"github.com/phobologic/cppmodule/internal/decl"
)

// Collector receives each function definition that carries a doc comment.
type Collector interface {
	AddSpecification(def *decl.Decl, comment string)
}

// Spec is one recorded specification.
type Spec struct {
	Decl *decl.Decl
	Text string
}

// Recorder is a Collector that keeps specifications in call order.
type Recorder struct {
	Specs []Spec
}

// AddSpecification implements Collector. Empty comments are dropped.
func (r *Recorder) AddSpecification(def *decl.Decl, comment string) {
	text := StripComment(comment)
	if text == "" {
		return
	}
	r.Specs = append(r.Specs, Spec{Decl: def, Text: text})
}

// Discard is a Collector that ignores everything.
type Discard struct{}

func (Discard) AddSpecification(*decl.Decl, string) {}

// StripComment removes C and C++ comment markers and joins the remaining
// lines with "\n".
func StripComment(raw string) string {
	var lines []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "///"), strings.HasPrefix(line, "//!"):
			line = line[3:]
		case strings.HasPrefix(line, "//"):
			line = line[2:]
		default:
			line = strings.TrimPrefix(line, "/**")
			line = strings.TrimPrefix(line, "/*!")
			line = strings.TrimPrefix(line, "/*")
			line = strings.TrimSuffix(line, "*/")
			line = strings.TrimSpace(line)
			if line != "*" {
				line = strings.TrimPrefix(line, "* ")
			}
			if line == "*" {
				line = ""
			}
		}
		lines = append(lines, strings.TrimSpace(line))
	}

	// Drop leading and trailing blank lines.
	start, end := 0, len(lines)
	for start < end && lines[start] == "" {
		start++
	}
	for end > start && lines[end-1] == "" {
		end--
	}
	return strings.Join(lines[start:end], "\n")
}
