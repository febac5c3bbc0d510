// Package cppfront lowers C and C++ sources into declaration graphs using
// the tree-sitter C++ grammar.
//
// The lowering is syntactic. Redeclarations are linked by qualified name
// (and parameter types for functions) within one file, and members are
// recognised from the enclosing class or a qualifier naming a class seen
// earlier in the file.
package cppfront

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/phobologic/cppmodule/internal/decl"
	"github.com/phobologic/cppmodule/internal/lang"
)

var tracer = otel.Tracer("cppmodule.cppfront")

// Result is the outcome of lowering one file.
type Result struct {
	Graph *decl.Graph

	// SyntaxErrors counts error and missing nodes in the tree. Lowering
	// continues past them.
	SyntaxErrors int
}

// Parser lowers source files of one language. It is not safe for
// concurrent use; create one per goroutine.
type Parser struct {
	lang   *lang.Language
	parser *sitter.Parser
}

// NewParser returns a parser for l.
func NewParser(l *lang.Language) *Parser {
	return &Parser{lang: l, parser: l.NewParser()}
}

// Parse lowers source into a declaration graph rooted at a translation unit
// for file. An empty source yields a graph holding only the root.
func (p *Parser) Parse(ctx context.Context, source []byte, file string) (*Result, error) {
	ctx, span := tracer.Start(ctx, "cppfront.Parse",
		trace.WithAttributes(
			attribute.String("file", file),
			attribute.String("language", p.lang.Name),
			attribute.Int("bytes", len(source)),
		),
	)
	defer span.End()

	l := newLowerer(source, file, p.lang.CMode)
	if len(source) == 0 {
		return &Result{Graph: l.g}, nil
	}

	tree, err := p.parser.ParseCtx(ctx, nil, source)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("parsing %s: %w", file, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	res := &Result{Graph: l.g}
	if root.HasError() {
		res.SyntaxErrors = countErrors(root)
	}
	l.items(root, l.topScope())

	span.SetAttributes(
		attribute.Int("declarations", l.g.Len()),
		attribute.Int("syntax_errors", res.SyntaxErrors),
	)
	return res, nil
}

func countErrors(node *sitter.Node) int {
	n := 0
	if node.IsError() || node.IsMissing() {
		n++
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		n += countErrors(node.Child(i))
	}
	return n
}
