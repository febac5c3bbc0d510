// Package toon implements TOON (Token-Oriented Object Notation) encoding
// of built modules.
package toon

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/phobologic/cppmodule/internal/decl"
	"github.com/phobologic/cppmodule/internal/module"
	"github.com/phobologic/cppmodule/internal/specs"
)

var (
	needsQuoting = regexp.MustCompile(`[,:"\\{}\[\]]`)
	looksNumeric = regexp.MustCompile(`^-?(?:0|[1-9]\d*)(?:\.\d+)?$`)
	keywords     = map[string]struct{}{
		"true":  {},
		"false": {},
		"null":  {},
	}
)

// Unit is one built module and what was collected alongside it.
type Unit struct {
	Module       *module.Module
	Specs        []specs.Spec
	Header       bool
	SyntaxErrors int
}

var declColumns = []string{"kind", "name", "file", "line"}

// Encode converts built modules into TOON format. Bucket entries are
// written in the order they were appended.
func Encode(units []Unit) string {
	blocks := make([]string, 0, len(units))
	for _, u := range units {
		blocks = append(blocks, encodeUnit(u))
	}
	return strings.Join(blocks, "\n\n")
}

func encodeUnit(u Unit) string {
	m := u.Module
	var parts []string

	parts = append(parts, fmt.Sprintf("module: %s", encodeValue(m.Name)))
	parts = append(parts, fmt.Sprintf("header: %t", u.Header))
	if u.SyntaxErrors > 0 {
		parts = append(parts, fmt.Sprintf("syntax_errors: %d", u.SyntaxErrors))
	}

	parts = append(parts, formatTabular("declarations", declColumns, declRows(m.Declarations)))
	parts = append(parts, formatTabular("definitions", declColumns, declRows(m.Definitions)))
	parts = append(parts, formatTabular("template_declarations", declColumns, declRows(m.TemplateDeclarations)))
	parts = append(parts, formatTabular("template_definitions", declColumns, declRows(m.TemplateDefinitions)))

	var assertRows [][]string
	for _, d := range m.Asserts {
		assertRows = append(assertRows, []string{d.Name, d.Loc.File, fmt.Sprintf("%d", d.Loc.Line)})
	}
	parts = append(parts, formatTabular("asserts", []string{"condition", "file", "line"}, assertRows))

	if len(u.Specs) > 0 {
		var specRows [][]string
		for _, s := range u.Specs {
			specRows = append(specRows, []string{s.Decl.Name, fmt.Sprintf("%d", s.Decl.Loc.Line), s.Text})
		}
		parts = append(parts, formatTabular("specs", []string{"name", "line", "text"}, specRows))
	}

	return strings.Join(parts, "\n")
}

func declRows(ds []*decl.Decl) [][]string {
	rows := make([][]string, 0, len(ds))
	for _, d := range ds {
		rows = append(rows, []string{
			d.Kind.String(),
			d.Name,
			d.Loc.File,
			fmt.Sprintf("%d", d.Loc.Line),
		})
	}
	return rows
}

func formatTabular(name string, columns []string, rows [][]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s[%d]{%s}:", name, len(rows), strings.Join(columns, ","))
	for _, row := range rows {
		encoded := make([]string, len(row))
		for i, cell := range row {
			encoded[i] = encodeValue(cell)
		}
		fmt.Fprintf(&b, "\n  %s", strings.Join(encoded, ","))
	}
	return b.String()
}

func encodeValue(value string) string {
	if value == "" {
		return `""`
	}

	if value != strings.TrimSpace(value) {
		return quote(value)
	}

	if strings.ContainsAny(value, "\n\r\t") {
		return quote(value)
	}

	if _, ok := keywords[strings.ToLower(value)]; ok {
		return quote(value)
	}

	if looksNumeric.MatchString(value) {
		return value
	}

	if needsQuoting.MatchString(value) {
		return quote(value)
	}

	if strings.HasPrefix(value, "-") {
		return quote(value)
	}

	return value
}

func quote(value string) string {
	escaped := strings.ReplaceAll(value, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	escaped = strings.ReplaceAll(escaped, "\n", `\n`)
	escaped = strings.ReplaceAll(escaped, "\r", `\r`)
	escaped = strings.ReplaceAll(escaped, "\t", `\t`)
	return `"` + escaped + `"`
}
