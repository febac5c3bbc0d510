// Package module holds the accumulator the builder fills for one
// translation unit.
package module

import "github.com/phobologic/cppmodule/internal/decl"

// Flags records the template context of a traversal path. Values are
// immutable; the Set methods only ever turn bits on.
type Flags struct {
	InTemplate       bool
	InSpecialization bool
}

// SetTemplate returns f with InTemplate set.
func (f Flags) SetTemplate() Flags {
	f.InTemplate = true
	return f
}

// SetSpecialization returns f with InSpecialization set.
func (f Flags) SetSpecialization() Flags {
	f.InSpecialization = true
	return f
}

// None reports whether no bit is set.
func (f Flags) None() bool {
	return !f.InTemplate && !f.InSpecialization
}

// Module is the ordered output of one builder run. Buckets are append-only;
// deduplication is the builder's job.
type Module struct {
	Name string

	Declarations         []*decl.Decl
	Definitions          []*decl.Decl
	TemplateDeclarations []*decl.Decl
	TemplateDefinitions  []*decl.Decl
	Asserts              []*decl.Decl
}

// New creates an empty module for the named translation unit.
func New(name string) *Module {
	return &Module{Name: name}
}

// AddDeclaration records d as declared under flags.
func (m *Module) AddDeclaration(d *decl.Decl, flags Flags) {
	add(&m.Declarations, &m.TemplateDeclarations, d, flags)
}

// AddDefinition records d as defined under flags.
func (m *Module) AddDefinition(d *decl.Decl, flags Flags) {
	add(&m.Definitions, &m.TemplateDefinitions, d, flags)
}

// AddAssert records a static assertion.
func (m *Module) AddAssert(d *decl.Decl) {
	m.Asserts = append(m.Asserts, d)
}

// add places template-scoped entities only in the template bucket, and
// specializations in both.
func add(plain, tmpl *[]*decl.Decl, d *decl.Decl, flags Flags) {
	if flags.InTemplate {
		*tmpl = append(*tmpl, d)
		return
	}
	*plain = append(*plain, d)
	if flags.InSpecialization {
		*tmpl = append(*tmpl, d)
	}
}

// Counts summarizes bucket sizes.
type Counts struct {
	Declarations         int
	Definitions          int
	TemplateDeclarations int
	TemplateDefinitions  int
	Asserts              int
}

// Counts returns the current bucket sizes.
func (m *Module) Counts() Counts {
	return Counts{
		Declarations:         len(m.Declarations),
		Definitions:          len(m.Definitions),
		TemplateDeclarations: len(m.TemplateDeclarations),
		TemplateDefinitions:  len(m.TemplateDefinitions),
		Asserts:              len(m.Asserts),
	}
}

// Total is the number of bucket entries, asserts excluded.
func (c Counts) Total() int {
	return c.Declarations + c.Definitions + c.TemplateDeclarations + c.TemplateDefinitions
}
