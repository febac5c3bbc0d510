package decl

import "fmt"

// Graph is an arena of declarations. IDs are dense and start at 1.
// A Graph is not safe for concurrent mutation; once built it is treated as
// read-only and may be shared by readers.
type Graph struct {
	decls []*Decl
	root  ID
}

// NewGraph creates a graph whose root is a fresh translation unit.
func NewGraph(file string) *Graph {
	g := &Graph{decls: []*Decl{nil}}
	g.root = g.Add(&Decl{Kind: TranslationUnit, Loc: Loc{File: file}})
	return g
}

// Root returns the translation unit.
func (g *Graph) Root() ID { return g.root }

// Len returns the number of declarations, including the root.
func (g *Graph) Len() int { return len(g.decls) - 1 }

// Add stores d, assigns its ID and returns it. A declaration added without
// a Canonical link is its own canonical declaration.
func (g *Graph) Add(d *Decl) ID {
	d.ID = ID(len(g.decls))
	if d.Canonical == NoID {
		d.Canonical = d.ID
	}
	g.decls = append(g.decls, d)
	return d.ID
}

// Get returns the declaration with the given ID, or nil.
func (g *Graph) Get(id ID) *Decl {
	if id == NoID || int(id) >= len(g.decls) {
		return nil
	}
	return g.decls[id]
}

// MustGet is Get for IDs the caller knows to be valid.
func (g *Graph) MustGet(id ID) *Decl {
	d := g.Get(id)
	if d == nil {
		panic(fmt.Sprintf("decl: unknown id %d", id))
	}
	return d
}

// AddChild appends child to parent's child list.
func (g *Graph) AddChild(parent, child ID) {
	p := g.MustGet(parent)
	p.Children = append(p.Children, child)
}

// Redeclare records next as a later redeclaration of prev. next inherits
// prev's canonical declaration and definition.
func (g *Graph) Redeclare(prev, next ID) {
	p, n := g.MustGet(prev), g.MustGet(next)
	n.Previous = prev
	n.Canonical = p.Canonical
	if n.Definition == NoID {
		n.Definition = p.Definition
	}
}

// Redeclarations returns every occurrence of the entity id belongs to, in
// ID order.
func (g *Graph) Redeclarations(id ID) []ID {
	canon := g.MustGet(id).Canonical
	var out []ID
	for _, d := range g.decls[1:] {
		if d.Canonical == canon {
			out = append(out, d.ID)
		}
	}
	return out
}

// SetDefinition marks def as the defining occurrence of its entity and
// propagates the link to every redeclaration.
func (g *Graph) SetDefinition(def ID) {
	for _, id := range g.Redeclarations(def) {
		g.decls[id].Definition = def
	}
}

// AddSpecialization registers spec as a specialization of tmpl.
func (g *Graph) AddSpecialization(tmpl, spec ID) {
	t := g.MustGet(tmpl)
	t.Specializations = append(t.Specializations, spec)
	g.MustGet(spec).Specialization = true
}

// Walk calls fn for every declaration in ID order.
func (g *Graph) Walk(fn func(*Decl)) {
	for _, d := range g.decls[1:] {
		fn(d)
	}
}
