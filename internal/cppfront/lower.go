package cppfront

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/cppmodule/internal/decl"
)

// scope is where lowered declarations are attached and how they are named.
type scope struct {
	parent    decl.ID // owner of new declarations; NoID for template patterns
	prefix    string  // qualified name prefix
	record    string  // simple name of the enclosing class, "" outside classes
	dependent bool    // inside a template pattern
	outer     *scope  // nearest enclosing namespace scope
}

func (sc *scope) qualify(name string) string {
	if sc.prefix == "" {
		return name
	}
	return sc.prefix + "::" + name
}

// detached returns a scope for a template pattern: same naming, no owner.
func (sc *scope) detached() *scope {
	c := *sc
	c.parent = decl.NoID
	c.dependent = true
	return &c
}

// dependentScope keeps the owner but marks declarations template-dependent.
func (sc *scope) dependentScope() *scope {
	c := *sc
	c.dependent = true
	return &c
}

type bodyKind int

const (
	bodyNone bodyKind = iota
	bodyBlock
	bodyDeleted
	bodyDefaulted
)

// lowerer turns a tree-sitter C++ syntax tree into a declaration graph.
type lowerer struct {
	g      *decl.Graph
	source []byte
	file   string
	cMode  bool

	// last occurrence per entity key, for redeclaration chains
	last map[string]decl.ID
	// canonical template per qualified name
	templates map[string]decl.ID
	// qualified names of known classes
	records map[string]struct{}
}

func newLowerer(source []byte, file string, cMode bool) *lowerer {
	return &lowerer{
		g:         decl.NewGraph(file),
		source:    source,
		file:      file,
		cMode:     cMode,
		last:      make(map[string]decl.ID),
		templates: make(map[string]decl.ID),
		records:   make(map[string]struct{}),
	}
}

func (l *lowerer) topScope() *scope {
	sc := &scope{parent: l.g.Root()}
	sc.outer = sc
	return sc
}

func (l *lowerer) add(node *sitter.Node, sc *scope, d *decl.Decl) decl.ID {
	d.Loc = decl.Loc{File: l.file, Line: int(node.StartPoint().Row) + 1}
	id := l.g.Add(d)
	if sc.parent.IsValid() {
		l.g.AddChild(sc.parent, id)
	}
	return id
}

// link chains id to the previous occurrence of the same entity. The first
// defining occurrence becomes the definition of every redeclaration.
func (l *lowerer) link(key string, id decl.ID, defining bool) {
	if prev, ok := l.last[key]; ok {
		l.g.Redeclare(prev, id)
	}
	l.last[key] = id
	if defining && !l.g.MustGet(id).Definition.IsValid() {
		l.g.SetDefinition(id)
	}
}

// items lowers the named children of a declaration list, attaching each
// run of comments that ends on the line above a declaration to it.
func (l *lowerer) items(node *sitter.Node, sc *scope) {
	var (
		doc        []string
		docEnd     uint32
		prevEndRow = ^uint32(0)
	)
	for i := 0; i < int(node.NamedChildCount()); i++ {
		c := node.NamedChild(i)
		if c.Type() == "comment" {
			if c.StartPoint().Row == prevEndRow {
				continue // trailing comment of the previous item
			}
			if len(doc) > 0 && c.StartPoint().Row > docEnd+1 {
				doc = nil
			}
			doc = append(doc, nodeText(c, l.source))
			docEnd = c.EndPoint().Row
			continue
		}
		var comment string
		if len(doc) > 0 && c.StartPoint().Row <= docEnd+1 {
			comment = strings.Join(doc, "\n")
		}
		doc = nil
		prevEndRow = c.EndPoint().Row
		l.item(c, sc, comment)
	}
}

func (l *lowerer) item(node *sitter.Node, sc *scope, comment string) {
	switch node.Type() {
	case "namespace_definition":
		l.namespace(node, sc)
	case "linkage_specification":
		l.linkage(node, sc)
	case "declaration_list", "preproc_if", "preproc_ifdef", "preproc_else", "preproc_elif":
		l.items(node, sc)
	case "class_specifier", "struct_specifier", "union_specifier":
		l.record(node, sc, comment)
	case "enum_specifier":
		l.enum(node, sc)
	case "function_definition":
		l.functionDef(node, sc, comment)
	case "declaration", "field_declaration":
		l.declaration(node, sc, comment)
	case "type_definition":
		l.typedef(node, sc)
	case "alias_declaration":
		l.add(node, sc, &decl.Decl{
			Kind:      decl.TypeAlias,
			Name:      sc.qualify(normName(fieldText(node, "name", l.source))),
			Templated: sc.dependent,
		})
	case "using_declaration":
		kind := decl.Using
		if hasChild(node, "namespace") {
			kind = decl.UsingDirective
		}
		var target string
		if node.NamedChildCount() > 0 {
			target = normName(nodeText(node.NamedChild(int(node.NamedChildCount())-1), l.source))
		}
		l.add(node, sc, &decl.Decl{Kind: kind, Name: target})
	case "namespace_alias_definition":
		l.add(node, sc, &decl.Decl{
			Kind: decl.NamespaceAlias,
			Name: sc.qualify(normName(fieldText(node, "name", l.source))),
		})
	case "static_assert_declaration":
		l.add(node, sc, &decl.Decl{
			Kind: decl.StaticAssert,
			Name: normName(fieldText(node, "condition", l.source)),
		})
	case "friend_declaration":
		l.friend(node, sc)
	case "access_specifier":
		l.add(node, sc, &decl.Decl{Kind: decl.AccessSpec, Name: nodeText(node, l.source)})
	case "template_declaration":
		l.template(node, sc, comment)
	}
}

func (l *lowerer) namespace(node *sitter.Node, sc *scope) {
	name := normName(fieldText(node, "name", l.source))
	prefix := sc.prefix
	display := sc.qualify("(anonymous namespace)")
	if name != "" {
		prefix = sc.qualify(name)
		display = prefix
	}
	id := l.add(node, sc, &decl.Decl{Kind: decl.Namespace, Name: display})
	inner := &scope{parent: id, prefix: prefix}
	inner.outer = inner
	if body := node.ChildByFieldName("body"); body != nil {
		l.items(body, inner)
	}
}

func (l *lowerer) linkage(node *sitter.Node, sc *scope) {
	id := l.add(node, sc, &decl.Decl{
		Kind: decl.LinkageSpec,
		Name: "extern " + fieldText(node, "value", l.source),
	})
	inner := &scope{parent: id, prefix: sc.prefix}
	inner.outer = inner
	body := node.ChildByFieldName("body")
	switch {
	case body == nil:
	case body.Type() == "declaration_list":
		l.items(body, inner)
	default:
		l.item(body, inner, "")
	}
}

func (l *lowerer) record(node *sitter.Node, sc *scope, comment string) decl.ID {
	name := normName(fieldText(node, "name", l.source))
	body := node.ChildByFieldName("body")
	kind := decl.CXXRecord
	if l.cMode {
		kind = decl.Record
	}

	// Anonymous records still scope their members, so they get a name.
	simple := "(anonymous " + strings.TrimSuffix(node.Type(), "_specifier") + ")"
	qname := sc.qualify(simple)
	if name != "" {
		qname = sc.qualify(name)
		_, simple = splitQualified(stripArgs(name))
	}
	id := l.add(node, sc, &decl.Decl{
		Kind:      kind,
		Name:      qname,
		Templated: sc.dependent,
		Comment:   comment,
	})
	if name != "" {
		l.records[qname] = struct{}{}
		l.link("tag:"+qname, id, body != nil)
	} else if body != nil {
		l.g.SetDefinition(id)
	}

	if body != nil {
		inner := &scope{
			parent:    id,
			prefix:    qname,
			record:    simple,
			dependent: sc.dependent,
			outer:     sc.outer,
		}
		l.items(body, inner)
	}
	return id
}

func (l *lowerer) enum(node *sitter.Node, sc *scope) decl.ID {
	name := normName(fieldText(node, "name", l.source))
	body := node.ChildByFieldName("body")
	qname := sc.qualify(name)
	if name == "" {
		qname = sc.qualify("(anonymous enum)")
	}
	id := l.add(node, sc, &decl.Decl{Kind: decl.Enum, Name: qname, Templated: sc.dependent})
	if name != "" {
		l.link("enum:"+qname, id, body != nil)
	} else if body != nil {
		l.g.SetDefinition(id)
	}
	if body == nil {
		return id
	}

	// Unscoped enumerators live in the enclosing scope.
	prefix := sc.prefix
	if hasChild(node, "class") || hasChild(node, "struct") {
		prefix = qname
	}
	inner := &scope{parent: id, prefix: prefix, dependent: sc.dependent, outer: sc.outer}
	for i := 0; i < int(body.NamedChildCount()); i++ {
		c := body.NamedChild(i)
		if c.Type() != "enumerator" {
			continue
		}
		l.add(c, inner, &decl.Decl{
			Kind: decl.EnumConstant,
			Name: inner.qualify(normName(fieldText(c, "name", l.source))),
		})
	}
	return id
}

// typeSpecifier lowers a class or enum defined inline in a declaration,
// as in "struct S { ... } s;".
func (l *lowerer) typeSpecifier(node *sitter.Node, sc *scope) {
	t := node.ChildByFieldName("type")
	if t == nil || t.ChildByFieldName("body") == nil {
		return
	}
	switch t.Type() {
	case "class_specifier", "struct_specifier", "union_specifier":
		l.record(t, sc, "")
	case "enum_specifier":
		l.enum(t, sc)
	}
}

// declaration lowers variables, fields and function prototypes. It returns
// the functions and variables it created.
func (l *lowerer) declaration(node *sitter.Node, sc *scope, comment string) []decl.ID {
	l.typeSpecifier(node, sc)

	static := hasStorage(node, "static", l.source)
	external := hasStorage(node, "extern", l.source)
	field := node.Type() == "field_declaration"

	var out []decl.ID
	for _, d := range declarators(node) {
		inner := unwrapDeclarator(d)
		if isFunction(inner) {
			out = append(out, l.function(inner, sc, comment, bodyNone, nil))
			continue
		}
		name := declaredName(inner, l.source)
		if name == "" {
			continue
		}
		if sc.record != "" && !static {
			l.add(d, sc, &decl.Decl{Kind: decl.Field, Name: sc.qualify(name)})
			continue
		}
		initialized := d.Type() == "init_declarator" || (field && node.ChildByFieldName("default_value") != nil)
		defining := initialized || (!external && sc.record == "")
		id := l.add(d, sc, &decl.Decl{
			Kind:      decl.Var,
			Name:      sc.qualify(name),
			Templated: sc.dependent,
			Comment:   comment,
		})
		l.link("var:"+sc.qualify(name), id, defining)
		out = append(out, id)
	}
	return out
}

func (l *lowerer) typedef(node *sitter.Node, sc *scope) {
	l.typeSpecifier(node, sc)
	for _, d := range declarators(node) {
		name := declaredName(unwrapDeclarator(d), l.source)
		if name == "" {
			continue
		}
		l.add(d, sc, &decl.Decl{Kind: decl.Typedef, Name: sc.qualify(name), Templated: sc.dependent})
	}
}

func (l *lowerer) functionDef(node *sitter.Node, sc *scope, comment string) decl.ID {
	fd := unwrapDeclarator(node.ChildByFieldName("declarator"))
	if !isFunction(fd) {
		return decl.NoID
	}
	body := node.ChildByFieldName("body")
	kind := bodyNone
	switch {
	case body != nil:
		kind = bodyBlock
	case hasChild(node, "delete_method_clause"):
		kind = bodyDeleted
	case hasChild(node, "default_method_clause"):
		kind = bodyDefaulted
	}
	return l.function(fd, sc, comment, kind, body)
}

// function lowers one function declarator. Deleted and defaulted functions
// count as definitions.
func (l *lowerer) function(fd *sitter.Node, sc *scope, comment string, body bodyKind, block *sitter.Node) decl.ID {
	raw := declaredName(fd, l.source)
	kind, qname := l.classify(raw, sc)
	id := l.add(fd, sc, &decl.Decl{
		Kind:             kind,
		Name:             qname,
		Deleted:          body == bodyDeleted,
		DependentContext: sc.dependent,
		Templated:        sc.dependent,
		Comment:          comment,
	})
	l.link("func:"+qname+paramSignature(fd.ChildByFieldName("parameters"), l.source), id, body != bodyNone)
	if block != nil {
		l.locals(block, id, qname)
	}
	return id
}

// classify decides whether a function name declares a free function or a
// member, and returns its qualified name.
func (l *lowerer) classify(raw string, sc *scope) (decl.Kind, string) {
	qualifier, last := splitQualified(raw)
	if sc.dependent {
		qualifier = stripArgs(qualifier)
	}

	var class string
	qname := sc.qualify(raw)
	switch {
	case qualifier == "" && sc.record != "":
		class = sc.record
	case qualifier != "":
		full := sc.qualify(qualifier)
		if _, ok := l.records[full]; ok {
			_, class = splitQualified(stripArgs(qualifier))
		}
		qname = full + "::" + last
	}

	switch {
	case strings.HasPrefix(last, "~"):
		return decl.Destructor, qname
	case class == "":
		return decl.Function, qname
	case last == class:
		return decl.Constructor, qname
	}
	return decl.Method, qname
}

// locals records the variables declared in a function body, descending
// into nested blocks but not into local classes or lambdas.
func (l *lowerer) locals(node *sitter.Node, fn decl.ID, fnName string) {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		c := node.NamedChild(i)
		switch c.Type() {
		case "lambda_expression", "class_specifier", "struct_specifier", "union_specifier", "function_definition":
			continue
		case "declaration":
			static := hasStorage(c, "static", l.source)
			for _, d := range declarators(c) {
				inner := unwrapDeclarator(d)
				if isFunction(inner) {
					continue
				}
				name := declaredName(inner, l.source)
				if name == "" {
					continue
				}
				id := l.g.Add(&decl.Decl{
					Kind:        decl.Var,
					Name:        fnName + "::" + name,
					Loc:         decl.Loc{File: l.file, Line: int(d.StartPoint().Row) + 1},
					StaticLocal: static,
				})
				l.g.AddChild(fn, id)
				l.g.SetDefinition(id)
			}
			continue
		}
		l.locals(c, fn, fnName)
	}
}

// friend lowers the befriended function in the enclosing namespace scope,
// without making it a member of anything, and points a Friend at it.
// Befriended classes name no declaration.
func (l *lowerer) friend(node *sitter.Node, sc *scope) {
	fsc := &scope{prefix: sc.outer.prefix, dependent: sc.dependent, outer: sc.outer}
	var target decl.ID
	for i := 0; i < int(node.NamedChildCount()) && !target.IsValid(); i++ {
		c := node.NamedChild(i)
		switch c.Type() {
		case "declaration":
			for _, d := range declarators(c) {
				if inner := unwrapDeclarator(d); isFunction(inner) {
					target = l.function(inner, fsc, "", bodyNone, nil)
					break
				}
			}
		case "function_definition":
			target = l.functionDef(c, fsc, "")
		}
	}
	l.add(node, sc, &decl.Decl{Kind: decl.Friend, Target: target})
}

// template lowers a template declaration. Primary templates get a template
// node whose pattern is lowered without an owner; explicit specializations
// are attached to their primary template.
func (l *lowerer) template(node *sitter.Node, sc *scope, comment string) {
	var inner *sitter.Node
	for i := int(node.NamedChildCount()) - 1; i >= 0; i-- {
		c := node.NamedChild(i)
		if c.Type() != "comment" && c.Type() != "template_parameter_list" {
			inner = c
			break
		}
	}
	if inner == nil {
		return
	}

	params := node.ChildByFieldName("parameters")
	if params == nil || params.NamedChildCount() == 0 {
		l.specialization(inner, sc, comment)
		return
	}

	switch inner.Type() {
	case "class_specifier", "struct_specifier", "union_specifier":
		if n := inner.ChildByFieldName("name"); n != nil && n.Type() == "template_type" {
			// Partial specialization: a pattern that is also a specialization.
			id := l.record(inner, sc.dependentScope(), comment)
			l.g.MustGet(id).Specialization = true
			return
		}
		pattern := l.record(inner, sc.detached(), comment)
		l.wrap(node, sc, decl.ClassTemplate, pattern)
	case "function_definition":
		l.functionTemplate(node, sc, l.functionDef(inner, sc.detached(), comment))
	case "declaration", "field_declaration":
		for _, id := range l.declaration(inner, sc.detached(), comment) {
			if l.g.MustGet(id).Kind == decl.Var {
				l.wrap(node, sc, decl.VarTemplate, id)
				continue
			}
			l.functionTemplate(node, sc, id)
		}
	case "alias_declaration":
		l.add(node, sc, &decl.Decl{
			Kind:      decl.TypeAliasTemplate,
			Name:      sc.qualify(normName(fieldText(inner, "name", l.source))),
			Templated: true,
		})
	case "template_declaration":
		l.template(inner, sc.dependentScope(), comment)
	default:
		l.item(inner, sc.dependentScope(), comment)
	}
}

// functionTemplate wraps a function pattern, unless it is the out-of-line
// definition of a class template member, which is attached as a plain
// dependent member instead. Member templates of ordinary classes are
// wrapped like any other function template.
func (l *lowerer) functionTemplate(node *sitter.Node, sc *scope, pattern decl.ID) {
	if !pattern.IsValid() {
		return
	}
	p := l.g.MustGet(pattern)
	if p.Kind != decl.Function && sc.record == "" && l.classTemplate(p.Name) {
		if sc.parent.IsValid() {
			l.g.AddChild(sc.parent, pattern)
		}
		return
	}
	l.wrap(node, sc, decl.FunctionTemplate, pattern)
}

// classTemplate reports whether the class qualifying member is a known
// class template.
func (l *lowerer) classTemplate(member string) bool {
	class, _ := splitQualified(member)
	id, ok := l.templates[class]
	return ok && l.g.MustGet(id).Kind == decl.ClassTemplate
}

// wrap creates the template node for pattern and registers it so later
// explicit specializations find it.
func (l *lowerer) wrap(node *sitter.Node, sc *scope, kind decl.Kind, pattern decl.ID) decl.ID {
	p := l.g.MustGet(pattern)
	id := l.add(node, sc, &decl.Decl{
		Kind:      kind,
		Name:      p.Name,
		Pattern:   pattern,
		Templated: true,
		Comment:   p.Comment,
	})
	l.link("template:"+p.Name, id, p.IsDefinition())
	if _, ok := l.templates[p.Name]; !ok {
		l.templates[p.Name] = id
	}
	return id
}

func (l *lowerer) specialization(node *sitter.Node, sc *scope, comment string) {
	var ids []decl.ID
	switch node.Type() {
	case "class_specifier", "struct_specifier", "union_specifier":
		ids = append(ids, l.record(node, sc, comment))
	case "function_definition":
		ids = append(ids, l.functionDef(node, sc, comment))
	case "declaration", "field_declaration":
		ids = l.declaration(node, sc, comment)
	default:
		l.item(node, sc, comment)
		return
	}
	for _, id := range ids {
		if !id.IsValid() {
			continue
		}
		d := l.g.MustGet(id)
		if tmpl, ok := l.templates[stripArgs(d.Name)]; ok {
			l.g.AddSpecialization(tmpl, id)
		} else {
			d.Specialization = true
		}
	}
}
