package cppfront

import (
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// nodeText returns the source text of node, or "" for a nil node.
func nodeText(node *sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	return node.Content(source)
}

func fieldText(node *sitter.Node, field string, source []byte) string {
	return nodeText(node.ChildByFieldName(field), source)
}

// normName collapses whitespace and removes it wherever it does not
// separate two identifier characters, so "Box< int >" and "Box<int>" agree.
func normName(s string) string {
	s = strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
	if !strings.Contains(s, " ") {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == ' ' && i > 0 && i+1 < len(s) && isIdentByte(s[i-1]) && isIdentByte(s[i+1]) {
			b.WriteByte(' ')
			continue
		}
		if s[i] != ' ' {
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

func isIdentByte(c byte) bool {
	return c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

// stripArgs removes template argument lists: "Box<T>::get" becomes
// "Box::get". Operator names are returned unchanged.
func stripArgs(name string) string {
	if !strings.Contains(name, "<") || strings.Contains(name, "operator") {
		return name
	}
	var b strings.Builder
	depth := 0
	for i := 0; i < len(name); i++ {
		switch c := name[i]; {
		case c == '<':
			depth++
		case c == '>' && depth > 0:
			depth--
		case depth == 0:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// splitQualified splits "a::b::c" into "a::b" and "c", ignoring "::" inside
// template arguments.
func splitQualified(name string) (qualifier, last string) {
	depth := 0
	cut := -1
	for i := 0; i+1 < len(name); i++ {
		switch name[i] {
		case '<':
			depth++
		case '>':
			if depth > 0 {
				depth--
			}
		case ':':
			if depth == 0 && name[i+1] == ':' {
				cut = i
				i++
			}
		}
	}
	if cut < 0 {
		return "", name
	}
	return name[:cut], name[cut+2:]
}

// hasChild reports whether node has a direct child, named or not, of type typ.
func hasChild(node *sitter.Node, typ string) bool {
	for i := 0; i < int(node.ChildCount()); i++ {
		if node.Child(i).Type() == typ {
			return true
		}
	}
	return false
}

// hasStorage reports whether a declaration carries the storage class.
func hasStorage(node *sitter.Node, class string, source []byte) bool {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		c := node.NamedChild(i)
		if c.Type() == "storage_class_specifier" && nodeText(c, source) == class {
			return true
		}
	}
	return false
}

// declarators returns the children of node in the "declarator" field.
func declarators(node *sitter.Node) []*sitter.Node {
	var out []*sitter.Node
	for i := 0; i < int(node.ChildCount()); i++ {
		if node.FieldNameForChild(i) == "declarator" {
			out = append(out, node.Child(i))
		}
	}
	return out
}

// unwrapDeclarator strips pointer, reference, array, init and parenthesized
// wrappers until it reaches a function declarator or a name.
func unwrapDeclarator(node *sitter.Node) *sitter.Node {
	for node != nil {
		switch node.Type() {
		case "function_declarator", "identifier", "field_identifier", "type_identifier",
			"qualified_identifier", "destructor_name", "operator_name", "template_function":
			return node
		}
		next := node.ChildByFieldName("declarator")
		if next == nil && node.NamedChildCount() > 0 {
			next = node.NamedChild(int(node.NamedChildCount()) - 1)
		}
		if next == nil {
			return node
		}
		node = next
	}
	return nil
}

// isFunction reports whether an unwrapped declarator declares a function
// rather than a pointer to one.
func isFunction(node *sitter.Node) bool {
	if node == nil || node.Type() != "function_declarator" {
		return false
	}
	inner := node.ChildByFieldName("declarator")
	return inner == nil || inner.Type() != "parenthesized_declarator"
}

// declaredName returns the name an unwrapped declarator introduces.
func declaredName(node *sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	if node.Type() == "function_declarator" {
		return declaredName(unwrapDeclarator(node.ChildByFieldName("declarator")), source)
	}
	return normName(nodeText(node, source))
}

// innerIdentifier finds the identifier a (possibly abstract) parameter
// declarator names, or nil.
func innerIdentifier(node *sitter.Node) *sitter.Node {
	n := unwrapDeclarator(node)
	if n == nil {
		return nil
	}
	switch n.Type() {
	case "identifier", "field_identifier":
		return n
	}
	return nil
}

// paramSignature renders a parameter list by type only, so that a
// prototype and its definition produce the same key.
func paramSignature(params *sitter.Node, source []byte) string {
	if params == nil {
		return "()"
	}
	var parts []string
	for i := 0; i < int(params.ChildCount()); i++ {
		p := params.Child(i)
		switch p.Type() {
		case "(", ")", ",", "comment":
			continue
		case "...":
			parts = append(parts, "...")
			continue
		}
		start, end := p.StartByte(), p.EndByte()
		if def := p.ChildByFieldName("default_value"); def != nil {
			end = def.StartByte()
		}
		raw := string(source[start:end])
		if id := innerIdentifier(p.ChildByFieldName("declarator")); id != nil && id.StartByte() >= start && id.EndByte() <= end {
			raw = string(source[start:id.StartByte()]) + string(source[id.EndByte():end])
		}
		raw = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(raw), "="))
		parts = append(parts, normName(raw))
	}
	if len(parts) == 1 && parts[0] == "void" {
		parts = nil
	}
	return "(" + strings.Join(parts, ",") + ")"
}
