// Package decl defines the declaration graph consumed by the module builder.
//
// The graph is an arena: every declaration is addressed by a stable ID and
// all relationships (redeclaration chains, template specializations, friend
// targets, child lists) are stored as IDs rather than pointers. The graph is
// not a tree; the same declaration may be reachable through several edges.
package decl

import "fmt"

// ID identifies a declaration within a Graph.
type ID uint32

// NoID is the zero sentinel; no declaration has it.
const NoID ID = 0

// IsValid reports whether id refers to a declaration.
func (id ID) IsValid() bool { return id != NoID }

// Kind is the runtime kind of a declaration. The set is closed for the
// builder's dispatch, but new kinds may be appended; any kind the builder
// does not know is reported and dropped.
type Kind uint8

const (
	KindInvalid Kind = iota

	// Containers.
	TranslationUnit
	Namespace
	LinkageSpec

	// Types.
	Typedef
	TypeAlias
	Record    // C struct or union
	CXXRecord // C++ class, struct or union
	Enum
	EnumConstant
	TemplateTypeParm

	// Functions.
	Function
	Method
	Constructor
	Destructor

	// Values.
	Var
	Field
	IndirectField

	// Templates.
	VarTemplate
	FunctionTemplate
	ClassTemplate
	TypeAliasTemplate
	BuiltinTemplate

	// Structural.
	Friend
	StaticAssert
	Using
	UsingDirective
	UsingShadow
	AccessSpec
	Empty

	// Kinds the builder has no policy for.
	NamespaceAlias
	Label
)

var kindNames = [...]string{
	KindInvalid:       "Invalid",
	TranslationUnit:   "TranslationUnit",
	Namespace:         "Namespace",
	LinkageSpec:       "LinkageSpec",
	Typedef:           "Typedef",
	TypeAlias:         "TypeAlias",
	Record:            "Record",
	CXXRecord:         "CXXRecord",
	Enum:              "Enum",
	EnumConstant:      "EnumConstant",
	TemplateTypeParm:  "TemplateTypeParm",
	Function:          "Function",
	Method:            "CXXMethod",
	Constructor:       "CXXConstructor",
	Destructor:        "CXXDestructor",
	Var:               "Var",
	Field:             "Field",
	IndirectField:     "IndirectField",
	VarTemplate:       "VarTemplate",
	FunctionTemplate:  "FunctionTemplate",
	ClassTemplate:     "ClassTemplate",
	TypeAliasTemplate: "TypeAliasTemplate",
	BuiltinTemplate:   "BuiltinTemplate",
	Friend:            "Friend",
	StaticAssert:      "StaticAssert",
	Using:             "Using",
	UsingDirective:    "UsingDirective",
	UsingShadow:       "UsingShadow",
	AccessSpec:        "AccessSpec",
	Empty:             "Empty",
	NamespaceAlias:    "NamespaceAlias",
	Label:             "Label",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// IsContainer reports whether declarations of this kind only group children.
func (k Kind) IsContainer() bool {
	return k == TranslationUnit || k == Namespace || k == LinkageSpec
}

// IsFunction reports whether k is a function or one of its member forms.
func (k Kind) IsFunction() bool {
	return k == Function || k == Method || k == Constructor || k == Destructor
}

// IsType reports whether k declares a type name.
func (k Kind) IsType() bool {
	switch k {
	case Typedef, TypeAlias, Record, CXXRecord, Enum, TemplateTypeParm:
		return true
	}
	return false
}

// Loc is a source position.
type Loc struct {
	File string
	Line int
}

func (l Loc) String() string {
	if l.File == "" {
		return "<unknown>"
	}
	return fmt.Sprintf("%s:%d", l.File, l.Line)
}

// Decl is one declaration occurrence.
type Decl struct {
	ID   ID
	Kind Kind
	Name string // qualified, "::"-separated
	Loc  Loc

	// Previous is the immediately preceding redeclaration of the same entity.
	Previous ID
	// Canonical is the first declaration of the entity; equal to ID for it.
	Canonical ID
	// Definition is the defining occurrence of the entity, shared by every
	// redeclaration, or NoID if the entity is never defined.
	Definition ID

	// Children are owned declarations in source order: namespace and record
	// members, enumerators, local declarations of a function body.
	Children []ID
	// Specializations of a template, in the order they were produced.
	Specializations []ID
	// Pattern is the templated declaration of a class, function or variable
	// template.
	Pattern ID
	// Target is the declaration named by a friend declaration.
	Target ID

	Implicit         bool // compiler-synthesized
	Deleted          bool // "= delete"
	DependentContext bool // declared inside a template pattern
	Templated        bool // a template pattern or a member of one
	Specialization   bool // a template specialization
	StaticLocal      bool // a function-local variable with static storage

	// Comment is the documentation comment attached to this occurrence.
	Comment string
}

// IsDefinition reports whether this occurrence is the defining one.
func (d *Decl) IsDefinition() bool {
	return d.Definition == d.ID
}

// IsCanonical reports whether this occurrence is the first declaration.
func (d *Decl) IsCanonical() bool {
	return d.Canonical == NoID || d.Canonical == d.ID
}

func (d *Decl) String() string {
	if d.Name == "" {
		return fmt.Sprintf("%s#%d", d.Kind, d.ID)
	}
	return fmt.Sprintf("%s %s", d.Kind, d.Name)
}
