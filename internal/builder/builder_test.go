package builder

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/cppmodule/internal/decl"
	"github.com/phobologic/cppmodule/internal/filter"
	"github.com/phobologic/cppmodule/internal/module"
	"github.com/phobologic/cppmodule/internal/specs"
)

// tree is a small helper for building graphs by hand.
type tree struct {
	g *decl.Graph
}

func newTree() *tree {
	return &tree{g: decl.NewGraph("test.cpp")}
}

// add creates d and, if parent is valid, appends it to parent's children.
func (tr *tree) add(parent decl.ID, d decl.Decl) decl.ID {
	id := tr.g.Add(&d)
	if parent.IsValid() {
		tr.g.AddChild(parent, id)
	}
	return id
}

// defined adds a declaration that is its own definition.
func (tr *tree) defined(parent decl.ID, d decl.Decl) decl.ID {
	id := tr.add(parent, d)
	tr.g.SetDefinition(id)
	return id
}

func (tr *tree) root() decl.ID { return tr.g.Root() }

func build(t *testing.T, tr *tree, f filter.Filter, opts Options) (*module.Module, *specs.Recorder) {
	t.Helper()
	m := module.New("test.cpp")
	rec := &specs.Recorder{}
	require.NoError(t, Build(context.Background(), tr.g, m, f, rec, opts))
	return m, rec
}

func names(ds []*decl.Decl) []string {
	out := []string{}
	for _, d := range ds {
		out = append(out, d.Name)
	}
	return out
}

func assertNames(t *testing.T, bucket string, got []*decl.Decl, want ...string) {
	t.Helper()
	if want == nil {
		want = []string{}
	}
	if diff := cmp.Diff(want, names(got)); diff != "" {
		t.Errorf("%s mismatch (-want +got):\n%s", bucket, diff)
	}
}

func TestFriendRedirectVisitsOnce(t *testing.T) {
	t.Parallel()

	tr := newTree()
	s := tr.defined(tr.root(), decl.Decl{Kind: decl.CXXRecord, Name: "S"})
	m := tr.defined(s, decl.Decl{Kind: decl.Method, Name: "S::m"})
	other := tr.defined(tr.root(), decl.Decl{Kind: decl.CXXRecord, Name: "T"})
	tr.add(other, decl.Decl{Kind: decl.Friend, Target: m})
	tr.add(tr.root(), decl.Decl{Kind: decl.Friend, Target: m})

	mod, _ := build(t, tr, filter.Everything, Options{})
	assertNames(t, "definitions", mod.Definitions, "S::m", "S", "T")
	assert.Empty(t, mod.Declarations)
}

func TestChildrenBeforeRecord(t *testing.T) {
	t.Parallel()

	tr := newTree()
	ns := tr.add(tr.root(), decl.Decl{Kind: decl.Namespace, Name: "ns"})
	s := tr.defined(ns, decl.Decl{Kind: decl.CXXRecord, Name: "ns::S"})
	tr.add(s, decl.Decl{Kind: decl.Field, Name: "ns::S::x"})
	tr.add(s, decl.Decl{Kind: decl.AccessSpec})
	tr.defined(s, decl.Decl{Kind: decl.Constructor, Name: "ns::S::S"})
	tr.defined(s, decl.Decl{Kind: decl.Destructor, Name: "ns::S::~S"})
	tr.defined(ns, decl.Decl{Kind: decl.Function, Name: "ns::f"})

	mod, _ := build(t, tr, filter.Everything, Options{})
	assertNames(t, "definitions", mod.Definitions, "ns::S::S", "ns::S::~S", "ns::S", "ns::f")
}

func TestDefinitionTakesPrecedence(t *testing.T) {
	t.Parallel()

	tr := newTree()
	first := tr.add(tr.root(), decl.Decl{Kind: decl.Function, Name: "f"})
	def := tr.add(tr.root(), decl.Decl{Kind: decl.Function, Name: "f"})
	tr.g.Redeclare(first, def)
	tr.g.SetDefinition(def)

	mod, _ := build(t, tr, filter.Everything, Options{})
	require.Len(t, mod.Definitions, 1)
	assert.Equal(t, def, mod.Definitions[0].ID)
	assert.Empty(t, mod.Declarations)
}

func TestFirstDeclarationOnly(t *testing.T) {
	t.Parallel()

	for _, kind := range []decl.Kind{decl.Function, decl.CXXRecord, decl.Record} {
		t.Run(kind.String(), func(t *testing.T) {
			t.Parallel()

			tr := newTree()
			first := tr.add(tr.root(), decl.Decl{Kind: kind, Name: "x"})
			second := tr.add(tr.root(), decl.Decl{Kind: kind, Name: "x"})
			tr.g.Redeclare(first, second)

			mod, _ := build(t, tr, filter.Everything, Options{})
			require.Len(t, mod.Declarations, 1)
			assert.Equal(t, first, mod.Declarations[0].ID)
			assert.Empty(t, mod.Definitions)
		})
	}
}

func TestFilterLevels(t *testing.T) {
	t.Parallel()

	tr := newTree()
	tr.defined(tr.root(), decl.Decl{Kind: decl.Function, Name: "shown"})
	tr.defined(tr.root(), decl.Decl{Kind: decl.Function, Name: "declared"})
	tr.defined(tr.root(), decl.Decl{Kind: decl.Function, Name: "hidden"})
	tr.add(tr.root(), decl.Decl{Kind: decl.Function, Name: "proto"})

	f := filter.Func(func(d *decl.Decl) filter.What {
		switch d.Name {
		case "declared":
			return filter.Declaration
		case "hidden":
			return filter.Nothing
		}
		return filter.Definition
	})

	mod, _ := build(t, tr, f, Options{})
	assertNames(t, "definitions", mod.Definitions, "shown")
	assertNames(t, "declarations", mod.Declarations, "declared", "proto")
}

func TestTemplateSpecializations(t *testing.T) {
	t.Parallel()

	setup := func() *tree {
		tr := newTree()
		tmpl := tr.add(tr.root(), decl.Decl{Kind: decl.FunctionTemplate, Name: "max", Templated: true})
		for _, n := range []string{"max<int>", "max<long>", "max<char>"} {
			spec := tr.defined(decl.NoID, decl.Decl{Kind: decl.Function, Name: n})
			tr.g.AddSpecialization(tmpl, spec)
		}
		return tr
	}

	t.Run("templates disabled", func(t *testing.T) {
		t.Parallel()
		mod, _ := build(t, setup(), filter.Everything, Options{})
		assertNames(t, "definitions", mod.Definitions, "max<int>", "max<long>", "max<char>")
		assertNames(t, "template definitions", mod.TemplateDefinitions, "max<int>", "max<long>", "max<char>")
		assert.Empty(t, mod.TemplateDeclarations)
	})

	t.Run("templates enabled", func(t *testing.T) {
		t.Parallel()
		mod, _ := build(t, setup(), filter.Everything, Options{Templates: true})
		assertNames(t, "definitions", mod.Definitions, "max<int>", "max<long>", "max<char>")
		assertNames(t, "template definitions", mod.TemplateDefinitions, "max", "max<int>", "max<long>", "max<char>")
	})
}

func TestClassTemplate(t *testing.T) {
	t.Parallel()

	setup := func() *tree {
		tr := newTree()
		pattern := tr.defined(decl.NoID, decl.Decl{Kind: decl.CXXRecord, Name: "Box", Templated: true})
		tr.defined(pattern, decl.Decl{Kind: decl.Method, Name: "Box::get", DependentContext: true, Templated: true})
		tmpl := tr.add(tr.root(), decl.Decl{Kind: decl.ClassTemplate, Name: "Box", Pattern: pattern})

		spec := tr.defined(decl.NoID, decl.Decl{Kind: decl.CXXRecord, Name: "Box<int>"})
		tr.defined(spec, decl.Decl{Kind: decl.Method, Name: "Box<int>::get"})
		tr.g.AddSpecialization(tmpl, spec)
		// The explicit specialization also appears in its enclosing scope.
		tr.g.AddChild(tr.root(), spec)
		return tr
	}

	t.Run("templates disabled", func(t *testing.T) {
		t.Parallel()
		mod, _ := build(t, setup(), filter.Everything, Options{})
		assertNames(t, "definitions", mod.Definitions, "Box<int>::get", "Box<int>")
		assertNames(t, "template definitions", mod.TemplateDefinitions, "Box<int>::get", "Box<int>")
	})

	t.Run("templates enabled", func(t *testing.T) {
		t.Parallel()
		mod, _ := build(t, setup(), filter.Everything, Options{Templates: true})
		assertNames(t, "definitions", mod.Definitions, "Box<int>::get", "Box<int>")
		assertNames(t, "template definitions", mod.TemplateDefinitions,
			"Box::get", "Box", "Box<int>::get", "Box<int>")
	})
}

func TestSpecializationOutsideTemplateSkipped(t *testing.T) {
	t.Parallel()

	tr := newTree()
	tr.defined(tr.root(), decl.Decl{Kind: decl.CXXRecord, Name: "Box<int>", Specialization: true})

	mod, _ := build(t, tr, filter.Everything, Options{Templates: true})
	assert.Empty(t, mod.Definitions)
	assert.Empty(t, mod.TemplateDefinitions)
}

func TestImplicitRecordSkipped(t *testing.T) {
	t.Parallel()

	tr := newTree()
	s := tr.defined(tr.root(), decl.Decl{Kind: decl.CXXRecord, Name: "S", Implicit: true})
	tr.defined(s, decl.Decl{Kind: decl.Method, Name: "S::m"})
	tr.defined(s, decl.Decl{Kind: decl.Var, Name: "S::count", Templated: true})
	tr.add(s, decl.Decl{Kind: decl.Function, Name: "S::helper"})
	tr.defined(tr.root(), decl.Decl{Kind: decl.Function, Name: "f"})

	mod, _ := build(t, tr, filter.Everything, Options{Templates: true})
	assertNames(t, "definitions", mod.Definitions, "f")
	assert.Empty(t, mod.Declarations)
	assert.Empty(t, mod.TemplateDefinitions)
	assert.Empty(t, mod.TemplateDeclarations)
}

func TestVarTemplate(t *testing.T) {
	t.Parallel()

	tr := newTree()
	tmpl := tr.add(tr.root(), decl.Decl{Kind: decl.VarTemplate, Name: "pi", Templated: true})
	spec := tr.defined(decl.NoID, decl.Decl{Kind: decl.Var, Name: "pi<float>", Templated: true})
	tr.g.AddSpecialization(tmpl, spec)

	mod, _ := build(t, tr, filter.Everything, Options{})
	assertNames(t, "definitions", mod.Definitions, "pi<float>")
	assertNames(t, "template definitions", mod.TemplateDefinitions, "pi<float>")

	mod, _ = build(t, tr, filter.Everything, Options{Templates: true})
	assertNames(t, "template definitions", mod.TemplateDefinitions, "pi", "pi<float>")
}

func TestDeletedMembersExcluded(t *testing.T) {
	t.Parallel()

	tr := newTree()
	s := tr.defined(tr.root(), decl.Decl{Kind: decl.CXXRecord, Name: "S"})
	tr.defined(s, decl.Decl{Kind: decl.Constructor, Name: "S::S", Deleted: true})
	tr.defined(s, decl.Decl{Kind: decl.Destructor, Name: "S::~S", Deleted: true})
	tr.defined(s, decl.Decl{Kind: decl.Method, Name: "S::operator=", Deleted: true})
	tr.add(s, decl.Decl{Kind: decl.Method, Name: "S::copy", Deleted: true})
	tr.defined(tr.root(), decl.Decl{Kind: decl.Function, Name: "g", Deleted: true})

	mod, _ := build(t, tr, filter.Everything, Options{Templates: true})
	assertNames(t, "definitions", mod.Definitions, "S")
	assert.Empty(t, mod.Declarations)
	assert.Empty(t, mod.TemplateDefinitions)
	assert.Empty(t, mod.TemplateDeclarations)
}

func TestStaticAssertsIsolated(t *testing.T) {
	t.Parallel()

	tr := newTree()
	tr.add(tr.root(), decl.Decl{Kind: decl.StaticAssert, Name: "first"})
	s := tr.defined(tr.root(), decl.Decl{Kind: decl.CXXRecord, Name: "S"})
	tr.add(s, decl.Decl{Kind: decl.StaticAssert, Name: "second"})

	mod, _ := build(t, tr, filter.Func(func(*decl.Decl) filter.What { return filter.Nothing }), Options{})
	assertNames(t, "asserts", mod.Asserts, "first", "second")
	assert.Zero(t, mod.Counts().Total())
}

func TestEnumCanonicalOnly(t *testing.T) {
	t.Parallel()

	tr := newTree()
	fwd := tr.add(tr.root(), decl.Decl{Kind: decl.Enum, Name: "Color"})
	def := tr.add(tr.root(), decl.Decl{Kind: decl.Enum, Name: "Color"})
	tr.g.Redeclare(fwd, def)
	tr.g.SetDefinition(def)
	for _, n := range []string{"Color::Red", "Color::Green", "Color::Blue"} {
		tr.add(def, decl.Decl{Kind: decl.EnumConstant, Name: n})
	}

	mod, _ := build(t, tr, filter.Everything, Options{})
	assertNames(t, "definitions", mod.Definitions, "Color", "Color::Red", "Color::Green", "Color::Blue")
	assert.Equal(t, fwd, mod.Definitions[0].ID)
}

func TestVariables(t *testing.T) {
	t.Parallel()

	tr := newTree()
	tr.defined(tr.root(), decl.Decl{Kind: decl.Var, Name: "plain"})
	tr.defined(tr.root(), decl.Decl{Kind: decl.Var, Name: "dependent", Templated: true})

	mod, _ := build(t, tr, filter.Everything, Options{})
	assertNames(t, "definitions", mod.Definitions, "dependent")

	mod, _ = build(t, tr, filter.Everything, Options{Templates: true})
	assertNames(t, "definitions", mod.Definitions, "plain", "dependent")
}

func TestStaticLocals(t *testing.T) {
	t.Parallel()

	tr := newTree()
	f := tr.defined(tr.root(), decl.Decl{Kind: decl.Function, Name: "counter"})
	tr.add(f, decl.Decl{Kind: decl.Var, Name: "counter::n", StaticLocal: true})
	tr.add(f, decl.Decl{Kind: decl.Var, Name: "counter::tmp"})

	mod, _ := build(t, tr, filter.Everything, Options{})
	assertNames(t, "definitions", mod.Definitions, "counter", "counter::n")

	declOnly := filter.Func(func(d *decl.Decl) filter.What {
		if d.Name == "counter" {
			return filter.Declaration
		}
		return filter.Definition
	})
	mod, _ = build(t, tr, declOnly, Options{})
	assertNames(t, "declarations", mod.Declarations, "counter")
	assert.Empty(t, mod.Definitions)
}

func TestDependentFunctionSkipped(t *testing.T) {
	t.Parallel()

	tr := newTree()
	tr.defined(tr.root(), decl.Decl{Kind: decl.Function, Name: "dep", DependentContext: true})

	mod, _ := build(t, tr, filter.Everything, Options{})
	assert.Empty(t, mod.Definitions)

	mod, _ = build(t, tr, filter.Everything, Options{Templates: true})
	assertNames(t, "definitions", mod.Definitions, "dep")
}

func TestSpecificationsCollected(t *testing.T) {
	t.Parallel()

	tr := newTree()
	proto := tr.add(tr.root(), decl.Decl{Kind: decl.Function, Name: "f", Comment: "// proto doc"})
	def := tr.add(tr.root(), decl.Decl{Kind: decl.Function, Name: "f", Comment: "// requires x > 0"})
	tr.g.Redeclare(proto, def)
	tr.g.SetDefinition(def)
	tr.defined(tr.root(), decl.Decl{Kind: decl.Function, Name: "g"})

	_, rec := build(t, tr, filter.Everything, Options{})
	require.Len(t, rec.Specs, 1)
	assert.Equal(t, def, rec.Specs[0].Decl.ID)
	assert.Equal(t, "requires x > 0", rec.Specs[0].Text)
}

func TestIgnoredAndUnsupportedKinds(t *testing.T) {
	t.Parallel()

	tr := newTree()
	for _, k := range []decl.Kind{
		decl.Using, decl.UsingDirective, decl.UsingShadow, decl.Empty,
		decl.BuiltinTemplate, decl.TypeAliasTemplate, decl.IndirectField, decl.Field,
	} {
		tr.add(tr.root(), decl.Decl{Kind: k, Name: k.String()})
	}
	tr.add(tr.root(), decl.Decl{Kind: decl.Label, Name: "done"})
	tr.add(tr.root(), decl.Decl{Kind: decl.TemplateTypeParm, Name: "T"})
	tr.add(tr.root(), decl.Decl{Kind: decl.Typedef, Name: "u32"})

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	mod, _ := build(t, tr, filter.Everything, Options{Logger: logger})
	assertNames(t, "definitions", mod.Definitions, "u32")

	out := buf.String()
	assert.Contains(t, out, "kind=Label")
	assert.Contains(t, out, "unsupported type declaration")
	assert.NotContains(t, out, "kind=Using ")
}

func TestNamespaceInsideTemplateIsFatal(t *testing.T) {
	t.Parallel()

	tr := newTree()
	tr.defined(tr.root(), decl.Decl{Kind: decl.Function, Name: "before"})
	pattern := tr.defined(decl.NoID, decl.Decl{Kind: decl.CXXRecord, Name: "Bad", Templated: true})
	tr.add(pattern, decl.Decl{Kind: decl.Namespace, Name: "Bad::ns"})
	tr.add(tr.root(), decl.Decl{Kind: decl.ClassTemplate, Name: "Bad", Pattern: pattern})
	tr.defined(tr.root(), decl.Decl{Kind: decl.Function, Name: "after"})

	m := module.New("test.cpp")
	err := Build(context.Background(), tr.g, m, filter.Everything, nil, Options{Templates: true})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvariant))
	assertNames(t, "definitions", m.Definitions, "before")
	assert.Empty(t, m.TemplateDefinitions)
}

func TestRootMustBeContainer(t *testing.T) {
	t.Parallel()

	w := newWalker(decl.NewGraph("x.cpp"), module.New("x"), filter.Everything, nil, Options{})
	err := w.root(decl.ID(42))
	assert.ErrorIs(t, err, ErrInvariant)

	err = w.container(&decl.Decl{Kind: decl.Namespace, Name: "ns"}, module.Flags{InSpecialization: true})
	assert.ErrorIs(t, err, ErrInvariant)
}

func TestDanglingChildIsFatal(t *testing.T) {
	t.Parallel()

	tr := newTree()
	tr.g.AddChild(tr.root(), decl.ID(999))

	err := Build(context.Background(), tr.g, module.New("x"), filter.Everything, nil, Options{})
	assert.ErrorIs(t, err, ErrInvariant)
}
