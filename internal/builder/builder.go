// Package builder walks a declaration graph and fills a module with the
// declarations a filter exposes.
//
// The graph is not a tree: templates link to their specializations, friend
// declarations point at declarations owned elsewhere, and entities are
// redeclared. The walker keeps a visited set keyed by declaration ID so that
// every declaration reaches its handler at most once per run, no matter how
// many edges lead to it.
package builder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/phobologic/cppmodule/internal/decl"
	"github.com/phobologic/cppmodule/internal/filter"
	"github.com/phobologic/cppmodule/internal/module"
	"github.com/phobologic/cppmodule/internal/specs"
)

// ErrInvariant is returned when the graph or the traversal state is
// inconsistent, e.g. a namespace reached inside a template. The run stops
// at the first violation.
var ErrInvariant = errors.New("builder invariant violated")

// Options configure a run.
type Options struct {
	// Templates includes primary templates and template-dependent
	// declarations. Specializations are always included.
	Templates bool

	// Logger receives advisory diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
}

// Build walks g from its root and appends what f exposes to m. Function
// definitions with a doc comment are passed to sc before they are routed.
//
// Build is synchronous and owns m, f and sc for its duration; none of them
// may be shared with a concurrent run.
func Build(ctx context.Context, g *decl.Graph, m *module.Module, f filter.Filter, sc specs.Collector, opts Options) error {
	ctx, span := startBuildSpan(ctx, m.Name, g.Len(), opts.Templates)
	defer span.End()
	start := time.Now()

	w := newWalker(g, m, f, sc, opts)
	err := w.root(g.Root())

	recordBuild(ctx, span, time.Since(start), w.stats, m.Counts(), err)
	return err
}

type walker struct {
	graph     *decl.Graph
	module    *module.Module
	filter    filter.Filter
	specs     specs.Collector
	templates bool
	log       *slog.Logger

	visited map[decl.ID]struct{}
	stats   stats
}

func newWalker(g *decl.Graph, m *module.Module, f filter.Filter, sc specs.Collector, opts Options) *walker {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	if sc == nil {
		sc = specs.Discard{}
	}
	return &walker{
		graph:     g,
		module:    m,
		filter:    f,
		specs:     sc,
		templates: opts.Templates,
		log:       log,
		visited:   make(map[decl.ID]struct{}),
	}
}

func (w *walker) root(id decl.ID) error {
	d := w.graph.Get(id)
	if d == nil || !d.Kind.IsContainer() {
		return fmt.Errorf("%w: root %d is not a container", ErrInvariant, id)
	}
	w.claim(id)
	w.stats.visited++
	return w.container(d, module.Flags{})
}

// claim marks id visited and reports whether it was new.
func (w *walker) claim(id decl.ID) bool {
	if _, ok := w.visited[id]; ok {
		return false
	}
	w.visited[id] = struct{}{}
	return true
}

// visit dispatches id to its kind handler unless it has been visited.
func (w *walker) visit(id decl.ID, flags module.Flags) error {
	if !w.claim(id) {
		return nil
	}
	d := w.graph.Get(id)
	if d == nil {
		return fmt.Errorf("%w: dangling declaration id %d", ErrInvariant, id)
	}
	w.stats.visited++
	return w.dispatch(d, flags)
}

func (w *walker) dispatch(d *decl.Decl, flags module.Flags) error {
	switch d.Kind {
	case decl.TranslationUnit, decl.Namespace, decl.LinkageSpec:
		return w.container(d, flags)
	case decl.Typedef, decl.TypeAlias:
		w.route(d, flags, true)
	case decl.Record:
		w.tag(d, flags)
	case decl.CXXRecord:
		return w.record(d, flags)
	case decl.Enum:
		w.enum(d, flags)
	case decl.EnumConstant:
		w.route(d, flags, true)
	case decl.Function, decl.Method, decl.Constructor, decl.Destructor:
		w.function(d, flags)
	case decl.Var:
		w.variable(d, flags)
	case decl.VarTemplate, decl.FunctionTemplate, decl.ClassTemplate:
		return w.template(d, flags)
	case decl.Friend:
		if d.Target.IsValid() {
			return w.visit(d.Target, flags)
		}
	case decl.StaticAssert:
		w.module.AddAssert(d)
	case decl.Field, decl.IndirectField, decl.Using, decl.UsingDirective,
		decl.UsingShadow, decl.AccessSpec, decl.Empty, decl.BuiltinTemplate,
		decl.TypeAliasTemplate:
		// Present in the graph but never emitted on their own.
	default:
		w.unsupported(d)
	}
	return nil
}

// route asks the filter about d and appends it to the matching bucket. A
// definition-level answer for a non-defining occurrence is downgraded to a
// declaration. The result is what d was recorded as.
func (w *walker) route(d *decl.Decl, flags module.Flags, defining bool) filter.What {
	switch w.filter.ShouldInclude(d) {
	case filter.Definition:
		if defining {
			w.module.AddDefinition(d, flags)
			return filter.Definition
		}
		w.module.AddDeclaration(d, flags)
		return filter.Declaration
	case filter.Declaration:
		w.module.AddDeclaration(d, flags)
		return filter.Declaration
	}
	return filter.Nothing
}

// container handles translation units, namespaces and linkage specs, which
// can never be nested in a template.
func (w *walker) container(d *decl.Decl, flags module.Flags) error {
	if !flags.None() {
		return fmt.Errorf("%w: %s at %s reached with flags %+v", ErrInvariant, d, d.Loc, flags)
	}
	for _, id := range d.Children {
		if err := w.visit(id, flags); err != nil {
			return err
		}
	}
	return nil
}

// tag routes the defining occurrence of a type, or its first declaration if
// it is never defined. Later redeclarations are dropped.
func (w *walker) tag(d *decl.Decl, flags module.Flags) {
	switch {
	case d.IsDefinition():
		w.route(d, flags, true)
	case !d.Definition.IsValid() && !d.Previous.IsValid():
		w.route(d, flags, false)
	}
}

func (w *walker) record(d *decl.Decl, flags module.Flags) error {
	if d.Implicit {
		return nil
	}
	// Specializations are reached from their template.
	if d.Specialization && !flags.InSpecialization {
		return nil
	}
	for _, id := range d.Children {
		if err := w.visit(id, flags); err != nil {
			return err
		}
	}
	w.tag(d, flags)
	return nil
}

func (w *walker) enum(d *decl.Decl, flags module.Flags) {
	if !d.IsCanonical() {
		return
	}
	w.route(d, flags, true)

	src := d
	if def := w.graph.Get(d.Definition); def != nil {
		src = def
	}
	for _, id := range src.Children {
		c := w.graph.Get(id)
		if c == nil || c.Kind != decl.EnumConstant || !w.claim(id) {
			continue
		}
		w.route(c, flags, true)
	}
}

func (w *walker) function(d *decl.Decl, flags module.Flags) {
	if d.Deleted {
		return
	}
	if !w.templates && d.DependentContext {
		return
	}

	switch {
	case d.IsDefinition():
		if d.Comment != "" {
			w.specs.AddSpecification(d, d.Comment)
		}
		if w.route(d, flags, true) < filter.Definition {
			return
		}
		for _, id := range d.Children {
			local := w.graph.Get(id)
			if local == nil || local.Kind != decl.Var || !local.StaticLocal || !w.claim(id) {
				continue
			}
			w.route(local, flags, true)
		}
	case !d.Definition.IsValid() && !d.Previous.IsValid():
		w.route(d, flags, false)
	}
}

func (w *walker) variable(d *decl.Decl, flags module.Flags) {
	if !w.templates && !d.Templated {
		return
	}
	w.route(d, flags, true)
}

// template handles variable, function and class templates. The primary is
// only included with templates enabled; specializations are concrete and
// always visited. A class template's primary is its pattern record, which
// is visited rather than routed.
func (w *walker) template(d *decl.Decl, flags module.Flags) error {
	if w.templates {
		if d.Kind == decl.ClassTemplate {
			if d.Pattern.IsValid() {
				if err := w.visit(d.Pattern, flags.SetTemplate()); err != nil {
					return err
				}
			}
		} else {
			w.route(d, flags.SetTemplate(), true)
		}
	}
	for _, id := range d.Specializations {
		if err := w.visit(id, flags.SetSpecialization()); err != nil {
			return err
		}
	}
	return nil
}

func (w *walker) unsupported(d *decl.Decl) {
	w.stats.unsupported++
	if d.Kind.IsType() {
		w.log.Debug("unsupported type declaration, dropping",
			slog.String("kind", d.Kind.String()),
			slog.String("name", d.Name))
		return
	}
	w.log.Debug("unsupported declaration kind, dropping",
		slog.String("kind", d.Kind.String()))
}
