package filter

import (
	"fmt"
	"sort"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/phobologic/cppmodule/internal/decl"
)

// kindNames maps the names accepted in rule files to declaration kinds.
// Several kinds share a name where users would not distinguish them.
var kindNames = map[string][]decl.Kind{
	"namespace":   {decl.Namespace},
	"typedef":     {decl.Typedef, decl.TypeAlias},
	"record":      {decl.Record, decl.CXXRecord},
	"class":       {decl.CXXRecord},
	"struct":      {decl.Record, decl.CXXRecord},
	"enum":        {decl.Enum},
	"enumerator":  {decl.EnumConstant},
	"function":    {decl.Function},
	"method":      {decl.Method},
	"constructor": {decl.Constructor},
	"destructor":  {decl.Destructor},
	"variable":    {decl.Var},
	"template":    {decl.ClassTemplate, decl.FunctionTemplate, decl.VarTemplate},
}

// KindNames returns the kind names accepted by ParseKinds, sorted.
func KindNames() []string {
	names := make([]string, 0, len(kindNames))
	for n := range kindNames {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ParseKinds resolves rule-file kind names.
func ParseKinds(names []string) ([]decl.Kind, error) {
	var kinds []decl.Kind
	for _, n := range names {
		ks, ok := kindNames[strings.ToLower(strings.TrimSpace(n))]
		if !ok {
			return nil, fmt.Errorf("unknown declaration kind %q", n)
		}
		kinds = append(kinds, ks...)
	}
	return kinds, nil
}

// Rule assigns What to declarations whose qualified name matches one of
// Patterns and, if Kinds is non-empty, whose kind is listed.
//
// Patterns use gitignore syntax over the qualified name with "::" replaced
// by "/", so "detail/**" selects everything under namespace detail and
// "!detail/keep" re-includes one entity.
type Rule struct {
	Patterns []string
	Kinds    []decl.Kind
	What     What
}

type compiledRule struct {
	match *ignore.GitIgnore
	kinds map[decl.Kind]struct{}
	what  What
}

// Rules is an ordered rule list; the last matching rule wins.
type Rules struct {
	rules []compiledRule
	def   What
}

// NewRules compiles rules. Declarations no rule matches get def.
func NewRules(def What, rules []Rule) *Rules {
	r := &Rules{def: def}
	for _, rule := range rules {
		cr := compiledRule{
			match: ignore.CompileIgnoreLines(rule.Patterns...),
			what:  rule.What,
		}
		if len(rule.Kinds) > 0 {
			cr.kinds = make(map[decl.Kind]struct{}, len(rule.Kinds))
			for _, k := range rule.Kinds {
				cr.kinds[k] = struct{}{}
			}
		}
		r.rules = append(r.rules, cr)
	}
	return r
}

// ShouldInclude implements Filter.
func (r *Rules) ShouldInclude(d *decl.Decl) What {
	if d.Name == "" {
		return r.def
	}
	path := NamePath(d.Name)
	what := r.def
	for i := range r.rules {
		cr := &r.rules[i]
		if cr.kinds != nil {
			if _, ok := cr.kinds[d.Kind]; !ok {
				continue
			}
		}
		if cr.match.MatchesPath(path) {
			what = cr.what
		}
	}
	return what
}

// NamePath converts a qualified name into the path form rules match on.
func NamePath(name string) string {
	return strings.ReplaceAll(strings.TrimPrefix(name, "::"), "::", "/")
}
