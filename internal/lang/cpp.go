package lang

import (
	"github.com/smacker/go-tree-sitter/cpp"
)

func init() {
	grammar := cpp.GetLanguage()
	Languages["c"] = &Language{
		Name:       "c",
		Extensions: []string{".c"},
		lang:       grammar,
		CMode:      true,
	}
	Languages["cpp"] = &Language{
		Name:       "cpp",
		Extensions: []string{".cc", ".cpp", ".cxx", ".h", ".hh", ".hpp", ".hxx"},
		Headers:    []string{".h", ".hh", ".hpp", ".hxx"},
		lang:       grammar,
	}
}
