// Package lang provides a language registry mapping file extensions to
// tree-sitter grammars.
package lang

import (
	"path/filepath"
	"slices"
	"sort"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
)

// Language holds tree-sitter configuration for a supported language.
type Language struct {
	Name       string
	Extensions []string
	// Headers lists the extensions in Extensions that mark headers.
	Headers []string
	lang    *sitter.Language

	// CMode marks C sources. They are parsed with the C++ grammar, but their
	// structs are plain records rather than classes.
	CMode bool
}

// GetLanguage returns the tree-sitter Language pointer.
func (l *Language) GetLanguage() *sitter.Language {
	return l.lang
}

// NewParser creates a fresh tree-sitter parser for this language.
// Each goroutine must use its own parser (not thread-safe).
func (l *Language) NewParser() *sitter.Parser {
	p := sitter.NewParser()
	p.SetLanguage(l.lang)
	return p
}

// Languages maps language names to their configuration.
// Populated by init() functions in per-language files.
var Languages = map[string]*Language{}

// extensionMap is built lazily after all init() functions have run.
var extensionMap map[string]string
var extensionOnce sync.Once

func getExtensionMap() map[string]string {
	extensionOnce.Do(func() {
		extensionMap = make(map[string]string)
		for _, l := range Languages {
			for _, ext := range l.Extensions {
				extensionMap[ext] = l.Name
			}
		}
	})
	return extensionMap
}

// ForExtension returns the language name for a file extension, or "" if unsupported.
func ForExtension(ext string) string {
	return getExtensionMap()[ext]
}

// ForFile returns the language for a file extension, or nil if unsupported.
func ForFile(ext string) *Language {
	return Languages[ForExtension(ext)]
}

// IsHeader reports whether path names a header of some registered
// language rather than a translation unit.
func IsHeader(path string) bool {
	l := ForFile(filepath.Ext(path))
	return l != nil && slices.Contains(l.Headers, filepath.Ext(path))
}

// Names returns the registered language names, sorted.
func Names() []string {
	names := make([]string, 0, len(Languages))
	for name := range Languages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
