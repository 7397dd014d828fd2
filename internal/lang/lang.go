// Package lang provides a language registry mapping file extensions to
// tree-sitter grammars and fallback pattern families.
package lang

import (
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
)

// PatternFamily selects the fallback pattern set used for a language when no
// grammar is available.
type PatternFamily string

const (
	// PatternsCFamily matches brace-and-keyword declaration syntax
	// (JavaScript, TypeScript, Java, C, ...).
	PatternsCFamily PatternFamily = "c-family"
	// PatternsPython matches def/class declaration syntax (Python, Ruby).
	PatternsPython PatternFamily = "python"
)

// Language holds classification and extraction configuration for one
// supported language.
type Language struct {
	Name       string
	Extensions []string

	// Grammar returns the tree-sitter grammar for this language, or nil when
	// none is bundled. Called once per pipeline construction; the result
	// decides the extraction strategy for the whole run.
	Grammar func() *sitter.Language

	// Patterns names the fallback pattern family.
	Patterns PatternFamily
}

// Languages maps language names to their configuration.
// Populated by init() functions in per-language files.
var Languages = map[string]*Language{}

// extensionMap is built lazily after all init() functions have run.
var (
	extensionMap  map[string]string
	extensionOnce sync.Once
)

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

// ForExtension returns the language name for a file extension (including the
// leading dot), or "" if unsupported.
func ForExtension(ext string) string {
	return getExtensionMap()[ext]
}

// Get returns the configuration for a language name, or nil if unknown.
func Get(name string) *Language {
	return Languages[name]
}

// NodeText returns the source text of a tree-sitter node.
func NodeText(node *sitter.Node, source []byte) string {
	return string(source[node.StartByte():node.EndByte()])
}
