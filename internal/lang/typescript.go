package lang

import (
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

func init() {
	Languages["typescript"] = &Language{
		Name:       "typescript",
		Extensions: []string{".ts", ".mts", ".cts"},
		Grammar:    func() *sitter.Language { return typescript.GetLanguage() },
		Patterns:   PatternsCFamily,
	}

	// TSX carries its own grammar; everything else matches typescript.
	Languages["tsx"] = &Language{
		Name:       "tsx",
		Extensions: []string{".tsx"},
		Grammar:    func() *sitter.Language { return tsx.GetLanguage() },
		Patterns:   PatternsCFamily,
	}
}
