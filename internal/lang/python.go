package lang

import (
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

func init() {
	Languages["python"] = &Language{
		Name:       "python",
		Extensions: []string{".py", ".pyi"},
		Grammar:    func() *sitter.Language { return python.GetLanguage() },
		Patterns:   PatternsPython,
	}
}
