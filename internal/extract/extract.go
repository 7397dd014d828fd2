// Package extract produces per-file symbol tables using a dual-strategy
// design: tree-sitter AST extraction when a grammar is available for the
// language, and a line-oriented pattern fallback otherwise. Both strategies
// satisfy the same SymbolTable contract; the fallback is permitted to miss
// multi-line declarations but must never fail.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/quarrylabs/quarry/internal/lang"
	"github.com/quarrylabs/quarry/internal/model"
)

// ErrInvalidContent reports file content that is not valid UTF-8.
var ErrInvalidContent = errors.New("content is not valid UTF-8")

// StrategyKind tags the extraction strategy variant.
type StrategyKind string

const (
	StrategyAST     StrategyKind = "ast"
	StrategyPattern StrategyKind = "pattern"
)

// Strategy is the tagged variant selected once per language per run:
// AST with a grammar handle, or the pattern fallback. It is passed explicitly
// rather than looked up in any global registry.
type Strategy struct {
	Kind     StrategyKind
	Grammar  *sitter.Language // non-nil iff Kind == StrategyAST
	Patterns lang.PatternFamily
}

// SelectStrategy probes the language's grammar and fixes the strategy for the
// remainder of the run. A nil grammar handle (or a language with no grammar
// at all) selects the pattern fallback.
func SelectStrategy(l *lang.Language) Strategy {
	if l.Grammar != nil {
		if g := l.Grammar(); g != nil {
			return Strategy{Kind: StrategyAST, Grammar: g, Patterns: l.Patterns}
		}
		slog.Warn("grammar unavailable, using pattern fallback", "language", l.Name)
	}
	return Strategy{Kind: StrategyPattern, Patterns: l.Patterns}
}

// Extract returns the symbol table for one file. The strategy must have been
// selected for the file's language. Errors are per-file and non-fatal to the
// run: the caller records them and continues.
func Extract(ctx context.Context, strategy Strategy, content []byte, relPath string) (model.SymbolTable, error) {
	if !utf8.Valid(content) {
		return model.SymbolTable{}, fmt.Errorf("%s: %w", relPath, ErrInvalidContent)
	}

	var table model.SymbolTable
	var err error
	switch strategy.Kind {
	case StrategyAST:
		table, err = extractAST(ctx, strategy.Grammar, content)
		if err != nil {
			return model.SymbolTable{}, fmt.Errorf("%s: %w", relPath, err)
		}
	default:
		table = extractPattern(strategy.Patterns, content)
	}

	clampTable(&table, model.LineCount(content))
	return table, nil
}

// clampTable forces every symbol's line range into [1, lineCount] with
// EndLine >= StartLine. Extraction bugs for one symbol must not surface as an
// invariant violation in the artifact.
func clampTable(t *model.SymbolTable, lineCount int) {
	if lineCount < 1 {
		lineCount = 1
	}
	clamp := func(start, end *int) {
		if *start < 1 {
			*start = 1
		}
		if *start > lineCount {
			*start = lineCount
		}
		if *end < *start {
			*end = *start
		}
		if *end > lineCount {
			*end = lineCount
		}
	}
	for i := range t.Functions {
		clamp(&t.Functions[i].StartLine, &t.Functions[i].EndLine)
	}
	for i := range t.Classes {
		c := &t.Classes[i]
		clamp(&c.StartLine, &c.EndLine)
		for j := range c.Methods {
			clamp(&c.Methods[j].StartLine, &c.Methods[j].EndLine)
		}
	}
	for i := range t.Imports {
		if t.Imports[i].Line < 1 {
			t.Imports[i].Line = 1
		} else if t.Imports[i].Line > lineCount {
			t.Imports[i].Line = lineCount
		}
	}
	for i := range t.Exports {
		if t.Exports[i].Line < 1 {
			t.Exports[i].Line = 1
		} else if t.Exports[i].Line > lineCount {
			t.Exports[i].Line = lineCount
		}
	}
}
