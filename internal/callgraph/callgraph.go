// Package callgraph records, for every extracted function and method, the
// calls made inside its line span. It reuses the extraction strategy chosen
// for the file's language: tree-sitter when a grammar is available, a
// line-oriented pattern scan otherwise.
package callgraph

import (
	"context"
	"sort"

	"github.com/quarrylabs/quarry/internal/extract"
	"github.com/quarrylabs/quarry/internal/model"
)

// callKeywords are identifiers that look like calls under the pattern scan
// but are language keywords. Shared with the AST path for uniform output.
var callKeywords = map[string]struct{}{
	"if": {}, "while": {}, "for": {}, "switch": {}, "catch": {},
	"return": {}, "elif": {}, "with": {}, "match": {},
	"function": {}, "def": {}, "async": {}, "await": {},
	"new": {}, "typeof": {}, "delete": {}, "void": {},
	"in": {}, "not": {}, "and": {}, "or": {},
}

// span is one symbol's effective line range within a file.
type span struct {
	start, end int
	node       int // index into the result slice
}

// Build produces one node per function and class method in the record,
// attributing each call found in the file to the innermost enclosing symbol.
// A parse failure degrades to the pattern scan rather than failing the file.
func Build(ctx context.Context, strategy extract.Strategy, content []byte, rec *model.FileRecord) []model.CallGraphNode {
	var nodes []model.CallGraphNode
	for _, fn := range rec.Symbols.Functions {
		nodes = append(nodes, model.CallGraphNode{
			File:          rec.Path,
			Name:          fn.Name,
			QualifiedName: fn.Name,
			Line:          fn.StartLine,
			Calls:         []model.FunctionCall{},
		})
	}
	for _, cls := range rec.Symbols.Classes {
		for _, m := range cls.Methods {
			nodes = append(nodes, model.CallGraphNode{
				File:          rec.Path,
				Name:          m.Name,
				QualifiedName: cls.Name + "." + m.Name,
				Line:          m.StartLine,
				Calls:         []model.FunctionCall{},
			})
		}
	}
	if len(nodes) == 0 {
		return nodes
	}

	collapsed := strategy.Kind == extract.StrategyPattern
	spans := buildSpans(rec, nodes, model.LineCount(content), collapsed)

	var calls []model.FunctionCall
	if strategy.Kind == extract.StrategyAST {
		if astFound, err := astCalls(ctx, strategy.Grammar, content); err == nil {
			calls = astFound
		} else {
			calls = patternCalls(content)
		}
	} else {
		calls = patternCalls(content)
	}

	for _, c := range calls {
		if _, kw := callKeywords[c.Callee]; kw {
			continue
		}
		if idx, ok := innermost(spans, c.Line); ok {
			nodes[idx].Calls = append(nodes[idx].Calls, c)
		}
	}
	return nodes
}

// buildSpans derives each symbol's attribution range. The pattern strategy
// does not track end lines, so its spans all collapse to the start line; only
// then is each span extended to just before the next symbol's start, or to
// the end of the file for the last symbol. AST spans are authoritative: a
// one-line function really does span one line, and calls outside it stay
// unattributed.
func buildSpans(rec *model.FileRecord, nodes []model.CallGraphNode, lineCount int, collapsed bool) []span {
	spans := make([]span, 0, len(nodes))
	ends := symbolEnds(rec)
	for i, n := range nodes {
		spans = append(spans, span{start: n.Line, end: ends[i], node: i})
	}
	if !collapsed {
		return spans
	}

	bySstart := make([]int, len(spans))
	for i := range bySstart {
		bySstart[i] = i
	}
	sort.Slice(bySstart, func(a, b int) bool {
		return spans[bySstart[a]].start < spans[bySstart[b]].start
	})
	for pos, i := range bySstart {
		s := &spans[i]
		if s.end > s.start {
			continue
		}
		s.end = lineCount
		for _, j := range bySstart[pos+1:] {
			if spans[j].start > s.start {
				s.end = spans[j].start - 1
				break
			}
		}
		if s.end < s.start {
			s.end = s.start
		}
	}
	return spans
}

// symbolEnds returns declared end lines in the same order Build emits nodes.
func symbolEnds(rec *model.FileRecord) []int {
	var ends []int
	for _, fn := range rec.Symbols.Functions {
		ends = append(ends, fn.EndLine)
	}
	for _, cls := range rec.Symbols.Classes {
		for _, m := range cls.Methods {
			ends = append(ends, m.EndLine)
		}
	}
	return ends
}

// innermost picks the smallest span containing the line, so a call inside a
// nested function attributes to the inner symbol.
func innermost(spans []span, line int) (int, bool) {
	best := -1
	bestSize := 0
	for _, s := range spans {
		if line < s.start || line > s.end {
			continue
		}
		size := s.end - s.start
		if best == -1 || size < bestSize {
			best = s.node
			bestSize = size
		}
	}
	if best == -1 {
		return 0, false
	}
	return best, true
}
