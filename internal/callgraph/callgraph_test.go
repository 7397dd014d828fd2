package callgraph

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarrylabs/quarry/internal/extract"
	"github.com/quarrylabs/quarry/internal/lang"
	"github.com/quarrylabs/quarry/internal/model"
)

func astStrategy(t *testing.T, language string) extract.Strategy {
	t.Helper()
	l := lang.Get(language)
	require.NotNil(t, l)
	s := extract.SelectStrategy(l)
	require.Equal(t, extract.StrategyAST, s.Kind)
	return s
}

func buildFor(t *testing.T, language string, src string) []model.CallGraphNode {
	t.Helper()
	ctx := context.Background()
	strategy := astStrategy(t, language)
	content := []byte(src)

	table, err := extract.Extract(ctx, strategy, content, "test-input")
	require.NoError(t, err)

	rec := &model.FileRecord{Path: "test-input", Language: language, Symbols: table}
	return Build(ctx, strategy, content, rec)
}

func nodeByName(t *testing.T, nodes []model.CallGraphNode, qualified string) model.CallGraphNode {
	t.Helper()
	for _, n := range nodes {
		if n.QualifiedName == qualified {
			return n
		}
	}
	t.Fatalf("node %q not found in %+v", qualified, nodes)
	return model.CallGraphNode{}
}

func callees(n model.CallGraphNode) []string {
	out := make([]string, len(n.Calls))
	for i, c := range n.Calls {
		out[i] = c.Callee
	}
	return out
}

func TestBuildAttributesCallsToFunctions(t *testing.T) {
	t.Parallel()

	nodes := buildFor(t, "javascript", `function foo(x) {
  bar(x)
  obj.baz(x)
  return x
}

function bar(y) {
  return y
}
`)

	foo := nodeByName(t, nodes, "foo")
	require.Len(t, foo.Calls, 2)

	direct := foo.Calls[0]
	assert.Equal(t, "bar", direct.Callee)
	assert.Equal(t, 2, direct.Line)
	assert.False(t, direct.IsMethod)

	method := foo.Calls[1]
	assert.Equal(t, "baz", method.Callee)
	assert.True(t, method.IsMethod)
	assert.Equal(t, "obj", method.Receiver)

	bar := nodeByName(t, nodes, "bar")
	assert.Empty(t, bar.Calls)
}

func TestBuildQualifiesMethods(t *testing.T) {
	t.Parallel()

	nodes := buildFor(t, "javascript", `class Worker {
  run(job) {
    this.log(job)
    process(job)
  }
}
`)

	run := nodeByName(t, nodes, "Worker.run")
	assert.Equal(t, "run", run.Name)
	assert.ElementsMatch(t, []string{"log", "process"}, callees(run))
}

func TestBuildPythonCalls(t *testing.T) {
	t.Parallel()

	nodes := buildFor(t, "python", `def main():
    data = load()
    client.send(data)

def load():
    return []
`)

	main := nodeByName(t, nodes, "main")
	require.Len(t, main.Calls, 2)
	assert.Equal(t, "load", main.Calls[0].Callee)
	assert.Equal(t, "send", main.Calls[1].Callee)
	assert.True(t, main.Calls[1].IsMethod)
	assert.Equal(t, "client", main.Calls[1].Receiver)
}

func TestBuildOutsideSymbolsDropped(t *testing.T) {
	t.Parallel()

	nodes := buildFor(t, "javascript", `setup()

function foo() {
  inner()
}

teardown()
`)

	require.Len(t, nodes, 1)
	assert.Equal(t, []string{"inner"}, callees(nodes[0]))
}

func TestBuildOneLineFunctionKeepsItsRange(t *testing.T) {
	t.Parallel()

	// A one-line function's range is authoritative; top-level calls after it
	// must stay unattributed instead of leaking into the preceding symbol.
	nodes := buildFor(t, "javascript", `function one() { a() }
stray()
other.stray2()
`)

	one := nodeByName(t, nodes, "one")
	assert.Equal(t, []string{"a"}, callees(one))
	for _, c := range one.Calls {
		assert.Equal(t, 1, c.Line)
	}
}

func TestBuildComplexCalleeKeepsText(t *testing.T) {
	t.Parallel()

	nodes := buildFor(t, "javascript", `function foo() {
  handlers[0]()
  getFn()()
}
`)

	foo := nodeByName(t, nodes, "foo")
	got := callees(foo)
	assert.Contains(t, got, "handlers[0]")
	assert.Contains(t, got, "getFn()")
	assert.Contains(t, got, "getFn")
}

func TestBuildComplexCalleeTextCapped(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("x", 120)
	nodes := buildFor(t, "javascript", "function foo() {\n  "+long+"[0]()\n}\n")

	foo := nodeByName(t, nodes, "foo")
	require.Len(t, foo.Calls, 1)
	assert.Len(t, foo.Calls[0].Callee, 100)
}

func TestPatternCallsKeywordExclusion(t *testing.T) {
	t.Parallel()

	content := []byte(`function handle(x) {
  if (x) {
    while (x) {
      dispatch(x)
    }
  }
  return fmt(x)
}
`)
	rec := &model.FileRecord{
		Path: "handle.js",
		Symbols: model.SymbolTable{
			Functions: []model.FunctionSymbol{{Name: "handle", StartLine: 1, EndLine: 8}},
		},
	}
	strategy := extract.Strategy{Kind: extract.StrategyPattern, Patterns: lang.PatternsCFamily}
	nodes := Build(context.Background(), strategy, content, rec)

	require.Len(t, nodes, 1)
	assert.ElementsMatch(t, []string{"dispatch", "fmt"}, callees(nodes[0]))
}

func TestPatternCallsMethodShape(t *testing.T) {
	t.Parallel()

	calls := patternCalls([]byte("queue.push(item)\nflush()\ndef setup(ctx):"))
	require.Len(t, calls, 2)

	assert.Equal(t, "push", calls[0].Callee)
	assert.True(t, calls[0].IsMethod)
	assert.Equal(t, "queue", calls[0].Receiver)

	assert.Equal(t, "flush", calls[1].Callee)
	assert.Equal(t, 2, calls[1].Line)
}

func TestBuildCollapsedSpansExtend(t *testing.T) {
	t.Parallel()

	// Pattern-extracted symbols have EndLine == StartLine; calls between one
	// symbol's start and the next must still attribute to the earlier symbol.
	content := []byte(`def first():
    alpha()

def second():
    beta()
`)
	rec := &model.FileRecord{
		Path: "mod.py",
		Symbols: model.SymbolTable{
			Functions: []model.FunctionSymbol{
				{Name: "first", StartLine: 1, EndLine: 1},
				{Name: "second", StartLine: 4, EndLine: 4},
			},
		},
	}
	strategy := extract.Strategy{Kind: extract.StrategyPattern, Patterns: lang.PatternsPython}
	nodes := Build(context.Background(), strategy, content, rec)

	assert.Equal(t, []string{"alpha"}, callees(nodeByName(t, nodes, "first")))
	assert.Equal(t, []string{"beta"}, callees(nodeByName(t, nodes, "second")))
}
