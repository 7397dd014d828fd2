package pipeline

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarrylabs/quarry/internal/artifact"
	"github.com/quarrylabs/quarry/internal/config"
	"github.com/quarrylabs/quarry/internal/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	path := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// newTestProject lays out a small polyglot tree with an import cycle.
func newTestProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "src/a.ts", `import { b } from './b'

export function runA(x) {
  b(x)
  log.info(x)
}
`)
	writeFile(t, dir, "src/b.ts", `import { runA } from './a'

export function b(x) {
  return x
}
`)
	writeFile(t, dir, "tool.py", `def _helper(x, y):
    return x + y
`)
	return dir
}

func newTestPipeline(t *testing.T, root string) *Pipeline {
	t.Helper()
	cfg, err := config.Load(root)
	require.NoError(t, err)
	p, err := New(root, cfg, testLogger())
	require.NoError(t, err)
	return p
}

func TestRunProducesArtifacts(t *testing.T) {
	t.Parallel()

	root := newTestProject(t)
	p := newTestPipeline(t, root)

	res, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, 3, res.TotalFiles)
	assert.Empty(t, res.Errors)
	assert.ElementsMatch(t, artifact.Names, res.Artifacts)

	var tree artifact.FileTree
	_, err = p.Store().ReadPayload(artifact.FileTreeName, &tree)
	require.NoError(t, err)
	assert.Equal(t, 3, tree.TotalFiles)
	require.Contains(t, tree.Files, "src/a.ts")
	rec := tree.Files["src/a.ts"]
	assert.Equal(t, "typescript", rec.Language)
	assert.NotEmpty(t, rec.Hash)
	require.Len(t, rec.Symbols.Functions, 1)
	assert.Equal(t, "runA", rec.Symbols.Functions[0].Name)

	var graph model.DependencyGraph
	_, err = p.Store().ReadPayload(artifact.DependencyGraphName, &graph)
	require.NoError(t, err)
	require.Len(t, graph.Circular, 1, "a.ts <-> b.ts must be reported circular")

	var cg artifact.CallGraph
	_, err = p.Store().ReadPayload(artifact.CallGraphName, &cg)
	require.NoError(t, err)

	var runA *model.CallGraphNode
	for i := range cg.Nodes {
		if cg.Nodes[i].QualifiedName == "runA" {
			runA = &cg.Nodes[i]
		}
	}
	require.NotNil(t, runA)
	var callees []string
	for _, c := range runA.Calls {
		callees = append(callees, c.Callee)
	}
	assert.ElementsMatch(t, []string{"b", "info"}, callees)
}

func TestRunIsIdempotent(t *testing.T) {
	t.Parallel()

	root := newTestProject(t)
	p := newTestPipeline(t, root)
	ctx := context.Background()

	_, err := p.Run(ctx)
	require.NoError(t, err)
	var first artifact.FileTree
	_, err = p.Store().ReadPayload(artifact.FileTreeName, &first)
	require.NoError(t, err)

	_, err = p.Run(ctx)
	require.NoError(t, err)
	var second artifact.FileTree
	_, err = p.Store().ReadPayload(artifact.FileTreeName, &second)
	require.NoError(t, err)

	assert.Equal(t, first.Files, second.Files)
}

func TestRunSkipsArtifactDir(t *testing.T) {
	t.Parallel()

	root := newTestProject(t)
	p := newTestPipeline(t, root)
	ctx := context.Background()

	_, err := p.Run(ctx)
	require.NoError(t, err)

	// A second run must not pick up the artifact JSON as source; the
	// default output dir is dot-prefixed and therefore ignored.
	res, err := p.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, res.TotalFiles)
}

func TestStatFreshness(t *testing.T) {
	t.Parallel()

	root := newTestProject(t)
	p := newTestPipeline(t, root)
	ctx := context.Background()

	st, err := p.Stat()
	require.NoError(t, err)
	assert.False(t, st.Fresh)
	assert.NotEmpty(t, st.Missing)

	_, err = p.Run(ctx)
	require.NoError(t, err)

	st, err = p.Stat()
	require.NoError(t, err)
	assert.True(t, st.Fresh)
	assert.Empty(t, st.Missing)
	assert.Equal(t, 3, st.TotalFiles)

	// Touch a source into the future: artifacts go stale.
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(root, "tool.py"), future, future))

	st, err = p.Stat()
	require.NoError(t, err)
	assert.False(t, st.Fresh)
}

func TestStatStaleAfterNewFile(t *testing.T) {
	t.Parallel()

	root := newTestProject(t)
	p := newTestPipeline(t, root)

	_, err := p.Run(context.Background())
	require.NoError(t, err)

	writeFile(t, root, "extra.py", "def added(): pass\n")
	st, err := p.Stat()
	require.NoError(t, err)
	assert.False(t, st.Fresh, "a new source file must invalidate artifacts")
}

func TestWriteArtifactsPartial(t *testing.T) {
	t.Parallel()

	// A failed graph stage hands writeArtifacts a nil graph; the file tree
	// must still be persisted and the missing graphs skipped, not written
	// empty.
	root := newTestProject(t)
	p := newTestPipeline(t, root)

	records := map[string]*model.FileRecord{
		"main.py": {Path: "main.py", Language: "python"},
	}
	written, err := p.writeArtifacts(records, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{artifact.FileTreeName}, written)

	var tree artifact.FileTree
	_, err = p.Store().ReadPayload(artifact.FileTreeName, &tree)
	require.NoError(t, err)
	assert.Equal(t, 1, tree.TotalFiles)

	_, ok := p.Store().Stat(artifact.DependencyGraphName)
	assert.False(t, ok)
	_, ok = p.Store().Stat(artifact.CallGraphName)
	assert.False(t, ok)
}

func TestReadArtifactValidatesName(t *testing.T) {
	t.Parallel()

	root := newTestProject(t)
	p := newTestPipeline(t, root)

	_, err := p.Run(context.Background())
	require.NoError(t, err)

	env, err := p.ReadArtifact(artifact.FileTreeName)
	require.NoError(t, err)
	assert.Equal(t, artifact.Version, env.Version)

	_, err = p.ReadArtifact("../../etc/passwd")
	require.Error(t, err)
}

func TestBuildContextDigest(t *testing.T) {
	t.Parallel()

	root := newTestProject(t)
	p := newTestPipeline(t, root)

	_, err := p.BuildContext(nil)
	require.Error(t, err, "context before any scan must fail")

	_, err = p.Run(context.Background())
	require.NoError(t, err)

	digest, err := p.BuildContext(nil)
	require.NoError(t, err)
	assert.Contains(t, digest, "3 files")
	assert.Contains(t, digest, "src/a.ts (typescript)")
	assert.Contains(t, digest, "runA(x)")
	assert.Contains(t, digest, "_helper(x, y)  [private]")
	assert.Contains(t, digest, "circular")

	scoped, err := p.BuildContext([]string{"tool.py"})
	require.NoError(t, err)
	assert.Contains(t, scoped, "tool.py")
	assert.NotContains(t, scoped, "src/a.ts (")

	_, err = p.BuildContext([]string{"missing.py"})
	require.Error(t, err)
}

func TestRunReportsPerFileErrors(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, root, "good.py", "def ok(): pass\n")
	require.NoError(t, os.WriteFile(filepath.Join(root, "bad.py"), []byte{0xff, 0xfe}, 0o644))

	p := newTestPipeline(t, root)
	res, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Success, "per-file errors must not fail the run")
	assert.Equal(t, 1, res.TotalFiles)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "bad.py")
}
