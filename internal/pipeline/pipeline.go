// Package pipeline orchestrates the scan: walk, extract, graph builds, and
// artifact writes. Stages run in a fixed order with per-stage failure
// isolation; a panic in one stage fails the run, not the process.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/quarrylabs/quarry/internal/artifact"
	"github.com/quarrylabs/quarry/internal/callgraph"
	"github.com/quarrylabs/quarry/internal/config"
	"github.com/quarrylabs/quarry/internal/depgraph"
	"github.com/quarrylabs/quarry/internal/extract"
	"github.com/quarrylabs/quarry/internal/lang"
	"github.com/quarrylabs/quarry/internal/model"
	"github.com/quarrylabs/quarry/internal/walker"
)

// Pipeline runs scans over one project root. Runs are serialized: watch mode
// and a concurrent CLI invocation share the artifact directory, and
// interleaved stage writes would corrupt freshness checks.
type Pipeline struct {
	root   string
	cfg    *config.Config
	store  *artifact.Store
	logger *slog.Logger

	// strategies is fixed at construction: one extraction strategy per
	// language for the lifetime of the pipeline.
	strategies map[string]extract.Strategy

	mu sync.Mutex
}

// RunResult summarizes one completed (or failed) run.
type RunResult struct {
	RunID      string        `json:"runId"`
	Success    bool          `json:"success"`
	Elapsed    time.Duration `json:"elapsed"`
	TotalFiles int           `json:"totalFiles"`
	Artifacts  []string      `json:"artifacts"`
	Errors     []string      `json:"errors"`
	Warnings   []string      `json:"warnings"`
}

// Status reports artifact freshness relative to the source tree.
type Status struct {
	ArtifactDir string    `json:"artifactDir"`
	Artifacts   []string  `json:"artifacts"`
	Missing     []string  `json:"missing"`
	GeneratedAt time.Time `json:"generatedAt"`
	Fresh       bool      `json:"fresh"`
	TotalFiles  int       `json:"totalFiles"`
}

// New builds a pipeline for root, creating the artifact directory and
// selecting extraction strategies for every supported language.
func New(root string, cfg *config.Config, logger *slog.Logger) (*Pipeline, error) {
	store, err := artifact.NewStore(cfg.ArtifactDir(root))
	if err != nil {
		return nil, err
	}

	strategies := make(map[string]extract.Strategy, len(lang.Languages))
	for name, l := range lang.Languages {
		strategies[name] = extract.SelectStrategy(l)
	}

	return &Pipeline{
		root:       root,
		cfg:        cfg,
		store:      store,
		logger:     logger,
		strategies: strategies,
	}, nil
}

// Store exposes the artifact store for read paths.
func (p *Pipeline) Store() *artifact.Store { return p.store }

// Run executes one full scan. Per-file errors are collected and reported;
// only stage-level failures (unreadable root, artifact write failure) abort
// the run.
func (p *Pipeline) Run(ctx context.Context) (*RunResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	res := &RunResult{RunID: uuid.NewString()}
	started := time.Now()
	defer func() { res.Elapsed = time.Since(started) }()

	p.logger.Info("scan started", "runId", res.RunID, "root", p.root)

	walkRes, err := p.stageWalk()
	if err != nil {
		res.Errors = append(res.Errors, err.Error())
		return res, err
	}
	res.Warnings = append(res.Warnings, walkRes.Warnings...)

	records, contents, extractErrs := p.stageExtract(ctx, walkRes.Entries)
	res.Errors = append(res.Errors, extractErrs...)
	res.TotalFiles = len(records)

	// No shared cancellation between the graph stages: one failing must not
	// abort its sibling, and whatever it produced still gets persisted.
	var depGraph *model.DependencyGraph
	var callNodes []model.CallGraphNode
	var depErr, callErr error
	var g errgroup.Group
	g.Go(func() error {
		defer recoverStage("dependency graph", &depErr)
		depGraph = depgraph.Build(records)
		return nil
	})
	g.Go(func() error {
		defer recoverStage("call graph", &callErr)
		callNodes = p.stageCallGraph(ctx, records, contents)
		return nil
	})
	_ = g.Wait()

	stageFailed := false
	for _, serr := range []error{depErr, callErr} {
		if serr != nil {
			stageFailed = true
			res.Errors = append(res.Errors, serr.Error())
			p.logger.Error("stage failed", "runId", res.RunID, "error", serr)
		}
	}

	var callGraph *artifact.CallGraph
	if callErr == nil {
		callGraph = &artifact.CallGraph{Nodes: callNodes}
	}
	written, err := p.writeArtifacts(records, depGraph, callGraph)
	res.Artifacts = append(res.Artifacts, written...)
	if err != nil {
		res.Errors = append(res.Errors, err.Error())
		return res, err
	}
	res.Success = !stageFailed

	p.logger.Info("scan finished",
		"runId", res.RunID,
		"files", res.TotalFiles,
		"errors", len(res.Errors),
		"elapsed", res.Elapsed.Round(time.Millisecond))
	return res, nil
}

func (p *Pipeline) stageWalk() (res *walker.Result, err error) {
	defer recoverStage("walk", &err)
	return walker.Walk(p.root, walker.Options{
		ExtraIgnoreDirs:  p.cfg.IgnoreDirs,
		ExtraIgnoreFiles: p.cfg.IgnoreFiles,
		MaxFileSize:      p.cfg.MaxFileSize,
	})
}

// stageExtract reads and extracts all files with a bounded worker pool. Each
// worker owns its parse state; results land in an indexed slice so output
// order is independent of scheduling.
func (p *Pipeline) stageExtract(ctx context.Context, entries []walker.Entry) (map[string]*model.FileRecord, map[string][]byte, []string) {
	type outcome struct {
		rec     *model.FileRecord
		content []byte
		err     error
	}

	workers := p.cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(entries) {
		workers = len(entries)
	}

	results := make([]outcome, len(entries))
	work := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range work {
				rec, content, err := p.extractOne(ctx, entries[i])
				results[i] = outcome{rec: rec, content: content, err: err}
			}
		}()
	}
	for i := range entries {
		work <- i
	}
	close(work)
	wg.Wait()

	records := make(map[string]*model.FileRecord, len(entries))
	contents := make(map[string][]byte, len(entries))
	var errs []string
	for _, out := range results {
		if out.err != nil {
			errs = append(errs, out.err.Error())
			continue
		}
		if out.rec != nil {
			records[out.rec.Path] = out.rec
			contents[out.rec.Path] = out.content
		}
	}
	sort.Strings(errs)
	return records, contents, errs
}

func (p *Pipeline) extractOne(ctx context.Context, entry walker.Entry) (rec *model.FileRecord, content []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			rec, content = nil, nil
			err = fmt.Errorf("%s: extraction panic: %v", entry.RelPath, r)
		}
	}()

	content, err = os.ReadFile(entry.AbsPath)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", entry.RelPath, err)
	}
	fi, err := os.Stat(entry.AbsPath)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", entry.RelPath, err)
	}

	strategy, ok := p.strategies[entry.Language]
	if !ok {
		return nil, nil, fmt.Errorf("%s: no strategy for language %s", entry.RelPath, entry.Language)
	}

	table, err := extract.Extract(ctx, strategy, content, entry.RelPath)
	if err != nil {
		return nil, nil, err
	}

	sum := sha256.Sum256(content)
	rec = &model.FileRecord{
		Path:     entry.RelPath,
		Language: entry.Language,
		Size:     fi.Size(),
		Hash:     hex.EncodeToString(sum[:]),
		ModTime:  fi.ModTime().UTC(),
		Symbols:  table,
	}
	return rec, content, nil
}

// stageCallGraph builds nodes file by file. A failure in one file logs and
// skips; the graph stays partial rather than failing the stage.
func (p *Pipeline) stageCallGraph(ctx context.Context, records map[string]*model.FileRecord, contents map[string][]byte) []model.CallGraphNode {
	paths := make([]string, 0, len(records))
	for path := range records {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	var nodes []model.CallGraphNode
	for _, path := range paths {
		rec := records[path]
		strategy := p.strategies[rec.Language]
		fileNodes := func() (out []model.CallGraphNode) {
			defer func() {
				if r := recover(); r != nil {
					p.logger.Warn("call graph skipped file", "path", path, "cause", r)
				}
			}()
			return callgraph.Build(ctx, strategy, contents[path], rec)
		}()
		nodes = append(nodes, fileNodes...)
	}
	return nodes
}

// writeArtifacts persists whatever the stages produced and reports what was
// written. The file tree is always written; a graph whose stage failed comes
// in nil and is skipped rather than clobbering the previous run's artifact.
func (p *Pipeline) writeArtifacts(records map[string]*model.FileRecord, depGraph *model.DependencyGraph, callGraph *artifact.CallGraph) ([]string, error) {
	var written []string

	tree := artifact.FileTree{TotalFiles: len(records), Files: records}
	if err := p.store.Write(artifact.FileTreeName, &tree); err != nil {
		return written, err
	}
	written = append(written, artifact.FileTreeName)

	if depGraph != nil {
		if err := p.store.Write(artifact.DependencyGraphName, depGraph); err != nil {
			return written, err
		}
		written = append(written, artifact.DependencyGraphName)
	}
	if callGraph != nil {
		if err := p.store.Write(artifact.CallGraphName, callGraph); err != nil {
			return written, err
		}
		written = append(written, artifact.CallGraphName)
	}
	return written, nil
}

// ReadArtifact returns the raw envelope of a named artifact.
func (p *Pipeline) ReadArtifact(name string) (*artifact.Envelope, error) {
	known := false
	for _, n := range artifact.Names {
		if n == name {
			known = true
			break
		}
	}
	if !known {
		return nil, fmt.Errorf("unknown artifact %q", name)
	}
	return p.store.Read(name)
}

// Stat compares artifact generation time against the newest source file and
// reports freshness. Artifacts are stale if any source changed after the
// oldest artifact was written, or if any artifact is missing.
func (p *Pipeline) Stat() (*Status, error) {
	st := &Status{ArtifactDir: p.store.Dir()}

	oldest := time.Time{}
	for _, name := range artifact.Names {
		mtime, ok := p.store.Stat(name)
		if !ok {
			st.Missing = append(st.Missing, name)
			continue
		}
		st.Artifacts = append(st.Artifacts, name)
		if oldest.IsZero() || mtime.Before(oldest) {
			oldest = mtime
		}
	}
	if len(st.Missing) > 0 {
		return st, nil
	}

	var tree artifact.FileTree
	env, err := p.store.ReadPayload(artifact.FileTreeName, &tree)
	if err != nil {
		return nil, err
	}
	st.GeneratedAt = env.GeneratedAt
	st.TotalFiles = tree.TotalFiles

	walkRes, err := walker.Walk(p.root, walker.Options{
		ExtraIgnoreDirs:  p.cfg.IgnoreDirs,
		ExtraIgnoreFiles: p.cfg.IgnoreFiles,
		MaxFileSize:      p.cfg.MaxFileSize,
	})
	if err != nil {
		return nil, err
	}

	if len(walkRes.Entries) != tree.TotalFiles {
		return st, nil
	}
	for _, entry := range walkRes.Entries {
		fi, err := os.Stat(entry.AbsPath)
		if err != nil {
			return st, nil
		}
		if fi.ModTime().After(oldest) {
			return st, nil
		}
	}
	st.Fresh = true
	return st, nil
}

func recoverStage(stage string, err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%s stage panic: %v", stage, r)
	}
}
