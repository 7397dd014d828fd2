// Package depgraph builds the file-level dependency graph: import resolution
// against the known file set, cycle detection, and orphan detection.
package depgraph

import (
	"path"
	"sort"
	"strings"

	"github.com/quarrylabs/quarry/internal/model"
)

// OrphanSampleCap bounds the orphan list carried in the artifact. The full
// count is reported separately; the cap is for reporting, not correctness.
const OrphanSampleCap = 50

// resolutionSuffixes is the fixed probe order for resolving a relative
// specifier against the known file set. The bare candidate is tried first,
// then extensions, then index files.
var resolutionSuffixes = []string{
	"",
	".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs", ".py",
	"/index.ts", "/index.tsx", "/index.js", "/index.jsx",
	"/__init__.py",
}

// Build constructs the dependency graph from the full FileRecord set. Records
// must be complete: resolution and cycle detection need global knowledge.
func Build(records map[string]*model.FileRecord) *model.DependencyGraph {
	known := make(map[string]struct{}, len(records))
	for p := range records {
		known[p] = struct{}{}
	}

	var edges []model.DependencyEdge
	for _, p := range sortedKeys(records) {
		rec := records[p]
		for _, imp := range rec.Symbols.Imports {
			edge := model.DependencyEdge{
				From:  p,
				Names: imp.Names,
				Line:  imp.Line,
			}
			if to, ok := Resolve(p, imp.Module, known); ok {
				edge.To = to
			} else {
				edge.To = imp.Module
				edge.External = true
			}
			edges = append(edges, edge)
		}
	}

	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		if edges[i].To != edges[j].To {
			return edges[i].To < edges[j].To
		}
		return edges[i].Line < edges[j].Line
	})

	adj := internalAdjacency(edges)
	orphans, count := findOrphans(records, edges)

	return &model.DependencyGraph{
		Edges:       edges,
		Circular:    DetectCycles(adj),
		Orphans:     orphans,
		OrphanCount: count,
	}
}

// Resolve maps an import specifier to a known project-relative path.
// Specifiers without a relative-path marker are external. This is a
// best-effort policy, not full module resolution: a relative specifier that
// matches nothing after the fixed suffix probes stays external.
func Resolve(fromPath, specifier string, known map[string]struct{}) (string, bool) {
	rel, ok := relativeSpecifier(specifier)
	if !ok {
		return "", false
	}

	candidate := path.Join(path.Dir(fromPath), rel)
	// path.Join cleans "." and ".." segments; an escape above the project
	// root cannot resolve internally.
	if strings.HasPrefix(candidate, "..") {
		return "", false
	}

	for _, suffix := range resolutionSuffixes {
		if _, exists := known[candidate+suffix]; exists {
			return candidate + suffix, true
		}
	}
	return "", false
}

// relativeSpecifier normalizes a specifier's relative marker into a path
// fragment. It accepts "./x", "../x" and Python's dotted relatives (".mod",
// "..pkg.mod", "."); anything else is not relative.
func relativeSpecifier(spec string) (string, bool) {
	switch {
	case spec == "." || spec == "..":
		return spec, true
	case strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "../"):
		return spec, true
	case strings.HasPrefix(spec, "."):
		dots := 0
		for dots < len(spec) && spec[dots] == '.' {
			dots++
		}
		rest := strings.ReplaceAll(spec[dots:], ".", "/")
		prefix := "./"
		if dots > 1 {
			prefix = strings.Repeat("../", dots-1)
		}
		return prefix + rest, true
	default:
		return "", false
	}
}

// internalAdjacency maps each file to its internal dependency targets, sorted
// for deterministic DFS order.
func internalAdjacency(edges []model.DependencyEdge) map[string][]string {
	adj := make(map[string][]string)
	seen := make(map[[2]string]struct{})
	for _, e := range edges {
		if e.External {
			continue
		}
		key := [2]string{e.From, e.To}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		adj[e.From] = append(adj[e.From], e.To)
	}
	for from := range adj {
		sort.Strings(adj[from])
	}
	return adj
}

// DetectCycles runs depth-first search with a recursion stack over the
// internal adjacency map. When DFS reaches a node already on the stack, the
// suffix of the current path from that node is emitted as one circular group
// (closed by repeating the entry node) and that branch is not descended
// further. This yields at least one witness cycle per strongly-connected
// region, not every simple cycle; that is the accepted contract.
func DetectCycles(adj map[string][]string) [][]string {
	visited := make(map[string]struct{})
	onStack := make(map[string]struct{})
	var pathStack []string
	var cycles [][]string
	seen := make(map[string]struct{}) // canonical rotations already emitted

	var dfs func(node string)
	dfs = func(node string) {
		visited[node] = struct{}{}
		onStack[node] = struct{}{}
		pathStack = append(pathStack, node)

		for _, next := range adj[node] {
			if _, active := onStack[next]; active {
				// Found a back edge: the path suffix from next is a cycle.
				start := 0
				for i, p := range pathStack {
					if p == next {
						start = i
						break
					}
				}
				group := append([]string{}, pathStack[start:]...)
				group = append(group, next)
				if key := canonicalCycle(group); key != "" {
					if _, dup := seen[key]; !dup {
						seen[key] = struct{}{}
						cycles = append(cycles, group)
					}
				}
				continue
			}
			if _, done := visited[next]; !done {
				dfs(next)
			}
		}

		pathStack = pathStack[:len(pathStack)-1]
		delete(onStack, node)
	}

	for _, node := range sortedStringKeys(adj) {
		if _, done := visited[node]; !done {
			dfs(node)
		}
	}
	return cycles
}

// canonicalCycle produces a rotation-invariant key for a closed cycle group
// so the same cycle reached from two DFS roots is reported once.
func canonicalCycle(group []string) string {
	if len(group) < 2 {
		return ""
	}
	nodes := group[:len(group)-1] // drop closing repeat
	minIdx := 0
	for i, n := range nodes {
		if n < nodes[minIdx] {
			minIdx = i
		}
	}
	rotated := make([]string, 0, len(nodes))
	for i := 0; i < len(nodes); i++ {
		rotated = append(rotated, nodes[(minIdx+i)%len(nodes)])
	}
	return strings.Join(rotated, "\x00")
}

// findOrphans returns files with zero inbound internal edges: a bounded,
// sorted sample plus the true count.
func findOrphans(records map[string]*model.FileRecord, edges []model.DependencyEdge) ([]string, int) {
	inbound := make(map[string]int, len(records))
	for _, e := range edges {
		if !e.External {
			inbound[e.To]++
		}
	}

	var orphans []string
	for p := range records {
		if inbound[p] == 0 {
			orphans = append(orphans, p)
		}
	}
	sort.Strings(orphans)

	count := len(orphans)
	if count > OrphanSampleCap {
		orphans = orphans[:OrphanSampleCap]
	}
	return orphans, count
}

func sortedKeys(m map[string]*model.FileRecord) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedStringKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
