package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"github.com/quarrylabs/quarry/internal/artifact"
	"github.com/quarrylabs/quarry/internal/model"
	"github.com/quarrylabs/quarry/internal/rank"
)

// Per-file caps keep the digest bounded on large trees. Files are ordered by
// rank, so what gets cut is the least-connected tail.
const (
	maxSignaturesPerFile = 20
	maxImportsPerFile    = 10
)

// BuildContext renders a compact plain-text digest of the scanned project
// from the stored artifacts. With a non-empty scope only those paths are
// included; files are otherwise ordered by dependency rank.
func (p *Pipeline) BuildContext(scope []string) (string, error) {
	var tree artifact.FileTree
	if _, err := p.store.ReadPayload(artifact.FileTreeName, &tree); err != nil {
		return "", fmt.Errorf("context requires a completed scan: %w", err)
	}
	var graph model.DependencyGraph
	if _, err := p.store.ReadPayload(artifact.DependencyGraphName, &graph); err != nil {
		return "", fmt.Errorf("context requires a completed scan: %w", err)
	}

	paths := make([]string, 0, len(tree.Files))
	if len(scope) > 0 {
		for _, s := range scope {
			if _, ok := tree.Files[s]; !ok {
				return "", fmt.Errorf("unknown file %q", s)
			}
			paths = append(paths, s)
		}
	} else {
		for path := range tree.Files {
			paths = append(paths, path)
		}
	}

	scores := rank.Order(paths, &graph)

	importsByFile := make(map[string][]string)
	for _, e := range graph.Edges {
		importsByFile[e.From] = append(importsByFile[e.From], e.To)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Project digest: %d files\n", tree.TotalFiles)
	if len(graph.Circular) > 0 {
		fmt.Fprintf(&b, "# %d circular dependency group(s)\n", len(graph.Circular))
	}
	if graph.OrphanCount > 0 {
		fmt.Fprintf(&b, "# %d file(s) with no internal importers\n", graph.OrphanCount)
	}

	for _, sc := range scores {
		rec := tree.Files[sc.Path]
		b.WriteString("\n")
		fmt.Fprintf(&b, "%s (%s)\n", rec.Path, rec.Language)
		writeImports(&b, importsByFile[rec.Path])
		writeSignatures(&b, &rec.Symbols)
	}
	return b.String(), nil
}

func writeImports(b *strings.Builder, targets []string) {
	if len(targets) == 0 {
		return
	}
	uniq := make([]string, 0, len(targets))
	seen := make(map[string]struct{}, len(targets))
	for _, t := range targets {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		uniq = append(uniq, t)
	}
	sort.Strings(uniq)
	extra := ""
	if len(uniq) > maxImportsPerFile {
		extra = fmt.Sprintf(" +%d more", len(uniq)-maxImportsPerFile)
		uniq = uniq[:maxImportsPerFile]
	}
	fmt.Fprintf(b, "  imports: %s%s\n", strings.Join(uniq, ", "), extra)
}

func writeSignatures(b *strings.Builder, table *model.SymbolTable) {
	remaining := maxSignaturesPerFile
	emit := func(line string) bool {
		if remaining == 0 {
			return false
		}
		remaining--
		b.WriteString(line)
		b.WriteString("\n")
		return true
	}

	for _, fn := range table.Functions {
		if !emit("  " + functionSignature(&fn)) {
			return
		}
	}
	for _, cls := range table.Classes {
		head := "  class " + cls.Name
		if cls.Superclass != "" {
			head += "(" + cls.Superclass + ")"
		}
		if !emit(head) {
			return
		}
		for _, m := range cls.Methods {
			if !emit("    " + functionSignature(&m)) {
				return
			}
		}
	}
}

func functionSignature(fn *model.FunctionSymbol) string {
	var parts []string
	for _, param := range fn.Parameters {
		s := param.Name
		if param.Type != "" {
			s += ": " + param.Type
		}
		if param.Default != "" {
			s += " = " + param.Default
		}
		parts = append(parts, s)
	}
	sig := fn.Name + "(" + strings.Join(parts, ", ") + ")"
	if fn.Async {
		sig = "async " + sig
	}
	if fn.Visibility == model.Private {
		sig = sig + "  [private]"
	}
	return sig
}
