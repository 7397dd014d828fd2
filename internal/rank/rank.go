// Package rank orders files by structural importance using PageRank over the
// internal dependency edges. The ordering drives context digest selection:
// heavily-imported files surface first.
package rank

import (
	"math"
	"sort"

	"github.com/quarrylabs/quarry/internal/model"
)

// Score pairs a file path with its computed rank.
type Score struct {
	Path string  `json:"path"`
	Rank float64 `json:"rank"`
}

// Order ranks the given paths by PageRank over the internal edges of the
// dependency graph and returns them highest-first. With no internal edges
// every file gets the uniform rank and the order falls back to path order.
func Order(paths []string, graph *model.DependencyGraph) []Score {
	scores := make([]Score, 0, len(paths))
	if len(paths) == 0 {
		return scores
	}

	nodes := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		nodes[p] = struct{}{}
	}

	// An edge importing N names contributes N to the link weight: a file
	// pulled apart name by name matters more than one touched once.
	outEdges := make(map[string][]string)
	outDegree := make(map[string]int)
	for _, e := range graph.Edges {
		if e.External {
			continue
		}
		if _, ok := nodes[e.From]; !ok {
			continue
		}
		if _, ok := nodes[e.To]; !ok {
			continue
		}
		weight := len(e.Names)
		if weight == 0 {
			weight = 1
		}
		for i := 0; i < weight; i++ {
			outEdges[e.From] = append(outEdges[e.From], e.To)
		}
		outDegree[e.From] += weight
	}

	ranks := pageRank(nodes, outEdges, outDegree, 0.85, 100, 1e-6)
	for _, p := range paths {
		scores = append(scores, Score{Path: p, Rank: ranks[p]})
	}
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Rank != scores[j].Rank {
			return scores[i].Rank > scores[j].Rank
		}
		return scores[i].Path < scores[j].Path
	})
	return scores
}

func pageRank(
	nodes map[string]struct{},
	outEdges map[string][]string,
	outDegree map[string]int,
	alpha float64,
	maxIter int,
	tol float64,
) map[string]float64 {
	n := len(nodes)
	if n == 0 {
		return nil
	}

	rank := make(map[string]float64, n)
	initial := 1.0 / float64(n)
	for node := range nodes {
		rank[node] = initial
	}

	teleport := (1.0 - alpha) / float64(n)

	for iter := 0; iter < maxIter; iter++ {
		newRank := make(map[string]float64, n)

		// Nodes with no outgoing edges spread their rank everywhere.
		var danglingSum float64
		for node := range nodes {
			if outDegree[node] == 0 {
				danglingSum += rank[node]
			}
		}
		danglingContrib := alpha * danglingSum / float64(n)

		for node := range nodes {
			newRank[node] = teleport + danglingContrib
		}

		for src, targets := range outEdges {
			deg := float64(outDegree[src])
			contrib := alpha * rank[src] / deg
			for _, tgt := range targets {
				newRank[tgt] += contrib
			}
		}

		var diff float64
		for node := range nodes {
			diff += math.Abs(newRank[node] - rank[node])
		}

		rank = newRank
		if diff < tol {
			break
		}
	}

	return rank
}
