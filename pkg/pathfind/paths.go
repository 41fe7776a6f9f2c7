// Package pathfind finds direct and bounded-hop alternate paths over a route graph.
//
// FindPaths is a depth-bounded search driven by an explicit work stack rather
// than recursion, so the hop bound and the result cap can be reasoned about
// (and tested) independently of Go's stack depth.
//
// Contract:
//   - start == end yields no paths.
//   - a start or end that is not in the graph yields no paths, never an error.
//   - when end is a direct neighbor of start, [start, end] is always the first path.
//   - no node repeats within a path; every path ends at end and has
//     between MinPathLength and maxHops+1 nodes.
//   - at most maxResults paths are returned, in discovery order.
package pathfind

import (
	"github.com/kass/go-globe-routes/pkg/models"
)

// MinPathLength is the node count of the shortest accepted path
const MinPathLength = 2

// Graph is the read-only view of a route graph the finder needs.
// *routegraph.Graph satisfies it.
type Graph interface {
	Has(name string) bool
	Neighbors(name string) []models.Neighbor
}

// frame is one entry of the work stack
type frame struct {
	path      []string
	visited   map[string]struct{}
	remaining int // hops that may still be taken from the end of path
}

// FindPaths returns the direct path (if any) followed by alternate paths from
// start to end of at most maxHops hops, capped at maxResults paths.
// maxHops below 1 is treated as 1.
func FindPaths(g Graph, start, end string, maxHops, maxResults int) []models.Path {
	if start == end || maxResults <= 0 {
		return nil
	}
	if !g.Has(start) || !g.Has(end) {
		return nil
	}
	if maxHops < 1 {
		maxHops = 1
	}

	results := make([]models.Path, 0, min(maxResults, 8))
	direct := isNeighbor(g, start, end)
	if direct {
		results = append(results, models.Path{start, end})
		if len(results) >= maxResults {
			return results
		}
	}

	stack := []frame{{
		path:      []string{start},
		visited:   map[string]struct{}{start: {}},
		remaining: maxHops,
	}}

	for len(stack) > 0 && len(results) < maxResults {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		last := f.path[len(f.path)-1]
		if last == end {
			results = append(results, models.Path(f.path))
			continue
		}
		if f.remaining == 0 {
			continue
		}

		// Push in reverse so neighbors are expanded in adjacency order.
		neighbors := g.Neighbors(last)
		for i := len(neighbors) - 1; i >= 0; i-- {
			next := neighbors[i].Name
			if _, seen := f.visited[next]; seen {
				continue
			}
			// the direct hop was emitted up front
			if next == end && len(f.path) == 1 {
				continue
			}
			stack = append(stack, f.extend(next))
		}
	}

	return results
}

func (f frame) extend(next string) frame {
	path := make([]string, len(f.path), len(f.path)+1)
	copy(path, f.path)
	path = append(path, next)

	visited := make(map[string]struct{}, len(f.visited)+1)
	for name := range f.visited {
		visited[name] = struct{}{}
	}
	visited[next] = struct{}{}

	return frame{path: path, visited: visited, remaining: f.remaining - 1}
}

func isNeighbor(g Graph, a, b string) bool {
	_, ok := edgeDistance(g, a, b)
	return ok
}
