package pathfind

import (
	"container/heap"

	"github.com/kass/go-globe-routes/pkg/models"
	"github.com/pkg/errors"
)

var (
	// ErrNotAnEdge is returned when two consecutive path entries are not neighbors
	ErrNotAnEdge = errors.New("pathfind: consecutive stops are not connected")

	// ErrPathTooShort is returned for paths with fewer than MinPathLength nodes
	ErrPathTooShort = errors.New("pathfind: path too short")

	// ErrRepeatedStop is returned when a path visits the same node twice
	ErrRepeatedStop = errors.New("pathfind: path repeats a stop")
)

// dijkstraNode represents a node in the priority queue
type dijkstraNode struct {
	name     string
	distance float64
	index    int
}

type priorityQueue []*dijkstraNode

func (pq priorityQueue) Len() int { return len(pq) }

func (pq priorityQueue) Less(i, j int) bool {
	return pq[i].distance < pq[j].distance
}

func (pq priorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *priorityQueue) Push(x any) {
	node := x.(*dijkstraNode)
	node.index = len(*pq)
	*pq = append(*pq, node)
}

func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	node := old[n-1]
	old[n-1] = nil
	node.index = -1
	*pq = old[:n-1]

	return node
}

// ShortestPath finds the minimum-distance path from start to end with
// Dijkstra's algorithm. ok is false when end is unreachable.
func ShortestPath(g Graph, start, end string) (path models.Path, distance float64, ok bool) {
	if start == end || !g.Has(start) || !g.Has(end) {
		return nil, 0, false
	}

	dist := map[string]float64{start: 0}
	prev := make(map[string]string)
	done := make(map[string]bool)

	pq := &priorityQueue{}
	heap.Push(pq, &dijkstraNode{name: start})

	for pq.Len() > 0 {
		current := heap.Pop(pq).(*dijkstraNode)
		if done[current.name] {
			continue
		}
		done[current.name] = true
		if current.name == end {
			break
		}

		for _, n := range g.Neighbors(current.name) {
			if done[n.Name] {
				continue
			}
			candidate := current.distance + n.Distance
			known, seen := dist[n.Name]
			if !seen || candidate < known {
				dist[n.Name] = candidate
				prev[n.Name] = current.name
				heap.Push(pq, &dijkstraNode{name: n.Name, distance: candidate})
			}
		}
	}

	total, reached := dist[end]
	if !reached {
		return nil, 0, false
	}

	for at := end; at != start; at = prev[at] {
		path = append(path, at)
	}
	path = append(path, start)
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}

	return path, total, true
}

// Legs derives the per-leg distances of a path
func Legs(g Graph, path models.Path) ([]models.Leg, error) {
	if len(path) < MinPathLength {
		return nil, errors.WithStack(ErrPathTooShort)
	}

	legs := make([]models.Leg, 0, len(path)-1)
	for i := 1; i < len(path); i++ {
		d, ok := edgeDistance(g, path[i-1], path[i])
		if !ok {
			return nil, errors.Wrapf(ErrNotAnEdge, "%s -> %s", path[i-1], path[i])
		}
		legs = append(legs, models.Leg{From: path[i-1], To: path[i], Distance: d})
	}

	return legs, nil
}

// TotalDistance sums leg distances
func TotalDistance(legs []models.Leg) float64 {
	var total float64
	for _, leg := range legs {
		total += leg.Distance
	}
	return total
}

// Validate checks that a path is long enough, only follows graph edges and never repeats a stop
func Validate(g Graph, path models.Path) error {
	if len(path) < MinPathLength {
		return errors.WithStack(ErrPathTooShort)
	}

	seen := make(map[string]struct{}, len(path))
	for i, name := range path {
		if _, dup := seen[name]; dup {
			return errors.Wrapf(ErrRepeatedStop, "%s at position %d", name, i)
		}
		seen[name] = struct{}{}

		if i > 0 {
			if _, ok := edgeDistance(g, path[i-1], name); !ok {
				return errors.Wrapf(ErrNotAnEdge, "%s -> %s", path[i-1], name)
			}
		}
	}

	return nil
}

func edgeDistance(g Graph, a, b string) (float64, bool) {
	for _, n := range g.Neighbors(a) {
		if n.Name == b {
			return n.Distance, true
		}
	}
	return 0, false
}
