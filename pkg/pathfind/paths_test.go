package pathfind

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"sync"
	"testing"

	"github.com/kass/go-globe-routes/pkg/models"
	"github.com/kass/go-globe-routes/pkg/routegraph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietBuild(locations []models.Location, connections []models.Connection) *routegraph.Graph {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return routegraph.Build(locations, connections, routegraph.WithLogger(logger))
}

func lineGraph() *routegraph.Graph {
	return quietBuild(
		[]models.Location{
			models.NewEarthLocation("A", 0, 0),
			models.NewEarthLocation("B", 0, 10),
			models.NewEarthLocation("C", 0, 20),
		},
		[]models.Connection{{From: "A", To: "B"}, {From: "B", To: "C"}},
	)
}

// completeGraph connects every pair among n planar locations
func completeGraph(n int) *routegraph.Graph {
	var locations []models.Location
	var connections []models.Connection
	for i := 0; i < n; i++ {
		locations = append(locations, models.NewPlanarLocation(fmt.Sprintf("n%d", i), models.KindMars, float64(i), float64(i*i)))
		for j := 0; j < i; j++ {
			connections = append(connections, models.Connection{From: fmt.Sprintf("n%d", j), To: fmt.Sprintf("n%d", i)})
		}
	}
	return quietBuild(locations, connections)
}

// randomGraph builds a sparse random graph with a fixed seed
func randomGraph(seed int64, nodes, edges int) *routegraph.Graph {
	r := rand.New(rand.NewSource(seed))
	var locations []models.Location
	for i := 0; i < nodes; i++ {
		locations = append(locations, models.NewEarthLocation(fmt.Sprintf("c%d", i), r.Float64()*120-60, r.Float64()*340-170))
	}
	var connections []models.Connection
	for i := 0; i < edges; i++ {
		connections = append(connections, models.Connection{
			From: fmt.Sprintf("c%d", r.Intn(nodes)),
			To:   fmt.Sprintf("c%d", r.Intn(nodes)),
		})
	}
	return quietBuild(locations, connections)
}

func TestFindPathsLine(t *testing.T) {
	g := lineGraph()

	paths := FindPaths(g, "A", "C", 5, 30)
	require.NotEmpty(t, paths)
	assert.Contains(t, paths, models.Path{"A", "B", "C"})

	for _, p := range paths {
		for i := 1; i < len(p); i++ {
			adjacentAC := (p[i-1] == "A" && p[i] == "C") || (p[i-1] == "C" && p[i] == "A")
			assert.False(t, adjacentAC, "path %v uses a non-existent A-C edge", p)
		}
	}
}

func TestFindPathsSameEndpoint(t *testing.T) {
	g := lineGraph()
	assert.Empty(t, FindPaths(g, "A", "A", 5, 30))
}

func TestFindPathsDegenerateBounds(t *testing.T) {
	complete := completeGraph(4)
	line := lineGraph()

	testCases := []struct {
		name       string
		g          Graph
		start, end string
		maxHops    int
		maxResults int
		want       []models.Path
	}{
		{"zero hops clamps to direct", complete, "n0", "n1", 0, 10, []models.Path{{"n0", "n1"}}},
		{"negative hops clamps to direct", complete, "n0", "n1", -3, 10, []models.Path{{"n0", "n1"}}},
		{"zero hops without direct edge", line, "A", "C", 0, 10, nil},
		{"one hop without direct edge", line, "A", "C", 1, 10, nil},
		{"zero results", complete, "n0", "n1", 3, 0, nil},
		{"negative results", complete, "n0", "n1", 3, -1, nil},
		{"zero results on reachable line", line, "A", "C", 5, 0, nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			paths := FindPaths(tc.g, tc.start, tc.end, tc.maxHops, tc.maxResults)
			if tc.want == nil {
				assert.Empty(t, paths)
				return
			}
			assert.Equal(t, tc.want, paths)
		})
	}
}

func TestFindPathsUnknownEndpoints(t *testing.T) {
	g := lineGraph()

	testCases := []struct {
		name  string
		start string
		end   string
	}{
		{"unknown start", "Z", "C"},
		{"unknown end", "A", "Z"},
		{"both unknown", "Y", "Z"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				assert.Empty(t, FindPaths(g, tc.start, tc.end, 5, 30))
			})
		})
	}
}

func TestFindPathsDirectFirst(t *testing.T) {
	g := quietBuild(
		[]models.Location{
			models.NewEarthLocation("A", 0, 0),
			models.NewEarthLocation("B", 0, 10),
			models.NewEarthLocation("C", 5, 5),
			models.NewEarthLocation("D", -5, 5),
		},
		[]models.Connection{
			{From: "A", To: "C"},
			{From: "C", To: "B"},
			{From: "A", To: "D"},
			{From: "D", To: "B"},
			{From: "A", To: "B"},
		},
	)

	paths := FindPaths(g, "A", "B", 5, 30)
	require.Len(t, paths, 3)
	assert.Equal(t, models.Path{"A", "B"}, paths[0])
	assert.Equal(t, models.Path{"A", "C", "B"}, paths[1], "alternates follow adjacency order")
	assert.Equal(t, models.Path{"A", "D", "B"}, paths[2])

	direct := 0
	for _, p := range paths {
		if p.IsDirect() {
			direct++
		}
	}
	assert.Equal(t, 1, direct, "the direct path is never emitted twice")
}

func TestFindPathsMaxResults(t *testing.T) {
	g := completeGraph(7)

	for _, limit := range []int{1, 3, 10, 50} {
		t.Run(fmt.Sprintf("limit %d", limit), func(t *testing.T) {
			paths := FindPaths(g, "n0", "n6", 5, limit)
			assert.Len(t, paths, limit)
			assert.Equal(t, models.Path{"n0", "n6"}, paths[0])
		})
	}

	assert.Empty(t, FindPaths(g, "n0", "n6", 5, 0))
}

func TestFindPathsHopBound(t *testing.T) {
	var locations []models.Location
	var connections []models.Connection
	for i := 0; i < 5; i++ {
		locations = append(locations, models.NewEarthLocation(fmt.Sprintf("s%d", i), 0, float64(i)))
		if i > 0 {
			connections = append(connections, models.Connection{From: fmt.Sprintf("s%d", i-1), To: fmt.Sprintf("s%d", i)})
		}
	}
	g := quietBuild(locations, connections)

	assert.Empty(t, FindPaths(g, "s0", "s4", 3, 30), "four hops do not fit in three")
	paths := FindPaths(g, "s0", "s4", 4, 30)
	require.Len(t, paths, 1)
	assert.Equal(t, models.Path{"s0", "s1", "s2", "s3", "s4"}, paths[0])

	// a hop bound below one still allows the direct route
	assert.Equal(t, []models.Path{{"s0", "s1"}}, FindPaths(g, "s0", "s1", 0, 30))
}

func TestFindPathsInvariants(t *testing.T) {
	for seed := int64(1); seed <= 20; seed++ {
		g := randomGraph(seed, 40, 90)
		names := g.Names()
		r := rand.New(rand.NewSource(seed))

		for q := 0; q < 25; q++ {
			start := names[r.Intn(len(names))]
			end := names[r.Intn(len(names))]
			maxHops := 1 + r.Intn(5)
			maxResults := 1 + r.Intn(30)

			paths := FindPaths(g, start, end, maxHops, maxResults)
			assert.LessOrEqual(t, len(paths), maxResults)
			if start == end {
				assert.Empty(t, paths)
				continue
			}

			if _, direct := g.Distance(start, end); direct {
				require.NotEmpty(t, paths)
				assert.Equal(t, models.Path{start, end}, paths[0])
			}

			for _, p := range paths {
				require.NoError(t, Validate(g, p), "seed %d path %v", seed, p)
				assert.Equal(t, start, p.Start())
				assert.Equal(t, end, p.End())
				assert.GreaterOrEqual(t, len(p), MinPathLength)
				assert.LessOrEqual(t, len(p), maxHops+1)
			}
		}
	}
}

func TestShortestPath(t *testing.T) {
	g := quietBuild(
		[]models.Location{
			models.NewPlanarLocation("A", models.KindMars, 0, 0),
			models.NewPlanarLocation("B", models.KindMars, 1, 1),
			models.NewPlanarLocation("C", models.KindMars, 2, 0),
			models.NewPlanarLocation("D", models.KindMars, 10, 10),
		},
		[]models.Connection{
			{From: "A", To: "D"},
			{From: "D", To: "C"},
			{From: "A", To: "B"},
			{From: "B", To: "C"},
		},
	)

	path, dist, ok := ShortestPath(g, "A", "C")
	require.True(t, ok)
	assert.Equal(t, models.Path{"A", "B", "C"}, path)
	assert.InDelta(t, 2.8284, dist, 1e-3)

	_, _, ok = ShortestPath(g, "A", "A")
	assert.False(t, ok)
	_, _, ok = ShortestPath(g, "A", "Z")
	assert.False(t, ok)
}

func TestShortestPathDisconnected(t *testing.T) {
	g := quietBuild(
		[]models.Location{
			models.NewEarthLocation("A", 0, 0),
			models.NewEarthLocation("B", 0, 1),
			models.NewEarthLocation("C", 5, 0),
			models.NewEarthLocation("D", 5, 1),
		},
		[]models.Connection{{From: "A", To: "B"}, {From: "C", To: "D"}},
	)

	_, _, ok := ShortestPath(g, "A", "D")
	assert.False(t, ok)
	assert.Empty(t, FindPaths(g, "A", "D", 5, 30))
}

func TestLegsAndValidate(t *testing.T) {
	g := lineGraph()

	legs, err := Legs(g, models.Path{"A", "B", "C"})
	require.NoError(t, err)
	require.Len(t, legs, 2)
	assert.Equal(t, "A", legs[0].From)
	assert.Equal(t, "C", legs[1].To)
	assert.InDelta(t, 2223.9, TotalDistance(legs), 0.5)

	_, err = Legs(g, models.Path{"A", "C"})
	assert.ErrorIs(t, err, ErrNotAnEdge)

	_, err = Legs(g, models.Path{"A"})
	assert.ErrorIs(t, err, ErrPathTooShort)

	assert.NoError(t, Validate(g, models.Path{"C", "B", "A"}))
	assert.ErrorIs(t, Validate(g, models.Path{"A", "B", "A"}), ErrRepeatedStop)
	assert.ErrorIs(t, Validate(g, models.Path{"A", "C"}), ErrNotAnEdge)
}

func TestBatch(t *testing.T) {
	g := completeGraph(6)
	pairs := []Pair{
		{From: "n0", To: "n5"},
		{From: "n1", To: "n1"},
		{From: "n2", To: "missing"},
		{From: "n3", To: "n4"},
	}

	results, err := Batch(context.Background(), g, pairs, BatchOptions{MaxHops: 3, MaxResults: 5, Workers: 2})
	require.NoError(t, err)
	require.Len(t, results, len(pairs))

	for i, res := range results {
		assert.Equal(t, pairs[i], res.Pair)
		assert.Equal(t, FindPaths(g, res.Pair.From, res.Pair.To, 3, 5), res.Paths)
	}
	assert.Len(t, results[0].Paths, 5)
	assert.Empty(t, results[1].Paths)
	assert.Empty(t, results[2].Paths)
}

func TestBatchCancelled(t *testing.T) {
	g := completeGraph(5)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Batch(ctx, g, []Pair{{From: "n0", To: "n1"}}, BatchOptions{MaxHops: 3, MaxResults: 5})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCache(t *testing.T) {
	g := completeGraph(6)
	cache := NewCache(g)

	first := cache.FindPaths("n0", "n5", 4, 10)
	second := cache.FindPaths("n0", "n5", 4, 10)
	assert.Equal(t, first, second)
	assert.Equal(t, FindPaths(g, "n0", "n5", 4, 10), first)

	hits, misses := cache.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
	assert.Equal(t, 1, cache.Len())

	// different bounds are a different entry
	cache.FindPaths("n0", "n5", 2, 10)
	assert.Equal(t, 2, cache.Len())
}

func TestCacheConcurrent(t *testing.T) {
	g := completeGraph(6)
	cache := NewCache(g)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			paths := cache.FindPaths("n1", "n4", 3, 8)
			assert.Len(t, paths, 8)
		}()
	}
	wg.Wait()

	hits, misses := cache.Stats()
	assert.Equal(t, int64(32), hits+misses)
	assert.Equal(t, 1, cache.Len())
}

func BenchmarkFindPaths(b *testing.B) {
	g := randomGraph(42, 300, 900)
	names := g.Names()
	r := rand.New(rand.NewSource(7))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		FindPaths(g, names[r.Intn(len(names))], names[r.Intn(len(names))], 5, 30)
	}
}
