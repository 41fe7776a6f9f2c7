package pathfind

import (
	"context"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/kass/go-globe-routes/pkg/models"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Pair is an ordered endpoint pair
type Pair struct {
	From string
	To   string
}

// BatchResult holds the paths found for one pair
type BatchResult struct {
	Pair  Pair
	Paths []models.Path
}

// BatchOptions bounds every search in a batch
type BatchOptions struct {
	MaxHops    int
	MaxResults int
	Workers    int
}

// Batch runs FindPaths for many pairs concurrently. The graph is only read,
// so it is shared across workers. Results keep the order of pairs.
func Batch(ctx context.Context, g Graph, pairs []Pair, opts BatchOptions) ([]BatchResult, error) {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	results := make([]BatchResult, len(pairs))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)

	for i, pair := range pairs {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return errors.WithStack(err)
			}
			results[i] = BatchResult{
				Pair:  pair,
				Paths: FindPaths(g, pair.From, pair.To, opts.MaxHops, opts.MaxResults),
			}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}

// Cache memoizes FindPaths results for one graph. Concurrent lookups of the
// same key share a single search.
type Cache struct {
	graph   Graph
	group   singleflight.Group
	mu      sync.RWMutex
	entries map[cacheKey][]models.Path
	hits    atomic.Int64
	misses  atomic.Int64
}

type cacheKey struct {
	start, end          string
	maxHops, maxResults int
}

// NewCache creates a path cache over a read-only graph
func NewCache(g Graph) *Cache {
	return &Cache{
		graph:   g,
		entries: make(map[cacheKey][]models.Path),
	}
}

// Graph returns the graph the cache searches
func (c *Cache) Graph() Graph {
	return c.graph
}

// FindPaths behaves like the package-level FindPaths but reuses earlier results.
// The returned paths are shared and must not be modified.
func (c *Cache) FindPaths(start, end string, maxHops, maxResults int) []models.Path {
	key := cacheKey{start: start, end: end, maxHops: maxHops, maxResults: maxResults}

	c.mu.RLock()
	paths, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		c.hits.Add(1)
		return append([]models.Path(nil), paths...)
	}

	c.misses.Add(1)
	v, _, _ := c.group.Do(flightKey(key), func() (any, error) {
		found := FindPaths(c.graph, start, end, maxHops, maxResults)

		c.mu.Lock()
		c.entries[key] = found
		c.mu.Unlock()

		return found, nil
	})

	return append([]models.Path(nil), v.([]models.Path)...)
}

// Stats returns the cache hit and miss counters
func (c *Cache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Len returns the number of memoized pairs
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func flightKey(k cacheKey) string {
	return k.start + "\x00" + k.end + "\x00" + strconv.Itoa(k.maxHops) + "\x00" + strconv.Itoa(k.maxResults)
}
