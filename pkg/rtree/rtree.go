// Package rtree indexes Earth locations in longitude-partitioned R-trees
// so nearest, box and radius lookups can search partitions in parallel
package rtree

import (
	"math"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/dhconnelly/rtreego"
	"github.com/kass/go-globe-routes/pkg/geo"
	"github.com/kass/go-globe-routes/pkg/models"
	"github.com/paulmach/orb"
)

const (
	tolerance   = 0.01
	minChildren = 25
	maxChildren = 50
	dimensions  = 2
	kmPerDegree = 111.195
)

// spatialLocation wraps a location to implement rtreego.Spatial
type spatialLocation struct {
	loc   models.Location
	coord models.EarthCoord
	rect  *rtreego.Rect
}

func (s *spatialLocation) Bounds() *rtreego.Rect {
	return s.rect
}

// Match is a location returned with its great-circle distance in km from the query point
type Match struct {
	Location models.Location
	Distance float64
}

// LocationIndex is a thread-safe spatial index over Earth locations.
// Moon and Mars locations have no geographic position and are not indexed.
type LocationIndex struct {
	partitions []*rtreego.Rtree
	bands      []orb.Bound
	mu         sync.RWMutex
	count      atomic.Int64
}

// NewLocationIndex creates an index with one partition per CPU
func NewLocationIndex() *LocationIndex {
	return NewLocationIndexWithPartitions(runtime.NumCPU())
}

// NewLocationIndexWithPartitions creates an index split into n longitude bands
func NewLocationIndexWithPartitions(n int) *LocationIndex {
	if n <= 0 {
		n = runtime.NumCPU()
	}

	ix := &LocationIndex{
		partitions: make([]*rtreego.Rtree, n),
		bands:      make([]orb.Bound, n),
	}

	width := 360.0 / float64(n)
	for i := 0; i < n; i++ {
		ix.partitions[i] = rtreego.NewTree(dimensions, minChildren, maxChildren)

		minLon := -180.0 + float64(i)*width
		maxLon := minLon + width
		if i == n-1 {
			maxLon = 180.0
		}
		ix.bands[i] = orb.Bound{Min: orb.Point{minLon, -90}, Max: orb.Point{maxLon, 90}}
	}

	return ix
}

// Index adds locations to the index and returns how many were indexed.
// Non-Earth locations and out-of-range coordinates are skipped.
func (ix *LocationIndex) Index(locations []models.Location) int {
	n := len(ix.partitions)
	grouped := make([][]*spatialLocation, n)

	for _, loc := range locations {
		coord, ok := loc.Earth()
		if !ok || !coord.Valid() {
			continue
		}

		p := rtreego.Point{coord.Lon, coord.Lat}
		item := &spatialLocation{loc: loc, coord: coord, rect: p.ToRect(tolerance)}
		idx := ix.partitionFor(coord.Lon)
		grouped[idx] = append(grouped[idx], item)
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	var wg sync.WaitGroup
	var inserted atomic.Int64
	for i, items := range grouped {
		if len(items) == 0 {
			continue
		}

		wg.Add(1)
		go func(tree *rtreego.Rtree, items []*spatialLocation) {
			defer wg.Done()
			for _, item := range items {
				tree.Insert(item)
			}
			inserted.Add(int64(len(items)))
		}(ix.partitions[i], items)
	}
	wg.Wait()

	ix.count.Add(inserted.Load())
	return int(inserted.Load())
}

// Within returns every indexed location inside the bound (edges inclusive)
func (ix *LocationIndex) Within(b orb.Bound) []models.Location {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	matches := ix.search(b, func(c models.EarthCoord) (float64, bool) {
		return 0, b.Contains(c.Point())
	})

	out := make([]models.Location, len(matches))
	for i, m := range matches {
		out[i] = m.Location
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Radius returns the locations within km of center, closest first
func (ix *LocationIndex) Radius(center orb.Point, km float64) []Match {
	if km < 0 {
		return nil
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	matches := ix.search(radiusBound(center, km), func(c models.EarthCoord) (float64, bool) {
		d := geo.Distance(center.Lat(), center.Lon(), c.Lat, c.Lon)
		return d, d <= km
	})

	sortMatches(matches)
	return matches
}

// Nearest returns up to k indexed locations closest to point
func (ix *LocationIndex) Nearest(point orb.Point, k int) []Match {
	if k <= 0 {
		return nil
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	resultsChan := make(chan []Match, len(ix.partitions))
	for _, tree := range ix.partitions {
		go func(tree *rtreego.Rtree) {
			// over-fetch: tree order is planar degrees, final order is great-circle
			found := tree.NearestNeighbors(2*k, rtreego.Point{point.Lon(), point.Lat()})

			matches := make([]Match, 0, len(found))
			for _, s := range found {
				item, ok := s.(*spatialLocation)
				if !ok || item == nil {
					continue
				}
				matches = append(matches, Match{
					Location: item.loc,
					Distance: geo.Distance(point.Lat(), point.Lon(), item.coord.Lat, item.coord.Lon),
				})
			}
			resultsChan <- matches
		}(tree)
	}

	var all []Match
	for range ix.partitions {
		all = append(all, <-resultsChan...)
	}

	sortMatches(all)
	if len(all) > k {
		all = all[:k]
	}
	return all
}

// Count returns the number of indexed locations
func (ix *LocationIndex) Count() int64 {
	return ix.count.Load()
}

// Clear removes all locations from the index
func (ix *LocationIndex) Clear() {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	for i := range ix.partitions {
		ix.partitions[i] = rtreego.NewTree(dimensions, minChildren, maxChildren)
	}
	ix.count.Store(0)
}

// search queries every partition overlapping b in parallel and keeps the
// items accepted by keep. Callers hold the read lock.
func (ix *LocationIndex) search(b orb.Bound, keep func(models.EarthCoord) (float64, bool)) []Match {
	relevant := ix.relevantPartitions(b)
	if len(relevant) == 0 {
		return nil
	}

	rect, err := toRect(b)
	if err != nil {
		return nil
	}

	resultsChan := make(chan []Match, len(relevant))
	for _, idx := range relevant {
		go func(tree *rtreego.Rtree) {
			var matches []Match
			for _, s := range tree.SearchIntersect(rect) {
				item, ok := s.(*spatialLocation)
				if !ok {
					continue
				}
				if d, ok := keep(item.coord); ok {
					matches = append(matches, Match{Location: item.loc, Distance: d})
				}
			}
			resultsChan <- matches
		}(ix.partitions[idx])
	}

	var all []Match
	for range relevant {
		all = append(all, <-resultsChan...)
	}
	return all
}

// relevantPartitions returns the bands whose longitude range intersects b
func (ix *LocationIndex) relevantPartitions(b orb.Bound) []int {
	var relevant []int
	for i, band := range ix.bands {
		if b.Min.Lon() <= band.Max.Lon() && b.Max.Lon() >= band.Min.Lon() {
			relevant = append(relevant, i)
		}
	}
	return relevant
}

func (ix *LocationIndex) partitionFor(lon float64) int {
	n := len(ix.partitions)
	idx := int((lon + 180.0) / (360.0 / float64(n)))
	if idx >= n {
		idx = n - 1
	}
	if idx < 0 {
		idx = 0
	}
	return idx
}

// toRect converts a bound to a search rectangle padded by the point tolerance
func toRect(b orb.Bound) (*rtreego.Rect, error) {
	return rtreego.NewRect(
		rtreego.Point{b.Min.Lon() - tolerance, b.Min.Lat() - tolerance},
		[]float64{b.Max.Lon() - b.Min.Lon() + 2*tolerance, b.Max.Lat() - b.Min.Lat() + 2*tolerance},
	)
}

// radiusBound returns a lon/lat box enclosing the circle. Near the poles or
// across the antimeridian it widens to every longitude.
func radiusBound(center orb.Point, km float64) orb.Bound {
	dLat := km / kmPerDegree
	minLat := math.Max(center.Lat()-dLat, -90)
	maxLat := math.Min(center.Lat()+dLat, 90)

	full := orb.Bound{Min: orb.Point{-180, minLat}, Max: orb.Point{180, maxLat}}
	if minLat <= -89 || maxLat >= 89 {
		return full
	}

	cos := math.Min(math.Cos(minLat*math.Pi/180), math.Cos(maxLat*math.Pi/180))
	dLon := dLat / cos
	if center.Lon()-dLon < -180 || center.Lon()+dLon > 180 {
		return full
	}

	return orb.Bound{
		Min: orb.Point{center.Lon() - dLon, minLat},
		Max: orb.Point{center.Lon() + dLon, maxLat},
	}
}

func sortMatches(matches []Match) {
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Distance != matches[j].Distance {
			return matches[i].Distance < matches[j].Distance
		}
		return matches[i].Location.Name < matches[j].Location.Name
	})
}
