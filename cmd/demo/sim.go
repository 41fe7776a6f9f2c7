package main

import (
	"context"
	"time"

	"github.com/kass/go-globe-routes/internal/world"
	"github.com/kass/go-globe-routes/pkg/dataset"
	"github.com/kass/go-globe-routes/pkg/models"
	"github.com/kass/go-globe-routes/pkg/rtree"
)

// networkStats is the build summary of one network graph
type networkStats struct {
	network   dataset.Network
	locations int
	edges     int
	anomalies int
	buildTime time.Duration
}

// spawnEvent is one spawned vehicle as shown by the simulator
type spawnEvent struct {
	at        time.Duration
	itinerary *models.Itinerary
	region    string
}

// fleetStats counts spawns per vehicle type
type fleetStats struct {
	spawned  map[models.VehicleType]int64
	skipped  map[models.VehicleType]int64
	multi    int64
	distance float64
	elapsed  time.Duration
}

func (s fleetStats) total() int64 {
	var n int64
	for _, c := range s.spawned {
		n += c
	}
	return n
}

// buildGraphs builds every network graph, reporting each as it completes
func buildGraphs(w *world.World, report func(done, total int, stats networkStats)) []networkStats {
	out := make([]networkStats, 0, len(dataset.Networks))
	for i, n := range dataset.Networks {
		start := time.Now()
		g := w.Graph(n)
		stats := networkStats{
			network:   n,
			locations: g.Len(),
			edges:     g.EdgeCount(),
			anomalies: len(g.Anomalies()),
			buildTime: time.Since(start),
		}
		out = append(out, stats)
		report(i+1, len(dataset.Networks), stats)
	}
	return out
}

// regionLabeler names the area a spawn starts in: the nearest hub on Earth,
// the body name elsewhere.
type regionLabeler struct {
	w    *world.World
	hubs *rtree.LocationIndex
}

func newRegionLabeler(w *world.World) *regionLabeler {
	var hubs []models.Location
	for _, loc := range w.Dataset.Locations {
		if loc.Hub {
			hubs = append(hubs, loc)
		}
	}
	ix := rtree.NewLocationIndexWithPartitions(1)
	ix.Index(hubs)
	return &regionLabeler{w: w, hubs: ix}
}

func (r *regionLabeler) label(it *models.Itinerary) string {
	g := r.w.Graph(dataset.NetworkFor(it.Vehicle))
	loc, ok := g.Location(it.Path.Start())
	if !ok {
		return "?"
	}
	c, ok := loc.Earth()
	if !ok {
		return loc.Kind.String()
	}
	near := r.hubs.Nearest(c.Point(), 1)
	if len(near) == 0 {
		return "earth"
	}
	return "near " + near[0].Location.Name
}

// simulate runs every spawner for d and reports each itinerary
func simulate(ctx context.Context, w *world.World, d time.Duration, report func(spawnEvent)) (fleetStats, error) {
	spawners, err := w.Spawners()
	if err != nil {
		return fleetStats{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	labeler := newRegionLabeler(w)
	stats := fleetStats{
		spawned: make(map[models.VehicleType]int64),
		skipped: make(map[models.VehicleType]int64),
	}

	start := time.Now()
	itineraries, wait := world.RunFleet(ctx, spawners)
	for it := range itineraries {
		if it.MultiStop {
			stats.multi++
		}
		stats.distance += it.TotalDistance
		report(spawnEvent{at: time.Since(start), itinerary: it, region: labeler.label(it)})
	}
	if err := wait(); err != nil {
		return stats, err
	}
	stats.elapsed = time.Since(start)

	for i, v := range w.Config.VehicleTypes() {
		stats.spawned[v], stats.skipped[v] = spawners[i].Stats()
	}
	return stats, nil
}
