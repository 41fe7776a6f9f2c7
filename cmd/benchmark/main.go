package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kass/go-globe-routes/internal/world"
	"github.com/kass/go-globe-routes/pkg/dataset"
	"github.com/kass/go-globe-routes/pkg/itinerary"
	"github.com/kass/go-globe-routes/pkg/models"
	"github.com/kass/go-globe-routes/pkg/pathfind"
	"github.com/kass/go-globe-routes/pkg/routegraph"
	"github.com/kass/go-globe-routes/pkg/rtree"
)

type BenchmarkResult struct {
	QueryType     string
	TotalQueries  int
	TotalDuration time.Duration
	AvgDuration   time.Duration
	QueriesPerSec float64
	MinDuration   time.Duration
	MaxDuration   time.Duration
	TotalResults  int64
	AvgResults    float64
}

func main() {
	var (
		configFile = flag.String("config", "", "Config file (default: config/config.yaml if present)")
		dataFile   = flag.String("data", "", "Dataset file (default: built-in sample)")
		queryType  = flag.String("t", "paths", "Query type: paths, cached, batch, select, nearest, radius")
		network    = flag.String("network", "rail", "Network to search: rail, air, sea")
		numQueries = flag.Int("n", 1000, "Number of queries to run")
		workers    = flag.Int("w", runtime.NumCPU(), "Number of concurrent workers")
		seed       = flag.Int64("seed", time.Now().UnixNano(), "Random seed")
		// Synthetic graph instead of the dataset
		synthetic = flag.Int("locations", 0, "Generate this many random Earth locations instead of using the dataset")
		degree    = flag.Int("degree", 4, "Connections per generated location (nearest neighbors)")
		minLat    = flag.Float64("min-lat", 35.0, "Minimum latitude for generated locations")
		maxLat    = flag.Float64("max-lat", 60.0, "Maximum latitude for generated locations")
		minLon    = flag.Float64("min-lon", -10.0, "Minimum longitude for generated locations")
		maxLon    = flag.Float64("max-lon", 30.0, "Maximum longitude for generated locations")
		// Query-specific parameters
		maxHops    = flag.Int("max-hops", 5, "Maximum edges per path")
		maxResults = flag.Int("max-results", 20, "Maximum paths per query")
		radius     = flag.Float64("radius", 500.0, "Radius in km (for radius queries)")
		k          = flag.Int("k", 10, "Number of nearest neighbors")
	)
	flag.Parse()

	w, err := world.Load(world.Options{ConfigFile: *configFile, DataPath: *dataFile, LogLevel: "error"})
	if err != nil {
		log.Fatalf("Failed to load: %v", err)
	}

	var g *routegraph.Graph
	if *synthetic > 0 {
		log.Printf("Generating %d random locations with %d connections each...\n", *synthetic, *degree)
		start := time.Now()
		locations, connections := generateNetwork(*synthetic, *degree, *seed, *minLat, *maxLat, *minLon, *maxLon)
		g = routegraph.Build(locations, connections, routegraph.WithLogger(w.Logger))
		w.Dataset = &dataset.Dataset{
			Locations: locations,
			Networks:  map[dataset.Network][]models.Connection{dataset.Network(*network): connections},
		}
		log.Printf("Graph built in %v: %d locations, %d edges\n", time.Since(start), g.Len(), g.EdgeCount())
	} else {
		g = w.Graph(dataset.Network(*network))
		log.Printf("Graph %s loaded: %d locations, %d edges\n", *network, g.Len(), g.EdgeCount())
	}

	names := g.Names()
	if len(names) < 2 {
		log.Fatalf("Network %s has fewer than two connected locations", *network)
	}
	pick := func(r *rand.Rand) (string, string) {
		from := names[r.Intn(len(names))]
		to := names[r.Intn(len(names))]
		for to == from {
			to = names[r.Intn(len(names))]
		}
		return from, to
	}

	log.Printf("Running %d %s queries with %d workers...\n", *numQueries, *queryType, *workers)

	var result BenchmarkResult
	switch *queryType {
	case "paths":
		result = runQueries("paths", *numQueries, *workers, *seed, func(r *rand.Rand) int {
			from, to := pick(r)
			return len(pathfind.FindPaths(g, from, to, *maxHops, *maxResults))
		})
	case "cached":
		cache := pathfind.NewCache(g)
		result = runQueries("cached", *numQueries, *workers, *seed, func(r *rand.Rand) int {
			from, to := pick(r)
			return len(cache.FindPaths(from, to, *maxHops, *maxResults))
		})
		hits, misses := cache.Stats()
		log.Printf("Cache hits: %d, misses: %d, entries: %d\n", hits, misses, cache.Len())
	case "batch":
		result = runBatch(g, *numQueries, *workers, *seed, pick, *maxHops, *maxResults)
	case "select":
		vehicle := models.VehicleTrain
		switch dataset.Network(*network) {
		case dataset.NetworkAir:
			vehicle = models.VehiclePlane
		case dataset.NetworkSea:
			vehicle = models.VehicleBoat
		}
		vc, err := w.Config.Vehicle(vehicle)
		if err != nil {
			log.Fatalf("Failed to read vehicle config: %v", err)
		}
		sel, err := itinerary.NewSelector(g, vc.Selector(vehicle),
			itinerary.WithSeed(*seed), itinerary.WithLogger(w.Logger), itinerary.WithCache(pathfind.NewCache(g)))
		if err != nil {
			log.Fatalf("Failed to create selector: %v", err)
		}
		result = runQueries("select", *numQueries, *workers, *seed, func(*rand.Rand) int {
			it, err := sel.Select(names)
			if err != nil {
				return 0
			}
			return it.Path.Stops()
		})
	case "nearest", "radius":
		index := rtree.NewLocationIndex()
		index.Index(w.Dataset.Locations)
		log.Printf("Index built with %d locations\n", index.Count())
		result = runQueries(*queryType, *numQueries, *workers, *seed, func(r *rand.Rand) int {
			center := models.EarthCoord{
				Lat: *minLat + r.Float64()*(*maxLat-*minLat),
				Lon: *minLon + r.Float64()*(*maxLon-*minLon),
			}.Point()
			if *queryType == "nearest" {
				return len(index.Nearest(center, *k))
			}
			return len(index.Radius(center, *radius))
		})
	default:
		log.Fatalf("Unknown query type: %s", *queryType)
	}

	// Print results
	fmt.Println("\n=== Benchmark Results ===")
	fmt.Printf("Query Type: %s\n", result.QueryType)
	fmt.Printf("Total Queries: %d\n", result.TotalQueries)
	fmt.Printf("Total Duration: %v\n", result.TotalDuration)
	fmt.Printf("Average Duration: %v\n", result.AvgDuration)
	fmt.Printf("Queries/Second: %.2f\n", result.QueriesPerSec)
	fmt.Printf("Min Duration: %v\n", result.MinDuration)
	fmt.Printf("Max Duration: %v\n", result.MaxDuration)
	fmt.Printf("Total Results: %d\n", result.TotalResults)
	fmt.Printf("Avg Results/Query: %.2f\n", result.AvgResults)
	fmt.Printf("Workers Used: %d\n", *workers)
	fmt.Printf("CPU Cores: %d\n", runtime.NumCPU())
}

// runQueries fans numQueries calls of query out to a worker pool. Each
// worker owns its random source.
func runQueries(queryType string, numQueries, workers int, seed int64, query func(r *rand.Rand) int) BenchmarkResult {
	var (
		totalResults atomic.Int64
		minDuration  = time.Hour
		maxDuration  time.Duration
		totalDur     time.Duration
		mu           sync.Mutex
	)

	startTime := time.Now()

	queryCh := make(chan int, numQueries)
	var wg sync.WaitGroup

	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(workerID int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(seed + int64(workerID)))

			for range queryCh {
				queryStart := time.Now()
				results := query(r)
				queryDuration := time.Since(queryStart)

				totalResults.Add(int64(results))

				mu.Lock()
				totalDur += queryDuration
				if queryDuration < minDuration {
					minDuration = queryDuration
				}
				if queryDuration > maxDuration {
					maxDuration = queryDuration
				}
				mu.Unlock()
			}
		}(w)
	}

	for i := 0; i < numQueries; i++ {
		queryCh <- i
	}
	close(queryCh)

	wg.Wait()
	totalDuration := time.Since(startTime)

	return BenchmarkResult{
		QueryType:     queryType,
		TotalQueries:  numQueries,
		TotalDuration: totalDuration,
		AvgDuration:   totalDur / time.Duration(max(numQueries, 1)),
		QueriesPerSec: float64(numQueries) / totalDuration.Seconds(),
		MinDuration:   minDuration,
		MaxDuration:   maxDuration,
		TotalResults:  totalResults.Load(),
		AvgResults:    float64(totalResults.Load()) / float64(max(numQueries, 1)),
	}
}

// runBatch submits every pair in one pathfind.Batch call
func runBatch(g *routegraph.Graph, numQueries, workers int, seed int64,
	pick func(*rand.Rand) (string, string), maxHops, maxResults int) BenchmarkResult {

	r := rand.New(rand.NewSource(seed))
	pairs := make([]pathfind.Pair, numQueries)
	for i := range pairs {
		from, to := pick(r)
		pairs[i] = pathfind.Pair{From: from, To: to}
	}

	startTime := time.Now()
	results, err := pathfind.Batch(context.Background(), g, pairs, pathfind.BatchOptions{
		MaxHops:    maxHops,
		MaxResults: maxResults,
		Workers:    workers,
	})
	if err != nil {
		log.Fatalf("Batch failed: %v", err)
	}
	totalDuration := time.Since(startTime)

	var totalResults int64
	for _, res := range results {
		totalResults += int64(len(res.Paths))
	}

	return BenchmarkResult{
		QueryType:     "batch",
		TotalQueries:  numQueries,
		TotalDuration: totalDuration,
		AvgDuration:   totalDuration / time.Duration(max(numQueries, 1)),
		QueriesPerSec: float64(numQueries) / totalDuration.Seconds(),
		TotalResults:  totalResults,
		AvgResults:    float64(totalResults) / float64(max(numQueries, 1)),
	}
}

// generateNetwork scatters n Earth locations in the bounds and links each to
// its degree nearest neighbors
func generateNetwork(n, degree int, seed int64, minLat, maxLat, minLon, maxLon float64) ([]models.Location, []models.Connection) {
	r := rand.New(rand.NewSource(seed))

	locations := make([]models.Location, n)
	for i := range locations {
		locations[i] = models.NewEarthLocation(
			fmt.Sprintf("loc_%d", i),
			minLat+r.Float64()*(maxLat-minLat),
			minLon+r.Float64()*(maxLon-minLon),
		)
	}

	index := rtree.NewLocationIndex()
	index.Index(locations)

	connections := make([]models.Connection, 0, n*degree)
	for _, loc := range locations {
		c, _ := loc.Earth()
		for _, m := range index.Nearest(c.Point(), degree+1) {
			if m.Location.Name == loc.Name {
				continue
			}
			connections = append(connections, models.Connection{From: loc.Name, To: m.Location.Name})
		}
	}

	return locations, connections
}
