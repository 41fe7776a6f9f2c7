package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/kass/go-globe-routes/pkg/itinerary"
	"github.com/kass/go-globe-routes/pkg/models"
	"github.com/kass/go-globe-routes/pkg/pathfind"
	"github.com/kass/go-globe-routes/pkg/routegraph"
	"github.com/kass/go-globe-routes/pkg/rtree"
)

func main() {
	// A small rail network across the western US
	cities := []models.Location{
		models.NewEarthLocation("Seattle", 47.6062, -122.3321),
		models.NewEarthLocation("Portland", 45.5152, -122.6784),
		models.NewEarthLocation("Sacramento", 38.5816, -121.4944),
		models.NewEarthLocation("San Francisco", 37.7749, -122.4194),
		models.NewEarthLocation("Los Angeles", 34.0522, -118.2437),
		models.NewEarthLocation("San Diego", 32.7157, -117.1611),
		models.NewEarthLocation("Las Vegas", 36.1699, -115.1398),
		models.NewEarthLocation("Phoenix", 33.4484, -112.0740),
		models.NewEarthLocation("Salt Lake City", 40.7608, -111.8910),
		models.NewEarthLocation("Denver", 39.7392, -104.9903),
	}
	cities[4].Hub = true

	rail := []models.Connection{
		{From: "Seattle", To: "Portland"},
		{From: "Portland", To: "Sacramento"},
		{From: "Sacramento", To: "San Francisco"},
		{From: "San Francisco", To: "Los Angeles"},
		{From: "Sacramento", To: "Salt Lake City"},
		{From: "Los Angeles", To: "San Diego"},
		{From: "Los Angeles", To: "Las Vegas"},
		{From: "Los Angeles", To: "Phoenix"},
		{From: "Las Vegas", To: "Salt Lake City"},
		{From: "Salt Lake City", To: "Denver"},
		{From: "Phoenix", To: "Denver"},
		{From: "Denver", To: "Chicago"}, // no such location, skipped
	}

	g := routegraph.Build(cities, rail)
	fmt.Printf("Built graph with %d locations and %d edges\n", g.Len(), g.EdgeCount())
	for _, a := range g.Anomalies() {
		fmt.Printf("  skipped: %s\n", a)
	}

	// Example 1: every simple path from Los Angeles to Denver
	fmt.Println("\n=== Paths from Los Angeles to Denver ===")
	for i, p := range pathfind.FindPaths(g, "Los Angeles", "Denver", 4, 10) {
		legs, err := pathfind.Legs(g, p)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("  %d. %s (%.0f km)\n", i+1, p, pathfind.TotalDistance(legs))
	}

	// Example 2: shortest route by distance
	fmt.Println("\n=== Shortest route Seattle to Phoenix ===")
	path, distance, ok := pathfind.ShortestPath(g, "Seattle", "Phoenix")
	if !ok {
		log.Fatal("no route")
	}
	fmt.Printf("  %s (%.0f km)\n", path, distance)

	// Example 3: itineraries for spawned trains
	fmt.Println("\n=== Train itineraries ===")
	cfg := itinerary.DefaultVehicleConfig(models.VehicleTrain)
	cfg.PrimaryHub = "Los Angeles"
	cfg.SecondaryHub = "Denver"
	sel, err := itinerary.NewSelector(g, cfg, itinerary.WithSeed(2024))
	if err != nil {
		log.Fatal(err)
	}
	for range 5 {
		it, err := sel.Select(g.Names())
		if err != nil {
			fmt.Printf("  no itinerary: %v\n", err)
			continue
		}
		fmt.Printf("  %s (%d legs, multi-stop: %v)\n", it.Path, len(it.Legs), it.MultiStop)
	}

	// Example 4: which stations are near Reno
	fmt.Println("\n=== 3 stations nearest Reno ===")
	index := rtree.NewLocationIndex()
	index.Index(cities)
	reno := models.EarthCoord{Lat: 39.5296, Lon: -119.8138}
	for i, m := range index.Nearest(reno.Point(), 3) {
		fmt.Printf("  %d. %s: %.1f km away\n", i+1, m.Location.Name, m.Distance)
	}

	// Save and reload the graph
	fmt.Println("\n=== Snapshot ===")
	file := filepath.Join(os.TempDir(), "west.gob")
	if err := g.SaveToFile(file); err != nil {
		log.Fatal(err)
	}
	loaded, err := routegraph.LoadFromFile(file)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Reloaded %s: %d locations, %d edges\n", file, loaded.Len(), loaded.EdgeCount())
}
