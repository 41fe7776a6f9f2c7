package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/kass/go-globe-routes/internal/world"
	"github.com/kass/go-globe-routes/pkg/dataset"
	"github.com/kass/go-globe-routes/pkg/postgis"
	"github.com/kass/go-globe-routes/pkg/routegraph"
	"github.com/paulmach/orb"
)

func main() {
	var (
		configFile = flag.String("config", "", "Config file (default: config/config.yaml if present)")
		dataFile   = flag.String("data", "", "Dataset file (default: built-in sample)")
		outputDir  = flag.String("o", "", "Snapshot directory (default: config data.snapshotDir)")
		toPostGIS  = flag.Bool("postgis", false, "Also load the dataset into PostGIS")
		fromDB     = flag.Bool("from-db", false, "Read the dataset back from PostGIS before writing snapshots")
		timeout    = flag.Duration("timeout", 2*time.Minute, "Database timeout")
	)
	flag.Parse()

	w, err := world.Load(world.Options{ConfigFile: *configFile, DataPath: *dataFile})
	if err != nil {
		log.Fatalf("Failed to load: %v", err)
	}
	log.Printf("Dataset: %d locations, %d rejected entries\n", len(w.Dataset.Locations), len(w.Dataset.Rejected))

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if *toPostGIS || *fromDB {
		store, err := postgis.NewStore(ctx, w.Config.Postgres)
		if err != nil {
			log.Fatalf("Failed to connect to PostGIS: %v", err)
		}
		defer store.Close()

		if *toPostGIS {
			loadPostGIS(ctx, store, w.Dataset)
		}
		if *fromDB {
			ds, err := store.Dataset(ctx)
			if err != nil {
				log.Fatalf("Failed to read dataset from PostGIS: %v", err)
			}
			log.Printf("Read %d locations back from PostGIS\n", len(ds.Locations))
			w = world.New(w.Config, w.Logger, ds)
		}
	}

	dir := w.Config.Data.SnapshotDir
	if *outputDir != "" {
		dir = *outputDir
		w.Config.Data.SnapshotDir = dir
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Fatalf("Failed to create snapshot directory: %v", err)
	}

	for _, n := range dataset.Networks {
		start := time.Now()
		g := w.Graph(n)
		buildTime := time.Since(start)

		path := w.SnapshotPath(n)
		if err := g.SaveToFile(path); err != nil {
			log.Fatalf("Failed to save %s graph: %v", n, err)
		}

		// Round trip to make sure the snapshot rebuilds the same graph
		loaded, err := routegraph.LoadFromFile(path, routegraph.WithLogger(w.Logger))
		if err != nil {
			log.Fatalf("Failed to reload %s graph: %v", n, err)
		}
		if loaded.EdgeCount() != g.EdgeCount() || loaded.Len() != g.Len() {
			log.Fatalf("Snapshot %s does not match: %d/%d edges, %d/%d locations",
				path, loaded.EdgeCount(), g.EdgeCount(), loaded.Len(), g.Len())
		}

		fileInfo, err := os.Stat(path)
		if err == nil {
			log.Printf("%s: %d locations, %d edges, %d anomalies, built in %v, %s (%.1f KB)\n",
				n, g.Len(), g.EdgeCount(), len(g.Anomalies()), buildTime, path, float64(fileInfo.Size())/1024)
		}
	}
}

func loadPostGIS(ctx context.Context, store *postgis.Store, ds *dataset.Dataset) {
	log.Println("Initializing PostGIS schema...")
	if err := store.InitSchema(ctx); err != nil {
		log.Fatalf("Failed to initialize schema: %v", err)
	}

	start := time.Now()
	if err := store.SaveDataset(ctx, ds); err != nil {
		log.Fatalf("Failed to save dataset: %v", err)
	}
	log.Printf("Dataset saved in %v\n", time.Since(start))

	log.Println("Creating spatial index...")
	if err := store.CreateSpatialIndex(ctx); err != nil {
		log.Fatalf("Failed to create spatial index: %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		log.Printf("Failed to read stats: %v", err)
	} else {
		for k, v := range stats {
			log.Printf("  %s: %v\n", k, v)
		}
	}

	// Spot check: the whole world should return every Earth location
	globe := orb.Bound{Min: orb.Point{-180, -90}, Max: orb.Point{180, 90}}
	earth, err := store.LocationsInBox(ctx, globe)
	if err != nil {
		log.Fatalf("Failed to query locations: %v", err)
	}
	log.Printf("PostGIS holds %d Earth locations\n", len(earth))
}
