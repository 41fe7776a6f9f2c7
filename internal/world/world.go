// Package world wires configuration, logging, datasets, graphs and spawners
// together for the command line tools.
package world

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/kass/go-globe-routes/internal/config"
	"github.com/kass/go-globe-routes/internal/logs"
	"github.com/kass/go-globe-routes/pkg/dataset"
	"github.com/kass/go-globe-routes/pkg/itinerary"
	"github.com/kass/go-globe-routes/pkg/models"
	"github.com/kass/go-globe-routes/pkg/pathfind"
	"github.com/kass/go-globe-routes/pkg/routegraph"
	"github.com/kass/go-globe-routes/pkg/rtree"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Options selects the config file, dataset and log output
type Options struct {
	// ConfigFile is an explicit config path. Empty searches ./config and its parents.
	ConfigFile string
	// DataPath overrides data.path from the config
	DataPath string
	// LogLevel overrides env.log.level from the config
	LogLevel string
	// LogWriter defaults to stderr
	LogWriter io.Writer
}

// World is the loaded state shared by every command
type World struct {
	Config  *config.Config
	Logger  *slog.Logger
	Dataset *dataset.Dataset

	mu     sync.Mutex
	graphs map[dataset.Network]*routegraph.Graph
	caches map[dataset.Network]*pathfind.Cache
	index  *rtree.LocationIndex
}

// Load reads config, builds the logger and loads the dataset
func Load(opts Options) (*World, error) {
	var (
		cfg *config.Config
		err error
	)
	if opts.ConfigFile != "" {
		cfg, err = config.LoadFile(opts.ConfigFile)
	} else {
		cfg, err = config.New()
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load config")
	}

	return FromConfig(cfg, opts)
}

// FromConfig builds a world from an already loaded config
func FromConfig(cfg *config.Config, opts Options) (*World, error) {
	logCfg := cfg.Env.Log
	if opts.LogLevel != "" {
		logCfg.Level = opts.LogLevel
	}

	var (
		logger *slog.Logger
		err    error
	)
	if opts.LogWriter != nil {
		logger, err = logs.NewWithWriter(logCfg, opts.LogWriter)
	} else {
		logger, err = logs.New(logCfg)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to create logger")
	}

	dataPath := cfg.Data.Path
	if opts.DataPath != "" {
		dataPath = opts.DataPath
	}

	var ds *dataset.Dataset
	if dataPath == "" {
		ds, err = dataset.Sample()
	} else {
		ds, err = dataset.LoadFile(dataPath)
	}
	if err != nil {
		return nil, err
	}

	for _, r := range ds.Rejected {
		logger.Warn("dropped dataset entry", "entry", r.String())
	}
	logger.Debug("dataset loaded", "path", dataPath, "locations", len(ds.Locations), "rejected", len(ds.Rejected))

	return New(cfg, logger, ds), nil
}

// New assembles a world from parts
func New(cfg *config.Config, logger *slog.Logger, ds *dataset.Dataset) *World {
	return &World{
		Config:  cfg,
		Logger:  logger,
		Dataset: ds,
		graphs:  make(map[dataset.Network]*routegraph.Graph),
		caches:  make(map[dataset.Network]*pathfind.Cache),
	}
}

// Graph returns the route graph of a network, building it on first use
func (w *World) Graph(n dataset.Network) *routegraph.Graph {
	w.mu.Lock()
	defer w.mu.Unlock()

	g, ok := w.graphs[n]
	if !ok {
		g = w.Dataset.Graph(n, routegraph.WithLogger(w.Logger.With("network", string(n))))
		w.graphs[n] = g
	}
	return g
}

// Cache returns the shared path cache of a network
func (w *World) Cache(n dataset.Network) *pathfind.Cache {
	g := w.Graph(n)

	w.mu.Lock()
	defer w.mu.Unlock()

	c, ok := w.caches[n]
	if !ok {
		c = pathfind.NewCache(g)
		w.caches[n] = c
	}
	return c
}

// Index returns a spatial index over the Earth locations of the dataset
func (w *World) Index() *rtree.LocationIndex {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.index == nil {
		w.index = rtree.NewLocationIndex()
		w.index.Index(w.Dataset.Locations)
	}
	return w.index
}

// Selector creates the itinerary selector of one vehicle type over its network
func (w *World) Selector(v models.VehicleType, opts ...itinerary.Option) (*itinerary.Selector, error) {
	vc, err := w.Config.Vehicle(v)
	if err != nil {
		return nil, err
	}

	network := dataset.NetworkFor(v)
	base := []itinerary.Option{itinerary.WithLogger(w.Logger.With("vehicle", string(v)))}
	if seed := w.Config.Spawner.Seed; seed != 0 {
		base = append(base, itinerary.WithSeed(seed+vehicleSeedOffset(v)))
	}
	if w.Config.Spawner.UseCache {
		base = append(base, itinerary.WithCache(w.Cache(network)))
	}

	return itinerary.NewSelector(w.Graph(network), vc.Selector(v), append(base, opts...)...)
}

// Candidates returns the spawn endpoints of a vehicle type: every location with a route on its network
func (w *World) Candidates(v models.VehicleType) []string {
	return w.Graph(dataset.NetworkFor(v)).Names()
}

// Spawners creates one spawner per configured vehicle type, each ticking at its own interval
func (w *World) Spawners() ([]*itinerary.Spawner, error) {
	var spawners []*itinerary.Spawner
	for _, v := range w.Config.VehicleTypes() {
		sel, err := w.Selector(v)
		if err != nil {
			return nil, errors.Wrapf(err, "selector for %s", v)
		}
		vc, err := w.Config.Vehicle(v)
		if err != nil {
			return nil, err
		}
		spawners = append(spawners, itinerary.NewSpawner(vc.SpawnInterval, w.Logger,
			itinerary.Lane{Selector: sel, Candidates: w.Candidates(v)}))
	}
	return spawners, nil
}

// RunFleet runs spawners until ctx is cancelled and merges their output.
// The returned channel closes after every spawner has stopped; wait then
// reports the first spawner error.
func RunFleet(ctx context.Context, spawners []*itinerary.Spawner) (out <-chan *models.Itinerary, wait func() error) {
	merged := make(chan *models.Itinerary)
	eg, egCtx := errgroup.WithContext(ctx)

	for _, sp := range spawners {
		eg.Go(func() error { return sp.Run(egCtx) })
		eg.Go(func() error {
			for it := range sp.Itineraries() {
				select {
				case merged <- it:
				case <-egCtx.Done():
				}
			}
			return nil
		})
	}

	var err error
	done := make(chan struct{})
	go func() {
		err = eg.Wait()
		close(merged)
		close(done)
	}()

	return merged, func() error {
		<-done
		return err
	}
}

// SnapshotPath returns the gob snapshot path of a network
func (w *World) SnapshotPath(n dataset.Network) string {
	return filepath.Join(w.Config.Data.SnapshotDir, string(n)+".gob")
}

func vehicleSeedOffset(v models.VehicleType) int64 {
	switch v {
	case models.VehiclePlane:
		return 1
	case models.VehicleBoat:
		return 2
	default:
		return 0
	}
}
