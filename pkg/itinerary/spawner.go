package itinerary

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/kass/go-globe-routes/pkg/models"
	"github.com/pkg/errors"
)

// Lane pairs a selector with the endpoints its vehicles may use
type Lane struct {
	Selector   *Selector
	Candidates []string
}

// Spawner asks every lane for an itinerary on a fixed interval
type Spawner struct {
	lanes    []Lane
	interval time.Duration
	logger   *slog.Logger
	out      chan *models.Itinerary

	spawned atomic.Int64
	skipped atomic.Int64
}

// DefaultSpawnInterval replaces a non-positive interval passed to NewSpawner
const DefaultSpawnInterval = time.Second

// NewSpawner creates a spawner. Itineraries are delivered on Itineraries().
// An interval of zero or less falls back to DefaultSpawnInterval.
func NewSpawner(interval time.Duration, logger *slog.Logger, lanes ...Lane) *Spawner {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		logger.Warn("non-positive spawn interval, using default",
			"interval", interval, "default", DefaultSpawnInterval)
		interval = DefaultSpawnInterval
	}
	return &Spawner{
		lanes:    lanes,
		interval: interval,
		logger:   logger,
		out:      make(chan *models.Itinerary, len(lanes)),
	}
}

// Itineraries returns the delivery channel. It is closed when Run returns.
func (s *Spawner) Itineraries() <-chan *models.Itinerary {
	return s.out
}

// Tick runs one spawn round synchronously. Lanes that cannot produce an
// itinerary are skipped for this round.
func (s *Spawner) Tick() ([]*models.Itinerary, error) {
	produced := make([]*models.Itinerary, 0, len(s.lanes))
	for _, lane := range s.lanes {
		it, err := lane.Selector.Select(lane.Candidates)
		if errors.Is(err, ErrNoItinerary) {
			s.skipped.Add(1)
			s.logger.Info("no itinerary this tick, skipping spawn",
				"vehicle", lane.Selector.Config().Vehicle, "error", err)
			continue
		}
		if err != nil {
			return produced, err
		}
		s.spawned.Add(1)
		produced = append(produced, it)
	}
	return produced, nil
}

// Run ticks until ctx is cancelled, then closes the delivery channel
func (s *Spawner) Run(ctx context.Context) error {
	defer close(s.out)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		produced, err := s.Tick()
		if err != nil {
			return err
		}
		for _, it := range produced {
			select {
			case s.out <- it:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

// Stats returns how many spawns succeeded and how many were skipped
func (s *Spawner) Stats() (spawned, skipped int64) {
	return s.spawned.Load(), s.skipped.Load()
}
