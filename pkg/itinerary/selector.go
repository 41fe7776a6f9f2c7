// Package itinerary picks routes for newly spawned vehicles.
//
// A Selector samples an endpoint pair with a bias toward hub locations, asks
// the path finder for candidates and chooses a direct or multi-stop path.
// Disconnected pairs are expected on sparse networks and are resampled; after
// MaxAttempts the caller gets ErrNoItinerary and skips the spawn.
package itinerary

import (
	"log/slog"
	"math/rand"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kass/go-globe-routes/pkg/models"
	"github.com/kass/go-globe-routes/pkg/pathfind"
	"github.com/pkg/errors"
)

// ErrNoItinerary signals that no route could be produced for this spawn attempt
var ErrNoItinerary = errors.New("itinerary: no itinerary available")

// Selector chooses itineraries for one vehicle type over one graph
type Selector struct {
	graph  pathfind.Graph
	cache  *pathfind.Cache
	cfg    VehicleConfig
	logger *slog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// Option configures a Selector
type Option func(*Selector)

// WithRand sets the random source. The selector serializes access to it.
func WithRand(rng *rand.Rand) Option {
	return func(s *Selector) {
		if rng != nil {
			s.rng = rng
		}
	}
}

// WithSeed seeds a private random source
func WithSeed(seed int64) Option {
	return func(s *Selector) {
		s.rng = rand.New(rand.NewSource(seed))
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Selector) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithCache routes path searches through a shared cache built over the same graph
func WithCache(cache *pathfind.Cache) Option {
	return func(s *Selector) {
		s.cache = cache
	}
}

// NewSelector creates a selector. The graph must not change while the selector is in use.
func NewSelector(g pathfind.Graph, cfg VehicleConfig, opts ...Option) (*Selector, error) {
	if g == nil {
		return nil, errors.New("itinerary: graph is nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Selector{
		graph:  g,
		cfg:    cfg,
		logger: slog.Default(),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Config returns the selector's tunables
func (s *Selector) Config() VehicleConfig {
	return s.cfg
}

// Select draws endpoint pairs from candidates until one yields a path, then
// picks a direct or multi-stop itinerary. It returns ErrNoItinerary after
// MaxAttempts unreachable samples.
func (s *Selector) Select(candidates []string) (*models.Itinerary, error) {
	if len(candidates) < 2 {
		return nil, errors.Wrap(ErrNoItinerary, "fewer than two candidate endpoints")
	}

	allowed := make(map[string]struct{}, len(candidates))
	for _, name := range candidates {
		allowed[name] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		from := s.pickFrom(candidates, allowed)
		to, ok := s.pickTo(candidates, allowed, from)
		if !ok {
			continue
		}

		paths := s.findPaths(from, to)
		if len(paths) == 0 {
			s.logger.Debug("endpoint pair unreachable, resampling",
				"vehicle", s.cfg.Vehicle, "from", from, "to", to, "attempt", attempt)
			continue
		}

		path, multi := s.choose(paths)
		// cached paths are shared with later lookups
		path = slices.Clone(path)
		legs, err := pathfind.Legs(s.graph, path)
		if err != nil {
			return nil, errors.Wrap(err, "derive itinerary legs")
		}

		return &models.Itinerary{
			ID:            uuid.NewString(),
			Vehicle:       s.cfg.Vehicle,
			Path:          path,
			Legs:          legs,
			TotalDistance: pathfind.TotalDistance(legs),
			MultiStop:     multi,
		}, nil
	}

	return nil, errors.Wrapf(ErrNoItinerary, "%s: no reachable pair after %d attempts", s.cfg.Vehicle, s.cfg.MaxAttempts)
}

func (s *Selector) findPaths(from, to string) []models.Path {
	if s.cache != nil {
		return s.cache.FindPaths(from, to, s.cfg.MaxHops, s.cfg.MaxValidPaths)
	}
	return pathfind.FindPaths(s.graph, from, to, s.cfg.MaxHops, s.cfg.MaxValidPaths)
}

// pickFrom returns the primary hub with probability PrimaryHubShare, the
// secondary hub with SecondaryHubShare, and a uniform candidate otherwise.
// A hub that is not among the candidates falls through to the uniform pick.
func (s *Selector) pickFrom(candidates []string, allowed map[string]struct{}) string {
	r := s.rng.Float64()
	if _, ok := allowed[s.cfg.PrimaryHub]; ok && r < s.cfg.PrimaryHubShare {
		return s.cfg.PrimaryHub
	}
	_, ok := allowed[s.cfg.SecondaryHub]
	if ok && r >= s.cfg.PrimaryHubShare && r < s.cfg.PrimaryHubShare+s.cfg.SecondaryHubShare {
		return s.cfg.SecondaryHub
	}
	return candidates[s.rng.Intn(len(candidates))]
}

// pickTo sends trips that start away from a hub to a hub with probability
// HubRouteChance; otherwise it picks a uniform candidate other than from.
func (s *Selector) pickTo(candidates []string, allowed map[string]struct{}, from string) (string, bool) {
	if !s.cfg.isHub(from) && s.rng.Float64() < s.cfg.HubRouteChance {
		hub := s.pickHub()
		if _, ok := allowed[hub]; ok && hub != from {
			return hub, true
		}
	}

	others := make([]string, 0, len(candidates))
	for _, name := range candidates {
		if name != from {
			others = append(others, name)
		}
	}
	if len(others) == 0 {
		return "", false
	}
	return others[s.rng.Intn(len(others))], true
}

// pickHub chooses between the configured hubs in proportion to their shares
func (s *Selector) pickHub() string {
	primary, secondary := s.cfg.PrimaryHub, s.cfg.SecondaryHub
	switch {
	case primary == "" && secondary == "":
		return ""
	case secondary == "":
		return primary
	case primary == "":
		return secondary
	}

	total := s.cfg.PrimaryHubShare + s.cfg.SecondaryHubShare
	if total <= 0 {
		if s.rng.Intn(2) == 0 {
			return primary
		}
		return secondary
	}
	if s.rng.Float64()*total < s.cfg.PrimaryHubShare {
		return primary
	}
	return secondary
}

// choose applies the multi-stop decision to the finder's candidates.
// paths is non-empty and, when a direct edge exists, starts with it.
func (s *Selector) choose(paths []models.Path) (models.Path, bool) {
	var multi []models.Path
	for _, p := range paths {
		if len(p) >= 3 && len(p) >= s.cfg.MinStops && len(p) <= s.cfg.MaxStops {
			multi = append(multi, p)
		}
	}

	if len(multi) > 0 && s.rng.Float64() < s.cfg.MultiStopChance {
		return s.weightedPick(multi), true
	}

	if paths[0].IsDirect() {
		return paths[0], false
	}

	// No direct edge: fall back to the candidate with the fewest stops.
	best := paths[0]
	for _, p := range paths[1:] {
		if len(p) < len(best) {
			best = p
		}
	}
	return best, len(best) > 2
}

// weightedPick favors paths that pass through hubs
func (s *Selector) weightedPick(paths []models.Path) models.Path {
	weights := make([]float64, len(paths))
	var total float64
	for i, p := range paths {
		hubs := 0
		for _, name := range p[1 : len(p)-1] {
			if s.cfg.isHub(name) {
				hubs++
			}
		}
		weights[i] = 1 + s.cfg.HubStopBonus*float64(hubs)
		total += weights[i]
	}

	r := s.rng.Float64() * total
	for i, w := range weights {
		if r < w {
			return paths[i]
		}
		r -= w
	}
	return paths[len(paths)-1]
}
