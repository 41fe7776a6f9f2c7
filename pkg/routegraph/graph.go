// Package routegraph builds weighted, undirected route graphs from named
// locations and the connections between them.
//
// A Graph is built once per connection set (rail, air and sea networks are
// separate instances) and is read-only afterwards, so it can be shared across
// goroutines without locking.
package routegraph

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/kass/go-globe-routes/pkg/geo"
	"github.com/kass/go-globe-routes/pkg/models"
)

// AnomalyKind classifies a connection that was not inserted as-is
type AnomalyKind int

const (
	// UnknownLocation: an endpoint name is not in the location list. The connection is skipped.
	UnknownLocation AnomalyKind = iota
	// SelfLoop: both endpoints are the same name. The connection is skipped.
	SelfLoop
	// KindMismatch: endpoints sit on different bodies. The connection is skipped.
	KindMismatch
	// Duplicate: the same pair was already connected. The connection is skipped.
	Duplicate
	// ZeroDistance: distinct endpoints share a position. The edge is kept.
	ZeroDistance
)

func (k AnomalyKind) String() string {
	switch k {
	case UnknownLocation:
		return "unknown-location"
	case SelfLoop:
		return "self-loop"
	case KindMismatch:
		return "kind-mismatch"
	case Duplicate:
		return "duplicate"
	case ZeroDistance:
		return "zero-distance"
	default:
		return fmt.Sprintf("anomaly(%d)", int(k))
	}
}

// Anomaly records a data-quality problem found while building a graph
type Anomaly struct {
	Kind       AnomalyKind
	Connection models.Connection
	Detail     string
}

func (a Anomaly) String() string {
	return fmt.Sprintf("%s %s-%s: %s", a.Kind, a.Connection.From, a.Connection.To, a.Detail)
}

// Graph maps a location name to the neighbors reachable in one hop
type Graph struct {
	adj       map[string][]models.Neighbor
	locations map[string]models.Location
	anomalies []Anomaly
	edges     int

	// source data kept for snapshots
	srcLocations   []models.Location
	srcConnections []models.Connection
}

// Option configures Build
type Option func(*buildOptions)

type buildOptions struct {
	logger *slog.Logger
}

// WithLogger sets the logger used to report anomalies
func WithLogger(logger *slog.Logger) Option {
	return func(o *buildOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Build constructs a graph from a location list and a connection list.
// Connections whose endpoints cannot be resolved are skipped and recorded
// as anomalies; they never fail the build.
func Build(locations []models.Location, connections []models.Connection, opts ...Option) *Graph {
	options := buildOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&options)
	}

	byName := make(map[string]models.Location, len(locations))
	for _, loc := range locations {
		byName[loc.Name] = loc
	}

	g := &Graph{
		adj:            make(map[string][]models.Neighbor),
		locations:      make(map[string]models.Location),
		srcLocations:   append([]models.Location(nil), locations...),
		srcConnections: append([]models.Connection(nil), connections...),
	}

	seen := make(map[string]struct{}, len(connections))
	for _, conn := range connections {
		from, okFrom := byName[conn.From]
		to, okTo := byName[conn.To]

		switch {
		case !okFrom || !okTo:
			missing := conn.From
			if okFrom {
				missing = conn.To
			}
			g.record(options.logger, UnknownLocation, conn, fmt.Sprintf("location %q not found", missing))
			continue
		case conn.From == conn.To:
			g.record(options.logger, SelfLoop, conn, "endpoints are identical")
			continue
		}

		dist, ok := geo.Between(from, to)
		if !ok {
			g.record(options.logger, KindMismatch, conn, fmt.Sprintf("%s cannot connect to %s", from.Kind, to.Kind))
			continue
		}

		key := conn.Key()
		if _, dup := seen[key]; dup {
			g.record(options.logger, Duplicate, conn, "pair already connected")
			continue
		}
		seen[key] = struct{}{}

		if dist == 0 {
			g.record(options.logger, ZeroDistance, conn, "endpoints share a position")
		}

		g.adj[from.Name] = append(g.adj[from.Name], models.Neighbor{Name: to.Name, Distance: dist})
		g.adj[to.Name] = append(g.adj[to.Name], models.Neighbor{Name: from.Name, Distance: dist})
		g.locations[from.Name] = from
		g.locations[to.Name] = to
		g.edges++
	}

	if len(g.anomalies) > 0 {
		options.logger.Info("route graph built with anomalies",
			"nodes", len(g.adj), "edges", g.edges, "anomalies", len(g.anomalies))
	} else {
		options.logger.Debug("route graph built", "nodes", len(g.adj), "edges", g.edges)
	}

	return g
}

func (g *Graph) record(logger *slog.Logger, kind AnomalyKind, conn models.Connection, detail string) {
	a := Anomaly{Kind: kind, Connection: conn, Detail: detail}
	g.anomalies = append(g.anomalies, a)

	level := slog.LevelWarn
	if kind == Duplicate || kind == ZeroDistance {
		level = slog.LevelDebug
	}
	logger.Log(context.Background(), level, "route graph anomaly",
		"kind", kind.String(), "from", conn.From, "to", conn.To, "detail", detail)
}

// Has reports whether name participates in at least one connection
func (g *Graph) Has(name string) bool {
	_, ok := g.adj[name]
	return ok
}

// Neighbors returns the adjacency list of name. A missing name yields nil,
// which callers treat the same as an empty list. The returned slice must not be modified.
func (g *Graph) Neighbors(name string) []models.Neighbor {
	return g.adj[name]
}

// Distance returns the edge weight between a and b, if they are directly connected
func (g *Graph) Distance(a, b string) (float64, bool) {
	for _, n := range g.adj[a] {
		if n.Name == b {
			return n.Distance, true
		}
	}
	return 0, false
}

// Location returns the location record for a graph node
func (g *Graph) Location(name string) (models.Location, bool) {
	loc, ok := g.locations[name]
	return loc, ok
}

// Names returns all node names in sorted order
func (g *Graph) Names() []string {
	names := make([]string, 0, len(g.adj))
	for name := range g.adj {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of nodes
func (g *Graph) Len() int {
	return len(g.adj)
}

// EdgeCount returns the number of undirected edges
func (g *Graph) EdgeCount() int {
	return g.edges
}

// Anomalies returns the data-quality problems found during Build
func (g *Graph) Anomalies() []Anomaly {
	return append([]Anomaly(nil), g.anomalies...)
}
