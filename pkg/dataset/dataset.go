// Package dataset loads location and connection documents from JSON or YAML.
package dataset

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kass/go-globe-routes/pkg/models"
	"github.com/kass/go-globe-routes/pkg/routegraph"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

//go:embed sample.yaml
var sampleYAML []byte

// ErrUnsupportedFormat is returned for file extensions other than .json, .yaml and .yml
var ErrUnsupportedFormat = errors.New("dataset: unsupported format")

// Network names one transport network of a document
type Network string

const (
	NetworkRail Network = "rail"
	NetworkAir  Network = "air"
	NetworkSea  Network = "sea"
)

// Networks lists every network in document order
var Networks = []Network{NetworkRail, NetworkAir, NetworkSea}

// NetworkFor returns the network a vehicle type travels on
func NetworkFor(v models.VehicleType) Network {
	switch v {
	case models.VehiclePlane:
		return NetworkAir
	case models.VehicleBoat:
		return NetworkSea
	default:
		return NetworkRail
	}
}

// Format is a document encoding
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

// LocationRecord is one location entry as written in a document.
// Earth entries carry lat/lon, Moon and Mars entries carry x/y.
type LocationRecord struct {
	Name string   `json:"name" yaml:"name"`
	Kind string   `json:"kind,omitempty" yaml:"kind,omitempty"`
	Lat  *float64 `json:"lat,omitempty" yaml:"lat,omitempty"`
	Lon  *float64 `json:"lon,omitempty" yaml:"lon,omitempty"`
	X    *float64 `json:"x,omitempty" yaml:"x,omitempty"`
	Y    *float64 `json:"y,omitempty" yaml:"y,omitempty"`
	Hub  bool     `json:"hub,omitempty" yaml:"hub,omitempty"`
	Tags []string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// Document is the on-disk shape of a dataset
type Document struct {
	Locations []LocationRecord    `json:"locations" yaml:"locations"`
	Rail      []models.Connection `json:"rail,omitempty" yaml:"rail,omitempty"`
	Air       []models.Connection `json:"air,omitempty" yaml:"air,omitempty"`
	Sea       []models.Connection `json:"sea,omitempty" yaml:"sea,omitempty"`
}

// Rejection describes an entry dropped while loading
type Rejection struct {
	Section string
	Index   int
	Name    string
	Reason  string
}

func (r Rejection) String() string {
	return fmt.Sprintf("%s[%d] %q: %s", r.Section, r.Index, r.Name, r.Reason)
}

// Dataset is a validated document: every location has a unique name and
// well-formed coordinates. Connections are passed through unchecked; the
// graph builder records their anomalies.
type Dataset struct {
	Locations []models.Location
	Networks  map[Network][]models.Connection
	Rejected  []Rejection
}

// LoadFile reads a dataset, choosing the decoder from the file extension
func LoadFile(path string) (*Dataset, error) {
	var format Format
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		format = FormatJSON
	case ".yaml", ".yml":
		format = FormatYAML
	default:
		return nil, errors.Wrapf(ErrUnsupportedFormat, "%s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read dataset %s", path)
	}

	ds, err := Parse(data, format)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load dataset %s", path)
	}
	return ds, nil
}

// Parse decodes and validates a document
func Parse(data []byte, format Format) (*Dataset, error) {
	var doc Document
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, errors.Wrap(err, "failed to decode JSON document")
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, errors.Wrap(err, "failed to decode YAML document")
		}
	default:
		return nil, errors.Wrapf(ErrUnsupportedFormat, "format %d", format)
	}

	return FromDocument(doc), nil
}

// Sample returns the embedded demo world
func Sample() (*Dataset, error) {
	ds, err := Parse(sampleYAML, FormatYAML)
	if err != nil {
		return nil, errors.Wrap(err, "embedded sample")
	}
	return ds, nil
}

// FromDocument validates a decoded document
func FromDocument(doc Document) *Dataset {
	ds := &Dataset{Networks: make(map[Network][]models.Connection, len(Networks))}
	seen := make(map[string]struct{}, len(doc.Locations))

	for i, rec := range doc.Locations {
		loc, reason := rec.toLocation()
		if reason == "" {
			if _, dup := seen[loc.Name]; dup {
				reason = "duplicate name"
			}
		}
		if reason != "" {
			ds.Rejected = append(ds.Rejected, Rejection{Section: "locations", Index: i, Name: rec.Name, Reason: reason})
			continue
		}
		seen[loc.Name] = struct{}{}
		ds.Locations = append(ds.Locations, loc)
	}

	for network, conns := range map[Network][]models.Connection{
		NetworkRail: doc.Rail,
		NetworkAir:  doc.Air,
		NetworkSea:  doc.Sea,
	} {
		kept := make([]models.Connection, 0, len(conns))
		for i, c := range conns {
			c.From, c.To = strings.TrimSpace(c.From), strings.TrimSpace(c.To)
			if c.From == "" || c.To == "" {
				ds.Rejected = append(ds.Rejected, Rejection{Section: string(network), Index: i, Name: c.From + "-" + c.To, Reason: "empty endpoint"})
				continue
			}
			kept = append(kept, c)
		}
		ds.Networks[network] = kept
	}

	sort.SliceStable(ds.Rejected, func(i, j int) bool {
		if ds.Rejected[i].Section != ds.Rejected[j].Section {
			return ds.Rejected[i].Section < ds.Rejected[j].Section
		}
		return ds.Rejected[i].Index < ds.Rejected[j].Index
	})

	return ds
}

// toLocation converts a record, returning a non-empty reason when it is malformed
func (r LocationRecord) toLocation() (models.Location, string) {
	name := strings.TrimSpace(r.Name)
	if name == "" {
		return models.Location{}, "empty name"
	}

	kind, err := models.ParseLocationKind(r.Kind)
	if err != nil {
		return models.Location{}, err.Error()
	}

	var loc models.Location
	if kind == models.KindEarth {
		if r.Lat == nil || r.Lon == nil {
			return models.Location{}, "missing lat/lon"
		}
		loc = models.NewEarthLocation(name, *r.Lat, *r.Lon)
		if c, _ := loc.Earth(); !c.Valid() {
			return models.Location{}, fmt.Sprintf("coordinates out of range (%.4f, %.4f)", *r.Lat, *r.Lon)
		}
	} else {
		if r.X == nil || r.Y == nil {
			return models.Location{}, "missing x/y"
		}
		if math.IsNaN(*r.X) || math.IsNaN(*r.Y) || math.IsInf(*r.X, 0) || math.IsInf(*r.Y, 0) {
			return models.Location{}, "non-finite map position"
		}
		loc = models.NewPlanarLocation(name, kind, *r.X, *r.Y)
	}

	loc.Hub = r.Hub
	loc.Tags = r.Tags
	return loc, ""
}

// Connections returns the connection list of one network
func (d *Dataset) Connections(n Network) []models.Connection {
	return d.Networks[n]
}

// Graph builds the route graph of one network over all locations
func (d *Dataset) Graph(n Network, opts ...routegraph.Option) *routegraph.Graph {
	return routegraph.Build(d.Locations, d.Networks[n], opts...)
}

// Hubs returns the names of locations flagged as hubs, sorted
func (d *Dataset) Hubs() []string {
	var hubs []string
	for _, loc := range d.Locations {
		if loc.Hub {
			hubs = append(hubs, loc.Name)
		}
	}
	sort.Strings(hubs)
	return hubs
}

// Document converts the dataset back into its on-disk shape
func (d *Dataset) Document() Document {
	doc := Document{
		Locations: make([]LocationRecord, 0, len(d.Locations)),
		Rail:      d.Networks[NetworkRail],
		Air:       d.Networks[NetworkAir],
		Sea:       d.Networks[NetworkSea],
	}
	for _, loc := range d.Locations {
		rec := LocationRecord{Name: loc.Name, Hub: loc.Hub, Tags: loc.Tags}
		switch c := loc.Coords.(type) {
		case models.EarthCoord:
			rec.Lat, rec.Lon = ptr(c.Lat), ptr(c.Lon)
		case models.PlanarCoord:
			rec.Kind = loc.Kind.String()
			rec.X, rec.Y = ptr(c.X), ptr(c.Y)
		}
		doc.Locations = append(doc.Locations, rec)
	}
	return doc
}

func ptr(f float64) *float64 {
	return &f
}
