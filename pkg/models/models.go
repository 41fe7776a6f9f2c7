package models

import (
	"fmt"
	"strings"

	"github.com/paulmach/orb"
)

// LocationKind identifies which body a location sits on
type LocationKind int

const (
	KindEarth LocationKind = iota
	KindMoon
	KindMars
)

func (k LocationKind) String() string {
	switch k {
	case KindEarth:
		return "earth"
	case KindMoon:
		return "moon"
	case KindMars:
		return "mars"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseLocationKind converts a dataset string to a LocationKind. An empty string means Earth.
func ParseLocationKind(s string) (LocationKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "earth":
		return KindEarth, nil
	case "moon":
		return KindMoon, nil
	case "mars":
		return KindMars, nil
	default:
		return KindEarth, fmt.Errorf("unknown location kind %q", s)
	}
}

// Coordinates is the position payload of a location.
// It is implemented by EarthCoord and PlanarCoord only.
type Coordinates interface {
	isCoordinates()
}

// EarthCoord is a latitude/longitude pair in degrees
type EarthCoord struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func (EarthCoord) isCoordinates() {}

// Point returns the coordinate as an orb.Point (lon, lat order)
func (c EarthCoord) Point() orb.Point {
	return orb.Point{c.Lon, c.Lat}
}

// Valid reports whether the coordinate is within the legal degree ranges
func (c EarthCoord) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

// PlanarCoord is a map position on the Moon or Mars surface maps
type PlanarCoord struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (PlanarCoord) isCoordinates() {}

// Location is a named point. Its name is its identity.
type Location struct {
	Name   string
	Kind   LocationKind
	Coords Coordinates
	Hub    bool
	Tags   []string
}

// NewEarthLocation creates a location on Earth
func NewEarthLocation(name string, lat, lon float64) Location {
	return Location{Name: name, Kind: KindEarth, Coords: EarthCoord{Lat: lat, Lon: lon}}
}

// NewPlanarLocation creates a location on the Moon or Mars map
func NewPlanarLocation(name string, kind LocationKind, x, y float64) Location {
	return Location{Name: name, Kind: kind, Coords: PlanarCoord{X: x, Y: y}}
}

// Earth returns the Earth coordinate of the location, if it has one
func (l Location) Earth() (EarthCoord, bool) {
	c, ok := l.Coords.(EarthCoord)
	return c, ok && l.Kind == KindEarth
}

// Connection is an undirected route between two locations
type Connection struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

// Key returns an orientation-independent key for the connection
func (c Connection) Key() string {
	if c.From < c.To {
		return c.From + "\x00" + c.To
	}
	return c.To + "\x00" + c.From
}

// Neighbor is one entry of an adjacency list
type Neighbor struct {
	Name     string
	Distance float64
}

// Path is an ordered list of location names; consecutive names share an edge
type Path []string

// Stops returns the number of nodes in the path
func (p Path) Stops() int {
	return len(p)
}

// IsDirect reports whether the path is a single hop
func (p Path) IsDirect() bool {
	return len(p) == 2
}

// Start returns the first name of the path
func (p Path) Start() string {
	if len(p) == 0 {
		return ""
	}
	return p[0]
}

// End returns the last name of the path
func (p Path) End() string {
	if len(p) == 0 {
		return ""
	}
	return p[len(p)-1]
}

func (p Path) String() string {
	return strings.Join(p, " -> ")
}

// Leg is one hop of an itinerary
type Leg struct {
	From     string  `json:"from"`
	To       string  `json:"to"`
	Distance float64 `json:"distance"`
}

// VehicleType identifies which network and tunables a spawn uses
type VehicleType string

const (
	VehicleTrain VehicleType = "train"
	VehiclePlane VehicleType = "plane"
	VehicleBoat  VehicleType = "boat"
)

// Itinerary is the path assigned to one spawned vehicle
type Itinerary struct {
	ID            string      `json:"id"`
	Vehicle       VehicleType `json:"vehicle"`
	Path          Path        `json:"path"`
	Legs          []Leg       `json:"legs"`
	TotalDistance float64     `json:"totalDistance"`
	MultiStop     bool        `json:"multiStop"`
}
