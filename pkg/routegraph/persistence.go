package routegraph

import (
	"encoding/gob"
	"os"

	"github.com/kass/go-globe-routes/pkg/models"
	"github.com/pkg/errors"
)

// snapshotLocation is the flat, gob-friendly form of models.Location
type snapshotLocation struct {
	Name string
	Kind models.LocationKind
	Lat  float64
	Lon  float64
	X    float64
	Y    float64
	Hub  bool
	Tags []string
}

// SnapshotData represents the serializable form of a graph
type SnapshotData struct {
	Locations   []snapshotLocation
	Connections []models.Connection
}

// SaveToFile writes the graph's source data to a binary file.
// The adjacency is rebuilt on load, so anomalies are reproduced exactly.
func (g *Graph) SaveToFile(filename string) error {
	data := SnapshotData{
		Locations:   make([]snapshotLocation, 0, len(g.srcLocations)),
		Connections: g.srcConnections,
	}
	for _, loc := range g.srcLocations {
		sl := snapshotLocation{Name: loc.Name, Kind: loc.Kind, Hub: loc.Hub, Tags: loc.Tags}
		switch c := loc.Coords.(type) {
		case models.EarthCoord:
			sl.Lat, sl.Lon = c.Lat, c.Lon
		case models.PlanarCoord:
			sl.X, sl.Y = c.X, c.Y
		}
		data.Locations = append(data.Locations, sl)
	}

	file, err := os.Create(filename)
	if err != nil {
		return errors.Wrap(err, "failed to create snapshot file")
	}
	defer file.Close()

	if err := gob.NewEncoder(file).Encode(data); err != nil {
		return errors.Wrap(err, "failed to encode snapshot")
	}

	return nil
}

// LoadFromFile reads a snapshot written by SaveToFile and rebuilds the graph
func LoadFromFile(filename string, opts ...Option) (*Graph, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open snapshot file")
	}
	defer file.Close()

	var data SnapshotData
	if err := gob.NewDecoder(file).Decode(&data); err != nil {
		return nil, errors.Wrap(err, "failed to decode snapshot")
	}

	locations := make([]models.Location, 0, len(data.Locations))
	for _, sl := range data.Locations {
		var loc models.Location
		if sl.Kind == models.KindEarth {
			loc = models.NewEarthLocation(sl.Name, sl.Lat, sl.Lon)
		} else {
			loc = models.NewPlanarLocation(sl.Name, sl.Kind, sl.X, sl.Y)
		}
		loc.Hub = sl.Hub
		loc.Tags = sl.Tags
		locations = append(locations, loc)
	}

	return Build(locations, data.Connections, opts...), nil
}
