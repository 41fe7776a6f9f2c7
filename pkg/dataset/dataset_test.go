package dataset

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/kass/go-globe-routes/pkg/models"
	"github.com/kass/go-globe-routes/pkg/pathfind"
	"github.com/kass/go-globe-routes/pkg/routegraph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietOpts() routegraph.Option {
	return routegraph.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestSample(t *testing.T) {
	ds, err := Sample()
	require.NoError(t, err)

	assert.Len(t, ds.Locations, 39)
	require.Len(t, ds.Rejected, 1)
	assert.Equal(t, "Nowhere", ds.Rejected[0].Name)
	assert.Equal(t, []string{"Dubai", "Frankfurt", "London", "Paris", "Rotterdam", "Singapore"}, ds.Hubs())

	for _, n := range Networks {
		assert.NotEmpty(t, ds.Connections(n), "network %s", n)
	}
}

func TestSampleRailAnomalies(t *testing.T) {
	ds, err := Sample()
	require.NoError(t, err)

	g := ds.Graph(NetworkRail, quietOpts())

	kinds := make(map[routegraph.AnomalyKind]int)
	for _, a := range g.Anomalies() {
		kinds[a.Kind]++
	}
	assert.Equal(t, 1, kinds[routegraph.UnknownLocation])
	assert.Equal(t, 1, kinds[routegraph.SelfLoop])
	assert.Equal(t, 1, kinds[routegraph.KindMismatch])
	assert.Equal(t, 1, kinds[routegraph.Duplicate])

	// Moon and Mars lines are separate components of the rail graph
	assert.NotEmpty(t, pathfind.FindPaths(g, "Tranquility Base", "Tycho", 4, 10))
	assert.Empty(t, pathfind.FindPaths(g, "London", "Tycho", 6, 10))
	assert.NotEmpty(t, pathfind.FindPaths(g, "London", "Warsaw", 5, 10))
}

func TestSampleAirReachesEveryAirport(t *testing.T) {
	ds, err := Sample()
	require.NoError(t, err)

	g := ds.Graph(NetworkAir, quietOpts())
	assert.Empty(t, g.Anomalies())

	for _, name := range g.Names() {
		if name == "London" {
			continue
		}
		_, _, ok := pathfind.ShortestPath(g, "London", name)
		assert.True(t, ok, "no air route London-%s", name)
	}
}

func TestParseRejections(t *testing.T) {
	doc := `
locations:
  - {name: A, lat: 10, lon: 10}
  - {name: "", lat: 0, lon: 0}
  - {name: B, lat: -91, lon: 0}
  - {name: C, lon: 5}
  - {name: A, lat: 1, lon: 1}
  - {name: D, kind: venus, x: 1, y: 1}
  - {name: E, kind: mars, x: 1}
  - {name: F, kind: moon, x: 3, y: 4, hub: true}
rail:
  - {from: A, to: F}
  - {from: A, to: ""}
`
	ds, err := Parse([]byte(doc), FormatYAML)
	require.NoError(t, err)

	assert.Len(t, ds.Locations, 2)
	assert.Equal(t, models.KindMoon, ds.Locations[1].Kind)
	assert.True(t, ds.Locations[1].Hub)

	reasons := make(map[string]string)
	for _, r := range ds.Rejected {
		reasons[r.Section+"/"+r.Name] = r.Reason
	}
	assert.Equal(t, "empty name", reasons["locations/"])
	assert.Contains(t, reasons["locations/B"], "out of range")
	assert.Equal(t, "missing lat/lon", reasons["locations/C"])
	assert.Equal(t, "duplicate name", reasons["locations/A"])
	assert.Contains(t, reasons["locations/D"], "unknown location kind")
	assert.Equal(t, "missing x/y", reasons["locations/E"])
	assert.Equal(t, "empty endpoint", reasons["rail/A-"])

	assert.Equal(t, []models.Connection{{From: "A", To: "F"}}, ds.Connections(NetworkRail))
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()

	sample, err := Sample()
	require.NoError(t, err)
	jsonData, err := json.Marshal(sample.Document())
	require.NoError(t, err)

	tests := []struct {
		name     string
		file     string
		content  []byte
		wantLocs int
		wantErr  error
	}{
		{"yaml", "world.yaml", sampleYAML, 39, nil},
		{"yml", "world.yml", []byte("locations:\n  - {name: X, lat: 1, lon: 2}\n"), 1, nil},
		{"json", "world.json", jsonData, 39, nil},
		{"unsupported", "world.csv", []byte("name,lat,lon"), 0, ErrUnsupportedFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.file)
			require.NoError(t, os.WriteFile(path, tt.content, 0o644))

			ds, err := LoadFile(path)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Len(t, ds.Locations, tt.wantLocs)
		})
	}
}

func TestLoadFileErrors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	_, err = LoadFile(path)
	assert.Error(t, err)
}

func TestNetworkFor(t *testing.T) {
	assert.Equal(t, NetworkRail, NetworkFor(models.VehicleTrain))
	assert.Equal(t, NetworkAir, NetworkFor(models.VehiclePlane))
	assert.Equal(t, NetworkSea, NetworkFor(models.VehicleBoat))
}
