package postgis

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/kass/go-globe-routes/pkg/dataset"
	"github.com/kass/go-globe-routes/pkg/models"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "default sslmode",
			cfg:  Config{Host: "localhost", Port: 5432, User: "geo", Password: "secret", DBName: "routes"},
			want: "host=localhost port=5432 user=geo password=secret dbname=routes sslmode=disable",
		},
		{
			name: "explicit sslmode",
			cfg:  Config{Host: "db", Port: 6543, User: "u", Password: "p", DBName: "d", SSLMode: "require"},
			want: "host=db port=6543 user=u password=p dbname=d sslmode=require",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.DSN())
		})
	}
}

func TestLocationArgs(t *testing.T) {
	earth := models.NewEarthLocation("London", 51.5, -0.12)
	earth.Hub = true
	args := locationArgs(earth)
	require.Len(t, args, 8)
	assert.Equal(t, "London", args[0])
	assert.Equal(t, "earth", args[1])
	assert.Equal(t, true, args[2])
	assert.Equal(t, sql.NullFloat64{Float64: -0.12, Valid: true}, args[4])
	assert.Equal(t, sql.NullFloat64{Float64: 51.5, Valid: true}, args[5])
	assert.False(t, args[6].(sql.NullFloat64).Valid)

	moon := models.NewPlanarLocation("Tycho", models.KindMoon, 80, 150)
	args = locationArgs(moon)
	assert.Equal(t, "moon", args[1])
	assert.False(t, args[4].(sql.NullFloat64).Valid)
	assert.Equal(t, sql.NullFloat64{Float64: 80, Valid: true}, args[6])
}

func TestLocationRow(t *testing.T) {
	valid := func(f float64) sql.NullFloat64 { return sql.NullFloat64{Float64: f, Valid: true} }

	tests := []struct {
		name    string
		row     locationRow
		want    models.Location
		wantErr bool
	}{
		{
			name: "earth",
			row:  locationRow{name: "Paris", kind: "earth", hub: true, tags: []string{"capital"}, lat: valid(48.85), lon: valid(2.35)},
			want: models.Location{Name: "Paris", Kind: models.KindEarth, Coords: models.EarthCoord{Lat: 48.85, Lon: 2.35}, Hub: true, Tags: []string{"capital"}},
		},
		{
			name: "mars",
			row:  locationRow{name: "Gale", kind: "mars", x: valid(420), y: valid(210)},
			want: models.Location{Name: "Gale", Kind: models.KindMars, Coords: models.PlanarCoord{X: 420, Y: 210}},
		},
		{
			name:    "earth without position",
			row:     locationRow{name: "Lost", kind: "earth", x: valid(1), y: valid(2)},
			wantErr: true,
		},
		{
			name:    "unknown kind",
			row:     locationRow{name: "Odd", kind: "pluto", x: valid(1), y: valid(2)},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.row.toLocation()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// TestStoreRoundTrip needs a PostGIS instance; set GLOBE_ROUTES_TEST_DSN to run it.
func TestStoreRoundTrip(t *testing.T) {
	dsn := os.Getenv("GLOBE_ROUTES_TEST_DSN")
	if dsn == "" {
		t.Skip("GLOBE_ROUTES_TEST_DSN not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	require.NoError(t, db.PingContext(ctx))
	s := &Store{db: db}
	defer s.Close()

	ds, err := dataset.Sample()
	require.NoError(t, err)

	require.NoError(t, s.InitSchema(ctx))
	require.NoError(t, s.SaveDataset(ctx, ds))
	require.NoError(t, s.CreateSpatialIndex(ctx))

	locs, conns, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(len(ds.Locations)), locs)
	var total int
	for _, n := range dataset.Networks {
		total += len(ds.Connections(n))
	}
	assert.Equal(t, int64(total), conns)

	loaded, err := s.Dataset(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, ds.Locations, loaded.Locations)
	assert.Equal(t, ds.Connections(dataset.NetworkRail), loaded.Connections(dataset.NetworkRail))

	europe, err := s.LocationsInBox(ctx, orb.Bound{Min: orb.Point{-5, 45}, Max: orb.Point{10, 53}})
	require.NoError(t, err)
	var names []string
	for _, l := range europe {
		names = append(names, l.Name)
	}
	assert.Contains(t, names, "London")
	assert.NotContains(t, names, "Tycho")
}
