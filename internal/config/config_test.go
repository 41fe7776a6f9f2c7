package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kass/go-globe-routes/pkg/itinerary"
	"github.com/kass/go-globe-routes/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+".yaml"), []byte(content), 0o644))
	return dir
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("missing", t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "globe-routes", cfg.Env.ServiceName)
	assert.Equal(t, "info", cfg.Env.Log.Level)
	assert.Equal(t, []models.VehicleType{models.VehicleBoat, models.VehiclePlane, models.VehicleTrain}, cfg.VehicleTypes())

	train, err := cfg.Vehicle(models.VehicleTrain)
	require.NoError(t, err)
	assert.Equal(t, 5, train.MaxHops)
	assert.Equal(t, "Paris", train.PrimaryHub)
	assert.Equal(t, 2*time.Second, train.SpawnInterval)
	assert.Equal(t, 5432, cfg.Postgres.Port)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	dir := writeConfig(t, "custom", `
vehicles:
  plane:
    maxHops: 4
    primaryHub: Tokyo
data:
  path: worlds/europe.yaml
`)

	cfg, err := Load("custom", dir)
	require.NoError(t, err)

	plane, err := cfg.Vehicle(models.VehiclePlane)
	require.NoError(t, err)
	assert.Equal(t, 4, plane.MaxHops)
	assert.Equal(t, "Tokyo", plane.PrimaryHub)
	assert.Equal(t, "Dubai", plane.SecondaryHub, "unset keys keep their defaults")
	assert.Equal(t, "worlds/europe.yaml", cfg.Data.Path)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("GLOBE_VEHICLES_TRAIN_MAXHOPS", "7")
	t.Setenv("GLOBE_VEHICLES_BOAT_SPAWNINTERVAL", "750ms")
	t.Setenv("GLOBE_ENV_LOG_LEVEL", "debug")
	t.Setenv("GLOBE_DATA_SNAPSHOTDIR", "/var/lib/globe")

	cfg, err := Load("missing", t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Vehicles["train"].MaxHops)
	assert.Equal(t, 750*time.Millisecond, cfg.Vehicles["boat"].SpawnInterval)
	assert.Equal(t, "debug", cfg.Env.Log.Level)
	assert.Equal(t, "/var/lib/globe", cfg.Data.SnapshotDir)
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"chance above one", "vehicles:\n  train:\n    multiStopChance: 2\n"},
		{"unknown vehicle", "vehicles:\n  zeppelin:\n    maxHops: 3\n"},
		{"zero interval", "vehicles:\n  boat:\n    spawnInterval: 0s\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load("bad", writeConfig(t, "bad", tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadFile(t *testing.T) {
	dir := writeConfig(t, "staging", "env:\n  env: staging\n")

	cfg, err := LoadFile(filepath.Join(dir, "staging.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "staging", cfg.Env.Env)

	_, err = LoadFile(filepath.Join(dir, "nope.yaml"))
	assert.Error(t, err)
}

func TestVehicleSelector(t *testing.T) {
	cfg, err := Load("missing", t.TempDir())
	require.NoError(t, err)

	for _, v := range cfg.VehicleTypes() {
		t.Run(string(v), func(t *testing.T) {
			vc, err := cfg.Vehicle(v)
			require.NoError(t, err)

			sel := vc.Selector(v)
			assert.Equal(t, v, sel.Vehicle)
			assert.NoError(t, sel.Validate())

			def := itinerary.DefaultVehicleConfig(v)
			assert.Equal(t, def.MaxHops, sel.MaxHops)
			assert.Equal(t, def.MaxValidPaths, sel.MaxValidPaths)
		})
	}

	_, err = cfg.Vehicle("hovercraft")
	assert.Error(t, err)
}

func TestCanonicalizeEnvKey(t *testing.T) {
	existing := map[string]any{
		"vehicles": map[string]any{
			"train": map[string]any{
				"maxHops":       5,
				"spawnInterval": "2s",
			},
		},
		"data": map[string]any{
			"snapshotDir": "data",
		},
	}

	tests := []struct {
		envKey string
		want   string
	}{
		{envKey: "VEHICLES_TRAIN_MAXHOPS", want: "vehicles.train.maxHops"},
		{envKey: "VEHICLES_TRAIN_SPAWNINTERVAL", want: "vehicles.train.spawnInterval"},
		{envKey: "DATA_SNAPSHOTDIR", want: "data.snapshotDir"},
		{envKey: "VEHICLES_TRAM_MAXHOPS", want: "vehicles.tram.maxhops"},
		{envKey: "NEW__FEATURE", want: "new.feature"},
	}

	for _, tt := range tests {
		t.Run(tt.envKey, func(t *testing.T) {
			assert.Equal(t, tt.want, canonicalizeEnvKey(tt.envKey, existing))
		})
	}
}
