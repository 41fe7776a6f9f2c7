package itinerary

import (
	"context"
	"testing"
	"time"

	"github.com/kass/go-globe-routes/pkg/models"
	"github.com/kass/go-globe-routes/pkg/pathfind"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpawnerTickSkipsUnreachableLane(t *testing.T) {
	connected := completeGraph(4)
	islands := build(
		[]models.Location{
			models.NewEarthLocation("A", 0, 0),
			models.NewEarthLocation("B", 0, 1),
			models.NewEarthLocation("C", 30, 0),
			models.NewEarthLocation("D", 30, 1),
		},
		[]models.Connection{{From: "A", To: "B"}, {From: "C", To: "D"}},
	)

	boat := testConfig()
	boat.Vehicle = models.VehicleBoat
	sp := NewSpawner(time.Second, quietLogger(),
		Lane{Selector: newSelector(t, connected, testConfig()), Candidates: connected.Names()},
		Lane{Selector: newSelector(t, islands, boat), Candidates: []string{"A", "C"}},
	)

	produced, err := sp.Tick()
	require.NoError(t, err)
	require.Len(t, produced, 1)
	assert.Equal(t, models.VehicleTrain, produced[0].Vehicle)

	spawned, skipped := sp.Stats()
	assert.Equal(t, int64(1), spawned)
	assert.Equal(t, int64(1), skipped)
}

func TestSpawnerRun(t *testing.T) {
	g := completeGraph(5)
	sp := NewSpawner(5*time.Millisecond, quietLogger(),
		Lane{Selector: newSelector(t, g, testConfig()), Candidates: g.Names()},
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- sp.Run(ctx) }()

	received := 0
	for it := range sp.Itineraries() {
		require.NoError(t, pathfind.Validate(g, it.Path))
		received++
		if received == 3 {
			cancel()
		}
	}

	assert.GreaterOrEqual(t, received, 3)
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestNewSpawnerNonPositiveInterval(t *testing.T) {
	tests := []struct {
		name     string
		interval time.Duration
		want     time.Duration
	}{
		{name: "zero", interval: 0, want: DefaultSpawnInterval},
		{name: "negative", interval: -5 * time.Millisecond, want: DefaultSpawnInterval},
		{name: "positive kept", interval: 20 * time.Millisecond, want: 20 * time.Millisecond},
	}

	g := completeGraph(3)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sp := NewSpawner(tt.interval, quietLogger(),
				Lane{Selector: newSelector(t, g, testConfig()), Candidates: g.Names()},
			)
			assert.Equal(t, tt.want, sp.interval)

			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			assert.NotPanics(t, func() {
				assert.NoError(t, sp.Run(ctx))
			})
		})
	}
}
