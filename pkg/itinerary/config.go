package itinerary

import (
	"github.com/kass/go-globe-routes/pkg/models"
	"github.com/pkg/errors"
)

// ErrInvalidConfig is returned by VehicleConfig.Validate
var ErrInvalidConfig = errors.New("itinerary: invalid vehicle config")

// VehicleConfig holds the tunables of one vehicle type
type VehicleConfig struct {
	Vehicle models.VehicleType

	// MultiStopChance is the probability of preferring a multi-stop path when one exists
	MultiStopChance float64
	// MinStops and MaxStops bound the node count of a multi-stop path
	MinStops int
	MaxStops int
	// MaxHops and MaxValidPaths bound each path search
	MaxHops       int
	MaxValidPaths int

	PrimaryHub        string
	PrimaryHubShare   float64
	SecondaryHub      string
	SecondaryHubShare float64
	// HubRouteChance is the probability that a trip from a non-hub is sent to a hub
	HubRouteChance float64
	// HubStopBonus adds weight to multi-stop paths per hub passed through
	HubStopBonus float64

	// MaxAttempts caps endpoint resampling per Select call
	MaxAttempts int
}

// DefaultVehicleConfig returns the stock tunables for a vehicle type
func DefaultVehicleConfig(vehicle models.VehicleType) VehicleConfig {
	cfg := VehicleConfig{
		Vehicle:           vehicle,
		MinStops:          3,
		PrimaryHubShare:   0.15,
		SecondaryHubShare: 0.10,
		HubRouteChance:    0.25,
		HubStopBonus:      0.5,
		MaxAttempts:       10,
	}

	switch vehicle {
	case models.VehiclePlane:
		cfg.MultiStopChance = 0.2
		cfg.MaxStops = 4
		cfg.MaxHops = 3
		cfg.MaxValidPaths = 20
	case models.VehicleBoat:
		cfg.MultiStopChance = 0.4
		cfg.MaxStops = 5
		cfg.MaxHops = 4
		cfg.MaxValidPaths = 20
	default:
		cfg.MultiStopChance = 0.6
		cfg.MaxStops = 6
		cfg.MaxHops = 5
		cfg.MaxValidPaths = 30
	}

	return cfg
}

// Validate checks ranges and cross-field constraints
func (c VehicleConfig) Validate() error {
	switch {
	case c.MultiStopChance < 0 || c.MultiStopChance > 1:
		return errors.Wrapf(ErrInvalidConfig, "%s: multiStopChance %.2f outside [0,1]", c.Vehicle, c.MultiStopChance)
	case c.HubRouteChance < 0 || c.HubRouteChance > 1:
		return errors.Wrapf(ErrInvalidConfig, "%s: hubRouteChance %.2f outside [0,1]", c.Vehicle, c.HubRouteChance)
	case c.PrimaryHubShare < 0 || c.SecondaryHubShare < 0 || c.PrimaryHubShare+c.SecondaryHubShare > 1:
		return errors.Wrapf(ErrInvalidConfig, "%s: hub shares must be non-negative and sum to at most 1", c.Vehicle)
	case c.MinStops < 3:
		return errors.Wrapf(ErrInvalidConfig, "%s: minStops %d below 3", c.Vehicle, c.MinStops)
	case c.MaxStops < c.MinStops:
		return errors.Wrapf(ErrInvalidConfig, "%s: maxStops %d below minStops %d", c.Vehicle, c.MaxStops, c.MinStops)
	case c.MaxHops < 1:
		return errors.Wrapf(ErrInvalidConfig, "%s: maxHops %d below 1", c.Vehicle, c.MaxHops)
	case c.MaxValidPaths < 1:
		return errors.Wrapf(ErrInvalidConfig, "%s: maxValidPaths %d below 1", c.Vehicle, c.MaxValidPaths)
	case c.MaxAttempts < 1:
		return errors.Wrapf(ErrInvalidConfig, "%s: maxAttempts %d below 1", c.Vehicle, c.MaxAttempts)
	case c.HubStopBonus < 0:
		return errors.Wrapf(ErrInvalidConfig, "%s: hubStopBonus %.2f is negative", c.Vehicle, c.HubStopBonus)
	}

	return nil
}

func (c VehicleConfig) isHub(name string) bool {
	return name != "" && (name == c.PrimaryHub || name == c.SecondaryHub)
}
