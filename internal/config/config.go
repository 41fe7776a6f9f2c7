package config

import (
	_ "embed"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/go-viper/mapstructure/v2"
	"github.com/kass/go-globe-routes/pkg/itinerary"
	"github.com/kass/go-globe-routes/pkg/models"
	"github.com/kass/go-globe-routes/pkg/postgis"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

const (
	defaultPath = "."
	envPrefix   = "GLOBE_"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// ErrConfigNotFound is returned when no config file exists in any search path
var ErrConfigNotFound = errors.New("config: file not found")

type Config struct {
	Env struct {
		Env         string `json:"env" yaml:"env"`
		ServiceName string `json:"serviceName" yaml:"serviceName"`
		Log         Log    `json:"log" yaml:"log"`
	} `json:"env" yaml:"env"`

	Data Data `json:"data" yaml:"data"`

	Spawner Spawner `json:"spawner" yaml:"spawner"`

	// Vehicles is keyed by vehicle type: train, plane, boat
	Vehicles map[string]Vehicle `json:"vehicles" yaml:"vehicles"`

	Postgres postgis.Config `json:"postgres" yaml:"postgres"`
}

type Log struct {
	Pretty bool   `json:"pretty" yaml:"pretty"`
	Level  string `json:"level" yaml:"level"`
}

// Data locates the dataset and graph snapshots
type Data struct {
	Path        string `json:"path" yaml:"path"`
	SnapshotDir string `json:"snapshotDir" yaml:"snapshotDir"`
}

// Spawner configures the spawn loop shared by all vehicle types
type Spawner struct {
	Seed         int64 `json:"seed" yaml:"seed"`
	UseCache     bool  `json:"useCache" yaml:"useCache"`
	BatchWorkers int   `json:"batchWorkers" yaml:"batchWorkers"`
}

// Vehicle holds the tunables of one vehicle type
type Vehicle struct {
	MultiStopChance   float64       `json:"multiStopChance" yaml:"multiStopChance"`
	MinStops          int           `json:"minStops" yaml:"minStops"`
	MaxStops          int           `json:"maxStops" yaml:"maxStops"`
	MaxHops           int           `json:"maxHops" yaml:"maxHops"`
	MaxValidPaths     int           `json:"maxValidPaths" yaml:"maxValidPaths"`
	PrimaryHub        string        `json:"primaryHub" yaml:"primaryHub"`
	PrimaryHubShare   float64       `json:"primaryHubShare" yaml:"primaryHubShare"`
	SecondaryHub      string        `json:"secondaryHub" yaml:"secondaryHub"`
	SecondaryHubShare float64       `json:"secondaryHubShare" yaml:"secondaryHubShare"`
	HubRouteChance    float64       `json:"hubRouteChance" yaml:"hubRouteChance"`
	HubStopBonus      float64       `json:"hubStopBonus" yaml:"hubStopBonus"`
	MaxAttempts       int           `json:"maxAttempts" yaml:"maxAttempts"`
	SpawnInterval     time.Duration `json:"spawnInterval" yaml:"spawnInterval"`
}

// Selector converts the tunables into a selector configuration
func (v Vehicle) Selector(vehicle models.VehicleType) itinerary.VehicleConfig {
	return itinerary.VehicleConfig{
		Vehicle:           vehicle,
		MultiStopChance:   v.MultiStopChance,
		MinStops:          v.MinStops,
		MaxStops:          v.MaxStops,
		MaxHops:           v.MaxHops,
		MaxValidPaths:     v.MaxValidPaths,
		PrimaryHub:        v.PrimaryHub,
		PrimaryHubShare:   v.PrimaryHubShare,
		SecondaryHub:      v.SecondaryHub,
		SecondaryHubShare: v.SecondaryHubShare,
		HubRouteChance:    v.HubRouteChance,
		HubStopBonus:      v.HubStopBonus,
		MaxAttempts:       v.MaxAttempts,
	}
}

// Vehicle returns the tunables of one vehicle type
func (c *Config) Vehicle(vehicle models.VehicleType) (Vehicle, error) {
	v, ok := c.Vehicles[string(vehicle)]
	if !ok {
		return Vehicle{}, errors.Errorf("no configuration for vehicle %q", vehicle)
	}
	return v, nil
}

// VehicleTypes returns the configured vehicle types in name order
func (c *Config) VehicleTypes() []models.VehicleType {
	out := make([]models.VehicleType, 0, len(c.Vehicles))
	for name := range c.Vehicles {
		out = append(out, models.VehicleType(name))
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Validate checks every vehicle section
func (c *Config) Validate() error {
	for name, v := range c.Vehicles {
		switch models.VehicleType(name) {
		case models.VehicleTrain, models.VehiclePlane, models.VehicleBoat:
		default:
			return errors.Errorf("unknown vehicle type %q", name)
		}
		if err := v.Selector(models.VehicleType(name)).Validate(); err != nil {
			return err
		}
		if v.SpawnInterval <= 0 {
			return errors.Errorf("%s: spawnInterval must be positive", name)
		}
	}
	return nil
}

// bytesProvider feeds raw bytes to koanf
type bytesProvider []byte

func (b bytesProvider) ReadBytes() ([]byte, error) {
	return b, nil
}

func (b bytesProvider) Read() (map[string]any, error) {
	return nil, errors.New("bytesProvider does not support Read")
}

// LoadWithEnv layers the embedded defaults, <currEnv>.yaml from the first
// search path that has it, and GLOBE_* environment variables.
// A missing file is not an error when defaults are enough.
func LoadWithEnv[T any](currEnv string, configPath ...string) (*T, error) {
	cfg := new(T)
	koanfInstance := koanf.New(".")

	if err := koanfInstance.Load(bytesProvider(defaultsYAML), yaml.Parser()); err != nil {
		return nil, errors.Wrap(err, "read embedded defaults failed")
	}

	configFile, err := findConfigFile(currEnv, configPath...)
	switch {
	case err == nil:
		if err := koanfInstance.Load(file.Provider(configFile), yaml.Parser()); err != nil {
			return nil, errors.Wrapf(err, "read %s config failed", currEnv)
		}
	case !errors.Is(err, ErrConfigNotFound):
		return nil, err
	}

	existingConfigMap := koanfInstance.Raw()

	if err := koanfInstance.Load(env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(k, v string) (string, any) {
			// GLOBE_VEHICLES_TRAIN_MAXHOPS -> vehicles.train.maxHops
			key := canonicalizeEnvKey(strings.TrimPrefix(k, envPrefix), existingConfigMap)

			return key, v
		},
	}), nil); err != nil {
		return nil, errors.Wrap(err, "load env variables failed")
	}

	if err := koanfInstance.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
			),
			MatchName: func(mapKey, fieldName string) bool {
				return strings.EqualFold(mapKey, fieldName)
			},
		},
	}); err != nil {
		return nil, errors.Wrapf(err, "unmarshal %s config failed", currEnv)
	}

	return cfg, nil
}

// findConfigFile returns the first <currEnv>.yaml found. Entries of
// configPath may be absolute or relative to the working directory.
func findConfigFile(currEnv string, configPath ...string) (string, error) {
	searchPaths := []string{defaultPath}
	if len(configPath) != 0 {
		pwd, err := os.Getwd()
		if err != nil {
			return "", errors.Wrap(err, "os.Getwd")
		}
		for _, path := range configPath {
			if !filepath.IsAbs(path) {
				path = filepath.Join(pwd, path)
			}
			searchPaths = append(searchPaths, path)
		}
	}

	for _, path := range searchPaths {
		candidate := filepath.Join(path, currEnv+".yaml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	return "", errors.Wrapf(ErrConfigNotFound, "%s.yaml", currEnv)
}

// New loads config.yaml from ./config or its parents, then validates it
func New() (*Config, error) {
	return Load("config", "config", "../config", "../../config")
}

// Load is New with an explicit file name and search paths
func Load(currEnv string, configPath ...string) (*Config, error) {
	cfg, err := LoadWithEnv[Config](currEnv, configPath...)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	return cfg, nil
}

// LoadFile loads an explicit config file path
func LoadFile(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, errors.Wrapf(err, "config file %s", path)
	}
	base := filepath.Base(path)
	return Load(strings.TrimSuffix(base, filepath.Ext(base)), filepath.Dir(path))
}

func canonicalizeEnvKey(rawKey string, existing map[string]any) string {
	segments := strings.Split(strings.ToLower(rawKey), "_")
	canonical := make([]string, 0, len(segments))
	current := existing

	for _, segment := range segments {
		if segment == "" {
			continue
		}

		if matched, next, ok := findExistingSegment(current, segment); ok {
			canonical = append(canonical, matched)
			current = next
		} else {
			canonical = append(canonical, segment)
			current = nil
		}
	}

	return strings.Join(canonical, ".")
}

func findExistingSegment(current map[string]any, segment string) (matched string, next map[string]any, ok bool) {
	if len(current) == 0 {
		return "", nil, false
	}

	needle := normalizeToken(segment)
	for key, value := range current {
		if normalizeToken(key) != needle {
			continue
		}

		child, _ := value.(map[string]any)

		return key, child, true
	}

	return "", nil, false
}

func normalizeToken(s string) string {
	var normalized strings.Builder
	normalized.Grow(len(s))

	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			continue
		}
		normalized.WriteRune(unicode.ToLower(r))
	}

	return normalized.String()
}
