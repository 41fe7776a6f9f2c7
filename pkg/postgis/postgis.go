// Package postgis stores locations and connections in PostgreSQL with PostGIS
package postgis

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/kass/go-globe-routes/pkg/dataset"
	"github.com/kass/go-globe-routes/pkg/models"
	"github.com/lib/pq"
	"github.com/paulmach/orb"
	"github.com/pkg/errors"
)

const batchSize = 10000

// Config holds connection settings
type Config struct {
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	User     string `json:"user" yaml:"user"`
	Password string `json:"password" yaml:"password"`
	DBName   string `json:"dbname" yaml:"dbname"`
	SSLMode  string `json:"sslmode" yaml:"sslmode"`
}

// DSN returns the lib/pq connection string
func (c Config) DSN() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, sslMode)
}

// Store persists datasets in two tables: locations and connections
type Store struct {
	db     *sql.DB
	dbName string
}

// NewStore opens and pings a PostGIS connection
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to ping database")
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &Store{db: db, dbName: cfg.DBName}, nil
}

// InitSchema recreates the tables
func (s *Store) InitSchema(ctx context.Context) error {
	queries := []string{
		`CREATE EXTENSION IF NOT EXISTS postgis;`,
		`DROP TABLE IF EXISTS connections;`,
		`DROP TABLE IF EXISTS locations;`,
		`CREATE TABLE locations (
			name TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			hub BOOLEAN NOT NULL DEFAULT FALSE,
			tags TEXT[],
			position GEOMETRY(POINT, 4326),
			x DOUBLE PRECISION,
			y DOUBLE PRECISION
		);`,
		`CREATE TABLE connections (
			id BIGSERIAL PRIMARY KEY,
			network TEXT NOT NULL,
			from_name TEXT NOT NULL,
			to_name TEXT NOT NULL
		);`,
		`CREATE INDEX idx_connections_network ON connections (network);`,
	}

	for _, query := range queries {
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return errors.Wrapf(err, "failed to execute query '%s'", query)
		}
	}

	return nil
}

// CreateSpatialIndex creates a GIST index on the position column
func (s *Store) CreateSpatialIndex(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_locations_position ON locations USING GIST(position);`); err != nil {
		return errors.Wrap(err, "failed to create spatial index")
	}
	if _, err := s.db.ExecContext(ctx, `ANALYZE locations;`); err != nil {
		return errors.Wrap(err, "failed to analyze table")
	}
	return nil
}

// InsertLocations inserts locations in batched transactions
func (s *Store) InsertLocations(ctx context.Context, locations []models.Location) error {
	const query = `
		INSERT INTO locations (name, kind, hub, tags, position, x, y)
		VALUES ($1, $2, $3, $4,
			CASE WHEN $5::float8 IS NULL THEN NULL ELSE ST_SetSRID(ST_MakePoint($5, $6), 4326) END,
			$7, $8)
	`

	return s.batch(ctx, query, len(locations), func(stmt *sql.Stmt, i int) error {
		args := locationArgs(locations[i])
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return errors.Wrapf(err, "failed to insert location %s", locations[i].Name)
		}
		return nil
	})
}

// InsertConnections inserts the connection list of one network, keeping its order
func (s *Store) InsertConnections(ctx context.Context, network string, connections []models.Connection) error {
	const query = `INSERT INTO connections (network, from_name, to_name) VALUES ($1, $2, $3)`

	return s.batch(ctx, query, len(connections), func(stmt *sql.Stmt, i int) error {
		c := connections[i]
		if _, err := stmt.ExecContext(ctx, network, c.From, c.To); err != nil {
			return errors.Wrapf(err, "failed to insert connection %s-%s", c.From, c.To)
		}
		return nil
	})
}

// batch runs exec for n rows, committing every batchSize rows
func (s *Store) batch(ctx context.Context, query string, n int, exec func(*sql.Stmt, int) error) error {
	for start := 0; start < n; start += batchSize {
		end := min(start+batchSize, n)

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return errors.Wrap(err, "failed to begin transaction")
		}
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			tx.Rollback()
			return errors.Wrap(err, "failed to prepare statement")
		}

		for i := start; i < end; i++ {
			if err := exec(stmt, i); err != nil {
				stmt.Close()
				tx.Rollback()
				return err
			}
		}

		stmt.Close()
		if err := tx.Commit(); err != nil {
			return errors.Wrap(err, "failed to commit batch")
		}
	}
	return nil
}

// SaveDataset writes every location and network of a dataset
func (s *Store) SaveDataset(ctx context.Context, ds *dataset.Dataset) error {
	if err := s.InsertLocations(ctx, ds.Locations); err != nil {
		return err
	}
	for _, n := range dataset.Networks {
		if err := s.InsertConnections(ctx, string(n), ds.Connections(n)); err != nil {
			return errors.Wrapf(err, "network %s", n)
		}
	}
	return nil
}

// Locations returns every stored location ordered by name
func (s *Store) Locations(ctx context.Context) ([]models.Location, error) {
	return s.queryLocations(ctx, selectLocations+` ORDER BY name`)
}

// LocationsInBox returns the Earth locations inside a lon/lat bound
func (s *Store) LocationsInBox(ctx context.Context, b orb.Bound) ([]models.Location, error) {
	return s.queryLocations(ctx,
		selectLocations+` WHERE position && ST_MakeEnvelope($1, $2, $3, $4, 4326) ORDER BY name`,
		b.Min.Lon(), b.Min.Lat(), b.Max.Lon(), b.Max.Lat())
}

const selectLocations = `SELECT name, kind, hub, tags, ST_Y(position), ST_X(position), x, y FROM locations`

func (s *Store) queryLocations(ctx context.Context, query string, args ...any) ([]models.Location, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query locations")
	}
	defer rows.Close()

	var out []models.Location
	for rows.Next() {
		var r locationRow
		if err := rows.Scan(&r.name, &r.kind, &r.hub, pq.Array(&r.tags), &r.lat, &r.lon, &r.x, &r.y); err != nil {
			return nil, errors.Wrap(err, "failed to scan location")
		}
		loc, err := r.toLocation()
		if err != nil {
			return nil, err
		}
		out = append(out, loc)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "rows error")
	}
	return out, nil
}

// Connections returns one network's connections in insertion order
func (s *Store) Connections(ctx context.Context, network string) ([]models.Connection, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT from_name, to_name FROM connections WHERE network = $1 ORDER BY id`, network)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query connections")
	}
	defer rows.Close()

	var out []models.Connection
	for rows.Next() {
		var c models.Connection
		if err := rows.Scan(&c.From, &c.To); err != nil {
			return nil, errors.Wrap(err, "failed to scan connection")
		}
		out = append(out, c)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "rows error")
	}
	return out, nil
}

// Dataset reads the stored locations and networks back into a dataset
func (s *Store) Dataset(ctx context.Context) (*dataset.Dataset, error) {
	locations, err := s.Locations(ctx)
	if err != nil {
		return nil, err
	}

	ds := &dataset.Dataset{
		Locations: locations,
		Networks:  make(map[dataset.Network][]models.Connection, len(dataset.Networks)),
	}
	for _, n := range dataset.Networks {
		conns, err := s.Connections(ctx, string(n))
		if err != nil {
			return nil, errors.Wrapf(err, "network %s", n)
		}
		ds.Networks[n] = conns
	}
	return ds, nil
}

// Count returns the number of stored locations and connections
func (s *Store) Count(ctx context.Context) (locations, connections int64, err error) {
	err = s.db.QueryRowContext(ctx,
		`SELECT (SELECT COUNT(*) FROM locations), (SELECT COUNT(*) FROM connections)`,
	).Scan(&locations, &connections)
	if err != nil {
		return 0, 0, errors.Wrap(err, "failed to count rows")
	}
	return locations, connections, nil
}

// Stats returns database and table sizes
func (s *Store) Stats(ctx context.Context) (map[string]any, error) {
	stats := make(map[string]any)

	var dbSize string
	if err := s.db.QueryRowContext(ctx, `SELECT pg_size_pretty(pg_database_size($1))`, s.dbName).Scan(&dbSize); err != nil {
		return nil, errors.Wrap(err, "failed to get database size")
	}
	stats["database_size"] = dbSize

	var tableSize, indexSize string
	err := s.db.QueryRowContext(ctx, `
		SELECT
			pg_size_pretty(pg_total_relation_size('locations')),
			pg_size_pretty(pg_indexes_size('locations'))
	`).Scan(&tableSize, &indexSize)
	if err != nil {
		// tables not created yet
		tableSize, indexSize = "0 bytes", "0 bytes"
	}
	stats["table_size"] = tableSize
	stats["index_size"] = indexSize

	if locs, conns, err := s.Count(ctx); err == nil {
		stats["locations"] = locs
		stats["connections"] = conns
	}

	return stats, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// locationArgs flattens a location into insert arguments
func locationArgs(loc models.Location) []any {
	var lon, lat, x, y sql.NullFloat64
	switch c := loc.Coords.(type) {
	case models.EarthCoord:
		lon = sql.NullFloat64{Float64: c.Lon, Valid: true}
		lat = sql.NullFloat64{Float64: c.Lat, Valid: true}
	case models.PlanarCoord:
		x = sql.NullFloat64{Float64: c.X, Valid: true}
		y = sql.NullFloat64{Float64: c.Y, Valid: true}
	}
	return []any{loc.Name, loc.Kind.String(), loc.Hub, pq.Array(loc.Tags), lon, lat, x, y}
}

type locationRow struct {
	name     string
	kind     string
	hub      bool
	tags     []string
	lat, lon sql.NullFloat64
	x, y     sql.NullFloat64
}

func (r locationRow) toLocation() (models.Location, error) {
	kind, err := models.ParseLocationKind(r.kind)
	if err != nil {
		return models.Location{}, errors.Wrapf(err, "location %s", r.name)
	}

	var loc models.Location
	switch {
	case kind == models.KindEarth && r.lat.Valid && r.lon.Valid:
		loc = models.NewEarthLocation(r.name, r.lat.Float64, r.lon.Float64)
	case kind != models.KindEarth && r.x.Valid && r.y.Valid:
		loc = models.NewPlanarLocation(r.name, kind, r.x.Float64, r.y.Float64)
	default:
		return models.Location{}, errors.Errorf("location %s has no coordinates for kind %s", r.name, kind)
	}

	loc.Hub = r.hub
	loc.Tags = r.tags
	return loc, nil
}
