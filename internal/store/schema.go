package store

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/arcfield/geoimport-go/internal/logger"
	"github.com/arcfield/geoimport-go/internal/mapper"
)

// EnsureSchema makes sure the PostGIS extension and the target schema exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS postgis"); err != nil {
		return fmt.Errorf("failed to create PostGIS extension: %w", err)
	}

	if s.cfg.Database.Schema != "public" {
		createSchema := fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", s.cfg.Database.Schema)
		if _, err := s.pool.Exec(ctx, createSchema); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return nil
}

// commonColumns are shared by all four feature tables.
const commonColumns = `
	id BIGSERIAL PRIMARY KEY,
	slug TEXT NOT NULL,
	name TEXT NOT NULL,
	kind TEXT NOT NULL,
	attrs JSONB,
	job_id TEXT NOT NULL,
	owner_id TEXT,
	source_id TEXT,
	country_id BIGINT`

// CreateTables creates the feature tables, the countries reference table
// and the linkage table if they do not exist yet.
func (s *Store) CreateTables(ctx context.Context) error {
	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (%s,
			geom GEOMETRY(Point, 4326) NOT NULL
		)`, s.qualified("poi_points"), commonColumns),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (%s,
			centroid_lat DOUBLE PRECISION,
			centroid_lon DOUBLE PRECISION,
			geom GEOMETRY(Geometry, 4326) NOT NULL
		)`, s.qualified("landuse_zones"), commonColumns),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (%s,
			surface TEXT,
			lanes INTEGER,
			vertex_distances DOUBLE PRECISION[],
			geom GEOMETRY(LineString, 4326) NOT NULL
		)`, s.qualified("highway_segments"), commonColumns),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (%s,
			centroid_lat DOUBLE PRECISION,
			centroid_lon DOUBLE PRECISION,
			geom GEOMETRY(Geometry, 4326) NOT NULL
		)`, s.qualified("admin_regions"), commonColumns),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			iso_code TEXT UNIQUE,
			geom GEOMETRY(Geometry, 4326) NOT NULL
		)`, s.qualified("countries")),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			feature_table TEXT NOT NULL,
			feature_id BIGINT NOT NULL,
			region_id BIGINT NOT NULL,
			PRIMARY KEY (feature_table, feature_id, region_id)
		)`, s.qualified("feature_region_links")),
	}

	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	logger.Get().Info("Tables ready", zap.String("schema", s.cfg.Database.Schema))
	return nil
}

// CreateIndexes builds the spatial and lookup indexes for a category's
// table, then analyzes it for the query planner.
func (s *Store) CreateIndexes(ctx context.Context, category mapper.Category) error {
	shortName := tableFor(category)
	tableName := s.qualified(shortName)

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Release()

	// Set high maintenance_work_mem for this session
	if _, err := conn.Exec(ctx, "SET maintenance_work_mem = '1GB'"); err != nil {
		// Ignore error
	}

	gistIdx := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_geom_idx ON %s USING GIST (geom)",
		shortName, tableName)
	if _, err := conn.Exec(ctx, gistIdx); err != nil {
		return err
	}

	jobIdx := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_job_id_idx ON %s (job_id)",
		shortName, tableName)
	if _, err := conn.Exec(ctx, jobIdx); err != nil {
		return err
	}

	slugIdx := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_slug_idx ON %s (slug)",
		shortName, tableName)
	if _, err := conn.Exec(ctx, slugIdx); err != nil {
		return err
	}

	if _, err := conn.Exec(ctx, fmt.Sprintf("ANALYZE %s", tableName)); err != nil {
		return err
	}

	logger.Get().Info("Indexes created", zap.String("table", tableName))
	return nil
}
