package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/arcfield/geoimport-go/internal/config"
	"github.com/arcfield/geoimport-go/internal/logger"
	"github.com/arcfield/geoimport-go/internal/mapper"
)

// Store issues bulk inserts and spatial-linking queries against a
// PostGIS-enabled PostgreSQL. A single Store is shared by all concurrent
// jobs; every acquired connection serves one job at a time.
type Store struct {
	cfg  *config.Config
	pool *pgxpool.Pool
}

// New connects a pool sized by the configuration.
func New(ctx context.Context, cfg *config.Config) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.Database.MaxConns)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	return &Store{cfg: cfg, pool: pool}, nil
}

// Pool exposes the underlying connection pool.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// Close closes all database connections.
func (s *Store) Close() {
	s.pool.Close()
}

// tableFor maps a category to its target table.
func tableFor(c mapper.Category) string {
	switch c {
	case mapper.CategoryPointOfInterest:
		return "poi_points"
	case mapper.CategoryLandUseZone:
		return "landuse_zones"
	case mapper.CategoryHighway:
		return "highway_segments"
	case mapper.CategoryAdministrativeRegion:
		return "admin_regions"
	default:
		return ""
	}
}

func (s *Store) qualified(table string) string {
	return fmt.Sprintf("%s.%s", s.cfg.Database.Schema, table)
}

// insertColumns returns the column list for a category's table. The
// geometry column is always last so the placeholder builder can wrap it.
func insertColumns(c mapper.Category) []string {
	base := []string{"slug", "name", "kind", "attrs", "job_id", "owner_id", "source_id"}
	switch c {
	case mapper.CategoryHighway:
		return append(base, "surface", "lanes", "vertex_distances", "geom")
	case mapper.CategoryLandUseZone, mapper.CategoryAdministrativeRegion:
		return append(base, "centroid_lat", "centroid_lon", "geom")
	default:
		return append(base, "geom")
	}
}

func rowArgs(c mapper.Category, row *mapper.TargetRow) []interface{} {
	args := []interface{}{
		row.Slug, row.Name, row.Kind, attrsJSON(row.Attrs),
		row.JobID, row.OwnerID, row.SourceID,
	}
	switch c {
	case mapper.CategoryHighway:
		return append(args, row.Surface, row.Lanes, row.Distances, row.GeomText)
	case mapper.CategoryLandUseZone, mapper.CategoryAdministrativeRegion:
		return append(args, row.CentroidLat, row.CentroidLon, row.GeomText)
	default:
		return append(args, row.GeomText)
	}
}

func attrsJSON(attrs map[string]string) []byte {
	if len(attrs) == 0 {
		return []byte("{}")
	}
	b, err := json.Marshal(attrs)
	if err != nil {
		return []byte("{}")
	}
	return b
}

// InsertBatch persists one batch with a single multi-row insert and returns
// the generated row identifiers in input order. All rows of a batch belong
// to the same category.
func (s *Store) InsertBatch(ctx context.Context, rows []*mapper.TargetRow) ([]int64, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	category := rows[0].Category
	for _, row := range rows {
		if row.Category != category {
			return nil, fmt.Errorf("mixed categories in batch: %s and %s", category, row.Category)
		}
	}

	table := s.qualified(tableFor(category))
	cols := insertColumns(category)
	sql, args := buildInsert(table, cols, category, rows)

	result, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("bulk insert into %s: %w", table, err)
	}
	defer result.Close()

	ids := make([]int64, 0, len(rows))
	for result.Next() {
		var id int64
		if err := result.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning inserted id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("bulk insert into %s: %w", table, err)
	}

	logger.Get().Debug("Batch inserted",
		zap.String("table", table),
		zap.String("job_id", rows[0].JobID),
		zap.Int("rows", len(ids)))

	return ids, nil
}

// buildInsert assembles the multi-row VALUES list. Geometry text goes
// through ST_GeomFromText so PostGIS validates and types it on the way in.
func buildInsert(table string, cols []string, category mapper.Category, rows []*mapper.TargetRow) (string, []interface{}) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s (%s) VALUES ", table, strings.Join(cols, ", "))

	args := make([]interface{}, 0, len(rows)*len(cols))
	arg := 0
	for i, row := range rows {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteByte('(')
		for j := range cols {
			if j > 0 {
				sb.WriteString(", ")
			}
			arg++
			if j == len(cols)-1 {
				fmt.Fprintf(&sb, "ST_GeomFromText($%d, 4326)", arg)
			} else {
				fmt.Fprintf(&sb, "$%d", arg)
			}
		}
		sb.WriteByte(')')
		args = append(args, rowArgs(category, row)...)
	}
	sb.WriteString(" RETURNING id")

	return sb.String(), args
}
