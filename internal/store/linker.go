package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/arcfield/geoimport-go/internal/logger"
	"github.com/arcfield/geoimport-go/internal/mapper"
)

// LinkRegions inserts one linkage row per intersecting feature/region pair
// for every feature of the job that has no linkage yet. Administrative
// regions never link to themselves. Returns the number of links created.
func (s *Store) LinkRegions(ctx context.Context, category mapper.Category, jobID string) (int64, error) {
	table := tableFor(category)
	selfClause := ""
	if category == mapper.CategoryAdministrativeRegion {
		selfClause = " AND r.id <> t.id"
	}

	sql := fmt.Sprintf(`
		INSERT INTO %s (feature_table, feature_id, region_id)
		SELECT $2, t.id, r.id
		FROM %s t
		JOIN %s r ON ST_Intersects(t.geom, r.geom)%s
		WHERE t.job_id = $1
		  AND NOT EXISTS (
		    SELECT 1 FROM %s l
		    WHERE l.feature_table = $2 AND l.feature_id = t.id
		  )`,
		s.qualified("feature_region_links"),
		s.qualified(table),
		s.qualified("admin_regions"),
		selfClause,
		s.qualified("feature_region_links"))

	linked, err := s.execLinking(ctx, sql, jobID, table)
	if err != nil {
		return 0, fmt.Errorf("linking regions for job %s: %w", jobID, err)
	}

	logger.Get().Info("Region linking complete",
		zap.String("job_id", jobID),
		zap.String("table", table),
		zap.Int64("links", linked))

	return linked, nil
}

// LinkCountries assigns each unassigned feature of the job to the single
// country whose intersection with it is largest by area.
func (s *Store) LinkCountries(ctx context.Context, category mapper.Category, jobID string) (int64, error) {
	table := s.qualified(tableFor(category))

	sql := fmt.Sprintf(`
		UPDATE %s t SET country_id = sub.country_id
		FROM (
		  SELECT DISTINCT ON (f.id) f.id AS feature_id, c.id AS country_id
		  FROM %s f
		  JOIN %s c ON ST_Intersects(f.geom, c.geom)
		  WHERE f.job_id = $1 AND f.country_id IS NULL
		  ORDER BY f.id, ST_Area(ST_Intersection(f.geom, c.geom)) DESC
		) sub
		WHERE t.id = sub.feature_id`,
		table, table, s.qualified("countries"))

	assigned, err := s.execLinkingSingle(ctx, sql, jobID)
	if err != nil {
		return 0, fmt.Errorf("linking countries for job %s: %w", jobID, err)
	}

	logger.Get().Info("Country linking complete",
		zap.String("job_id", jobID),
		zap.String("table", table),
		zap.Int64("assigned", assigned))

	return assigned, nil
}

// execLinking runs a two-parameter linking statement inside a transaction
// with the configured statement timeout applied locally.
func (s *Store) execLinking(ctx context.Context, sql, jobID, featureTable string) (int64, error) {
	return s.withLinkingTx(ctx, func(tx pgx.Tx) (int64, error) {
		tag, err := tx.Exec(ctx, sql, jobID, featureTable)
		if err != nil {
			return 0, err
		}
		return tag.RowsAffected(), nil
	})
}

func (s *Store) execLinkingSingle(ctx context.Context, sql, jobID string) (int64, error) {
	return s.withLinkingTx(ctx, func(tx pgx.Tx) (int64, error) {
		tag, err := tx.Exec(ctx, sql, jobID)
		if err != nil {
			return 0, err
		}
		return tag.RowsAffected(), nil
	})
}

func (s *Store) withLinkingTx(ctx context.Context, fn func(pgx.Tx) (int64, error)) (int64, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquiring connection: %w", err)
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if timeout := s.cfg.Database.StatementTimeout; timeout > 0 {
		setSQL := fmt.Sprintf("SET LOCAL statement_timeout = %d", timeout.Milliseconds())
		if _, err := tx.Exec(ctx, setSQL); err != nil {
			return 0, fmt.Errorf("setting statement timeout: %w", err)
		}
	}

	affected, err := fn(tx)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing transaction: %w", err)
	}

	return affected, nil
}
