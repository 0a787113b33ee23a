package job

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arcfield/geoimport-go/internal/config"
	"github.com/arcfield/geoimport-go/internal/geojson"
	"github.com/arcfield/geoimport-go/internal/logger"
	"github.com/arcfield/geoimport-go/internal/mapper"
	"github.com/arcfield/geoimport-go/internal/progress"
)

// Loader persists mapped rows and resolves spatial linkage. A PostGIS store
// implements it for imports; the parquet writer implements it for offline
// transforms.
type Loader interface {
	InsertBatch(ctx context.Context, rows []*mapper.TargetRow) ([]int64, error)
	LinkRegions(ctx context.Context, category mapper.Category, jobID string) (int64, error)
	LinkCountries(ctx context.Context, category mapper.Category, jobID string) (int64, error)
}

// Orchestrator runs import jobs: read, map, load in batches, then link.
// Concurrent jobs share only the loader's connection pool.
type Orchestrator struct {
	cfg      *config.Config
	loader   Loader
	bus      *progress.Bus
	registry *Registry
}

func NewOrchestrator(cfg *config.Config, loader Loader, bus *progress.Bus) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		loader:   loader,
		bus:      bus,
		registry: NewRegistry(),
	}
}

func (o *Orchestrator) Registry() *Registry {
	return o.registry
}

func (o *Orchestrator) Bus() *progress.Bus {
	return o.bus
}

// Start launches an import in the background and returns its job handle.
func (o *Orchestrator) Start(category mapper.Category, source, ownerID string) *Job {
	j := newJob(uuid.NewString(), category, source, ownerID)
	o.registry.add(j)
	go o.execute(context.Background(), j)
	return j
}

// Run executes an import synchronously. The error it returns is the one
// recorded on the job.
func (o *Orchestrator) Run(ctx context.Context, category mapper.Category, source, ownerID string) (*Job, error) {
	j := newJob(uuid.NewString(), category, source, ownerID)
	o.registry.add(j)
	return j, o.execute(ctx, j)
}

// Cancel requests cancellation of a job. Returns false for unknown ids.
func (o *Orchestrator) Cancel(id string) bool {
	j, ok := o.registry.Get(id)
	if !ok {
		return false
	}
	j.RequestCancel()
	return true
}

func (o *Orchestrator) execute(ctx context.Context, j *Job) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	j.setCancel(cancel)

	log := logger.Get()
	j.markRunning()
	log.Info("Import started",
		zap.String("job_id", j.ID),
		zap.String("category", string(j.Category)),
		zap.String("source", j.Source))

	if err := o.runImport(ctx, j); err != nil {
		// A cancel landing mid-statement surfaces from the loader as a
		// context error; report it as a cancellation.
		if j.CancelRequested() && !errors.Is(err, ErrCancelled) {
			err = fmt.Errorf("%w: %w", ErrCancelled, err)
		}
		j.markFailed(err)
		log.Error("Import failed", zap.String("job_id", j.ID), zap.Error(err))
		o.bus.Publish(progress.Event{
			Type:     progress.EventFailed,
			JobID:    j.ID,
			Category: string(j.Category),
			Snapshot: j.snapshot(),
			Error:    err.Error(),
		})
		return err
	}

	j.markCompleted()
	result := j.result()
	log.Info("Import completed",
		zap.String("job_id", j.ID),
		zap.Int64("features", result.TotalFeatures),
		zap.Int64("batches", result.TotalBatches),
		zap.Int64("failed", result.FailedFeatures),
		zap.Int64("region_links", result.RegionLinks),
		zap.Int64("country_links", result.CountryLinks))
	o.bus.Publish(progress.Event{
		Type:     progress.EventCompleted,
		JobID:    j.ID,
		Category: string(j.Category),
		Result:   result,
	})
	return nil
}

func (o *Orchestrator) runImport(ctx context.Context, j *Job) error {
	reader, err := geojson.Open(j.Source)
	if err != nil {
		return err
	}
	defer reader.Close()

	j.setTracker(progress.NewTracker(reader.TotalBytes()))

	m := mapper.New(j.Category, j.ID, j.OwnerID, o.cfg.BBox)
	batcher := geojson.NewBatcher(reader, o.cfg.Import.BatchSize)
	log := logger.Get()

	for {
		if err := o.checkCancelled(ctx, j); err != nil {
			return err
		}

		features, err := batcher.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}

		rows := make([]*mapper.TargetRow, 0, len(features))
		for _, f := range features {
			row, mapErr := m.Map(f)
			switch {
			case mapErr == nil:
				rows = append(rows, row)
			case errors.Is(mapErr, mapper.ErrFiltered):
				j.addFiltered(1)
				log.Debug("Feature outside bounding box",
					zap.String("job_id", j.ID),
					zap.String("source_id", f.SourceID))
			default:
				j.addFailed(1)
				log.Debug("Feature skipped",
					zap.String("job_id", j.ID),
					zap.String("source_id", f.SourceID),
					zap.String("reason", mapErr.Error()))
			}
		}

		if len(rows) > 0 {
			if _, err := o.loader.InsertBatch(ctx, rows); err != nil {
				return fmt.Errorf("%w: %w", ErrPersistence, err)
			}
			j.addProcessed(int64(len(rows)))
		}
		j.addBatch()
		j.setBytesRead(reader.BytesRead())

		o.bus.Publish(progress.Event{
			Type:     progress.EventProgress,
			JobID:    j.ID,
			Category: string(j.Category),
			Snapshot: j.snapshot(),
		})
	}

	if err := o.checkCancelled(ctx, j); err != nil {
		return err
	}

	regions, err := o.loader.LinkRegions(ctx, j.Category, j.ID)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	countries, err := o.loader.LinkCountries(ctx, j.Category, j.ID)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	j.setLinks(regions, countries)

	return nil
}

// checkCancelled runs at batch boundaries so a cancel never interrupts a
// batch mid-flight.
func (o *Orchestrator) checkCancelled(ctx context.Context, j *Job) error {
	if j.CancelRequested() {
		return ErrCancelled
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCancelled, err)
	}
	return nil
}
