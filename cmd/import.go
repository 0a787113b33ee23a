package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/spf13/cobra"

	"github.com/arcfield/geoimport-go/internal/config"
	"github.com/arcfield/geoimport-go/internal/job"
	"github.com/arcfield/geoimport-go/internal/logger"
	"github.com/arcfield/geoimport-go/internal/mapper"
	"github.com/arcfield/geoimport-go/internal/metrics"
	"github.com/arcfield/geoimport-go/internal/progress"
	"github.com/arcfield/geoimport-go/internal/store"
)

var (
	categoryStr   string
	ownerID       string
	batchSize     int
	bboxStr       string
	createTables  bool
	createIndexes bool
)

var importCmd = &cobra.Command{
	Use:   "import <input.geojson>",
	Short: "Import a GeoJSON feature collection into PostGIS",
	Long: `Stream a GeoJSON feature collection into PostgreSQL/PostGIS:

  1. Incrementally decode the features array in constant memory
  2. Map each feature onto its category's target table
  3. Load accumulated batches with multi-row inserts
  4. Link loaded features to intersecting regions and countries

Progress is reported per batch with throughput and an estimated feature
total derived from bytes consumed. Ctrl-C cancels cleanly at the next
batch boundary.`,
	Args: cobra.ExactArgs(1),
	Run:  runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().StringVarP(&categoryStr, "category", "t", "", "Feature category: point-of-interest, land-use-zone, highway, administrative-region")
	importCmd.Flags().StringVar(&ownerID, "owner", "", "Owner id stamped on loaded rows")
	importCmd.Flags().IntVar(&batchSize, "batch-size", config.DefaultBatchSize, "Features per bulk insert")
	importCmd.Flags().StringVarP(&bboxStr, "bbox", "b", "", "Bounding box filter: minlon,minlat,maxlon,maxlat")
	importCmd.Flags().BoolVar(&createTables, "create-tables", false, "Create target tables before loading")
	importCmd.Flags().BoolVar(&createIndexes, "create-indexes", true, "Create spatial indexes after loading")

	importCmd.MarkFlagRequired("category")
}

func runImport(cmd *cobra.Command, args []string) {
	log := logger.Get()

	category, err := mapper.ParseCategory(categoryStr)
	if err != nil {
		exitWithError("invalid category", err)
	}

	cfg.Import.BatchSize = batchSize
	cfg.Import.BBoxFilter = bboxStr
	cfg.Import.CreateTables = createTables
	cfg.Import.CreateIndexes = createIndexes
	if err := cfg.Finalize(); err != nil {
		exitWithError("invalid configuration", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	totalStart := time.Now()

	logFields := []zap.Field{
		zap.String("input", args[0]),
		zap.String("category", string(category)),
		zap.String("output", fmt.Sprintf("%s:%d/%s", cfg.Database.Host, cfg.Database.Port, cfg.Database.Name)),
		zap.Int("batch_size", cfg.Import.BatchSize),
	}
	if cfg.BBox != nil && cfg.BBox.IsSet {
		logFields = append(logFields, zap.String("bbox",
			fmt.Sprintf("%.4f,%.4f,%.4f,%.4f", cfg.BBox.MinLon, cfg.BBox.MinLat, cfg.BBox.MaxLon, cfg.BBox.MaxLat)))
	}
	log.Info("Starting geoimport", logFields...)

	st, err := store.New(ctx, cfg)
	if err != nil {
		exitWithError("failed to connect to PostgreSQL", err)
	}
	defer st.Close()

	if err := st.EnsureSchema(ctx); err != nil {
		exitWithError("failed to prepare schema", err)
	}
	if cfg.Import.CreateTables {
		if err := st.CreateTables(ctx); err != nil {
			exitWithError("failed to create tables", err)
		}
	}

	bus := progress.NewBus()
	orch := job.NewOrchestrator(cfg, st, bus)

	events, cancelSub := bus.Subscribe("", 64)
	defer cancelSub()

	metricsCtx, stopMetrics := context.WithCancel(ctx)
	defer stopMetrics()
	collector := metrics.NewCollector(cfg.MetricsInterval, log)
	go collector.Start(metricsCtx)

	loggerDone := make(chan struct{})
	go func() {
		defer close(loggerDone)
		for {
			select {
			case ev := <-events:
				logProgressEvent(log, ev)
			case <-metricsCtx.Done():
				// Drain whatever the run already published.
				for {
					select {
					case ev := <-events:
						logProgressEvent(log, ev)
					default:
						return
					}
				}
			}
		}
	}()

	j, err := orch.Run(ctx, category, args[0], ownerID)
	stopMetrics()
	<-loggerDone

	if err != nil {
		exitWithError("import failed", err)
	}

	if cfg.Import.CreateIndexes {
		if err := st.CreateIndexes(context.Background(), category); err != nil {
			exitWithError("failed to create indexes", err)
		}
	}

	totalElapsed := time.Since(totalStart)
	log.Info("Import complete",
		zap.String("job_id", j.ID),
		zap.Duration("total_time", totalElapsed.Round(time.Second)),
		zap.Int64("features", j.Processed()),
		zap.Int64("batches", j.Batches()),
		zap.Int64("skipped", j.Failed()),
		zap.Int64("filtered", j.Filtered()),
		zap.String("bytes", progress.FormatBytes(j.BytesRead())),
		zap.Float64("throughput_mb_s", float64(j.BytesRead())/(1024*1024)/totalElapsed.Seconds()),
	)
}

func logProgressEvent(log *zap.Logger, ev progress.Event) {
	switch ev.Type {
	case progress.EventProgress:
		s := ev.Snapshot
		log.Info("Progress",
			zap.Int64("processed", s.Processed),
			zap.Int64("estimated_total", s.EstimatedTotal),
			zap.String("pct", fmt.Sprintf("%.1f%%", s.Percentage)),
			zap.Int64("batches", s.Batches),
			zap.String("throughput", progress.FormatThroughput(s.Throughput)),
			zap.String("eta", progress.FormatETA(s.ETA)),
		)
	case progress.EventCompleted:
		log.Info("Load finished, linking complete",
			zap.Int64("region_links", ev.Result.RegionLinks),
			zap.Int64("country_links", ev.Result.CountryLinks))
	case progress.EventFailed:
		log.Warn("Job failed", zap.String("job_id", ev.JobID), zap.String("error", ev.Error))
	}
}
