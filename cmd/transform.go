package cmd

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/spf13/cobra"

	"github.com/arcfield/geoimport-go/internal/config"
	"github.com/arcfield/geoimport-go/internal/job"
	"github.com/arcfield/geoimport-go/internal/logger"
	"github.com/arcfield/geoimport-go/internal/mapper"
	"github.com/arcfield/geoimport-go/internal/parquet"
	"github.com/arcfield/geoimport-go/internal/progress"
)

var (
	transformCategory string
	transformOut      string
	transformBatch    int
	transformBBox     string
)

var transformCmd = &cobra.Command{
	Use:   "transform <input.geojson>",
	Short: "Transform a GeoJSON feature collection to Parquet without a database",
	Long: `Run the read → map pipeline offline and write the mapped rows to a
Parquet file instead of PostgreSQL.

The same category mapping, geometry policy and validation apply as for a
database import; spatial linking is skipped since it needs PostGIS. The
output is suitable for bulk inspection or warehouse loading.`,
	Args: cobra.ExactArgs(1),
	Run:  runTransform,
}

func init() {
	rootCmd.AddCommand(transformCmd)

	transformCmd.Flags().StringVarP(&transformCategory, "category", "t", "", "Feature category: point-of-interest, land-use-zone, highway, administrative-region")
	transformCmd.Flags().StringVar(&ownerID, "owner", "", "Owner id stamped on output rows")
	transformCmd.Flags().StringVarP(&transformOut, "out", "o", "features.parquet", "Output Parquet file")
	transformCmd.Flags().IntVar(&transformBatch, "batch-size", config.DefaultBatchSize, "Features per record batch")
	transformCmd.Flags().StringVarP(&transformBBox, "bbox", "b", "", "Bounding box filter: minlon,minlat,maxlon,maxlat")

	transformCmd.MarkFlagRequired("category")
}

func runTransform(cmd *cobra.Command, args []string) {
	log := logger.Get()

	category, err := mapper.ParseCategory(transformCategory)
	if err != nil {
		exitWithError("invalid category", err)
	}

	cfg.Import.BatchSize = transformBatch
	cfg.Import.BBoxFilter = transformBBox
	if err := cfg.Finalize(); err != nil {
		exitWithError("invalid configuration", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("Starting transform",
		zap.String("input", args[0]),
		zap.String("category", string(category)),
		zap.String("output", transformOut),
		zap.Int("batch_size", cfg.Import.BatchSize),
	)

	start := time.Now()

	writer, err := parquet.NewRowWriter(transformOut, cfg.Import.BatchSize)
	if err != nil {
		exitWithError("failed to create parquet writer", err)
	}

	orch := job.NewOrchestrator(cfg, writer, progress.NewBus())

	j, err := orch.Run(ctx, category, args[0], ownerID)
	if err != nil {
		writer.Close()
		exitWithError("transform failed", err)
	}

	if err := writer.Close(); err != nil {
		exitWithError("failed to finalize parquet file", err)
	}

	elapsed := time.Since(start)
	log.Info("Transform complete",
		zap.Duration("duration", elapsed.Round(time.Second)),
		zap.Int64("rows", j.Processed()),
		zap.Int64("skipped", j.Failed()),
		zap.Int64("filtered", j.Filtered()),
		zap.String("output", transformOut),
	)
}
