package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spf13/cobra"

	"github.com/arcfield/geoimport-go/internal/httpserver"
	"github.com/arcfield/geoimport-go/internal/job"
	"github.com/arcfield/geoimport-go/internal/logger"
	"github.com/arcfield/geoimport-go/internal/metrics"
	"github.com/arcfield/geoimport-go/internal/progress"
	"github.com/arcfield/geoimport-go/internal/store"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the import job API server",
	Long: `Start an HTTP server that accepts import jobs and reports on them.

Endpoints:
  POST   /api/imports          start an import
  GET    /api/imports          list all jobs, newest first
  GET    /api/imports/:job_id  inspect one job
  DELETE /api/imports/:job_id  request cancellation
  GET    /api/status           job counts and resource usage
  GET    /healthz              liveness probe

Jobs run concurrently and share only the connection pool.`,
	Run: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (host:port), overrides config")
	serveCmd.Flags().BoolVar(&createTables, "create-tables", false, "Create target tables at startup")
}

func runServe(cmd *cobra.Command, args []string) {
	log := logger.Get()

	if serveAddr != "" {
		cfg.HTTP.Addr = serveAddr
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.New(ctx, cfg)
	if err != nil {
		exitWithError("failed to connect to PostgreSQL", err)
	}
	defer st.Close()

	if err := st.EnsureSchema(ctx); err != nil {
		exitWithError("failed to prepare schema", err)
	}
	if createTables {
		if err := st.CreateTables(ctx); err != nil {
			exitWithError("failed to create tables", err)
		}
	}

	orch := job.NewOrchestrator(cfg, st, progress.NewBus())
	collector := metrics.NewCollector(cfg.MetricsInterval, log)

	srv, err := httpserver.NewHTTPServer(log, orch, collector)
	if err != nil {
		exitWithError("failed to create http server", err)
	}

	log.Info("Serving import API", zap.String("addr", cfg.HTTP.Addr))

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gCtx, cfg.HTTP.Addr, cfg.HTTP.ShutdownTimeout)
	})
	g.Go(func() error {
		collector.Start(gCtx)
		return nil
	})

	if err := g.Wait(); err != nil {
		exitWithError("server failed", err)
	}

	log.Info("Shutdown complete")
}
