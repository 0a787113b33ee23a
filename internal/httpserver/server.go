package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/arcfield/geoimport-go/internal/job"
	"github.com/arcfield/geoimport-go/internal/metrics"
)

func init() {
	gin.SetMode(gin.ReleaseMode)
}

type HTTPServer struct {
	logger       *zap.Logger
	ginRouter    *gin.Engine
	orchestrator *job.Orchestrator
	collector    *metrics.Collector
}

// NewHTTPServer wires the API around an orchestrator. collector may be nil,
// in which case the status payload carries no system sample.
func NewHTTPServer(logger *zap.Logger, orchestrator *job.Orchestrator, collector *metrics.Collector) (*HTTPServer, error) {
	r := gin.New()
	r.Use(gin.RecoveryWithWriter(zap.NewStdLog(logger).Writer()))

	srv := &HTTPServer{
		logger:       logger,
		ginRouter:    r,
		orchestrator: orchestrator,
		collector:    collector,
	}

	srv.setupRoutes()
	return srv, nil
}

// Run starts and runs the HTTP server until 'ctx' is cancelled or the server fails to start.
func (srv *HTTPServer) Run(ctx context.Context, address string, shutdownWaitTimeout time.Duration) error {
	httpServer := &http.Server{
		Addr:    address,
		Handler: srv.ginRouter,
	}

	doneCh := make(chan error, 1)

	go func() {
		var err error
		defer func() {
			doneCh <- err
		}()
		err = httpServer.ListenAndServe()
		if err != nil {
			if err == http.ErrServerClosed {
				err = nil
			} else {
				err = fmt.Errorf("Failed to listen and start http server: %w", err)
			}
		}
	}()

	select {
	case <-ctx.Done():
		sdCtx, sdCancelFn := context.WithTimeout(context.Background(), shutdownWaitTimeout)
		defer sdCancelFn()
		err := httpServer.Shutdown(sdCtx)
		if err != nil {
			if err == context.DeadlineExceeded {
				return errors.New("Graceful HTTP server shutdown timed out.")
			}
			return fmt.Errorf("Error during http server shutdown: %w", err)
		}
		return <-doneCh
	case err := <-doneCh:
		return err
	}
}
