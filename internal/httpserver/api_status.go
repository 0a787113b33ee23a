package httpserver

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arcfield/geoimport-go/internal/job"
)

type statusResponse struct {
	Imports importCounts  `json:"imports"`
	System  *systemSample `json:"system,omitempty"`
}

type importCounts struct {
	Pending   int `json:"pending"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

type systemSample struct {
	CPUPercent        float64   `json:"cpu_percent"`
	ProcessCPUPercent float64   `json:"process_cpu_percent"`
	ProcessRSSMB      float64   `json:"process_rss_mb"`
	MemoryPercent     float64   `json:"memory_percent"`
	Goroutines        int       `json:"goroutines"`
	SampledAt         time.Time `json:"sampled_at"`
}

func (srv *HTTPServer) handleStatus(c *gin.Context) {
	var resp statusResponse

	for _, j := range srv.orchestrator.Registry().List() {
		switch j.Status() {
		case job.StatusPending:
			resp.Imports.Pending++
		case job.StatusRunning:
			resp.Imports.Running++
		case job.StatusCompleted:
			resp.Imports.Completed++
		case job.StatusFailed:
			resp.Imports.Failed++
		}
	}

	if srv.collector != nil {
		if m := srv.collector.GetMetrics(); m != nil {
			resp.System = &systemSample{
				CPUPercent:        m.CPUPercent,
				ProcessCPUPercent: m.ProcessCPUPercent,
				ProcessRSSMB:      m.ProcessRSSMB,
				MemoryPercent:     m.MemoryPercent,
				Goroutines:        m.Goroutines,
				SampledAt:         m.Timestamp,
			}
		}
	}

	c.JSON(http.StatusOK, resp)
}
