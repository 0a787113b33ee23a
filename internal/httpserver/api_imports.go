package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/arcfield/geoimport-go/internal/job"
	"github.com/arcfield/geoimport-go/internal/mapper"
)

type APIErrorResponse struct {
	Error string `json:"error"`
}

type startImportRequest struct {
	Source   string `json:"source"`
	Category string `json:"category"`
	OwnerID  string `json:"owner_id"`
}

type importResponse struct {
	Job job.View `json:"job"`
}

type listImportsResponse struct {
	Jobs []job.View `json:"jobs"`
}

func (srv *HTTPServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleStartImport accepts the job and returns immediately; failures such
// as a missing source file surface on the job itself.
func (srv *HTTPServer) handleStartImport(c *gin.Context) {
	var request startImportRequest

	if err := c.BindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, &APIErrorResponse{Error: "bad request json"})
		return
	}
	if request.Source == "" {
		c.JSON(http.StatusBadRequest, &APIErrorResponse{Error: "source is required"})
		return
	}

	category, err := mapper.ParseCategory(request.Category)
	if err != nil {
		c.JSON(http.StatusBadRequest, &APIErrorResponse{Error: err.Error()})
		return
	}

	j := srv.orchestrator.Start(category, request.Source, request.OwnerID)
	srv.logger.Info("Import accepted",
		zap.String("job_id", j.ID),
		zap.String("category", string(category)),
		zap.String("source", request.Source))

	c.JSON(http.StatusAccepted, importResponse{Job: j.View()})
}

func (srv *HTTPServer) handleListImports(c *gin.Context) {
	jobs := srv.orchestrator.Registry().List()
	views := make([]job.View, len(jobs))
	for idx, j := range jobs {
		views[idx] = j.View()
	}
	c.JSON(http.StatusOK, listImportsResponse{Jobs: views})
}

func (srv *HTTPServer) handleGetImport(c *gin.Context) {
	j, ok := srv.orchestrator.Registry().Get(c.Param("job_id"))
	if !ok {
		c.JSON(http.StatusNotFound, &APIErrorResponse{Error: "import not found"})
		return
	}
	c.JSON(http.StatusOK, importResponse{Job: j.View()})
}

func (srv *HTTPServer) handleCancelImport(c *gin.Context) {
	jobID := c.Param("job_id")
	j, ok := srv.orchestrator.Registry().Get(jobID)
	if !ok {
		c.JSON(http.StatusNotFound, &APIErrorResponse{Error: "import not found"})
		return
	}

	switch j.Status() {
	case job.StatusCompleted, job.StatusFailed:
		c.JSON(http.StatusConflict, &APIErrorResponse{Error: "import already finished"})
		return
	}

	srv.orchestrator.Cancel(jobID)
	srv.logger.Info("Import cancel requested", zap.String("job_id", jobID))

	c.JSON(http.StatusAccepted, importResponse{Job: j.View()})
}
