package httpserver

import (
	"net/http/pprof"

	"github.com/gin-gonic/gin"
)

func (srv *HTTPServer) authorizeAPI(c *gin.Context) {
	// anything goes for now.
	c.Next()
}

func (srv *HTTPServer) setupRoutes() {
	r := srv.ginRouter

	r.GET("/healthz", srv.handleHealth)

	apiGroup := r.Group("/api", srv.authorizeAPI)
	apiGroup.GET("/status", srv.handleStatus)

	importsGroup := apiGroup.Group("/imports")
	importsGroup.POST("", srv.handleStartImport)
	importsGroup.GET("", srv.handleListImports)
	importsGroup.GET("/:job_id", srv.handleGetImport)
	importsGroup.DELETE("/:job_id", srv.handleCancelImport)

	debugGroup := r.Group("/debug/pprof")
	debugGroup.GET("/cmdline", func(c *gin.Context) {
		pprof.Cmdline(c.Writer, c.Request)
	})
	debugGroup.GET("/heap", func(c *gin.Context) {
		pprof.Index(c.Writer, c.Request)
	})
	debugGroup.GET("/trace", func(c *gin.Context) {
		pprof.Trace(c.Writer, c.Request)
	})
	debugGroup.GET("/profile", func(c *gin.Context) {
		pprof.Profile(c.Writer, c.Request)
	})
	debugGroup.GET("/symbol", func(c *gin.Context) {
		pprof.Symbol(c.Writer, c.Request)
	})
}
