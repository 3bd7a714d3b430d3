// Package web serves the published artifacts over HTTP: the calendar at its
// fixed URL, the JSON snapshot, and a health endpoint.
package web

import (
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/capetownstadium/eventcal/config"
	"github.com/capetownstadium/eventcal/runner"
)

// Server represents the HTTP publisher for the generated calendar.
type Server struct {
	cfg *config.Config
}

// NewServer creates a new publisher server.
func NewServer(cfg *config.Config) *Server {
	return &Server{
		cfg: cfg,
	}
}

// SetupRouter configures the Gin router with the publisher routes.
func (s *Server) SetupRouter() *gin.Engine {
	router := gin.Default()

	// Add CORS middleware
	router.Use(func(ctx *gin.Context) {
		ctx.Header("Access-Control-Allow-Origin", "*")
		ctx.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
		ctx.Header("Access-Control-Allow-Headers", "Content-Type")

		if ctx.Request.Method == "OPTIONS" {
			ctx.AbortWithStatus(http.StatusOK)
			return
		}

		ctx.Next()
	})

	router.GET("/calendar.ics", s.HandleCalendar)

	api := router.Group("/api/v1")
	api.GET("/events", s.HandleEvents)
	api.GET("/health", s.HandleHealth)

	return router
}

// errorResponse creates a standardized error response.
func errorResponse(code, message string) gin.H {
	return gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
}

// HandleCalendar handles GET /calendar.ics. The calendar is served inline
// without a Content-Disposition header so calendar clients can subscribe to
// the URL directly.
func (s *Server) HandleCalendar(ctx *gin.Context) {
	data, err := os.ReadFile(s.cfg.Output.ICSPath)
	if err != nil {
		if os.IsNotExist(err) {
			ctx.JSON(http.StatusNotFound, errorResponse("not_generated", "Calendar has not been generated yet"))
			return
		}
		ctx.JSON(http.StatusInternalServerError, errorResponse("internal_error", "Failed to read calendar"))
		return
	}

	ctx.Header("Cache-Control", "max-age=3600")
	ctx.Data(http.StatusOK, "text/calendar; charset=utf-8", data)
}

// HandleEvents handles GET /api/v1/events.
func (s *Server) HandleEvents(ctx *gin.Context) {
	snap, err := runner.ReadSnapshot(s.cfg.Output.SnapshotPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			ctx.JSON(http.StatusNotFound, errorResponse("not_generated", "Events have not been generated yet"))
			return
		}
		ctx.JSON(http.StatusInternalServerError, errorResponse("internal_error", "Failed to read events"))
		return
	}

	ctx.JSON(http.StatusOK, snap)
}

// HandleHealth handles GET /api/v1/health. The calendar's modification time
// is reported so monitoring can flag a stale artifact.
func (s *Server) HandleHealth(ctx *gin.Context) {
	resp := gin.H{"status": "ok"}

	if info, err := os.Stat(s.cfg.Output.ICSPath); err == nil {
		resp["calendar_updated_at"] = info.ModTime().UTC().Format(time.RFC3339)
	} else {
		resp["status"] = "degraded"
		resp["detail"] = "calendar not generated"
	}

	ctx.JSON(http.StatusOK, resp)
}
