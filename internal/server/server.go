package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/drdoc/drdoc/internal/answer"
	"github.com/drdoc/drdoc/internal/ingest"
	"github.com/drdoc/drdoc/internal/store"
)

// Asker answers questions over the ingested corpus.
type Asker interface {
	Ask(ctx context.Context, question string, mode answer.RetrievalMode) (*answer.Answer, error)
}

// Ingester runs document ingestion for a source directory or file.
type Ingester interface {
	IngestDir(ctx context.Context, sourceID, root string) (*ingest.Report, error)
}

// StatsProvider reports store contents for the health endpoint.
type StatsProvider interface {
	Stats() (*store.DBStats, error)
}

// Server exposes the answering pipeline and the ingestion coordinator over
// HTTP.
type Server struct {
	engine   Asker
	ingester Ingester
	stats    StatsProvider
}

// New creates an HTTP server around the given pipeline components.
func New(engine Asker, ingester Ingester, stats StatsProvider) *Server {
	return &Server{engine: engine, ingester: ingester, stats: stats}
}

// Router builds the echo instance with all routes registered.
func (s *Server) Router() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())

	httpLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		httpLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]string{"error": msg})
		}
	}

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	api := e.Group("/api")
	api.POST("/ask", s.handleAsk)
	api.POST("/ingest", s.handleIngest)
	api.GET("/health", s.handleHealth)

	return e
}

// Run serves HTTP on addr until the listener fails.
func (s *Server) Run(addr string) error {
	e := s.Router()
	log.Printf("server: listening on %s", addr)
	return e.Start(addr)
}

type askRequest struct {
	Question string `json:"question"`
	Mode     string `json:"mode,omitempty"`
}

func (s *Server) handleAsk(c echo.Context) error {
	var req askRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	mode, err := answer.ParseMode(req.Mode)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ans, err := s.engine.Ask(c.Request().Context(), req.Question, mode)
	switch {
	case errors.Is(err, answer.ErrEmptyQuestion):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, answer.ErrServiceDegraded):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, ans)
}

type ingestRequest struct {
	SourceID string `json:"source_id,omitempty"`
	Path     string `json:"path"`
}

func (s *Server) handleIngest(c echo.Context) error {
	var req ingestRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Path == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "path is required")
	}
	sourceID := req.SourceID
	if sourceID == "" {
		sourceID = req.Path
	}

	report, err := s.ingester.IngestDir(c.Request().Context(), sourceID, req.Path)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, report)
}

type healthResponse struct {
	Status string        `json:"status"`
	Stats  store.DBStats `json:"stats"`
}

func (s *Server) handleHealth(c echo.Context) error {
	stats, err := s.stats.Stats()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, healthResponse{Status: "ok", Stats: *stats})
}
