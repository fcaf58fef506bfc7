// Package collector receives quality records posted by HTTP sinks and
// appends them to a CSV file.
package collector

import (
	"context"
	"net/http"
	"sync"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"qcping/internal/api"
	"qcping/internal/httpx"
	"qcping/internal/metrics"
)

// Server provides the collector HTTP API.
type Server struct {
	listen  string
	csvPath string
	log     *zap.Logger
	e       *echo.Echo

	// mu serializes appends to the CSV so concurrent posts never interleave rows.
	mu     sync.Mutex
	stored int
}

// NewServer constructs a collector writing to csvPath.
func NewServer(listen, csvPath string, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{listen: listen, csvPath: csvPath, log: log}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{StackSize: 1024 * 4}))
	e.Use(middleware.BodyLimit("4M"))
	e.GET("/health", s.HandleHealth)
	e.POST("/quality", s.HandleQuality)
	s.e = e
	return s
}

// Handler exposes the routes for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.e
}

// ListenAndServe runs the HTTP server until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.log.Info("collector listening", zap.String("listen", s.listen), zap.String("csv", s.csvPath))
	return httpx.Serve(ctx, httpx.NewServer(s.listen, s.e))
}

// HandleHealth returns server health status.
func (s *Server) HandleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, api.HealthResponse{Status: "ok"})
}

// HandleQuality appends the posted records to the CSV file.
func (s *Server) HandleQuality(c echo.Context) error {
	var req api.QualityRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "invalid json"})
	}
	if len(req.Records) == 0 {
		return c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "records are required"})
	}
	for _, q := range req.Records {
		if q.WaveformID.Network == "" || q.WaveformID.Station == "" || q.Parameter == "" {
			return c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "waveform_id and parameter are required"})
		}
	}

	s.mu.Lock()
	err := metrics.AppendCSV(s.csvPath, req.Records)
	if err == nil {
		s.stored += len(req.Records)
	}
	s.mu.Unlock()
	if err != nil {
		s.log.Error("append quality failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to store records"})
	}

	s.log.Debug("quality stored",
		zap.String("message_id", req.MessageID),
		zap.String("username", req.Username),
		zap.Int("records", len(req.Records)))
	return c.JSON(http.StatusOK, api.QualityResponse{Stored: len(req.Records)})
}

// Stored returns the number of records written since start.
func (s *Server) Stored() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stored
}
