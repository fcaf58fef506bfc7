// Package status serves the monitor's health, stream table and Prometheus
// metrics over HTTP.
package status

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"qcping/internal/api"
	"qcping/internal/httpx"
	"qcping/internal/store"
)

type Server struct {
	listen string
	snap   *store.Snapshot
	log    *zap.Logger
	e      *echo.Echo
}

// NewServer builds the status routes. The snapshot is served as is and must
// not be modified afterwards.
func NewServer(listen string, snap *store.Snapshot, gatherer prometheus.Gatherer, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if snap == nil {
		snap = &store.Snapshot{}
	}
	s := &Server{listen: listen, snap: snap, log: log}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.GET("/health", s.HandleHealth)
	e.GET("/streams", s.HandleStreams)
	if gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
	s.e = e
	return s
}

func (s *Server) Handler() http.Handler {
	return s.e
}

// ListenAndServe runs the HTTP server until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.log.Info("status listening", zap.String("listen", s.listen))
	return httpx.Serve(ctx, httpx.NewServer(s.listen, s.e))
}

// HandleHealth reports ok and the number of probed streams.
func (s *Server) HandleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, api.HealthResponse{Status: "ok", Streams: s.snap.Addressed()})
}

// HandleStreams returns the stream table. ?addressed=true limits it to
// streams with an address.
func (s *Server) HandleStreams(c echo.Context) error {
	if c.QueryParam("addressed") != "true" {
		return c.JSON(http.StatusOK, s.snap)
	}
	out := store.Snapshot{GeneratedAt: s.snap.GeneratedAt}
	for _, info := range s.snap.Streams {
		if info.Address != "" {
			out.Streams = append(out.Streams, info)
		}
	}
	return c.JSON(http.StatusOK, out)
}
