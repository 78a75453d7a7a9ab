// Package api exposes the thin HTTP facade: manual triggers for the
// orchestrator tick, the reconciler, and the scan pipeline, plus a
// passthrough torrent listing and a health check.
package api

import (
	"context"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	apimw "github.com/ucero0/acquisitiond/internal/api/middleware"
	"github.com/ucero0/acquisitiond/internal/domain"
	"github.com/ucero0/acquisitiond/internal/orchestrator"
	"github.com/ucero0/acquisitiond/internal/reconciler"
)

// Orchestrator is the slice of the orchestrator the API surfaces.
type Orchestrator interface {
	Run(ctx context.Context) (orchestrator.Summary, error)
	ScanAndFile(ctx context.Context, torrentHash string) (orchestrator.ScanResult, error)
}

// Reconciler is the slice of the reconciler the API surfaces.
type Reconciler interface {
	Reconcile(ctx context.Context) (reconciler.Result, error)
}

// DownloaderClient is the slice of DownloaderClient the API surfaces.
type DownloaderClient interface {
	ListActive(ctx context.Context) ([]domain.TorrentStatus, error)
}

// Server wraps an echo instance configured with the acquisition pipeline's
// five endpoints.
type Server struct {
	echo         *echo.Echo
	orchestrator Orchestrator
	reconciler   Reconciler
	downloader   DownloaderClient
	apiKey       string
	logger       zerolog.Logger
}

func New(orch Orchestrator, rec Reconciler, downloader DownloaderClient, apiKey string, logger zerolog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:         e,
		orchestrator: orch,
		reconciler:   rec,
		downloader:   downloader,
		apiKey:       apiKey,
		logger:       logger.With().Str("component", "api").Logger(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.echo.Use(echomw.Recover())
	s.echo.Use(echomw.RequestID())
	s.echo.Use(apimw.SecurityHeaders())
	s.echo.Use(echomw.BodyLimit("1M"))
	s.echo.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogMethod:  true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			event := s.logger.Info()
			if v.Error != nil {
				event = s.logger.Error().Err(v.Error)
			}
			event.Str("method", v.Method).Str("uri", v.URI).Int("status", v.Status).
				Dur("latency", v.Latency).Msg("request")
			return nil
		},
	}))
}

func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/downloader/torrents", s.handleListTorrents)

	mutating := s.echo.Group("", apimw.APIKeyAuth(s.apiKey))
	mutating.POST("/orchestrator/run", s.handleRunOrchestrator)
	mutating.POST("/orchestrator/reconcile", s.handleReconcile)
	mutating.POST("/scanner/scan", s.handleScan)
}

// Start blocks serving on addr until the server is shut down or errors.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown gracefully drains in-flight requests before returning.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
