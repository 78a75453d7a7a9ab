package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ucero0/acquisitiond/internal/domain"
)

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleRunOrchestrator(c echo.Context) error {
	summary, err := s.orchestrator.Run(c.Request().Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("orchestrator run failed")
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, summary)
}

func (s *Server) handleReconcile(c echo.Context) error {
	result, err := s.reconciler.Reconcile(c.Request().Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("reconcile failed")
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, result)
}

type scanRequest struct {
	TorrentHash string `json:"torrent_hash"`
}

func (s *Server) handleScan(c echo.Context) error {
	var req scanRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	if req.TorrentHash == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "torrent_hash is required")
	}

	result, err := s.orchestrator.ScanAndFile(c.Request().Context(), req.TorrentHash)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		s.logger.Error().Err(err).Str("torrent_hash", req.TorrentHash).Msg("scan failed")
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) handleListTorrents(c echo.Context) error {
	torrents, err := s.downloader.ListActive(c.Request().Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("list torrents failed")
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, torrents)
}
