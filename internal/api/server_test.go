package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/ucero0/acquisitiond/internal/domain"
	"github.com/ucero0/acquisitiond/internal/orchestrator"
	"github.com/ucero0/acquisitiond/internal/reconciler"
)

const testAPIKey = "test-secret-key"

type fakeOrchestrator struct {
	runSummary orchestrator.Summary
	runErr     error
	scanResult orchestrator.ScanResult
	scanErr    error
}

func (f *fakeOrchestrator) Run(ctx context.Context) (orchestrator.Summary, error) {
	return f.runSummary, f.runErr
}

func (f *fakeOrchestrator) ScanAndFile(ctx context.Context, torrentHash string) (orchestrator.ScanResult, error) {
	return f.scanResult, f.scanErr
}

type fakeReconciler struct {
	result reconciler.Result
	err    error
}

func (f *fakeReconciler) Reconcile(ctx context.Context) (reconciler.Result, error) {
	return f.result, f.err
}

type fakeDownloaderClient struct {
	torrents []domain.TorrentStatus
	err      error
}

func (f *fakeDownloaderClient) ListActive(ctx context.Context) ([]domain.TorrentStatus, error) {
	return f.torrents, f.err
}

func newTestServer() (*Server, *fakeOrchestrator, *fakeReconciler, *fakeDownloaderClient) {
	orch := &fakeOrchestrator{}
	rec := &fakeReconciler{}
	dl := &fakeDownloaderClient{}
	s := New(orch, rec, dl, testAPIKey, zerolog.Nop())
	return s, orch, rec, dl
}

func TestHealth_NoAuthRequired(t *testing.T) {
	s, _, _, _ := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "healthy")
}

func TestRunOrchestrator_RejectsMissingAPIKey(t *testing.T) {
	s, _, _, _ := newTestServer()

	req := httptest.NewRequest(http.MethodPost, "/orchestrator/run", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRunOrchestrator_RejectsWrongAPIKey(t *testing.T) {
	s, _, _, _ := newTestServer()

	req := httptest.NewRequest(http.MethodPost, "/orchestrator/run", nil)
	req.Header.Set("X-Api-Key", "not-the-right-key")
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRunOrchestrator_ReturnsSummaryWithValidKey(t *testing.T) {
	s, orch, _, _ := newTestServer()
	orch.runSummary = orchestrator.Summary{Processed: 3, Searched: 2, AddedToDownloader: 1}

	req := httptest.NewRequest(http.MethodPost, "/orchestrator/run", nil)
	req.Header.Set("X-Api-Key", testAPIKey)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"processed":3`)
}

func TestReconcile_ReturnsResultWithValidKey(t *testing.T) {
	s, _, rec, _ := newTestServer()
	rec.result = reconciler.Result{Removed: 2, Updated: 1, TotalChecked: 5}

	req := httptest.NewRequest(http.MethodPost, "/orchestrator/reconcile", nil)
	req.Header.Set("X-Api-Key", testAPIKey)
	w := httptest.NewRecorder()
	s.echo.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"total_checked":5`)
}

func TestScan_RequiresTorrentHash(t *testing.T) {
	s, _, _, _ := newTestServer()

	req := httptest.NewRequest(http.MethodPost, "/scanner/scan", strings.NewReader(`{}`))
	req.Header.Set("X-Api-Key", testAPIKey)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScan_ReturnsNotFoundWhenJobMissing(t *testing.T) {
	s, orch, _, _ := newTestServer()
	orch.scanErr = domain.ErrNotFound

	req := httptest.NewRequest(http.MethodPost, "/scanner/scan", strings.NewReader(`{"torrent_hash":"deadbeef"}`))
	req.Header.Set("X-Api-Key", testAPIKey)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestScan_ReturnsDestinationOnSuccess(t *testing.T) {
	s, orch, _, _ := newTestServer()
	orch.scanResult = orchestrator.ScanResult{Status: "clean", DestinationPath: "/library/movies/Foo (2020)"}

	req := httptest.NewRequest(http.MethodPost, "/scanner/scan", strings.NewReader(`{"torrent_hash":"deadbeef"}`))
	req.Header.Set("X-Api-Key", testAPIKey)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "/library/movies/Foo (2020)")
}

func TestListTorrents_NoAuthRequired(t *testing.T) {
	s, _, _, dl := newTestServer()
	dl.torrents = []domain.TorrentStatus{{Hash: "abc123", Name: "some.release", Progress: 1.0}}

	req := httptest.NewRequest(http.MethodGet, "/downloader/torrents", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "abc123")
}

func TestSecurityHeaders_SetOnEveryResponse(t *testing.T) {
	s, _, _, _ := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	require.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}
