// Package reconciler keeps DownloadJob rows aligned with what the downloader
// daemon actually knows about: jobs the daemon no longer tracks are pruned,
// and downloader-authoritative fields on surviving jobs are refreshed.
package reconciler

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ucero0/acquisitiond/internal/domain"
)

// DownloadJobRepo is the slice of DownloadJobRepo the reconciler needs.
type DownloadJobRepo interface {
	ListAll(ctx context.Context) ([]domain.DownloadJob, error)
	Update(ctx context.Context, j domain.DownloadJob) error
	Delete(ctx context.Context, hash string) error
}

// DownloaderClient is the slice of DownloaderClient the reconciler needs.
type DownloaderClient interface {
	ListActive(ctx context.Context) ([]domain.TorrentStatus, error)
}

// Result summarizes one reconciliation pass.
type Result struct {
	Removed      int `json:"removed"`
	Updated      int `json:"updated"`
	TotalChecked int `json:"total_checked"`
}

// Reconciler runs single-flight per process: a mutex, not a DB lock, since
// the contract only needs to serialize against itself, not other processes.
type Reconciler struct {
	jobs       DownloadJobRepo
	downloader DownloaderClient
	logger     zerolog.Logger

	mu sync.Mutex
}

func New(jobs DownloadJobRepo, downloader DownloaderClient, logger zerolog.Logger) *Reconciler {
	return &Reconciler{
		jobs:       jobs,
		downloader: downloader,
		logger:     logger.With().Str("component", "reconciler").Logger(),
	}
}

// Reconcile loads every DownloadJob and the downloader's current torrent
// set, deletes jobs whose hash the downloader no longer recognizes, and
// refreshes downloader-authoritative fields (currently file_name) on the
// rest. A job whose hash reappears in a later snapshot is never deleted by
// an earlier one in flight: each call sees one consistent pair of snapshots.
func (r *Reconciler) Reconcile(ctx context.Context) (Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	jobs, err := r.jobs.ListAll(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("list download jobs: %w", err)
	}
	if len(jobs) == 0 {
		return Result{}, nil
	}

	torrents, err := r.downloader.ListActive(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("list active torrents: %w", err)
	}

	byHash := make(map[string]domain.TorrentStatus, len(torrents))
	for _, t := range torrents {
		byHash[t.Hash] = t
	}

	var result Result
	for _, job := range jobs {
		result.TotalChecked++

		status, ok := byHash[job.TorrentHash]
		if !ok {
			if err := r.jobs.Delete(ctx, job.TorrentHash); err != nil {
				r.logger.Warn().Err(err).Str("hash", job.TorrentHash).Msg("failed to delete stale download job")
				continue
			}
			result.Removed++
			continue
		}

		if status.Name == "" || status.Name == job.FileName {
			continue
		}
		job.FileName = status.Name
		if err := r.jobs.Update(ctx, job); err != nil {
			r.logger.Warn().Err(err).Str("hash", job.TorrentHash).Msg("failed to refresh download job")
			continue
		}
		result.Updated++
	}

	r.logger.Info().Int("removed", result.Removed).Int("updated", result.Updated).Int("total_checked", result.TotalChecked).Msg("reconciliation completed")
	return result, nil
}
