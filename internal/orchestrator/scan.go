package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/ucero0/acquisitiond/internal/domain"
	"github.com/ucero0/acquisitiond/internal/scanner"
)

// ScanResult is the outcome of ScanAndFile, surfaced over HTTP as the
// verdict plus destination path.
type ScanResult struct {
	Status           string   `json:"status"`
	Infected         bool     `json:"infected"`
	ThreatName       string   `json:"threat_name,omitempty"`
	SignatureMatches []string `json:"signature_matches,omitempty"`
	ScannedFiles     []string `json:"scanned_files,omitempty"`
	InfectedFiles    []string `json:"infected_files,omitempty"`
	DestinationPath  string   `json:"destination_path,omitempty"`
	Message          string   `json:"message"`
}

// ScanAndFile runs the clean/infected pipeline for one download job,
// identified by its torrent hash. The caller is this process's single scan
// entrypoint (the /scanner/scan endpoint); there is no separate internal
// trigger, so the scan recorded here is the only pass a payload gets.
func (o *Orchestrator) ScanAndFile(ctx context.Context, torrentHash string) (ScanResult, error) {
	job, err := o.jobs.Get(ctx, torrentHash)
	if errors.Is(err, domain.ErrNotFound) {
		return ScanResult{}, fmt.Errorf("%w: no download job for hash %s", domain.ErrNotFound, torrentHash)
	}
	if err != nil {
		return ScanResult{}, fmt.Errorf("look up download job: %w", err)
	}

	scanPath := o.filesystem.QuarantinePath(job.FileName)
	if !o.filesystem.Exists(scanPath) {
		return ScanResult{}, fmt.Errorf("%w: scan path does not exist: %s", domain.ErrFilesystem, scanPath)
	}

	removed, err := o.filesystem.StripNonMedia(scanPath)
	if err != nil {
		return ScanResult{}, err
	}
	if removed > 0 {
		o.logger.Info().Int("removed", removed).Str("path", scanPath).Msg("stripped non-media files before scan")
	}

	verdict, err := o.scanner.Scan(scanPath)
	if err != nil {
		return ScanResult{}, fmt.Errorf("%w: scan %s: %v", domain.ErrScan, scanPath, err)
	}

	scanID, err := o.scans.Create(ctx, domain.ScanRecord{
		ReleaseGUID: job.ReleaseGUID,
		SourcePath:  scanPath,
		Infected:    verdict.Infected,
		ThreatName:  verdict.ThreatName,
	})
	if err != nil {
		return ScanResult{}, fmt.Errorf("record scan: %w", err)
	}

	if verdict.Infected {
		return o.handleInfected(ctx, job, verdict), nil
	}
	return o.handleClean(ctx, job, verdict, scanID, scanPath)
}

// handleInfected removes the torrent and its data, deletes the job, and
// re-queues the watchlist entry if the job carries a usable rating_key and
// token. Older jobs missing either are left alone with a warning.
func (o *Orchestrator) handleInfected(ctx context.Context, job *domain.DownloadJob, verdict *scanner.Verdict) ScanResult {
	if err := o.downloader.Remove(ctx, job.TorrentHash, true); err != nil {
		o.logger.Warn().Err(err).Str("hash", job.TorrentHash).Msg("failed to remove infected torrent from downloader")
	}

	if err := o.jobs.Delete(ctx, job.TorrentHash); err != nil {
		o.logger.Warn().Err(err).Str("hash", job.TorrentHash).Msg("failed to delete infected download job")
	}

	if job.RatingKey != "" && job.AccessToken != "" {
		if err := o.catalog.AddToWatchlist(ctx, job.AccessToken, job.RatingKey); err != nil {
			o.logger.Warn().Err(err).Str("title", job.Title).Msg("failed to re-queue infected entry to watchlist")
		} else {
			o.logger.Info().Str("title", job.Title).Msg("re-queued infected entry for re-download")
		}
	} else {
		o.logger.Warn().Str("title", job.Title).Str("guid", job.GUID).
			Msg("download job missing rating_key/token, cannot re-queue; this may be an older record")
	}

	return ScanResult{
		Status:           "infected",
		Infected:         true,
		ThreatName:       verdict.ThreatName,
		SignatureMatches: verdict.SignatureMatches,
		ScannedFiles:     verdict.ScannedFiles,
		InfectedFiles:    verdict.InfectedFiles,
		Message:          fmt.Sprintf("found %d infected file(s)", len(verdict.InfectedFiles)),
	}
}

// handleClean files the payload into the library and leaves the job in
// place; the reconciler purges it once the downloader stops tracking it.
func (o *Orchestrator) handleClean(ctx context.Context, job *domain.DownloadJob, verdict *scanner.Verdict, scanID int64, scanPath string) (ScanResult, error) {
	destination := o.filesystem.LibraryDestination(job.Kind, job.FileName)

	if err := o.filesystem.Move(scanPath, destination); err != nil {
		return ScanResult{}, fmt.Errorf("%w: move %s -> %s: %v", domain.ErrFilesystem, scanPath, destination, err)
	}

	if err := o.scans.SetDestination(ctx, scanID, destination); err != nil {
		o.logger.Warn().Err(err).Int64("scan_id", scanID).Msg("failed to record scan destination")
	}

	return ScanResult{
		Status:          "clean",
		Infected:        false,
		ScannedFiles:    verdict.ScannedFiles,
		DestinationPath: destination,
		Message:         "files scanned and moved successfully",
	}, nil
}
