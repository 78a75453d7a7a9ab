// Package orchestrator implements the main acquisition pipeline: one tick
// reconciles stale download jobs, collects the union watchlist across active
// users, and walks each entry through search, candidate descent, and job
// creation. Scan-triggered filing (infected/clean handling) lives here too,
// since it shares the same collaborators and domain invariants.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ucero0/acquisitiond/internal/domain"
	"github.com/ucero0/acquisitiond/internal/reconciler"
	"github.com/ucero0/acquisitiond/internal/scanner"
)

const (
	defaultAppearanceDelay = 2 * time.Second
	defaultTimeWindow      = 3 * time.Second
	defaultSimilarityFloor = 0.6
)

// CatalogClient is the slice of CatalogClient the orchestrator needs.
type CatalogClient interface {
	FetchWatchlist(ctx context.Context, token string) ([]domain.WatchlistEntry, error)
	ExistsInLibrary(ctx context.Context, token string, entry domain.WatchlistEntry) (bool, error)
	RemoveFromWatchlist(ctx context.Context, token, ratingKey string) error
	AddToWatchlist(ctx context.Context, token, ratingKey string) error
}

// IndexerClient is the slice of IndexerClient the orchestrator needs.
type IndexerClient interface {
	Search(ctx context.Context, query string, kind domain.Kind) ([]domain.IndexerResult, error)
	Enqueue(ctx context.Context, releaseGUID string, indexerID int64) error
}

// DownloaderClient is the slice of DownloaderClient the orchestrator needs.
type DownloaderClient interface {
	ListActive(ctx context.Context) ([]domain.TorrentStatus, error)
	Remove(ctx context.Context, hash string, alsoDeleteData bool) error
}

// ScannerClient is the slice of ScannerClient the orchestrator needs.
type ScannerClient interface {
	Scan(path string) (*scanner.Verdict, error)
}

// MetadataClient is the slice of MetadataClient the orchestrator needs.
type MetadataClient interface {
	OriginalTitleAndLanguage(ctx context.Context, title string, year int, kind domain.Kind) (*domain.OriginalTitle, error)
}

// FilesystemService is the slice of FilesystemService the orchestrator needs.
type FilesystemService interface {
	QuarantinePath(name string) string
	LibraryDestination(kind domain.Kind, name string) string
	StripNonMedia(path string) (int, error)
	Move(src, dst string) error
	Exists(path string) bool
}

// Selector ranks raw indexer results into an ordered candidate list.
type Selector interface {
	Select(results []domain.IndexerResult) []domain.Candidate
}

// Reconciler prunes and refreshes DownloadJob rows ahead of new work.
type Reconciler interface {
	Reconcile(ctx context.Context) (reconciler.Result, error)
}

// WatchUserRepo is the slice of WatchUserRepo the orchestrator needs.
type WatchUserRepo interface {
	ListActive(ctx context.Context) ([]domain.WatchUser, error)
}

// DownloadJobRepo is the slice of DownloadJobRepo the orchestrator needs.
type DownloadJobRepo interface {
	Get(ctx context.Context, hash string) (*domain.DownloadJob, error)
	IsGUIDInFlight(ctx context.Context, guid string) (bool, error)
	Create(ctx context.Context, j domain.DownloadJob) error
	Delete(ctx context.Context, hash string) error
}

// ScanRecordRepo is the slice of ScanRecordRepo the orchestrator needs.
type ScanRecordRepo interface {
	HasInfected(ctx context.Context, releaseGUID string) (bool, error)
	Create(ctx context.Context, s domain.ScanRecord) (int64, error)
	SetDestination(ctx context.Context, scanID int64, destinationPath string) error
}

// Summary is the return value of one Run call, surfaced over HTTP.
type Summary struct {
	Processed         int      `json:"processed"`
	Searched          int      `json:"searched"`
	AddedToDownloader int      `json:"added_to_downloader"`
	Errors            []string `json:"errors"`
}

// Orchestrator wires every collaborator needed to run a tick or file a scan
// result. All fields are narrow interfaces so tests can fake each one
// independently.
type Orchestrator struct {
	catalog    CatalogClient
	indexer    IndexerClient
	downloader DownloaderClient
	scanner    ScannerClient
	metadata   MetadataClient
	filesystem FilesystemService
	selector   Selector
	reconciler Reconciler
	watchUsers WatchUserRepo
	jobs       DownloadJobRepo
	scans      ScanRecordRepo
	logger     zerolog.Logger

	appearanceDelay time.Duration
	timeWindow      time.Duration
	similarityFloor float64
}

// Config bundles the tunables the similarity-matching rule needs, with
// spec-mandated defaults applied by New when left zero.
type Config struct {
	AppearanceDelay time.Duration
	TimeWindow      time.Duration
	SimilarityFloor float64
}

func New(
	catalog CatalogClient,
	indexer IndexerClient,
	downloader DownloaderClient,
	scannerClient ScannerClient,
	metadata MetadataClient,
	filesystem FilesystemService,
	selector Selector,
	rec Reconciler,
	watchUsers WatchUserRepo,
	jobs DownloadJobRepo,
	scans ScanRecordRepo,
	cfg Config,
	logger zerolog.Logger,
) *Orchestrator {
	if cfg.AppearanceDelay <= 0 {
		cfg.AppearanceDelay = defaultAppearanceDelay
	}
	if cfg.TimeWindow <= 0 {
		cfg.TimeWindow = defaultTimeWindow
	}
	if cfg.SimilarityFloor <= 0 {
		cfg.SimilarityFloor = defaultSimilarityFloor
	}

	return &Orchestrator{
		catalog:         catalog,
		indexer:         indexer,
		downloader:      downloader,
		scanner:         scannerClient,
		metadata:        metadata,
		filesystem:      filesystem,
		selector:        selector,
		reconciler:      rec,
		watchUsers:      watchUsers,
		jobs:            jobs,
		scans:           scans,
		appearanceDelay: cfg.AppearanceDelay,
		timeWindow:      cfg.TimeWindow,
		similarityFloor: cfg.SimilarityFloor,
		logger:          logger.With().Str("component", "orchestrator").Logger(),
	}
}

// unionEntry pairs a deduplicated watchlist entry with the token of the
// first user it was seen under — the pair used to remove or re-add it.
type unionEntry struct {
	entry domain.WatchlistEntry
	token string
}

// Run executes one tick: reconcile, collect the union watchlist, then walk
// every entry sequentially. Per-entry failures are collected into
// Summary.Errors; the tick never aborts on a single entry's failure.
func (o *Orchestrator) Run(ctx context.Context) (Summary, error) {
	var summary Summary

	if result, err := o.reconciler.Reconcile(ctx); err != nil {
		summary.Errors = append(summary.Errors, fmt.Sprintf("reconcile: %v", err))
	} else {
		o.logger.Debug().Int("removed", result.Removed).Int("updated", result.Updated).Msg("reconciled before tick")
	}

	users, err := o.watchUsers.ListActive(ctx)
	if err != nil {
		return summary, fmt.Errorf("list active watch users: %w", err)
	}

	entries := o.collectUnionWatchlist(ctx, users, &summary)

	for _, ue := range entries {
		summary.Processed++
		if err := o.processEntry(ctx, ue, &summary); err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %v", ue.entry.Title, err))
		}
	}

	return summary, nil
}

// collectUnionWatchlist fetches every active user's watchlist and
// deduplicates by guid, keeping the first (rating_key, token) pair seen.
func (o *Orchestrator) collectUnionWatchlist(ctx context.Context, users []domain.WatchUser, summary *Summary) []unionEntry {
	seen := make(map[string]bool)
	var union []unionEntry

	for _, u := range users {
		entries, err := o.catalog.FetchWatchlist(ctx, u.AccessToken)
		if err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("fetch watchlist for user %d: %v", u.UserID, err))
			continue
		}
		for _, e := range entries {
			if seen[e.GUID] {
				continue
			}
			seen[e.GUID] = true
			union = append(union, unionEntry{entry: e, token: u.AccessToken})
		}
	}
	return union
}

// processEntry runs one watchlist entry through the library gate, duplicate
// gate, search, and candidate descent.
func (o *Orchestrator) processEntry(ctx context.Context, ue unionEntry, summary *Summary) error {
	entry, token := ue.entry, ue.token

	inLibrary, err := o.catalog.ExistsInLibrary(ctx, token, entry)
	if err != nil {
		return fmt.Errorf("check library presence: %w", err)
	}
	if inLibrary {
		o.logger.Info().Str("title", entry.Title).Msg("already in library, removing from watchlist")
		if err := o.catalog.RemoveFromWatchlist(ctx, token, entry.RatingKey); err != nil {
			o.logger.Warn().Err(err).Str("title", entry.Title).Msg("failed to remove in-library entry from watchlist")
		}
		return nil
	}

	inFlight, err := o.jobs.IsGUIDInFlight(ctx, entry.GUID)
	if err != nil {
		return fmt.Errorf("check guid in flight: %w", err)
	}
	if inFlight {
		o.logger.Info().Str("title", entry.Title).Msg("already queued in an earlier tick, removing from watchlist")
		if err := o.catalog.RemoveFromWatchlist(ctx, token, entry.RatingKey); err != nil {
			o.logger.Warn().Err(err).Str("title", entry.Title).Msg("failed to remove already-queued entry from watchlist")
		}
		return nil
	}

	if entry.Year == 0 {
		o.logger.Debug().Str("title", entry.Title).Msg("skipping entry with no year")
		return nil
	}

	query := o.buildSearchQuery(ctx, entry)

	results, err := o.indexer.Search(ctx, query, entry.Kind)
	if err != nil {
		return fmt.Errorf("search %q: %w", query, err)
	}
	summary.Searched++

	candidates := o.selector.Select(results)
	if len(candidates) == 0 {
		o.logger.Info().Str("query", query).Msg("no candidates found")
		return nil
	}

	queued, err := o.descendCandidates(ctx, entry, token, candidates)
	if err != nil {
		return err
	}
	if queued {
		summary.AddedToDownloader++
	} else {
		o.logger.Info().Str("title", entry.Title).Msg("all candidates failed, leaving entry on watchlist for next tick")
	}
	return nil
}

// buildSearchQuery resolves the original title for non-English releases via
// MetadataClient, falling back to the display title on any soft failure.
func (o *Orchestrator) buildSearchQuery(ctx context.Context, entry domain.WatchlistEntry) string {
	title := entry.Title

	original, err := o.metadata.OriginalTitleAndLanguage(ctx, entry.Title, entry.Year, entry.Kind)
	if err != nil {
		o.logger.Warn().Err(err).Str("title", entry.Title).Msg("metadata lookup failed, using display title")
	} else if original != nil && original.Language != "en" {
		o.logger.Info().Str("title", entry.Title).Str("original_title", original.Title).
			Str("language", original.Language).Msg("using original title for non-English release")
		title = original.Title
	}

	return fmt.Sprintf("%s %d", title, entry.Year)
}

// descendCandidates walks candidates strictly in score-descending order,
// enqueueing each through the indexer and confirming its appearance in the
// downloader before recording a DownloadJob.
func (o *Orchestrator) descendCandidates(ctx context.Context, entry domain.WatchlistEntry, token string, candidates []domain.Candidate) (bool, error) {
	for _, candidate := range candidates {
		infected, err := o.scans.HasInfected(ctx, candidate.ReleaseGUID)
		if err != nil {
			o.logger.Warn().Err(err).Str("release_guid", candidate.ReleaseGUID).Msg("infection check failed, skipping candidate")
			continue
		}
		if infected {
			o.logger.Info().Str("title", candidate.Title).Msg("skipping known-infected release")
			continue
		}

		if err := o.indexer.Enqueue(ctx, candidate.ReleaseGUID, candidate.IndexerID); err != nil {
			o.logger.Warn().Err(err).Str("title", candidate.Title).Msg("enqueue failed, trying next candidate")
			continue
		}

		select {
		case <-time.After(o.appearanceDelay):
		case <-ctx.Done():
			return false, ctx.Err()
		}

		matched, err := o.findAppearedTorrent(ctx, candidate.Title)
		if err != nil {
			o.logger.Warn().Err(err).Str("title", candidate.Title).Msg("appearance check failed, trying next candidate")
			continue
		}
		if matched == nil {
			o.logger.Info().Str("title", candidate.Title).Msg("candidate did not appear in downloader, trying next")
			continue
		}

		job := domain.DownloadJob{
			TorrentHash: matched.Hash,
			GUID:        entry.GUID,
			ReleaseGUID: candidate.ReleaseGUID,
			RatingKey:   entry.RatingKey,
			AccessToken: token,
			Title:       entry.Title,
			Year:        entry.Year,
			Kind:        entry.Kind,
			FileName:    matched.Name,
		}
		if err := o.jobs.Create(ctx, job); err != nil {
			if errors.Is(err, domain.ErrDuplicateKey) {
				o.logger.Info().Str("hash", matched.Hash).Msg("torrent hash already tracked, trying next candidate")
				continue
			}
			return false, fmt.Errorf("create download job: %w", err)
		}

		if err := o.catalog.RemoveFromWatchlist(ctx, token, entry.RatingKey); err != nil {
			o.logger.Warn().Err(err).Str("title", entry.Title).Msg("queued job but failed to remove watchlist entry")
		}
		o.logger.Info().Str("title", entry.Title).Str("hash", matched.Hash).Msg("queued download job")
		return true, nil
	}
	return false, nil
}

// findAppearedTorrent looks for a torrent matching candidateTitle. Torrents
// added within timeWindow of now are scored by similarity against each
// other, and the best of those wins even at low similarity, since
// downloaders often rename on ingest; the similarity-floor check is only
// bypassed for this in-window group, never the comparison itself. With no
// in-window torrent, it falls back to the best similarity match overall,
// gated by similarityFloor.
func (o *Orchestrator) findAppearedTorrent(ctx context.Context, candidateTitle string) (*domain.TorrentStatus, error) {
	torrents, err := o.downloader.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	var windowBest *domain.TorrentStatus
	var windowBestScore float64

	for i := range torrents {
		t := torrents[i]

		delta := now.Sub(t.TimeAdded)
		if delta < 0 || delta > o.timeWindow {
			continue
		}

		if score := similarity(t.Name, candidateTitle); windowBest == nil || score > windowBestScore {
			windowBest = &t
			windowBestScore = score
		}
	}
	if windowBest != nil {
		return windowBest, nil
	}

	var best *domain.TorrentStatus
	var bestScore float64
	for i := range torrents {
		t := torrents[i]
		if score := similarity(t.Name, candidateTitle); score >= o.similarityFloor && score > bestScore {
			best = &t
			bestScore = score
		}
	}
	return best, nil
}
