// Package domain holds the entities and sentinel errors shared across the
// acquisition pipeline: watch users, watchlist entries, download jobs, and
// scan records.
package domain

import (
	"time"

	"github.com/ucero0/acquisitiond/internal/scoring"
)

// Kind distinguishes the two media categories the pipeline acquires.
type Kind string

const (
	KindMovie Kind = "movie"
	KindShow  Kind = "show"
)

// WatchUser is a household member whose watchlist the orchestrator polls.
type WatchUser struct {
	UserID      int64
	DisplayName string
	AccessToken string
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// WatchlistEntry is a single media item a user wants acquired. It is never
// persisted as such; it is fetched fresh from the catalog on every tick.
type WatchlistEntry struct {
	GUID      string
	RatingKey string
	Title     string
	Year      int
	Kind      Kind
}

// DownloadJob is the durable record that an entry is being acquired.
type DownloadJob struct {
	JobID       int64
	TorrentHash string
	GUID        string
	ReleaseGUID string
	RatingKey   string
	AccessToken string
	Title       string
	Year        int
	Kind        Kind
	FileName    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ScanRecord is the outcome of scanning a completed payload.
type ScanRecord struct {
	ScanID          int64
	ReleaseGUID     string
	SourcePath      string
	DestinationPath string
	Infected        bool
	ThreatName      string
	ScannedAt       time.Time
}

// IndexerResult is one release candidate returned by the indexer aggregator,
// before quality scoring.
type IndexerResult struct {
	ReleaseGUID string
	IndexerID   int64
	IndexerName string
	Title       string
	Seeders     int
	PublishDate time.Time
}

// Candidate is an IndexerResult annotated with a quality score.
type Candidate struct {
	IndexerResult
	Facets scoring.Facets
	Score  int
}

// OriginalTitle is MetadataClient's resolution of a display title to its
// original-language title, used to build a higher-recall search query.
type OriginalTitle struct {
	Title    string
	Language string
}

// TorrentStatus is the downloader's view of one torrent.
type TorrentStatus struct {
	Hash      string
	Name      string
	State     string
	Progress  float64
	ETA       time.Duration
	TimeAdded time.Time
}
