package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/ucero0/acquisitiond/internal/domain"
)

// DownloadJobRepo is durable access to DownloadJob rows, the one table whose
// uniqueness invariants (torrent_hash global, guid in-flight count) the
// orchestrator leans on directly.
type DownloadJobRepo struct {
	db *sql.DB
}

func NewDownloadJobRepo(db *sql.DB) *DownloadJobRepo {
	return &DownloadJobRepo{db: db}
}

const downloadJobColumns = `job_id, torrent_hash, guid, release_guid, rating_key, access_token, title, year, kind, file_name, created_at, updated_at`

func scanDownloadJob(row interface {
	Scan(dest ...interface{}) error
}) (*domain.DownloadJob, error) {
	var j domain.DownloadJob
	var kind string
	err := row.Scan(&j.JobID, &j.TorrentHash, &j.GUID, &j.ReleaseGUID, &j.RatingKey, &j.AccessToken,
		&j.Title, &j.Year, &kind, &j.FileName, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}
	j.Kind = domain.Kind(kind)
	return &j, nil
}

// Get returns the job with the given torrent hash.
func (r *DownloadJobRepo) Get(ctx context.Context, hash string) (*domain.DownloadJob, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+downloadJobColumns+` FROM download_jobs WHERE torrent_hash = ?`, hash)
	j, err := scanDownloadJob(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get download job: %w", err)
	}
	return j, nil
}

// GetByGUID returns every job, terminal or not, carrying the given catalog guid.
func (r *DownloadJobRepo) GetByGUID(ctx context.Context, guid string) ([]domain.DownloadJob, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+downloadJobColumns+` FROM download_jobs WHERE guid = ?`, guid)
	if err != nil {
		return nil, fmt.Errorf("get download jobs by guid: %w", err)
	}
	defer rows.Close()
	return scanDownloadJobRows(rows)
}

// GetByReleaseGUID returns every job for a given indexer release.
func (r *DownloadJobRepo) GetByReleaseGUID(ctx context.Context, releaseGUID string) ([]domain.DownloadJob, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+downloadJobColumns+` FROM download_jobs WHERE release_guid = ?`, releaseGUID)
	if err != nil {
		return nil, fmt.Errorf("get download jobs by release guid: %w", err)
	}
	defer rows.Close()
	return scanDownloadJobRows(rows)
}

func scanDownloadJobRows(rows *sql.Rows) ([]domain.DownloadJob, error) {
	var jobs []domain.DownloadJob
	for rows.Next() {
		j, err := scanDownloadJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan download job: %w", err)
		}
		jobs = append(jobs, *j)
	}
	return jobs, rows.Err()
}

// IsGUIDInFlight reports whether any non-terminal DownloadJob already exists
// for this catalog guid. Every row in the table is non-terminal by
// construction: a job is deleted, not flagged, once it leaves flight.
func (r *DownloadJobRepo) IsGUIDInFlight(ctx context.Context, guid string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM download_jobs WHERE guid = ?`, guid).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check guid in flight: %w", err)
	}
	return count > 0, nil
}

// ListAll returns every DownloadJob, used by the reconciler.
func (r *DownloadJobRepo) ListAll(ctx context.Context) ([]domain.DownloadJob, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+downloadJobColumns+` FROM download_jobs`)
	if err != nil {
		return nil, fmt.Errorf("list download jobs: %w", err)
	}
	defer rows.Close()
	return scanDownloadJobRows(rows)
}

// Create inserts a new DownloadJob. A torrent_hash collision surfaces as
// domain.ErrDuplicateKey so the orchestrator can treat the candidate as
// already tracked and move on.
func (r *DownloadJobRepo) Create(ctx context.Context, j domain.DownloadJob) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO download_jobs (torrent_hash, guid, release_guid, rating_key, access_token, title, year, kind, file_name)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.TorrentHash, j.GUID, j.ReleaseGUID, j.RatingKey, j.AccessToken, j.Title, j.Year, string(j.Kind), j.FileName)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateKey
		}
		return fmt.Errorf("create download job: %w", err)
	}
	return nil
}

// Update persists the mutable fields of a DownloadJob (currently only
// file_name, refreshed by the reconciler from the downloader's truth).
func (r *DownloadJobRepo) Update(ctx context.Context, j domain.DownloadJob) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE download_jobs SET file_name = ?, updated_at = CURRENT_TIMESTAMP
		WHERE torrent_hash = ?`, j.FileName, j.TorrentHash)
	if err != nil {
		return fmt.Errorf("update download job: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Delete removes a DownloadJob by torrent hash.
func (r *DownloadJobRepo) Delete(ctx context.Context, hash string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM download_jobs WHERE torrent_hash = ?`, hash)
	if err != nil {
		return fmt.Errorf("delete download job: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint")
}
