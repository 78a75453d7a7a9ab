package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ucero0/acquisitiond/internal/domain"
)

// ScanRecordRepo is durable access to ScanRecord rows. Scans outlive jobs:
// there is no foreign key to download_jobs, only a plain release_guid column.
type ScanRecordRepo struct {
	db *sql.DB
}

func NewScanRecordRepo(db *sql.DB) *ScanRecordRepo {
	return &ScanRecordRepo{db: db}
}

// HasInfected reports whether any ScanRecord for this release is infected.
func (r *ScanRecordRepo) HasInfected(ctx context.Context, releaseGUID string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM scan_records WHERE release_guid = ? AND infected = 1`, releaseGUID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check has infected: %w", err)
	}
	return count > 0, nil
}

// Create writes a new ScanRecord. Records are never mutated except to record
// the post-move destination via SetDestination.
func (r *ScanRecordRepo) Create(ctx context.Context, s domain.ScanRecord) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO scan_records (release_guid, source_path, destination_path, infected, threat_name)
		VALUES (?, ?, ?, ?, ?)`,
		s.ReleaseGUID, s.SourcePath, s.DestinationPath, s.Infected, s.ThreatName)
	if err != nil {
		return 0, fmt.Errorf("create scan record: %w", err)
	}
	return res.LastInsertId()
}

// SetDestination records where a clean payload was filed, after the move.
func (r *ScanRecordRepo) SetDestination(ctx context.Context, scanID int64, destinationPath string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE scan_records SET destination_path = ? WHERE scan_id = ?`, destinationPath, scanID)
	if err != nil {
		return fmt.Errorf("set scan record destination: %w", err)
	}
	return nil
}

// Get returns one ScanRecord by id.
func (r *ScanRecordRepo) Get(ctx context.Context, scanID int64) (*domain.ScanRecord, error) {
	var s domain.ScanRecord
	err := r.db.QueryRowContext(ctx, `
		SELECT scan_id, release_guid, source_path, destination_path, infected, threat_name, scanned_at
		FROM scan_records WHERE scan_id = ?`, scanID).
		Scan(&s.ScanID, &s.ReleaseGUID, &s.SourcePath, &s.DestinationPath, &s.Infected, &s.ThreatName, &s.ScannedAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get scan record: %w", err)
	}
	return &s, nil
}

// ListByReleaseGUID returns every scan recorded for a release, newest first.
func (r *ScanRecordRepo) ListByReleaseGUID(ctx context.Context, releaseGUID string) ([]domain.ScanRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT scan_id, release_guid, source_path, destination_path, infected, threat_name, scanned_at
		FROM scan_records WHERE release_guid = ? ORDER BY scanned_at DESC`, releaseGUID)
	if err != nil {
		return nil, fmt.Errorf("list scan records: %w", err)
	}
	defer rows.Close()

	var records []domain.ScanRecord
	for rows.Next() {
		var s domain.ScanRecord
		if err := rows.Scan(&s.ScanID, &s.ReleaseGUID, &s.SourcePath, &s.DestinationPath, &s.Infected, &s.ThreatName, &s.ScannedAt); err != nil {
			return nil, fmt.Errorf("scan scan record: %w", err)
		}
		records = append(records, s)
	}
	return records, rows.Err()
}
