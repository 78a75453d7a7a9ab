// Package repo holds the hand-written database/sql repositories over the
// three durable tables. Each method opens and commits its own unit of work;
// no transaction is ever held across a suspension point.
package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ucero0/acquisitiond/internal/domain"
)

// WatchUserRepo is durable access to WatchUser rows.
type WatchUserRepo struct {
	db *sql.DB
}

func NewWatchUserRepo(db *sql.DB) *WatchUserRepo {
	return &WatchUserRepo{db: db}
}

// ListActive returns every WatchUser with active = true.
func (r *WatchUserRepo) ListActive(ctx context.Context) ([]domain.WatchUser, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id, display_name, access_token, active, created_at, updated_at
		FROM watch_users WHERE active = 1`)
	if err != nil {
		return nil, fmt.Errorf("list active watch users: %w", err)
	}
	defer rows.Close()

	var users []domain.WatchUser
	for rows.Next() {
		var u domain.WatchUser
		if err := rows.Scan(&u.UserID, &u.DisplayName, &u.AccessToken, &u.Active, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan watch user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// Get returns a single WatchUser by id.
func (r *WatchUserRepo) Get(ctx context.Context, userID int64) (*domain.WatchUser, error) {
	var u domain.WatchUser
	err := r.db.QueryRowContext(ctx, `
		SELECT user_id, display_name, access_token, active, created_at, updated_at
		FROM watch_users WHERE user_id = ?`, userID).
		Scan(&u.UserID, &u.DisplayName, &u.AccessToken, &u.Active, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get watch user: %w", err)
	}
	return &u, nil
}

// Create inserts a new WatchUser.
func (r *WatchUserRepo) Create(ctx context.Context, u domain.WatchUser) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO watch_users (user_id, display_name, access_token, active)
		VALUES (?, ?, ?, ?)`, u.UserID, u.DisplayName, u.AccessToken, u.Active)
	if err != nil {
		return fmt.Errorf("create watch user: %w", err)
	}
	return nil
}

// Update replaces a WatchUser's mutable fields.
func (r *WatchUserRepo) Update(ctx context.Context, u domain.WatchUser) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE watch_users SET display_name = ?, access_token = ?, active = ?, updated_at = CURRENT_TIMESTAMP
		WHERE user_id = ?`, u.DisplayName, u.AccessToken, u.Active, u.UserID)
	if err != nil {
		return fmt.Errorf("update watch user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Delete removes a WatchUser. The orchestrator never calls this; it exists
// for the operator-facing CRUD surface only.
func (r *WatchUserRepo) Delete(ctx context.Context, userID int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM watch_users WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("delete watch user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
