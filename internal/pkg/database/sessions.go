package database

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/anicoll/counter-dashboard/internal/pkg/model"
)

func (db *Database) CreateSession(ctx context.Context, session *model.Session) error {
	return db.pool.QueryRow(ctx, `
		INSERT INTO app_session (id, user_id, expires_at)
		VALUES ($1, $2, $3)
		RETURNING created_at
	`, session.ID, session.UserID, session.ExpiresAt).Scan(&session.CreatedAt)
}

func (db *Database) SessionByID(ctx context.Context, id string) (*model.Session, error) {
	var s model.Session
	err := db.pool.QueryRow(ctx, `
		SELECT id, user_id, expires_at, created_at, revoked_at
		FROM app_session WHERE id = $1
	`, id).Scan(&s.ID, &s.UserID, &s.ExpiresAt, &s.CreatedAt, &s.RevokedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (db *Database) RevokeSession(ctx context.Context, id string, at time.Time) error {
	tag, err := db.pool.Exec(ctx, `UPDATE app_session SET revoked_at = $2 WHERE id = $1 AND revoked_at IS NULL`, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

// DeleteExpiredSessions removes sessions that expired or were revoked before
// the given time.
func (db *Database) DeleteExpiredSessions(ctx context.Context, before time.Time) (int64, error) {
	tag, err := db.pool.Exec(ctx, `DELETE FROM app_session WHERE expires_at < $1 OR revoked_at < $1`, before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
