package database

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/anicoll/counter-dashboard/internal/pkg/model"
)

const uniqueViolation = "23505"

func (db *Database) CreateUser(ctx context.Context, user *model.User) error {
	err := db.pool.QueryRow(ctx, `
		INSERT INTO app_user (id, email, display_name, password_hash)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, user.ID, user.Email, user.DisplayName, user.PasswordHash).Scan(&user.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return model.ErrUserExists
	}
	return err
}

func (db *Database) UserByEmail(ctx context.Context, email string) (*model.User, error) {
	return db.scanUser(db.pool.QueryRow(ctx, `
		SELECT id, email, display_name, password_hash, created_at
		FROM app_user WHERE email = $1
	`, email))
}

func (db *Database) UserByID(ctx context.Context, id string) (*model.User, error) {
	return db.scanUser(db.pool.QueryRow(ctx, `
		SELECT id, email, display_name, password_hash, created_at
		FROM app_user WHERE id = $1
	`, id))
}

func (db *Database) scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	if err := row.Scan(&u.ID, &u.Email, &u.DisplayName, &u.PasswordHash, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}
