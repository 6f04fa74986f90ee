package database

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/anicoll/counter-dashboard/internal/pkg/realtime"
)

// Get returns the raw value at path, nil when the path has no row.
func (db *Database) Get(ctx context.Context, path string) (json.RawMessage, error) {
	var value []byte
	err := db.pool.QueryRow(ctx, `SELECT value FROM realtime_value WHERE path = $1`, path).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

// refresh re-reads path and pushes it to subscribers.
func (db *Database) refresh(ctx context.Context, path string) error {
	value, err := db.Get(ctx, path)
	if err != nil {
		return err
	}
	db.hub.Publish(realtime.Update{Path: path, Value: value})
	return nil
}
