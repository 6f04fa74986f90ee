package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anicoll/counter-dashboard/internal/pkg/realtime"
)

const upsertValueSQL = `
	INSERT INTO realtime_value (path, value, updated_at)
	VALUES ($1, %s, now())
	ON CONFLICT (path) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
`

var (
	setValueSQL     = fmt.Sprintf(upsertValueSQL, "$2::jsonb")
	setTimestampSQL = fmt.Sprintf(upsertValueSQL, "to_jsonb((extract(epoch FROM now()) * 1000)::bigint)")
)

// Set upserts value at path. ServerTimestamp is resolved with the database
// clock.
func (db *Database) Set(ctx context.Context, path string, value any) error {
	if realtime.IsServerTimestamp(value) {
		_, err := db.pool.Exec(ctx, setTimestampSQL, path)
		return err
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	_, err = db.pool.Exec(ctx, setValueSQL, path, string(data))
	return err
}
