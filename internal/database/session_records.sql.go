package database

import (
	"context"
	"encoding/json"
)

const deleteSessionRecord = `-- name: DeleteSessionRecord :exec
DELETE FROM session_records WHERE key=$1
`

func (q *Queries) DeleteSessionRecord(ctx context.Context, key string) error {
	_, err := q.db.ExecContext(ctx, deleteSessionRecord, key)
	return err
}

const getSessionRecord = `-- name: GetSessionRecord :one
SELECT key, value, updated_at FROM session_records WHERE key=$1
`

func (q *Queries) GetSessionRecord(ctx context.Context, key string) (SessionRecord, error) {
	row := q.db.QueryRowContext(ctx, getSessionRecord, key)
	var i SessionRecord
	err := row.Scan(&i.Key, &i.Value, &i.UpdatedAt)
	return i, err
}

const upsertSessionRecord = `-- name: UpsertSessionRecord :exec
INSERT INTO session_records (
key, value)
VALUES ( $1, $2)
ON CONFLICT (key)
DO UPDATE SET
    value = EXCLUDED.value,
    updated_at = CURRENT_TIMESTAMP
`

type UpsertSessionRecordParams struct {
	Key   string
	Value json.RawMessage
}

func (q *Queries) UpsertSessionRecord(ctx context.Context, arg UpsertSessionRecordParams) error {
	_, err := q.db.ExecContext(ctx, upsertSessionRecord, arg.Key, arg.Value)
	return err
}
