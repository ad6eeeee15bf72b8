package storage

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

const getEntry = `-- name: GetEntry :one
SELECT value FROM kv_entries
WHERE key = ?
`

func (q *Queries) GetEntry(ctx context.Context, key string) ([]byte, error) {
	row := q.db.QueryRowContext(ctx, getEntry, key)
	var value []byte
	err := row.Scan(&value)
	return value, err
}

const upsertEntry = `-- name: UpsertEntry :exec
INSERT INTO kv_entries (key, value, updated_at)
VALUES (?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(key) DO UPDATE SET
    value = excluded.value,
    updated_at = CURRENT_TIMESTAMP
`

type UpsertEntryParams struct {
	Key   string
	Value []byte
}

func (q *Queries) UpsertEntry(ctx context.Context, arg UpsertEntryParams) error {
	_, err := q.db.ExecContext(ctx, upsertEntry, arg.Key, arg.Value)
	return err
}

const deleteEntry = `-- name: DeleteEntry :exec
DELETE FROM kv_entries
WHERE key = ?
`

func (q *Queries) DeleteEntry(ctx context.Context, key string) error {
	_, err := q.db.ExecContext(ctx, deleteEntry, key)
	return err
}
