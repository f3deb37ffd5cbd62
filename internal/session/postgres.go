package session

import (
	"context"
	"database/sql"
	"errors"

	"github.com/muhammadolammi/careercards/internal/database"
)

// PostgresPort upserts records into the session_records table.
type PostgresPort struct {
	queries *database.Queries
}

func NewPostgresPort(queries *database.Queries) *PostgresPort {
	return &PostgresPort{queries: queries}
}

func (p *PostgresPort) Get(ctx context.Context, key string) ([]byte, bool, error) {
	record, err := p.queries.GetSessionRecord(ctx, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return record.Value, true, nil
}

func (p *PostgresPort) Set(ctx context.Context, key string, value []byte) error {
	return p.queries.UpsertSessionRecord(ctx, database.UpsertSessionRecordParams{
		Key:   key,
		Value: value,
	})
}

func (p *PostgresPort) Delete(ctx context.Context, key string) error {
	return p.queries.DeleteSessionRecord(ctx, key)
}
