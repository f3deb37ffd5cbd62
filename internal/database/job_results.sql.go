package database

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
)

const createOrUpdateJobResult = `-- name: CreateOrUpdateJobResult :exec
INSERT INTO job_results (
job_id, user_id, kind, status, result)
VALUES ( $1, $2, $3, $4, $5)
ON CONFLICT (job_id)
DO UPDATE SET
    status = EXCLUDED.status,
    result = EXCLUDED.result,
    updated_at = CURRENT_TIMESTAMP
`

type CreateOrUpdateJobResultParams struct {
	JobID  uuid.UUID
	UserID string
	Kind   string
	Status string
	Result json.RawMessage
}

func (q *Queries) CreateOrUpdateJobResult(ctx context.Context, arg CreateOrUpdateJobResultParams) error {
	_, err := q.db.ExecContext(ctx, createOrUpdateJobResult,
		arg.JobID,
		arg.UserID,
		arg.Kind,
		arg.Status,
		arg.Result,
	)
	return err
}

const updateJobStatus = `-- name: UpdateJobStatus :exec
UPDATE job_results
SET status=$1, updated_at=CURRENT_TIMESTAMP
WHERE job_id=$2
`

type UpdateJobStatusParams struct {
	Status string
	JobID  uuid.UUID
}

func (q *Queries) UpdateJobStatus(ctx context.Context, arg UpdateJobStatusParams) error {
	_, err := q.db.ExecContext(ctx, updateJobStatus, arg.Status, arg.JobID)
	return err
}
