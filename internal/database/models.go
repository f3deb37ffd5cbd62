package database

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type SessionRecord struct {
	Key       string
	Value     json.RawMessage
	UpdatedAt time.Time
}

type JobResult struct {
	JobID     uuid.UUID
	UserID    string
	Kind      string
	Status    string
	Result    json.RawMessage
	CreatedAt time.Time
	UpdatedAt time.Time
}
