package main

import (
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/google/uuid"
	"github.com/muhammadolammi/careercards/internal/database"
	"github.com/muhammadolammi/careercards/internal/metrics"
	"github.com/muhammadolammi/careercards/internal/pipeline"
	"github.com/muhammadolammi/careercards/internal/session"
	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

const (
	jobQueue       = "card_jobs"
	updateExchange = "card_updates"

	JobKindGenerate = "generate"
	JobKindAnalyze  = "analyze"
)

type R2Config struct {
	AccountID string
	Bucket    string
	AccessKey string
	SecretKey string
}

type WorkerConfig struct {
	// DB is nil unless db_url is set; job results are only recorded when it is.
	DB          *database.Queries
	R2          *R2Config
	AwsConfig   *aws.Config
	RabbitConn  *amqp.Connection
	RABBITMQUrl string
	Service     *pipeline.Service
	SessionPort session.Port
	Logger      *zap.Logger
	Metrics     *metrics.Manager

	userLocks userLocks
}

type DocumentRef struct {
	ObjectKey string `json:"object_key" validate:"required"`
	Mime      string `json:"mime" validate:"required"`
}

// Job is one message on the card_jobs queue.
type Job struct {
	JobID         uuid.UUID    `json:"job_id" validate:"required"`
	UserID        string       `json:"user_id" validate:"required"`
	Kind          string       `json:"kind" validate:"oneof=generate analyze"`
	Goal          string       `json:"goal"`
	IndustryLabel string       `json:"industry_label"`
	SourceText    string       `json:"source_text,omitempty"`
	Document      *DocumentRef `json:"document,omitempty"`
	// NewSession discards the user's current cards before the job runs.
	NewSession bool `json:"new_session"`
}

type GenerateResult struct {
	SessionID      string         `json:"session_id"`
	Added          int            `json:"added_count"`
	Duplicates     int            `json:"duplicate_count"`
	Fallback       bool           `json:"fallback"`
	FallbackReason string         `json:"fallback_reason,omitempty"`
	Total          int            `json:"total"`
	CategoryCounts map[string]int `json:"category_counts"`
}

type JobUpdate struct {
	JobID     uuid.UUID `json:"job_id"`
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	Result    any       `json:"result,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
