package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/muhammadolammi/careercards/internal/database"
	"github.com/muhammadolammi/careercards/internal/entity"
	"github.com/muhammadolammi/careercards/internal/pipeline"
	"github.com/muhammadolammi/careercards/internal/session"
	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

var jobValidator = validator.New(validator.WithRequiredStructEnabled())

// retry retries a function up to `attempts` times, waiting a little longer
// after each failure. It stops early when ctx is done.
func retry[T any](ctx context.Context, attempts int, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	for i := 0; i < attempts; i++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err
		if i == attempts-1 {
			break
		}
		wait := time.Duration(500*(i+1)) * time.Millisecond
		select {
		case <-ctx.Done():
			return zero, fmt.Errorf("after %d attempts: %w", i+1, ctx.Err())
		case <-time.After(wait):
		}
	}
	return zero, fmt.Errorf("after %d attempts: %w", attempts, lastErr)
}

func decodeJob(body []byte) (Job, error) {
	var job Job
	if err := json.Unmarshal(body, &job); err != nil {
		return job, fmt.Errorf("error unmarshalling job: %w", err)
	}
	if err := jobValidator.Struct(job); err != nil {
		return job, fmt.Errorf("invalid job: %w", err)
	}
	return job, nil
}

func (workerConfig *WorkerConfig) userStore(userID string) *session.Store {
	return session.New(workerConfig.SessionPort,
		session.ForUser(userID),
		session.WithLogger(workerConfig.Logger.Named("session")),
		session.WithMetrics(workerConfig.Metrics),
	)
}

// planSession returns the user's store and whether the job needs a new
// session: when the job asks for one, when none is active, or when the goal or
// industry changed. Blank job fields inherit the active session's values.
// Nothing is written here; the session only changes once the job's cards are
// ready.
func (workerConfig *WorkerConfig) planSession(ctx context.Context, job *Job) (*session.Store, bool, error) {
	store := workerConfig.userStore(job.UserID)
	if !job.NewSession {
		current, err := store.Current(ctx)
		switch {
		case err == nil:
			if strings.TrimSpace(job.Goal) == "" {
				job.Goal = current.Goal
			}
			if strings.TrimSpace(job.IndustryLabel) == "" {
				job.IndustryLabel = current.IndustryLabel
			}
			if entity.Normalize(job.Goal) == entity.Normalize(current.Goal) &&
				entity.Normalize(job.IndustryLabel) == entity.Normalize(current.IndustryLabel) {
				return store, false, nil
			}
		case errors.Is(err, session.ErrPersistence):
			return nil, false, err
		}
	}
	if strings.TrimSpace(job.Goal) == "" || strings.TrimSpace(job.IndustryLabel) == "" {
		return nil, false, fmt.Errorf("%w: goal and industry label are required", session.ErrSessionValidation)
	}
	return store, true, nil
}

// sourceText resolves the material cards are derived from and the source kind
// they are stored under.
func (workerConfig *WorkerConfig) sourceText(ctx context.Context, job Job) (string, entity.SourceKind, error) {
	switch {
	case job.Document != nil:
		if workerConfig.R2 == nil || workerConfig.AwsConfig == nil {
			return "", "", errors.New("document jobs need r2 configuration")
		}
		client := newR2Client(*workerConfig.AwsConfig, workerConfig.R2.AccountID)

		// ✅ Retry downloading file (network failures are transient)
		fileBytes, err := retry(ctx, 3, func() ([]byte, error) {
			return DownloadFromR2(ctx, client, workerConfig.R2.Bucket, job.Document.ObjectKey)
		})
		if err != nil {
			return "", "", fmt.Errorf("file download error: %w", err)
		}
		text, err := ExtractDocumentText(job.Document.Mime, fileBytes)
		if err != nil {
			return "", "", fmt.Errorf("text extraction error: %w", err)
		}
		if strings.TrimSpace(text) == "" {
			return "", "", fmt.Errorf("no text found in %s", job.Document.ObjectKey)
		}
		return text, entity.SourceUploadedDocument, nil

	case strings.TrimSpace(job.SourceText) != "":
		return job.SourceText, entity.SourceUserInput, nil
	}
	return "", entity.SourceGenerated, nil
}

func (workerConfig *WorkerConfig) runGenerate(ctx context.Context, job Job) (GenerateResult, error) {
	store, startNew, err := workerConfig.planSession(ctx, &job)
	if err != nil {
		return GenerateResult{}, err
	}
	text, source, err := workerConfig.sourceText(ctx, job)
	if err != nil {
		return GenerateResult{}, err
	}

	batch, err := workerConfig.Service.GenerateEntities(ctx, pipeline.GenerateRequest{
		Goal:          job.Goal,
		IndustryLabel: job.IndustryLabel,
		SourceText:    text,
	})
	if err != nil {
		return GenerateResult{}, err
	}
	if batch.Fallback {
		source = entity.SourceGenerated
	}

	if startNew {
		if _, err := store.StartSession(ctx, job.Goal, job.IndustryLabel); err != nil {
			return GenerateResult{}, err
		}
	}
	added, err := store.AddEntities(ctx, batch.Entities, source)
	if err != nil {
		return GenerateResult{}, err
	}
	current, err := store.Current(ctx)
	if err != nil {
		return GenerateResult{}, err
	}

	result := GenerateResult{
		SessionID:      current.SessionID,
		Added:          added.Added,
		Duplicates:     added.Duplicates,
		Fallback:       batch.Fallback,
		FallbackReason: batch.Reason,
		Total:          len(current.Entities),
		CategoryCounts: make(map[string]int, len(entity.Categories)),
	}
	for category, view := range session.Categorize(current.Entities) {
		result.CategoryCounts[string(category)] = view.Count()
	}
	return result, nil
}

func (workerConfig *WorkerConfig) runAnalyze(ctx context.Context, job Job) (pipeline.ProfileReport, error) {
	current, err := workerConfig.userStore(job.UserID).Current(ctx)
	if err != nil {
		return pipeline.ProfileReport{}, fmt.Errorf("no session to analyze: %w", err)
	}
	goal, industry := job.Goal, job.IndustryLabel
	if strings.TrimSpace(goal) == "" {
		goal = current.Goal
	}
	if strings.TrimSpace(industry) == "" {
		industry = current.IndustryLabel
	}
	return workerConfig.Service.AnalyzeProfile(ctx, goal, industry, current.Entities)
}

func (workerConfig *WorkerConfig) handleJob(ctx context.Context, job Job) (any, error) {
	unlock := workerConfig.userLocks.lock(job.UserID)
	defer unlock()

	switch job.Kind {
	case JobKindGenerate:
		return workerConfig.runGenerate(ctx, job)
	case JobKindAnalyze:
		return workerConfig.runAnalyze(ctx, job)
	}
	return nil, fmt.Errorf("unknown job kind %q", job.Kind)
}

// handleDelivery runs one queue message to completion and reports its status.
func (workerConfig *WorkerConfig) handleDelivery(ctx context.Context, workerID int, body []byte) {
	job, err := decodeJob(body)
	if err != nil {
		workerConfig.Logger.Error("rejected job message", zap.Int("worker", workerID), zap.Error(err))
		workerConfig.Metrics.Job("invalid", "failed")
		if job.JobID != uuid.Nil {
			workerConfig.report(ctx, job, "failed", "invalid job", nil)
		}
		return
	}

	logger := workerConfig.Logger.With(
		zap.Int("worker", workerID),
		zap.String("job_id", job.JobID.String()),
		zap.String("user_id", job.UserID),
		zap.String("kind", job.Kind))
	logger.Info("processing job")
	workerConfig.report(ctx, job, "processing", job.Kind+" started", nil)

	result, err := workerConfig.handleJob(ctx, job)
	if err != nil {
		logger.Error("job failed", zap.Error(err))
		workerConfig.Metrics.Job(job.Kind, "failed")
		workerConfig.report(ctx, job, "failed", job.Kind+" failed: "+err.Error(), nil)
		return
	}
	logger.Info("job completed")
	workerConfig.Metrics.Job(job.Kind, "completed")
	workerConfig.report(ctx, job, "completed", job.Kind+" completed", result)
}

// report records the job status in the database, when one is configured, and
// publishes it on the update exchange. Failures are logged, not returned.
func (workerConfig *WorkerConfig) report(ctx context.Context, job Job, status, message string, result any) {
	// Status must still be written while the worker shuts down.
	ctx = context.WithoutCancel(ctx)

	if workerConfig.DB != nil {
		_, err := retry(ctx, 3, func() (any, error) {
			if status == "failed" {
				return nil, workerConfig.DB.UpdateJobStatus(ctx, database.UpdateJobStatusParams{
					Status: status,
					JobID:  job.JobID,
				})
			}
			payload, err := json.Marshal(result)
			if err != nil {
				return nil, err
			}
			return nil, workerConfig.DB.CreateOrUpdateJobResult(ctx, database.CreateOrUpdateJobResultParams{
				JobID:  job.JobID,
				UserID: job.UserID,
				Kind:   job.Kind,
				Status: status,
				Result: payload,
			})
		})
		if err != nil {
			workerConfig.Logger.Error("failed to record job status",
				zap.String("job_id", job.JobID.String()), zap.String("status", status), zap.Error(err))
		}
	}

	if workerConfig.RabbitConn == nil {
		return
	}
	err := publishJobUpdate(workerConfig.RabbitConn, JobUpdate{
		JobID:     job.JobID,
		Status:    status,
		Message:   message,
		Result:    result,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		workerConfig.Logger.Warn("failed to publish update", zap.String("job_id", job.JobID.String()), zap.Error(err))
	}
}

// userLocks hands out one mutex per user id. Entries are dropped once no job
// holds or waits on them.
type userLocks struct {
	mu    sync.Mutex
	locks map[string]*userLock
}

type userLock struct {
	sync.Mutex
	refs int
}

func (l *userLocks) lock(userID string) (unlock func()) {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*userLock)
	}
	ul, ok := l.locks[userID]
	if !ok {
		ul = &userLock{}
		l.locks[userID] = ul
	}
	ul.refs++
	l.mu.Unlock()

	ul.Lock()
	return func() {
		ul.Unlock()
		l.mu.Lock()
		ul.refs--
		if ul.refs == 0 {
			delete(l.locks, userID)
		}
		l.mu.Unlock()
	}
}

func worker(ctx context.Context, id int, workerConfig *WorkerConfig, wg *sync.WaitGroup) {
	defer wg.Done()
	logger := workerConfig.Logger.With(zap.Int("worker", id))

	//    to consume message on the queue
	conn, err := amqp.Dial(workerConfig.RABBITMQUrl)
	if err != nil {
		logger.Fatal("error dialling rabbitmq", zap.Error(err))
	}
	defer conn.Close()
	// Closing the connection closes msgs, which ends the loop below.
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal("error connecting to rabbitmq channel", zap.Error(err))
	}
	defer ch.Close()
	_, err = ch.QueueDeclare(
		jobQueue, // queue name
		true,     // durable (survives broker restarts)
		false,    // auto-delete when unused
		false,    // exclusive
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		logger.Fatal("failed to declare queue", zap.Error(err))
	}

	msgs, err := ch.Consume(
		jobQueue, // queue name
		"",       // consumer tag
		true,     // auto-ack
		false,    // exclusive
		false,    // no-local
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		logger.Fatal("error consuming rabbitmq message", zap.Error(err))
	}

	for msg := range msgs {
		workerConfig.handleDelivery(ctx, id, msg.Body)
	}
	logger.Info("worker stopped")
}

// StartConsumerWorkerPool runs numWorkers consumers on the job queue and blocks
// until ctx is done. Jobs for the same user are serialized within this
// process; separate worker processes sharing a session backend can still
// interleave writes to the same session record.
func (workerConfig *WorkerConfig) StartConsumerWorkerPool(ctx context.Context, numWorkers int) {
	var wg sync.WaitGroup
	wg.Add(numWorkers)

	for i := range numWorkers {
		workerConfig.Logger.Info("worker started", zap.Int("worker", i+1))
		go worker(ctx, i+1, workerConfig, &wg)
	}
	wg.Wait() // block until all workers finish
}
