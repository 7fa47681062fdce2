package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/odyssey-commerce/internal/jobs"
)

const (
	jobIdempotencyCleanup       = "idempotency_cleanup"
	defaultIdempotencyRetention = 72 * time.Hour
)

// IdempotencyPruner deletes idempotency keys older than a retention window.
type IdempotencyPruner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) (int64, error)
}

// IdempotencyCleanupJob keeps the idempotency_keys table bounded.
type IdempotencyCleanupJob struct {
	Store     IdempotencyPruner
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	Retention time.Duration
}

// NewIdempotencyCleanupJob wires dependencies for the cleanup handler.
func NewIdempotencyCleanupJob(store IdempotencyPruner, logger *slog.Logger, metrics *jobmetrics.Metrics, retention time.Duration) *IdempotencyCleanupJob {
	return &IdempotencyCleanupJob{Store: store, Logger: logger, Metrics: metrics, Retention: retention}
}

// Handle executes TaskIdempotencyCleanup tasks.
func (j *IdempotencyCleanupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Store == nil {
		return errors.New("idempotency cleanup: handler not configured")
	}
	var payload IdempotencyCleanupPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("idempotency cleanup: decode payload: %w", asynq.SkipRetry)
		}
	}
	_, err := j.Prune(ctx, payload)
	return err
}

// Prune removes expired keys and reports how many were deleted.
func (j *IdempotencyCleanupJob) Prune(ctx context.Context, payload IdempotencyCleanupPayload) (int64, error) {
	retention := time.Duration(payload.RetentionHours) * time.Hour
	if retention <= 0 {
		retention = j.Retention
	}
	if retention <= 0 {
		retention = defaultIdempotencyRetention
	}

	tracker := j.Metrics.Track(jobIdempotencyCleanup)
	deleted, err := j.Store.Cleanup(ctx, retention)
	err = tracker.End(err)

	logger := j.logger().With(slog.Duration("retention", retention))
	if err != nil {
		logger.Error("idempotency cleanup", slog.Any("error", err))
		return 0, err
	}
	logger.Info("pruned idempotency keys", slog.Int64("deleted", deleted))
	return deleted, nil
}

func (j *IdempotencyCleanupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
