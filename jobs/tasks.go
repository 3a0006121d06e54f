package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-pos/meridian/internal/history"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskIdempotencyCleanup prunes expired idempotency keys.
	TaskIdempotencyCleanup = "idempotency:cleanup"
	// TaskHistoryWarmup pre-builds the first history page per store.
	TaskHistoryWarmup = "history:warmup"
)

// IdempotencyCleanupPayload carries the retention window.
type IdempotencyCleanupPayload struct {
	Retention time.Duration `json:"retention"`
}

// NewIdempotencyCleanupTask constructs an Asynq task.
func NewIdempotencyCleanupTask(retention time.Duration) (*asynq.Task, error) {
	body, err := json.Marshal(IdempotencyCleanupPayload{Retention: retention})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, body, asynq.Queue(QueueDefault)), nil
}

// NewIdempotencyCleanupHandler deletes idempotency keys older than the
// retention window. Keys past retention can no longer collide with a retry
// worth deduplicating.
func NewIdempotencyCleanupHandler(pool *pgxpool.Pool, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload IdempotencyCleanupPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		if payload.Retention <= 0 {
			payload.Retention = 24 * time.Hour
		}
		cutoff := time.Now().UTC().Add(-payload.Retention)
		tag, err := pool.Exec(ctx, `DELETE FROM idempotency_keys WHERE created_at < $1`, cutoff)
		if err != nil {
			return err
		}
		logger.Info("idempotency cleanup", slog.Int64("deleted", tag.RowsAffected()))
		return nil
	}
}

// HistoryWarmupPayload lists the stores to warm.
type HistoryWarmupPayload struct {
	StoreIDs []int64 `json:"store_ids"`
}

// NewHistoryWarmupTask constructs an Asynq task.
func NewHistoryWarmupTask(storeIDs []int64) (*asynq.Task, error) {
	body, err := json.Marshal(HistoryWarmupPayload{StoreIDs: storeIDs})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskHistoryWarmup, body, asynq.Queue(QueueDefault)), nil
}

// NewHistoryWarmupHandler primes the cached first page per store so the
// morning rush hits warm entries.
func NewHistoryWarmupHandler(svc *history.Service, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload HistoryWarmupPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		for _, storeID := range payload.StoreIDs {
			if _, err := svc.List(ctx, history.Filter{StoreID: storeID}); err != nil {
				logger.Warn("history warmup", slog.Int64("store_id", storeID), slog.Any("error", err))
			}
		}
		return nil
	}
}
