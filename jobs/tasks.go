package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskOrderPlaced sends the confirmation for a committed order.
	TaskOrderPlaced = "order:placed"
	// TaskLowStockScan reports variants at or below the stock threshold.
	TaskLowStockScan = "inventory:low-stock-scan"
	// TaskIdempotencyCleanup prunes expired checkout idempotency keys.
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

// OrderPlacedPayload is a self-contained copy of the committed order so the
// handler never reads back from the database.
type OrderPlacedPayload struct {
	OrderID  int64             `json:"order_id"`
	UserID   int64             `json:"user_id"`
	Total    string            `json:"total"`
	Currency string            `json:"currency"`
	Items    []OrderPlacedItem `json:"items"`
	PlacedAt time.Time         `json:"placed_at"`
}

// OrderPlacedItem is one line of OrderPlacedPayload.
type OrderPlacedItem struct {
	SKU      string `json:"sku"`
	Quantity int    `json:"quantity"`
	Price    string `json:"price"`
}

// NewOrderPlacedTask constructs an Asynq task for a committed order.
func NewOrderPlacedTask(payload OrderPlacedPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOrderPlaced, data, asynq.Queue(QueueDefault), asynq.MaxRetry(10)), nil
}

// LowStockScanPayload tunes a single low-stock scan. Zero values fall back to
// the worker defaults.
type LowStockScanPayload struct {
	Threshold int `json:"threshold"`
	Limit     int `json:"limit"`
}

// NewLowStockScanTask constructs an Asynq task for the low-stock scan.
func NewLowStockScanTask(payload LowStockScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLowStockScan, data, asynq.Queue(QueueDefault), asynq.MaxRetry(1)), nil
}

// IdempotencyCleanupPayload sets how long keys are kept. Zero keeps the
// worker default.
type IdempotencyCleanupPayload struct {
	RetentionHours int `json:"retention_hours"`
}

// NewIdempotencyCleanupTask constructs an Asynq task pruning idempotency keys.
func NewIdempotencyCleanupTask(payload IdempotencyCleanupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, data, asynq.Queue(QueueDefault), asynq.MaxRetry(3)), nil
}
