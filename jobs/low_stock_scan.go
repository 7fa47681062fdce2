package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/odyssey-commerce/internal/inventory"
	jobmetrics "github.com/odyssey-erp/odyssey-commerce/internal/jobs"
	"github.com/odyssey-erp/odyssey-commerce/internal/shared"
)

const (
	jobLowStockScan      = "low_stock_scan"
	defaultLowStockLimit = 200
	defaultAlertTTL      = 24 * time.Hour
)

// LowStockSource lists variants whose stock is at or below a threshold.
type LowStockSource interface {
	LowStock(ctx context.Context, threshold, limit int) ([]inventory.LowStockItem, error)
}

// LowStockScanJob warns about variants running out of stock. Each variant is
// reported at most once per AlertTTL.
type LowStockScanJob struct {
	Inventory LowStockSource
	Redis     *redis.Client
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	Threshold int
	AlertTTL  time.Duration
}

// NewLowStockScanJob wires dependencies for the low-stock handler.
func NewLowStockScanJob(source LowStockSource, client *redis.Client, logger *slog.Logger, metrics *jobmetrics.Metrics, threshold int) *LowStockScanJob {
	return &LowStockScanJob{
		Inventory: source,
		Redis:     client,
		Logger:    logger,
		Metrics:   metrics,
		Threshold: threshold,
		AlertTTL:  defaultAlertTTL,
	}
}

// LowStockReport summarises one scan.
type LowStockReport struct {
	Scanned    int
	Alerted    int
	Suppressed int
}

// Handle executes TaskLowStockScan tasks.
func (j *LowStockScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("low stock scan: handler not configured")
	}
	var payload LowStockScanPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("low stock scan: decode payload: %w", asynq.SkipRetry)
		}
	}
	_, err := j.Scan(ctx, payload)
	return err
}

// Scan runs the scan synchronously. It backs both the cron task and the CLI.
func (j *LowStockScanJob) Scan(ctx context.Context, payload LowStockScanPayload) (LowStockReport, error) {
	if j.Inventory == nil {
		return LowStockReport{}, errors.New("low stock scan: inventory not configured")
	}
	if payload.Threshold <= 0 {
		payload.Threshold = j.Threshold
	}
	if payload.Limit <= 0 {
		payload.Limit = defaultLowStockLimit
	}

	tracker := j.Metrics.Track(jobLowStockScan)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.Int("threshold", payload.Threshold))
	items, err := j.Inventory.LowStock(ctx, payload.Threshold, payload.Limit)
	if err != nil {
		resultErr = err
		logger.Error("low stock query", slog.Any("error", err))
		return LowStockReport{}, resultErr
	}

	report := LowStockReport{Scanned: len(items)}
	for _, item := range items {
		fresh, err := j.claim(ctx, item)
		if err != nil {
			resultErr = err
			logger.Error("low stock dedupe", slog.Int64("variant_id", item.VariantID), slog.Any("error", err))
			return report, resultErr
		}
		if !fresh {
			report.Suppressed++
			continue
		}
		report.Alerted++
		logger.Warn("low stock",
			slog.Int64("variant_id", item.VariantID),
			slog.String("sku", item.SKU),
			slog.Int("quantity", item.Quantity),
		)
	}
	j.Metrics.AddLowStock(true, report.Alerted)
	j.Metrics.AddLowStock(false, report.Suppressed)

	logger.Info("completed low stock scan",
		slog.Int("scanned", report.Scanned),
		slog.Int("alerted", report.Alerted),
		slog.Int("suppressed", report.Suppressed),
	)
	return report, resultErr
}

// claim reports whether this variant has not been alerted within AlertTTL.
// Without redis every scan alerts.
func (j *LowStockScanJob) claim(ctx context.Context, item inventory.LowStockItem) (bool, error) {
	if j.Redis == nil {
		return true, nil
	}
	ttl := j.AlertTTL
	if ttl <= 0 {
		ttl = defaultAlertTTL
	}
	return j.Redis.SetNX(ctx, shared.LowStockAlertKey(item.VariantID), item.Quantity, ttl).Result()
}

func (j *LowStockScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
