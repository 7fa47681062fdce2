package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	jobmetrics "github.com/odyssey-erp/odyssey-commerce/internal/jobs"
	"github.com/odyssey-erp/odyssey-commerce/internal/orders"
)

// jobOrderPlaced is the metrics label of the confirmation job.
const jobOrderPlaced = "order_placed"

const notificationsKept = 50

// NotificationsKey is the redis list holding a user's latest order notices.
func NotificationsKey(userID int64) string {
	return fmt.Sprintf("notifications:user:%d", userID)
}

// NewOrderPlacedPayload copies the fields the confirmation needs out of a
// committed order.
func NewOrderPlacedPayload(o orders.Order) OrderPlacedPayload {
	p := OrderPlacedPayload{
		OrderID:  o.ID,
		UserID:   o.UserID,
		Total:    o.TotalAmount.StringFixed(2),
		Currency: o.Currency,
		PlacedAt: o.CreatedAt,
		Items:    make([]OrderPlacedItem, 0, len(o.Items)),
	}
	for _, it := range o.Items {
		p.Items = append(p.Items, OrderPlacedItem{SKU: it.SKU, Quantity: it.Quantity, Price: it.Price.StringFixed(2)})
	}
	return p
}

// OrderPlacedJob renders the order confirmation and stores it in the user's
// notification list.
type OrderPlacedJob struct {
	Redis   *redis.Client
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	Lang    language.Tag
}

// NewOrderPlacedJob wires dependencies for the confirmation handler.
func NewOrderPlacedJob(client *redis.Client, logger *slog.Logger, metrics *jobmetrics.Metrics) *OrderPlacedJob {
	return &OrderPlacedJob{Redis: client, Logger: logger, Metrics: metrics, Lang: language.English}
}

// Handle processes TaskOrderPlaced tasks.
func (j *OrderPlacedJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("order placed: handler not configured")
	}
	var payload OrderPlacedPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("order placed: decode payload: %w", asynq.SkipRetry)
	}
	if payload.OrderID <= 0 {
		return fmt.Errorf("order placed: missing order id: %w", asynq.SkipRetry)
	}

	tracker := j.Metrics.Track(jobOrderPlaced)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.Int64("order_id", payload.OrderID), slog.Int64("user_id", payload.UserID))
	text, err := j.Render(payload)
	if err != nil {
		resultErr = fmt.Errorf("order placed: %w", asynq.SkipRetry)
		logger.Error("render confirmation", slog.Any("error", err))
		return resultErr
	}

	if j.Redis != nil {
		key := NotificationsKey(payload.UserID)
		pipe := j.Redis.TxPipeline()
		pipe.LPush(ctx, key, text)
		pipe.LTrim(ctx, key, 0, notificationsKept-1)
		if _, err := pipe.Exec(ctx); err != nil {
			resultErr = err
			logger.Error("store confirmation", slog.Any("error", err))
			return resultErr
		}
	}
	logger.Info("order confirmation sent", slog.String("total", payload.Total), slog.Int("items", len(payload.Items)))
	return resultErr
}

// Render formats the confirmation message with locale-aware amounts.
func (j *OrderPlacedJob) Render(p OrderPlacedPayload) (string, error) {
	printer := message.NewPrinter(j.Lang)
	total, err := decimal.NewFromString(p.Total)
	if err != nil {
		return "", fmt.Errorf("total %q: %w", p.Total, err)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Order #%d confirmed", p.OrderID)
	if !p.PlacedAt.IsZero() {
		b.WriteString(" on " + p.PlacedAt.UTC().Format(time.DateOnly))
	}
	b.WriteString("\n")
	for _, it := range p.Items {
		price, err := decimal.NewFromString(it.Price)
		if err != nil {
			return "", fmt.Errorf("item %s price %q: %w", it.SKU, it.Price, err)
		}
		b.WriteString(printer.Sprintf("%s x%d @ %s %v\n", it.SKU, it.Quantity, p.Currency, money(price)))
	}
	b.WriteString(printer.Sprintf("Total: %s %v", p.Currency, money(total)))
	return b.String(), nil
}

func money(d decimal.Decimal) number.Formatter {
	return number.Decimal(d.InexactFloat64(), number.Scale(2))
}

func (j *OrderPlacedJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
