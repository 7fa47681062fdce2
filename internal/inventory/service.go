package inventory

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/odyssey-erp/odyssey-commerce/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	GetLevel(ctx context.Context, variantID int64) (Level, error)
	Upsert(ctx context.Context, variantID int64, quantity int, location *string) (Level, error)
	LowStock(ctx context.Context, threshold, limit int) ([]LowStockItem, error)
}

// CachePort abstracts the read-through cache for stock levels.
type CachePort interface {
	FetchJSON(ctx context.Context, key string, dest any, loader func(context.Context) (any, error)) error
	Delete(ctx context.Context, keys ...string) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates inventory reads and admin corrections.
type Service struct {
	repo  RepositoryPort
	cache  CachePort
	audit  AuditPort
	logger *slog.Logger
}

// NewService builds Service. cache and audit may be nil.
func NewService(repo RepositoryPort, cache CachePort, audit AuditPort) *Service {
	return &Service{repo: repo, cache: cache, audit: audit, logger: slog.Default()}
}

// WithLogger sets the logger for failures that do not fail the request.
func (s *Service) WithLogger(logger *slog.Logger) *Service {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// GetLevel returns the stock of a variant; Available is Quantity > 0.
func (s *Service) GetLevel(ctx context.Context, variantID int64) (Level, error) {
	if variantID <= 0 {
		return Level{}, shared.NewValidationError("variant_id", "must be positive")
	}
	if s.cache == nil {
		return s.repo.GetLevel(ctx, variantID)
	}
	var lvl Level
	err := s.cache.FetchJSON(ctx, shared.InventoryLevelKey(variantID), &lvl, func(ctx context.Context) (any, error) {
		return s.repo.GetLevel(ctx, variantID)
	})
	if err != nil {
		return Level{}, err
	}
	return lvl, nil
}

// Adjust overwrites the quantity of a variant, creating the inventory row
// when missing.
func (s *Service) Adjust(ctx context.Context, actor shared.Identity, variantID int64, in AdjustInput) (Level, error) {
	if variantID <= 0 {
		return Level{}, shared.NewValidationError("variant_id", "must be positive")
	}
	if in.Quantity == nil {
		return Level{}, shared.NewValidationError("quantity", "is required")
	}
	if *in.Quantity < 0 {
		return Level{}, shared.NewValidationError("quantity", "must be at least 0")
	}
	lvl, err := s.repo.Upsert(ctx, variantID, *in.Quantity, in.Location)
	if err != nil {
		return Level{}, err
	}
	logger := s.logger.With(slog.Int64("variant_id", variantID), slog.Int64("user_id", actor.UserID))
	if err := s.Invalidate(ctx, variantID); err != nil {
		logger.Warn("inventory cache invalidation", slog.Any("error", err))
	}
	if s.audit != nil {
		meta := map[string]any{"quantity": lvl.Quantity, "sku": lvl.SKU}
		if in.Location != nil {
			meta["location"] = *in.Location
		}
		err := s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actor.UserID,
			Action:   "inventory.adjusted",
			Entity:   shared.AuditEntityInventory,
			EntityID: strconv.FormatInt(variantID, 10),
			Meta:     meta,
		})
		if err != nil {
			logger.Error("inventory audit", slog.Any("error", err))
		}
	}
	return lvl, nil
}

// LowStock lists variants at or below threshold.
func (s *Service) LowStock(ctx context.Context, threshold, limit int) ([]LowStockItem, error) {
	if threshold < 0 {
		return nil, shared.NewValidationError("threshold", "must be at least 0")
	}
	return s.repo.LowStock(ctx, threshold, limit)
}

// Invalidate drops cached levels after stock changed elsewhere.
func (s *Service) Invalidate(ctx context.Context, variantIDs ...int64) error {
	if s.cache == nil || len(variantIDs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(variantIDs))
	for _, id := range variantIDs {
		keys = append(keys, shared.InventoryLevelKey(id))
	}
	return s.cache.Delete(ctx, keys...)
}
