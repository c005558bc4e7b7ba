package services

import (
	"context"
	"errors"
	"time"

	"github.com/carsi-commerce/api/internal/repositories"
)

const defaultSweepBatchSize = 50

var (
	errSweeperRepositoryRequired = errors.New("promotion sweeper: product repository is required")
	errSweeperClockRequired      = errors.New("promotion sweeper: clock is required")
)

// PromotionSweeper clears lapsed discount and flash-sale windows so reads never
// have to special-case stale promotion flags for long.
type PromotionSweeper struct {
	products  repositories.ProductRepository
	now       func() time.Time
	batchSize int
	logger    func(context.Context, string, map[string]any)
}

// PromotionSweeperDeps wires the catalog repository for the sweep loop.
type PromotionSweeperDeps struct {
	Products  repositories.ProductRepository
	Clock     func() time.Time
	BatchSize int
	Logger    func(context.Context, string, map[string]any)
}

// NewPromotionSweeper constructs a PromotionSweeper enforcing dependency validation.
func NewPromotionSweeper(deps PromotionSweeperDeps) (*PromotionSweeper, error) {
	if deps.Products == nil {
		return nil, errSweeperRepositoryRequired
	}
	if deps.Clock == nil {
		return nil, errSweeperClockRequired
	}

	batch := deps.BatchSize
	if batch <= 0 {
		batch = defaultSweepBatchSize
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &PromotionSweeper{
		products:  deps.Products,
		now:       func() time.Time { return deps.Clock().UTC() },
		batchSize: batch,
		logger:    logger,
	}, nil
}

// Sweep clears one batch of expired promotions and returns how many products
// were cleaned. A failure on one product does not stop the rest of the batch.
func (s *PromotionSweeper) Sweep(ctx context.Context) (int, error) {
	if s == nil || s.products == nil {
		return 0, errSweeperRepositoryRequired
	}

	now := s.now()
	expired, err := s.products.ListExpiredPromotions(ctx, now, s.batchSize)
	if err != nil {
		return 0, err
	}
	if len(expired) == 0 {
		return 0, nil
	}

	cleared := 0
	for _, product := range expired {
		if ctx.Err() != nil {
			return cleared, ctx.Err()
		}
		if _, err := s.products.ClearExpiredPromotions(ctx, product.ID, now); err != nil {
			// A racing update can clear or extend the window first. Log and
			// keep going, the next pass picks up anything still stale.
			s.logger(ctx, "promotions.sweep_item_failed", map[string]any{
				"productID": product.ID,
				"error":     err.Error(),
			})
			continue
		}
		cleared++
	}

	if cleared > 0 {
		s.logger(ctx, "promotions.swept", map[string]any{
			"cleared": cleared,
			"scanned": len(expired),
		})
	}
	return cleared, nil
}

// Run sweeps on every tick until the context is cancelled.
func (s *PromotionSweeper) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.logger(ctx, "promotions.sweep_failed", map[string]any{"error": err.Error()})
			}
		}
	}
}
