package cron

import (
	"context"
	"fmt"

	"github.com/medicart/pos-backend/internal/stock"
	"github.com/medicart/pos-backend/pkg/logger"
)

// LowStockJobParams configure the reorder sweep.
type LowStockJobParams struct {
	Logger *logger.Logger
	Stock  reorderLister
}

type reorderLister interface {
	ListReorderCandidates(ctx context.Context) ([]stock.Snapshot, error)
}

// LowStockJob sweeps the stock ledger for records at or below their reorder
// threshold and logs a reorder report.
type LowStockJob struct {
	logg  *logger.Logger
	stock reorderLister
}

// NewLowStockJob builds the sweep job.
func NewLowStockJob(params LowStockJobParams) (*LowStockJob, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Stock == nil {
		return nil, fmt.Errorf("stock service required")
	}
	return &LowStockJob{logg: params.Logger, stock: params.Stock}, nil
}

// Name implements Job.
func (j *LowStockJob) Name() string { return "low-stock-sweep" }

// Run implements Job.
func (j *LowStockJob) Run(ctx context.Context) error {
	candidates, err := j.stock.ListReorderCandidates(ctx)
	if err != nil {
		return fmt.Errorf("listing reorder candidates: %w", err)
	}
	if len(candidates) == 0 {
		j.logg.Info(ctx, "no items below reorder threshold")
		return nil
	}

	for _, snapshot := range candidates {
		itemCtx := j.logg.WithFields(ctx, map[string]any{
			"item_id":           snapshot.ItemID.String(),
			"quantity_on_hand":  snapshot.QuantityOnHand,
			"reorder_threshold": snapshot.ReorderThreshold,
			"expired":           snapshot.Expired,
		})
		j.logg.Warn(itemCtx, "item needs reordering")
	}

	summaryCtx := j.logg.WithField(ctx, "count", len(candidates))
	j.logg.Info(summaryCtx, "low stock sweep complete")
	return nil
}
