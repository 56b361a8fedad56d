package stock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/medicart/pos-backend/pkg/db/models"
	pkgerrors "github.com/medicart/pos-backend/pkg/errors"
)

// ShortfallDetails describes why a decrement was refused.
type ShortfallDetails struct {
	ItemID    uuid.UUID `json:"itemId"`
	Requested int       `json:"requested"`
	Available int       `json:"available"`
}

// Repository is the only writer of quantity_on_hand.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// ConditionalDecrement atomically subtracts amount when enough stock is on
// hand. The quantity predicate is evaluated by the storage engine, so two
// concurrent callers can never both take the last unit.
func (r *Repository) ConditionalDecrement(ctx context.Context, itemID uuid.UUID, amount int) (*models.StockRecord, error) {
	if amount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "decrement amount must be positive")
	}

	res := r.db.WithContext(ctx).Exec(
		`UPDATE stock_records
		 SET quantity_on_hand = quantity_on_hand - ?, updated_at = CURRENT_TIMESTAMP
		 WHERE item_id = ? AND quantity_on_hand >= ?`,
		amount, itemID, amount,
	)
	if res.Error != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "decrementing stock")
	}

	if res.RowsAffected == 0 {
		record, err := r.Find(ctx, itemID)
		if err != nil {
			if pkgerrors.HasCode(err, pkgerrors.CodeNoStockRecord) {
				return nil, err
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "inspecting stock after refused decrement")
		}
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").
			WithDetails(ShortfallDetails{
				ItemID:    itemID,
				Requested: amount,
				Available: record.QuantityOnHand,
			})
	}

	return r.Find(ctx, itemID)
}

// Increment unconditionally adds amount back to the record. Compensating
// rollbacks and restocks both land here; only restocks stamp
// last_restocked_at.
func (r *Repository) Increment(ctx context.Context, itemID uuid.UUID, amount int, restock bool) (*models.StockRecord, error) {
	if amount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "increment amount must be positive")
	}

	query := `UPDATE stock_records
	 SET quantity_on_hand = quantity_on_hand + ?, updated_at = CURRENT_TIMESTAMP
	 WHERE item_id = ?`
	if restock {
		query = `UPDATE stock_records
	 SET quantity_on_hand = quantity_on_hand + ?, last_restocked_at = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP
	 WHERE item_id = ?`
	}

	res := r.db.WithContext(ctx).Exec(query, amount, itemID)
	if res.Error != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "incrementing stock")
	}
	if res.RowsAffected == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNoStockRecord, "item has no stock record").
			WithDetails(map[string]any{"itemId": itemID})
	}

	return r.Find(ctx, itemID)
}

// Find loads the stock record for an item.
func (r *Repository) Find(ctx context.Context, itemID uuid.UUID) (*models.StockRecord, error) {
	var record models.StockRecord
	if err := r.db.WithContext(ctx).First(&record, "item_id = ?", itemID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNoStockRecord, "item has no stock record").
				WithDetails(map[string]any{"itemId": itemID})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading stock record")
	}
	return &record, nil
}

// Upsert creates or replaces the administrative fields of a stock record.
func (r *Repository) Upsert(ctx context.Context, record *models.StockRecord) (*models.StockRecord, error) {
	record.UpdatedAt = time.Now().UTC()
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "item_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"quantity_on_hand", "reorder_threshold", "expires_at", "updated_at",
			}),
		}).
		Create(record).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "upserting stock record")
	}
	return r.Find(ctx, record.ItemID)
}

// ListAtOrBelowThreshold returns records that need reordering.
func (r *Repository) ListAtOrBelowThreshold(ctx context.Context) ([]models.StockRecord, error) {
	var records []models.StockRecord
	if err := r.db.WithContext(ctx).
		Where("quantity_on_hand <= reorder_threshold").
		Order("quantity_on_hand ASC").
		Find(&records).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing low stock records")
	}
	return records, nil
}
