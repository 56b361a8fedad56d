package models

import (
	"time"

	"github.com/google/uuid"
)

// StockRecord tracks on-hand quantity per catalog item. quantity_on_hand is
// only ever mutated through the stock repository.
type StockRecord struct {
	ItemID           uuid.UUID  `gorm:"column:item_id;type:uuid;primaryKey"`
	QuantityOnHand   int        `gorm:"column:quantity_on_hand;not null;default:0"`
	ReorderThreshold int        `gorm:"column:reorder_threshold;not null;default:0"`
	ExpiresAt        *time.Time `gorm:"column:expires_at"`
	LastRestockedAt  *time.Time `gorm:"column:last_restocked_at"`
	UpdatedAt        time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// NeedsReorder reports whether on-hand stock has fallen to or below the
// reorder threshold.
func (s StockRecord) NeedsReorder() bool {
	return s.QuantityOnHand <= s.ReorderThreshold
}

// Expired reports whether the batch expiry has passed at the given instant.
// Records without an expiry never expire.
func (s StockRecord) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && !s.ExpiresAt.After(now)
}
