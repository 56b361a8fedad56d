// Package availability answers "could this line sell right now?" from
// point-in-time snapshots. It never mutates stock, so its verdicts can be
// stale by the time a sale is finalized; the finalize path re-arbitrates
// against the ledger.
package availability

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/medicart/pos-backend/internal/catalog"
	"github.com/medicart/pos-backend/pkg/db/models"
)

// Reason classifies a line verdict.
type Reason string

const (
	ReasonOK                Reason = "ok"
	ReasonInvalidQuantity   Reason = "invalid_quantity"
	ReasonItemNotFound      Reason = "item_not_found"
	ReasonItemInactive      Reason = "item_inactive"
	ReasonNoStockRecord     Reason = "no_stock_record"
	ReasonExpired           Reason = "expired"
	ReasonInsufficientStock Reason = "insufficient_stock"
)

// LineVerdict is the per-line result of an availability check.
type LineVerdict struct {
	ItemID         uuid.UUID
	ItemName       string
	Quantity       int
	Valid          bool
	Reason         Reason
	Message        string
	Available      int
	UnitPrice      decimal.Decimal
	LineTotal      decimal.Decimal
	StockAfterSale int
}

// CheckLine evaluates one requested line against catalog and stock
// snapshots. item and rec may be nil when the respective lookup found
// nothing. Checks run in a fixed order and stop at the first failure.
func CheckLine(itemID uuid.UUID, item *catalog.ItemDTO, rec *models.StockRecord, qty int, now time.Time) LineVerdict {
	verdict := LineVerdict{ItemID: itemID, Quantity: qty}

	if qty <= 0 {
		verdict.Reason = ReasonInvalidQuantity
		verdict.Message = "quantity must be positive"
		return verdict
	}
	if item == nil {
		verdict.Reason = ReasonItemNotFound
		verdict.Message = "item not found"
		return verdict
	}
	verdict.ItemName = item.Name
	if !item.Active {
		verdict.Reason = ReasonItemInactive
		verdict.Message = "item is inactive"
		return verdict
	}
	if rec == nil {
		verdict.Reason = ReasonNoStockRecord
		verdict.Message = "item has no stock record"
		return verdict
	}
	verdict.Available = rec.QuantityOnHand
	if rec.Expired(now) {
		verdict.Reason = ReasonExpired
		verdict.Message = "stock is expired"
		return verdict
	}
	if rec.QuantityOnHand < qty {
		verdict.Reason = ReasonInsufficientStock
		verdict.Message = fmt.Sprintf("requested %d but only %d available", qty, rec.QuantityOnHand)
		return verdict
	}

	verdict.Valid = true
	verdict.Reason = ReasonOK
	verdict.UnitPrice = item.UnitPrice
	verdict.LineTotal = item.UnitPrice.Mul(decimal.NewFromInt(int64(qty)))
	verdict.StockAfterSale = rec.QuantityOnHand - qty
	return verdict
}
