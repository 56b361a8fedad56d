package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceLine captures the per-item snapshot of a finalized sale. Name and
// unit price are copied at finalize time so later catalog edits cannot
// rewrite history.
type InvoiceLine struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	InvoiceID uuid.UUID       `gorm:"column:invoice_id;type:uuid;not null;index"`
	ItemID    uuid.UUID       `gorm:"column:item_id;type:uuid;not null"`
	ItemName  string          `gorm:"column:item_name;not null"`
	Quantity  int             `gorm:"column:quantity;not null"`
	UnitPrice decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	LineTotal decimal.Decimal `gorm:"column:line_total;type:numeric(12,2);not null"`
	Position  int             `gorm:"column:position;not null"`
}
