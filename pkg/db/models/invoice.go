package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/medicart/pos-backend/pkg/enums"
)

// Invoice is an immutable record of a finalized sale.
type Invoice struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	InvoiceNumber string              `gorm:"column:invoice_number;not null;uniqueIndex:idx_invoices_number"`
	Year          int                 `gorm:"column:year;not null"`
	Seq           int64               `gorm:"column:seq;not null"`
	Subtotal      decimal.Decimal     `gorm:"column:subtotal;type:numeric(12,2);not null"`
	Tax           decimal.Decimal     `gorm:"column:tax;type:numeric(12,2);not null"`
	Discount      decimal.Decimal     `gorm:"column:discount;type:numeric(12,2);not null"`
	Total         decimal.Decimal     `gorm:"column:total;type:numeric(12,2);not null"`
	PaymentMethod enums.PaymentMethod `gorm:"column:payment_method;not null"`
	PaymentStatus enums.PaymentStatus `gorm:"column:payment_status;not null;default:'paid'"`
	CustomerName  *string             `gorm:"column:customer_name"`
	CustomerPhone *string             `gorm:"column:customer_phone"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`

	Lines []InvoiceLine `gorm:"foreignKey:InvoiceID;references:ID"`
}
