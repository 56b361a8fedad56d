package invoices

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/medicart/pos-backend/pkg/db/models"
	"github.com/medicart/pos-backend/pkg/enums"
	pkgerrors "github.com/medicart/pos-backend/pkg/errors"
	"github.com/medicart/pos-backend/pkg/pagination"
)

// InvoiceDTO is the read model for a finalized sale.
type InvoiceDTO struct {
	ID            uuid.UUID           `json:"id"`
	InvoiceNumber string              `json:"invoiceNumber"`
	Subtotal      decimal.Decimal     `json:"subtotal"`
	Tax           decimal.Decimal     `json:"tax"`
	Discount      decimal.Decimal     `json:"discount"`
	Total         decimal.Decimal     `json:"total"`
	PaymentMethod enums.PaymentMethod `json:"paymentMethod"`
	PaymentStatus enums.PaymentStatus `json:"paymentStatus"`
	CustomerName  *string             `json:"customerName,omitempty"`
	CustomerPhone *string             `json:"customerPhone,omitempty"`
	CreatedAt     time.Time           `json:"createdAt"`
	Lines         []InvoiceLineDTO    `json:"lines"`
}

// InvoiceLineDTO is the per-item snapshot inside an invoice.
type InvoiceLineDTO struct {
	ItemID    uuid.UUID       `json:"itemId"`
	ItemName  string          `json:"itemName"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	LineTotal decimal.Decimal `json:"lineTotal"`
	Position  int             `json:"position"`
}

// InvoiceListResult carries one page of invoices plus the next cursor.
type InvoiceListResult struct {
	Invoices   []InvoiceDTO `json:"invoices"`
	NextCursor string       `json:"nextCursor,omitempty"`
}

// Service exposes invoice read operations. Writes only happen through the
// sale finalizer.
type Service interface {
	GetByNumber(ctx context.Context, number string) (*InvoiceDTO, error)
	List(ctx context.Context, params pagination.Params) (*InvoiceListResult, error)
}

type invoiceReader interface {
	FindByNumber(ctx context.Context, number string) (*models.Invoice, error)
	List(ctx context.Context, params pagination.Params) ([]models.Invoice, error)
}

type service struct {
	repo invoiceReader
}

// NewService wires the invoice service with its repository.
func NewService(repo invoiceReader) Service {
	return &service{repo: repo}
}

func (s *service) GetByNumber(ctx context.Context, number string) (*InvoiceDTO, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invoice number is required")
	}
	invoice, err := s.repo.FindByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	return ToDTO(invoice), nil
}

func (s *service) List(ctx context.Context, params pagination.Params) (*InvoiceListResult, error) {
	invoices, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, err
	}

	limit := pagination.NormalizeLimit(params.Limit)
	result := &InvoiceListResult{}
	if len(invoices) > limit {
		last := invoices[limit-1]
		result.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
		invoices = invoices[:limit]
	}

	result.Invoices = make([]InvoiceDTO, 0, len(invoices))
	for i := range invoices {
		result.Invoices = append(result.Invoices, *ToDTO(&invoices[i]))
	}
	return result, nil
}

// ToDTO maps the persistence model to the read model.
func ToDTO(invoice *models.Invoice) *InvoiceDTO {
	dto := &InvoiceDTO{
		ID:            invoice.ID,
		InvoiceNumber: invoice.InvoiceNumber,
		Subtotal:      invoice.Subtotal,
		Tax:           invoice.Tax,
		Discount:      invoice.Discount,
		Total:         invoice.Total,
		PaymentMethod: invoice.PaymentMethod,
		PaymentStatus: invoice.PaymentStatus,
		CustomerName:  invoice.CustomerName,
		CustomerPhone: invoice.CustomerPhone,
		CreatedAt:     invoice.CreatedAt,
		Lines:         make([]InvoiceLineDTO, 0, len(invoice.Lines)),
	}
	for _, line := range invoice.Lines {
		dto.Lines = append(dto.Lines, InvoiceLineDTO{
			ItemID:    line.ItemID,
			ItemName:  line.ItemName,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			LineTotal: line.LineTotal,
			Position:  line.Position,
		})
	}
	return dto
}
