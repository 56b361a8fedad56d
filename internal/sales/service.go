package sales

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	"github.com/medicart/pos-backend/internal/availability"
	"github.com/medicart/pos-backend/internal/catalog"
	"github.com/medicart/pos-backend/internal/invoices"
	"github.com/medicart/pos-backend/pkg/db/models"
	"github.com/medicart/pos-backend/pkg/enums"
	pkgerrors "github.com/medicart/pos-backend/pkg/errors"
	"github.com/medicart/pos-backend/pkg/logger"
	"github.com/medicart/pos-backend/pkg/metrics"
)

// LineRequest is one requested sale line.
type LineRequest struct {
	ItemID            uuid.UUID
	Quantity          int
	UnitPriceOverride *decimal.Decimal
}

// FinalizeInput is the full payload for committing a sale.
type FinalizeInput struct {
	Lines         []LineRequest
	PaymentMethod enums.PaymentMethod
	PaymentStatus *enums.PaymentStatus
	CustomerName  *string
	CustomerPhone *string
}

// PreviewResult reports per-line availability and projected totals without
// touching stock.
type PreviewResult struct {
	OverallValid bool
	Lines        []availability.LineVerdict
	Subtotal     decimal.Decimal
	Tax          decimal.Decimal
	Discount     decimal.Decimal
	Total        decimal.Decimal
}

// Service exposes the sale preview and finalize operations.
type Service interface {
	Preview(ctx context.Context, lines []LineRequest) (*PreviewResult, error)
	Finalize(ctx context.Context, input FinalizeInput) (*invoices.InvoiceDTO, error)
}

type catalogReader interface {
	Lookup(ctx context.Context, itemID uuid.UUID) (*catalog.ItemDTO, error)
}

type stockLedger interface {
	ConditionalDecrement(ctx context.Context, itemID uuid.UUID, amount int) (*models.StockRecord, error)
	Increment(ctx context.Context, itemID uuid.UUID, amount int) (*models.StockRecord, error)
	Record(ctx context.Context, itemID uuid.UUID) (*models.StockRecord, error)
}

type invoiceAppender interface {
	Append(ctx context.Context, invoice *models.Invoice) (*models.Invoice, error)
}

type service struct {
	catalog catalogReader
	stock   stockLedger
	ledger  invoiceAppender
	policy  TotalsPolicy
	logg    *logger.Logger
	metrics *metrics.SalesMetrics
	now     func() time.Time
}

// NewService builds the sale finalizer.
func NewService(
	catalogSvc catalogReader,
	stockSvc stockLedger,
	invoiceRepo invoiceAppender,
	policy TotalsPolicy,
	logg *logger.Logger,
	salesMetrics *metrics.SalesMetrics,
) (Service, error) {
	if catalogSvc == nil {
		return nil, fmt.Errorf("catalog reader required")
	}
	if stockSvc == nil {
		return nil, fmt.Errorf("stock ledger required")
	}
	if invoiceRepo == nil {
		return nil, fmt.Errorf("invoice appender required")
	}
	if policy == nil {
		policy = LinearPolicy{}
	}
	return &service{
		catalog: catalogSvc,
		stock:   stockSvc,
		ledger:  invoiceRepo,
		policy:  policy,
		logg:    logg,
		metrics: salesMetrics,
		now:     time.Now,
	}, nil
}

// Preview checks every requested line against current snapshots. It never
// mutates stock, so repeating it yields the same answer while state holds.
func (s *service) Preview(ctx context.Context, lines []LineRequest) (*PreviewResult, error) {
	if len(lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one line is required")
	}

	now := s.now()
	result := &PreviewResult{
		OverallValid: true,
		Lines:        make([]availability.LineVerdict, 0, len(lines)),
		Subtotal:     decimal.Zero,
	}

	for _, line := range lines {
		item, err := s.lookupItem(ctx, line.ItemID)
		if err != nil {
			return nil, err
		}
		record, err := s.lookupRecord(ctx, line.ItemID)
		if err != nil {
			return nil, err
		}
		if item != nil {
			price, err := effectiveUnitPrice(item, line.UnitPriceOverride)
			if err != nil {
				return nil, err
			}
			priced := *item
			priced.UnitPrice = price
			item = &priced
		}

		verdict := availability.CheckLine(line.ItemID, item, record, line.Quantity, now)
		result.Lines = append(result.Lines, verdict)
		if verdict.Valid {
			result.Subtotal = result.Subtotal.Add(verdict.LineTotal)
		} else {
			result.OverallValid = false
		}
	}

	tax, discount := s.policy.Totals(result.Subtotal)
	result.Tax = tax
	result.Discount = discount
	result.Total = result.Subtotal.Add(tax).Sub(discount)
	return result, nil
}

type committedLine struct {
	itemID   uuid.UUID
	quantity int
}

// Finalize commits a sale. Lines are processed sequentially in request
// order; any failure after the first decrement triggers compensating
// increments for everything already taken, in commit order, before the
// original error is returned.
func (s *service) Finalize(ctx context.Context, input FinalizeInput) (*invoices.InvoiceDTO, error) {
	started := s.now()
	dto, err := s.finalize(ctx, input)
	s.metrics.ObserveFinalizeDuration(s.now().Sub(started))
	if err != nil {
		s.metrics.IncFailed(failureReason(err))
		return nil, err
	}
	s.metrics.IncFinalized()
	return dto, nil
}

func (s *service) finalize(ctx context.Context, input FinalizeInput) (*invoices.InvoiceDTO, error) {
	if err := validateFinalizeInput(input); err != nil {
		return nil, err
	}

	now := s.now()
	var committed []committedLine
	var lines []models.InvoiceLine
	subtotal := decimal.Zero

	for i, line := range input.Lines {
		item, err := s.lookupItem(ctx, line.ItemID)
		if err != nil {
			return nil, s.abort(ctx, committed, err)
		}
		if item == nil || !item.Active {
			err := pkgerrors.New(pkgerrors.CodeItemUnavailable, "item is not available for sale").
				WithDetails(map[string]any{"itemId": line.ItemID})
			return nil, s.abort(ctx, committed, err)
		}

		unitPrice, err := effectiveUnitPrice(item, line.UnitPriceOverride)
		if err != nil {
			return nil, s.abort(ctx, committed, err)
		}

		record, err := s.stock.ConditionalDecrement(ctx, line.ItemID, line.Quantity)
		if err != nil {
			return nil, s.abort(ctx, committed, err)
		}
		committed = append(committed, committedLine{itemID: line.ItemID, quantity: line.Quantity})

		// The decrement predicate only guards quantity; expiry is
		// re-checked here against the row we just debited.
		if record.Expired(now) {
			err := pkgerrors.New(pkgerrors.CodeExpiredStock, "stock is expired").
				WithDetails(map[string]any{"itemId": line.ItemID})
			return nil, s.abort(ctx, committed, err)
		}

		lineTotal := unitPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))
		subtotal = subtotal.Add(lineTotal)
		lines = append(lines, models.InvoiceLine{
			ID:        uuid.New(),
			ItemID:    line.ItemID,
			ItemName:  item.Name,
			Quantity:  line.Quantity,
			UnitPrice: unitPrice,
			LineTotal: lineTotal,
			Position:  i + 1,
		})
	}

	tax, discount := s.policy.Totals(subtotal)
	status := enums.PaymentStatusPaid
	if input.PaymentStatus != nil {
		status = *input.PaymentStatus
	}

	invoice := &models.Invoice{
		ID:            uuid.New(),
		Year:          now.Year(),
		Subtotal:      subtotal,
		Tax:           tax,
		Discount:      discount,
		Total:         subtotal.Add(tax).Sub(discount),
		PaymentMethod: input.PaymentMethod,
		PaymentStatus: status,
		CustomerName:  input.CustomerName,
		CustomerPhone: input.CustomerPhone,
		Lines:         lines,
	}

	appended, err := s.ledger.Append(ctx, invoice)
	if err != nil {
		return nil, s.abort(ctx, committed, err)
	}

	if s.logg != nil {
		ctx = s.logg.WithInvoiceNumber(ctx, appended.InvoiceNumber)
		s.logg.Info(ctx, "sale finalized")
	}
	return invoices.ToDTO(appended), nil
}

// abort restores every committed decrement in commit order and returns
// cause. A failed compensation leaves the ledger wrong, which outranks the
// original failure and is flagged as an inconsistency.
func (s *service) abort(ctx context.Context, committed []committedLine, cause error) error {
	var rollbackErr error
	restored := 0
	for _, line := range committed {
		if _, err := s.stock.Increment(ctx, line.itemID, line.quantity); err != nil {
			rollbackErr = multierr.Append(rollbackErr, err)
			if s.logg != nil {
				lctx := s.logg.WithFields(ctx, map[string]any{
					"item_id": line.itemID.String(),
					"amount":  line.quantity,
				})
				s.logg.Error(lctx, "compensating increment failed", err)
			}
			continue
		}
		restored++
	}
	s.metrics.AddRollbackLines(restored)

	if rollbackErr != nil {
		return pkgerrors.Wrap(
			pkgerrors.CodeLedgerInconsistency,
			multierr.Combine(cause, rollbackErr),
			"stock rollback failed; on-hand counts need manual reconciliation",
		).WithDetails(map[string]any{"restoredLines": restored, "committedLines": len(committed)})
	}
	return cause
}

func (s *service) lookupItem(ctx context.Context, itemID uuid.UUID) (*catalog.ItemDTO, error) {
	item, err := s.catalog.Lookup(ctx, itemID)
	if err != nil {
		if pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "catalog lookup failed")
	}
	return item, nil
}

func (s *service) lookupRecord(ctx context.Context, itemID uuid.UUID) (*models.StockRecord, error) {
	record, err := s.stock.Record(ctx, itemID)
	if err != nil {
		if pkgerrors.HasCode(err, pkgerrors.CodeNoStockRecord) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "stock lookup failed")
	}
	return record, nil
}

func validateFinalizeInput(input FinalizeInput) error {
	if len(input.Lines) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one line is required")
	}
	if !input.PaymentMethod.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}
	if input.PaymentStatus != nil && !input.PaymentStatus.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid payment status")
	}
	for _, line := range input.Lines {
		if line.Quantity <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive").
				WithDetails(map[string]any{"itemId": line.ItemID})
		}
	}
	return nil
}

func effectiveUnitPrice(item *catalog.ItemDTO, override *decimal.Decimal) (decimal.Decimal, error) {
	if override == nil {
		return item.UnitPrice, nil
	}
	if override.IsNegative() {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "unit price override must not be negative").
			WithDetails(map[string]any{"itemId": item.ID})
	}
	return *override, nil
}

func failureReason(err error) string {
	if typed := pkgerrors.As(err); typed != nil {
		return string(typed.Code())
	}
	return "unknown"
}
