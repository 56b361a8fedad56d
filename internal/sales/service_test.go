package sales

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/medicart/pos-backend/internal/catalog"
	"github.com/medicart/pos-backend/internal/invoices"
	"github.com/medicart/pos-backend/pkg/db/models"
	"github.com/medicart/pos-backend/pkg/enums"
	pkgerrors "github.com/medicart/pos-backend/pkg/errors"
)

type stubCatalog struct {
	mu    sync.Mutex
	items map[uuid.UUID]*catalog.ItemDTO
}

func newStubCatalog() *stubCatalog {
	return &stubCatalog{items: map[uuid.UUID]*catalog.ItemDTO{}}
}

func (s *stubCatalog) add(name string, price string, active bool) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.New()
	s.items[id] = &catalog.ItemDTO{
		ID:        id,
		Name:      name,
		UnitPrice: decimal.RequireFromString(price),
		Active:    active,
	}
	return id
}

func (s *stubCatalog) Lookup(_ context.Context, itemID uuid.UUID) (*catalog.ItemDTO, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[itemID]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
	}
	clone := *item
	return &clone, nil
}

// stubLedger arbitrates decrements under a mutex the same way the database
// predicate does: check and subtract as one step.
type stubLedger struct {
	mu               sync.Mutex
	records          map[uuid.UUID]*models.StockRecord
	failIncrementFor map[uuid.UUID]bool
}

func newStubLedger() *stubLedger {
	return &stubLedger{
		records:          map[uuid.UUID]*models.StockRecord{},
		failIncrementFor: map[uuid.UUID]bool{},
	}
}

func (s *stubLedger) seed(itemID uuid.UUID, qty int, expiresAt *time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[itemID] = &models.StockRecord{
		ItemID:         itemID,
		QuantityOnHand: qty,
		ExpiresAt:      expiresAt,
	}
}

func (s *stubLedger) onHand(itemID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[itemID].QuantityOnHand
}

func (s *stubLedger) ConditionalDecrement(_ context.Context, itemID uuid.UUID, amount int) (*models.StockRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[itemID]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNoStockRecord, "item has no stock record").
			WithDetails(map[string]any{"itemId": itemID})
	}
	if record.QuantityOnHand < amount {
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").
			WithDetails(map[string]any{"itemId": itemID, "requested": amount, "available": record.QuantityOnHand})
	}
	record.QuantityOnHand -= amount
	clone := *record
	return &clone, nil
}

func (s *stubLedger) Increment(_ context.Context, itemID uuid.UUID, amount int) (*models.StockRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failIncrementFor[itemID] {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "simulated increment failure")
	}
	record, ok := s.records[itemID]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNoStockRecord, "item has no stock record")
	}
	record.QuantityOnHand += amount
	clone := *record
	return &clone, nil
}

func (s *stubLedger) Record(_ context.Context, itemID uuid.UUID) (*models.StockRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[itemID]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNoStockRecord, "item has no stock record")
	}
	clone := *record
	return &clone, nil
}

// stubAppender allocates sequences per year under a mutex, mirroring the
// atomic counter upsert in the real repository.
type stubAppender struct {
	mu       sync.Mutex
	seqs     map[int]int64
	invoices []*models.Invoice
	fail     bool
}

func newStubAppender() *stubAppender {
	return &stubAppender{seqs: map[int]int64{}}
}

func (s *stubAppender) Append(_ context.Context, invoice *models.Invoice) (*models.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "simulated append failure")
	}
	s.seqs[invoice.Year]++
	invoice.Seq = s.seqs[invoice.Year]
	invoice.InvoiceNumber = invoices.FormatNumber(invoice.Year, invoice.Seq)
	invoice.CreatedAt = time.Now().UTC()
	s.invoices = append(s.invoices, invoice)
	return invoice, nil
}

func (s *stubAppender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.invoices)
}

type fixture struct {
	catalog  *stubCatalog
	ledger   *stubLedger
	appender *stubAppender
	svc      Service
}

func newFixture(t *testing.T, policy TotalsPolicy) *fixture {
	t.Helper()
	cat := newStubCatalog()
	led := newStubLedger()
	app := newStubAppender()
	svc, err := NewService(cat, led, app, policy, nil, nil)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	return &fixture{catalog: cat, ledger: led, appender: app, svc: svc}
}

func TestFinalizeHappyPathArithmetic(t *testing.T) {
	f := newFixture(t, NewLinearPolicy(5, 10))
	ctx := context.Background()

	itemA := f.catalog.add("Paracetamol 500mg", "2.50", true)
	itemB := f.catalog.add("Vitamin C", "8.00", true)
	f.ledger.seed(itemA, 10, nil)
	f.ledger.seed(itemB, 4, nil)

	dto, err := f.svc.Finalize(ctx, FinalizeInput{
		Lines: []LineRequest{
			{ItemID: itemA, Quantity: 4},
			{ItemID: itemB, Quantity: 2},
		},
		PaymentMethod: enums.PaymentMethodCash,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// subtotal = 4*2.50 + 2*8.00 = 26.00; tax 5% = 1.30; discount 10% = 2.60
	if !dto.Subtotal.Equal(decimal.RequireFromString("26.00")) {
		t.Fatalf("expected subtotal 26.00, got %s", dto.Subtotal)
	}
	if !dto.Tax.Equal(decimal.RequireFromString("1.30")) {
		t.Fatalf("expected tax 1.30, got %s", dto.Tax)
	}
	if !dto.Discount.Equal(decimal.RequireFromString("2.60")) {
		t.Fatalf("expected discount 2.60, got %s", dto.Discount)
	}
	if !dto.Total.Equal(dto.Subtotal.Add(dto.Tax).Sub(dto.Discount)) {
		t.Fatalf("total must equal subtotal + tax - discount, got %s", dto.Total)
	}

	var sum decimal.Decimal
	for _, line := range dto.Lines {
		if !line.LineTotal.Equal(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))) {
			t.Fatalf("line total mismatch: %+v", line)
		}
		sum = sum.Add(line.LineTotal)
	}
	if !sum.Equal(dto.Subtotal) {
		t.Fatalf("subtotal must equal sum of line totals, got %s vs %s", sum, dto.Subtotal)
	}

	if dto.PaymentStatus != enums.PaymentStatusPaid {
		t.Fatalf("payment status should default to paid, got %s", dto.PaymentStatus)
	}
	if got := f.ledger.onHand(itemA); got != 6 {
		t.Fatalf("expected 6 on hand for item A, got %d", got)
	}
	if got := f.ledger.onHand(itemB); got != 2 {
		t.Fatalf("expected 2 on hand for item B, got %d", got)
	}
}

func TestFinalizeCapturesNameAtSaleTime(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	itemID := f.catalog.add("Old Name", "1.00", true)
	f.ledger.seed(itemID, 5, nil)

	dto, err := f.svc.Finalize(ctx, FinalizeInput{
		Lines:         []LineRequest{{ItemID: itemID, Quantity: 1}},
		PaymentMethod: enums.PaymentMethodCash,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dto.Lines[0].ItemName != "Old Name" {
		t.Fatalf("expected snapshot name, got %q", dto.Lines[0].ItemName)
	}
}

func TestFinalizeThirdLineFailureRollsBackFirstTwo(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	itemA := f.catalog.add("A", "1.00", true)
	itemB := f.catalog.add("B", "1.00", true)
	itemC := f.catalog.add("C", "1.00", true)
	f.ledger.seed(itemA, 10, nil)
	f.ledger.seed(itemB, 10, nil)
	f.ledger.seed(itemC, 1, nil)

	_, err := f.svc.Finalize(ctx, FinalizeInput{
		Lines: []LineRequest{
			{ItemID: itemA, Quantity: 3},
			{ItemID: itemB, Quantity: 2},
			{ItemID: itemC, Quantity: 5},
		},
		PaymentMethod: enums.PaymentMethodCash,
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}

	if got := f.ledger.onHand(itemA); got != 10 {
		t.Fatalf("item A not restored, got %d", got)
	}
	if got := f.ledger.onHand(itemB); got != 10 {
		t.Fatalf("item B not restored, got %d", got)
	}
	if got := f.ledger.onHand(itemC); got != 1 {
		t.Fatalf("item C must be untouched, got %d", got)
	}
	if f.appender.count() != 0 {
		t.Fatal("no invoice may be appended on a failed sale")
	}
}

func TestFinalizeExpiredStockAbortsAndRestores(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	fresh := f.catalog.add("Fresh", "1.00", true)
	stale := f.catalog.add("Stale", "1.00", true)
	expired := time.Now().UTC().Add(-time.Hour)
	f.ledger.seed(fresh, 10, nil)
	f.ledger.seed(stale, 10, &expired)

	_, err := f.svc.Finalize(ctx, FinalizeInput{
		Lines: []LineRequest{
			{ItemID: fresh, Quantity: 2},
			{ItemID: stale, Quantity: 1},
		},
		PaymentMethod: enums.PaymentMethodCash,
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeExpiredStock) {
		t.Fatalf("expected expired stock, got %v", err)
	}

	// Both the prior line and the expired line's own decrement are undone.
	if got := f.ledger.onHand(fresh); got != 10 {
		t.Fatalf("fresh stock not restored, got %d", got)
	}
	if got := f.ledger.onHand(stale); got != 10 {
		t.Fatalf("stale stock not restored, got %d", got)
	}
	if f.appender.count() != 0 {
		t.Fatal("no invoice may be appended on a failed sale")
	}
}

func TestFinalizeInactiveItemIsUnavailable(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	inactive := f.catalog.add("Discontinued", "1.00", false)
	f.ledger.seed(inactive, 10, nil)

	_, err := f.svc.Finalize(ctx, FinalizeInput{
		Lines:         []LineRequest{{ItemID: inactive, Quantity: 1}},
		PaymentMethod: enums.PaymentMethodCash,
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeItemUnavailable) {
		t.Fatalf("expected item unavailable, got %v", err)
	}
	if got := f.ledger.onHand(inactive); got != 10 {
		t.Fatalf("stock must be untouched, got %d", got)
	}
}

func TestFinalizeUnknownItemIsUnavailable(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.Finalize(context.Background(), FinalizeInput{
		Lines:         []LineRequest{{ItemID: uuid.New(), Quantity: 1}},
		PaymentMethod: enums.PaymentMethodCash,
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeItemUnavailable) {
		t.Fatalf("expected item unavailable, got %v", err)
	}
}

func TestFinalizeRollbackFailureFlagsInconsistency(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	itemA := f.catalog.add("A", "1.00", true)
	itemB := f.catalog.add("B", "1.00", true)
	f.ledger.seed(itemA, 10, nil)
	f.ledger.seed(itemB, 0, nil)
	f.ledger.failIncrementFor[itemA] = true

	_, err := f.svc.Finalize(ctx, FinalizeInput{
		Lines: []LineRequest{
			{ItemID: itemA, Quantity: 2},
			{ItemID: itemB, Quantity: 1},
		},
		PaymentMethod: enums.PaymentMethodCash,
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeLedgerInconsistency) {
		t.Fatalf("expected ledger inconsistency, got %v", err)
	}
}

func TestFinalizeAppendFailureRollsBack(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	itemID := f.catalog.add("A", "1.00", true)
	f.ledger.seed(itemID, 10, nil)
	f.appender.fail = true

	_, err := f.svc.Finalize(ctx, FinalizeInput{
		Lines:         []LineRequest{{ItemID: itemID, Quantity: 3}},
		PaymentMethod: enums.PaymentMethodCash,
	})
	if err == nil {
		t.Fatal("expected error when invoice append fails")
	}
	if got := f.ledger.onHand(itemID); got != 10 {
		t.Fatalf("stock must be restored after append failure, got %d", got)
	}
}

func TestFinalizeValidation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	itemID := f.catalog.add("A", "1.00", true)
	f.ledger.seed(itemID, 10, nil)

	cases := []struct {
		name  string
		input FinalizeInput
	}{
		{"empty lines", FinalizeInput{PaymentMethod: enums.PaymentMethodCash}},
		{"bad payment method", FinalizeInput{
			Lines:         []LineRequest{{ItemID: itemID, Quantity: 1}},
			PaymentMethod: enums.PaymentMethod("cheque"),
		}},
		{"zero quantity", FinalizeInput{
			Lines:         []LineRequest{{ItemID: itemID, Quantity: 0}},
			PaymentMethod: enums.PaymentMethodCash,
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := f.svc.Finalize(ctx, tc.input); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}

	negative := decimal.NewFromInt(-1)
	_, err := f.svc.Finalize(ctx, FinalizeInput{
		Lines:         []LineRequest{{ItemID: itemID, Quantity: 1, UnitPriceOverride: &negative}},
		PaymentMethod: enums.PaymentMethodCash,
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for negative override, got %v", err)
	}
}

func TestFinalizeHonorsPriceOverride(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	itemID := f.catalog.add("A", "9.99", true)
	f.ledger.seed(itemID, 10, nil)

	override := decimal.RequireFromString("7.50")
	dto, err := f.svc.Finalize(ctx, FinalizeInput{
		Lines:         []LineRequest{{ItemID: itemID, Quantity: 2, UnitPriceOverride: &override}},
		PaymentMethod: enums.PaymentMethodCard,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !dto.Lines[0].UnitPrice.Equal(override) {
		t.Fatalf("expected override price in snapshot, got %s", dto.Lines[0].UnitPrice)
	}
	if !dto.Subtotal.Equal(decimal.RequireFromString("15.00")) {
		t.Fatalf("expected subtotal 15.00, got %s", dto.Subtotal)
	}
}

func TestNoOversellUnderConcurrentFinalizes(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	itemID := f.catalog.add("Last units", "1.00", true)
	f.ledger.seed(itemID, 5, nil)

	const attempts = 10
	var wg sync.WaitGroup
	results := make([]error, attempts)
	numbers := make([]string, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			dto, err := f.svc.Finalize(ctx, FinalizeInput{
				Lines:         []LineRequest{{ItemID: itemID, Quantity: 1}},
				PaymentMethod: enums.PaymentMethodCash,
			})
			results[i] = err
			if err == nil {
				numbers[i] = dto.InvoiceNumber
			}
		}(i)
	}
	wg.Wait()

	succeeded := 0
	seen := map[string]bool{}
	for i, err := range results {
		if err == nil {
			succeeded++
			if seen[numbers[i]] {
				t.Fatalf("duplicate invoice number %s", numbers[i])
			}
			seen[numbers[i]] = true
			continue
		}
		if !pkgerrors.HasCode(err, pkgerrors.CodeInsufficientStock) {
			t.Fatalf("losing requests must fail with insufficient stock, got %v", err)
		}
	}
	if succeeded != 5 {
		t.Fatalf("expected exactly 5 successful sales, got %d", succeeded)
	}
	if got := f.ledger.onHand(itemID); got != 0 {
		t.Fatalf("expected 0 on hand after drain, got %d", got)
	}
	if f.appender.count() != 5 {
		t.Fatalf("expected 5 invoices, got %d", f.appender.count())
	}
}

func TestPreviewIsIdempotent(t *testing.T) {
	f := newFixture(t, NewLinearPolicy(5, 0))
	ctx := context.Background()

	good := f.catalog.add("Good", "2.00", true)
	short := f.catalog.add("Short", "3.00", true)
	f.ledger.seed(good, 10, nil)
	f.ledger.seed(short, 1, nil)

	lines := []LineRequest{
		{ItemID: good, Quantity: 2},
		{ItemID: short, Quantity: 5},
		{ItemID: uuid.New(), Quantity: 1},
	}

	first, err := f.svc.Preview(ctx, lines)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := f.svc.Preview(ctx, lines)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if first.OverallValid {
		t.Fatal("preview with failing lines must not be overall valid")
	}
	if len(first.Lines) != 3 || len(second.Lines) != 3 {
		t.Fatalf("expected 3 verdicts on both runs")
	}
	for i := range first.Lines {
		if first.Lines[i].Reason != second.Lines[i].Reason {
			t.Fatalf("verdicts differ across identical previews: %s vs %s",
				first.Lines[i].Reason, second.Lines[i].Reason)
		}
	}
	if !first.Subtotal.Equal(second.Subtotal) || !first.Total.Equal(second.Total) {
		t.Fatal("totals differ across identical previews")
	}

	// Previews never touch stock.
	if got := f.ledger.onHand(good); got != 10 {
		t.Fatalf("preview mutated stock, got %d", got)
	}
}

func TestPreviewAllValidComputesTotals(t *testing.T) {
	f := newFixture(t, NewLinearPolicy(10, 0))
	ctx := context.Background()

	itemID := f.catalog.add("A", "4.00", true)
	f.ledger.seed(itemID, 10, nil)

	result, err := f.svc.Preview(ctx, []LineRequest{{ItemID: itemID, Quantity: 3}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.OverallValid {
		t.Fatalf("expected overall valid, got %+v", result)
	}
	if !result.Subtotal.Equal(decimal.RequireFromString("12.00")) {
		t.Fatalf("expected subtotal 12.00, got %s", result.Subtotal)
	}
	if !result.Tax.Equal(decimal.RequireFromString("1.20")) {
		t.Fatalf("expected tax 1.20, got %s", result.Tax)
	}
	if !result.Total.Equal(decimal.RequireFromString("13.20")) {
		t.Fatalf("expected total 13.20, got %s", result.Total)
	}
}

func TestPreviewRequiresLines(t *testing.T) {
	f := newFixture(t, nil)
	if _, err := f.svc.Preview(context.Background(), nil); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
