package stock

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/medicart/pos-backend/pkg/db/models"
	pkgerrors "github.com/medicart/pos-backend/pkg/errors"
)

// Snapshot is a point-in-time view of one stock record. It exists for
// previews and diagnostics; the finalize path never makes decisions from it.
type Snapshot struct {
	ItemID           uuid.UUID
	QuantityOnHand   int
	ReorderThreshold int
	ExpiresAt        *time.Time
	LastRestockedAt  *time.Time
	NeedsReorder     bool
	Expired          bool
}

// SetStockInput creates or replaces the administrative state of a record.
type SetStockInput struct {
	QuantityOnHand   int
	ReorderThreshold int
	ExpiresAt        *time.Time
}

// Service exposes stock ledger operations.
type Service interface {
	GetSnapshot(ctx context.Context, itemID uuid.UUID) (*Snapshot, error)
	Record(ctx context.Context, itemID uuid.UUID) (*models.StockRecord, error)
	SetStock(ctx context.Context, itemID uuid.UUID, input SetStockInput) (*Snapshot, error)
	Restock(ctx context.Context, itemID uuid.UUID, amount int) (*Snapshot, error)
	ConditionalDecrement(ctx context.Context, itemID uuid.UUID, amount int) (*models.StockRecord, error)
	Increment(ctx context.Context, itemID uuid.UUID, amount int) (*models.StockRecord, error)
	ListReorderCandidates(ctx context.Context) ([]Snapshot, error)
}

type ledgerStore interface {
	ConditionalDecrement(ctx context.Context, itemID uuid.UUID, amount int) (*models.StockRecord, error)
	Increment(ctx context.Context, itemID uuid.UUID, amount int, restock bool) (*models.StockRecord, error)
	Find(ctx context.Context, itemID uuid.UUID) (*models.StockRecord, error)
	Upsert(ctx context.Context, record *models.StockRecord) (*models.StockRecord, error)
	ListAtOrBelowThreshold(ctx context.Context) ([]models.StockRecord, error)
}

type service struct {
	repo ledgerStore
	now  func() time.Time
}

// NewService wires the stock service with its repository.
func NewService(repo ledgerStore) Service {
	return &service{repo: repo, now: time.Now}
}

func (s *service) GetSnapshot(ctx context.Context, itemID uuid.UUID) (*Snapshot, error) {
	record, err := s.repo.Find(ctx, itemID)
	if err != nil {
		return nil, err
	}
	return s.toSnapshot(record), nil
}

// Record exposes the raw stock row for callers that need expiry data
// alongside the quantity, such as the sale preview path.
func (s *service) Record(ctx context.Context, itemID uuid.UUID) (*models.StockRecord, error) {
	return s.repo.Find(ctx, itemID)
}

func (s *service) SetStock(ctx context.Context, itemID uuid.UUID, input SetStockInput) (*Snapshot, error) {
	if input.QuantityOnHand < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity on hand must not be negative")
	}
	if input.ReorderThreshold < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reorder threshold must not be negative")
	}

	record, err := s.repo.Upsert(ctx, &models.StockRecord{
		ItemID:           itemID,
		QuantityOnHand:   input.QuantityOnHand,
		ReorderThreshold: input.ReorderThreshold,
		ExpiresAt:        input.ExpiresAt,
	})
	if err != nil {
		return nil, err
	}
	return s.toSnapshot(record), nil
}

func (s *service) Restock(ctx context.Context, itemID uuid.UUID, amount int) (*Snapshot, error) {
	record, err := s.repo.Increment(ctx, itemID, amount, true)
	if err != nil {
		return nil, err
	}
	return s.toSnapshot(record), nil
}

// ConditionalDecrement is the sale-path debit. It fails rather than let
// quantity_on_hand go negative.
func (s *service) ConditionalDecrement(ctx context.Context, itemID uuid.UUID, amount int) (*models.StockRecord, error) {
	return s.repo.ConditionalDecrement(ctx, itemID, amount)
}

// Increment is the compensating credit used when a sale aborts.
func (s *service) Increment(ctx context.Context, itemID uuid.UUID, amount int) (*models.StockRecord, error) {
	return s.repo.Increment(ctx, itemID, amount, false)
}

func (s *service) ListReorderCandidates(ctx context.Context) ([]Snapshot, error) {
	records, err := s.repo.ListAtOrBelowThreshold(ctx)
	if err != nil {
		return nil, err
	}
	snapshots := make([]Snapshot, 0, len(records))
	for i := range records {
		snapshots = append(snapshots, *s.toSnapshot(&records[i]))
	}
	return snapshots, nil
}

func (s *service) toSnapshot(record *models.StockRecord) *Snapshot {
	return &Snapshot{
		ItemID:           record.ItemID,
		QuantityOnHand:   record.QuantityOnHand,
		ReorderThreshold: record.ReorderThreshold,
		ExpiresAt:        record.ExpiresAt,
		LastRestockedAt:  record.LastRestockedAt,
		NeedsReorder:     record.NeedsReorder(),
		Expired:          record.Expired(s.now()),
	}
}
