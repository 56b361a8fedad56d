package invoices

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	pkgdb "github.com/medicart/pos-backend/pkg/db"
	"github.com/medicart/pos-backend/pkg/db/models"
	pkgerrors "github.com/medicart/pos-backend/pkg/errors"
	"github.com/medicart/pos-backend/pkg/pagination"
)

// FormatNumber renders an invoice number for the given year and sequence.
func FormatNumber(year int, seq int64) string {
	return fmt.Sprintf("INV-%d-%05d", year, seq)
}

// Repository persists the append-only invoice ledger.
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

// Append allocates the next invoice number for invoice.Year and persists the
// invoice with its lines in one transaction. The counter upsert is a single
// statement, so concurrent appends always draw distinct sequences.
func (r *Repository) Append(ctx context.Context, invoice *models.Invoice) (*models.Invoice, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var seq int64
		if err := tx.Raw(
			`INSERT INTO invoice_counters (year, last_seq) VALUES (?, 1)
			 ON CONFLICT (year) DO UPDATE SET last_seq = invoice_counters.last_seq + 1, updated_at = CURRENT_TIMESTAMP
			 RETURNING last_seq`,
			invoice.Year,
		).Scan(&seq).Error; err != nil {
			return fmt.Errorf("allocating invoice sequence: %w", err)
		}

		invoice.Seq = seq
		invoice.InvoiceNumber = FormatNumber(invoice.Year, seq)

		for i := range invoice.Lines {
			invoice.Lines[i].InvoiceID = invoice.ID
			invoice.Lines[i].Position = i + 1
		}

		if err := tx.Create(invoice).Error; err != nil {
			return fmt.Errorf("inserting invoice: %w", err)
		}
		return nil
	})
	if err != nil {
		// The number index is the table's only unique constraint, so any
		// duplicate here is a reused invoice number.
		if pkgdb.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "invoice number already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "appending invoice")
	}
	return invoice, nil
}

// FindByNumber loads an invoice with its lines.
func (r *Repository) FindByNumber(ctx context.Context, number string) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := r.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		First(&invoice, "invoice_number = ?", number).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "invoice not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading invoice")
	}
	return &invoice, nil
}

// List returns invoices newest first using cursor pagination.
func (r *Repository) List(ctx context.Context, params pagination.Params) ([]models.Invoice, error) {
	query := r.db.WithContext(ctx).Model(&models.Invoice{})

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	if cursor != nil {
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	var invoices []models.Invoice
	if err := query.
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Order("created_at DESC, id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit)).
		Find(&invoices).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing invoices")
	}
	return invoices, nil
}
