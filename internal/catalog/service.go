package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/medicart/pos-backend/pkg/db/models"
	pkgerrors "github.com/medicart/pos-backend/pkg/errors"
	"github.com/medicart/pos-backend/pkg/pagination"
)

// Service exposes catalog management operations.
type Service interface {
	CreateItem(ctx context.Context, input CreateItemInput) (*ItemDTO, error)
	UpdateItem(ctx context.Context, itemID uuid.UUID, input UpdateItemInput) (*ItemDTO, error)
	DeactivateItem(ctx context.Context, itemID uuid.UUID) error
	GetItem(ctx context.Context, itemID uuid.UUID) (*ItemDTO, error)
	ListItems(ctx context.Context, input ListItemsInput) (*ItemListResult, error)
	Lookup(ctx context.Context, itemID uuid.UUID) (*ItemDTO, error)
}

// CreateItemInput holds the validated payload to create an item.
type CreateItemInput struct {
	Name      string
	UnitPrice decimal.Decimal
	Active    *bool
}

// UpdateItemInput holds optional mutation values for an item.
type UpdateItemInput struct {
	Name      *string
	UnitPrice *decimal.Decimal
	Active    *bool
}

// ListItemsInput controls catalog listing.
type ListItemsInput struct {
	Pagination pagination.Params
	ActiveOnly bool
}

// ItemDTO is the catalog read model shared with transport and the sale path.
type ItemDTO struct {
	ID        uuid.UUID
	Name      string
	UnitPrice decimal.Decimal
	Active    bool
}

// ItemListResult carries one page of items plus the next cursor.
type ItemListResult struct {
	Items      []ItemDTO
	NextCursor string
}

type itemStore interface {
	Create(ctx context.Context, item *models.Item) (*models.Item, error)
	Update(ctx context.Context, item *models.Item) (*models.Item, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Item, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, params pagination.Params, activeOnly bool) ([]models.Item, error)
}

type service struct {
	repo itemStore
}

// NewService wires the catalog service with its repository.
func NewService(repo itemStore) Service {
	return &service{repo: repo}
}

func (s *service) CreateItem(ctx context.Context, input CreateItemInput) (*ItemDTO, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item name is required")
	}
	if input.UnitPrice.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unit price must not be negative")
	}

	active := true
	if input.Active != nil {
		active = *input.Active
	}

	item, err := s.repo.Create(ctx, &models.Item{
		ID:        uuid.New(),
		Name:      name,
		UnitPrice: input.UnitPrice,
		Active:    active,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating item")
	}
	return toItemDTO(item), nil
}

func (s *service) UpdateItem(ctx context.Context, itemID uuid.UUID, input UpdateItemInput) (*ItemDTO, error) {
	item, err := s.repo.FindByID(ctx, itemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading item")
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item name is required")
		}
		item.Name = name
	}
	if input.UnitPrice != nil {
		if input.UnitPrice.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "unit price must not be negative")
		}
		item.UnitPrice = *input.UnitPrice
	}
	if input.Active != nil {
		item.Active = *input.Active
	}

	updated, err := s.repo.Update(ctx, item)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating item")
	}
	return toItemDTO(updated), nil
}

func (s *service) DeactivateItem(ctx context.Context, itemID uuid.UUID) error {
	if err := s.repo.Deactivate(ctx, itemID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "deactivating item")
	}
	return nil
}

func (s *service) GetItem(ctx context.Context, itemID uuid.UUID) (*ItemDTO, error) {
	return s.Lookup(ctx, itemID)
}

func (s *service) ListItems(ctx context.Context, input ListItemsInput) (*ItemListResult, error) {
	items, err := s.repo.List(ctx, input.Pagination, input.ActiveOnly)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing items")
	}

	limit := pagination.NormalizeLimit(input.Pagination.Limit)
	result := &ItemListResult{}
	if len(items) > limit {
		last := items[limit-1]
		result.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
		items = items[:limit]
	}

	result.Items = make([]ItemDTO, 0, len(items))
	for i := range items {
		result.Items = append(result.Items, *toItemDTO(&items[i]))
	}
	return result, nil
}

// Lookup resolves the sale-facing view of an item.
func (s *service) Lookup(ctx context.Context, itemID uuid.UUID) (*ItemDTO, error) {
	item, err := s.repo.FindByID(ctx, itemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading item")
	}
	return toItemDTO(item), nil
}

func toItemDTO(item *models.Item) *ItemDTO {
	return &ItemDTO{
		ID:        item.ID,
		Name:      item.Name,
		UnitPrice: item.UnitPrice,
		Active:    item.Active,
	}
}
