package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/medicart/pos-backend/api/responses"
	"github.com/medicart/pos-backend/api/validators"
	catalogsvc "github.com/medicart/pos-backend/internal/catalog"
	pkgerrors "github.com/medicart/pos-backend/pkg/errors"
	"github.com/medicart/pos-backend/pkg/logger"
	"github.com/medicart/pos-backend/pkg/pagination"
)

const maxItemNameLen = 160

// CreateItem handles catalog item creation.
func CreateItem(svc catalogsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		var payload createItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, err := svc.CreateItem(r.Context(), catalogsvc.CreateItemInput{
			Name:      validators.SanitizeString(payload.Name, maxItemNameLen),
			UnitPrice: payload.UnitPrice,
			Active:    payload.Active,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newItemResponse(item))
	}
}

// UpdateItem applies partial updates to an item.
func UpdateItem(svc catalogsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		itemID, err := itemIDFromURL(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if payload.Name != nil {
			clean := validators.SanitizeString(*payload.Name, maxItemNameLen)
			payload.Name = &clean
		}

		item, err := svc.UpdateItem(r.Context(), itemID, catalogsvc.UpdateItemInput{
			Name:      payload.Name,
			UnitPrice: payload.UnitPrice,
			Active:    payload.Active,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newItemResponse(item))
	}
}

// DeactivateItem removes an item from sale without deleting its history.
func DeactivateItem(svc catalogsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		itemID, err := itemIDFromURL(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.DeactivateItem(r.Context(), itemID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "deactivated"})
	}
}

// GetItem fetches one catalog item.
func GetItem(svc catalogsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		itemID, err := itemIDFromURL(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, err := svc.GetItem(r.Context(), itemID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newItemResponse(item))
	}
}

// ListItems returns a cursor page of catalog items.
func ListItems(svc catalogsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ListItems(r.Context(), catalogsvc.ListItemsInput{
			Pagination: pagination.Params{
				Limit:  limit,
				Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
			},
			ActiveOnly: r.URL.Query().Get("active") == "true",
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]itemResponse, 0, len(result.Items))
		for i := range result.Items {
			items = append(items, newItemResponse(&result.Items[i]))
		}
		responses.WriteSuccess(w, itemListResponse{Items: items, NextCursor: result.NextCursor})
	}
}

type createItemRequest struct {
	Name      string          `json:"name" validate:"required"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Active    *bool           `json:"active,omitempty"`
}

type updateItemRequest struct {
	Name      *string          `json:"name,omitempty"`
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"`
	Active    *bool            `json:"active,omitempty"`
}

type itemResponse struct {
	ID        uuid.UUID       `json:"id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Active    bool            `json:"active"`
}

type itemListResponse struct {
	Items      []itemResponse `json:"items"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

func newItemResponse(item *catalogsvc.ItemDTO) itemResponse {
	if item == nil {
		return itemResponse{}
	}
	return itemResponse{
		ID:        item.ID,
		Name:      item.Name,
		UnitPrice: item.UnitPrice,
		Active:    item.Active,
	}
}

func itemIDFromURL(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "itemId")
	itemID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid item id")
	}
	return itemID, nil
}
