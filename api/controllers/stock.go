package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/medicart/pos-backend/api/responses"
	"github.com/medicart/pos-backend/api/validators"
	stocksvc "github.com/medicart/pos-backend/internal/stock"
	pkgerrors "github.com/medicart/pos-backend/pkg/errors"
	"github.com/medicart/pos-backend/pkg/logger"
)

// GetStock returns the current snapshot for one item.
func GetStock(svc stocksvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stock service unavailable"))
			return
		}

		itemID, err := itemIDFromURL(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		snapshot, err := svc.GetSnapshot(r.Context(), itemID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newStockResponse(snapshot))
	}
}

// SetStock creates or replaces the administrative state of a stock record.
func SetStock(svc stocksvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stock service unavailable"))
			return
		}

		itemID, err := itemIDFromURL(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload setStockRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		snapshot, err := svc.SetStock(r.Context(), itemID, stocksvc.SetStockInput{
			QuantityOnHand:   payload.QuantityOnHand,
			ReorderThreshold: payload.ReorderThreshold,
			ExpiresAt:        payload.ExpiresAt,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newStockResponse(snapshot))
	}
}

// Restock credits received inventory onto an existing record.
func Restock(svc stocksvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stock service unavailable"))
			return
		}

		itemID, err := itemIDFromURL(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload restockRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		snapshot, err := svc.Restock(r.Context(), itemID, payload.Amount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newStockResponse(snapshot))
	}
}

// ListReorderCandidates returns items at or below their reorder threshold.
func ListReorderCandidates(svc stocksvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stock service unavailable"))
			return
		}

		snapshots, err := svc.ListReorderCandidates(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]stockResponse, 0, len(snapshots))
		for i := range snapshots {
			out = append(out, newStockResponse(&snapshots[i]))
		}
		responses.WriteSuccess(w, map[string]any{"items": out})
	}
}

type setStockRequest struct {
	QuantityOnHand   int        `json:"quantity_on_hand" validate:"min=0"`
	ReorderThreshold int        `json:"reorder_threshold" validate:"min=0"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
}

type restockRequest struct {
	Amount int `json:"amount" validate:"required,min=1"`
}

type stockResponse struct {
	ItemID           uuid.UUID  `json:"item_id"`
	QuantityOnHand   int        `json:"quantity_on_hand"`
	ReorderThreshold int        `json:"reorder_threshold"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
	LastRestockedAt  *time.Time `json:"last_restocked_at,omitempty"`
	NeedsReorder     bool       `json:"needs_reorder"`
	Expired          bool       `json:"expired"`
}

func newStockResponse(snapshot *stocksvc.Snapshot) stockResponse {
	if snapshot == nil {
		return stockResponse{}
	}
	return stockResponse{
		ItemID:           snapshot.ItemID,
		QuantityOnHand:   snapshot.QuantityOnHand,
		ReorderThreshold: snapshot.ReorderThreshold,
		ExpiresAt:        snapshot.ExpiresAt,
		LastRestockedAt:  snapshot.LastRestockedAt,
		NeedsReorder:     snapshot.NeedsReorder,
		Expired:          snapshot.Expired,
	}
}
