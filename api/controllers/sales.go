package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/medicart/pos-backend/api/responses"
	"github.com/medicart/pos-backend/api/validators"
	"github.com/medicart/pos-backend/internal/availability"
	invoicesvc "github.com/medicart/pos-backend/internal/invoices"
	salesvc "github.com/medicart/pos-backend/internal/sales"
	"github.com/medicart/pos-backend/pkg/enums"
	pkgerrors "github.com/medicart/pos-backend/pkg/errors"
	"github.com/medicart/pos-backend/pkg/logger"
	"github.com/medicart/pos-backend/pkg/pagination"
)

// PreviewSale validates a cart against current stock without committing it.
func PreviewSale(svc salesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "sales service unavailable"))
			return
		}

		var payload previewRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Preview(r.Context(), toLineRequests(payload.Lines))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newPreviewResponse(result))
	}
}

// FinalizeSale commits a sale and returns the stored invoice.
func FinalizeSale(svc salesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "sales service unavailable"))
			return
		}

		var payload finalizeRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		invoice, err := svc.Finalize(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, invoice)
	}
}

// GetSale fetches a finalized invoice by its number.
func GetSale(svc invoicesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "invoice service unavailable"))
			return
		}

		number := chi.URLParam(r, "invoiceNumber")
		invoice, err := svc.GetByNumber(r.Context(), number)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, invoice)
	}
}

// ListSales returns a cursor page of invoices, newest first.
func ListSales(svc invoicesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "invoice service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.List(r.Context(), pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

type saleLineRequest struct {
	ItemID            uuid.UUID        `json:"item_id" validate:"required,uuid4"`
	Quantity          int              `json:"quantity" validate:"required,min=1"`
	UnitPriceOverride *decimal.Decimal `json:"unit_price_override,omitempty"`
}

type previewRequest struct {
	Lines []saleLineRequest `json:"lines" validate:"required,min=1,dive"`
}

type finalizeRequest struct {
	Lines         []saleLineRequest `json:"lines" validate:"required,min=1,dive"`
	PaymentMethod string            `json:"payment_method" validate:"required"`
	PaymentStatus *string           `json:"payment_status,omitempty"`
	CustomerName  *string           `json:"customer_name,omitempty"`
	CustomerPhone *string           `json:"customer_phone,omitempty"`
}

func (req finalizeRequest) toInput() (salesvc.FinalizeInput, error) {
	method, err := enums.ParsePaymentMethod(strings.TrimSpace(req.PaymentMethod))
	if err != nil {
		return salesvc.FinalizeInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method")
	}

	var status *enums.PaymentStatus
	if req.PaymentStatus != nil {
		parsed, err := enums.ParsePaymentStatus(strings.TrimSpace(*req.PaymentStatus))
		if err != nil {
			return salesvc.FinalizeInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment status")
		}
		status = &parsed
	}

	return salesvc.FinalizeInput{
		Lines:         toLineRequests(req.Lines),
		PaymentMethod: method,
		PaymentStatus: status,
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
	}, nil
}

func toLineRequests(lines []saleLineRequest) []salesvc.LineRequest {
	out := make([]salesvc.LineRequest, 0, len(lines))
	for _, line := range lines {
		out = append(out, salesvc.LineRequest{
			ItemID:            line.ItemID,
			Quantity:          line.Quantity,
			UnitPriceOverride: line.UnitPriceOverride,
		})
	}
	return out
}

type previewLineResponse struct {
	ItemID         uuid.UUID       `json:"item_id"`
	ItemName       string          `json:"item_name,omitempty"`
	Quantity       int             `json:"quantity"`
	Valid          bool            `json:"valid"`
	Reason         string          `json:"reason"`
	Message        string          `json:"message,omitempty"`
	Available      int             `json:"available"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	LineTotal      decimal.Decimal `json:"line_total"`
	StockAfterSale int             `json:"stock_after_sale"`
}

type previewResponse struct {
	OverallValid bool                  `json:"overall_valid"`
	Lines        []previewLineResponse `json:"lines"`
	Subtotal     decimal.Decimal       `json:"subtotal"`
	Tax          decimal.Decimal       `json:"tax"`
	Discount     decimal.Decimal       `json:"discount"`
	Total        decimal.Decimal       `json:"total"`
}

func newPreviewResponse(result *salesvc.PreviewResult) previewResponse {
	if result == nil {
		return previewResponse{}
	}
	lines := make([]previewLineResponse, 0, len(result.Lines))
	for _, verdict := range result.Lines {
		lines = append(lines, newPreviewLineResponse(verdict))
	}
	return previewResponse{
		OverallValid: result.OverallValid,
		Lines:        lines,
		Subtotal:     result.Subtotal,
		Tax:          result.Tax,
		Discount:     result.Discount,
		Total:        result.Total,
	}
}

func newPreviewLineResponse(verdict availability.LineVerdict) previewLineResponse {
	return previewLineResponse{
		ItemID:         verdict.ItemID,
		ItemName:       verdict.ItemName,
		Quantity:       verdict.Quantity,
		Valid:          verdict.Valid,
		Reason:         string(verdict.Reason),
		Message:        verdict.Message,
		Available:      verdict.Available,
		UnitPrice:      verdict.UnitPrice,
		LineTotal:      verdict.LineTotal,
		StockAfterSale: verdict.StockAfterSale,
	}
}
