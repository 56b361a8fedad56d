package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	stocksvc "github.com/medicart/pos-backend/internal/stock"
	"github.com/medicart/pos-backend/pkg/db/models"
	pkgerrors "github.com/medicart/pos-backend/pkg/errors"
)

type stubStockService struct {
	snapshot   *stocksvc.Snapshot
	candidates []stocksvc.Snapshot
	set        *stocksvc.SetStockInput
	restocked  int
	err        error
}

func (s *stubStockService) GetSnapshot(context.Context, uuid.UUID) (*stocksvc.Snapshot, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.snapshot, nil
}

func (s *stubStockService) Record(context.Context, uuid.UUID) (*models.StockRecord, error) {
	panic("unimplemented")
}

func (s *stubStockService) SetStock(_ context.Context, _ uuid.UUID, input stocksvc.SetStockInput) (*stocksvc.Snapshot, error) {
	s.set = &input
	if s.err != nil {
		return nil, s.err
	}
	return s.snapshot, nil
}

func (s *stubStockService) Restock(_ context.Context, _ uuid.UUID, amount int) (*stocksvc.Snapshot, error) {
	s.restocked = amount
	if s.err != nil {
		return nil, s.err
	}
	return s.snapshot, nil
}

func (s *stubStockService) ConditionalDecrement(context.Context, uuid.UUID, int) (*models.StockRecord, error) {
	panic("unimplemented")
}

func (s *stubStockService) Increment(context.Context, uuid.UUID, int) (*models.StockRecord, error) {
	panic("unimplemented")
}

func (s *stubStockService) ListReorderCandidates(context.Context) ([]stocksvc.Snapshot, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.candidates, nil
}

func TestGetStock(t *testing.T) {
	logg := testLogger()
	itemID := uuid.New()

	t.Run("missing record", func(t *testing.T) {
		stub := &stubStockService{err: pkgerrors.New(pkgerrors.CodeNoStockRecord, "no stock record for item")}
		req := withItemID(httptest.NewRequest(http.MethodGet, "/api/v1/stock/"+itemID.String(), nil), itemID.String())
		rec := httptest.NewRecorder()
		GetStock(stub, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422 got %d", rec.Code)
		}
	})

	t.Run("success", func(t *testing.T) {
		expiry := time.Date(2027, 3, 1, 0, 0, 0, 0, time.UTC)
		stub := &stubStockService{snapshot: &stocksvc.Snapshot{
			ItemID:           itemID,
			QuantityOnHand:   4,
			ReorderThreshold: 5,
			ExpiresAt:        &expiry,
			NeedsReorder:     true,
		}}
		req := withItemID(httptest.NewRequest(http.MethodGet, "/api/v1/stock/"+itemID.String(), nil), itemID.String())
		rec := httptest.NewRecorder()
		GetStock(stub, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200 got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), `"needs_reorder":true`) {
			t.Fatalf("expected reorder flag in body, got %s", rec.Body.String())
		}
	})
}

func TestSetStock(t *testing.T) {
	logg := testLogger()
	itemID := uuid.New()

	t.Run("success", func(t *testing.T) {
		stub := &stubStockService{snapshot: &stocksvc.Snapshot{ItemID: itemID, QuantityOnHand: 50, ReorderThreshold: 10}}
		body := `{"quantity_on_hand":50,"reorder_threshold":10}`
		req := withItemID(httptest.NewRequest(http.MethodPut, "/api/v1/stock/"+itemID.String(), strings.NewReader(body)), itemID.String())
		rec := httptest.NewRecorder()
		SetStock(stub, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
		}
		if stub.set == nil || stub.set.QuantityOnHand != 50 || stub.set.ReorderThreshold != 10 {
			t.Fatalf("expected input forwarded, got %+v", stub.set)
		}
	})

	t.Run("negative quantity rejected", func(t *testing.T) {
		body := `{"quantity_on_hand":-1,"reorder_threshold":0}`
		req := withItemID(httptest.NewRequest(http.MethodPut, "/api/v1/stock/"+itemID.String(), strings.NewReader(body)), itemID.String())
		rec := httptest.NewRecorder()
		SetStock(&stubStockService{}, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 got %d", rec.Code)
		}
	})
}

func TestRestock(t *testing.T) {
	logg := testLogger()
	itemID := uuid.New()

	t.Run("success", func(t *testing.T) {
		stub := &stubStockService{snapshot: &stocksvc.Snapshot{ItemID: itemID, QuantityOnHand: 60}}
		req := withItemID(httptest.NewRequest(http.MethodPost, "/api/v1/stock/"+itemID.String()+"/restock", strings.NewReader(`{"amount":10}`)), itemID.String())
		rec := httptest.NewRecorder()
		Restock(stub, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200 got %d", rec.Code)
		}
		if stub.restocked != 10 {
			t.Fatalf("expected restock amount 10, got %d", stub.restocked)
		}
	})

	t.Run("zero amount rejected", func(t *testing.T) {
		req := withItemID(httptest.NewRequest(http.MethodPost, "/api/v1/stock/"+itemID.String()+"/restock", strings.NewReader(`{"amount":0}`)), itemID.String())
		rec := httptest.NewRecorder()
		Restock(&stubStockService{}, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 got %d", rec.Code)
		}
	})
}

func TestListReorderCandidates(t *testing.T) {
	logg := testLogger()
	stub := &stubStockService{candidates: []stocksvc.Snapshot{
		{ItemID: uuid.New(), QuantityOnHand: 2, ReorderThreshold: 5, NeedsReorder: true},
	}}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/stock/reorder", nil)
	rec := httptest.NewRecorder()
	ListReorderCandidates(stub, logg).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"quantity_on_hand":2`) {
		t.Fatalf("expected candidate in body, got %s", rec.Body.String())
	}
}
