package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/medicart/pos-backend/internal/stock"
	"github.com/medicart/pos-backend/pkg/logger"
)

type stubReorderLister struct {
	snapshots []stock.Snapshot
	err       error
	calls     int
}

func (s *stubReorderLister) ListReorderCandidates(context.Context) ([]stock.Snapshot, error) {
	s.calls++
	return s.snapshots, s.err
}

func TestLowStockJobRequiresDeps(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "cron-test"})
	if _, err := NewLowStockJob(LowStockJobParams{Stock: &stubReorderLister{}}); err == nil {
		t.Fatal("expected error without logger")
	}
	if _, err := NewLowStockJob(LowStockJobParams{Logger: logg}); err == nil {
		t.Fatal("expected error without stock service")
	}
}

func TestLowStockJobRunsSweep(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "cron-test"})
	lister := &stubReorderLister{
		snapshots: []stock.Snapshot{
			{ItemID: uuid.New(), QuantityOnHand: 1, ReorderThreshold: 5, NeedsReorder: true},
		},
	}
	job, err := NewLowStockJob(LowStockJobParams{Logger: logg, Stock: lister})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job.Name() != "low-stock-sweep" {
		t.Fatalf("unexpected job name %q", job.Name())
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lister.calls != 1 {
		t.Fatalf("expected a single sweep, got %d", lister.calls)
	}
}

func TestLowStockJobPropagatesErrors(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "cron-test"})
	lister := &stubReorderLister{err: errors.New("db down")}
	job, err := NewLowStockJob(LowStockJobParams{Logger: logg, Stock: lister})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected sweep error to propagate")
	}
}
