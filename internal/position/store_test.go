package position

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"consensus-trading-bot/internal/binance"
)

func tempStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "position.json")
	return NewStore(path, "linear", nil, zerolog.Nop())
}

func TestStoreMissingFileMeansFlat(t *testing.T) {
	s := tempStore(t)
	rec, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if rec != nil {
		t.Errorf("got %+v, want nil for missing file", rec)
	}
}

func TestStoreRoundTrip(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()

	want := &Record{
		Side:       binance.SideSell,
		EntryPrice: 43250.5,
		Quantity:   3,
		StopLoss:   44115.5,
		TakeProfit: 41088,
		EntryTime:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		OrderID:    987654,
	}
	if err := s.Save(ctx, want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got == nil || *got != *want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestStoreDelete(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()

	if err := s.Save(ctx, &Record{Side: binance.SideBuy, EntryPrice: 100, Quantity: 1}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Delete(ctx); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	rec, err := s.Load()
	if err != nil {
		t.Fatalf("Load after delete: %v", err)
	}
	if rec != nil {
		t.Errorf("record survived delete: %+v", rec)
	}

	// Deleting again is a no-op, not an error.
	if err := s.Delete(ctx); err != nil {
		t.Errorf("second Delete: %v", err)
	}
}

func TestStoreCorruptFileIsError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "position.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	s := NewStore(path, "linear", nil, zerolog.Nop())
	if _, err := s.Load(); err == nil {
		t.Error("corrupt state file loaded without error")
	}
}
