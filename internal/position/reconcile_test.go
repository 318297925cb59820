package position

import (
	"testing"

	"consensus-trading-bot/internal/binance"
)

func TestReconcileBothFlat(t *testing.T) {
	out := Reconcile(nil, &binance.Truth{})
	if out.Record != nil || out.Conflict != "" {
		t.Errorf("got %+v, want empty outcome", out)
	}
}

func TestReconcileAdoptsVenuePosition(t *testing.T) {
	tests := []struct {
		name     string
		amount   float64
		wantSide string
	}{
		{"long", 2.5, binance.SideBuy},
		{"short", -2.5, binance.SideSell},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			truth := &binance.Truth{Amount: tt.amount, EntryPrice: 100, MarkPrice: 101}
			out := Reconcile(nil, truth)

			if out.Conflict == "" {
				t.Error("adoption did not report a conflict")
			}
			rec := out.Record
			if rec == nil {
				t.Fatal("no record adopted")
			}
			if rec.Side != tt.wantSide || rec.Quantity != 2.5 || rec.EntryPrice != 100 {
				t.Errorf("adopted record = %+v", rec)
			}
			// Targets stay at zero so the risk calculator rebuilds them.
			if rec.StopLoss != 0 || rec.TakeProfit != 0 {
				t.Errorf("adopted record has targets: SL %v TP %v", rec.StopLoss, rec.TakeProfit)
			}
		})
	}
}

func TestReconcileDropsStaleRecord(t *testing.T) {
	rec := &Record{Side: binance.SideBuy, EntryPrice: 100, Quantity: 1}
	out := Reconcile(rec, &binance.Truth{})

	if out.Record != nil {
		t.Errorf("stale record survived: %+v", out.Record)
	}
	if out.Conflict == "" {
		t.Error("stale record drop did not report a conflict")
	}
}

func TestReconcileAgreement(t *testing.T) {
	rec := &Record{Side: binance.SideBuy, EntryPrice: 100, Quantity: 1, StopLoss: 98, TakeProfit: 105}
	truth := &binance.Truth{Amount: 1, EntryPrice: 100}

	out := Reconcile(rec, truth)
	if out.Conflict != "" {
		t.Errorf("agreement reported conflict %q", out.Conflict)
	}
	if out.Record != rec {
		t.Error("agreement replaced the record")
	}
	if rec.StopLoss != 98 || rec.TakeProfit != 105 {
		t.Error("agreement touched the targets")
	}
}

func TestReconcileQuantityMismatch(t *testing.T) {
	rec := &Record{Side: binance.SideBuy, EntryPrice: 100, Quantity: 1, StopLoss: 98, TakeProfit: 105}
	truth := &binance.Truth{Amount: 0.7, EntryPrice: 100}

	out := Reconcile(rec, truth)
	if out.Conflict == "" {
		t.Error("quantity mismatch not reported")
	}
	if out.Record.Quantity != 0.7 {
		t.Errorf("quantity = %v, want venue's 0.7", out.Record.Quantity)
	}
	if out.Record.StopLoss != 98 || out.Record.TakeProfit != 105 {
		t.Error("quantity correction dropped the targets")
	}
}

func TestReconcileDustTolerated(t *testing.T) {
	rec := &Record{Side: binance.SideBuy, EntryPrice: 100, Quantity: 1}
	truth := &binance.Truth{Amount: 1 + 1e-12, EntryPrice: 100}

	out := Reconcile(rec, truth)
	if out.Conflict != "" {
		t.Errorf("fee dust reported as conflict %q", out.Conflict)
	}
}

func TestReconcileSideMismatchAdoptsVenue(t *testing.T) {
	rec := &Record{Side: binance.SideBuy, EntryPrice: 100, Quantity: 1, StopLoss: 98, TakeProfit: 105}
	truth := &binance.Truth{Amount: -1, EntryPrice: 102}

	out := Reconcile(rec, truth)
	if out.Conflict == "" {
		t.Error("side mismatch not reported")
	}
	if out.Record.Side != binance.SideSell {
		t.Errorf("side = %v, want venue's SELL", out.Record.Side)
	}
	// Stale long targets must not guard a short position.
	if out.Record.StopLoss != 0 || out.Record.TakeProfit != 0 {
		t.Errorf("side mismatch kept stale targets: %+v", out.Record)
	}
}

func TestReconcileSpotDustIsFlat(t *testing.T) {
	// A spot balance below the venue's minimum quantity is unsellable dust.
	rec := &Record{Side: binance.SideBuy, EntryPrice: 100, Quantity: 0.001}
	truth := &binance.Truth{Amount: 0.00005, MinQty: 0.0001}

	out := Reconcile(rec, truth)
	if out.Record != nil {
		t.Errorf("dust balance kept the record: %+v", out.Record)
	}
}
