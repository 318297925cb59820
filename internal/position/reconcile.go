package position

import (
	"math"
	"time"

	"consensus-trading-bot/internal/binance"
)

// quantityTolerance absorbs fee-driven dust between the recorded quantity
// and the venue's reported amount.
const quantityTolerance = 1e-9

// Outcome is the result of reconciling the local record against the venue.
// Record is the corrected state (nil means flat); Conflict names the
// mismatch for the log stream, empty when the two views agree.
type Outcome struct {
	Record   *Record
	Conflict string
}

// Reconcile resolves the local record against the venue's reported position.
// The venue always wins: a position the bot does not remember is adopted
// with zero targets (rebuilt downstream), and a remembered position the
// venue no longer holds is dropped.
func Reconcile(rec *Record, truth *binance.Truth) Outcome {
	venueFlat := truth.IsFlat()

	switch {
	case rec == nil && venueFlat:
		return Outcome{}

	case rec == nil && !venueFlat:
		return Outcome{
			Record:   adopt(truth),
			Conflict: "venue position with no local record",
		}

	case rec != nil && venueFlat:
		return Outcome{Conflict: "local record but venue is flat"}
	}

	// Both sides see a position. Venue quantity and entry price win; the
	// recorded targets survive because the venue does not know them.
	out := Outcome{Record: rec}
	venueQty := math.Abs(truth.Amount)
	venueSide := sideOf(truth.Amount)

	if rec.Side != venueSide {
		fresh := adopt(truth)
		return Outcome{Record: fresh, Conflict: "recorded side disagrees with venue"}
	}
	if math.Abs(rec.Quantity-venueQty) > quantityTolerance {
		rec.Quantity = venueQty
		out.Conflict = "recorded quantity disagrees with venue"
	}
	if truth.EntryPrice > 0 && rec.EntryPrice != truth.EntryPrice {
		rec.EntryPrice = truth.EntryPrice
	}
	return out
}

// adopt synthesizes a record from venue truth. Targets are left at zero so
// the risk calculator rebuilds them on the next holding cycle.
func adopt(truth *binance.Truth) *Record {
	return &Record{
		Side:       sideOf(truth.Amount),
		EntryPrice: truth.EntryPrice,
		Quantity:   math.Abs(truth.Amount),
		EntryTime:  time.Now().UTC(),
	}
}

func sideOf(amount float64) string {
	if amount < 0 {
		return binance.SideSell
	}
	return binance.SideBuy
}
