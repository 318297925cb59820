package binance

import "math"

// Order sides as the venue spells them.
const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// MarketType identifies which of the three market instances an adapter
// serves.
type MarketType string

const (
	MarketLinear  MarketType = "linear"  // USD-M perpetual futures
	MarketInverse MarketType = "inverse" // COIN-M perpetual futures
	MarketSpot    MarketType = "spot"
)

// Kline represents a single candlestick. The last element of a fetched
// series may be an in-progress bar; signal code must only read closed bars.
type Kline struct {
	OpenTime  int64   `json:"openTime"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
	CloseTime int64   `json:"closeTime"`
}

// Truth is the venue's authoritative position report. For futures markets
// Amount is the signed contract amount; for spot it is the free base-asset
// balance and MinQty carries the venue's dust threshold.
type Truth struct {
	Amount     float64 `json:"amount"`
	EntryPrice float64 `json:"entry_price"`
	MarkPrice  float64 `json:"mark_price"`
	MinQty     float64 `json:"min_qty"`
}

// IsFlat reports whether the venue considers the position closed. Futures
// adapters leave MinQty at zero, so any non-zero contract amount counts.
func (t Truth) IsFlat() bool {
	return math.Abs(t.Amount) <= t.MinQty
}

// MarketOrder describes a market order request. Futures and spot sells size
// by Quantity; spot buys size by QuoteQuantity (quote-asset spend).
type MarketOrder struct {
	Symbol        string
	Side          string
	Quantity      float64
	QuoteQuantity float64
	ClientOrderID string
}

// StopOrder describes a protective STOP_MARKET request.
type StopOrder struct {
	Symbol        string
	Side          string
	Quantity      float64
	StopPrice     float64
	ClosePosition bool
}

// OrderFill is the portion of the venue's order response the engine needs.
// AvgPrice is zero when the venue did not report fill prices.
type OrderFill struct {
	OrderID     int64
	AvgPrice    float64
	ExecutedQty float64
}
