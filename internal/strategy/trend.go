package strategy

import (
	"consensus-trading-bot/config"
	"consensus-trading-bot/internal/binance"
)

// Trend is the coarse higher-timeframe bias used to gate entries.
type Trend string

const (
	TrendUp      Trend = "UP"
	TrendDown    Trend = "DOWN"
	TrendNeutral Trend = "NEUTRAL"
)

// TrendFilter computes the higher-timeframe SMA bias.
type TrendFilter struct {
	cfg config.HTFConfig
}

// NewTrendFilter creates a trend filter from the HTF configuration.
func NewTrendFilter(cfg config.HTFConfig) *TrendFilter {
	return &TrendFilter{cfg: cfg}
}

// Evaluate returns the bias from the latest closed higher-timeframe bar.
// Insufficient history fails open with NEUTRAL; the caller logs a warning
// and trading proceeds ungated.
func (t *TrendFilter) Evaluate(klines []binance.Kline) Trend {
	// The final bar may still be forming; the closed bar is len-2, and the
	// long SMA needs a full window ending there.
	if len(klines) < t.cfg.SMALong+1 {
		return TrendNeutral
	}

	closedIdx := len(klines) - 2
	short := smaAt(klines, closedIdx, t.cfg.SMAShort)
	long := smaAt(klines, closedIdx, t.cfg.SMALong)

	switch {
	case short > long:
		return TrendUp
	case short < long:
		return TrendDown
	default:
		return TrendNeutral
	}
}

// AllowsLong reports whether a long entry passes the gate.
func (t *TrendFilter) AllowsLong(trend Trend) bool {
	return !t.cfg.Enabled || trend == TrendUp
}

// AllowsShort reports whether a short entry passes the gate.
func (t *TrendFilter) AllowsShort(trend Trend) bool {
	return !t.cfg.Enabled || trend == TrendDown
}

// Enabled reports whether the filter gates entries at all.
func (t *TrendFilter) Enabled() bool { return t.cfg.Enabled }

func smaAt(klines []binance.Kline, idx, period int) float64 {
	sum := 0.0
	for i := idx - period + 1; i <= idx; i++ {
		sum += klines[i].Close
	}
	return sum / float64(period)
}
