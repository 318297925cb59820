// Package risk computes stop-loss and take-profit price targets. The
// calculator is a pure function of its inputs so the reconciler can rebuild
// targets for a position it did not open.
package risk

import (
	"math"

	"consensus-trading-bot/config"
	"consensus-trading-bot/internal/binance"
)

// Targets are the computed protective prices, rounded to the venue's price
// precision.
type Targets struct {
	StopLoss   float64
	TakeProfit float64

	// UsedATR reports whether the ATR path produced the targets; false
	// means the fixed-percentage fallback was taken.
	UsedATR bool
}

// Calculator derives targets in one of two modes: ATR-scaled distances when
// enabled and the ATR value is usable, fixed percentages otherwise.
type Calculator struct {
	atr    config.ATRConfig
	market config.MarketConfig
}

// NewCalculator creates a target calculator for one market instance.
func NewCalculator(atr config.ATRConfig, market config.MarketConfig) *Calculator {
	return &Calculator{atr: atr, market: market}
}

// Compute returns the stop-loss and take-profit for a position entered at
// entryPrice. atrValue of zero (the warmup fallback) forces the fixed
// percentage path; so does either ATR target landing at or below zero,
// which can happen on low-priced symbols with a wide ATR.
func (c *Calculator) Compute(side string, entryPrice, atrValue float64, precision int) Targets {
	if c.atr.Enabled && atrValue > 0 {
		t := c.atrTargets(side, entryPrice, atrValue)
		if t.StopLoss > 0 && t.TakeProfit > 0 {
			t.StopLoss = roundTo(t.StopLoss, precision)
			t.TakeProfit = roundTo(t.TakeProfit, precision)
			return t
		}
	}

	return c.ComputeFixed(side, entryPrice, precision)
}

// ComputeFixed always takes the fixed-percentage path. Used when rebuilding
// targets for a recovered position, where the entry-time ATR is unknown and
// the percentage fallback is the conservative choice.
func (c *Calculator) ComputeFixed(side string, entryPrice float64, precision int) Targets {
	t := c.fixedTargets(side, entryPrice)
	t.StopLoss = roundTo(t.StopLoss, precision)
	t.TakeProfit = roundTo(t.TakeProfit, precision)
	return t
}

func (c *Calculator) atrTargets(side string, entryPrice, atrValue float64) Targets {
	slDist := atrValue * c.atr.SLMultiplier
	tpDist := atrValue * c.atr.TPMultiplier
	if side == binance.SideBuy {
		return Targets{StopLoss: entryPrice - slDist, TakeProfit: entryPrice + tpDist, UsedATR: true}
	}
	return Targets{StopLoss: entryPrice + slDist, TakeProfit: entryPrice - tpDist, UsedATR: true}
}

func (c *Calculator) fixedTargets(side string, entryPrice float64) Targets {
	sl := c.market.StopLossPct / 100
	tp := c.market.TakeProfitPct / 100
	if side == binance.SideBuy {
		return Targets{StopLoss: entryPrice * (1 - sl), TakeProfit: entryPrice * (1 + tp)}
	}
	return Targets{StopLoss: entryPrice * (1 + sl), TakeProfit: entryPrice * (1 - tp)}
}

// Breached reports whether the current price has crossed either target for a
// position on the given side, and which one.
func Breached(side string, price float64, t Targets) (hit bool, reason string) {
	if side == binance.SideBuy {
		switch {
		case t.StopLoss > 0 && price <= t.StopLoss:
			return true, "stop_loss"
		case t.TakeProfit > 0 && price >= t.TakeProfit:
			return true, "take_profit"
		}
		return false, ""
	}
	switch {
	case t.StopLoss > 0 && price >= t.StopLoss:
		return true, "stop_loss"
	case t.TakeProfit > 0 && price <= t.TakeProfit:
		return true, "take_profit"
	}
	return false, ""
}

func roundTo(v float64, precision int) float64 {
	if precision < 0 {
		return v
	}
	pow := math.Pow(10, float64(precision))
	return math.Round(v*pow) / pow
}
