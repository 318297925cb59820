// Package strategy turns indicator values into the entry/exit consensus the
// decision loop acts on. Entry conditions OR a fresh crossover event with a
// persistent state check per indicator family; exit conditions are
// event-only so a lingering state cannot re-trigger exits every cycle.
//
// The event-OR-state entry rule means an entry can re-qualify on every
// cycle while the state holds, without a new crossover. That mirrors the
// strategy as deployed; do not "fix" it to event-only without a config
// migration.
package strategy

import (
	"consensus-trading-bot/config"
	"consensus-trading-bot/internal/indicator"
)

// Evaluation is the consensus result for one direction: how many enabled
// conditions were satisfied, out of how many, and the names of the
// satisfied ones for the log stream.
type Evaluation struct {
	Satisfied int
	Total     int
	Reasons   []string
}

// Meets reports whether the consensus threshold is reached.
func (e Evaluation) Meets(min int) bool {
	return e.Satisfied >= min
}

// Evaluator applies the configured toggles and thresholds. A toggled-off
// condition contributes to neither numerator nor denominator.
type Evaluator struct {
	cfg config.IndicatorConfig
}

// NewEvaluator creates an evaluator from the indicator configuration.
func NewEvaluator(cfg config.IndicatorConfig) *Evaluator {
	return &Evaluator{cfg: cfg}
}

func (e *Evaluator) add(ev *Evaluation, ok bool, reason string) {
	ev.Total++
	if ok {
		ev.Satisfied++
		ev.Reasons = append(ev.Reasons, reason)
	}
}

// LongEntry evaluates the seven long-entry conditions on the latest closed
// bar and its predecessor.
func (e *Evaluator) LongEntry(latest, prev indicator.Bar) Evaluation {
	var ev Evaluation
	if e.cfg.UseSMA {
		event := prev.SMAShort <= prev.SMALong && latest.SMAShort > latest.SMALong
		state := latest.SMAShort > latest.SMALong
		e.add(&ev, event || state, "sma_bullish")
	}
	if e.cfg.UseRSI {
		rising := latest.RSI > prev.RSI
		e.add(&ev, rising && latest.RSI < e.cfg.RSIOverbought, "rsi_rising")
	}
	if e.cfg.UseMACD {
		event := prev.MACD <= prev.MACDSignal && latest.MACD > latest.MACDSignal
		state := latest.MACD > latest.MACDSignal
		e.add(&ev, event || state, "macd_bullish")
	}
	if e.cfg.UseBollinger {
		event := prev.Close <= prev.BBLower && latest.Close > latest.BBLower
		state := latest.Close > latest.BBLower
		e.add(&ev, event || state, "above_bb_lower")
	}
	if e.cfg.UseStoch {
		event := prev.StochK < e.cfg.StochOversold && latest.StochK > e.cfg.StochOversold
		e.add(&ev, event, "stoch_oversold_exit")
	}
	if e.cfg.UseStochCross {
		event := prev.StochK <= prev.StochD && latest.StochK > latest.StochD
		e.add(&ev, event, "stoch_bullish_cross")
	}
	if e.cfg.UseVolume {
		e.add(&ev, latest.Volume > latest.VolumeSMA*e.cfg.VolumeMultiplier, "volume_surge")
	}
	return ev
}

// ShortEntry mirrors LongEntry for the short side.
func (e *Evaluator) ShortEntry(latest, prev indicator.Bar) Evaluation {
	var ev Evaluation
	if e.cfg.UseSMA {
		event := prev.SMAShort >= prev.SMALong && latest.SMAShort < latest.SMALong
		state := latest.SMAShort < latest.SMALong
		e.add(&ev, event || state, "sma_bearish")
	}
	if e.cfg.UseRSI {
		falling := latest.RSI < prev.RSI
		e.add(&ev, falling && latest.RSI > e.cfg.RSIOversold, "rsi_falling")
	}
	if e.cfg.UseMACD {
		event := prev.MACD >= prev.MACDSignal && latest.MACD < latest.MACDSignal
		state := latest.MACD < latest.MACDSignal
		e.add(&ev, event || state, "macd_bearish")
	}
	if e.cfg.UseBollinger {
		event := prev.Close >= prev.BBUpper && latest.Close < latest.BBUpper
		state := latest.Close < latest.BBUpper
		e.add(&ev, event || state, "below_bb_upper")
	}
	if e.cfg.UseStoch {
		event := prev.StochK > e.cfg.StochOverbought && latest.StochK < e.cfg.StochOverbought
		e.add(&ev, event, "stoch_overbought_exit")
	}
	if e.cfg.UseStochCross {
		event := prev.StochK >= prev.StochD && latest.StochK < latest.StochD
		e.add(&ev, event, "stoch_bearish_cross")
	}
	if e.cfg.UseVolume {
		e.add(&ev, latest.Volume > latest.VolumeSMA*e.cfg.VolumeMultiplier, "volume_surge")
	}
	return ev
}

// LongExit evaluates the five event-only conditions for closing a long.
func (e *Evaluator) LongExit(latest, prev indicator.Bar) Evaluation {
	var ev Evaluation
	if e.cfg.UseSMA {
		e.add(&ev, prev.SMAShort >= prev.SMALong && latest.SMAShort < latest.SMALong, "death_cross")
	}
	if e.cfg.UseRSI {
		e.add(&ev, prev.RSI >= 45 && latest.RSI < 45, "rsi_below_45")
	}
	if e.cfg.UseMACD {
		e.add(&ev, prev.MACD >= prev.MACDSignal && latest.MACD < latest.MACDSignal, "macd_cross_down")
	}
	if e.cfg.UseBollinger {
		// The breach is measured against the previous bar's band.
		e.add(&ev, prev.Close >= prev.BBLower && latest.Close < prev.BBLower, "close_below_bb_lower")
	}
	if e.cfg.UseStochCross {
		e.add(&ev, prev.StochK >= prev.StochD && latest.StochK < latest.StochD, "stoch_cross_down")
	}
	return ev
}

// ShortExit mirrors LongExit for the short side.
func (e *Evaluator) ShortExit(latest, prev indicator.Bar) Evaluation {
	var ev Evaluation
	if e.cfg.UseSMA {
		e.add(&ev, prev.SMAShort <= prev.SMALong && latest.SMAShort > latest.SMALong, "golden_cross")
	}
	if e.cfg.UseRSI {
		e.add(&ev, prev.RSI <= 55 && latest.RSI > 55, "rsi_above_55")
	}
	if e.cfg.UseMACD {
		e.add(&ev, prev.MACD <= prev.MACDSignal && latest.MACD > latest.MACDSignal, "macd_cross_up")
	}
	if e.cfg.UseBollinger {
		e.add(&ev, prev.Close <= prev.BBUpper && latest.Close > prev.BBUpper, "close_above_bb_upper")
	}
	if e.cfg.UseStochCross {
		e.add(&ev, prev.StochK <= prev.StochD && latest.StochK > latest.StochD, "stoch_cross_up")
	}
	return ev
}
