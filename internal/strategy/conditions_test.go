package strategy

import (
	"reflect"
	"testing"

	"consensus-trading-bot/config"
	"consensus-trading-bot/internal/indicator"
)

func allToggles() config.IndicatorConfig {
	return config.IndicatorConfig{
		UseSMA:           true,
		UseRSI:           true,
		UseMACD:          true,
		UseBollinger:     true,
		UseStoch:         true,
		UseStochCross:    true,
		UseVolume:        true,
		RSIOversold:      30,
		RSIOverbought:    70,
		StochOversold:    20,
		StochOverbought:  80,
		VolumeMultiplier: 1.2,
	}
}

// neutralBar satisfies no condition in either direction when paired with
// itself: equal SMAs, flat RSI, MACD on its signal, close between the
// bands, stoch mid-range, volume at its average.
func neutralBar() indicator.Bar {
	return indicator.Bar{
		Close:      100,
		Volume:     100,
		SMAShort:   100,
		SMALong:    100,
		RSI:        50,
		MACD:       0,
		MACDSignal: 0,
		BBLower:    95,
		BBUpper:    105,
		StochK:     50,
		StochD:     50,
		VolumeSMA:  100,
	}
}

func TestLongEntryStateWithoutEvent(t *testing.T) {
	// SMA short already above long on both bars: no crossover event, but
	// the state alone satisfies the condition.
	latest := neutralBar()
	latest.SMAShort = 101
	prev := neutralBar()
	prev.SMAShort = 101

	e := NewEvaluator(config.IndicatorConfig{UseSMA: true})
	ev := e.LongEntry(latest, prev)

	if ev.Satisfied != 1 || ev.Total != 1 {
		t.Errorf("got %d/%d, want 1/1", ev.Satisfied, ev.Total)
	}
	if !reflect.DeepEqual(ev.Reasons, []string{"sma_bullish"}) {
		t.Errorf("reasons = %v", ev.Reasons)
	}
}

func TestLongEntryAllConditions(t *testing.T) {
	prev := indicator.Bar{
		Close:      94,
		Volume:     100,
		SMAShort:   99,
		SMALong:    100,
		RSI:        40,
		MACD:       -1,
		MACDSignal: 0,
		BBLower:    95,
		BBUpper:    105,
		StochK:     15,
		StochD:     18,
		VolumeSMA:  100,
	}
	latest := indicator.Bar{
		Close:      101,
		Volume:     150,
		SMAShort:   101,
		SMALong:    100,
		RSI:        55,
		MACD:       1,
		MACDSignal: 0,
		BBLower:    95,
		BBUpper:    105,
		StochK:     25,
		StochD:     20,
		VolumeSMA:  100,
	}

	e := NewEvaluator(allToggles())
	ev := e.LongEntry(latest, prev)

	if ev.Satisfied != 7 || ev.Total != 7 {
		t.Errorf("got %d/%d, want 7/7: %v", ev.Satisfied, ev.Total, ev.Reasons)
	}
}

func TestTogglesShrinkDenominator(t *testing.T) {
	cfg := allToggles()
	cfg.UseStoch = false
	cfg.UseStochCross = false
	cfg.UseVolume = false

	e := NewEvaluator(cfg)
	ev := e.LongEntry(neutralBar(), neutralBar())

	if ev.Total != 4 {
		t.Errorf("Total = %d, want 4 with three toggles off", ev.Total)
	}
}

func TestRSIThresholdBoundary(t *testing.T) {
	tests := []struct {
		name string
		rsi  float64
		want bool
	}{
		{"below overbought passes", 69.9, true},
		{"at overbought fails", 70, false},
		{"above overbought fails", 70.1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prev := neutralBar()
			prev.RSI = tt.rsi - 5
			latest := neutralBar()
			latest.RSI = tt.rsi

			e := NewEvaluator(config.IndicatorConfig{UseRSI: true, RSIOverbought: 70})
			ev := e.LongEntry(latest, prev)
			if got := ev.Satisfied == 1; got != tt.want {
				t.Errorf("rsi %v satisfied = %v, want %v", tt.rsi, got, tt.want)
			}
		})
	}
}

func TestLongExitIsEventOnly(t *testing.T) {
	// Bearish SMA state on both bars: a long exit needs the cross itself,
	// not the lingering state.
	latest := neutralBar()
	latest.SMAShort = 99
	prev := neutralBar()
	prev.SMAShort = 99

	e := NewEvaluator(config.IndicatorConfig{UseSMA: true})
	ev := e.LongExit(latest, prev)
	if ev.Satisfied != 0 {
		t.Errorf("state without event satisfied exit: %v", ev.Reasons)
	}

	// Now the actual cross.
	prev.SMAShort = 101
	ev = e.LongExit(latest, prev)
	if ev.Satisfied != 1 || ev.Reasons[0] != "death_cross" {
		t.Errorf("death cross not detected: %d %v", ev.Satisfied, ev.Reasons)
	}
}

func TestLongExitRSIBreach(t *testing.T) {
	prev := neutralBar()
	prev.RSI = 46
	latest := neutralBar()
	latest.RSI = 44

	e := NewEvaluator(config.IndicatorConfig{UseRSI: true})
	ev := e.LongExit(latest, prev)
	if ev.Satisfied != 1 || ev.Reasons[0] != "rsi_below_45" {
		t.Errorf("rsi breach not detected: %d %v", ev.Satisfied, ev.Reasons)
	}

	// Already below on both bars: no fresh event.
	prev.RSI = 44
	ev = e.LongExit(latest, prev)
	if ev.Satisfied != 0 {
		t.Error("lingering rsi state satisfied exit")
	}
}

func TestLongExitBollingerUsesPreviousBand(t *testing.T) {
	prev := neutralBar()
	prev.Close = 96
	prev.BBLower = 95
	latest := neutralBar()
	// Below the previous band even though above its own.
	latest.Close = 94
	latest.BBLower = 93

	e := NewEvaluator(config.IndicatorConfig{UseBollinger: true})
	ev := e.LongExit(latest, prev)
	if ev.Satisfied != 1 {
		t.Errorf("breach of previous band not detected: %v", ev.Reasons)
	}
}

func TestShortEntryMirrors(t *testing.T) {
	prev := neutralBar()
	prev.SMAShort = 101
	prev.RSI = 60
	prev.StochK = 85
	latest := neutralBar()
	latest.SMAShort = 99
	latest.RSI = 50
	latest.StochK = 75

	cfg := config.IndicatorConfig{
		UseSMA: true, UseRSI: true, UseStoch: true,
		RSIOversold: 30, StochOverbought: 80,
	}
	e := NewEvaluator(cfg)
	ev := e.ShortEntry(latest, prev)

	want := []string{"sma_bearish", "rsi_falling", "stoch_overbought_exit"}
	if !reflect.DeepEqual(ev.Reasons, want) {
		t.Errorf("reasons = %v, want %v", ev.Reasons, want)
	}
}

func TestShortExitGoldenCross(t *testing.T) {
	prev := neutralBar()
	prev.SMAShort = 99
	latest := neutralBar()
	latest.SMAShort = 101

	e := NewEvaluator(config.IndicatorConfig{UseSMA: true})
	ev := e.ShortExit(latest, prev)
	if ev.Satisfied != 1 || ev.Reasons[0] != "golden_cross" {
		t.Errorf("golden cross not detected: %d %v", ev.Satisfied, ev.Reasons)
	}
}

func TestMeets(t *testing.T) {
	tests := []struct {
		name      string
		satisfied int
		min       int
		want      bool
	}{
		{"below threshold", 3, 4, false},
		{"at threshold", 4, 4, true},
		{"above threshold", 5, 4, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := Evaluation{Satisfied: tt.satisfied, Total: 7}
			if got := ev.Meets(tt.min); got != tt.want {
				t.Errorf("Meets(%d) with %d satisfied = %v, want %v", tt.min, tt.satisfied, got, tt.want)
			}
		})
	}
}
