package indicator

import (
	"math"
	"testing"

	"consensus-trading-bot/internal/binance"
)

func klinesFromCloses(closes []float64) []binance.Kline {
	klines := make([]binance.Kline, len(closes))
	for i, c := range closes {
		klines[i] = binance.Kline{
			Open:   c,
			High:   c + 1,
			Low:    c - 1,
			Close:  c,
			Volume: 100,
		}
	}
	return klines
}

func risingCloses(n int) []float64 {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = float64(i + 1)
	}
	return closes
}

func TestMinBars(t *testing.T) {
	tests := []struct {
		name      string
		atrLength int
		want      int
	}{
		{"default atr", 14, 50},
		{"long atr dominates", 120, 121},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MinBars(tt.atrLength); got != tt.want {
				t.Errorf("MinBars(%d) = %d, want %d", tt.atrLength, got, tt.want)
			}
		})
	}
}

func TestSMAValues(t *testing.T) {
	f := Calculate(klinesFromCloses(risingCloses(60)), 14)

	// Average of 51..60.
	if got := f.SMAShort[59]; math.Abs(got-55.5) > 1e-9 {
		t.Errorf("SMAShort[59] = %v, want 55.5", got)
	}
	// Average of 11..60.
	if got := f.SMALong[59]; math.Abs(got-35.5) > 1e-9 {
		t.Errorf("SMALong[59] = %v, want 35.5", got)
	}
	if !math.IsNaN(f.SMALong[48]) {
		t.Errorf("SMALong[48] = %v, want NaN inside warmup", f.SMALong[48])
	}
}

func TestRSIBounds(t *testing.T) {
	f := Calculate(klinesFromCloses(risingCloses(60)), 14)

	// A strictly rising series has no losses.
	if got := f.RSI[59]; got != 100 {
		t.Errorf("RSI on strictly rising closes = %v, want 100", got)
	}

	falling := make([]float64, 60)
	for i := range falling {
		falling[i] = float64(120 - i)
	}
	f = Calculate(klinesFromCloses(falling), 14)
	if got := f.RSI[59]; got != 0 {
		t.Errorf("RSI on strictly falling closes = %v, want 0", got)
	}
}

func TestStochFlatSeries(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100
	}
	klines := klinesFromCloses(closes)
	for i := range klines {
		klines[i].High = 100
		klines[i].Low = 100
	}
	f := Calculate(klines, 14)

	if got := f.StochK[59]; math.Abs(got-50) > 1e-9 {
		t.Errorf("StochK on flat series = %v, want 50", got)
	}
}

func TestATRConstantRange(t *testing.T) {
	// Every bar spans exactly 2 with no gaps, so TR is constant.
	f := Calculate(klinesFromCloses(risingCloses(60)), 14)
	got := f.ATR[59]
	// TR = max(high-low, |high-prevClose|, |low-prevClose|) = max(2, 2, 0) = 2... gap of 1
	// between closes makes high-prevClose = 2 as well.
	if math.Abs(got-2) > 1e-9 {
		t.Errorf("ATR[59] = %v, want 2", got)
	}
}

func TestBarFallbacks(t *testing.T) {
	f := Calculate(klinesFromCloses(risingCloses(60)), 14)
	bar := f.Bar(0)

	if bar.SMAShort != bar.Close {
		t.Errorf("warmup SMAShort = %v, want close %v", bar.SMAShort, bar.Close)
	}
	if bar.RSI != 50 {
		t.Errorf("warmup RSI = %v, want 50", bar.RSI)
	}
	if bar.MACD != 0 || bar.MACDSignal != 0 {
		t.Errorf("warmup MACD = %v/%v, want 0/0", bar.MACD, bar.MACDSignal)
	}
	if bar.ATR != 0 {
		t.Errorf("warmup ATR = %v, want 0", bar.ATR)
	}
	if bar.VolumeSMA != bar.Volume {
		t.Errorf("warmup VolumeSMA = %v, want volume %v", bar.VolumeSMA, bar.Volume)
	}
}

func TestDefined(t *testing.T) {
	f := Calculate(klinesFromCloses(risingCloses(60)), 14)

	if f.Defined(48) {
		t.Error("Defined(48) = true inside warmup")
	}
	if !f.Defined(49) {
		t.Error("Defined(49) = false at first fully defined bar")
	}
	if f.Defined(60) {
		t.Error("Defined(60) = true past the end")
	}
}

func TestBollingerBracketsClose(t *testing.T) {
	f := Calculate(klinesFromCloses(risingCloses(60)), 14)

	if !(f.BBLower[59] < f.BBUpper[59]) {
		t.Errorf("BBLower[59] = %v not below BBUpper[59] = %v", f.BBLower[59], f.BBUpper[59])
	}
}
