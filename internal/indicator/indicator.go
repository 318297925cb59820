// Package indicator derives the technical indicator frame from an ordered
// candle series. Calculation is a pure function of candle history; values
// inside the warmup window are NaN and are masked by Bar's fallbacks.
package indicator

import (
	"math"

	"consensus-trading-bot/internal/binance"
)

// Fixed lookback windows, matching the strategy's tuning.
const (
	SMAShortLen  = 10
	SMALongLen   = 50
	RSILen       = 14
	BBLen        = 20
	BBStdDev     = 2.0
	MACDFast     = 12
	MACDSlow     = 26
	MACDSignal   = 9
	StochKLen    = 14
	StochSmooth  = 3
	StochDLen    = 3
	VolumeSMALen = 20
)

// Frame holds the computed indicator series, index-aligned to the input
// candle series.
type Frame struct {
	Close  []float64
	Volume []float64

	SMAShort   []float64
	SMALong    []float64
	RSI        []float64
	MACD       []float64
	MACDSignal []float64
	BBLower    []float64
	BBUpper    []float64
	StochK     []float64
	StochD     []float64
	VolumeSMA  []float64
	ATR        []float64

	atrLength int
}

// Bar is the indicator snapshot at one bar with warmup NaNs replaced by the
// neutral fallbacks the evaluator expects: moving averages and bands fall
// back to the close, oscillators to their midpoints, ATR to zero.
type Bar struct {
	Close      float64
	Volume     float64
	SMAShort   float64
	SMALong    float64
	RSI        float64
	MACD       float64
	MACDSignal float64
	BBLower    float64
	BBUpper    float64
	StochK     float64
	StochD     float64
	VolumeSMA  float64
	ATR        float64
}

// MinBars is the number of candles required before the latest closed bar
// has a fully defined frame. Fetch requests should ask for well above this
// (200 is the conventional limit).
func MinBars(atrLength int) int {
	maxWindow := SMALongLen
	if w := MACDSlow + MACDSignal - 1; w > maxWindow {
		maxWindow = w
	}
	if w := StochKLen + StochSmooth + StochDLen - 2; w > maxWindow {
		maxWindow = w
	}
	if w := atrLength + 1; w > maxWindow {
		maxWindow = w
	}
	return maxWindow
}

// Calculate computes the full indicator frame for the candle series.
func Calculate(klines []binance.Kline, atrLength int) *Frame {
	n := len(klines)
	f := &Frame{
		Close:     make([]float64, n),
		Volume:    make([]float64, n),
		atrLength: atrLength,
	}
	highs := make([]float64, n)
	lows := make([]float64, n)
	for i, k := range klines {
		f.Close[i] = k.Close
		f.Volume[i] = k.Volume
		highs[i] = k.High
		lows[i] = k.Low
	}

	f.SMAShort = smaSeries(f.Close, SMAShortLen)
	f.SMALong = smaSeries(f.Close, SMALongLen)
	f.RSI = rsiSeries(f.Close, RSILen)
	f.MACD, f.MACDSignal = macdSeries(f.Close, MACDFast, MACDSlow, MACDSignal)
	f.BBLower, f.BBUpper = bollingerSeries(f.Close, BBLen, BBStdDev)
	f.StochK, f.StochD = stochSeries(highs, lows, f.Close, StochKLen, StochSmooth, StochDLen)
	f.VolumeSMA = smaSeries(f.Volume, VolumeSMALen)
	f.ATR = atrSeries(highs, lows, f.Close, atrLength)

	return f
}

// Len returns the number of bars in the frame.
func (f *Frame) Len() int { return len(f.Close) }

// Defined reports whether every indicator at index i is past its warmup.
// The evaluator must never consume a bar below MinBars-1.
func (f *Frame) Defined(i int) bool {
	return i >= MinBars(f.atrLength)-1 && i < f.Len()
}

// Bar returns the snapshot at index i with fallbacks applied.
func (f *Frame) Bar(i int) Bar {
	close := f.Close[i]
	volume := f.Volume[i]
	return Bar{
		Close:      close,
		Volume:     volume,
		SMAShort:   orDefault(f.SMAShort[i], close),
		SMALong:    orDefault(f.SMALong[i], close),
		RSI:        orDefault(f.RSI[i], 50),
		MACD:       orDefault(f.MACD[i], 0),
		MACDSignal: orDefault(f.MACDSignal[i], 0),
		BBLower:    orDefault(f.BBLower[i], close),
		BBUpper:    orDefault(f.BBUpper[i], close),
		StochK:     orDefault(f.StochK[i], 50),
		StochD:     orDefault(f.StochD[i], 50),
		VolumeSMA:  orDefault(f.VolumeSMA[i], volume),
		ATR:        orDefault(f.ATR[i], 0),
	}
}

func orDefault(v, fallback float64) float64 {
	if math.IsNaN(v) {
		return fallback
	}
	return v
}

func nanSeries(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = math.NaN()
	}
	return s
}

func smaSeries(vals []float64, period int) []float64 {
	out := nanSeries(len(vals))
	if len(vals) < period || period <= 0 {
		return out
	}
	sum := 0.0
	for i, v := range vals {
		sum += v
		if i >= period {
			sum -= vals[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// emaSeries seeds with the SMA of the first period values, the usual
// convention for a stable warmup.
func emaSeries(vals []float64, period int) []float64 {
	out := nanSeries(len(vals))
	if len(vals) < period || period <= 0 {
		return out
	}
	sum := 0.0
	for i := 0; i < period; i++ {
		sum += vals[i]
	}
	ema := sum / float64(period)
	out[period-1] = ema

	multiplier := 2.0 / float64(period+1)
	for i := period; i < len(vals); i++ {
		ema = vals[i]*multiplier + ema*(1-multiplier)
		out[i] = ema
	}
	return out
}

// rsiSeries uses Wilder's smoothing of average gains and losses.
func rsiSeries(closes []float64, period int) []float64 {
	out := nanSeries(len(closes))
	if len(closes) < period+1 {
		return out
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss += -change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	out[period] = rsiFrom(avgGain, avgLoss)

	for i := period + 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out[i] = rsiFrom(avgGain, avgLoss)
	}
	return out
}

func rsiFrom(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

func macdSeries(closes []float64, fast, slow, signal int) (macd, signalLine []float64) {
	n := len(closes)
	macd = nanSeries(n)
	signalLine = nanSeries(n)

	fastEMA := emaSeries(closes, fast)
	slowEMA := emaSeries(closes, slow)
	for i := 0; i < n; i++ {
		if !math.IsNaN(fastEMA[i]) && !math.IsNaN(slowEMA[i]) {
			macd[i] = fastEMA[i] - slowEMA[i]
		}
	}

	// Signal line is an EMA over the defined portion of the MACD line.
	start := slow - 1
	if start >= n {
		return macd, signalLine
	}
	defined := macd[start:]
	sig := emaSeries(defined, signal)
	for i, v := range sig {
		signalLine[start+i] = v
	}
	return macd, signalLine
}

func bollingerSeries(closes []float64, period int, stdDevMult float64) (lower, upper []float64) {
	n := len(closes)
	lower = nanSeries(n)
	upper = nanSeries(n)
	middle := smaSeries(closes, period)

	for i := period - 1; i < n; i++ {
		variance := 0.0
		for j := i - period + 1; j <= i; j++ {
			diff := closes[j] - middle[i]
			variance += diff * diff
		}
		stdDev := math.Sqrt(variance / float64(period))
		lower[i] = middle[i] - stdDev*stdDevMult
		upper[i] = middle[i] + stdDev*stdDevMult
	}
	return lower, upper
}

func stochSeries(highs, lows, closes []float64, kLen, smooth, dLen int) (k, d []float64) {
	n := len(closes)
	raw := nanSeries(n)

	for i := kLen - 1; i < n; i++ {
		highest := highs[i]
		lowest := lows[i]
		for j := i - kLen + 1; j <= i; j++ {
			if highs[j] > highest {
				highest = highs[j]
			}
			if lows[j] < lowest {
				lowest = lows[j]
			}
		}
		if highest == lowest {
			raw[i] = 50
		} else {
			raw[i] = (closes[i] - lowest) / (highest - lowest) * 100
		}
	}

	k = smoothNaN(raw, smooth)
	d = smoothNaN(k, dLen)
	return k, d
}

// smoothNaN is an SMA that skips the leading NaN warmup of its input.
func smoothNaN(vals []float64, period int) []float64 {
	out := nanSeries(len(vals))
	start := 0
	for start < len(vals) && math.IsNaN(vals[start]) {
		start++
	}
	defined := vals[start:]
	sma := smaSeries(defined, period)
	for i, v := range sma {
		out[start+i] = v
	}
	return out
}

// atrSeries uses Wilder's moving average of the true range.
func atrSeries(highs, lows, closes []float64, period int) []float64 {
	n := len(closes)
	out := nanSeries(n)
	if n < period+1 || period <= 0 {
		return out
	}

	tr := make([]float64, n)
	for i := 1; i < n; i++ {
		hl := highs[i] - lows[i]
		hc := math.Abs(highs[i] - closes[i-1])
		lc := math.Abs(lows[i] - closes[i-1])
		tr[i] = math.Max(hl, math.Max(hc, lc))
	}

	sum := 0.0
	for i := 1; i <= period; i++ {
		sum += tr[i]
	}
	atr := sum / float64(period)
	out[period] = atr

	for i := period + 1; i < n; i++ {
		atr = (atr*float64(period-1) + tr[i]) / float64(period)
		out[i] = atr
	}
	return out
}
