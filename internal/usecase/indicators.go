package usecase

import (
	"math"

	"github.com/vitos/trade_bridge/internal/domain"
)

// emaSeries is a recursive exponential moving average seeded from the first
// value, alpha = 2/(period+1).
func emaSeries(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	alpha := 2.0 / (float64(period) + 1.0)
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

func emaLast(values []float64, period int) float64 {
	s := emaSeries(values, period)
	if len(s) == 0 {
		return 0
	}
	return s[len(s)-1]
}

// rsi is the relative strength index over the trailing window, using simple
// averages of gains and losses. Returns the neutral 50 when there is not
// enough history or the window is flat.
func rsi(closes []float64, period int) float64 {
	if period <= 0 || len(closes) < period+1 {
		return 50
	}
	var gain, loss float64
	for i := len(closes) - period; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	avgGain := gain / float64(period)
	avgLoss := loss / float64(period)
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// macdHistogram returns the last histogram value: MACD line minus its signal
// line, both built from full-series EMAs.
func macdHistogram(closes []float64, fast, slow, signalPeriod int) float64 {
	if len(closes) == 0 {
		return 0
	}
	emaFast := emaSeries(closes, fast)
	emaSlow := emaSeries(closes, slow)
	macd := make([]float64, len(closes))
	for i := range closes {
		macd[i] = emaFast[i] - emaSlow[i]
	}
	signal := emaSeries(macd, signalPeriod)
	last := len(closes) - 1
	return macd[last] - signal[last]
}

// bollinger returns the upper band, middle SMA and lower band over the
// trailing window. The deviation uses the sample standard deviation.
func bollinger(closes []float64, period int, stdDevMult float64) (upper, middle, lower float64) {
	if period <= 1 || len(closes) < period {
		return 0, 0, 0
	}
	window := closes[len(closes)-period:]
	var sum float64
	for _, v := range window {
		sum += v
	}
	mean := sum / float64(period)

	var sq float64
	for _, v := range window {
		sq += (v - mean) * (v - mean)
	}
	std := math.Sqrt(sq / float64(period-1))
	return mean + stdDevMult*std, mean, mean - stdDevMult*std
}

// vwap is the volume weighted average of the typical price (H+L+C)/3 over
// the whole slice.
func vwap(candles []domain.Candle) float64 {
	var pv, vol float64
	for _, c := range candles {
		typical := (c.High + c.Low + c.Close) / 3
		pv += typical * c.Volume
		vol += c.Volume
	}
	if vol == 0 {
		return 0
	}
	return pv / vol
}

// averageVolume is the simple moving average of volume over the trailing
// window.
func averageVolume(candles []domain.Candle, period int) float64 {
	if period <= 0 || len(candles) < period {
		return 0
	}
	var sum float64
	for _, c := range candles[len(candles)-period:] {
		sum += c.Volume
	}
	return sum / float64(period)
}
