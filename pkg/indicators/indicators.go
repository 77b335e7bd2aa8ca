// Package indicators provides technical analysis indicators (RSI, SMA, EMA)
// over bounded price windows.
//
// Every function returns a Series with exactly one entry per input price.
// Entries before enough history exists are undefined (Valid=false) rather
// than NaN, so callers can index "current" and "previous" values safely
// against the original price positions.
package indicators

type Value struct {
	V     float64
	Valid bool
}

// Series is an indicator output aligned index-for-index with its input.
type Series []Value

func undefinedSeries(n int) Series {
	return make(Series, n)
}

// DefinedTail returns the last n defined values, oldest first. It returns
// fewer than n values when the series does not contain that many.
func (s Series) DefinedTail(n int) []float64 {
	out := make([]float64, 0, n)
	for i := len(s) - 1; i >= 0 && len(out) < n; i-- {
		if s[i].Valid {
			out = append(out, s[i].V)
		}
	}
	// reverse into chronological order
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Last returns the most recent defined value.
func (s Series) Last() (float64, bool) {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i].Valid {
			return s[i].V, true
		}
	}
	return 0, false
}

// RSI calculates the Relative Strength Index over the given period using
// Wilder smoothing. The first `period` entries are undefined. When fewer
// than period+1 prices are supplied the whole series is undefined.
func RSI(prices []float64, period int) Series {
	out := undefinedSeries(len(prices))
	if period < 1 || len(prices) < period+1 {
		return out
	}

	gains := make([]float64, len(prices)-1)
	losses := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		delta := prices[i] - prices[i-1]
		if delta > 0 {
			gains[i-1] = delta
		} else {
			losses[i-1] = -delta
		}
	}

	var avgGain, avgLoss float64
	for i := 0; i < period; i++ {
		avgGain += gains[i]
		avgLoss += losses[i]
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	out[period] = Value{V: rsiValue(avgGain, avgLoss), Valid: true}

	for i := period + 1; i < len(prices); i++ {
		avgGain = (avgGain*float64(period-1) + gains[i-1]) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + losses[i-1]) / float64(period)
		out[i] = Value{V: rsiValue(avgGain, avgLoss), Valid: true}
	}

	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// SMA calculates the simple moving average. The first period-1 entries are
// undefined; a series shorter than the period is entirely undefined.
func SMA(prices []float64, period int) Series {
	out := undefinedSeries(len(prices))
	if period < 1 || len(prices) < period {
		return out
	}

	var sum float64
	for i, p := range prices {
		sum += p
		if i >= period {
			sum -= prices[i-period]
		}
		if i >= period-1 {
			out[i] = Value{V: sum / float64(period), Valid: true}
		}
	}
	return out
}

// EMA calculates the exponential moving average with smoothing factor
// 2/(period+1), seeded with the simple mean of the first period values.
func EMA(prices []float64, period int) Series {
	out := undefinedSeries(len(prices))
	if period < 1 || len(prices) < period {
		return out
	}

	var seed float64
	for i := 0; i < period; i++ {
		seed += prices[i]
	}
	seed /= float64(period)
	out[period-1] = Value{V: seed, Valid: true}

	alpha := 2.0 / (float64(period) + 1)
	prev := seed
	for i := period; i < len(prices); i++ {
		prev = alpha*prices[i] + (1-alpha)*prev
		out[i] = Value{V: prev, Valid: true}
	}
	return out
}
