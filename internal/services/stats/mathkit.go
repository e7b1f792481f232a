// Package stats holds the numeric primitives used by feature providers,
// normalization and backtest metrics. Every function is pure and never fails;
// degenerate input yields a documented zero value.
package stats

import (
	"math"
	"sort"
)

func Mean(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range v {
		sum += x
	}
	return sum / float64(len(v))
}

// StandardDeviation is the sample standard deviation (n-1). Returns 0 if n < 2.
func StandardDeviation(v []float64) float64 {
	n := len(v)
	if n < 2 {
		return 0
	}
	m := Mean(v)
	ss := 0.0
	for _, x := range v {
		d := x - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(n-1))
}

// PopulationStdDev divides by n. Returns 0 for empty input.
func PopulationStdDev(v []float64) float64 {
	n := len(v)
	if n == 0 {
		return 0
	}
	m := Mean(v)
	ss := 0.0
	for _, x := range v {
		d := x - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(n))
}

// LinearRegressionSlope is the closed-form OLS slope of y on x.
func LinearRegressionSlope(x, y []float64) float64 {
	n := len(x)
	if n < 2 || n != len(y) {
		return 0
	}
	var sx, sy, sxy, sxx float64
	for i := 0; i < n; i++ {
		sx += x[i]
		sy += y[i]
		sxy += x[i] * y[i]
		sxx += x[i] * x[i]
	}
	fn := float64(n)
	den := fn*sxx - sx*sx
	if math.Abs(den) < 1e-12 {
		return 0
	}
	return (fn*sxy - sx*sy) / den
}

// Intercept of the OLS fit of y on x.
func Intercept(x, y []float64) float64 {
	if len(x) == 0 || len(x) != len(y) {
		return 0
	}
	return Mean(y) - LinearRegressionSlope(x, y)*Mean(x)
}

// IndexSlope regresses y against 0..n-1.
func IndexSlope(y []float64) float64 {
	x := make([]float64, len(y))
	for i := range x {
		x[i] = float64(i)
	}
	return LinearRegressionSlope(x, y)
}

// Correlation is Pearson's r; 0 when either side has no variance.
func Correlation(x, y []float64) float64 {
	n := len(x)
	if n < 2 || n != len(y) {
		return 0
	}
	mx, my := Mean(x), Mean(y)
	var cov, vx, vy float64
	for i := 0; i < n; i++ {
		dx, dy := x[i]-mx, y[i]-my
		cov += dx * dy
		vx += dx * dx
		vy += dy * dy
	}
	if vx == 0 || vy == 0 {
		return 0
	}
	return cov / math.Sqrt(vx*vy)
}

// Percentile interpolates linearly on a sorted copy at index (p/100)*(n-1).
func Percentile(v []float64, p float64) (float64, bool) {
	if len(v) == 0 || p < 0 || p > 100 || math.IsNaN(p) {
		return 0, false
	}
	s := append([]float64(nil), v...)
	sort.Float64s(s)

	idx := p / 100 * float64(len(s)-1)
	lo := int(math.Floor(idx))
	hi := int(math.Ceil(idx))
	if lo == hi {
		return s[lo], true
	}
	frac := idx - float64(lo)
	return s[lo] + (s[hi]-s[lo])*frac, true
}

// MovingAverage returns one simple average per full window.
func MovingAverage(v []float64, window int) []float64 {
	if window <= 0 || window > len(v) {
		return []float64{}
	}
	out := make([]float64, 0, len(v)-window+1)
	sum := 0.0
	for i, x := range v {
		sum += x
		if i >= window {
			sum -= v[i-window]
		}
		if i >= window-1 {
			out = append(out, sum/float64(window))
		}
	}
	return out
}

// ExponentialMovingAverage is seeded with v[0].
func ExponentialMovingAverage(v []float64, alpha float64) []float64 {
	if len(v) == 0 || alpha <= 0 || alpha > 1 {
		return []float64{}
	}
	out := make([]float64, len(v))
	out[0] = v[0]
	for i := 1; i < len(v); i++ {
		out[i] = alpha*v[i] + (1-alpha)*out[i-1]
	}
	return out
}

// RSI uses Wilder smoothing and yields one value per bar after the seed period.
func RSI(prices []float64, period int) []float64 {
	if period <= 0 || len(prices) < period+1 {
		return []float64{}
	}
	var gain, loss float64
	for i := 1; i <= period; i++ {
		d := prices[i] - prices[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	avgGain := gain / float64(period)
	avgLoss := loss / float64(period)

	out := make([]float64, 0, len(prices)-period)
	out = append(out, rsiValue(avgGain, avgLoss))
	p := float64(period)
	for i := period + 1; i < len(prices); i++ {
		d := prices[i] - prices[i-1]
		g, l := 0.0, 0.0
		if d > 0 {
			g = d
		} else {
			l = -d
		}
		avgGain = (avgGain*(p-1) + g) / p
		avgLoss = (avgLoss*(p-1) + l) / p
		out = append(out, rsiValue(avgGain, avgLoss))
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

// LogReturns skips pairs with a non-positive price.
func LogReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return nil
	}
	out := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		prev, cur := prices[i-1], prices[i]
		if prev <= 0 || cur <= 0 {
			continue
		}
		out = append(out, math.Log(cur/prev))
	}
	return out
}

// SimpleReturns skips pairs whose base price is zero or negative.
func SimpleReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return nil
	}
	out := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] <= 0 {
			continue
		}
		out = append(out, (prices[i]-prices[i-1])/prices[i-1])
	}
	return out
}

func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// AllPositive reports whether every value is > 0.
func AllPositive(v []float64) bool {
	for _, x := range v {
		if x <= 0 {
			return false
		}
	}
	return true
}
