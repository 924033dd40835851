// Package ta holds the raw indicator math. Functions return NaN when the
// input is too short; callers decide on fallbacks.
package ta

import (
	"math"
	"sort"
)

func SMA(vals []float64, n int) float64 {
	if len(vals) < n || n <= 0 {
		return math.NaN()
	}
	sum := 0.0
	for i := len(vals) - n; i < len(vals); i++ {
		sum += vals[i]
	}
	return sum / float64(n)
}

func StdDev(vals []float64, n int) float64 {
	if len(vals) < n || n <= 0 {
		return math.NaN()
	}
	m := SMA(vals, n)
	s := 0.0
	for i := len(vals) - n; i < len(vals); i++ {
		d := vals[i] - m
		s += d * d
	}
	return math.Sqrt(s / float64(n))
}

// SampleStdDev uses the n-1 denominator.
func SampleStdDev(vals []float64) float64 {
	if len(vals) < 2 {
		return math.NaN()
	}
	m := 0.0
	for _, v := range vals {
		m += v
	}
	m /= float64(len(vals))
	s := 0.0
	for _, v := range vals {
		s += (v - m) * (v - m)
	}
	return math.Sqrt(s / float64(len(vals)-1))
}

func Bollinger(closes []float64, n int, k float64) (mid, up, low float64) {
	mid = SMA(closes, n)
	sd := StdDev(closes, n)
	up = mid + k*sd
	low = mid - k*sd
	return
}

// BandWidths returns the relative Bollinger width (up-low)/mid for every
// window ending at index n-1 .. len-1.
func BandWidths(closes []float64, n int, k float64) []float64 {
	if len(closes) < n || n <= 0 {
		return nil
	}
	out := make([]float64, 0, len(closes)-n+1)
	for end := n; end <= len(closes); end++ {
		mid, up, low := Bollinger(closes[:end], n, k)
		if mid == 0 {
			out = append(out, math.NaN())
			continue
		}
		out = append(out, (up-low)/mid)
	}
	return out
}

// RSI is Wilder's relative strength index.
func RSI(closes []float64, period int) float64 {
	if len(closes) < period+1 || period <= 0 {
		return math.NaN()
	}
	gain, loss := 0.0, 0.0
	for i := 1; i <= period; i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	avgGain := gain / float64(period)
	avgLoss := loss / float64(period)
	for i := period + 1; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		g, l := 0.0, 0.0
		if d > 0 {
			g = d
		} else {
			l = -d
		}
		avgGain = (avgGain*float64(period-1) + g) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + l) / float64(period)
	}
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

func trueRange(highs, lows, closes []float64, i int) float64 {
	tr := highs[i] - lows[i]
	if i == 0 {
		return tr
	}
	return math.Max(tr, math.Max(math.Abs(highs[i]-closes[i-1]), math.Abs(lows[i]-closes[i-1])))
}

// ATR is Wilder-smoothed average true range.
func ATR(highs, lows, closes []float64, period int) float64 {
	if len(highs) != len(lows) || len(lows) != len(closes) {
		return math.NaN()
	}
	if period <= 0 || len(closes) < period+1 {
		return math.NaN()
	}
	sum := 0.0
	for i := 1; i <= period; i++ {
		sum += trueRange(highs, lows, closes, i)
	}
	atr := sum / float64(period)
	for i := period + 1; i < len(closes); i++ {
		atr = (atr*float64(period-1) + trueRange(highs, lows, closes, i)) / float64(period)
	}
	return atr
}

// ADX is Wilder's average directional index. It needs 2*period+1 bars.
func ADX(highs, lows, closes []float64, period int) float64 {
	n := len(closes)
	if len(highs) != n || len(lows) != n || period <= 0 || n < 2*period+1 {
		return math.NaN()
	}

	var trS, pdmS, ndmS float64
	dxs := make([]float64, 0, n)
	for i := 1; i < n; i++ {
		up := highs[i] - highs[i-1]
		down := lows[i-1] - lows[i]
		pdm, ndm := 0.0, 0.0
		if up > down && up > 0 {
			pdm = up
		}
		if down > up && down > 0 {
			ndm = down
		}
		tr := trueRange(highs, lows, closes, i)

		if i <= period {
			trS += tr
			pdmS += pdm
			ndmS += ndm
			if i < period {
				continue
			}
		} else {
			trS = trS - trS/float64(period) + tr
			pdmS = pdmS - pdmS/float64(period) + pdm
			ndmS = ndmS - ndmS/float64(period) + ndm
		}
		if trS == 0 {
			dxs = append(dxs, 0)
			continue
		}
		pdi := 100 * pdmS / trS
		ndi := 100 * ndmS / trS
		if pdi+ndi == 0 {
			dxs = append(dxs, 0)
			continue
		}
		dxs = append(dxs, 100*math.Abs(pdi-ndi)/(pdi+ndi))
	}
	if len(dxs) < period {
		return math.NaN()
	}
	adx := 0.0
	for i := 0; i < period; i++ {
		adx += dxs[i]
	}
	adx /= float64(period)
	for i := period; i < len(dxs); i++ {
		adx = (adx*float64(period-1) + dxs[i]) / float64(period)
	}
	return adx
}

// LogReturns skips pairs with a non-positive price.
func LogReturns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	out := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] <= 0 || closes[i] <= 0 {
			continue
		}
		out = append(out, math.Log(closes[i]/closes[i-1]))
	}
	return out
}

// RealizedVol is the annualised sample stdev of the last n log returns.
func RealizedVol(closes []float64, n int, periodsPerYear float64) float64 {
	r := LogReturns(closes)
	if n <= 1 || len(r) < n {
		return math.NaN()
	}
	return SampleStdDev(r[len(r)-n:]) * math.Sqrt(periodsPerYear)
}

// RollingRealizedVol returns RealizedVol for every window ending at each
// close from index n onward.
func RollingRealizedVol(closes []float64, n int, periodsPerYear float64) []float64 {
	if len(closes) < n+1 {
		return nil
	}
	out := make([]float64, 0, len(closes)-n)
	for end := n + 1; end <= len(closes); end++ {
		out = append(out, RealizedVol(closes[:end], n, periodsPerYear))
	}
	return out
}

// PercentileRank is the share (0-100) of finite values in series that are
// at or below v.
func PercentileRank(series []float64, v float64) float64 {
	if math.IsNaN(v) {
		return math.NaN()
	}
	vals := make([]float64, 0, len(series))
	for _, s := range series {
		if !math.IsNaN(s) && !math.IsInf(s, 0) {
			vals = append(vals, s)
		}
	}
	if len(vals) == 0 {
		return math.NaN()
	}
	sort.Float64s(vals)
	idx := sort.Search(len(vals), func(i int) bool { return vals[i] > v })
	return 100 * float64(idx) / float64(len(vals))
}

// Correlation is Pearson's r over the common tail of a and b.
func Correlation(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n < 3 {
		return math.NaN()
	}
	a, b = a[len(a)-n:], b[len(b)-n:]
	var ma, mb float64
	for i := 0; i < n; i++ {
		ma += a[i]
		mb += b[i]
	}
	ma /= float64(n)
	mb /= float64(n)
	var cov, va, vb float64
	for i := 0; i < n; i++ {
		da, db := a[i]-ma, b[i]-mb
		cov += da * db
		va += da * da
		vb += db * db
	}
	if va == 0 || vb == 0 {
		return math.NaN()
	}
	return cov / math.Sqrt(va*vb)
}

// Finite reports whether v is neither NaN nor infinite.
func Finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
