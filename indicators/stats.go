package indicators

import "math"

// varianceEpsilon treats a window as flat when its variance is this small
// relative to the squared mean. Prices are never near zero, so a relative
// bound avoids calling float noise "variance".
const varianceEpsilon = 1e-18

// Mean returns the arithmetic mean, or 0 for an empty slice.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// StdDev returns the population standard deviation of xs.
func StdDev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := Mean(xs)
	ss := 0.0
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)))
}

// ZScore returns (current - mean(window)) / stddev(window).
// A window shorter than minSamples, or a flat window, yields a
// low-confidence zero.
func ZScore(current float64, window []float64, minSamples int) Value {
	if len(window) < minSamples || len(window) < 2 || !finite(current) {
		return degenerate()
	}
	m := Mean(window)
	sd := StdDev(window)
	if flat(sd, m) {
		return degenerate()
	}
	z := (current - m) / sd
	if !finite(z) {
		return degenerate()
	}
	return confident(z)
}

// Pearson returns the linear correlation of x and y, aligned on their
// newest ends. Mismatched lengths use the shorter overlap. Fewer than
// minSamples overlapping points, or zero variance in either series, yields
// a low-confidence zero.
func Pearson(x, y []float64, minSamples int) Value {
	n := len(x)
	if len(y) < n {
		n = len(y)
	}
	if n < minSamples || n < 2 {
		return degenerate()
	}
	x = x[len(x)-n:]
	y = y[len(y)-n:]

	mx, my := Mean(x), Mean(y)
	var sxy, sxx, syy float64
	for i := 0; i < n; i++ {
		dx := x[i] - mx
		dy := y[i] - my
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	if flat(math.Sqrt(sxx/float64(n)), mx) || flat(math.Sqrt(syy/float64(n)), my) {
		return degenerate()
	}

	r := sxy / math.Sqrt(sxx*syy)
	if !finite(r) {
		return degenerate()
	}
	// float error can push |r| a hair past 1
	if r > 1 {
		r = 1
	} else if r < -1 {
		r = -1
	}
	return confident(r)
}

// TrendDelta returns current - mean(last k samples) where current is the
// newest value. It captures short-term momentum independent of the longer
// correlation window.
func TrendDelta(values []float64, k, minSamples int) Value {
	if k <= 0 || len(values) < k || len(values) < minSamples {
		return degenerate()
	}
	current := values[len(values)-1]
	d := current - Mean(values[len(values)-k:])
	if !finite(d) {
		return degenerate()
	}
	return confident(d)
}

func flat(sd, mean float64) bool {
	if sd == 0 || !finite(sd) {
		return true
	}
	return sd*sd <= varianceEpsilon*math.Max(1, mean*mean)
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
