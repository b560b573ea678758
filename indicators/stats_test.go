package indicators

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func linear(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

func constant(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestMeanStdDev(t *testing.T) {
	t.Parallel()

	xs := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	assert.InDelta(t, 5.0, Mean(xs), 1e-12)
	assert.InDelta(t, 2.0, StdDev(xs), 1e-12)

	assert.Equal(t, 0.0, Mean(nil))
	assert.Equal(t, 0.0, StdDev([]float64{3}))
}

func TestPearson(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		x, y    []float64
		min     int
		want    float64
		lowConf bool
	}{
		{"perfect anti-correlation", linear(20, 800, 0.5), linear(20, 2000, -3), 15, -1, false},
		{"perfect correlation", linear(20, 800, 0.5), linear(20, 2000, 2), 15, 1, false},
		{"constant x", constant(20, 800), linear(20, 2000, -3), 15, 0, true},
		{"constant y", linear(20, 800, 1), constant(20, 2000), 15, 0, true},
		{"too few samples", linear(10, 800, 1), linear(10, 2000, -1), 15, 0, true},
		{"single point", []float64{1}, []float64{2}, 1, 0, true},
		{"empty", nil, nil, 0, 0, true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Pearson(tt.x, tt.y, tt.min)
			assert.InDelta(t, tt.want, got.V, 1e-6)
			assert.Equal(t, tt.lowConf, got.LowConfidence)
			assert.False(t, math.IsNaN(got.V))
		})
	}
}

func TestPearsonAlignsNewestEnds(t *testing.T) {
	t.Parallel()

	// y has a noisy prefix; only the overlapping tail is correlated.
	x := linear(15, 1, 1)
	y := append([]float64{50, -20, 99, 3, 3}, linear(15, 100, -2)...)

	got := Pearson(x, y, 15)
	assert.False(t, got.LowConfidence)
	assert.InDelta(t, -1.0, got.V, 1e-9)
}

func TestZScore(t *testing.T) {
	t.Parallel()

	window := []float64{2, 4, 4, 4, 5, 5, 7, 9}

	z := ZScore(9, window, 5)
	assert.False(t, z.LowConfidence)
	assert.InDelta(t, 2.0, z.V, 1e-12)

	z = ZScore(1, window, 5)
	assert.InDelta(t, -2.0, z.V, 1e-12)

	flat := ZScore(800, constant(20, 800), 15)
	assert.True(t, flat.LowConfidence)
	assert.Equal(t, 0.0, flat.V)

	short := ZScore(9, window, 20)
	assert.True(t, short.LowConfidence)
	assert.Equal(t, 0.0, short.V)

	nan := ZScore(math.NaN(), window, 5)
	assert.True(t, nan.LowConfidence)
	assert.False(t, math.IsNaN(nan.V))
}

func TestTrendDelta(t *testing.T) {
	t.Parallel()

	vals := []float64{10, 10, 10, 10, 12, 14, 16, 18}

	d := TrendDelta(vals, 4, 5)
	assert.False(t, d.LowConfidence)
	assert.InDelta(t, 18-15.0, d.V, 1e-12)

	down := TrendDelta([]float64{20, 19, 18, 17, 16}, 5, 5)
	assert.InDelta(t, -2.0, down.V, 1e-12)

	assert.True(t, TrendDelta(vals, 0, 1).LowConfidence)
	assert.True(t, TrendDelta(vals, 9, 1).LowConfidence)
	assert.True(t, TrendDelta(vals, 4, 20).LowConfidence, "sample floor re-checked")
}
