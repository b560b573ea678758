package advisory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/hedger/quotes"
)

func series(start, step float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + step*float64(i)
	}
	return out
}

func TestBuild(t *testing.T) {
	_, ok := Build(series(100, 1, 5), series(10, 1, 5))
	assert.False(t, ok)

	f, ok := Build(series(100, 1, 12), series(10, 1, 12))
	require.True(t, ok)
	assert.InDelta(t, 111.0/110.0-1, f.ReturnsPrimary, 1e-12)
	assert.InDelta(t, 21.0/20.0-1, f.ReturnsReference, 1e-12)
	// last 10 values are 102..111
	assert.InDelta(t, 106.5, f.SMA, 1e-12)
	assert.InDelta(t, 3.0276503540974917, f.Volatility, 1e-9)
}

func TestHTTPProbability(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var f Features
		require.NoError(t, json.NewDecoder(r.Body).Decode(&f))
		assert.InDelta(t, 106.5, f.SMA, 1e-12)
		fmt.Fprint(w, `{"probability":0.72}`)
	}))
	defer server.Close()

	p, err := Score(context.Background(), NewHTTP(server.URL, time.Second), series(100, 1, 12), series(10, 1, 12))
	require.NoError(t, err)
	assert.InDelta(t, 0.72, p, 1e-12)
}

func TestHTTPProbabilityFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   quotes.Kind
	}{
		{"out of range", http.StatusOK, `{"probability":1.5}`, quotes.MalformedResponse},
		{"missing", http.StatusOK, `{}`, quotes.MalformedResponse},
		{"rate limited", http.StatusTooManyRequests, ``, quotes.RateLimited},
		{"server error", http.StatusBadGateway, ``, quotes.Unreachable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer server.Close()

			_, err := NewHTTP(server.URL, time.Second).Probability(context.Background(), Features{})
			require.Error(t, err)
			assert.Equal(t, tt.want, quotes.KindOf(err))
		})
	}
}

func TestScoreNotReady(t *testing.T) {
	_, err := Score(context.Background(), Static{P: 0.5}, nil, nil)
	assert.ErrorIs(t, err, ErrNotReady)
}
