package quotes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/hedger/market"
)

var t0 = time.Date(2026, 2, 2, 15, 0, 0, 0, time.UTC)

func TestClassify(t *testing.T) {
	t.Parallel()

	var syntax *json.SyntaxError
	err := json.Unmarshal([]byte("{bad"), &struct{}{})
	require.True(t, errors.As(err, &syntax))

	_, numErr := strconv.ParseFloat("abc", 64)
	_, timeErr := time.Parse(time.RFC3339, "yesterday")
	truncated := json.NewDecoder(strings.NewReader(`{"prices":[`)).Decode(&struct{}{})
	require.ErrorIs(t, truncated, io.ErrUnexpectedEOF)

	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"deadline", context.DeadlineExceeded, Timeout},
		{"wrapped deadline", fmt.Errorf("do request: %w", context.DeadlineExceeded), Timeout},
		{"429", &StatusError{Code: 429, Body: "slow down"}, RateLimited},
		{"500", &StatusError{Code: 500}, Unreachable},
		{"json syntax", err, MalformedResponse},
		{"parse float", numErr, MalformedResponse},
		{"parse time", fmt.Errorf("parse time: %w", timeErr), MalformedResponse},
		{"truncated body", fmt.Errorf("decode response: %w", truncated), MalformedResponse},
		{"sentinel", fmt.Errorf("%w: no price", ErrMalformed), MalformedResponse},
		{"other", errors.New("connection refused"), Unreachable},
		{"cancelled", context.Canceled, Unreachable},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := Classify("oanda", "USD_CLP", tt.err)
			require.NotNil(t, f)
			assert.Equal(t, tt.want, f.Kind)
			assert.Equal(t, "oanda", f.Source)
			assert.Equal(t, "USD_CLP", f.Instrument)
			assert.Equal(t, tt.want, KindOf(f))
		})
	}

	assert.Nil(t, Classify("x", "y", nil))
	orig := Fail(RateLimited, "a", "b", nil)
	assert.Same(t, orig, Classify("other", "other", fmt.Errorf("wrap: %w", orig)))
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
}

func TestCheckRejectsNonPositive(t *testing.T) {
	t.Parallel()

	_, err := Check("yahoo", market.PricePoint{Instrument: "GC=F", Time: t0, Price: 0})
	require.Error(t, err)
	assert.Equal(t, MalformedResponse, KindOf(err))

	p, err := Check("yahoo", market.PricePoint{Instrument: "GC=F", Time: t0, Price: 2050})
	require.NoError(t, err)
	assert.Equal(t, "yahoo", p.Source)
}

func TestStaticQueueAndFailures(t *testing.T) {
	t.Parallel()

	s := NewStatic("replay")
	ctx := context.Background()

	_, err := s.Fetch(ctx, "USD_CLP")
	assert.Equal(t, Unreachable, KindOf(err))

	s.Push(
		market.PricePoint{Instrument: "USD_CLP", Time: t0, Price: 950},
		market.PricePoint{Instrument: "USD_CLP", Time: t0.Add(time.Minute), Price: 951},
	)
	p, err := s.Fetch(ctx, "USD_CLP")
	require.NoError(t, err)
	assert.Equal(t, 950.0, p.Price)
	p, _ = s.Fetch(ctx, "USD_CLP")
	assert.Equal(t, 951.0, p.Price)
	p, _ = s.Fetch(ctx, "USD_CLP")
	assert.Equal(t, 951.0, p.Price, "last price repeats once the queue drains")

	s.FailWith("USD_CLP", RateLimited)
	_, err = s.Fetch(ctx, "USD_CLP")
	assert.Equal(t, RateLimited, KindOf(err))
	s.FailWith("USD_CLP", "")
	_, err = s.Fetch(ctx, "USD_CLP")
	assert.NoError(t, err)

	assert.Equal(t, 6, s.Calls("USD_CLP"))
}

func TestFuncClassifiesErrors(t *testing.T) {
	t.Parallel()

	f := Func{ID: "slow", Fn: func(ctx context.Context, instrument string) (market.PricePoint, error) {
		<-ctx.Done()
		return market.PricePoint{}, ctx.Err()
	}}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := f.Fetch(ctx, "USD_CLP")
	assert.Equal(t, Timeout, KindOf(err))
	assert.Equal(t, "slow", f.Name())
}

func TestBackoffNext(t *testing.T) {
	t.Parallel()

	b := Backoff{Min: 100 * time.Millisecond, Max: time.Second, Factor: 2}
	assert.Equal(t, 100*time.Millisecond, b.Next(0))
	assert.Equal(t, 100*time.Millisecond, b.Next(1))
	assert.Equal(t, 200*time.Millisecond, b.Next(2))
	assert.Equal(t, 800*time.Millisecond, b.Next(4))
	assert.Equal(t, time.Second, b.Next(10))

	b.Jitter = 0.5
	for i := 0; i < 20; i++ {
		d := b.Next(2)
		assert.GreaterOrEqual(t, d, 100*time.Millisecond)
		assert.LessOrEqual(t, d, 300*time.Millisecond)
	}
}
