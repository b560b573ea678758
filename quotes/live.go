package quotes

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/hedger/market"
)

// StreamHandler receives events from a Streamer.
type StreamHandler struct {
	OnConnect func()
	OnPrice   func(market.PricePoint)
}

// Streamer is a push-based provider. Stream blocks until ctx is done or
// the connection drops.
type Streamer interface {
	Name() string
	Stream(ctx context.Context, instruments []string, h StreamHandler) error
}

// Live runs a Streamer as its own task and serves the latest pushed
// price through the Source interface, so a poll cycle reads the buffered
// value instead of fetching.
type Live struct {
	streamer    Streamer
	instruments []string
	maxAge      time.Duration
	backoff     Backoff
	log         zerolog.Logger
	now         func() time.Time

	store     *market.PriceStore
	connected atomic.Bool

	mu      sync.Mutex
	lastErr error
}

// NewLive wraps s. Prices older than maxAge are not served.
func NewLive(s Streamer, instruments []string, maxAge time.Duration, log zerolog.Logger) *Live {
	return &Live{
		streamer:    s,
		instruments: instruments,
		maxAge:      maxAge,
		backoff:     DefaultBackoff(),
		log:         log.With().Str("stream", s.Name()).Logger(),
		now:         time.Now,
		store:       market.NewPriceStore(),
	}
}

func (l *Live) Name() string { return l.streamer.Name() + "-stream" }

// Connected reports whether the stream is currently up.
func (l *Live) Connected() bool { return l.connected.Load() }

// LastError returns the error that ended the most recent connection.
func (l *Live) LastError() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastErr
}

func (l *Live) setErr(err error) {
	l.mu.Lock()
	l.lastErr = err
	l.mu.Unlock()
}

// Run keeps the stream connected until ctx is cancelled.
func (l *Live) Run(ctx context.Context) error {
	attempt := 0
	h := StreamHandler{
		OnConnect: func() {
			// a healthy connection starts the backoff over
			attempt = 0
			l.connected.Store(true)
			l.log.Info().Strs("instruments", l.instruments).Msg("stream connected")
		},
		OnPrice: func(p market.PricePoint) {
			if !p.Valid() {
				return
			}
			p.Source = l.Name()
			l.store.Set(p)
		},
	}

	for {
		if ctx.Err() != nil {
			l.connected.Store(false)
			return ctx.Err()
		}

		err := l.streamer.Stream(ctx, l.instruments, h)
		l.connected.Store(false)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err == nil {
			err = errors.New("stream closed by server")
		}
		l.setErr(err)

		attempt++
		wait := l.backoff.Next(attempt)
		l.log.Warn().Err(err).Dur("retry_in", wait).Msg("stream disconnected, retrying")
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Fetch returns the newest pushed price for instrument.
func (l *Live) Fetch(ctx context.Context, instrument string) (market.PricePoint, error) {
	if err := ctx.Err(); err != nil {
		return market.PricePoint{}, Classify(l.Name(), instrument, err)
	}
	p, err := l.store.Get(instrument)
	if err != nil {
		if !l.Connected() {
			return market.PricePoint{}, Fail(Unreachable, l.Name(), instrument, l.disconnectedErr())
		}
		return market.PricePoint{}, Fail(Timeout, l.Name(), instrument, errors.New("no price pushed yet"))
	}
	if l.maxAge > 0 {
		if age := l.now().Sub(p.Time); age > l.maxAge {
			kind := Timeout
			if !l.Connected() {
				kind = Unreachable
			}
			return market.PricePoint{}, Fail(kind, l.Name(), instrument, fmt.Errorf("latest price is %s old", age.Round(time.Millisecond)))
		}
	}
	return Check(l.Name(), p)
}

func (l *Live) disconnectedErr() error {
	if err := l.LastError(); err != nil {
		return fmt.Errorf("stream disconnected: %w", err)
	}
	return errors.New("stream not connected")
}
