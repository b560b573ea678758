// Package quotes defines the uniform contract every price provider implements.
//
// A Source fetches one PricePoint for one instrument. It honors the caller's
// context deadline and reports every problem as a *Failure so the aggregator
// can fail over without inspecting provider-specific errors.
package quotes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/rustyeddy/hedger/market"
)

// Kind classifies why a fetch failed.
type Kind string

const (
	Timeout           Kind = "TIMEOUT"
	RateLimited       Kind = "RATE_LIMITED"
	MalformedResponse Kind = "MALFORMED_RESPONSE"
	Unreachable       Kind = "UNREACHABLE"
)

// Source is one external price provider.
type Source interface {
	Name() string
	Fetch(ctx context.Context, instrument string) (market.PricePoint, error)
}

// Failure is the only error type a Source returns.
type Failure struct {
	Kind       Kind
	Source     string
	Instrument string
	Err        error
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return fmt.Sprintf("%s %s: %s", f.Source, f.Instrument, f.Kind)
	}
	return fmt.Sprintf("%s %s: %s: %v", f.Source, f.Instrument, f.Kind, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// Fail wraps err as a Failure of the given kind.
func Fail(kind Kind, source, instrument string, err error) *Failure {
	return &Failure{Kind: kind, Source: source, Instrument: instrument, Err: err}
}

// StatusError is returned by HTTP adapters for non-200 responses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return "http " + strconv.Itoa(e.Code) + ": " + e.Body
}

// ErrMalformed marks a response that arrived but could not be used.
var ErrMalformed = errors.New("malformed response")

// Classify turns any error into a *Failure. An existing Failure is returned
// unchanged.
func Classify(source, instrument string, err error) *Failure {
	if err == nil {
		return nil
	}
	var f *Failure
	if errors.As(err, &f) {
		return f
	}

	kind := Unreachable
	var (
		status  *StatusError
		netErr  net.Error
		jsonErr *json.SyntaxError
		typeErr *json.UnmarshalTypeError
		numErr  *strconv.NumError
		timeErr *time.ParseError
	)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = Timeout
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = Timeout
	case errors.As(err, &status) && status.Code == http.StatusTooManyRequests:
		kind = RateLimited
	case errors.Is(err, ErrMalformed),
		errors.As(err, &jsonErr),
		errors.As(err, &typeErr),
		errors.As(err, &numErr),
		errors.As(err, &timeErr),
		errors.Is(err, io.ErrUnexpectedEOF):
		kind = MalformedResponse
	}
	return Fail(kind, source, instrument, err)
}

// KindOf returns the failure kind of err, or "" when err is not a Failure.
func KindOf(err error) Kind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return ""
}

// Check validates a decoded point before it leaves an adapter.
func Check(source string, p market.PricePoint) (market.PricePoint, error) {
	p.Source = source
	if !p.Valid() {
		return market.PricePoint{}, Fail(MalformedResponse, source, p.Instrument,
			fmt.Errorf("%w: price %v at %s", ErrMalformed, p.Price, p.Time))
	}
	return p, nil
}

// Backfiller is implemented by sources that can return recent history,
// oldest first, to warm buffers at startup.
type Backfiller interface {
	Backfill(ctx context.Context, instrument string, n int) ([]market.PricePoint, error)
}
