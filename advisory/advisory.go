// Package advisory fetches the optional ML probability that accompanies a
// Verdict. The model lives outside this process; the engine only consumes
// its score and never gates a signal on it.
package advisory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/rustyeddy/hedger/indicators"
	"github.com/rustyeddy/hedger/quotes"
)

const Name = "advisory"

// Window is the rolling length used for volatility and SMA features.
const Window = 10

// Features are the model inputs, computed from primary and reference
// history.
type Features struct {
	ReturnsPrimary   float64 `json:"returns_primary"`
	ReturnsReference float64 `json:"returns_reference"`
	Volatility       float64 `json:"volatility"`
	SMA              float64 `json:"sma_10"`
}

// Build derives Features from price series ordered oldest to newest. It
// reports false when either series is too short.
func Build(primary, reference []float64) (Features, bool) {
	if len(primary) < Window || len(reference) < 2 {
		return Features{}, false
	}
	sma, err := indicators.SMA(primary, Window)
	if err != nil {
		return Features{}, false
	}
	return Features{
		ReturnsPrimary:   pctChange(primary),
		ReturnsReference: pctChange(reference),
		Volatility:       sampleStdDev(primary[len(primary)-Window:]),
		SMA:              sma,
	}, true
}

func pctChange(xs []float64) float64 {
	prev, cur := xs[len(xs)-2], xs[len(xs)-1]
	if prev == 0 {
		return 0
	}
	return cur/prev - 1
}

// sampleStdDev matches the model's training-time rolling std (ddof=1).
func sampleStdDev(xs []float64) float64 {
	n := float64(len(xs))
	if n < 2 {
		return 0
	}
	return indicators.StdDev(xs) * math.Sqrt(n/(n-1))
}

// Provider scores a feature vector with the probability of an up move.
type Provider interface {
	Probability(ctx context.Context, f Features) (float64, error)
}

// Static always returns P. Useful when no model is deployed.
type Static struct {
	P   float64
	Err error
}

func (s Static) Probability(context.Context, Features) (float64, error) {
	return s.P, s.Err
}

// HTTP posts Features as JSON to URL and reads {"probability": p}.
type HTTP struct {
	URL    string
	client *http.Client
}

func NewHTTP(url string, timeout time.Duration) *HTTP {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &HTTP{URL: url, client: &http.Client{Timeout: timeout}}
}

type response struct {
	Probability *float64 `json:"probability"`
}

func (h *HTTP) Probability(ctx context.Context, f Features) (float64, error) {
	p, err := h.probability(ctx, f)
	if err != nil {
		return 0, quotes.Classify(Name, "", err)
	}
	return p, nil
}

func (h *HTTP) probability(ctx context.Context, f Features) (float64, error) {
	body, err := json.Marshal(f)
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.URL, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return 0, &quotes.StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}

	var r response
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return 0, fmt.Errorf("decode response: %w", err)
	}
	if r.Probability == nil {
		return 0, fmt.Errorf("%w: missing probability", quotes.ErrMalformed)
	}
	p := *r.Probability
	if math.IsNaN(p) || p < 0 || p > 1 {
		return 0, fmt.Errorf("%w: probability %v out of range", quotes.ErrMalformed, p)
	}
	return p, nil
}

// ErrNotReady is returned by Score when history is too short for features.
var ErrNotReady = errors.New("advisory: not enough history")

// Score builds features and asks p for a probability.
func Score(ctx context.Context, p Provider, primary, reference []float64) (float64, error) {
	f, ok := Build(primary, reference)
	if !ok {
		return 0, ErrNotReady
	}
	return p.Probability(ctx, f)
}
