// Package oanda is the low-latency quote provider: REST pricing, the
// chunked pricing stream and candle backfill from the OANDA v20 API.
package oanda

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rustyeddy/hedger/quotes"
)

const (
	// PracticeURL is the URL for OANDA's practice/demo environment
	PracticeURL = "https://api-fxpractice.oanda.com"
	// LiveURL is the URL for OANDA's live trading environment
	LiveURL = "https://api-fxtrade.oanda.com"
	// Practice and live streaming hosts
	PracticeStreamURL = "https://stream-fxpractice.oanda.com"
	LiveStreamURL     = "https://stream-fxtrade.oanda.com"

	Name = "oanda"
)

// Client represents an OANDA API client
type Client struct {
	baseURL    string
	streamURL  string
	token      string
	accountID  string
	httpClient *http.Client
	stream     *http.Client
}

// BaseURL maps an environment name to the REST and stream hosts.
func BaseURL(env string) (rest, stream string, err error) {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "", "practice", "demo":
		return PracticeURL, PracticeStreamURL, nil
	case "live", "trade":
		return LiveURL, LiveStreamURL, nil
	default:
		return "", "", fmt.Errorf("unknown OANDA env %q (want practice|live)", env)
	}
}

// NewClient creates a new OANDA API client
func NewClient(token, accountID string, practice bool) *Client {
	baseURL, streamURL := LiveURL, LiveStreamURL
	if practice {
		baseURL, streamURL = PracticeURL, PracticeStreamURL
	}

	return &Client{
		baseURL:   baseURL,
		streamURL: streamURL,
		token:     token,
		accountID: accountID,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		// the stream is long-lived; only the context ends it
		stream: &http.Client{},
	}
}

// WithBaseURL points both REST and stream calls at u (for testing or a
// proxy).
func (c *Client) WithBaseURL(u string) *Client {
	u = strings.TrimSuffix(u, "/")
	c.baseURL = u
	c.streamURL = u
	return c
}

func (c *Client) Name() string { return Name }

func (c *Client) get(ctx context.Context, client *http.Client, base, path string, params url.Values) (*http.Response, error) {
	if c.token == "" {
		return nil, fmt.Errorf("oanda: missing token")
	}
	apiURL := base + path
	if len(params) > 0 {
		apiURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept-Datetime-Format", "RFC3339")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		return nil, &quotes.StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return resp, nil
}

// parseFloat parses an OANDA decimal string
func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

func trimForErr(s string) string {
	const n = 200
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
