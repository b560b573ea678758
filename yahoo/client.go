// Package yahoo is the general-purpose quote provider backed by the
// Yahoo Finance chart API.
package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rustyeddy/hedger/market"
	"github.com/rustyeddy/hedger/quotes"
)

const (
	DefaultURL = "https://query1.finance.yahoo.com"
	Name       = "yahoo"

	userAgent = "Mozilla/5.0 (compatible; hedger/1.0)"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) Name() string { return Name }

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *chartError   `json:"error"`
	} `json:"chart"`
}

type chartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type chartResult struct {
	Meta struct {
		Symbol             string  `json:"symbol"`
		RegularMarketPrice float64 `json:"regularMarketPrice"`
		RegularMarketTime  int64   `json:"regularMarketTime"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Close []*float64 `json:"close"`
		} `json:"quote"`
	} `json:"indicators"`
}

func (c *Client) chart(ctx context.Context, symbol string, params url.Values) (chartResult, error) {
	apiURL := fmt.Sprintf("%s/v8/finance/chart/%s?%s", c.baseURL, url.PathEscape(symbol), params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return chartResult{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return chartResult{}, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		return chartResult{}, &quotes.StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var cr chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return chartResult{}, fmt.Errorf("decode response: %w", err)
	}
	if cr.Chart.Error != nil {
		return chartResult{}, fmt.Errorf("%w: %s: %s", quotes.ErrMalformed, cr.Chart.Error.Code, cr.Chart.Error.Description)
	}
	if len(cr.Chart.Result) == 0 {
		return chartResult{}, fmt.Errorf("%w: empty chart result for %s", quotes.ErrMalformed, symbol)
	}
	return cr.Chart.Result[0], nil
}

// Fetch returns the regular market price for symbol.
func (c *Client) Fetch(ctx context.Context, symbol string) (market.PricePoint, error) {
	params := url.Values{}
	params.Set("interval", "1m")
	params.Set("range", "1d")

	res, err := c.chart(ctx, symbol, params)
	if err != nil {
		return market.PricePoint{}, quotes.Classify(Name, symbol, err)
	}
	if res.Meta.RegularMarketTime == 0 {
		return market.PricePoint{}, quotes.Fail(quotes.MalformedResponse, Name, symbol,
			fmt.Errorf("%w: missing regularMarketTime", quotes.ErrMalformed))
	}
	return quotes.Check(Name, market.PricePoint{
		Instrument: symbol,
		Time:       time.Unix(res.Meta.RegularMarketTime, 0).UTC(),
		Price:      res.Meta.RegularMarketPrice,
	})
}

// Backfill returns up to n of the most recent one-minute closes, oldest
// first. Missing bars are skipped.
func (c *Client) Backfill(ctx context.Context, symbol string, n int) ([]market.PricePoint, error) {
	params := url.Values{}
	params.Set("interval", "1m")
	params.Set("range", "5d")

	res, err := c.chart(ctx, symbol, params)
	if err != nil {
		return nil, err
	}
	if len(res.Indicators.Quote) == 0 {
		return nil, nil
	}
	closes := res.Indicators.Quote[0].Close

	out := make([]market.PricePoint, 0, len(res.Timestamp))
	for i, ts := range res.Timestamp {
		if i >= len(closes) || closes[i] == nil || *closes[i] <= 0 {
			continue
		}
		out = append(out, market.PricePoint{
			Instrument: symbol,
			Time:       time.Unix(ts, 0).UTC(),
			Price:      *closes[i],
			Source:     Name,
		})
	}
	if n > 0 && len(out) > n {
		out = out[len(out)-n:]
	}
	return out, nil
}
