package oanda

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/rustyeddy/hedger/market"
)

// Granularity represents the time frame for candles
type Granularity string

const (
	S5  Granularity = "S5"  // 5 seconds
	M1  Granularity = "M1"  // 1 minute
	M5  Granularity = "M5"  // 5 minutes
	M15 Granularity = "M15" // 15 minutes
	H1  Granularity = "H1"  // 1 hour
	D   Granularity = "D"   // 1 day
)

// CandlesRequest represents parameters for fetching historical candles
type CandlesRequest struct {
	Instrument  string      // Required (e.g., "USD_CLP")
	Granularity Granularity // Candle granularity (default: M1)
	Count       int         // Number of candles (max 5000)
}

// candleData represents the OHLC data in the API response
type candleData struct {
	O string `json:"o"`
	H string `json:"h"`
	L string `json:"l"`
	C string `json:"c"`
}

type apiCandle struct {
	Complete bool       `json:"complete"`
	Volume   int        `json:"volume"`
	Time     string     `json:"time"`
	Mid      candleData `json:"mid"`
}

type candlesResponse struct {
	Instrument  string      `json:"instrument"`
	Granularity string      `json:"granularity"`
	Candles     []apiCandle `json:"candles"`
}

// GetCandles fetches completed mid candles and returns their closes as
// PricePoints, oldest first. It is used to warm history at startup.
func (c *Client) GetCandles(ctx context.Context, req CandlesRequest) ([]market.PricePoint, error) {
	if req.Instrument == "" {
		return nil, fmt.Errorf("instrument is required")
	}
	if req.Count <= 0 {
		req.Count = 100
	}
	if req.Count > 5000 {
		return nil, fmt.Errorf("count cannot exceed 5000")
	}
	if req.Granularity == "" {
		req.Granularity = M1
	}

	params := url.Values{}
	params.Set("price", "M")
	params.Set("granularity", string(req.Granularity))
	params.Set("count", fmt.Sprintf("%d", req.Count))

	resp, err := c.get(ctx, c.httpClient, c.baseURL, fmt.Sprintf("/v3/instruments/%s/candles", req.Instrument), params)
	if err != nil {
		return nil, fmt.Errorf("API error: %w", err)
	}
	defer resp.Body.Close()

	var apiResp candlesResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	out := make([]market.PricePoint, 0, len(apiResp.Candles))
	for _, ac := range apiResp.Candles {
		// Skip incomplete candles
		if !ac.Complete {
			continue
		}
		t, err := time.Parse(time.RFC3339Nano, ac.Time)
		if err != nil {
			return nil, fmt.Errorf("parse time %s: %w", ac.Time, err)
		}
		closePx, err := parseFloat(ac.Mid.C)
		if err != nil {
			return nil, fmt.Errorf("parse close price: %w", err)
		}
		out = append(out, market.PricePoint{
			Instrument: req.Instrument,
			Time:       t,
			Price:      closePx,
			Source:     Name,
		})
	}
	return out, nil
}

// Backfill satisfies the aggregator's history warm-up hook.
func (c *Client) Backfill(ctx context.Context, instrument string, n int) ([]market.PricePoint, error) {
	return c.GetCandles(ctx, CandlesRequest{Instrument: instrument, Count: n})
}
