package oanda

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/rustyeddy/hedger/market"
	"github.com/rustyeddy/hedger/quotes"
)

type priceBucket struct {
	Price string `json:"price"`
}

type clientPrice struct {
	Type       string        `json:"type"`
	Instrument string        `json:"instrument"`
	Time       string        `json:"time"`
	Tradeable  bool          `json:"tradeable"`
	Bids       []priceBucket `json:"bids"`
	Asks       []priceBucket `json:"asks"`
}

type pricingResponse struct {
	Prices []clientPrice `json:"prices"`
}

// toPoint normalizes an OANDA price to a mid PricePoint.
func (p clientPrice) toPoint() (market.PricePoint, error) {
	if len(p.Bids) == 0 || len(p.Asks) == 0 {
		return market.PricePoint{}, fmt.Errorf("%w: %s has no bids/asks", quotes.ErrMalformed, p.Instrument)
	}
	bid, err := parseFloat(p.Bids[0].Price)
	if err != nil {
		return market.PricePoint{}, fmt.Errorf("parse bid: %w", err)
	}
	ask, err := parseFloat(p.Asks[0].Price)
	if err != nil {
		return market.PricePoint{}, fmt.Errorf("parse ask: %w", err)
	}
	ts := time.Now().UTC()
	if p.Time != "" {
		ts, err = time.Parse(time.RFC3339Nano, p.Time)
		if err != nil {
			return market.PricePoint{}, fmt.Errorf("parse time %s: %w", p.Time, err)
		}
	}
	return market.FromBidAsk(p.Instrument, ts, bid, ask), nil
}

// Fetch returns the current mid price for instrument from the pricing
// endpoint.
func (c *Client) Fetch(ctx context.Context, instrument string) (market.PricePoint, error) {
	p, err := c.fetch(ctx, instrument)
	if err != nil {
		return market.PricePoint{}, quotes.Classify(Name, instrument, err)
	}
	return quotes.Check(Name, p)
}

func (c *Client) fetch(ctx context.Context, instrument string) (market.PricePoint, error) {
	if c.accountID == "" {
		return market.PricePoint{}, fmt.Errorf("oanda: missing account id")
	}
	params := url.Values{}
	params.Set("instruments", instrument)

	resp, err := c.get(ctx, c.httpClient, c.baseURL, fmt.Sprintf("/v3/accounts/%s/pricing", c.accountID), params)
	if err != nil {
		return market.PricePoint{}, err
	}
	defer resp.Body.Close()

	var pr pricingResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return market.PricePoint{}, fmt.Errorf("decode response: %w", err)
	}
	for _, p := range pr.Prices {
		if p.Instrument == instrument {
			return p.toPoint()
		}
	}
	return market.PricePoint{}, fmt.Errorf("%w: %s missing from pricing response", quotes.ErrMalformed, instrument)
}
