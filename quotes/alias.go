package quotes

import (
	"context"

	"github.com/rustyeddy/hedger/market"
)

// Alias serves an instrument under the provider's own symbol, e.g. the
// engine's XAU_USD as Yahoo's GC=F.
type Alias struct {
	Source
	Symbol string
}

// Fetch asks the wrapped source for Symbol and relabels the result.
func (a Alias) Fetch(ctx context.Context, instrument string) (market.PricePoint, error) {
	symbol := a.Symbol
	if symbol == "" {
		symbol = instrument
	}
	p, err := a.Source.Fetch(ctx, symbol)
	if err != nil {
		f := Classify(a.Name(), instrument, err)
		return market.PricePoint{}, &Failure{Kind: f.Kind, Source: f.Source, Instrument: instrument, Err: f.Err}
	}
	p.Instrument = instrument
	return p, nil
}

// Backfill forwards to the wrapped source when it supports history.
func (a Alias) Backfill(ctx context.Context, instrument string, n int) ([]market.PricePoint, error) {
	b, ok := a.Source.(Backfiller)
	if !ok {
		return nil, nil
	}
	symbol := a.Symbol
	if symbol == "" {
		symbol = instrument
	}
	points, err := b.Backfill(ctx, symbol, n)
	if err != nil {
		return nil, err
	}
	for i := range points {
		points[i].Instrument = instrument
	}
	return points, nil
}
