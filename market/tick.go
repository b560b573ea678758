package market

import (
	"errors"
	"sync"
	"time"
)

var ErrPriceNotFound = errors.New("price not found")

// PricePoint is one normalized observation from a quote source.
// When the provider quotes both sides, Price is the mid.
type PricePoint struct {
	Instrument string
	Time       time.Time
	Price      float64
	Bid        float64
	Ask        float64
	Source     string
}

// FromBidAsk builds a PricePoint whose Price is the mid of bid and ask.
func FromBidAsk(instrument string, t time.Time, bid, ask float64) PricePoint {
	return PricePoint{
		Instrument: instrument,
		Time:       t,
		Price:      (bid + ask) / 2,
		Bid:        bid,
		Ask:        ask,
	}
}

// Spread returns ask - bid, or 0 when the source did not quote both sides.
func (p PricePoint) Spread() float64 {
	if p.Bid <= 0 || p.Ask <= 0 || p.Ask < p.Bid {
		return 0
	}
	return p.Ask - p.Bid
}

func (p PricePoint) Valid() bool {
	return p.Price > 0 && !p.Time.IsZero()
}

// PriceStore keeps the latest PricePoint per instrument.
type PriceStore struct {
	mu     sync.RWMutex
	prices map[string]PricePoint
}

func NewPriceStore() *PriceStore {
	return &PriceStore{prices: make(map[string]PricePoint)}
}

func (ps *PriceStore) Set(p PricePoint) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.prices[p.Instrument] = p
}

func (ps *PriceStore) Get(instr string) (PricePoint, error) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	p, ok := ps.prices[instr]
	if !ok {
		return PricePoint{}, ErrPriceNotFound
	}
	return p, nil
}
