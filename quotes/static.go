package quotes

import (
	"context"
	"sync"

	"github.com/rustyeddy/hedger/market"
)

// Func adapts a function to a Source.
type Func struct {
	ID string
	Fn func(ctx context.Context, instrument string) (market.PricePoint, error)
}

func (f Func) Name() string { return f.ID }

func (f Func) Fetch(ctx context.Context, instrument string) (market.PricePoint, error) {
	p, err := f.Fn(ctx, instrument)
	if err != nil {
		return market.PricePoint{}, Classify(f.ID, instrument, err)
	}
	return Check(f.ID, p)
}

// Static serves queued prices per instrument. It is used for replay and
// tests. Once an instrument's queue is empty it keeps returning the last
// price, or Unreachable if nothing was ever queued.
type Static struct {
	name string

	mu     sync.Mutex
	queue  map[string][]market.PricePoint
	last   map[string]market.PricePoint
	errs   map[string]*Failure
	called map[string]int
	hist   map[string][]market.PricePoint
}

func NewStatic(name string) *Static {
	return &Static{
		name:   name,
		queue:  make(map[string][]market.PricePoint),
		last:   make(map[string]market.PricePoint),
		errs:   make(map[string]*Failure),
		called: make(map[string]int),
		hist:   make(map[string][]market.PricePoint),
	}
}

func (s *Static) Name() string { return s.name }

// Push queues points for their instruments.
func (s *Static) Push(points ...market.PricePoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range points {
		s.queue[p.Instrument] = append(s.queue[p.Instrument], p)
	}
}

// FailWith makes every fetch of instrument fail with kind until cleared
// with FailWith(instrument, "").
func (s *Static) FailWith(instrument string, kind Kind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if kind == "" {
		delete(s.errs, instrument)
		return
	}
	s.errs[instrument] = Fail(kind, s.name, instrument, nil)
}

// Calls reports how many times instrument was fetched.
func (s *Static) Calls(instrument string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.called[instrument]
}

func (s *Static) Fetch(ctx context.Context, instrument string) (market.PricePoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.called[instrument]++

	if err := ctx.Err(); err != nil {
		return market.PricePoint{}, Classify(s.name, instrument, err)
	}
	if f, ok := s.errs[instrument]; ok {
		return market.PricePoint{}, f
	}
	if q := s.queue[instrument]; len(q) > 0 {
		s.last[instrument] = q[0]
		s.queue[instrument] = q[1:]
	}
	p, ok := s.last[instrument]
	if !ok {
		return market.PricePoint{}, Fail(Unreachable, s.name, instrument, market.ErrPriceNotFound)
	}
	return Check(s.name, p)
}

// SetHistory sets what Backfill returns for the points' instruments.
func (s *Static) SetHistory(points ...market.PricePoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range points {
		s.hist[p.Instrument] = append(s.hist[p.Instrument], p)
	}
}

func (s *Static) Backfill(ctx context.Context, instrument string, n int) ([]market.PricePoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.hist[instrument]
	if n > 0 && len(h) > n {
		h = h[len(h)-n:]
	}
	return append([]market.PricePoint(nil), h...), nil
}
