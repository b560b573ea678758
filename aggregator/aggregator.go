// Package aggregator polls quote sources for every instrument and keeps
// their price history.
//
// Each poll produces one Snapshot. Sources are tried in priority order and
// the first success wins. When every source fails, the last good price is
// reused while it is young enough, and the snapshot is marked degraded.
// Instruments are fetched concurrently; each history buffer is written only
// by the goroutine polling its instrument.
package aggregator

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/rustyeddy/hedger/market"
	"github.com/rustyeddy/hedger/metrics"
	"github.com/rustyeddy/hedger/quotes"
)

// Feed binds an instrument to its sources in priority order.
type Feed struct {
	Instrument market.Instrument
	Sources    []quotes.Source
}

type Options struct {
	HistoryCap     int
	AdapterTimeout time.Duration
	StalePrimary   time.Duration
	StaleReference time.Duration
	UnhealthyAfter int
}

// Quote is the outcome of one poll for one instrument.
type Quote struct {
	Instrument market.Instrument
	Point      market.PricePoint
	Source     string

	Available bool
	Stale     bool // last good value reused after every source failed
	Secondary bool // served by a source other than the first
	Failures  []*quotes.Failure
}

// Snapshot is the aggregated view of one poll cycle.
type Snapshot struct {
	Time   time.Time
	Quotes map[string]Quote

	PrimaryID        string
	PrimaryAvailable bool

	Degraded         bool
	DegradedSources  []string
	SecondarySources []string
	Unhealthy        []string
}

// Primary returns the primary instrument's quote.
func (s Snapshot) Primary() Quote {
	return s.Quotes[s.PrimaryID]
}

// Available reports whether instrument id has a usable price this cycle.
func (s Snapshot) Available(id string) bool {
	q, ok := s.Quotes[id]
	return ok && q.Available
}

type lane struct {
	feed     Feed
	buf      *market.HistoryBuffer
	last     market.PricePoint
	lastAt   time.Time
	hasLast  bool
	failures map[string]int
}

type Aggregator struct {
	lanes   []*lane
	primary string
	opts    Options
	log     zerolog.Logger
	now     func() time.Time
}

func New(feeds []Feed, opts Options, log zerolog.Logger) (*Aggregator, error) {
	if opts.HistoryCap <= 0 {
		return nil, fmt.Errorf("history capacity must be positive")
	}
	if opts.UnhealthyAfter <= 0 {
		opts.UnhealthyAfter = 1
	}

	a := &Aggregator{opts: opts, log: log, now: time.Now}
	seen := map[string]bool{}
	for _, f := range feeds {
		id := f.Instrument.ID
		if seen[id] {
			return nil, fmt.Errorf("duplicate instrument %s", id)
		}
		seen[id] = true
		if len(f.Sources) == 0 {
			return nil, fmt.Errorf("instrument %s has no sources", id)
		}
		if f.Instrument.IsPrimary() {
			if a.primary != "" {
				return nil, fmt.Errorf("more than one primary instrument")
			}
			a.primary = id
		}
		a.lanes = append(a.lanes, &lane{
			feed:     f,
			buf:      market.NewHistoryBuffer(id, opts.HistoryCap),
			failures: make(map[string]int),
		})
	}
	if a.primary == "" {
		return nil, fmt.Errorf("no primary instrument")
	}
	return a, nil
}

// Instruments returns the configured instruments in feed order.
func (a *Aggregator) Instruments() []market.Instrument {
	out := make([]market.Instrument, len(a.lanes))
	for i, l := range a.lanes {
		out[i] = l.feed.Instrument
	}
	return out
}

// Buffers exposes history by instrument ID. Callers must not push into
// them while a poll is running.
func (a *Aggregator) Buffers() map[string]*market.HistoryBuffer {
	out := make(map[string]*market.HistoryBuffer, len(a.lanes))
	for _, l := range a.lanes {
		out[l.feed.Instrument.ID] = l.buf
	}
	return out
}

// Reset drops all history, last good prices and failure counts.
func (a *Aggregator) Reset() {
	for _, l := range a.lanes {
		l.buf.Reset()
		l.hasLast = false
		l.last = market.PricePoint{}
		l.failures = make(map[string]int)
	}
}

// Poll fetches every instrument once and returns the cycle's snapshot.
// It never fails; problems are reported in the snapshot.
func (a *Aggregator) Poll(ctx context.Context) Snapshot {
	now := a.now()
	results := make([]Quote, len(a.lanes))

	var g errgroup.Group
	for i, l := range a.lanes {
		i, l := i, l
		g.Go(func() error {
			results[i] = a.poll(ctx, l, now)
			return nil
		})
	}
	_ = g.Wait()

	snap := Snapshot{
		Time:      now,
		Quotes:    make(map[string]Quote, len(a.lanes)),
		PrimaryID: a.primary,
	}
	for i, l := range a.lanes {
		q := results[i]
		id := l.feed.Instrument.ID
		snap.Quotes[id] = q

		switch {
		case q.Stale, !q.Available:
			snap.Degraded = true
			snap.DegradedSources = append(snap.DegradedSources, id)
		case q.Secondary:
			snap.SecondarySources = append(snap.SecondarySources, id+":"+q.Source)
		}
		for name, n := range l.failures {
			if n >= a.opts.UnhealthyAfter {
				snap.Unhealthy = append(snap.Unhealthy, id+":"+name)
			}
		}
	}
	sort.Strings(snap.Unhealthy)
	snap.PrimaryAvailable = snap.Quotes[a.primary].Available

	if snap.Degraded {
		metrics.DegradedCycles.Inc()
		a.log.Warn().Strs("degraded", snap.DegradedSources).Bool("primary_available", snap.PrimaryAvailable).Msg("degraded cycle")
	}
	return snap
}

func (a *Aggregator) poll(ctx context.Context, l *lane, now time.Time) Quote {
	inst := l.feed.Instrument
	q := Quote{Instrument: inst}
	tried := make(map[string]bool, len(l.feed.Sources))

	for i, src := range l.feed.Sources {
		name := src.Name()
		if tried[name] {
			continue
		}
		tried[name] = true

		p, err := a.fetch(ctx, src, inst.ID)
		metrics.FetchTotal.WithLabelValues(name, inst.ID).Inc()
		if err != nil {
			f := quotes.Classify(name, inst.ID, err)
			metrics.FetchFailures.WithLabelValues(name, string(f.Kind)).Inc()
			l.failures[name]++
			q.Failures = append(q.Failures, f)
			a.log.Debug().Err(f).Str("instrument", inst.ID).Str("source", name).Msg("fetch failed")
			continue
		}
		l.failures[name] = 0

		if err := l.buf.Push(p); err != nil {
			// a slower source can lag behind what is already stored
			a.log.Debug().Err(err).Str("instrument", inst.ID).Str("source", name).Msg("not added to history")
		}
		l.last, l.lastAt, l.hasLast = p, now, true

		q.Point = p
		q.Source = name
		q.Available = true
		q.Secondary = i > 0
		return q
	}

	limit := a.opts.StaleReference
	if inst.IsPrimary() {
		limit = a.opts.StalePrimary
	}
	if l.hasLast && now.Sub(l.lastAt) <= limit {
		q.Point = l.last
		q.Source = l.last.Source
		q.Available = true
		q.Stale = true
	}
	return q
}

func (a *Aggregator) fetch(ctx context.Context, src quotes.Source, instrument string) (market.PricePoint, error) {
	if a.opts.AdapterTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.opts.AdapterTimeout)
		defer cancel()
	}
	// a source that ignores ctx is abandoned once the deadline passes
	type result struct {
		p   market.PricePoint
		err error
	}
	ch := make(chan result, 1)
	go func() {
		p, err := src.Fetch(ctx, instrument)
		ch <- result{p, err}
	}()

	var p market.PricePoint
	select {
	case r := <-ch:
		if r.err != nil {
			return market.PricePoint{}, r.err
		}
		p = r.p
	case <-ctx.Done():
		return market.PricePoint{}, quotes.Classify(src.Name(), instrument, ctx.Err())
	}
	if !p.Valid() {
		return market.PricePoint{}, quotes.Fail(quotes.MalformedResponse, src.Name(), instrument,
			fmt.Errorf("%w: price %v", quotes.ErrMalformed, p.Price))
	}
	p.Instrument = instrument
	return p, nil
}

// Seed warms each buffer with up to HistoryCap recent points from the
// first source that can backfill. Failures are logged and skipped.
func (a *Aggregator) Seed(ctx context.Context) {
	var g errgroup.Group
	for _, l := range a.lanes {
		l := l
		g.Go(func() error {
			a.seed(ctx, l)
			return nil
		})
	}
	_ = g.Wait()
}

func (a *Aggregator) seed(ctx context.Context, l *lane) {
	id := l.feed.Instrument.ID
	for _, src := range l.feed.Sources {
		b, ok := src.(quotes.Backfiller)
		if !ok {
			continue
		}
		points, err := b.Backfill(ctx, id, l.buf.Cap())
		if err != nil {
			a.log.Warn().Err(err).Str("instrument", id).Str("source", src.Name()).Msg("backfill failed")
			continue
		}
		if len(points) == 0 {
			continue
		}
		added := 0
		for _, p := range points {
			p.Instrument = id
			if err := l.buf.Push(p); err == nil {
				added++
			}
		}
		a.log.Info().Str("instrument", id).Str("source", src.Name()).Int("points", added).Msg("history seeded")
		return
	}
}
