// Package live drives the poll-compute-emit cycle: aggregate quotes,
// evaluate the signal engine, gate the verdict through the risk governor
// and keep the latest result for the operator.
package live

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/rustyeddy/hedger/advisory"
	"github.com/rustyeddy/hedger/aggregator"
	"github.com/rustyeddy/hedger/config"
	"github.com/rustyeddy/hedger/journal"
	"github.com/rustyeddy/hedger/market"
	"github.com/rustyeddy/hedger/metrics"
	"github.com/rustyeddy/hedger/quotes"
	"github.com/rustyeddy/hedger/risk"
	"github.com/rustyeddy/hedger/signal"
)

// seedTimeout bounds the one-time history backfill.
const seedTimeout = 30 * time.Second

var (
	ErrNoJournal = errors.New("journal not configured")
	ErrNoVerdict = errors.New("no verdict yet")
)

// Parts are the collaborators a Runner drives. Build fills them from
// config; tests construct them directly.
type Parts struct {
	Feeds    []aggregator.Feed
	Streams  []*quotes.Live
	Advisory advisory.Provider // nil disables scoring
	Journal  journal.Journal   // nil disables trade recording
}

type Runner struct {
	cfg     *config.Config
	agg     *aggregator.Aggregator
	engine  *signal.Engine
	gov     *risk.Governor
	streams []*quotes.Live
	adv     advisory.Provider
	journal journal.Journal
	log     zerolog.Logger
	now     func() time.Time

	// one cycle at a time
	cycleMu sync.Mutex
	cycle   uint64
	seeded  bool

	riskMu sync.Mutex
	state  risk.State

	vmu     sync.RWMutex
	verdict signal.Verdict
	snap    aggregator.Snapshot
	have    bool
}

func New(cfg *config.Config, parts Parts, log zerolog.Logger) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	agg, err := aggregator.New(parts.Feeds, aggregator.Options{
		HistoryCap:     cfg.Window.History,
		AdapterTimeout: cfg.Poll.AdapterTimeout.D(),
		StalePrimary:   cfg.Poll.StalePrimary.D(),
		StaleReference: cfg.Poll.StaleReference.D(),
		UnhealthyAfter: cfg.Poll.UnhealthyAfter,
	}, log.With().Str("component", "aggregator").Logger())
	if err != nil {
		return nil, fmt.Errorf("aggregator: %w", err)
	}

	loc, err := cfg.Blackout.Location()
	if err != nil {
		return nil, fmt.Errorf("blackout timezone: %w", err)
	}
	cal, err := risk.NewCalendar(cfg.Blackout.Dates, loc)
	if err != nil {
		return nil, fmt.Errorf("blackout dates: %w", err)
	}
	gov, err := risk.NewGovernor(risk.Policy{
		Leverage:         cfg.Account.Leverage,
		Volume:           cfg.Account.Volume,
		RiskPerTrade:     cfg.Account.RiskPerTrade,
		PipLocation:      cfg.Levels.PipLocation,
		TargetOffset:     cfg.Levels.TargetOffset,
		StopOffset:       cfg.Levels.StopOffset,
		SpreadMultiplier: cfg.Levels.SpreadMultiplier,
		EstimatedSpread:  cfg.Levels.EstimatedSpread,
	}, cal)
	if err != nil {
		return nil, fmt.Errorf("risk policy: %w", err)
	}

	th := cfg.Thresholds
	engine := signal.NewEngine(signal.Params{
		Correlation:         cfg.Window.Correlation,
		Trend:               cfg.Window.Trend,
		MinSamples:          cfg.Window.MinSamples,
		Skew:                cfg.Poll.Interval.D() / 2,
		MaxLag:              cfg.Poll.StaleReference.D(),
		StressCorrelation:   th.StressCorrelation,
		SignalCorrelation:   th.SignalCorrelation,
		MinReferenceTrend:   th.MinReferenceTrend,
		ZEntry:              th.ZEntry,
		StrengthCorrelation: th.StrengthCorrelation,
		MinStrengthTrend:    th.MinStrengthTrend,
		BandGreen:           th.BandGreen,
		BandAmber:           th.BandAmber,
	}, agg.Instruments())

	r := &Runner{
		cfg:     cfg,
		agg:     agg,
		engine:  engine,
		gov:     gov,
		streams: parts.Streams,
		adv:     parts.Advisory,
		journal: parts.Journal,
		log:     log,
		now:     time.Now,
	}
	r.state = risk.NewState(cfg.Account.StartingCapital, cfg.Account.MaxDailyLoss, cal.Day(r.now()))
	return r, nil
}

// Run starts the push streams and cycles every poll interval until ctx is
// cancelled. The first cycle runs immediately. A cycle that overruns the
// interval drops the ticks it missed.
func (r *Runner) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, s := range r.streams {
		s := s
		g.Go(func() error {
			err := s.Run(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	g.Go(func() error {
		interval := r.cfg.Poll.Interval.D()
		r.log.Info().Dur("interval", interval).Int("streams", len(r.streams)).Msg("runner started")

		r.Seed(ctx)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			if _, err := r.RunOnce(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				r.log.Error().Err(err).Msg("cycle failed")
			}
			select {
			case <-ctx.Done():
				r.log.Info().Msg("runner stopped")
				return nil
			case <-ticker.C:
			}
		}
	})

	return g.Wait()
}

// RunOnce performs one poll-compute-emit cycle and returns its verdict.
func (r *Runner) RunOnce(ctx context.Context) (signal.Verdict, error) {
	if err := ctx.Err(); err != nil {
		return signal.Verdict{}, err
	}
	r.cycleMu.Lock()
	defer r.cycleMu.Unlock()

	r.seed(ctx)

	start := time.Now()
	if d := r.cfg.Poll.CycleTimeout.D(); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	now := r.now()
	state := r.rollDay(now)

	snap := r.agg.Poll(ctx)
	bufs := r.agg.Buffers()

	in := signal.Input{Snapshot: snap, Buffers: bufs}
	if p, ok := r.score(ctx, snap, bufs); ok {
		in.Advisory = &p
	}

	r.cycle++
	v := r.engine.Evaluate(in)
	v.Cycle = r.cycle
	v = r.gov.Apply(v, state, now)

	r.vmu.Lock()
	r.verdict, r.snap, r.have = v, snap, true
	r.vmu.Unlock()

	r.observe(v, state, time.Since(start))
	r.logVerdict(v)
	return v, nil
}

// Seed warms history from the sources' backfill once, when window.backfill
// is set. It runs under its own timeout so a slow backfill does not eat the
// first cycle's budget.
func (r *Runner) Seed(ctx context.Context) {
	r.cycleMu.Lock()
	defer r.cycleMu.Unlock()
	r.seed(ctx)
}

func (r *Runner) seed(ctx context.Context) {
	if !r.cfg.Window.Backfill || r.seeded {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, seedTimeout)
	defer cancel()
	r.agg.Seed(ctx)
	r.seeded = true
}

// ResetHistory drops all price history and last good prices. The next
// cycle starts calibrating again, after a fresh backfill when enabled.
func (r *Runner) ResetHistory() Health {
	r.cycleMu.Lock()
	r.agg.Reset()
	r.seeded = false
	r.cycleMu.Unlock()

	r.log.Info().Msg("price history reset by operator")
	return r.Health()
}

// rollDay re-arms the risk state when the session day changes and
// auto_reset_daily is set. It returns a copy for this cycle.
func (r *Runner) rollDay(now time.Time) risk.State {
	r.riskMu.Lock()
	defer r.riskMu.Unlock()

	day := r.gov.Calendar().Day(now)
	if r.state.Day != day && r.cfg.Account.AutoResetDaily {
		r.log.Info().Str("from", r.state.Day).Str("to", day).Bool("was_killed", r.state.Killed).Msg("new session, risk state reset")
		r.state.Reset(day)
	}
	return r.state
}

// score asks the advisory provider for a probability. Failures are logged
// and leave the verdict without one.
func (r *Runner) score(ctx context.Context, snap aggregator.Snapshot, bufs map[string]*market.HistoryBuffer) (float64, bool) {
	if r.adv == nil {
		return 0, false
	}
	var ref *market.HistoryBuffer
	for _, inst := range r.agg.Instruments() {
		if inst.Hedge() {
			ref = bufs[inst.ID]
			break
		}
	}
	primary := bufs[snap.PrimaryID]
	if primary == nil || ref == nil {
		return 0, false
	}

	p, err := advisory.Score(ctx, r.adv, primary.LastN(advisory.Window+1), ref.LastN(advisory.Window+1))
	if err != nil {
		if !errors.Is(err, advisory.ErrNotReady) {
			kind := quotes.KindOf(err)
			metrics.FetchFailures.WithLabelValues(advisory.Name, string(kind)).Inc()
			r.log.Warn().Err(err).Str("kind", string(kind)).Msg("advisory score unavailable")
		}
		return 0, false
	}
	return p, true
}

func (r *Runner) observe(v signal.Verdict, s risk.State, took time.Duration) {
	metrics.CycleSeconds.Observe(took.Seconds())
	metrics.Verdicts.WithLabelValues(string(v.State)).Inc()
	metrics.KillSwitch.Set(metrics.Bool(s.Killed))
	for _, c := range v.Correlations {
		if !c.LowConfidence {
			metrics.Correlation.WithLabelValues(c.Instrument).Set(c.Value)
		}
	}
	for _, st := range r.streams {
		metrics.StreamConnected.WithLabelValues(st.Name()).Set(metrics.Bool(st.Connected()))
	}
}

func (r *Runner) logVerdict(v signal.Verdict) {
	ev := r.log.Info()
	if v.Actionable() {
		ev = ev.Float64("target", v.Target).Float64("stop", v.Stop).Float64("projected_net", v.ProjectedNet)
	}
	if h, ok := v.Hedge(); ok {
		ev = ev.Float64("hedge_corr", h.Value).Bool("hedge_low_conf", h.LowConfidence)
	}
	if len(v.DegradedSources) > 0 {
		ev = ev.Strs("degraded", v.DegradedSources)
	}
	ev.Uint64("cycle", v.Cycle).
		Str("state", string(v.State)).
		Str("reason", string(v.Reason)).
		Float64("entry", v.Entry).
		Float64("z", v.Z).
		Str("band", string(v.Band)).
		Msg("verdict")
}

// Verdict returns the latest verdict.
func (r *Runner) Verdict() (signal.Verdict, error) {
	r.vmu.RLock()
	defer r.vmu.RUnlock()
	if !r.have {
		return signal.Verdict{}, ErrNoVerdict
	}
	return r.verdict, nil
}

// Health status values
const (
	StatusStarting  = "starting"
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

type Health struct {
	Status           string          `json:"status"`
	Cycle            uint64          `json:"cycle"`
	LastCycle        time.Time       `json:"last_cycle,omitempty"`
	PrimaryAvailable bool            `json:"primary_available"`
	Degraded         []string        `json:"degraded_sources"`
	Secondary        []string        `json:"secondary_sources"`
	Unhealthy        []string        `json:"unhealthy_sources"`
	Streams          map[string]bool `json:"streams"`
}

// Health summarizes the last snapshot. A missing primary or a source past
// unhealthy_after consecutive failures is unhealthy; stale reuse or
// failover is degraded.
func (r *Runner) Health() Health {
	h := Health{Status: StatusStarting, Streams: map[string]bool{}}
	for _, s := range r.streams {
		h.Streams[s.Name()] = s.Connected()
	}

	r.vmu.RLock()
	snap, have, cycle := r.snap, r.have, r.verdict.Cycle
	r.vmu.RUnlock()
	if !have {
		return h
	}

	h.Cycle = cycle
	h.LastCycle = snap.Time
	h.PrimaryAvailable = snap.PrimaryAvailable
	h.Degraded = nonNil(snap.DegradedSources)
	h.Secondary = nonNil(snap.SecondarySources)
	h.Unhealthy = nonNil(snap.Unhealthy)

	switch {
	case !snap.PrimaryAvailable, len(snap.Unhealthy) > 0:
		h.Status = StatusUnhealthy
	case snap.Degraded, len(snap.SecondarySources) > 0:
		h.Status = StatusDegraded
	default:
		h.Status = StatusHealthy
	}
	return h
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// RiskView is the operator's view of the risk state.
type RiskView struct {
	risk.State
	Mode     risk.Mode `json:"mode"`
	Loss     float64   `json:"loss"`
	Limit    float64   `json:"limit"`
	Equity   float64   `json:"equity"`
	Blackout bool      `json:"blackout"`
}

func (r *Runner) view(s risk.State) RiskView {
	return RiskView{
		State:    s,
		Mode:     s.Mode(),
		Loss:     s.Loss(),
		Limit:    s.Limit(),
		Equity:   s.Equity(),
		Blackout: r.gov.Calendar().Blackout(r.now()),
	}
}

func (r *Runner) Risk() RiskView {
	r.riskMu.Lock()
	defer r.riskMu.Unlock()
	return r.view(r.state)
}

// RecordPnL adds a realized P/L to the session. It takes effect at the
// next cycle.
func (r *Runner) RecordPnL(amount float64) RiskView {
	return r.mutate(func(s *risk.State) { s.Record(amount) })
}

// MarkBalance sets the session P/L from the broker's account balance.
func (r *Runner) MarkBalance(balance float64) RiskView {
	return r.mutate(func(s *risk.State) { s.MarkBalance(balance) })
}

func (r *Runner) mutate(fn func(*risk.State)) RiskView {
	r.riskMu.Lock()
	defer r.riskMu.Unlock()

	wasKilled := r.state.Killed
	fn(&r.state)
	if r.state.Killed && !wasKilled {
		r.log.Warn().Float64("loss", r.state.Loss()).Float64("limit", r.state.Limit()).Str("reason", r.state.KillReason).Msg("kill switch engaged")
	}
	metrics.KillSwitch.Set(metrics.Bool(r.state.Killed))
	return r.view(r.state)
}

// ResetRisk re-arms the kill switch and clears the session loss.
func (r *Runner) ResetRisk() RiskView {
	r.riskMu.Lock()
	defer r.riskMu.Unlock()

	r.state.Reset(r.gov.Calendar().Day(r.now()))
	metrics.KillSwitch.Set(0)
	r.log.Info().Str("day", r.state.Day).Msg("risk state reset by operator")
	return r.view(r.state)
}

// TradeRequest is an operator's confirmation of an execution.
type TradeRequest struct {
	Direction   string  `json:"direction"`
	EnginePrice float64 `json:"engine_price"`
	BrokerPrice float64 `json:"broker_price"`
	Outcome     string  `json:"outcome"`
}

// RecordTrade appends a confirmed execution to the journal.
func (r *Runner) RecordTrade(req TradeRequest) (journal.TradeRecord, error) {
	if r.journal == nil {
		return journal.TradeRecord{}, ErrNoJournal
	}
	rec, err := journal.NewRecord(r.now(), req.Direction, req.EnginePrice, req.BrokerPrice, req.Outcome)
	if err != nil {
		return journal.TradeRecord{}, err
	}
	if err := r.journal.Record(rec); err != nil {
		return journal.TradeRecord{}, fmt.Errorf("record trade: %w", err)
	}
	metrics.TradesRecorded.WithLabelValues(rec.Direction).Inc()
	r.log.Info().Str("id", rec.ID).Str("direction", rec.Direction).Str("lag", rec.Lag.String()).Msg("trade recorded")
	return rec, nil
}

// Close releases the journal.
func (r *Runner) Close() error {
	if r.journal == nil {
		return nil
	}
	return r.journal.Close()
}
