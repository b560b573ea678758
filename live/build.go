package live

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/hedger/advisory"
	"github.com/rustyeddy/hedger/aggregator"
	"github.com/rustyeddy/hedger/config"
	"github.com/rustyeddy/hedger/journal"
	"github.com/rustyeddy/hedger/market"
	"github.com/rustyeddy/hedger/oanda"
	"github.com/rustyeddy/hedger/quotes"
	"github.com/rustyeddy/hedger/wsfeed"
	"github.com/rustyeddy/hedger/yahoo"
)

// Build wires providers, the journal and the advisory scorer from cfg.
// OANDA sources are skipped with a warning when credentials are missing.
func Build(cfg *config.Config, log zerolog.Logger) (*Runner, error) {
	parts, err := Sources(cfg, log)
	if err != nil {
		return nil, err
	}

	if cfg.Advisory.URL != "" {
		parts.Advisory = advisory.NewHTTP(cfg.Advisory.URL, cfg.Advisory.Timeout.D())
	}

	j, err := journal.New(cfg.Journal)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	parts.Journal = j

	r, err := New(cfg, parts, log)
	if err != nil {
		_ = j.Close()
		return nil, err
	}
	return r, nil
}

// providers holds one client per provider so every instrument shares it.
type providers struct {
	cfg *config.Config
	log zerolog.Logger

	oanda  *oanda.Client
	yahoo  *yahoo.Client
	noAuth bool

	streams map[string]*quotes.Live
	order   []string
}

// Sources builds the aggregator feeds and push streams described by cfg.
func Sources(cfg *config.Config, log zerolog.Logger) (Parts, error) {
	p := &providers{cfg: cfg, log: log, streams: map[string]*quotes.Live{}}
	if err := p.startStreams(); err != nil {
		return Parts{}, err
	}

	var feeds []aggregator.Feed
	for _, ic := range cfg.Instruments {
		inst, err := ic.Instrument()
		if err != nil {
			return Parts{}, fmt.Errorf("instrument %s: %w", ic.ID, err)
		}
		var srcs []quotes.Source
		for _, sc := range ic.Sources {
			symbol := symbolFor(ic, sc)
			src, err := p.source(sc.Provider)
			if err != nil {
				return Parts{}, fmt.Errorf("instrument %s: %w", inst.ID, err)
			}
			if src == nil {
				continue
			}
			if symbol != inst.ID {
				src = quotes.Alias{Source: src, Symbol: symbol}
			}
			srcs = append(srcs, src)
		}
		if len(srcs) == 0 {
			return Parts{}, fmt.Errorf("instrument %s: no usable sources", inst.ID)
		}
		feeds = append(feeds, aggregator.Feed{Instrument: inst, Sources: srcs})
	}

	// primary first so reports list it first
	var ordered []aggregator.Feed
	for _, f := range feeds {
		if f.Instrument.Role == market.Primary {
			ordered = append([]aggregator.Feed{f}, ordered...)
		} else {
			ordered = append(ordered, f)
		}
	}

	parts := Parts{Feeds: ordered}
	for _, name := range p.order {
		parts.Streams = append(parts.Streams, p.streams[name])
	}
	return parts, nil
}

func symbolFor(ic config.InstrumentConfig, sc config.SourceConfig) string {
	if sc.Symbol != "" {
		return sc.Symbol
	}
	return ic.ID
}

// startStreams creates one Live per push provider, subscribed to every
// symbol configured for it.
func (p *providers) startStreams() error {
	symbols := map[string][]string{}
	seen := map[string]bool{}
	for _, ic := range p.cfg.Instruments {
		for _, sc := range ic.Sources {
			if sc.Provider != config.ProviderOANDAStream && sc.Provider != config.ProviderWebsocket {
				continue
			}
			sym := symbolFor(ic, sc)
			if seen[sc.Provider+"/"+sym] {
				continue
			}
			seen[sc.Provider+"/"+sym] = true
			if len(symbols[sc.Provider]) == 0 {
				p.order = append(p.order, sc.Provider)
			}
			symbols[sc.Provider] = append(symbols[sc.Provider], sym)
		}
	}

	order := p.order[:0]
	for _, name := range p.order {
		var s quotes.Streamer
		switch name {
		case config.ProviderOANDAStream:
			c := p.oandaClient()
			if c == nil {
				continue
			}
			s = c
		case config.ProviderWebsocket:
			if p.cfg.Providers.Websocket.URL == "" {
				return fmt.Errorf("websocket source configured without providers.websocket.url")
			}
			s = wsfeed.NewClient(p.cfg.Providers.Websocket.URL)
		}
		p.streams[name] = quotes.NewLive(s, symbols[name], p.cfg.Poll.StalePrimary.D(), p.log)
		order = append(order, name)
	}
	p.order = order
	return nil
}

func (p *providers) source(provider string) (quotes.Source, error) {
	switch provider {
	case config.ProviderOANDA:
		if c := p.oandaClient(); c != nil {
			return c, nil
		}
		return nil, nil

	case config.ProviderYahoo:
		if p.yahoo == nil {
			p.yahoo = yahoo.NewClient(p.cfg.Providers.Yahoo.BaseURL)
		}
		return p.yahoo, nil

	case config.ProviderOANDAStream, config.ProviderWebsocket:
		if l, ok := p.streams[provider]; ok {
			return l, nil
		}
		return nil, nil
	}
	return nil, fmt.Errorf("unknown provider %q", provider)
}

func (p *providers) oandaClient() *oanda.Client {
	if p.oanda != nil {
		return p.oanda
	}
	if p.noAuth {
		return nil
	}
	oc := p.cfg.Providers.OANDA
	if oc.Token == "" || oc.AccountID == "" {
		p.noAuth = true
		p.log.Warn().Msg("OANDA token or account id not set, skipping oanda sources")
		return nil
	}
	rest, _, err := oanda.BaseURL(oc.Env)
	if err != nil {
		p.noAuth = true
		p.log.Warn().Err(err).Msg("skipping oanda sources")
		return nil
	}
	p.oanda = oanda.NewClient(oc.Token, oc.AccountID, rest == oanda.PracticeURL)
	if oc.BaseURL != "" {
		p.oanda = p.oanda.WithBaseURL(oc.BaseURL)
	}
	return p.oanda
}
