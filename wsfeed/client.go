// Package wsfeed streams prices from a websocket JSON feed.
//
// After connecting, the client sends one subscribe frame
//
//	{"type":"subscribe","instruments":["USD_CLP","XAU_USD"]}
//
// and then expects one price per text frame:
//
//	{"instrument":"USD_CLP","bid":899.5,"ask":900.5,"time":"2024-01-01T00:00:00Z"}
//
// A frame may carry "price" instead of bid/ask.
package wsfeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rustyeddy/hedger/market"
	"github.com/rustyeddy/hedger/quotes"
)

const Name = "websocket"

type Client struct {
	URL string

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PingInterval time.Duration

	dialer *websocket.Dialer
}

func NewClient(url string) *Client {
	return &Client{
		URL:          url,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 10 * time.Second,
		PingInterval: 20 * time.Second,
		dialer:       websocket.DefaultDialer,
	}
}

func (c *Client) Name() string { return Name }

type subscribe struct {
	Type        string   `json:"type"`
	Instruments []string `json:"instruments"`
}

type message struct {
	Instrument string  `json:"instrument"`
	Price      float64 `json:"price"`
	Bid        float64 `json:"bid"`
	Ask        float64 `json:"ask"`
	Time       string  `json:"time"`
}

func (m message) point(now time.Time) (market.PricePoint, error) {
	if m.Instrument == "" {
		return market.PricePoint{}, errors.New("missing instrument")
	}
	ts := now
	if m.Time != "" {
		t, err := time.Parse(time.RFC3339Nano, m.Time)
		if err != nil {
			return market.PricePoint{}, fmt.Errorf("parse time %s: %w", m.Time, err)
		}
		ts = t
	}
	if m.Bid > 0 && m.Ask > 0 {
		return market.FromBidAsk(m.Instrument, ts, m.Bid, m.Ask), nil
	}
	return market.PricePoint{Instrument: m.Instrument, Time: ts, Price: m.Price}, nil
}

// Stream dials the feed and delivers prices to h until ctx is done or the
// connection fails.
func (c *Client) Stream(ctx context.Context, instruments []string, h quotes.StreamHandler) error {
	conn, _, err := c.dialer.DialContext(ctx, c.URL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.URL, err)
	}
	defer conn.Close()

	// gorilla allows one concurrent writer
	var wmu sync.Mutex
	write := func(kind int, data []byte) error {
		wmu.Lock()
		defer wmu.Unlock()
		conn.SetWriteDeadline(time.Now().Add(c.WriteTimeout))
		return conn.WriteMessage(kind, data)
	}

	sub, err := json.Marshal(subscribe{Type: "subscribe", Instruments: instruments})
	if err != nil {
		return err
	}
	if err := write(websocket.TextMessage, sub); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	if h.OnConnect != nil {
		h.OnConnect()
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(c.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				// unblock ReadMessage
				conn.Close()
				return
			case <-ticker.C:
				if err := write(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	conn.SetReadLimit(1 << 20)
	conn.SetReadDeadline(time.Now().Add(c.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.ReadTimeout))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		conn.SetReadDeadline(time.Now().Add(c.ReadTimeout))

		var m message
		if err := json.Unmarshal(data, &m); err != nil {
			continue
		}
		p, err := m.point(time.Now().UTC())
		if err != nil || !p.Valid() {
			continue
		}
		if h.OnPrice != nil {
			h.OnPrice(p)
		}
	}
}
