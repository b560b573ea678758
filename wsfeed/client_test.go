package wsfeed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/hedger/market"
	"github.com/rustyeddy/hedger/quotes"
)

func feedServer(t *testing.T, frames []string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var sub subscribe
		if assert.NoError(t, json.Unmarshal(data, &sub)) {
			assert.Equal(t, "subscribe", sub.Type)
		}
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
	}))
}

func wsURL(s *httptest.Server) string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func TestStream(t *testing.T) {
	server := feedServer(t, []string{
		`{"instrument":"USD_CLP","bid":899.5,"ask":900.5,"time":"2024-01-01T00:00:00Z"}`,
		`not json`,
		`{"instrument":"XAU_USD","price":2031.5,"time":"2024-01-01T00:00:01Z"}`,
		`{"instrument":"XAU_USD","price":0}`,
		`{"price":5}`,
	})
	defer server.Close()

	var (
		connected bool
		got       []market.PricePoint
	)
	err := NewClient(wsURL(server)).Stream(context.Background(), []string{"USD_CLP", "XAU_USD"}, quotes.StreamHandler{
		OnConnect: func() { connected = true },
		OnPrice:   func(p market.PricePoint) { got = append(got, p) },
	})
	require.NoError(t, err)
	assert.True(t, connected)
	require.Len(t, got, 2)
	assert.InDelta(t, 900.0, got[0].Price, 1e-9)
	assert.InDelta(t, 1.0, got[0].Spread(), 1e-9)
	assert.Equal(t, "XAU_USD", got[1].Instrument)
	assert.InDelta(t, 2031.5, got[1].Price, 1e-9)
}

func TestStreamDialError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	err := NewClient(wsURL(server)).Stream(context.Background(), []string{"USD_CLP"}, quotes.StreamHandler{})
	require.Error(t, err)
}

func TestStreamThroughLive(t *testing.T) {
	server := feedServer(t, []string{
		`{"instrument":"USD_CLP","price":901,"time":"` + time.Now().UTC().Format(time.RFC3339Nano) + `"}`,
	})
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	live := quotes.NewLive(NewClient(wsURL(server)), []string{"USD_CLP"}, time.Minute, zerolog.Nop())
	go live.Run(ctx)

	require.Eventually(t, func() bool {
		p, err := live.Fetch(ctx, "USD_CLP")
		return err == nil && p.Price == 901
	}, 2*time.Second, 10*time.Millisecond)
}
