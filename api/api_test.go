package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/hedger/journal"
	"github.com/rustyeddy/hedger/live"
	"github.com/rustyeddy/hedger/risk"
	"github.com/rustyeddy/hedger/signal"
)

// MockEngine implements Engine for testing
type MockEngine struct {
	mock.Mock
}

func (m *MockEngine) Verdict() (signal.Verdict, error) {
	args := m.Called()
	return args.Get(0).(signal.Verdict), args.Error(1)
}

func (m *MockEngine) Health() live.Health {
	return m.Called().Get(0).(live.Health)
}

func (m *MockEngine) Risk() live.RiskView {
	return m.Called().Get(0).(live.RiskView)
}

func (m *MockEngine) RecordPnL(amount float64) live.RiskView {
	return m.Called(amount).Get(0).(live.RiskView)
}

func (m *MockEngine) MarkBalance(balance float64) live.RiskView {
	return m.Called(balance).Get(0).(live.RiskView)
}

func (m *MockEngine) ResetHistory() live.Health {
	return m.Called().Get(0).(live.Health)
}

func (m *MockEngine) ResetRisk() live.RiskView {
	return m.Called().Get(0).(live.RiskView)
}

func (m *MockEngine) RecordTrade(req live.TradeRequest) (journal.TradeRecord, error) {
	args := m.Called(req)
	return args.Get(0).(journal.TradeRecord), args.Error(1)
}

func serve(t *testing.T, m *MockEngine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	router := NewHandler(m, zerolog.Nop()).SetupRoutes()

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestGetVerdict(t *testing.T) {
	m := new(MockEngine)
	m.On("Verdict").Return(signal.Verdict{
		Time:   time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC),
		State:  signal.Buy,
		Reason: signal.ReasonHedgeConfirmed,
		Entry:  803,
		Target: 805.5,
		Stop:   801.5,
		Correlations: []signal.Correlation{
			{Instrument: "XAU_USD", Value: -0.99, Available: true},
		},
		DegradedSources: []string{},
	}, nil)

	w := serve(t, m, http.MethodGet, "/verdict", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(RequestIDHeaderKey))

	body := decode(t, w)
	assert.Equal(t, "SIGNAL_BUY", body["state"])
	assert.Equal(t, "HEDGE_CONFIRMED", body["reason"])
	assert.InDelta(t, 805.5, body["target"], 1e-9)
	assert.Len(t, body["correlations"], 1)
	m.AssertExpectations(t)
}

func TestGetVerdictBeforeFirstCycle(t *testing.T) {
	m := new(MockEngine)
	m.On("Verdict").Return(signal.Verdict{}, live.ErrNoVerdict)

	w := serve(t, m, http.MethodGet, "/verdict", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := decode(t, w)
	assert.Equal(t, live.ErrNoVerdict.Error(), body["error"])
	assert.Equal(t, w.Header().Get(RequestIDHeaderKey), body["request_id"])
}

func TestGetHealth(t *testing.T) {
	tests := []struct {
		status string
		code   int
	}{
		{live.StatusHealthy, http.StatusOK},
		{live.StatusDegraded, http.StatusOK},
		{live.StatusStarting, http.StatusOK},
		{live.StatusUnhealthy, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			m := new(MockEngine)
			m.On("Health").Return(live.Health{Status: tt.status, Streams: map[string]bool{"oanda-stream": true}})

			w := serve(t, m, http.MethodGet, "/health", "")
			assert.Equal(t, tt.code, w.Code)
			body := decode(t, w)
			assert.Equal(t, tt.status, body["status"])
			assert.Equal(t, map[string]any{"oanda-stream": true}, body["streams"])
		})
	}
}

func riskView(killed bool) live.RiskView {
	s := risk.NewState(500000, 0.02, "2024-01-02")
	if killed {
		s.Record(-10000)
	}
	return live.RiskView{State: s, Mode: s.Mode(), Loss: s.Loss(), Limit: s.Limit(), Equity: s.Equity()}
}

func TestRiskEndpoints(t *testing.T) {
	m := new(MockEngine)
	m.On("Risk").Return(riskView(false))
	m.On("RecordPnL", -10000.0).Return(riskView(true))
	m.On("MarkBalance", 490000.0).Return(riskView(true))
	m.On("ResetRisk").Return(riskView(false))

	w := serve(t, m, http.MethodGet, "/risk", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ARMED", decode(t, w)["mode"])

	w = serve(t, m, http.MethodPost, "/risk/pnl", `{"amount": -10000}`)
	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "KILLED", body["mode"])
	assert.Equal(t, true, body["killed"])

	w = serve(t, m, http.MethodPost, "/risk/balance", `{"balance": 490000}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "KILLED", decode(t, w)["mode"])

	w = serve(t, m, http.MethodPost, "/risk/reset", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ARMED", decode(t, w)["mode"])

	m.AssertExpectations(t)
}

func TestHistoryReset(t *testing.T) {
	m := new(MockEngine)
	m.On("ResetHistory").Return(live.Health{Status: live.StatusUnhealthy, Streams: map[string]bool{}})

	w := serve(t, m, http.MethodPost, "/history/reset", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, live.StatusUnhealthy, decode(t, w)["status"])
	m.AssertExpectations(t)
}

func TestPostPnLValidation(t *testing.T) {
	m := new(MockEngine)

	for _, body := range []string{`{}`, `{"amount": "ten"}`, `not json`} {
		w := serve(t, m, http.MethodPost, "/risk/pnl", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
	m.AssertNotCalled(t, "RecordPnL", mock.Anything)

	w := serve(t, m, http.MethodPost, "/risk/balance", `{"amount": 1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	m.AssertNotCalled(t, "MarkBalance", mock.Anything)
}

func TestPostTrade(t *testing.T) {
	m := new(MockEngine)
	req := live.TradeRequest{Direction: "BUY", EnginePrice: 803, BrokerPrice: 803.25, Outcome: "filled"}
	m.On("RecordTrade", req).Return(journal.TradeRecord{
		ID:          "01HZX",
		Direction:   "BUY",
		EnginePrice: decimal.NewFromFloat(803),
		BrokerPrice: decimal.NewFromFloat(803.25),
		Lag:         decimal.RequireFromString("0.25"),
		Outcome:     "filled",
	}, nil)

	w := serve(t, m, http.MethodPost, "/trades", `{"direction":"BUY","engine_price":803,"broker_price":803.25,"outcome":"filled"}`)
	assert.Equal(t, http.StatusCreated, w.Code)
	body := decode(t, w)
	assert.Equal(t, "01HZX", body["id"])
	assert.Equal(t, "0.25", body["lag"])
	m.AssertExpectations(t)
}

func TestPostTradeErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		err  error
		code int
	}{
		{"bad direction", `{"direction":"HOLD","engine_price":1,"broker_price":1}`, nil, http.StatusBadRequest},
		{"missing price", `{"direction":"BUY","engine_price":1}`, nil, http.StatusBadRequest},
		{"no journal", `{"direction":"BUY","engine_price":1,"broker_price":1}`, live.ErrNoJournal, http.StatusServiceUnavailable},
		{"write failure", `{"direction":"BUY","engine_price":1,"broker_price":1}`, errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := new(MockEngine)
			if tt.err != nil {
				m.On("RecordTrade", mock.Anything).Return(journal.TradeRecord{}, tt.err)
			}
			w := serve(t, m, http.MethodPost, "/trades", tt.body)
			assert.Equal(t, tt.code, w.Code)
			assert.Contains(t, decode(t, w), "error")
		})
	}
}

func TestRequestIDPassthrough(t *testing.T) {
	m := new(MockEngine)
	m.On("Risk").Return(riskView(false))
	router := NewHandler(m, zerolog.Nop()).SetupRoutes()

	req := httptest.NewRequest(http.MethodGet, "/risk", nil)
	req.Header.Set(RequestIDHeaderKey, "abc-123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeaderKey))
}

func TestMetricsRoute(t *testing.T) {
	w := serve(t, new(MockEngine), http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "hedger_kill_switch")
}
