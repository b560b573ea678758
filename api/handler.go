package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rustyeddy/hedger/live"
)

// GetVerdict handles GET /verdict
func (h *Handler) GetVerdict(c *gin.Context) {
	v, err := h.engine.Verdict()
	if err != nil {
		h.handleError(c, err, http.StatusServiceUnavailable, err.Error())
		return
	}
	c.JSON(http.StatusOK, v)
}

// GetHealth handles GET /health. An unhealthy engine answers 503 so
// probes can act on the status code alone.
func (h *Handler) GetHealth(c *gin.Context) {
	health := h.engine.Health()
	code := http.StatusOK
	if health.Status == live.StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, health)
}

func (h *Handler) GetRisk(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine.Risk())
}

type pnlRequest struct {
	Amount *float64 `json:"amount" binding:"required"`
}

// PostPnL handles POST /risk/pnl
func (h *Handler) PostPnL(c *gin.Context) {
	var req pnlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.handleError(c, err, http.StatusBadRequest, "body must be {\"amount\": number}")
		return
	}
	c.JSON(http.StatusOK, h.engine.RecordPnL(*req.Amount))
}

type balanceRequest struct {
	Balance *float64 `json:"balance" binding:"required"`
}

// PostBalance handles POST /risk/balance
func (h *Handler) PostBalance(c *gin.Context) {
	var req balanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.handleError(c, err, http.StatusBadRequest, "body must be {\"balance\": number}")
		return
	}
	c.JSON(http.StatusOK, h.engine.MarkBalance(*req.Balance))
}

// PostReset handles POST /risk/reset
func (h *Handler) PostReset(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine.ResetRisk())
}

// PostHistoryReset handles POST /history/reset
func (h *Handler) PostHistoryReset(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine.ResetHistory())
}

type tradeRequest struct {
	Direction   string  `json:"direction" binding:"required,oneof=BUY SELL buy sell"`
	EnginePrice float64 `json:"engine_price" binding:"required,gt=0"`
	BrokerPrice float64 `json:"broker_price" binding:"required,gt=0"`
	Outcome     string  `json:"outcome"`
}

// PostTrade handles POST /trades
func (h *Handler) PostTrade(c *gin.Context) {
	var req tradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.handleError(c, err, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := h.engine.RecordTrade(live.TradeRequest{
		Direction:   req.Direction,
		EnginePrice: req.EnginePrice,
		BrokerPrice: req.BrokerPrice,
		Outcome:     req.Outcome,
	})
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, live.ErrNoJournal) {
			code = http.StatusServiceUnavailable
		}
		h.handleError(c, err, code, err.Error())
		return
	}
	c.JSON(http.StatusCreated, rec)
}

// handleError logs the error and sends a JSON error body carrying the
// request id.
func (h *Handler) handleError(c *gin.Context, err error, statusCode int, userMessage string) {
	requestID := c.GetString(RequestIDContextKey)
	if requestID == "" {
		requestID = "unknown"
	}

	h.log.Error().
		Err(err).
		Str("request_id", requestID).
		Str("method", c.Request.Method).
		Str("path", c.Request.URL.Path).
		Int("status_code", statusCode).
		Msg("api error")

	c.JSON(statusCode, gin.H{
		"error":      userMessage,
		"request_id": requestID,
	})
}
