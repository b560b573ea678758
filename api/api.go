// Package api is the operator's HTTP surface: the latest verdict, health,
// the risk switch, trade confirmation and prometheus metrics.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/rustyeddy/hedger/journal"
	"github.com/rustyeddy/hedger/live"
	"github.com/rustyeddy/hedger/metrics"
	"github.com/rustyeddy/hedger/signal"
)

const (
	RequestIDContextKey = "request_id"
	RequestIDHeaderKey  = "X-Request-ID"

	shutdownTimeout = 5 * time.Second
)

// Engine is the part of the live runner the API drives.
type Engine interface {
	Verdict() (signal.Verdict, error)
	Health() live.Health
	Risk() live.RiskView
	RecordPnL(amount float64) live.RiskView
	MarkBalance(balance float64) live.RiskView
	ResetHistory() live.Health
	ResetRisk() live.RiskView
	RecordTrade(req live.TradeRequest) (journal.TradeRecord, error)
}

type Handler struct {
	engine Engine
	log    zerolog.Logger
}

func NewHandler(engine Engine, log zerolog.Logger) *Handler {
	return &Handler{engine: engine, log: log}
}

// SetupRoutes configures all API routes
func (h *Handler) SetupRoutes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(requestIDMiddleware())
	router.Use(loggerMiddleware(h.log))
	router.Use(gin.Recovery())

	router.GET("/verdict", h.GetVerdict)
	router.GET("/health", h.GetHealth)
	router.GET("/risk", h.GetRisk)
	router.POST("/risk/pnl", h.PostPnL)
	router.POST("/risk/balance", h.PostBalance)
	router.POST("/history/reset", h.PostHistoryReset)
	router.POST("/risk/reset", h.PostReset)
	router.POST("/trades", h.PostTrade)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	return router
}

// Serve listens on addr until ctx is cancelled, then shuts down.
func (h *Handler) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: h.SetupRoutes()}

	errc := make(chan error, 1)
	go func() {
		h.log.Info().Str("addr", addr).Msg("api listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
