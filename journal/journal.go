// Package journal records trades the operator confirmed at the broker.
//
// Journals are append-only: rows are never rewritten or deleted.
package journal

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/hedger/config"
	"github.com/rustyeddy/hedger/internal/id"
)

var ErrClosed = errors.New("journal: closed")

const (
	Buy  = "BUY"
	Sell = "SELL"
)

// TradeRecord is one confirmed execution. Lag is broker minus engine
// price, kept exact.
type TradeRecord struct {
	ID          string          `json:"id"`
	Time        time.Time       `json:"timestamp"`
	Direction   string          `json:"direction"`
	EnginePrice decimal.Decimal `json:"engine_price"`
	BrokerPrice decimal.Decimal `json:"broker_price"`
	Lag         decimal.Decimal `json:"lag"`
	Outcome     string          `json:"outcome"`
}

type Journal interface {
	Record(TradeRecord) error
	Close() error
}

// Lister is implemented by journals that can read their rows back.
type Lister interface {
	ListBetween(start, end time.Time) ([]TradeRecord, error)
}

// NewRecord builds a record stamped at t. Direction is case-insensitive.
func NewRecord(t time.Time, direction string, enginePrice, brokerPrice float64, outcome string) (TradeRecord, error) {
	dir := strings.ToUpper(strings.TrimSpace(direction))
	if dir != Buy && dir != Sell {
		return TradeRecord{}, fmt.Errorf("direction must be BUY or SELL, got %q", direction)
	}
	if !(enginePrice > 0) || !(brokerPrice > 0) {
		return TradeRecord{}, fmt.Errorf("prices must be positive: engine=%v broker=%v", enginePrice, brokerPrice)
	}

	engine := decimal.NewFromFloat(enginePrice)
	broker := decimal.NewFromFloat(brokerPrice)
	return TradeRecord{
		ID:          id.At(t),
		Time:        t.UTC(),
		Direction:   dir,
		EnginePrice: engine,
		BrokerPrice: broker,
		Lag:         broker.Sub(engine),
		Outcome:     strings.TrimSpace(outcome),
	}, nil
}

// New opens the journal backend named by cfg.Type.
func New(cfg config.JournalConfig) (Journal, error) {
	switch cfg.Type {
	case "csv":
		return NewCSV(cfg.Path)
	case "sqlite":
		return NewSQLite(cfg.Path)
	}
	return nil, fmt.Errorf("unknown journal type %q", cfg.Type)
}
