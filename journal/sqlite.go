package journal

import (
	"database/sql"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

type SQLiteJournal struct {
	mu     sync.Mutex
	db     *sql.DB
	closed bool
}

func NewSQLite(path string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLiteJournal{db: db}, nil
}

// Record inserts t. Prices are stored as decimal strings.
func (j *SQLiteJournal) Record(t TradeRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return ErrClosed
	}
	_, err := j.db.Exec(`
		INSERT INTO trades
		(id, time, direction, engine_price, broker_price, lag, outcome)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Time.UTC(), t.Direction, t.EnginePrice.String(),
		t.BrokerPrice.String(), t.Lag.String(), t.Outcome,
	)
	return err
}

func (j *SQLiteJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return ErrClosed
	}
	j.closed = true
	return j.db.Close()
}
