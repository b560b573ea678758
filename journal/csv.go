package journal

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

var csvHeader = []string{"timestamp", "direction", "engine_price", "broker_price", "lag", "outcome"}

type CSVJournal struct {
	mu   sync.Mutex
	path string
	f    *os.File
	w    *csv.Writer
}

// NewCSV opens path for appending. The header is written only when the
// file is new or empty.
func NewCSV(path string) (*CSVJournal, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	w := csv.NewWriter(f)
	if st.Size() == 0 {
		if err := w.Write(csvHeader); err != nil {
			_ = f.Close()
			return nil, err
		}
		w.Flush()
		if err := w.Error(); err != nil {
			_ = f.Close()
			return nil, err
		}
	}
	return &CSVJournal{path: path, f: f, w: w}, nil
}

func (j *CSVJournal) Record(t TradeRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.f == nil {
		return ErrClosed
	}
	err := j.w.Write([]string{
		t.Time.UTC().Format(time.RFC3339Nano),
		t.Direction,
		t.EnginePrice.String(),
		t.BrokerPrice.String(),
		t.Lag.String(),
		t.Outcome,
	})
	if err != nil {
		return err
	}
	j.w.Flush()
	return j.w.Error()
}

// ListBetween reads back rows stamped within [start, end).
func (j *CSVJournal) ListBetween(start, end time.Time) ([]TradeRecord, error) {
	j.mu.Lock()
	path := j.path
	j.mu.Unlock()
	return ReadCSV(path, start, end)
}

func (j *CSVJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.f == nil {
		return ErrClosed
	}
	j.w.Flush()
	werr := j.w.Error()
	cerr := j.f.Close()
	j.f = nil
	if werr != nil {
		return werr
	}
	return cerr
}

// ReadCSV parses a CSV journal and returns rows within [start, end).
// CSV rows carry no ID.
func ReadCSV(path string, start, end time.Time) ([]TradeRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(csvHeader)

	var out []TradeRecord
	for line := 1; ; line++ {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if line == 1 && row[0] == csvHeader[0] {
			continue
		}
		rec, err := parseRow(row)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		if rec.Time.Before(start) || !rec.Time.Before(end) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func parseRow(row []string) (TradeRecord, error) {
	ts, err := time.Parse(time.RFC3339Nano, row[0])
	if err != nil {
		return TradeRecord{}, err
	}
	engine, err := decimal.NewFromString(row[2])
	if err != nil {
		return TradeRecord{}, err
	}
	broker, err := decimal.NewFromString(row[3])
	if err != nil {
		return TradeRecord{}, err
	}
	lag, err := decimal.NewFromString(row[4])
	if err != nil {
		return TradeRecord{}, err
	}
	return TradeRecord{
		Time:        ts,
		Direction:   row[1],
		EnginePrice: engine,
		BrokerPrice: broker,
		Lag:         lag,
		Outcome:     row[5],
	}, nil
}
