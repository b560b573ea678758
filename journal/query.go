package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const selectTrades = `SELECT id, time, direction, engine_price, broker_price, lag, outcome FROM trades`

type scanner interface {
	Scan(dest ...any) error
}

func scanTrade(s scanner) (TradeRecord, error) {
	var rec TradeRecord
	err := s.Scan(
		&rec.ID,
		&rec.Time,
		&rec.Direction,
		&rec.EnginePrice,
		&rec.BrokerPrice,
		&rec.Lag,
		&rec.Outcome,
	)
	rec.Time = rec.Time.UTC()
	return rec, err
}

// Get returns a single trade record by ID.
func (j *SQLiteJournal) Get(id string) (TradeRecord, error) {
	row := j.db.QueryRow(selectTrades+` WHERE id = ?`, id)
	rec, err := scanTrade(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return TradeRecord{}, fmt.Errorf("trade %q not found", id)
		}
		return TradeRecord{}, err
	}
	return rec, nil
}

// ListBetween returns trades stamped within [start, end), oldest first.
func (j *SQLiteJournal) ListBetween(start, end time.Time) ([]TradeRecord, error) {
	rows, err := j.db.Query(selectTrades+`
		WHERE time >= ? AND time < ?
		ORDER BY time ASC, id ASC`, start.UTC(), end.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		rec, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
