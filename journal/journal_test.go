package journal

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/hedger/config"
	"github.com/rustyeddy/hedger/internal/id"
)

var confirmed = time.Date(2026, 1, 12, 14, 30, 0, 0, time.UTC)

func TestNewRecordLagIsExact(t *testing.T) {
	t.Parallel()

	rec, err := NewRecord(confirmed, "buy", 950.12, 950.5, " filled ")
	require.NoError(t, err)

	assert.Equal(t, Buy, rec.Direction)
	assert.Equal(t, "filled", rec.Outcome)
	assert.True(t, rec.Lag.Equal(decimal.RequireFromString("0.38")), "lag %s", rec.Lag)

	ts, err := id.Time(rec.ID)
	require.NoError(t, err)
	assert.True(t, ts.Equal(confirmed))

	rec, err = NewRecord(confirmed, "SELL", 950.5, 950.12, "")
	require.NoError(t, err)
	assert.Equal(t, "-0.38", rec.Lag.String())
}

func TestNewRecordValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		direction string
		engine    float64
		broker    float64
	}{
		{"bad direction", "HOLD", 1, 1},
		{"zero engine", "BUY", 0, 1},
		{"negative broker", "SELL", 1, -1},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewRecord(confirmed, tt.direction, tt.engine, tt.broker, "")
			assert.Error(t, err)
		})
	}
}

func TestNewPicksBackend(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	j, err := New(config.JournalConfig{Type: "csv", Path: filepath.Join(dir, "t.csv")})
	require.NoError(t, err)
	assert.IsType(t, &CSVJournal{}, j)
	assert.NoError(t, j.Close())

	j, err = New(config.JournalConfig{Type: "sqlite", Path: filepath.Join(dir, "t.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteJournal{}, j)
	assert.NoError(t, j.Close())

	_, err = New(config.JournalConfig{Type: "parquet", Path: "x"})
	assert.Error(t, err)
}
