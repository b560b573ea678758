package market

import (
	"errors"
	"fmt"
)

var ErrOutOfOrder = errors.New("price point older than newest in history")

// HistoryBuffer is a fixed-capacity FIFO ring of PricePoints for one
// instrument. Timestamps are non-decreasing; the oldest point is evicted
// first once the buffer is full.
//
// A HistoryBuffer has a single writer. Readers must not run concurrently
// with Push.
type HistoryBuffer struct {
	instrument string
	points     []PricePoint
	head       int // index of the oldest point
	n          int
}

func NewHistoryBuffer(instrument string, capacity int) *HistoryBuffer {
	if capacity <= 0 {
		capacity = 1
	}
	return &HistoryBuffer{
		instrument: instrument,
		points:     make([]PricePoint, capacity),
	}
}

func (b *HistoryBuffer) Len() int { return b.n }
func (b *HistoryBuffer) Cap() int { return len(b.points) }

// Push appends p, evicting the oldest point when full.
func (b *HistoryBuffer) Push(p PricePoint) error {
	if !p.Valid() {
		return fmt.Errorf("history %s: invalid price point %v @ %s", b.instrument, p.Price, p.Time)
	}
	if last, ok := b.Last(); ok && p.Time.Before(last.Time) {
		return fmt.Errorf("history %s: %w (%s < %s)", b.instrument, ErrOutOfOrder, p.Time, last.Time)
	}

	if b.n < len(b.points) {
		b.points[(b.head+b.n)%len(b.points)] = p
		b.n++
		return nil
	}
	b.points[b.head] = p
	b.head = (b.head + 1) % len(b.points)
	return nil
}

// Last returns the newest point.
func (b *HistoryBuffer) Last() (PricePoint, bool) {
	if b.n == 0 {
		return PricePoint{}, false
	}
	return b.at(b.n - 1), true
}

// Points returns a copy of the buffer, oldest first.
func (b *HistoryBuffer) Points() []PricePoint {
	return b.LastPoints(b.n)
}

// LastPoints returns the newest n points, oldest first.
func (b *HistoryBuffer) LastPoints(n int) []PricePoint {
	if n > b.n {
		n = b.n
	}
	if n <= 0 {
		return nil
	}
	out := make([]PricePoint, n)
	start := b.n - n
	for i := 0; i < n; i++ {
		out[i] = b.at(start + i)
	}
	return out
}

// Values returns the prices, oldest first.
func (b *HistoryBuffer) Values() []float64 {
	return b.LastN(b.n)
}

// LastN returns the newest n prices, oldest first. If fewer than n are
// held, all of them are returned.
func (b *HistoryBuffer) LastN(n int) []float64 {
	if n > b.n {
		n = b.n
	}
	if n <= 0 {
		return nil
	}
	out := make([]float64, n)
	start := b.n - n
	for i := 0; i < n; i++ {
		out[i] = b.at(start + i).Price
	}
	return out
}

func (b *HistoryBuffer) Reset() {
	b.head = 0
	b.n = 0
}

func (b *HistoryBuffer) at(i int) PricePoint {
	return b.points[(b.head+i)%len(b.points)]
}
