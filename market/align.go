package market

import "time"

// AlignAsOf pairs every base point with the newest other point at or before
// it, carrying the other series forward across gaps. A point up to skew
// after the base time still counts as "at" it, so quotes stamped a little
// apart within one poll pair up. Base points with no match, or whose match
// is older than maxLag (0 means no limit), are dropped. Both inputs must be
// ordered oldest first.
func AlignAsOf(base, other []PricePoint, skew, maxLag time.Duration) (x, y []float64) {
	x = make([]float64, 0, len(base))
	y = make([]float64, 0, len(base))
	j := -1
	for _, b := range base {
		limit := b.Time.Add(skew)
		for j+1 < len(other) && !other[j+1].Time.After(limit) {
			j++
		}
		if j < 0 {
			continue
		}
		if maxLag > 0 && b.Time.Sub(other[j].Time) > maxLag {
			continue
		}
		x = append(x, b.Price)
		y = append(y, other[j].Price)
	}
	return x, y
}
