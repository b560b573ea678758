package risk

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

// PlannedRisk is the account-currency loss if the stop is hit.
func PlannedRisk(volume, entry, stop, quoteToAccount float64) float64 {
	return volume * abs(entry-stop) * quoteToAccount
}

// RR is reward over risk for the given levels, 0 when risk is 0.
func RR(entry, stop, target float64) float64 {
	risk := abs(entry - stop)
	reward := abs(target - entry)
	if risk == 0 {
		return 0
	}
	return reward / risk
}

// ProjectedNet is the profit at target after paying the spread once per
// unit: ((|target-entry|) - spread) * volume.
func ProjectedNet(entry, target, spread, volume float64) float64 {
	return (abs(target-entry) - spread) * volume
}

// MarginRequired is the collateral needed to hold volume at entry.
func MarginRequired(entry, volume, leverage float64) float64 {
	if leverage <= 0 {
		leverage = 1
	}
	return entry * volume / leverage
}
