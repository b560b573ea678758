package risk

// USD_CLP in a CLP account → quote = CLP → QuoteToAccount = 1.0
// EUR_USD in a CLP account → quote = USD → QuoteToAccount = USDCLP mid

import "math"

type Inputs struct {
	Equity         float64
	RiskPct        float64 // 0.005
	EntryPrice     float64
	StopPrice      float64
	PipLocation    int
	QuoteToAccount float64
}

type Result struct {
	Units      float64
	StopPips   float64
	RiskAmount float64
}

func pipSize(loc int) float64 {
	return math.Pow(10, float64(loc))
}

// Calculate sizes a position so hitting the stop loses RiskPct of equity.
// A zero stop distance yields zero units.
func Calculate(in Inputs) Result {
	pip := pipSize(in.PipLocation)
	stopPips := math.Abs(in.EntryPrice-in.StopPrice) / pip
	riskAmt := in.Equity * in.RiskPct

	pipValuePerUnit := pip * in.QuoteToAccount
	if stopPips == 0 || pipValuePerUnit <= 0 {
		return Result{StopPips: stopPips, RiskAmount: riskAmt}
	}

	units := riskAmt / (stopPips * pipValuePerUnit)
	return Result{
		Units:      math.Floor(units),
		StopPips:   stopPips,
		RiskAmount: riskAmt,
	}
}
