package fees

import "fmt"

// Strategy is a named fee-bidding posture.
type Strategy string

const (
	StrategyConservative Strategy = "conservative"
	StrategyBalanced     Strategy = "balanced"
	StrategyAggressive   Strategy = "aggressive"
	StrategyDynamic      Strategy = "dynamic"
)

type strategyParams struct {
	percentile float64
	multiplier float64
}

var strategies = map[Strategy]strategyParams{
	StrategyConservative: {percentile: 0.25, multiplier: 0.8},
	StrategyBalanced:     {percentile: 0.50, multiplier: 1.0},
	StrategyAggressive:   {percentile: 0.75, multiplier: 1.5},
	StrategyDynamic:      {percentile: 0.60, multiplier: 1.0},
}

// ParseStrategy validates a strategy name.
func ParseStrategy(s string) (Strategy, error) {
	st := Strategy(s)
	if _, ok := strategies[st]; !ok {
		return "", fmt.Errorf("fees: unknown strategy %q", s)
	}
	return st, nil
}

// FeeForStrategy applies the strategy's percentile and multiplier on top of
// the caller's urgency. Dynamic takes the larger of the percentile fee and
// the regression prediction.
func (e *Estimator) FeeForStrategy(s Strategy, urgency float64) uint64 {
	p, ok := strategies[s]
	if !ok {
		p = strategies[StrategyBalanced]
	}
	fee := e.CalculateOptimalFee(p.percentile, e.cfg.MinFee, urgency*p.multiplier)
	if s == StrategyDynamic {
		if predicted := e.PredictNextFee(); predicted > fee {
			fee = predicted
		}
	}
	return fee
}
