package ranking

import "math"

// AgePenalty returns the score reduction for an entity that is ageHours old.
// The penalty grows linearly per 24 hours, scaled by factor, and never
// exceeds maxPenalty.
func AgePenalty(ageHours, factor, maxPenalty float64) float64 {
	penalty := (ageHours / 24) * factor
	if penalty > maxPenalty {
		return maxPenalty
	}
	return penalty
}

// Score computes the trending score of rec under cfg. The result is never
// negative.
func Score(rec Record, cfg Config) float64 {
	return score(rec, cfg.Weights, compileFields(cfg.Fields, cfg.FilterField))
}

func score(rec Record, w Weights, t fieldTable) float64 {
	var raw float64

	if truthy(t.Resolve(SignalLast24Hrs, rec)) {
		raw += w[SignalLast24Hrs.String()]
	}
	if truthy(t.Resolve(SignalUpdatedRecently, rec)) {
		raw += w[SignalUpdatedRecently.String()]
	}

	for _, s := range numericSignals {
		raw += number(t.Resolve(s, rec)) * w[s.String()]
	}

	raw -= AgePenalty(
		number(t.Resolve(SignalAgeHours, rec)),
		w[WeightAgePenaltyFactor],
		w[WeightMaxAgePenalty],
	)

	if raw < 0 || math.IsNaN(raw) {
		return 0
	}
	return raw
}
