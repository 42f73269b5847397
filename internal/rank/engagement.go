package rank

import "math"

// Engagement aggregates timestamped interaction events into a scalar by
// summing their decayed weights, optionally compressing the result with a
// natural log.
type Engagement struct {
	LogNormalize bool
}

// Aggregate sums decay.Apply(event, referenceAt) over all events. An
// empty event list returns 0 before log-normalization is considered:
// "no engagement yet" is a normal state, not an error, and log(0) must
// never be evaluated.
func (e Engagement) Aggregate(events []float64, referenceAt float64, decay Decay) float64 {
	if len(events) == 0 {
		return 0
	}
	var raw float64
	for _, observedAt := range events {
		raw += decay.Apply(observedAt, referenceAt)
	}
	if e.LogNormalize {
		return math.Log(raw)
	}
	return raw
}
