// Package rank scores (user, post) pairs each simulation step. It
// combines a network-wide engagement signal with a per-user affinity
// signal and multiplicative noise, and owns the visibility filter that
// decides which posts a user may see at all.
package rank

import "math"

const (
	// defaultDecayMinimum is the floor an aged signal decays towards.
	defaultDecayMinimum = 0.2

	// defaultDecayWindow is the reference window, in steps, over which a
	// signal decays from 1.0 down to the minimum.
	defaultDecayWindow = 3.0
)

// Decay down-weights observations by their age relative to a reference
// point. The value is 1.0 when the observation coincides with the
// reference and falls linearly to Minimum over Window steps. Pure and
// stateless.
//
// Elapsed time is expected to be non-negative: a future-dated observation
// is not validated and yields a value above 1.0.
type Decay struct {
	Minimum float64
	Window  float64
}

// DefaultDecay returns the decay used by the stock ranking strategies.
func DefaultDecay() Decay {
	return Decay{Minimum: defaultDecayMinimum, Window: defaultDecayWindow}
}

// Apply returns the decay factor for an observation made at observedAt,
// evaluated at referenceAt. Both are step-domain times.
func (d Decay) Apply(observedAt, referenceAt float64) float64 {
	decay := 1.0 - (referenceAt-observedAt)/d.Window
	return math.Max(decay, d.Minimum)
}
