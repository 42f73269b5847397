package agent

import (
	"math"
	"math/rand"
)

// stepsPerDay assumes one simulation step per ten minutes of modeled
// time.
const stepsPerDay = 24 * 6

// PowerLawSample draws from [min, max] with the mass concentrated at
// min. shape controls the concentration; higher values push the
// distribution harder toward min.
func PowerLawSample(rng *rand.Rand, min, max, shape float64) float64 {
	// The power distribution with density shape*x^(shape-1) on [0,1]
	// is sampled by inverse CDF as U^(1/shape) and biased toward 1;
	// inverting maps the heavy side onto min.
	sample := 1 - math.Pow(rng.Float64(), 1/shape)
	return min + (max-min)*sample
}

// EstimateParams derives behavioral parameters from an empirical
// posts-per-day figure. Activation probability follows a power law
// (most users activate rarely), daily reads are drawn within an
// activation-dependent band, and posting probability is fitted so the
// expected daily output matches postsPerDay.
func EstimateParams(postsPerDay float64, seed int64) Params {
	rng := rand.New(rand.NewSource(seed))

	activation := PowerLawSample(rng, 0.006, 0.8, 5.0)

	lower := activation * stepsPerDay * 3
	upper := math.Min(activation*stepsPerDay*6+200, 750)
	readsPerDay := PowerLawSample(rng, lower, upper, 2.5)

	return Params{
		ActivationProbability: activation,
		PostingProbability:    postsPerDay / (stepsPerDay * activation),
		ReadAmount:            int(readsPerDay / (stepsPerDay * activation)),
	}
}
