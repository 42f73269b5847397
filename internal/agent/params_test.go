package agent

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPowerLawSample_Bounds(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 10_000; i++ {
		v := PowerLawSample(rng, 0.2, 5.0, 2.5)
		require.GreaterOrEqual(t, v, 0.2)
		require.LessOrEqual(t, v, 5.0)
	}
}

func TestPowerLawSample_MassConcentratesAtMin(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	const draws = 50_000

	belowMidpoint := 0
	for i := 0; i < draws; i++ {
		if PowerLawSample(rng, 0.0, 1.0, 5.0) < 0.5 {
			belowMidpoint++
		}
	}
	assert.Greater(t, float64(belowMidpoint)/draws, 0.9,
		"shape 5.0 should put almost all mass near the minimum")
}

func TestEstimateParams_Deterministic(t *testing.T) {
	a := EstimateParams(12.0, 42)
	b := EstimateParams(12.0, 42)
	assert.Equal(t, a, b)

	c := EstimateParams(12.0, 43)
	assert.NotEqual(t, a, c, "different seeds draw different parameters")
}

func TestEstimateParams_Ranges(t *testing.T) {
	for seed := int64(0); seed < 200; seed++ {
		p := EstimateParams(10.0, seed)
		assert.GreaterOrEqual(t, p.ActivationProbability, 0.006)
		assert.LessOrEqual(t, p.ActivationProbability, 0.8)
		assert.GreaterOrEqual(t, p.ReadAmount, 3,
			"daily reads are at least three per activated step")
		assert.Positive(t, p.PostingProbability)
	}
}

func TestEstimateParams_PostingScalesWithVolume(t *testing.T) {
	quiet := EstimateParams(1.0, 42)
	loud := EstimateParams(100.0, 42)
	assert.Greater(t, loud.PostingProbability, quiet.PostingProbability)
	assert.Equal(t, quiet.ActivationProbability, loud.ActivationProbability,
		"activation draw depends only on the seed")
}
