package rank

import (
	"fmt"
	"math/rand"
	"sync"
)

const (
	// defaultNoiseLow and defaultNoiseHigh bound the stock multiplicative
	// jitter applied to combined scores.
	defaultNoiseLow  = 0.8
	defaultNoiseHigh = 1.2
)

// Noise generates bounded multiplicative jitter, uniform in [Low, High].
// Its purpose is to break deterministic rank ties and loosely emulate
// real-feed stochasticity; with Low = High = 1.0 it is a no-op. The
// generator is seeded through the injected source, so runs are
// reproducible for a fixed seed.
type Noise struct {
	Low  float64
	High float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewNoise builds a jitter generator over [low, high] backed by rng.
func NewNoise(low, high float64, rng *rand.Rand) (*Noise, error) {
	if high < low {
		return nil, fmt.Errorf("noise: high=%f below low=%f", high, low)
	}
	if rng == nil {
		return nil, fmt.Errorf("noise: nil rng")
	}
	return &Noise{Low: low, High: high, rng: rng}, nil
}

// NeutralNoise returns a no-op generator (every sample is exactly 1.0).
func NeutralNoise() *Noise {
	return &Noise{Low: 1.0, High: 1.0, rng: rand.New(rand.NewSource(0))}
}

// Sample draws one jitter factor.
func (n *Noise) Sample() float64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.Low + n.rng.Float64()*(n.High-n.Low)
}

// Samples draws count jitter factors.
func (n *Noise) Samples(count int) []float64 {
	out := make([]float64, count)
	for i := range out {
		out[i] = n.Sample()
	}
	return out
}
