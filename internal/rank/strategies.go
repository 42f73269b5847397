package rank

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"

	"github.com/driftlab/socsim/pkg/types"
)

// ErrMissingEmbedding is returned when similarity scoring needs an
// embedding that enrichment has not produced yet. Callers must treat the
// pair as unscorable rather than assume zero similarity.
var ErrMissingEmbedding = errors.New("rank: post embedding not available")

// RandomStrategy assigns every post a uniform score in [-1, 1) and no
// individual signal. Useful as a chaos baseline for experiments.
type RandomStrategy struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomStrategy builds a seeded random baseline.
func NewRandomStrategy(rng *rand.Rand) *RandomStrategy {
	return &RandomStrategy{rng: rng}
}

func (s *RandomStrategy) NetworkScore(_ *types.Post) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()*2 - 1, nil
}

func (s *RandomStrategy) IndividualScore(_ string, _ *types.Post, _ *types.Feed) (float64, error) {
	return 0, nil
}

// PopularityStrategy scores posts by decayed like-engagement, scaled by
// the decay of the post's own age. There is no individual signal. The
// current step is injected via SetStep before each ranking pass.
type PopularityStrategy struct {
	Decay      Decay
	Engagement Engagement

	step float64
}

// NewPopularityStrategy builds the popularity-only strategy with the
// stock decay.
func NewPopularityStrategy() *PopularityStrategy {
	return &PopularityStrategy{Decay: DefaultDecay()}
}

// SetStep records the decay reference for the upcoming pass.
func (s *PopularityStrategy) SetStep(step int) {
	s.step = float64(step)
}

func (s *PopularityStrategy) NetworkScore(post *types.Post) (float64, error) {
	engagement := s.Engagement.Aggregate(post.Likes.Steps(), s.step, s.Decay)
	if engagement == 0 {
		return 0, nil
	}
	return s.Decay.Apply(float64(post.Step), s.step) * engagement, nil
}

func (s *PopularityStrategy) IndividualScore(_ string, _ *types.Post, _ *types.Feed) (float64, error) {
	return 0, nil
}

// SimilarityStrategy scores a candidate by the mean cosine similarity
// between its embedding and the embeddings of the viewing user's recent
// authored posts. It carries no network signal. Pairs without embeddings
// are unscorable and surface ErrMissingEmbedding, which the ranker
// degrades to a neutral 0.
type SimilarityStrategy struct {
	// Recent bounds how many of the user's latest posts are compared.
	Recent int
}

// NewSimilarityStrategy compares against the user's last `recent` posts.
func NewSimilarityStrategy(recent int) *SimilarityStrategy {
	if recent <= 0 {
		recent = 10
	}
	return &SimilarityStrategy{Recent: recent}
}

func (s *SimilarityStrategy) NetworkScore(_ *types.Post) (float64, error) {
	return 0, nil
}

func (s *SimilarityStrategy) IndividualScore(userID string, post *types.Post, feed *types.Feed) (float64, error) {
	if !post.HasEmbedding() {
		return 0, fmt.Errorf("%w: %s", ErrMissingEmbedding, post.ID)
	}

	history := feed.ByAuthor(userID)
	if len(history) > s.Recent {
		history = history[len(history)-s.Recent:]
	}

	var (
		total float64
		count int
	)
	for _, mine := range history {
		if !mine.HasEmbedding() {
			continue
		}
		sim, err := cosineSimilarity(post.Embedding, mine.Embedding)
		if err != nil {
			return 0, err
		}
		total += sim
		count++
	}
	if count == 0 {
		return 0, fmt.Errorf("%w: no embedded history for %s", ErrMissingEmbedding, userID)
	}
	return total / float64(count), nil
}

// SocialProofStrategy scores a candidate by reciprocity: the number of
// the viewing user's posts that the candidate's author has liked. No
// network signal.
type SocialProofStrategy struct{}

func (SocialProofStrategy) NetworkScore(_ *types.Post) (float64, error) {
	return 0, nil
}

func (SocialProofStrategy) IndividualScore(userID string, post *types.Post, feed *types.Feed) (float64, error) {
	var count int
	for _, mine := range feed.ByAuthor(userID) {
		if mine.Likes.Contains(post.AuthorID) {
			count++
		}
	}
	return float64(count), nil
}

// cosineSimilarity computes the cosine of two embedding vectors. Vectors
// must share a dimension and have non-zero norms.
func cosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("rank: embedding dimensions differ (%d vs %d)", len(a), len(b))
	}
	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0, errors.New("rank: zero-norm embedding")
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}
