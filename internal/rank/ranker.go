package rank

import (
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/driftlab/socsim/internal/network"
	"github.com/driftlab/socsim/pkg/types"
)

// Strategy is the single polymorphism point of the ranking engine.
// Concrete strategies supply the two scoring passes; the visibility
// filter and the combine step are shared orchestration and never vary
// per strategy.
//
// NetworkScore must be computable independently of any requesting user so
// the orchestrator can cache it across users within one step.
type Strategy interface {
	NetworkScore(post *types.Post) (float64, error)
	IndividualScore(userID string, post *types.Post, feed *types.Feed) (float64, error)
}

// StepAware is an optional capability for strategies whose scoring needs
// the current step as a decay reference. The ranker checks for it once
// per invocation.
type StepAware interface {
	SetStep(step int)
}

// Weights blend the two scoring passes. Both default to 1.0.
type Weights struct {
	Network    float64 `json:"network" yaml:"network"`
	Individual float64 `json:"individual" yaml:"individual"`
}

// DefaultWeights returns the neutral 1.0/1.0 blend.
func DefaultWeights() Weights {
	return Weights{Network: 1.0, Individual: 1.0}
}

// ScoredPost pairs a candidate post with its combined score for one user.
type ScoredPost struct {
	Post  *types.Post
	Score float64
}

// Options configures the shared ranking orchestration.
type Options struct {
	Weights Weights
	Noise   *Noise
	// Persistence is the recency window in steps: posts created at or
	// before step-Persistence are excluded from consideration. Zero
	// disables the window.
	Persistence int
}

// Ranker runs the per-step ranking protocol: a cached global pass, the
// visibility filter, a per-(user, post) individual pass, and the noisy
// combine. A failed score computation for one pair degrades to a neutral
// 0.0 and is logged; it never aborts the pass.
type Ranker struct {
	strategy    Strategy
	weights     Weights
	noise       *Noise
	persistence int
	log         *logrus.Entry
}

// New builds a Ranker. A nil Noise defaults to the no-op generator.
func New(strategy Strategy, opts Options, logger *logrus.Logger) *Ranker {
	noise := opts.Noise
	if noise == nil {
		noise = NeutralNoise()
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Ranker{
		strategy:    strategy,
		weights:     opts.Weights,
		noise:       noise,
		persistence: opts.Persistence,
		log:         logger.WithField("component", "ranker"),
	}
}

// Rank scores every post each user is eligible to see at the given step
// and returns, per user, the candidates sorted by descending score with
// ties broken by ascending post ID. Eligibility: the union of the user's
// neighbors' authored posts, minus posts already read, minus the user's
// own posts, restricted to the persistence window.
func (r *Ranker) Rank(users []string, feed *types.Feed, net *network.Network, step int) map[string][]ScoredPost {
	if aware, ok := r.strategy.(StepAware); ok {
		aware.SetStep(step)
	}

	// Global pass, lazily memoized: each post in the window is scored
	// once regardless of how many users can see it.
	globalScores := make(map[string]float64)
	globalScore := func(post *types.Post) float64 {
		if score, ok := globalScores[post.ID]; ok {
			return score
		}
		score, err := r.strategy.NetworkScore(post)
		if err != nil {
			r.log.WithError(err).WithField("post", post.ID).
				Warn("network score failed, substituting 0")
			score = 0
		}
		globalScores[post.ID] = score
		return score
	}

	cutoff := step - r.persistence

	ranked := make(map[string][]ScoredPost, len(users))
	for _, userID := range users {
		var candidates []ScoredPost
		for _, neighbor := range net.Neighbors(userID) {
			if neighbor == userID {
				continue
			}
			for _, post := range feed.ByAuthor(neighbor) {
				if post.Step <= cutoff && r.persistence > 0 {
					continue
				}
				if post.Reads.Contains(userID) {
					continue
				}

				individual, err := r.strategy.IndividualScore(userID, post, feed)
				if err != nil {
					r.log.WithError(err).WithFields(logrus.Fields{
						"user": userID,
						"post": post.ID,
					}).Warn("individual score failed, substituting 0")
					individual = 0
				}

				combined := r.weights.Individual*individual + r.weights.Network*globalScore(post)
				candidates = append(candidates, ScoredPost{
					Post:  post,
					Score: r.noise.Sample() * combined,
				})
			}
		}

		sort.SliceStable(candidates, func(i, j int) bool {
			if candidates[i].Score != candidates[j].Score {
				return candidates[i].Score > candidates[j].Score
			}
			return candidates[i].Post.ID < candidates[j].Post.ID
		})
		ranked[userID] = candidates
	}

	return ranked
}
