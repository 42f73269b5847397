// Package sim runs the step loop: rank the feed per user, dispatch one
// task per active user through a long-lived worker pool, merge the
// results single-threaded, persist snapshots. Steps are atomic; a post
// created in step n is first visible in step n+1 because ranking
// operates on the feed as it stood when the step began.
package sim

import (
	"context"
	"fmt"
	"math/rand"
	"runtime"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/driftlab/socsim/internal/agent"
	"github.com/driftlab/socsim/internal/llm"
	"github.com/driftlab/socsim/internal/network"
	"github.com/driftlab/socsim/internal/rank"
	"github.com/driftlab/socsim/pkg/types"
)

// State of the simulation lifecycle.
type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateComplete State = "complete"
)

// SnapshotStore persists run artifacts. *storage.RunStore satisfies it.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, feed *types.Feed, states map[string]agent.State) error
	SaveStepSnapshot(ctx context.Context, step int, feed *types.Feed, states map[string]agent.State) error
}

// Options tune a run.
type Options struct {
	// Steps is the number of simulation steps.
	Steps int
	// TopK caps the ranked candidates passed to each agent. Zero means
	// use the agent's own read-amount parameter; if that is also zero
	// the candidate list is not cut.
	TopK int
	// SessionActivation enables the per-user Bernoulli activation draw
	// each step. When disabled every user is active every step.
	SessionActivation bool
	// Window restricts ranking to posts created within the last Window
	// steps, for cost control at scale. Zero ranks the whole feed.
	Window int
	// SnapshotEvery writes per-step artifact variants every N steps.
	// Zero writes only the final snapshot.
	SnapshotEvery int
	// Workers sizes the pool. Defaults to 2x GOMAXPROCS; workers spend
	// most of their time blocked on remote model calls.
	Workers int
	// Seed drives activation and posting draws.
	Seed int64
}

// Engine owns the worker pool and the shared run state. The feed and
// the individuals map are mutated only in the merge phase, on the
// goroutine running Run.
type Engine struct {
	opts        Options
	net         *network.Network
	feed        *types.Feed
	ranker      *rank.Ranker
	individuals map[string]agent.Agent
	users       []string

	embedder llm.EmbeddingProvider
	store    SnapshotStore
	log      *logrus.Entry
	rng      *rand.Rand

	tasks chan task
	wg    sync.WaitGroup
	state State
}

// Option adjusts optional engine collaborators.
type Option func(*Engine)

// WithEmbedder enables embedding enrichment: the seed feed at startup
// and each step's new posts, one batched call at a time.
func WithEmbedder(p llm.EmbeddingProvider) Option {
	return func(e *Engine) { e.embedder = p }
}

// WithStore enables snapshot persistence.
func WithStore(s SnapshotStore) Option {
	return func(e *Engine) { e.store = s }
}

// WithLogger overrides the default logger.
func WithLogger(l *logrus.Logger) Option {
	return func(e *Engine) { e.log = l.WithField("component", "sim") }
}

// New validates the run setup and builds an engine. Every individual
// must be a node of the network.
func New(opts Options, net *network.Network, feed *types.Feed, ranker *rank.Ranker, individuals map[string]agent.Agent, extras ...Option) (*Engine, error) {
	if opts.Steps <= 0 {
		return nil, fmt.Errorf("sim: steps must be positive, got %d", opts.Steps)
	}
	if len(individuals) == 0 {
		return nil, fmt.Errorf("sim: at least one individual is required")
	}
	if net == nil || feed == nil || ranker == nil {
		return nil, fmt.Errorf("sim: network, feed and ranker are required")
	}
	users := make([]string, 0, len(individuals))
	for userID := range individuals {
		if !net.Contains(userID) {
			return nil, fmt.Errorf("sim: user %s is not a node of the network", userID)
		}
		users = append(users, userID)
	}
	sort.Strings(users)

	if opts.Workers <= 0 {
		opts.Workers = 2 * runtime.GOMAXPROCS(0)
	}

	e := &Engine{
		opts:        opts,
		net:         net,
		feed:        feed,
		ranker:      ranker,
		individuals: individuals,
		users:       users,
		rng:         rand.New(rand.NewSource(opts.Seed)),
		log:         logrus.New().WithField("component", "sim"),
		state:       StateIdle,
	}
	for _, extra := range extras {
		extra(e)
	}
	return e, nil
}

// State reports the lifecycle state.
func (e *Engine) State() State { return e.state }

// Feed exposes the shared feed. Callers must not mutate it while Run is
// in flight.
func (e *Engine) Feed() *types.Feed { return e.feed }

// States snapshots every agent's serializable state.
func (e *Engine) States() map[string]agent.State {
	states := make(map[string]agent.State, len(e.individuals))
	for userID, a := range e.individuals {
		states[userID] = a.State()
	}
	return states
}

// Run executes the configured number of steps. Transient per-user and
// per-call failures degrade and are logged; only setup problems, context
// cancellation and the final snapshot write can fail a run.
func (e *Engine) Run(ctx context.Context) error {
	if e.state != StateIdle {
		return fmt.Errorf("sim: engine already ran (state %s)", e.state)
	}
	e.state = StateRunning

	// The pool lives for the whole run, not per step.
	e.tasks = make(chan task)
	e.wg.Add(e.opts.Workers)
	for i := 0; i < e.opts.Workers; i++ {
		go e.worker(i)
	}
	defer func() {
		close(e.tasks)
		e.wg.Wait()
	}()

	e.enrichSeedFeed(ctx)

	for n := 0; n < e.opts.Steps; n++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		created := e.step(ctx, n)
		e.log.WithFields(logrus.Fields{
			"step": n, "of": e.opts.Steps, "feed": e.feed.Len(), "new_posts": created,
		}).Info("step complete")

		if e.store != nil && e.opts.SnapshotEvery > 0 && (n+1)%e.opts.SnapshotEvery == 0 {
			if err := e.store.SaveStepSnapshot(ctx, n, e.feed, e.States()); err != nil {
				e.log.WithError(err).WithField("step", n).Warn("step snapshot failed")
			}
		}
	}

	e.state = StateComplete
	if e.store != nil {
		if err := e.store.SaveSnapshot(ctx, e.feed, e.States()); err != nil {
			return fmt.Errorf("sim: final snapshot: %w", err)
		}
	}
	return nil
}

// step runs one atomic simulation step and returns the number of new
// top-level posts.
func (e *Engine) step(ctx context.Context, n int) int {
	feedView := e.feed
	if e.opts.Window > 0 {
		feedView = e.windowedFeed(n)
	}

	active := e.activeUsers()
	if len(active) == 0 {
		return 0
	}

	ranked := e.ranker.Rank(active, feedView, e.net, n)

	results := make(chan agentResult, len(active))
	for _, userID := range active {
		candidates := ranked[userID]
		if k := e.topK(e.individuals[userID]); k > 0 && k < len(candidates) {
			candidates = candidates[:k]
		}
		posts := make([]*types.Post, len(candidates))
		for i, c := range candidates {
			posts[i] = c.Post
		}
		e.tasks <- task{ctx: ctx, step: n, userID: userID, agent: e.individuals[userID], posts: posts, out: results}
	}

	collected := make([]agentResult, 0, len(active))
	for range active {
		collected = append(collected, <-results)
	}

	return e.merge(ctx, n, collected)
}

// activeUsers draws the session-activation Bernoulli per user, in
// stable user order so a fixed seed reproduces the same sessions.
func (e *Engine) activeUsers() []string {
	if !e.opts.SessionActivation {
		return e.users
	}
	active := make([]string, 0, len(e.users))
	for _, userID := range e.users {
		if e.rng.Float64() < e.individuals[userID].Params().ActivationProbability {
			active = append(active, userID)
		}
	}
	return active
}

func (e *Engine) topK(a agent.Agent) int {
	if e.opts.TopK > 0 {
		return e.opts.TopK
	}
	return a.Params().ReadAmount
}

// windowedFeed is a shallow copy restricted to the sliding window; the
// posts themselves are shared and read-only during ranking.
func (e *Engine) windowedFeed(step int) *types.Feed {
	windowed := types.NewFeed()
	if err := windowed.AppendBatch(e.feed.SinceStep(step - e.opts.Window)); err != nil {
		e.log.WithError(err).Warn("feed window restriction failed, ranking full feed")
		return e.feed
	}
	return windowed
}

// merge is the single-threaded phase that applies every worker's
// decisions to the shared state: deferred read/like marks keyed by post
// id, comment attachment, agent-state replacement, then the step's new
// posts stamped, batch-embedded and batch-appended.
func (e *Engine) merge(ctx context.Context, n int, results []agentResult) int {
	var newPosts []*types.Post

	for _, res := range results {
		e.individuals[res.userID] = res.agent

		for _, it := range res.interactions {
			post, ok := e.feed.Get(it.PostID)
			if !ok {
				e.log.WithField("post", it.PostID).Warn("interaction on unknown post, skipping")
				continue
			}
			switch it.Kind {
			case types.InteractionRead:
				post.MarkRead(it.UserID, n)
			case types.InteractionLike:
				post.MarkLike(it.UserID, n)
			}
		}

		for _, draft := range res.comments {
			parent, ok := e.feed.Get(draft.parentID)
			if !ok {
				e.log.WithField("post", draft.parentID).Warn("comment on unknown post, skipping")
				continue
			}
			parent.AddComment(types.NewPost(res.userID, draft.content, n))
		}

		for _, content := range res.posts {
			newPosts = append(newPosts, types.NewPost(res.userID, content, n))
		}
	}

	// Collection order depends on worker scheduling; sort for a stable
	// feed layout.
	sort.Slice(newPosts, func(i, j int) bool {
		if newPosts[i].AuthorID != newPosts[j].AuthorID {
			return newPosts[i].AuthorID < newPosts[j].AuthorID
		}
		return newPosts[i].ID < newPosts[j].ID
	})

	if len(newPosts) > 0 {
		e.enrich(ctx, newPosts)
		if err := e.feed.AppendBatch(newPosts); err != nil {
			e.log.WithError(err).WithField("step", n).Error("appending new posts failed")
		}
	}
	return len(newPosts)
}

// enrichSeedFeed embeds any pre-seeded posts that still lack vectors,
// so similarity strategies work from step 0.
func (e *Engine) enrichSeedFeed(ctx context.Context) {
	if e.embedder == nil {
		return
	}
	var pending []*types.Post
	for _, post := range e.feed.Posts() {
		if !post.HasEmbedding() && post.Content != "" {
			pending = append(pending, post)
		}
	}
	if len(pending) > 0 {
		e.log.WithField("posts", len(pending)).Info("embedding seed feed")
		e.enrich(ctx, pending)
	}
}

// enrich fills embeddings with one batched call. Failure leaves the
// posts unembedded; similarity scoring degrades to neutral for them.
func (e *Engine) enrich(ctx context.Context, posts []*types.Post) {
	if e.embedder == nil {
		return
	}
	texts := make([]string, len(posts))
	for i, post := range posts {
		texts[i] = post.Content
	}
	vectors, err := e.embedder.Embed(ctx, texts)
	if err != nil {
		e.log.WithError(err).WithField("posts", len(posts)).Warn("batch embedding failed")
		return
	}
	for i, post := range posts {
		post.Embedding = vectors[i]
	}
}
