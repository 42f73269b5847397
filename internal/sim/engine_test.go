package sim

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftlab/socsim/internal/agent"
	"github.com/driftlab/socsim/internal/network"
	"github.com/driftlab/socsim/internal/rank"
	"github.com/driftlab/socsim/pkg/types"
)

// scriptedAgent is a deterministic test double: fixed action flags,
// fixed composition output, and a record of every post it was shown.
type scriptedAgent struct {
	params  agent.Params
	like    bool
	comment bool
	content string

	seen        []string
	activations int
	panics      bool
}

func (s *scriptedAgent) SelectActions(_ context.Context, post *types.Post) (agent.ActionSet, error) {
	if s.panics {
		panic("scripted failure")
	}
	s.seen = append(s.seen, post.ID)
	actions := agent.ActionSet{}
	if s.like {
		actions[agent.ActionLike] = true
	}
	if s.comment {
		actions[agent.ActionComment] = true
	}
	return actions, nil
}

func (s *scriptedAgent) ComposePost(_ context.Context) (string, error) {
	if s.panics {
		panic("scripted failure")
	}
	return s.content, nil
}

func (s *scriptedAgent) ComposeComment(_ context.Context, _ *types.Post) (string, error) {
	return "reply: " + s.content, nil
}

func (s *scriptedAgent) Params() agent.Params { return s.params }

func (s *scriptedAgent) State() agent.State { return agent.State{Params: s.params} }

func (s *scriptedAgent) RecordActivation() { s.activations++ }

// fourCycleSetup builds the U1-U2-U3-U4 ring with one seed post per
// user at step 0 and returns everything keyed by user id.
func fourCycleSetup(t *testing.T) (*network.Network, *types.Feed, map[string]*types.Post) {
	t.Helper()
	users := []string{"U1", "U2", "U3", "U4"}
	net, err := network.Build(network.TopologyCycle, users, network.TopologyParams{}, 1)
	require.NoError(t, err)

	feed := types.NewFeed()
	seed := make(map[string]*types.Post, len(users))
	for _, u := range users {
		post := types.NewPost(u, "seed post by "+u, 0)
		require.NoError(t, feed.Append(post))
		seed[u] = post
	}
	return net, feed, seed
}

func popularityRanker() *rank.Ranker {
	return rank.New(rank.NewPopularityStrategy(), rank.Options{
		Weights: rank.DefaultWeights(),
		Noise:   rank.NeutralNoise(),
	}, nil)
}

func TestRun_FourCycleTopOneVisibility(t *testing.T) {
	net, feed, seed := fourCycleSetup(t)

	// One like makes U3's post the unambiguous winner for both of its
	// neighbors' feeds.
	seed["U3"].MarkLike("U4", 0)

	individuals := map[string]agent.Agent{}
	agents := map[string]*scriptedAgent{}
	for _, u := range []string{"U1", "U2", "U3", "U4"} {
		a := &scriptedAgent{}
		agents[u] = a
		individuals[u] = a
	}

	engine, err := New(Options{Steps: 1, TopK: 1, Seed: 42}, net, feed, popularityRanker(), individuals)
	require.NoError(t, err)
	require.NoError(t, engine.Run(context.Background()))

	neighbors := map[string][]string{
		"U1": {"U2", "U4"}, "U2": {"U1", "U3"}, "U3": {"U2", "U4"}, "U4": {"U3", "U1"},
	}
	for u, a := range agents {
		require.Len(t, a.seen, 1, "top-K=1 passes exactly one candidate to %s", u)
		shown, ok := feed.Get(a.seen[0])
		require.True(t, ok)
		assert.NotEqual(t, u, shown.AuthorID, "%s must not see their own post", u)
		assert.Contains(t, neighbors[u], shown.AuthorID, "%s may only see direct neighbors", u)
	}

	// U2 and U4 neighbor U3; the liked post outranks the unliked one.
	assert.Equal(t, seed["U3"].ID, agents["U2"].seen[0])
	assert.Equal(t, seed["U3"].ID, agents["U4"].seen[0])
}

func TestRun_FiftyStepsNoOpLeavesFeedUnchanged(t *testing.T) {
	net, feed, _ := fourCycleSetup(t)

	individuals := map[string]agent.Agent{}
	for _, u := range []string{"U1", "U2", "U3", "U4"} {
		individuals[u] = agent.NewStatic(agent.Params{})
	}

	engine, err := New(Options{Steps: 50, Seed: 7}, net, feed, popularityRanker(), individuals)
	require.NoError(t, err)
	require.NoError(t, engine.Run(context.Background()))

	assert.Equal(t, 4, feed.Len(), "inert agents never grow the feed")
	assert.Equal(t, StateComplete, engine.State())
}

func TestRun_PostCreatedInStepNVisibleInStepNPlusOne(t *testing.T) {
	net, err := network.Build(network.TopologyComplete, []string{"writer", "reader"}, network.TopologyParams{}, 1)
	require.NoError(t, err)

	writer := &scriptedAgent{params: agent.Params{PostingProbability: 1.0}, content: "breaking news"}
	reader := &scriptedAgent{}
	individuals := map[string]agent.Agent{"writer": writer, "reader": reader}

	engine, err := New(Options{Steps: 2, Seed: 3}, net, types.NewFeed(), popularityRanker(), individuals)
	require.NoError(t, err)
	require.NoError(t, engine.Run(context.Background()))

	// Step 0 creates the post; only step 1's ranking pass can show it.
	require.Len(t, reader.seen, 1)
	shown, ok := engine.Feed().Get(reader.seen[0])
	require.True(t, ok)
	assert.Equal(t, "writer", shown.AuthorID)
	assert.Equal(t, 0, shown.Step)
	assert.Equal(t, 2, engine.Feed().Len())
}

func TestRun_MergeAppliesReadsAndLikes(t *testing.T) {
	net, feed, seed := fourCycleSetup(t)

	individuals := map[string]agent.Agent{}
	for _, u := range []string{"U1", "U2", "U3", "U4"} {
		individuals[u] = &scriptedAgent{like: true}
	}

	engine, err := New(Options{Steps: 1, Seed: 9}, net, feed, popularityRanker(), individuals)
	require.NoError(t, err)
	require.NoError(t, engine.Run(context.Background()))

	// Every seed post has two neighbors; both read and liked it in the
	// one step. Concurrent likes of the same post must all survive the
	// merge.
	for u, post := range seed {
		assert.Equal(t, 2, post.Reads.Len(), "post by %s", u)
		assert.Equal(t, 2, post.Likes.Len(), "post by %s", u)
		assert.False(t, post.Reads.Contains(u))
	}
}

func TestRun_CommentsAttachToParent(t *testing.T) {
	net, feed, seed := fourCycleSetup(t)

	individuals := map[string]agent.Agent{}
	for _, u := range []string{"U1", "U2", "U3", "U4"} {
		individuals[u] = &scriptedAgent{comment: true, content: "from " + u}
	}

	engine, err := New(Options{Steps: 1, Seed: 9}, net, feed, popularityRanker(), individuals)
	require.NoError(t, err)
	require.NoError(t, engine.Run(context.Background()))

	total := 0
	for _, post := range seed {
		total += len(post.Comments)
		// Adding a comment clears the parent's read marks.
		assert.Zero(t, post.Reads.Len())
	}
	assert.Equal(t, 8, total, "two neighbors comment on each of the four posts")
	assert.Equal(t, 4, feed.Len(), "comments are nested, not top-level posts")
}

func TestRun_WorkerPanicIsIsolated(t *testing.T) {
	net, feed, seed := fourCycleSetup(t)

	healthy := &scriptedAgent{like: true}
	individuals := map[string]agent.Agent{
		"U1": &scriptedAgent{panics: true},
		"U2": healthy,
		"U3": agent.NewStatic(agent.Params{}),
		"U4": agent.NewStatic(agent.Params{}),
	}

	engine, err := New(Options{Steps: 1, Seed: 5}, net, feed, popularityRanker(), individuals)
	require.NoError(t, err)
	require.NoError(t, engine.Run(context.Background()), "one panicking user must not fail the run")

	// U2's likes on its neighbors' posts still land.
	assert.True(t, seed["U1"].Likes.Contains("U2") || seed["U3"].Likes.Contains("U2"))
	assert.Equal(t, StateComplete, engine.State())
}

func TestRun_PostingSchemeEmitsGuaranteedPosts(t *testing.T) {
	net, err := network.Build(network.TopologyComplete, []string{"a", "b"}, network.TopologyParams{}, 1)
	require.NoError(t, err)

	// floor(2.0) = 2 guaranteed posts per step, no fractional draw.
	writer := &scriptedAgent{params: agent.Params{PostingProbability: 2.0}, content: "again"}
	individuals := map[string]agent.Agent{"a": writer, "b": agent.NewStatic(agent.Params{})}

	engine, err := New(Options{Steps: 3, Seed: 11}, net, types.NewFeed(), popularityRanker(), individuals)
	require.NoError(t, err)
	require.NoError(t, engine.Run(context.Background()))

	assert.Equal(t, 6, engine.Feed().Len())
	for _, post := range engine.Feed().Posts() {
		assert.Equal(t, "a", post.AuthorID)
	}
}

func TestRun_SessionActivationSkipsInactiveUsers(t *testing.T) {
	net, feed, _ := fourCycleSetup(t)

	never := &scriptedAgent{params: agent.Params{ActivationProbability: 0}}
	always := &scriptedAgent{params: agent.Params{ActivationProbability: 1}}
	individuals := map[string]agent.Agent{
		"U1": never, "U2": always,
		"U3": agent.NewStatic(agent.Params{}),
		"U4": agent.NewStatic(agent.Params{}),
	}

	engine, err := New(Options{Steps: 5, SessionActivation: true, Seed: 13}, net, feed, popularityRanker(), individuals)
	require.NoError(t, err)
	require.NoError(t, engine.Run(context.Background()))

	assert.Zero(t, never.activations)
	assert.Empty(t, never.seen, "inactive users produce no actions")
	assert.Equal(t, 5, always.activations)
}

type fakeStore struct {
	stepCalls  int32
	finalCalls int32
}

func (f *fakeStore) SaveSnapshot(_ context.Context, _ *types.Feed, _ map[string]agent.State) error {
	atomic.AddInt32(&f.finalCalls, 1)
	return nil
}

func (f *fakeStore) SaveStepSnapshot(_ context.Context, _ int, _ *types.Feed, _ map[string]agent.State) error {
	atomic.AddInt32(&f.stepCalls, 1)
	return nil
}

func TestRun_SnapshotCadence(t *testing.T) {
	net, feed, _ := fourCycleSetup(t)
	individuals := map[string]agent.Agent{}
	for _, u := range []string{"U1", "U2", "U3", "U4"} {
		individuals[u] = agent.NewStatic(agent.Params{})
	}

	store := &fakeStore{}
	engine, err := New(Options{Steps: 4, SnapshotEvery: 2, Seed: 1}, net, feed, popularityRanker(), individuals,
		WithStore(store))
	require.NoError(t, err)
	require.NoError(t, engine.Run(context.Background()))

	assert.Equal(t, int32(2), store.stepCalls, "steps 1 and 3 hit the cadence")
	assert.Equal(t, int32(1), store.finalCalls)
}

type fakeEmbedder struct {
	batches [][]string
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.batches = append(f.batches, texts)
	vectors := make([][]float32, len(texts))
	for i := range vectors {
		vectors[i] = []float32{1, 0}
	}
	return vectors, nil
}

func TestRun_EmbeddingIsBatchedPerStep(t *testing.T) {
	net, err := network.Build(network.TopologyComplete, []string{"a", "b"}, network.TopologyParams{}, 1)
	require.NoError(t, err)

	feed := types.NewFeed()
	require.NoError(t, feed.Append(types.NewPost("b", "seed one", 0)))
	require.NoError(t, feed.Append(types.NewPost("b", "seed two", 0)))

	writer := &scriptedAgent{params: agent.Params{PostingProbability: 2.0}, content: "fresh"}
	individuals := map[string]agent.Agent{"a": writer, "b": agent.NewStatic(agent.Params{})}

	embedder := &fakeEmbedder{}
	engine, err := New(Options{Steps: 2, Seed: 1}, net, feed, popularityRanker(), individuals,
		WithEmbedder(embedder))
	require.NoError(t, err)
	require.NoError(t, engine.Run(context.Background()))

	// One startup batch for the two seed posts, then one batch per
	// step for the step's new posts.
	require.Len(t, embedder.batches, 3)
	assert.Len(t, embedder.batches[0], 2)
	assert.Len(t, embedder.batches[1], 2)
	assert.Len(t, embedder.batches[2], 2)

	for _, post := range engine.Feed().Posts() {
		assert.True(t, post.HasEmbedding())
	}
}

func TestRun_CancelledContextStopsTheLoop(t *testing.T) {
	net, feed, _ := fourCycleSetup(t)
	individuals := map[string]agent.Agent{}
	for _, u := range []string{"U1", "U2", "U3", "U4"} {
		individuals[u] = agent.NewStatic(agent.Params{})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	engine, err := New(Options{Steps: 100, Seed: 1}, net, feed, popularityRanker(), individuals)
	require.NoError(t, err)
	assert.ErrorIs(t, engine.Run(ctx), context.Canceled)
}

func TestRun_CannotRunTwice(t *testing.T) {
	net, feed, _ := fourCycleSetup(t)
	individuals := map[string]agent.Agent{}
	for _, u := range []string{"U1", "U2", "U3", "U4"} {
		individuals[u] = agent.NewStatic(agent.Params{})
	}

	engine, err := New(Options{Steps: 1, Seed: 1}, net, feed, popularityRanker(), individuals)
	require.NoError(t, err)
	require.NoError(t, engine.Run(context.Background()))
	assert.Error(t, engine.Run(context.Background()))
}

func TestNew_Validation(t *testing.T) {
	net, feed, _ := fourCycleSetup(t)
	individuals := map[string]agent.Agent{"U1": agent.NewStatic(agent.Params{})}

	_, err := New(Options{Steps: 0}, net, feed, popularityRanker(), individuals)
	assert.Error(t, err, "steps must be positive")

	_, err = New(Options{Steps: 1}, net, feed, popularityRanker(), map[string]agent.Agent{})
	assert.Error(t, err, "individuals required")

	stranger := map[string]agent.Agent{"U9": agent.NewStatic(agent.Params{})}
	_, err = New(Options{Steps: 1}, net, feed, popularityRanker(), stranger)
	assert.Error(t, err, "every individual must be a network node")
}
