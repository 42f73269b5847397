package sim

import (
	"context"
	"math/rand"

	"github.com/driftlab/socsim/internal/agent"
	"github.com/driftlab/socsim/pkg/types"
)

// task is one unit of work: a single user's step against their ranked
// candidates. The agent is owned by exactly one worker until the result
// is handed back to the orchestrator.
type task struct {
	ctx    context.Context
	step   int
	userID string
	agent  agent.Agent
	posts  []*types.Post
	out    chan<- agentResult
}

// commentDraft is a composed reply waiting for the merge phase to
// attach it to its parent.
type commentDraft struct {
	parentID string
	content  string
}

// agentResult carries everything a worker decided, as values. Reads and
// likes are deferred interactions keyed by post id; the merge phase is
// the only place they touch the shared feed.
type agentResult struct {
	userID       string
	agent        agent.Agent
	interactions []types.Interaction
	comments     []commentDraft
	posts        []string
}

// worker drains the task channel until it is closed. Each worker owns
// its own rng; posting draws must not share one generator across
// goroutines.
func (e *Engine) worker(id int) {
	defer e.wg.Done()

	rng := rand.New(rand.NewSource(e.opts.Seed + int64(id) + 1))
	for t := range e.tasks {
		t.out <- e.runAgent(t, rng)
	}
}

// runAgent executes one user's step. A panic or remote failure degrades
// to an empty action set for this user; it never surfaces to the step
// loop.
func (e *Engine) runAgent(t task, rng *rand.Rand) (res agentResult) {
	res = agentResult{userID: t.userID, agent: t.agent}
	defer func() {
		if r := recover(); r != nil {
			e.log.WithField("user", t.userID).WithField("panic", r).
				Error("agent step panicked, dropping its actions")
			res = agentResult{userID: t.userID, agent: t.agent}
		}
	}()

	if rec, ok := t.agent.(agent.ActivationRecorder); ok {
		rec.RecordActivation()
	}

	for _, post := range t.posts {
		res.interactions = append(res.interactions, types.Interaction{
			PostID: post.ID, UserID: t.userID, Kind: types.InteractionRead, Step: t.step,
		})

		actions, err := t.agent.SelectActions(t.ctx, post)
		if err != nil {
			e.log.WithError(err).WithField("user", t.userID).WithField("post", post.ID).
				Warn("action selection failed, skipping post")
			continue
		}

		if actions.Has(agent.ActionLike) {
			res.interactions = append(res.interactions, types.Interaction{
				PostID: post.ID, UserID: t.userID, Kind: types.InteractionLike, Step: t.step,
			})
		}
		if actions.Has(agent.ActionComment) {
			content, err := t.agent.ComposeComment(t.ctx, post)
			switch {
			case err != nil:
				e.log.WithError(err).WithField("user", t.userID).
					Warn("comment composition failed")
			case content != "":
				res.comments = append(res.comments, commentDraft{parentID: post.ID, content: content})
			}
		}
	}

	// floor(p) guaranteed posts, one more with the fractional
	// remainder.
	p := t.agent.Params().PostingProbability
	for ; p >= 1; p-- {
		e.composePost(t, &res)
	}
	if p > 0 && rng.Float64() < p {
		e.composePost(t, &res)
	}
	return res
}

func (e *Engine) composePost(t task, res *agentResult) {
	content, err := t.agent.ComposePost(t.ctx)
	if err != nil {
		e.log.WithError(err).WithField("user", t.userID).Warn("post composition failed")
		return
	}
	if content == "" {
		return
	}
	res.posts = append(res.posts, content)
}
