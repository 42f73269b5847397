// Package agent defines the behavior policies that drive users in the
// simulation. An Agent decides, per visible post, which actions the
// owning user takes, and composes new content on demand. Agent state is
// owned by exactly one worker during a step; ownership transfers back
// to the orchestrator at merge time, so implementations need no
// internal locking.
package agent

import (
	"context"

	"github.com/driftlab/socsim/pkg/types"
)

// Action is one element of the behavior vocabulary.
type Action string

const (
	ActionRead    Action = "read"
	ActionLike    Action = "like"
	ActionComment Action = "comment"
	ActionPost    Action = "post"
)

// vocabulary lists the actions an agent may select, in prompt order.
var vocabulary = []Action{ActionRead, ActionLike, ActionComment, ActionPost}

// ActionSet is the set of actions selected for a single post.
type ActionSet map[Action]bool

// Has reports whether the set contains the action.
func (s ActionSet) Has(a Action) bool { return s[a] }

// Params are the behavioral parameters of one agent.
//
// ActivationProbability is the per-step Bernoulli chance the user opens
// a session at all. PostingProbability is the expected number of new
// posts per active session; values above 1.0 mean guaranteed posts plus
// a fractional remainder. ReadAmount caps how many ranked candidates
// the user consumes per session.
type Params struct {
	ActivationProbability float64 `json:"activation_probability" yaml:"activation_probability"`
	PostingProbability    float64 `json:"posting_probability" yaml:"posting_probability"`
	ReadAmount            int     `json:"read_amount" yaml:"read_amount"`
}

// State is the serializable snapshot of an agent, written to the run
// directory. It deliberately excludes any remote-client handle.
type State struct {
	Persona     string    `json:"persona,omitempty"`
	Memory      []Message `json:"memory,omitempty"`
	Params      Params    `json:"parameters"`
	Activations int       `json:"activations"`
}

// Message mirrors one remembered chat turn in a snapshot.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Agent is the policy contract the simulation engine dispatches against.
//
// SelectActions decides what the user does with one visible post; the
// engine marks reads itself, so implementations only need to report
// like/comment decisions (a returned ActionRead is tolerated and
// ignored). ComposePost and ComposeComment produce new content; they
// are only invoked when the engine's posting scheme or a selected
// comment action asks for it.
type Agent interface {
	SelectActions(ctx context.Context, post *types.Post) (ActionSet, error)
	ComposePost(ctx context.Context) (string, error)
	ComposeComment(ctx context.Context, post *types.Post) (string, error)
	Params() Params
	State() State
}

// ActivationRecorder is an optional capability: agents implementing it
// get notified once per activated session, before any dispatch work.
type ActivationRecorder interface {
	RecordActivation()
}

// Static is a no-op agent: it never likes, never comments and never
// activates a posting scheme on its own. Useful for dry runs and load
// tests where the feed must stay inert.
type Static struct {
	P Params
}

// NewStatic returns an inert agent with the given parameters.
func NewStatic(p Params) *Static { return &Static{P: p} }

func (s *Static) SelectActions(_ context.Context, _ *types.Post) (ActionSet, error) {
	return ActionSet{}, nil
}

func (s *Static) ComposePost(_ context.Context) (string, error) { return "", nil }

func (s *Static) ComposeComment(_ context.Context, _ *types.Post) (string, error) {
	return "", nil
}

func (s *Static) Params() Params { return s.P }

func (s *Static) State() State { return State{Params: s.P} }
