package agent

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/driftlab/socsim/internal/llm"
	"github.com/driftlab/socsim/pkg/types"
)

// Instructions are the prompt templates an LLM-backed agent is driven
// by. Persona seeds the system message; the remaining fields are the
// per-operation user prompts.
type Instructions struct {
	Persona       string `json:"persona" yaml:"persona"`
	SelectActions string `json:"select_actions" yaml:"select_actions"`
	Comment       string `json:"comment" yaml:"comment"`
	Post          string `json:"post" yaml:"post"`
}

// DefaultMemoryLength is the number of remembered prompt/completion
// pairs carried into each inference call.
const DefaultMemoryLength = 4

var actionPattern = regexp.MustCompile(`read|like|comment|post`)

// LLMAgent drives a user through a text-generation backend. Each
// decision is one chat completion: persona system message, a bounded
// window of remembered exchanges, the operation prompt, then the post
// under consideration. Compositions are appended to memory so the agent
// stays consistent with what it already said.
type LLMAgent struct {
	gen          llm.TextGenerator
	instructions Instructions
	params       Params

	memory       []llm.Message
	memoryLength int
	activations  int
}

// LLMAgentOption adjusts optional LLMAgent construction knobs.
type LLMAgentOption func(*LLMAgent)

// WithMemoryLength overrides the remembered-pair window.
func WithMemoryLength(pairs int) LLMAgentOption {
	return func(a *LLMAgent) { a.memoryLength = pairs }
}

// WithSeedMemory preloads the agent's chat memory, e.g. from a
// persona's posting history.
func WithSeedMemory(history []llm.Message) LLMAgentOption {
	return func(a *LLMAgent) { a.memory = append(a.memory, history...) }
}

// NewLLMAgent builds an agent around a text generator.
func NewLLMAgent(gen llm.TextGenerator, instructions Instructions, params Params, opts ...LLMAgentOption) (*LLMAgent, error) {
	if gen == nil {
		return nil, fmt.Errorf("agent: text generator is required")
	}
	if instructions.Persona == "" {
		return nil, fmt.Errorf("agent: persona instruction is required")
	}
	a := &LLMAgent{
		gen:          gen,
		instructions: instructions,
		params:       params,
		memoryLength: DefaultMemoryLength,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.memoryLength < 0 {
		return nil, fmt.Errorf("agent: memory length must be non-negative, got %d", a.memoryLength)
	}
	return a, nil
}

// inference runs one completion: persona, bounded memory window, then
// the operation prompt. The window holds memoryLength exchanges, i.e.
// twice that many messages.
func (a *LLMAgent) inference(ctx context.Context, prompt string) (string, error) {
	chat := llm.Chat{{Role: llm.RoleSystem, Content: a.instructions.Persona}}

	window := a.memoryLength * 2
	if window > len(a.memory) {
		window = len(a.memory)
	}
	chat = append(chat, a.memory[len(a.memory)-window:]...)
	chat = append(chat, llm.Message{Role: llm.RoleUser, Content: prompt})

	return a.gen.Generate(ctx, chat)
}

func (a *LLMAgent) remember(prompt, response string) {
	a.memory = append(a.memory,
		llm.Message{Role: llm.RoleUser, Content: prompt},
		llm.Message{Role: llm.RoleAssistant, Content: response},
	)
}

// SelectActions asks the backend to pick from the action vocabulary for
// one post and scans the reply for vocabulary words. Unparseable
// replies yield an empty set, not an error.
func (a *LLMAgent) SelectActions(ctx context.Context, post *types.Post) (ActionSet, error) {
	names := make([]string, len(vocabulary))
	for i, action := range vocabulary {
		names[i] = string(action)
	}
	prompt := fmt.Sprintf("%s %v\n>%s: %s",
		a.instructions.SelectActions, names, post.AuthorID, post.Content)

	response, err := a.inference(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("agent: select actions: %w", err)
	}

	selected := ActionSet{}
	for _, match := range actionPattern.FindAllString(strings.ToLower(response), -1) {
		selected[Action(match)] = true
	}
	return selected, nil
}

// ComposePost generates a brand-new post and commits the exchange to
// memory.
func (a *LLMAgent) ComposePost(ctx context.Context) (string, error) {
	response, err := a.inference(ctx, a.instructions.Post)
	if err != nil {
		return "", fmt.Errorf("agent: compose post: %w", err)
	}
	a.remember(a.instructions.Post, response)
	return response, nil
}

// ComposeComment generates a reply to the given post and commits the
// exchange to memory.
func (a *LLMAgent) ComposeComment(ctx context.Context, post *types.Post) (string, error) {
	prompt := fmt.Sprintf("%s\n>%s: %s", a.instructions.Comment, post.AuthorID, post.Content)
	response, err := a.inference(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("agent: compose comment: %w", err)
	}
	a.remember(prompt, response)
	return response, nil
}

// RecordActivation counts one activated session, for snapshot
// reporting.
func (a *LLMAgent) RecordActivation() { a.activations++ }

func (a *LLMAgent) Params() Params { return a.params }

// State snapshots the agent for the run directory; the generator
// handle is not part of the snapshot.
func (a *LLMAgent) State() State {
	memory := make([]Message, len(a.memory))
	for i, m := range a.memory {
		memory[i] = Message{Role: m.Role, Content: m.Content}
	}
	return State{
		Persona:     a.instructions.Persona,
		Memory:      memory,
		Params:      a.params,
		Activations: a.activations,
	}
}
