// Package types defines the shared entity model for the simulation:
// users, posts, interactions and the append-only feed. These types are
// mutated only by the simulation engine's merge phase; they carry no
// locking of their own.
package types

import (
	"fmt"

	"github.com/google/uuid"
)

// NewUserID returns a fresh opaque user identifier.
func NewUserID() string {
	return fmt.Sprintf("user-%s", uuid.NewString())
}

// NewPostID returns a fresh opaque post identifier.
func NewPostID() string {
	return fmt.Sprintf("post-%s", uuid.NewString())
}

// InteractionKind enumerates the ways a user can engage with a post.
type InteractionKind string

const (
	InteractionRead InteractionKind = "read"
	InteractionLike InteractionKind = "like"
)

// Interaction records a single engagement event: one user acting on one
// post at a given step. Workers produce Interactions locally; the
// orchestrator applies them to the feed during the merge phase.
type Interaction struct {
	PostID string          `json:"post_id"`
	UserID string          `json:"user_id"`
	Kind   InteractionKind `json:"kind"`
	Step   int             `json:"step"`
}
