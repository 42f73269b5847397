package types

// User represents a participant in the simulation. Identity is the opaque
// ID only; users are created once at setup and never mutated. Equality and
// map keying always go through the ID, never through derived relations.
type User struct {
	ID string `json:"id"`
}

// NewUser creates a user with a generated identifier.
func NewUser() User {
	return User{ID: NewUserID()}
}
