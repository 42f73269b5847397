package types

import "encoding/json"

// Marks is an insertion-ordered, idempotent set of user references. Each
// mark records the step at which it was made so that engagement scoring
// can decay individual events. Adding a user that is already present has
// no effect, which keeps read/like bookkeeping idempotent by construction.
type Marks struct {
	order []string
	steps map[string]int
}

// NewMarks returns an empty mark set.
func NewMarks() *Marks {
	return &Marks{steps: make(map[string]int)}
}

// Add records a mark for userID at the given step. It reports whether the
// mark was newly added; re-marking an existing user is a no-op.
func (m *Marks) Add(userID string, step int) bool {
	if m.steps == nil {
		m.steps = make(map[string]int)
	}
	if _, ok := m.steps[userID]; ok {
		return false
	}
	m.steps[userID] = step
	m.order = append(m.order, userID)
	return true
}

// Contains reports whether userID has marked.
func (m *Marks) Contains(userID string) bool {
	_, ok := m.steps[userID]
	return ok
}

// Len returns the number of distinct users that have marked.
func (m *Marks) Len() int {
	return len(m.order)
}

// Users returns the marking users in insertion order.
func (m *Marks) Users() []string {
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// Steps returns the step index of every mark in insertion order, as
// float64 values ready for engagement aggregation.
func (m *Marks) Steps() []float64 {
	out := make([]float64, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, float64(m.steps[id]))
	}
	return out
}

// Clear removes every mark.
func (m *Marks) Clear() {
	m.order = nil
	m.steps = make(map[string]int)
}

// MarshalJSON serializes the marks as a plain list of user IDs, matching
// the run-artifact format (read-user-id list / like-user-id list).
func (m *Marks) MarshalJSON() ([]byte, error) {
	ids := m.order
	if ids == nil {
		ids = []string{}
	}
	return json.Marshal(ids)
}

// UnmarshalJSON restores marks from a list of user IDs. Mark steps are not
// part of the artifact format; restored marks carry step 0.
func (m *Marks) UnmarshalJSON(data []byte) error {
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	m.order = nil
	m.steps = make(map[string]int)
	for _, id := range ids {
		m.Add(id, 0)
	}
	return nil
}
