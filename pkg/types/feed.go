package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// ErrDuplicatePost is returned when a post with an already-known ID is
// appended to the feed.
var ErrDuplicatePost = errors.New("feed: duplicate post id")

// Feed is the single shared, append-only store of every top-level post
// created during a run. Posts are kept in creation order (step index, then
// insertion order) and indexed by author and by ID. The only mutations are
// Append and AppendBatch; there is no deletion and no in-place edit.
//
// Feed is not concurrency-safe. The simulation engine funnels all
// mutation through its single-threaded merge phase.
type Feed struct {
	posts    []*Post
	byAuthor map[string][]*Post
	byID     map[string]*Post
}

// NewFeed returns an empty feed.
func NewFeed() *Feed {
	return &Feed{
		byAuthor: make(map[string][]*Post),
		byID:     make(map[string]*Post),
	}
}

// Append adds one post to the end of the feed. The post's step must not
// precede the last appended post's step, keeping the feed monotonic in
// creation order so windowed queries can use a cutoff scan.
func (f *Feed) Append(p *Post) error {
	if p == nil {
		return errors.New("feed: nil post")
	}
	if _, ok := f.byID[p.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicatePost, p.ID)
	}
	if n := len(f.posts); n > 0 && p.Step < f.posts[n-1].Step {
		return fmt.Errorf("feed: post %s breaks step ordering (%d < %d)",
			p.ID, p.Step, f.posts[n-1].Step)
	}
	f.posts = append(f.posts, p)
	f.byAuthor[p.AuthorID] = append(f.byAuthor[p.AuthorID], p)
	f.byID[p.ID] = p
	return nil
}

// AppendBatch adds a batch of posts, typically the output of one
// simulation step. Posts are appended in slice order; the first failure
// aborts the batch.
func (f *Feed) AppendBatch(posts []*Post) error {
	for _, p := range posts {
		if err := f.Append(p); err != nil {
			return err
		}
	}
	return nil
}

// Len returns the number of top-level posts in the feed.
func (f *Feed) Len() int {
	return len(f.posts)
}

// Posts returns the feed contents in creation order. The returned slice
// is a copy; the posts themselves are shared.
func (f *Feed) Posts() []*Post {
	out := make([]*Post, len(f.posts))
	copy(out, f.posts)
	return out
}

// Get looks a post up by ID.
func (f *Feed) Get(id string) (*Post, bool) {
	p, ok := f.byID[id]
	return p, ok
}

// ByAuthor returns the posts authored by userID, order-preserved.
func (f *Feed) ByAuthor(userID string) []*Post {
	posts := f.byAuthor[userID]
	out := make([]*Post, len(posts))
	copy(out, posts)
	return out
}

// UnreadBy returns every post userID has not read, order-preserved.
func (f *Feed) UnreadBy(userID string) []*Post {
	var out []*Post
	for _, p := range f.posts {
		if !p.Reads.Contains(userID) {
			out = append(out, p)
		}
	}
	return out
}

// SinceStep returns the suffix of the feed whose posts were created at or
// after the cutoff step. The feed's monotonic ordering lets this binary
// search instead of scanning.
func (f *Feed) SinceStep(cutoff int) []*Post {
	idx := sort.Search(len(f.posts), func(i int) bool {
		return f.posts[i].Step >= cutoff
	})
	out := make([]*Post, len(f.posts)-idx)
	copy(out, f.posts[idx:])
	return out
}

// LatestStepByAuthor returns the step of the most recent post authored by
// userID, and false when the user has no posts.
func (f *Feed) LatestStepByAuthor(userID string) (int, bool) {
	posts := f.byAuthor[userID]
	if len(posts) == 0 {
		return 0, false
	}
	return posts[len(posts)-1].Step, true
}

// MarshalJSON serializes the feed as the ordered post list, which is the
// on-disk feed.json format.
func (f *Feed) MarshalJSON() ([]byte, error) {
	posts := f.posts
	if posts == nil {
		posts = []*Post{}
	}
	return json.Marshal(posts)
}
