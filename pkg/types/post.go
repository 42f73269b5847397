package types

// Post models a piece of content in the shared feed. Comments are
// themselves posts, nested under their parent; they do not inherit the
// parent's reads or likes. The Step field is the simulation step at which
// the post was created and doubles as its timestamp.
//
// Embedding is populated asynchronously by the enrichment phase; a nil
// embedding means "not yet available" and scoring code must treat it as
// missing rather than as a zero vector.
type Post struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"author"`
	Content   string    `json:"content"`
	Step      int       `json:"timestamp"`
	Reads     *Marks    `json:"reads"`
	Likes     *Marks    `json:"likes"`
	Comments  []*Post   `json:"comments,omitempty"`
	Embedding []float32 `json:"embedding,omitempty"`
}

// NewPost creates a post with a generated ID and empty interaction sets.
func NewPost(authorID, content string, step int) *Post {
	return &Post{
		ID:       NewPostID(),
		AuthorID: authorID,
		Content:  content,
		Step:     step,
		Reads:    NewMarks(),
		Likes:    NewMarks(),
	}
}

// MarkRead records that userID read the post at the given step.
// Idempotent.
func (p *Post) MarkRead(userID string, step int) bool {
	return p.Reads.Add(userID, step)
}

// MarkLike records that userID liked the post at the given step.
// Idempotent.
func (p *Post) MarkLike(userID string, step int) bool {
	return p.Likes.Add(userID, step)
}

// AddComment attaches a comment and clears the parent's read marks so the
// parent resurfaces as updated content in later ranking passes. Likes are
// left untouched; only read state is reset.
func (p *Post) AddComment(comment *Post) {
	p.Comments = append(p.Comments, comment)
	p.Reads.Clear()
}

// HasEmbedding reports whether the post's embedding has been enriched.
func (p *Post) HasEmbedding() bool {
	return len(p.Embedding) > 0
}
