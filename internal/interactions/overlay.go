package interactions

import (
	"context"

	"postsync/internal/models"
)

// Overlay is the locally owned state of one post. The Has* flags distinguish "nothing stored" from
// a stored zero value so the merge can fall back to whatever the remote echoed.
type Overlay struct {
	Image       string
	HasImage    bool
	Likes       int
	HasLikes    bool
	Comments    []models.Comment
	HasComments bool
}

// Overlay reads the three records of one post.
func (s *Store) Overlay(ctx context.Context, id int) Overlay {
	var o Overlay
	o.Image, o.HasImage = s.Image(ctx, id)
	o.Likes, o.HasLikes = s.Likes(ctx, id)
	o.Comments, o.HasComments = s.Comments(ctx, id)
	return o
}

// Overlays reads every stored record once and groups them by post id.
func (s *Store) Overlays(ctx context.Context) map[int]Overlay {
	out := make(map[int]Overlay)
	for id, img := range s.Images(ctx) {
		o := out[id]
		o.Image, o.HasImage = img, true
		out[id] = o
	}
	for id, n := range s.AllLikes(ctx) {
		o := out[id]
		o.Likes, o.HasLikes = n, true
		out[id] = o
	}
	for id, raw := range s.AllCommentsJSON(ctx) {
		comments, ok := s.decodeComments(ctx, id, raw)
		if !ok {
			continue
		}
		o := out[id]
		o.Comments, o.HasComments = comments, true
		out[id] = o
	}
	return out
}
