package feed

import (
	"sort"
	"time"

	"postsync/internal/interactions"
	"postsync/internal/models"
	"postsync/internal/textfmt"
)

// Merge combines a remote record with its local overlay. Remote fields are never taken from the
// overlay. Locally owned fields prefer the overlay, then whatever the remote echoed, then zero.
func Merge(remote models.RemotePost, overlay interactions.Overlay) models.Post {
	post := models.Post{
		ID:              remote.ID,
		Username:        remote.Username,
		CreatedDatetime: remote.CreatedDatetime,
		Title:           remote.Title,
		Content:         remote.Content,
		ImageURL:        remote.ImageURL,
		Mentions:        textfmt.ExtractMentions(remote.Content),
	}

	if overlay.HasImage {
		post.ImageURL = overlay.Image
	}

	switch {
	case overlay.HasLikes:
		post.Likes = overlay.Likes
	case remote.Likes != nil && *remote.Likes > 0:
		post.Likes = *remote.Likes
	}

	switch {
	case overlay.HasComments:
		post.CommentsList = cloneComments(overlay.Comments)
	case remote.CommentsList != nil:
		post.CommentsList = cloneComments(remote.CommentsList)
	default:
		post.CommentsList = []models.Comment{}
	}
	return post
}

// SortNewestFirst orders posts by creation time, newest first. The sort is stable and posts whose
// timestamp does not parse go last.
func SortNewestFirst(posts []models.Post) {
	type keyed struct {
		post  models.Post
		at    time.Time
		valid bool
	}
	entries := make([]keyed, len(posts))
	for i, p := range posts {
		at, ok := textfmt.ParseTimestamp(p.CreatedDatetime)
		entries[i] = keyed{post: p, at: at, valid: ok}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].valid != entries[j].valid {
			return entries[i].valid
		}
		return entries[i].at.After(entries[j].at)
	})
	for i := range entries {
		posts[i] = entries[i].post
	}
}

func cloneComments(in []models.Comment) []models.Comment {
	out := make([]models.Comment, len(in))
	copy(out, in)
	return out
}

func clonePost(p models.Post) models.Post {
	p.CommentsList = cloneComments(p.CommentsList)
	if p.Mentions != nil {
		mentions := make([]string, len(p.Mentions))
		copy(mentions, p.Mentions)
		p.Mentions = mentions
	}
	return p
}
