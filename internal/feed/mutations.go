package feed

import (
	"context"
	"log/slog"
	"strings"

	"postsync/internal/gateway"
	"postsync/internal/interactions"
	"postsync/internal/models"
	"postsync/internal/observability"
	"postsync/internal/textfmt"
)

// Create stores a new post remotely, initializes its local interaction records and prepends it.
// The image stays on this device. The returned post has no mentions until the next List derives
// them. On failure the list is unchanged.
func (e *Engine) Create(ctx context.Context, data models.CreatePostData) (models.Post, error) {
	span, ctx := observability.TraceFeedOperation(ctx, "create", 0)
	defer span.End()

	e.setLoading(LoadingCreating)
	defer e.setLoading(LoadingIdle)

	remote, err := e.gw.Create(ctx, gateway.CreateRequest{
		Username: data.Username,
		Title:    data.Title,
		Content:  data.Content,
	})
	if err != nil {
		e.writeFailed(ctx, span, "create", 0, err)
		return models.Post{}, err
	}

	image := e.compact(ctx, data.ImageURL)
	if image != "" {
		e.store.SetImage(ctx, remote.ID, image)
	} else {
		e.store.RemoveImage(ctx, remote.ID)
	}
	e.store.SetLikes(ctx, remote.ID, 0)
	e.store.SetComments(ctx, remote.ID, []models.Comment{})

	post := Merge(remote, interactions.Overlay{
		Image:       image,
		HasImage:    image != "",
		HasLikes:    true,
		Comments:    []models.Comment{},
		HasComments: true,
	})
	post.Mentions = []string{}

	e.mu.Lock()
	if i := e.indexLocked(post.ID); i >= 0 {
		e.posts = append(e.posts[:i], e.posts[i+1:]...)
	}
	e.posts = append([]models.Post{post}, e.posts...)
	observability.FeedPosts.Set(float64(len(e.posts)))
	e.mu.Unlock()

	observability.FeedOperations.WithLabelValues("create", "ok").Inc()
	observability.Logger.InfoContext(ctx, "post created", slog.Int("post_id", post.ID))
	return clonePost(post), nil
}

// Update patches title and content remotely and applies the image change locally: a set image is
// stored, a cleared image is removed, an unchanged image keeps whatever is stored. The entry is
// replaced in place. On failure the list is unchanged.
func (e *Engine) Update(ctx context.Context, id int, data models.UpdatePostData) (models.Post, error) {
	span, ctx := observability.TraceFeedOperation(ctx, "update", id)
	defer span.End()

	e.setLoading(LoadingUpdating)
	defer e.setLoading(LoadingIdle)

	change := data.Image
	if change.Kind == models.ImageSet {
		change.Value = e.compact(ctx, change.Value)
	}

	req := gateway.UpdateRequest{Title: data.Title, Content: data.Content}
	if change.Provided() {
		v := change.Value
		req.ImageURL = &v
	}

	remote, err := e.gw.Update(ctx, id, req)
	if err != nil {
		e.writeFailed(ctx, span, "update", id, err)
		return models.Post{}, err
	}

	switch change.Kind {
	case models.ImageSet:
		e.store.SetImage(ctx, id, change.Value)
	case models.ImageCleared:
		e.store.RemoveImage(ctx, id)
	}

	overlay := e.store.Overlay(ctx, id)
	switch change.Kind {
	case models.ImageSet:
		overlay.Image, overlay.HasImage = change.Value, true
	case models.ImageCleared:
		overlay.Image, overlay.HasImage = "", true
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	i := e.indexLocked(id)
	if i >= 0 {
		current := e.posts[i]
		if !overlay.HasLikes {
			overlay.Likes, overlay.HasLikes = current.Likes, true
		}
		if !overlay.HasComments {
			overlay.Comments, overlay.HasComments = current.CommentsList, true
		}
	}
	post := Merge(remote, overlay)
	if i >= 0 {
		e.posts[i] = post
	}

	observability.FeedOperations.WithLabelValues("update", "ok").Inc()
	observability.Logger.InfoContext(ctx, "post updated", slog.Int("post_id", id))
	return clonePost(post), nil
}

// Delete removes a post remotely and, only after that succeeds, forgets its local interaction
// records and drops it from the list.
func (e *Engine) Delete(ctx context.Context, id int) error {
	span, ctx := observability.TraceFeedOperation(ctx, "delete", id)
	defer span.End()

	e.setLoading(LoadingDeleting)
	defer e.setLoading(LoadingIdle)

	if err := e.gw.Delete(ctx, id); err != nil {
		e.writeFailed(ctx, span, "delete", id, err)
		return err
	}

	e.interactMu.Lock()
	e.store.Forget(ctx, id)
	e.mu.Lock()
	if i := e.indexLocked(id); i >= 0 {
		e.posts = append(e.posts[:i], e.posts[i+1:]...)
	}
	observability.FeedPosts.Set(float64(len(e.posts)))
	e.mu.Unlock()
	e.interactMu.Unlock()

	observability.FeedOperations.WithLabelValues("delete", "ok").Inc()
	observability.Logger.InfoContext(ctx, "post deleted", slog.Int("post_id", id))
	return nil
}

// Like adds one like to a post. The stored count wins over the in-memory one so a like made by
// another process is not lost. Concurrent likes on one engine are serialized. Unknown ids are
// ignored.
func (e *Engine) Like(ctx context.Context, id int) {
	span, ctx := observability.TraceFeedOperation(ctx, "like", id)
	defer span.End()

	e.interactMu.Lock()
	defer e.interactMu.Unlock()

	current, ok := e.Post(id)
	if !ok {
		observability.FeedOperations.WithLabelValues("like", "noop").Inc()
		return
	}

	likes := current.Likes
	if stored, ok := e.store.Likes(ctx, id); ok {
		likes = stored
	}
	likes++
	e.store.SetLikes(ctx, id, likes)

	e.mu.Lock()
	if i := e.indexLocked(id); i >= 0 {
		e.posts[i].Likes = likes
	}
	e.mu.Unlock()

	observability.FeedOperations.WithLabelValues("like", "ok").Inc()
}

// Comment appends a comment by author to a post. text is trimmed but not validated. Unknown ids are
// ignored.
func (e *Engine) Comment(ctx context.Context, id int, text, author string) {
	span, ctx := observability.TraceFeedOperation(ctx, "comment", id)
	defer span.End()

	e.interactMu.Lock()
	defer e.interactMu.Unlock()

	current, ok := e.Post(id)
	if !ok {
		observability.FeedOperations.WithLabelValues("comment", "noop").Inc()
		return
	}

	comments := current.CommentsList
	if stored, ok := e.store.Comments(ctx, id); ok {
		comments = stored
	}
	comments = append(cloneComments(comments), models.Comment{
		Username:        author,
		Content:         strings.TrimSpace(text),
		CreatedDatetime: textfmt.FormatTimestamp(e.now()),
	})
	e.store.SetComments(ctx, id, comments)

	e.mu.Lock()
	if i := e.indexLocked(id); i >= 0 {
		e.posts[i].CommentsList = comments
	}
	e.mu.Unlock()

	observability.FeedOperations.WithLabelValues("comment", "ok").Inc()
}

func (e *Engine) writeFailed(ctx context.Context, span *observability.Span, operation string, id int, err error) {
	span.SetError(err)
	observability.FeedOperations.WithLabelValues(operation, "error").Inc()
	observability.Logger.ErrorContext(ctx, "post "+operation+" failed",
		slog.Int("post_id", id),
		slog.String("error", err.Error()),
	)
}
