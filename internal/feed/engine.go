// Package feed is the post reconciliation engine. It keeps one in-memory list of posts consistent
// with the remote collection and with the interaction data stored on this device.
package feed

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"postsync/internal/gateway"
	"postsync/internal/interactions"
	"postsync/internal/models"
	"postsync/internal/observability"
)

// LoadingAction names the most recently started engine action.
type LoadingAction string

const (
	LoadingIdle     LoadingAction = "idle"
	LoadingFetching LoadingAction = "fetching"
	LoadingCreating LoadingAction = "creating"
	LoadingUpdating LoadingAction = "updating"
	LoadingDeleting LoadingAction = "deleting"
)

// PostGateway is the remote collection as seen by the engine.
type PostGateway interface {
	List(ctx context.Context) ([]models.RemotePost, error)
	Create(ctx context.Context, req gateway.CreateRequest) (models.RemotePost, error)
	Update(ctx context.Context, id int, req gateway.UpdateRequest) (models.RemotePost, error)
	Delete(ctx context.Context, id int) error
}

// ImageCompactor shrinks an image data URI before it is stored locally.
type ImageCompactor interface {
	Compact(ctx context.Context, dataURI string) string
}

// Engine is the post reconciliation engine. It is safe for concurrent use; remote calls run
// without holding the state lock.
type Engine struct {
	gw        PostGateway
	store     *interactions.Store
	compactor ImageCompactor
	now       func() time.Time

	// interactMu serializes the read-modify-write of local interaction records.
	interactMu sync.Mutex

	mu          sync.Mutex
	posts       []models.Post
	loading     LoadingAction
	lastErr     string
	generation  uint64
	cancelFetch context.CancelFunc
}

// Option configures an Engine.
type Option func(*Engine)

// WithCompactor shrinks images before they are persisted.
func WithCompactor(c ImageCompactor) Option {
	return func(e *Engine) { e.compactor = c }
}

// WithClock overrides the comment timestamp source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an Engine with an empty list.
func New(gw PostGateway, store *interactions.Store, opts ...Option) *Engine {
	e := &Engine{
		gw:      gw,
		store:   store,
		now:     time.Now,
		posts:   []models.Post{},
		loading: LoadingIdle,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Posts returns a copy of the current list.
func (e *Engine) Posts() []models.Post {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// Post returns the entry with the given id.
func (e *Engine) Post(id int) (models.Post, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if i := e.indexLocked(id); i >= 0 {
		return clonePost(e.posts[i]), true
	}
	return models.Post{}, false
}

// Loading returns the state of the most recently started action.
func (e *Engine) Loading() LoadingAction {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loading
}

// IsLoading reports whether a fetch is the current action.
func (e *Engine) IsLoading() bool {
	return e.Loading() == LoadingFetching
}

// Err returns the message of the last failed List, or "".
func (e *Engine) Err() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

// Close cancels any in-flight fetch. Its completion is discarded.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.generation++
	if e.cancelFetch != nil {
		e.cancelFetch()
		e.cancelFetch = nil
	}
}

// List refetches the collection, merges every record with its local overlay and replaces the list
// sorted newest first. Starting a List supersedes any List still in flight: the older call's
// result, loading transition and error are all discarded. Failures are recorded in Err and clear
// the list; List itself never fails.
func (e *Engine) List(ctx context.Context) []models.Post {
	span, ctx := observability.TraceFeedOperation(ctx, "list", 0)
	defer span.End()

	e.mu.Lock()
	if e.cancelFetch != nil {
		e.cancelFetch()
	}
	e.generation++
	gen := e.generation
	fetchCtx, cancel := context.WithCancel(ctx)
	e.cancelFetch = cancel
	e.loading = LoadingFetching
	e.lastErr = ""
	e.mu.Unlock()
	defer cancel()

	remote, err := e.gw.List(fetchCtx)

	var merged []models.Post
	if err == nil && fetchCtx.Err() == nil {
		merged = e.mergeAll(fetchCtx, remote)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if gen != e.generation || fetchCtx.Err() != nil {
		observability.FeedOperations.WithLabelValues("list", "superseded").Inc()
		observability.Logger.DebugContext(ctx, "fetch superseded", slog.Uint64("generation", gen))
		return e.snapshotLocked()
	}
	e.cancelFetch = nil
	e.loading = LoadingIdle

	switch {
	case err == nil:
		e.posts = merged
		observability.FeedOperations.WithLabelValues("list", "ok").Inc()
	case models.HasCode(err, models.CodeMalformedResponse):
		e.posts = []models.Post{}
		observability.FeedOperations.WithLabelValues("list", "malformed").Inc()
		observability.Logger.ErrorContext(ctx, "unexpected API response structure", slog.String("error", err.Error()))
	default:
		e.posts = []models.Post{}
		e.lastErr = err.Error()
		span.SetError(err)
		observability.FeedOperations.WithLabelValues("list", "error").Inc()
		observability.Logger.ErrorContext(ctx, "error fetching posts", slog.String("error", err.Error()))
	}
	observability.FeedPosts.Set(float64(len(e.posts)))
	return e.snapshotLocked()
}

// mergeAll reads every overlay once and merges the remote records, dropping duplicate ids.
func (e *Engine) mergeAll(ctx context.Context, remote []models.RemotePost) []models.Post {
	overlays := e.store.Overlays(ctx)
	seen := make(map[int]struct{}, len(remote))
	merged := make([]models.Post, 0, len(remote))
	for _, r := range remote {
		if _, dup := seen[r.ID]; dup {
			continue
		}
		seen[r.ID] = struct{}{}
		merged = append(merged, Merge(r, overlays[r.ID]))
	}
	SortNewestFirst(merged)
	return merged
}

func (e *Engine) setLoading(action LoadingAction) {
	e.mu.Lock()
	e.loading = action
	e.mu.Unlock()
}

func (e *Engine) indexLocked(id int) int {
	for i := range e.posts {
		if e.posts[i].ID == id {
			return i
		}
	}
	return -1
}

func (e *Engine) snapshotLocked() []models.Post {
	out := make([]models.Post, len(e.posts))
	for i, p := range e.posts {
		out[i] = clonePost(p)
	}
	return out
}

func (e *Engine) compact(ctx context.Context, dataURI string) string {
	if e.compactor == nil || dataURI == "" {
		return dataURI
	}
	return e.compactor.Compact(ctx, dataURI)
}
