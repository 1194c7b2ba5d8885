// Package interactions persists the locally owned parts of a post (image, like count, comment
// thread) keyed by post id. It is a pure storage accessor: every failure is logged and swallowed,
// and every read goes back to the underlying store.
package interactions

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"postsync/internal/kv"
	"postsync/internal/models"
	"postsync/internal/observability"
)

// Key prefixes, one per concern.
const (
	ImagePrefix    = "post_image_"
	LikesPrefix    = "post_likes_"
	CommentsPrefix = "post_comments_"
)

type accessor struct {
	store   kv.Store
	prefix  string
	concern string
	log     *observability.StoreLogger
}

func newAccessor(store kv.Store, prefix, concern string) accessor {
	return accessor{
		store:   store,
		prefix:  prefix,
		concern: concern,
		log:     observability.NewStoreLogger(concern),
	}
}

func (a accessor) key(id int) string {
	return a.prefix + strconv.Itoa(id)
}

func (a accessor) fail(ctx context.Context, operation, key string, err error) {
	observability.StorageErrors.WithLabelValues(a.concern, operation).Inc()
	a.log.LogError(ctx, models.NewStorageError(operation, key, err), operation, key)
}

func (a accessor) get(ctx context.Context, id int) (string, bool) {
	key := a.key(id)
	v, ok, err := a.store.Get(ctx, key)
	if err != nil {
		a.fail(ctx, "get", key, err)
		return "", false
	}
	return v, ok
}

func (a accessor) set(ctx context.Context, id int, value string) {
	key := a.key(id)
	if err := a.store.Set(ctx, key, value); err != nil {
		a.fail(ctx, "set", key, err)
		return
	}
	a.log.LogWrite(ctx, key, len(value))
}

func (a accessor) remove(ctx context.Context, id int) {
	key := a.key(id)
	if err := a.store.Remove(ctx, key); err != nil {
		a.fail(ctx, "remove", key, err)
	}
}

// all maps every numeric id under the prefix to its non-empty value. Keys whose suffix is not a
// number are skipped.
func (a accessor) all(ctx context.Context) map[int]string {
	out := make(map[int]string)
	keys, err := a.store.Keys(ctx, a.prefix)
	if err != nil {
		a.fail(ctx, "keys", a.prefix, err)
		return out
	}
	for _, key := range keys {
		id, err := strconv.Atoi(strings.TrimPrefix(key, a.prefix))
		if err != nil {
			continue
		}
		v, ok, err := a.store.Get(ctx, key)
		if err != nil {
			a.fail(ctx, "get", key, err)
			continue
		}
		if ok && v != "" {
			out[id] = v
		}
	}
	return out
}

// Store is the Local Interaction Store.
type Store struct {
	images   accessor
	likes    accessor
	comments accessor
}

// New creates a Store over the given key-value backend.
func New(store kv.Store) *Store {
	return &Store{
		images:   newAccessor(store, ImagePrefix, "image"),
		likes:    newAccessor(store, LikesPrefix, "likes"),
		comments: newAccessor(store, CommentsPrefix, "comments"),
	}
}

// Image returns the stored image data URI for a post.
func (s *Store) Image(ctx context.Context, id int) (string, bool) {
	v, ok := s.images.get(ctx, id)
	return v, ok && v != ""
}

func (s *Store) SetImage(ctx context.Context, id int, dataURI string) {
	s.images.set(ctx, id, dataURI)
}

func (s *Store) RemoveImage(ctx context.Context, id int) {
	s.images.remove(ctx, id)
}

// Images returns every stored image by post id.
func (s *Store) Images(ctx context.Context) map[int]string {
	return s.images.all(ctx)
}

// Likes returns the stored like count for a post. Unparseable values read as absent.
func (s *Store) Likes(ctx context.Context, id int) (int, bool) {
	v, ok := s.likes.get(ctx, id)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func (s *Store) SetLikes(ctx context.Context, id, likes int) {
	s.likes.set(ctx, id, strconv.Itoa(likes))
}

func (s *Store) RemoveLikes(ctx context.Context, id int) {
	s.likes.remove(ctx, id)
}

// AllLikes returns every stored like count by post id, skipping unparseable values.
func (s *Store) AllLikes(ctx context.Context) map[int]int {
	out := make(map[int]int)
	for id, v := range s.likes.all(ctx) {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			continue
		}
		out[id] = n
	}
	return out
}

// CommentsJSON returns the serialized comment list for a post as stored.
func (s *Store) CommentsJSON(ctx context.Context, id int) (string, bool) {
	return s.comments.get(ctx, id)
}

// Comments returns the decoded comment list for a post. A value that fails to decode is logged
// and reported as absent.
func (s *Store) Comments(ctx context.Context, id int) ([]models.Comment, bool) {
	raw, ok := s.comments.get(ctx, id)
	if !ok || raw == "" {
		return nil, false
	}
	return s.decodeComments(ctx, id, raw)
}

func (s *Store) SetComments(ctx context.Context, id int, comments []models.Comment) {
	if comments == nil {
		comments = []models.Comment{}
	}
	raw, err := json.Marshal(comments)
	if err != nil {
		s.comments.fail(ctx, "encode", s.comments.key(id), err)
		return
	}
	s.comments.set(ctx, id, string(raw))
}

func (s *Store) RemoveComments(ctx context.Context, id int) {
	s.comments.remove(ctx, id)
}

// AllCommentsJSON returns every serialized comment list by post id.
func (s *Store) AllCommentsJSON(ctx context.Context) map[int]string {
	return s.comments.all(ctx)
}

// Forget removes all three interaction records of a post.
func (s *Store) Forget(ctx context.Context, id int) {
	s.images.remove(ctx, id)
	s.likes.remove(ctx, id)
	s.comments.remove(ctx, id)
}

func (s *Store) decodeComments(ctx context.Context, id int, raw string) ([]models.Comment, bool) {
	var comments []models.Comment
	if err := json.Unmarshal([]byte(raw), &comments); err != nil {
		s.comments.fail(ctx, "decode", s.comments.key(id), err)
		return nil, false
	}
	if comments == nil {
		comments = []models.Comment{}
	}
	return comments, true
}
