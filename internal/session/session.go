// Package session keeps the single local identity of this device.
package session

import (
	"context"
	"encoding/json"
	"log/slog"

	"postsync/internal/kv"
	"postsync/internal/models"
	"postsync/internal/notifications"
	"postsync/internal/observability"
	"postsync/internal/validation"
)

// UserKey is the storage key holding the signed-in user as JSON.
const UserKey = "user"

// Store reads and writes the signed-in user.
type Store struct {
	kv  kv.Store
	bus *notifications.Bus
	log *observability.StoreLogger
}

// New creates a Store. bus may be nil, in which case Watch never fires.
func New(store kv.Store, bus *notifications.Bus) *Store {
	return &Store{kv: store, bus: bus, log: observability.NewStoreLogger("user")}
}

// Current returns the signed-in user. A missing or unreadable record means nobody is signed in.
func (s *Store) Current(ctx context.Context) (models.User, bool) {
	raw, ok, err := s.kv.Get(ctx, UserKey)
	if err != nil {
		s.fail(ctx, "get", err)
		return models.User{}, false
	}
	if !ok {
		return models.User{}, false
	}
	var user models.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil || user.Username == "" {
		observability.Logger.WarnContext(ctx, "ignoring unreadable user record", slog.String("key", UserKey))
		return models.User{}, false
	}
	return user, true
}

// SignUp validates username and stores it as the signed-in user.
func (s *Store) SignUp(ctx context.Context, username string) (models.User, error) {
	in, err := validation.ValidateSignup(validation.SignupInput{Username: username})
	if err != nil {
		return models.User{}, err
	}
	user := models.User{Username: in.Username}

	raw, err := json.Marshal(user)
	if err != nil {
		return models.User{}, err
	}
	if err := s.kv.Set(ctx, UserKey, string(raw)); err != nil {
		s.fail(ctx, "set", err)
		return models.User{}, models.NewStorageError("set", UserKey, err)
	}
	s.log.LogWrite(ctx, UserKey, len(raw))
	observability.Logger.InfoContext(ctx, "signed up", slog.String("username", user.Username))
	return user, nil
}

// SignOut forgets the signed-in user.
func (s *Store) SignOut(ctx context.Context) {
	if err := s.kv.Remove(ctx, UserKey); err != nil {
		s.fail(ctx, "remove", err)
	}
}

// Watch calls fn with the current user every time the user record changes, in this process or in
// another one sharing the store. The record is re-read on every change. The returned function stops
// watching.
func (s *Store) Watch(ctx context.Context, fn func(user models.User, signedIn bool)) (stop func()) {
	if s.bus == nil {
		return func() {}
	}
	return s.bus.SubscribeKey(UserKey, func(notifications.Change) {
		user, ok := s.Current(ctx)
		fn(user, ok)
	})
}

func (s *Store) fail(ctx context.Context, operation string, err error) {
	observability.StorageErrors.WithLabelValues("user", operation).Inc()
	s.log.LogError(ctx, err, operation, UserKey)
}
