package kv

import (
	"context"
	"errors"
	"testing"

	"postsync/internal/config"
	"postsync/internal/notifications"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]Store {
	t.Helper()

	sqlStore, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlStore.Close() })

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	redisStore := NewRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test:")
	t.Cleanup(func() { _ = redisStore.Close() })

	return map[string]Store{
		"memory": NewMemory(0),
		"sqlite": sqlStore,
		"redis":  redisStore,
	}
}

func TestStore_Conformance(t *testing.T) {
	for name, store := range backends(t) {
		store := store
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, ok, err := store.Get(ctx, "post_likes_1")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, store.Set(ctx, "post_likes_1", "3"))
			require.NoError(t, store.Set(ctx, "post_likes_1", "4"))
			v, ok, err := store.Get(ctx, "post_likes_1")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "4", v)

			require.NoError(t, store.Set(ctx, "post_likes_12", "1"))
			require.NoError(t, store.Set(ctx, "post_likesX2", "1"))
			require.NoError(t, store.Set(ctx, "post_image_1", "data:image/png;base64,AA=="))
			require.NoError(t, store.Set(ctx, "user", `{"username":"bob"}`))

			keys, err := store.Keys(ctx, "post_likes_")
			require.NoError(t, err)
			assert.Equal(t, []string{"post_likes_1", "post_likes_12"}, keys)

			require.NoError(t, store.Remove(ctx, "post_likes_1"))
			require.NoError(t, store.Remove(ctx, "post_likes_1"), "remove must be idempotent")
			_, ok, err = store.Get(ctx, "post_likes_1")
			require.NoError(t, err)
			assert.False(t, ok)

			keys, err = store.Keys(ctx, "")
			require.NoError(t, err)
			assert.Equal(t, []string{"post_image_1", "post_likes_12", "post_likesX2", "user"}, keys)
		})
	}
}

func TestRedis_KeysEscapeGlobCharacters(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	store := NewRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "ns:")
	defer func() { _ = store.Close() }()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "a*1", "x"))
	require.NoError(t, store.Set(ctx, "ab1", "y"))

	keys, err := store.Keys(ctx, "a*")
	require.NoError(t, err)
	assert.Equal(t, []string{"a*1"}, keys)
	assert.True(t, mr.Exists("ns:ab1"))
}

func TestMemory_Quota(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := NewMemory(10)

	require.NoError(t, m.Set(ctx, "k", "12345"))
	assert.Equal(t, 6, m.Used())

	err := m.Set(ctx, "k2", "123456789")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrQuotaExceeded))
	_, ok, _ := m.Get(ctx, "k2")
	assert.False(t, ok)

	// Overwriting frees the old value first.
	require.NoError(t, m.Set(ctx, "k", "123456789"))
	assert.Equal(t, 10, m.Used())

	require.NoError(t, m.Remove(ctx, "k"))
	assert.Equal(t, 0, m.Used())
}

func TestNotifying_PublishesOnSuccessfulWrites(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	bus := notifications.NewBus(nil)
	store := NewNotifying(NewMemory(8), bus)

	var changes []notifications.Change
	bus.Subscribe(func(c notifications.Change) { changes = append(changes, c) })

	require.NoError(t, store.Set(ctx, "user", "ok"))
	require.Error(t, store.Set(ctx, "user", "far too long for quota"))
	require.NoError(t, store.Remove(ctx, "user"))

	require.Len(t, changes, 2)
	assert.Equal(t, notifications.Change{Key: "user", Origin: bus.Origin()}, changes[0])
	assert.True(t, changes[1].Removed)
	assert.Same(t, bus, store.Bus())
}

func TestOpen_MemoryDriver(t *testing.T) {
	cfg := &config.Config{StorageDriver: config.DriverMemory, StorageQuotaBytes: 64}

	store, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	require.NoError(t, store.Set(context.Background(), "user", "x"))
	assert.ErrorIs(t, store.Set(context.Background(), "big", string(make([]byte, 128))), ErrQuotaExceeded)
}

func TestOpen_RedisDriver(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := &config.Config{StorageDriver: config.DriverRedis, RedisURL: "redis://" + mr.Addr(), RedisNamespace: "p:"}
	store, err := Open(ctx, cfg)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	require.NoError(t, store.Set(ctx, "post_likes_5", "2"))
	got, err := mr.Get("p:post_likes_5")
	require.NoError(t, err)
	assert.Equal(t, "2", got)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), &config.Config{StorageDriver: "etcd"})
	assert.Error(t, err)
}
