package main

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"postsync/internal/config"
	"postsync/internal/devserver"
	"postsync/internal/feed"
	"postsync/internal/gateway"
	"postsync/internal/interactions"
	"postsync/internal/kv"
	"postsync/internal/notifications"
	"postsync/internal/session"
	"postsync/internal/validation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// lockedBuffer lets the watch goroutine write while the test reads.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *lockedBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Reset()
}

type testClient struct {
	*client
	buf   *lockedBuffer
	store kv.Store
}

func newTestClient(t *testing.T) *testClient {
	t.Helper()
	db, err := devserver.Connect(&config.Config{DevServerDBDriver: config.DriverSQLite, DevServerDBPath: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	app := devserver.NewServer(devserver.NewPostRepository(db)).App()
	gw := gateway.New("http://devserver.local/careers", gateway.WithHTTPClient(&http.Client{Transport: devserver.Transport(app)}))

	bus := notifications.NewBus(nil)
	store := kv.NewNotifying(kv.NewMemory(0), bus)
	engine := feed.New(gw, interactions.New(store))
	t.Cleanup(engine.Close)

	buf := &lockedBuffer{}
	return &testClient{client: newClient(engine, session.New(store, bus), bus, buf), buf: buf, store: store}
}

// exec runs one command and returns its output.
func (tc *testClient) exec(t *testing.T, args ...string) (string, error) {
	t.Helper()
	tc.buf.Reset()
	err := tc.run(context.Background(), args)
	return tc.buf.String(), err
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))))
	return buf.Bytes()
}

func TestClient_SessionCommands(t *testing.T) {
	tc := newTestClient(t)

	_, err := tc.exec(t, "whoami")
	assert.ErrorIs(t, err, errSignedOut)

	_, err = tc.exec(t, "signup", "ab")
	var fields validation.FieldErrors
	require.True(t, errors.As(err, &fields))
	assert.Contains(t, fields, validation.FieldUsername)

	out, err := tc.exec(t, "signup", "ann")
	require.NoError(t, err)
	assert.Equal(t, "Signed in as @ann\n", out)

	out, err = tc.exec(t, "whoami")
	require.NoError(t, err)
	assert.Equal(t, "@ann\n", out)

	_, err = tc.exec(t, "logout")
	require.NoError(t, err)
	_, err = tc.exec(t, "whoami")
	assert.ErrorIs(t, err, errSignedOut)
}

func TestClient_PostLifecycle(t *testing.T) {
	tc := newTestClient(t)
	tc.readFile = func(string) ([]byte, error) { return pngBytes(t), nil }

	out, err := tc.exec(t, "list")
	require.NoError(t, err)
	assert.Equal(t, "No posts yet\n", out)

	_, err = tc.exec(t, "create", "-title", "hi", "-content", "x")
	assert.ErrorIs(t, err, errSignedOut)

	_, err = tc.exec(t, "signup", "ann")
	require.NoError(t, err)

	_, err = tc.exec(t, "create", "-title", "  ", "-content", "x")
	var fields validation.FieldErrors
	require.True(t, errors.As(err, &fields))
	assert.Equal(t, "Title is required", fields[validation.FieldTitle])

	out, err = tc.exec(t, "create", "-title", "Hello", "-content", "hi @bob", "-image", "pic.png")
	require.NoError(t, err)
	assert.Equal(t, "Created post #1\n", out)

	out, err = tc.exec(t, "like", "1")
	require.NoError(t, err)
	assert.Equal(t, "Post #1 now has 1 like\n", out)

	_, err = tc.exec(t, "comment", "1", "nice", "@bob")
	require.NoError(t, err)

	out, err = tc.exec(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "#1 @ann")
	assert.Contains(t, out, "hi [@bob]")
	assert.Contains(t, out, "[image attached]")
	assert.Contains(t, out, "1 like, 1 comment")
	assert.Contains(t, out, "@ann: nice [@bob]")

	_, err = tc.exec(t, "edit", "1", "-clear-image")
	require.NoError(t, err)
	post, ok := tc.engine.Post(1)
	require.True(t, ok)
	assert.Empty(t, post.ImageURL)
	assert.Equal(t, "Hello", post.Title)
	assert.Equal(t, 1, post.Likes)

	_, err = tc.exec(t, "delete", "1")
	require.NoError(t, err)
	out, err = tc.exec(t, "list")
	require.NoError(t, err)
	assert.Equal(t, "No posts yet\n", out)
}

func TestClient_OnlyOwnerMayEditOrDelete(t *testing.T) {
	tc := newTestClient(t)

	_, err := tc.exec(t, "signup", "ann")
	require.NoError(t, err)
	_, err = tc.exec(t, "create", "-title", "mine", "-content", "x")
	require.NoError(t, err)

	_, err = tc.exec(t, "signup", "bob")
	require.NoError(t, err)

	_, err = tc.exec(t, "edit", "1", "-title", "stolen")
	assert.ErrorIs(t, err, errNotOwner)
	_, err = tc.exec(t, "delete", "1")
	assert.ErrorIs(t, err, errNotOwner)

	_, err = tc.exec(t, "delete", "42")
	assert.ErrorIs(t, err, errUnknownPost)
}

func TestClient_RejectsBadInput(t *testing.T) {
	tc := newTestClient(t)
	tc.readFile = func(string) ([]byte, error) { return []byte("plain text"), nil }

	tests := []struct {
		name string
		args []string
	}{
		{"no command", nil},
		{"unknown command", []string{"frobnicate"}},
		{"like without id", []string{"like"}},
		{"like with word", []string{"like", "one"}},
		{"comment without text", []string{"comment", "1"}},
		{"edit with both image flags", []string{"edit", "1", "-image", "a.png", "-clear-image"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tc.exec(t, tt.args...)
			assert.ErrorIs(t, err, errUsage)
		})
	}

	_, err := tc.exec(t, "signup", "ann")
	require.NoError(t, err)
	_, err = tc.exec(t, "create", "-title", "t", "-content", "c", "-image", "notes.txt")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "is not an image"))
}

func TestClient_WatchReportsChanges(t *testing.T) {
	tc := newTestClient(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.NoError(t, tc.watch(ctx))
	}()

	require.Eventually(t, func() bool {
		return strings.Contains(tc.buf.String(), "Watching local storage")
	}, time.Second, 5*time.Millisecond)

	_, err := tc.session.SignUp(context.Background(), "ann")
	require.NoError(t, err)
	require.NoError(t, tc.store.Set(context.Background(), "post_likes_3", "1"))
	require.NoError(t, tc.store.Set(context.Background(), "unrelated", "x"))
	require.NoError(t, tc.store.Remove(context.Background(), "post_likes_3"))

	require.Eventually(t, func() bool {
		return strings.Contains(tc.buf.String(), "storage: post_likes_3 removed")
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done

	out := tc.buf.String()
	assert.Contains(t, out, "session: signed in as @ann")
	assert.Contains(t, out, "storage: post_likes_3 updated")
	assert.NotContains(t, out, "unrelated")
}
