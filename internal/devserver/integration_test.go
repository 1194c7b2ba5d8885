package devserver

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"postsync/internal/feed"
	"postsync/internal/gateway"
	"postsync/internal/interactions"
	"postsync/internal/kv"
	"postsync/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(t *testing.T) (*feed.Engine, *gateway.Gateway) {
	t.Helper()
	app, _ := newTestApp(t)
	gw := gateway.New("http://devserver.local/careers", gateway.WithHTTPClient(&http.Client{Transport: Transport(app)}))
	return feed.New(gw, interactions.New(kv.NewMemory(0))), gw
}

func TestEngineAgainstDevServer(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t)

	first, err := e.Create(ctx, models.CreatePostData{Username: "ann", Title: "first", Content: "hello"})
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	second, err := e.Create(ctx, models.CreatePostData{
		Username: "bob", Title: "second", Content: "hi @ann", ImageURL: "data:image/png;base64,AA==",
	})
	require.NoError(t, err)

	e.Like(ctx, first.ID)
	e.Like(ctx, first.ID)
	e.Comment(ctx, second.ID, " welcome ", "ann")

	posts := e.List(ctx)
	require.Empty(t, e.Err())
	require.Len(t, posts, 2)
	assert.Equal(t, second.ID, posts[0].ID)
	assert.Equal(t, "data:image/png;base64,AA==", posts[0].ImageURL)
	assert.Equal(t, []string{"ann"}, posts[0].Mentions)
	require.Len(t, posts[0].CommentsList, 1)
	assert.Equal(t, "welcome", posts[0].CommentsList[0].Content)
	assert.Equal(t, 2, posts[1].Likes)

	updated, err := e.Update(ctx, first.ID, models.UpdatePostData{Title: "edited", Content: "hello", Image: models.KeepImage()})
	require.NoError(t, err)
	assert.Equal(t, "edited", updated.Title)
	assert.Equal(t, 2, updated.Likes)

	require.NoError(t, e.Delete(ctx, second.ID))
	posts = e.List(ctx)
	require.Len(t, posts, 1)
	assert.Equal(t, "edited", posts[0].Title)

	err = e.Delete(ctx, second.ID)
	assert.True(t, models.HasCode(err, models.CodeRemoteWrite))
}

func TestTransport_HonorsCancellation(t *testing.T) {
	_, gw := newEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := gw.List(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	app := NewServer(NewPostRepository(setupTestDB(t)), WithMetrics(reg)).App()

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/careers/", nil), -1)
	require.NoError(t, err)
	_ = resp.Body.Close()

	families, err := reg.Gather()
	require.NoError(t, err)
	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "postsync_devserver_requests_total")

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	_, _ = io.Copy(io.Discard, resp.Body)
}
