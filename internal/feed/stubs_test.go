package feed

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"postsync/internal/gateway"
	"postsync/internal/interactions"
	"postsync/internal/kv"
	"postsync/internal/models"
)

// gatewayStub is a stub for PostGateway.
type gatewayStub struct {
	listFn   func(context.Context) ([]models.RemotePost, error)
	createFn func(context.Context, gateway.CreateRequest) (models.RemotePost, error)
	updateFn func(context.Context, int, gateway.UpdateRequest) (models.RemotePost, error)
	deleteFn func(context.Context, int) error
}

func (s *gatewayStub) List(ctx context.Context) ([]models.RemotePost, error) {
	return s.listFn(ctx)
}
func (s *gatewayStub) Create(ctx context.Context, req gateway.CreateRequest) (models.RemotePost, error) {
	return s.createFn(ctx, req)
}
func (s *gatewayStub) Update(ctx context.Context, id int, req gateway.UpdateRequest) (models.RemotePost, error) {
	return s.updateFn(ctx, id, req)
}
func (s *gatewayStub) Delete(ctx context.Context, id int) error {
	return s.deleteFn(ctx, id)
}

func noopGateway() *gatewayStub {
	return &gatewayStub{
		listFn: func(context.Context) ([]models.RemotePost, error) { return []models.RemotePost{}, nil },
		createFn: func(_ context.Context, req gateway.CreateRequest) (models.RemotePost, error) {
			return models.RemotePost{ID: 1, Username: req.Username, Title: req.Title, Content: req.Content}, nil
		},
		updateFn: func(_ context.Context, id int, req gateway.UpdateRequest) (models.RemotePost, error) {
			return models.RemotePost{ID: id, Title: req.Title, Content: req.Content}, nil
		},
		deleteFn: func(context.Context, int) error { return nil },
	}
}

// fakeCollection behaves like the remote collection: ids are assigned on create and timestamps
// increase by one minute per post.
type fakeCollection struct {
	mu        sync.Mutex
	posts     map[int]models.RemotePost
	nextID    int
	clock     time.Time
	lastPatch gateway.UpdateRequest
}

func newFakeCollection() *fakeCollection {
	return &fakeCollection{
		posts:  make(map[int]models.RemotePost),
		nextID: 1,
		clock:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (f *fakeCollection) List(context.Context) ([]models.RemotePost, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.RemotePost, 0, len(f.posts))
	for _, p := range f.posts {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeCollection) Create(_ context.Context, req gateway.CreateRequest) (models.RemotePost, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clock = f.clock.Add(time.Minute)
	p := models.RemotePost{
		ID:              f.nextID,
		Username:        req.Username,
		Title:           req.Title,
		Content:         req.Content,
		CreatedDatetime: f.clock.Format(time.RFC3339),
	}
	f.posts[p.ID] = p
	f.nextID++
	return p, nil
}

func (f *fakeCollection) Update(_ context.Context, id int, req gateway.UpdateRequest) (models.RemotePost, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.posts[id]
	if !ok {
		return models.RemotePost{}, models.NewRemoteWriteError("update", fmt.Errorf("unexpected status 404"))
	}
	f.lastPatch = req
	p.Title, p.Content = req.Title, req.Content
	f.posts[id] = p
	return p, nil
}

func (f *fakeCollection) Delete(_ context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.posts[id]; !ok {
		return models.NewRemoteWriteError("delete", fmt.Errorf("unexpected status 404"))
	}
	delete(f.posts, id)
	return nil
}

// reuseID makes the next create receive id.
func (f *fakeCollection) reuseID(id int) {
	f.mu.Lock()
	f.nextID = id
	f.mu.Unlock()
}

func newStore() (*interactions.Store, *kv.Memory) {
	backend := kv.NewMemory(0)
	return interactions.New(backend), backend
}

func intPtr(n int) *int { return &n }
