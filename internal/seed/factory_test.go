package seed

import (
	"context"
	"testing"

	"postsync/internal/config"
	"postsync/internal/devserver"
	"postsync/internal/textfmt"
	"postsync/internal/validation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFactory_UsernamesPassSignupRules(t *testing.T) {
	t.Parallel()
	f := NewFactory(Options{Users: 25, Seed: 7})

	users := f.Users()
	require.Len(t, users, 25)
	seen := map[string]bool{}
	for _, u := range users {
		assert.Empty(t, validation.ValidateUsername(u), u)
		assert.False(t, seen[u], "duplicate %s", u)
		seen[u] = true
	}
}

func TestFactory_BuildPost(t *testing.T) {
	t.Parallel()
	f := NewFactory(Options{Users: 4, MaxDays: 10, Seed: 42})
	users := map[string]bool{}
	for _, u := range f.Users() {
		users[u] = true
	}

	mentioned := 0
	for i := 0; i < 50; i++ {
		p := f.BuildPost()
		assert.True(t, users[p.Username])
		assert.NotEmpty(t, p.Title)
		assert.NotEmpty(t, p.Content)
		assert.False(t, p.CreatedDatetime.After(f.now))
		for _, m := range textfmt.ExtractMentions(p.Content) {
			assert.True(t, users[m], m)
			mentioned++
		}
	}
	assert.Positive(t, mentioned)

	p := f.BuildPost(func(r *devserver.PostRecord) { r.Title = "fixed" })
	assert.Equal(t, "fixed", p.Title)
}

func TestFactory_Deterministic(t *testing.T) {
	t.Parallel()
	a := NewFactory(Options{Users: 3, Seed: 99})
	b := NewFactory(Options{Users: 3, Seed: 99})
	assert.Equal(t, a.Users(), b.Users())
	assert.Equal(t, a.BuildPost().Title, b.BuildPost().Title)
}

func TestSeed(t *testing.T) {
	db, err := devserver.Connect(&config.Config{DevServerDBDriver: config.DriverSQLite, DevServerDBPath: ":memory:"})
	require.NoError(t, err)
	repo := devserver.NewPostRepository(db)

	posts, err := Seed(context.Background(), repo, Options{Users: 3, Posts: 12, Seed: 1})
	require.NoError(t, err)
	require.Len(t, posts, 12)

	stored, total, err := repo.List(context.Background(), 100, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(12), total)
	for i := 1; i < len(stored); i++ {
		assert.False(t, stored[i].CreatedDatetime.After(stored[i-1].CreatedDatetime))
	}
}
