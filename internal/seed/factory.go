// Package seed fills the development collection with demo posts. It is intended for local
// development and tests only.
package seed

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"postsync/internal/devserver"

	"github.com/brianvoe/gofakeit/v6"
)

// Options tunes generated data.
type Options struct {
	Users   int
	Posts   int
	MaxDays int
	Seed    int64
}

// DefaultOptions returns a small realistic data set.
func DefaultOptions() Options {
	return Options{Users: 5, Posts: 20, MaxDays: 30}
}

// Factory builds demo posts.
type Factory struct {
	faker *gofakeit.Faker
	rng   *rand.Rand
	opts  Options
	users []string
	now   time.Time
}

// NewFactory creates a Factory. A zero Seed picks a random one.
func NewFactory(opts Options) *Factory {
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if opts.Users <= 0 {
		opts.Users = 1
	}
	if opts.MaxDays <= 0 {
		opts.MaxDays = 30
	}
	f := &Factory{
		faker: gofakeit.New(seed),
		rng:   rand.New(rand.NewSource(seed)),
		opts:  opts,
		now:   time.Now().UTC(),
	}
	f.users = f.usernames(opts.Users)
	return f
}

// Users returns the generated authors.
func (f *Factory) Users() []string {
	return append([]string(nil), f.users...)
}

// usernames generates n distinct names that pass the signup rules: 3 to 20 letters.
func (f *Factory) usernames(n int) []string {
	seen := make(map[string]struct{}, n)
	out := make([]string, 0, n)
	for len(out) < n {
		name := lettersOnly(f.faker.FirstName() + f.faker.LastName())
		if len(name) > 20 {
			name = name[:20]
		}
		if len(name) < 3 {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

// BuildPost constructs a post without persisting it. Content mentions another user about half the
// time.
func (f *Factory) BuildPost(overrides ...func(*devserver.PostRecord)) *devserver.PostRecord {
	author := f.users[f.rng.Intn(len(f.users))]
	content := f.faker.Paragraph(1, 2, 12, " ")
	if len(f.users) > 1 && f.rng.Intn(2) == 0 {
		other := f.users[f.rng.Intn(len(f.users))]
		if other != author {
			content = fmt.Sprintf("%s @%s", content, other)
		}
	}

	daysBack := f.rng.Intn(f.opts.MaxDays)
	minsBack := f.rng.Intn(24 * 60)
	post := &devserver.PostRecord{
		Username:        author,
		Title:           strings.TrimSuffix(f.faker.Sentence(4), "."),
		Content:         content,
		CreatedDatetime: f.now.Add(-time.Duration(daysBack)*24*time.Hour - time.Duration(minsBack)*time.Minute),
	}
	for _, override := range overrides {
		override(post)
	}
	return post
}

// Seed persists opts.Posts generated posts through repo.
func Seed(ctx context.Context, repo devserver.PostRepository, opts Options) ([]*devserver.PostRecord, error) {
	f := NewFactory(opts)
	posts := make([]*devserver.PostRecord, 0, opts.Posts)
	for i := 0; i < opts.Posts; i++ {
		post := f.BuildPost()
		if err := repo.Create(ctx, post); err != nil {
			return posts, fmt.Errorf("seed post %d: %w", i, err)
		}
		posts = append(posts, post)
	}
	return posts, nil
}

func lettersOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
