package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veiled-verse/internal/auth"
	"veiled-verse/internal/docstore"
	"veiled-verse/internal/netmon"
	"veiled-verse/internal/offline"
	"veiled-verse/internal/storystore"
)

func newRegistry(t *testing.T, dir string, network *netmon.Monitor) *Registry {
	t.Helper()
	return newRegistryWithDocs(t, dir, network, docstore.NewMemory())
}

func newRegistryWithDocs(t *testing.T, dir string, network *netmon.Monitor, docs docstore.Store) *Registry {
	t.Helper()
	r := NewRegistry(Config{
		QueueDir:   dir,
		Queue:      offline.DefaultConfig(),
		StoryStore: storystore.DefaultConfig(),
	}, docs, nil, network, nil, nil)
	t.Cleanup(r.Close)
	return r
}

func TestRegistry_ReusesSession(t *testing.T) {
	r := newRegistry(t, "", netmon.New(netmon.DefaultConfig(), nil))
	p := auth.NewPrincipal("u1", "Reader", []auth.Role{auth.RoleReader})

	a, err := r.Get(context.Background(), p)
	require.NoError(t, err)
	b, err := r.Get(context.Background(), p)
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.Equal(t, 1, r.Len())

	r.Remove("u1")
	assert.Equal(t, 0, r.Len())

	c, err := r.Get(context.Background(), p)
	require.NoError(t, err)
	assert.NotSame(t, a, c)
}

func TestRegistry_RejectsAnonymous(t *testing.T) {
	r := newRegistry(t, "", netmon.New(netmon.DefaultConfig(), nil))

	_, err := r.Get(context.Background(), nil)
	assert.Error(t, err)
}

func TestRegistry_QueueSurvivesLogout(t *testing.T) {
	dir := t.TempDir()
	network := netmon.New(netmon.Config{}, nil)
	ctx := context.Background()

	docs := docstore.NewMemory()
	require.NoError(t, docs.Set(ctx, docstore.CollectionStories, "s1", docstore.Document{
		"title":  "Story",
		"genre":  "fantasy",
		"status": "approved",
	}))

	r := newRegistryWithDocs(t, dir, network, docs)
	p := auth.NewPrincipal("u1", "Reader", []auth.Role{auth.RoleReader})

	s, err := r.Get(ctx, p)
	require.NoError(t, err)
	require.NoError(t, s.Store.RateStory(ctx, "s1", 4))
	require.Len(t, s.Store.PendingActions(), 1)

	_, err = os.Stat(filepath.Join(dir, "u1.json"))
	require.NoError(t, err)

	r.Remove("u1")

	s, err = r.Get(ctx, p)
	require.NoError(t, err)
	assert.Len(t, s.Store.PendingActions(), 1)
}

// slowUserDocs blocks reads of one user's profile until release is closed.
type slowUserDocs struct {
	docstore.Store
	uid     string
	entered chan struct{}
	release chan struct{}
}

func (d *slowUserDocs) Get(ctx context.Context, collection, id string) (docstore.Document, error) {
	if collection == docstore.CollectionUsers && id == d.uid {
		select {
		case d.entered <- struct{}{}:
		default:
		}
		<-d.release
	}
	return d.Store.Get(ctx, collection, id)
}

func TestRegistry_SlowStartDoesNotBlockOtherUsers(t *testing.T) {
	docs := &slowUserDocs{
		Store:   docstore.NewMemory(),
		uid:     "slow",
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	r := newRegistryWithDocs(t, "", netmon.New(netmon.DefaultConfig(), nil), docs)
	slow := auth.NewPrincipal("slow", "Slow", []auth.Role{auth.RoleReader})

	type result struct {
		s   *Session
		err error
	}
	first, second := make(chan result, 1), make(chan result, 1)
	go func() {
		s, err := r.Get(context.Background(), slow)
		first <- result{s, err}
	}()
	<-docs.entered

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := r.Get(ctx, auth.NewPrincipal("fast", "Fast", []auth.Role{auth.RoleReader}))
	require.NoError(t, err)

	go func() {
		s, err := r.Get(context.Background(), slow)
		second <- result{s, err}
	}()
	close(docs.release)

	a, b := <-first, <-second
	require.NoError(t, a.err)
	require.NoError(t, b.err)
	assert.Same(t, a.s, b.s)
	assert.Equal(t, 2, r.Len())
}
