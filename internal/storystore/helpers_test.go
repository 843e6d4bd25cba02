package storystore_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"veiled-verse/internal/auth"
	"veiled-verse/internal/docstore"
	"veiled-verse/internal/localstore"
	"veiled-verse/internal/models"
	"veiled-verse/internal/netmon"
	"veiled-verse/internal/notify"
	"veiled-verse/internal/offline"
	"veiled-verse/internal/storystore"
	"veiled-verse/internal/wallet"
)

// countingDocs counts writes and lets a test fail chosen operations.
type countingDocs struct {
	docstore.Store

	mu     sync.Mutex
	writes int
	fail   func(op, collection string) error
}

func (d *countingDocs) hook(op, collection string) error {
	d.mu.Lock()
	fail := d.fail
	d.mu.Unlock()
	if fail != nil {
		return fail(op, collection)
	}
	return nil
}

func (d *countingDocs) write() {
	d.mu.Lock()
	d.writes++
	d.mu.Unlock()
}

func (d *countingDocs) Writes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.writes
}

func (d *countingDocs) FailWith(fn func(op, collection string) error) {
	d.mu.Lock()
	d.fail = fn
	d.mu.Unlock()
}

func (d *countingDocs) Get(ctx context.Context, collection, id string) (docstore.Document, error) {
	if err := d.hook("get", collection); err != nil {
		return nil, err
	}
	return d.Store.Get(ctx, collection, id)
}

func (d *countingDocs) Query(ctx context.Context, collection string, where ...docstore.Condition) ([]docstore.Document, error) {
	if err := d.hook("query", collection); err != nil {
		return nil, err
	}
	return d.Store.Query(ctx, collection, where...)
}

func (d *countingDocs) Create(ctx context.Context, collection string, data docstore.Document) (string, error) {
	if err := d.hook("create", collection); err != nil {
		return "", err
	}
	d.write()
	return d.Store.Create(ctx, collection, data)
}

func (d *countingDocs) Set(ctx context.Context, collection, id string, data docstore.Document) error {
	if err := d.hook("set", collection); err != nil {
		return err
	}
	d.write()
	return d.Store.Set(ctx, collection, id, data)
}

func (d *countingDocs) Update(ctx context.Context, collection, id string, patch docstore.Document) error {
	if err := d.hook("update", collection); err != nil {
		return err
	}
	d.write()
	return d.Store.Update(ctx, collection, id, patch)
}

func (d *countingDocs) Delete(ctx context.Context, collection, id string) error {
	if err := d.hook("delete", collection); err != nil {
		return err
	}
	d.write()
	return d.Store.Delete(ctx, collection, id)
}

func (d *countingDocs) Transact(ctx context.Context, collection, id string, fn docstore.TransactFunc) error {
	if err := d.hook("transact", collection); err != nil {
		return err
	}
	d.write()
	return d.Store.Transact(ctx, collection, id, fn)
}

func (d *countingDocs) Increment(ctx context.Context, collection, id, field string, delta int64) error {
	if err := d.hook("increment", collection); err != nil {
		return err
	}
	d.write()
	return d.Store.Increment(ctx, collection, id, field, delta)
}

type fixture struct {
	docs    *countingDocs
	wallets *wallet.Service
	network *netmon.Monitor
	notes   *notify.Recorder
	kv      *localstore.Memory
	queue   *offline.Queue
	store   *storystore.Store
}

func reader(id string) *auth.Principal {
	return auth.NewPrincipal(id, "Reader "+id, []auth.Role{auth.RoleReader})
}

func writer(id string) *auth.Principal {
	return auth.NewPrincipal(id, "Writer "+id, []auth.Role{auth.RoleReader, auth.RoleWriter})
}

func newFixture(t *testing.T, p *auth.Principal) *fixture {
	t.Helper()
	return newFixtureWithDocs(t, p, &countingDocs{Store: docstore.NewMemory()})
}

// newFixtureWithDocs builds a store over docs without starting it.
func newFixtureWithDocs(t *testing.T, p *auth.Principal, docs *countingDocs) *fixture {
	t.Helper()

	f := &fixture{
		docs:    docs,
		wallets: wallet.NewService(docs, nil),
		network: netmon.New(netmon.DefaultConfig(), nil),
		notes:   notify.NewRecorder(0),
		kv:      localstore.NewMemory(),
	}
	f.queue = offline.NewQueue(f.kv, "offline_actions:"+p.UserID(), &offline.Config{MaxRetries: 3}, nil)
	f.store = storystore.New(storystore.Deps{
		Identity: p,
		Docs:     docs,
		Wallets:  f.wallets,
		Queue:    f.queue,
		Network:  f.network,
		Notifier: f.notes,
	}, storystore.DefaultConfig())
	t.Cleanup(f.store.Close)
	return f
}

func (f *fixture) start(t *testing.T) {
	t.Helper()
	require.NoError(t, f.store.Start(context.Background()))
}

// seed writes stories straight into the document store.
func (f *fixture) seed(t *testing.T, stories ...models.Story) {
	t.Helper()
	for _, st := range stories {
		doc, err := docstore.Encode(st)
		require.NoError(t, err)
		delete(doc, "id")
		require.NoError(t, f.docs.Store.Set(context.Background(), docstore.CollectionStories, st.ID, doc))
	}
}

func (f *fixture) remote(t *testing.T, id string) models.Story {
	t.Helper()
	doc, err := f.docs.Store.Get(context.Background(), docstore.CollectionStories, id)
	require.NoError(t, err)
	var st models.Story
	require.NoError(t, docstore.Decode(doc, &st))
	return st
}

func (f *fixture) lastNote(t *testing.T) notify.Notification {
	t.Helper()
	n, ok := f.notes.Last()
	require.True(t, ok, "expected a notification")
	return n
}

func approvedStory(id, authorID string) models.Story {
	return models.Story{
		ID:         id,
		Title:      "Story " + id,
		Genre:      "fantasy",
		AuthorID:   authorID,
		AuthorName: "Author " + authorID,
		Status:     models.StatusApproved,
		LikedBy:    []string{},
		Ratings:    []models.Rating{},
		CreatedAt:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func likedBy(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("fan-%d", i)
	}
	return out
}
