package docstore_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veiled-verse/internal/docstore"
)

type book struct {
	ID    string   `json:"id"`
	Title string   `json:"title"`
	Tags  []string `json:"tags"`
	Pages int64    `json:"pages"`
}

func TestMemory_CRUD(t *testing.T) {
	ctx := context.Background()
	s := docstore.NewMemory()

	doc, err := docstore.Encode(book{Title: "Dune", Pages: 10})
	require.NoError(t, err)

	id, err := s.Create(ctx, "books", doc)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := s.Get(ctx, "books", id)
	require.NoError(t, err)

	var b book
	require.NoError(t, docstore.Decode(got, &b))
	assert.Equal(t, id, b.ID)
	assert.Equal(t, "Dune", b.Title)

	require.NoError(t, s.Update(ctx, "books", id, docstore.Document{"title": "Dune Messiah"}))
	got, err = s.Get(ctx, "books", id)
	require.NoError(t, err)
	assert.Equal(t, "Dune Messiah", got["title"])
	assert.Equal(t, float64(10), got["pages"])

	require.NoError(t, s.Delete(ctx, "books", id))
	_, err = s.Get(ctx, "books", id)
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestMemory_UpdateMissing(t *testing.T) {
	s := docstore.NewMemory()
	err := s.Update(context.Background(), "books", "nope", docstore.Document{"title": "x"})
	assert.ErrorIs(t, err, docstore.ErrNotFound)
	assert.ErrorIs(t, s.Delete(context.Background(), "books", "nope"), docstore.ErrNotFound)
}

func TestMemory_ReturnedDocumentsAreCopies(t *testing.T) {
	ctx := context.Background()
	s := docstore.NewMemory()
	require.NoError(t, s.Set(ctx, "books", "b1", docstore.Document{"title": "A"}))

	got, err := s.Get(ctx, "books", "b1")
	require.NoError(t, err)
	got["title"] = "mutated"

	again, err := s.Get(ctx, "books", "b1")
	require.NoError(t, err)
	assert.Equal(t, "A", again["title"])
}

func TestMemory_Query(t *testing.T) {
	ctx := context.Background()
	s := docstore.NewMemory()

	for _, b := range []book{
		{Title: "A", Tags: []string{"sf"}},
		{Title: "B", Tags: []string{"horror"}},
		{Title: "A", Tags: []string{"sf", "horror"}},
	} {
		doc, err := docstore.Encode(b)
		require.NoError(t, err)
		_, err = s.Create(ctx, "books", doc)
		require.NoError(t, err)
	}

	byTitle, err := s.Query(ctx, "books", docstore.Eq("title", "A"))
	require.NoError(t, err)
	assert.Len(t, byTitle, 2)

	horror, err := s.Query(ctx, "books", docstore.Contains("tags", "horror"))
	require.NoError(t, err)
	assert.Len(t, horror, 2)

	both, err := s.Query(ctx, "books", docstore.Eq("title", "A"), docstore.Contains("tags", "horror"))
	require.NoError(t, err)
	assert.Len(t, both, 1)

	none, err := s.Query(ctx, "shelves")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMemory_Transact(t *testing.T) {
	ctx := context.Background()
	s := docstore.NewMemory()

	err := s.Transact(ctx, "books", "b1", func(current docstore.Document) (docstore.Document, error) {
		assert.Nil(t, current)
		return docstore.Document{"pages": 1}, nil
	})
	require.NoError(t, err)

	err = s.Transact(ctx, "books", "b1", func(current docstore.Document) (docstore.Document, error) {
		current["pages"] = current["pages"].(float64) + 1
		return current, nil
	})
	require.NoError(t, err)

	got, err := s.Get(ctx, "books", "b1")
	require.NoError(t, err)
	assert.Equal(t, float64(2), got["pages"])

	boom := errors.New("boom")
	err = s.Transact(ctx, "books", "b1", func(current docstore.Document) (docstore.Document, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestMemory_Increment(t *testing.T) {
	ctx := context.Background()
	s := docstore.NewMemory()
	require.NoError(t, s.Set(ctx, "books", "b1", docstore.Document{"title": "A"}))

	require.NoError(t, s.Increment(ctx, "books", "b1", "views", 1))
	require.NoError(t, s.Increment(ctx, "books", "b1", "views", 2))

	got, err := s.Get(ctx, "books", "b1")
	require.NoError(t, err)
	assert.Equal(t, float64(3), got["views"])

	assert.ErrorIs(t, s.Increment(ctx, "books", "missing", "views", 1), docstore.ErrNotFound)
	assert.Error(t, s.Increment(ctx, "books", "b1", "title", 1))
}

func TestCached_WithoutRedisPassesThrough(t *testing.T) {
	ctx := context.Background()
	s := docstore.NewCached(docstore.NewMemory(), nil, 0, nil)

	id, err := s.Create(ctx, "books", docstore.Document{"title": "A"})
	require.NoError(t, err)
	require.NoError(t, s.Update(ctx, "books", id, docstore.Document{"title": "B"}))

	got, err := s.Get(ctx, "books", id)
	require.NoError(t, err)
	assert.Equal(t, "B", got["title"])
}
