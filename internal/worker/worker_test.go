package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"veiled-verse/internal/docstore"
	"veiled-verse/internal/models"
)

func TestRepair(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	st := models.Story{
		Likes:   7,
		LikedBy: []string{"a", "b", "a", ""},
		Ratings: []models.Rating{
			{UserID: "a", Rating: 2, Date: t0},
			{UserID: "b", Rating: 9, Date: t0},
			{UserID: "a", Rating: 5, Date: t0.Add(time.Hour)},
		},
		AverageRating: 1,
		Price:         30,
	}

	assert.True(t, Repair(&st))
	assert.Equal(t, []string{"a", "b"}, st.LikedBy)
	assert.Equal(t, int64(2), st.Likes)
	require.Len(t, st.Ratings, 1)
	assert.Equal(t, 5, st.Ratings[0].Rating)
	assert.Equal(t, 5.0, st.AverageRating)
	assert.Zero(t, st.Price)

	assert.False(t, Repair(&st), "a repaired story is stable")
}

func TestReconcile(t *testing.T) {
	ctx := context.Background()
	docs := docstore.NewMemory()

	require.NoError(t, docs.Set(ctx, docstore.CollectionStories, "broken", docstore.Document{
		"title":    "Broken",
		"likes":    3,
		"liked_by": []string{"u1", "u1"},
	}))
	require.NoError(t, docs.Set(ctx, docstore.CollectionStories, "fine", docstore.Document{
		"title":    "Fine",
		"likes":    1,
		"liked_by": []string{"u1"},
	}))

	w := NewWorker(docs, "", zap.NewNop())

	n, err := w.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	doc, err := docs.Get(ctx, docstore.CollectionStories, "broken")
	require.NoError(t, err)
	var st models.Story
	require.NoError(t, docstore.Decode(doc, &st))
	assert.Equal(t, int64(1), st.Likes)
	assert.Equal(t, []string{"u1"}, st.LikedBy)
	assert.Equal(t, "Broken", st.Title)

	n, err = w.Reconcile(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRun_InvalidSchedule(t *testing.T) {
	w := NewWorker(docstore.NewMemory(), "not a schedule", zap.NewNop())
	assert.Error(t, w.Run(context.Background()))
}

func TestRun_StopsWithContext(t *testing.T) {
	w := NewWorker(docstore.NewMemory(), "@every 1h", zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}
