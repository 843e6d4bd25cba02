package worker

import (
	"context"
	"fmt"
	"slices"
	"time"

	"veiled-verse/internal/docstore"
	"veiled-verse/internal/metrics"
	"veiled-verse/internal/models"
	"veiled-verse/pkg/logger"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Worker periodically repairs story documents left inconsistent by clients
// that wrote the counters directly: duplicate likers, a likes count that
// disagrees with liked_by, repeated or out-of-range ratings and a stale
// average.
type Worker struct {
	docs     docstore.Store
	schedule string
	logger   *zap.Logger
}

func NewWorker(docs docstore.Store, schedule string, logger *zap.Logger) *Worker {
	if schedule == "" {
		schedule = "@every 1m"
	}
	return &Worker{
		docs:     docs,
		schedule: schedule,
		logger:   logger,
	}
}

// Run schedules reconciliation and blocks until ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	c := cron.New()
	_, err := c.AddFunc(w.schedule, func() {
		if _, err := w.Reconcile(ctx); err != nil {
			w.logger.Error("failed to reconcile stories", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", w.schedule, err)
	}

	c.Start()
	w.logger.Info("worker started", zap.String("schedule", w.schedule))

	<-ctx.Done()
	<-c.Stop().Done()
	w.logger.Info("worker stopped")
	return nil
}

// Reconcile makes one pass over every story and returns how many it repaired.
func (w *Worker) Reconcile(ctx context.Context) (int, error) {
	start := time.Now()
	defer func() {
		metrics.WorkerLatencySeconds.Observe(time.Since(start).Seconds())
	}()

	docs, err := w.docs.Query(ctx, docstore.CollectionStories)
	if err != nil {
		return 0, fmt.Errorf("failed to list stories: %w", err)
	}

	repaired := 0
	for _, doc := range docs {
		id, _ := doc["id"].(string)
		if id == "" {
			continue
		}

		fixed, err := w.reconcileStory(ctx, id)
		if err != nil {
			w.logger.Warn("failed to reconcile story", zap.String(logger.FieldStoryID, id), zap.Error(err))
			continue
		}
		if fixed {
			repaired++
		}
	}

	if repaired > 0 {
		metrics.StoriesReconciledTotal.Add(float64(repaired))
		w.logger.Info("stories reconciled",
			zap.Int("count", repaired),
			zap.Duration(logger.FieldDuration, time.Since(start)))
	}
	return repaired, nil
}

func (w *Worker) reconcileStory(ctx context.Context, id string) (bool, error) {
	fixed := false
	err := w.docs.Transact(ctx, docstore.CollectionStories, id, func(current docstore.Document) (docstore.Document, error) {
		if current == nil {
			return nil, nil
		}
		var st models.Story
		if err := docstore.Decode(current, &st); err != nil {
			return nil, err
		}
		if !Repair(&st) {
			return nil, nil
		}
		fixed = true

		current["likes"] = st.Likes
		current["liked_by"] = st.LikedBy
		current["ratings"] = st.Ratings
		current["average_rating"] = st.AverageRating
		current["price"] = st.Price
		return current, nil
	})
	return fixed, err
}

// Repair restores the story's derived fields and reports whether anything
// changed. For a user with several ratings the most recent one wins.
func Repair(st *models.Story) bool {
	before := st.Clone()

	seen := make(map[string]bool, len(st.LikedBy))
	likers := make([]string, 0, len(st.LikedBy))
	for _, id := range st.LikedBy {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		likers = append(likers, id)
	}
	st.LikedBy = likers
	st.Likes = int64(len(likers))

	latest := make(map[string]int)
	ratings := make([]models.Rating, 0, len(st.Ratings))
	for _, r := range st.Ratings {
		if r.UserID == "" || r.Rating < 1 || r.Rating > 5 {
			continue
		}
		if i, ok := latest[r.UserID]; ok {
			if r.Date.After(ratings[i].Date) {
				ratings[i] = r
			}
			continue
		}
		latest[r.UserID] = len(ratings)
		ratings = append(ratings, r)
	}
	st.Ratings = ratings
	st.RecomputeAverage()
	st.Normalize()

	return st.Likes != before.Likes ||
		!slices.Equal(st.LikedBy, before.LikedBy) ||
		!slices.Equal(st.Ratings, before.Ratings) ||
		st.AverageRating != before.AverageRating ||
		st.Price != before.Price
}
