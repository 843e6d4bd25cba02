package storystore

import (
	"context"
	"math"
	"slices"
	"time"

	"veiled-verse/internal/apperr"
	"veiled-verse/internal/docstore"
	"veiled-verse/internal/metrics"
	"veiled-verse/internal/models"
	"veiled-verse/internal/notify"
	"veiled-verse/internal/offline"
	"veiled-verse/pkg/logger"

	"go.uber.org/zap"
)

// LikeStory toggles the current user's like, starting from the in-memory copy.
func (s *Store) LikeStory(ctx context.Context, id string) error {
	uid := s.userID()
	if uid == "" {
		return s.deny(apperr.AuthRequired())
	}

	prev, ok := s.Story(id)
	if !ok {
		return s.deny(apperr.NotFound("story"))
	}
	id = prev.ID
	liked := !prev.HasLiked(uid)

	action := offline.NewLikeStory(id, liked)
	success := "Story liked"
	if !liked {
		success = "Like removed"
	}

	err := s.applyOptimistic(ctx, mutation{
		op:      "like",
		storyID: id,
		apply: func() {
			s.mutateStory(id, func(st *models.Story) { st.SetLike(uid, liked) })
		},
		commit: func(ctx context.Context) error {
			return s.commitLike(ctx, id, uid, liked)
		},
		rollback:    func() { s.putStory(prev) },
		action:      &action,
		deferCommit: IsLocalID(id),
		success:     success,
		failure:     "Failed to update like",
	})
	if err == nil {
		metrics.StoryLikesTotal.WithLabelValues(likeState(liked)).Inc()
	}
	return err
}

// commitLike sets the user's membership on the stored story. Setting rather
// than toggling makes a replayed like land once.
func (s *Store) commitLike(ctx context.Context, id, uid string, liked bool) error {
	committed, err := s.transactStory(ctx, id, func(st *models.Story) {
		st.SetLike(uid, liked)
	})
	if err != nil {
		return err
	}
	s.reconcile(committed)
	return nil
}

// RateStory sets the current user's rating and recomputes the average.
func (s *Store) RateStory(ctx context.Context, id string, rating int) error {
	if rating < 1 || rating > 5 {
		return s.deny(apperr.Validation("rating must be between 1 and 5"))
	}
	uid := s.userID()
	if uid == "" {
		return s.deny(apperr.AuthRequired())
	}

	prev, ok := s.Story(id)
	if !ok {
		return s.deny(apperr.NotFound("story"))
	}
	id = prev.ID

	action := offline.NewRateStory(id, rating)
	err := s.applyOptimistic(ctx, mutation{
		op:      "rate",
		storyID: id,
		apply: func() {
			s.mutateStory(id, func(st *models.Story) { st.UpsertRating(uid, rating, time.Now().UTC()) })
		},
		commit: func(ctx context.Context) error {
			return s.commitRating(ctx, id, uid, rating)
		},
		rollback:    func() { s.putStory(prev) },
		action:      &action,
		deferCommit: IsLocalID(id),
		success:     "Rating saved",
		failure:     "Failed to save rating",
	})
	if err == nil {
		metrics.StoryRatingsTotal.Inc()
	}
	return err
}

func (s *Store) commitRating(ctx context.Context, id, uid string, rating int) error {
	committed, err := s.transactStory(ctx, id, func(st *models.Story) {
		st.UpsertRating(uid, rating, time.Now().UTC())
	})
	if err != nil {
		return err
	}
	s.reconcile(committed)
	return nil
}

// ViewStory counts a view. Views are not queued: while offline the call is
// a no-op.
func (s *Store) ViewStory(ctx context.Context, id string) error {
	id = s.resolve(id)
	if !s.isOnline() || IsLocalID(id) {
		return nil
	}
	prev, ok := s.Story(id)
	if !ok {
		return nil
	}
	id = prev.ID

	err := s.applyOptimistic(ctx, mutation{
		op:      "view",
		storyID: id,
		apply: func() {
			s.mutateStory(id, func(st *models.Story) { st.Views++ })
		},
		commit: func(ctx context.Context) error {
			return s.docs.Increment(ctx, docstore.CollectionStories, id, "views", 1)
		},
		rollback: func() {
			s.mutateStory(id, func(st *models.Story) { st.Views-- })
		},
		quiet: true,
	})
	if err == nil {
		metrics.StoryViewsTotal.Inc()
	}
	return err
}

// BuyStory records a purchase and credits the author's share of price.
// Buying an owned story succeeds without writing to the document store. The
// steps are not undone when a later one fails.
func (s *Store) BuyStory(ctx context.Context, id string, price float64) error {
	if s.HasPurchased(id) {
		s.notify(notify.Info("You already own this story"))
		return nil
	}
	uid := s.userID()
	if uid == "" {
		return s.deny(apperr.AuthRequired())
	}
	if price < 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return s.deny(apperr.Validation("price must be a non-negative number"))
	}
	if !s.isOnline() {
		return s.deny(apperr.Unavailable("purchases need a connection, try again when you're back online"))
	}

	story, err := s.GetStory(ctx, id)
	if err != nil {
		s.notify(notify.Error("Failed to purchase story"))
		return err
	}
	id = story.ID
	if IsLocalID(id) {
		return s.deny(apperr.Conflict("this story has not been published yet"))
	}

	// the in-memory set can be stale: a failed load, or a purchase made
	// through another session
	user, err := s.loadUser(ctx, uid)
	if err != nil {
		s.logger.Error("failed to load purchases", zap.String(logger.FieldStoryID, id), zap.Error(err))
		s.notify(notify.Error("Failed to purchase story"))
		return toAppError(err)
	}
	if slices.Contains(user.PurchasedStories, id) {
		s.markPurchased(id)
		s.notify(notify.Info("You already own this story"))
		return nil
	}

	earning := int64(math.Round(price * s.cfg.AuthorShare))
	if story.AuthorID == "" {
		earning = 0
	}

	recorded, owned := false, false
	err = s.applyOptimistic(ctx, mutation{
		op:      "buy",
		storyID: id,
		apply: func() {
			s.markPurchased(id)
			s.mutateStory(id, func(st *models.Story) {
				st.Purchases++
				st.Earnings += earning
			})
		},
		commit: func(ctx context.Context) error {
			var err error
			owned, err = s.recordPurchase(ctx, uid, id)
			if err != nil {
				return err
			}
			recorded = true
			if owned {
				return nil
			}

			if earning > 0 && s.wallets != nil {
				if err := s.wallets.Credit(ctx, story.AuthorID, earning, models.SourceStoryPurchase, id); err != nil {
					return err
				}
			}

			committed, err := s.transactStory(ctx, id, func(st *models.Story) {
				st.Purchases++
				st.Earnings += earning
			})
			if err != nil {
				return err
			}
			s.reconcile(committed)
			return nil
		},
		rollback: func() {
			if !recorded {
				s.mu.Lock()
				s.purchases = slices.DeleteFunc(s.purchases, func(p string) bool { return p == id })
				s.mu.Unlock()
			}
			s.mutateStory(id, func(st *models.Story) {
				st.Purchases--
				st.Earnings -= earning
			})
		},
		success: "Story purchased",
		failure: "Failed to purchase story",
	})
	if err != nil {
		return err
	}
	if owned {
		// bought concurrently elsewhere, nothing was credited
		s.mutateStory(id, func(st *models.Story) {
			st.Purchases--
			st.Earnings -= earning
		})
		return nil
	}

	metrics.StoryPurchasesTotal.Inc()
	s.logger.Info("story purchased",
		zap.String(logger.FieldStoryID, id),
		zap.String("author_id", story.AuthorID),
		zap.Int64("author_earning", earning))
	return nil
}

func (s *Store) markPurchased(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !slices.Contains(s.purchases, id) {
		s.purchases = append(s.purchases, id)
	}
}

// recordPurchase adds storyID to the user's profile and reports whether it
// was already there.
func (s *Store) recordPurchase(ctx context.Context, uid, storyID string) (bool, error) {
	owned := false
	err := s.docs.Transact(ctx, docstore.CollectionUsers, uid, func(current docstore.Document) (docstore.Document, error) {
		if current == nil {
			current = docstore.Document{}
		}
		var user models.User
		if err := docstore.Decode(current, &user); err != nil {
			return nil, err
		}
		if slices.Contains(user.PurchasedStories, storyID) {
			owned = true
			return nil, nil
		}
		current["purchased_stories"] = append(user.PurchasedStories, storyID)
		return current, nil
	})
	return owned, err
}

// transactStory applies fn to the stored story under the store's
// read-modify-write guarantee and returns the committed copy.
func (s *Store) transactStory(ctx context.Context, id string, fn func(st *models.Story)) (models.Story, error) {
	var committed models.Story
	err := s.docs.Transact(ctx, docstore.CollectionStories, id, func(current docstore.Document) (docstore.Document, error) {
		if current == nil {
			return nil, apperr.NotFound("story")
		}
		st, err := decodeStory(current)
		if err != nil {
			return nil, err
		}
		fn(&st)
		st.ID = id
		committed = st

		current["likes"] = st.Likes
		current["liked_by"] = st.LikedBy
		current["ratings"] = st.Ratings
		current["average_rating"] = st.AverageRating
		current["views"] = st.Views
		current["purchases"] = st.Purchases
		current["earnings"] = st.Earnings
		return current, nil
	})
	return committed, err
}

func likeState(liked bool) string {
	if liked {
		return "liked"
	}
	return "unliked"
}
