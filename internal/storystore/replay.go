package storystore

import (
	"context"
	"fmt"
	"time"

	"veiled-verse/internal/models"
	"veiled-verse/internal/notify"
	"veiled-verse/internal/offline"
	"veiled-verse/pkg/logger"

	"go.uber.org/zap"
)

// Drain replays the offline queue if the network is up.
func (s *Store) Drain(ctx context.Context) (offline.DrainResult, error) {
	if s.queue == nil || !s.isOnline() {
		return offline.DrainResult{}, nil
	}

	result, err := s.queue.Drain(ctx, s)
	if err != nil {
		s.logger.Error("failed to drain offline queue", zap.Error(err))
		return result, err
	}
	if result.Replayed > 0 {
		s.notify(notify.QueueDrained(result.Replayed))
	}
	if result.DeadLettered > 0 {
		s.notify(notify.Error(fmt.Sprintf("%d offline change(s) could not be synced", result.DeadLettered)))
	}
	return result, nil
}

// RetryDeadLetter puts a dead-lettered action back in the queue and drains.
func (s *Store) RetryDeadLetter(ctx context.Context, actionID string) (bool, error) {
	if s.queue == nil {
		return false, nil
	}
	ok, err := s.queue.Retry(actionID)
	if err != nil || !ok {
		return ok, err
	}
	_, err = s.Drain(ctx)
	return true, err
}

func (s *Store) DiscardDeadLetter(actionID string) (bool, error) {
	if s.queue == nil {
		return false, nil
	}
	return s.queue.Discard(actionID)
}

// Replay commits one queued action. It never queues again and reports
// nothing to the user; the queue handles failures.
func (s *Store) Replay(ctx context.Context, a offline.Action) error {
	s.logger.Debug("replaying offline action",
		zap.String(logger.FieldActionID, a.ID),
		zap.String(logger.FieldAction, string(a.Type)))

	switch a.Type {
	case offline.TypeCreateStory:
		return s.replayCreate(ctx, a)

	case offline.TypeUpdateStory:
		id, err := s.replayTarget(a)
		if err != nil {
			return err
		}
		if err := s.commitUpdate(ctx, id, *a.Updates); err != nil {
			return err
		}
		s.mutateStory(id, func(st *models.Story) { a.Updates.Apply(st) })
		return nil

	case offline.TypeLikeStory:
		id, err := s.replayTarget(a)
		if err != nil {
			return err
		}
		liked := true
		if a.Liked != nil {
			liked = *a.Liked
		}
		return s.commitLike(ctx, id, s.userID(), liked)

	case offline.TypeRateStory:
		id, err := s.replayTarget(a)
		if err != nil {
			return err
		}
		if a.Rating < 1 || a.Rating > 5 {
			return fmt.Errorf("%w: rating %d out of range", offline.ErrUnknownAction, a.Rating)
		}
		return s.commitRating(ctx, id, s.userID(), a.Rating)
	}

	return offline.ErrUnknownAction
}

func (s *Store) replayCreate(ctx context.Context, a offline.Action) error {
	localID := localPrefix + a.ID
	if id := s.resolve(localID); id != localID {
		// already created by an earlier attempt
		return nil
	}

	story := s.newStory(*a.Data, a.Timestamp)
	if existing, ok := s.Story(localID); ok {
		story.CreatedAt = existing.CreatedAt
	}
	story.UpdatedAt = time.Now().UTC()

	id, err := s.insertStory(ctx, story)
	if err != nil {
		return err
	}

	if _, ok := s.Story(localID); ok {
		s.renameStory(localID, id)
	} else {
		s.mu.Lock()
		s.aliases[localID] = id
		s.mu.Unlock()
		story.ID = id
		s.prependStory(story)
	}

	s.logger.Info("offline story created",
		zap.String(logger.FieldActionID, a.ID),
		zap.String(logger.FieldStoryID, id))
	return nil
}

// replayTarget resolves the story id of a queued action. An id still local
// means its create has not been replayed yet.
func (s *Store) replayTarget(a offline.Action) (string, error) {
	id := s.resolve(a.StoryID)
	if IsLocalID(id) {
		return "", fmt.Errorf("story %s has not been created yet", a.StoryID)
	}
	return id, nil
}
