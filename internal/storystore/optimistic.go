package storystore

import (
	"context"
	"errors"

	"veiled-verse/internal/apperr"
	"veiled-verse/internal/docstore"
	"veiled-verse/internal/metrics"
	"veiled-verse/internal/notify"
	"veiled-verse/internal/offline"
	"veiled-verse/pkg/logger"

	"go.uber.org/zap"
)

// mutation describes one optimistic change. apply runs before commit and
// rollback undoes it when commit fails. A mutation with an action is
// queueable: while offline, or when commit reports the store unavailable,
// the optimistic state stays and the action is queued instead.
type mutation struct {
	op      string
	storyID string

	apply    func()
	commit   func(ctx context.Context) error
	rollback func()

	action *offline.Action
	// defer forces the queued path, e.g. for stories that exist only locally.
	deferCommit bool

	success string
	failure string
	// quiet mutations report failures to the log only
	quiet bool
}

func (s *Store) applyOptimistic(ctx context.Context, m mutation) error {
	m.apply()

	if m.action != nil && (m.deferCommit || !s.isOnline()) {
		return s.enqueue(m, nil)
	}

	err := m.commit(ctx)
	if err == nil {
		if m.success != "" {
			s.notify(notify.Success(m.success))
		}
		return nil
	}

	if m.action != nil && errors.Is(err, docstore.ErrUnavailable) {
		return s.enqueue(m, err)
	}

	if m.rollback != nil {
		m.rollback()
	}
	metrics.OptimisticRollbacksTotal.WithLabelValues(m.op).Inc()

	s.logger.Error("failed to "+m.op+" story",
		zap.String(logger.FieldStoryID, m.storyID),
		zap.Error(err))
	if !m.quiet {
		s.notify(notify.Error(m.failure))
	}
	return toAppError(err)
}

func (s *Store) enqueue(m mutation, cause error) error {
	if s.queue == nil {
		if m.rollback != nil {
			m.rollback()
		}
		s.notify(notify.Error(m.failure))
		return apperr.Unavailable("you are offline, try again later")
	}

	if err := s.queue.Enqueue(*m.action); err != nil {
		if m.rollback != nil {
			m.rollback()
		}
		metrics.OptimisticRollbacksTotal.WithLabelValues(m.op).Inc()
		s.logger.Error("failed to queue offline action",
			zap.String(logger.FieldStoryID, m.storyID),
			zap.String(logger.FieldAction, string(m.action.Type)),
			zap.Error(err))
		s.notify(notify.Error(m.failure))
		return apperr.Internal(err)
	}

	fields := []zap.Field{
		zap.String(logger.FieldStoryID, m.storyID),
		zap.String(logger.FieldActionID, m.action.ID),
	}
	if cause != nil {
		fields = append(fields, zap.Error(cause))
	}
	s.logger.Info("saved "+m.op+" for later sync", fields...)
	s.notify(notify.Info("You're offline. Your change was saved and will sync when you reconnect."))
	return nil
}

// deny reports a rejected precondition and returns it as an AppError.
func (s *Store) deny(err error) error {
	ae := apperr.As(toAppError(err))
	s.notify(notify.Error(ae.Message))
	return ae
}

func (s *Store) notify(n notify.Notification) {
	s.notifier.Notify(s.userID(), n)
}

func toAppError(err error) error {
	if ae := apperr.As(err); ae != nil {
		return ae
	}
	switch {
	case errors.Is(err, docstore.ErrNotFound):
		return apperr.NotFound("story")
	case errors.Is(err, docstore.ErrUnavailable):
		return apperr.Unavailable("the story service is unreachable, try again later")
	}
	return apperr.Internal(err)
}
