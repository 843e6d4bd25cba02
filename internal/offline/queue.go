// Package offline holds mutations that could not reach the document store
// and replays them, oldest first, once the network is back.
package offline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"

	"veiled-verse/internal/metrics"
	"veiled-verse/pkg/logger"

	"go.uber.org/zap"
)

// ErrUnknownAction is returned by a Replayer for an action type it does not
// handle. Such actions are dropped, never retried.
var ErrUnknownAction = errors.New("unknown offline action")

type Storage interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte) error
}

type Replayer interface {
	Replay(ctx context.Context, action Action) error
}

type Config struct {
	// MaxRetries moves an action to the dead-letter list once its retry
	// count reaches it. Zero disables the ceiling.
	MaxRetries int
}

func DefaultConfig() Config {
	return Config{MaxRetries: 5}
}

type DrainResult struct {
	Replayed     int
	Requeued     int
	DeadLettered int
	Dropped      int
}

type Queue struct {
	mu      sync.Mutex
	drainMu sync.Mutex

	storage Storage
	key     string
	cfg     Config
	logger  *zap.Logger

	loaded  bool
	pending []Action
	dead    []Action
}

func NewQueue(storage Storage, key string, cfg *Config, log *zap.Logger) *Queue {
	if cfg == nil {
		def := DefaultConfig()
		cfg = &def
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Queue{
		storage: storage,
		key:     key,
		cfg:     *cfg,
		logger:  log,
	}
}

func (q *Queue) deadKey() string {
	return q.key + ":dead"
}

// Load hydrates the queue from storage. Only the first call reads; later
// calls are no-ops so a session cannot re-import actions it already drained.
func (q *Queue) Load() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.loadLocked()
}

func (q *Queue) loadLocked() error {
	if q.loaded {
		return nil
	}

	pending, err := q.read(q.key)
	if err != nil {
		return err
	}
	dead, err := q.read(q.deadKey())
	if err != nil {
		return err
	}

	q.pending = pending
	q.dead = dead
	q.loaded = true

	if len(pending) > 0 || len(dead) > 0 {
		q.logger.Info("offline queue hydrated",
			zap.Int("pending", len(pending)),
			zap.Int("dead_letters", len(dead)))
	}
	return nil
}

// read decodes one persisted list, dropping malformed entries and repeated ids.
func (q *Queue) read(key string) ([]Action, error) {
	data, ok, err := q.storage.Get(key)
	if err != nil {
		return nil, fmt.Errorf("failed to read offline queue: %w", err)
	}
	if !ok || len(data) == 0 {
		return nil, nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		q.logger.Error("discarding unreadable offline queue", zap.String("key", key), zap.Error(err))
		return nil, nil
	}

	seen := make(map[string]bool, len(raw))
	actions := make([]Action, 0, len(raw))
	for _, r := range raw {
		var a Action
		if err := json.Unmarshal(r, &a); err != nil {
			q.logger.Warn("dropping malformed offline action", zap.Error(err))
			continue
		}
		if err := a.validate(); err != nil {
			q.logger.Warn("dropping malformed offline action", zap.Error(err))
			continue
		}
		if seen[a.ID] {
			continue
		}
		seen[a.ID] = true
		actions = append(actions, a)
	}
	return actions, nil
}

func (q *Queue) persistLocked() error {
	if err := q.write(q.key, q.pending); err != nil {
		return err
	}
	return q.write(q.deadKey(), q.dead)
}

func (q *Queue) write(key string, actions []Action) error {
	if actions == nil {
		actions = []Action{}
	}
	data, err := json.Marshal(actions)
	if err != nil {
		return fmt.Errorf("failed to encode offline queue: %w", err)
	}
	if err := q.storage.Set(key, data); err != nil {
		return fmt.Errorf("failed to persist offline queue: %w", err)
	}
	return nil
}

// Enqueue appends a with zero retries and persists before returning. An
// action whose id is already pending is ignored.
func (q *Queue) Enqueue(a Action) error {
	if err := a.validate(); err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.loadLocked(); err != nil {
		return err
	}
	if q.containsLocked(a.ID) {
		return nil
	}

	a.Retries = 0
	q.pending = append(q.pending, a)
	if err := q.persistLocked(); err != nil {
		q.pending = q.pending[:len(q.pending)-1]
		return err
	}

	metrics.OfflineActionsEnqueuedTotal.WithLabelValues(string(a.Type)).Inc()
	q.logger.Info("offline action queued",
		zap.String(logger.FieldActionID, a.ID),
		zap.String(logger.FieldAction, string(a.Type)),
		zap.String(logger.FieldStoryID, a.StoryID))
	return nil
}

func (q *Queue) containsLocked(id string) bool {
	return slices.ContainsFunc(q.pending, func(a Action) bool { return a.ID == id })
}

func (q *Queue) Pending() []Action {
	q.mu.Lock()
	defer q.mu.Unlock()
	return slices.Clone(q.pending)
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

func (q *Queue) DeadLetters() []Action {
	q.mu.Lock()
	defer q.mu.Unlock()
	return slices.Clone(q.dead)
}

// Discard removes a dead letter for good.
func (q *Queue) Discard(id string) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	idx := slices.IndexFunc(q.dead, func(a Action) bool { return a.ID == id })
	if idx < 0 {
		return false, nil
	}
	prev := slices.Clone(q.dead)
	q.dead = slices.Delete(q.dead, idx, idx+1)
	if err := q.persistLocked(); err != nil {
		q.dead = prev
		return false, err
	}
	return true, nil
}

// Retry moves a dead letter back to the pending list with its retry count reset.
func (q *Queue) Retry(id string) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	idx := slices.IndexFunc(q.dead, func(a Action) bool { return a.ID == id })
	if idx < 0 {
		return false, nil
	}
	prevDead := slices.Clone(q.dead)
	prevPending := slices.Clone(q.pending)

	a := q.dead[idx]
	a.Retries = 0
	q.dead = slices.Delete(q.dead, idx, idx+1)
	if !q.containsLocked(a.ID) {
		q.pending = append(q.pending, a)
	}
	if err := q.persistLocked(); err != nil {
		q.dead = prevDead
		q.pending = prevPending
		return false, err
	}
	return true, nil
}

// Drain replays every pending action in FIFO order through r.
//
// The queue is emptied, in memory and in storage, before the first replay:
// a crash mid-drain may lose an action but never applies one twice. A failed
// action goes back to the end of the queue with Retries+1 and the loop moves
// on. Only one drain runs at a time; a concurrent call returns immediately.
func (q *Queue) Drain(ctx context.Context, r Replayer) (DrainResult, error) {
	var result DrainResult

	if !q.drainMu.TryLock() {
		return result, nil
	}
	defer q.drainMu.Unlock()

	q.mu.Lock()
	if err := q.loadLocked(); err != nil {
		q.mu.Unlock()
		return result, err
	}
	batch := q.pending
	q.pending = nil
	if err := q.persistLocked(); err != nil {
		q.pending = batch
		q.mu.Unlock()
		return result, err
	}
	q.mu.Unlock()

	if len(batch) == 0 {
		return result, nil
	}
	q.logger.Info("draining offline queue", zap.Int("count", len(batch)))

	for i, a := range batch {
		if ctx.Err() != nil {
			// put the untouched rest back as they were
			q.restore(batch[i:])
			result.Requeued += len(batch) - i
			return result, ctx.Err()
		}

		fields := []zap.Field{
			zap.String(logger.FieldActionID, a.ID),
			zap.String(logger.FieldAction, string(a.Type)),
			zap.Int(logger.FieldRetries, a.Retries),
		}

		if !a.Type.Valid() {
			q.logger.Error("dropping offline action of unknown type", fields...)
			metrics.OfflineReplaysTotal.WithLabelValues(string(a.Type), "dropped").Inc()
			result.Dropped++
			continue
		}

		err := r.Replay(ctx, a)
		switch {
		case err == nil:
			metrics.OfflineReplaysTotal.WithLabelValues(string(a.Type), "ok").Inc()
			result.Replayed++

		case errors.Is(err, ErrUnknownAction):
			q.logger.Error("dropping offline action the replayer does not handle", fields...)
			metrics.OfflineReplaysTotal.WithLabelValues(string(a.Type), "dropped").Inc()
			result.Dropped++

		default:
			a.Retries++
			metrics.OfflineReplaysTotal.WithLabelValues(string(a.Type), "failed").Inc()
			if q.cfg.MaxRetries > 0 && a.Retries >= q.cfg.MaxRetries {
				q.logger.Error("offline action exhausted its retries", append(fields, zap.Error(err))...)
				q.deadLetter(a)
				result.DeadLettered++
				continue
			}
			q.logger.Warn("failed to replay offline action, requeued", append(fields, zap.Error(err))...)
			q.requeue(a)
			result.Requeued++
		}
	}

	return result, nil
}

func (q *Queue) requeue(a Action) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.containsLocked(a.ID) {
		return
	}
	q.pending = append(q.pending, a)
	if err := q.persistLocked(); err != nil {
		q.logger.Error("failed to persist requeued offline action",
			zap.String(logger.FieldActionID, a.ID), zap.Error(err))
	}
}

func (q *Queue) restore(actions []Action) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, a := range actions {
		if !q.containsLocked(a.ID) {
			q.pending = append(q.pending, a)
		}
	}
	if err := q.persistLocked(); err != nil {
		q.logger.Error("failed to persist restored offline actions", zap.Error(err))
	}
}

func (q *Queue) deadLetter(a Action) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.dead = append(q.dead, a)
	metrics.OfflineDeadLettersTotal.Inc()
	if err := q.persistLocked(); err != nil {
		q.logger.Error("failed to persist dead-lettered offline action",
			zap.String(logger.FieldActionID, a.ID), zap.Error(err))
	}
}
