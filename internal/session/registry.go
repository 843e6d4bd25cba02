// Package session keeps one story store per signed-in user.
package session

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"veiled-verse/internal/auth"
	"veiled-verse/internal/docstore"
	"veiled-verse/internal/localstore"
	"veiled-verse/internal/metrics"
	"veiled-verse/internal/notify"
	"veiled-verse/internal/offline"
	"veiled-verse/internal/storystore"
	"veiled-verse/pkg/logger"

	"go.uber.org/zap"
)

const recentNotifications = 50

var ErrClosed = errors.New("session registry closed")

type Config struct {
	// QueueDir holds one offline queue file per user. Empty keeps queues in
	// memory only.
	QueueDir   string
	Queue      offline.Config
	StoryStore storystore.Config
}

type Session struct {
	Principal     *auth.Principal
	Store         *storystore.Store
	Notifications *notify.Recorder
}

type Registry struct {
	cfg      Config
	docs     docstore.Store
	wallets  storystore.Wallets
	network  storystore.Network
	notifier notify.Notifier
	logger   *zap.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	starting map[string]*pendingStart
	closed   bool
}

// pendingStart is a session being started; waiters block on done.
type pendingStart struct {
	done    chan struct{}
	session *Session
	err     error
}

func NewRegistry(cfg Config, docs docstore.Store, wallets storystore.Wallets, network storystore.Network, notifier notify.Notifier, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		cfg:      cfg,
		docs:     docs,
		wallets:  wallets,
		network:  network,
		notifier: notifier,
		logger:   log,
		sessions: make(map[string]*Session),
		starting: make(map[string]*pendingStart),
	}
}

// Get returns the user's session, starting one on first use. Starting loads
// stories over the network, so it runs outside the registry lock; concurrent
// callers for the same user share one start.
func (r *Registry) Get(ctx context.Context, p *auth.Principal) (*Session, error) {
	uid := p.UserID()
	if uid == "" {
		return nil, fmt.Errorf("session without user id")
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrClosed
	}
	if s, ok := r.sessions[uid]; ok {
		r.mu.Unlock()
		return s, nil
	}
	if st, ok := r.starting[uid]; ok {
		r.mu.Unlock()
		select {
		case <-st.done:
			return st.session, st.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	st := &pendingStart{done: make(chan struct{})}
	r.starting[uid] = st
	r.mu.Unlock()

	s, err := r.start(ctx, p)

	r.mu.Lock()
	delete(r.starting, uid)
	if err == nil && r.closed {
		err = ErrClosed
	}
	if err == nil {
		r.sessions[uid] = s
		metrics.ActiveSessions.Set(float64(len(r.sessions)))
	}
	r.mu.Unlock()

	if err != nil && s != nil {
		s.Store.Close()
		s = nil
	}
	st.session, st.err = s, err
	close(st.done)
	return s, err
}

func (r *Registry) start(ctx context.Context, p *auth.Principal) (*Session, error) {
	uid := p.UserID()
	kv, err := r.openQueueStorage(uid)
	if err != nil {
		return nil, err
	}

	log := r.logger.With(zap.String(logger.FieldUserID, uid))
	queue := offline.NewQueue(kv, "offline_actions:"+uid, &r.cfg.Queue, log)
	recorder := notify.NewRecorder(recentNotifications)

	store := storystore.New(storystore.Deps{
		Identity: p,
		Docs:     r.docs,
		Wallets:  r.wallets,
		Queue:    queue,
		Network:  r.network,
		Notifier: notify.Multi{r.notifier, recorder},
		Logger:   r.logger,
	}, r.cfg.StoryStore)

	if err := store.Start(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to start session: %w", err)
	}

	log.Info("session started", zap.Int("pending_actions", queue.Len()))
	return &Session{Principal: p, Store: store, Notifications: recorder}, nil
}

func (r *Registry) openQueueStorage(uid string) (offline.Storage, error) {
	if r.cfg.QueueDir == "" {
		return localstore.NewMemory(), nil
	}
	path := filepath.Join(r.cfg.QueueDir, filepath.Base(uid)+".json")
	kv, err := localstore.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open offline queue: %w", err)
	}
	return kv, nil
}

// Remove closes the user's session. Its offline queue stays on disk and is
// picked up by the next session.
func (r *Registry) Remove(uid string) {
	r.mu.Lock()
	s, ok := r.sessions[uid]
	delete(r.sessions, uid)
	metrics.ActiveSessions.Set(float64(len(r.sessions)))
	r.mu.Unlock()

	if ok {
		s.Store.Close()
		r.logger.Info("session closed", zap.String(logger.FieldUserID, uid))
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	metrics.ActiveSessions.Set(0)
	r.mu.Unlock()

	for _, s := range sessions {
		s.Store.Close()
	}
}
