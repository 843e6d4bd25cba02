// Package storystore mirrors story records for one signed-in user and applies
// their mutations optimistically. Mutations that cannot reach the document
// store are kept locally and queued for replay once the network is back.
package storystore

import (
	"context"
	"slices"
	"strings"
	"sync"

	"veiled-verse/internal/auth"
	"veiled-verse/internal/docstore"
	"veiled-verse/internal/models"
	"veiled-verse/internal/notify"
	"veiled-verse/internal/offline"
	"veiled-verse/pkg/logger"

	"go.uber.org/zap"
)

// localPrefix marks ids of stories created while offline. They are replaced
// by the document store id once the create is replayed.
const localPrefix = "local-"

type Identity interface {
	UserID() string
	DisplayName() string
	HasPermission(c auth.Capability) bool
}

type Wallets interface {
	Credit(ctx context.Context, userID string, amount int64, source models.EarningSource, storyID string) error
}

type Network interface {
	IsOnline() bool
	Subscribe(fn func(online bool)) func()
}

type Deps struct {
	Identity Identity
	Docs     docstore.Store
	Wallets  Wallets
	Queue    *offline.Queue
	Network  Network
	Notifier notify.Notifier
	Logger   *zap.Logger
}

type Config struct {
	// AuthorShare is the fraction of a purchase price credited to the author.
	AuthorShare float64
}

func DefaultConfig() Config {
	return Config{AuthorShare: 0.7}
}

// Scope narrows LoadAll to one author's stories, all statuses included.
type Scope struct {
	AuthorID string
}

type Store struct {
	identity Identity
	docs     docstore.Store
	wallets  Wallets
	queue    *offline.Queue
	network  Network
	notifier notify.Notifier
	logger   *zap.Logger
	cfg      Config

	mu        sync.RWMutex
	stories   []models.Story
	mine      []models.Story
	purchases []string
	aliases   map[string]string

	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	unsubscribe func()

	// closeMu orders drain starts against Close.
	closeMu sync.Mutex
	closed  bool
}

func New(deps Deps, cfg Config) *Store {
	if cfg.AuthorShare <= 0 || cfg.AuthorShare > 1 {
		cfg.AuthorShare = DefaultConfig().AuthorShare
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.NewLog(deps.Logger)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Store{
		identity: deps.Identity,
		docs:     deps.Docs,
		wallets:  deps.Wallets,
		queue:    deps.Queue,
		network:  deps.Network,
		notifier: deps.Notifier,
		logger:   deps.Logger.With(zap.String(logger.FieldUserID, userIDOf(deps.Identity))),
		cfg:      cfg,
		aliases:  make(map[string]string),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start hydrates the offline queue, loads stories and purchases, and drains
// the queue whenever the network comes back. Load failures are reported
// through the notifier and do not stop the store.
func (s *Store) Start(ctx context.Context) error {
	if s.queue != nil {
		if err := s.queue.Load(); err != nil {
			return err
		}
	}

	s.LoadAll(ctx, Scope{})
	if s.can(auth.CapWrite) {
		s.LoadMyStories(ctx)
	}
	if s.userID() != "" {
		s.LoadPurchases(ctx)
	}

	if s.network != nil {
		s.unsubscribe = s.network.Subscribe(func(online bool) {
			if online {
				s.drainAsync()
			}
		})
	}
	if s.isOnline() && s.queue != nil && s.queue.Len() > 0 {
		s.drainAsync()
	}
	return nil
}

// Close stops reacting to network changes and waits for a running drain.
func (s *Store) Close() {
	s.closeMu.Lock()
	if s.closed {
		s.closeMu.Unlock()
		return
	}
	s.closed = true
	s.closeMu.Unlock()

	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	s.cancel()
	s.wg.Wait()
}

func (s *Store) drainAsync() {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	if s.closed {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.Drain(s.ctx)
	}()
}

func (s *Store) Stories() []models.Story {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneStories(s.stories)
}

func (s *Store) MyStories() []models.Story {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneStories(s.mine)
}

func (s *Store) Purchases() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.purchases)
}

func (s *Store) HasPurchased(storyID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Contains(s.purchases, s.resolveLocked(storyID))
}

func (s *Store) PendingActions() []offline.Action {
	if s.queue == nil {
		return nil
	}
	return s.queue.Pending()
}

func (s *Store) DeadLetters() []offline.Action {
	if s.queue == nil {
		return nil
	}
	return s.queue.DeadLetters()
}

// Story returns the in-memory copy of a story, looking in both lists.
func (s *Store) Story(id string) (models.Story, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.findLocked(s.resolveLocked(id))
	if !ok {
		return models.Story{}, false
	}
	return st.Clone(), true
}

func (s *Store) userID() string {
	return userIDOf(s.identity)
}

func (s *Store) can(c auth.Capability) bool {
	return s.identity != nil && s.identity.HasPermission(c)
}

func (s *Store) isOnline() bool {
	return s.network == nil || s.network.IsOnline()
}

func userIDOf(id Identity) string {
	if id == nil {
		return ""
	}
	return id.UserID()
}

// resolve maps a synced local id to its document store id.
func (s *Store) resolve(id string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resolveLocked(id)
}

func (s *Store) resolveLocked(id string) string {
	if real, ok := s.aliases[id]; ok {
		return real
	}
	return id
}

func (s *Store) findLocked(id string) (*models.Story, bool) {
	if i := indexOf(s.stories, id); i >= 0 {
		return &s.stories[i], true
	}
	if i := indexOf(s.mine, id); i >= 0 {
		return &s.mine[i], true
	}
	return nil, false
}

// mutateStory runs fn on every in-memory copy of the story.
func (s *Store) mutateStory(id string, fn func(st *models.Story)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	found := false
	for _, list := range [][]models.Story{s.stories, s.mine} {
		if i := indexOf(list, id); i >= 0 {
			fn(&list[i])
			found = true
		}
	}
	return found
}

// putStory replaces every in-memory copy of st.
func (s *Store) putStory(st models.Story) {
	s.mutateStory(st.ID, func(cur *models.Story) { *cur = st.Clone() })
}

// reconcile takes the counters of a committed story over the optimistic ones.
func (s *Store) reconcile(st models.Story) {
	s.mutateStory(st.ID, func(cur *models.Story) {
		cur.Likes = st.Likes
		cur.LikedBy = slices.Clone(st.LikedBy)
		cur.Ratings = slices.Clone(st.Ratings)
		cur.AverageRating = st.AverageRating
		cur.Views = st.Views
		cur.Purchases = st.Purchases
		cur.Earnings = st.Earnings
	})
}

// renameStory swaps a local id for the document store id.
func (s *Store) renameStory(localID, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.aliases[localID] = id
	for _, list := range [][]models.Story{s.stories, s.mine} {
		if i := indexOf(list, localID); i >= 0 {
			list[i].ID = id
		}
	}
}

type position struct {
	story   models.Story
	inAll   int
	inMine  int
	present bool
}

// removeStory drops the story from both lists and remembers where it was.
func (s *Store) removeStory(id string) position {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos := position{inAll: indexOf(s.stories, id), inMine: indexOf(s.mine, id)}
	if pos.inAll >= 0 {
		pos.story = s.stories[pos.inAll].Clone()
		pos.present = true
		s.stories = slices.Delete(s.stories, pos.inAll, pos.inAll+1)
	}
	if pos.inMine >= 0 {
		pos.story = s.mine[pos.inMine].Clone()
		pos.present = true
		s.mine = slices.Delete(s.mine, pos.inMine, pos.inMine+1)
	}
	return pos
}

func (s *Store) restoreStory(pos position) {
	if !pos.present {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if pos.inAll >= 0 && indexOf(s.stories, pos.story.ID) < 0 {
		s.stories = slices.Insert(s.stories, min(pos.inAll, len(s.stories)), pos.story.Clone())
	}
	if pos.inMine >= 0 && indexOf(s.mine, pos.story.ID) < 0 {
		s.mine = slices.Insert(s.mine, min(pos.inMine, len(s.mine)), pos.story.Clone())
	}
}

func (s *Store) prependStory(st models.Story) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if indexOf(s.stories, st.ID) < 0 {
		s.stories = slices.Insert(s.stories, 0, st.Clone())
	}
	if indexOf(s.mine, st.ID) < 0 {
		s.mine = slices.Insert(s.mine, 0, st.Clone())
	}
}

func indexOf(list []models.Story, id string) int {
	return slices.IndexFunc(list, func(st models.Story) bool { return st.ID == id })
}

func cloneStories(list []models.Story) []models.Story {
	out := make([]models.Story, len(list))
	for i, st := range list {
		out[i] = st.Clone()
	}
	return out
}

// IsLocalID reports whether id was assigned offline and is not synced yet.
func IsLocalID(id string) bool {
	return strings.HasPrefix(id, localPrefix)
}
