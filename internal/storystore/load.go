package storystore

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"veiled-verse/internal/apperr"
	"veiled-verse/internal/docstore"
	"veiled-verse/internal/models"
	"veiled-verse/internal/notify"

	"go.uber.org/zap"
)

// LoadAll replaces the story list with the approved stories, or with every
// story of scope.AuthorID. On failure the list is left empty; there is no
// retry. Stories created offline and not yet synced stay at the head.
func (s *Store) LoadAll(ctx context.Context, scope Scope) ([]models.Story, error) {
	cond := docstore.Eq("status", string(models.StatusApproved))
	if scope.AuthorID != "" {
		cond = docstore.Eq("author_id", scope.AuthorID)
	}

	stories, err := s.query(ctx, cond)
	if err != nil {
		s.mu.Lock()
		s.stories = localOnly(s.stories)
		s.mu.Unlock()

		s.logger.Error("failed to load stories", zap.Error(err))
		s.notify(notify.Error("Failed to load stories"))
		return nil, toAppError(err)
	}

	s.mu.Lock()
	s.stories = append(localOnly(s.stories), stories...)
	out := cloneStories(s.stories)
	s.mu.Unlock()
	return out, nil
}

// LoadMyStories loads every story of the current user, whatever its status.
func (s *Store) LoadMyStories(ctx context.Context) ([]models.Story, error) {
	uid := s.userID()
	if uid == "" {
		return nil, apperr.AuthRequired()
	}

	stories, err := s.query(ctx, docstore.Eq("author_id", uid))
	if err != nil {
		s.logger.Error("failed to load own stories", zap.Error(err))
		s.notify(notify.Error("Failed to load your stories"))
		return nil, toAppError(err)
	}

	s.mu.Lock()
	s.mine = append(localOnly(s.mine), stories...)
	out := cloneStories(s.mine)
	s.mu.Unlock()
	return out, nil
}

// LoadPurchases reads the purchase set from the user profile. A user without
// a profile owns nothing.
func (s *Store) LoadPurchases(ctx context.Context) ([]string, error) {
	uid := s.userID()
	if uid == "" {
		return nil, apperr.AuthRequired()
	}

	user, err := s.loadUser(ctx, uid)
	if err != nil {
		s.logger.Error("failed to load purchases", zap.Error(err))
		s.notify(notify.Error("Failed to load your purchases"))
		return nil, toAppError(err)
	}

	purchases := dedupe(user.PurchasedStories)
	s.mu.Lock()
	s.purchases = purchases
	s.mu.Unlock()
	return slices.Clone(purchases), nil
}

// GetStory returns a story from memory, falling back to the document store.
func (s *Store) GetStory(ctx context.Context, id string) (models.Story, error) {
	if st, ok := s.Story(id); ok {
		return st, nil
	}
	if IsLocalID(id) {
		return models.Story{}, apperr.NotFound("story")
	}
	st, err := s.fetch(ctx, id)
	if err != nil {
		return models.Story{}, toAppError(err)
	}
	return st, nil
}

func (s *Store) query(ctx context.Context, where ...docstore.Condition) ([]models.Story, error) {
	docs, err := s.docs.Query(ctx, docstore.CollectionStories, where...)
	if err != nil {
		return nil, err
	}

	stories := make([]models.Story, 0, len(docs))
	for _, doc := range docs {
		st, err := decodeStory(doc)
		if err != nil {
			s.logger.Warn("skipping unreadable story", zap.Any("id", doc["id"]), zap.Error(err))
			continue
		}
		stories = append(stories, st)
	}
	sortStories(stories, SortLatest)
	return stories, nil
}

func (s *Store) fetch(ctx context.Context, id string) (models.Story, error) {
	doc, err := s.docs.Get(ctx, docstore.CollectionStories, id)
	if err != nil {
		return models.Story{}, err
	}
	return decodeStory(doc)
}

func (s *Store) loadUser(ctx context.Context, uid string) (models.User, error) {
	doc, err := s.docs.Get(ctx, docstore.CollectionUsers, uid)
	if errors.Is(err, docstore.ErrNotFound) {
		return models.User{ID: uid}, nil
	}
	if err != nil {
		return models.User{}, err
	}
	var u models.User
	if err := docstore.Decode(doc, &u); err != nil {
		return models.User{}, err
	}
	return u, nil
}

func decodeStory(doc docstore.Document) (models.Story, error) {
	var st models.Story
	if err := docstore.Decode(doc, &st); err != nil {
		return models.Story{}, fmt.Errorf("failed to decode story: %w", err)
	}
	st.Normalize()
	return st, nil
}

func localOnly(list []models.Story) []models.Story {
	var out []models.Story
	for _, st := range list {
		if IsLocalID(st.ID) {
			out = append(out, st)
		}
	}
	return out
}

func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}
