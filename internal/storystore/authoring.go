package storystore

import (
	"context"
	"slices"
	"strings"
	"time"

	"veiled-verse/internal/apperr"
	"veiled-verse/internal/auth"
	"veiled-verse/internal/docstore"
	"veiled-verse/internal/metrics"
	"veiled-verse/internal/models"
	"veiled-verse/internal/offline"
)

// CreateNewStory stores a new pending story by the current user and puts it
// at the head of both lists. Created offline, the story keeps a local id
// until the queued create is replayed.
func (s *Store) CreateNewStory(ctx context.Context, input models.StoryInput) (*models.Story, error) {
	if s.userID() == "" {
		return nil, s.deny(apperr.AuthRequired())
	}
	if !s.can(auth.CapPublish) {
		return nil, s.deny(apperr.Forbidden("you don't have permission to publish stories"))
	}
	if err := validateInput(input); err != nil {
		return nil, s.deny(err)
	}

	action := offline.NewCreateStory(input)
	story := s.newStory(input, time.Now().UTC())
	story.ID = localPrefix + action.ID

	localID := story.ID

	err := s.applyOptimistic(ctx, mutation{
		op:      "create",
		storyID: localID,
		apply:   func() { s.prependStory(story) },
		commit: func(ctx context.Context) error {
			id, err := s.insertStory(ctx, story)
			if err != nil {
				return err
			}
			s.renameStory(localID, id)
			story.ID = id
			return nil
		},
		rollback: func() { s.removeStory(localID) },
		action:   &action,
		success:  "Story submitted for review",
		failure:  "Failed to create story",
	})
	if err != nil {
		return nil, err
	}

	metrics.StoriesCreatedTotal.Inc()
	out := story.Clone()
	return &out, nil
}

func (s *Store) newStory(input models.StoryInput, now time.Time) models.Story {
	st := models.Story{
		Title:       strings.TrimSpace(input.Title),
		Description: input.Description,
		Genre:       input.Genre,
		Tags:        slices.Clone(input.Tags),
		Content:     input.Content,
		CoverKey:    input.CoverKey,
		IsPaid:      input.IsPaid,
		Price:       input.Price,
		AuthorID:    s.userID(),
		AuthorName:  displayName(s.identity),
		Status:      models.StatusPending,
		LikedBy:     []string{},
		Ratings:     []models.Rating{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if st.Tags == nil {
		st.Tags = []string{}
	}
	st.Normalize()
	return st
}

func (s *Store) insertStory(ctx context.Context, st models.Story) (string, error) {
	doc, err := docstore.Encode(st)
	if err != nil {
		return "", err
	}
	delete(doc, "id")
	return s.docs.Create(ctx, docstore.CollectionStories, doc)
}

// UpdateStoryData merges updates into the story. Only its author or an admin
// may edit a story.
func (s *Store) UpdateStoryData(ctx context.Context, id string, updates models.StoryUpdate) error {
	uid := s.userID()
	if uid == "" {
		return s.deny(apperr.AuthRequired())
	}
	if updates.Empty() {
		return s.deny(apperr.Validation("nothing to update"))
	}
	if updates.Title != nil && strings.TrimSpace(*updates.Title) == "" {
		return s.deny(apperr.Validation("title cannot be empty"))
	}
	if updates.Genre != nil && strings.TrimSpace(*updates.Genre) == "" {
		return s.deny(apperr.Validation("genre cannot be empty"))
	}
	if updates.Price != nil && *updates.Price < 0 {
		return s.deny(apperr.Validation("price cannot be negative"))
	}

	prev, err := s.GetStory(ctx, id)
	if err != nil {
		return s.deny(err)
	}
	if prev.AuthorID != uid && !s.can(auth.CapAdmin) {
		return s.deny(apperr.Forbidden("only the author can edit this story"))
	}
	id = prev.ID

	// same paid/price rule as on create, checked on the merged story
	merged := prev.Clone()
	updates.Apply(&merged)
	if merged.IsPaid && merged.Price == 0 {
		return s.deny(apperr.Validation("paid stories need a price"))
	}
	if updates.Price != nil && *updates.Price != merged.Price {
		price := merged.Price
		updates.Price = &price
	}

	action := offline.NewUpdateStory(id, updates)
	return s.applyOptimistic(ctx, mutation{
		op:      "update",
		storyID: id,
		apply: func() {
			s.mutateStory(id, func(st *models.Story) {
				updates.Apply(st)
				st.UpdatedAt = time.Now().UTC()
			})
		},
		commit: func(ctx context.Context) error {
			return s.commitUpdate(ctx, id, updates)
		},
		rollback:    func() { s.putStory(prev) },
		action:      &action,
		deferCommit: IsLocalID(id),
		success:     "Story updated",
		failure:     "Failed to update story",
	})
}

func (s *Store) commitUpdate(ctx context.Context, id string, updates models.StoryUpdate) error {
	patch, err := docstore.Encode(updates)
	if err != nil {
		return err
	}
	if updates.IsPaid != nil && !*updates.IsPaid {
		patch["price"] = 0
	}
	patch["updated_at"] = time.Now().UTC()
	return s.docs.Update(ctx, docstore.CollectionStories, id, patch)
}

// ModerateStory sets the review status of a story.
func (s *Store) ModerateStory(ctx context.Context, id string, status models.StoryStatus) error {
	if s.userID() == "" {
		return s.deny(apperr.AuthRequired())
	}
	if !s.can(auth.CapModerate) {
		return s.deny(apperr.Forbidden("you don't have permission to moderate stories"))
	}
	if !status.Valid() {
		return s.deny(apperr.Validation("unknown story status"))
	}
	id = s.resolve(id)
	if IsLocalID(id) {
		return s.deny(apperr.Conflict("this story has not been published yet"))
	}
	if !s.isOnline() {
		return s.deny(apperr.Unavailable("moderation needs a connection"))
	}

	prev, err := s.GetStory(ctx, id)
	if err != nil {
		return s.deny(err)
	}
	id = prev.ID

	return s.applyOptimistic(ctx, mutation{
		op:      "moderate",
		storyID: id,
		apply: func() {
			s.mutateStory(id, func(st *models.Story) { st.Status = status })
			if status == models.StatusApproved {
				approved := prev.Clone()
				approved.Status = status
				s.mu.Lock()
				if indexOf(s.stories, id) < 0 {
					s.stories = slices.Insert(s.stories, 0, approved)
				}
				s.mu.Unlock()
			}
		},
		commit: func(ctx context.Context) error {
			return s.docs.Update(ctx, docstore.CollectionStories, id, docstore.Document{
				"status":     string(status),
				"updated_at": time.Now().UTC(),
			})
		},
		rollback: func() {
			if prev.Status != models.StatusApproved && status == models.StatusApproved {
				s.mu.Lock()
				if i := indexOf(s.stories, id); i >= 0 {
					s.stories = slices.Delete(s.stories, i, i+1)
				}
				s.mu.Unlock()
			}
			s.putStory(prev)
		},
		success: "Story marked " + string(status),
		failure: "Failed to update story status",
	})
}

// DeleteStoryByID removes the story remotely and from both lists. Only its
// author or an admin may delete it.
func (s *Store) DeleteStoryByID(ctx context.Context, id string) error {
	uid := s.userID()
	if uid == "" {
		return s.deny(apperr.AuthRequired())
	}
	id = s.resolve(id)
	if IsLocalID(id) {
		if _, ok := s.Story(id); !ok {
			return s.deny(apperr.NotFound("story"))
		}
		return s.deny(apperr.Conflict("this story is still waiting to sync"))
	}
	if !s.isOnline() {
		return s.deny(apperr.Unavailable("deleting needs a connection"))
	}

	prev, err := s.GetStory(ctx, id)
	if err != nil {
		return s.deny(err)
	}
	if prev.AuthorID != uid && !s.can(auth.CapAdmin) {
		return s.deny(apperr.Forbidden("only the author can delete this story"))
	}
	id = prev.ID

	var pos position
	return s.applyOptimistic(ctx, mutation{
		op:      "delete",
		storyID: id,
		apply:   func() { pos = s.removeStory(id) },
		commit: func(ctx context.Context) error {
			return s.docs.Delete(ctx, docstore.CollectionStories, id)
		},
		rollback: func() { s.restoreStory(pos) },
		success:  "Story deleted",
		failure:  "Failed to delete story",
	})
}

func displayName(id Identity) string {
	if id == nil {
		return ""
	}
	return id.DisplayName()
}

func validateInput(input models.StoryInput) *apperr.AppError {
	if strings.TrimSpace(input.Title) == "" {
		return apperr.Validation("title is required")
	}
	if strings.TrimSpace(input.Genre) == "" {
		return apperr.Validation("genre is required")
	}
	if input.Price < 0 {
		return apperr.Validation("price cannot be negative")
	}
	if input.IsPaid && input.Price == 0 {
		return apperr.Validation("paid stories need a price")
	}
	return nil
}
