package offline

import (
	"fmt"
	"time"

	"veiled-verse/internal/models"

	"github.com/google/uuid"
)

type Type string

const (
	TypeCreateStory Type = "CREATE_STORY"
	TypeUpdateStory Type = "UPDATE_STORY"
	TypeLikeStory   Type = "LIKE_STORY"
	TypeRateStory   Type = "RATE_STORY"
)

func (t Type) Valid() bool {
	switch t {
	case TypeCreateStory, TypeUpdateStory, TypeLikeStory, TypeRateStory:
		return true
	}
	return false
}

// Action is a queued mutation. Type selects which payload fields are set:
//
//	CREATE_STORY  Data
//	UPDATE_STORY  StoryID, Updates
//	LIKE_STORY    StoryID, Liked
//	RATE_STORY    StoryID, Rating
type Action struct {
	ID        string              `json:"id"`
	Type      Type                `json:"type"`
	StoryID   string              `json:"story_id,omitempty"`
	Data      *models.StoryInput  `json:"data,omitempty"`
	Updates   *models.StoryUpdate `json:"updates,omitempty"`
	Liked     *bool               `json:"liked,omitempty"`
	Rating    int                 `json:"rating,omitempty"`
	Timestamp time.Time           `json:"timestamp"`
	Retries   int                 `json:"retries"`
}

func newAction(t Type) Action {
	return Action{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Type:      t,
		Timestamp: time.Now().UTC(),
	}
}

func NewCreateStory(data models.StoryInput) Action {
	a := newAction(TypeCreateStory)
	a.Data = &data
	return a
}

func NewUpdateStory(storyID string, updates models.StoryUpdate) Action {
	a := newAction(TypeUpdateStory)
	a.StoryID = storyID
	a.Updates = &updates
	return a
}

// NewLikeStory records the membership the user asked for, so replaying it
// twice still yields a single like.
func NewLikeStory(storyID string, liked bool) Action {
	a := newAction(TypeLikeStory)
	a.StoryID = storyID
	a.Liked = &liked
	return a
}

func NewRateStory(storyID string, rating int) Action {
	a := newAction(TypeRateStory)
	a.StoryID = storyID
	a.Rating = rating
	return a
}

// validate rejects entries that cannot be replayed, e.g. hand-edited or
// truncated queue files.
func (a Action) validate() error {
	if a.ID == "" {
		return fmt.Errorf("action without id")
	}
	switch a.Type {
	case TypeCreateStory:
		if a.Data == nil {
			return fmt.Errorf("%s %s: missing data", a.Type, a.ID)
		}
	case TypeUpdateStory:
		if a.StoryID == "" || a.Updates == nil {
			return fmt.Errorf("%s %s: missing story id or updates", a.Type, a.ID)
		}
	case TypeLikeStory:
		if a.StoryID == "" {
			return fmt.Errorf("%s %s: missing story id", a.Type, a.ID)
		}
	case TypeRateStory:
		if a.StoryID == "" {
			return fmt.Errorf("%s %s: missing story id", a.Type, a.ID)
		}
	}
	return nil
}
