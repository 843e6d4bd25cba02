package models

import (
	"math"
	"slices"
	"time"
)

type StoryStatus string

const (
	StatusPending  StoryStatus = "pending"
	StatusApproved StoryStatus = "approved"
	StatusRejected StoryStatus = "rejected"
)

func (s StoryStatus) Valid() bool {
	return s == StatusPending || s == StatusApproved || s == StatusRejected
}

type Rating struct {
	UserID string    `json:"user_id"`
	Rating int       `json:"rating"`
	Date   time.Time `json:"date"`
}

type Story struct {
	ID            string      `json:"id"`
	Title         string      `json:"title"`
	Description   string      `json:"description"`
	Genre         string      `json:"genre"`
	Tags          []string    `json:"tags"`
	Content       string      `json:"content"`
	CoverKey      string      `json:"cover_key,omitempty"`
	IsPaid        bool        `json:"is_paid"`
	Price         float64     `json:"price"`
	AuthorID      string      `json:"author_id"`
	AuthorName    string      `json:"author_name"`
	Status        StoryStatus `json:"status"`
	Views         int64       `json:"views"`
	Likes         int64       `json:"likes"`
	LikedBy       []string    `json:"liked_by"`
	Ratings       []Rating    `json:"ratings"`
	AverageRating float64     `json:"average_rating"`
	Purchases     int64       `json:"purchases"`
	Earnings      int64       `json:"earnings"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// Clone returns a copy that shares no slices with s.
func (s Story) Clone() Story {
	c := s
	c.Tags = slices.Clone(s.Tags)
	c.LikedBy = slices.Clone(s.LikedBy)
	c.Ratings = slices.Clone(s.Ratings)
	return c
}

func (s *Story) HasLiked(userID string) bool {
	return slices.Contains(s.LikedBy, userID)
}

// SetLike puts userID in or out of LikedBy and keeps Likes equal to its length.
// Duplicate entries left by older writers are collapsed.
func (s *Story) SetLike(userID string, liked bool) {
	out := make([]string, 0, len(s.LikedBy)+1)
	seen := make(map[string]bool, len(s.LikedBy))
	for _, id := range s.LikedBy {
		if id == userID || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	if liked {
		out = append(out, userID)
	}
	s.LikedBy = out
	s.Likes = int64(len(out))
}

// ToggleLike flips the membership of userID and reports the new state.
func (s *Story) ToggleLike(userID string) bool {
	liked := !s.HasLiked(userID)
	s.SetLike(userID, liked)
	return liked
}

// UpsertRating replaces the user's rating or appends a new one, then
// recomputes the average.
func (s *Story) UpsertRating(userID string, rating int, at time.Time) {
	entry := Rating{UserID: userID, Rating: rating, Date: at}
	replaced := false
	out := s.Ratings[:0:0]
	for _, r := range s.Ratings {
		if r.UserID != userID {
			out = append(out, r)
			continue
		}
		if !replaced {
			out = append(out, entry)
			replaced = true
		}
	}
	if !replaced {
		out = append(out, entry)
	}
	s.Ratings = out
	s.RecomputeAverage()
}

func (s *Story) UserRating(userID string) (int, bool) {
	for _, r := range s.Ratings {
		if r.UserID == userID {
			return r.Rating, true
		}
	}
	return 0, false
}

// RecomputeAverage sets AverageRating to the mean rating rounded to one
// decimal place, or 0 without ratings.
func (s *Story) RecomputeAverage() {
	s.AverageRating = AverageRating(s.Ratings)
}

func AverageRating(ratings []Rating) float64 {
	if len(ratings) == 0 {
		return 0
	}
	sum := 0
	for _, r := range ratings {
		sum += r.Rating
	}
	mean := float64(sum) / float64(len(ratings))
	return math.Round(mean*10) / 10
}

// Normalize zeroes the price of free stories.
func (s *Story) Normalize() {
	if !s.IsPaid {
		s.Price = 0
	}
}

type StoryInput struct {
	Title       string   `json:"title" binding:"required"`
	Description string   `json:"description"`
	Genre       string   `json:"genre" binding:"required"`
	Tags        []string `json:"tags"`
	Content     string   `json:"content"`
	CoverKey    string   `json:"cover_key"`
	IsPaid      bool     `json:"is_paid"`
	Price       float64  `json:"price" binding:"gte=0"`
}

// StoryUpdate is a partial update of the author-editable fields.
type StoryUpdate struct {
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Genre       *string   `json:"genre,omitempty"`
	Tags        *[]string `json:"tags,omitempty"`
	Content     *string   `json:"content,omitempty"`
	CoverKey    *string   `json:"cover_key,omitempty"`
	IsPaid      *bool     `json:"is_paid,omitempty"`
	Price       *float64  `json:"price,omitempty"`
}

func (u StoryUpdate) Empty() bool {
	return u.Title == nil && u.Description == nil && u.Genre == nil && u.Tags == nil &&
		u.Content == nil && u.CoverKey == nil && u.IsPaid == nil && u.Price == nil
}

// Apply merges the set fields into s.
func (u StoryUpdate) Apply(s *Story) {
	if u.Title != nil {
		s.Title = *u.Title
	}
	if u.Description != nil {
		s.Description = *u.Description
	}
	if u.Genre != nil {
		s.Genre = *u.Genre
	}
	if u.Tags != nil {
		s.Tags = slices.Clone(*u.Tags)
	}
	if u.Content != nil {
		s.Content = *u.Content
	}
	if u.CoverKey != nil {
		s.CoverKey = *u.CoverKey
	}
	if u.IsPaid != nil {
		s.IsPaid = *u.IsPaid
	}
	if u.Price != nil {
		s.Price = *u.Price
	}
	s.Normalize()
}
