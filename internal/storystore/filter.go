package storystore

import (
	"cmp"
	"slices"
	"strings"

	"veiled-verse/internal/auth"
	"veiled-verse/internal/models"
)

type PriceFilter string

const (
	PriceAll  PriceFilter = "all"
	PriceFree PriceFilter = "free"
	PricePaid PriceFilter = "paid"
)

type SortBy string

const (
	SortLatest   SortBy = "latest"
	SortPopular  SortBy = "popular"
	SortTrending SortBy = "trending"
	SortRating   SortBy = "rating"
)

type Filters struct {
	Genre  string      `form:"genre"`
	Price  PriceFilter `form:"price"`
	SortBy SortBy      `form:"sort_by"`
	Search string      `form:"search"`
}

// FilteredStories derives a filtered, sorted copy of the story list. Equal
// keys keep their list order.
func (s *Store) FilteredStories(f Filters) []models.Story {
	return FilterStories(s.Stories(), f)
}

func FilterStories(stories []models.Story, f Filters) []models.Story {
	genre := strings.TrimSpace(f.Genre)
	search := strings.ToLower(strings.TrimSpace(f.Search))

	out := make([]models.Story, 0, len(stories))
	for _, st := range stories {
		if genre != "" && genre != "all" && !strings.EqualFold(st.Genre, genre) {
			continue
		}
		switch f.Price {
		case PriceFree:
			if st.IsPaid {
				continue
			}
		case PricePaid:
			if !st.IsPaid {
				continue
			}
		}
		if search != "" && !matchesSearch(st, search) {
			continue
		}
		out = append(out, st)
	}

	sortStories(out, f.SortBy)
	return out
}

func matchesSearch(st models.Story, needle string) bool {
	if strings.Contains(strings.ToLower(st.Title), needle) ||
		strings.Contains(strings.ToLower(st.Description), needle) ||
		strings.Contains(strings.ToLower(st.AuthorName), needle) {
		return true
	}
	return slices.ContainsFunc(st.Tags, func(tag string) bool {
		return strings.Contains(strings.ToLower(tag), needle)
	})
}

func sortStories(stories []models.Story, by SortBy) {
	var key func(a, b models.Story) int
	switch by {
	case SortPopular:
		key = func(a, b models.Story) int { return cmp.Compare(b.Likes, a.Likes) }
	case SortTrending:
		key = func(a, b models.Story) int { return cmp.Compare(b.Views, a.Views) }
	case SortRating:
		key = func(a, b models.Story) int { return cmp.Compare(b.AverageRating, a.AverageRating) }
	default:
		key = func(a, b models.Story) int { return b.CreatedAt.Compare(a.CreatedAt) }
	}
	slices.SortStableFunc(stories, key)
}

// CanReadStory reports whether the current user may read the full story.
func (s *Store) CanReadStory(st models.Story) bool {
	if !st.IsPaid {
		return true
	}
	if s.can(auth.CapReadPremium) {
		return true
	}
	if st.AuthorID != "" && st.AuthorID == s.userID() {
		return true
	}
	return s.HasPurchased(st.ID)
}
