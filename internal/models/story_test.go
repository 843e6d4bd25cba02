package models_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veiled-verse/internal/models"
)

func TestAverageRating(t *testing.T) {
	tests := []struct {
		name    string
		ratings []int
		want    float64
	}{
		{"empty", nil, 0},
		{"single", []int{4}, 4},
		{"rounds down", []int{4, 4, 5}, 4.3},
		{"rounds up", []int{5, 5, 4}, 4.7},
		{"half", []int{1, 2}, 1.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rs []models.Rating
			for i, r := range tt.ratings {
				rs = append(rs, models.Rating{UserID: string(rune('a' + i)), Rating: r})
			}
			assert.Equal(t, tt.want, models.AverageRating(rs))
		})
	}
}

func TestStory_ToggleLike(t *testing.T) {
	s := models.Story{Likes: 1, LikedBy: []string{"a"}}

	assert.True(t, s.ToggleLike("b"))
	assert.Equal(t, int64(2), s.Likes)
	assert.Equal(t, []string{"a", "b"}, s.LikedBy)

	assert.False(t, s.ToggleLike("a"))
	assert.Equal(t, int64(1), s.Likes)
	assert.Equal(t, []string{"b"}, s.LikedBy)
}

func TestStory_SetLikeCollapsesDuplicates(t *testing.T) {
	s := models.Story{Likes: 4, LikedBy: []string{"a", "b", "a", "b"}}

	s.SetLike("c", true)
	assert.Equal(t, []string{"a", "b", "c"}, s.LikedBy)
	assert.Equal(t, int64(3), s.Likes)
}

func TestStory_UpsertRating(t *testing.T) {
	now := time.Now()
	s := models.Story{}

	s.UpsertRating("a", 5, now)
	s.UpsertRating("b", 2, now)
	require.Len(t, s.Ratings, 2)
	assert.Equal(t, 3.5, s.AverageRating)

	s.UpsertRating("a", 3, now)
	require.Len(t, s.Ratings, 2)
	assert.Equal(t, 2.5, s.AverageRating)

	r, ok := s.UserRating("a")
	assert.True(t, ok)
	assert.Equal(t, 3, r)
}

func TestStory_CloneIsDeep(t *testing.T) {
	s := models.Story{Tags: []string{"x"}, LikedBy: []string{"a"}, Ratings: []models.Rating{{UserID: "a", Rating: 1}}}
	c := s.Clone()

	c.Tags[0] = "y"
	c.LikedBy[0] = "b"
	c.Ratings[0].Rating = 5

	assert.Equal(t, "x", s.Tags[0])
	assert.Equal(t, "a", s.LikedBy[0])
	assert.Equal(t, 1, s.Ratings[0].Rating)
}

func TestStoryUpdate_ApplyNormalizesPrice(t *testing.T) {
	s := models.Story{IsPaid: true, Price: 100}
	free := false
	title := "New"

	models.StoryUpdate{IsPaid: &free, Title: &title}.Apply(&s)

	assert.Equal(t, "New", s.Title)
	assert.False(t, s.IsPaid)
	assert.Zero(t, s.Price)
}

func TestWallet_Credit(t *testing.T) {
	w := models.Wallet{}

	require.NoError(t, w.Credit(models.SourceStoryPurchase, 70))
	require.NoError(t, w.Credit(models.SourceFreeRead, 5))
	require.NoError(t, w.Credit(models.SourceBonus, 25))
	assert.Error(t, w.Credit("gift", 1))

	assert.Equal(t, int64(100), w.TotalEarnings)
	assert.Equal(t, w.FreeReadEarnings+w.PaidReadEarnings+w.BonusEarnings, w.TotalEarnings)
	assert.Equal(t, int64(100), w.Balance)

	require.NoError(t, w.Withdraw(40))
	assert.Equal(t, int64(60), w.Balance)
	assert.Equal(t, int64(100), w.TotalEarnings)
	assert.ErrorIs(t, w.Withdraw(61), models.ErrInsufficientBalance)
}
