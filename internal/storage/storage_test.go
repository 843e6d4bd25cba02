package storage

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCoverKey(t *testing.T) {
	key := CoverKey("u1", "../../etc/moon.png")
	assert.True(t, strings.HasPrefix(key, "covers/u1/"))
	assert.True(t, strings.HasSuffix(key, "-moon.png"))
	assert.NotContains(t, key, "..")

	assert.NotEqual(t, CoverKey("u1", "a.png"), CoverKey("u1", "a.png"))
}

func TestValidateCoverType(t *testing.T) {
	assert.NoError(t, ValidateCoverType("image/png"))
	assert.NoError(t, ValidateCoverType("IMAGE/JPEG"))

	err := ValidateCoverType("video/mp4")
	assert.True(t, errors.Is(err, ErrContentType))
}

func TestNilStorage(t *testing.T) {
	var s *Storage
	_, _, err := s.PresignCoverUpload(context.Background(), "u1", "a.png", "image/png")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, s.Ping(context.Background()), ErrUnavailable)
}
