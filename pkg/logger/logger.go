package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the process logger. LOG_LEVEL selects the level and
// ENVIRONMENT=development switches to the console encoder.
func NewLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if strings.EqualFold(os.Getenv("ENVIRONMENT"), "development") {
		cfg = zap.NewDevelopmentConfig()
	}

	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		level, err := zapcore.ParseLevel(lvl)
		if err != nil {
			return nil, err
		}
		cfg.Level = zap.NewAtomicLevelAt(level)
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

// Field names shared across components so log queries stay stable.
const (
	FieldUserID   = "user_id"
	FieldStoryID  = "story_id"
	FieldActionID = "action_id"
	FieldAction   = "action"
	FieldRetries  = "retries"
	FieldDuration = "duration"
)
