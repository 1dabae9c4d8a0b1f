package logger

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
)

func TestLoggerCreation(t *testing.T) {
	tests := []struct {
		name        string
		environment string
		logLevel    string
		wantLevel   zapcore.Level
	}{
		{
			name:        "development defaults",
			environment: "development",
			wantLevel:   zapcore.DebugLevel,
		},
		{
			name:        "production defaults",
			environment: "production",
			wantLevel:   zapcore.InfoLevel,
		},
		{
			name:        "custom level",
			environment: "development",
			logLevel:    "error",
			wantLevel:   zapcore.ErrorLevel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prevEnv := os.Getenv("ENVIRONMENT")
			prevLevel := os.Getenv("LOG_LEVEL")
			defer func() {
				os.Setenv("ENVIRONMENT", prevEnv)
				os.Setenv("LOG_LEVEL", prevLevel)
			}()

			os.Setenv("ENVIRONMENT", tt.environment)
			if tt.logLevel != "" {
				os.Setenv("LOG_LEVEL", tt.logLevel)
			} else {
				os.Unsetenv("LOG_LEVEL")
			}

			logger, err := New()
			require.NoError(t, err)
			defer func() {
				assert.NoError(t, Sync(logger))
			}()

			assert.Equal(t, tt.wantLevel, getLoggerLevel(logger))
		})
	}
}

func TestLoggerSync(t *testing.T) {
	logger := zaptest.NewLogger(t)

	assert.NoError(t, Sync(logger))
	assert.NoError(t, Sync(nil))
}

// getLoggerLevel extracts the configured level from a zap.Logger
func getLoggerLevel(logger *zap.Logger) zapcore.Level {
	if atomic, ok := logger.Core().(interface{ Level() zapcore.Level }); ok {
		return atomic.Level()
	}

	for l := zapcore.DebugLevel; l <= zapcore.FatalLevel; l++ {
		if logger.Core().Enabled(l) {
			return l
		}
	}

	return zapcore.InfoLevel
}
