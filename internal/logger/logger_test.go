package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rrens/bi-assistant/internal/config"
)

func TestSetup_Level(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	closer, err := Setup(config.LoggingConfig{Level: "debug"}, false)
	require.NoError(t, err)
	defer closer.Close()
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())

	closer, err = Setup(config.LoggingConfig{Level: "nonsense"}, true)
	require.NoError(t, err)
	defer closer.Close()
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}

func TestSetup_RotatingFile(t *testing.T) {
	defer func() { log.Logger = zerolog.New(os.Stderr) }()

	path := filepath.Join(t.TempDir(), "logs", "server.log")
	closer, err := Setup(config.LoggingConfig{
		Level:        "info",
		File:         path,
		MaxAge:       24 * time.Hour,
		RotationTime: time.Hour,
	}, true)
	require.NoError(t, err)

	log.Info().Str("component", "test").Msg("hello rotating file")
	require.NoError(t, closer.Close())

	matches, err := filepath.Glob(path + ".*")
	require.NoError(t, err)
	require.NotEmpty(t, matches)

	content, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	assert.Contains(t, string(content), "hello rotating file")
}

func TestStderrWriter_Format(t *testing.T) {
	tests := []struct {
		name       string
		format     string
		production bool
		console    bool
	}{
		{"json in development", "json", false, false},
		{"json in production", "json", true, false},
		{"console in production", "console", true, true},
		{"unset in development", "", false, true},
		{"unset in production", "", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			w := stderrWriter(tt.format, tt.production, &buf)

			_, isConsole := w.(zerolog.ConsoleWriter)
			assert.Equal(t, tt.console, isConsole)

			l := zerolog.New(w)
			l.Info().Msg("hello")
			if tt.console {
				assert.NotContains(t, buf.String(), `"message":"hello"`)
			} else {
				assert.Contains(t, buf.String(), `"message":"hello"`)
			}
		})
	}
}
