package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ShutdownTimeout.Duration())
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "chromem", cfg.VectorStore.Backend)
	assert.Equal(t, "fastembed", cfg.Embeddings.Provider)
	assert.Equal(t, 4, cfg.Retrieval.TopK)
	assert.Equal(t, 5*time.Second, cfg.Retrieval.Timeout.Duration())
	assert.Equal(t, "reviews.verdict", cfg.ReviewBus.Subject)
	assert.Equal(t, "extenderd", cfg.Telemetry.ServiceName)
}

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 9090
  read_timeout: 20s
vectorstore:
  backend: qdrant
  host: qdrant.internal
retrieval:
  top_k: 8
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 20*time.Second, cfg.Server.ReadTimeout.Duration())
	assert.Equal(t, "qdrant", cfg.VectorStore.Backend)
	assert.Equal(t, "qdrant.internal", cfg.VectorStore.Host)
	assert.Equal(t, 8, cfg.Retrieval.TopK)
	// Untouched sections keep defaults.
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9090\n"), 0o600))
	t.Setenv("EXTENDERD_SERVER_PORT", "7070")
	t.Setenv("EXTENDERD_LOGGING_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoad_ValidationFailures(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad backend", "vectorstore:\n  backend: redis\n"},
		{"bad provider", "embeddings:\n  provider: openai\n"},
		{"tei without url", "embeddings:\n  provider: tei\n"},
		{"bad port", "server:\n  port: 70000\n"},
		{"negative top_k", "retrieval:\n  top_k: -1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestDuration_UnmarshalText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("90s")))
	assert.Equal(t, 90*time.Second, d.Duration())

	assert.Error(t, d.UnmarshalText([]byte("-5s")))
	assert.Error(t, d.UnmarshalText([]byte("soon")))

	text, err := Duration(2 * time.Minute).MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "2m0s", string(text))
}
