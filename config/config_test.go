package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/poiesic/lumina/ai"
	"github.com/poiesic/lumina/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupFrom(env map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 500, cfg.Chunking.Size)
	assert.Equal(t, 50, cfg.Chunking.Overlap)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.Equal(t, 0.7, cfg.Retrieval.DenseWeight)
	assert.Equal(t, 0.3, cfg.Retrieval.SparseWeight)
	assert.Equal(t, 6, cfg.Conversation.HistoryTurns)
	assert.Equal(t, SessionsBadger, cfg.Storage.Sessions)
	assert.Equal(t, ":5000", cfg.Server.Addr)
	assert.Equal(t, filepath.Join("data", "index"), filepath.Clean(cfg.IndexPath()))
}

func TestLoad(t *testing.T) {
	t.Run("yaml overrides defaults", func(t *testing.T) {
		path := writeFile(t, "lumina.yaml", `
log_level: debug
ai:
  chat_model: gpt-4o-mini
  dimension: 1536
storage:
  data_dir: /var/lib/lumina
  sessions: sqlite
chunking:
  size: 800
  overlap: 80
ingestion:
  fetch_timeout: 45s
`)
		cfg, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, "debug", cfg.LogLevel)
		assert.Equal(t, "gpt-4o-mini", cfg.AI.ChatModel)
		assert.Equal(t, "embeddinggemma", cfg.AI.EmbeddingModel)
		assert.Equal(t, 1536, cfg.AI.Dimension)
		assert.Equal(t, SessionsSQLite, cfg.Storage.Sessions)
		assert.Equal(t, "/var/lib/lumina/lumina.db", filepath.ToSlash(cfg.SQLitePath()))
		assert.Equal(t, 800, cfg.Chunking.Size)
		assert.Equal(t, 45*time.Second, cfg.Ingestion.FetchTimeout)
		assert.Equal(t, 5, cfg.Retrieval.TopK)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.ErrorIs(t, err, core.ErrConfiguration)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := writeFile(t, "bad.yaml", "chunking: [1, 2")
		_, err := Load(path)
		assert.ErrorIs(t, err, core.ErrConfiguration)
	})

	t.Run("invalid values rejected", func(t *testing.T) {
		path := writeFile(t, "bad.yaml", "chunking:\n  size: 100\n  overlap: 100\n")
		_, err := Load(path)
		require.Error(t, err)
		assert.ErrorIs(t, err, core.ErrConfiguration)
		assert.Contains(t, err.Error(), "chunking.overlap")
	})

	t.Run("env file fills unset variables", func(t *testing.T) {
		t.Setenv("LUMINA_CHAT_MODEL", "from-env")
		envFile := writeFile(t, ".env", "LUMINA_CHAT_MODEL=from-file\nLUMINA_TOP_K=9\n")
		t.Cleanup(func() { os.Unsetenv("LUMINA_TOP_K") })

		cfg, err := Load("", envFile)
		require.NoError(t, err)
		assert.Equal(t, "from-env", cfg.AI.ChatModel)
		assert.Equal(t, 9, cfg.Retrieval.TopK)
	})

	t.Run("missing env file ignored", func(t *testing.T) {
		_, err := Load("", filepath.Join(t.TempDir(), ".env"))
		assert.NoError(t, err)
	})
}

func TestApplyEnv(t *testing.T) {
	t.Run("lumina variables", func(t *testing.T) {
		cfg := Default()
		err := cfg.ApplyEnv(lookupFrom(map[string]string{
			"LUMINA_DATA_DIR":        "/tmp/lumina",
			"LUMINA_EMBEDDING_MODEL": "nomic-embed-text",
			"LUMINA_DIMENSION":       "768",
			"LUMINA_WORKERS":         "4",
			"LUMINA_RENDER_ENDPOINT": "http://render:3000",
			"OPENAI_API_KEY":         "sk-test",
			"LUMINA_LOG_LEVEL":       "  ",
		}))
		require.NoError(t, err)

		assert.Equal(t, "/tmp/lumina", cfg.Storage.DataDir)
		assert.Equal(t, "nomic-embed-text", cfg.AI.EmbeddingModel)
		assert.Equal(t, 768, cfg.AI.Dimension)
		assert.Equal(t, 4, cfg.Ingestion.Workers)
		assert.Equal(t, "http://render:3000", cfg.Ingestion.RenderEndpoint)
		assert.Equal(t, "sk-test", cfg.AI.APIKey)
		assert.Equal(t, "info", cfg.LogLevel)
	})

	t.Run("port and addr", func(t *testing.T) {
		cfg := Default()
		require.NoError(t, cfg.ApplyEnv(lookupFrom(map[string]string{"PORT": "8080"})))
		assert.Equal(t, ":8080", cfg.Server.Addr)

		cfg = Default()
		require.NoError(t, cfg.ApplyEnv(lookupFrom(map[string]string{"PORT": "8080", "LUMINA_ADDR": "127.0.0.1:9000"})))
		assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	})

	t.Run("azure", func(t *testing.T) {
		cfg := Default()
		require.NoError(t, cfg.ApplyEnv(lookupFrom(map[string]string{
			"AZURE_OPENAI_ENDPOINT":      "https://acme.openai.azure.com/",
			"AZURE_OPENAI_API_KEY":       "azure-key",
			"AZURE_DEPLOYMENT_CHAT":      "gpt-4o",
			"AZURE_DEPLOYMENT_EMBEDDING": "text-embedding-3-small",
		})))

		assert.Equal(t, ai.APITypeAzure, cfg.AI.APIType)
		assert.Equal(t, "2024-12-01-preview", cfg.AI.APIVersion)
		assert.Equal(t, "gpt-4o", cfg.AI.ChatModel)
		require.NoError(t, cfg.Validate())

		provider := cfg.Provider()
		assert.Equal(t, "https://acme.openai.azure.com", provider.ChatHost)
		assert.Equal(t, "azure-key", provider.APIKey)
		assert.Equal(t, "text-embedding-3-small", provider.EmbeddingModel)
	})

	t.Run("bad number", func(t *testing.T) {
		cfg := Default()
		err := cfg.ApplyEnv(lookupFrom(map[string]string{"LUMINA_TOP_K": "five"}))
		assert.ErrorIs(t, err, core.ErrConfiguration)
		assert.Contains(t, err.Error(), "LUMINA_TOP_K")
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"ai section", func(c *Config) { c.AI.ChatModel = "" }, "ChatModel"},
		{"negative cache", func(c *Config) { c.AI.EmbeddingCache = -1 }, "embedding_cache"},
		{"no data dir", func(c *Config) { c.Storage.DataDir = "" }, "data_dir"},
		{"unknown sessions backend", func(c *Config) { c.Storage.Sessions = "redis" }, "storage.sessions"},
		{"zero chunk size", func(c *Config) { c.Chunking.Size = 0 }, "chunking.size"},
		{"zero top k", func(c *Config) { c.Retrieval.TopK = 0 }, "top_k"},
		{"negative weight", func(c *Config) { c.Retrieval.DenseWeight = -0.1 }, "weights"},
		{"zero weights", func(c *Config) { c.Retrieval.DenseWeight, c.Retrieval.SparseWeight = 0, 0 }, "both be zero"},
		{"zero history", func(c *Config) { c.Conversation.HistoryTurns = 0 }, "history_turns"},
		{"negative tokens", func(c *Config) { c.Conversation.HistoryTokens = -1 }, "history_tokens"},
		{"zero workers", func(c *Config) { c.Ingestion.Workers = 0 }, "workers"},
		{"zero batch", func(c *Config) { c.Ingestion.BatchSize = 0 }, "batch_size"},
		{"zero timeout", func(c *Config) { c.Ingestion.FetchTimeout = 0 }, "fetch_timeout"},
		{"zero render timeout", func(c *Config) { c.Ingestion.RenderTimeout = 0 }, "render_timeout"},
		{"burst without rate", func(c *Config) { c.Ingestion.RateBurst = 0 }, "rate_burst"},
		{"no addr", func(c *Config) { c.Server.Addr = "" }, "server.addr"},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }, "log level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, core.ErrConfiguration)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.AI.APIKey = "secret"
	cfg.Ingestion.FetchTimeout = 90 * time.Second
	path := filepath.Join(t.TempDir(), "nested", "lumina.yaml")

	require.NoError(t, Save(path, cfg))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret")
	assert.Contains(t, string(data), "fetch_timeout: 1m30s")

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, loaded.Ingestion.FetchTimeout)
	assert.Equal(t, cfg.Chunking, loaded.Chunking)

	var buf bytes.Buffer
	require.NoError(t, cfg.Write(&buf))
	assert.Equal(t, "secret", cfg.AI.APIKey)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"", slog.LevelInfo},
		{" warn ", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseLevel("trace")
	assert.ErrorIs(t, err, core.ErrConfiguration)
}
