// Package config loads the application configuration from a YAML file,
// an optional .env file and environment variables, in increasing order of
// precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/poiesic/lumina/ai"
	"github.com/poiesic/lumina/chunk"
	"github.com/poiesic/lumina/conversation"
	"github.com/poiesic/lumina/core"
	"github.com/poiesic/lumina/fetch"
	"github.com/poiesic/lumina/index"
	"github.com/poiesic/lumina/ingestion"
)

// Session storage backends.
const (
	SessionsBadger = "badger"
	SessionsSQLite = "sqlite"
)

// AIConfig configures the embedding and chat services.
type AIConfig struct {
	APIType        string  `yaml:"api_type"`
	APIKey         string  `yaml:"api_key,omitempty"`
	APIVersion     string  `yaml:"api_version,omitempty"`
	EmbeddingHost  string  `yaml:"embedding_host"`
	ChatHost       string  `yaml:"chat_host"`
	EmbeddingModel string  `yaml:"embedding_model"`
	ChatModel      string  `yaml:"chat_model"`
	Dimension      int     `yaml:"dimension"`
	Temperature    float64 `yaml:"temperature"`
	MaxTokens      int     `yaml:"max_tokens"`
	EmbeddingCache int     `yaml:"embedding_cache"` // cached query vectors, 0 disables
}

// StorageConfig locates persistent state.
type StorageConfig struct {
	DataDir  string `yaml:"data_dir"`
	Sessions string `yaml:"sessions"` // "badger" or "sqlite"
}

// ChunkingConfig sizes document units, in runes.
type ChunkingConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

// RetrievalConfig tunes hybrid queries.
type RetrievalConfig struct {
	TopK         int     `yaml:"top_k"`
	DenseWeight  float64 `yaml:"dense_weight"`
	SparseWeight float64 `yaml:"sparse_weight"`
}

// ConversationConfig bounds the history sent to the model.
type ConversationConfig struct {
	HistoryTurns  int `yaml:"history_turns"`
	HistoryTokens int `yaml:"history_tokens"` // 0 disables the token cap
}

// IngestionConfig tunes fetching and the job runner.
type IngestionConfig struct {
	Workers        int           `yaml:"workers"`
	BatchSize      int           `yaml:"batch_size"`
	FetchTimeout   time.Duration `yaml:"fetch_timeout"`
	RenderEndpoint string        `yaml:"render_endpoint,omitempty"`
	RenderTimeout  time.Duration `yaml:"render_timeout"`
	RateLimit      float64       `yaml:"rate_limit"` // requests per second, 0 disables
	RateBurst      int           `yaml:"rate_burst"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Config is the root application configuration.
type Config struct {
	LogLevel     string             `yaml:"log_level"`
	AI           AIConfig           `yaml:"ai"`
	Storage      StorageConfig      `yaml:"storage"`
	Chunking     ChunkingConfig     `yaml:"chunking"`
	Retrieval    RetrievalConfig    `yaml:"retrieval"`
	Conversation ConversationConfig `yaml:"conversation"`
	Ingestion    IngestionConfig    `yaml:"ingestion"`
	Server       ServerConfig       `yaml:"server"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	base := ai.DefaultConfig()
	return &Config{
		LogLevel: "info",
		AI: AIConfig{
			APIType:        base.APIType,
			EmbeddingHost:  base.EmbeddingHost,
			ChatHost:       base.ChatHost,
			EmbeddingModel: base.EmbeddingModel,
			ChatModel:      base.ChatModel,
			Temperature:    base.Temperature,
			MaxTokens:      base.MaxTokens,
			EmbeddingCache: 1024,
		},
		Storage: StorageConfig{
			DataDir:  "./data",
			Sessions: SessionsBadger,
		},
		Chunking: ChunkingConfig{
			Size:    chunk.DefaultTarget,
			Overlap: chunk.DefaultOverlap,
		},
		Retrieval: RetrievalConfig{
			TopK:         index.DefaultTopK,
			DenseWeight:  index.DefaultDenseWeight,
			SparseWeight: index.DefaultSparseWeight,
		},
		Conversation: ConversationConfig{
			HistoryTurns: conversation.DefaultHistoryTurns,
		},
		Ingestion: IngestionConfig{
			Workers:      ingestion.DefaultWorkers,
			BatchSize:    ingestion.DefaultBatchSize,
			FetchTimeout:  30 * time.Second,
			RenderTimeout: fetch.DefaultRenderTimeout,
			RateLimit:     2,
			RateBurst:     4,
		},
		Server: ServerConfig{
			Addr: ":5000",
		},
	}
}

// Load builds the configuration. Values come from Default, then the YAML
// file at path (skipped when path is empty), then the environment. Each
// envFile is loaded into the environment first without overriding variables
// that are already set; a missing envFile is ignored.
func Load(path string, envFiles ...string) (*Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: loading %s: %w", core.ErrConfiguration, f, err)
		}
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", core.ErrConfiguration, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: parsing %s: %w", core.ErrConfiguration, path, err)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg to path as YAML, creating parent directories as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := cfg.Write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Write encodes cfg as YAML. The API key is never written.
func (c *Config) Write(w io.Writer) error {
	redacted := *c
	redacted.AI.APIKey = ""
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&redacted); err != nil {
		return err
	}
	return enc.Close()
}

// LookupFunc reads one environment variable.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overrides fields from environment variables:
//
//	LUMINA_LOG_LEVEL, LUMINA_DATA_DIR, LUMINA_SESSIONS, LUMINA_ADDR, PORT,
//	LUMINA_EMBEDDING_HOST, LUMINA_CHAT_HOST, LUMINA_EMBEDDING_MODEL,
//	LUMINA_CHAT_MODEL, LUMINA_DIMENSION, LUMINA_TOP_K, LUMINA_WORKERS,
//	LUMINA_RENDER_ENDPOINT, OPENAI_API_KEY,
//	AZURE_OPENAI_ENDPOINT, AZURE_OPENAI_API_KEY, AZURE_OPENAI_API_VERSION,
//	AZURE_DEPLOYMENT_CHAT, AZURE_DEPLOYMENT_EMBEDDING
//
// Setting AZURE_OPENAI_ENDPOINT switches the AI section to the Azure dialect.
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}
	str := func(key string, dst *string) {
		if v, ok := get(key); ok {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := get(key)
		if !ok {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", core.ErrConfiguration, key, err)
		}
		*dst = n
		return nil
	}

	str("LUMINA_LOG_LEVEL", &c.LogLevel)
	str("LUMINA_DATA_DIR", &c.Storage.DataDir)
	str("LUMINA_SESSIONS", &c.Storage.Sessions)
	if port, ok := get("PORT"); ok {
		c.Server.Addr = ":" + port
	}
	str("LUMINA_ADDR", &c.Server.Addr)
	str("LUMINA_EMBEDDING_HOST", &c.AI.EmbeddingHost)
	str("LUMINA_CHAT_HOST", &c.AI.ChatHost)
	str("LUMINA_EMBEDDING_MODEL", &c.AI.EmbeddingModel)
	str("LUMINA_CHAT_MODEL", &c.AI.ChatModel)
	str("LUMINA_RENDER_ENDPOINT", &c.Ingestion.RenderEndpoint)
	str("OPENAI_API_KEY", &c.AI.APIKey)
	for key, dst := range map[string]*int{
		"LUMINA_DIMENSION": &c.AI.Dimension,
		"LUMINA_TOP_K":     &c.Retrieval.TopK,
		"LUMINA_WORKERS":   &c.Ingestion.Workers,
	} {
		if err := num(key, dst); err != nil {
			return err
		}
	}

	if endpoint, ok := get("AZURE_OPENAI_ENDPOINT"); ok {
		c.AI.APIType = ai.APITypeAzure
		c.AI.EmbeddingHost = endpoint
		c.AI.ChatHost = endpoint
		if c.AI.APIVersion == "" {
			c.AI.APIVersion = "2024-12-01-preview"
		}
	}
	str("AZURE_OPENAI_API_KEY", &c.AI.APIKey)
	str("AZURE_OPENAI_API_VERSION", &c.AI.APIVersion)
	str("AZURE_DEPLOYMENT_CHAT", &c.AI.ChatModel)
	str("AZURE_DEPLOYMENT_EMBEDDING", &c.AI.EmbeddingModel)
	return nil
}

// Provider converts the AI section to an ai.Config.
func (c *Config) Provider() *ai.Config {
	cfg := &ai.Config{
		EmbeddingHost:  c.AI.EmbeddingHost,
		ChatHost:       c.AI.ChatHost,
		EmbeddingModel: c.AI.EmbeddingModel,
		ChatModel:      c.AI.ChatModel,
		APIKey:         c.AI.APIKey,
		APIType:        c.AI.APIType,
		APIVersion:     c.AI.APIVersion,
		Dimension:      c.AI.Dimension,
		Temperature:    c.AI.Temperature,
		MaxTokens:      c.AI.MaxTokens,
	}
	cfg.Normalize()
	return cfg
}

// IndexPath is the badger directory holding the index, and the sessions
// unless they live in SQLite.
func (c *Config) IndexPath() string {
	return filepath.Join(c.Storage.DataDir, "index")
}

// SQLitePath is the database file used when Storage.Sessions is "sqlite".
func (c *Config) SQLitePath() string {
	return filepath.Join(c.Storage.DataDir, "lumina.db")
}

// Validate checks every section. Failures wrap core.ErrConfiguration.
func (c *Config) Validate() error {
	if err := c.Provider().Validate(); err != nil {
		return err
	}

	switch {
	case c.AI.EmbeddingCache < 0:
		return configError("ai.embedding_cache must not be negative")
	case c.Storage.DataDir == "":
		return configError("storage.data_dir is required")
	case c.Storage.Sessions != SessionsBadger && c.Storage.Sessions != SessionsSQLite:
		return configError(fmt.Sprintf("unknown storage.sessions %q", c.Storage.Sessions))
	case c.Chunking.Size < 1:
		return configError("chunking.size must be positive")
	case c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size:
		return configError("chunking.overlap must be in [0, size)")
	case c.Retrieval.TopK < 1:
		return configError("retrieval.top_k must be positive")
	case c.Retrieval.DenseWeight < 0 || c.Retrieval.SparseWeight < 0:
		return configError("retrieval weights must not be negative")
	case c.Retrieval.DenseWeight+c.Retrieval.SparseWeight == 0:
		return configError("retrieval weights must not both be zero")
	case c.Conversation.HistoryTurns < 1:
		return configError("conversation.history_turns must be positive")
	case c.Conversation.HistoryTokens < 0:
		return configError("conversation.history_tokens must not be negative")
	case c.Ingestion.Workers < 1:
		return configError("ingestion.workers must be positive")
	case c.Ingestion.BatchSize < 1:
		return configError("ingestion.batch_size must be positive")
	case c.Ingestion.FetchTimeout <= 0:
		return configError("ingestion.fetch_timeout must be positive")
	case c.Ingestion.RenderTimeout <= 0:
		return configError("ingestion.render_timeout must be positive")
	case c.Ingestion.RateLimit < 0:
		return configError("ingestion.rate_limit must not be negative")
	case c.Ingestion.RateLimit > 0 && c.Ingestion.RateBurst < 1:
		return configError("ingestion.rate_burst must be positive when rate_limit is set")
	case c.Server.Addr == "":
		return configError("server.addr is required")
	}

	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

func configError(msg string) error {
	return fmt.Errorf("%w: %s", core.ErrConfiguration, msg)
}
