// Package config loads courserag settings from a YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. COURSERAG_LLM_MODEL.
const EnvPrefix = "COURSERAG"

// Config is the root configuration. Treat it as read-only after Load.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	LLM       LLMConfig       `mapstructure:"llm" yaml:"llm"`
	Embedding EmbeddingConfig `mapstructure:"embedding" yaml:"embedding"`
	Chunking  ChunkingConfig  `mapstructure:"chunking" yaml:"chunking"`
	Search    SearchConfig    `mapstructure:"search" yaml:"search"`
	Session   SessionConfig   `mapstructure:"session" yaml:"session"`
	Store     StoreConfig     `mapstructure:"store" yaml:"store"`
	Documents DocumentsConfig `mapstructure:"documents" yaml:"documents"`
}

type ServerConfig struct {
	Address     string `mapstructure:"address" yaml:"address"`
	FrontendDir string `mapstructure:"frontend_dir" yaml:"frontend_dir"`
}

// LLMConfig selects the chat model used to answer questions.
type LLMConfig struct {
	Provider    string        `mapstructure:"provider" yaml:"provider"` // openai or ollama
	Model       string        `mapstructure:"model" yaml:"model"`       // empty uses the provider default
	BaseURL     string        `mapstructure:"base_url" yaml:"base_url"` // empty uses the provider default
	APIKey      string        `mapstructure:"api_key" yaml:"api_key,omitempty"`
	Temperature float64       `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// EmbeddingConfig selects the embedding service.
type EmbeddingConfig struct {
	Provider string        `mapstructure:"provider" yaml:"provider"` // ollama or openai
	Model    string        `mapstructure:"model" yaml:"model"`
	BaseURL  string        `mapstructure:"base_url" yaml:"base_url"`
	APIKey   string        `mapstructure:"api_key" yaml:"api_key,omitempty"`
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type ChunkingConfig struct {
	Size    int `mapstructure:"size" yaml:"size"`
	Overlap int `mapstructure:"overlap" yaml:"overlap"`
}

type SearchConfig struct {
	MaxResults int `mapstructure:"max_results" yaml:"max_results"`
}

// SessionConfig controls conversation memory.
type SessionConfig struct {
	MaxHistory int         `mapstructure:"max_history" yaml:"max_history"`
	Backend    string      `mapstructure:"backend" yaml:"backend"` // memory or redis
	Redis      RedisConfig `mapstructure:"redis" yaml:"redis"`
}

type RedisConfig struct {
	Addr      string        `mapstructure:"addr" yaml:"addr"`
	Password  string        `mapstructure:"password" yaml:"password,omitempty"`
	DB        int           `mapstructure:"db" yaml:"db"`
	KeyPrefix string        `mapstructure:"key_prefix" yaml:"key_prefix"`
	TTL       time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

// StoreConfig selects where courses and chunks live.
type StoreConfig struct {
	Backend string `mapstructure:"backend" yaml:"backend"` // sqlite or memory
	Path    string `mapstructure:"path" yaml:"path"`
}

// DocumentsConfig describes the course documents folder.
type DocumentsConfig struct {
	Dir              string `mapstructure:"dir" yaml:"dir"`
	Watch            bool   `mapstructure:"watch" yaml:"watch"`
	PDFServiceURL    string `mapstructure:"pdf_service_url" yaml:"pdf_service_url"`
	PDFServiceScript string `mapstructure:"pdf_service_script" yaml:"pdf_service_script"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Address: ":8000", FrontendDir: "../frontend"},
		LLM: LLMConfig{
			Provider:    "openai",
			Temperature: 0,
			MaxTokens:   800,
			Timeout:     60 * time.Second,
		},
		Embedding: EmbeddingConfig{
			Provider: "ollama",
			Timeout:  60 * time.Second,
		},
		Chunking: ChunkingConfig{Size: 800, Overlap: 100},
		Search:   SearchConfig{MaxResults: 5},
		Session: SessionConfig{
			MaxHistory: 2,
			Backend:    "memory",
			Redis: RedisConfig{
				Addr:      "localhost:6379",
				KeyPrefix: "courserag:session:",
				TTL:       24 * time.Hour,
			},
		},
		Store:     StoreConfig{Backend: "sqlite", Path: "./data"},
		Documents: DocumentsConfig{Dir: "../docs"},
	}
}

// defaults maps every config key to its built-in value.
func defaults() map[string]any {
	d := Default()
	return map[string]any{
		"server.address":               d.Server.Address,
		"server.frontend_dir":          d.Server.FrontendDir,
		"llm.provider":                 d.LLM.Provider,
		"llm.model":                    d.LLM.Model,
		"llm.base_url":                 d.LLM.BaseURL,
		"llm.api_key":                  "",
		"llm.temperature":              d.LLM.Temperature,
		"llm.max_tokens":               d.LLM.MaxTokens,
		"llm.timeout":                  d.LLM.Timeout,
		"embedding.provider":           d.Embedding.Provider,
		"embedding.model":              d.Embedding.Model,
		"embedding.base_url":           d.Embedding.BaseURL,
		"embedding.api_key":            "",
		"embedding.timeout":            d.Embedding.Timeout,
		"chunking.size":                d.Chunking.Size,
		"chunking.overlap":             d.Chunking.Overlap,
		"search.max_results":           d.Search.MaxResults,
		"session.max_history":          d.Session.MaxHistory,
		"session.backend":              d.Session.Backend,
		"session.redis.addr":           d.Session.Redis.Addr,
		"session.redis.password":       "",
		"session.redis.db":             0,
		"session.redis.key_prefix":     d.Session.Redis.KeyPrefix,
		"session.redis.ttl":            d.Session.Redis.TTL,
		"store.backend":                d.Store.Backend,
		"store.path":                   d.Store.Path,
		"documents.dir":                d.Documents.Dir,
		"documents.watch":              d.Documents.Watch,
		"documents.pdf_service_url":    "",
		"documents.pdf_service_script": "",
	}
}

// resetUndecodable replaces every value that cannot be decoded into its
// key's type with the default.
func resetUndecodable(v *viper.Viper, keys map[string]any) {
	for key, def := range keys {
		target := reflect.New(reflect.TypeOf(def))
		if err := v.UnmarshalKey(key, target.Interface()); err != nil {
			reset(key, v.Get(key), def)
			v.Set(key, def)
		}
	}
}

// Load reads configuration. An explicit path must exist; with an empty path
// ./courserag.yaml and ~/.config/courserag/courserag.yaml are tried and a missing
// file means defaults. Environment variables override file values. Values that
// are malformed or unrecognized fall back to their defaults with a warning.
func Load(path string) (*Config, error) {
	v := viper.New()
	keys := defaults()
	for key, def := range keys {
		v.SetDefault(key, def)
	}
	v.SetConfigType("yaml")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("courserag")
		v.AddConfigPath(".")
		if dir, err := userConfigDir(); err == nil {
			v.AddConfigPath(dir)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	resetUndecodable(v, keys)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.Embedding.APIKey == "" {
		cfg.Embedding.APIKey = os.Getenv("OPENAI_API_KEY")
	}

	cfg.Validate()
	return &cfg, nil
}

// Validate resets unrecognized names and out-of-range numbers to their
// defaults, logging each reset.
func (c *Config) Validate() {
	d := Default()
	c.LLM.Provider = oneOf("llm.provider", c.LLM.Provider, d.LLM.Provider, "openai", "ollama")
	c.Embedding.Provider = oneOf("embedding.provider", c.Embedding.Provider, d.Embedding.Provider, "ollama", "openai")
	c.Session.Backend = oneOf("session.backend", c.Session.Backend, d.Session.Backend, "memory", "redis")
	c.Store.Backend = oneOf("store.backend", c.Store.Backend, d.Store.Backend, "sqlite", "memory")

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		reset("llm.temperature", c.LLM.Temperature, d.LLM.Temperature)
		c.LLM.Temperature = d.LLM.Temperature
	}
	if c.LLM.MaxTokens <= 0 {
		reset("llm.max_tokens", c.LLM.MaxTokens, d.LLM.MaxTokens)
		c.LLM.MaxTokens = d.LLM.MaxTokens
	}
	if c.LLM.Timeout <= 0 {
		reset("llm.timeout", c.LLM.Timeout, d.LLM.Timeout)
		c.LLM.Timeout = d.LLM.Timeout
	}
	if c.Embedding.Timeout <= 0 {
		reset("embedding.timeout", c.Embedding.Timeout, d.Embedding.Timeout)
		c.Embedding.Timeout = d.Embedding.Timeout
	}
	if c.Chunking.Size <= 0 {
		reset("chunking.size", c.Chunking.Size, d.Chunking.Size)
		c.Chunking.Size = d.Chunking.Size
	}
	// Overlap stays below half the window so every chunk advances.
	if limit := max(c.Chunking.Size/2-1, 0); c.Chunking.Overlap < 0 || c.Chunking.Overlap > limit {
		overlap := min(d.Chunking.Overlap, limit)
		reset("chunking.overlap", c.Chunking.Overlap, overlap)
		c.Chunking.Overlap = overlap
	}
	if c.Search.MaxResults <= 0 {
		reset("search.max_results", c.Search.MaxResults, d.Search.MaxResults)
		c.Search.MaxResults = d.Search.MaxResults
	}
	if c.Session.MaxHistory <= 0 {
		reset("session.max_history", c.Session.MaxHistory, d.Session.MaxHistory)
		c.Session.MaxHistory = d.Session.MaxHistory
	}
	if c.Session.Redis.TTL < 0 {
		reset("session.redis.ttl", c.Session.Redis.TTL, time.Duration(0))
		c.Session.Redis.TTL = 0
	}
}

// oneOf returns value normalized to lower case when it is allowed, def otherwise.
func oneOf(key, value, def string, allowed ...string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if slices.Contains(allowed, normalized) {
		return normalized
	}
	reset(key, value, def)
	return def
}

func reset(key string, got, def any) {
	log.Printf("[WARN] Config %s=%v is invalid, using %v", key, got, def)
}

// Save writes cfg as YAML, creating parent directories.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// DefaultPath is where `config init` writes when no path is given.
func DefaultPath() (string, error) {
	dir, err := userConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "courserag.yaml"), nil
}

func userConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "courserag"), nil
}
