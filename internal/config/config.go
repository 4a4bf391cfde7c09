// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.studyowl/config.yaml, or ./config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - AI: provider, generation model, classifier model, embedder
//   - Storage: data directory holding the index/metadata file pairs
//   - Cache: similarity threshold and top-k
//   - Sources: API keys, endpoints, rate/timeout posture per external source
//   - Server: listen address, CORS, rate limiting
//
// Security: API keys are never logged; MarshalJSON masks them.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrInvalidProvider indicates the AI provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidDimension indicates the embedder dimension is out of range.
	ErrInvalidDimension = errors.New("invalid embedder dimension")

	// ErrInvalidThreshold indicates the cache similarity threshold is out of range.
	ErrInvalidThreshold = errors.New("invalid cache threshold")

	// ErrInvalidTopK indicates the retrieval top-k is out of range.
	ErrInvalidTopK = errors.New("invalid top k")

	// ErrInvalidTimeout indicates a timeout value is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout")

	// ErrMissingDataDir indicates the data directory is empty.
	ErrMissingDataDir = errors.New("missing data directory")
)

// AI provider identifiers used in Config.Provider.
const (
	ProviderGoogleAI = "googleai"
	ProviderOllama   = "ollama"
)

// DefaultEmbedderDimension matches gemini-embedding-001 truncated output.
// Every vector index in the data directory is built with this dimension
// unless overridden; changing it requires rebuilding the knowledge base.
const DefaultEmbedderDimension = 768

// Config stores application configuration.
// SECURITY: sensitive fields are explicitly masked in MarshalJSON.
type Config struct {
	// AI provider and model configuration
	Provider        string `mapstructure:"provider" json:"provider"`
	ModelName       string `mapstructure:"model_name" json:"model_name"`
	ClassifierModel string `mapstructure:"classifier_model" json:"classifier_model"` // empty = ModelName
	EmbedderModel   string `mapstructure:"embedder_model" json:"embedder_model"`
	EmbedderDim     int    `mapstructure:"embedder_dimension" json:"embedder_dimension"`
	OllamaHost      string `mapstructure:"ollama_host" json:"ollama_host"`

	// Storage configuration: DataDir holds the knowledge-base, query-memory
	// and response-memory index/metadata file pairs.
	DataDir string `mapstructure:"data_dir" json:"data_dir"`

	// Retrieval and cache configuration
	TopK           int     `mapstructure:"top_k" json:"top_k"`
	CacheThreshold float64 `mapstructure:"cache_threshold" json:"cache_threshold"`

	// External source configuration
	StackExchangeKey     string        `mapstructure:"stack_exchange_key" json:"stack_exchange_key"` // SENSITIVE
	StackExchangeSite    string        `mapstructure:"stack_exchange_site" json:"stack_exchange_site"`
	StackExchangeBaseURL string        `mapstructure:"stack_exchange_base_url" json:"stack_exchange_base_url"`
	StackBackoff         time.Duration `mapstructure:"stack_backoff" json:"stack_backoff"`
	YouTubeKey           string        `mapstructure:"youtube_key" json:"youtube_key"` // SENSITIVE
	YouTubeMaxResults    int           `mapstructure:"youtube_max_results" json:"youtube_max_results"`
	YouTubeBaseURL       string        `mapstructure:"youtube_base_url" json:"youtube_base_url"`
	WikipediaBaseURL     string        `mapstructure:"wikipedia_base_url" json:"wikipedia_base_url"`
	SourceTimeout        time.Duration `mapstructure:"source_timeout" json:"source_timeout"`

	// Server configuration (serve mode only)
	HTTPAddr    string   `mapstructure:"http_addr" json:"http_addr"`
	CORSOrigins []string `mapstructure:"cors_origins" json:"cors_origins"`
	TrustProxy  bool     `mapstructure:"trust_proxy" json:"trust_proxy"`
	RateBurst   int      `mapstructure:"rate_burst" json:"rate_burst"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".studyowl")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	setDefaults(v, configDir)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; defaults apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper, configDir string) {
	// AI defaults
	v.SetDefault("provider", ProviderGoogleAI)
	v.SetDefault("model_name", "gemini-2.5-flash")
	v.SetDefault("classifier_model", "")
	v.SetDefault("embedder_model", "gemini-embedding-001")
	v.SetDefault("embedder_dimension", DefaultEmbedderDimension)
	v.SetDefault("ollama_host", "http://localhost:11434")

	// Storage defaults
	v.SetDefault("data_dir", filepath.Join(configDir, "data"))

	// Retrieval/cache defaults
	v.SetDefault("top_k", 3)
	v.SetDefault("cache_threshold", 0.05)

	// Source defaults
	v.SetDefault("stack_exchange_site", "stackoverflow")
	v.SetDefault("stack_exchange_base_url", "https://api.stackexchange.com/2.3")
	v.SetDefault("stack_backoff", time.Minute)
	v.SetDefault("youtube_max_results", 3)
	v.SetDefault("youtube_base_url", "https://www.googleapis.com")
	v.SetDefault("wikipedia_base_url", "https://en.wikipedia.org")
	v.SetDefault("source_timeout", 10*time.Second)

	// Server defaults
	v.SetDefault("http_addr", "127.0.0.1:8080")
	v.SetDefault("cors_origins", []string{"http://localhost:5173"})
	v.SetDefault("trust_proxy", false)
	v.SetDefault("rate_burst", 60)
}

// bindEnvVariables binds sensitive environment variables explicitly.
// GEMINI_API_KEY is read directly by Genkit, not via viper.
func bindEnvVariables(v *viper.Viper) {
	// Hardcoded keys can't fail to bind; a failure here is a bug.
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("stack_exchange_key", "STACK_EXCHANGE_KEY")
	mustBind("youtube_key", "YOUTUBE_API_KEY")
	mustBind("provider", "STUDYOWL_PROVIDER")
	mustBind("model_name", "STUDYOWL_MODEL_NAME")
	mustBind("ollama_host", "STUDYOWL_OLLAMA_HOST")
	mustBind("data_dir", "STUDYOWL_DATA_DIR")
	mustBind("http_addr", "STUDYOWL_HTTP_ADDR")
	mustBind("trust_proxy", "STUDYOWL_TRUST_PROXY")
}

// ClassifierModelName returns the model used for source classification,
// falling back to the main generation model.
func (c *Config) ClassifierModelName() string {
	if c.ClassifierModel != "" {
		return c.ClassifierModel
	}
	return c.ModelName
}

// maskedValue is the placeholder for masked sensitive data.
const maskedValue = "████████"

// maskSecret masks a secret for safe logging. Short secrets are fully
// masked; longer ones keep two characters on each end for debug utility.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with sensitive field masking.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.StackExchangeKey = maskSecret(a.StackExchangeKey)
	a.YouTubeKey = maskSecret(a.YouTubeKey)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
