// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"flashcard-generator/internal/domain"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type AdminConfig struct {
	Port int `yaml:"port"` // 0 disables the admin server
}

type DatabaseConfig struct {
	URL      string `yaml:"url"` // empty disables the job ledger
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"` // empty disables the result cache
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type AIConfig struct {
	Provider        string        `yaml:"provider"` // gemini | openai | metis
	GeminiKey       string        `yaml:"gemini_key"`
	GeminiURL       string        `yaml:"gemini_url"`
	OpenAIKey       string        `yaml:"openai_key"`
	MetisKey        string        `yaml:"metis_key"`
	MetisBaseURL    string        `yaml:"metis_base_url"`
	Model           string        `yaml:"model"`
	MaxOutputTokens int           `yaml:"max_output_tokens"`
	ConcurrentLimit int           `yaml:"concurrent_limit"` // max concurrent AI calls
	CallTimeout     time.Duration `yaml:"call_timeout"`
}

type DispatchConfig struct {
	MaxWorkers       int           `yaml:"max_workers"`
	MaxAttempts      int           `yaml:"max_attempts"`
	RateLimitDelay   time.Duration `yaml:"rate_limit_delay"` // used when the error carries no hint
	RetryDelay       time.Duration `yaml:"retry_delay"`
	PostSuccessPause *time.Duration `yaml:"post_success_pause"` // unset means 500ms; "0s" disables
	SkipExisting     *bool         `yaml:"skip_existing"`
}

type OutputConfig struct {
	Dir        string `yaml:"dir"`         // base dir; batches write to <dir>/<source folder>
	PromptFile string `yaml:"prompt_file"` // overrides the built-in prompt
}

type CompareConfig struct {
	PromptsFile     string `yaml:"prompts_file"`
	OutputDir       string `yaml:"output_dir"`
	EvalTokenBudget int    `yaml:"eval_token_budget"` // per variant
	Encoding        string `yaml:"encoding"`
}

type NotifyConfig struct {
	Telegram struct {
		Token  string `yaml:"token"`
		ChatID int64  `yaml:"chat_id"`
	} `yaml:"telegram"`
}

type Config struct {
	Log      LogConfig      `yaml:"log"`
	Admin    AdminConfig    `yaml:"admin"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	AI       AIConfig       `yaml:"ai"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Output   OutputConfig   `yaml:"output"`
	Compare  CompareConfig  `yaml:"compare"`
	Notify   NotifyConfig   `yaml:"notify"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads .env (if present), then the YAML file at path, then applies
// environment overrides and defaults. A missing YAML file is not an error: the
// tool is usable with GOOGLE_API_KEY alone.
func LoadConfig(path string, dev bool) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	cfg.Runtime.Dev = dev

	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("GOOGLE_API_KEY"); v != "" && cfg.AI.GeminiKey == "" {
		cfg.AI.GeminiKey = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" && cfg.AI.OpenAIKey == "" {
		cfg.AI.OpenAIKey = v
	}
	if v := os.Getenv("METIS_API_KEY"); v != "" && cfg.AI.MetisKey == "" {
		cfg.AI.MetisKey = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" && cfg.Database.URL == "" {
		cfg.Database.URL = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	cfg.AI.Provider = strings.ToLower(strings.TrimSpace(cfg.AI.Provider))
	if cfg.AI.Provider == "" {
		cfg.AI.Provider = guessProvider(cfg.AI)
	}
	if cfg.AI.Model == "" {
		switch cfg.AI.Provider {
		case "openai", "metis":
			cfg.AI.Model = "gpt-4o-mini"
		default:
			cfg.AI.Model = "gemini-2.0-flash"
		}
	}
	if cfg.AI.MetisBaseURL == "" {
		cfg.AI.MetisBaseURL = "https://api.metisai.ir/openai/v1"
	}
	if cfg.AI.MaxOutputTokens <= 0 {
		cfg.AI.MaxOutputTokens = 8192
	}
	if cfg.AI.ConcurrentLimit < 0 {
		cfg.AI.ConcurrentLimit = 0
	}
	if cfg.AI.CallTimeout <= 0 {
		cfg.AI.CallTimeout = 5 * time.Minute
	}

	// free-tier friendly: 5 workers, 3 attempts
	if cfg.Dispatch.MaxWorkers <= 0 {
		cfg.Dispatch.MaxWorkers = 5
	}
	if cfg.Dispatch.MaxAttempts <= 0 {
		cfg.Dispatch.MaxAttempts = 3
	}
	if cfg.Dispatch.RateLimitDelay <= 0 {
		cfg.Dispatch.RateLimitDelay = 10 * time.Second
	}
	if cfg.Dispatch.RetryDelay <= 0 {
		cfg.Dispatch.RetryDelay = 2 * time.Second
	}
	if p := cfg.Dispatch.PostSuccessPause; p == nil {
		pause := 500 * time.Millisecond
		cfg.Dispatch.PostSuccessPause = &pause
	} else if *p < 0 {
		*p = 0
	}
	if cfg.Dispatch.SkipExisting == nil {
		skip := true
		cfg.Dispatch.SkipExisting = &skip
	}

	if cfg.Output.Dir == "" {
		cfg.Output.Dir = "remnote_cards"
	}
	if cfg.Compare.PromptsFile == "" {
		cfg.Compare.PromptsFile = "prompts.md"
	}
	if cfg.Compare.OutputDir == "" {
		cfg.Compare.OutputDir = "prompt_test_results"
	}
	if cfg.Compare.EvalTokenBudget <= 0 {
		cfg.Compare.EvalTokenBudget = 500
	}
	if cfg.Compare.Encoding == "" {
		cfg.Compare.Encoding = "cl100k_base"
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 4
	}
}

func guessProvider(ai AIConfig) string {
	switch {
	case ai.GeminiKey != "":
		return "gemini"
	case ai.MetisKey != "":
		return "metis"
	case ai.OpenAIKey != "":
		return "openai"
	default:
		return "gemini"
	}
}

// Validate reports configuration errors. Dev mode runs without a credential
// against the noop adapter.
func (c *Config) Validate() error {
	switch c.AI.Provider {
	case "gemini", "openai", "metis":
	default:
		return fmt.Errorf("ai.provider %q: %w", c.AI.Provider, domain.ErrInvalidArgument)
	}
	if c.Runtime.Dev {
		return nil
	}
	if c.APIKey() == "" {
		return fmt.Errorf("%w: set GOOGLE_API_KEY or ai.%s_key", domain.ErrMissingCredential, c.AI.Provider)
	}
	return nil
}

// APIKey returns the credential of the selected provider.
func (c *Config) APIKey() string {
	switch c.AI.Provider {
	case "openai":
		return c.AI.OpenAIKey
	case "metis":
		return c.AI.MetisKey
	default:
		return c.AI.GeminiKey
	}
}

func (c *Config) SkipExisting() bool {
	return c.Dispatch.SkipExisting != nil && *c.Dispatch.SkipExisting
}

func (c *Config) PostSuccessPause() time.Duration {
	if c.Dispatch.PostSuccessPause == nil {
		return 0
	}
	return *c.Dispatch.PostSuccessPause
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return 7 * 24 * time.Hour
	}
	return d
}
