package configuration

import (
	"net/http"
	"os"
	"time"
)

// HTTP and token constants.
const (
	DefaultHTTPTimeout      = 120 * time.Second
	DefaultIdleConns        = 100
	DefaultIdleConnTimeout  = 90 * time.Second
	MaxOutputTokenCeiling   = 128000
	DefaultMaxOutputTokens  = 8000
	DefaultMinOutputTokens  = 1000
)

// Retry constants.
const (
	MaxAttemptCap            = 3
	DefaultBaseTimeout       = 90 * time.Second
	DefaultRetryTime         = 180 * time.Second
	DefaultTimeoutIncrement  = 30 * time.Second
	DefaultTokenShrinkFactor = 0.9
)

// Parser constants.
const (
	DefaultMinResponseChars = 20
)

// Cache and workflow constants.
const (
	DefaultCacheTTL     = 24 * time.Hour
	DefaultHistoryLimit = 20
)

// Audit record caps.
const (
	DefaultMaxRequestBytes  = 20 * 1024
	DefaultMaxResponseBytes = 1024 * 1024
)

// DefaultTrivialPhrases is the built-in trivial-response phrase list. A
// response containing any of these answered a different, smaller request than
// the one sent.
func DefaultTrivialPhrases() []string {
	return []string{"pong", "how can i help", "how can i assist"}
}

// DefaultConfig returns production-ready configuration with sensible
// defaults. The provider API key is resolved from the environment when
// APIKeyEnv is set and APIKey is empty.
func DefaultConfig() *Config {
	return &Config{
		HTTPTimeout: DefaultHTTPTimeout,
		HTTPClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:    DefaultIdleConns,
				IdleConnTimeout: DefaultIdleConnTimeout,
			},
		},
		Provider: ProviderConfig{
			Endpoint:  "https://api.openai.com/v1",
			APIKeyEnv: "OPENAI_API_KEY",
			Model:     "gpt-4o",
			Timeout:   DefaultBaseTimeout,
		},
		Retry: RetryConfig{
			MaxAttempts:       MaxAttemptCap,
			BaseTimeout:       DefaultBaseTimeout,
			RetryTime:         DefaultRetryTime,
			TimeoutIncrement:  DefaultTimeoutIncrement,
			MinOutputTokens:   DefaultMinOutputTokens,
			TokenShrinkFactor: DefaultTokenShrinkFactor,
			UseJitter:         true,
		},
		Parser: ParserConfig{
			MinResponseChars: DefaultMinResponseChars,
			TrivialPhrases:   DefaultTrivialPhrases(),
			MaxOutputTokens:  DefaultMaxOutputTokens,
		},
		Cache: CacheConfig{
			Enabled:   true,
			TTL:       DefaultCacheTTL,
			RedisAddr: "localhost:6379",
		},
		Audit: AuditConfig{
			MaxRequestBytes:  DefaultMaxRequestBytes,
			MaxResponseBytes: DefaultMaxResponseBytes,
		},
		Workflow: WorkflowConfig{
			HistoryLimit: DefaultHistoryLimit,
		},
	}
}

// Resolve fills derived fields: the API key from the environment and a
// default HTTP client when none is set. Call after constructing or loading a
// Config and before handing it to the client.
func (c *Config) Resolve() {
	if c.Provider.APIKey == "" && c.Provider.APIKeyEnv != "" {
		c.Provider.APIKey = os.Getenv(c.Provider.APIKeyEnv)
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{}
	}
	if c.Retry.MaxAttempts <= 0 || c.Retry.MaxAttempts > MaxAttemptCap {
		c.Retry.MaxAttempts = MaxAttemptCap
	}
	if c.Retry.TokenShrinkFactor <= 0 || c.Retry.TokenShrinkFactor >= 1 {
		c.Retry.TokenShrinkFactor = DefaultTokenShrinkFactor
	}
	if len(c.Parser.TrivialPhrases) == 0 {
		c.Parser.TrivialPhrases = DefaultTrivialPhrases()
	}
}

// FromProvider builds a Config from defaults overlaid with values read from
// the given key/value Provider. Keys mirror the JSON field paths with dots.
func FromProvider(p Provider) *Config {
	cfg := DefaultConfig()

	cfg.Provider.Endpoint = p.GetString("provider.endpoint", cfg.Provider.Endpoint)
	cfg.Provider.APIKeyEnv = p.GetString("provider.api_key_env", cfg.Provider.APIKeyEnv)
	cfg.Provider.Model = p.GetString("provider.model", cfg.Provider.Model)
	cfg.Provider.ReasoningEffort = p.GetString("provider.reasoning_effort", cfg.Provider.ReasoningEffort)
	cfg.Provider.Verbosity = p.GetString("provider.verbosity", cfg.Provider.Verbosity)

	cfg.Retry.MaxAttempts = p.GetInt("retry.max_attempts", cfg.Retry.MaxAttempts)
	cfg.Retry.BaseTimeout = p.GetDuration("retry.base_timeout", cfg.Retry.BaseTimeout)
	cfg.Retry.RetryTime = p.GetDuration("retry.retry_time", cfg.Retry.RetryTime)
	cfg.Retry.TimeoutIncrement = p.GetDuration("retry.timeout_increment", cfg.Retry.TimeoutIncrement)
	cfg.Retry.MinOutputTokens = p.GetInt("retry.min_output_tokens", cfg.Retry.MinOutputTokens)

	cfg.Parser.MinResponseChars = p.GetInt("parser.min_response_chars", cfg.Parser.MinResponseChars)
	cfg.Parser.MaxOutputTokens = p.GetInt("parser.max_output_tokens", cfg.Parser.MaxOutputTokens)

	cfg.Cache.Enabled = p.GetBool("cache.enabled", cfg.Cache.Enabled)
	cfg.Cache.TTL = p.GetDuration("cache.ttl", cfg.Cache.TTL)
	cfg.Cache.RedisAddr = p.GetString("cache.redis_addr", cfg.Cache.RedisAddr)

	cfg.Workflow.HistoryLimit = p.GetInt("workflow.history_limit", cfg.Workflow.HistoryLimit)
	cfg.Features.AIDisabled = p.GetBool("features.ai_disabled", cfg.Features.AIDisabled)

	cfg.Resolve()
	return cfg
}
