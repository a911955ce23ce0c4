// Package configuration holds the configuration tree for the LLM client and
// the analysis pipeline, plus the key/value Provider abstraction the core
// depends on instead of any particular settings store.
package configuration

import (
	"net/http"
	"time"
)

// Config holds comprehensive configuration for the LLM client and the
// orchestration pipeline built on top of it.
type Config struct {
	// HTTP client configuration.
	HTTPTimeout time.Duration `json:"http_timeout"`
	HTTPClient  *http.Client  `json:"-"`

	// Provider connection and credentials.
	Provider ProviderConfig `json:"provider"`

	// Retry policy for the transport layer.
	Retry RetryConfig `json:"retry"`

	// Response parsing thresholds and filters.
	Parser ParserConfig `json:"parser"`

	// Research cache configuration.
	Cache CacheConfig `json:"cache"`

	// Audit record encoding limits.
	Audit AuditConfig `json:"audit"`

	// Orchestrator settings.
	Workflow WorkflowConfig `json:"workflow"`

	// Feature flags.
	Features FeatureFlags `json:"features"`
}

// ProviderConfig holds provider endpoint, credentials, and request defaults.
type ProviderConfig struct {
	Endpoint  string            `json:"endpoint"`
	APIKey    string            `json:"-"` // Sensitive, not serialized
	APIKeyEnv string            `json:"api_key_env"`
	Model     string            `json:"model"`
	Timeout   time.Duration     `json:"timeout"`
	Headers   map[string]string `json:"headers"`

	// Request hints for model families that accept them. Empty values are
	// omitted from the outbound request body.
	ReasoningEffort string `json:"reasoning_effort,omitempty"`
	Verbosity       string `json:"verbosity,omitempty"`
}

// RetryConfig controls the transport retry loop. The effective wall-clock
// budget for one logical call is max(BaseTimeout, RetryTime); no sequence of
// attempts may exceed it by more than one in-flight attempt.
type RetryConfig struct {
	MaxAttempts       int           `json:"max_attempts"`       // Hard-capped at MaxAttemptCap
	BaseTimeout       time.Duration `json:"base_timeout"`       // First attempt's timeout
	RetryTime         time.Duration `json:"retry_time"`         // Configured total retry budget
	TimeoutIncrement  time.Duration `json:"timeout_increment"`  // Per-retry timeout growth
	MinOutputTokens   int           `json:"min_output_tokens"`  // Floor for token shrinking
	TokenShrinkFactor float64       `json:"token_shrink"`       // Applied to max tokens per retry
	UseJitter         bool          `json:"use_jitter"`         // 0-1s random addition to each sleep
}

// Budget returns the effective wall-clock budget for one logical call.
func (r RetryConfig) Budget() time.Duration {
	if r.RetryTime > r.BaseTimeout {
		return r.RetryTime
	}
	return r.BaseTimeout
}

// ParserConfig controls response extraction thresholds.
type ParserConfig struct {
	// MinResponseChars is the floor below which output is considered trivial.
	MinResponseChars int `json:"min_response_chars"`

	// TrivialPhrases are matched case-insensitively against the output; a hit
	// marks the response trivial. The list is configuration because it is a
	// guard against an observed provider misbehavior, not a general rule.
	TrivialPhrases []string `json:"trivial_phrases"`

	// MaxOutputTokens is the ceiling used for truncation detection: reported
	// output usage at or above it flags the envelope truncated.
	MaxOutputTokens int `json:"max_output_tokens"`
}

// CacheConfig controls the research cache.
type CacheConfig struct {
	Enabled       bool          `json:"enabled"`
	TTL           time.Duration `json:"ttl"`
	RedisAddr     string        `json:"redis_addr"`
	RedisPassword string        `json:"-"` // Sensitive
	RedisDB       int           `json:"redis_db"`
}

// AuditConfig bounds persisted audit record payloads.
type AuditConfig struct {
	MaxRequestBytes  int `json:"max_request_bytes"`
	MaxResponseBytes int `json:"max_response_bytes"`
}

// WorkflowConfig controls orchestrator behavior.
type WorkflowConfig struct {
	// HistoryLimit bounds how many completed run trails are retained.
	HistoryLimit int `json:"history_limit"`
}

// FeatureFlags gate pipeline behavior at runtime.
type FeatureFlags struct {
	// AIDisabled forces every phase onto its deterministic fallback and makes
	// the transport reject calls as a configuration error.
	AIDisabled bool `json:"ai_disabled"`
}
