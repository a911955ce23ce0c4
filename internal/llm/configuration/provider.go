package configuration

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Provider abstracts a key/value settings store. The pipeline depends only on
// this interface, never on a particular storage engine; the default
// implementation reads the process environment.
type Provider interface {
	GetString(key, def string) string
	GetInt(key string, def int) int
	GetBool(key string, def bool) bool
	GetDuration(key string, def time.Duration) time.Duration
}

// EnvProvider resolves keys against environment variables. A key like
// "retry.max_attempts" maps to "<PREFIX>_RETRY_MAX_ATTEMPTS".
type EnvProvider struct {
	Prefix string
}

// NewEnvProvider returns an environment-backed Provider with the given
// variable prefix (typically "BIZCASE").
func NewEnvProvider(prefix string) *EnvProvider {
	return &EnvProvider{Prefix: prefix}
}

func (e *EnvProvider) envName(key string) string {
	name := strings.NewReplacer(".", "_", "-", "_").Replace(key)
	name = strings.ToUpper(name)
	if e.Prefix == "" {
		return name
	}
	return e.Prefix + "_" + name
}

// GetString returns the variable's value, or def when unset or empty.
func (e *EnvProvider) GetString(key, def string) string {
	if v := os.Getenv(e.envName(key)); v != "" {
		return v
	}
	return def
}

// GetInt returns the variable parsed as an integer, or def when unset or
// unparseable.
func (e *EnvProvider) GetInt(key string, def int) int {
	v := os.Getenv(e.envName(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// GetBool returns the variable parsed as a boolean, or def when unset or
// unparseable.
func (e *EnvProvider) GetBool(key string, def bool) bool {
	v := os.Getenv(e.envName(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// GetDuration returns the variable parsed as a time.Duration, or def when
// unset or unparseable.
func (e *EnvProvider) GetDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(e.envName(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

// MapProvider serves values from an in-memory map. Intended for tests and
// embedded defaults.
type MapProvider struct {
	Values map[string]string
}

// GetString returns the mapped value, or def when absent.
func (m *MapProvider) GetString(key, def string) string {
	if v, ok := m.Values[key]; ok {
		return v
	}
	return def
}

// GetInt returns the mapped value parsed as an integer, or def.
func (m *MapProvider) GetInt(key string, def int) int {
	v, ok := m.Values[key]
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// GetBool returns the mapped value parsed as a boolean, or def.
func (m *MapProvider) GetBool(key string, def bool) bool {
	v, ok := m.Values[key]
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// GetDuration returns the mapped value parsed as a duration, or def.
func (m *MapProvider) GetDuration(key string, def time.Duration) time.Duration {
	v, ok := m.Values[key]
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
