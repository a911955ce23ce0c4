package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"
)

// Issue identifies one kind of detected corruption.
type Issue string

const (
	// IssueInvalidJSON indicates the stored body no longer parses.
	IssueInvalidJSON Issue = "invalid_json"

	// IssueMismatch indicates the stored body differs byte-for-byte from the
	// original.
	IssueMismatch Issue = "mismatch"
)

// Report summarizes corruption findings for one record.
type Report struct {
	LogID     string  `json:"log_id"`
	Corrupted bool    `json:"corrupted"`
	Issues    []Issue `json:"issues,omitempty"`
}

// Guard validates and repairs persisted bodies. Repair is intentionally
// conservative: it only removes clearly-invalid syntax and never invents
// data.
type Guard struct {
	logger *slog.Logger
}

// NewGuard creates a corruption guard.
func NewGuard() *Guard {
	return &Guard{logger: slog.Default().With("component", "corruption-guard")}
}

// Validate reports whether the body parses as JSON.
func (g *Guard) Validate(body string) bool {
	return json.Valid([]byte(body))
}

// DetectCorruption compares a stored body against the original.
func (g *Guard) DetectCorruption(logID, stored, original string) Report {
	report := Report{LogID: logID}
	if !g.Validate(stored) {
		report.Issues = append(report.Issues, IssueInvalidJSON)
	}
	if stored != original {
		report.Issues = append(report.Issues, IssueMismatch)
	}
	report.Corrupted = len(report.Issues) > 0
	return report
}

var trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)

// Repair attempts a short, ordered list of mechanical fixes and returns the
// first variant that parses; if none do, the input is returned unchanged.
// Repair is idempotent and is the identity on valid JSON.
func (g *Guard) Repair(body string) string {
	if g.Validate(body) {
		return body
	}

	// Fix 1: trailing commas before a closing brace or bracket.
	fixed := trailingCommaPattern.ReplaceAllString(body, "$1")
	if g.Validate(fixed) {
		return fixed
	}

	// Fix 2: trailing garbage after the final closing delimiter.
	if idx := strings.LastIndexAny(fixed, "}]"); idx >= 0 {
		if candidate := fixed[:idx+1]; g.Validate(candidate) {
			return candidate
		}
	}

	// Fix 3: close unbalanced braces and brackets.
	if candidate := closeUnbalanced(fixed); g.Validate(candidate) {
		return candidate
	}

	return body
}

// closeUnbalanced appends the closers for any containers left open outside
// string literals, innermost first.
func closeUnbalanced(body string) string {
	var stack []byte
	inString := false
	escaped := false
	for i := 0; i < len(body); i++ {
		c := body[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			stack = append(stack, '}')
		case c == '[':
			stack = append(stack, ']')
		case c == '}' || c == ']':
			if len(stack) > 0 && stack[len(stack)-1] == c {
				stack = stack[:len(stack)-1]
			}
		}
	}

	var b strings.Builder
	b.WriteString(body)
	if inString {
		b.WriteByte('"')
	}
	for i := len(stack) - 1; i >= 0; i-- {
		b.WriteByte(stack[i])
	}
	return b.String()
}

// ReprocessFunc receives each corrupted record with its repaired response
// body.
type ReprocessFunc func(rec Record, repaired string) error

// Reprocess walks the most recent limit records, invokes the callback for
// every record whose response body is corrupted, and returns how many were
// handled. Callback failures are logged and counted, not fatal: batch
// remediation should see every record.
func (g *Guard) Reprocess(ctx context.Context, store LogStore, cb ReprocessFunc, limit int) (int, error) {
	records, err := store.Recent(ctx, limit)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, rec := range records {
		if g.Validate(rec.ResponseJSON) {
			continue
		}
		count++
		repaired := g.Repair(rec.ResponseJSON)
		if cb == nil {
			continue
		}
		if err := cb(rec, repaired); err != nil {
			g.logger.Warn("reprocess callback failed",
				"log_id", rec.LogID,
				"error", err)
		}
	}
	return count, nil
}
