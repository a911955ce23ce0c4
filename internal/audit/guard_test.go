package audit

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuard_Validate(t *testing.T) {
	g := NewGuard()

	assert.True(t, g.Validate(`{"ok": true}`))
	assert.True(t, g.Validate(`[1, 2, 3]`))
	assert.True(t, g.Validate(`"string"`))
	assert.False(t, g.Validate(`{"ok": true`))
	assert.False(t, g.Validate(`not json`))
	assert.False(t, g.Validate(``))
}

func TestGuard_DetectCorruption(t *testing.T) {
	g := NewGuard()

	tests := []struct {
		name       string
		stored     string
		original   string
		wantIssues []Issue
	}{
		{
			name:     "clean record",
			stored:   `{"a":1}`,
			original: `{"a":1}`,
		},
		{
			name:       "invalid stored body",
			stored:     `{"a":1`,
			original:   `{"a":1`,
			wantIssues: []Issue{IssueInvalidJSON},
		},
		{
			name:       "byte mismatch only",
			stored:     `{"a":1}`,
			original:   `{"a": 1}`,
			wantIssues: []Issue{IssueMismatch},
		},
		{
			name:       "both issues",
			stored:     `{"a":1`,
			original:   `{"a":1}`,
			wantIssues: []Issue{IssueInvalidJSON, IssueMismatch},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := g.DetectCorruption("log-1", tt.stored, tt.original)
			assert.Equal(t, "log-1", report.LogID)
			assert.Equal(t, len(tt.wantIssues) > 0, report.Corrupted)
			assert.Equal(t, tt.wantIssues, report.Issues)
		})
	}
}

func TestGuard_Repair(t *testing.T) {
	g := NewGuard()

	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "valid json untouched",
			body: `{"a": 1, "b": [2, 3]}`,
			want: `{"a": 1, "b": [2, 3]}`,
		},
		{
			name: "trailing comma in object",
			body: `{"a": 1,}`,
			want: `{"a": 1}`,
		},
		{
			name: "trailing comma in array",
			body: `{"list": [1, 2,]}`,
			want: `{"list": [1, 2]}`,
		},
		{
			name: "trailing garbage after close",
			body: `{"a": 1} and some log noise`,
			want: `{"a": 1}`,
		},
		{
			name: "unclosed object",
			body: `{"a": {"b": 1}`,
			want: `{"a": {"b": 1}}`,
		},
		{
			name: "unclosed array",
			body: `{"list": [1, 2`,
			want: `{"list": [1, 2]}`,
		},
		{
			name: "braces inside string literals ignored",
			body: `{"text": "a { b ] c"`,
			want: `{"text": "a { b ] c"}`,
		},
		{
			name: "unrepairable returns input",
			body: `complete nonsense`,
			want: `complete nonsense`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repaired := g.Repair(tt.body)
			assert.Equal(t, tt.want, repaired)

			// Repair is idempotent: a second pass is the identity.
			assert.Equal(t, repaired, g.Repair(repaired))
		})
	}
}

func TestGuard_RepairNeverInventsKeys(t *testing.T) {
	g := NewGuard()
	repaired := g.Repair(`{"a": 1,}`)

	// The repaired body contains exactly the original data.
	assert.JSONEq(t, `{"a": 1}`, repaired)
}

func TestGuard_Reprocess(t *testing.T) {
	g := NewGuard()
	store := NewMemoryLogStore(10)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, Record{LogID: "clean", ResponseJSON: `{"ok": true}`}))
	require.NoError(t, store.Append(ctx, Record{LogID: "broken-1", ResponseJSON: `{"a": 1,}`}))
	require.NoError(t, store.Append(ctx, Record{LogID: "broken-2", ResponseJSON: `{"b": [1`}))

	var seen []string
	count, err := g.Reprocess(ctx, store, func(rec Record, repaired string) error {
		seen = append(seen, rec.LogID)
		assert.True(t, g.Validate(repaired), "callback must receive a repaired body when repair succeeds")
		return nil
	}, 10)

	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.ElementsMatch(t, []string{"broken-1", "broken-2"}, seen)
}

func TestGuard_ReprocessCallbackErrorsNotFatal(t *testing.T) {
	g := NewGuard()
	store := NewMemoryLogStore(10)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, store.Append(ctx, Record{
			LogID:        fmt.Sprintf("rec-%d", i),
			ResponseJSON: `{"broken": `,
		}))
	}

	calls := 0
	count, err := g.Reprocess(ctx, store, func(Record, string) error {
		calls++
		return errors.New("downstream unavailable")
	}, 10)

	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.Equal(t, 3, calls, "every corrupted record is visited despite callback failures")
}

func TestGuard_ReprocessRespectsLimit(t *testing.T) {
	g := NewGuard()
	store := NewMemoryLogStore(10)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, Record{LogID: "old", ResponseJSON: `{"broken": `}))
	require.NoError(t, store.Append(ctx, Record{LogID: "new", ResponseJSON: `{"broken": `}))

	var seen []string
	count, err := g.Reprocess(ctx, store, func(rec Record, _ string) error {
		seen = append(seen, rec.LogID)
		return nil
	}, 1)

	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, []string{"new"}, seen, "the most recent records are walked first")
}
