package jobs

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/bizcase/internal/domain"
)

func TestStore_Lifecycle(t *testing.T) {
	store := NewStore()

	job := store.Create("job-1")
	assert.Equal(t, StatusPending, job.Status)
	assert.False(t, job.Terminal())

	store.Progress("job-1", "enrichment", "researching company profile", 10)
	got, ok := store.Get("job-1")
	require.True(t, ok)
	assert.Equal(t, "enrichment", got.Step)
	assert.Equal(t, "researching company profile", got.Message)
	assert.Equal(t, 10, got.Percent)
	assert.Equal(t, StatusPending, got.Status)

	result := &domain.AnalysisResult{RunID: "run-1", Succeeded: true}
	store.Complete("job-1", result)

	got, ok = store.Get("job-1")
	require.True(t, ok)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Equal(t, 100, got.Percent)
	assert.True(t, got.Terminal())
	require.NotNil(t, got.Result)
	assert.Equal(t, "run-1", got.Result.RunID)
}

func TestStore_FailSetsError(t *testing.T) {
	store := NewStore()
	store.Create("job-1")

	store.Fail("job-1", "analysis could not start")

	got, ok := store.Get("job-1")
	require.True(t, ok)
	assert.Equal(t, StatusError, got.Status)
	assert.Equal(t, "analysis could not start", got.Error)
	assert.True(t, got.Terminal())
}

func TestStore_TerminalJobsImmutable(t *testing.T) {
	store := NewStore()
	store.Create("job-1")
	store.Complete("job-1", &domain.AnalysisResult{RunID: "run-1"})

	// Late progress and failure reports from a racing worker are dropped.
	store.Progress("job-1", "late", "should not apply", 50)
	store.Fail("job-1", "should not apply either")

	got, ok := store.Get("job-1")
	require.True(t, ok)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Equal(t, 100, got.Percent)
	assert.Empty(t, got.Error)
	assert.NotEqual(t, "late", got.Step)
}

func TestStore_UnknownJobIgnored(t *testing.T) {
	store := NewStore()

	store.Progress("ghost", "step", "msg", 10)
	store.Complete("ghost", nil)
	store.Fail("ghost", "err")

	_, ok := store.Get("ghost")
	assert.False(t, ok)
}

func TestStore_PercentClamped(t *testing.T) {
	store := NewStore()
	store.Create("job-1")

	store.Progress("job-1", "a", "m", -5)
	got, _ := store.Get("job-1")
	assert.Equal(t, 0, got.Percent)

	store.Progress("job-1", "a", "m", 150)
	got, _ = store.Get("job-1")
	assert.Equal(t, 100, got.Percent)
}

func TestStore_Delete(t *testing.T) {
	store := NewStore()
	store.Create("job-1")
	store.Delete("job-1")

	_, ok := store.Get("job-1")
	assert.False(t, ok)
}

func TestStore_ReadersNeverSeePartialUpdates(t *testing.T) {
	store := NewStore()
	store.Create("job-1")

	// Writers replace whole records; a concurrent reader must always observe
	// a step and message that were written together.
	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			if i%2 == 0 {
				store.Progress("job-1", "even", "even message", 10)
			} else {
				store.Progress("job-1", "odd", "odd message", 20)
			}
		}
	}()

	for i := 0; i < 1000; i++ {
		got, ok := store.Get("job-1")
		require.True(t, ok)
		switch got.Step {
		case "even":
			assert.Equal(t, "even message", got.Message)
			assert.Equal(t, 10, got.Percent)
		case "odd":
			assert.Equal(t, "odd message", got.Message)
			assert.Equal(t, 20, got.Percent)
		case "":
			// Not yet written.
		default:
			t.Fatalf("unexpected step %q", got.Step)
		}
	}

	close(stop)
	wg.Wait()
}
