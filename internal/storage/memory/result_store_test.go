package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/frisbee/internal/harvest"
)

func TestResultStoreKeepsArrivalOrder(t *testing.T) {
	t.Parallel()

	store := NewResultStore()
	store.Append(harvest.Outcome{Job: harvest.Job{Domain: "b.com"}})
	store.Append(harvest.Outcome{Job: harvest.Job{Domain: "a.com"}})

	outcomes := store.Outcomes()
	require.Len(t, outcomes, 2)
	assert.Equal(t, "b.com", outcomes[0].Domain)
	assert.Equal(t, "a.com", outcomes[1].Domain)
	assert.Equal(t, 2, store.Len())

	outcomes[0].Domain = "mutated"
	assert.Equal(t, "b.com", store.Outcomes()[0].Domain)
}

func TestResultStoreProcessedSetNormalizes(t *testing.T) {
	t.Parallel()

	store := NewResultStore()
	assert.True(t, store.MarkProcessed("A.com."))
	assert.False(t, store.MarkProcessed("a.com"))
	assert.True(t, store.IsProcessed(" a.COM "))
	assert.False(t, store.IsProcessed("b.com"))
	assert.True(t, store.MarkProcessed("b.com"))
	assert.Equal(t, []string{"a.com", "b.com"}, store.Processed())
}

func TestResultStorePersistedSet(t *testing.T) {
	t.Parallel()

	store := NewResultStore()
	assert.True(t, store.MarkPersisted("a.com"))
	assert.False(t, store.MarkPersisted("A.COM"))
	store.UnmarkPersisted("a.com")
	assert.True(t, store.MarkPersisted("a.com"))
}

type staticLister []harvest.Outcome

func (s staticLister) Results() []harvest.Outcome { return s }

func TestRunStoreLifecycle(t *testing.T) {
	t.Parallel()

	store := NewRunStore()
	ctx := context.Background()
	lister := staticLister{{Job: harvest.Job{Domain: "a.com"}}}

	require.NoError(t, store.CreateRun(ctx, Run{Project: "brave_turing_1234", Jobs: 1, Source: lister}))
	require.Error(t, store.CreateRun(ctx, Run{Project: "brave_turing_1234"}))

	run, err := store.GetRun(ctx, "brave_turing_1234")
	require.NoError(t, err)
	assert.Equal(t, harvest.RunStatusRunning, run.Status)
	assert.False(t, run.Started.IsZero())
	assert.Nil(t, run.Finished)
	assert.Len(t, run.Outcomes(), 1)

	require.NoError(t, store.FinishRun(ctx, "brave_turing_1234", nil))
	run, err = store.GetRun(ctx, "brave_turing_1234")
	require.NoError(t, err)
	assert.Equal(t, harvest.RunStatusDone, run.Status)
	require.NotNil(t, run.Finished)

	require.ErrorIs(t, store.FinishRun(ctx, "missing", nil), ErrRunNotFound)
	_, err = store.GetRun(ctx, "missing")
	require.ErrorIs(t, err, ErrRunNotFound)
}

func TestRunStoreFailedRunAndListing(t *testing.T) {
	t.Parallel()

	store := NewRunStore()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.CreateRun(ctx, Run{Project: "old", Started: base}))
	require.NoError(t, store.CreateRun(ctx, Run{Project: "new", Started: base.Add(time.Hour)}))
	require.NoError(t, store.FinishRun(ctx, "old", errors.New("boom")))

	runs := store.ListRuns(ctx)
	require.Len(t, runs, 2)
	assert.Equal(t, "new", runs[0].Project)
	assert.Equal(t, harvest.RunStatusFailed, runs[1].Status)
	assert.Equal(t, "boom", runs[1].ErrorText)
	assert.Empty(t, runs[0].Outcomes())
}

func TestRunStoreAddProgress(t *testing.T) {
	t.Parallel()

	store := NewRunStore()
	ctx := context.Background()
	require.NoError(t, store.CreateRun(ctx, Run{Project: "p"}))
	require.NoError(t, store.AddProgress(ctx, "p", Progress{Queued: 3}))
	require.NoError(t, store.AddProgress(ctx, "p", Progress{Completed: 1, Failed: 1, Emails: 4, Derived: 1}))
	require.ErrorIs(t, store.AddProgress(ctx, "missing", Progress{Queued: 1}), ErrRunNotFound)

	run, err := store.GetRun(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, Progress{Queued: 3, Completed: 1, Failed: 1, Derived: 1, Emails: 4}, run.Progress)
	assert.Equal(t, 1, run.Progress.Pending())
}
