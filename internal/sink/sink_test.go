package sink

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/frisbee/internal/harvest"
	pubmemory "github.com/JakeFAU/frisbee/internal/publisher/memory"
	"github.com/JakeFAU/frisbee/internal/storage/memory"
)

type fixedIDs string

func (f fixedIDs) Disambiguator() string { return string(f) }

func sampleOutcome() harvest.Outcome {
	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	return harvest.Outcome{
		Job:       harvest.Job{Engine: "bing", Domain: "a.com", Limit: 10},
		Project:   "brave_turing_0001",
		Status:    harvest.JobStatusCompleted,
		StartTime: start,
		EndTime:   start.Add(4 * time.Second),
		Results:   harvest.Results{Emails: []string{"x@a.com", "y@a.com"}, Processed: 5},
	}
}

func TestBlobWritesBothArtifacts(t *testing.T) {
	t.Parallel()

	store := memory.NewBlobStore()
	b := NewBlob(store, "/runs/", fixedIDs("123456"), nil)

	require.NoError(t, b.Persist(context.Background(), sampleOutcome()))

	assert.Equal(t, []string{
		"runs/brave_turing_0001/brave_turing_0001_a.com_123456_emails.txt",
		"runs/brave_turing_0001/brave_turing_0001_a.com_123456_job.json",
	}, store.Keys())

	emails, contentType, ok := store.Get("runs/brave_turing_0001/brave_turing_0001_a.com_123456_emails.txt")
	require.True(t, ok)
	assert.Equal(t, "x@a.com\ny@a.com\n", string(emails))
	assert.Equal(t, ContentTypeText, contentType)

	record, _, ok := store.Get("runs/brave_turing_0001/brave_turing_0001_a.com_123456_job.json")
	require.True(t, ok)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(record, &decoded))
	assert.Equal(t, "brave_turing_0001", decoded["project"])
	assert.Equal(t, "4", decoded["duration"])
	assert.Equal(t, "2024-03-01 09:00:04", decoded["end_time"])
	assert.NotContains(t, decoded, "modifier")
}

func TestBlobArtifactNamesWithoutPrefix(t *testing.T) {
	t.Parallel()

	b := NewBlob(memory.NewBlobStore(), "", fixedIDs("1"), nil)
	jobPath, emailsPath := b.ArtifactNames(sampleOutcome(), "654321")
	assert.Equal(t, "brave_turing_0001/brave_turing_0001_a.com_654321_job.json", jobPath)
	assert.Equal(t, "brave_turing_0001/brave_turing_0001_a.com_654321_emails.txt", emailsPath)
}

type failingStore struct {
	err   error
	calls int
}

func (f *failingStore) PutObject(context.Context, string, string, io.Reader) (string, error) {
	f.calls++
	return "", f.err
}

func TestBlobStopsOnRecordFailure(t *testing.T) {
	t.Parallel()

	store := &failingStore{err: errors.New("disk full")}
	b := NewBlob(store, "", fixedIDs("123456"), nil)

	err := b.Persist(context.Background(), sampleOutcome())
	require.ErrorContains(t, err, "disk full")
	assert.Equal(t, 1, store.calls)
}

func TestPublishSendsNotice(t *testing.T) {
	t.Parallel()

	pub := pubmemory.New(0)
	s := NewPublish(pub, "outcomes")

	outcome := sampleOutcome()
	outcome.Status = harvest.JobStatusFailed
	outcome.Err = harvest.ErrNoTargets
	require.NoError(t, s.Persist(context.Background(), outcome))

	msgs := pub.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "outcomes", msgs[0].Topic)
	payload, ok := msgs[0].Payload.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "a.com", payload["domain"])
	assert.Equal(t, 2, payload["emails"])
	assert.Equal(t, "failed", payload["status"])
	assert.Equal(t, harvest.ErrNoTargets.Error(), payload["error"])
}

type mockSink struct{ mock.Mock }

func (m *mockSink) Persist(ctx context.Context, outcome harvest.Outcome) error {
	return m.Called(ctx, outcome).Error(0)
}

func TestMultiCallsEverySinkAndJoinsErrors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	outcome := sampleOutcome()
	boom := errors.New("boom")

	first := &mockSink{}
	first.On("Persist", ctx, outcome).Return(boom).Once()
	second := &mockSink{}
	second.On("Persist", ctx, outcome).Return(nil).Once()

	err := Multi{first, second}.Persist(ctx, outcome)
	require.ErrorIs(t, err, boom)
	first.AssertExpectations(t)
	second.AssertExpectations(t)

	assert.NoError(t, Multi{}.Persist(ctx, outcome))
}
