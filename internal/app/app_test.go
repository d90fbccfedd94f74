// Package app_test contains unit tests for the app package.
package app_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/frisbee/internal/app"
	"github.com/JakeFAU/frisbee/internal/config"
	"github.com/JakeFAU/frisbee/internal/harvest"
	memorypublisher "github.com/JakeFAU/frisbee/internal/publisher/memory"
	"github.com/JakeFAU/frisbee/internal/storage/memory"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

// serpFetcher answers Bing result pages with one hit and the hit with a contact page.
type serpFetcher struct {
	mu      sync.Mutex
	fetched []string
}

func (f *serpFetcher) Fetch(_ context.Context, url string) (harvest.Page, error) {
	f.mu.Lock()
	f.fetched = append(f.fetched, url)
	f.mu.Unlock()

	switch {
	case strings.Contains(url, "/search?"):
		body := `<html><body><ol><li class="b_algo"><h2><a href="https://example.com/contact">Contact</a></h2></li></ol></body></html>`
		return harvest.Page{URL: url, StatusCode: http.StatusOK, Body: []byte(body)}, nil
	case url == "https://example.com/contact":
		body := `<html><body><p>sales@example.com</p><p>info@example.org</p><p>press@elsewhere.net</p></body></html>`
		return harvest.Page{URL: url, StatusCode: http.StatusOK, Body: []byte(body)}, nil
	default:
		return harvest.Page{}, fmt.Errorf("unexpected url %s", url)
	}
}

func baseConfig() config.Config {
	return config.Config{
		Server:  config.ServerConfig{Port: 8080},
		Harvest: config.HarvestConfig{Workers: 2, QueueDepth: 4, DefaultEngine: "bing", DefaultLimit: 10},
		HTTP:    config.HTTPConfig{TimeoutSeconds: 1},
	}
}

func TestNew_RunsBingEndToEndThroughSinks(t *testing.T) {
	t.Parallel()

	blobs := memory.NewBlobStore()
	publisher := memorypublisher.New(0)
	fetcher := &serpFetcher{}
	cfg := baseConfig()
	cfg.Storage = config.StorageConfig{Enabled: true, Backend: config.BackendMemory, Prefix: "runs"}
	cfg.PubSub.TopicName = "outcomes"

	a, err := app.New(context.Background(), cfg, zap.NewNop(),
		app.WithBlobStore(blobs),
		app.WithPublisher(publisher),
		app.WithFetcher(fetcher),
		app.WithClock(fixedClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}),
	)
	require.NoError(t, err)
	t.Cleanup(a.Close)
	a.Start(context.Background())

	orch := a.Orchestrator()
	err = orch.Search(context.Background(), []harvest.Job{{Engine: "bing", Domain: "example.com", Limit: 10}})
	require.NoError(t, err)

	results := orch.Results()
	require.Len(t, results, 1)
	assert.Equal(t, []string{"sales@example.com"}, results[0].Results.Emails)
	assert.Equal(t, 2, results[0].Results.Processed)
	assert.Equal(t, orch.Project(), results[0].Project)

	keys := blobs.Keys()
	require.Len(t, keys, 2)
	for _, key := range keys {
		assert.True(t, strings.HasPrefix(key, "runs/"+orch.Project()+"/"+orch.Project()+"_example.com_"), key)
	}

	msgs := publisher.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "outcomes", msgs[0].Topic)
}

func TestNew_GreedyRunFollowsDiscoveredDomains(t *testing.T) {
	t.Parallel()

	a, err := app.New(context.Background(), baseConfig(), zap.NewNop(), app.WithFetcher(&serpFetcher{}))
	require.NoError(t, err)
	t.Cleanup(a.Close)
	a.Start(context.Background())

	orch := a.Orchestrator()
	err = orch.Search(context.Background(), []harvest.Job{{Engine: "bing", Domain: "example.com", Limit: 10, Greedy: true, Fuzzy: true}})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"example.com", "example.org"}, orch.Processed())
	results := orch.Results()
	require.Len(t, results, 2)
	assert.Equal(t, "example.org", results[1].Job.Domain)
	assert.Equal(t, []string{"info@example.org"}, results[1].Results.Emails)
	assert.False(t, results[1].Job.Greedy)
}

func TestNew_UnknownStorageBackend(t *testing.T) {
	t.Parallel()

	cfg := baseConfig()
	cfg.Storage = config.StorageConfig{Enabled: true, Backend: "ftp"}
	_, err := app.New(context.Background(), cfg, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown storage backend")
}

func TestNew_LocalStorageWritesArtifacts(t *testing.T) {
	t.Parallel()

	cfg := baseConfig()
	dir := t.TempDir()
	cfg.Storage = config.StorageConfig{Enabled: true, Backend: config.BackendLocal, BaseDir: dir}
	a, err := app.New(context.Background(), cfg, zap.NewNop(), app.WithFetcher(&serpFetcher{}))
	require.NoError(t, err)
	t.Cleanup(a.Close)
	a.Start(context.Background())

	orch := a.Orchestrator()
	require.NoError(t, orch.Search(context.Background(), []harvest.Job{{Engine: "bing", Domain: "example.com", Limit: 10}}))
	require.Len(t, orch.Results(), 1)

	files, err := filepath.Glob(filepath.Join(dir, orch.Project(), "*"))
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestServer_ListsRegisteredEngines(t *testing.T) {
	t.Parallel()

	a, err := app.New(context.Background(), baseConfig(), nil)
	require.NoError(t, err)
	t.Cleanup(a.Close)

	rec := httptest.NewRecorder()
	a.Server().Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/engines", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"engines":["bing"]}`, rec.Body.String())
	assert.True(t, a.Registry().Has("bing"))
	assert.NotNil(t, a.Runs())
	assert.NotNil(t, a.Logger())
	assert.Equal(t, 2, a.Config().Harvest.Workers)
}
