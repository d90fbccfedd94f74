package memory

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlobStorePutObjectCopiesData(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	payload := []byte("content")
	uri, err := store.PutObject(context.Background(), "run/a.com_job.json", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	assert.Equal(t, "memory://run/a.com_job.json", uri)

	payload[0] = 'C'
	stored, contentType, ok := store.Get("run/a.com_job.json")
	require.True(t, ok)
	assert.Equal(t, "content", string(stored))
	assert.Equal(t, "application/json", contentType)

	stored[0] = 'X'
	again, _, _ := store.Get("run/a.com_job.json")
	assert.Equal(t, "content", string(again))
}

func TestBlobStoreKeysSorted(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	ctx := context.Background()
	_, err := store.PutObject(ctx, "b", "text/plain", bytes.NewReader(nil))
	require.NoError(t, err)
	_, err = store.PutObject(ctx, "a", "text/plain", bytes.NewReader(nil))
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, store.Keys())
	_, _, ok := store.Get("missing")
	assert.False(t, ok)
}
