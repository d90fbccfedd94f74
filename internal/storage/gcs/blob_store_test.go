package gcs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	bytes.Buffer
	object      string
	contentType string
	closed      bool
	closeErr    error
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return w.closeErr
}

func newTestStore(w *recordingWriter) *BlobStore {
	return &BlobStore{
		bucket: "harvest",
		newWriter: func(_ context.Context, object, contentType string) io.WriteCloser {
			w.object = object
			w.contentType = contentType
			return w
		},
	}
}

func TestNewValidatesInput(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{Bucket: "b"})
	require.EqualError(t, err, "storage client is required")
}

func TestPutObjectUploads(t *testing.T) {
	t.Parallel()

	w := &recordingWriter{}
	store := newTestStore(w)

	uri, err := store.PutObject(context.Background(), "/runs/p/p_a.com_1_job.json", "application/json",
		strings.NewReader(`{"domain":"a.com"}`))
	require.NoError(t, err)
	assert.Equal(t, "gs://harvest/runs/p/p_a.com_1_job.json", uri)
	assert.Equal(t, "runs/p/p_a.com_1_job.json", w.object)
	assert.Equal(t, "application/json", w.contentType)
	assert.Equal(t, `{"domain":"a.com"}`, w.String())
	assert.True(t, w.closed)
}

func TestPutObjectErrors(t *testing.T) {
	t.Parallel()

	store := newTestStore(&recordingWriter{})
	_, err := store.PutObject(context.Background(), " ", "text/plain", strings.NewReader(""))
	require.Error(t, err)

	failing := newTestStore(&recordingWriter{closeErr: errors.New("quota")})
	_, err = failing.PutObject(context.Background(), "a.txt", "text/plain", strings.NewReader("x"))
	require.ErrorContains(t, err, "close writer: quota")
}
