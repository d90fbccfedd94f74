package s3

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	input *s3.PutObjectInput
	body  string
	err   error
}

func (f *fakeS3) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = params
	data, _ := io.ReadAll(params.Body)
	f.body = string(data)
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

func TestPutObjectUploadsWithMetadata(t *testing.T) {
	t.Parallel()

	fake := &fakeS3{}
	store := &BlobStore{client: fake, bucket: "leads"}

	uri, err := store.PutObject(context.Background(), "/runs/p/p_a.com_42_emails.txt", "text/plain",
		strings.NewReader("a@a.com\nb@a.com\n"))
	require.NoError(t, err)
	assert.Equal(t, "s3://leads/runs/p/p_a.com_42_emails.txt", uri)
	assert.Equal(t, "leads", aws.ToString(fake.input.Bucket))
	assert.Equal(t, "runs/p/p_a.com_42_emails.txt", aws.ToString(fake.input.Key))
	assert.Equal(t, "text/plain", aws.ToString(fake.input.ContentType))
	assert.Equal(t, int64(16), aws.ToInt64(fake.input.ContentLength))
	assert.Equal(t, "a@a.com\nb@a.com\n", fake.body)
}

func TestPutObjectWrapsErrors(t *testing.T) {
	t.Parallel()

	store := &BlobStore{client: &fakeS3{err: errors.New("denied")}, bucket: "leads"}
	_, err := store.PutObject(context.Background(), "x.json", "application/json", strings.NewReader("{}"))
	require.ErrorContains(t, err, "failed to upload object: denied")

	_, err = store.PutObject(context.Background(), "/", "", strings.NewReader(""))
	require.Error(t, err)
}

func TestNewRequiresBucket(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Config{})
	require.Error(t, err)
}

func TestNewBuildsClientForCompatibleEndpoint(t *testing.T) {
	t.Parallel()

	store, err := New(context.Background(), Config{
		Endpoint:  "http://localhost:9000/",
		Bucket:    "leads",
		AccessKey: "minio",
		SecretKey: "minio123",
	})
	require.NoError(t, err)
	assert.NotNil(t, store.client)
}

func TestNormalizeEndpoint(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"":                                       "",
		"localhost:9000":                         "localhost:9000",
		"https://acct.r2.cloudflarestorage.com/": "acct.r2.cloudflarestorage.com",
		"http://minio:9000/bucket/path":          "minio:9000",
	}
	for in, want := range cases {
		assert.Equal(t, want, normalizeEndpoint(in), in)
	}
}
