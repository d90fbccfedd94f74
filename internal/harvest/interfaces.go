package harvest

import (
	"context"
	"io"
	"net/http"
	"time"
)

// SearchModule performs the engine-specific search and extraction for one job.
// Implementations hold no state shared with other modules.
type SearchModule interface {
	Search(ctx context.Context) (Results, error)
}

// Loader resolves an engine name to a freshly built SearchModule.
type Loader interface {
	Load(engine string, job Job) (SearchModule, error)
}

// Sink records a finished outcome.
type Sink interface {
	Persist(ctx context.Context, outcome Outcome) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, outcome Outcome) error

// Persist calls f.
func (f SinkFunc) Persist(ctx context.Context, outcome Outcome) error {
	return f(ctx, outcome)
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Publisher pushes completion notices to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Fetcher fetches a single URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (Page, error)
}

// Limiter gates outbound requests per host.
type Limiter interface {
	Wait(ctx context.Context, url string) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// Queue provides enqueue/dequeue semantics for tasks.
type Queue interface {
	Enqueue(ctx context.Context, task Task) error
	Dequeue(ctx context.Context) (Task, error)
}

// Pool accepts tasks for execution by a bounded set of workers.
type Pool interface {
	Submit(ctx context.Context, task Task) error
}

// Task pairs a job with the channel its outcome is delivered on.
type Task struct {
	Job   Job
	Reply chan<- Outcome
}

// Page is a fetched document.
type Page struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}
