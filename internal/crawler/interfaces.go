package crawler

import (
	"context"
	"io"
	"time"
)

// Fetcher issues a single HTTP request and returns the body plus metadata.
// Non-2xx responses are returned without error; callers inspect StatusCode.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
	Exists(ctx context.Context, path string) (bool, error)
}

// Publisher pushes post notifications to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// PostIndex records saved posts in a queryable store.
type PostIndex interface {
	IndexPost(ctx context.Context, summary PostSummary) error
}

// Pauser sleeps between requests; tests swap in a no-op.
type Pauser interface {
	Pause(ctx context.Context, delay time.Duration)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
