package webpush

import (
	"net/http"
	"time"
)

// Transport is the HTTP transport capability the dispatcher consumes
// (spec.md §6). Any *http.Client satisfies it. It's deliberately narrow —
// JSON parsing, retries, and connection pooling are all external
// collaborators per spec.md §1.
type Transport interface {
	Do(req *http.Request) (*http.Response, error)
}

// DefaultRequestTimeout is applied to every request's context by
// Client.Flush and Client.FlushPooled (spec.md §5).
const DefaultRequestTimeout = 30 * time.Second
