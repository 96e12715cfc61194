// Package webpush sends Web Push notifications (RFC 8030) encrypted per
// RFC 8291 (or the legacy aesgcm draft coding) and authenticated with
// VAPID (RFC 8292). See SPEC_FULL.md for the full component breakdown.
package webpush

import (
	"net/http"

	"github.com/webpush-go/webpush/vapid"
)

// Client queues notifications and dispatches them in concurrent batches
// to their push services. A Client is single-writer: QueueNotification
// and a Flush/FlushPooled call must not run concurrently against the same
// Client (spec.md §5). The HTTP transport is shared across every request
// issued by the Client.
type Client struct {
	queue     *Queue
	transport Transport
	vapidKey  *vapid.KeyPair
}

// NewClient creates a Client backed by transport. vapidKey may be nil, in
// which case notifications are sent without a VAPID Authorization header
// unless a per-notification VAPIDOverride supplies one.
func NewClient(transport Transport, vapidKey *vapid.KeyPair) *Client {
	if transport == nil {
		transport = http.DefaultClient
	}
	return &Client{
		queue:     NewQueue(),
		transport: transport,
		vapidKey:  vapidKey,
	}
}

// QueueNotification validates and enqueues a notification for the next
// flush (spec.md §4.6).
func (c *Client) QueueNotification(n *Notification) error {
	return c.queue.Enqueue(n)
}

// Len reports how many notifications are currently queued.
func (c *Client) Len() int { return c.queue.Len() }
