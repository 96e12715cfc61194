package webpush

import (
	"fmt"
	"sync"

	"github.com/webpush-go/webpush/vapid"
)

// VAPIDOverride lets a single notification use a different VAPID identity
// than the Client's default, validated the same way the Client's own
// configuration is (spec.md §4.6).
type VAPIDOverride struct {
	KeyPair *vapid.KeyPair
}

// Notification is a queued unit of work: a subscription to deliver to, an
// optional payload, and per-message overrides (spec.md §3). Notifications
// are built by the caller, enqueued with Client.QueueNotification (or
// Queue.Enqueue), and consumed — discarded — by a Client flush.
type Notification struct {
	Subscription  *Subscription
	Payload       []byte
	Options       *Options
	VAPIDOverride *VAPIDOverride
}

// Queue is an append-only, FIFO list of pending notifications (component
// C6). It is not safe for concurrent use: per spec.md §5, Enqueue and a
// Client flush must never overlap on the same Queue.
type Queue struct {
	mu    sync.Mutex
	items []*Notification
}

// NewQueue returns an empty Queue.
func NewQueue() *Queue { return &Queue{} }

// Enqueue validates n and appends it to the queue. Pre-enqueue checks
// (spec.md §4.6): the payload must fit within MaxPayload, a non-empty
// payload requires the subscription to carry a content coding, and a
// VAPID override (if present) must already be a validated KeyPair. On
// failure the notification is not enqueued.
func (q *Queue) Enqueue(n *Notification) error {
	if len(n.Payload) > MaxPayload {
		return PayloadError("Enqueue", fmt.Errorf("payload length %d exceeds MaxPayload (%d)", len(n.Payload), MaxPayload))
	}
	if len(n.Payload) > 0 && n.Subscription.ContentEncoding == "" {
		return PayloadError("Enqueue", fmt.Errorf("subscription has no content coding but payload is non-empty"))
	}
	if n.VAPIDOverride != nil && n.VAPIDOverride.KeyPair == nil {
		return ConfigError("Enqueue", fmt.Errorf("VAPIDOverride.KeyPair is nil"))
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, n)
	return nil
}

// Len reports the number of queued notifications.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// drain removes and returns every queued notification, in enqueue order,
// leaving the queue empty.
func (q *Queue) drain() []*Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items
}
