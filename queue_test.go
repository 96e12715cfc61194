package webpush

import (
	"errors"
	"testing"
)

func sampleSubscription(coding ContentEncoding) *Subscription {
	return &Subscription{
		Endpoint:        "https://push.example.com/abc",
		Keys:            Keys{P256dh: "pub", Auth: "auth"},
		ContentEncoding: coding,
	}
}

func TestQueue_EnqueueAndDrain(t *testing.T) {
	q := NewQueue()
	for i := 0; i < 3; i++ {
		if err := q.Enqueue(&Notification{Subscription: sampleSubscription(AES128GCM)}); err != nil {
			t.Fatalf("Enqueue() error = %v", err)
		}
	}
	if q.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", q.Len())
	}
	items := q.drain()
	if len(items) != 3 {
		t.Fatalf("drain() returned %d items, want 3", len(items))
	}
	if q.Len() != 0 {
		t.Errorf("Len() after drain = %d, want 0", q.Len())
	}
}

func TestQueue_Enqueue_RejectsOversizedPayload(t *testing.T) {
	// Scenario 6 in spec.md §8: a 4079-byte payload exceeds MaxPayload.
	q := NewQueue()
	n := &Notification{
		Subscription: sampleSubscription(AES128GCM),
		Payload:      make([]byte, MaxPayload+1),
	}
	err := q.Enqueue(n)
	if err == nil {
		t.Fatal("expected PayloadError, got nil")
	}
	var webpushErr *Error
	if !errors.As(err, &webpushErr) || webpushErr.Kind != KindPayload {
		t.Errorf("error = %v, want KindPayload", err)
	}
	if q.Len() != 0 {
		t.Errorf("Len() = %d, want 0 after rejected enqueue", q.Len())
	}
}

func TestQueue_Enqueue_RejectsPayloadWithoutCoding(t *testing.T) {
	q := NewQueue()
	n := &Notification{
		Subscription: sampleSubscription(""),
		Payload:      []byte("hello"),
	}
	if err := q.Enqueue(n); err == nil {
		t.Error("expected error for a payload with no content coding")
	}
}

func TestQueue_Enqueue_RejectsNilOverrideKeyPair(t *testing.T) {
	q := NewQueue()
	n := &Notification{
		Subscription:  sampleSubscription(AES128GCM),
		VAPIDOverride: &VAPIDOverride{},
	}
	if err := q.Enqueue(n); err == nil {
		t.Error("expected error for a VAPIDOverride with a nil KeyPair")
	}
}
