package webpush

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/webpush-go/webpush/vapid"
)

func TestClient_Flush_DeliversInEnqueueOrder(t *testing.T) {
	// Scenario 5 in spec.md §8: three queued notifications, a stub push
	// service that returns 201 for every request, Flush(batchSize=2)
	// yields exactly 3 successful reports in enqueue order, and the queue
	// is empty afterward.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), nil)
	endpoints := []string{"/a", "/b", "/c"}
	for _, p := range endpoints {
		if err := c.QueueNotification(&Notification{
			Subscription: &Subscription{Endpoint: srv.URL + p},
		}); err != nil {
			t.Fatalf("QueueNotification(%s) error = %v", p, err)
		}
	}

	var reports []*MessageSentReport
	for report, err := range c.Flush(context.Background(), 2) {
		if err != nil {
			t.Fatalf("Flush() yielded error = %v", err)
		}
		reports = append(reports, report)
	}

	if len(reports) != 3 {
		t.Fatalf("got %d reports, want 3", len(reports))
	}
	for i, r := range reports {
		if !r.Success() {
			t.Errorf("report[%d].Success() = false, reason = %q", i, r.Reason())
		}
		wantEndpoint := srv.URL + endpoints[i]
		if r.Endpoint() != wantEndpoint {
			t.Errorf("report[%d].Endpoint() = %q, want %q", i, r.Endpoint(), wantEndpoint)
		}
	}
	if c.Len() != 0 {
		t.Errorf("Client.Len() after flush = %d, want 0", c.Len())
	}
}

func TestClient_Flush_ReportsErrorStatusAsCompletedRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), nil)
	if err := c.QueueNotification(&Notification{
		Subscription: &Subscription{Endpoint: srv.URL + "/expired"},
	}); err != nil {
		t.Fatalf("QueueNotification() error = %v", err)
	}

	var reports []*MessageSentReport
	for report, err := range c.Flush(context.Background(), 0) {
		if err != nil {
			t.Fatalf("Flush() yielded error = %v", err)
		}
		reports = append(reports, report)
	}
	if len(reports) != 1 {
		t.Fatalf("got %d reports, want 1", len(reports))
	}
	// A 410 Gone still completes at the transport level, so it's reported
	// as a successful round-trip whose status the caller must inspect.
	if !reports[0].Success() {
		t.Errorf("Success() = false, want true for a completed round-trip")
	}
	if reports[0].Response().StatusCode != http.StatusGone {
		t.Errorf("status = %d, want %d", reports[0].Response().StatusCode, http.StatusGone)
	}
}

func TestClient_FlushPooled_InvokesCallbackForEveryNotification(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), nil)
	for i := 0; i < 5; i++ {
		if err := c.QueueNotification(&Notification{
			Subscription: &Subscription{Endpoint: srv.URL + "/n"},
		}); err != nil {
			t.Fatalf("QueueNotification() error = %v", err)
		}
	}

	var count int
	err := c.FlushPooled(context.Background(), 2, 3, func(r *MessageSentReport) {
		count++
		if !r.Success() {
			t.Errorf("report.Success() = false, reason = %q", r.Reason())
		}
	})
	if err != nil {
		t.Fatalf("FlushPooled() error = %v", err)
	}
	if count != 5 {
		t.Errorf("callback invoked %d times, want 5", count)
	}
	if c.Len() != 0 {
		t.Errorf("Client.Len() after flush = %d, want 0", c.Len())
	}
}

func TestClient_Flush_EncryptsPayloadAndSignsVAPID(t *testing.T) {
	var gotContentEncoding, gotAuthorization string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentEncoding = r.Header.Get("Content-Encoding")
		gotAuthorization = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	_, pub, authSecret := generateSubscriberKeys(t)
	vapidPub, vapidPriv, err := vapid.CreateKeys()
	if err != nil {
		t.Fatalf("vapid.CreateKeys() error = %v", err)
	}
	kp, err := vapid.Load(vapid.Config{
		Subject:    "mailto:admin@example.com",
		PublicKey:  vapidPub,
		PrivateKey: vapidPriv,
	})
	if err != nil {
		t.Fatalf("vapid.Load() error = %v", err)
	}

	c := NewClient(srv.Client(), kp)
	err = c.QueueNotification(&Notification{
		Subscription: &Subscription{
			Endpoint:        srv.URL + "/sub",
			Keys:            Keys{P256dh: b64Encode(pub), Auth: b64Encode(authSecret)},
			ContentEncoding: AES128GCM,
		},
		Payload: []byte("hi there"),
	})
	if err != nil {
		t.Fatalf("QueueNotification() error = %v", err)
	}

	for report, flushErr := range c.Flush(context.Background(), 0) {
		if flushErr != nil {
			t.Fatalf("Flush() yielded error = %v", flushErr)
		}
		if !report.Success() {
			t.Fatalf("report.Success() = false, reason = %q", report.Reason())
		}
	}

	if gotContentEncoding != "aes128gcm" {
		t.Errorf("Content-Encoding = %q, want aes128gcm", gotContentEncoding)
	}
	if gotAuthorization == "" {
		t.Error("Authorization header was not set")
	}
}
