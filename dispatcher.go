package webpush

import (
	"bytes"
	"context"
	"fmt"
	"iter"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/webpush-go/webpush/vapid"
)

// Prepare builds the HTTP requests for a batch of notifications (component
// C7, spec.md §4.7), running encryption and VAPID signing as needed. It
// does not send anything. signer is shared across the whole batch so
// repeated (audience, coding, key) signatures within it can be reused.
func (c *Client) Prepare(ctx context.Context, batch []*Notification, signer *vapid.Signer) ([]*http.Request, error) {
	reqs := make([]*http.Request, 0, len(batch))
	for _, n := range batch {
		req, err := c.prepareOne(ctx, n, signer)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, req)
	}
	return reqs, nil
}

func (c *Client) prepareOne(ctx context.Context, n *Notification, signer *vapid.Signer) (*http.Request, error) {
	opts := Options{}
	if n.Options != nil {
		opts = *n.Options
	}
	opts, err := opts.normalized()
	if err != nil {
		return nil, ConfigError("prepare", err)
	}

	var body []byte
	headers := http.Header{}

	sub := n.Subscription
	if len(n.Payload) > 0 && sub.hasEncryptionMaterial() {
		pub, err := sub.publicKeyBytes()
		if err != nil {
			return nil, CryptoError("prepare", err)
		}
		auth, err := sub.authSecretBytes()
		if err != nil {
			return nil, CryptoError("prepare", err)
		}
		enc, err := encrypt(n.Payload, pub, auth, sub.ContentEncoding, int(opts.PaddingMax))
		if err != nil {
			return nil, CryptoError("prepare", fmt.Errorf("encrypting payload: %w", err))
		}
		body = enc.body
		headers.Set("Content-Type", opts.ContentType)
		headers.Set("Content-Encoding", string(sub.ContentEncoding))
		headers.Set("Content-Length", strconv.Itoa(len(body)))
		if sub.ContentEncoding == AESGCM {
			headers.Set("Encryption", "salt="+b64Encode(enc.salt))
			headers.Set("Crypto-Key", "dh="+b64Encode(enc.localPublicKey))
		}
	} else {
		headers.Set("Content-Length", "0")
	}

	headers.Set("TTL", strconv.Itoa(int(opts.TTL)))
	if opts.Urgency != "" {
		headers.Set("Urgency", string(opts.Urgency))
	}
	if opts.Topic != "" {
		headers.Set("Topic", opts.Topic)
	}

	keyPair := c.vapidKey
	if n.VAPIDOverride != nil {
		keyPair = n.VAPIDOverride.KeyPair
	}
	if keyPair != nil && sub.ContentEncoding != "" {
		audience, err := vapid.AudienceFromEndpoint(sub.Endpoint)
		if err != nil {
			return nil, ProtocolError("prepare", err)
		}
		hs, err := signer.Sign(audience, keyPair.Subject, keyPair, vapid.Coding(sub.ContentEncoding), time.Time{})
		if err != nil {
			return nil, CryptoError("prepare", err)
		}
		headers.Set("Authorization", hs.Authorization)
		if hs.CryptoKey != "" {
			if existing := headers.Get("Crypto-Key"); existing != "" {
				headers.Set("Crypto-Key", existing+";"+hs.CryptoKey)
			} else {
				headers.Set("Crypto-Key", hs.CryptoKey)
			}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, ProtocolError("prepare", fmt.Errorf("building request: %w", err))
	}
	req.Header = headers
	return req, nil
}

// batches splits items into chunks of size n. Flush/FlushPooled always
// resolve a non-positive batchSize to defaultBatchSize before calling this,
// but n<=0 is still treated as "one batch" for direct callers.
func batches[T any](items []T, n int) [][]T {
	if n <= 0 || n >= len(items) {
		if len(items) == 0 {
			return nil
		}
		return [][]T{items}
	}
	var out [][]T
	for start := 0; start < len(items); start += n {
		end := min(start+n, len(items))
		out = append(out, items[start:end])
	}
	return out
}

// Flush drains the queue and issues every request, batch by batch
// (component C7, spec.md §4.7). It's a pull-based, non-restartable
// iterator (spec.md §9's "generator-style flush" design note): each
// report is produced as the caller asks for the next one, in the order
// notifications were enqueued, regardless of response arrival order
// (property P7). Iteration order is preserved within a batch but batches
// run sequentially — batch N+1 doesn't begin until batch N's requests
// have all completed.
//
// If iteration stops early (a `break` in the range loop), any requests
// already in flight for the current batch still run to completion; their
// reports are simply not delivered to the caller.
//
// A non-nil error, when yielded, is terminal: it reports a Config/Payload/
// Crypto/Protocol failure raised while preparing a request (spec.md §7)
// and ends iteration. Transport failures are never surfaced this way —
// they arrive as a MessageSentReport with Success()==false instead.
func (c *Client) Flush(ctx context.Context, batchSize int) iter.Seq2[*MessageSentReport, error] {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return func(yield func(*MessageSentReport, error) bool) {
		log := clog.FromContext(ctx).With("flush_id", uuid.NewString())
		signer := &vapid.Signer{Reuse: true}
		defer signer.Clear()

		items := c.queue.drain()
		log.Debugf("flush: draining %d notifications", len(items))

		for _, batch := range batches(items, batchSize) {
			reqs, err := c.Prepare(ctx, batch, signer)
			if err != nil {
				yield(nil, err)
				return
			}

			type outcome struct {
				report *MessageSentReport
			}
			results := make([]outcome, len(reqs))
			var wg errgroup.Group
			for i, req := range reqs {
				i, req := i, req
				wg.Go(func() error {
					reqCtx, cancel := context.WithTimeout(req.Context(), DefaultRequestTimeout)
					defer cancel()
					results[i].report = c.doRequest(req.WithContext(reqCtx), log)
					return nil
				})
			}
			_ = wg.Wait()

			for _, r := range results {
				if !yield(r.report, nil) {
					return
				}
			}
		}
	}
}

// FlushPooled drains the queue and issues every request using a bounded
// pool of concurrency in-flight requests at a time, invoking callback
// exactly once per notification in completion order (spec.md §4.7). It
// returns only after every batch has fully drained, and only ever returns
// a non-nil error for a Config/Payload/Crypto/Protocol failure raised
// while preparing a request — transport failures go to callback as a
// failed MessageSentReport.
func (c *Client) FlushPooled(ctx context.Context, batchSize, concurrency int, callback func(*MessageSentReport)) error {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	log := clog.FromContext(ctx).With("flush_id", uuid.NewString())
	signer := &vapid.Signer{Reuse: true}
	defer signer.Clear()

	items := c.queue.drain()
	log.Debugf("flushPooled: draining %d notifications, concurrency=%d", len(items), concurrency)

	// callbackMu serializes callback invocations, so callers see one report
	// at a time, in the order requests complete.
	var callbackMu sync.Mutex
	for _, batch := range batches(items, batchSize) {
		reqs, err := c.Prepare(ctx, batch, signer)
		if err != nil {
			return err
		}

		g, gctx := errgroup.WithContext(ctx)
		if concurrency <= 0 {
			concurrency = defaultRequestConcurrency
		}
		g.SetLimit(concurrency)
		for _, req := range reqs {
			req := req
			g.Go(func() error {
				reqCtx, cancel := context.WithTimeout(gctx, DefaultRequestTimeout)
				defer cancel()
				report := c.doRequest(req.WithContext(reqCtx), log)
				callbackMu.Lock()
				defer callbackMu.Unlock()
				callback(report)
				return nil
			})
		}
		_ = g.Wait()
	}
	return nil
}

// doRequest issues req and turns the transport outcome into a report. It
// never returns an error — transport failures are folded into the report
// per spec.md §7.
func (c *Client) doRequest(req *http.Request, log *clog.Logger) *MessageSentReport {
	resp, err := c.transport.Do(req)
	if err != nil {
		log.Debugf("request to %s failed: %v", req.URL, err)
		return &MessageSentReport{
			endpoint: req.URL.String(),
			request:  req,
			response: resp,
			success:  false,
			reason:   err.Error(),
		}
	}
	log.Debugf("request to %s: %s", req.URL, resp.Status)
	return &MessageSentReport{
		endpoint: req.URL.String(),
		request:  req,
		response: resp,
		success:  true,
	}
}
