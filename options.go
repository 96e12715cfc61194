package webpush

import "fmt"

// DefaultTTL is the default Time-To-Live, 28 days, per spec.md §3.
const DefaultTTL = 2_419_200

const (
	defaultBatchSize         = 1000
	defaultRequestConcurrency = 100
	defaultContentType       = "application/octet-stream"
)

// Urgency is the RFC 8030 §5.3 Urgency header value.
type Urgency string

const (
	UrgencyVeryLow Urgency = "very-low"
	UrgencyLow     Urgency = "low"
	UrgencyNormal  Urgency = "normal"
	UrgencyHigh    Urgency = "high"
)

func (u Urgency) valid() bool {
	switch u {
	case "", UrgencyVeryLow, UrgencyLow, UrgencyNormal, UrgencyHigh:
		return true
	}
	return false
}

// Options configures a notification (spec.md §3). A zero Options is valid;
// normalized fills in every unset field with its default.
type Options struct {
	TTL                uint32
	Urgency            Urgency
	Topic              string
	BatchSize          uint32
	RequestConcurrency uint32
	ContentType        string
	// PaddingMax is the padding target passed to the encryption engine
	// (spec.md §4.3), in [0, MaxPayload]. Zero defaults to
	// MaxCompatibility. A payload larger than PaddingMax fails encryption
	// with a CryptoError even though it fit within MaxPayload at enqueue
	// time, so callers sending payloads above MaxCompatibility must raise
	// this explicitly.
	PaddingMax uint32
}

// normalized returns a copy of o with every zero-valued field replaced by
// its default. Unrecognized option keys don't exist in a typed struct, so
// spec.md §7's "unrecognized keys are ignored" policy is automatically
// satisfied.
func (o Options) normalized() (Options, error) {
	if o.TTL == 0 {
		o.TTL = DefaultTTL
	}
	if o.BatchSize == 0 {
		o.BatchSize = defaultBatchSize
	}
	if o.RequestConcurrency == 0 {
		o.RequestConcurrency = defaultRequestConcurrency
	}
	if o.ContentType == "" {
		o.ContentType = defaultContentType
	}
	if o.PaddingMax == 0 {
		o.PaddingMax = MaxCompatibility
	}
	if o.PaddingMax > MaxPayload {
		return o, fmt.Errorf("padding max %d exceeds MaxPayload (%d)", o.PaddingMax, MaxPayload)
	}
	if !o.Urgency.valid() {
		return o, fmt.Errorf("invalid urgency %q", o.Urgency)
	}
	return o, nil
}
