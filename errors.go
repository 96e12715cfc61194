package webpush

import "fmt"

// Kind classifies the failure modes a caller needs to distinguish.
type Kind int

const (
	// KindConfig covers malformed configuration raised by this package:
	// invalid Options (out-of-range padding target, unknown urgency), a
	// VAPIDOverride with no KeyPair, and a subscription ParseSubscription
	// rejects. VAPID key and subject validation happens in vapid.Load,
	// which returns plain errors, not *Error values of this kind.
	KindConfig Kind = iota
	// KindPayload covers oversized payloads and non-empty payloads whose
	// subscription carries no content coding.
	KindPayload
	// KindCrypto covers ECDH/HKDF/AES/signature failures.
	KindCrypto
	// KindTransport covers network/HTTP-level failures from the push
	// service. These never escape as errors from Flush/FlushPooled;
	// they're folded into MessageSentReport instead.
	KindTransport
	// KindProtocol covers failure to derive a VAPID audience from an
	// endpoint URL.
	KindProtocol
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindPayload:
		return "payload"
	case KindCrypto:
		return "crypto"
	case KindTransport:
		return "transport"
	case KindProtocol:
		return "protocol"
	default:
		return "unknown"
	}
}

// Error is the error type raised by every operation in this package that
// fails before a request ever reaches the network. Transport failures are
// reported, not raised — see MessageSentReport.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("webpush: %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("webpush: %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newErr(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// ConfigError reports malformed VAPID or encryption configuration.
func ConfigError(op string, err error) error { return newErr(KindConfig, op, err) }

// PayloadError reports an oversized or under-specified payload.
func PayloadError(op string, err error) error { return newErr(KindPayload, op, err) }

// CryptoError reports an ECDH/HKDF/AES/signature failure.
func CryptoError(op string, err error) error { return newErr(KindCrypto, op, err) }

// ProtocolError reports an inability to derive a VAPID audience.
func ProtocolError(op string, err error) error { return newErr(KindProtocol, op, err) }

// TransportError wraps a network/HTTP-level failure. The dispatcher never
// raises or builds one of these: it folds the failure into a
// MessageSentReport instead (spec.md §7), whose Reason() holds the
// transport error's message as a plain string.
func TransportError(op string, err error) error { return newErr(KindTransport, op, err) }
