package webpush

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ContentEncoding identifies which content coding frames an encrypted
// payload: the RFC 8188 standard "aes128gcm", or the legacy "aesgcm" draft
// coding that predates it. The string values appear bit-exact in the
// Content-Encoding HTTP header and in the VAPID cache key (spec.md §6).
type ContentEncoding string

const (
	// AESGCM is the legacy draft-ietf-webpush-encryption-04 coding.
	AESGCM ContentEncoding = "aesgcm"
	// AES128GCM is the RFC 8188 standard coding.
	AES128GCM ContentEncoding = "aes128gcm"
)

func (c ContentEncoding) valid() bool {
	return c == AESGCM || c == AES128GCM
}

// Keys holds a subscriber's encryption material, as delivered by
// PushManager.subscribe() in the browser.
type Keys struct {
	P256dh string `json:"p256dh"` // base64url-encoded 65-byte uncompressed P-256 point
	Auth   string `json:"auth"`   // base64url-encoded 16-byte auth secret
}

// Subscription is an immutable Web Push subscription: where to deliver a
// notification, and the key material needed to encrypt it (spec.md §3).
type Subscription struct {
	Endpoint        string          `json:"endpoint"`
	Keys            Keys            `json:"keys,omitempty"`
	ContentEncoding ContentEncoding `json:"contentEncoding,omitempty"`
	ExpirationTime  *int64          `json:"expirationTime,omitempty"`
}

// publicKeyBytes returns the decoded, normalized 65-byte uncompressed
// public key, or an error if it isn't present/well-formed.
func (s *Subscription) publicKeyBytes() ([]byte, error) {
	if s.Keys.P256dh == "" {
		return nil, fmt.Errorf("subscription has no p256dh key")
	}
	return decodePublicKey(s.Keys.P256dh)
}

// authSecretBytes returns the decoded 16-byte auth secret.
func (s *Subscription) authSecretBytes() ([]byte, error) {
	if s.Keys.Auth == "" {
		return nil, fmt.Errorf("subscription has no auth secret")
	}
	raw, err := b64Decode(s.Keys.Auth)
	if err != nil {
		return nil, fmt.Errorf("decoding auth secret: %w", err)
	}
	if len(raw) != 16 {
		return nil, fmt.Errorf("auth secret: expected 16 bytes, got %d", len(raw))
	}
	return raw, nil
}

// hasEncryptionMaterial reports whether the subscription carries everything
// needed to encrypt a payload: a public key, an auth secret, and a coding.
func (s *Subscription) hasEncryptionMaterial() bool {
	return s.Keys.P256dh != "" && s.Keys.Auth != "" && s.ContentEncoding != ""
}

// ParseSubscription decodes a subscription from the JSON shape a browser's
// PushManager.subscribe() promise resolves to. The endpoint must be an
// absolute HTTPS URL. If keys are present but contentEncoding is omitted
// (the common case — browsers don't report it), it defaults to
// AES128GCM, the coding virtually every push service now expects.
func ParseSubscription(data []byte) (*Subscription, error) {
	var sub Subscription
	if err := json.Unmarshal(data, &sub); err != nil {
		return nil, ConfigError("ParseSubscription", fmt.Errorf("unmarshaling subscription: %w", err))
	}
	if sub.Endpoint == "" {
		return nil, ConfigError("ParseSubscription", fmt.Errorf("endpoint is required"))
	}
	if !strings.HasPrefix(sub.Endpoint, "https://") {
		return nil, ConfigError("ParseSubscription", fmt.Errorf("endpoint must use HTTPS"))
	}
	if sub.Keys.P256dh != "" && sub.Keys.Auth != "" && sub.ContentEncoding == "" {
		sub.ContentEncoding = AES128GCM
	}
	if sub.ContentEncoding != "" && !sub.ContentEncoding.valid() {
		return nil, ConfigError("ParseSubscription", fmt.Errorf("unsupported contentEncoding %q", sub.ContentEncoding))
	}
	return &sub, nil
}
