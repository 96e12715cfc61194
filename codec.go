package webpush

import (
	"crypto/ecdh"
	"fmt"

	"github.com/webpush-go/webpush/internal/codec"
)

func b64Encode(b []byte) string { return codec.B64Encode(b) }

func b64Decode(s string) ([]byte, error) { return codec.B64Decode(s) }

// decodePublicKey decodes a base64url-encoded P-256 public key and returns
// its uncompressed SEC1 point encoding (65 bytes, leading 0x04). Per
// spec.md §4.1 a 65-byte string starting with 0x04 is already uncompressed;
// a bare 64-byte X||Y string is accepted and given the 0x04 prefix.
func decodePublicKey(s string) ([]byte, error) {
	raw, err := b64Decode(s)
	if err != nil {
		return nil, fmt.Errorf("decoding public key: %w", err)
	}
	return codec.NormalizePublicKey(raw)
}

// parseECDHPublicKey validates the 65-byte uncompressed point against the
// P-256 curve equation and returns the stdlib ECDH key.
func parseECDHPublicKey(raw []byte) (*ecdh.PublicKey, error) {
	pub, err := ecdh.P256().NewPublicKey(raw)
	if err != nil {
		return nil, fmt.Errorf("point not on curve: %w", err)
	}
	return pub, nil
}

// parseECDHPrivateKey validates the 32-byte scalar is in [1, n-1] and
// returns the stdlib ECDH key.
func parseECDHPrivateKey(raw []byte) (*ecdh.PrivateKey, error) {
	priv, err := ecdh.P256().NewPrivateKey(raw)
	if err != nil {
		return nil, fmt.Errorf("scalar out of range: %w", err)
	}
	return priv, nil
}
