// Package codec implements the one piece of wire format every coding and
// every VAPID header shares: URL-safe, unpadded base64, and the raw<->SEC1
// conversion for P-256 public keys (spec.md §4.1, component C1).
package codec

import "encoding/base64"

var enc = base64.RawURLEncoding

// B64Encode encodes b as URL-safe base64 without padding.
func B64Encode(b []byte) string { return enc.EncodeToString(b) }

// B64Decode decodes a URL-safe, unpadded base64 string.
func B64Decode(s string) ([]byte, error) { return enc.DecodeString(s) }

// NormalizePublicKey accepts either a 65-byte uncompressed SEC1 point
// (0x04 || X || Y) or a bare 64-byte X||Y concatenation and returns the
// 65-byte uncompressed form.
func NormalizePublicKey(raw []byte) ([]byte, error) {
	switch len(raw) {
	case 65:
		if raw[0] != 0x04 {
			return nil, &FormatError{Field: "public key", Detail: "expected uncompressed point prefix 0x04"}
		}
		return raw, nil
	case 64:
		out := make([]byte, 65)
		out[0] = 0x04
		copy(out[1:], raw)
		return out, nil
	default:
		return nil, &FormatError{Field: "public key", Detail: "expected 64 or 65 bytes"}
	}
}

// FormatError reports a malformed wire-format value.
type FormatError struct {
	Field  string
	Detail string
}

func (e *FormatError) Error() string { return e.Field + ": " + e.Detail }
