package webpush

import "fmt"

const (
	// MaxPayload is the largest plaintext payload this library will
	// encrypt, per spec.md §6.
	MaxPayload = 4078
	// MaxCompatibility is the recommended default padding target; it
	// keeps encrypted records compatible with push services that cap
	// record size below the protocol maximum (spec.md §4.3).
	MaxCompatibility = 3052
)

// padAESGCM implements the legacy aesgcm padding scheme (spec.md §4.3):
// a 2-byte big-endian pad length, that many zero bytes, then the
// plaintext.
func padAESGCM(payload []byte, paddingMax int) ([]byte, error) {
	if len(payload) > paddingMax {
		return nil, fmt.Errorf("payload length %d exceeds padding target %d", len(payload), paddingMax)
	}
	padLen := paddingMax - len(payload)
	if padLen < 0 {
		padLen = 0
	}
	out := make([]byte, 0, 2+padLen+len(payload))
	out = u16be(out, padLen)
	out = append(out, make([]byte, padLen)...)
	out = append(out, payload...)
	return out, nil
}

// padAES128GCM implements the aes128gcm padding scheme (spec.md §4.3): the
// plaintext, a 0x02 delimiter, then zero bytes out to the target length.
func padAES128GCM(payload []byte, paddingMax int) ([]byte, error) {
	if len(payload)+1 > paddingMax+1 {
		return nil, fmt.Errorf("payload length %d exceeds padding target %d", len(payload), paddingMax)
	}
	target := len(payload) + 1
	if paddingMax+1 > target {
		target = paddingMax + 1
	}
	out := make([]byte, target)
	copy(out, payload)
	out[len(payload)] = 0x02
	return out, nil
}
