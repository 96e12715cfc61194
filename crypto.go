package webpush

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/webpush-go/webpush/internal/es256"
)

// ecdhSecret computes the X coordinate of d*P for a local private key and a
// remote public key, per spec.md §4.2.
func ecdhSecret(local *ecdh.PrivateKey, remote *ecdh.PublicKey) ([]byte, error) {
	secret, err := local.ECDH(remote)
	if err != nil {
		return nil, fmt.Errorf("computing ECDH shared secret: %w", err)
	}
	return secret, nil
}

// hkdfExpand runs HKDF-SHA256 extract-then-expand and returns length bytes.
func hkdfExpand(secret, salt, info []byte, length int) ([]byte, error) {
	r := hkdf.New(sha256.New, secret, salt, info)
	out := make([]byte, length)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, fmt.Errorf("hkdf expand: %w", err)
	}
	return out, nil
}

// seal encrypts plaintext with AES-128-GCM under the given 16-byte key and
// 12-byte nonce, with empty AAD, appending the 16-byte tag.
func seal(key, nonce, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("gcm: %w", err)
	}
	return gcm.Seal(nil, nonce, plaintext, nil), nil
}

// open decrypts an AES-128-GCM ciphertext (tag appended) under the given
// key/nonce, with empty AAD. Used by tests exercising the round-trip
// scenario (scenario 4 in spec.md §8).
func open(key, nonce, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("gcm: %w", err)
	}
	return gcm.Open(nil, nonce, ciphertext, nil)
}

// signES256 signs message with an ECDSA P-256 private key using the raw
// ES256 primitive (component C2, spec.md §4.2), normalized to low-S. This
// is the same primitive vapid.Signer uses to produce a VAPID JWT's
// signature segment — see internal/es256.
func signES256(priv *ecdsa.PrivateKey, message []byte) ([]byte, error) {
	return es256.Sign(priv, message)
}

// u16be appends a big-endian uint16 length prefix, used by the legacy
// aesgcm context construction in spec.md §4.4.
func u16be(b []byte, n int) []byte {
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], uint16(n))
	return append(b, buf[:]...)
}
