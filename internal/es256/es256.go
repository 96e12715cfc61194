// Package es256 implements the raw ECDSA-P256-SHA256 signing primitive
// that JWS "ES256" uses, with the canonical low-S normalization VAPID
// tokens require (spec.md §4.2). It has no notion of JWT framing — callers
// build the signing input and own the base64url encoding.
package es256

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"math/big"
)

// Sign signs sha256(message) with priv and returns the raw 64-byte r||s
// signature, normalized so s <= n/2.
func Sign(priv *ecdsa.PrivateKey, message []byte) ([]byte, error) {
	hash := sha256.Sum256(message)
	r, s, err := ecdsa.Sign(rand.Reader, priv, hash[:])
	if err != nil {
		return nil, fmt.Errorf("ecdsa sign: %w", err)
	}
	s = NormalizeLowS(s, priv.Curve)

	size := (priv.Curve.Params().BitSize + 7) / 8
	sig := make([]byte, 2*size)
	r.FillBytes(sig[:size])
	s.FillBytes(sig[size:])
	return sig, nil
}

// NormalizeLowS flips s to n-s whenever s > n/2, the canonical low-S form
// strict verifiers require.
func NormalizeLowS(s *big.Int, curve elliptic.Curve) *big.Int {
	n := curve.Params().N
	halfN := new(big.Int).Rsh(n, 1)
	if s.Cmp(halfN) > 0 {
		return new(big.Int).Sub(n, s)
	}
	return s
}
