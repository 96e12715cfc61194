package webpush

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"math/big"
	"testing"

	"github.com/webpush-go/webpush/internal/es256"
)

func TestSignES256_VerifiesAndNormalizesLowS(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}
	msg := []byte("hello push service")

	sig, err := signES256(priv, msg)
	if err != nil {
		t.Fatalf("signES256() error = %v", err)
	}
	if len(sig) != 64 {
		t.Fatalf("signature length = %d, want 64", len(sig))
	}

	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:])
	halfN := new(big.Int).Rsh(priv.Curve.Params().N, 1)
	if s.Cmp(halfN) > 0 {
		t.Errorf("s = %s exceeds n/2 = %s; not normalized to low-S", s, halfN)
	}

	hash := sha256.Sum256(msg)
	if !ecdsa.Verify(&priv.PublicKey, hash[:], r, s) {
		t.Error("normalized signature failed to verify against the signer's own public key")
	}
}

func TestNormalizeLowS(t *testing.T) {
	n := elliptic.P256().Params().N
	highS := new(big.Int).Sub(n, big.NewInt(1)) // n-1, always > n/2
	got := es256.NormalizeLowS(highS, elliptic.P256())
	want := big.NewInt(1)
	if got.Cmp(want) != 0 {
		t.Errorf("NormalizeLowS(n-1) = %s, want %s", got, want)
	}

	lowS := big.NewInt(42)
	if got := es256.NormalizeLowS(lowS, elliptic.P256()); got.Cmp(lowS) != 0 {
		t.Errorf("NormalizeLowS(42) = %s, want unchanged 42", got)
	}
}
