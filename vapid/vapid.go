// Package vapid implements Voluntary Application Server Identification
// (RFC 8292): VAPID key pair loading/generation and the signed JWT +
// header assembly a push service expects in the Authorization header.
package vapid

import (
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"math/big"
	"net/url"
	"os"
	"strings"

	"github.com/webpush-go/webpush/internal/codec"
)

var b64 = base64.RawURLEncoding

// KeyPair is a VAPID application server identity: an ES256 key pair plus
// the subject URL identifying the sender to the push service (spec.md
// §3). It is immutable once constructed.
type KeyPair struct {
	Subject    string
	PublicKey  []byte // 65-byte uncompressed P-256 point
	PrivateKey []byte // 32-byte scalar
}

// Config describes how to obtain a KeyPair: either raw base64url-encoded
// keys, or a PEM-encoded EC private key supplied inline or via a file path
// (spec.md §6). Exactly one key source must be usable.
type Config struct {
	Subject    string
	PublicKey  string // base64url, 65 bytes decoded
	PrivateKey string // base64url, 32 bytes decoded
	PEM        string
	PEMFile    string
}

// Load validates cfg and returns the corresponding KeyPair, or a
// descriptive error for any of the negative scenarios in spec.md §8.3:
// empty config, missing/invalid subject, wrong-length keys, or PEM that
// fails to parse.
func Load(cfg Config) (*KeyPair, error) {
	if err := validateSubject(cfg.Subject); err != nil {
		return nil, err
	}

	switch {
	case cfg.PEM != "" || cfg.PEMFile != "":
		return loadFromPEM(cfg)
	case cfg.PublicKey != "" || cfg.PrivateKey != "":
		return loadFromRaw(cfg)
	default:
		return nil, fmt.Errorf("vapid: no key material supplied (need publicKey/privateKey or pem/pemFile)")
	}
}

func validateSubject(subject string) error {
	if subject == "" {
		return fmt.Errorf("vapid: subject is required")
	}
	switch {
	case strings.HasPrefix(subject, "mailto:"):
		addr := strings.TrimPrefix(subject, "mailto:")
		at := strings.IndexByte(addr, '@')
		if at <= 0 || at == len(addr)-1 {
			return fmt.Errorf("vapid: mailto subject must have a local part and domain: %q", subject)
		}
		return nil
	case strings.HasPrefix(subject, "https://"):
		u, err := url.Parse(subject)
		if err != nil || u.Host == "" {
			return fmt.Errorf("vapid: invalid https subject: %q", subject)
		}
		return nil
	default:
		return fmt.Errorf("vapid: subject must be a mailto: or https: URL: %q", subject)
	}
}

func loadFromRaw(cfg Config) (*KeyPair, error) {
	if cfg.PublicKey == "" || cfg.PrivateKey == "" {
		return nil, fmt.Errorf("vapid: both publicKey and privateKey are required")
	}
	pub, err := b64.DecodeString(cfg.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("vapid: decoding public key: %w", err)
	}
	pub, err = codec.NormalizePublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("vapid: %w", err)
	}
	priv, err := b64.DecodeString(cfg.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("vapid: decoding private key: %w", err)
	}
	if len(priv) != 32 {
		return nil, fmt.Errorf("vapid: private key must be 32 bytes, got %d", len(priv))
	}
	if _, err := ecdh.P256().NewPublicKey(pub); err != nil {
		return nil, fmt.Errorf("vapid: public key not on curve: %w", err)
	}
	if _, err := ecdh.P256().NewPrivateKey(priv); err != nil {
		return nil, fmt.Errorf("vapid: private scalar out of range: %w", err)
	}
	return &KeyPair{Subject: cfg.Subject, PublicKey: pub, PrivateKey: priv}, nil
}

// loadFromPEM decodes an EC PRIVATE KEY PEM block (inline text or a file),
// adapted from the teacher's keys.NewFileSigner, generalized to return a
// plain KeyPair value instead of a Signer.
func loadFromPEM(cfg Config) (*KeyPair, error) {
	pemText := cfg.PEM
	if cfg.PEMFile != "" {
		data, err := os.ReadFile(cfg.PEMFile)
		if err != nil {
			return nil, fmt.Errorf("vapid: reading pem file: %w", err)
		}
		pemText = string(data)
	}
	if strings.TrimSpace(pemText) == "" {
		return nil, fmt.Errorf("vapid: empty PEM")
	}
	block, _ := pem.Decode([]byte(pemText))
	if block == nil {
		return nil, fmt.Errorf("vapid: failed to parse PEM block")
	}
	privKey, err := x509.ParseECPrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("vapid: parsing EC private key: %w", err)
	}
	if privKey.Curve != elliptic.P256() {
		return nil, fmt.Errorf("vapid: key must be P-256 curve")
	}
	pub := elliptic.Marshal(privKey.Curve, privKey.X, privKey.Y)
	priv := make([]byte, 32)
	privKey.D.FillBytes(priv)
	return &KeyPair{Subject: cfg.Subject, PublicKey: pub, PrivateKey: priv}, nil
}

// ecdsaPrivateKey reconstructs the stdlib type needed for signing.
func (k *KeyPair) ecdsaPrivateKey() (*ecdsa.PrivateKey, error) {
	priv := new(ecdsa.PrivateKey)
	priv.Curve = elliptic.P256()
	priv.D = new(big.Int).SetBytes(k.PrivateKey)
	priv.X, priv.Y = new(big.Int), new(big.Int)
	priv.X.SetBytes(k.PublicKey[1:33])
	priv.Y.SetBytes(k.PublicKey[33:65])
	if !priv.Curve.IsOnCurve(priv.X, priv.Y) {
		return nil, fmt.Errorf("vapid: public key is not a valid point on P-256")
	}
	return priv, nil
}

// PublicKeyBase64 returns the public key as it would be handed to
// PushManager.subscribe()'s applicationServerKey option.
func (k *KeyPair) PublicKeyBase64() string { return b64.EncodeToString(k.PublicKey) }

// fingerprint returns a stable identifier for the key pair, used as part of
// the VAPID header cache key (spec.md §4.5) so the cache never needs the
// raw key bytes as a map key.
func (k *KeyPair) fingerprint() string {
	sum := sha256.Sum256(k.PublicKey)
	return base64.RawStdEncoding.EncodeToString(sum[:])
}

// CreateKeys generates a fresh VAPID key pair and returns both keys
// base64url-encoded, per spec.md §6's createVapidKeys().
func CreateKeys() (publicKey, privateKey string, err error) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return "", "", fmt.Errorf("vapid: generating key: %w", err)
	}
	pub := elliptic.Marshal(priv.Curve, priv.X, priv.Y)
	d := make([]byte, 32)
	priv.D.FillBytes(d)
	return b64.EncodeToString(pub), b64.EncodeToString(d), nil
}
