package vapid

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/webpush-go/webpush/internal/codec"
	"github.com/webpush-go/webpush/internal/es256"
)

// jwtHeaderB64 is the base64url encoding of the fixed VAPID JWT header,
// {"typ":"JWT","alg":"ES256"} (spec.md §8 scenarios 1/2). It's built from a
// literal byte string, not a marshaled map, because encoding/json sorts map
// keys alphabetically ("alg" before "typ") and the wire format requires
// typ first.
var jwtHeaderB64 = codec.B64Encode([]byte(`{"typ":"JWT","alg":"ES256"}`))

// jwtClaims mirrors the VAPID claim set with explicit field order, so
// json.Marshal produces a deterministic byte sequence regardless of Go
// version map-ordering behavior.
type jwtClaims struct {
	Aud string `json:"aud"`
	Exp int64  `json:"exp"`
	Sub string `json:"sub"`
}

// HeaderSet is the pair of HTTP headers a signed VAPID token contributes to
// a push request. CryptoKey is empty for the aes128gcm coding, which folds
// the public key into the Authorization header instead (spec.md §4.5).
type HeaderSet struct {
	Authorization string
	CryptoKey     string
}

// Coding identifies which header assembly rule to use. Defined here
// (rather than imported from the root package) to keep this package
// import-cycle-free; the root package's ContentEncoding values are
// string-identical.
type Coding string

const (
	AESGCM    Coding = "aesgcm"
	AES128GCM Coding = "aes128gcm"
)

// MaxExpirationWindow is the longest a VAPID token may be valid for
// (spec.md §4.5).
const MaxExpirationWindow = 24 * time.Hour

// DefaultExpirationWindow is used when the caller doesn't specify an
// expiration.
const DefaultExpirationWindow = 12 * time.Hour

type cacheKey struct {
	audience    string
	coding      Coding
	fingerprint string
}

// Signer issues signed VAPID header sets and, within a single flush scope,
// memoizes them. Reuse the same Signer for one Client.Flush /
// FlushPooled call and Clear it afterward — the cache is never meant to
// outlive a flush or be shared across Client instances (spec.md §4.5,
// §5). The zero value is ready to use with caching disabled.
type Signer struct {
	// Reuse enables the per-flush memoization. When false, Sign always
	// computes a fresh token.
	Reuse bool

	mu    sync.Mutex
	cache map[cacheKey]HeaderSet
}

// Sign produces the Authorization (and, for aesgcm, Crypto-Key) header
// values for a request to audience, identifying the sender as subject and
// signed by keyPair, for the given content coding. expiration defaults to
// now+12h when zero and must not exceed now+24h.
func (s *Signer) Sign(audience, subject string, keyPair *KeyPair, coding Coding, expiration time.Time) (HeaderSet, error) {
	now := time.Now()
	if expiration.IsZero() {
		expiration = now.Add(DefaultExpirationWindow)
	}
	if expiration.After(now.Add(MaxExpirationWindow)) {
		return HeaderSet{}, fmt.Errorf("vapid: expiration %s exceeds max window of %s", expiration, MaxExpirationWindow)
	}

	key := cacheKey{audience: audience, coding: coding, fingerprint: keyPair.fingerprint()}
	if s.Reuse {
		s.mu.Lock()
		if s.cache != nil {
			if cached, ok := s.cache[key]; ok {
				s.mu.Unlock()
				return cached, nil
			}
		}
		s.mu.Unlock()
	}

	token, err := s.sign(audience, subject, keyPair, expiration)
	if err != nil {
		return HeaderSet{}, err
	}

	hs := assembleHeaders(token, keyPair, coding)

	if s.Reuse {
		s.mu.Lock()
		if s.cache == nil {
			s.cache = make(map[cacheKey]HeaderSet)
		}
		s.cache[key] = hs
		s.mu.Unlock()
	}
	return hs, nil
}

// Clear empties the per-flush cache. Call once a flush has finished
// issuing every request.
func (s *Signer) Clear() {
	s.mu.Lock()
	s.cache = nil
	s.mu.Unlock()
}

// sign hand-builds the compact JWT the way the teacher's createVAPIDHeader
// does: header and claims base64url-encoded and joined with ".", then
// signed over that signing input with the raw ES256 primitive (spec.md
// §4.2), which already returns a low-S-normalized signature.
func (s *Signer) sign(audience, subject string, keyPair *KeyPair, expiration time.Time) (string, error) {
	priv, err := keyPair.ecdsaPrivateKey()
	if err != nil {
		return "", fmt.Errorf("vapid: %w", err)
	}

	claimsJSON, err := json.Marshal(jwtClaims{Aud: audience, Exp: expiration.Unix(), Sub: subject})
	if err != nil {
		return "", fmt.Errorf("vapid: marshaling claims: %w", err)
	}
	signingInput := jwtHeaderB64 + "." + codec.B64Encode(claimsJSON)

	sig, err := es256.Sign(priv, []byte(signingInput))
	if err != nil {
		return "", fmt.Errorf("vapid: signing JWT: %w", err)
	}
	return signingInput + "." + codec.B64Encode(sig), nil
}

// AudienceFromEndpoint derives the VAPID aud claim: scheme + host of the
// push service endpoint. Non-default ports pass through unchanged in the
// host, per spec.md §9's open-question decision.
func AudienceFromEndpoint(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("vapid: parsing endpoint: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("vapid: endpoint %q has no scheme/host", endpoint)
	}
	return u.Scheme + "://" + u.Host, nil
}

func assembleHeaders(jwtToken string, keyPair *KeyPair, coding Coding) HeaderSet {
	pubKeyB64 := keyPair.PublicKeyBase64()
	switch coding {
	case AESGCM:
		return HeaderSet{
			Authorization: "WebPush " + jwtToken,
			CryptoKey:     "p256ecdsa=" + pubKeyB64,
		}
	default: // AES128GCM
		return HeaderSet{
			Authorization: "vapid t=" + jwtToken + ", k=" + pubKeyB64,
		}
	}
}
