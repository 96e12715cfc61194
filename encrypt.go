package webpush

import (
	"crypto/ecdh"
	"crypto/rand"
	"encoding/binary"
	"fmt"
)

// Content-Encoding info-string literals, bit-exact per spec.md §6. Every
// one is NUL-terminated.
var (
	infoAuth      = []byte("Content-Encoding: auth\x00")
	infoAESGCM    = []byte("Content-Encoding: aesgcm\x00")
	infoAES128GCM = []byte("Content-Encoding: aes128gcm\x00")
	infoNonce     = []byte("Content-Encoding: nonce\x00")
	infoWebPush   = []byte("WebPush: info\x00")
)

// encryptedMessage is the output of the encryption engine (component C4):
// the framed ciphertext body and the values the dispatcher needs to build
// the coding-specific headers.
type encryptedMessage struct {
	body            []byte
	salt            []byte
	localPublicKey  []byte // 65-byte uncompressed P-256 point
	contentEncoding ContentEncoding
}

// encrypt runs RFC 8291 (aes128gcm) or the legacy aesgcm draft message
// encryption over plaintext, addressed to a subscriber's public key and
// auth secret, per spec.md §4.4. A fresh local key pair and salt are
// generated for every call (property P3 in spec.md §8).
func encrypt(plaintext, subscriberPublicKey, authSecret []byte, coding ContentEncoding, paddingMax int) (*encryptedMessage, error) {
	if len(authSecret) != 16 {
		return nil, fmt.Errorf("auth secret: expected 16 bytes, got %d", len(authSecret))
	}
	peerKey, err := parseECDHPublicKey(subscriberPublicKey)
	if err != nil {
		return nil, fmt.Errorf("subscriber public key: %w", err)
	}

	localPriv, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generating local key pair: %w", err)
	}
	localPub := localPriv.PublicKey().Bytes()

	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generating salt: %w", err)
	}

	ikm, err := ecdhSecret(localPriv, peerKey)
	if err != nil {
		return nil, err
	}

	var cek, nonce []byte
	switch coding {
	case AESGCM:
		cek, nonce, err = deriveAESGCM(ikm, authSecret, salt, subscriberPublicKey, localPub)
	case AES128GCM:
		cek, nonce, err = deriveAES128GCM(ikm, authSecret, salt, subscriberPublicKey, localPub)
	default:
		return nil, fmt.Errorf("unsupported content coding %q", coding)
	}
	if err != nil {
		return nil, err
	}

	var padded []byte
	switch coding {
	case AESGCM:
		padded, err = padAESGCM(plaintext, paddingMax)
	case AES128GCM:
		padded, err = padAES128GCM(plaintext, paddingMax)
	}
	if err != nil {
		return nil, err
	}

	ciphertext, err := seal(cek, nonce, padded)
	if err != nil {
		return nil, err
	}

	body := frame(ciphertext, salt, localPub, coding)

	return &encryptedMessage{
		body:            body,
		salt:            salt,
		localPublicKey:  localPub,
		contentEncoding: coding,
	}, nil
}

// deriveAESGCM implements the legacy aesgcm key schedule (spec.md §4.4):
// PRK bound to the auth secret, then CEK/nonce derived from a context
// string naming both parties' public keys.
func deriveAESGCM(ikm, authSecret, salt, peerPub, localPub []byte) (cek, nonce []byte, err error) {
	prk, err := hkdfExpand(ikm, authSecret, infoAuth, 32)
	if err != nil {
		return nil, nil, err
	}
	context := aesgcmContext(peerPub, localPub)

	cekInfo := append(append([]byte{}, infoAESGCM...), context...)
	cek, err = hkdfExpand(prk, salt, cekInfo, 16)
	if err != nil {
		return nil, nil, err
	}

	nonceInfo := append(append([]byte{}, infoNonce...), context...)
	nonce, err = hkdfExpand(prk, salt, nonceInfo, 12)
	if err != nil {
		return nil, nil, err
	}
	return cek, nonce, nil
}

// aesgcmContext builds "P-256\0" || u16(len(peer)) || peer || u16(len(local)) || local.
func aesgcmContext(peerPub, localPub []byte) []byte {
	ctx := make([]byte, 0, 6+2+len(peerPub)+2+len(localPub))
	ctx = append(ctx, "P-256\x00"...)
	ctx = u16be(ctx, len(peerPub))
	ctx = append(ctx, peerPub...)
	ctx = u16be(ctx, len(localPub))
	ctx = append(ctx, localPub...)
	return ctx
}

// deriveAES128GCM implements the RFC 8291 key schedule (spec.md §4.4): a
// single info string naming both public keys feeds the PRK derivation
// directly, with no separate context wrapper.
func deriveAES128GCM(ikm, authSecret, salt, peerPub, localPub []byte) (cek, nonce []byte, err error) {
	info := make([]byte, 0, len(infoWebPush)+len(peerPub)+len(localPub))
	info = append(info, infoWebPush...)
	info = append(info, peerPub...)
	info = append(info, localPub...)

	prk, err := hkdfExpand(ikm, authSecret, info, 32)
	if err != nil {
		return nil, nil, err
	}
	cek, err = hkdfExpand(prk, salt, infoAES128GCM, 16)
	if err != nil {
		return nil, nil, err
	}
	nonce, err = hkdfExpand(prk, salt, infoNonce, 12)
	if err != nil {
		return nil, nil, err
	}
	return cek, nonce, nil
}

// frame prepends the aes128gcm record header (salt || recordSize || keylen
// || localPublicKey) ahead of the ciphertext; aesgcm carries no header of
// its own, since its salt and key travel in HTTP headers instead
// (spec.md §4.4, property P1/P2 in spec.md §8).
func frame(ciphertext, salt, localPub []byte, coding ContentEncoding) []byte {
	if coding != AES128GCM {
		return ciphertext
	}
	// recordSize = padded-plaintext-length + 16 (AEAD expansion) + 1,
	// per spec.md §9's fix for the open question on recordSize; since
	// ciphertext already carries the 16-byte tag, that's len(ciphertext)+1.
	recordSize := uint32(len(ciphertext) + 1)
	header := make([]byte, 0, 16+4+1+len(localPub)+len(ciphertext))
	header = append(header, salt...)
	header = binary.BigEndian.AppendUint32(header, recordSize)
	header = append(header, byte(len(localPub)))
	header = append(header, localPub...)
	return append(header, ciphertext...)
}
