// Package cryptox holds the field-level encryption used for sensitive debtor
// attributes: AES-256-GCM sealing with a random nonce per value, Argon2id key
// derivation and a keyed blind index for equality lookups.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/argon2"
)

const (
	// KeySize is the only accepted master key length (AES-256).
	KeySize = 32

	// formatV1 prefixes every sealed value so the layout can evolve without
	// guessing at old rows.
	formatV1 byte = 0x01

	nonceSize = 12
)

// DeriveMasterKey stretches a passphrase into a KeySize key with Argon2id.
// Same inputs always yield the same key.
func DeriveMasterKey(password []byte, salt []byte) []byte {
	return argon2.IDKey(password, salt, 1, 64*1024, 4, KeySize)
}

// EncryptField seals plaintext under key with AES-GCM.
//
// The output layout is:
//
//	version(1) || nonce(12) || ciphertext+tag
//
// A fresh random nonce is drawn on every call, so sealing the same value
// twice yields different bytes.
func EncryptField(plaintext, key []byte) ([]byte, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}
	return seal(aead, plaintext)
}

// DecryptField reverses EncryptField. Any authentication failure, wrong key,
// unknown version byte or truncated input is reported as *DecryptionError.
func DecryptField(ciphertext, key []byte) ([]byte, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}
	return open(aead, ciphertext)
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, &KeySizeError{Expected: KeySize, Actual: len(key)}
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("new gcm: %w", err)
	}
	return aead, nil
}

func seal(aead cipher.AEAD, plaintext []byte) ([]byte, error) {
	out := make([]byte, 1+nonceSize, 1+nonceSize+len(plaintext)+aead.Overhead())
	out[0] = formatV1
	nonce := out[1 : 1+nonceSize]
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}
	return aead.Seal(out, nonce, plaintext, []byte{formatV1}), nil
}

func open(aead cipher.AEAD, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < 1+nonceSize+aead.Overhead() {
		return nil, &DecryptionError{Reason: "ciphertext too short"}
	}
	if ciphertext[0] != formatV1 {
		return nil, &DecryptionError{Reason: fmt.Sprintf("unknown format version %d", ciphertext[0])}
	}
	nonce := ciphertext[1 : 1+nonceSize]
	plaintext, err := aead.Open(nil, nonce, ciphertext[1+nonceSize:], ciphertext[:1])
	if err != nil {
		return nil, &DecryptionError{Reason: "authentication failed"}
	}
	return plaintext, nil
}
