package cryptox

import (
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/crypto/hkdf"
)

const blindIndexInfo = "debtorkeeper/document-index/v1"

// Codec is the process-wide field codec. It is built once from the master key
// at startup and is safe for concurrent use: the AEAD and the index key are
// read-only after NewCodec returns.
type Codec struct {
	aead     cipher.AEAD
	indexKey []byte
}

// NewCodec prepares an AES-GCM codec and derives a separate HMAC key for blind
// indexes with HKDF-SHA256, so index values reveal nothing about the sealing
// key.
func NewCodec(key []byte) (*Codec, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}

	indexKey := make([]byte, KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, key, nil, []byte(blindIndexInfo)), indexKey); err != nil {
		return nil, fmt.Errorf("derive index key: %w", err)
	}

	return &Codec{aead: aead, indexKey: indexKey}, nil
}

// Encrypt seals plaintext. See EncryptField for the layout.
func (c *Codec) Encrypt(plaintext []byte) ([]byte, error) {
	return seal(c.aead, plaintext)
}

// Decrypt opens a value sealed by Encrypt or EncryptField with the same key.
func (c *Codec) Decrypt(ciphertext []byte) ([]byte, error) {
	return open(c.aead, ciphertext)
}

func (c *Codec) EncryptString(s string) ([]byte, error) {
	return c.Encrypt([]byte(s))
}

func (c *Codec) DecryptString(ciphertext []byte) (string, error) {
	b, err := c.Decrypt(ciphertext)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// BlindIndex returns HMAC-SHA256(indexKey, value). It is deterministic for a
// given key, which is what makes equality search over sealed columns work.
func (c *Codec) BlindIndex(value string) []byte {
	mac := hmac.New(sha256.New, c.indexKey)
	mac.Write([]byte(value))
	return mac.Sum(nil)
}

func (c *Codec) String() string {
	return "cryptox.Codec{key: [REDACTED]}"
}

func (c *Codec) LogValue() slog.Value {
	return slog.StringValue("[REDACTED]")
}
