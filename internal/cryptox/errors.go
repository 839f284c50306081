package cryptox

import (
	"errors"
	"fmt"
)

// ErrDecryption matches every *DecryptionError via errors.Is.
var ErrDecryption = errors.New("decryption failed")

// DecryptionError reports that a sealed value could not be opened. It never
// carries ciphertext, plaintext or key bytes: only the reason and, when the
// caller knows it, which record and field were involved.
type DecryptionError struct {
	RecordID string
	Field    string
	Reason   string
}

func (e *DecryptionError) Error() string {
	if e.RecordID == "" {
		return fmt.Sprintf("decryption failed: %s", e.Reason)
	}
	return fmt.Sprintf("decryption failed for record %s field %s: %s", e.RecordID, e.Field, e.Reason)
}

func (e *DecryptionError) Is(target error) bool {
	return target == ErrDecryption
}

// KeySizeError indicates a master key of the wrong length.
type KeySizeError struct {
	Expected int
	Actual   int
}

func (e *KeySizeError) Error() string {
	return fmt.Sprintf("invalid key size: expected %d bytes, got %d bytes", e.Expected, e.Actual)
}
