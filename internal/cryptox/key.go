package cryptox

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/dmitrijs2005/debtorkeeper/internal/common"
)

// ErrKeyEncoding is returned when a configured key is neither hex nor base64.
// The offending value is deliberately not part of the message.
var ErrKeyEncoding = errors.New("encryption key must be hex or base64 encoded")

// LoadKey resolves the master key from configuration values.
//
// An explicit encoded key wins. Otherwise the key is derived from passphrase
// and salt with DeriveMasterKey. With neither configured it returns
// common.ErrorMissingKey.
func LoadKey(encoded, passphrase, salt string) ([]byte, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded != "" {
		key, err := decodeKey(encoded)
		if err != nil {
			return nil, err
		}
		if len(key) != KeySize {
			return nil, &KeySizeError{Expected: KeySize, Actual: len(key)}
		}
		return key, nil
	}

	if passphrase == "" || salt == "" {
		return nil, common.ErrorMissingKey
	}
	return DeriveMasterKey([]byte(passphrase), []byte(salt)), nil
}

func decodeKey(s string) ([]byte, error) {
	if len(s) == 2*KeySize {
		if b, err := hex.DecodeString(s); err == nil {
			return b, nil
		}
	}
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	if b, err := base64.RawURLEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return nil, ErrKeyEncoding
}
