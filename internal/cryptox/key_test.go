package cryptox

import (
	"encoding/base64"
	"encoding/hex"
	"testing"

	"github.com/dmitrijs2005/debtorkeeper/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadKey(t *testing.T) {
	raw := testKey(0xAB)

	t.Run("hex", func(t *testing.T) {
		k, err := LoadKey(hex.EncodeToString(raw), "", "")
		require.NoError(t, err)
		assert.Equal(t, raw, k)
	})

	t.Run("base64", func(t *testing.T) {
		k, err := LoadKey(base64.StdEncoding.EncodeToString(raw), "", "")
		require.NoError(t, err)
		assert.Equal(t, raw, k)
	})

	t.Run("explicit key wins over passphrase", func(t *testing.T) {
		k, err := LoadKey(hex.EncodeToString(raw), "pass", "salt")
		require.NoError(t, err)
		assert.Equal(t, raw, k)
	})

	t.Run("derived from passphrase", func(t *testing.T) {
		k, err := LoadKey("", "secret-password", "fixed-salt")
		require.NoError(t, err)
		assert.Equal(t, DeriveMasterKey([]byte("secret-password"), []byte("fixed-salt")), k)
	})

	t.Run("wrong length", func(t *testing.T) {
		_, err := LoadKey(hex.EncodeToString(raw[:16]), "", "")
		var ks *KeySizeError
		assert.ErrorAs(t, err, &ks)
	})

	t.Run("garbage is not echoed", func(t *testing.T) {
		_, err := LoadKey("not a key!!", "", "")
		require.ErrorIs(t, err, ErrKeyEncoding)
		assert.NotContains(t, err.Error(), "not a key")
	})

	t.Run("nothing configured", func(t *testing.T) {
		_, err := LoadKey("", "", "")
		assert.ErrorIs(t, err, common.ErrorMissingKey)
	})
}
