package secretstore

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreRoundTrip(t *testing.T) {
	s, err := Open(OpenOptions{InMemory: true})
	require.NoError(t, err)
	defer s.Close()

	_, found, err := s.GetString(KeyMnemonic)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.SetString(KeyMnemonic, "test test test"))
	v, found, err := s.GetString(KeyMnemonic)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "test test test", v)

	require.NoError(t, s.SetString(KeyDerivationPath, ""))
	v, found, err = s.GetString(KeyDerivationPath)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Empty(t, v)

	require.NoError(t, s.Delete(KeyMnemonic))
	_, found, _ = s.GetString(KeyMnemonic)
	assert.False(t, found)

	_, _, err = s.GetString("  ")
	assert.ErrorIs(t, err, ErrEmptyKey)
}

func TestEncryptedStoreOnDisk(t *testing.T) {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	dir := t.TempDir()
	s, err := Open(OpenOptions{Path: dir, EncryptionKey: key})
	require.NoError(t, err)
	require.NoError(t, s.SetString(KeyPrivateKey, "0xabc"))
	require.NoError(t, s.Close())

	s, err = Open(OpenOptions{Path: dir, EncryptionKey: key})
	require.NoError(t, err)
	defer s.Close()
	v, found, err := s.GetString(KeyPrivateKey)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "0xabc", v)
}

func TestParseKey(t *testing.T) {
	b, err := ParseKey("")
	require.NoError(t, err)
	assert.Nil(t, b)

	hexKey := "0x" + strings.Repeat("ab", 32)
	b, err = ParseKey(hexKey)
	require.NoError(t, err)
	assert.Len(t, b, 32)

	b, err = ParseKey(base64.StdEncoding.EncodeToString(make([]byte, 32)))
	require.NoError(t, err)
	assert.Len(t, b, 32)

	_, err = ParseKey("abcd")
	assert.Error(t, err)
	_, err = ParseKey("!!not a key!!")
	assert.Error(t, err)
}

func TestNilStore(t *testing.T) {
	var s *Store
	assert.NoError(t, s.Close())
	_, _, err := s.GetString("k")
	assert.ErrorIs(t, err, ErrNotOpened)
}
