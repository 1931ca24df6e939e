package dht

import (
	"crypto/sha1"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeyIDMatchesSHA1(t *testing.T) {
	key := []byte("hello")
	sum := sha1.Sum(key)
	require.Equal(t, sum[:], KeyID(key)[:])
}

func TestValueStorePutGet(t *testing.T) {
	s := NewValueStore()
	keyID := KeyID([]byte("hello"))

	_, ok := s.Get(keyID)
	require.False(t, ok)

	s.Put(keyID, []byte("world"))
	value, ok := s.Get(keyID)
	require.True(t, ok)
	require.Equal(t, []byte("world"), value)
}

func TestValueStoreLastWriteWins(t *testing.T) {
	s := NewValueStore()
	keyID := KeyID([]byte("k"))
	s.Put(keyID, []byte("first"))
	s.Put(keyID, []byte("second"))

	value, ok := s.Get(keyID)
	require.True(t, ok)
	require.Equal(t, []byte("second"), value)
}

func TestValueStoreGetReturnsIndependentCopy(t *testing.T) {
	s := NewValueStore()
	keyID := KeyID([]byte("k"))
	s.Put(keyID, []byte("original"))

	value, _ := s.Get(keyID)
	value[0] = 'X'

	again, _ := s.Get(keyID)
	require.Equal(t, []byte("original"), again)
}
