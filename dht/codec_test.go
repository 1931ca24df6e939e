package dht

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeContactsRoundTrip(t *testing.T) {
	contacts := []Contact{
		contactAt(mustID(t), 1),
		contactAt(mustID(t), 2),
	}

	encoded, err := encodeContacts(contacts)
	require.NoError(t, err)

	decoded, err := decodeContacts(encoded)
	require.NoError(t, err)
	require.Len(t, decoded, 2)
	for i := range contacts {
		require.True(t, contacts[i].ID.Equal(decoded[i].ID))
		require.Equal(t, contacts[i].Addr.(*net.UDPAddr).Port, decoded[i].Addr.(*net.UDPAddr).Port)
	}
}

func TestEncodeDecodeContactsEmpty(t *testing.T) {
	encoded, err := encodeContacts(nil)
	require.NoError(t, err)

	decoded, err := decodeContacts(encoded)
	require.NoError(t, err)
	require.Empty(t, decoded)
}

func TestFindValueResponseRoundTripValue(t *testing.T) {
	encoded := encodeFindValueValueResponse([]byte("world"))
	result, err := decodeFindValueResponse(encoded)
	require.NoError(t, err)
	require.Equal(t, []byte("world"), result.Value)
	require.Nil(t, result.Contacts)
}

func TestFindValueResponseRoundTripContacts(t *testing.T) {
	contacts := []Contact{contactAt(mustID(t), 1)}
	encoded, err := encodeFindValueContactsResponse(contacts)
	require.NoError(t, err)

	result, err := decodeFindValueResponse(encoded)
	require.NoError(t, err)
	require.Nil(t, result.Value)
	require.Len(t, result.Contacts, 1)
}

func TestStoreRequestRoundTrip(t *testing.T) {
	keyID := KeyID([]byte("hello"))
	encoded, err := encodeStoreRequest(keyID, []byte("hello"), []byte("world"))
	require.NoError(t, err)

	decoded, err := decodeStoreRequest(encoded)
	require.NoError(t, err)
	require.True(t, decoded.KeyID.Equal(keyID))
	require.Equal(t, []byte("hello"), decoded.Key)
	require.Equal(t, []byte("world"), decoded.Value)
}

func TestDecodeTargetIDRejectsTruncated(t *testing.T) {
	_, err := decodeTargetID([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestBoolRoundTrip(t *testing.T) {
	require.Equal(t, []byte{1}, encodeBool(true))
	require.Equal(t, []byte{0}, encodeBool(false))

	v, err := decodeBool([]byte{1})
	require.NoError(t, err)
	require.True(t, v)
}

func TestEncodeFindNodeRequestTarget(t *testing.T) {
	target := mustID(t)
	encoded := encodeFindNodeRequest(target)
	got, err := decodeTargetID(encoded)
	require.NoError(t, err)
	require.True(t, target.Equal(got))
}

