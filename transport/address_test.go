package transport

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeAddrIPv4(t *testing.T) {
	addr := &net.UDPAddr{IP: net.ParseIP("203.0.113.5").To4(), Port: 6881}

	encoded, err := EncodeAddr(addr)
	require.NoError(t, err)
	require.Equal(t, byte(0x04), encoded[0])

	decoded, n, err := DecodeAddr(encoded)
	require.NoError(t, err)
	require.Equal(t, len(encoded), n)
	require.True(t, decoded.IP.Equal(addr.IP))
	require.Equal(t, addr.Port, decoded.Port)
}

func TestEncodeDecodeAddrIPv6(t *testing.T) {
	addr := &net.UDPAddr{IP: net.ParseIP("2001:db8::1"), Port: 443}

	encoded, err := EncodeAddr(addr)
	require.NoError(t, err)
	require.Equal(t, byte(0x06), encoded[0])

	decoded, n, err := DecodeAddr(encoded)
	require.NoError(t, err)
	require.Equal(t, len(encoded), n)
	require.True(t, decoded.IP.Equal(addr.IP))
	require.Equal(t, addr.Port, decoded.Port)
}

func TestDecodeAddrRejectsTruncated(t *testing.T) {
	_, _, err := DecodeAddr([]byte{0x04, 1, 2, 3})
	require.Error(t, err)
}

func TestDecodeAddrRejectsUnknownFamily(t *testing.T) {
	_, _, err := DecodeAddr([]byte{0x09, 0, 0, 0, 0, 0, 0})
	require.Error(t, err)
}
