package transport

import (
	"errors"
	"fmt"
	"net"
)

// EncodeAddr encodes a network address as a 1-byte family (0x04 for IPv4,
// 0x06 for IPv6) followed by 4 or 16 address bytes and a 2-byte
// big-endian port, per the contact-list wire format.
func EncodeAddr(addr *net.UDPAddr) ([]byte, error) {
	ip4 := addr.IP.To4()
	if ip4 != nil {
		out := make([]byte, 1+4+2)
		out[0] = 0x04
		copy(out[1:5], ip4)
		out[5] = byte(addr.Port >> 8)
		out[6] = byte(addr.Port)
		return out, nil
	}

	ip6 := addr.IP.To16()
	if ip6 == nil {
		return nil, fmt.Errorf("transport: address %v is neither IPv4 nor IPv6", addr)
	}
	out := make([]byte, 1+16+2)
	out[0] = 0x06
	copy(out[1:17], ip6)
	out[17] = byte(addr.Port >> 8)
	out[18] = byte(addr.Port)
	return out, nil
}

// DecodeAddr decodes a wire-encoded address and returns it alongside the
// number of bytes consumed.
func DecodeAddr(data []byte) (*net.UDPAddr, int, error) {
	if len(data) < 1 {
		return nil, 0, errors.New("transport: empty address")
	}

	switch data[0] {
	case 0x04:
		const n = 1 + 4 + 2
		if len(data) < n {
			return nil, 0, errors.New("transport: truncated IPv4 address")
		}
		ip := net.IP(append([]byte(nil), data[1:5]...))
		port := int(data[5])<<8 | int(data[6])
		return &net.UDPAddr{IP: ip, Port: port}, n, nil
	case 0x06:
		const n = 1 + 16 + 2
		if len(data) < n {
			return nil, 0, errors.New("transport: truncated IPv6 address")
		}
		ip := net.IP(append([]byte(nil), data[1:17]...))
		port := int(data[17])<<8 | int(data[18])
		return &net.UDPAddr{IP: ip, Port: port}, n, nil
	default:
		return nil, 0, fmt.Errorf("transport: unknown address family 0x%02x", data[0])
	}
}
