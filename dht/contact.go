package dht

import (
	"net"

	"github.com/opd-ai/kadnode/identifier"
)

// Contact is an immutable (identifier, network address) pair identifying
// a peer in the network. Two contacts are equal iff both fields match.
type Contact struct {
	ID   identifier.ID
	Addr net.Addr
}

// Equal reports whether c and other name the same identifier at the same
// address.
func (c Contact) Equal(other Contact) bool {
	return c.ID.Equal(other.ID) && addrString(c.Addr) == addrString(other.Addr)
}

func addrString(a net.Addr) string {
	if a == nil {
		return ""
	}
	return a.String()
}
