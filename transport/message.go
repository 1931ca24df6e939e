package transport

import (
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/opd-ai/kadnode/identifier"
)

// MessageType distinguishes an outbound request from its matching reply on
// the wire.
type MessageType byte

const (
	// Request identifies an outbound RPC invocation.
	Request MessageType = 0x00
	// Response identifies a reply to a previously sent request, carrying
	// the same correlation token.
	Response MessageType = 0x01
)

// maxMethodNameLen is the wire limit on method_name length, pinned by the
// protocol's 1-byte length prefix and its own stated maximum.
const maxMethodNameLen = 16

// tokenSize is the width of the correlation token in bytes.
const tokenSize = 8

// Token is an 8-byte value that correlates a Response to the Request that
// caused it. It need not be cryptographically random, only distinct
// within the lifetime of the pending call it identifies.
type Token [tokenSize]byte

// Message is the parsed form of a single wire packet: a message type, a
// correlation token, the sender's node identifier, a method name, and an
// opaque method-specific payload.
//
// Encoding, in order: message_type(1) | token(8) | sender_id(20) |
// method_name(length-prefixed, max 16 ASCII bytes) | payload(remainder).
type Message struct {
	Type    MessageType
	Token   Token
	Sender  identifier.ID
	Method  string
	Payload []byte
}

// Serialize encodes m into its wire representation.
func (m *Message) Serialize() ([]byte, error) {
	if len(m.Method) > maxMethodNameLen {
		return nil, fmt.Errorf("transport: method name %q exceeds %d bytes", m.Method, maxMethodNameLen)
	}

	buf := make([]byte, 0, 1+tokenSize+identifier.Size+1+len(m.Method)+len(m.Payload))
	buf = append(buf, byte(m.Type))
	buf = append(buf, m.Token[:]...)
	buf = append(buf, m.Sender[:]...)
	buf = append(buf, byte(len(m.Method)))
	buf = append(buf, []byte(m.Method)...)
	buf = append(buf, m.Payload...)
	return buf, nil
}

// ParseMessage decodes a wire packet into a Message.
func ParseMessage(data []byte) (*Message, error) {
	const headerLen = 1 + tokenSize + identifier.Size + 1
	if len(data) < headerLen {
		return nil, errors.New("transport: message too short")
	}

	msg := &Message{}
	offset := 0

	switch MessageType(data[offset]) {
	case Request, Response:
		msg.Type = MessageType(data[offset])
	default:
		return nil, fmt.Errorf("transport: unknown message type 0x%02x", data[offset])
	}
	offset++

	copy(msg.Token[:], data[offset:offset+tokenSize])
	offset += tokenSize

	msg.Sender = identifier.New(data[offset : offset+identifier.Size])
	offset += identifier.Size

	methodLen := int(data[offset])
	offset++
	if methodLen > maxMethodNameLen {
		return nil, fmt.Errorf("transport: method name length %d exceeds %d", methodLen, maxMethodNameLen)
	}
	if len(data) < offset+methodLen {
		return nil, errors.New("transport: truncated method name")
	}
	msg.Method = string(data[offset : offset+methodLen])
	offset += methodLen

	msg.Payload = append([]byte(nil), data[offset:]...)
	return msg, nil
}

// newToken returns an 8-byte value suitable as a correlation token.
// Collision avoidance is only required within one call's timeout
// window, but crypto/rand is already on hand for identifier.Random and
// a second source isn't worth carrying.
func newToken() (Token, error) {
	var t Token
	if _, err := rand.Read(t[:]); err != nil {
		return Token{}, fmt.Errorf("transport: failed to generate correlation token: %w", err)
	}
	return t, nil
}
