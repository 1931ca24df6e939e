package dht

import (
	"encoding/binary"
	"fmt"
	"net"

	"github.com/opd-ai/kadnode/identifier"
	"github.com/opd-ai/kadnode/transport"
)

// This file encodes the method-specific payloads §6 item 5 pins down:
// ping, find_node, find_value, and store requests/responses. The outer
// envelope (message_type, token, sender_id, method_name) is handled by
// transport.Message; everything here is Payload bytes only.

const (
	findValueTagContacts byte = 0
	findValueTagValue    byte = 1
)

func encodeFindNodeRequest(target identifier.ID) []byte {
	out := make([]byte, identifier.Size)
	copy(out, target[:])
	return out
}

func decodeTargetID(payload []byte) (identifier.ID, error) {
	if len(payload) < identifier.Size {
		return identifier.ID{}, fmt.Errorf("%w: target identifier truncated", ErrProtocol)
	}
	return identifier.New(payload[:identifier.Size]), nil
}

// encodeContacts serializes a contact list as count(1) followed by
// count * (20-byte id + encoded address).
func encodeContacts(contacts []Contact) ([]byte, error) {
	if len(contacts) > 255 {
		return nil, fmt.Errorf("%w: contact list too long to encode (%d)", ErrProtocol, len(contacts))
	}
	buf := []byte{byte(len(contacts))}
	for _, c := range contacts {
		udpAddr, ok := c.Addr.(*net.UDPAddr)
		if !ok {
			return nil, fmt.Errorf("%w: contact address is not a UDP address", ErrProtocol)
		}
		encoded, err := transport.EncodeAddr(udpAddr)
		if err != nil {
			return nil, err
		}
		buf = append(buf, c.ID[:]...)
		buf = append(buf, encoded...)
	}
	return buf, nil
}

func decodeContacts(data []byte) ([]Contact, error) {
	if len(data) < 1 {
		return nil, fmt.Errorf("%w: contact list missing count byte", ErrProtocol)
	}
	count := int(data[0])
	offset := 1
	contacts := make([]Contact, 0, count)
	for i := 0; i < count; i++ {
		if len(data) < offset+identifier.Size {
			return nil, fmt.Errorf("%w: contact list truncated at entry %d", ErrProtocol, i)
		}
		id := identifier.New(data[offset : offset+identifier.Size])
		offset += identifier.Size

		addr, n, err := transport.DecodeAddr(data[offset:])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrProtocol, err)
		}
		offset += n

		contacts = append(contacts, Contact{ID: id, Addr: addr})
	}
	return contacts, nil
}

func encodeFindValueValueResponse(value []byte) []byte {
	buf := make([]byte, 1+2+len(value))
	buf[0] = findValueTagValue
	binary.BigEndian.PutUint16(buf[1:3], uint16(len(value)))
	copy(buf[3:], value)
	return buf
}

func encodeFindValueContactsResponse(contacts []Contact) ([]byte, error) {
	encoded, err := encodeContacts(contacts)
	if err != nil {
		return nil, err
	}
	return append([]byte{findValueTagContacts}, encoded...), nil
}

// findValueResult is the decoded form of a find_value response: exactly
// one of Value or Contacts is populated, matching §6's "value-or-contacts
// exclusively" framing (§9 Open Questions resolves this against contacts
// always riding along).
type findValueResult struct {
	Value    []byte
	Contacts []Contact
}

func decodeFindValueResponse(data []byte) (findValueResult, error) {
	if len(data) < 1 {
		return findValueResult{}, fmt.Errorf("%w: find_value response missing tag byte", ErrProtocol)
	}
	switch data[0] {
	case findValueTagValue:
		if len(data) < 3 {
			return findValueResult{}, fmt.Errorf("%w: find_value value response truncated", ErrProtocol)
		}
		n := int(binary.BigEndian.Uint16(data[1:3]))
		if len(data) < 3+n {
			return findValueResult{}, fmt.Errorf("%w: find_value value truncated", ErrProtocol)
		}
		return findValueResult{Value: append([]byte(nil), data[3:3+n]...)}, nil
	case findValueTagContacts:
		contacts, err := decodeContacts(data[1:])
		if err != nil {
			return findValueResult{}, err
		}
		return findValueResult{Contacts: contacts}, nil
	default:
		return findValueResult{}, fmt.Errorf("%w: unknown find_value tag 0x%02x", ErrProtocol, data[0])
	}
}

// encodeStoreRequest lays out key_id(20) + length-prefixed key_bytes +
// length-prefixed value_bytes, with 2-byte big-endian length prefixes
// (the method_name's 1-byte prefix is too narrow for arbitrary values).
func encodeStoreRequest(keyID identifier.ID, key, value []byte) ([]byte, error) {
	if len(key) > 0xFFFF || len(value) > 0xFFFF {
		return nil, fmt.Errorf("%w: store payload exceeds 64KiB field limit", ErrProtocol)
	}
	buf := make([]byte, 0, identifier.Size+2+len(key)+2+len(value))
	buf = append(buf, keyID[:]...)

	keyLen := make([]byte, 2)
	binary.BigEndian.PutUint16(keyLen, uint16(len(key)))
	buf = append(buf, keyLen...)
	buf = append(buf, key...)

	valLen := make([]byte, 2)
	binary.BigEndian.PutUint16(valLen, uint16(len(value)))
	buf = append(buf, valLen...)
	buf = append(buf, value...)
	return buf, nil
}

type storeRequest struct {
	KeyID identifier.ID
	Key   []byte
	Value []byte
}

func decodeStoreRequest(data []byte) (storeRequest, error) {
	if len(data) < identifier.Size+2 {
		return storeRequest{}, fmt.Errorf("%w: store request truncated", ErrProtocol)
	}
	offset := 0
	keyID := identifier.New(data[offset : offset+identifier.Size])
	offset += identifier.Size

	keyLen := int(binary.BigEndian.Uint16(data[offset : offset+2]))
	offset += 2
	if len(data) < offset+keyLen+2 {
		return storeRequest{}, fmt.Errorf("%w: store request key truncated", ErrProtocol)
	}
	key := append([]byte(nil), data[offset:offset+keyLen]...)
	offset += keyLen

	valLen := int(binary.BigEndian.Uint16(data[offset : offset+2]))
	offset += 2
	if len(data) < offset+valLen {
		return storeRequest{}, fmt.Errorf("%w: store request value truncated", ErrProtocol)
	}
	value := append([]byte(nil), data[offset:offset+valLen]...)

	return storeRequest{KeyID: keyID, Key: key, Value: value}, nil
}

func encodeBool(b bool) []byte {
	if b {
		return []byte{1}
	}
	return []byte{0}
}

func decodeBool(data []byte) (bool, error) {
	if len(data) < 1 {
		return false, fmt.Errorf("%w: boolean response missing", ErrProtocol)
	}
	return data[0] != 0, nil
}
