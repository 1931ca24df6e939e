package identifier

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// Size is the width of a NodeIdentifier in bytes (160 bits).
const Size = 20

// Bits is the width of a NodeIdentifier in bits, and therefore the largest
// possible common-prefix-length value (CommonPrefixLen ranges over
// 0..Bits) and the upper bound on routing table depth.
const Bits = Size * 8

// ID is a 160-bit Kademlia identifier. The zero value is the identifier
// 0, a valid (if degenerate) value.
type ID [Size]byte

// New copies a 20-byte slice into an ID. It panics if b is not exactly
// Size bytes, since callers are expected to have already validated wire
// lengths before reaching this constructor.
func New(b []byte) ID {
	if len(b) != Size {
		panic(fmt.Sprintf("identifier: New requires %d bytes, got %d", Size, len(b)))
	}
	var id ID
	copy(id[:], b)
	return id
}

// Random generates a cryptographically random identifier. Collision
// probability across the 160-bit space is negligible for any realistic
// network size, so no uniqueness check is performed.
func Random() (ID, error) {
	var id ID
	if _, err := rand.Read(id[:]); err != nil {
		return ID{}, fmt.Errorf("identifier: failed to generate random id: %w", err)
	}
	return id, nil
}

// Xor returns the XOR distance between id and other, interpreted as an
// unsigned big-endian integer for ordering purposes.
func (id ID) Xor(other ID) ID {
	var out ID
	for i := 0; i < Size; i++ {
		out[i] = id[i] ^ other[i]
	}
	return out
}

// Less reports whether id is strictly smaller than other under
// lexicographic (equivalently, unsigned big-endian) byte ordering. Used
// to compare XOR distances: a smaller distance means "closer".
func (id ID) Less(other ID) bool {
	for i := 0; i < Size; i++ {
		if id[i] != other[i] {
			return id[i] < other[i]
		}
	}
	return false
}

// Equal reports whether id and other are identical.
func (id ID) Equal(other ID) bool {
	return id == other
}

// IsZero reports whether id is the all-zero identifier.
func (id ID) IsZero() bool {
	return id == ID{}
}

// Bit returns the value (0 or 1) of the bit at index i, counting from the
// most significant bit (i=0) to the least significant (i=Bits-1).
func (id ID) Bit(i int) int {
	if i < 0 || i >= Bits {
		panic(fmt.Sprintf("identifier: bit index %d out of range [0,%d)", i, Bits))
	}
	byteIdx := i / 8
	bitIdx := uint(7 - i%8)
	return int((id[byteIdx] >> bitIdx) & 1)
}

// CommonPrefixLen returns the number of leading bits id shares with other,
// counting from the most significant bit. It is the depth in the routing
// trie at which the two identifiers diverge, and ranges over [0, Bits].
// Two equal identifiers have a common prefix length of Bits.
func (id ID) CommonPrefixLen(other ID) int {
	for i := 0; i < Size; i++ {
		x := id[i] ^ other[i]
		if x == 0 {
			continue
		}
		// Find the index of the most significant set bit in x.
		for j := 0; j < 8; j++ {
			if (x>>(7-j))&1 == 1 {
				return i*8 + j
			}
		}
	}
	return Bits
}

// InRange reports whether id falls in the half-open interval [low, high)
// under unsigned big-endian ordering.
func InRange(id, low, high ID) bool {
	return !id.Less(low) && id.Less(high)
}

// String returns the lowercase hex encoding of id.
func (id ID) String() string {
	return hex.EncodeToString(id[:])
}

// FromHex parses a 40-character hex string into an ID.
func FromHex(s string) (ID, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return ID{}, fmt.Errorf("identifier: invalid hex: %w", err)
	}
	if len(b) != Size {
		return ID{}, fmt.Errorf("identifier: expected %d bytes, got %d", Size, len(b))
	}
	return New(b), nil
}
