package dht

import "github.com/opd-ai/kadnode/identifier"

// KBucket holds up to capacity contacts ordered from least-recently-seen
// (index 0) to most-recently-seen (tail). RoutingTable is the only
// caller; a KBucket does not know its own range or position in the
// trie, so all range bookkeeping lives in RoutingTable.
type KBucket struct {
	contacts []Contact
	capacity int

	// challengePending is set while an eviction-challenge ping for this
	// bucket's head contact is outstanding. Only one challenge may be
	// in flight per bucket at a time.
	challengePending bool
}

func newKBucket(capacity int) *KBucket {
	return &KBucket{
		contacts: make([]Contact, 0, capacity),
		capacity: capacity,
	}
}

// indexOf returns the slice position of id, or -1 if absent.
func (b *KBucket) indexOf(id identifier.ID) int {
	for i, c := range b.contacts {
		if c.ID.Equal(id) {
			return i
		}
	}
	return -1
}

// touch moves the contact at position i to the tail, marking it most
// recently seen.
func (b *KBucket) touch(i int) {
	c := b.contacts[i]
	b.contacts = append(b.contacts[:i], b.contacts[i+1:]...)
	b.contacts = append(b.contacts, c)
}

// full reports whether the bucket is at capacity.
func (b *KBucket) full() bool {
	return len(b.contacts) >= b.capacity
}

// append adds a contact at the tail without checking capacity; callers
// must only do so when !full().
func (b *KBucket) append(c Contact) {
	b.contacts = append(b.contacts, c)
}

// head returns the least-recently-seen contact. Callers must only call
// this on a non-empty bucket.
func (b *KBucket) head() Contact {
	return b.contacts[0]
}

// evictHead removes the least-recently-seen contact.
func (b *KBucket) evictHead() {
	b.contacts = b.contacts[1:]
}

// removeID removes the contact with the given identifier, if present.
func (b *KBucket) removeID(id identifier.ID) bool {
	i := b.indexOf(id)
	if i < 0 {
		return false
	}
	b.contacts = append(b.contacts[:i], b.contacts[i+1:]...)
	return true
}

// snapshot returns a copy of the bucket's contacts, safe for the caller
// to retain after the routing table's lock is released.
func (b *KBucket) snapshot() []Contact {
	out := make([]Contact, len(b.contacts))
	copy(out, b.contacts)
	return out
}
