package dht

import (
	"sort"
	"sync"
	"time"

	"github.com/opd-ai/kadnode/identifier"
)

// DefaultBucketSize is the standard Kademlia K: the per-bucket capacity
// and the result-set size for find_node/find_value and lookups.
const DefaultBucketSize = 20

// PingFunc probes a contact's liveness for the eviction-challenge
// protocol. It blocks until the probe settles (success or timeout) and
// is always invoked from a goroutine the RoutingTable owns, never on
// the caller of Observe.
type PingFunc func(Contact) bool

// RoutingTable is a binary trie of k-buckets covering the full
// identifier space, splittable only along the path toward the local
// identifier (§4.2). It starts as a single bucket covering the whole
// space and grows by splitting the bucket that still contains the
// local identifier, the "frontier" bucket, always the last element of
// buckets. Every other bucket is final: once it diverges from the
// local identifier's prefix, it never splits again, only evicts.
type RoutingTable struct {
	mu   sync.Mutex
	self identifier.ID
	k    int

	// buckets[i] for i < len(buckets)-1 holds contacts whose common
	// prefix length with self is exactly i. buckets[len(buckets)-1] is
	// the frontier: it holds everything with common prefix length >=
	// len(buckets)-1, i.e. everything not yet split away from self.
	buckets []*KBucket

	ping PingFunc
}

// NewRoutingTable creates a routing table for self with per-bucket
// capacity k (DefaultBucketSize in production use; tests often use a
// smaller k to exercise splitting and eviction cheaply).
func NewRoutingTable(self identifier.ID, k int) *RoutingTable {
	return &RoutingTable{
		self:    self,
		k:       k,
		buckets: []*KBucket{newKBucket(k)},
	}
}

// SetPingFunc wires the liveness probe used by the eviction-challenge
// protocol. Until it is set, Observe drops newcomers to full non-local
// buckets rather than challenge a contact it cannot verify.
func (rt *RoutingTable) SetPingFunc(fn PingFunc) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.ping = fn
}

// bucketIndex returns the index into buckets responsible for id. Must
// be called with rt.mu held.
func (rt *RoutingTable) bucketIndex(id identifier.ID) int {
	frontier := len(rt.buckets) - 1
	cpl := id.CommonPrefixLen(rt.self)
	if cpl >= frontier {
		return frontier
	}
	return cpl
}

// Observe inserts or refreshes contact, non-blocking. It may launch at
// most one eviction-challenge goroutine per call.
func (rt *RoutingTable) Observe(c Contact) {
	if c.ID.Equal(rt.self) {
		return
	}

	rt.mu.Lock()

	idx := rt.bucketIndex(c.ID)
	b := rt.buckets[idx]

	if i := b.indexOf(c.ID); i >= 0 {
		b.touch(i)
		rt.mu.Unlock()
		return
	}

	if !b.full() {
		b.append(c)
		rt.mu.Unlock()
		return
	}

	frontier := len(rt.buckets) - 1
	if idx == frontier && frontier < identifier.Bits-1 {
		rt.split(frontier)
		rt.mu.Unlock()
		rt.Observe(c)
		return
	}

	if b.challengePending || rt.ping == nil {
		rt.mu.Unlock()
		return
	}
	b.challengePending = true
	head := b.head()
	pingFn := rt.ping
	rt.mu.Unlock()

	go rt.runEvictionChallenge(idx, head, c, pingFn)
}

// split divides the frontier bucket at idx into two: one taking every
// contact that diverges from self at exactly bit idx (which stops
// splitting forever), and a new frontier taking everything that still
// shares a longer prefix with self. Must be called with rt.mu held and
// idx == len(rt.buckets)-1.
func (rt *RoutingTable) split(idx int) {
	old := rt.buckets[idx]
	contacts := old.snapshot()

	diverged := newKBucket(rt.k)
	frontier := newKBucket(rt.k)
	for _, c := range contacts {
		if c.ID.CommonPrefixLen(rt.self) == idx {
			diverged.append(c)
		} else {
			frontier.append(c)
		}
	}

	rt.buckets[idx] = diverged
	rt.buckets = append(rt.buckets, frontier)
}

// runEvictionChallenge pings head; on success head is refreshed and c
// is dropped, on failure (or timeout, surfaced by pingFn returning
// false) head is evicted and c takes its place.
func (rt *RoutingTable) runEvictionChallenge(idx int, head, c Contact, pingFn PingFunc) {
	alive := pingFn(head)

	rt.mu.Lock()
	defer rt.mu.Unlock()

	if idx >= len(rt.buckets) {
		return
	}
	b := rt.buckets[idx]
	b.challengePending = false

	if alive {
		if i := b.indexOf(head.ID); i >= 0 {
			b.touch(i)
		}
		return
	}

	b.removeID(head.ID)
	if !b.full() && b.indexOf(c.ID) < 0 {
		b.append(c)
	}
}

// ClosestTo returns up to n contacts with the smallest XOR distance to
// target, ascending, deterministic (distinct identifiers never tie).
func (rt *RoutingTable) ClosestTo(target identifier.ID, n int) []Contact {
	rt.mu.Lock()
	var all []Contact
	for _, b := range rt.buckets {
		all = append(all, b.snapshot()...)
	}
	rt.mu.Unlock()

	sort.Slice(all, func(i, j int) bool {
		return all[i].ID.Xor(target).Less(all[j].ID.Xor(target))
	})
	if n < len(all) {
		all = all[:n]
	}
	return all
}

// Remove drops a contact by identifier, called when an
// eviction-challenge ping itself is superseded by an out-of-band
// failure signal (e.g. the caller already knows the address is dead).
func (rt *RoutingTable) Remove(id identifier.ID) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	idx := rt.bucketIndex(id)
	rt.buckets[idx].removeID(id)
}

// Size returns the total number of contacts across all buckets.
func (rt *RoutingTable) Size() int {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	n := 0
	for _, b := range rt.buckets {
		n += len(b.contacts)
	}
	return n
}

// RefreshTargets returns one random identifier per bucket, suitable for
// driving a periodic lookup_nodes(target) call that keeps stale buckets
// populated. Nothing in this package invokes it automatically; a caller
// (e.g. a CLI collaborator's maintenance timer) must schedule it.
func (rt *RoutingTable) RefreshTargets() ([]identifier.ID, error) {
	rt.mu.Lock()
	count := len(rt.buckets)
	rt.mu.Unlock()

	targets := make([]identifier.ID, 0, count)
	for i := 0; i < count; i++ {
		id, err := identifier.Random()
		if err != nil {
			return nil, err
		}
		// Keep self's first i bits so id falls in bucket i; every bucket
		// but the frontier also differs from self at bit i.
		for bit := 0; bit < i; bit++ {
			mask := byte(0x80) >> uint(bit%8)
			id[bit/8] = id[bit/8]&^mask | rt.self[bit/8]&mask
		}
		if i < count-1 {
			mask := byte(0x80) >> uint(i%8)
			id[i/8] = id[i/8]&^mask | ^rt.self[i/8]&mask
		}
		targets = append(targets, id)
	}
	return targets, nil
}

// StaleCount reports how many contacts across the table have not been
// touched since before the cutoff. It requires a last-seen timestamp
// alongside each contact; since Contact itself is an immutable value
// with no timestamp field (§3 of the data model), this is tracked
// separately here rather than threaded through the routing algorithm.
func (rt *RoutingTable) StaleCount(cutoff time.Time, lastSeen map[identifier.ID]time.Time) int {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	stale := 0
	for _, b := range rt.buckets {
		for _, c := range b.contacts {
			if t, ok := lastSeen[c.ID]; !ok || t.Before(cutoff) {
				stale++
			}
		}
	}
	return stale
}
