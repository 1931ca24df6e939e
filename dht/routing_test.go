package dht

import (
	"net"
	"testing"
	"time"

	"github.com/opd-ai/kadnode/identifier"
	"github.com/stretchr/testify/require"
)

func mustID(t *testing.T) identifier.ID {
	t.Helper()
	id, err := identifier.Random()
	require.NoError(t, err)
	return id
}

func contactAt(id identifier.ID, port int) Contact {
	return Contact{ID: id, Addr: &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port}}
}

func TestObserveIdempotent(t *testing.T) {
	self := mustID(t)
	rt := NewRoutingTable(self, 20)
	c := contactAt(mustID(t), 1)

	rt.Observe(c)
	rt.Observe(c)

	require.Equal(t, 1, rt.Size())
}

func TestObserveIgnoresSelf(t *testing.T) {
	self := mustID(t)
	rt := NewRoutingTable(self, 20)
	rt.Observe(Contact{ID: self, Addr: &net.UDPAddr{Port: 1}})
	require.Equal(t, 0, rt.Size())
}

func TestClosestToOrdersByDistanceAscending(t *testing.T) {
	self := mustID(t)
	rt := NewRoutingTable(self, 20)

	for i := 0; i < 10; i++ {
		rt.Observe(contactAt(mustID(t), i))
	}

	target := mustID(t)
	closest := rt.ClosestTo(target, 5)
	require.Len(t, closest, 5)

	for i := 1; i < len(closest); i++ {
		prevDist := closest[i-1].ID.Xor(target)
		dist := closest[i].ID.Xor(target)
		require.True(t, prevDist.Less(dist), "closest_to must be strictly ascending by distance")
	}
}

func TestClosestToTruncatesToAvailable(t *testing.T) {
	self := mustID(t)
	rt := NewRoutingTable(self, 20)
	rt.Observe(contactAt(mustID(t), 1))

	closest := rt.ClosestTo(mustID(t), 5)
	require.Len(t, closest, 1)
}

// TestFullBucketSplitsOnLocalRange verifies the local-range (frontier)
// bucket keeps accepting new contacts past its nominal capacity by
// splitting instead of invoking an eviction challenge, since no
// PingFunc is even wired here.
func TestFullBucketSplitsOnLocalRange(t *testing.T) {
	self := mustID(t)
	const k = 4
	rt := NewRoutingTable(self, k)

	for i := 0; i < k+6; i++ {
		// Flipping bit i of self gives a contact whose common prefix
		// length with self is exactly i, so each newcomer lands in the
		// bucket that still contains self when it arrives.
		id := self
		id[i/8] ^= 0x80 >> uint(i%8)
		rt.Observe(contactAt(id, i))
	}

	require.Equal(t, k+6, rt.Size())
	require.Greater(t, len(rt.buckets), 1, "inserting beyond capacity into the frontier bucket must split it")
}

// idWithPrefix returns a random identifier sharing the first bits bits
// of prefix, used to steer contacts into a specific bucket.
func idWithPrefix(t *testing.T, prefix identifier.ID, bits int) identifier.ID {
	t.Helper()
	id := mustID(t)
	for i := 0; i < bits; i++ {
		byteIdx, bitIdx := i/8, 7-(i%8)
		mask := byte(1) << uint(bitIdx)
		if prefix[byteIdx]&mask != 0 {
			id[byteIdx] |= mask
		} else {
			id[byteIdx] &^= mask
		}
	}
	return id
}

func flipBit0(id identifier.ID) identifier.ID {
	out := id
	out[0] ^= 0x80
	return out
}

func hasContact(rt *RoutingTable, id identifier.ID) bool {
	for _, c := range rt.ClosestTo(id, rt.Size()+1) {
		if c.ID.Equal(id) {
			return true
		}
	}
	return false
}

// setupSplitNonLocalBucket forces the root bucket to split once (by
// filling the local-prefix side) so that contacts diverging at bit 0
// land in a stable, non-frontier bucket that will evict rather than
// split when it overflows.
func setupSplitNonLocalBucket(t *testing.T, self identifier.ID, k int) *RoutingTable {
	t.Helper()
	rt := NewRoutingTable(self, k)
	for i := 0; i < k+1; i++ {
		same := idWithPrefix(t, self, 2)
		rt.Observe(contactAt(same, 100+i))
	}
	require.Greater(t, len(rt.buckets), 1)
	return rt
}

func TestNonLocalBucketEvictsUnresponsiveHead(t *testing.T) {
	self := mustID(t)
	const k = 2
	rt := setupSplitNonLocalBucket(t, self, k)

	divergent := flipBit0(self)
	a := idWithPrefix(t, divergent, 1)
	b := idWithPrefix(t, divergent, 1)
	c := idWithPrefix(t, divergent, 1)
	rt.Observe(contactAt(a, 1))
	rt.Observe(contactAt(b, 2))

	pinged := make(chan Contact, 1)
	rt.SetPingFunc(func(target Contact) bool {
		pinged <- target
		return false
	})

	rt.Observe(contactAt(c, 3))

	select {
	case got := <-pinged:
		require.True(t, got.ID.Equal(a), "expected the least-recently-seen contact to be challenged")
	case <-time.After(time.Second):
		t.Fatal("eviction challenge was never issued")
	}

	require.Eventually(t, func() bool {
		return hasContact(rt, c) && !hasContact(rt, a)
	}, time.Second, time.Millisecond, "head should be evicted and newcomer appended")
	require.True(t, hasContact(rt, b))
}

func TestNonLocalBucketKeepsHeadWhenAlive(t *testing.T) {
	self := mustID(t)
	const k = 2
	rt := setupSplitNonLocalBucket(t, self, k)

	divergent := flipBit0(self)
	a := idWithPrefix(t, divergent, 1)
	b := idWithPrefix(t, divergent, 1)
	newcomer := idWithPrefix(t, divergent, 1)
	rt.Observe(contactAt(a, 1))
	rt.Observe(contactAt(b, 2))

	rt.SetPingFunc(func(target Contact) bool { return true })

	rt.Observe(contactAt(newcomer, 3))

	require.Eventually(t, func() bool {
		return hasContact(rt, a)
	}, time.Second, time.Millisecond)
	require.False(t, hasContact(rt, newcomer), "newcomer must be dropped when the challenged head is alive")
}

func TestRemoveDropsContact(t *testing.T) {
	self := mustID(t)
	rt := NewRoutingTable(self, 20)
	id := mustID(t)
	rt.Observe(contactAt(id, 1))
	require.True(t, hasContact(rt, id))

	rt.Remove(id)
	require.False(t, hasContact(rt, id))
}
