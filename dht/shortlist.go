package dht

import (
	"sort"

	"github.com/opd-ai/kadnode/identifier"
)

type candidateStatus int

const (
	unqueried candidateStatus = iota
	inFlight
	responded
	failed
)

type shortlistEntry struct {
	contact Contact
	status  candidateStatus
}

// shortlist is the working set an iterative lookup maintains: candidate
// contacts ordered by ascending XOR distance to target, deduplicated by
// identifier, each tracked through {unqueried, in-flight, responded,
// failed}.
type shortlist struct {
	target identifier.ID
	byID   map[identifier.ID]*shortlistEntry
	order  []*shortlistEntry
}

func newShortlist(target identifier.ID, seed []Contact) *shortlist {
	sl := &shortlist{
		target: target,
		byID:   make(map[identifier.ID]*shortlistEntry),
	}
	for _, c := range seed {
		sl.insert(c)
	}
	return sl
}

// insert adds c if not already present, keeping order sorted by
// distance to target. Returns true iff c was newly added.
func (sl *shortlist) insert(c Contact) bool {
	if _, ok := sl.byID[c.ID]; ok {
		return false
	}
	e := &shortlistEntry{contact: c, status: unqueried}
	sl.byID[c.ID] = e
	sl.order = append(sl.order, e)
	sort.Slice(sl.order, func(i, j int) bool {
		return sl.order[i].contact.ID.Xor(sl.target).Less(sl.order[j].contact.ID.Xor(sl.target))
	})
	return true
}

// topK returns the k closest entries currently in the shortlist.
func (sl *shortlist) topK(k int) []*shortlistEntry {
	if k > len(sl.order) {
		k = len(sl.order)
	}
	return sl.order[:k]
}

// selectUnqueried returns up to n unqueried entries from entries,
// preserving their distance order (entries is assumed already sorted).
func selectUnqueried(entries []*shortlistEntry, n int) []*shortlistEntry {
	out := make([]*shortlistEntry, 0, n)
	for _, e := range entries {
		if e.status != unqueried {
			continue
		}
		out = append(out, e)
		if len(out) == n {
			break
		}
	}
	return out
}

// farthestPossible is a sentinel distance no real contact can exceed:
// the XOR metric's maximum value, 2^160-1.
func farthestPossible() identifier.ID {
	var id identifier.ID
	for i := range id {
		id[i] = 0xFF
	}
	return id
}

// closestRespondedDistance returns the XOR distance to target of the
// closest entry currently marked responded, or farthestPossible if none
// has responded yet.
func (sl *shortlist) closestRespondedDistance() identifier.ID {
	for _, e := range sl.order {
		if e.status == responded {
			return e.contact.ID.Xor(sl.target)
		}
	}
	return farthestPossible()
}

// respondedTopK returns up to k responded contacts in ascending
// distance order.
func (sl *shortlist) respondedTopK(k int) []Contact {
	out := make([]Contact, 0, k)
	for _, e := range sl.order {
		if e.status != responded {
			continue
		}
		out = append(out, e.contact)
		if len(out) == k {
			break
		}
	}
	return out
}
