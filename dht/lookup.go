package dht

import (
	"sync"

	"github.com/opd-ai/kadnode/identifier"
)

// Alpha is the standard Kademlia concurrency factor for iterative
// lookups.
const Alpha = 3

// LookupNodes runs the iterative node lookup described in §4.4: seed
// the shortlist from the routing table, fan out up to Alpha find_node
// calls per round to the closest unqueried candidates, merge their
// results, and stop once a round fails to surface anything closer than
// the current best or no unqueried candidates remain among the K
// closest. Returns the K closest contacts that actually responded.
func (n *Node) LookupNodes(target identifier.ID) ([]Contact, error) {
	seed := n.table.ClosestTo(target, n.k)
	if len(seed) == 0 {
		return nil, ErrNoContacts
	}
	sl := newShortlist(target, seed)

	for {
		kClosest := sl.topK(n.k)
		candidates := selectUnqueried(kClosest, n.alpha)
		if len(candidates) == 0 {
			break
		}

		prevClosest := sl.closestRespondedDistance()
		n.runFindNodeRound(sl, candidates, target)

		if !sl.closestRespondedDistance().Less(prevClosest) {
			break
		}
	}

	return sl.respondedTopK(n.k), nil
}

// runFindNodeRound issues find_node to every candidate in parallel and
// blocks until all of them settle, mutating the shortlist in place.
func (n *Node) runFindNodeRound(sl *shortlist, candidates []*shortlistEntry, target identifier.ID) {
	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, cand := range candidates {
		cand.status = inFlight
	}

	for _, cand := range candidates {
		wg.Add(1)
		go func(cand *shortlistEntry) {
			defer wg.Done()
			contacts, err := n.callFindNode(cand.contact, target)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				cand.status = failed
				return
			}
			cand.status = responded
			for _, c := range contacts {
				if c.ID.Equal(n.self) {
					continue
				}
				sl.insert(c)
			}
		}(cand)
	}
	wg.Wait()
}

// lookupValueOutcome is the result of an iterative value lookup: either
// Found is true and Value holds the payload, or the lookup exhausted
// its shortlist and Closest holds the K closest responded contacts.
type lookupValueOutcome struct {
	Found   bool
	Value   []byte
	Closest []Contact
	// CacheTarget is the closest responded contact that did NOT already
	// have the value, for Get's one-shot cache-on-closest behavior.
	CacheTarget *Contact
}

// LookupValue runs the same iterative procedure as LookupNodes but
// issues find_value; it terminates immediately on the first response
// carrying a value.
func (n *Node) LookupValue(keyID identifier.ID) (lookupValueOutcome, error) {
	seed := n.table.ClosestTo(keyID, n.k)
	if len(seed) == 0 {
		return lookupValueOutcome{}, ErrNoContacts
	}
	sl := newShortlist(keyID, seed)

	for {
		kClosest := sl.topK(n.k)
		candidates := selectUnqueried(kClosest, n.alpha)
		if len(candidates) == 0 {
			break
		}

		prevClosest := sl.closestRespondedDistance()
		found, value, cacheTarget := n.runFindValueRound(sl, candidates, keyID)
		if found {
			return lookupValueOutcome{Found: true, Value: value, CacheTarget: cacheTarget}, nil
		}

		if !sl.closestRespondedDistance().Less(prevClosest) {
			break
		}
	}

	return lookupValueOutcome{Found: false, Closest: sl.respondedTopK(n.k)}, nil
}

// runFindValueRound behaves like runFindNodeRound but returns as soon as
// any candidate's response carries a value, without waiting for the
// rest of the round, returning it along with the closest
// already-responded contact that did not have it (the cache-on-closest
// target for Get).
func (n *Node) runFindValueRound(sl *shortlist, candidates []*shortlistEntry, target identifier.ID) (bool, []byte, *Contact) {
	var wg sync.WaitGroup
	var mu sync.Mutex
	var foundValue []byte
	var valueHolder identifier.ID
	found := false
	foundCh := make(chan struct{})

	for _, cand := range candidates {
		cand.status = inFlight
	}

	for _, cand := range candidates {
		wg.Add(1)
		go func(cand *shortlistEntry) {
			defer wg.Done()
			result, err := n.callFindValue(cand.contact, target)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				cand.status = failed
				return
			}
			cand.status = responded
			if result.Value != nil {
				if !found {
					found = true
					foundValue = result.Value
					valueHolder = cand.contact.ID
					close(foundCh)
				}
				return
			}
			for _, c := range result.Contacts {
				if c.ID.Equal(n.self) {
					continue
				}
				sl.insert(c)
			}
		}(cand)
	}
	allDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(allDone)
	}()
	select {
	case <-foundCh:
	case <-allDone:
	}

	mu.Lock()
	defer mu.Unlock()
	if !found {
		return false, nil, nil
	}

	// cache-on-closest: the nearest responded shortlist entry, from this
	// or an earlier round, that did not itself return the value.
	var cacheTarget *Contact
	for _, e := range sl.order {
		if e.status == responded && !e.contact.ID.Equal(valueHolder) {
			c := e.contact
			cacheTarget = &c
			break
		}
	}
	return true, foundValue, cacheTarget
}
