package dht

import (
	"fmt"
	"net"
	"time"

	"github.com/opd-ai/kadnode/identifier"
	"github.com/opd-ai/kadnode/transport"
	"github.com/sirupsen/logrus"
)

// DefaultCallTimeout is the per-RPC deadline used when a Node is not
// otherwise configured (§4.3's "default 5 seconds per call").
const DefaultCallTimeout = 5 * time.Second

// Node is the root entity of a Kademlia participant: it owns the local
// identifier, the routing table, the value store, and the RPC client,
// and implements the four wire handlers plus the put/get/bootstrap
// operations built on top of the iterative lookups.
type Node struct {
	self  identifier.ID
	table *RoutingTable
	store *ValueStore

	client *transport.Client

	k           int
	alpha       int
	callTimeout time.Duration
}

// NewNode creates a Node bound to conn, with routing-table bucket
// capacity k (DefaultBucketSize in production). The Node registers its
// four RPC handlers and wires the routing table's eviction-challenge
// liveness probe to its own Ping, but does not start processing
// datagrams until Start is called.
func NewNode(self identifier.ID, conn transport.Conn, k int) *Node {
	n := &Node{
		self:        self,
		table:       NewRoutingTable(self, k),
		store:       NewValueStore(),
		k:           k,
		alpha:       Alpha,
		callTimeout: DefaultCallTimeout,
	}
	n.client = transport.NewClient(self, conn, n.observe)
	n.table.SetPingFunc(n.pingProbe)

	n.client.RegisterHandler("ping", n.handlePing)
	n.client.RegisterHandler("find_node", n.handleFindNode)
	n.client.RegisterHandler("find_value", n.handleFindValue)
	n.client.RegisterHandler("store", n.handleStore)

	return n
}

// ID returns the node's local identifier.
func (n *Node) ID() identifier.ID {
	return n.self
}

// RoutingTable exposes the underlying table, mainly for tests and
// maintenance tooling that wants to inspect table size or drive
// RefreshTargets.
func (n *Node) RoutingTable() *RoutingTable {
	return n.table
}

// Start begins processing inbound datagrams.
func (n *Node) Start() error {
	return n.client.Start()
}

// Close releases the underlying transport; all outstanding calls (and
// any issued afterward) fail with transport.ErrTransportClosed.
func (n *Node) Close() error {
	return n.client.Close()
}

// LocalAddr returns the address the node's transport is bound to.
func (n *Node) LocalAddr() net.Addr {
	return n.client.LocalAddr()
}

// observe feeds every inbound message's sender into the routing table,
// wired as the transport.Client's ObserveFunc so it always runs before
// a response payload reaches an awaiting caller (§5's ordering
// guarantee).
func (n *Node) observe(addr net.Addr, sender identifier.ID) {
	n.table.Observe(Contact{ID: sender, Addr: addr})
}

// pingProbe is the routing table's eviction-challenge liveness check.
func (n *Node) pingProbe(c Contact) bool {
	expected := c.ID
	_, err := n.Ping(c.Addr, &expected)
	return err == nil
}

// --- RPC handlers (inbound side) ---

func (n *Node) handlePing(addr net.Addr, sender identifier.ID, args []byte) ([]byte, error) {
	return append([]byte(nil), n.self[:]...), nil
}

func (n *Node) handleFindNode(addr net.Addr, sender identifier.ID, args []byte) ([]byte, error) {
	target, err := decodeTargetID(args)
	if err != nil {
		return nil, err
	}
	return encodeContacts(n.table.ClosestTo(target, n.k))
}

func (n *Node) handleFindValue(addr net.Addr, sender identifier.ID, args []byte) ([]byte, error) {
	target, err := decodeTargetID(args)
	if err != nil {
		return nil, err
	}
	if value, ok := n.store.Get(target); ok {
		return encodeFindValueValueResponse(value), nil
	}
	return encodeFindValueContactsResponse(n.table.ClosestTo(target, n.k))
}

func (n *Node) handleStore(addr net.Addr, sender identifier.ID, args []byte) ([]byte, error) {
	req, err := decodeStoreRequest(args)
	if err != nil {
		return nil, err
	}
	if !KeyID(req.Key).Equal(req.KeyID) {
		logrus.WithFields(logrus.Fields{
			"function": "Node.handleStore",
			"peer":     addr.String(),
		}).Warn("rejecting store: key identifier does not match sha-1(key)")
		return encodeBool(false), nil
	}
	n.store.Put(req.KeyID, req.Value)
	return encodeBool(true), nil
}

// --- RPC callers (outbound side) ---

// Ping sends a ping RPC to addr. If expected is non-nil, a reply from a
// different identifier is still returned (with Result.Mismatched true
// internally, collapsed here to a successful Ping since §4.2's
// eviction-challenge only cares whether the contact is alive).
func (n *Node) Ping(addr net.Addr, expected *identifier.ID) (identifier.ID, error) {
	result, err := n.client.Call(addr, "ping", nil, expected, n.callTimeout)
	if err != nil {
		return identifier.ID{}, err
	}
	if len(result.Payload) < identifier.Size {
		return identifier.ID{}, fmt.Errorf("%w: malformed ping response from %s", ErrProtocol, addr)
	}
	return identifier.New(result.Payload[:identifier.Size]), nil
}

func (n *Node) callFindNode(c Contact, target identifier.ID) ([]Contact, error) {
	result, err := n.client.Call(c.Addr, "find_node", encodeFindNodeRequest(target), &c.ID, n.callTimeout)
	if err != nil {
		return nil, err
	}
	return decodeContacts(result.Payload)
}

func (n *Node) callFindValue(c Contact, target identifier.ID) (findValueResult, error) {
	result, err := n.client.Call(c.Addr, "find_value", encodeFindNodeRequest(target), &c.ID, n.callTimeout)
	if err != nil {
		return findValueResult{}, err
	}
	return decodeFindValueResponse(result.Payload)
}

func (n *Node) callStore(c Contact, keyID identifier.ID, key, value []byte) (bool, error) {
	payload, err := encodeStoreRequest(keyID, key, value)
	if err != nil {
		return false, err
	}
	result, err := n.client.Call(c.Addr, "store", payload, &c.ID, n.callTimeout)
	if err != nil {
		return false, err
	}
	return decodeBool(result.Payload)
}

// --- process-surface operations ---

// Bootstrap seeds the routing table from a set of known addresses by
// running LookupNodes against the local identifier, so the resulting
// iterative search populates the table with whatever peers those seeds
// (and their peers) know about.
func (n *Node) Bootstrap(seeds []net.Addr) error {
	for _, addr := range seeds {
		id, err := n.Ping(addr, nil)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Node.Bootstrap",
				"seed":     addr.String(),
				"error":    err.Error(),
			}).Warn("seed did not respond to ping")
			continue
		}
		n.table.Observe(Contact{ID: id, Addr: addr})
	}

	_, err := n.LookupNodes(n.self)
	return err
}

// Put computes key_id = SHA-1(key), runs LookupNodes, and issues store
// to every contact returned, returning the number that confirmed
// success. If no peers are known, the value is stored locally and Put
// returns 1.
func (n *Node) Put(key, value []byte) (int, error) {
	keyID := KeyID(key)

	contacts, err := n.LookupNodes(keyID)
	if err != nil {
		if err == ErrNoContacts {
			n.store.Put(keyID, value)
			return 1, nil
		}
		return 0, err
	}
	if len(contacts) == 0 {
		n.store.Put(keyID, value)
		return 1, nil
	}

	type outcome struct{ ok bool }
	results := make(chan outcome, len(contacts))
	for _, c := range contacts {
		go func(c Contact) {
			ok, err := n.callStore(c, keyID, key, value)
			results <- outcome{ok: err == nil && ok}
		}(c)
	}

	count := 0
	for range contacts {
		if r := <-results; r.ok {
			count++
		}
	}
	return count, nil
}

// Get checks the local store first, then runs LookupValue. On a hit
// from a peer, it opportunistically caches the value on the closest
// responded contact that did not already have it.
func (n *Node) Get(key []byte) ([]byte, error) {
	keyID := KeyID(key)

	if value, ok := n.store.Get(keyID); ok {
		return value, nil
	}

	outcome, err := n.LookupValue(keyID)
	if err != nil {
		if err == ErrNoContacts {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !outcome.Found {
		return nil, ErrNotFound
	}

	if outcome.CacheTarget != nil {
		go func(c Contact, value []byte) {
			if _, err := n.callStore(c, keyID, key, value); err != nil {
				logrus.WithFields(logrus.Fields{
					"function": "Node.Get",
					"peer":     c.Addr.String(),
					"error":    err.Error(),
				}).Debug("cache-on-closest store failed")
			}
		}(*outcome.CacheTarget, outcome.Value)
	}

	return outcome.Value, nil
}
