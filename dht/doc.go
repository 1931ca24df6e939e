// Package dht implements a Kademlia distributed hash table: a routing
// table of peer contacts ordered by XOR distance, a local value store,
// and the PING/STORE/FIND_NODE/FIND_VALUE protocol that lets a Node
// locate peers and data anywhere in the network in O(log n) hops.
//
// A Node owns exactly one identifier.ID, one RoutingTable, one
// ValueStore, and one transport.Client. Routing table updates happen as
// a side effect of every inbound message (§5's "update-before-dispatch"
// ordering), never on a background timer, so a Node with no goroutines
// running beyond its transport's read loop still converges correctly as
// long as callers keep issuing lookups.
//
// Example:
//
//	self, _ := identifier.Random()
//	conn, _ := transport.ListenUDP(":0")
//	node := dht.NewNode(self, conn, dht.DefaultBucketSize)
//	if err := node.Start(); err != nil {
//		log.Fatal(err)
//	}
//	defer node.Close()
//
//	node.Bootstrap([]net.Addr{seedAddr})
//	node.Put([]byte("hello"), []byte("world"))
//	value, err := node.Get([]byte("hello"))
package dht
