// Package identifier implements 160-bit Kademlia node identifiers and the
// XOR distance metric used to organize the routing table and drive
// iterative lookups.
//
// Identifiers are fixed-width [20]byte values, matching the SHA-1 keyspace
// used both for randomly generated node IDs and for hashing application
// keys into the same address space (see the dht package's ValueStore).
//
// Example:
//
//	a, _ := identifier.Random()
//	b, _ := identifier.Random()
//	d := a.Xor(b)
//	depth := a.CommonPrefixLen(b)
package identifier
