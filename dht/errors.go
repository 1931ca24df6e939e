package dht

import "errors"

// ErrValueRejected names the condition of a store whose key_id does not
// match SHA-1(key_bytes). The store handler answers such a request with
// a false response rather than this error, and Put's local fallback does
// not check keys; no function in this package returns it.
var ErrValueRejected = errors.New("dht: key identifier does not match sha-1 of key bytes")

// ErrNotFound is the user-visible result of a Get that completed without
// any peer returning a value. It is not a transport error.
var ErrNotFound = errors.New("dht: value not found")

// ErrNoContacts is returned by a lookup when the shortlist starts empty:
// no bootstrap seeds were supplied and the routing table holds nothing.
var ErrNoContacts = errors.New("dht: no known contacts to query")

// ErrProtocol wraps malformed-message and unknown-method conditions
// surfaced by the RPC layer. The offending message is always dropped
// rather than propagated as a crash.
var ErrProtocol = errors.New("dht: protocol error")
