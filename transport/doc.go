// Package transport implements the datagram RPC layer for the Kademlia
// core: wire framing for request/response messages, a UDP-backed packet
// connection, and a correlation-token based Client that turns raw
// datagrams into PING/STORE/FIND_NODE/FIND_VALUE style calls with
// per-request timeouts.
//
// The layering is:
//
//	Conn        - binds a UDP socket, sends/receives raw datagrams
//	Message     - the wire framing (message type, token, sender id,
//	              method name, payload) described by the protocol's
//	              on-the-wire layout
//	Client      - issues outbound Call()s and dispatches inbound
//	              requests to registered per-method handlers
//
// Example:
//
//	conn, err := transport.ListenUDP(":0")
//	client := transport.NewClient(selfID, conn, nil)
//	client.RegisterHandler("ping", func(addr net.Addr, sender identifier.ID, args []byte) ([]byte, error) {
//	    return selfID[:], nil
//	})
//	client.Start()
//	defer client.Close()
//	result, err := client.Call(remoteAddr, "ping", nil, nil, 5*time.Second)
package transport
