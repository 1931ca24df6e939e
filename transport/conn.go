package transport

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/sirupsen/logrus"
)

// ReceiveFunc is invoked once per successfully parsed inbound message. It
// runs in its own goroutine so that one slow handler never blocks the
// read loop from servicing other peers.
type ReceiveFunc func(msg *Message, addr net.Addr)

// Conn is the datagram abstraction the RPC Client is built on: send a
// message to an address, be notified of arrivals, and release the socket
// on Close. UDPConn is the production implementation; tests may supply an
// in-memory fake satisfying the same interface.
type Conn interface {
	Send(msg *Message, addr net.Addr) error
	LocalAddr() net.Addr
	// SetReceiveFunc registers the callback invoked for every parsed
	// inbound message. It must be called before Start.
	SetReceiveFunc(fn ReceiveFunc)
	// Start begins processing inbound datagrams. Safe to call once.
	Start() error
	Close() error
}

// UDPConn binds a UDP socket and delivers parsed Messages to a receiver
// callback once started, until Close is called.
type UDPConn struct {
	socket   net.PacketConn
	receiver ReceiveFunc
	ctx      context.Context
	cancel   context.CancelFunc
}

// ListenUDP binds a UDP socket at listenAddr (e.g. ":0" for an ephemeral
// port). The connection does not process datagrams until Start is called.
func ListenUDP(listenAddr string) (*UDPConn, error) {
	socket, err := net.ListenPacket("udp", listenAddr)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &UDPConn{
		socket: socket,
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// SetReceiveFunc registers the callback invoked for every parsed inbound
// message. Must be called before Start.
func (c *UDPConn) SetReceiveFunc(fn ReceiveFunc) {
	c.receiver = fn
}

// Start launches the background read loop. Returns an error if no
// receiver has been registered.
func (c *UDPConn) Start() error {
	if c.receiver == nil {
		return errors.New("transport: UDPConn.Start called with no receiver registered")
	}
	go c.readLoop()
	return nil
}

// Send serializes msg and writes it to addr.
func (c *UDPConn) Send(msg *Message, addr net.Addr) error {
	data, err := msg.Serialize()
	if err != nil {
		return err
	}
	_, err = c.socket.WriteTo(data, addr)
	return err
}

// LocalAddr returns the address the underlying socket is bound to.
func (c *UDPConn) LocalAddr() net.Addr {
	return c.socket.LocalAddr()
}

// Close stops the read loop and releases the socket.
func (c *UDPConn) Close() error {
	c.cancel()
	return c.socket.Close()
}

// readLoop continuously reads datagrams and hands parsed messages to the
// receiver callback. A recommended 1280-byte datagram ceiling (§6) keeps
// reads well clear of typical path MTUs; the buffer is sized generously
// above that to tolerate oversized messages without truncation.
func (c *UDPConn) readLoop() {
	buf := make([]byte, 4096)

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		_ = c.socket.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
		n, addr, err := c.socket.ReadFrom(buf)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			select {
			case <-c.ctx.Done():
				return
			default:
				continue
			}
		}

		msg, err := ParseMessage(buf[:n])
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "UDPConn.readLoop",
				"peer":     addr.String(),
				"error":    err.Error(),
			}).Warn("dropping malformed datagram")
			continue
		}

		go c.receiver(msg, addr)
	}
}
