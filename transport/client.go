package transport

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/opd-ai/kadnode/identifier"
	"github.com/sirupsen/logrus"
)

// HandlerFunc processes an inbound request for a single registered
// method. It returns the response payload to send back, or an error to
// report as a protocol failure to the caller.
type HandlerFunc func(addr net.Addr, sender identifier.ID, args []byte) ([]byte, error)

// ObserveFunc is invoked for every inbound message, request or response,
// before it is dispatched or delivered, so the routing table always sees
// a sender's contact before the caller observes a reply (§5's ordering
// guarantee).
type ObserveFunc func(addr net.Addr, sender identifier.ID)

// Result carries a resolved Call's response payload together with
// information about the responder, so callers that had an expected
// responder identity can detect a mismatch without the call failing.
type Result struct {
	Payload    []byte
	Responder  identifier.ID
	Mismatched bool

	// closed is set when this Result was synthesized by Close rather
	// than delivered from an actual reply.
	closed bool
}

// pendingCall is outbound RPC state: the rendezvous on which exactly one
// reply (or Close's closed notice) is delivered, and the identifier the
// caller expected to hear back from, if any. Timeouts are handled by
// Call's own timer, not through this rendezvous.
type pendingCall struct {
	expected   *identifier.ID
	resultCh   chan Result
	resolved   bool
	resolvedMu sync.Mutex
}

func (p *pendingCall) resolve(r Result) {
	p.resolvedMu.Lock()
	defer p.resolvedMu.Unlock()
	if p.resolved {
		return
	}
	p.resolved = true
	p.resultCh <- r
}

// Client implements the request/response RPC contract of §4.3: issuing
// correlated calls with timeouts, and dispatching inbound requests to
// per-method handlers. It owns no application state beyond the pending
// call table and the handler registry; routing table and value store
// side effects happen in the ObserveFunc and HandlerFuncs supplied by the
// caller (the dht package).
type Client struct {
	self identifier.ID
	conn Conn

	handlersMu sync.RWMutex
	handlers   map[string]HandlerFunc

	pendingMu sync.Mutex
	pending   map[Token]*pendingCall

	observe ObserveFunc

	closeOnce sync.Once
	closed    chan struct{}
}

// NewClient creates an RPC client bound to self's identifier and conn.
// observe may be nil if the caller does not need routing-table side
// effects (tests commonly pass nil).
func NewClient(self identifier.ID, conn Conn, observe ObserveFunc) *Client {
	c := &Client{
		self:     self,
		conn:     conn,
		handlers: make(map[string]HandlerFunc),
		pending:  make(map[Token]*pendingCall),
		observe:  observe,
		closed:   make(chan struct{}),
	}
	conn.SetReceiveFunc(c.onMessage)
	return c
}

// RegisterHandler associates fn with method_name. Re-registering the same
// method replaces the previous handler.
func (c *Client) RegisterHandler(method string, fn HandlerFunc) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.handlers[method] = fn
}

// Start begins processing inbound datagrams.
func (c *Client) Start() error {
	return c.conn.Start()
}

// LocalAddr returns the address the underlying connection is bound to.
func (c *Client) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

// Close releases the underlying connection and fails every pending call
// with ErrTransportClosed. After Close, Call always fails the same way.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.conn.Close()

		c.pendingMu.Lock()
		pending := c.pending
		c.pending = make(map[Token]*pendingCall)
		c.pendingMu.Unlock()

		for _, p := range pending {
			p.resolve(Result{closed: true})
		}
	})
	return err
}

// Call sends a request for method to addr and blocks until a correlated
// response arrives, the timeout elapses, or the client is closed.
// expected, if non-nil, names the identifier the caller believes addr
// belongs to; a reply from a different identifier is still delivered but
// flagged via Result.Mismatched rather than treated as a failure.
func (c *Client) Call(addr net.Addr, method string, args []byte, expected *identifier.ID, timeout time.Duration) (Result, error) {
	select {
	case <-c.closed:
		return Result{}, ErrTransportClosed
	default:
	}

	token, err := newToken()
	if err != nil {
		return Result{}, err
	}

	call := &pendingCall{
		expected: expected,
		resultCh: make(chan Result, 1),
	}

	c.pendingMu.Lock()
	c.pending[token] = call
	c.pendingMu.Unlock()

	cleanup := func() {
		c.pendingMu.Lock()
		delete(c.pending, token)
		c.pendingMu.Unlock()
	}

	req := &Message{
		Type:    Request,
		Token:   token,
		Sender:  c.self,
		Method:  method,
		Payload: args,
	}
	if err := c.conn.Send(req, addr); err != nil {
		cleanup()
		return Result{}, fmt.Errorf("transport: send failed: %w", err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case result := <-call.resultCh:
		cleanup()
		if result.closed {
			return Result{}, ErrTransportClosed
		}
		return result, nil
	case <-timer.C:
		cleanup()
		return Result{}, ErrTimeout
	case <-c.closed:
		cleanup()
		return Result{}, ErrTransportClosed
	}
}

// onMessage is the Conn's receive callback: it routes a parsed inbound
// message to either response-delivery or request-dispatch.
func (c *Client) onMessage(msg *Message, addr net.Addr) {
	if c.observe != nil {
		c.observe(addr, msg.Sender)
	}

	switch msg.Type {
	case Response:
		c.deliverResponse(msg, addr)
	case Request:
		c.dispatchRequest(msg, addr)
	}
}

// deliverResponse resolves the PendingCall matching msg.Token, if any. A
// response with no matching pending call (late or spurious) is discarded.
func (c *Client) deliverResponse(msg *Message, addr net.Addr) {
	c.pendingMu.Lock()
	call, ok := c.pending[msg.Token]
	if ok {
		delete(c.pending, msg.Token)
	}
	c.pendingMu.Unlock()

	if !ok {
		logrus.WithFields(logrus.Fields{
			"function": "Client.deliverResponse",
			"peer":     addr.String(),
			"token":    fmt.Sprintf("%x", msg.Token),
		}).Debug("discarding response with no matching pending call")
		return
	}

	mismatched := call.expected != nil && !call.expected.Equal(msg.Sender)
	call.resolve(Result{
		Payload:    msg.Payload,
		Responder:  msg.Sender,
		Mismatched: mismatched,
	})
}

// dispatchRequest looks up the handler for msg.Method, invokes it, and
// sends back a correlated response (or an error response if the method
// is unregistered or the handler itself fails).
func (c *Client) dispatchRequest(msg *Message, addr net.Addr) {
	c.handlersMu.RLock()
	handler, ok := c.handlers[msg.Method]
	c.handlersMu.RUnlock()

	if !ok {
		logrus.WithFields(logrus.Fields{
			"function": "Client.dispatchRequest",
			"peer":     addr.String(),
			"method":   msg.Method,
		}).Warn("rejecting request for unregistered method")
		c.sendError(msg.Token, addr)
		return
	}

	payload, err := handler(addr, msg.Sender, msg.Payload)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Client.dispatchRequest",
			"peer":     addr.String(),
			"method":   msg.Method,
			"error":    err.Error(),
		}).Warn("handler returned an error")
		c.sendError(msg.Token, addr)
		return
	}

	resp := &Message{
		Type:    Response,
		Token:   msg.Token,
		Sender:  c.self,
		Method:  msg.Method,
		Payload: payload,
	}
	if err := c.conn.Send(resp, addr); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Client.dispatchRequest",
			"peer":     addr.String(),
			"error":    err.Error(),
		}).Warn("failed to send response")
	}
}

// sendError replies to a request with an "error" method-tagged, empty
// payload response, per §6's framing: "On RESPONSE, this mirrors the
// request's method_name (or 'error')".
func (c *Client) sendError(token Token, addr net.Addr) {
	resp := &Message{
		Type:    Response,
		Token:   token,
		Sender:  c.self,
		Method:  "error",
		Payload: nil,
	}
	_ = c.conn.Send(resp, addr)
}
