package transport

import "errors"

// ErrTimeout is returned by Call when no matching response arrives before
// the call's deadline. It affects only the single call; the routing
// table is never modified as a direct consequence.
var ErrTimeout = errors.New("transport: call timed out")

// ErrTransportClosed is returned by Call (or delivered to all pending
// calls) once Close has been invoked on the Client.
var ErrTransportClosed = errors.New("transport: closed")

// ErrUnknownMethod names the condition of an inbound request for a
// method with no registered handler. Client answers such a request with
// an "error" response carrying an empty payload; it neither returns nor
// transmits this value.
var ErrUnknownMethod = errors.New("transport: unknown method")
