package transport

import "errors"

var (
	// ErrNotConnected is returned by operations that require an accepted
	// connection when no client has connected yet.
	ErrNotConnected = errors.New("no client connection has been accepted")

	// ErrClosed is returned by operations invoked after Disconnect has
	// released the endpoint's sockets. Endpoints are single use; a new
	// Server must be created to accept another client.
	ErrClosed = errors.New("endpoint has been disconnected")

	// ErrBindFailed is returned by Connect when the listening socket could
	// not be bound, typically because the port is already in use. The
	// endpoint remains usable for another Connect attempt.
	ErrBindFailed = errors.New("could not bind listening socket")

	// ErrAcceptTimeout is returned by Connect when no client connected
	// within the requested window. The listening socket remains open, so
	// Connect may be called again to keep waiting.
	ErrAcceptTimeout = errors.New("timed out waiting for a client to connect")

	// ErrReceiveTimeout is returned by NextTimeout when no message arrived
	// within the requested window.
	ErrReceiveTimeout = errors.New("timed out waiting for a message")
)
