package transport

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// defaultChunkSize is the number of bytes consumed from the socket per read
// when no override is configured.
const defaultChunkSize = 4 * 1024

// Observer receives a side-channel notification for every admitted chunk,
// every completed send, and any reader fault. The reader goroutine has no
// caller to report errors to, so faults can only surface here and in the log.
type Observer interface {
	OnReceive(msg []byte)
	OnSend(msg []byte)
	OnFault(err error)
}

// Connectable is the contract the endpoint exposes to test code: a
// connection-oriented peer that queues whatever the other side sends and
// accepts raw bytes to transmit back.
type Connectable interface {
	Connect(timeout time.Duration) error
	IsConnected() bool
	Disconnect() error
	Send(data []byte) error
	HasNext() bool
	Next() ([]byte, bool)
	NextTimeout(timeout time.Duration) ([]byte, error)
	ClearQueue()
}

// Options configures a Server. The zero value listens on an OS-assigned port
// on all interfaces with no filters, an unbounded queue, and 4KiB reads.
type Options struct {
	// Hostname or IP to bind. Blank binds all interfaces.
	Hostname string
	// TCP port to listen on, or 0 to have the OS assign one.
	Port int
	// Filters consulted, in order, for every received chunk. The slice is
	// copied at construction; mutating it afterwards has no effect.
	Filters []Filter
	// Logger for connection lifecycle events and reader faults. Defaults
	// to the logrus standard logger.
	Logger *logrus.Logger
	// Optional observer notified of traffic and reader faults.
	Observer Observer
	// Maximum number of queued messages (0 = unbounded).
	QueueCapacity int
	// Maximum bytes consumed from the socket per read (0 = 4KiB).
	ChunkSize int
}

// Server is a single-client TCP endpoint for driving a system under test.
// It accepts exactly one client connection, drains everything the client
// sends into a receive queue on a background goroutine, and lets the test
// pull received chunks and push responses. Chunks are opaque: the endpoint
// imposes no framing, so a test that needs message boundaries has to build
// them on top.
//
// Endpoints are single use. After Disconnect the sockets are released and a
// new Server must be created to accept another client.
type Server struct {
	hostname string
	port     int
	filters  []Filter
	logger   *logrus.Logger
	observer Observer

	queue     *recvQueue
	chunkSize int

	// mu guards the connection state below. sendMu serializes writers so
	// concurrent Send calls cannot interleave their bytes on the wire.
	mu     sync.Mutex
	sendMu sync.Mutex

	listener *net.TCPListener
	conn     *net.TCPConn
	closed   bool

	// readerExited is closed when the reader goroutine returns, whether
	// from EOF, a deliberate Disconnect, or a fault.
	readerExited chan struct{}
}

var _ Connectable = (*Server)(nil)

// NewServer builds an endpoint from opts. Nothing is bound until Connect.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}

	filters := make([]Filter, len(opts.Filters))
	copy(filters, opts.Filters)

	return &Server{
		hostname:  opts.Hostname,
		port:      opts.Port,
		filters:   filters,
		logger:    logger,
		observer:  opts.Observer,
		queue:     newRecvQueue(opts.QueueCapacity),
		chunkSize: chunkSize,
	}
}

// Connect binds the listening socket (unless a prior attempt already bound
// it) and blocks until a client connects or timeout elapses; a timeout of
// zero waits indefinitely. On success the accepted connection is recorded
// and the reader goroutine is started.
//
// A bind failure leaves the endpoint reusable for another Connect call. On
// ErrAcceptTimeout the listening socket stays open, so Connect may simply be
// called again to keep waiting.
func (s *Server) Connect(timeout time.Duration) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.conn != nil {
		s.mu.Unlock()
		return fmt.Errorf("a client connection was already accepted on port %d", s.port)
	}

	if s.listener == nil {
		addr, err := net.ResolveTCPAddr("tcp", fmt.Sprintf("%s:%d", s.hostname, s.port))
		if err != nil {
			s.mu.Unlock()
			return fmt.Errorf("error resolving listen address: %w", err)
		}

		listener, err := net.ListenTCP("tcp", addr)
		if err != nil {
			s.mu.Unlock()
			return fmt.Errorf("%w: %w", ErrBindFailed, err)
		}
		s.listener = listener
	}
	listener := s.listener
	s.mu.Unlock()

	if timeout > 0 {
		if err := listener.SetDeadline(time.Now().Add(timeout)); err != nil {
			return fmt.Errorf("error setting accept deadline: %w", err)
		}
	} else {
		if err := listener.SetDeadline(time.Time{}); err != nil {
			return fmt.Errorf("error clearing accept deadline: %w", err)
		}
	}

	s.logger.Infof("waiting for a client connection on %v", listener.Addr())

	conn, err := listener.AcceptTCP()
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return fmt.Errorf("%w after %v", ErrAcceptTimeout, timeout)
		}
		return fmt.Errorf("error accepting connection: %w", err)
	}

	s.mu.Lock()
	s.conn = conn
	s.readerExited = make(chan struct{})
	s.mu.Unlock()

	s.logger.Infof("accepted connection from %v", conn.RemoteAddr())

	go s.readLoop(conn)
	return nil
}

// Addr returns the address the listening socket is bound to, or nil before
// Connect has bound it. Useful with port 0 to learn the assigned port.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// IsConnected reports whether an accepted client connection is currently
// open: one was accepted, Disconnect has not released it, and the reader
// has not observed the client closing its end.
func (s *Server) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil || s.closed {
		return false
	}

	select {
	case <-s.readerExited:
		return false
	default:
		return true
	}
}

// Disconnect closes the accepted connection and the listening socket, which
// also stops the reader goroutine. It returns ErrNotConnected if no client
// was ever accepted and ErrClosed if the endpoint was already disconnected.
func (s *Server) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.conn == nil {
		return ErrNotConnected
	}
	s.closed = true

	connErr := s.conn.Close()
	listenerErr := s.listener.Close()

	s.logger.Infof("connection closed")

	if connErr != nil {
		return fmt.Errorf("error closing client connection: %w", connErr)
	}
	if listenerErr != nil {
		return fmt.Errorf("error closing listener: %w", listenerErr)
	}
	return nil
}

// Send writes data verbatim to the connected client. Concurrent callers are
// serialized so their payloads never interleave on the wire. Sending and
// receiving operate on independent directions of the connection, so Send
// never contends with the reader goroutine.
func (s *Server) Send(data []byte) error {
	s.mu.Lock()
	conn, closed := s.conn, s.closed
	s.mu.Unlock()

	if closed {
		return ErrClosed
	}
	if conn == nil {
		return ErrNotConnected
	}

	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	for sent := 0; sent < len(data); {
		n, err := conn.Write(data[sent:])
		if err != nil {
			return fmt.Errorf("error writing to client %v: %w", conn.RemoteAddr(), err)
		}
		sent += n
	}

	if s.observer != nil {
		s.observer.OnSend(data)
	}
	return nil
}

// HasNext reports whether the receive queue held at least one message at the
// instant of the call. Advisory only: the reader may enqueue a message
// immediately after a false return.
func (s *Server) HasNext() bool {
	return s.queue.len() > 0
}

// Next removes and returns the oldest queued message without blocking. The
// second return value is false if the queue was empty.
func (s *Server) Next() ([]byte, bool) {
	return s.queue.pop()
}

// NextTimeout removes and returns the oldest queued message, blocking until
// one arrives or timeout (measured from call entry) elapses, in which case
// ErrReceiveTimeout is returned. Only the calling goroutine waits; the
// reader keeps draining the socket throughout. Closing the connection does
// not interrupt the wait, it simply runs out its timeout on an empty queue.
func (s *Server) NextTimeout(timeout time.Duration) ([]byte, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		if msg, ok := s.queue.pop(); ok {
			return msg, nil
		}

		select {
		case <-s.queue.wait():
		case <-timer.C:
			// An arrival may have raced the timer; prefer the message.
			if msg, ok := s.queue.pop(); ok {
				return msg, nil
			}
			return nil, fmt.Errorf("%w after %v", ErrReceiveTimeout, timeout)
		}
	}
}

// ClearQueue atomically discards every queued message. Messages arriving
// after the call are queued as usual.
func (s *Server) ClearQueue() {
	s.queue.clear()
}
