package transport

import (
	"errors"
	"io"
	"net"
)

// readLoop drains the accepted connection into the receive queue until the
// stream ends. It runs on its own goroutine, exactly one per endpoint, and
// borrows the connection without ever closing it: Disconnect owns both
// sockets and closing them is the only way to stop the loop early.
func (s *Server) readLoop(conn *net.TCPConn) {
	defer close(s.readerExited)

	// The scratch buffer is reused across reads, so every chunk is copied
	// out before it can be retained by the queue.
	buffer := make([]byte, s.chunkSize)

	for {
		n, err := conn.Read(buffer)

		if n > 0 {
			msg := make([]byte, n)
			copy(msg, buffer[:n])
			s.admit(msg)
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				s.logger.Debugf("client %v closed the connection", conn.RemoteAddr())
				return
			}
			if errors.Is(err, net.ErrClosed) {
				// The socket was deliberately closed by Disconnect.
				return
			}

			s.logger.Errorf("reader terminated by socket error: %v", err)
			if s.observer != nil {
				s.observer.OnFault(err)
			}
			return
		}
	}
}

// admit runs msg through the filter set and enqueues it unless a filter
// claims it. Filters are evaluated in order and the first match wins, so
// later filters never see a chunk an earlier one dropped.
func (s *Server) admit(msg []byte) {
	for _, filter := range s.filters {
		if filter.MeetCriteria(msg) {
			return
		}
	}

	if !s.queue.push(msg) {
		s.logger.Warnf("receive queue full, dropping %d byte chunk", len(msg))
		return
	}

	if s.observer != nil {
		s.observer.OnReceive(msg)
	}
}
