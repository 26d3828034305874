package transport

// Filter is a caller-supplied predicate consulted for every chunk read from
// the client before it is admitted to the receive queue. A chunk for which
// any filter returns true is discarded without being queued.
//
// Every filter adds overhead to processing received messages, which may have
// an impact on throughput. Filters are invoked synchronously on the reader
// goroutine and must not block indefinitely or mutate the chunk.
type Filter interface {
	// MeetCriteria reports whether msg matches the filter and should
	// therefore be dropped.
	MeetCriteria(msg []byte) bool
}

// FilterFunc adapts a plain function to the Filter interface.
type FilterFunc func(msg []byte) bool

func (f FilterFunc) MeetCriteria(msg []byte) bool { return f(msg) }
