package capture

import (
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/tetherproject/tether/internal/transport"
)

// Direction tags which side of the connection a recorded payload came from.
type Direction string

const (
	Inbound  Direction = "in"
	Outbound Direction = "out"
)

// Entry is a single payload observed on a session, in the order it was seen.
type Entry struct {
	Direction  Direction
	Payload    []byte
	RecordedAt time.Time
}

type sessionLog struct {
	entries []Entry
	faults  []error
}

// Recorder keeps a rolling record of the traffic on each harness session so
// tests can assert on what actually crossed the wire after the fact.
// Sessions expire on a TTL so a long-lived harness process doesn't
// accumulate transcripts forever.
type Recorder struct {
	mu       sync.Mutex
	sessions *gocache.Cache
	ttl      time.Duration
}

// NewRecorder creates a recorder whose sessions expire ttl after their last
// recorded payload. Expired sessions are swept every sweepInterval.
func NewRecorder(ttl, sweepInterval time.Duration) *Recorder {
	return &Recorder{
		sessions: gocache.New(ttl, sweepInterval),
		ttl:      ttl,
	}
}

// Record appends a payload to the named session's log, creating the session
// if this is its first entry. The payload is copied so callers may reuse
// their buffers.
func (r *Recorder) Record(session string, direction Direction, payload []byte) {
	entry := Entry{
		Direction:  direction,
		Payload:    append([]byte(nil), payload...),
		RecordedAt: time.Now(),
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	log := r.sessionLog(session)
	log.entries = append(log.entries, entry)
	r.sessions.Set(session, log, r.ttl)
}

// RecordFault attaches a reader fault to the named session.
func (r *Recorder) RecordFault(session string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	log := r.sessionLog(session)
	log.faults = append(log.faults, err)
	r.sessions.Set(session, log, r.ttl)
}

// sessionLog returns the live log for session, creating it if absent.
// Callers must hold r.mu.
func (r *Recorder) sessionLog(session string) *sessionLog {
	if cached, found := r.sessions.Get(session); found {
		return cached.(*sessionLog)
	}
	return &sessionLog{}
}

// Entries returns a snapshot of everything recorded for session, oldest
// first. The snapshot is a copy and safe to hold across further traffic.
func (r *Recorder) Entries(session string) []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	cached, found := r.sessions.Get(session)
	if !found {
		return nil
	}

	log := cached.(*sessionLog)
	entries := make([]Entry, len(log.entries))
	copy(entries, log.entries)
	return entries
}

// Faults returns any reader faults recorded for session.
func (r *Recorder) Faults(session string) []error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cached, found := r.sessions.Get(session)
	if !found {
		return nil
	}

	log := cached.(*sessionLog)
	faults := make([]error, len(log.faults))
	copy(faults, log.faults)
	return faults
}

// ObserverFor adapts the recorder to the transport.Observer interface,
// binding all notifications to the named session.
func (r *Recorder) ObserverFor(session string) transport.Observer {
	return sessionObserver{recorder: r, session: session}
}

type sessionObserver struct {
	recorder *Recorder
	session  string
}

func (o sessionObserver) OnReceive(msg []byte) { o.recorder.Record(o.session, Inbound, msg) }
func (o sessionObserver) OnSend(msg []byte)    { o.recorder.Record(o.session, Outbound, msg) }
func (o sessionObserver) OnFault(err error)    { o.recorder.RecordFault(o.session, err) }
