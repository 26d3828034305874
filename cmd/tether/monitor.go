package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/tetherproject/tether/internal/capture"
	"github.com/tetherproject/tether/internal/capture/data"
	"github.com/tetherproject/tether/internal/core"
	"github.com/tetherproject/tether/internal/core/debug"
	"github.com/tetherproject/tether/internal/transport"
)

// drainInterval bounds how long the monitor waits on the queue before
// re-checking the connection state and the shutdown context.
const drainInterval = 500 * time.Millisecond

// monitor runs harness sessions back to back: each session accepts one
// client, drains its traffic into the recorder, and persists the transcript
// once the client goes away.
type monitor struct {
	config   *core.Config
	logger   *logrus.Logger
	recorder *capture.Recorder
	db       *gorm.DB
}

func (m *monitor) run(ctx context.Context) error {
	for session := 1; ; session++ {
		sessionID := fmt.Sprintf("tether-%d-%d", time.Now().Unix(), session)

		if err := m.runSession(ctx, sessionID); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// runSession accepts a single client and services it until it disconnects or
// the context is canceled. Endpoints are single use, so each session gets a
// fresh one on the same configured port.
func (m *monitor) runSession(ctx context.Context, sessionID string) error {
	server := transport.NewServer(transport.Options{
		Hostname:      m.config.Hostname,
		Port:          m.config.Harness.Port,
		Logger:        m.logger,
		Observer:      m.recorder.ObserverFor(sessionID),
		QueueCapacity: m.config.Harness.QueueCapacity,
		ChunkSize:     m.config.Harness.ReadChunkSize,
	})

	// A bounded accept timeout keeps this loop responsive to shutdown even
	// when no client ever shows up.
	acceptTimeout := m.config.AcceptTimeoutDuration()
	if acceptTimeout <= 0 {
		acceptTimeout = time.Second
	}

	for {
		err := server.Connect(acceptTimeout)
		if err == nil {
			break
		}
		if errors.Is(err, transport.ErrAcceptTimeout) {
			if ctx.Err() != nil {
				return nil
			}
			continue
		}
		return fmt.Errorf("error starting session %s: %w", sessionID, err)
	}

	m.logger.Infof("session %s started", sessionID)
	m.drain(ctx, server)

	if err := server.Disconnect(); err != nil && !errors.Is(err, transport.ErrClosed) {
		m.logger.Warnf("error disconnecting session %s: %v", sessionID, err)
	}

	m.persist(sessionID)
	m.logger.Infof("session %s ended", sessionID)
	return nil
}

// drain pulls received chunks until the client has disconnected and the
// queue is empty, or the context is canceled.
func (m *monitor) drain(ctx context.Context, server *transport.Server) {
	for {
		msg, err := server.NextTimeout(drainInterval)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if !server.IsConnected() && !server.HasNext() {
				return
			}
			continue
		}

		if m.config.Debugging.PayloadLoggingEnabled {
			debug.DumpPayload(m.logger, "inbound", msg)
		}

		if m.config.Harness.Echo {
			if err := server.Send(msg); err != nil {
				m.logger.Warnf("error echoing chunk: %v", err)
			}
		}
	}
}

// persist writes the session's recorded traffic to the transcript store, if
// one is configured.
func (m *monitor) persist(sessionID string) {
	if m.db == nil {
		return
	}

	entries := m.recorder.Entries(sessionID)
	if len(entries) == 0 {
		return
	}

	transcript := data.FromEntries(sessionID, entries)
	if err := data.SaveTranscript(m.db, transcript); err != nil {
		m.logger.Errorf("error saving transcript for %s: %v", sessionID, err)
		return
	}
	m.logger.Infof("saved transcript %d with %d entries for %s",
		transcript.ID, len(transcript.Entries), sessionID)
}
