// Package broadcast implements the pub/sub fan-out server: one producer's
// rendered payload published to any number of Unix-socket clients, with
// change deduplication, late-join catch-up, and click events relayed back.
//
// Each accepted connection becomes a session with two goroutines. The
// outbound goroutine writes the current content cache immediately (so late
// joiners see state without waiting for the next change) and then blocks
// on the session's wake channel, re-writing the cache on every wake. The
// inbound goroutine reads newline-delimited event JSON and forwards valid
// events to the producer's Click. A failed write is the session's removal
// trigger; no explicit deregistration message exists.
//
// The session set and the content cache are guarded independently: fan-out
// holds a shared lock over the sessions while signalling, the accept path
// takes an exclusive lock only for the insert, and the cache is written
// exclusively only when the payload actually changed. A stalled client can
// block only its own outbound goroutine.
package broadcast

import (
	"bufio"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"gitlab.com/tinyland/lab/pulsebar/pkg/bar"
	"gitlab.com/tinyland/lab/pulsebar/pkg/frontend"
	"gitlab.com/tinyland/lab/pulsebar/pkg/wake"
)

// acceptBackoff spaces out retries after a failed Accept.
const acceptBackoff = 100 * time.Millisecond

// session is one connected client's fan-out state.
type session struct {
	conn   net.Conn
	wakeCh *wake.Channel
}

// Server publishes one producer's output to all connected clients.
type Server struct {
	path     string
	producer bar.Producer
	logger   *slog.Logger
	payload  frontend.SingleContent

	listener net.Listener
	wg       sync.WaitGroup
	done     chan struct{}

	sessionMu sync.RWMutex
	sessions  map[*session]struct{}

	contentMu sync.RWMutex
	content   string
}

// NewServer creates a broadcast server for the given socket path and
// producer. Click events received from clients are dispatched to producer.
func NewServer(path string, producer bar.Producer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		path:     path,
		producer: producer,
		logger:   logger,
		done:     make(chan struct{}),
		sessions: make(map[*session]struct{}),
	}
}

// Start binds the Unix socket and begins accepting connections. A stale
// socket file at the path is removed first; the socket is created
// owner-only.
func (s *Server) Start() error {
	// Remove stale socket file.
	os.Remove(s.path)

	ln, err := net.Listen("unix", s.path)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.path, err)
	}
	if err := os.Chmod(s.path, 0o600); err != nil {
		ln.Close()
		return fmt.Errorf("chmod socket: %w", err)
	}
	s.listener = ln

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// Stop closes the listener and all sessions, waits for their goroutines,
// and removes the socket file.
func (s *Server) Stop() {
	select {
	case <-s.done:
		return
	default:
	}
	close(s.done)

	if s.listener != nil {
		s.listener.Close()
	}

	s.sessionMu.Lock()
	for sess := range s.sessions {
		sess.conn.Close()
		sess.wakeCh.Notify()
	}
	s.sessionMu.Unlock()

	s.wg.Wait()
	os.Remove(s.path)
}

// Addr returns the bound socket path.
func (s *Server) Addr() string {
	return s.path
}

// Emit implements scheduler.Sink: it serializes the frame's snapshot and
// publishes it to all sessions if it differs from the cached payload.
func (s *Server) Emit(frame []bar.Snapshot) error {
	payload, err := s.payload.Format(frame)
	if err != nil {
		return err
	}
	s.Publish(payload)
	return nil
}

// Publish updates the content cache and wakes every session. If the
// payload equals the cached value nothing happens: no cache write, no
// wakes, no bytes to any client. It reports whether the payload changed.
func (s *Server) Publish(payload string) bool {
	s.contentMu.RLock()
	unchanged := payload == s.content
	s.contentMu.RUnlock()
	if unchanged {
		return false
	}

	s.contentMu.Lock()
	s.content = payload
	s.contentMu.Unlock()

	s.sessionMu.RLock()
	for sess := range s.sessions {
		sess.wakeCh.Notify()
	}
	s.sessionMu.RUnlock()
	return true
}

// SessionCount returns the number of currently registered sessions.
func (s *Server) SessionCount() int {
	s.sessionMu.RLock()
	defer s.sessionMu.RUnlock()
	return len(s.sessions)
}

func (s *Server) currentContent() string {
	s.contentMu.RLock()
	defer s.contentMu.RUnlock()
	return s.content
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
				// A persistent error such as EMFILE would otherwise
				// spin this loop.
				s.logger.Warn("accept failed", "error", err)
				select {
				case <-s.done:
					return
				case <-time.After(acceptBackoff):
				}
				continue
			}
		}
		sess := &session{conn: conn, wakeCh: wake.New()}

		s.sessionMu.Lock()
		s.sessions[sess] = struct{}{}
		s.sessionMu.Unlock()

		s.wg.Add(2)
		go s.outbound(sess)
		go s.inbound(sess)
	}
}

// outbound writes the current content on connect, then once per wake. The
// first failed write drops the session.
func (s *Server) outbound(sess *session) {
	defer s.wg.Done()

	if _, err := sess.conn.Write([]byte(s.currentContent())); err != nil {
		s.logger.Warn("lost client during initial write", "error", err)
		s.drop(sess)
		return
	}
	for {
		select {
		case <-s.done:
			return
		case <-sess.wakeCh.C():
		}
		select {
		case <-s.done:
			return
		default:
		}
		if _, err := sess.conn.Write([]byte(s.currentContent())); err != nil {
			s.logger.Warn("lost client while writing update", "error", err)
			s.drop(sess)
			return
		}
	}
}

// inbound reads newline-delimited events and forwards them to the
// producer. EOF or a framing error ends the goroutine; closing the
// connection makes the outbound side fail its next write.
func (s *Server) inbound(sess *session) {
	defer s.wg.Done()
	defer sess.conn.Close()

	scanner := bufio.NewScanner(sess.conn)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		ev, err := bar.ParseEvent(line)
		if err != nil {
			s.logger.Warn("invalid event from client", "error", err)
			continue
		}
		s.producer.Click(ev)
	}
	if err := scanner.Err(); err != nil {
		s.logger.Warn("client read failed", "error", err)
	}
}

// drop removes a session from the set and closes its connection.
func (s *Server) drop(sess *session) {
	s.sessionMu.Lock()
	delete(s.sessions, sess)
	s.sessionMu.Unlock()
	sess.conn.Close()
}
