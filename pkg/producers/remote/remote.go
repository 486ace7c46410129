// Package remote provides the client side of the broadcast protocol: a
// producer whose content comes from a pulsebar-server socket. A background
// goroutine keeps a connection alive, caches every snapshot the server
// pushes, and wakes the scheduler; clicks are written back to the server
// as event JSON. While disconnected the producer renders nothing.
package remote

import (
	"bufio"
	"encoding/json"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"gitlab.com/tinyland/lab/pulsebar/pkg/bar"
	"gitlab.com/tinyland/lab/pulsebar/pkg/wake"
)

// reconnectDelay is the backoff between connection attempts.
const reconnectDelay = 2 * time.Second

// Producer mirrors a broadcast server's published snapshot.
type Producer struct {
	path   string
	wakeCh *wake.Channel
	logger *slog.Logger

	connected atomic.Bool

	mu      sync.RWMutex
	content bar.Snapshot
	conn    net.Conn
}

// New creates the producer and starts its reconnect loop. path is the
// server's socket path, typically resolved with broadcast.SocketPath.
func New(path string, wakeCh *wake.Channel, logger *slog.Logger) *Producer {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Producer{
		path:   path,
		wakeCh: wakeCh,
		logger: logger,
	}
	go p.connectLoop()
	return p
}

// Render implements bar.Producer. Disconnected producers are omitted from
// the frame so a dead server leaves no stale segment on the bar.
func (p *Producer) Render() *bar.Snapshot {
	if !p.connected.Load() {
		return nil
	}
	p.mu.RLock()
	snap := p.content
	p.mu.RUnlock()
	return &snap
}

// Click implements bar.Producer: the event is forwarded verbatim to the
// server, which dispatches it to the underlying producer.
func (p *Producer) Click(ev bar.Event) {
	if !p.connected.Load() {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if _, err := p.conn.Write(append(data, '\n')); err != nil {
		p.logger.Warn("event write failed", "socket", p.path, "error", err)
	}
}

// connectLoop dials the server, consumes its snapshot stream, and retries
// after any failure.
func (p *Producer) connectLoop() {
	for {
		conn, err := net.Dial("unix", p.path)
		if err != nil {
			p.logger.Debug("server unavailable", "socket", p.path, "error", err)
			p.setDisconnected()
			time.Sleep(reconnectDelay)
			continue
		}

		p.mu.Lock()
		p.conn = conn
		p.mu.Unlock()
		p.connected.Store(true)

		p.readStream(conn)

		p.setDisconnected()
		conn.Close()
		time.Sleep(reconnectDelay)
	}
}

// readStream caches snapshots until the connection breaks or the stream
// desynchronizes.
func (p *Producer) readStream(conn net.Conn) {
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		var snap bar.Snapshot
		if err := json.Unmarshal(scanner.Bytes(), &snap); err != nil {
			p.logger.Warn("invalid snapshot from server", "socket", p.path, "error", err)
			return
		}
		p.mu.Lock()
		p.content = snap
		p.mu.Unlock()
		p.wakeCh.Notify()
	}
	if err := scanner.Err(); err != nil {
		p.logger.Warn("server stream read failed", "socket", p.path, "error", err)
	}
}

func (p *Producer) setDisconnected() {
	wasConnected := p.connected.Swap(false)
	p.mu.Lock()
	p.conn = nil
	p.mu.Unlock()
	if wasConnected {
		p.wakeCh.Notify()
	}
}
