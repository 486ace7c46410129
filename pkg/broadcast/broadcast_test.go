package broadcast

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"gitlab.com/tinyland/lab/pulsebar/pkg/bar"
)

func startServer(t *testing.T) (*Server, *bar.MockProducer) {
	t.Helper()
	producer := bar.NewMockProducer(&bar.Snapshot{FullText: "x"})
	path := filepath.Join(t.TempDir(), "test.sock")
	srv := NewServer(path, producer, nil)
	if err := srv.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(srv.Stop)
	return srv, producer
}

func dial(t *testing.T, srv *Server) net.Conn {
	t.Helper()
	conn, err := net.Dial("unix", srv.Addr())
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readLine(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	line, err := r.ReadString('\n')
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	return line
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestLateJoinReceivesCachedPayload(t *testing.T) {
	srv, _ := startServer(t)

	// The payload was published long before this client existed.
	srv.Publish("{\"full_text\":\"cached\",\"name\":\"0\"}\n")

	conn := dial(t, srv)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	got := readLine(t, bufio.NewReader(conn))
	if got != "{\"full_text\":\"cached\",\"name\":\"0\"}\n" {
		t.Errorf("late joiner got %q, want the cached payload", got)
	}
}

func TestUnchangedPayloadWritesNothing(t *testing.T) {
	srv, _ := startServer(t)
	srv.Publish("one\n")

	conn := dial(t, srv)
	reader := bufio.NewReader(conn)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	readLine(t, reader) // initial catch-up

	// Same payload again: zero additional bytes expected.
	if changed := srv.Publish("one\n"); changed {
		t.Error("Publish reported a change for an identical payload")
	}
	conn.SetReadDeadline(time.Now().Add(150 * time.Millisecond))
	if _, err := reader.ReadByte(); err == nil {
		t.Fatal("received bytes for an unchanged payload")
	}

	// A genuine change still flows.
	srv.Publish("two\n")
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if got := readLine(t, reader); got != "two\n" {
		t.Errorf("got %q after change, want %q", got, "two\n")
	}
}

func TestFanOutReachesEveryClient(t *testing.T) {
	srv, _ := startServer(t)
	srv.Publish("initial\n")

	const numClients = 5
	readers := make([]*bufio.Reader, numClients)
	for i := range readers {
		conn := dial(t, srv)
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		readers[i] = bufio.NewReader(conn)
		readLine(t, readers[i])
	}
	waitFor(t, func() bool { return srv.SessionCount() == numClients })

	srv.Publish("update\n")
	for i, r := range readers {
		if got := readLine(t, r); got != "update\n" {
			t.Errorf("client %d got %q, want %q", i, got, "update\n")
		}
	}
}

func TestDeadClientDoesNotAffectOthers(t *testing.T) {
	srv, _ := startServer(t)
	srv.Publish("initial\n")

	dead := dial(t, srv)
	survivor := dial(t, srv)
	survivor.SetReadDeadline(time.Now().Add(2 * time.Second))
	reader := bufio.NewReader(survivor)
	readLine(t, bufio.NewReader(dead))
	readLine(t, reader)
	waitFor(t, func() bool { return srv.SessionCount() == 2 })

	dead.Close()

	// Failed writes are the removal trigger, so publish until the dead
	// session is reaped; the survivor must see every change meanwhile.
	for i := 0; i < 5; i++ {
		payload := fmt.Sprintf("update-%d\n", i)
		srv.Publish(payload)
		if got := readLine(t, reader); got != payload {
			t.Fatalf("survivor got %q, want %q", got, payload)
		}
	}
	waitFor(t, func() bool { return srv.SessionCount() == 1 })
}

func TestInboundEventDispatchedToProducer(t *testing.T) {
	srv, producer := startServer(t)
	conn := dial(t, srv)

	if _, err := conn.Write([]byte("{\"name\":\"0\",\"button\":3}\n")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	waitFor(t, func() bool { return len(producer.Clicks()) == 1 })
	if ev := producer.Clicks()[0]; ev.Button != bar.ButtonRight {
		t.Errorf("button = %d, want %d", ev.Button, bar.ButtonRight)
	}
}

func TestInboundMalformedEventSkipped(t *testing.T) {
	srv, producer := startServer(t)
	conn := dial(t, srv)

	if _, err := conn.Write([]byte("not json\n{\"button\":1}\n")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	// The valid line after the garbage still dispatches.
	waitFor(t, func() bool { return len(producer.Clicks()) == 1 })
}

func TestStaleSocketReplaced(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stale.sock")
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatalf("creating stale file: %v", err)
	}

	srv := NewServer(path, bar.NewMockProducer(nil), nil)
	if err := srv.Start(); err != nil {
		t.Fatalf("Start with stale socket failed: %v", err)
	}
	srv.Stop()
}

func TestEmitFormatsSingleContent(t *testing.T) {
	srv, _ := startServer(t)

	if err := srv.Emit(nil); err != nil {
		t.Fatalf("Emit failed: %v", err)
	}
	conn := dial(t, srv)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	reader := bufio.NewReader(conn)
	if got := readLine(t, reader); got != "{\"full_text\":\"\", \"name\":\"\"}\n" {
		t.Errorf("empty frame payload = %q", got)
	}

	if err := srv.Emit([]bar.Snapshot{{FullText: "7:30", Name: "0"}}); err != nil {
		t.Fatalf("Emit failed: %v", err)
	}
	if got := readLine(t, reader); got != "{\"full_text\":\"7:30\",\"name\":\"0\"}\n" {
		t.Errorf("snapshot payload = %q", got)
	}
}

func TestSocketPath(t *testing.T) {
	t.Run("resolves under runtime dir", func(t *testing.T) {
		dir := t.TempDir()
		t.Setenv("XDG_RUNTIME_DIR", dir)

		path, err := SocketPath("battery")
		if err != nil {
			t.Fatalf("SocketPath failed: %v", err)
		}
		want := filepath.Join(dir, "pulsebar", "battery")
		if path != want {
			t.Errorf("path = %q, want %q", path, want)
		}
		if _, err := os.Stat(filepath.Join(dir, "pulsebar")); err != nil {
			t.Errorf("runtime subdirectory not created: %v", err)
		}
	})

	t.Run("missing runtime dir is fatal", func(t *testing.T) {
		t.Setenv("XDG_RUNTIME_DIR", "")
		if _, err := SocketPath("battery"); err == nil {
			t.Fatal("SocketPath should fail without XDG_RUNTIME_DIR")
		}
	})

	t.Run("absolute path passes through", func(t *testing.T) {
		path, err := SocketPath("/tmp/custom.sock")
		if err != nil {
			t.Fatalf("SocketPath failed: %v", err)
		}
		if path != "/tmp/custom.sock" {
			t.Errorf("path = %q, want /tmp/custom.sock", path)
		}
	})
}

// brokenListener fails every Accept, as a listener does once the process
// runs out of file descriptors.
type brokenListener struct {
	calls atomic.Int32
}

func (l *brokenListener) Accept() (net.Conn, error) {
	l.calls.Add(1)
	return nil, errors.New("accept: too many open files")
}

func (l *brokenListener) Close() error   { return nil }
func (l *brokenListener) Addr() net.Addr { return &net.UnixAddr{Name: "broken", Net: "unix"} }

func TestAcceptErrorsAreRateLimited(t *testing.T) {
	srv := NewServer(filepath.Join(t.TempDir(), "unused.sock"),
		bar.NewMockProducer(nil),
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	ln := &brokenListener{}
	srv.listener = ln
	srv.wg.Add(1)
	go srv.acceptLoop()

	time.Sleep(250 * time.Millisecond)
	if calls := ln.calls.Load(); calls > 10 {
		t.Errorf("Accept called %d times in 250ms, retries are not backed off", calls)
	}

	close(srv.done)
	stopped := make(chan struct{})
	go func() {
		srv.wg.Wait()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("accept loop did not exit after shutdown")
	}
}
