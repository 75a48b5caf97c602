package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var testUpgrader = websocket.Upgrader{}

func testBackoff() *Backoff {
	return NewBackoff(WithBackoffConfig(BackoffConfig{
		InitialDelay: 2 * time.Millisecond,
		MaxDelay:     10 * time.Millisecond,
		Multiplier:   2,
		JitterFactor: 0,
		MaxAttempts:  5,
	}))
}

func socketURLFor(server *httptest.Server) func() (string, error) {
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	return func() (string, error) { return wsURL, nil }
}

func waitFor(t *testing.T, timeout time.Duration, condition func() bool, message string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", message)
}

type echoServer struct {
	server *httptest.Server

	mu       sync.Mutex
	received []string
	conns    []*websocket.Conn
	accepts  atomic.Int32
}

func newEchoServer(t *testing.T) *echoServer {
	t.Helper()

	s := &echoServer{}
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.accepts.Add(1)
		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.mu.Unlock()

		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				return
			}
			s.mu.Lock()
			s.received = append(s.received, string(message))
			s.mu.Unlock()
		}
	}))
	t.Cleanup(s.server.Close)
	return s
}

func (s *echoServer) receivedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.received)
}

func (s *echoServer) lastReceived() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.received) == 0 {
		return ""
	}
	return s.received[len(s.received)-1]
}

func TestConnectReachesConnectedAndResetsBackoff(t *testing.T) {
	server := newEchoServer(t)
	backoff := testBackoff()
	backoff.NextDelay()

	transport := New(socketURLFor(server.server), WithBackoff(backoff))
	if err := transport.Connect(context.Background()); err != nil {
		t.Fatalf("expected connect to succeed, got %v", err)
	}
	t.Cleanup(func() { transport.Disconnect(context.Background(), nil) })

	if got := transport.State(); got != StateConnected {
		t.Fatalf("expected state CONNECTED after dial, got %s", got)
	}
	if got := backoff.Attempts(); got != 0 {
		t.Fatalf("expected backoff reset on open, got %d attempts", got)
	}
}

func TestConnectIsNoOpWhenAlreadyOpen(t *testing.T) {
	server := newEchoServer(t)

	transport := New(socketURLFor(server.server), WithBackoff(testBackoff()))
	if err := transport.Connect(context.Background()); err != nil {
		t.Fatalf("expected connect to succeed, got %v", err)
	}
	t.Cleanup(func() { transport.Disconnect(context.Background(), nil) })

	if err := transport.Connect(context.Background()); err != nil {
		t.Fatalf("expected repeated connect to be a no-op, got %v", err)
	}
	if got := server.accepts.Load(); got != 1 {
		t.Fatalf("expected a single socket accept, got %d", got)
	}
}

func TestSendBeforeOpenIsDroppedThenDeliveredAfterReady(t *testing.T) {
	server := newEchoServer(t)
	transport := New(socketURLFor(server.server), WithBackoff(testBackoff()))

	if err := transport.Send(map[string]string{"type": "text"}); err != nil {
		t.Fatalf("expected send before connect to be a silent no-op, got %v", err)
	}
	if got := server.receivedCount(); got != 0 {
		t.Fatalf("expected nothing delivered before connect, got %d messages", got)
	}

	if err := transport.Connect(context.Background()); err != nil {
		t.Fatalf("expected connect to succeed, got %v", err)
	}
	t.Cleanup(func() { transport.Disconnect(context.Background(), nil) })

	if !transport.MarkReady() {
		t.Fatalf("expected CONNECTED -> READY transition to succeed")
	}
	if err := transport.Send(map[string]string{"type": "text", "text": "hello"}); err != nil {
		t.Fatalf("expected send after ready to succeed, got %v", err)
	}

	waitFor(t, time.Second, func() bool { return server.receivedCount() == 1 },
		"server to receive the envelope")
	if got := server.lastReceived(); !strings.Contains(got, "hello") {
		t.Fatalf("expected delivered envelope to carry text, got %q", got)
	}
}

func TestUnexpectedCloseSchedulesExactlyMaxAttemptsReconnects(t *testing.T) {
	var accepts atomic.Int32
	var refusals atomic.Int32
	var refusing atomic.Bool

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if refusing.Load() {
			refusals.Add(1)
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		accepts.Add(1)
		refusing.Store(true)
		conn.Close()
	}))
	t.Cleanup(server.Close)

	var errorCodes []ErrorCode
	var errorsMu sync.Mutex
	transport := New(socketURLFor(server),
		WithBackoff(testBackoff()),
		WithOnError(func(err *Error) {
			errorsMu.Lock()
			errorCodes = append(errorCodes, err.Code)
			errorsMu.Unlock()
		}),
	)

	transport.Connect(context.Background())

	waitFor(t, 2*time.Second, func() bool {
		return transport.State() == StateDisconnected && refusals.Load() >= 5
	}, "reconnect attempts to exhaust")

	// Settle long past the largest configured delay to catch a stray 6th.
	time.Sleep(100 * time.Millisecond)

	if got := refusals.Load(); got != 5 {
		t.Fatalf("expected exactly 5 reconnect attempts, got %d", got)
	}
	if got := accepts.Load(); got != 1 {
		t.Fatalf("expected a single successful accept, got %d", got)
	}
	if got := transport.State(); got != StateDisconnected {
		t.Fatalf("expected final state DISCONNECTED, got %s", got)
	}

	errorsMu.Lock()
	defer errorsMu.Unlock()
	if len(errorCodes) == 0 || errorCodes[0] != ErrCodeUnexpectedClose {
		t.Fatalf("expected first surfaced error UNEXPECTED_CLOSE, got %v", errorCodes)
	}
	sawConnectionFailed := false
	for _, code := range errorCodes[1:] {
		if code == ErrCodeConnectionFailed {
			sawConnectionFailed = true
		}
	}
	if !sawConnectionFailed {
		t.Fatalf("expected CONNECTION_FAILED errors during reconnects, got %v", errorCodes)
	}
}

func TestManualDisconnectDoesNotReconnect(t *testing.T) {
	server := newEchoServer(t)

	var closedManual atomic.Bool
	transport := New(socketURLFor(server.server),
		WithBackoff(testBackoff()),
		WithLingerBeforeClose(time.Millisecond),
		WithOnClosed(func(manual bool) { closedManual.Store(manual) }),
	)

	if err := transport.Connect(context.Background()); err != nil {
		t.Fatalf("expected connect to succeed, got %v", err)
	}
	if err := transport.Disconnect(context.Background(), map[string]string{"type": "disconnect"}); err != nil {
		t.Fatalf("expected disconnect to succeed, got %v", err)
	}
	if !closedManual.Load() {
		t.Fatalf("expected close callback to report a manual close")
	}

	waitFor(t, time.Second, func() bool { return server.receivedCount() == 1 },
		"terminal envelope to reach the server")
	if got := server.lastReceived(); !strings.Contains(got, "disconnect") {
		t.Fatalf("expected terminal disconnect envelope, got %q", got)
	}

	time.Sleep(50 * time.Millisecond)
	if got := server.accepts.Load(); got != 1 {
		t.Fatalf("expected no reconnect after manual disconnect, got %d accepts", got)
	}
	if got := transport.State(); got != StateDisconnected {
		t.Fatalf("expected state DISCONNECTED, got %s", got)
	}
}

func TestStaleConnectionCallbacksAreIgnored(t *testing.T) {
	server := newEchoServer(t)

	var messages atomic.Int32
	transport := New(socketURLFor(server.server),
		WithBackoff(testBackoff()),
		WithLingerBeforeClose(time.Millisecond),
		WithOnMessage(func([]byte) { messages.Add(1) }),
	)

	if err := transport.Connect(context.Background()); err != nil {
		t.Fatalf("expected first connect to succeed, got %v", err)
	}

	// A fresh manual cycle invalidates the previous connection id.
	transport.Disconnect(context.Background(), nil)
	if err := transport.Connect(context.Background()); err != nil {
		t.Fatalf("expected second connect to succeed, got %v", err)
	}
	t.Cleanup(func() { transport.Disconnect(context.Background(), nil) })

	waitFor(t, time.Second, func() bool { return server.accepts.Load() == 2 },
		"second connection to be accepted")

	server.mu.Lock()
	first := server.conns[0]
	server.mu.Unlock()
	first.WriteMessage(websocket.TextMessage, []byte(`{"type":"stale"}`))

	time.Sleep(50 * time.Millisecond)
	if got := messages.Load(); got != 0 {
		t.Fatalf("expected messages from the stale connection to be dropped, got %d", got)
	}
}

func TestDisconnectSupersedesInFlightDial(t *testing.T) {
	release := make(chan struct{})
	upgraded := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		close(upgraded)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(server.Close)

	var opens atomic.Int32
	transport := New(socketURLFor(server),
		WithBackoff(testBackoff()),
		WithOnOpen(func() { opens.Add(1) }),
	)

	dialDone := make(chan struct{})
	go func() {
		defer close(dialDone)
		transport.Connect(context.Background())
	}()
	waitFor(t, time.Second, func() bool { return transport.State() == StateConnecting },
		"dial to start")

	if err := transport.Disconnect(context.Background(), nil); err != nil {
		t.Fatalf("expected disconnect during dial to succeed, got %v", err)
	}

	// Let the server finish the handshake the caller no longer wants.
	close(release)
	<-dialDone
	select {
	case <-upgraded:
	case <-time.After(time.Second):
		t.Fatal("expected the server side of the dial to complete")
	}

	if got := opens.Load(); got != 0 {
		t.Fatalf("expected no open callback after manual disconnect, got %d", got)
	}
	if got := transport.State(); got != StateDisconnected {
		t.Fatalf("expected DISCONNECTED after superseded dial, got %s", got)
	}

	transport.mu.Lock()
	kept := transport.conn != nil
	transport.mu.Unlock()
	if kept {
		t.Fatal("expected the superseded connection to be discarded")
	}
}
