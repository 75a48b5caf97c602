package transport

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const defaultLingerBeforeClose = 500 * time.Millisecond

// Transport owns the websocket connection and its lifecycle: dialing,
// reading, the reconnect-with-backoff loop and the terminal teardown.
//
// Every dial is tagged with a monotonically increasing connection id; any
// callback carrying a stale id is dropped, which resolves races between an
// in-flight socket and a newer Connect or Disconnect call.
type Transport struct {
	machine *StateMachine
	backoff *Backoff
	dialer  *websocket.Dialer

	socketURL func() (string, error)

	mu             sync.Mutex
	conn           *websocket.Conn
	reconnectTimer *time.Timer
	baseContext    context.Context

	connectionID atomic.Int64
	manualClose  atomic.Bool

	onMessage func([]byte)
	onOpen    func()
	onClosed  func(manual bool)
	onError   func(*Error)

	// lingerBeforeClose delays socket teardown after the terminal envelope
	// so the server gets a chance to emit its final session report.
	lingerBeforeClose time.Duration
}

type Option func(*Transport)

func WithOnMessage(onMessage func([]byte)) Option {
	return func(t *Transport) { t.onMessage = onMessage }
}

func WithOnOpen(onOpen func()) Option {
	return func(t *Transport) { t.onOpen = onOpen }
}

func WithOnClosed(onClosed func(manual bool)) Option {
	return func(t *Transport) { t.onClosed = onClosed }
}

func WithOnError(onError func(*Error)) Option {
	return func(t *Transport) { t.onError = onError }
}

func WithBackoff(backoff *Backoff) Option {
	return func(t *Transport) { t.backoff = backoff }
}

func WithDialer(dialer *websocket.Dialer) Option {
	return func(t *Transport) { t.dialer = dialer }
}

func WithLingerBeforeClose(linger time.Duration) Option {
	return func(t *Transport) { t.lingerBeforeClose = linger }
}

func New(socketURL func() (string, error), opts ...Option) *Transport {
	t := &Transport{
		machine:           NewStateMachine(),
		backoff:           NewBackoff(),
		dialer:            websocket.DefaultDialer,
		socketURL:         socketURL,
		baseContext:       context.Background(),
		lingerBeforeClose: defaultLingerBeforeClose,
		onMessage:         func([]byte) {},
		onOpen:            func() {},
		onClosed:          func(bool) {},
		onError:           func(*Error) {},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Transport) State() ConnectionState {
	return t.machine.State()
}

// OnStateChange subscribes to connection state transitions.
func (t *Transport) OnStateChange(listener func(to, from ConnectionState)) (unsubscribe func()) {
	return t.machine.Subscribe(listener)
}

// MarkReady promotes the connection after the server handshake message.
func (t *Transport) MarkReady() bool {
	return t.machine.Transition(StateReady)
}

// Connect dials the socket. It is a no-op when the connection is already
// open. A fresh call supersedes any pending reconnect timer.
func (t *Transport) Connect(ctx context.Context) error {
	if t.machine.State().Connected() {
		return nil
	}

	ctx, span := tracer.Start(ctx, "transport.Connect")
	defer span.End()

	t.manualClose.Store(false)
	t.cancelReconnectTimer()

	if t.machine.State() == StateError {
		t.machine.Transition(StateDisconnected)
	}
	t.machine.Transition(StateConnecting)

	t.mu.Lock()
	t.baseContext = context.WithoutCancel(ctx)
	t.mu.Unlock()

	id := t.connectionID.Add(1)
	return t.dial(ctx, id, span)
}

func (t *Transport) dial(ctx context.Context, id int64, span trace.Span) error {
	socketURL, err := t.socketURL()
	if err != nil {
		err = fmt.Errorf("failed to build socket url: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		t.machine.Transition(StateError)
		t.surfaceError(NewError(ErrCodeConnectionFailed, "invalid socket url", err))
		return err
	}

	conn, resp, err := t.dialer.DialContext(ctx, socketURL, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		t.machine.Transition(StateError)

		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			t.surfaceError(NewError(ErrCodeAuthFailed, "socket authentication rejected", err))
			return fmt.Errorf("failed to open socket: %w", err)
		}

		t.surfaceError(NewError(ErrCodeConnectionFailed, "failed to open socket", err))
		if t.manualClose.Load() || t.backoff.MaxAttemptsReached() {
			t.machine.Transition(StateDisconnected)
		} else {
			t.machine.Transition(StateReconnecting)
			t.scheduleReconnect(id)
		}
		return fmt.Errorf("failed to open socket: %w", err)
	}

	t.mu.Lock()
	if id != t.connectionID.Load() {
		// A newer Connect or Disconnect superseded this dial mid-flight.
		t.mu.Unlock()
		conn.Close()
		return nil
	}
	t.conn = conn
	t.mu.Unlock()

	t.machine.Transition(StateConnected)
	t.backoff.Reset()
	t.onOpen()

	go t.readLoop(id, conn)
	return nil
}

func (t *Transport) readLoop(id int64, conn *websocket.Conn) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			t.handleClose(id, err)
			return
		}
		if id != t.connectionID.Load() {
			return
		}
		t.onMessage(message)
	}
}

func (t *Transport) handleClose(id int64, cause error) {
	if id != t.connectionID.Load() {
		return
	}

	t.mu.Lock()
	if t.conn != nil {
		t.conn.Close()
		t.conn = nil
	}
	t.mu.Unlock()

	if t.manualClose.Load() {
		t.machine.Reset()
		t.onClosed(true)
		return
	}

	t.surfaceError(NewError(ErrCodeUnexpectedClose, "socket closed unexpectedly", cause))

	if t.backoff.MaxAttemptsReached() {
		t.machine.Transition(StateError)
		t.machine.Transition(StateDisconnected)
		t.onClosed(false)
		return
	}

	t.machine.Transition(StateReconnecting)
	t.scheduleReconnect(id)
}

// scheduleReconnect arms the reconnect timer for the next backoff delay.
// The timer is disarmed when a newer Connect or a manual Disconnect
// supersedes it.
func (t *Transport) scheduleReconnect(id int64) {
	if t.manualClose.Load() || t.backoff.MaxAttemptsReached() {
		return
	}

	delay := t.backoff.NextDelay()
	logger.Info("scheduling reconnect", "delay", delay.String(), "attempt", t.backoff.Attempts())

	t.mu.Lock()
	if t.reconnectTimer != nil {
		t.reconnectTimer.Stop()
	}
	t.reconnectTimer = time.AfterFunc(delay, func() {
		t.reconnect(id)
	})
	t.mu.Unlock()
}

func (t *Transport) reconnect(previousID int64) {
	if t.manualClose.Load() || previousID != t.connectionID.Load() {
		return
	}

	t.machine.Transition(StateConnecting)

	t.mu.Lock()
	ctx := t.baseContext
	t.mu.Unlock()

	id := t.connectionID.Add(1)
	ctx, span := tracer.Start(ctx, "transport.reconnect")
	defer span.End()
	if err := t.dial(ctx, id, span); err != nil {
		logger.Warn("reconnect attempt failed", "error", err.Error())
	}
}

// Send marshals the envelope onto the socket. Sends on a connection that is
// not open are dropped and logged, never fatal: the caller retries once the
// state machine reports readiness.
func (t *Transport) Send(envelope any) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil || !t.machine.State().Connected() {
		logger.Debug("dropping send while socket is not open",
			"state", t.machine.State().String())
		return nil
	}

	if err := t.conn.WriteJSON(envelope); err != nil {
		sendErr := NewError(ErrCodeSendFailed, "failed to write envelope", err)
		go t.surfaceError(sendErr)
		return sendErr
	}
	return nil
}

// Disconnect tears the connection down on purpose. The manual-close flag is
// set first so the close handler does not schedule a reconnect, and the
// connection id advances so a dial still in flight is superseded and its
// socket discarded on arrival. When finalEnvelope is non-nil it is written
// before closing and the transport lingers briefly so the server can
// respond with its session report.
func (t *Transport) Disconnect(ctx context.Context, finalEnvelope any) error {
	t.manualClose.Store(true)
	t.connectionID.Add(1)
	t.cancelReconnectTimer()

	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()

	if conn == nil || !t.machine.State().Connected() {
		t.machine.Reset()
		return nil
	}

	t.machine.Transition(StateDisconnecting)

	if finalEnvelope != nil {
		if err := func() error {
			t.mu.Lock()
			defer t.mu.Unlock()
			if t.conn == nil {
				return nil
			}
			return t.conn.WriteJSON(finalEnvelope)
		}(); err != nil {
			logger.Warn("failed to send terminal envelope", "error", err.Error())
		} else {
			select {
			case <-time.After(t.lingerBeforeClose):
			case <-ctx.Done():
			}
		}
	}

	t.mu.Lock()
	if t.conn != nil {
		t.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		t.conn.Close()
		t.conn = nil
	}
	t.mu.Unlock()

	// The read loop sees a superseded connection id and stays silent, so
	// teardown completes here rather than in handleClose.
	t.machine.Reset()
	t.onClosed(true)
	return nil
}

func (t *Transport) cancelReconnectTimer() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.reconnectTimer != nil {
		t.reconnectTimer.Stop()
		t.reconnectTimer = nil
	}
}

func (t *Transport) surfaceError(err *Error) {
	logger.Error("transport error", "code", string(err.Code), "error", err.Error())
	t.onError(err)
}
