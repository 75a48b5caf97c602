package transport

import (
	"sync"
)

type ConnectionState string

const (
	StateDisconnected  ConnectionState = "DISCONNECTED"
	StateConnecting    ConnectionState = "CONNECTING"
	StateConnected     ConnectionState = "CONNECTED"
	StateReady         ConnectionState = "READY"
	StateReconnecting  ConnectionState = "RECONNECTING"
	StateDisconnecting ConnectionState = "DISCONNECTING"
	StateError         ConnectionState = "ERROR"
)

func (s ConnectionState) String() string { return string(s) }

// Connected reports whether the socket is usable for sends.
func (s ConnectionState) Connected() bool {
	return s == StateConnected || s == StateReady
}

// Ready reports whether the server handshake has completed.
func (s ConnectionState) Ready() bool {
	return s == StateReady
}

var allowedTransitions = map[ConnectionState][]ConnectionState{
	StateDisconnected:  {StateConnecting},
	StateConnecting:    {StateConnected, StateError, StateDisconnected},
	StateConnected:     {StateReady, StateDisconnecting, StateError, StateReconnecting},
	StateReady:         {StateDisconnecting, StateError, StateReconnecting},
	StateReconnecting:  {StateConnecting, StateDisconnected, StateError},
	StateDisconnecting: {StateDisconnected},
	StateError:         {StateDisconnected, StateReconnecting},
}

type stateListener func(to ConnectionState, from ConnectionState)

// StateMachine guards the connection lifecycle against impossible
// transitions. Illegal transitions are logged and ignored, never fatal.
type StateMachine struct {
	mu             sync.Mutex
	state          ConnectionState
	listeners      map[int]stateListener
	nextListenerID int
}

func NewStateMachine() *StateMachine {
	return &StateMachine{
		state:     StateDisconnected,
		listeners: map[int]stateListener{},
	}
}

func (m *StateMachine) State() ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Transition moves to the requested state if the adjacency table allows it.
// It returns false, leaving the state untouched, for illegal moves.
func (m *StateMachine) Transition(to ConnectionState) bool {
	m.mu.Lock()
	from := m.state
	if !transitionAllowed(from, to) {
		m.mu.Unlock()
		logger.Warn("ignoring illegal connection state transition",
			"from", from.String(), "to", to.String())
		return false
	}
	m.state = to
	listeners := make([]stateListener, 0, len(m.listeners))
	for _, listener := range m.listeners {
		listeners = append(listeners, listener)
	}
	m.mu.Unlock()

	for _, listener := range listeners {
		notifyListener(listener, to, from)
	}
	return true
}

// notifyListener isolates listener panics so one faulty subscriber cannot
// break notification of the rest.
func notifyListener(listener stateListener, to, from ConnectionState) {
	defer func() {
		if recovered := recover(); recovered != nil {
			logger.Error("connection state listener panicked", "panic", recovered)
		}
	}()
	listener(to, from)
}

func (m *StateMachine) Subscribe(listener stateListener) (unsubscribe func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextListenerID
	m.nextListenerID++
	m.listeners[id] = listener

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.listeners, id)
	}
}

// Reset forces the machine back to DISCONNECTED without consulting the
// table. Listeners are notified if the state actually changed.
func (m *StateMachine) Reset() {
	m.mu.Lock()
	from := m.state
	if from == StateDisconnected {
		m.mu.Unlock()
		return
	}
	m.state = StateDisconnected
	listeners := make([]stateListener, 0, len(m.listeners))
	for _, listener := range m.listeners {
		listeners = append(listeners, listener)
	}
	m.mu.Unlock()

	for _, listener := range listeners {
		notifyListener(listener, StateDisconnected, from)
	}
}

func transitionAllowed(from, to ConnectionState) bool {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
