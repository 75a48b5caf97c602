package transport

import (
	"testing"
)

var allStates = []ConnectionState{
	StateDisconnected, StateConnecting, StateConnected, StateReady,
	StateReconnecting, StateDisconnecting, StateError,
}

func newMachineInState(t *testing.T, state ConnectionState) *StateMachine {
	t.Helper()

	m := NewStateMachine()
	paths := map[ConnectionState][]ConnectionState{
		StateDisconnected:  {},
		StateConnecting:    {StateConnecting},
		StateConnected:     {StateConnecting, StateConnected},
		StateReady:         {StateConnecting, StateConnected, StateReady},
		StateReconnecting:  {StateConnecting, StateConnected, StateReconnecting},
		StateDisconnecting: {StateConnecting, StateConnected, StateDisconnecting},
		StateError:         {StateConnecting, StateError},
	}
	for _, step := range paths[state] {
		if !m.Transition(step) {
			t.Fatalf("setup: failed to walk machine to %s via %s", state, step)
		}
	}
	if m.State() != state {
		t.Fatalf("setup: expected machine in state %s, got %s", state, m.State())
	}
	return m
}

func TestTransitionTableIsEnforcedExhaustively(t *testing.T) {
	for _, from := range allStates {
		for _, to := range allStates {
			m := newMachineInState(t, from)

			var gotTo, gotFrom ConnectionState
			notifications := 0
			m.Subscribe(func(to, from ConnectionState) {
				gotTo, gotFrom = to, from
				notifications++
			})

			allowed := transitionAllowed(from, to)
			if got := m.Transition(to); got != allowed {
				t.Fatalf("%s -> %s: expected transition result %v, got %v", from, to, allowed, got)
			}

			if allowed {
				if m.State() != to {
					t.Fatalf("%s -> %s: expected state %s after transition, got %s", from, to, to, m.State())
				}
				if notifications != 1 {
					t.Fatalf("%s -> %s: expected exactly 1 notification, got %d", from, to, notifications)
				}
				if gotTo != to || gotFrom != from {
					t.Fatalf("%s -> %s: expected listener args (%s, %s), got (%s, %s)",
						from, to, to, from, gotTo, gotFrom)
				}
			} else {
				if m.State() != from {
					t.Fatalf("%s -> %s: expected state unchanged at %s, got %s", from, to, from, m.State())
				}
				if notifications != 0 {
					t.Fatalf("%s -> %s: expected no notifications for illegal transition, got %d", from, to, notifications)
				}
			}
		}
	}
}

func TestConnectedAndReadyPredicates(t *testing.T) {
	for _, state := range allStates {
		wantConnected := state == StateConnected || state == StateReady
		if got := state.Connected(); got != wantConnected {
			t.Fatalf("%s: expected Connected() %v, got %v", state, wantConnected, got)
		}
		wantReady := state == StateReady
		if got := state.Ready(); got != wantReady {
			t.Fatalf("%s: expected Ready() %v, got %v", state, wantReady, got)
		}
	}
}

func TestPanickingListenerDoesNotBreakOthers(t *testing.T) {
	m := NewStateMachine()

	m.Subscribe(func(ConnectionState, ConnectionState) {
		panic("faulty subscriber")
	})
	notified := false
	m.Subscribe(func(ConnectionState, ConnectionState) {
		notified = true
	})

	if !m.Transition(StateConnecting) {
		t.Fatalf("expected transition to succeed despite panicking listener")
	}
	if !notified {
		t.Fatalf("expected remaining listener to be notified")
	}
}

func TestUnsubscribeStopsNotifications(t *testing.T) {
	m := NewStateMachine()

	notifications := 0
	unsubscribe := m.Subscribe(func(ConnectionState, ConnectionState) {
		notifications++
	})

	m.Transition(StateConnecting)
	unsubscribe()
	m.Transition(StateConnected)

	if notifications != 1 {
		t.Fatalf("expected 1 notification after unsubscribe, got %d", notifications)
	}
}

func TestResetForcesDisconnectedAndNotifies(t *testing.T) {
	m := newMachineInState(t, StateReady)

	var gotTo ConnectionState
	m.Subscribe(func(to, _ ConnectionState) { gotTo = to })

	m.Reset()

	if m.State() != StateDisconnected {
		t.Fatalf("expected state DISCONNECTED after reset, got %s", m.State())
	}
	if gotTo != StateDisconnected {
		t.Fatalf("expected listener notified with DISCONNECTED, got %s", gotTo)
	}
}
