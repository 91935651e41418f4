package service

import (
	"testing"

	"go.uber.org/zap"
)

func testLogger() *zap.Logger {
	return zap.NewNop()
}

// === Valid transitions ===

func TestTransition_ValidPaths(t *testing.T) {
	tests := []struct {
		name string
		path []TurnState
	}{
		{
			name: "direct answer",
			path: []TurnState{StateContextBuilding, StateAwaitingModel, StateDirectAnswer, StatePersisting, StateDone},
		},
		{
			name: "one function call",
			path: []TurnState{StateContextBuilding, StateAwaitingModel, StateFunctionRequested, StateAuthorizing, StateDispatching, StateAwaitingModelFinal, StatePersisting, StateDone},
		},
		{
			name: "chained function calls",
			path: []TurnState{StateContextBuilding, StateAwaitingModel, StateFunctionRequested, StateAuthorizing, StateDispatching, StateAwaitingModelFinal, StateFunctionRequested, StateAuthorizing, StateDispatching, StateAuthorizing, StateDispatching, StateAwaitingModelFinal, StatePersisting, StateDone},
		},
		{
			name: "rejected input",
			path: []TurnState{StateError},
		},
		{
			name: "error while dispatching",
			path: []TurnState{StateContextBuilding, StateAwaitingModel, StateFunctionRequested, StateAuthorizing, StateDispatching, StateError},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sm := NewTurnStateMachine(testLogger())
			for _, s := range tt.path {
				if err := sm.Transition(s); err != nil {
					t.Fatalf("transition to %s failed: %v", s, err)
				}
			}
			if !sm.IsTerminal() && tt.path[len(tt.path)-1] != StateDone {
				t.Errorf("expected terminal state, got %s", sm.State())
			}
		})
	}
}

// === Invalid transitions ===

func TestTransition_InvalidPaths(t *testing.T) {
	sm := NewTurnStateMachine(testLogger())
	if err := sm.Transition(StateDispatching); err == nil {
		t.Error("sanitizing -> dispatching must be rejected")
	}
	if sm.State() != StateSanitizing {
		t.Errorf("state changed on invalid transition: %s", sm.State())
	}
}

func TestTransition_TerminalStatesAbsorb(t *testing.T) {
	sm := NewTurnStateMachine(testLogger())
	_ = sm.Transition(StateError)

	if err := sm.Transition(StateError); err == nil {
		t.Error("error -> error must be rejected")
	}
	if err := sm.Transition(StateContextBuilding); err == nil {
		t.Error("error must be absorbing")
	}
}

func TestRecordFunctionCall(t *testing.T) {
	sm := NewTurnStateMachine(testLogger())
	if n := sm.RecordFunctionCall("list_treatments"); n != 1 {
		t.Errorf("expected 1, got %d", n)
	}
	if n := sm.RecordFunctionCall("list_dentists"); n != 2 {
		t.Errorf("expected 2, got %d", n)
	}
	if sm.LastTool() != "list_dentists" {
		t.Errorf("expected last tool list_dentists, got %s", sm.LastTool())
	}
}

func TestOnTransition_ListenerReceivesSnapshot(t *testing.T) {
	sm := NewTurnStateMachine(testLogger())
	var got []TurnState
	sm.OnTransition(func(_, to TurnState, snap TurnSnapshot) {
		if snap.State != to {
			t.Errorf("snapshot state %s != %s", snap.State, to)
		}
		got = append(got, to)
	})

	_ = sm.Transition(StateContextBuilding)
	_ = sm.Transition(StateAwaitingModel)
	if len(got) != 2 {
		t.Errorf("expected 2 notifications, got %d", len(got))
	}
}
