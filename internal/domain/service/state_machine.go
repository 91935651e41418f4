package service

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// TurnState represents the discrete states of one chat turn.
type TurnState string

const (
	StateSanitizing         TurnState = "sanitizing"
	StateContextBuilding    TurnState = "context_building"
	StateAwaitingModel      TurnState = "awaiting_model"
	StateDirectAnswer       TurnState = "direct_answer"
	StateFunctionRequested  TurnState = "function_requested"
	StateAuthorizing        TurnState = "authorizing"
	StateDispatching        TurnState = "dispatching"
	StateAwaitingModelFinal TurnState = "awaiting_model_final"
	StatePersisting         TurnState = "persisting"
	StateDone               TurnState = "done"
	StateError              TurnState = "error" // Absorbing, reachable from any non-terminal state
)

// validTransitions defines the allowed state transitions.
// Key = from state, Value = set of allowed target states.
var validTransitions = map[TurnState]map[TurnState]bool{
	StateSanitizing: {
		StateContextBuilding: true,
	},
	StateContextBuilding: {
		StateAwaitingModel: true,
	},
	StateAwaitingModel: {
		StateDirectAnswer:      true,
		StateFunctionRequested: true,
	},
	StateFunctionRequested: {
		StateAuthorizing: true,
	},
	StateAuthorizing: {
		StateDispatching: true,
	},
	StateDispatching: {
		StateAwaitingModelFinal: true,
		StateAuthorizing:        true, // Next call from the same response
	},
	StateAwaitingModelFinal: {
		StateFunctionRequested: true, // Model chained another call
		StatePersisting:        true,
	},
	StateDirectAnswer: {
		StatePersisting: true,
	},
	StatePersisting: {
		StateDone: true,
	},
	// Terminal states have no transitions out
	StateDone:  {},
	StateError: {},
}

// TurnSnapshot captures a turn's runtime state at a point in time.
type TurnSnapshot struct {
	State         TurnState     `json:"state"`
	FunctionCalls int           `json:"function_calls"`
	ModelCalls    int           `json:"model_calls"`
	Elapsed       time.Duration `json:"elapsed"`
	LastTool      string        `json:"last_tool,omitempty"`
}

// TurnStateMachine manages state transitions for one turn.
type TurnStateMachine struct {
	mu            sync.RWMutex
	state         TurnState
	functionCalls int
	modelCalls    int
	startTime     time.Time
	lastTool      string
	logger        *zap.Logger

	// Listeners notified on each state transition
	listeners []func(from, to TurnState, snap TurnSnapshot)
}

// NewTurnStateMachine creates a state machine starting in Sanitizing.
func NewTurnStateMachine(logger *zap.Logger) *TurnStateMachine {
	return &TurnStateMachine{
		state:     StateSanitizing,
		startTime: time.Now(),
		logger:    logger,
	}
}

// State returns the current state.
func (sm *TurnStateMachine) State() TurnState {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.state
}

// Snapshot returns a copy of the current runtime state.
func (sm *TurnStateMachine) Snapshot() TurnSnapshot {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.snapshotLocked()
}

func (sm *TurnStateMachine) snapshotLocked() TurnSnapshot {
	return TurnSnapshot{
		State:         sm.state,
		FunctionCalls: sm.functionCalls,
		ModelCalls:    sm.modelCalls,
		Elapsed:       time.Since(sm.startTime),
		LastTool:      sm.lastTool,
	}
}

// Transition attempts to move to a new state.
// Error is reachable from every non-terminal state.
func (sm *TurnStateMachine) Transition(to TurnState) error {
	sm.mu.Lock()
	from := sm.state

	allowed := validTransitions[from][to]
	if to == StateError && !isTerminal(from) {
		allowed = true
	}
	if !allowed {
		sm.mu.Unlock()
		err := fmt.Errorf("invalid state transition: %s → %s", from, to)
		sm.logger.Error("State machine violation", zap.Error(err))
		return err
	}

	sm.state = to
	snap := sm.snapshotLocked()
	listeners := make([]func(from, to TurnState, snap TurnSnapshot), len(sm.listeners))
	copy(listeners, sm.listeners)
	sm.mu.Unlock()

	sm.logger.Debug("State transition",
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.Int("function_calls", snap.FunctionCalls),
	)

	// Notify listeners outside lock
	for _, fn := range listeners {
		fn(from, to, snap)
	}
	return nil
}

// OnTransition registers a listener called on every state change.
func (sm *TurnStateMachine) OnTransition(fn func(from, to TurnState, snap TurnSnapshot)) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.listeners = append(sm.listeners, fn)
}

// RecordFunctionCall increments the per-turn function-call counter and
// returns the new count.
func (sm *TurnStateMachine) RecordFunctionCall(toolName string) int {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.functionCalls++
	sm.lastTool = toolName
	return sm.functionCalls
}

// RecordModelCall increments the model call counter.
func (sm *TurnStateMachine) RecordModelCall() {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.modelCalls++
}

// LastTool returns the most recently dispatched tool.
func (sm *TurnStateMachine) LastTool() string {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.lastTool
}

// IsTerminal returns true if the turn has finished.
func (sm *TurnStateMachine) IsTerminal() bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return isTerminal(sm.state)
}

func isTerminal(s TurnState) bool {
	return s == StateDone || s == StateError
}
