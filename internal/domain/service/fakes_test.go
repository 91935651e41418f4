package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/smilecare/gateway/internal/domain/entity"
	"github.com/smilecare/gateway/internal/domain/tool"
	"github.com/smilecare/gateway/internal/domain/valueobject"
	domainErrors "github.com/smilecare/gateway/pkg/errors"
)

// fakeStore is a minimal in-memory conversation + message store.
type fakeStore struct {
	mu       sync.Mutex
	nextID   int64
	convs    map[int64]*entity.Conversation
	messages []*entity.Message
}

func newFakeStore() *fakeStore {
	return &fakeStore{convs: make(map[int64]*entity.Conversation)}
}

func (s *fakeStore) Create(_ context.Context, conv *entity.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	conv.AssignID(s.nextID)
	s.convs[conv.ID()] = conv
	return nil
}

func (s *fakeStore) FindByID(_ context.Context, id int64) (*entity.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.convs[id]
	if !ok {
		return nil, domainErrors.NewNotFoundError("conversation not found")
	}
	return conv, nil
}

func (s *fakeStore) ListByUser(_ context.Context, userID int64, limit int) ([]*entity.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*entity.Conversation, 0)
	for _, c := range s.convs {
		if c.UserID() == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt().After(out[j].UpdatedAt()) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeStore) Update(_ context.Context, _ *entity.Conversation) error { return nil }

func (s *fakeStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.convs, id)
	kept := s.messages[:0]
	for _, m := range s.messages {
		if m.ConversationID() != id {
			kept = append(kept, m)
		}
	}
	s.messages = kept
	return nil
}

// fakeMessages shares the store but satisfies MessageRepository.
type fakeMessages struct{ *fakeStore }

func (s fakeMessages) Save(_ context.Context, m *entity.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	m.AssignID(s.nextID)
	s.messages = append(s.messages, m)
	return nil
}

func (s fakeMessages) FindByConversation(_ context.Context, id int64) ([]*entity.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*entity.Message, 0)
	for _, m := range s.messages {
		if m.ConversationID() == id {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s fakeMessages) FindRecent(ctx context.Context, id int64, limit int) ([]*entity.Message, error) {
	all, _ := s.FindByConversation(ctx, id)
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, nil
}

func (s fakeMessages) CountByRole(ctx context.Context, id int64, role entity.MessageRole) (int64, error) {
	all, _ := s.FindByConversation(ctx, id)
	var n int64
	for _, m := range all {
		if m.Role() == role {
			n++
		}
	}
	return n, nil
}

func (s fakeMessages) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, m := range s.messages {
		if m.ID() == id {
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
			return nil
		}
	}
	return domainErrors.NewNotFoundError("message not found")
}

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

func newTestManager(store *fakeStore) *ConversationManager {
	return NewConversationManager(store, fakeMessages{store}, ConversationManagerConfig{}, testLogger())
}

// scriptedLLM replays responses in order and records every request.
type scriptedLLM struct {
	mu        sync.Mutex
	responses []*LLMResponse
	errs      []error
	requests  []LLMRequest
	block     chan struct{}
}

func (l *scriptedLLM) Generate(ctx context.Context, req *LLMRequest) (*LLMResponse, error) {
	l.mu.Lock()
	i := len(l.requests)
	copied := *req
	copied.Messages = append([]LLMMessage(nil), req.Messages...)
	l.requests = append(l.requests, copied)
	l.mu.Unlock()

	if l.block != nil {
		select {
		case <-l.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if i < len(l.errs) && l.errs[i] != nil {
		return nil, l.errs[i]
	}
	if i < len(l.responses) {
		return l.responses[i], nil
	}
	return &LLMResponse{Content: "fallback"}, nil
}

func callTool(name string, args map[string]interface{}) *LLMResponse {
	return &LLMResponse{ToolCalls: []ToolCall{{ID: "call_" + name, Name: name, Arguments: args}}}
}

// countingExecutor authorizes through the real gate and records dispatches.
type countingExecutor struct {
	gate       *AuthorizationGate
	mu         sync.Mutex
	dispatched []QueryRequest
	data       interface{}
	err        error
}

func (e *countingExecutor) Execute(_ context.Context, caller valueobject.Caller, name string, raw interface{}) (tool.Result, error) {
	grant, err := e.gate.Authorize(name, caller)
	if err != nil {
		return tool.ErrorResult(err.(*DeniedError).Reason), nil
	}
	args, err := tool.NormalizeArgs(grant.Tool(), raw)
	if err != nil {
		return tool.ErrorResult(err.Error()), nil
	}
	e.mu.Lock()
	e.dispatched = append(e.dispatched, grant.Request(args))
	e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	return tool.Envelope(grant.Tool(), e.data), nil
}

func (e *countingExecutor) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.dispatched)
}

type staticPrompt struct{}

func (staticPrompt) Build(caller valueobject.Caller, _ time.Time) string {
	return "You are the clinic assistant. Caller: " + caller.Label()
}

// recordingHook counts lifecycle events.
type recordingHook struct {
	NoOpHook
	mu        sync.Mutex
	rejected  []string
	toolCalls []string
	errors    int
	completed int
	states    []TurnState
}

func (h *recordingHook) OnInputRejected(_ context.Context, class string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.rejected = append(h.rejected, class)
}

func (h *recordingHook) AfterToolCall(_ context.Context, name string, _ tool.Result, _ error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.toolCalls = append(h.toolCalls, name)
}

func (h *recordingHook) OnError(_ context.Context, _ error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errors++
}

func (h *recordingHook) OnComplete(_ context.Context, _ *TurnResult) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.completed++
}

func (h *recordingHook) OnStateChange(_, to TurnState, _ TurnSnapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.states = append(h.states, to)
}

// chanLocker is a single-conversation in-process lock.
type chanLocker struct {
	mu   sync.Mutex
	held map[int64]bool
}

func (l *chanLocker) Acquire(_ context.Context, id int64) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held == nil {
		l.held = make(map[int64]bool)
	}
	if l.held[id] {
		return nil, ErrTurnInProgress
	}
	l.held[id] = true
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, id)
	}, nil
}
