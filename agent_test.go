package athene

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casualjim/athene/actor"
	"github.com/casualjim/athene/model"
	"github.com/casualjim/athene/provider/testmodel"
	"github.com/casualjim/athene/tool"
)

// recorder captures observer callbacks so the test goroutine can inspect
// them after the agent settles.
type recorder struct {
	mu          sync.Mutex
	transcripts []string
	sources     []TranscriptSource
	errors      []error
	idles       int
	idleCh      chan struct{}
}

func newRecorder() *recorder {
	return &recorder{idleCh: make(chan struct{}, 8)}
}

func (r *recorder) options() []Option {
	return []Option{
		OnTranscript(func(text string, source TranscriptSource) {
			r.mu.Lock()
			r.transcripts = append(r.transcripts, text)
			r.sources = append(r.sources, source)
			r.mu.Unlock()
		}),
		OnError(func(err error) {
			r.mu.Lock()
			r.errors = append(r.errors, err)
			r.mu.Unlock()
		}),
		OnIdle(func() {
			r.mu.Lock()
			r.idles++
			r.mu.Unlock()
			r.idleCh <- struct{}{}
		}),
	}
}

func (r *recorder) waitIdle(t *testing.T) {
	t.Helper()
	select {
	case <-r.idleCh:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the agent to go idle")
	}
}

func (r *recorder) snapshot() ([]string, []TranscriptSource, []error, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.transcripts...),
		append([]TranscriptSource(nil), r.sources...),
		append([]error(nil), r.errors...),
		r.idles
}

// recordingProvider wraps another provider and keeps every request it saw,
// so tests can assert on exactly what the model was shown.
type recordingProvider struct {
	inner model.Provider

	mu       sync.Mutex
	requests []model.Request
}

func record(inner model.Provider) *recordingProvider {
	return &recordingProvider{inner: inner}
}

func (p *recordingProvider) SendRequest(ctx context.Context, req model.Request) (model.Response, error) {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	p.mu.Unlock()
	return p.inner.SendRequest(ctx, req)
}

func (p *recordingProvider) seen() []model.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]model.Request(nil), p.requests...)
}

type emptyArgs struct{}

func TestSimpleMessage(t *testing.T) {
	provider := testmodel.New(
		testmodel.UserTurn(),
		testmodel.Text("Hi, ", "what can I do for you?"),
	)
	rec := newRecorder()
	agent := New(provider, rec.options()...)
	defer agent.Close()

	require.NoError(t, agent.EnqueueUserInput("Hello"))
	rec.waitIdle(t)

	transcripts, sources, errs, idles := rec.snapshot()
	assert.Equal(t, []string{"Hello", "Hi, ", "what can I do for you?"}, transcripts)
	assert.Equal(t, []TranscriptSource{SourceUser, SourceAssistant, SourceAssistant}, sources)
	assert.Empty(t, errs)
	assert.Equal(t, 1, idles)
}

func TestToolCallTurn(t *testing.T) {
	var executed atomic.Int32
	listTodos := tool.Must("list_todos", "Lists all todos", func(_ context.Context, _ emptyArgs) (string, error) {
		// Finish after the calendar tool so results joining out of order is
		// part of the scenario.
		time.Sleep(20 * time.Millisecond)
		executed.Add(1)
		return "Found 0 todos", nil
	})
	listCalendar := tool.Must("list_calendar_events", "Lists all calendar events", func(_ context.Context, _ emptyArgs) (string, error) {
		executed.Add(1)
		return "", tool.Failf("calendar backend is down")
	})

	provider := record(testmodel.New(
		testmodel.UserTurn(),
		testmodel.Text("Hi, ", "let me check your todo.").Calls(
			model.ToolCallRequest{ID: "tool:1", Name: "list_todos", Arguments: json.RawMessage(`{}`)},
			model.ToolCallRequest{ID: "tool:2", Name: "list_calendar_events", Arguments: json.RawMessage(`{}`)},
		),
		testmodel.UserTurn(),
		testmodel.UserTurn(),
		testmodel.Text("Your todo is clean, good job!"),
	))

	var approvalsMu sync.Mutex
	var approvals []string
	rec := newRecorder()
	options := append(rec.options(),
		WithTools(listTodos, listCalendar),
		OnToolCallRequest(func(a *tool.Approval) {
			approvalsMu.Lock()
			approvals = append(approvals, a.What())
			approvalsMu.Unlock()
			a.Approve()
		}),
	)
	agent := New(provider, options...)
	defer agent.Close()

	require.NoError(t, agent.EnqueueUserInput("Hello"))
	rec.waitIdle(t)

	approvalsMu.Lock()
	defer approvalsMu.Unlock()
	require.Len(t, approvals, 2, "both approvals observed before idle")
	assert.Contains(t, approvals[0], "list_todos")
	assert.Contains(t, approvals[1], "list_calendar_events")
	assert.Equal(t, int32(2), executed.Load())

	transcripts, _, _, idles := rec.snapshot()
	assert.Equal(t, []string{"Hello", "Hi, ", "let me check your todo.", "Your todo is clean, good job!"}, transcripts)
	assert.Equal(t, 1, idles)

	// The continuation request carries one tool result per call, in the
	// order the model asked for them, no matter which finished first.
	requests := provider.seen()
	require.Len(t, requests, 2, "exactly one continuation model call")
	continuation := requests[1].Messages
	require.Len(t, continuation, 4)
	assert.Equal(t, model.ToolResult{ID: "tool:1", Content: "Found 0 todos"}, continuation[2])
	assert.Equal(t, model.ToolResult{ID: "tool:2", Content: "calendar backend is down"}, continuation[3])

	// The assistant turn travels as the provider's opaque message.
	opaque, ok := continuation[1].(model.Opaque)
	require.True(t, ok)
	assert.Equal(t, "msg:1", opaque.Message.ID())
}

func TestInputDuringTurnQueuesInOrder(t *testing.T) {
	provider := record(testmodel.New(
		testmodel.UserTurn(),
		testmodel.Text("one").After(30*time.Millisecond),
		testmodel.UserTurn(),
		testmodel.Text("two"),
	))
	rec := newRecorder()
	agent := New(provider, rec.options()...)
	defer agent.Close()

	require.NoError(t, agent.EnqueueUserInput("first"))
	require.NoError(t, agent.EnqueueUserInput("second"))
	rec.waitIdle(t)

	transcripts, _, _, idles := rec.snapshot()
	assert.Equal(t, []string{"first", "one", "second", "two"}, transcripts)
	assert.Equal(t, 1, idles, "idle fires once, after the queue drained")
	assert.Len(t, provider.seen(), 2)
}

func TestRejectedApprovalSkipsExecution(t *testing.T) {
	var executed atomic.Bool
	todos := tool.Must("list_todos", "Lists all todos", func(_ context.Context, _ emptyArgs) (string, error) {
		executed.Store(true)
		return "Found 0 todos", nil
	})

	provider := record(testmodel.New(
		testmodel.UserTurn(),
		testmodel.Text("checking").Calls(
			model.ToolCallRequest{ID: "tool:1", Name: "list_todos", Arguments: json.RawMessage(`{}`)},
		),
		testmodel.UserTurn(),
		testmodel.Text("Understood, leaving your todos alone."),
	))
	rec := newRecorder()
	options := append(rec.options(),
		WithTools(todos),
		OnToolCallRequest(func(a *tool.Approval) {
			a.Reject("not today")
		}),
	)
	agent := New(provider, options...)
	defer agent.Close()

	require.NoError(t, agent.EnqueueUserInput("Hello"))
	rec.waitIdle(t)

	assert.False(t, executed.Load(), "a rejected tool must never execute")

	requests := provider.seen()
	require.Len(t, requests, 2)
	continuation := requests[1].Messages
	require.Len(t, continuation, 3)
	assert.Equal(t, model.ToolResult{ID: "tool:1", Content: "not today"}, continuation[2])
}

func TestRejectionWithoutReasonRendersPermissionDenied(t *testing.T) {
	todos := tool.Must("list_todos", "Lists all todos", func(_ context.Context, _ emptyArgs) (string, error) {
		return "Found 0 todos", nil
	})

	provider := record(testmodel.New(
		testmodel.UserTurn(),
		testmodel.Text("checking").Calls(
			model.ToolCallRequest{ID: "tool:1", Name: "list_todos", Arguments: json.RawMessage(`{}`)},
		),
		testmodel.UserTurn(),
		testmodel.Text("OK."),
	))
	rec := newRecorder()
	options := append(rec.options(),
		WithTools(todos),
		OnToolCallRequest(func(a *tool.Approval) { a.Reject("") }),
	)
	agent := New(provider, options...)
	defer agent.Close()

	require.NoError(t, agent.EnqueueUserInput("Hello"))
	rec.waitIdle(t)

	requests := provider.seen()
	require.Len(t, requests, 2)
	assert.Equal(t, model.ToolResult{ID: "tool:1", Content: "permission denied"}, requests[1].Messages[2])
}

func TestUnknownToolCallsAreDropped(t *testing.T) {
	provider := record(testmodel.New(
		testmodel.UserTurn(),
		testmodel.Text("let me try something").Calls(
			model.ToolCallRequest{ID: "tool:1", Name: "teleport", Arguments: json.RawMessage(`{}`)},
		),
		testmodel.Text("Never mind."),
	))
	rec := newRecorder()
	agent := New(provider, rec.options()...)
	defer agent.Close()

	require.NoError(t, agent.EnqueueUserInput("Hello"))
	rec.waitIdle(t)

	transcripts, _, _, idles := rec.snapshot()
	assert.Equal(t, []string{"Hello", "let me try something", "Never mind."}, transcripts)
	assert.Equal(t, 1, idles)

	// The dropped call leaves no tool result behind; the continuation
	// request is just user + assistant.
	requests := provider.seen()
	require.Len(t, requests, 2)
	require.Len(t, requests[1].Messages, 2)
}

func TestRetryAfterProviderFailures(t *testing.T) {
	provider := testmodel.New(
		testmodel.UserTurn(),
		testmodel.Text("Hi").FailingFirst(3),
	)
	rec := newRecorder()
	options := append(rec.options(), WithRetry(Retry{Attempts: 4, Backoff: time.Millisecond}))
	agent := New(provider, options...)
	defer agent.Close()

	require.NoError(t, agent.EnqueueUserInput("Hello"))
	rec.waitIdle(t)

	transcripts, _, errs, idles := rec.snapshot()
	assert.Equal(t, []string{"Hello", "Hi"}, transcripts)
	assert.Len(t, errs, 3, "every failed attempt surfaces")
	assert.Equal(t, 1, idles)
}

func TestExhaustedRetriesReturnToIdle(t *testing.T) {
	provider := testmodel.New(
		testmodel.UserTurn(),
		testmodel.Text("unreachable").FailingFirst(5),
	)
	rec := newRecorder()
	options := append(rec.options(), WithRetry(Retry{Attempts: 2, Backoff: time.Millisecond}))
	agent := New(provider, options...)
	defer agent.Close()

	require.NoError(t, agent.EnqueueUserInput("Hello"))
	rec.waitIdle(t)

	transcripts, _, errs, idles := rec.snapshot()
	assert.Equal(t, []string{"Hello"}, transcripts, "no assistant text on a failed turn")
	assert.Len(t, errs, 2, "one error per attempt")
	assert.Equal(t, 1, idles, "the agent recovers to idle")
}

func TestSystemPromptIsModelFacingOnly(t *testing.T) {
	provider := record(testmodel.New(
		testmodel.UserTurn(),
		testmodel.UserTurn(),
		testmodel.Text("Hello there."),
	))
	rec := newRecorder()
	options := append(rec.options(), WithSystemPrompt("You are terse."))
	agent := New(provider, options...)
	defer agent.Close()

	require.NoError(t, agent.EnqueueUserInput("Hi"))
	rec.waitIdle(t)

	transcripts, _, _, _ := rec.snapshot()
	assert.Equal(t, []string{"Hi", "Hello there."}, transcripts)

	requests := provider.seen()
	require.Len(t, requests, 1)
	require.Len(t, requests[0].Messages, 2)
	assert.Equal(t, model.System{Content: "You are terse."}, requests[0].Messages[0])
	assert.Equal(t, model.User{Content: "Hi"}, requests[0].Messages[1])
}

func TestCloseIsIdempotentAndKillsTheHandle(t *testing.T) {
	provider := testmodel.New(
		testmodel.UserTurn(),
		testmodel.Text("Hi"),
	)
	agent := New(provider)

	agent.Close()
	agent.Close()

	err := agent.EnqueueUserInput("anyone home?")
	assert.ErrorIs(t, err, actor.ErrDead)
}

func TestApprovalAfterCloseIsANoOp(t *testing.T) {
	todos := tool.Must("list_todos", "Lists all todos", func(_ context.Context, _ emptyArgs) (string, error) {
		return "Found 0 todos", nil
	})

	approvals := make(chan *tool.Approval, 1)
	provider := testmodel.New(
		testmodel.UserTurn(),
		testmodel.Text("checking").Calls(
			model.ToolCallRequest{ID: "tool:1", Name: "list_todos", Arguments: json.RawMessage(`{}`)},
		),
	)
	agent := New(provider,
		WithTools(todos),
		OnToolCallRequest(func(a *tool.Approval) { approvals <- a }),
	)

	require.NoError(t, agent.EnqueueUserInput("Hello"))
	var pending *tool.Approval
	select {
	case pending = <-approvals:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the approval request")
	}

	agent.Close()
	pending.Approve()
}
