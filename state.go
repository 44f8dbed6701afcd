package athene

import (
	"context"
	"log/slog"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/casualjim/athene/actor"
	"github.com/casualjim/athene/internal/modelclient"
	"github.com/casualjim/athene/internal/toolexec"
	"github.com/casualjim/athene/model"
	"github.com/casualjim/athene/pkg/slogx"
	"github.com/casualjim/athene/tool"
)

type stage int

const (
	stageIdle stage = iota
	stageThinking
	stageRunningTools
)

func (s stage) String() string {
	switch s {
	case stageThinking:
		return "model-thinking"
	case stageRunningTools:
		return "running-tools"
	default:
		return "idle"
	}
}

// Item is one conversation entry: the model-facing message paired with its
// human-readable text. The transcript alone cannot reconstruct the message;
// opaque provider turns carry structure that has no text form.
type Item struct {
	Message    model.Message
	Transcript string
}

// agentState is the private state of one agent actor. Everything in here is
// touched only from the actor goroutine; child goroutines report back by
// sending messages.
type agentState struct {
	log *slog.Logger

	// client is nil exactly while a model request is in flight. Taking it
	// twice means two concurrent requests, which is an internal
	// inconsistency.
	client *modelclient.Client
	tools  *toolexec.Manager

	conversation  []Item
	stage         stage
	pendingInputs []string

	// pendingResults has one slot per accepted tool call of the current
	// turn, in request order. A nil value means the call has not reported
	// yet; the turn continues only once every slot is filled.
	pendingResults *orderedmap.OrderedMap[string, *toolexec.Outcome]

	runningTasks map[uint64]struct{}
	nextTaskID   uint64

	retry Retry
	base  context.Context

	onIdle       func()
	onTranscript func(string, TranscriptSource)
	onToolCall   func(*tool.Approval)
	onError      func(error)
}

func (s *agentState) emit(text string, source TranscriptSource) {
	if s.onTranscript != nil {
		s.onTranscript(text, source)
	}
}

func (s *agentState) reportError(err error) {
	if s.onError != nil {
		s.onError(err)
	}
}

func (s *agentState) takeClient() *modelclient.Client {
	if s.client == nil {
		panic("model client is already in use")
	}
	c := s.client
	s.client = nil
	return c
}

func (s *agentState) returnClient(c *modelclient.Client) {
	if s.client != nil {
		panic("model client returned twice")
	}
	s.client = c
}

func (s *agentState) buildRequest() model.Request {
	messages := make([]model.Message, len(s.conversation))
	for i, item := range s.conversation {
		messages[i] = item.Message
	}
	return model.Request{Messages: messages, Tools: s.tools.Definitions()}
}

// processNextInput runs whenever the agent might have become idle: it either
// starts the next queued input or, with nothing left, tells the host.
func (s *agentState) processNextInput(self *actor.Actor[agentState]) {
	if s.stage != stageIdle {
		return
	}
	if len(s.pendingInputs) > 0 {
		input := s.pendingInputs[0]
		s.pendingInputs = s.pendingInputs[1:]
		s.processInput(input, self)
		return
	}
	s.log.Debug("agent is idle")
	if s.onIdle != nil {
		s.onIdle()
	}
}

// processInput starts a new user turn. The caller has checked the stage.
func (s *agentState) processInput(input string, self *actor.Actor[agentState]) {
	s.conversation = append(s.conversation, Item{Message: model.User{Content: input}, Transcript: input})
	s.emit(input, SourceUser)
	s.startModelTurn(self)
}

// startModelTurn takes the client and hands the request to a child
// goroutine. The goroutine owns the client until it reports back.
func (s *agentState) startModelTurn(self *actor.Actor[agentState]) {
	s.stage = stageThinking
	req := s.buildRequest()
	client := s.takeClient()
	ctx := s.base
	retry := s.retry
	log := s.log

	s.spawnTask(self, func() {
		resp, err := sendWithRetry(ctx, client, req, retry, log, func(attemptErr error) {
			_ = self.Send(modelAttemptFailed{err: attemptErr})
		})
		_ = self.Send(modelTurnDone{client: client, resp: resp, err: err})
	})
}

// sendWithRetry tries the request up to retry.Attempts times. Failures on
// non-final attempts go through report; the final outcome (the response or
// the last error) is returned. Moderated failures are deterministic and
// stop the loop immediately.
func sendWithRetry(
	ctx context.Context,
	client *modelclient.Client,
	req model.Request,
	retry Retry,
	log *slog.Logger,
	report func(error),
) (*modelclient.Response, error) {
	for attempt := 1; ; attempt++ {
		resp, err := client.SendRequest(ctx, req)
		if err == nil {
			return resp, nil
		}
		if attempt >= retry.Attempts || model.Kind(err) == model.KindModerated || ctx.Err() != nil {
			return nil, err
		}
		report(err)
		log.Debug("model request failed, will retry",
			slog.Int("attempt", attempt),
			slogx.Error(err))
		select {
		case <-ctx.Done():
			return nil, err
		case <-time.After(retry.Backoff):
		}
	}
}

// startToolCalls resolves the turn's tool calls, requests approvals on the
// actor goroutine and spawns one child goroutine per accepted call. Calls
// naming unregistered tools are dropped; if that leaves nothing to run, the
// turn continues straight back to the model.
func (s *agentState) startToolCalls(calls []model.ToolCallRequest, self *actor.Actor[agentState]) {
	accepted := make([]toolexec.Prepared, 0, len(calls))
	for _, call := range calls {
		p, ok := s.tools.Prepare(call, s.onToolCall)
		if !ok {
			continue
		}
		s.pendingResults.Set(call.ID, nil)
		accepted = append(accepted, p)
	}

	if len(accepted) == 0 {
		s.startModelTurn(self)
		return
	}

	s.stage = stageRunningTools
	ctx := s.base
	for _, prepared := range accepted {
		s.spawnTask(self, func() {
			_ = self.Send(toolDone{out: prepared.Run(ctx)})
		})
	}
}

// spawnTask runs fn on its own goroutine and books it under a fresh task id
// until it reports termination. The bookkeeping only accounts for child
// goroutines; their results travel back as separate messages.
func (s *agentState) spawnTask(self *actor.Actor[agentState], fn func()) {
	id := s.nextTaskID
	s.nextTaskID++
	s.runningTasks[id] = struct{}{}
	go func() {
		fn()
		// ErrDead here means the agent closed first; the bookkeeping died
		// with it.
		_ = self.Send(taskDone{id: id})
	}()
}

// userInput is the host-facing message: process now when idle, queue
// otherwise.
type userInput struct {
	text string
}

func (m userInput) Handle(s *agentState, self *actor.Actor[agentState]) {
	if s.stage != stageIdle {
		s.log.Debug("queueing user input", slogx.Stringer("stage", s.stage))
		s.pendingInputs = append(s.pendingInputs, m.text)
		return
	}
	s.processInput(m.text, self)
}

// modelAttemptFailed surfaces one failed (and about to be retried) model
// request attempt to the error observer.
type modelAttemptFailed struct {
	err error
}

func (m modelAttemptFailed) Handle(s *agentState, _ *actor.Actor[agentState]) {
	s.reportError(m.err)
}

// modelTurnDone carries the turn's outcome and returns the client it
// borrowed.
type modelTurnDone struct {
	client *modelclient.Client
	resp   *modelclient.Response
	err    error
}

func (m modelTurnDone) Handle(s *agentState, self *actor.Actor[agentState]) {
	s.returnClient(m.client)

	if m.err != nil {
		s.log.Warn("model turn failed", slogx.Error(m.err))
		s.reportError(m.err)
		s.stage = stageIdle
		s.processNextInput(self)
		return
	}

	resp := m.resp
	msg := model.Message(model.Assistant{Content: resp.Text})
	if resp.HasOpaque {
		msg = model.Opaque{Message: resp.Opaque}
	}
	s.conversation = append(s.conversation, Item{Message: msg, Transcript: resp.Text})
	for _, delta := range resp.Deltas {
		s.emit(delta, SourceAssistant)
	}

	if resp.FinishReason == model.FinishToolCalls && len(resp.ToolCalls) > 0 {
		s.startToolCalls(resp.ToolCalls, self)
		return
	}

	s.stage = stageIdle
	s.processNextInput(self)
}

// toolDone fills one pending slot. Only when the last slot fills does the
// turn move on: every result becomes a conversation item, in request order,
// and a continuation request goes out.
type toolDone struct {
	out toolexec.Outcome
}

func (m toolDone) Handle(s *agentState, self *actor.Actor[agentState]) {
	slot, known := s.pendingResults.Get(m.out.ID)
	if !known {
		panic("tool result for a call that was never started: " + m.out.ID)
	}
	if slot != nil {
		panic("tool result delivered twice: " + m.out.ID)
	}
	out := m.out
	s.pendingResults.Set(out.ID, &out)

	for pair := s.pendingResults.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Value == nil {
			return
		}
	}

	for pair := s.pendingResults.Oldest(); pair != nil; pair = pair.Next() {
		s.conversation = append(s.conversation, Item{
			Message:    model.ToolResult{ID: pair.Key, Content: pair.Value.Content},
			Transcript: pair.Value.Content,
		})
	}
	s.pendingResults = orderedmap.New[string, *toolexec.Outcome]()
	s.startModelTurn(self)
}

// taskDone reaps one finished child goroutine.
type taskDone struct {
	id uint64
}

func (m taskDone) Handle(s *agentState, _ *actor.Actor[agentState]) {
	if _, known := s.runningTasks[m.id]; !known {
		panic("task ended that was never started")
	}
	delete(s.runningTasks, m.id)
}
