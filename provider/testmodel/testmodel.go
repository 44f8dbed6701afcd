// Package testmodel is a scripted in-memory model provider for tests and
// demos. A script is a sequence of steps mirroring the conversation: user
// turns are placeholders, assistant turns carry the events to replay. The
// step for a request is picked by the number of messages in it, so a
// continuation request (user + assistant + N tool results) lands on the
// right assistant step without the provider tracking any session state.
package testmodel

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/casualjim/athene/model"
)

// Step is one scripted conversation turn.
type Step struct {
	user     bool
	events   []model.ResponseEvent
	failures int
	delay    time.Duration
}

// UserTurn marks a position in the script where the request grows by one
// user message. It is never answered; asking for it is a scripting mistake.
func UserTurn() Step {
	return Step{user: true}
}

// Respond builds an assistant step from explicit events. Only MessageDelta
// and ToolCall belong here; the Completed event is synthesized from whether
// the step contains tool calls.
func Respond(events ...model.ResponseEvent) Step {
	return Step{events: events}
}

// Text builds an assistant step that streams the given delta fragments.
func Text(parts ...string) Step {
	events := make([]model.ResponseEvent, len(parts))
	for i, p := range parts {
		events[i] = model.MessageDelta{Text: p}
	}
	return Step{events: events}
}

// Calls appends tool-call events to the step.
func (s Step) Calls(calls ...model.ToolCallRequest) Step {
	for _, c := range calls {
		s.events = append(s.events, model.ToolCall{Call: c})
	}
	return s
}

// FailingFirst makes the first n requests for this step fail with a
// rate-limit error before the step starts answering. Retry tests hang their
// scripted failures here.
func (s Step) FailingFirst(n int) Step {
	s.failures = n
	return s
}

// After delays the first event of the response by d.
func (s Step) After(d time.Duration) Step {
	s.delay = d
	return s
}

// Provider replays a script. Safe for concurrent use, but it deliberately
// rejects overlapping requests: a second SendRequest while a previous
// response is still draining is exactly the bug the agent must not have, so
// the provider turns it into a loud error instead of answering.
type Provider struct {
	mu    sync.Mutex
	steps []*Step

	busy atomic.Bool
}

var _ model.Provider = (*Provider)(nil)

// New copies the script. Steps are consumed in place (failure budgets count
// down), so a Provider is good for one scenario run.
func New(steps ...Step) *Provider {
	p := &Provider{steps: make([]*Step, len(steps))}
	for i := range steps {
		step := steps[i]
		p.steps[i] = &step
	}
	return p
}

// SendRequest picks the step matching the request's message count.
func (p *Provider) SendRequest(_ context.Context, req model.Request) (model.Response, error) {
	idx := len(req.Messages)

	p.mu.Lock()
	if idx >= len(p.steps) {
		p.mu.Unlock()
		return nil, model.Errorf(model.KindRateLimited, "no step scripted for a %d-message request", idx)
	}
	step := p.steps[idx]
	if step.user {
		p.mu.Unlock()
		return nil, model.Errorf(model.KindOther, "step %d is a user turn, not an assistant response", idx)
	}
	if step.failures > 0 {
		step.failures--
		p.mu.Unlock()
		return nil, model.Errorf(model.KindRateLimited, "scripted failure for step %d", idx)
	}
	p.mu.Unlock()

	if !p.busy.CompareAndSwap(false, true) {
		return nil, model.Errorf(model.KindOther, "overlapping request: a previous response is still draining")
	}
	return &response{provider: p, step: step, idx: idx}, nil
}

type response struct {
	provider *Provider
	step     *Step
	idx      int

	next      int
	completed bool
	released  bool
}

func (r *response) NextEvent(ctx context.Context) (model.ResponseEvent, error) {
	if r.completed {
		return nil, io.EOF
	}

	if r.next == 0 && r.step.delay > 0 {
		timer := time.NewTimer(r.step.delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			r.terminate()
			return nil, ctx.Err()
		}
	}

	if r.next < len(r.step.events) {
		ev := r.step.events[r.next]
		r.next++
		return ev, nil
	}

	if r.next == len(r.step.events) {
		r.next++
		reason := model.FinishEndTurn
		for _, ev := range r.step.events {
			if _, ok := ev.(model.ToolCall); ok {
				reason = model.FinishToolCalls
				break
			}
		}
		return model.Completed{Reason: reason}, nil
	}

	r.terminate()
	return nil, io.EOF
}

func (r *response) OpaqueMessage() (model.OpaqueMessage, bool) {
	if !r.completed {
		return model.OpaqueMessage{}, false
	}
	id := fmt.Sprintf("msg:%d", r.idx)
	return model.NewOpaqueMessage(id, id), true
}

func (r *response) terminate() {
	r.completed = true
	if !r.released {
		r.released = true
		r.provider.busy.Store(false)
	}
}
