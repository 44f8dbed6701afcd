// Package toolexec resolves and runs the tool calls a model asks for. The
// registry is immutable after construction; execution is split in two so the
// caller controls which goroutine sees what: Prepare runs on the agent's
// goroutine (that's where approval observers fire), Run happens wherever the
// agent decides to wait.
package toolexec

import (
	"context"
	"errors"
	"log/slog"

	"github.com/casualjim/athene/model"
	"github.com/casualjim/athene/pkg/slogx"
	"github.com/casualjim/athene/tool"
)

// ApprovalFunc receives a pending approval. Implementations must not block;
// the decision can arrive later from any goroutine.
type ApprovalFunc func(*tool.Approval)

// Outcome is the resolved content of one tool call: the success output or
// the failure's textual reason, keyed by the provider's call id.
type Outcome struct {
	ID      string
	Content string
}

// Manager holds the registered tools.
type Manager struct {
	order []string
	tools map[string]tool.Tool
}

// New builds a registry. Registering two tools under one name keeps the
// newer one and logs the collision.
func New(tools ...tool.Tool) *Manager {
	m := &Manager{tools: make(map[string]tool.Tool, len(tools))}
	for _, t := range tools {
		name := t.Name()
		if _, dup := m.tools[name]; dup {
			slog.Warn("duplicate tool registration, keeping the newest", slog.String("tool", name))
		} else {
			m.order = append(m.order, name)
		}
		m.tools[name] = t
	}
	return m
}

// Has reports whether a tool is registered under name.
func (m *Manager) Has(name string) bool {
	_, ok := m.tools[name]
	return ok
}

// Definitions lists the registered tools in registration order, ready to be
// attached to a model request.
func (m *Manager) Definitions() []model.ToolDefinition {
	defs := make([]model.ToolDefinition, 0, len(m.order))
	for _, name := range m.order {
		defs = append(defs, m.tools[name].Definition())
	}
	return defs
}

// Prepared is one resolved call whose approval, if any, has already been
// requested. Run completes it.
type Prepared struct {
	call     model.ToolCallRequest
	impl     tool.Tool
	approval *tool.Approval
}

// Prepare resolves the call and fires the approval observer on the calling
// goroutine. It reports false for a tool nobody registered; such calls are
// dropped, the model never hears about them.
func (m *Manager) Prepare(call model.ToolCallRequest, approve ApprovalFunc) (Prepared, bool) {
	impl, ok := m.tools[call.Name]
	if !ok {
		slog.Warn("model requested an unknown tool, dropping the call",
			slog.String("tool", call.Name),
			slog.String("call", call.ID))
		return Prepared{}, false
	}

	p := Prepared{call: call, impl: impl}
	if approve != nil {
		what, justification := impl.ApprovalPrompt(call.Arguments)
		p.approval = tool.NewApproval(what, justification)
		slog.Debug("requesting tool approval",
			slog.String("tool", call.Name),
			slog.String("call", call.ID),
			slog.String("approval", p.approval.ID()))
		approve(p.approval)
	}
	return p, true
}

// Run waits for the approval decision (granted implicitly when no observer
// was registered) and executes the call. The returned outcome always carries
// content: tool failures come back as their rendered reason, a rejection as
// the permission-denied text.
func (p Prepared) Run(ctx context.Context) Outcome {
	log := slog.With(slog.String("tool", p.call.Name), slog.String("call", p.call.ID))

	if p.approval != nil {
		granted, reason, err := p.approval.Wait(ctx)
		if err != nil {
			log.Debug("approval abandoned", slogx.Error(err))
			return Outcome{ID: p.call.ID, Content: tool.Denied("").Error()}
		}
		if !granted {
			log.Debug("tool call rejected", slog.String("reason", reason))
			return Outcome{ID: p.call.ID, Content: tool.Denied(reason).Error()}
		}
	}

	log.Debug("executing tool", slogx.ByteString("args", p.call.Arguments))
	out, err := p.impl.Execute(ctx, p.call.Arguments)
	if err != nil {
		var terr *tool.Error
		if !errors.As(err, &terr) {
			terr = tool.Failf("%v", err)
		}
		log.Debug("tool call failed", slogx.Error(terr))
		return Outcome{ID: p.call.ID, Content: terr.Error()}
	}

	return Outcome{ID: p.call.ID, Content: out}
}
