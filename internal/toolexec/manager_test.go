package toolexec

import (
	"context"
	"errors"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casualjim/athene/model"
	"github.com/casualjim/athene/tool"
)

type pingArgs struct {
	Payload string `json:"payload"`
}

func pingTool(name, description string) tool.Tool {
	return tool.Must(name, description, func(_ context.Context, args pingArgs) (string, error) {
		return "pong:" + args.Payload, nil
	})
}

func call(name, id, args string) model.ToolCallRequest {
	return model.ToolCallRequest{ID: id, Name: name, Arguments: json.RawMessage(args)}
}

func TestDefinitionsKeepRegistrationOrder(t *testing.T) {
	m := New(pingTool("b_tool", "second"), pingTool("a_tool", "first"))

	defs := m.Definitions()
	require.Len(t, defs, 2)
	assert.Equal(t, "b_tool", defs[0].Name)
	assert.Equal(t, "a_tool", defs[1].Name)
}

func TestDuplicateRegistrationKeepsNewest(t *testing.T) {
	m := New(pingTool("ping", "old"), pingTool("ping", "new"))

	defs := m.Definitions()
	require.Len(t, defs, 1)
	assert.Equal(t, "new", defs[0].Description)
}

func TestPrepareUnknownToolDropsTheCall(t *testing.T) {
	m := New(pingTool("ping", ""))

	_, ok := m.Prepare(call("teleport", "call_9", `{}`), nil)
	assert.False(t, ok)
	assert.False(t, m.Has("teleport"))
	assert.True(t, m.Has("ping"))
}

func TestRunWithoutObserverAutoApproves(t *testing.T) {
	m := New(pingTool("ping", ""))

	p, ok := m.Prepare(call("ping", "call_1", `{"payload":"x"}`), nil)
	require.True(t, ok)

	out := p.Run(context.Background())
	assert.Equal(t, "call_1", out.ID)
	assert.Equal(t, "pong:x", out.Content)
}

func TestApprovedCallExecutes(t *testing.T) {
	m := New(pingTool("ping", ""))

	var pending *tool.Approval
	p, ok := m.Prepare(call("ping", "call_1", `{"payload":"x","justification":"checking"}`), func(a *tool.Approval) {
		pending = a
	})
	require.True(t, ok)
	require.NotNil(t, pending, "the observer fires during Prepare")
	assert.Contains(t, pending.What(), "ping(")
	assert.Equal(t, "checking", pending.Justification())

	go pending.Approve()

	out := p.Run(context.Background())
	assert.Equal(t, "pong:x", out.Content)
}

func TestRejectedCallNeverExecutes(t *testing.T) {
	invoked := false
	dangerous := tool.Must("wipe", "", func(_ context.Context, _ pingArgs) (string, error) {
		invoked = true
		return "done", nil
	})
	m := New(dangerous)

	var pending *tool.Approval
	p, ok := m.Prepare(call("wipe", "call_2", `{}`), func(a *tool.Approval) { pending = a })
	require.True(t, ok)

	pending.Reject("not on my watch")

	out := p.Run(context.Background())
	assert.Equal(t, "not on my watch", out.Content)
	assert.False(t, invoked, "execution must not happen after a rejection")
}

func TestRejectionWithoutReasonUsesCanonicalText(t *testing.T) {
	m := New(pingTool("ping", ""))

	var pending *tool.Approval
	p, _ := m.Prepare(call("ping", "call_3", `{}`), func(a *tool.Approval) { pending = a })
	pending.Reject("")

	out := p.Run(context.Background())
	assert.Equal(t, "permission denied", out.Content)
}

func TestToolFailureBecomesContent(t *testing.T) {
	failing := tool.Must("flaky", "", func(_ context.Context, _ pingArgs) (string, error) {
		return "", tool.Failf("backend unavailable")
	})
	plain := tool.Must("plain", "", func(_ context.Context, _ pingArgs) (string, error) {
		return "", errors.New("some plain error")
	})
	m := New(failing, plain)

	p, _ := m.Prepare(call("flaky", "call_4", `{}`), nil)
	assert.Equal(t, "backend unavailable", p.Run(context.Background()).Content)

	p, _ = m.Prepare(call("plain", "call_5", `{}`), nil)
	assert.Equal(t, "some plain error", p.Run(context.Background()).Content)
}

func TestMalformedArgumentsBecomeContent(t *testing.T) {
	m := New(pingTool("ping", ""))

	p, _ := m.Prepare(call("ping", "call_6", `{"payload":`), nil)
	out := p.Run(context.Background())
	assert.Contains(t, out.Content, "decode ping arguments")
}

func TestAbandonedApprovalDoesNotHang(t *testing.T) {
	m := New(pingTool("ping", ""))

	p, _ := m.Prepare(call("ping", "call_7", `{}`), func(*tool.Approval) {
		// never resolved
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	out := p.Run(ctx)
	assert.Equal(t, "permission denied", out.Content)
}
