package model

import (
	"context"

	json "github.com/goccy/go-json"
)

// ToolCallRequest is one fully assembled tool invocation requested by the
// model. Providers are responsible for stitching argument fragments back
// together before emitting it; consumers always see complete JSON.
type ToolCallRequest struct {
	// ID is the provider-assigned call id; tool results echo it back.
	ID string
	// Name of the tool the model wants to run.
	Name string
	// Arguments is the raw JSON arguments object.
	Arguments json.RawMessage
}

// FinishReason says why the model stopped emitting.
type FinishReason int

const (
	// FinishEndTurn means the model completed its reply.
	FinishEndTurn FinishReason = iota
	// FinishToolCalls means the model stopped to wait for tool results.
	FinishToolCalls
)

func (r FinishReason) String() string {
	switch r {
	case FinishToolCalls:
		return "tool_calls"
	default:
		return "end_turn"
	}
}

// ResponseEvent is one item of a streamed model response. Sealed union:
// MessageDelta, ToolCall and Completed are the full set.
type ResponseEvent interface {
	responseEvent()
}

var (
	_ ResponseEvent = MessageDelta{}
	_ ResponseEvent = ToolCall{}
	_ ResponseEvent = Completed{}
)

// MessageDelta carries the next fragment of the assistant's text.
type MessageDelta struct {
	Text string
}

func (MessageDelta) responseEvent() {}

// ToolCall carries one assembled tool invocation.
type ToolCall struct {
	Call ToolCallRequest
}

func (ToolCall) responseEvent() {}

// Completed closes a successful response. It is always the last event.
type Completed struct {
	Reason FinishReason
}

func (Completed) responseEvent() {}

// Response is a streamed reply being consumed. Implementations are not safe
// for concurrent use; a response has exactly one consumer.
//
// NextEvent returns the next event, or io.EOF once the stream has delivered
// everything, or the terminal error that cut it short. The outcome is
// sticky: after io.EOF or an error, every further call returns io.EOF. Event
// order is fixed: deltas first, then tool calls, then one Completed.
//
// OpaqueMessage returns the provider-native assistant turn for this reply.
// It reports false until the response has completed successfully; after that
// it returns the same value on every call.
type Response interface {
	NextEvent(ctx context.Context) (ResponseEvent, error)
	OpaqueMessage() (OpaqueMessage, bool)
}
