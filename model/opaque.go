package model

import "fmt"

// OpaqueMessage is an assistant turn in a provider's private shape. The
// runtime never inspects Raw; it stores the value in the conversation and
// returns it verbatim on follow-up requests. Providers type-assert Raw back
// to their own message type and should treat a failed assertion as a foreign
// message.
type OpaqueMessage struct {
	id  string
	raw any
}

// NewOpaqueMessage wraps a provider-native value under a stable id. The id
// is whatever the provider uses to identify the turn; it only has to be
// stable for the lifetime of the conversation.
func NewOpaqueMessage(id string, raw any) OpaqueMessage {
	return OpaqueMessage{id: id, raw: raw}
}

// ID returns the provider-assigned identifier of the wrapped turn.
func (m OpaqueMessage) ID() string { return m.id }

// Raw returns the wrapped provider-native value.
func (m OpaqueMessage) Raw() any { return m.raw }

// IsZero reports whether the message was never set.
func (m OpaqueMessage) IsZero() bool { return m.id == "" && m.raw == nil }

func (m OpaqueMessage) String() string {
	return fmt.Sprintf("opaque(%s)", m.id)
}
