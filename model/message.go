package model

// Message is one entry of the conversation sent to a provider. It is a
// sealed union: the variants below are the full set.
type Message interface {
	message()
}

var (
	_ Message = System{}
	_ Message = User{}
	_ Message = Assistant{}
	_ Message = ToolResult{}
	_ Message = Opaque{}
)

// System is the system prompt. At most one, at the front of the request.
type System struct {
	Content string
}

func (System) message() {}

// User is a message authored by the human operating the agent.
type User struct {
	Content string
}

func (User) message() {}

// Assistant is a plain-text model turn. Providers that return an opaque
// message produce Opaque instead; Assistant is the fallback shape.
type Assistant struct {
	Content string
}

func (Assistant) message() {}

// ToolResult reports the outcome of one tool call back to the model. ID is
// the provider-assigned call id, Content the success output or the failure's
// textual reason.
type ToolResult struct {
	ID      string
	Content string
}

func (ToolResult) message() {}

// Opaque wraps a provider-native assistant turn. Only the provider that
// minted it can look inside; everyone else passes it along by value.
type Opaque struct {
	Message OpaqueMessage
}

func (Opaque) message() {}
