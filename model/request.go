package model

import (
	"github.com/invopop/jsonschema"
)

// ToolDefinition advertises one callable tool to the model.
type ToolDefinition struct {
	Name        string
	Description string
	// Parameters is the JSON schema of the arguments object.
	Parameters *jsonschema.Schema
}

// Request is a full completion request: the conversation so far plus the
// tools the model may call. Requests are self-contained; providers hold no
// conversation state between calls.
type Request struct {
	Messages []Message
	Tools    []ToolDefinition
}
