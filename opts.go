package athene

import (
	"time"

	"github.com/fogfish/opts"

	"github.com/casualjim/athene/tool"
)

// TranscriptSource says who authored a transcript fragment.
type TranscriptSource int

const (
	// SourceUser marks input the host enqueued.
	SourceUser TranscriptSource = iota
	// SourceAssistant marks text the model produced.
	SourceAssistant
)

func (s TranscriptSource) String() string {
	if s == SourceAssistant {
		return "assistant"
	}
	return "user"
}

// Retry bounds how a failed model request is retried within one turn.
// Attempts counts total tries including the first; Backoff is the fixed
// pause between them. Moderated failures never retry, they are
// deterministic.
type Retry struct {
	Attempts int
	Backoff  time.Duration
}

var defaultRetry = Retry{Attempts: 4, Backoff: 500 * time.Millisecond}

type config struct {
	name         string
	systemPrompt string
	tools        []tool.Tool
	retry        Retry

	onIdle       func()
	onTranscript func(text string, source TranscriptSource)
	onToolCall   func(*tool.Approval)
	onError      func(error)
}

// Option configures an Agent under construction.
type Option = opts.Option[config]

// WithName labels the agent in log records.
var WithName = opts.ForName[config, string]("name")

// WithSystemPrompt seeds the conversation with a system message.
var WithSystemPrompt = opts.ForName[config, string]("systemPrompt")

// WithRetry overrides the model-request retry policy.
var WithRetry = opts.ForName[config, Retry]("retry")

// WithTools registers tool capabilities the model may call. Repeatable;
// registrations accumulate.
func WithTools(tools ...tool.Tool) Option {
	return opts.Type[config](func(c *config) error {
		c.tools = append(c.tools, tools...)
		return nil
	})
}

// OnIdle registers the observer invoked whenever the agent has processed
// every enqueued input through to a reply with no outstanding tool calls.
func OnIdle(fn func()) Option {
	return opts.Type[config](func(c *config) error {
		c.onIdle = fn
		return nil
	})
}

// OnTranscript registers the observer for human-readable conversation text.
// Assistant text arrives as the provider's delta fragments, in stream order.
func OnTranscript(fn func(text string, source TranscriptSource)) Option {
	return opts.Type[config](func(c *config) error {
		c.onTranscript = fn
		return nil
	})
}

// OnToolCallRequest registers the approval observer. Without one, every
// tool call is auto-approved. The observer must not block; the decision may
// be resolved later from any goroutine.
func OnToolCallRequest(fn func(*tool.Approval)) Option {
	return opts.Type[config](func(c *config) error {
		c.onToolCall = fn
		return nil
	})
}

// OnError registers the observer for model-provider failures. It fires once
// per failed attempt, so with retries a single turn may report several
// errors before succeeding.
func OnError(fn func(error)) Option {
	return opts.Type[config](func(c *config) error {
		c.onError = fn
		return nil
	})
}
