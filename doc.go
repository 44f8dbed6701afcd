/*
Package athene is a runtime for conversational agents. An agent owns a
conversation with a model provider, executes the tools the model asks for
under an approval gate, and tells its host when it has gone quiet.

The runtime is built on a small actor substrate: every agent is one actor,
its conversation and stage live in actor state, and everything that happens
concurrently (the model call, each tool execution) runs in its own goroutine
that reports back by sending the actor a message. There are no locks around
conversation state; the actor's sequential mailbox is the only
synchronization.

# Basic Usage

Hosts construct an agent around a model provider, register tools and
observers, then feed it input:

	agent := athene.New(provider,
		athene.WithSystemPrompt("You are terse."),
		athene.WithTools(toolset.Shell(), toolset.ReadFile()),
		athene.OnTranscript(func(text string, src athene.TranscriptSource) {
			fmt.Print(text)
		}),
		athene.OnToolCallRequest(func(a *tool.Approval) {
			a.Approve()
		}),
		athene.OnIdle(func() { close(done) }),
	)
	defer agent.Close()

	if err := agent.EnqueueUserInput("Hello"); err != nil {
		// the agent has already been closed
	}

EnqueueUserInput never blocks and is legal in any stage: input that arrives
while the agent is busy queues up and is processed, in order, once the agent
returns to idle. OnIdle fires only when that queue has fully drained.

# Lifecycle

An agent runs until Close. Close kills the actor, cancels the contexts of
any in-flight model call or tool execution, and closes the model provider.
Observers fire on the agent's own goroutine and must not block; a slow
observer stalls that agent (and only that agent).
*/
package athene
