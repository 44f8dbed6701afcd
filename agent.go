package athene

import (
	"context"
	"log/slog"
	"sync"

	"github.com/fogfish/opts"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/casualjim/athene/actor"
	"github.com/casualjim/athene/internal/modelclient"
	"github.com/casualjim/athene/internal/toolexec"
	"github.com/casualjim/athene/model"
)

// Agent is the handle to one running agent. It is safe to share; all entry
// points funnel into the agent's mailbox.
type Agent struct {
	actor  *actor.Actor[agentState]
	client *modelclient.Client
	cancel context.CancelFunc
	once   sync.Once
}

// New builds an agent around a model provider and starts its actor. Option
// errors are assembly mistakes and panic.
func New(provider model.Provider, options ...Option) *Agent {
	cfg := config{name: "agent", retry: defaultRetry}
	if err := opts.Apply(&cfg, options); err != nil {
		panic(err)
	}
	if cfg.retry.Attempts < 1 {
		cfg.retry.Attempts = 1
	}

	base, cancel := context.WithCancel(context.Background())
	client := modelclient.New(provider)

	state := agentState{
		log:            slog.With(slog.String("agent", cfg.name)),
		client:         client,
		tools:          toolexec.New(cfg.tools...),
		pendingResults: orderedmap.New[string, *toolexec.Outcome](),
		runningTasks:   make(map[uint64]struct{}),
		nextTaskID:     1,
		retry:          cfg.retry,
		base:           base,
		onIdle:         cfg.onIdle,
		onTranscript:   cfg.onTranscript,
		onToolCall:     cfg.onToolCall,
		onError:        cfg.onError,
	}
	if cfg.systemPrompt != "" {
		// The system prompt is model-facing only; it never shows up in
		// transcripts.
		state.conversation = append(state.conversation, Item{Message: model.System{Content: cfg.systemPrompt}})
	}

	return &Agent{
		actor:  actor.Spawn(state, cfg.name),
		client: client,
		cancel: cancel,
	}
}

// EnqueueUserInput hands the agent one user message. It never blocks: when
// the agent is mid-turn the input queues and is processed, in order, once
// the agent returns to idle. After Close it returns actor.ErrDead.
func (a *Agent) EnqueueUserInput(text string) error {
	return a.actor.Send(userInput{text: text})
}

// Close shuts the agent down: the actor exits after its current message,
// in-flight model calls and tool executions are cancelled, and the model
// provider is closed. Idempotent. Approvals still pending resolve into
// no-ops.
func (a *Agent) Close() {
	a.once.Do(func() {
		a.cancel()
		a.actor.Kill()
		<-a.actor.Done()
		a.client.Close()
	})
}
