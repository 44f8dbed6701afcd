// Package actor implements a minimal mailbox-driven actor runtime.
//
// An actor owns a piece of state and a goroutine that processes messages
// against that state one at a time, in arrival order. Behavior lives on the
// messages themselves: anything that implements Message for the state type
// can be sent. There is no preemption; a kill request takes effect between
// messages, never in the middle of one.
package actor

import (
	"log/slog"
)

// Message is a unit of work delivered to an actor. Handle runs on the actor
// goroutine with exclusive access to the state, and receives a handle to the
// actor itself so follow-up messages can be sent from inside a handler or
// from goroutines a handler starts.
type Message[S any] interface {
	Handle(state *S, self *Actor[S])
}

// Actor is a handle to a running actor. Handles are cheap to share across
// goroutines; every copy reaches the same mailbox.
type Actor[S any] struct {
	mb *mailbox[S]
}

// Spawn starts an actor around the given state and returns its handle. The
// label names the actor in log records and has no other meaning.
func Spawn[S any](state S, label string) *Actor[S] {
	a := &Actor[S]{mb: newMailbox[S]()}
	go a.run(state, label)
	return a
}

// Send enqueues a message for processing. The mailbox is unbounded, so Send
// never blocks. Once the actor has exited it returns ErrDead; messages still
// queued at that point are dropped, not handled.
func (a *Actor[S]) Send(msg Message[S]) error {
	return a.mb.push(msg)
}

// Kill asks the actor to exit. Idempotent and best effort: a handler that is
// already running finishes normally, anything queued behind it is dropped.
func (a *Actor[S]) Kill() {
	a.mb.requestKill()
}

// Done is closed when the actor goroutine has exited, whether through Kill
// or through a handler panic.
func (a *Actor[S]) Done() <-chan struct{} {
	return a.mb.done
}

func (a *Actor[S]) run(state S, label string) {
	log := slog.With(slog.String("actor", label))
	log.Debug("actor started")

	defer func() {
		// A panicking handler takes down this actor and nothing else. The
		// state may be mid-mutation at this point, so resuming is not an
		// option; mark the mailbox dead and let senders see ErrDead.
		if r := recover(); r != nil {
			log.Error("actor aborted by panic", slog.Any("panic", r))
		}
		a.mb.markDead()
		log.Debug("actor terminated")
	}()

	for {
		msg, ok := a.mb.next()
		if !ok {
			return
		}
		msg.Handle(&state, a)
	}
}
