package actor

import (
	"sync"
	"sync/atomic"
)

// mailbox is the shared core behind every Actor handle: an unbounded FIFO
// queue, a coalesced wakeup channel and an idempotent kill signal. The
// consuming loop checks the kill signal before every dequeue, so a kill
// outranks messages that are queued but not yet started.
type mailbox[S any] struct {
	mu    sync.Mutex
	queue []Message[S]

	notify chan struct{}
	kill   chan struct{}
	once   sync.Once

	dead atomic.Bool
	done chan struct{}
}

func newMailbox[S any]() *mailbox[S] {
	return &mailbox[S]{
		notify: make(chan struct{}, 1),
		kill:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

func (m *mailbox[S]) push(msg Message[S]) error {
	if m.dead.Load() {
		return ErrDead
	}
	m.mu.Lock()
	m.queue = append(m.queue, msg)
	m.mu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default: // a wakeup is already pending
	}
	return nil
}

// next blocks until a message is available or the actor has been killed.
// The second return is false when the loop should exit.
func (m *mailbox[S]) next() (Message[S], bool) {
	for {
		select {
		case <-m.kill:
			return nil, false
		default:
		}

		m.mu.Lock()
		if len(m.queue) > 0 {
			msg := m.queue[0]
			m.queue[0] = nil // don't let the backing array pin it
			m.queue = m.queue[1:]
			m.mu.Unlock()
			return msg, true
		}
		m.mu.Unlock()

		select {
		case <-m.kill:
			return nil, false
		case <-m.notify:
		}
	}
}

func (m *mailbox[S]) requestKill() {
	m.once.Do(func() { close(m.kill) })
}

func (m *mailbox[S]) markDead() {
	m.dead.Store(true)
	close(m.done)
}
