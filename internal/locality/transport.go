package locality

import (
	"context"
	"fmt"
	"sync"
)

// Message is a one-way, locality-crossing payload with a reply future
// (spec.md §5: "locality-crossing calls use one-way messaging with
// reply futures; the sender does not block"). Tag identifies the
// collective operation (e.g. "retile", "all_gather", "cannon_shift")
// and lets a receiver dispatch without decoding Payload first.
type Message struct {
	From, To int
	Tag      string
	Payload  []byte
}

// Reply is what a handler returns for a Message; it is delivered back
// to the sender's reply future.
type Reply struct {
	Payload []byte
	Err     error
}

// Handler processes an inbound Message and produces a Reply.
type Handler func(ctx context.Context, m Message) Reply

// Transport is the point-to-point exchange mechanism used by the
// distributed-array collectives (retile, all-gather, Cannon shifts).
// Exchanges are pipelined and concurrent; callers issue many Sends
// without a global barrier and join only the futures they care about
// (spec.md §4.4).
type Transport interface {
	// Send delivers m to its destination and returns a future for the
	// handler's reply.
	Send(ctx context.Context, m Message) <-chan Reply
	// RegisterHandler installs the handler a given locality uses to
	// answer inbound messages tagged tag.
	RegisterHandler(locality int, tag string, h Handler)
}

// LocalTransport simulates the locality-crossing transport within a
// single process: every participating locality is just a handler
// table keyed by (locality, tag), and Send dispatches synchronously on
// its own goroutine (mirroring the scheduler's "never block the
// sender" contract via Scheduler.Schedule). This is what single-process
// tests and the REPL use to exercise the distributed-array algorithms
// without standing up real sockets.
type LocalTransport struct {
	sched    *Scheduler
	mu       sync.RWMutex
	handlers map[int]map[string]Handler
}

// NewLocalTransport builds an in-process transport backed by sched.
func NewLocalTransport(sched *Scheduler) *LocalTransport {
	return &LocalTransport{sched: sched, handlers: make(map[int]map[string]Handler)}
}

func (t *LocalTransport) RegisterHandler(locality int, tag string, h Handler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	m, ok := t.handlers[locality]
	if !ok {
		m = make(map[string]Handler)
		t.handlers[locality] = m
	}
	m[tag] = h
}

func (t *LocalTransport) Send(ctx context.Context, m Message) <-chan Reply {
	out := make(chan Reply, 1)
	t.mu.RLock()
	h, ok := t.handlers[m.To][m.Tag]
	t.mu.RUnlock()
	if !ok {
		out <- Reply{Err: fmt.Errorf("locality-error: no handler for tag %q on locality %d", m.Tag, m.To)}
		close(out)
		return out
	}
	t.sched.Schedule(func() {
		out <- h(ctx, m)
		close(out)
	})
	return out
}
