// Package blocking implements the rendezvous between producers (RPUSH,
// XADD) and clients suspended in BLPOP or XREAD BLOCK: per-key FIFO
// wait-queues for lists, per-key wait-lists for streams, and a
// timing-wheel-driven timeout sweep.
//
// A Coordinator carries no locking of its own. It is only ever safe to
// call from the single goroutine that also owns the data stores it is
// paired with (see internal/store.Engine and internal/server's
// executor loop) — the same "one writer" discipline the reactor
// applies to the string/list/stream maps themselves.
package blocking

import (
	"time"

	"github.com/heliosdb/heliosdb/internal/model"
	"github.com/heliosdb/heliosdb/internal/timingwheel"
)

// Token identifies a registered wait so it can later be cancelled, e.g.
// on client disconnect.
type Token uint64

type listWaiter struct {
	token     Token
	key       string
	fired     bool
	onElement func(element string)
	onTimeout func()
}

type streamWaiter struct {
	token     Token
	keys      []string
	resolved  map[string]model.StreamID
	fired     bool
	onEntry   func(key string, entry model.StreamEntry)
	onTimeout func()
}

// Coordinator is the block coordinator described in spec §4.E.
type Coordinator struct {
	scheduler *timingwheel.Scheduler

	nextToken Token

	listWaiters   map[string][]*listWaiter
	streamWaiters map[string][]*streamWaiter
	byToken       map[Token]any
}

// NewCoordinator creates a Coordinator whose timeout sweeps happen in
// units of resolution; the caller must invoke Tick() at that cadence.
func NewCoordinator(resolution time.Duration) *Coordinator {
	return &Coordinator{
		scheduler:     timingwheel.NewScheduler(resolution),
		listWaiters:   map[string][]*listWaiter{},
		streamWaiters: map[string][]*streamWaiter{},
		byToken:       map[Token]any{},
	}
}

// Tick advances the timeout sweep by one resolution unit.
func (c *Coordinator) Tick() {
	c.scheduler.Tick()
}

// BlockList registers fd as waiting on key. If hasDeadline is false the
// wait never times out on its own (BLPOP timeout 0, "wait forever").
// onElement is called exactly once if a producer wake delivers an
// element; onTimeout is called exactly once if the deadline elapses
// first. At most one of the two ever fires; neither does if the wait
// is cancelled first.
func (c *Coordinator) BlockList(key string, timeout time.Duration, hasDeadline bool, onElement func(string), onTimeout func()) Token {
	c.nextToken++
	tok := c.nextToken

	w := &listWaiter{token: tok, key: key, onElement: onElement, onTimeout: onTimeout}
	c.listWaiters[key] = append(c.listWaiters[key], w)
	c.byToken[tok] = w

	if hasDeadline {
		c.scheduler.Schedule(timeout, func() { c.fireListTimeout(w) })
	}

	return tok
}

func (c *Coordinator) fireListTimeout(w *listWaiter) {
	if w.fired {
		return
	}
	w.fired = true
	c.removeListWaiter(w)
	w.onTimeout()
}

func (c *Coordinator) removeListWaiter(w *listWaiter) {
	queue := c.listWaiters[w.key]
	for i, x := range queue {
		if x == w {
			c.listWaiters[w.key] = append(queue[:i], queue[i+1:]...)
			break
		}
	}
	delete(c.byToken, w.token)
}

// DrainList delivers newly available list elements to FIFO waiters on
// key, one element per waiter, stopping as soon as either the waiter
// queue or the list itself is exhausted. pop must remove and return
// the current head element of the list, reporting ok=false once the
// list is empty. Call this immediately after an RPUSH.
func (c *Coordinator) DrainList(key string, pop func() (string, bool)) {
	for len(c.listWaiters[key]) > 0 {
		element, ok := pop()
		if !ok {
			return
		}

		w := c.listWaiters[key][0]
		w.fired = true
		c.removeListWaiter(w)
		w.onElement(element)
	}
}

// BlockStreams registers fd as waiting on several (key, resolved last
// ID) pairs simultaneously. Waking on any one of them removes the
// waiter from all of them.
func (c *Coordinator) BlockStreams(keys []string, resolved map[string]model.StreamID, timeout time.Duration, hasDeadline bool, onEntry func(string, model.StreamEntry), onTimeout func()) Token {
	c.nextToken++
	tok := c.nextToken

	w := &streamWaiter{token: tok, keys: keys, resolved: resolved, onEntry: onEntry, onTimeout: onTimeout}
	for _, k := range keys {
		c.streamWaiters[k] = append(c.streamWaiters[k], w)
	}
	c.byToken[tok] = w

	if hasDeadline {
		c.scheduler.Schedule(timeout, func() { c.fireStreamTimeout(w) })
	}

	return tok
}

func (c *Coordinator) fireStreamTimeout(w *streamWaiter) {
	if w.fired {
		return
	}
	w.fired = true
	c.removeStreamWaiter(w)
	w.onTimeout()
}

func (c *Coordinator) removeStreamWaiter(w *streamWaiter) {
	for _, k := range w.keys {
		queue := c.streamWaiters[k]
		for i, x := range queue {
			if x == w {
				c.streamWaiters[k] = append(queue[:i], queue[i+1:]...)
				break
			}
		}
	}
	delete(c.byToken, w.token)
}

// NotifyStream must be called immediately after appending entry to
// key's stream. Every waiter registered on key whose resolved ID for
// key is now strictly less than entry.ID is fulfilled and removed from
// every key it was waiting on.
func (c *Coordinator) NotifyStream(key string, entry model.StreamEntry) {
	// Copy first: firing a waiter mutates c.streamWaiters[key] via
	// removeStreamWaiter, which would otherwise corrupt this loop.
	queue := append([]*streamWaiter(nil), c.streamWaiters[key]...)

	for _, w := range queue {
		if w.fired {
			continue
		}
		last, ok := w.resolved[key]
		if ok && !entry.ID.Greater(last) {
			continue
		}

		w.fired = true
		c.removeStreamWaiter(w)
		w.onEntry(key, entry)
	}
}

// Cancel removes the wait identified by tok from every structure it
// was registered in, without invoking either callback. Used on client
// disconnect (spec invariant: no ghost waiters).
func (c *Coordinator) Cancel(tok Token) {
	switch w := c.byToken[tok].(type) {
	case *listWaiter:
		if !w.fired {
			w.fired = true
			c.removeListWaiter(w)
		}
	case *streamWaiter:
		if !w.fired {
			w.fired = true
			c.removeStreamWaiter(w)
		}
	}
}
