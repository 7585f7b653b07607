// Package coro implements a cooperative, single-threaded coroutine
// scheduler.
//
// Exactly one coroutine runs at a time. A coroutine gives up control only at
// an explicit call to Suspend, and a suspended coroutine runs again only
// after some other coroutine calls Wakeup on it. There is no preemption, so
// between suspension points a coroutine owns all state shared with its
// siblings and needs no locking.
//
// Coroutines are backed by goroutines, but control is handed off explicitly
// through rendezvous channels so that the scheduler and at most one
// coroutine are ever runnable.
package coro

import (
	"fmt"

	"github.com/syskit/syskit/lib/logging"
)

type state int

const (
	stateRunnable state = iota // in the run queue
	stateRunning               // currently executing
	stateParked                // suspended, waiting for Wakeup
	stateDone                  // fn returned
)

// Coro is the handle of a single coroutine.
type Coro struct {
	sched  *Scheduler
	id     int
	state  state
	resume chan struct{}
}

// String returns the coroutine's name for logs.
func (c *Coro) String() string {
	return fmt.Sprintf("coro %d", c.id)
}

// Scheduler runs a set of coroutines to completion.
type Scheduler struct {
	ready   []*Coro // FIFO run queue
	current *Coro
	live    int
	nextID  int
	yield   chan struct{}
}

// New creates an empty scheduler.
func New() *Scheduler {
	return &Scheduler{
		yield: make(chan struct{}),
	}
}

// Go registers fn as a new coroutine and puts it at the tail of the run
// queue. It does not run until the scheduler reaches it.
//
// Go may be called before Run or from inside a running coroutine.
func (s *Scheduler) Go(fn func()) *Coro {
	c := &Coro{
		sched:  s,
		id:     s.nextID,
		state:  stateRunnable,
		resume: make(chan struct{}),
	}
	s.nextID++
	s.live++
	s.ready = append(s.ready, c)
	go func() {
		<-c.resume
		fn()
		c.state = stateDone
		s.live--
		s.yield <- struct{}{}
	}()
	return c
}

// Running returns the coroutine currently executing, or nil outside Run.
func (s *Scheduler) Running() *Coro {
	return s.current
}

// Suspend parks the current coroutine and hands control back to the
// scheduler. It returns when another coroutine calls Wakeup.
//
// Must be called from inside a running coroutine.
func (s *Scheduler) Suspend() {
	c := s.current
	if c == nil {
		panic("coro: Suspend called outside a coroutine")
	}
	c.state = stateParked
	s.yield <- struct{}{}
	<-c.resume
}

// Wakeup moves a parked coroutine to the tail of the run queue. Waking a
// coroutine that is not parked is a no-op, so spurious wakeups are safe.
func (c *Coro) Wakeup() {
	if c.state != stateParked {
		return
	}
	c.state = stateRunnable
	c.sched.ready = append(c.sched.ready, c)
}

// Run drives all registered coroutines until every one of them has
// finished. It panics if the run queue drains while coroutines are still
// parked - that is a lost wakeup in the caller's code, and waiting would
// deadlock silently instead.
func (s *Scheduler) Run() {
	for s.live > 0 {
		if len(s.ready) == 0 {
			panic(fmt.Sprintf("coro: deadlock: %d coroutine(s) parked with nothing runnable", s.live))
		}
		c := s.ready[0]
		s.ready = s.ready[1:]
		c.state = stateRunning
		s.current = c
		c.resume <- struct{}{}
		<-s.yield
		s.current = nil
	}
	logging.Debugf(s, "all coroutines finished")
}

// String returns the scheduler's name for logs.
func (s *Scheduler) String() string {
	return fmt.Sprintf("sched(live=%d ready=%d)", s.live, len(s.ready))
}
