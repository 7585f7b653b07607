package corobus

import "github.com/syskit/syskit/lib/coro"

// waitQueue is a FIFO of parked coroutines, owned by the channel they wait
// on. Wakers always pop the head before waking it, so a coroutine sits in
// at most one queue at a time and no entry outlives its owner's suspension.
type waitQueue struct {
	coros []*coro.Coro
}

// suspend parks the current coroutine at the tail of the queue.
func (q *waitQueue) suspend(s *coro.Scheduler) {
	q.coros = append(q.coros, s.Running())
	s.Suspend()
}

// wakeOne pops and wakes the head waiter, if any. The woken coroutine must
// re-test its condition - it may have been overtaken, or its channel may be
// gone.
func (q *waitQueue) wakeOne() {
	if len(q.coros) == 0 {
		return
	}
	c := q.coros[0]
	q.coros = q.coros[1:]
	c.Wakeup()
}

// wakeAll drains the queue, waking every waiter in FIFO order.
func (q *waitQueue) wakeAll() {
	for len(q.coros) > 0 {
		q.wakeOne()
	}
}
