// Package pool implements a fixed-cap worker pool with lazy worker growth
// and joinable, detachable tasks.
//
// Workers are goroutines created on demand: a Push only spawns a new worker
// when every existing one is busy and the cap allows it, so a pool that
// never sees more than N concurrent tasks never holds more than N workers.
//
// Two lock domains exist: the pool mutex guards the queue and the stop
// flag, each task's mutex guards its own status. Lock order is always pool
// then task, and a worker holds neither while the task function runs.
package pool

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/syskit/syskit/lib/logging"
	"github.com/syskit/syskit/lib/metrics"
)

// Limits on pool construction and queue growth.
const (
	MaxWorkers = 20
	MaxTasks   = 100000
)

// Errors returned by pool and task operations.
var (
	ErrInvalidArgument = errors.New("worker count out of range")
	ErrTooManyTasks    = errors.New("task queue is full")
	ErrHasTasks        = errors.New("pool still has queued or running tasks")
	ErrTaskNotPushed   = errors.New("task was not pushed")
	ErrTaskInPool      = errors.New("task is owned by a pool")
	ErrTimeout         = errors.New("timed out waiting for task")
)

// Status is a task's position in its lifecycle. The getters that expose it
// are advisory - only Join is a synchronization barrier.
type Status int

// Task lifecycle states.
const (
	StatusNew Status = iota + 1
	StatusWaiting
	StatusRunning
	StatusFinished
)

// Task wraps a function pushed into a pool.
type Task struct {
	fn func()

	mu       sync.Mutex
	status   Status
	detached bool
	released bool
	done     chan struct{} // created on Push, closed on finish
}

// NewTask creates a task in StatusNew. It owns no pool resources until
// pushed.
func NewTask(fn func()) *Task {
	return &Task{fn: fn, status: StatusNew}
}

// Pool runs tasks on up to workerCap workers sharing one FIFO queue.
type Pool struct {
	workerCap int

	mu       sync.Mutex
	cond     *sync.Cond // signalled on push, broadcast on stop
	queue    []*Task
	workers  int
	busy     int
	stopping bool
	wg       sync.WaitGroup
}

// New creates a pool that will grow to at most workerCap workers. No
// workers are spawned until the first Push needs one.
func New(workerCap int) (*Pool, error) {
	if workerCap <= 0 || workerCap > MaxWorkers {
		return nil, fmt.Errorf("%w: %d", ErrInvalidArgument, workerCap)
	}
	p := &Pool{workerCap: workerCap}
	p.cond = sync.NewCond(&p.mu)
	return p, nil
}

// String returns the pool's name for logs.
func (p *Pool) String() string {
	return fmt.Sprintf("pool(cap=%d)", p.workerCap)
}

// Push queues the task. If all current workers are busy and the cap allows
// it, a new worker is spawned first so the task does not wait behind the
// running ones.
func (p *Pool) Push(t *Task) error {
	p.mu.Lock()
	if len(p.queue) >= MaxTasks {
		p.mu.Unlock()
		return ErrTooManyTasks
	}
	if p.busy == p.workers && p.workers < p.workerCap {
		p.workers++
		p.wg.Add(1)
		go p.worker(p.workers)
		metrics.PoolWorkersSpawned.Inc()
		logging.Debugf(p, "spawned worker %d", p.workers)
	}
	t.mu.Lock()
	t.status = StatusWaiting
	t.done = make(chan struct{})
	t.released = false
	t.mu.Unlock()
	p.queue = append(p.queue, t)
	metrics.PoolTasksPushed.Inc()
	metrics.PoolQueueLength.Set(float64(len(p.queue)))
	p.mu.Unlock()
	p.cond.Signal()
	return nil
}

// worker dequeues and runs tasks until the pool stops.
func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.stopping {
			p.cond.Wait()
		}
		if p.stopping && len(p.queue) == 0 {
			p.mu.Unlock()
			return
		}
		t := p.queue[0]
		p.queue = p.queue[1:]
		p.busy++
		metrics.PoolQueueLength.Set(float64(len(p.queue)))
		p.mu.Unlock()

		t.mu.Lock()
		t.status = StatusRunning
		t.mu.Unlock()

		t.fn()

		t.mu.Lock()
		t.status = StatusFinished
		detached := t.detached
		if detached {
			// ownership transferred to this worker; nobody joins
			t.released = true
		}
		done := t.done
		t.mu.Unlock()

		// busy drops before done closes, so a returned Join implies
		// this worker is idle again
		p.mu.Lock()
		p.busy--
		p.mu.Unlock()
		close(done)
		metrics.PoolTasksCompleted.Inc()
		if detached {
			logging.Debugf(p, "worker %d released detached task", id)
		}
	}
}

// Close shuts the pool down. It fails with ErrHasTasks while any task is
// queued or running; otherwise it stops and joins every worker.
func (p *Pool) Close() error {
	p.mu.Lock()
	if len(p.queue) > 0 || p.busy > 0 {
		p.mu.Unlock()
		return ErrHasTasks
	}
	p.stopping = true
	p.mu.Unlock()
	p.cond.Broadcast()
	p.wg.Wait()
	logging.Debugf(p, "closed")
	return nil
}

// Workers returns how many workers have been spawned so far.
func (p *Pool) Workers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.workers
}

// Join blocks until the task's function has returned. Joining a task that
// was never pushed fails with ErrTaskNotPushed.
func (t *Task) Join() error {
	t.mu.Lock()
	if t.status == StatusNew {
		t.mu.Unlock()
		return ErrTaskNotPushed
	}
	done := t.done
	t.mu.Unlock()
	<-done
	return nil
}

// TimedJoin is Join with a deadline. A non-positive timeout on an
// unfinished task fails immediately with ErrTimeout.
func (t *Task) TimedJoin(timeout time.Duration) error {
	t.mu.Lock()
	if t.status == StatusNew {
		t.mu.Unlock()
		return ErrTaskNotPushed
	}
	if t.status == StatusFinished {
		t.mu.Unlock()
		return nil
	}
	done := t.done
	t.mu.Unlock()
	if timeout <= 0 {
		return ErrTimeout
	}
	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return ErrTimeout
	}
}

// Detach hands the task's ownership to the worker that runs it: once the
// function returns the worker releases the task and nobody may join it. A
// task that already finished is released immediately.
func (t *Task) Detach() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch t.status {
	case StatusNew:
		return ErrTaskNotPushed
	case StatusFinished:
		t.released = true
		return nil
	}
	t.detached = true
	return nil
}

// Delete releases a task owned by the caller. It is illegal while the task
// is queued or running.
func (t *Task) Delete() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status == StatusWaiting || t.status == StatusRunning {
		return ErrTaskInPool
	}
	t.released = true
	return nil
}

// Reset returns a finished (or new) task to StatusNew so it can be pushed
// again. It is illegal while the task is queued or running.
func (t *Task) Reset() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status == StatusWaiting || t.status == StatusRunning {
		return ErrTaskInPool
	}
	t.status = StatusNew
	t.detached = false
	t.released = false
	t.done = nil
	return nil
}

// IsRunning reports whether the task is currently executing. Advisory: the
// answer may be stale by the time the caller looks at it.
func (t *Task) IsRunning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status == StatusRunning
}

// IsFinished reports whether the task's function has returned. Advisory;
// use Join for a barrier.
func (t *Task) IsFinished() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status == StatusFinished
}

// Released reports whether the task's ownership was given up, either by
// Delete or by the worker releasing a detached task. Exposed for tests of
// the single-release invariant.
func (t *Task) Released() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.released
}
