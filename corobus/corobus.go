// Package corobus multiplexes bounded FIFO message channels over a
// cooperative coroutine scheduler (lib/coro).
//
// A Bus owns a table of channel slots. Slot indices are the channel
// descriptors handed back to callers, and closed slots are reused by the
// next OpenChannel, lowest index first. Blocking operations park the calling
// coroutine on the channel's waiter queue; because the scheduler is
// cooperative and single-threaded, the bus needs no locks - all state is
// single-owner between suspension points.
//
// Every blocking operation re-reads its slot after each resume. Close wakes
// all waiters and vacates the slot, so a woken waiter finding the slot empty
// fails with ErrNoChannel; a slot that was closed and reopened while the
// waiter slept is a different channel with the same name, and the waiter
// simply continues against it.
package corobus

import (
	"errors"
	"fmt"

	"github.com/syskit/syskit/lib/coro"
	"github.com/syskit/syskit/lib/logging"
)

// Errors returned by bus operations.
var (
	ErrNoChannel  = errors.New("no such channel")
	ErrWouldBlock = errors.New("operation would block")
)

// channel is one bounded FIFO with its waiter queues.
type channel struct {
	capacity int
	data     []uint32
	sendq    waitQueue // coroutines waiting for free space
	recvq    waitQueue // coroutines waiting for data
}

func (ch *channel) full() bool {
	return len(ch.data) == ch.capacity
}

// Bus is a set of channels driven by one scheduler.
type Bus struct {
	sched    *coro.Scheduler
	channels []*channel // nil entries are vacant slots
}

// New creates a bus whose blocking operations suspend on sched.
func New(sched *coro.Scheduler) *Bus {
	return &Bus{sched: sched}
}

// String returns the bus's name for logs.
func (b *Bus) String() string {
	return fmt.Sprintf("bus(%d slots)", len(b.channels))
}

// lookup returns the channel in slot id, or nil if the slot is out of range
// or vacant.
func (b *Bus) lookup(id int) *channel {
	if id < 0 || id >= len(b.channels) {
		return nil
	}
	return b.channels[id]
}

// OpenChannel creates a channel with the given capacity and returns its
// descriptor. The lowest vacant slot is reused before the table grows.
func (b *Bus) OpenChannel(capacity int) int {
	ch := &channel{capacity: capacity}
	for i, slot := range b.channels {
		if slot == nil {
			b.channels[i] = ch
			logging.Debugf(b, "reopened slot %d capacity %d", i, capacity)
			return i
		}
	}
	b.channels = append(b.channels, ch)
	id := len(b.channels) - 1
	logging.Debugf(b, "opened slot %d capacity %d", id, capacity)
	return id
}

// CloseChannel destroys the channel in slot id, waking every waiter first.
// The woken coroutines re-check the slot from their own frames and fail
// with ErrNoChannel. Closing a vacant or out-of-range slot is a no-op.
func (b *Bus) CloseChannel(id int) {
	ch := b.lookup(id)
	if ch == nil {
		return
	}
	ch.sendq.wakeAll()
	ch.recvq.wakeAll()
	b.channels[id] = nil
	logging.Debugf(b, "closed slot %d", id)
}

// Close closes every channel in slot order and empties the bus.
func (b *Bus) Close() {
	for id := range b.channels {
		b.CloseChannel(id)
	}
	b.channels = nil
}

// Send delivers v to the channel, suspending while it is full. It returns
// ErrNoChannel if the slot is (or becomes) vacant.
func (b *Bus) Send(id int, v uint32) error {
	if b.lookup(id) == nil {
		return ErrNoChannel
	}
	for {
		ch := b.lookup(id)
		if ch == nil {
			return ErrNoChannel
		}
		if ch.full() {
			ch.sendq.suspend(b.sched)
			continue
		}
		ch.data = append(ch.data, v)
		ch.recvq.wakeOne()
		return nil
	}
}

// TrySend is Send without blocking: a full channel returns ErrWouldBlock.
func (b *Bus) TrySend(id int, v uint32) error {
	ch := b.lookup(id)
	if ch == nil {
		return ErrNoChannel
	}
	if ch.full() {
		return ErrWouldBlock
	}
	ch.data = append(ch.data, v)
	ch.recvq.wakeOne()
	return nil
}

// Recv takes the oldest value from the channel, suspending while it is
// empty.
func (b *Bus) Recv(id int) (uint32, error) {
	if b.lookup(id) == nil {
		return 0, ErrNoChannel
	}
	for {
		ch := b.lookup(id)
		if ch == nil {
			return 0, ErrNoChannel
		}
		if len(ch.data) == 0 {
			ch.recvq.suspend(b.sched)
			continue
		}
		v := ch.popFront()
		if !ch.full() {
			ch.sendq.wakeOne()
		}
		return v, nil
	}
}

// TryRecv is Recv without blocking: an empty channel returns ErrWouldBlock.
func (b *Bus) TryRecv(id int) (uint32, error) {
	ch := b.lookup(id)
	if ch == nil {
		return 0, ErrNoChannel
	}
	if len(ch.data) == 0 {
		return 0, ErrWouldBlock
	}
	v := ch.popFront()
	if !ch.full() {
		ch.sendq.wakeOne()
	}
	return v, nil
}

// SendV delivers a batch. It suspends until at least one slot of space is
// free, then writes as many values as fit without suspending again, and
// returns how many were written.
func (b *Bus) SendV(id int, vs []uint32) (int, error) {
	if b.lookup(id) == nil {
		return 0, ErrNoChannel
	}
	for {
		ch := b.lookup(id)
		if ch == nil {
			return 0, ErrNoChannel
		}
		if ch.full() {
			ch.sendq.suspend(b.sched)
			continue
		}
		n := ch.pushSome(vs)
		if len(ch.data) > 0 {
			ch.recvq.wakeOne()
		}
		return n, nil
	}
}

// TrySendV is SendV without blocking.
func (b *Bus) TrySendV(id int, vs []uint32) (int, error) {
	ch := b.lookup(id)
	if ch == nil {
		return 0, ErrNoChannel
	}
	if ch.full() {
		return 0, ErrWouldBlock
	}
	n := ch.pushSome(vs)
	if len(ch.data) > 0 {
		ch.recvq.wakeOne()
	}
	return n, nil
}

// RecvV drains up to len(buf) values. It suspends until the channel is
// non-empty, then reads without suspending again, and returns how many
// values were read.
func (b *Bus) RecvV(id int, buf []uint32) (int, error) {
	if b.lookup(id) == nil {
		return 0, ErrNoChannel
	}
	for {
		ch := b.lookup(id)
		if ch == nil {
			return 0, ErrNoChannel
		}
		if len(ch.data) == 0 {
			ch.recvq.suspend(b.sched)
			continue
		}
		n := ch.popSome(buf)
		if !ch.full() {
			ch.sendq.wakeOne()
		}
		return n, nil
	}
}

// TryRecvV is RecvV without blocking.
func (b *Bus) TryRecvV(id int, buf []uint32) (int, error) {
	ch := b.lookup(id)
	if ch == nil {
		return 0, ErrNoChannel
	}
	if len(ch.data) == 0 {
		return 0, ErrWouldBlock
	}
	n := ch.popSome(buf)
	if !ch.full() {
		ch.sendq.wakeOne()
	}
	return n, nil
}

// Broadcast delivers v to every live channel, atomically from the caller's
// point of view: it suspends on the first full channel it finds and
// re-evaluates the whole bus from scratch after each resume, because
// channels may have been opened or closed while it slept. Only when no live
// channel is full does it push to all of them.
func (b *Bus) Broadcast(v uint32) error {
	if !b.anyLive() {
		return ErrNoChannel
	}
	for {
		blocked := b.firstFull()
		if !b.anyLive() {
			return ErrNoChannel
		}
		if blocked != nil {
			blocked.sendq.suspend(b.sched)
			continue
		}
		b.pushAll(v)
		return nil
	}
}

// TryBroadcast is Broadcast without blocking: any full live channel makes
// it fail with ErrWouldBlock.
func (b *Bus) TryBroadcast(v uint32) error {
	if !b.anyLive() {
		return ErrNoChannel
	}
	if b.firstFull() != nil {
		return ErrWouldBlock
	}
	b.pushAll(v)
	return nil
}

// anyLive reports whether at least one slot holds a channel.
func (b *Bus) anyLive() bool {
	for _, ch := range b.channels {
		if ch != nil {
			return true
		}
	}
	return false
}

// firstFull returns the first live channel with no free space, or nil.
func (b *Bus) firstFull() *channel {
	for _, ch := range b.channels {
		if ch != nil && ch.full() {
			return ch
		}
	}
	return nil
}

// pushAll appends v to every live channel and wakes one receiver on each.
func (b *Bus) pushAll(v uint32) {
	for _, ch := range b.channels {
		if ch == nil {
			continue
		}
		ch.data = append(ch.data, v)
		ch.recvq.wakeOne()
	}
}

func (ch *channel) popFront() uint32 {
	v := ch.data[0]
	ch.data = ch.data[1:]
	return v
}

// pushSome appends values until the batch or the free space runs out.
func (ch *channel) pushSome(vs []uint32) (n int) {
	for n < len(vs) && !ch.full() {
		ch.data = append(ch.data, vs[n])
		n++
	}
	return n
}

// popSome moves values into buf until the channel or buf runs out.
func (ch *channel) popSome(buf []uint32) (n int) {
	for n < len(buf) && len(ch.data) > 0 {
		buf[n] = ch.popFront()
		n++
	}
	return n
}
