package coro

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunOrder(t *testing.T) {
	s := New()
	var got []int
	for i := 0; i < 3; i++ {
		i := i
		s.Go(func() {
			got = append(got, i)
		})
	}
	s.Run()
	assert.Equal(t, []int{0, 1, 2}, got)
}

func TestSuspendWakeup(t *testing.T) {
	s := New()
	var got []string
	var waiter *Coro
	waiter = s.Go(func() {
		got = append(got, "before")
		s.Suspend()
		got = append(got, "after")
	})
	s.Go(func() {
		got = append(got, "waker")
		waiter.Wakeup()
	})
	s.Run()
	assert.Equal(t, []string{"before", "waker", "after"}, got)
}

func TestWakeupIdempotent(t *testing.T) {
	s := New()
	var resumed int
	var waiter *Coro
	waiter = s.Go(func() {
		s.Suspend()
		resumed++
	})
	s.Go(func() {
		// Double wakeup must queue the waiter once only.
		waiter.Wakeup()
		waiter.Wakeup()
	})
	s.Run()
	assert.Equal(t, 1, resumed)
}

func TestWakeupRunnableNoop(t *testing.T) {
	s := New()
	ran := false
	c := s.Go(func() { ran = true })
	c.Wakeup() // already runnable
	s.Run()
	assert.True(t, ran)
}

func TestRunning(t *testing.T) {
	s := New()
	assert.Nil(t, s.Running())
	var self *Coro
	c := s.Go(func() {
		self = s.Running()
	})
	s.Run()
	assert.Equal(t, c, self)
	assert.Nil(t, s.Running())
}

func TestGoFromCoroutine(t *testing.T) {
	s := New()
	var got []string
	s.Go(func() {
		got = append(got, "outer")
		s.Go(func() {
			got = append(got, "inner")
		})
	})
	s.Run()
	assert.Equal(t, []string{"outer", "inner"}, got)
}

func TestDeadlockPanics(t *testing.T) {
	s := New()
	s.Go(func() {
		s.Suspend() // nobody will wake this up
	})
	require.Panics(t, func() { s.Run() })
}

func TestSuspendOutsideCoroutine(t *testing.T) {
	s := New()
	require.Panics(t, func() { s.Suspend() })
}
