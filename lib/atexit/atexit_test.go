package atexit

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunOrderAndOnce(t *testing.T) {
	// reset package state for the test
	fns = nil
	runOnce = sync.Once{}

	var got []int
	Register(func() { got = append(got, 1) })
	Register(func() { got = append(got, 2) })

	Run()
	assert.Equal(t, []int{2, 1}, got)

	// second Run is a no-op
	Register(func() { got = append(got, 3) })
	Run()
	assert.Equal(t, []int{2, 1}, got)
}
