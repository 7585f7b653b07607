// Package atexit runs registered cleanup functions when the process is
// about to exit.
//
// Unlike defer, the handlers run on any exit path the binary chooses to
// route through Run, including os.Exit which skips defers.
package atexit

import (
	"sync"

	"github.com/syskit/syskit/lib/logging"
)

var (
	fnsMutex sync.Mutex
	fns      []func()
	runOnce  sync.Once
)

// Register a function to be run at exit. Functions run in reverse order of
// registration.
func Register(fn func()) {
	fnsMutex.Lock()
	fns = append(fns, fn)
	fnsMutex.Unlock()
}

// Run all registered functions. Only the first call does anything.
func Run() {
	runOnce.Do(func() {
		fnsMutex.Lock()
		handlers := fns
		fns = nil
		fnsMutex.Unlock()
		for i := len(handlers) - 1; i >= 0; i-- {
			handlers[i]()
		}
		logging.Debugf(nil, "atexit: ran %d handler(s)", len(handlers))
	})
}
