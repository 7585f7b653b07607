package shell

import (
	"os/exec"
	"sync"

	"github.com/syskit/syskit/lib/logging"
)

// Reaper tracks background children so they do not linger as zombies. Each
// added child gets a goroutine parked in Wait (the portable stand-in for
// waitpid(-1, WNOHANG) - os/exec owns the real waitpid) that drops the
// child from the set once Wait returns; Reap counts the ones still running.
type Reaper struct {
	mu   sync.Mutex
	live map[*exec.Cmd]bool
}

// NewReaper creates an empty reaper.
func NewReaper() *Reaper {
	return &Reaper{live: make(map[*exec.Cmd]bool)}
}

// String returns the reaper's name for logs.
func (r *Reaper) String() string {
	return "reaper"
}

// Add registers a started background child and begins waiting on it.
func (r *Reaper) Add(cmd *exec.Cmd) {
	r.mu.Lock()
	r.live[cmd] = true
	r.mu.Unlock()
	go func() {
		err := cmd.Wait()
		r.mu.Lock()
		delete(r.live, cmd)
		r.mu.Unlock()
		logging.Debugf(r, "background %q finished: %v", cmd.Path, err)
	}()
}

// Reap returns how many background children are still running. Called
// after every command line, mirroring the end-of-line zombie sweep.
func (r *Reaper) Reap() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.live)
}
