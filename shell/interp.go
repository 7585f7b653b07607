package shell

import (
	"fmt"
	"io"

	"github.com/syskit/syskit/lib/logging"
	"github.com/syskit/syskit/shell/parser"
)

// Interp is the interpreter loop: it feeds input to the parser, compiles
// each completed line and runs it. The exit code of the last executed line
// (or of an explicit exit) becomes the interpreter's result.
type Interp struct {
	in     io.Reader
	errOut io.Writer
	parser *parser.Parser
	reaper *Reaper

	exitCode int
	exited   bool
}

// NewInterp creates an interpreter reading command lines from in and
// reporting parse errors on errOut.
func NewInterp(in io.Reader, errOut io.Writer) *Interp {
	return &Interp{
		in:     in,
		errOut: errOut,
		parser: parser.New(),
		reaper: NewReaper(),
	}
}

// String returns the interpreter's name for logs.
func (i *Interp) String() string {
	return "interp"
}

// Run consumes input until EOF or the exit builtin and returns the final
// exit code.
func (i *Interp) Run() int {
	buf := make([]byte, 1024)
	for {
		n, err := i.in.Read(buf)
		if n > 0 {
			i.parser.Feed(buf[:n])
			i.drain()
			if i.exited {
				return i.exitCode
			}
		}
		if err != nil {
			if err != io.EOF {
				logging.Errorf(i, "read: %v", err)
			}
			return i.exitCode
		}
	}
}

// drain executes every command line the parser has completed.
func (i *Interp) drain() {
	for {
		line, err := i.parser.PopNext()
		if err != nil {
			fmt.Fprintf(i.errOut, "Error: %v\n", err)
			continue
		}
		if line == nil {
			return
		}
		i.execute(line)
		if i.exited {
			return
		}
	}
}

// execute compiles and runs one line, then counts the background children
// still running.
func (i *Interp) execute(line *parser.CommandLine) {
	node, err := Build(line, i.reaper)
	if err != nil {
		fmt.Fprintf(i.errOut, "Error: %v\n", err)
		return
	}
	i.exitCode = node.Execute(nil, nil)
	if node.ExitCalled() {
		i.exited = true
	}
	if n := i.reaper.Reap(); n > 0 {
		logging.Debugf(i, "%d background child(ren) still running", n)
	}
}
