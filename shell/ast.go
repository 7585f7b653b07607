// Package shell compiles parsed command lines into an execution graph of
// commands, pipes and branches, and runs it over OS processes.
package shell

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"

	"github.com/mitchellh/go-homedir"
	"golang.org/x/sync/errgroup"

	"github.com/syskit/syskit/lib/logging"
	"github.com/syskit/syskit/lib/metrics"
	"github.com/syskit/syskit/shell/parser"
)

// Node is one vertex of the execution graph. Execute runs the subtree with
// the given pipe ends (nil means inherit the process's stdin/stdout) and
// returns its exit code. ExitCalled reports whether the exit builtin fired
// inside the subtree.
type Node interface {
	Execute(stdin, stdout *os.File) int
	ExitCalled() bool
}

// Command is a leaf: one executable or builtin.
type Command struct {
	Exe        string
	Args       []string
	OutType    parser.OutputType
	OutFile    string
	Background bool

	reaper     *Reaper
	exitCalled bool
}

// String returns the command's name for logs.
func (c *Command) String() string {
	return fmt.Sprintf("command %q", c.Exe)
}

// IsExit reports whether this command is the exit builtin.
func (c *Command) IsExit() bool {
	return c.Exe == "exit"
}

// ExitCalled reports whether the exit builtin actually ran.
func (c *Command) ExitCalled() bool {
	return c.exitCalled
}

// closeEnds closes the pipe ends handed to this command. The child process
// holds its own duplicates, so the parent copies must go or pipe readers
// never see EOF.
func closeEnds(stdin, stdout *os.File) {
	if stdin != nil {
		_ = stdin.Close()
	}
	if stdout != nil {
		_ = stdout.Close()
	}
}

// Execute runs the command. cd and exit are builtins; exit only counts when
// the command's stdout is not a pipe, otherwise it is run (and fails) like
// any external program. Everything else starts an OS process with the pipe ends
// wired to its stdin/stdout.
func (c *Command) Execute(stdin, stdout *os.File) int {
	switch {
	case c.Exe == "cd":
		closeEnds(stdin, stdout)
		return c.chdir()
	case c.IsExit() && stdout == nil:
		closeEnds(stdin, stdout)
		code := 0
		if len(c.Args) > 0 {
			code, _ = strconv.Atoi(c.Args[0])
		}
		c.exitCalled = true
		return code
	}

	cmd := exec.Command(c.Exe, c.Args...)
	cmd.Stdin = os.Stdin
	if stdin != nil {
		cmd.Stdin = stdin
	}
	cmd.Stdout = os.Stdout
	if stdout != nil {
		cmd.Stdout = stdout
	}
	cmd.Stderr = os.Stderr

	var redir *os.File
	if c.OutType != parser.OutputStdout {
		flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
		if c.OutType == parser.OutputFileAppend {
			flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
		}
		f, err := os.OpenFile(c.OutFile, flags, 0700)
		if err != nil {
			logging.Errorf(c, "cannot open %q: %v", c.OutFile, err)
			closeEnds(stdin, stdout)
			return 1
		}
		redir = f
		cmd.Stdout = f
	}

	err := cmd.Start()
	// the child holds its own copies now; drop the parent's
	closeEnds(stdin, stdout)
	if redir != nil {
		_ = redir.Close()
	}
	if err != nil {
		logging.Debugf(c, "start failed: %v", err)
		return 1
	}
	metrics.ShellCommandsExecuted.Inc()

	if c.Background {
		if c.reaper != nil {
			c.reaper.Add(cmd)
		} else {
			go func() { _ = cmd.Wait() }()
		}
		return 0
	}

	if err := cmd.Wait(); err != nil {
		if exit, ok := err.(*exec.ExitError); ok {
			return exit.ExitCode()
		}
		logging.Debugf(c, "wait failed: %v", err)
		return 1
	}
	return 0
}

// chdir implements the cd builtin in-process, expanding ~ and defaulting to
// the home directory.
func (c *Command) chdir() int {
	dir := ""
	if len(c.Args) > 0 {
		dir = c.Args[0]
	}
	if dir == "" || dir == "~" {
		home, err := homedir.Dir()
		if err != nil {
			logging.Errorf(c, "cannot find home: %v", err)
			return 1
		}
		dir = home
	} else if expanded, err := homedir.Expand(dir); err == nil {
		dir = expanded
	}
	if err := os.Chdir(dir); err != nil {
		logging.Errorf(c, "cd: %v", err)
		return 1
	}
	return 0
}

// Pipe connects the left subtree's stdout to the right's stdin. Both legs
// run concurrently; the pipe's exit code is the right leg's.
type Pipe struct {
	Left, Right Node
}

// Execute creates the pipe, hands the write end to the left leg and the
// read end to the right, and waits for both. Each leaf closes the ends it
// was handed, so the reader sees EOF when the last writer is gone.
func (p *Pipe) Execute(stdin, stdout *os.File) int {
	pr, pw, err := os.Pipe()
	if err != nil {
		logging.Errorf(nil, "pipe: %v", err)
		closeEnds(stdin, stdout)
		return 1
	}
	var rcode int
	var g errgroup.Group
	g.Go(func() error {
		p.Left.Execute(stdin, pw)
		return nil
	})
	g.Go(func() error {
		rcode = p.Right.Execute(pr, stdout)
		return nil
	})
	_ = g.Wait()
	return rcode
}

// ExitCalled on a pipe is always false: the exit builtin does not propagate
// out of a pipeline, even from its last command. "true | exit" never
// terminates the interpreter while "exit" alone does.
func (p *Pipe) ExitCalled() bool {
	return false
}

// Branch is the && / || connective. Left always runs; Right runs depending
// on the left exit code and ExecuteOnFail (false for &&, true for ||).
type Branch struct {
	Left          Node
	Right         Node
	ExecuteOnFail bool

	exitCalled bool
}

// Execute runs the left subtree and, unless exit was called inside it,
// the right one when the condition holds. The branch's code is the last
// subtree that ran.
func (b *Branch) Execute(stdin, stdout *os.File) int {
	code := b.Left.Execute(nil, nil)
	b.exitCalled = b.Left.ExitCalled()
	if b.exitCalled {
		return code
	}
	if (code == 0) != b.ExecuteOnFail {
		code = b.Right.Execute(nil, nil)
		b.exitCalled = b.Right.ExitCalled()
	}
	return code
}

// ExitCalled reports whether exit fired in whichever legs ran.
func (b *Branch) ExitCalled() bool {
	return b.exitCalled
}
