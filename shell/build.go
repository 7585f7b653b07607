package shell

import (
	"errors"

	"github.com/syskit/syskit/shell/parser"
)

// ErrBadLine reports a command line the builder cannot compile. The parser
// normally rejects these first; the builder keeps its own guards so a
// malformed record cannot panic the interpreter.
var ErrBadLine = errors.New("cannot build command line")

// idempotentFilters are commands whose adjacent duplicates a pure pipeline
// can drop without changing its output.
var idempotentFilters = map[string]bool{
	"cat":   true,
	"grep":  true,
	"head":  true,
	"tail":  true,
	"true":  true,
	"false": true,
	"yes":   true,
}

// canOptimize reports whether the line is a pure pipeline: commands and
// pipes only, no branching.
func canOptimize(line *parser.CommandLine) bool {
	for _, e := range line.Exprs {
		if e.Type != parser.ExprCommand && e.Type != parser.ExprPipe {
			return false
		}
	}
	return true
}

// isIdempotentDuplicate reports whether the command at index i repeats the
// command two expression positions earlier and is one of the idempotent
// filters.
//
// Two positions, not one: in a pipeline the expression list alternates
// command, pipe, command, so i-2 is the previous command. Note this
// deduplicates "cat | cat | cat" down to a single pipe even though the
// middle cat's neighbours are pipes, not commands.
func isIdempotentDuplicate(line *parser.CommandLine, i int) bool {
	if i < 2 {
		return false
	}
	cmd := line.Exprs[i].Cmd
	prev := line.Exprs[i-2].Cmd
	return idempotentFilters[cmd.Exe] && cmd.Equal(prev)
}

// newCommand builds a leaf. Only the line's final command inherits the
// line-level redirection and backgrounding.
func newCommand(cmd *parser.Cmd, line *parser.CommandLine, final bool, r *Reaper) *Command {
	c := &Command{
		Exe:    cmd.Exe,
		Args:   cmd.Args,
		reaper: r,
	}
	if final {
		c.OutType = line.OutType
		c.OutFile = line.OutFile
		c.Background = line.Background
	}
	return c
}

// chainPipes folds a command sequence into a left-leaning pipe chain.
func chainPipes(commands []Node) Node {
	head := commands[0]
	for _, right := range commands[1:] {
		head = &Pipe{Left: head, Right: right}
	}
	return head
}

// buildOptimized compiles a pure pipeline, suppressing adjacent idempotent
// duplicates.
func buildOptimized(line *parser.CommandLine, r *Reaper) (Node, error) {
	var commands []Node
	for i, e := range line.Exprs {
		if e.Type != parser.ExprCommand {
			continue
		}
		if i == len(line.Exprs)-1 {
			commands = append(commands, newCommand(e.Cmd, line, true, r))
			continue
		}
		if !isIdempotentDuplicate(line, i) {
			commands = append(commands, newCommand(e.Cmd, line, false, r))
		}
	}
	if len(commands) == 0 {
		return nil, ErrBadLine
	}
	return chainPipes(commands), nil
}

// buildGraph compiles the general case: pipes chain left-leaning and each
// && or || nests the tree built so far as the left leg of a new branch.
func buildGraph(line *parser.CommandLine, r *Reaper) (Node, error) {
	// pass 1: materialize the commands in order
	var commands []Node
	for i, e := range line.Exprs {
		if e.Type == parser.ExprCommand {
			commands = append(commands, newCommand(e.Cmd, line, i == len(line.Exprs)-1, r))
		}
	}
	next := func() (Node, error) {
		if len(commands) == 0 {
			return nil, ErrBadLine
		}
		c := commands[0]
		commands = commands[1:]
		return c, nil
	}

	// pass 2: fold connectives over the command sequence
	var pipe Node      // pipe chain under construction
	var branch *Branch // pending branch missing its right leg
	takeOperand := func() (Node, error) {
		if pipe != nil {
			n := pipe
			pipe = nil
			return n, nil
		}
		return next()
	}
	for _, e := range line.Exprs {
		switch e.Type {
		case parser.ExprPipe:
			left, err := takeOperand()
			if err != nil {
				return nil, err
			}
			right, err := next()
			if err != nil {
				return nil, err
			}
			pipe = &Pipe{Left: left, Right: right}
		case parser.ExprAnd, parser.ExprOr:
			var left Node
			if branch != nil {
				operand, err := takeOperand()
				if err != nil {
					return nil, err
				}
				branch.Right = operand
				left = branch
			} else {
				operand, err := takeOperand()
				if err != nil {
					return nil, err
				}
				left = operand
			}
			branch = &Branch{
				Left:          left,
				ExecuteOnFail: e.Type == parser.ExprOr,
			}
		}
	}

	if branch != nil {
		operand, err := takeOperand()
		if err != nil {
			return nil, err
		}
		branch.Right = operand
		return branch, nil
	}
	if pipe != nil {
		return pipe, nil
	}
	return next()
}

// Build compiles a parsed line into its execution graph. Pure pipelines go
// through the optimizing builder; anything with branching uses the general
// one. The reaper (may be nil) collects background children.
func Build(line *parser.CommandLine, r *Reaper) (Node, error) {
	if canOptimize(line) {
		return buildOptimized(line, r)
	}
	return buildGraph(line, r)
}
