package shell

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syskit/syskit/shell/parser"
)

// parseLine runs input through the parser and returns the single line.
func parseLine(t *testing.T, input string) *parser.CommandLine {
	t.Helper()
	p := parser.New()
	p.Feed([]byte(input))
	line, err := p.PopNext()
	require.NoError(t, err)
	require.NotNil(t, line)
	return line
}

func build(t *testing.T, input string) Node {
	t.Helper()
	node, err := Build(parseLine(t, input), nil)
	require.NoError(t, err)
	return node
}

func TestBuildSingleCommand(t *testing.T) {
	node := build(t, "echo hi > out.txt &\n")
	cmd, ok := node.(*Command)
	require.True(t, ok)
	assert.Equal(t, "echo", cmd.Exe)
	assert.Equal(t, []string{"hi"}, cmd.Args)
	assert.Equal(t, parser.OutputFileNew, cmd.OutType)
	assert.Equal(t, "out.txt", cmd.OutFile)
	assert.True(t, cmd.Background)
}

func TestBuildPipeChainLeftLeaning(t *testing.T) {
	node := build(t, "a | b | c\n")
	outer, ok := node.(*Pipe)
	require.True(t, ok)
	inner, ok := outer.Left.(*Pipe)
	require.True(t, ok)
	assert.Equal(t, "a", inner.Left.(*Command).Exe)
	assert.Equal(t, "b", inner.Right.(*Command).Exe)
	assert.Equal(t, "c", outer.Right.(*Command).Exe)
}

// Only the final command of a pipeline carries the line-level redirection.
func TestBuildFinalCommandOwnsRedirection(t *testing.T) {
	node := build(t, "a | b > out.txt\n")
	pipe := node.(*Pipe)
	assert.Equal(t, parser.OutputStdout, pipe.Left.(*Command).OutType)
	assert.Equal(t, parser.OutputFileNew, pipe.Right.(*Command).OutType)
	assert.Equal(t, "out.txt", pipe.Right.(*Command).OutFile)
}

func TestBuildBranchChainLeftLeaning(t *testing.T) {
	node := build(t, "a && b || c\n")
	outer, ok := node.(*Branch)
	require.True(t, ok)
	assert.True(t, outer.ExecuteOnFail)
	assert.Equal(t, "c", outer.Right.(*Command).Exe)

	inner, ok := outer.Left.(*Branch)
	require.True(t, ok)
	assert.False(t, inner.ExecuteOnFail)
	assert.Equal(t, "a", inner.Left.(*Command).Exe)
	assert.Equal(t, "b", inner.Right.(*Command).Exe)
}

func TestBuildPipeInsideBranch(t *testing.T) {
	node := build(t, "a | b && c\n")
	branch, ok := node.(*Branch)
	require.True(t, ok)
	pipe, ok := branch.Left.(*Pipe)
	require.True(t, ok)
	assert.Equal(t, "a", pipe.Left.(*Command).Exe)
	assert.Equal(t, "b", pipe.Right.(*Command).Exe)
	assert.Equal(t, "c", branch.Right.(*Command).Exe)
}

// The optimizer drops an idempotent filter equal to the command two
// expression positions back, collapsing cat | cat | cat to cat | cat.
func TestOptimizerDropsAdjacentIdempotentDuplicates(t *testing.T) {
	node := build(t, "cat | cat | cat\n")
	pipe, ok := node.(*Pipe)
	require.True(t, ok)
	_, ok = pipe.Left.(*Command)
	assert.True(t, ok, "three cats collapse to a single pipe")
	_, ok = pipe.Right.(*Command)
	assert.True(t, ok)
}

func TestOptimizerKeepsNonIdempotent(t *testing.T) {
	node := build(t, "wc | wc | wc\n")
	outer, ok := node.(*Pipe)
	require.True(t, ok)
	_, ok = outer.Left.(*Pipe)
	assert.True(t, ok, "wc is not in the idempotent set")
}

func TestOptimizerKeepsDifferentArgs(t *testing.T) {
	node := build(t, "grep a | grep b | grep a\n")
	outer, ok := node.(*Pipe)
	require.True(t, ok)
	_, ok = outer.Left.(*Pipe)
	assert.True(t, ok, "different argument lists are not duplicates")
}

// The final command never gets dropped, even as a duplicate; interior
// duplicates two expression positions back do.
func TestOptimizerKeepsFinalDuplicate(t *testing.T) {
	node := build(t, "grep x | grep x\n")
	pipe, ok := node.(*Pipe)
	require.True(t, ok)
	assert.Equal(t, "grep", pipe.Left.(*Command).Exe)
	assert.Equal(t, "grep", pipe.Right.(*Command).Exe)

	node = build(t, "grep x | grep x | grep y\n")
	pipe, ok = node.(*Pipe)
	require.True(t, ok)
	_, ok = pipe.Left.(*Command)
	assert.True(t, ok, "interior duplicate dropped")
	assert.Equal(t, "y", pipe.Right.(*Command).Args[0])
}

// Branching disables the optimizer entirely.
func TestOptimizerSkippedWithBranches(t *testing.T) {
	node := build(t, "cat | cat | cat && echo done\n")
	branch, ok := node.(*Branch)
	require.True(t, ok)
	outer, ok := branch.Left.(*Pipe)
	require.True(t, ok)
	_, ok = outer.Left.(*Pipe)
	assert.True(t, ok, "all three cats survive under a branch")
}
