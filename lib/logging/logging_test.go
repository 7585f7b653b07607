package logging

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stringer struct{}

func (stringer) String() string { return "thing" }

func TestSetLevel(t *testing.T) {
	assert.NoError(t, SetLevel("debug"))
	assert.NoError(t, SetLevel("info"))
	assert.Error(t, SetLevel("potato"))
}

func TestPrefix(t *testing.T) {
	assert.Equal(t, "hello", prefix(nil, "hello"))
	assert.Equal(t, "thing: hello", prefix(stringer{}, "hello"))
}

func TestOutput(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)
	require.NoError(t, SetLevel("debug"))
	defer func() { require.NoError(t, SetLevel("info")) }()

	Debugf(stringer{}, "count=%d", 17)
	assert.Contains(t, buf.String(), "thing: count=17")

	buf.Reset()
	require.NoError(t, SetLevel("info"))
	Debugf(stringer{}, "should be suppressed")
	assert.Empty(t, buf.String())

	Errorf(nil, "boom")
	assert.Contains(t, buf.String(), "boom")
}
