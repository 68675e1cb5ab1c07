package vm

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vesper-lang/vesper/compiler"
	"github.com/vesper-lang/vesper/errors"
	"github.com/vesper-lang/vesper/registry"
)

func runSource(t *testing.T, src string, cfg Config) (*Machine, string, error) {
	t.Helper()
	var buf bytes.Buffer
	cfg.Output = &buf
	bag := errors.NewBag(nil)
	reg := registry.New()
	prog := compiler.Compile("test.vsp", src, bag, reg)
	require.False(t, bag.HasErrors(), "compile diagnostics: %v", bag.Diagnostics)
	m := New("test.vsp", reg, bag, cfg)
	err := m.Run(prog)
	return m, buf.String(), err
}

// The running output-byte counter matches what the default sink
// actually wrote.
func TestOutputByteCountTracksSink(t *testing.T) {
	m, out, err := runSource(t, `<?php echo "hello"; echo "!"; ?>`, Config{})
	require.NoError(t, err)
	assert.Equal(t, "hello!", out)
	assert.Equal(t, int64(len(out)), m.OutputByteCount())
}

// Output buffering: a pushed buffer captures CONSUME output until
// popped, at which point it flushes into the sink below it.
func TestOutputBufferStackCapturesAndFlushes(t *testing.T) {
	var buf bytes.Buffer
	bag := errors.NewBag(nil)
	reg := registry.New()
	prog := compiler.Compile("test.vsp", `<?php echo "a"; ?>`, bag, reg)
	require.False(t, bag.HasErrors())
	m := New("test.vsp", reg, bag, Config{Output: &buf})

	captured := m.PushOutputBuffer()
	require.NoError(t, m.Run(prog))
	assert.Equal(t, "a", captured.String())
	assert.Empty(t, buf.String(), "buffered output must not reach the sink until popped")

	m.PopOutputBuffer()
	assert.Equal(t, "a", buf.String(), "popping the buffer flushes into the sink below it")
}

// Unbounded recursion raises a recoverable error instead of overflowing
// the Go call stack.
func TestRecursionDepthIsBounded(t *testing.T) {
	_, _, err := runSource(t, `<?php function f(){ return f(); } f(); ?>`, Config{MaxRecursionDepth: 32})
	assert.Error(t, err)
}
