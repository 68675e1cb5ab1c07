package vm

import (
	"io"
	"strings"
)

// outputSink is a stack of writers the CONSUME opcode (echo / inline
// HTML) targets. Only the top entry is ever written to; pushing a
// buffering sink is how ob_start-style output capture is implemented.
// The error-suppression operator does not use it: it works through
// Machine.suppressErrors.
type outputSink struct {
	writers []io.Writer
}

func newOutputSink(w io.Writer) *outputSink {
	return &outputSink{writers: []io.Writer{w}}
}

func (o *outputSink) Write(s string) {
	io.WriteString(o.writers[len(o.writers)-1], s)
}

// pushBuffer starts capturing output into a fresh strings.Builder,
// returning it so the caller can read back what was written once popped.
func (o *outputSink) pushBuffer() *strings.Builder {
	var b strings.Builder
	o.writers = append(o.writers, &b)
	return &b
}

// pop removes the top buffer and flushes what it captured into the sink
// below it.
func (o *outputSink) pop() {
	if len(o.writers) <= 1 {
		return
	}
	top := o.writers[len(o.writers)-1]
	o.writers = o.writers[:len(o.writers)-1]
	if b, ok := top.(*strings.Builder); ok {
		io.WriteString(o.writers[len(o.writers)-1], b.String())
	}
}
