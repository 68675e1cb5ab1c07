// Package vm implements the stack-based bytecode executor: the linear
// dispatch loop over an opcodes.Instruction stream, the VM-wide value
// pool, the call-frame stack, and the glue between the compiler's
// registry.Registry and the running program.
package vm

import (
	"fmt"
	"io"
	"math/rand"
	"strings"

	"github.com/vesper-lang/vesper/compiler"
	"github.com/vesper-lang/vesper/errors"
	"github.com/vesper-lang/vesper/opcodes"
	"github.com/vesper-lang/vesper/registry"
	"github.com/vesper-lang/vesper/values"
)

// DefaultMaxRecursionDepth bounds nested user-function calls; exceeding
// it raises a recoverable Error rather than overflowing the Go stack.
const DefaultMaxRecursionDepth = 512

// Config configures one Machine: max recursion depth, output consumer,
// argv, and the error-reporting mask. The zero Config is usable: output
// is discarded (io.Discard) and the depth limit is DefaultMaxRecursionDepth.
type Config struct {
	MaxRecursionDepth int
	Output            io.Writer
	Argv              []string
	ErrorReportMask   errors.Kind // diagnostics below this Kind are swallowed; KindNotice (0) reports everything
}

// Frame is one active invocation's call frame. Locals are
// addressed indirectly through the VM's value pool so that by-reference
// binding (OpStoreRef/OpLoadRef, GLOBAL, closure `use (&$x)`) can alias
// two frame slots, possibly across two different frames, to the same
// pool cell.
type Frame struct {
	fn    *registry.Function // nil for the global frame
	slots []int              // local slot index -> pool index
	this  *values.Object     // bound instance ($this), nil outside a method call
	class *values.Class      // self:: context: the declaring/instance class

	// borrowed marks slots aliased to storage this frame does not own
	// (globals via UPLINK, static cells, by-ref arguments and captures);
	// frame exit releases and recycles only unborrowed cells.
	borrowed map[int]bool

	// statics/staticInit back `static` variables declared at the global
	// scope, where there is no registry.Function to hang the persistent
	// cell and its initializer on.
	statics    map[string]int
	staticInit map[string][]opcodes.Instruction
}

func (f *Frame) ensure(m *Machine, slot int) int {
	for len(f.slots) <= slot {
		f.slots = append(f.slots, m.alloc())
	}
	return f.slots[slot]
}

// foreachState is one live FOREACH_INIT/STEP iteration.
type foreachState struct {
	arr     *values.OrderedMap
	entries []values.Key // snapshot of keys at init time, so appends during iteration don't perturb it (mirrors the cursor being insertion-order based)
	pos     int

	// by-reference iteration write-back: the array stores plain *Value
	// entries, not pool-indexed cells, so `foreach ($a as &$v)` writes
	// the loop variable's pool slot back into lastKey's entry at the
	// start of the next Step; FE_FREE performs the same flush so an
	// early break keeps the final iteration's mutation.
	hasLast bool
	lastKey values.Key
}

// activeExc is one installed try/catch/finally region, tracked per-
// execCode-invocation on a Go slice used as a stack: pushed by
// OpPushExceptionFrame, popped by OpPopExceptionFrame on normal exit or
// by handleThrow when a throw unwinds through it. stackDepth records the
// operand stack's height at installation time, so a catch that fires
// truncates the stack back to exactly that point regardless of how deep
// the protected region pushed it.
type activeExc struct {
	desc       *opcodes.ExceptionDesc
	stackDepth int
}

// execSignal distinguishes why execCode returned: sigReturn for an
// explicit return, sigNone for a fall-through (the value is whatever sits
// on top of the operand stack, or null if it's empty). Catch handling
// uses it to forward a `return` executed inside a catch body; the other
// callers use only the value.
type execSignal int

const (
	sigNone execSignal = iota
	sigReturn
)

// haltSignal is the error value `exit`/`die` propagates up through
// every nested execCode call to Run, which reports it as a normal
// termination rather than an uncaught-exception fatal.
type haltSignal struct{}

func (h *haltSignal) Error() string { return "exit" }

// alias makes frame.slots[slot] point at poolIdx instead of whatever
// pool cell it held before, releasing the old cell's value and freeing
// the cell back to the pool. Shared by GLOBAL, closure `use (&$x)`,
// static-variable binding, and by-reference argument passing: every
// place two names need to become one storage cell. The slot is marked
// borrowed, so frame exit leaves the shared cell alone.
func (f *Frame) alias(m *Machine, slot, poolIdx int) {
	old := f.ensure(m, slot)
	if old == poolIdx {
		return
	}
	m.releaseValue(m.pool[old])
	m.pool[old] = values.Null()
	m.free = append(m.free, old)
	f.slots[slot] = poolIdx
	if f.borrowed == nil {
		f.borrowed = make(map[int]bool)
	}
	f.borrowed[slot] = true
}

// Machine is one running VM bound to exactly one compiled script.
// Distinct Machines may run on distinct goroutines with no shared
// mutable state beyond what Config/Registry choose to share.
type Machine struct {
	File string
	Reg  *registry.Registry
	Bag  *errors.Bag

	consts []*values.Value
	sink   *outputSink

	pool []*values.Value
	free []int

	pinned map[int]bool // pool cells captured by reference into a closure; never recycled at frame exit

	// allocated is the VM's object allocation list: every instance the
	// executor creates, in creation order. Program end walks it and
	// destructs whatever the reference counts did not already reclaim
	// (cycles, array-held instances), instead of running a tracing GC.
	allocated []*values.Object

	globals map[string]int // global variable name -> pool index, shared by UPLINK and variable-variables

	classStack []*values.Class // for `static::` late static binding

	rng *rand.Rand

	depth    int
	maxDepth int

	argv            []string
	outputByteCount int64

	reportMask     errors.Kind // runtime diagnostics below this kind are swallowed
	suppressErrors int         // >0 while inside an @expr (ERR_CTRL)
}

// New builds a Machine ready to Run a compiler.Program sharing the same
// Reg the program was compiled against (so host-registered
// functions/classes/constants are visible).
func New(file string, reg *registry.Registry, bag *errors.Bag, cfg Config) *Machine {
	if cfg.MaxRecursionDepth <= 0 {
		cfg.MaxRecursionDepth = DefaultMaxRecursionDepth
	}
	var w io.Writer = io.Discard
	if cfg.Output != nil {
		w = cfg.Output
	}
	return &Machine{
		File:     file,
		Reg:      reg,
		Bag:      bag,
		sink:     newOutputSink(w),
		globals:  make(map[string]int),
		pinned:   make(map[int]bool),
		rng:      rand.New(rand.NewSource(1)),
		maxDepth: cfg.MaxRecursionDepth,
		argv:     cfg.Argv,
		reportMask: cfg.ErrorReportMask,
	}
}

func (m *Machine) alloc() int {
	if n := len(m.free); n > 0 {
		idx := m.free[n-1]
		m.free = m.free[:n-1]
		m.pool[idx] = values.Null()
		return idx
	}
	m.pool = append(m.pool, values.Null())
	return len(m.pool) - 1
}

// Write implements registry.Host for BuiltinImplementation callbacks.
func (m *Machine) Write(s string) {
	m.sink.Write(s)
	m.outputByteCount += int64(len(s))
}

func (m *Machine) NewArray() *values.Value            { return values.NewArray() }
func (m *Machine) NewObject(c *values.Class) *values.Value { return values.NewObject(c) }

// OutputByteCount is the running total of bytes CONSUME has written.
func (m *Machine) OutputByteCount() int64 { return m.outputByteCount }

// PushOutputBuffer/PopOutputBuffer implement the output-buffering stack
// (ob_start/ob_get_clean).
func (m *Machine) PushOutputBuffer() *strings.Builder { return m.sink.pushBuffer() }
func (m *Machine) PopOutputBuffer()                   { m.sink.pop() }

// Run executes prog's global Chunk in the machine. It is the single public entry point; the
// compile step itself is compiler.Compile, run ahead of this.
func (m *Machine) Run(prog *compiler.Program) error {
	m.consts = prog.Consts

	frame := m.newGlobalFrame(prog.Global)
	_, sig, err := m.execCode(prog.Global.Code, frame)
	if err != nil {
		if _, ok := err.(*haltSignal); ok {
			m.finalize()
			return nil
		}
		if te, ok := err.(*ThrownException); ok {
			m.reportFatal(te)
			m.finalize()
			return te
		}
		m.reportFatal(err)
		m.finalize()
		return err
	}
	_ = sig
	m.finalize()
	return nil
}

// finalize runs program-end cleanup: every object on the allocation
// list that the reference counts did not already destruct gets its
// __destruct dispatched now, in allocation order.
func (m *Machine) finalize() {
	for _, o := range m.allocated {
		if !o.Destructed {
			m.runDestructor(o)
		}
	}
	m.allocated = nil
}

// newGlobalFrame seeds the VM's named-global table from the compiled
// chunk's local-variable slots, so every top-level `$x` is, from the
// moment the script starts, simultaneously a local slot (for fast access
// from the global chunk itself) and a named global (for GLOBAL/variable-
// variable access from inside a function).
func (m *Machine) newGlobalFrame(chunk *compiler.Chunk) *Frame {
	slotOf := make([]int, chunk.NumLocals)
	nameOf := make([]string, chunk.NumLocals)
	for name, slot := range chunk.VarSlots {
		nameOf[slot] = name
	}
	for i := 0; i < chunk.NumLocals; i++ {
		idx := m.alloc()
		slotOf[i] = idx
		if nameOf[i] != "" {
			m.globals[nameOf[i]] = idx
		}
	}
	return &Frame{slots: slotOf, staticInit: chunk.StaticInit}
}

func (m *Machine) errorf(line int, format string, args ...interface{}) {
	if m.suppressErrors > 0 || m.reportMask > errors.KindWarning {
		return
	}
	m.Bag.Report(errors.New(errors.KindWarning, m.File, errors.Position{Line: line}, format, args...))
}

func (m *Machine) noticef(line int, format string, args ...interface{}) {
	if m.suppressErrors > 0 || m.reportMask > errors.KindNotice {
		return
	}
	m.Bag.Report(errors.New(errors.KindNotice, m.File, errors.Position{Line: line}, format, args...))
}

// keyFromValue canonicalizes a dynamic value used as an array subscript
// into a values.Key, the same way a string literal key is canonicalized
// at compile time by the (unexported) helper in package compiler.
func keyFromValue(v *values.Value) values.Key {
	if v == nil {
		return values.NewKey("")
	}
	switch v.Type {
	case values.TypeInt:
		return values.IntKey(v.ToInt())
	case values.TypeBool:
		return values.IntKey(v.ToInt())
	case values.TypeFloat:
		return values.IntKey(v.ToInt())
	case values.TypeNull:
		return values.NewKey("")
	default:
		return values.NewKey(v.ToString())
	}
}

func fmtLine(l int) string { return fmt.Sprintf("%d", l) }
