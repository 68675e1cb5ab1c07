// Package compiler lowers an ast.Node tree into opcodes.Instruction
// streams: the single-pass code generator. It manages
// lexical scopes (the Block stack), forward-jump fix-ups, per-function
// local-variable slots, the program-wide constant pool, and declares
// functions/classes into a registry.Registry as it encounters them.
package compiler

import (
	"strings"

	"github.com/vesper-lang/vesper/errors"
	"github.com/vesper-lang/vesper/lexer"
	"github.com/vesper-lang/vesper/opcodes"
	"github.com/vesper-lang/vesper/registry"
	"github.com/vesper-lang/vesper/values"
)

// Chunk is the finished bytecode for the global scope: the
// top-level instruction container: the global scope's compiled code.
type Chunk struct {
	Code      []opcodes.Instruction
	NumLocals int
	VarSlots  map[string]int

	// StaticInit holds the initializer chunks of `static` variables
	// declared at the global scope; function-local statics live on their
	// registry.Function instead.
	StaticInit map[string][]opcodes.Instruction
}

// Program is the result of one Compile call: the global chunk plus the
// populated registry of functions/classes/constants it declared.
type Program struct {
	Global *Chunk
	Reg    *registry.Registry
	Consts []*values.Value
}

// blockKind tags one entry of the compile-time block stack.
type blockKind byte

const (
	blockFunc blockKind = iota // sentinel: break/continue/goto stop here
	blockLoop
	blockSwitch
)

// cblock is one lexical scope on the compile-time block stack, carrying
// the forward-jump fix-up lists break/continue/goto need.
type cblock struct {
	kind           blockKind
	breakFixups    []int
	continueFixups []int
	continueIP     uint32
	haveContinueIP bool
}

// pendingGoto is an unresolved forward goto, recorded against the
// owning function/global scope and drained when that scope ends.
type pendingGoto struct {
	instrIdx int
	label    string
	pos      lexer.Position
}

// scope holds the codegen state for one InstructionContainer: a
// function body, a method body, the global scope, or a closure body.
// Exactly one scope is active ("cur") at a time; compiling a nested
// function pushes a fresh scope and restores the outer one afterward.
type scope struct {
	code    []opcodes.Instruction
	vars    map[string]int
	nextVar int
	blocks  []*cblock

	labels           map[string]uint32
	declaredLabels   map[string]lexer.Position
	referencedLabels map[string]bool
	pendingGotos     []pendingGoto

	staticInit map[string][]opcodes.Instruction
}

func newScope() *scope {
	return &scope{
		vars:             make(map[string]int),
		labels:           make(map[string]uint32),
		declaredLabels:   make(map[string]lexer.Position),
		referencedLabels: make(map[string]bool),
		staticInit:       make(map[string][]opcodes.Instruction),
	}
}

// Generator is the single-pass code generator. One Generator compiles
// one whole program (all chunks share its constant pool and registry).
type Generator struct {
	file string
	bag  *errors.Bag
	reg  *registry.Registry

	consts      []*values.Value
	strConstIdx map[string]int

	cur        *scope
	classCtx   *values.Class // lexically enclosing class, for self::/parent::
	classStack []*values.Class
}

// New creates a Generator with the three reserved constant-pool slots
// (null, true, false) pre-seeded.
func New(file string, bag *errors.Bag, reg *registry.Registry) *Generator {
	g := &Generator{
		file:        file,
		bag:         bag,
		reg:         reg,
		strConstIdx: make(map[string]int),
	}
	g.consts = append(g.consts, values.Null(), values.Bool(true), values.Bool(false))
	return g
}

func (g *Generator) errorf(pos lexer.Position, format string, args ...interface{}) {
	g.bag.Report(errors.New(errors.KindError, g.file, errors.Position{Line: pos.Line, Column: pos.Column}, format, args...))
}

func (g *Generator) noticef(pos lexer.Position, format string, args ...interface{}) {
	g.bag.Report(errors.New(errors.KindNotice, g.file, errors.Position{Line: pos.Line, Column: pos.Column}, format, args...))
}

// --- constant pool ---

func (g *Generator) constIndex(v *values.Value) int {
	g.consts = append(g.consts, v)
	return len(g.consts) - 1
}

// internString returns the shared constant-pool slot for a string
// literal, creating one on first sight.
func (g *Generator) internString(s string) int {
	if idx, ok := g.strConstIdx[s]; ok {
		return idx
	}
	idx := g.constIndex(values.String(s))
	g.strConstIdx[s] = idx
	return idx
}

const (
	constNull  = 0
	constTrue  = 1
	constFalse = 2
)

// --- instruction emission ---

func (g *Generator) emit(op opcodes.Op, p1 int, p3 interface{}, line int) int {
	g.cur.code = append(g.cur.code, opcodes.Instruction{Op: op, P1: p1, P3: p3, Line: line})
	return len(g.cur.code) - 1
}

func (g *Generator) ip() uint32 { return uint32(len(g.cur.code)) }

func (g *Generator) patch(idx int, target uint32) {
	g.cur.code[idx].P2 = target
}

// --- scope / variable management ---

// pushScope begins compiling a nested InstructionContainer (a function,
// method, or closure body), saving the caller's scope to be restored by
// popScope.
func (g *Generator) pushScope() *scope {
	prev := g.cur
	g.cur = newScope()
	g.cur.blocks = append(g.cur.blocks, &cblock{kind: blockFunc})
	return prev
}

func (g *Generator) popScope(prev *scope) *scope {
	finished := g.cur
	g.resolveGotos(finished)
	g.cur = prev
	return finished
}

func (g *Generator) resolveVar(name string) int {
	if idx, ok := g.cur.vars[name]; ok {
		return idx
	}
	idx := g.cur.nextVar
	g.cur.nextVar++
	g.cur.vars[name] = idx
	return idx
}

// --- block stack / break-continue fix-ups ---

func (g *Generator) pushBlock(kind blockKind) *cblock {
	b := &cblock{kind: kind}
	g.cur.blocks = append(g.cur.blocks, b)
	return b
}

// popBlock patches every recorded break to the current IP (the
// instruction right after the loop/switch) and every recorded continue
// to the block's continueIP (defaulting to the same end-IP, which is
// exactly the "continue behaves like break" rule for a switch block).
func (g *Generator) popBlock() {
	b := g.cur.blocks[len(g.cur.blocks)-1]
	g.cur.blocks = g.cur.blocks[:len(g.cur.blocks)-1]
	end := g.ip()
	for _, idx := range b.breakFixups {
		g.patch(idx, end)
	}
	target := end
	if b.haveContinueIP {
		target = b.continueIP
	}
	for _, idx := range b.continueFixups {
		g.patch(idx, target)
	}
}

func (g *Generator) setContinueIP(b *cblock, ip uint32) {
	b.continueIP = ip
	b.haveContinueIP = true
}

// findLoopOrSwitch walks the block stack from innermost outward for the
// `level`-th loop/switch block, stopping at a function boundary (a
// function block hides everything above it from break/continue, per
// scope).
func (g *Generator) findLoopOrSwitch(level int) *cblock {
	n := 0
	for i := len(g.cur.blocks) - 1; i >= 0; i-- {
		b := g.cur.blocks[i]
		if b.kind == blockFunc {
			return nil
		}
		if b.kind == blockLoop || b.kind == blockSwitch {
			n++
			if n == level {
				return b
			}
		}
	}
	return nil
}

func (g *Generator) compileBreak(level int, pos lexer.Position) {
	b := g.findLoopOrSwitch(level)
	if b == nil {
		g.errorf(pos, "cannot break %d level(s)", level)
		return
	}
	idx := g.emit(opcodes.OpJmp, 0, nil, pos.Line)
	b.breakFixups = append(b.breakFixups, idx)
}

// compileContinue: a `continue` whose nearest enclosing block is a
// switch behaves like break.
func (g *Generator) compileContinue(level int, pos lexer.Position) {
	b := g.findLoopOrSwitch(level)
	if b == nil {
		g.errorf(pos, "cannot continue %d level(s)", level)
		return
	}
	idx := g.emit(opcodes.OpJmp, 0, nil, pos.Line)
	if b.kind == blockSwitch {
		b.breakFixups = append(b.breakFixups, idx)
	} else {
		b.continueFixups = append(b.continueFixups, idx)
	}
}

// --- goto / label resolution ---

func (g *Generator) compileLabel(name string, pos lexer.Position) {
	if _, dup := g.cur.declaredLabels[name]; dup {
		g.errorf(pos, "label %q already declared", name)
		return
	}
	g.cur.declaredLabels[name] = pos
	g.cur.labels[name] = g.ip()
}

func (g *Generator) compileGoto(name string, pos lexer.Position) {
	g.cur.referencedLabels[name] = true
	idx := g.emit(opcodes.OpJmp, 0, nil, pos.Line)
	g.cur.pendingGotos = append(g.cur.pendingGotos, pendingGoto{instrIdx: idx, label: name, pos: pos})
}

// resolveGotos drains s's pending gotos against its declared labels,
// reporting every label referenced by name but never declared, and
// every label declared but never referenced ("Jump
// fix-up"). It operates on a finished scope, so it patches into
// s.code directly rather than through g.cur.
func (g *Generator) resolveGotos(s *scope) {
	for _, pg := range s.pendingGotos {
		target, ok := s.labels[pg.label]
		if !ok {
			g.errorf(pg.pos, "goto to undefined label %q", pg.label)
			continue
		}
		s.code[pg.instrIdx].P2 = target
	}
	for name, pos := range s.declaredLabels {
		if !s.referencedLabels[name] {
			g.noticef(pos, "label %q is never used", name)
		}
	}
}

// --- string helpers ---

func lowerName(s string) string { return strings.ToLower(s) }
