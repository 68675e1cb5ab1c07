// Package opcodes defines the bytecode instruction set executed by the
// vesper virtual machine (vm.Machine) and emitted by the code generator
// (compiler.Generator).
package opcodes

import "fmt"

// Op identifies one VM instruction.
type Op byte

const (
	OpNop Op = iota

	// Arithmetic / unary
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpPow
	OpConcat
	OpPlus
	OpMinus
	OpNot
	OpBitNot
	OpBitAnd
	OpBitOr
	OpBitXor
	OpShl
	OpShr
	OpPreIncr
	OpPreDecr
	OpPostIncr
	OpPostDecr

	// Comparison
	OpEq
	OpNeq
	OpIdentical
	OpNotIdentical
	OpLt
	OpLe
	OpGt
	OpGe
	OpSpaceship
	OpInstanceof
	OpBoolAnd // logical AND keeping short-circuit semantics at the call site
	OpBoolOr
	OpLogicalXor

	// Control flow
	OpJmp
	OpJz  // pop, jump if falsy
	OpJnz // pop, jump if truthy
	OpJzKeep  // peek, jump if falsy, else pop (&&)
	OpJnzKeep // peek, jump if truthy, else pop (||)
	OpCase        // compare top-of-stack to selector without popping selector
	OpSwitch      // interpret a switch descriptor (P3) against the popped selector
	OpThrow
	OpPushExceptionFrame // LOAD_EXCEPTION
	OpPopExceptionFrame  // POP_EXCEPTION
	OpForeachInit
	OpForeachStep
	OpForeachFree
	OpCast // P1 = target type tag
	OpToBool

	// Loads
	OpLoad       // load local by slot (P1)
	OpLoadConst  // load constant pool entry (P1)
	OpLoadIdx    // pop index, pop base, push base[index]; P1=1: append-position read (null), P1=2: lvalue-base read that vivifies the missing entry
	OpLoadMap    // build an ordered-map literal from P1 elements on the stack; P3 = []bool spread flags per element (true: one value slot to flatten, false: key+value slots)
	OpLoadList   // destructuring target marker; see compiler notes
	OpLoadClosure // materialize a closure value from function P3
	OpLoadRef    // push a reference to local slot P1
	OpLoadGlobal // push the named global; P1=1: name popped from stack (variable variables), else P3 = interned name
	OpLoadThis   // push the current frame's bound instance ($this), or null outside a method call
	OpFetchConst // push a named constant (P3 = name); falls back to the bareword itself, with a notice, when undefined

	// Stores. Every store pops the value being assigned, writes a clone of
	// it into the target, and pushes that same clone back so assignment
	// can be used as an expression (`$a = $b = 1;`, `echo $x = f();`).
	OpStore        // pop value, store into local slot P1, push clone back
	OpStoreIdx     // pop value, pop index, pop base; base[index] = value (auto-vivifies base if null)
	OpStoreIdxRef  // like StoreIdx, but value is a reference (no clone)
	OpStoreRef     // pop value, make local slot P1 alias value's slot
	OpStoreGlobal  // pop value, store into named global; P1 bit0 set: name popped from stack instead of P3
	OpStoreMember  // pop value, pop object/class, store ->member or ::member; P1 bit0: static, bit1: name on stack (P3 string otherwise)
	OpAssignOp     // compound assignment on local slot P1; P3 = sub-opcode (Add, Sub, ...)
	OpAssignDimOp  // compound assignment into base[index]; P3 = sub-opcode

	// Variable fetch / scoping
	OpFetchUplink // GLOBAL statement: alias local slot P1 (P3 = name) to the same-named global
	OpBindStatic  // bind local slot P1 (P3 = name) to its persistent static-variable cell, running the owning Function's StaticInit[name] chunk on first call

	// OpUnset/OpIsset address one isset()/unset() target. P1 selects the
	// target kind and what, if anything, sits on the stack beneath it:
	//   P1 >= 0: local slot P1, nothing on stack.
	//   P1 == -1: array subscript; stack holds [base, index].
	//   P1 == -2: instance member, fixed name; stack holds [object], P3 = name.
	//   P1 == -3: instance member, dynamic name; stack holds [object, name].
	//   P1 == -4: static member, fixed name; stack holds [class], P3 = name.
	//   P1 == -5: static member, dynamic name; stack holds [class, name].
	// OpIsset pushes a bool; OpUnset pushes nothing.
	OpUnset
	OpIsset

	// Function / OO
	OpCall       // pop args described by P3 (*CallDesc); callee value sits beneath them on the stack unless CallDesc.Name is set
	OpCallMethod // pop args described by P3 (*CallDesc); receiver sits beneath them
	OpNew        // pop args described by P3 (*CallDesc, Name = class name, or "" when the class value sits beneath the args)
	OpClone
	OpFetchMember  // resolve ->member or ::member; P1 bit0: static, bit1: nullsafe, bit2: name popped from stack (P3 string otherwise)
	OpFetchClassConst
	OpDeclFunction
	OpDeclClass
	OpDeclConst // pop value, register it as a named global constant (P3 = name)

	// Stack / misc
	OpPop
	OpDup
	OpSwap
	OpConsume // emit top-of-stack to the active output sink (echo / inline HTML)
	OpReturn
	OpHalt
	OpErrSuppressBegin
	OpErrSuppressEnd
)

var names = map[Op]string{
	OpNop: "NOP", OpAdd: "ADD", OpSub: "SUB", OpMul: "MUL", OpDiv: "DIV", OpMod: "MOD", OpPow: "POW",
	OpConcat: "CONCAT", OpPlus: "UPLUS", OpMinus: "UMINUS", OpNot: "LNOT", OpBitNot: "BITNOT",
	OpBitAnd: "BAND", OpBitOr: "BOR", OpBitXor: "BXOR", OpShl: "SHL", OpShr: "SHR",
	OpPreIncr: "PRE_INCR", OpPreDecr: "PRE_DECR", OpPostIncr: "POST_INCR", OpPostDecr: "POST_DECR",
	OpEq: "EQ", OpNeq: "NEQ", OpIdentical: "SEQ", OpNotIdentical: "SNE",
	OpLt: "LT", OpLe: "LE", OpGt: "GT", OpGe: "GE", OpSpaceship: "SPACESHIP",
	OpInstanceof: "INSTANCEOF", OpBoolAnd: "LAND", OpBoolOr: "LOR", OpLogicalXor: "LXOR",
	OpJmp: "JMP", OpJz: "JZ", OpJnz: "JNZ", OpJzKeep: "JZ_KEEP", OpJnzKeep: "JNZ_KEEP",
	OpCase: "CASE", OpSwitch: "SWITCH", OpThrow: "THROW",
	OpPushExceptionFrame: "LOAD_EXCEPTION", OpPopExceptionFrame: "POP_EXCEPTION",
	OpForeachInit: "FE_RESET", OpForeachStep: "FE_FETCH", OpForeachFree: "FE_FREE",
	OpCast: "CAST", OpToBool: "BOOL",
	OpLoad: "LOAD", OpLoadConst: "LOADC", OpLoadIdx: "LOAD_IDX", OpLoadMap: "LOAD_MAP",
	OpLoadList: "LOAD_LIST", OpLoadClosure: "LOAD_CLOSURE", OpLoadRef: "LOAD_REF", OpLoadGlobal: "LOAD_GLOBAL",
	OpLoadThis: "LOAD_THIS",
	OpFetchConst: "FETCH_CONST",
	OpStore: "STORE", OpStoreIdx: "STORE_IDX", OpStoreIdxRef: "STORE_IDX_REF", OpStoreRef: "STORE_REF",
	OpStoreGlobal: "STORE_GLOBAL", OpStoreMember: "STORE_MEMBER",
	OpAssignOp: "ASSIGN_OP", OpAssignDimOp: "ASSIGN_DIM_OP",
	OpFetchUplink: "UPLINK", OpBindStatic: "BIND_STATIC", OpUnset: "UNSET", OpIsset: "ISSET",
	OpCall: "CALL", OpCallMethod: "CALL_METHOD", OpNew: "NEW", OpClone: "CLONE",
	OpFetchMember: "MEMBER", OpFetchClassConst: "CLASS_CONST",
	OpDeclFunction: "DECL_FUNC", OpDeclClass: "DECL_CLASS", OpDeclConst: "DECL_CONST",
	OpPop: "POP", OpDup: "DUP", OpSwap: "SWAP", OpConsume: "CONSUME",
	OpReturn: "DONE", OpHalt: "HALT", OpErrSuppressBegin: "ERR_CTRL_BEGIN", OpErrSuppressEnd: "ERR_CTRL_END",
}

func (o Op) String() string {
	if n, ok := names[o]; ok {
		return n
	}
	return fmt.Sprintf("OP(%d)", byte(o))
}

// CastKind enumerates the target type of OpCast.
type CastKind byte

const (
	CastInt CastKind = iota
	CastFloat
	CastString
	CastBool
	CastArray
	CastObject
	CastNull
)

// Instruction is one bytecode operation. P2 is the operand jump fix-ups
// patch; P1 and P3 are never rewritten once emitted.
type Instruction struct {
	Op   Op
	P1   int         // small integer operand (arg count, slot, sub-opcode, cast kind...)
	P2   uint32      // jump target (instruction index) for control-flow ops
	P3   interface{} // descriptor: string (name), *SwitchDesc, *ForeachDesc, *ExceptionDesc, *ClosureDesc
	Line int
}

// SwitchDesc is the P3 payload of OpSwitch: one embedded chunk per case,
// executed with the selector re-pushed, compared loosely, and jumped to the
// case body on match.
type SwitchDesc struct {
	Cases      []SwitchCase
	DefaultIdx int // index into Cases, or -1
	OutIP      uint32
}

// SwitchCase is one `case expr:` arm.
type SwitchCase struct {
	Expr  []Instruction // evaluates the case expression, leaving it on the stack
	Start uint32        // instruction index of the case body
}

// ForeachDesc is the P3 payload of OpForeachInit/OpForeachStep.
type ForeachDesc struct {
	KeySlot   int // -1 if no key binding
	ValueSlot int
	ByRef     bool
}

// ExceptionDesc is the P3 payload of OpPushExceptionFrame.
type ExceptionDesc struct {
	Catches []CatchDesc
	Finally []Instruction // embedded `finally` body, run on every exit path; nil if absent
	EndIP   uint32        // instruction after the protected region + its catches
}

// CatchDesc is one `catch (Type $var) { ... }` clause.
type CatchDesc struct {
	ClassNames []string
	VarSlot    int // -1 if the exception is not bound to a variable
	Body       []Instruction
}

// CallDesc is the P3 payload of OpCall/OpCallMethod/OpNew: everything
// about one call site the VM needs beyond the stacked argument values
// themselves.
type CallDesc struct {
	ArgCount    int
	SpreadLast  bool // last argument is a `...$args` spread, flattened at call time
	Name        string // callee/method name when statically known; "" when dynamic
	NameOnStack bool   // method name was itself an expression, popped just above the args
	Static      bool   // Class::method(...) rather than $obj->method(...)
}

// ClosureDesc is the P3 payload of OpLoadClosure.
type ClosureDesc struct {
	FunctionName string
	Uses         []ClosureUse
}

// ClosureUse is one `use (...)` capture.
type ClosureUse struct {
	Name  string
	Slot  int
	ByRef bool
}
