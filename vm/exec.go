package vm

import (
	"strings"

	"github.com/vesper-lang/vesper/opcodes"
	"github.com/vesper-lang/vesper/values"
)

// binarySymbols maps the flat two-operand opcodes onto the operator
// text values.BinaryFold already knows how to evaluate, so the
// compile-time constant folder (compiler.constFold) and the runtime
// executor share one arithmetic implementation.
var binarySymbols = map[opcodes.Op]string{
	opcodes.OpAdd: "+", opcodes.OpSub: "-", opcodes.OpMul: "*", opcodes.OpDiv: "/",
	opcodes.OpMod: "%", opcodes.OpPow: "**", opcodes.OpConcat: ".",
	opcodes.OpBitAnd: "&", opcodes.OpBitOr: "|", opcodes.OpBitXor: "^",
	opcodes.OpShl: "<<", opcodes.OpShr: ">>",
	opcodes.OpEq: "==", opcodes.OpNeq: "!=", opcodes.OpIdentical: "===", opcodes.OpNotIdentical: "!==",
	opcodes.OpLt: "<", opcodes.OpLe: "<=", opcodes.OpGt: ">", opcodes.OpGe: ">=",
	opcodes.OpSpaceship: "<=>",
}

func (m *Machine) execBinary(op opcodes.Op, a, b *values.Value, line int) (*values.Value, error) {
	sym := binarySymbols[op]
	if (sym == "/" || sym == "%") && b.ToFloat() == 0 {
		if sym == "%" {
			return nil, m.throwClass("DivisionByZeroError", "Modulo by zero")
		}
		return nil, m.throwClass("DivisionByZeroError", "Division by zero")
	}
	switch sym {
	case ".", "<", "<=", ">", ">=", "<=>":
		var err error
		a, err = m.stringifyOperand(a)
		if err != nil {
			return nil, err
		}
		b, err = m.stringifyOperand(b)
		if err != nil {
			return nil, err
		}
	}
	v, ok := values.BinaryFold(sym, a, b)
	if !ok {
		m.errorf(line, "unsupported operand types: %s %s %s", a.Type, sym, b.Type)
		return values.Null(), nil
	}
	return v, nil
}

func popN(stack *[]*values.Value) *values.Value {
	s := *stack
	v := s[len(s)-1]
	*stack = s[:len(s)-1]
	return v
}

func pushN(stack *[]*values.Value, v *values.Value) {
	*stack = append(*stack, v)
}

// execCode runs one instruction stream (a function body, the global
// chunk, a switch case expression, a catch/finally body) to completion
// against frame, with its own operand stack, exception-frame stack, and
// foreach-iteration stack. Nested invocations (user function calls,
// catch/finally bodies, switch case expressions) are ordinary recursive
// Go calls sharing the Machine's value pool but never its operand
// stack, so an exception unwinding through several user-function calls
// unwinds the Go call stack right along with it.
func (m *Machine) execCode(code []opcodes.Instruction, frame *Frame) (*values.Value, execSignal, error) {
	var stack []*values.Value
	var excStack []activeExc
	var fe []*foreachState

	push := func(v *values.Value) { stack = append(stack, v) }
	pop := func() *values.Value { return popN(&stack) }

	ip := 0
	for ip < len(code) {
		instr := code[ip]

		// rerr carries any fault the current instruction raised; the
		// post-switch handler below routes a *ThrownException through the
		// installed exception frames before letting it propagate as a Go
		// error to the calling frame.
		var rerr error

		switch instr.Op {
		case opcodes.OpNop:

		case opcodes.OpAdd, opcodes.OpSub, opcodes.OpMul, opcodes.OpDiv, opcodes.OpMod, opcodes.OpPow, opcodes.OpConcat,
			opcodes.OpBitAnd, opcodes.OpBitOr, opcodes.OpBitXor, opcodes.OpShl, opcodes.OpShr,
			opcodes.OpEq, opcodes.OpNeq, opcodes.OpIdentical, opcodes.OpNotIdentical,
			opcodes.OpLt, opcodes.OpLe, opcodes.OpGt, opcodes.OpGe, opcodes.OpSpaceship:
			b := pop()
			a := pop()
			v, err := m.execBinary(instr.Op, a, b, instr.Line)
			if err != nil {
				rerr = err
				break
			}
			push(v)

		case opcodes.OpPlus:
			v := pop()
			if v.Type == values.TypeFloat {
				push(values.Float(v.ToFloat()))
			} else {
				push(values.Int(v.ToInt()))
			}

		case opcodes.OpMinus:
			push(values.Negate(pop()))

		case opcodes.OpNot:
			push(values.Bool(!pop().ToBool()))

		case opcodes.OpBitNot:
			push(values.Int(^pop().ToInt()))

		case opcodes.OpBoolAnd:
			b, a := pop(), pop()
			push(values.Bool(a.ToBool() && b.ToBool()))

		case opcodes.OpBoolOr:
			b, a := pop(), pop()
			push(values.Bool(a.ToBool() || b.ToBool()))

		case opcodes.OpLogicalXor:
			b, a := pop(), pop()
			push(values.Bool(a.ToBool() != b.ToBool()))

		case opcodes.OpInstanceof:
			var clsName string
			if instr.P1 == 1 {
				cv := pop()
				if cv.Type == values.TypeObject {
					clsName = cv.Obj.Class.Name
				} else {
					clsName = cv.ToString()
				}
			} else {
				raw, _ := instr.P3.(string)
				if cls, err := m.resolveClassRef(raw, frame); err == nil && cls != nil {
					clsName = cls.Name
				} else {
					clsName = raw
				}
			}
			v := pop()
			push(values.Bool(v.Type == values.TypeObject && v.Obj.Class.IsSubclassOf(clsName)))

		case opcodes.OpPreIncr, opcodes.OpPreDecr, opcodes.OpPostIncr, opcodes.OpPostDecr:
			delta := int64(1)
			if instr.Op == opcodes.OpPreDecr || instr.Op == opcodes.OpPostDecr {
				delta = -1
			}
			prefix := instr.Op == opcodes.OpPreIncr || instr.Op == opcodes.OpPreDecr
			if instr.P1 == -1 {
				idxVal := pop()
				base := pop()
				if base.Type == values.TypeNull {
					base.Type = values.TypeArray
					base.Arr = values.NewOrderedMap()
				}
				key := keyFromValue(idxVal)
				cur, ok := base.Arr.Get(key)
				if !ok {
					cur = values.Null()
				}
				nv := incDecValue(cur, delta)
				m.setArrayEntry(base.Arr, key, nv.Clone())
				if prefix {
					push(nv)
				} else {
					push(cur)
				}
			} else {
				idx := frame.ensure(m, instr.P1)
				cur := m.pool[idx]
				nv := incDecValue(cur, delta)
				m.setPool(idx, nv)
				if prefix {
					push(nv.Clone())
				} else {
					push(cur.Clone())
				}
			}

		case opcodes.OpJmp:
			ip = int(instr.P2)
			continue

		case opcodes.OpJz:
			if !pop().ToBool() {
				ip = int(instr.P2)
				continue
			}

		case opcodes.OpJnz:
			if pop().ToBool() {
				ip = int(instr.P2)
				continue
			}

		case opcodes.OpJzKeep:
			if !stack[len(stack)-1].ToBool() {
				ip = int(instr.P2)
				continue
			}
			pop()

		case opcodes.OpJnzKeep:
			if stack[len(stack)-1].ToBool() {
				ip = int(instr.P2)
				continue
			}
			pop()

		case opcodes.OpCase:
			cv := pop()
			selector := stack[len(stack)-1]
			push(values.Bool(values.LooseEqual(selector, cv)))

		case opcodes.OpSwitch:
			desc := instr.P3.(*opcodes.SwitchDesc)
			selector := pop()
			matchedIP := desc.OutIP
			found := false
			for _, c := range desc.Cases {
				if c.Expr == nil {
					continue
				}
				cv, _, err := m.execCode(c.Expr, frame)
				if err != nil {
					rerr = err
					break
				}
				if values.LooseEqual(selector, cv) {
					matchedIP = c.Start
					found = true
					break
				}
			}
			if rerr != nil {
				break
			}
			if !found && desc.DefaultIdx >= 0 {
				matchedIP = desc.Cases[desc.DefaultIdx].Start
			}
			ip = int(matchedIP)
			continue

		case opcodes.OpThrow:
			rerr = &ThrownException{Value: pop()}

		case opcodes.OpPushExceptionFrame:
			excStack = append(excStack, activeExc{desc: instr.P3.(*opcodes.ExceptionDesc), stackDepth: len(stack)})

		case opcodes.OpPopExceptionFrame:
			if len(excStack) > 0 {
				top := excStack[len(excStack)-1]
				excStack = excStack[:len(excStack)-1]
				if top.desc != nil && top.desc.Finally != nil {
					if _, _, ferr := m.execCode(top.desc.Finally, frame); ferr != nil {
						rerr = ferr
					}
				}
			}

		case opcodes.OpForeachInit:
			desc := instr.P3.(*opcodes.ForeachDesc)
			subject := pop()
			fe = append(fe, newForeachState(subject))
			_ = desc

		case opcodes.OpForeachStep:
			desc := instr.P3.(*opcodes.ForeachDesc)
			if !m.foreachStep(fe[len(fe)-1], desc, frame) {
				ip = int(instr.P2)
				continue
			}

		case opcodes.OpForeachFree:
			if n := len(fe); n > 0 {
				st := fe[n-1]
				fe = fe[:n-1]
				// a break out of a by-ref loop arrives here with the
				// final iteration's write still pending; flush it the
				// same way the next FOREACH_STEP would have
				if desc, ok := instr.P3.(*opcodes.ForeachDesc); ok && desc != nil {
					m.foreachFlush(st, desc, frame)
				}
			}

		case opcodes.OpCast:
			push(m.castValue(opcodes.CastKind(instr.P1), pop()))

		case opcodes.OpToBool:
			push(values.Bool(pop().ToBool()))

		case opcodes.OpLoad:
			push(m.pool[frame.ensure(m, instr.P1)])

		case opcodes.OpLoadConst:
			push(m.consts[instr.P1])

		case opcodes.OpLoadIdx:
			switch instr.P1 {
			case 1:
				pop()
				push(values.Null())
			case 2:
				// lvalue-base read: vivify the missing entry so the
				// following store lands in a container attached to the
				// outer array.
				idxVal := pop()
				base := m.derefArg(pop())
				if base.Type == values.TypeNull {
					base.Type = values.TypeArray
					base.Arr = values.NewOrderedMap()
				}
				if base.Type == values.TypeArray {
					key := keyFromValue(idxVal)
					v, ok := base.Arr.Get(key)
					if !ok {
						v = values.Null()
						base.Arr.Set(key, v)
					}
					push(v)
				} else {
					push(values.Null())
				}
			default:
				idxVal := pop()
				base := m.derefArg(pop())
				push(m.loadIndex(base, idxVal))
			}

		case opcodes.OpLoadMap:
			spread, _ := instr.P3.([]bool)
			arr := values.NewOrderedMap()
			elems := make([]struct {
				key *values.Value
				val *values.Value
			}, len(spread))
			for i := len(spread) - 1; i >= 0; i-- {
				if spread[i] {
					elems[i].val = pop()
				} else {
					elems[i].val = pop()
					elems[i].key = pop()
				}
			}
			for i, el := range elems {
				if spread[i] {
					if el.val.Type == values.TypeArray {
						el.val.Arr.Each(func(k values.Key, v *values.Value) bool {
							if k.IsInt {
								arr.Append(v.Clone())
							} else {
								m.setArrayEntry(arr, k, v.Clone())
							}
							return true
						})
					}
					continue
				}
				if el.key == nil || el.key.IsNull() {
					arr.Append(el.val.Clone())
				} else {
					m.setArrayEntry(arr, keyFromValue(el.key), el.val.Clone())
				}
			}
			push(&values.Value{Type: values.TypeArray, Arr: arr})

		case opcodes.OpLoadList:
			push(values.Null())

		case opcodes.OpLoadClosure:
			desc := instr.P3.(*opcodes.ClosureDesc)
			clo := values.NewClosure(desc.FunctionName)
			for _, u := range desc.Uses {
				idx := frame.ensure(m, u.Slot)
				if u.ByRef {
					// the closure keeps aliasing this cell after the
					// capturing frame exits; pin it so frame teardown
					// neither releases nor recycles it
					m.pinned[idx] = true
					clo.Clo.Uses[u.Name] = values.Reference(idx)
				} else {
					clo.Clo.Uses[u.Name] = m.pool[idx].Clone()
				}
			}
			if frame.this != nil {
				clo.Clo.Bound = frame.this
			}
			push(clo)

		case opcodes.OpLoadRef:
			push(values.Reference(frame.ensure(m, instr.P1)))

		case opcodes.OpLoadThis:
			if frame.this != nil {
				push(&values.Value{Type: values.TypeObject, Obj: frame.this})
			} else {
				push(values.Null())
			}

		case opcodes.OpLoadGlobal:
			var name string
			if instr.P1 == 1 {
				name = pop().ToString()
			} else {
				name, _ = instr.P3.(string)
			}
			idx, ok := m.globals[name]
			if !ok {
				idx = m.alloc()
				m.globals[name] = idx
			}
			push(m.pool[idx])

		case opcodes.OpFetchConst:
			name, _ := instr.P3.(string)
			push(m.fetchConst(name, instr.Line))

		case opcodes.OpStore:
			val := pop()
			idx := frame.ensure(m, instr.P1)
			m.setPool(idx, val.Clone())
			push(m.pool[idx])

		case opcodes.OpStoreIdx:
			val := pop()
			idxVal := pop()
			base := pop()
			if base.Type == values.TypeNull {
				base.Type = values.TypeArray
				base.Arr = values.NewOrderedMap()
			}
			if base.Type == values.TypeArray {
				if instr.P1 == 1 {
					base.Arr.Append(val.Clone())
				} else {
					m.setArrayEntry(base.Arr, keyFromValue(idxVal), val.Clone())
				}
			} else {
				m.errorf(instr.Line, "cannot use a scalar value as an array")
			}
			push(val.Clone())

		case opcodes.OpStoreIdxRef:
			val := pop()
			idxVal := pop()
			base := pop()
			if base.Type == values.TypeNull {
				base.Type = values.TypeArray
				base.Arr = values.NewOrderedMap()
			}
			if base.Type == values.TypeArray && val.Type == values.TypeReference {
				if instr.P1 == 1 {
					base.Arr.Append(m.pool[val.Ref])
				} else {
					m.setArrayEntry(base.Arr, keyFromValue(idxVal), m.pool[val.Ref])
				}
			}
			push(val)

		case opcodes.OpStoreRef:
			src := pop()
			if src.Type == values.TypeReference {
				frame.alias(m, instr.P1, src.Ref)
				push(m.pool[frame.slots[instr.P1]])
			} else {
				idx := frame.ensure(m, instr.P1)
				m.setPool(idx, src.Clone())
				push(m.pool[idx])
			}

		case opcodes.OpStoreGlobal:
			val := pop()
			var name string
			if instr.P1&1 != 0 {
				name = pop().ToString()
			} else {
				name, _ = instr.P3.(string)
			}
			idx, ok := m.globals[name]
			if !ok {
				idx = m.alloc()
				m.globals[name] = idx
			}
			m.setPool(idx, val.Clone())
			push(m.pool[idx])

		case opcodes.OpStoreMember:
			val := pop()
			static := instr.P1&1 != 0
			nameOnStack := instr.P1&2 != 0
			var name string
			if nameOnStack {
				name = pop().ToString()
			} else {
				name, _ = instr.P3.(string)
			}
			base := pop()
			if err := m.storeMember(base, name, val, static, frame); err != nil {
				rerr = err
				break
			}
			push(val.Clone())

		case opcodes.OpAssignOp:
			rhs := pop()
			cur := pop()
			sub, _ := instr.P3.(opcodes.Op)
			res, err := m.execBinary(sub, cur, rhs, instr.Line)
			if err != nil {
				rerr = err
				break
			}
			if instr.P1 == -1 {
				push(res)
			} else {
				idx := frame.ensure(m, instr.P1)
				m.setPool(idx, res.Clone())
				push(m.pool[idx])
			}

		case opcodes.OpAssignDimOp:
			rhs := pop()
			idxVal := pop()
			base := pop()
			if base.Type == values.TypeNull {
				base.Type = values.TypeArray
				base.Arr = values.NewOrderedMap()
			}
			sub, _ := instr.P3.(opcodes.Op)
			if base.Type != values.TypeArray {
				m.errorf(instr.Line, "cannot use a scalar value as an array")
				push(values.Null())
				break
			}
			key := keyFromValue(idxVal)
			cur, ok := base.Arr.Get(key)
			if !ok {
				cur = values.Null()
			}
			res, err := m.execBinary(sub, cur, rhs, instr.Line)
			if err != nil {
				rerr = err
				break
			}
			m.setArrayEntry(base.Arr, key, res.Clone())
			push(res)

		case opcodes.OpFetchUplink:
			name, _ := instr.P3.(string)
			idx, ok := m.globals[name]
			if !ok {
				idx = m.alloc()
				m.globals[name] = idx
			}
			frame.alias(m, instr.P1, idx)

		case opcodes.OpBindStatic:
			name, _ := instr.P3.(string)
			// The persistent cell lives on the Function, not the frame,
			// so the binding survives across calls; the global scope (fn
			// == nil) caches on the frame instead, which is equivalent
			// there since the global frame is never re-entered.
			if frame.fn != nil && frame.fn.StaticSlots != nil {
				if existing, ok := frame.fn.StaticSlots[name]; ok {
					frame.alias(m, instr.P1, existing)
					break
				}
			}
			if frame.statics != nil {
				if existing, ok := frame.statics[name]; ok {
					frame.alias(m, instr.P1, existing)
					break
				}
			}
			idx := m.alloc()
			var init []opcodes.Instruction
			if frame.fn != nil {
				init = frame.fn.StaticInit[name]
			} else if frame.staticInit != nil {
				init = frame.staticInit[name]
			}
			v, _, err := m.execCode(init, frame)
			if err != nil {
				rerr = err
				break
			}
			m.pool[idx] = v.Clone()
			if frame.fn != nil {
				if frame.fn.StaticSlots == nil {
					frame.fn.StaticSlots = make(map[string]int)
				}
				frame.fn.StaticSlots[name] = idx
			} else {
				if frame.statics == nil {
					frame.statics = make(map[string]int)
				}
				frame.statics[name] = idx
			}
			frame.alias(m, instr.P1, idx)

		case opcodes.OpUnset:
			m.execUnset(instr, &stack, frame)

		case opcodes.OpIsset:
			push(m.execIsset(instr, &stack, frame))

		case opcodes.OpCall:
			desc := instr.P3.(*opcodes.CallDesc)
			ret, err := m.dispatchCall(desc, &stack, frame)
			if err != nil {
				rerr = err
				break
			}
			push(ret)

		case opcodes.OpCallMethod:
			desc := instr.P3.(*opcodes.CallDesc)
			args := popArgs(&stack, desc)
			methodName := desc.Name
			if desc.NameOnStack {
				methodName = pop().ToString()
			}
			recv := pop()
			ret, err := m.dispatchMethodCall(recv, methodName, args, desc.Static, frame)
			if err != nil {
				rerr = err
				break
			}
			push(ret)

		case opcodes.OpNew:
			desc := instr.P3.(*opcodes.CallDesc)
			args := popArgs(&stack, desc)
			var cls *values.Class
			var err error
			if desc.Name != "" {
				cls, err = m.resolveClassRef(desc.Name, frame)
			} else {
				cv := pop()
				cls, err = m.resolveClassRef(cv.ToString(), frame)
			}
			if err != nil {
				rerr = err
				break
			}
			obj, err := m.instantiate(cls, args)
			if err != nil {
				rerr = err
				break
			}
			push(&values.Value{Type: values.TypeObject, Obj: obj})

		case opcodes.OpClone:
			v := pop()
			cloned, err := m.cloneValue(v)
			if err != nil {
				rerr = err
				break
			}
			push(cloned)

		case opcodes.OpFetchMember:
			static := instr.P1&1 != 0
			nullsafe := instr.P1&2 != 0
			nameOnStack := instr.P1&4 != 0
			var name string
			if nameOnStack {
				name = pop().ToString()
			} else {
				name, _ = instr.P3.(string)
			}
			base := pop()
			val, err := m.fetchMember(base, name, static, nullsafe, frame)
			if err != nil {
				rerr = err
				break
			}
			push(val)

		case opcodes.OpFetchClassConst:
			name, _ := instr.P3.(string)
			base := pop()
			cls, err := m.classFromValue(base, frame)
			if err != nil {
				rerr = err
				break
			}
			if cls == nil {
				push(values.Null())
				break
			}
			if name == "class" {
				push(values.String(cls.Name))
				break
			}
			if v, ok := cls.FindConstant(name); ok {
				push(v)
			} else {
				m.errorf(instr.Line, "undefined constant %s::%s", cls.Name, name)
				push(values.Null())
			}

		case opcodes.OpDeclFunction, opcodes.OpDeclClass:
			// Declared eagerly into the registry at compile time; the
			// marker only exists so a disassembly shows declaration order.

		case opcodes.OpDeclConst:
			name, _ := instr.P3.(string)
			v := pop()
			m.Reg.Constants[name] = v.Clone()

		case opcodes.OpPop:
			pop()

		case opcodes.OpDup:
			push(stack[len(stack)-1])

		case opcodes.OpSwap:
			n := len(stack)
			stack[n-1], stack[n-2] = stack[n-2], stack[n-1]

		case opcodes.OpConsume:
			v := pop()
			s, serr := m.stringify(v)
			if serr != nil {
				rerr = serr
				break
			}
			m.Write(s)

		case opcodes.OpReturn:
			var ret *values.Value
			if instr.P1 == 1 {
				ret = pop()
			} else {
				ret = values.Null()
			}
			for rerr == nil && len(excStack) > 0 {
				top := excStack[len(excStack)-1]
				excStack = excStack[:len(excStack)-1]
				if top.desc != nil && top.desc.Finally != nil {
					if _, _, ferr := m.execCode(top.desc.Finally, frame); ferr != nil {
						rerr = ferr
					}
				}
			}
			if rerr == nil {
				return ret, sigReturn, nil
			}

		case opcodes.OpHalt:
			if instr.P1 == 1 {
				v := pop()
				if v.Type == values.TypeString {
					m.Write(v.ToString())
				}
				return v, sigReturn, &haltSignal{}
			}
			return values.Null(), sigReturn, &haltSignal{}

		case opcodes.OpErrSuppressBegin:
			m.suppressErrors++

		case opcodes.OpErrSuppressEnd:
			if m.suppressErrors > 0 {
				m.suppressErrors--
			}

		default:
			m.errorf(instr.Line, "internal: unhandled opcode %s", instr.Op)
		}

		if rerr != nil {
			te, isThrow := rerr.(*ThrownException)
			if !isThrow || len(excStack) == 0 {
				return nil, sigNone, rerr
			}
			desc, ret, sig, herr := m.handleThrow(te.Value, &excStack, &stack, frame)
			if herr != nil {
				return nil, sigNone, herr
			}
			if sig == sigReturn {
				// A `return` inside the catch body still runs the finallys
				// of every try-frame it unwinds out of.
				for len(excStack) > 0 {
					top := excStack[len(excStack)-1]
					excStack = excStack[:len(excStack)-1]
					if top.desc != nil && top.desc.Finally != nil {
						if _, _, ferr := m.execCode(top.desc.Finally, frame); ferr != nil {
							return nil, sigNone, ferr
						}
					}
				}
				return ret, sigReturn, nil
			}
			ip = int(desc.EndIP)
			continue
		}

		ip++
	}

	if len(stack) > 0 {
		return stack[len(stack)-1], sigNone, nil
	}
	return values.Null(), sigNone, nil
}

func incDecValue(v *values.Value, delta int64) *values.Value {
	switch v.Type {
	case values.TypeInt:
		return values.Int(v.ToInt() + delta)
	case values.TypeFloat:
		return values.Float(v.ToFloat() + float64(delta))
	case values.TypeNull:
		if delta > 0 {
			return values.Int(1)
		}
		return values.Null()
	case values.TypeString:
		s := v.ToString()
		if v.IsNumeric() {
			if strings.ContainsAny(s, ".eE") {
				return values.Float(v.ToFloat() + float64(delta))
			}
			return values.Int(v.ToInt() + delta)
		}
		if delta > 0 {
			return values.String(incrementAlphaNumeric(s))
		}
		return v.Clone()
	default:
		return v.Clone()
	}
}

// incrementAlphaNumeric implements the carrying alphanumeric string
// increment `++$str` uses when the string isn't itself numeric: "az"
// becomes "ba", "zz" becomes "aaa", digits and letters each wrap and
// carry within their own alphabet.
func incrementAlphaNumeric(s string) string {
	if s == "" {
		return "1"
	}
	b := []byte(s)
	i := len(b) - 1
	for i >= 0 {
		c := b[i]
		switch {
		case c >= '0' && c <= '8', c >= 'a' && c <= 'y', c >= 'A' && c <= 'Y':
			b[i] = c + 1
			return string(b)
		case c == '9':
			b[i] = '0'
			i--
			if i < 0 {
				return "1" + string(b)
			}
		case c == 'z':
			b[i] = 'a'
			i--
			if i < 0 {
				return "a" + string(b)
			}
		case c == 'Z':
			b[i] = 'A'
			i--
			if i < 0 {
				return "A" + string(b)
			}
		default:
			return string(b)
		}
	}
	return string(b)
}

// handleThrow searches excStack innermost-to-outermost for a catch
// matching thrown, truncating the operand stack to each frame's
// installation depth as it unwinds past it and running every
// intervening `finally` exactly once. On a match it runs the catch body
// and returns the matched ExceptionDesc (so the caller resumes at its
// EndIP), forwarding a `return` executed inside the catch body as
// sigReturn with its value. If nothing matches it returns a
// *ThrownException ready to propagate as a Go error.
func (m *Machine) handleThrow(thrown *values.Value, excStack *[]activeExc, stack *[]*values.Value, frame *Frame) (*opcodes.ExceptionDesc, *values.Value, execSignal, error) {
	for len(*excStack) > 0 {
		n := len(*excStack)
		top := (*excStack)[n-1]
		*excStack = (*excStack)[:n-1]
		*stack = (*stack)[:top.stackDepth]
		desc := top.desc
		for _, c := range desc.Catches {
			if !classMatches(thrown, c.ClassNames) {
				continue
			}
			if c.VarSlot >= 0 {
				idx := frame.ensure(m, c.VarSlot)
				m.setPool(idx, thrown.Clone())
			}
			ret, sig, err := m.execCode(c.Body, frame)
			if desc.Finally != nil {
				if _, _, ferr := m.execCode(desc.Finally, frame); ferr != nil {
					return nil, nil, sigNone, ferr
				}
			}
			if err != nil {
				if te, ok := err.(*ThrownException); ok {
					return m.handleThrow(te.Value, excStack, stack, frame)
				}
				return nil, nil, sigNone, err
			}
			if sig == sigReturn {
				return desc, ret, sigReturn, nil
			}
			return desc, nil, sigNone, nil
		}
		if desc.Finally != nil {
			if _, _, ferr := m.execCode(desc.Finally, frame); ferr != nil {
				return nil, nil, sigNone, ferr
			}
		}
	}
	return nil, nil, sigNone, &ThrownException{Value: thrown}
}
