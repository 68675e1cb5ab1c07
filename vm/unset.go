package vm

import (
	"github.com/vesper-lang/vesper/opcodes"
	"github.com/vesper-lang/vesper/values"
)

// unsetTarget resolves one OpUnset/OpIsset operand per the encoding
// opcodes.OpUnset documents (P1 selects the target kind and what sits
// on the stack beneath it), returning the container/key pair it names
// and, for isset's sake, whether the target currently exists.
func (m *Machine) unsetTarget(instr opcodes.Instruction, stack *[]*values.Value, frame *Frame) (kind int, name string, base *values.Value, key values.Key) {
	kind = instr.P1
	switch {
	case kind >= 0:
		return kind, "", nil, values.Key{}
	case kind == -1:
		idxVal := popN(stack)
		base = popN(stack)
		return kind, "", base, keyFromValue(idxVal)
	case kind == -2:
		name, _ = instr.P3.(string)
		base = popN(stack)
		return kind, name, base, values.Key{}
	case kind == -3:
		name = popN(stack).ToString()
		base = popN(stack)
		return kind, name, base, values.Key{}
	case kind == -4:
		name, _ = instr.P3.(string)
		base = popN(stack)
		return kind, name, base, values.Key{}
	case kind == -5:
		name = popN(stack).ToString()
		base = popN(stack)
		return kind, name, base, values.Key{}
	}
	return kind, name, base, key
}

func (m *Machine) execUnset(instr opcodes.Instruction, stack *[]*values.Value, frame *Frame) {
	kind, name, base, key := m.unsetTarget(instr, stack, frame)
	switch kind {
	case -1:
		if base != nil && base.Type == values.TypeArray {
			if old, ok := base.Arr.Get(key); ok {
				base.Arr.Delete(key)
				m.releaseValue(old)
			}
		}
	case -2, -3:
		if base != nil && base.Type == values.TypeObject {
			if old, ok := base.Obj.Properties[name]; ok {
				delete(base.Obj.Properties, name)
				m.releaseValue(old)
			}
		}
	case -4, -5:
		if base != nil {
			if cls, err := m.resolveClassRef(base.ToString(), frame); err == nil && cls != nil {
				if old, owner, ok := findStatic(cls, name); ok {
					delete(owner.Statics, name)
					m.releaseValue(old)
				}
			}
		}
	default:
		if kind >= 0 {
			idx := frame.ensure(m, kind)
			m.setPool(idx, values.Null())
		}
	}
}

func (m *Machine) execIsset(instr opcodes.Instruction, stack *[]*values.Value, frame *Frame) *values.Value {
	kind, name, base, key := m.unsetTarget(instr, stack, frame)
	switch kind {
	case -1:
		if base == nil || base.Type != values.TypeArray {
			return values.Bool(false)
		}
		v, ok := base.Arr.Get(key)
		return values.Bool(ok && !v.IsNull())
	case -2, -3:
		if base == nil || base.Type != values.TypeObject {
			return values.Bool(false)
		}
		v, ok := base.Obj.Properties[name]
		return values.Bool(ok && !v.IsNull())
	case -4, -5:
		if base == nil {
			return values.Bool(false)
		}
		cls, err := m.resolveClassRef(base.ToString(), frame)
		if err != nil || cls == nil {
			return values.Bool(false)
		}
		v, _, ok := findStatic(cls, name)
		return values.Bool(ok && !v.IsNull())
	default:
		if kind < 0 {
			return values.Bool(false)
		}
		if kind >= len(frame.slots) {
			return values.Bool(false)
		}
		return values.Bool(!m.pool[frame.slots[kind]].IsNull())
	}
}
