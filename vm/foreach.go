package vm

import (
	"github.com/vesper-lang/vesper/opcodes"
	"github.com/vesper-lang/vesper/values"
)

// newForeachState snapshots subject's keys in insertion order at
// FOREACH_INIT time. A live OrderedMap cursor isn't reused here since a
// foreach loop needs its own independent position, but the snapshot
// preserves insertion order the same way the map's own cursor would.
func newForeachState(subject *values.Value) *foreachState {
	if subject == nil || subject.Type != values.TypeArray {
		return &foreachState{arr: values.NewOrderedMap()}
	}
	var keys []values.Key
	subject.Arr.Each(func(k values.Key, v *values.Value) bool {
		keys = append(keys, k)
		return true
	})
	return &foreachState{arr: subject.Arr, entries: keys}
}

// foreachStep advances one FOREACH_STEP: flushes the previous by-
// reference binding (if any) back into the array, then binds the next
// live entry's key/value into their declared slots. Returns false when
// the snapshot is exhausted.
func (m *Machine) foreachStep(st *foreachState, desc *opcodes.ForeachDesc, frame *Frame) bool {
	m.foreachFlush(st, desc, frame)
	for st.pos < len(st.entries) {
		k := st.entries[st.pos]
		st.pos++
		v, ok := st.arr.Get(k)
		if !ok {
			continue // deleted since the snapshot was taken
		}
		if desc.KeySlot >= 0 {
			kidx := frame.ensure(m, desc.KeySlot)
			m.setPool(kidx, keyToValue(k))
		}
		vidx := frame.ensure(m, desc.ValueSlot)
		m.setPool(vidx, v.Clone())
		if desc.ByRef {
			st.lastKey = k
			st.hasLast = true
		}
		return true
	}
	return false
}

// foreachFlush writes a pending by-reference binding back into the
// array entry it came from. FOREACH_STEP calls it ahead of each
// advance; FOREACH_FREE calls it so a break (or any other early exit
// that still reaches the free) keeps the final iteration's mutation.
func (m *Machine) foreachFlush(st *foreachState, desc *opcodes.ForeachDesc, frame *Frame) {
	if !st.hasLast {
		return
	}
	st.hasLast = false
	idx := frame.ensure(m, desc.ValueSlot)
	m.setArrayEntry(st.arr, st.lastKey, m.pool[idx].Clone())
}

func keyToValue(k values.Key) *values.Value {
	if k.IsInt {
		return values.Int(k.I)
	}
	return values.String(k.S)
}
