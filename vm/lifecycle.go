package vm

import (
	"github.com/vesper-lang/vesper/registry"
	"github.com/vesper-lang/vesper/values"
)

// Reference counts track NAMED holders only: frame-local pool cells,
// object properties, and array entries, each retained by the Clone a
// store performs. The operand stack holds borrowed pointers and is
// never counted, so the release points are exactly the places a named
// holder lets its value go: overwrite, unset, and frame exit. A count
// that reaches zero runs __destruct before the next instruction.

// releaseValue drops one named reference from v's payload, running
// __destruct when an object's last named holder disappears.
func (m *Machine) releaseValue(v *values.Value) {
	if v == nil {
		return
	}
	switch v.Type {
	case values.TypeObject:
		if v.Obj != nil && v.Obj.Release() {
			m.runDestructor(v.Obj)
		}
	case values.TypeResource:
		if v.Res != nil {
			v.Res.Release_()
		}
	case values.TypeArray:
		if v.Arr != nil {
			v.Arr.Release()
		}
	}
}

// runDestructor dispatches __destruct exactly once. The instance is
// marked before the call so a release performed inside the destructor
// body can never re-enter it.
func (m *Machine) runDestructor(o *values.Object) {
	o.MarkDestructed()
	mth, _ := o.Class.FindMethod("__destruct")
	if mth == nil {
		return
	}
	if mth.Native != nil {
		if _, err := mth.Native(o, nil); err != nil {
			m.errorf(0, "error in %s::__destruct", o.Class.Name)
		}
		return
	}
	fn, _ := mth.Func.(*registry.Function)
	if fn == nil {
		return
	}
	selfCls := fn.Class
	if selfCls == nil {
		selfCls = o.Class
	}
	if _, err := m.callUserFunction(fn, nil, o, selfCls, o.Class); err != nil {
		m.errorf(0, "exception thrown in %s::__destruct", o.Class.Name)
	}
}

// setPool installs v into pool cell idx, releasing whatever named value
// the cell held before. v must already carry its own reference (the
// callers pass a Clone), so a self-assignment retains before it
// releases.
func (m *Machine) setPool(idx int, v *values.Value) {
	old := m.pool[idx]
	m.pool[idx] = v
	if old != v {
		m.releaseValue(old)
	}
}

// setArrayEntry mirrors setPool for one ordered-map entry.
func (m *Machine) setArrayEntry(arr *values.OrderedMap, key values.Key, v *values.Value) {
	if old, ok := arr.Get(key); ok && old != v {
		m.releaseValue(old)
	}
	arr.Set(key, v)
}
