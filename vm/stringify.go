package vm

import (
	"github.com/vesper-lang/vesper/registry"
	"github.com/vesper-lang/vesper/values"
)

// stringify renders v for an implicit string conversion (echo, `.`
// concat, (string) cast, ordering comparisons): an object that declares
// __toString is asked for its string representation, invoked exactly as
// an ordinary method call would be; every other value falls back to
// Value.ToString, which has no class to consult.
func (m *Machine) stringify(v *values.Value) (string, error) {
	if v.Type != values.TypeObject {
		return v.ToString(), nil
	}
	mth, _ := v.Obj.Class.FindMethod("__toString")
	if mth == nil {
		return v.ToString(), nil
	}
	if mth.Native != nil {
		r, err := mth.Native(v.Obj, nil)
		if err != nil {
			return "", err
		}
		return r.ToString(), nil
	}
	fn, _ := mth.Func.(*registry.Function)
	if fn == nil {
		return v.ToString(), nil
	}
	selfCls := fn.Class
	if selfCls == nil {
		selfCls = v.Obj.Class
	}
	r, err := m.callUserFunction(fn, nil, v.Obj, selfCls, v.Obj.Class)
	if err != nil {
		return "", err
	}
	return r.ToString(), nil
}

// stringifyOperand converts an object operand of `.`/ordering-comparison
// opcodes through stringify, leaving every other value untouched.
func (m *Machine) stringifyOperand(v *values.Value) (*values.Value, error) {
	if v.Type != values.TypeObject {
		return v, nil
	}
	s, err := m.stringify(v)
	if err != nil {
		return nil, err
	}
	return values.String(s), nil
}
