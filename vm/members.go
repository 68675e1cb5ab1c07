package vm

import (
	"math"

	"github.com/vesper-lang/vesper/opcodes"
	"github.com/vesper-lang/vesper/registry"
	"github.com/vesper-lang/vesper/values"
)

// derefArg resolves a value used as the base of a subscript or member
// access through one level of TypeReference indirection, so `$ref[0]`
// and `$ref->prop` operate on the aliased slot rather than a copy of it.
func (m *Machine) derefArg(v *values.Value) *values.Value {
	if v.Type == values.TypeReference {
		return m.pool[v.Ref]
	}
	return v
}

// loadIndex implements OpLoadIdx's read: array subscript, string byte
// offset, and ArrayAccess::offsetGet for objects that declare it.
func (m *Machine) loadIndex(base, idxVal *values.Value) *values.Value {
	switch base.Type {
	case values.TypeArray:
		key := keyFromValue(idxVal)
		if v, ok := base.Arr.Get(key); ok {
			return v
		}
		return values.Null()

	case values.TypeString:
		s := base.ToString()
		i := idxVal.ToInt()
		if i < 0 {
			i += int64(len(s))
		}
		if i >= 0 && i < int64(len(s)) {
			return values.String(string(s[i]))
		}
		return values.String("")

	case values.TypeObject:
		if mth, _ := base.Obj.Class.FindMethod("offsetget"); mth != nil {
			v, err := m.invokeMethod(base.Obj.Class, base.Obj, "offsetGet", []*values.Value{idxVal})
			if err == nil {
				return v
			}
		}
		return values.Null()

	default:
		return values.Null()
	}
}

func keyName(k values.Key) string {
	if k.IsInt {
		return values.Int(k.I).ToString()
	}
	return k.S
}

// findStatic walks cls's base chain looking up a static property, since
// Class.Inherit deliberately does not copy Statics (each class's static
// storage is distinct: a derived class does not share its
// base's static-variable cell unless it never declares its own).
func findStatic(cls *values.Class, name string) (*values.Value, *values.Class, bool) {
	for c := cls; c != nil; c = c.Base {
		if v, ok := c.Statics[name]; ok {
			return v, c, true
		}
	}
	return nil, nil, false
}

// fetchMember implements OpFetchMember: ->property, ::$staticProperty,
// with a __get fallback for accesses to an undeclared/inaccessible
// instance property.
func (m *Machine) fetchMember(base *values.Value, name string, static, nullsafe bool, frame *Frame) (*values.Value, error) {
	if nullsafe && base.IsNull() {
		return values.Null(), nil
	}
	if static {
		cls, err := m.resolveClassRef(base.ToString(), frame)
		if err != nil {
			return nil, err
		}
		if v, _, ok := findStatic(cls, name); ok {
			return v, nil
		}
		return values.Null(), nil
	}
	if base.Type != values.TypeObject {
		if base.IsNull() {
			m.errorf(0, "attempt to read property %q on null", name)
			return values.Null(), nil
		}
		return values.Null(), nil
	}
	if v, ok := base.Obj.Properties[name]; ok {
		return v, nil
	}
	if getter, _ := base.Obj.Class.FindMethod("__get"); getter != nil {
		if getter.Native != nil {
			return getter.Native(base.Obj, []*values.Value{values.String(name)})
		}
		if fn, _ := getter.Func.(*registry.Function); fn != nil {
			selfCls := fn.Class
			if selfCls == nil {
				selfCls = base.Obj.Class
			}
			return m.callUserFunction(fn, []*values.Value{values.String(name)}, base.Obj, selfCls, base.Obj.Class)
		}
	}
	m.errorf(0, "undefined property %s::$%s", base.Obj.Class.Name, name)
	return values.Null(), nil
}

// storeMember implements OpStoreMember: ->property = value,
// ::$staticProperty = value, with a __set fallback.
func (m *Machine) storeMember(base *values.Value, name string, val *values.Value, static bool, frame *Frame) error {
	if static {
		cls, err := m.resolveClassRef(base.ToString(), frame)
		if err != nil {
			return err
		}
		if old, owner, ok := findStatic(cls, name); ok {
			owner.Statics[name] = val.Clone()
			m.releaseValue(old)
			return nil
		}
		cls.Statics[name] = val.Clone()
		return nil
	}
	if base.Type != values.TypeObject {
		return nil
	}
	if _, exists := base.Obj.Properties[name]; !exists {
		if setter, _ := base.Obj.Class.FindMethod("__set"); setter != nil {
			if setter.Native != nil {
				_, err := setter.Native(base.Obj, []*values.Value{values.String(name), val})
				return err
			}
			if fn, _ := setter.Func.(*registry.Function); fn != nil {
				selfCls := fn.Class
				if selfCls == nil {
					selfCls = base.Obj.Class
				}
				_, err := m.callUserFunction(fn, []*values.Value{values.String(name), val}, base.Obj, selfCls, base.Obj.Class)
				return err
			}
		}
	}
	old := base.Obj.Properties[name]
	base.Obj.Properties[name] = val.Clone()
	if old != nil {
		m.releaseValue(old)
	}
	return nil
}

// fetchConst resolves a bareword constant reference: a program-declared
// `const` (registered into Reg.Constants by OpDeclConst), a host
// constant (expanded lazily on first resolution), a handful of built-in
// pseudo-constants, or, failing those, the bareword itself with a
// notice (matching the language's historically lax treatment of
// undefined constants).
func (m *Machine) fetchConst(name string, line int) *values.Value {
	switch name {
	case "PHP_EOL":
		return values.String("\n")
	case "PHP_INT_MAX":
		return values.Int(1<<63 - 1)
	case "PHP_INT_MIN":
		return values.Int(-1 << 63)
	case "PHP_VERSION":
		return values.String("8.3.0")
	case "M_PI":
		return values.Float(3.14159265358979323846)
	case "NAN":
		return values.Float(math.NaN())
	case "INF":
		return values.Float(math.Inf(1))
	}
	if v, ok := m.Reg.Constants[name]; ok {
		return v
	}
	if expand, ok := m.Reg.HostConstants[name]; ok {
		v := expand()
		m.Reg.Constants[name] = v
		return v
	}
	m.noticef(line, "Use of undefined constant %s", name)
	return values.String(name)
}

// castValue implements OpCast: explicit (int)/(float)/(string)/(bool)/
// (array)/(object)/unset() coercion of one value. castValue itself
// cannot return an error (OpCast's caller has no error path), so a
// failing __toString during a string cast is reported as a runtime
// error and falls back to the placeholder rendering.
func (m *Machine) castValue(kind opcodes.CastKind, v *values.Value) *values.Value {
	switch kind {
	case opcodes.CastInt:
		return values.Int(v.ToInt())
	case opcodes.CastFloat:
		return values.Float(v.ToFloat())
	case opcodes.CastString:
		s, err := m.stringify(v)
		if err != nil {
			m.errorf(0, "%v", err)
			return values.String(v.ToString())
		}
		return values.String(s)
	case opcodes.CastBool:
		return values.Bool(v.ToBool())
	case opcodes.CastArray:
		if v.Type == values.TypeArray {
			return v
		}
		arr := values.NewArray()
		if v.Type == values.TypeObject {
			for k, pv := range v.Obj.Properties {
				arr.Arr.Set(values.NewKey(k), pv.Clone())
			}
		} else if !v.IsNull() {
			arr.Arr.Append(v.Clone())
		}
		return arr
	case opcodes.CastObject:
		if v.Type == values.TypeObject {
			return v
		}
		cls := values.NewClass("stdClass")
		obj := values.NewObjectInstance(cls)
		if v.Type == values.TypeArray {
			v.Arr.Each(func(k values.Key, ev *values.Value) bool {
				obj.Properties[keyName(k)] = ev.Clone()
				return true
			})
		}
		return &values.Value{Type: values.TypeObject, Obj: obj}
	case opcodes.CastNull:
		return values.Null()
	default:
		return v
	}
}
