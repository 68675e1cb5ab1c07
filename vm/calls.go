package vm

import (
	"strings"

	"github.com/vesper-lang/vesper/opcodes"
	"github.com/vesper-lang/vesper/registry"
	"github.com/vesper-lang/vesper/values"
)

// popArgs pops the CallDesc.ArgCount values an OpCall/OpCallMethod/OpNew
// pushed, flattening a trailing `...$args` spread into the actual
// argument list the callee sees.
func popArgs(stack *[]*values.Value, desc *opcodes.CallDesc) []*values.Value {
	n := desc.ArgCount
	raw := make([]*values.Value, n)
	for i := n - 1; i >= 0; i-- {
		raw[i] = popN(stack)
	}
	if !desc.SpreadLast || n == 0 {
		return raw
	}
	last := raw[n-1]
	args := append([]*values.Value{}, raw[:n-1]...)
	if last.Type == values.TypeArray {
		last.Arr.Each(func(k values.Key, v *values.Value) bool {
			args = append(args, v)
			return true
		})
	} else {
		args = append(args, last)
	}
	return args
}

// dispatchCall resolves and invokes the callee of one OpCall: a
// statically named function (CallDesc.Name) or a dynamic callable value
// sitting beneath the arguments on the stack.
func (m *Machine) dispatchCall(desc *opcodes.CallDesc, stack *[]*values.Value, frame *Frame) (*values.Value, error) {
	args := popArgs(stack, desc)
	if desc.Name != "" {
		return m.callNamed(desc.Name, args, frame)
	}
	callee := popN(stack)
	return m.callValue(callee, args, frame)
}

// callNamed calls a function by name: a user-defined function (with
// overload resolution across its Group) if one is declared, else a
// host-registered builtin.
func (m *Machine) callNamed(name string, args []*values.Value, frame *Frame) (*values.Value, error) {
	if g, ok := m.Reg.Lookup(name); ok {
		fn := registry.SelectOverload(g, args)
		return m.callUserFunction(fn, args, nil, nil)
	}
	if b, ok := m.Reg.LookupBuiltin(name); ok {
		return m.callBuiltin(b, args, nil)
	}
	return nil, m.throwClass("Error", "Call to undefined function "+name+"()")
}

func (m *Machine) callBuiltin(b registry.BuiltinImplementation, args []*values.Value, this *values.Object) (*values.Value, error) {
	ret, err := b(&registry.CallContext{Args: args, This: this, Host: m})
	if err != nil {
		return nil, err
	}
	if ret == nil {
		return values.Null(), nil
	}
	return ret, nil
}

// callValue invokes a dynamic callable: a string (function name or
// "Class::method"), a closure, a `[$obj, "method"]`/`[$class, "method"]`
// array, or an object with __invoke.
func (m *Machine) callValue(callee *values.Value, args []*values.Value, frame *Frame) (*values.Value, error) {
	switch callee.Type {
	case values.TypeString:
		if cls, method, ok := strings.Cut(callee.ToString(), "::"); ok {
			return m.callStaticByName(cls, method, args, frame)
		}
		return m.callNamed(callee.ToString(), args, frame)

	case values.TypeClosure:
		return m.callClosure(callee.Clo, args)

	case values.TypeArray:
		if callee.Arr.Len() != 2 {
			return nil, m.throwClass("Error", "Value not callable")
		}
		recvKey, _ := callee.Arr.Get(values.IntKey(0))
		nameKey, _ := callee.Arr.Get(values.IntKey(1))
		methodName := nameKey.ToString()
		if recvKey.Type == values.TypeObject {
			return m.dispatchMethodCall(recvKey, methodName, args, false, frame)
		}
		return m.callStaticByName(recvKey.ToString(), methodName, args, frame)

	case values.TypeObject:
		return m.dispatchMethodCall(callee, "__invoke", args, false, frame)

	default:
		return nil, m.throwClass("Error", "Value not callable")
	}
}

func (m *Machine) callStaticByName(className, method string, args []*values.Value, frame *Frame) (*values.Value, error) {
	cls, err := m.resolveClassRef(className, frame)
	if err != nil {
		return nil, err
	}
	return m.invokeMethod(cls, nil, method, args)
}

// callClosure runs a closure value: its captures become ordinary local
// bindings (by value or, for a `use (&$x)` capture, an alias into the
// capturing frame's pool cell) ahead of its declared parameters.
func (m *Machine) callClosure(clo *values.Closure, args []*values.Value) (*values.Value, error) {
	g, ok := m.Reg.Lookup(clo.FuncName)
	if !ok {
		return nil, m.throwClass("Error", "Call to undefined closure function "+clo.FuncName+"()")
	}
	fn := registry.SelectOverload(g, args)
	nf, err := m.pushCallFrame(fn, clo.Bound, fn.Class, fn.Class)
	if err != nil {
		return nil, err
	}
	for name, v := range clo.Uses {
		slot, ok := fn.VarSlots[name]
		if !ok {
			continue
		}
		if v.Type == values.TypeReference {
			nf.alias(m, slot, v.Ref)
		} else {
			idx := nf.ensure(m, slot)
			m.pool[idx] = v.Clone()
		}
	}
	if err := m.bindParams(fn, nf, args); err != nil {
		m.popCallFrame(nf, thrownValue(err))
		return nil, err
	}
	ret, _, err := m.execCode(fn.Body, nf)
	if err != nil {
		m.popCallFrame(nf, thrownValue(err))
		return nil, err
	}
	m.popCallFrame(nf, ret)
	return ret, nil
}

// thrownValue extracts the in-flight exception object from an error, so
// frame teardown on the unwind path transfers its ownership instead of
// destructing it out from under the catch that is about to bind it.
func thrownValue(err error) *values.Value {
	if te, ok := err.(*ThrownException); ok {
		return te.Value
	}
	return nil
}

// dispatchMethodCall resolves and invokes one ->method()/Class::method()
// call site: recv is either an object instance (instance call) or a
// TypeString class-name operand (static call, pushed by
// compileClassRefOperand for self/parent/static/a literal class name).
func (m *Machine) dispatchMethodCall(recv *values.Value, methodName string, args []*values.Value, static bool, frame *Frame) (*values.Value, error) {
	if static {
		cls, err := m.resolveClassRef(recv.ToString(), frame)
		if err != nil {
			return nil, err
		}
		this := frame.this
		return m.invokeMethod(cls, this, methodName, args)
	}
	if recv.Type != values.TypeObject {
		return nil, m.throwClass("Error", "Call to a member function "+methodName+"() on "+recv.Type.String())
	}
	return m.invokeMethod(recv.Obj.Class, recv.Obj, methodName, args)
}

// invokeMethod is the shared resolution path for instance and static
// method calls: method lookup through the base chain, magic __call
// fallback, then either a native Go implementation or a compiled
// registry.Function body.
func (m *Machine) invokeMethod(cls *values.Class, this *values.Object, methodName string, args []*values.Value) (*values.Value, error) {
	if cls == nil {
		return nil, m.throwClass("Error", "Call to a member function "+methodName+"() on null")
	}
	method, declCls := cls.FindMethod(methodName)
	if method == nil {
		if call, _ := cls.FindMethod("__call"); call != nil && call.Native == nil {
			argsArr := values.NewArray()
			for _, a := range args {
				argsArr.Arr.Append(a)
			}
			fn, _ := call.Func.(*registry.Function)
			callSelfCls := fn.Class
			if callSelfCls == nil {
				callSelfCls = cls
			}
			return m.callUserFunction(fn, []*values.Value{values.String(methodName), argsArr}, this, callSelfCls, cls)
		}
		return nil, m.throwClass("Error", "Call to undefined method "+cls.Name+"::"+methodName+"()")
	}
	if method.Native != nil {
		return method.Native(this, args)
	}
	fn, _ := method.Func.(*registry.Function)
	if fn == nil {
		return values.Null(), nil
	}
	if method.Static {
		this = nil
	}
	// self:: binds to the class that lexically declares the method body
	// (fn.Class, set at compile time), not the receiver's runtime class:
	// Class.Inherit physically copies inherited Method entries into the
	// derived class's table, so declCls from FindMethod also lands on
	// the receiver once a method has been inherited. The receiver's
	// class is still the one pushed for static::/late static binding.
	selfCls := fn.Class
	if selfCls == nil {
		selfCls = declCls
	}
	if selfCls == nil {
		selfCls = cls
	}
	return m.callUserFunction(fn, args, this, selfCls, cls)
}

// pushCallFrame installs a fresh Frame for fn, enforcing the configured
// maximum recursion depth (exceeding it raises a recoverable error).
// selfCls becomes frame.class, the self:: resolution context; lsbCls is
// pushed onto classStack for static::, the late-static-binding context
// rooted at the original call's receiver. The two differ whenever a
// method is invoked through a subclass that doesn't override it.
func (m *Machine) pushCallFrame(fn *registry.Function, this *values.Object, selfCls *values.Class, lsbCls *values.Class) (*Frame, error) {
	m.depth++
	if m.depth > m.maxDepth {
		m.depth--
		return nil, m.throwClass("Error", "Maximum function nesting depth reached")
	}
	f := &Frame{fn: fn, this: this, class: selfCls}
	if lsbCls != nil {
		m.classStack = append(m.classStack, lsbCls)
	} else if selfCls != nil {
		m.classStack = append(m.classStack, selfCls)
	}
	return f, nil
}

// popCallFrame tears one frame down: every pool cell the frame owns
// (not borrowed via alias, not pinned by a by-ref closure capture) has
// its value released and goes back to the free list. ret is the value
// the body returned, if any; a cell holding the same object instance
// only decrements the count without destructing, transferring ownership
// to the returned temporary so the caller's store can re-retain it.
func (m *Machine) popCallFrame(f *Frame, ret *values.Value) {
	m.depth--
	if len(m.classStack) > 0 {
		m.classStack = m.classStack[:len(m.classStack)-1]
	}
	if f == nil {
		return
	}
	for slot, idx := range f.slots {
		if f.borrowed[slot] || m.pinned[idx] {
			continue
		}
		v := m.pool[idx]
		if v != nil && v.Type == values.TypeObject &&
			ret != nil && ret.Type == values.TypeObject && ret.Obj == v.Obj {
			v.Obj.Release()
		} else {
			m.releaseValue(v)
		}
		m.pool[idx] = values.Null()
		m.free = append(m.free, idx)
	}
}

// bindParams fills f's parameter slots from args: positional binding,
// by-reference aliasing when the caller passed a reference, default-
// value initializers for omitted trailing parameters, and a final
// variadic parameter collecting the remaining arguments into an array.
func (m *Machine) bindParams(fn *registry.Function, f *Frame, args []*values.Value) error {
	for i, p := range fn.Params {
		slot, ok := fn.VarSlots[p.Name]
		if !ok {
			continue
		}
		if p.Variadic {
			rest := values.NewArray()
			for j := i; j < len(args); j++ {
				rest.Arr.Append(args[j].Clone())
			}
			idx := f.ensure(m, slot)
			m.pool[idx] = rest
			break
		}
		if i < len(args) {
			a := args[i]
			if p.ByRef && a.Type == values.TypeReference {
				f.alias(m, slot, a.Ref)
			} else {
				if p.Type != "" {
					a = coerceToType(a, p.Type)
				}
				idx := f.ensure(m, slot)
				m.pool[idx] = a.Clone()
			}
			continue
		}
		if p.HasDefault {
			v, _, err := m.execCode(p.Default, f)
			if err != nil {
				return err
			}
			idx := f.ensure(m, slot)
			m.pool[idx] = v.Clone()
			continue
		}
		idx := f.ensure(m, slot)
		m.pool[idx] = values.Null()
	}
	return nil
}

// coerceToType applies a typed parameter's automatic scalar coercion: a
// numeric string passed to `int $x` arrives as an integer, an int passed
// to `float $x` arrives as a float, and so on. Class-typed and
// array/object parameters are left untouched; a genuinely mismatched
// argument stays as-is rather than failing hard, with overload selection
// having already preferred a better-matching signature when one exists.
func coerceToType(v *values.Value, typ string) *values.Value {
	switch strings.ToLower(typ) {
	case "int", "integer":
		if v.Type != values.TypeInt && v.IsNumeric() {
			return values.Int(v.ToInt())
		}
	case "float", "double":
		if v.Type == values.TypeInt || (v.Type == values.TypeString && v.IsNumeric()) {
			return values.Float(v.ToFloat())
		}
	case "string":
		switch v.Type {
		case values.TypeInt, values.TypeFloat, values.TypeBool:
			return values.String(v.ToString())
		}
	case "bool", "boolean":
		switch v.Type {
		case values.TypeInt, values.TypeFloat, values.TypeString:
			return values.Bool(v.ToBool())
		}
	}
	return v
}

// callUserFunction pushes a new call frame for fn, binds args to its
// parameters, runs its body, and returns its result. cls is the self::
// context (frame.class); an optional lsbCls overrides the static::
// context pushed onto classStack when it differs from cls (an inherited
// method invoked through a subclass).
func (m *Machine) callUserFunction(fn *registry.Function, args []*values.Value, this *values.Object, cls *values.Class, lsbCls ...*values.Class) (*values.Value, error) {
	if fn == nil {
		return values.Null(), nil
	}
	lsb := cls
	if len(lsbCls) > 0 {
		lsb = lsbCls[0]
	}
	f, err := m.pushCallFrame(fn, this, cls, lsb)
	if err != nil {
		return nil, err
	}
	if err := m.bindParams(fn, f, args); err != nil {
		m.popCallFrame(f, thrownValue(err))
		return nil, err
	}
	ret, _, err := m.execCode(fn.Body, f)
	if err != nil {
		m.popCallFrame(f, thrownValue(err))
		return nil, err
	}
	m.popCallFrame(f, ret)
	return ret, nil
}

// resolveClassRef resolves a class-name operand: the contextual
// self/parent/static keywords (valid only with an enclosing method
// frame) or an ordinary declared/host class name.
func (m *Machine) resolveClassRef(name string, frame *Frame) (*values.Class, error) {
	switch strings.ToLower(name) {
	case "self":
		if frame != nil && frame.class != nil {
			return frame.class, nil
		}
	case "static":
		if len(m.classStack) > 0 {
			return m.classStack[len(m.classStack)-1], nil
		}
		if frame != nil && frame.class != nil {
			return frame.class, nil
		}
	case "parent":
		if frame != nil && frame.class != nil && frame.class.Base != nil {
			return frame.class.Base, nil
		}
		return nil, m.throwClass("Error", `"parent" used without a base class`)
	}
	if cls, ok := m.Reg.LookupClass(name); ok {
		return cls, nil
	}
	canon := canonicalExceptionName(name)
	if _, isBuiltinExc := builtinExceptionBases[canon]; isBuiltinExc || strings.EqualFold(name, "Throwable") {
		return m.builtinExceptionClass(canon), nil
	}
	return nil, m.throwClass("Error", `Class "`+name+`" not found`)
}

// classFromValue resolves the class of a value used as the left operand
// of a `::` access: a string class name or an already-instantiated
// object.
func (m *Machine) classFromValue(v *values.Value, frame *Frame) (*values.Class, error) {
	if v == nil {
		return nil, nil
	}
	if v.Type == values.TypeObject {
		return v.Obj.Class, nil
	}
	return m.resolveClassRef(v.ToString(), frame)
}

// instantiate allocates a new object instance of cls, running every
// inherited property's compiled initializer ahead of the declared
// constructor, each initializer's bytecode executed in its own isolated
// frame.
func (m *Machine) instantiate(cls *values.Class, args []*values.Value) (*values.Object, error) {
	if cls == nil {
		return nil, m.throwClass("Error", "Class not found")
	}
	if cls.Abstract {
		return nil, m.throwClass("Error", "Cannot instantiate abstract class "+cls.Name)
	}
	if cls.IsInterface {
		return nil, m.throwClass("Error", "Cannot instantiate interface "+cls.Name)
	}
	obj := values.NewObjectInstance(cls)
	m.allocated = append(m.allocated, obj)
	for name, p := range collectProperties(cls) {
		if p.Static || p.Const || p.InitChunk == nil {
			continue
		}
		chunk, ok := p.InitChunk.([]opcodes.Instruction)
		if !ok || chunk == nil {
			continue
		}
		v, _, err := m.execCode(chunk, &Frame{class: cls})
		if err != nil {
			return nil, err
		}
		obj.Properties[name] = v.Clone()
	}
	if ctor, _ := cls.FindMethod("__construct"); ctor != nil {
		if ctor.Native != nil {
			if _, err := ctor.Native(obj, args); err != nil {
				return nil, err
			}
		} else if fn, _ := ctor.Func.(*registry.Function); fn != nil {
			selfCls := fn.Class
			if selfCls == nil {
				selfCls = cls
			}
			if _, err := m.callUserFunction(fn, args, obj, selfCls, cls); err != nil {
				return nil, err
			}
		}
	}
	return obj, nil
}

func collectProperties(cls *values.Class) map[string]*values.Property {
	out := make(map[string]*values.Property)
	for c := cls; c != nil; c = c.Base {
		for name, p := range c.Properties {
			if _, exists := out[name]; !exists {
				out[name] = p
			}
		}
	}
	return out
}

// cloneValue implements the `clone` expression: objects duplicate their
// property table and invoke __clone if declared; every other type
// already has value semantics under Value.Clone.
func (m *Machine) cloneValue(v *values.Value) (*values.Value, error) {
	if v.Type != values.TypeObject {
		return v.Clone(), nil
	}
	dup := values.NewObjectInstance(v.Obj.Class)
	m.allocated = append(m.allocated, dup)
	for k, pv := range v.Obj.Properties {
		dup.Properties[k] = pv.Clone()
	}
	if mth, _ := v.Obj.Class.FindMethod("__clone"); mth != nil {
		if mth.Native != nil {
			if _, err := mth.Native(dup, nil); err != nil {
				return nil, err
			}
		} else if fn, _ := mth.Func.(*registry.Function); fn != nil {
			selfCls := fn.Class
			if selfCls == nil {
				selfCls = v.Obj.Class
			}
			if _, err := m.callUserFunction(fn, nil, dup, selfCls, v.Obj.Class); err != nil {
				return nil, err
			}
		}
	}
	return &values.Value{Type: values.TypeObject, Obj: dup}, nil
}
