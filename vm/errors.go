package vm

import (
	"fmt"
	"strings"

	"github.com/vesper-lang/vesper/errors"
	"github.com/vesper-lang/vesper/registry"
	"github.com/vesper-lang/vesper/values"
)

// ThrownException wraps a user-thrown (or built-in) exception object so
// it can propagate as an ordinary Go error through the recursive
// execCode/Call chain: a `throw` unwinds exactly like any other runtime
// fault until a matching catch or the top-level Run call intercepts it.
type ThrownException struct {
	Value *values.Value
}

func (e *ThrownException) Error() string {
	if e.Value != nil && e.Value.Type == values.TypeObject {
		if msg, ok := e.Value.Obj.Properties["message"]; ok {
			return fmt.Sprintf("uncaught %s: %s", e.Value.Obj.Class.Name, msg.ToString())
		}
		return "uncaught " + e.Value.Obj.Class.Name
	}
	return "uncaught exception"
}

// throwClass constructs a built-in exception instance (Error,
// TypeError, DivisionByZeroError, ...) the way the VM's own runtime
// faults do, so `catch (TypeError $e)` works without the script
// declaring that class itself.
func (m *Machine) throwClass(name, message string) error {
	cls, ok := m.Reg.LookupClass(name)
	if !ok {
		cls = m.builtinExceptionClass(name)
	}
	obj := values.NewObjectInstance(cls)
	obj.Properties["message"] = values.String(message)
	obj.Properties["code"] = values.Int(0)
	return &ThrownException{Value: &values.Value{Type: values.TypeObject, Obj: obj}}
}

// SeedExceptionClasses pre-declares the built-in exception hierarchy
// into reg, so compiled code can extend or catch these classes by name
// without the script declaring them. The engine calls this ahead of
// compilation; the VM also falls back to it lazily for a name first
// seen at run time.
func SeedExceptionClasses(reg *registry.Registry) {
	for name := range builtinExceptionBases {
		ensureExceptionClass(reg, name)
	}
}

// builtinExceptionClass lazily declares and caches one of the standard
// exception hierarchy roots the runtime itself can throw, registering it
// under Exception/Error/TypeError/ValueError/DivisionByZeroError so a
// script-level `catch` or `instanceof` sees an ordinary declared class.
// Its magic methods (__construct/getMessage/getCode/__toString) are
// native Go closures rather than compiled bytecode, since these classes
// are never parsed from source.
func (m *Machine) builtinExceptionClass(name string) *values.Class {
	return ensureExceptionClass(m.Reg, name)
}

func ensureExceptionClass(reg *registry.Registry, name string) *values.Class {
	if cls, ok := reg.LookupClass(name); ok {
		return cls
	}
	canon := canonicalExceptionName(name)
	base, hasBase := builtinExceptionBases[canon]
	var baseClass *values.Class
	if hasBase {
		baseClass = ensureExceptionClass(reg, base)
	}
	cls := values.NewClass(canon)
	cls.Properties["message"] = &values.Property{Name: "message"}
	cls.Properties["code"] = &values.Property{Name: "code"}
	if baseClass != nil {
		cls.Inherit(baseClass)
	}
	cls.Methods["__construct"] = &values.Method{Name: "__construct", Native: func(this *values.Object, args []*values.Value) (*values.Value, error) {
		msg, code := "", int64(0)
		if len(args) > 0 {
			msg = args[0].ToString()
		}
		if len(args) > 1 {
			code = args[1].ToInt()
		}
		this.Properties["message"] = values.String(msg)
		this.Properties["code"] = values.Int(code)
		return values.Null(), nil
	}}
	cls.Methods["getmessage"] = &values.Method{Name: "getMessage", Native: func(this *values.Object, args []*values.Value) (*values.Value, error) {
		return propOrEmpty(this, "message"), nil
	}}
	cls.Methods["getcode"] = &values.Method{Name: "getCode", Native: func(this *values.Object, args []*values.Value) (*values.Value, error) {
		if v, ok := this.Properties["code"]; ok {
			return v, nil
		}
		return values.Int(0), nil
	}}
	cls.Methods["__tostring"] = &values.Method{Name: "__toString", Native: func(this *values.Object, args []*values.Value) (*values.Value, error) {
		return values.String(this.Class.Name + ": " + propOrEmpty(this, "message").ToString()), nil
	}}
	reg.DeclareClass(cls)
	return cls
}

func propOrEmpty(o *values.Object, name string) *values.Value {
	if v, ok := o.Properties[name]; ok {
		return v
	}
	return values.String("")
}

// canonicalExceptionName maps a case-insensitively spelled builtin
// exception/error name to its canonical declared spelling, so `new
// exception(...)` and `new Exception(...)` resolve to the same class.
func canonicalExceptionName(name string) string {
	for canon := range builtinExceptionBases {
		if strings.EqualFold(canon, name) {
			return canon
		}
	}
	if strings.EqualFold(name, "Throwable") {
		return "Throwable"
	}
	return name
}

var builtinExceptionBases = map[string]string{
	"Error":               "Throwable",
	"TypeError":           "Error",
	"ValueError":          "Error",
	"ArgumentCountError":  "TypeError",
	"ArithmeticError":     "Error",
	"DivisionByZeroError": "ArithmeticError",
	"Exception":           "Throwable",
	"RuntimeException":    "Exception",
	"LogicException":      "Exception",
}

// classMatches answers whether a thrown value's class satisfies any of a
// catch clause's listed types (`catch (A|B $e)`).
func classMatches(v *values.Value, classNames []string) bool {
	if v == nil || v.Type != values.TypeObject {
		return false
	}
	for _, name := range classNames {
		if v.Obj.Class.IsSubclassOf(name) {
			return true
		}
	}
	return false
}

// reportFatal renders an uncaught exception or runtime fault the way a
// CLI SAPI would, through the shared errors.Bag formatting.
func (m *Machine) reportFatal(err error) {
	msg := err.Error()
	d := errors.New(errors.KindFatal, m.File, errors.Position{}, "%s", msg)
	m.Bag.Report(d)
}
