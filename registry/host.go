package registry

import "github.com/vesper-lang/vesper/values"

// Host is the narrow surface a BuiltinImplementation needs from the
// running VM: emitting output and allocating the composite value kinds.
// Defined here (rather than imported from vm) to avoid a registry<->vm
// import cycle.
type Host interface {
	Write(s string)
	NewArray() *values.Value
	NewObject(class *values.Class) *values.Value
}

// CallContext is the "context pointer" passed to a BuiltinImplementation:
// the argument values, the bound instance for a method call (nil for a
// plain function), and the Host for output/allocation.
type CallContext struct {
	Args []*values.Value
	This *values.Object
	Host Host
}

func (c *CallContext) Arg(i int) *values.Value {
	if i < 0 || i >= len(c.Args) {
		return values.Null()
	}
	return c.Args[i]
}

// BuiltinImplementation is a host-registered foreign function: a
// string/array/math/date helper or similar out-of-core collaborator,
// invoked through OpCall when no user-defined function of that name
// exists.
type BuiltinImplementation func(ctx *CallContext) (*values.Value, error)
