// Package registry holds everything a compiled program and the running
// VM share by name: user-defined functions (grouped for overload
// resolution), classes, module-level constants, and host-registered
// foreign functions/constants/classes. It is the engine-level symbol
// table for the embedding surface.
package registry

import (
	"strings"

	"github.com/vesper-lang/vesper/opcodes"
	"github.com/vesper-lang/vesper/values"
)

// Param is one parameter of a compiled user function or method. Default
// is a compiled initializer chunk, run into the callee's frame when the
// caller omits the argument.
type Param struct {
	Name     string
	Type     string
	ByRef    bool
	Variadic bool
	HasDefault bool
	Default  []opcodes.Instruction
}

// Function is a compiled, callable unit: a top-level function, a
// closure, or (wrapped in a values.Method) a class method.
type Function struct {
	Name        string
	Params      []Param
	ByRefReturn bool
	ReturnType  string
	Body        []opcodes.Instruction
	NumLocals   int
	VarSlots    map[string]int // local variable name -> frame-local slot (0..NumLocals-1)

	// StaticSlots maps STATIC-declared variable names to a value-pool
	// slot index that persists across calls; populated lazily on first
	// call via StaticInit.
	StaticSlots map[string]int
	StaticInit  map[string][]opcodes.Instruction

	IsMethod bool
	Class    *values.Class // declaring class, for methods (self::/parent:: context)
}

// Group is the overload set of same-named top-level functions: the
// overload group sharing that name.
type Group struct {
	Name      string
	Overloads []*Function
}

// Registry is the symbol table shared by one compiled program and the
// VM executing it. A fresh Registry is created per Engine.Compile call;
// host functions/classes/constants registered on an Engine are copied in
// by Engine.newRegistry before compilation.
type Registry struct {
	Functions map[string]*Group // keyed lower-case
	Classes   map[string]*values.Class
	Constants map[string]*values.Value
	HostConstants map[string]func() *values.Value

	Builtins map[string]BuiltinImplementation
}

func New() *Registry {
	return &Registry{
		Functions:     make(map[string]*Group),
		Classes:       make(map[string]*values.Class),
		Constants:     make(map[string]*values.Value),
		HostConstants: make(map[string]func() *values.Value),
		Builtins:      make(map[string]BuiltinImplementation),
	}
}

// Declare registers a user-defined function, appending it to the
// existing overload group of the same name (case-insensitive) if one
// exists.
func (r *Registry) Declare(fn *Function) {
	key := strings.ToLower(fn.Name)
	g, ok := r.Functions[key]
	if !ok {
		g = &Group{Name: fn.Name}
		r.Functions[key] = g
	}
	g.Overloads = append(g.Overloads, fn)
}

func (r *Registry) Lookup(name string) (*Group, bool) {
	g, ok := r.Functions[strings.ToLower(name)]
	return g, ok
}

func (r *Registry) DeclareClass(c *values.Class) {
	r.Classes[strings.ToLower(c.Name)] = c
}

func (r *Registry) LookupClass(name string) (*values.Class, bool) {
	c, ok := r.Classes[strings.ToLower(name)]
	return c, ok
}

// RegisterBuiltin installs a host foreign function, keyed by name,
// invoked through CALL when no user-defined function of that name
// exists.
func (r *Registry) RegisterBuiltin(name string, impl BuiltinImplementation) {
	r.Builtins[strings.ToLower(name)] = impl
}

func (r *Registry) LookupBuiltin(name string) (BuiltinImplementation, bool) {
	b, ok := r.Builtins[strings.ToLower(name)]
	return b, ok
}

// RegisterHostConstant installs a name + expand callback that fills a
// value slot on first resolution.
func (r *Registry) RegisterHostConstant(name string, expand func() *values.Value) {
	r.HostConstants[name] = expand
}

// SelectOverload picks the best-matching overload for the supplied
// argument values: the one whose declared parameter types match the
// actual argument types for the most positions, ties broken in
// declaration order.
func SelectOverload(g *Group, args []*values.Value) *Function {
	if len(g.Overloads) == 1 {
		return g.Overloads[0]
	}
	best := g.Overloads[0]
	bestScore := -1
	for _, fn := range g.Overloads {
		score := scoreSignature(fn, args)
		if score > bestScore {
			best, bestScore = fn, score
		}
	}
	return best
}

func scoreSignature(fn *Function, args []*values.Value) int {
	score := 0
	for i, p := range fn.Params {
		if i >= len(args) {
			break
		}
		if p.Type == "" {
			continue
		}
		if typeMatches(p.Type, args[i]) {
			score++
		} else {
			score--
		}
	}
	return score
}

func typeMatches(typ string, v *values.Value) bool {
	switch strings.ToLower(typ) {
	case "int", "integer":
		return v.Type == values.TypeInt
	case "float", "double":
		return v.Type == values.TypeFloat || v.Type == values.TypeInt
	case "string":
		return v.Type == values.TypeString
	case "bool", "boolean":
		return v.Type == values.TypeBool
	case "array":
		return v.Type == values.TypeArray
	case "object":
		return v.Type == values.TypeObject
	default:
		// a user-class type name: matches an object of that class or a subclass.
		return v.Type == values.TypeObject && v.Obj.Class.IsSubclassOf(typ)
	}
}
