// Package values implements the dynamic value model: the tagged Value
// container, the insertion-ordered hashmap ("array"), and the
// class/object model the executor operates on.
package values

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Type tags the dynamic kind of a Value.
type Type byte

const (
	TypeNull Type = iota
	TypeBool
	TypeInt
	TypeFloat
	TypeString
	TypeArray
	TypeObject
	TypeResource
	TypeReference
	TypeClosure
)

func (t Type) String() string {
	switch t {
	case TypeNull:
		return "NULL"
	case TypeBool:
		return "boolean"
	case TypeInt:
		return "integer"
	case TypeFloat:
		return "double"
	case TypeString:
		return "string"
	case TypeArray:
		return "array"
	case TypeObject:
		return "object"
	case TypeResource:
		return "resource"
	case TypeReference:
		return "reference"
	case TypeClosure:
		return "object"
	default:
		return "unknown"
	}
}

// Closure is the payload of a TypeClosure value: the compiled function it
// wraps plus its `use (...)` captures, already resolved at creation time.
// A by-value capture stores a snapshot Value; a by-ref capture stores a
// TypeReference Value aliasing the capturing frame's pool slot, reusing
// the same aliasing mechanism LOAD_REF/STORE_REF use for ordinary
// reference assignment.
type Closure struct {
	FuncName string
	Uses     map[string]*Value
	Bound    *Object // $this captured from an enclosing method body, nil otherwise
}

func NewClosure(funcName string) *Value {
	return &Value{Type: TypeClosure, Clo: &Closure{FuncName: funcName, Uses: make(map[string]*Value)}}
}

// Value is one dynamic value slot. Exactly one of the typed fields is
// meaningful, selected by Type. Arr/Obj/Res are reference-counted
// payloads shared across copies that alias them (see Object/OrderedMap);
// Ref holds the global-slot index this value aliases when Type ==
// TypeReference.
type Value struct {
	Type Type

	b   bool
	i   int64
	f   float64
	s   string
	Arr *OrderedMap
	Obj *Object
	Res *Resource
	Clo *Closure
	Ref int
}

func Null() *Value                 { return &Value{Type: TypeNull} }
func Bool(b bool) *Value            { return &Value{Type: TypeBool, b: b} }
func Int(i int64) *Value            { return &Value{Type: TypeInt, i: i} }
func Float(f float64) *Value        { return &Value{Type: TypeFloat, f: f} }
func String(s string) *Value        { return &Value{Type: TypeString, s: s} }
func Reference(slot int) *Value     { return &Value{Type: TypeReference, Ref: slot} }

func NewArray() *Value {
	return &Value{Type: TypeArray, Arr: NewOrderedMap()}
}

func NewObject(class *Class) *Value {
	return &Value{Type: TypeObject, Obj: NewObjectInstance(class)}
}

func NewResource(kind string, handle interface{}) *Value {
	return &Value{Type: TypeResource, Res: &Resource{Kind: kind, ID: uuid.NewString(), Handle: handle, refs: 1}}
}

// Clone performs assignment-copy semantics: scalars and strings copy
// trivially; arrays deep-copy unless the source is itself a reference
// (the caller is responsible for reference assignment via Reference);
// objects and resources copy by incrementing their reference count, since
// PHP-family object semantics are handle semantics, not value semantics.
func (v *Value) Clone() *Value {
	if v == nil {
		return Null()
	}
	switch v.Type {
	case TypeArray:
		return &Value{Type: TypeArray, Arr: v.Arr.Duplicate()}
	case TypeObject:
		v.Obj.Retain()
		return &Value{Type: TypeObject, Obj: v.Obj}
	case TypeResource:
		v.Res.Retain()
		return &Value{Type: TypeResource, Res: v.Res}
	case TypeClosure:
		return &Value{Type: TypeClosure, Clo: v.Clo}
	default:
		cp := *v
		return &cp
	}
}

func (v *Value) IsNull() bool { return v == nil || v.Type == TypeNull }

// ToBool implements the falsy rules: null, numeric zero, empty string /
// "0", and an empty array are false; everything else is true.
func (v *Value) ToBool() bool {
	if v == nil {
		return false
	}
	switch v.Type {
	case TypeNull:
		return false
	case TypeBool:
		return v.b
	case TypeInt:
		return v.i != 0
	case TypeFloat:
		return v.f != 0
	case TypeString:
		return v.s != "" && v.s != "0"
	case TypeArray:
		return v.Arr.Len() > 0
	case TypeObject, TypeResource, TypeClosure:
		return true
	case TypeReference:
		return true
	default:
		return false
	}
}

// ToInt coerces to int64 following loose-typing numeric conversion.
// Negating math.MinInt64 clamps to math.MaxInt64 rather than wrapping to
// two's complement; see negateInt.
func (v *Value) ToInt() int64 {
	switch v.Type {
	case TypeNull:
		return 0
	case TypeBool:
		if v.b {
			return 1
		}
		return 0
	case TypeInt:
		return v.i
	case TypeFloat:
		return int64(v.f)
	case TypeString:
		n, _ := parseLeadingNumber(v.s)
		return int64(n)
	case TypeArray:
		if v.Arr.Len() > 0 {
			return 1
		}
		return 0
	default:
		return 0
	}
}

func negateInt(i int64) int64 {
	if i == math.MinInt64 {
		return math.MaxInt64
	}
	return -i
}

func (v *Value) ToFloat() float64 {
	switch v.Type {
	case TypeInt:
		return float64(v.i)
	case TypeFloat:
		return v.f
	case TypeBool:
		if v.b {
			return 1
		}
		return 0
	case TypeString:
		n, _ := parseLeadingNumber(v.s)
		return n
	default:
		return 0
	}
}

func (v *Value) ToString() string {
	switch v.Type {
	case TypeNull:
		return ""
	case TypeBool:
		if v.b {
			return "1"
		}
		return ""
	case TypeInt:
		return strconv.FormatInt(v.i, 10)
	case TypeFloat:
		return formatFloat(v.f)
	case TypeString:
		return v.s
	case TypeArray:
		return "Array"
	case TypeObject:
		// No VM is reachable from here to invoke __toString; callers
		// that need __toString-aware stringification (echo, `.`
		// concat, (string) cast, ordering comparisons) go through
		// Machine.stringify instead, which tries __toString first and
		// falls back to this same placeholder.
		return fmt.Sprintf("object(%s)", v.Obj.Class.Name)
	case TypeClosure:
		return "Closure"
	default:
		return ""
	}
}

func formatFloat(f float64) string {
	if math.IsInf(f, 1) {
		return "INF"
	}
	if math.IsInf(f, -1) {
		return "-INF"
	}
	if math.IsNaN(f) {
		return "NAN"
	}
	s := strconv.FormatFloat(f, 'G', 14, 64)
	return s
}

// IsNumeric recognizes int/float types and numeric strings (optionally
// signed, decimal, with leading/trailing whitespace trimmed).
func (v *Value) IsNumeric() bool {
	switch v.Type {
	case TypeInt, TypeFloat:
		return true
	case TypeString:
		_, ok := parseLeadingNumber(v.s)
		return ok
	default:
		return false
	}
}

func parseLeadingNumber(s string) (float64, bool) {
	t := strings.TrimSpace(s)
	if t == "" {
		return 0, false
	}
	if n, err := strconv.ParseInt(t, 10, 64); err == nil {
		return float64(n), true
	}
	if f, err := strconv.ParseFloat(t, 64); err == nil {
		return f, true
	}
	return 0, false
}

// LooseEqual implements `==`: numeric comparison when both sides are
// numeric or one is numeric and the other a numeric string, string
// comparison otherwise, with null/bool coerced via ToBool for mixed
// comparisons against booleans.
func LooseEqual(a, b *Value) bool {
	if a.Type == TypeBool || b.Type == TypeBool {
		return a.ToBool() == b.ToBool()
	}
	if a.Type == TypeNull || b.Type == TypeNull {
		return a.IsNull() && b.IsNull() || (!a.IsNull() && b.IsNull() && !a.ToBool()) || (a.IsNull() && !b.IsNull() && !b.ToBool())
	}
	if (a.Type == TypeInt || a.Type == TypeFloat) && (b.Type == TypeInt || b.Type == TypeFloat) {
		return a.ToFloat() == b.ToFloat()
	}
	if a.IsNumeric() && b.IsNumeric() {
		return a.ToFloat() == b.ToFloat()
	}
	if a.Type == TypeArray && b.Type == TypeArray {
		return a.Arr.LooseEqual(b.Arr)
	}
	return a.ToString() == b.ToString()
}

// StrictEqual implements `===`: identical type tag plus identical value.
// Arrays compare structurally; objects and resources compare by
// identity (same underlying handle), never by property equality.
func StrictEqual(a, b *Value) bool {
	if a.Type != b.Type {
		return false
	}
	switch a.Type {
	case TypeNull:
		return true
	case TypeBool:
		return a.b == b.b
	case TypeInt:
		return a.i == b.i
	case TypeFloat:
		return a.f == b.f
	case TypeString:
		return a.s == b.s
	case TypeArray:
		return a.Arr.StrictEqual(b.Arr)
	case TypeObject:
		return a.Obj == b.Obj
	case TypeResource:
		return a.Res == b.Res
	case TypeClosure:
		return a.Clo == b.Clo
	default:
		return false
	}
}

// Resource is an opaque host handle (file streams, database
// connections, and similar externally-owned objects); the VM tracks
// only its reference count and release hook.
type Resource struct {
	Kind string
	// ID is a collision-proof handle identity, minted once per Resource
	// rather than drawn from a process-local counter, so a host handle
	// (a database connection, a file descriptor wrapper) stays
	// identifiable across VM resets and across Machines in the same
	// process.
	ID      string
	Handle  interface{}
	refs    int32
	Release func()
}

func (r *Resource) Retain() { r.refs++ }
func (r *Resource) Release_() {
	r.refs--
	if r.refs <= 0 && r.Release != nil {
		r.Release()
	}
}
