// Package builtins registers a small, explicitly non-exhaustive set of
// foreign functions — enough to exercise the CALL opcode's host-function
// path end to end without reimplementing the standard library.
// Registration follows a runtime/*_functions.go style, reduced to
// registry.BuiltinImplementation values.
package builtins

import (
	"fmt"
	"strings"

	"github.com/vesper-lang/vesper/registry"
	"github.com/vesper-lang/vesper/values"
)

// Register installs every builtin this package knows about into reg.
func Register(reg *registry.Registry) {
	reg.RegisterBuiltin("strlen", builtinStrlen)
	reg.RegisterBuiltin("count", builtinCount)
	reg.RegisterBuiltin("array_keys", builtinArrayKeys)
	reg.RegisterBuiltin("array_values", builtinArrayValues)
	reg.RegisterBuiltin("implode", builtinImplode)
	reg.RegisterBuiltin("explode", builtinExplode)
	reg.RegisterBuiltin("gettype", builtinGettype)
	reg.RegisterBuiltin("var_dump", builtinVarDump)
	reg.RegisterBuiltin("is_array", typeCheck(values.TypeArray))
	reg.RegisterBuiltin("is_string", typeCheck(values.TypeString))
	reg.RegisterBuiltin("is_int", typeCheck(values.TypeInt))
	reg.RegisterBuiltin("is_bool", typeCheck(values.TypeBool))
	reg.RegisterBuiltin("is_null", typeCheck(values.TypeNull))
	reg.RegisterBuiltin("is_object", typeCheck(values.TypeObject))
}

func builtinStrlen(ctx *registry.CallContext) (*values.Value, error) {
	return values.Int(int64(len(ctx.Arg(0).ToString()))), nil
}

func builtinCount(ctx *registry.CallContext) (*values.Value, error) {
	v := ctx.Arg(0)
	if v.Type != values.TypeArray {
		return values.Int(1), nil
	}
	return values.Int(int64(v.Arr.Len())), nil
}

func builtinArrayKeys(ctx *registry.CallContext) (*values.Value, error) {
	out := ctx.Host.NewArray()
	v := ctx.Arg(0)
	if v.Type != values.TypeArray {
		return out, nil
	}
	v.Arr.Each(func(k values.Key, _ *values.Value) bool {
		if k.IsInt {
			out.Arr.Append(values.Int(k.I))
		} else {
			out.Arr.Append(values.String(k.S))
		}
		return true
	})
	return out, nil
}

func builtinArrayValues(ctx *registry.CallContext) (*values.Value, error) {
	out := ctx.Host.NewArray()
	v := ctx.Arg(0)
	if v.Type != values.TypeArray {
		return out, nil
	}
	v.Arr.Each(func(_ values.Key, val *values.Value) bool {
		out.Arr.Append(val.Clone())
		return true
	})
	return out, nil
}

func builtinImplode(ctx *registry.CallContext) (*values.Value, error) {
	sep := ""
	arr := ctx.Arg(0)
	if len(ctx.Args) > 1 {
		sep = ctx.Arg(0).ToString()
		arr = ctx.Arg(1)
	}
	if arr.Type != values.TypeArray {
		return values.String(""), nil
	}
	parts := make([]string, 0, arr.Arr.Len())
	arr.Arr.Each(func(_ values.Key, v *values.Value) bool {
		parts = append(parts, v.ToString())
		return true
	})
	return values.String(strings.Join(parts, sep)), nil
}

func builtinExplode(ctx *registry.CallContext) (*values.Value, error) {
	sep := ctx.Arg(0).ToString()
	subject := ctx.Arg(1).ToString()
	out := ctx.Host.NewArray()
	if sep == "" {
		return out, fmt.Errorf("explode(): separator cannot be empty")
	}
	for _, part := range strings.Split(subject, sep) {
		out.Arr.Append(values.String(part))
	}
	return out, nil
}

func builtinGettype(ctx *registry.CallContext) (*values.Value, error) {
	v := ctx.Arg(0)
	switch v.Type {
	case values.TypeNull:
		return values.String("NULL"), nil
	case values.TypeBool:
		return values.String("boolean"), nil
	case values.TypeInt:
		return values.String("integer"), nil
	case values.TypeFloat:
		return values.String("double"), nil
	case values.TypeString:
		return values.String("string"), nil
	case values.TypeArray:
		return values.String("array"), nil
	case values.TypeObject:
		return values.String("object"), nil
	case values.TypeResource:
		return values.String("resource"), nil
	default:
		return values.String("unknown type"), nil
	}
}

func builtinVarDump(ctx *registry.CallContext) (*values.Value, error) {
	var b strings.Builder
	for _, v := range ctx.Args {
		dumpValue(&b, v, 0)
	}
	ctx.Host.Write(b.String())
	return values.Null(), nil
}

func dumpValue(b *strings.Builder, v *values.Value, depth int) {
	indent := strings.Repeat("  ", depth)
	switch v.Type {
	case values.TypeNull:
		fmt.Fprintf(b, "%sNULL\n", indent)
	case values.TypeBool:
		fmt.Fprintf(b, "%sbool(%t)\n", indent, v.ToBool())
	case values.TypeInt:
		fmt.Fprintf(b, "%sint(%d)\n", indent, v.ToInt())
	case values.TypeFloat:
		fmt.Fprintf(b, "%sfloat(%s)\n", indent, v.ToString())
	case values.TypeString:
		s := v.ToString()
		fmt.Fprintf(b, "%sstring(%d) \"%s\"\n", indent, len(s), s)
	case values.TypeArray:
		fmt.Fprintf(b, "%sarray(%d) {\n", indent, v.Arr.Len())
		v.Arr.Each(func(k values.Key, val *values.Value) bool {
			if k.IsInt {
				fmt.Fprintf(b, "%s  [%d]=>\n", indent, k.I)
			} else {
				fmt.Fprintf(b, "%s  [\"%s\"]=>\n", indent, k.S)
			}
			dumpValue(b, val, depth+1)
			return true
		})
		fmt.Fprintf(b, "%s}\n", indent)
	case values.TypeObject:
		fmt.Fprintf(b, "%sobject(%s)#%d\n", indent, v.Obj.Class.Name, v.Obj.ID())
	default:
		fmt.Fprintf(b, "%s%s\n", indent, v.ToString())
	}
}

func typeCheck(t values.Type) registry.BuiltinImplementation {
	return func(ctx *registry.CallContext) (*values.Value, error) {
		return values.Bool(ctx.Arg(0).Type == t), nil
	}
}
