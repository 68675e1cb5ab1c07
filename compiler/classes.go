package compiler

import (
	"strings"

	"github.com/vesper-lang/vesper/ast"
	"github.com/vesper-lang/vesper/opcodes"
	"github.com/vesper-lang/vesper/values"
)

// compileClassDecl lowers a class/interface declaration: builds the
// values.Class descriptor (inheriting the base's members per
// values.Class.Inherit), compiles every method body, and declares the
// finished class into the registry before emitting a DeclClass marker
// so the VM can re-run declaration side effects in source order.
func (g *Generator) compileClassDecl(n *ast.ClassDecl) {
	cls := values.NewClass(n.Name)
	cls.Final = n.Final
	cls.Abstract = n.Abstract
	cls.IsInterface = n.IsInterface
	cls.Interfaces = n.Interfaces

	if n.BaseName != "" {
		base, ok := g.reg.LookupClass(n.BaseName)
		if !ok {
			g.errorf(n.Position, "class %q extends undeclared class %q", n.Name, n.BaseName)
		} else {
			cls.Inherit(base)
		}
	}

	for _, pd := range n.Properties {
		p := &values.Property{
			Name:       pd.Name,
			Visibility: visibilityOf(pd.Visibility),
			Static:     pd.Static,
		}
		if pd.Default != nil {
			prevClass, prevCur := g.classCtx, g.cur
			g.classCtx = cls
			g.cur = newScope()
			g.cur.blocks = append(g.cur.blocks, &cblock{kind: blockFunc})
			p.InitChunk = g.compileDefaultChunk(pd.Default)
			g.cur = prevCur
			g.classCtx = prevClass
		}
		cls.Properties[pd.Name] = p
		if pd.Static {
			if v, ok := g.constFold(cls, pd.Default); ok {
				cls.Statics[pd.Name] = v
			} else {
				cls.Statics[pd.Name] = values.Null()
			}
		}
	}

	for _, cd := range n.Constants {
		v, ok := g.constFold(cls, cd.Value)
		if !ok {
			g.errorf(cd.Value.Pos(), "class constant %q must be a compile-time constant expression", cd.Name)
			v = values.Null()
		}
		cls.Constants[cd.Name] = v
	}

	// Methods are declared into cls.Methods before any body is compiled
	// so sibling methods (and self-recursive calls) resolve, mirroring
	// how top-level functions are visible throughout the same file.
	for _, md := range n.Methods {
		cls.Methods[strings.ToLower(md.Name)] = &values.Method{
			Name:       md.Name,
			Visibility: visibilityOf(md.Visibility),
			Static:     md.Static,
			Abstract:   md.Abstract,
			Final:      md.Final,
		}
	}
	g.reg.DeclareClass(cls)

	for _, md := range n.Methods {
		if md.Abstract || md.Body == nil {
			continue
		}
		fn := g.compileFunctionBody(cls.Name+"::"+md.Name, md.Params, md.Body, md.ByRefReturn, md.ReturnType, true, cls)
		cls.Methods[strings.ToLower(md.Name)].Func = fn
	}

	g.emit(opcodes.OpDeclClass, 0, n.Name, n.Position.Line)
}

// arrayKey canonicalizes a folded constant-expression value into an
// array key, same as the runtime array would: integers (and
// canonical-integer strings) index numerically, everything else by its
// string form.
func arrayKey(v *values.Value) values.Key {
	if v.Type == values.TypeInt {
		return values.IntKey(v.ToInt())
	}
	return values.NewKey(v.ToString())
}

func visibilityOf(s string) values.Visibility {
	switch s {
	case "protected":
		return values.Protected
	case "private":
		return values.Private
	default:
		return values.Public
	}
}

// constFold evaluates a narrow subset of expressions at compile time:
// what class constants and static-property initializers are allowed to
// be. Unsupported shapes report ok == false so the caller can fall back
// to an error, rather than silently compiling something that isn't
// actually a constant.
func (g *Generator) constFold(cls *values.Class, e ast.Expr) (*values.Value, bool) {
	if e == nil {
		return values.Null(), true
	}
	switch n := e.(type) {
	case *ast.Literal:
		switch n.Kind {
		case ast.LitNull:
			return values.Null(), true
		case ast.LitBool:
			return values.Bool(n.BoolVal), true
		case ast.LitInt:
			return values.Int(n.IntVal), true
		case ast.LitFloat:
			return values.Float(n.FloatVal), true
		case ast.LitString:
			return values.String(n.StrVal), true
		}
		return nil, false

	case *ast.Unary:
		v, ok := g.constFold(cls, n.Operand)
		if !ok {
			return nil, false
		}
		switch n.Op {
		case "-":
			return values.Negate(v), true
		case "+":
			return v, true
		case "!":
			return values.Bool(!v.ToBool()), true
		}
		return nil, false

	case *ast.Binary:
		l, ok1 := g.constFold(cls, n.Left)
		r, ok2 := g.constFold(cls, n.Right)
		if !ok1 || !ok2 {
			return nil, false
		}
		return values.BinaryFold(n.Op, l, r)

	case *ast.ArrayLiteral:
		arr := values.NewOrderedMap()
		for _, el := range n.Elements {
			v, ok := g.constFold(cls, el.Value)
			if !ok {
				return nil, false
			}
			if el.Key != nil {
				k, ok := g.constFold(cls, el.Key)
				if !ok {
					return nil, false
				}
				arr.Set(arrayKey(k), v)
			} else {
				arr.Append(v)
			}
		}
		return &values.Value{Type: values.TypeArray, Arr: arr}, true

	case *ast.ClassNameRef:
		if v, ok := g.reg.Constants[n.Name]; ok {
			return v, true
		}
		return nil, false

	case *ast.MemberAccess:
		if n.Static && cls != nil {
			if lit, ok := n.Member.(*ast.Literal); ok && lit.Kind == ast.LitString {
				if ref, ok := n.Object.(*ast.ClassNameRef); ok {
					target := cls
					if strings.EqualFold(ref.Name, "parent") {
						target = cls.Base
					}
					if target != nil {
						if v, ok := target.FindConstant(lit.StrVal); ok {
							return v, true
						}
					}
				}
			}
		}
		return nil, false
	}
	return nil, false
}
