package values

import "math"

// Negate implements unary `-`. Integer negation clamps at math.MinInt64
// rather than wrapping, matching the int64 overflow policy the rest of
// the numeric tower uses.
func Negate(v *Value) *Value {
	switch v.Type {
	case TypeInt:
		return Int(negateInt(v.i))
	case TypeFloat:
		return Float(-v.f)
	default:
		if v.IsNumeric() {
			return Float(-v.ToFloat())
		}
		return Int(negateInt(v.ToInt()))
	}
}

func bothInt(a, b *Value) bool { return a.Type == TypeInt && b.Type == TypeInt }

// BinaryFold evaluates a single binary operator over two already-
// resolved operands outside of any running frame: the compile-time
// constant-folding path for class constants and static-property
// defaults. It intentionally does not implement the VM's richer runtime
// coercion diagnostics (notices, DivisionByZeroError); a fold that would
// need those reports ok == false instead, so the caller can reject the
// expression as non-constant.
func BinaryFold(op string, a, b *Value) (*Value, bool) {
	switch op {
	case "+":
		if a.Type == TypeArray && b.Type == TypeArray {
			return &Value{Type: TypeArray, Arr: Union(a.Arr, b.Arr)}, true
		}
		return arith(a, b, func(x, y int64) (int64, bool) { return addInt(x, y) }, func(x, y float64) float64 { return x + y })
	case "-":
		return arith(a, b, func(x, y int64) (int64, bool) { return subInt(x, y) }, func(x, y float64) float64 { return x - y })
	case "*":
		return arith(a, b, func(x, y int64) (int64, bool) { return mulInt(x, y) }, func(x, y float64) float64 { return x * y })
	case "/":
		if b.ToFloat() == 0 {
			return nil, false
		}
		if bothInt(a, b) && a.i%b.i == 0 {
			return Int(a.i / b.i), true
		}
		return Float(a.ToFloat() / b.ToFloat()), true
	case "%":
		bi := b.ToInt()
		if bi == 0 {
			return nil, false
		}
		return Int(a.ToInt() % bi), true
	case "**":
		r := math.Pow(a.ToFloat(), b.ToFloat())
		if bothInt(a, b) && b.i >= 0 && r == math.Trunc(r) && math.Abs(r) < math.MaxInt64 {
			return Int(int64(r)), true
		}
		return Float(r), true
	case ".":
		return String(a.ToString() + b.ToString()), true
	case "&":
		return Int(a.ToInt() & b.ToInt()), true
	case "|":
		return Int(a.ToInt() | b.ToInt()), true
	case "^":
		return Int(a.ToInt() ^ b.ToInt()), true
	case "<<":
		return Int(a.ToInt() << uint(b.ToInt())), true
	case ">>":
		return Int(a.ToInt() >> uint(b.ToInt())), true
	case "==":
		return Bool(LooseEqual(a, b)), true
	case "!=", "<>":
		return Bool(!LooseEqual(a, b)), true
	case "===":
		return Bool(StrictEqual(a, b)), true
	case "!==":
		return Bool(!StrictEqual(a, b)), true
	case "<":
		return Bool(Compare(a, b) < 0), true
	case "<=":
		return Bool(Compare(a, b) <= 0), true
	case ">":
		return Bool(Compare(a, b) > 0), true
	case ">=":
		return Bool(Compare(a, b) >= 0), true
	case "<=>":
		return Int(int64(Compare(a, b))), true
	}
	return nil, false
}

func arith(a, b *Value, ints func(int64, int64) (int64, bool), floats func(float64, float64) float64) (*Value, bool) {
	if bothInt(a, b) {
		if r, ok := ints(a.i, b.i); ok {
			return Int(r), true
		}
		return Float(floats(float64(a.i), float64(b.i))), true
	}
	if a.IsNumeric() && b.IsNumeric() {
		return Float(floats(a.ToFloat(), b.ToFloat())), true
	}
	return nil, false
}

func addInt(a, b int64) (int64, bool) {
	r := a + b
	if (b > 0 && r < a) || (b < 0 && r > a) {
		return 0, false
	}
	return r, true
}

func subInt(a, b int64) (int64, bool) {
	r := a - b
	if (b < 0 && r < a) || (b > 0 && r > a) {
		return 0, false
	}
	return r, true
}

func mulInt(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	r := a * b
	if r/b != a {
		return 0, false
	}
	return r, true
}

// Compare implements the three-way `<=>` ordering: numeric comparison
// when both sides are numeric, lexical otherwise.
func Compare(a, b *Value) int {
	if (a.Type == TypeInt || a.Type == TypeFloat) && (b.Type == TypeInt || b.Type == TypeFloat) {
		af, bf := a.ToFloat(), b.ToFloat()
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	if a.IsNumeric() && b.IsNumeric() {
		af, bf := a.ToFloat(), b.ToFloat()
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	as, bs := a.ToString(), b.ToString()
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	default:
		return 0
	}
}
