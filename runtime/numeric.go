package runtime

import (
	"math"
	"strconv"

	"github.com/gomrb/gomrb/registry"
	"github.com/gomrb/gomrb/values"
)

// blockArg splits the trailing block proc, if one was supplied at the
// call site, off an argument slice.
func blockArg(args []*values.Value) ([]*values.Value, *values.Value) {
	if n := len(args); n > 0 && args[n-1].IsProc() {
		return args[:n-1], args[n-1]
	}
	return args, nil
}

func wantInt(v *values.Value) (int64, error) {
	if i, ok := v.AsInt(); ok {
		return i, nil
	}
	return 0, registry.NewTypeMismatch("no implicit conversion of %s into Integer", v.Type)
}

func numericBinop(name string, intFn func(a, b int64) (*values.Value, error), floatFn func(a, b float64) *values.Value) registry.NativeFn {
	return func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		if len(args) < 1 {
			return nil, registry.NewArgumentError("wrong number of arguments (given 0, expected 1)")
		}
		lhs, rhs := self, args[0]
		if lhs.Type == values.TypeInt && rhs.Type == values.TypeInt {
			return intFn(lhs.Data.(int64), rhs.Data.(int64))
		}
		lf, lok := lhs.AsFloat()
		rf, rok := rhs.AsFloat()
		if !lok || !rok {
			return nil, registry.NewTypeMismatch("%s can't be coerced for %s", rhs.Inspect(), name)
		}
		return floatFn(lf, rf), nil
	}
}

func defineArithmetic(target *registry.Module) {
	target.DefineMethod("+", registry.NewNativeProc("+", numericBinop("+",
		func(a, b int64) (*values.Value, error) { return values.NewInt(a + b), nil },
		func(a, b float64) *values.Value { return values.NewFloat(a + b) })))
	target.DefineMethod("-", registry.NewNativeProc("-", numericBinop("-",
		func(a, b int64) (*values.Value, error) { return values.NewInt(a - b), nil },
		func(a, b float64) *values.Value { return values.NewFloat(a - b) })))
	target.DefineMethod("*", registry.NewNativeProc("*", numericBinop("*",
		func(a, b int64) (*values.Value, error) { return values.NewInt(a * b), nil },
		func(a, b float64) *values.Value { return values.NewFloat(a * b) })))
	target.DefineMethod("/", registry.NewNativeProc("/", numericBinop("/",
		func(a, b int64) (*values.Value, error) {
			if b == 0 {
				return nil, registry.NewZeroDivisionError()
			}
			return values.NewInt(floorDivInt(a, b)), nil
		},
		func(a, b float64) *values.Value { return values.NewFloat(a / b) })))
	target.DefineMethod("%", registry.NewNativeProc("%", numericBinop("%",
		func(a, b int64) (*values.Value, error) {
			if b == 0 {
				return nil, registry.NewZeroDivisionError()
			}
			return values.NewInt(a - floorDivInt(a, b)*b), nil
		},
		func(a, b float64) *values.Value { return values.NewFloat(math.Mod(a, b)) })))

	cmp := func(name string, intCmp func(a, b int64) bool, floatCmp func(a, b float64) bool) {
		target.DefineMethod(name, registry.NewNativeProc(name, numericBinop(name,
			func(a, b int64) (*values.Value, error) { return values.NewBool(intCmp(a, b)), nil },
			func(a, b float64) *values.Value { return values.NewBool(floatCmp(a, b)) })))
	}
	cmp("<", func(a, b int64) bool { return a < b }, func(a, b float64) bool { return a < b })
	cmp("<=", func(a, b int64) bool { return a <= b }, func(a, b float64) bool { return a <= b })
	cmp(">", func(a, b int64) bool { return a > b }, func(a, b float64) bool { return a > b })
	cmp(">=", func(a, b int64) bool { return a >= b }, func(a, b float64) bool { return a >= b })

	target.DefineMethod("==", registry.NewNativeProc("==", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		if len(args) < 1 {
			return values.NewBool(false), nil
		}
		return values.NewBool(values.Equal(self, args[0])), nil
	}))

	target.DefineMethod("<=>", registry.NewNativeProc("<=>", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		if len(args) < 1 {
			return values.Nil(), nil
		}
		lf, lok := self.AsFloat()
		rf, rok := args[0].AsFloat()
		if !lok || !rok {
			return values.Nil(), nil
		}
		switch {
		case lf < rf:
			return values.NewInt(-1), nil
		case lf > rf:
			return values.NewInt(1), nil
		}
		return values.NewInt(0), nil
	}))
}

func floorDivInt(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func initializeInteger(ctx registry.CallContext) {
	integer := &ctx.GetClassByName("Integer").Module
	defineArithmetic(integer)

	integer.DefineMethod("times", registry.NewNativeProc("times", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		n, err := wantInt(self)
		if err != nil {
			return nil, err
		}
		_, block := blockArg(args)
		if block == nil {
			return nil, registry.NewArgumentError("no block given")
		}
		for i := int64(0); i < n; i++ {
			if _, err := ctx.CallBlock(block, nil, []*values.Value{values.NewInt(i)}); err != nil {
				return nil, err
			}
		}
		return self, nil
	}))

	integer.DefineMethod("upto", registry.NewNativeProc("upto", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		rest, block := blockArg(args)
		if len(rest) < 1 || block == nil {
			return nil, registry.NewArgumentError("upto requires a limit and a block")
		}
		from, err := wantInt(self)
		if err != nil {
			return nil, err
		}
		to, err := wantInt(rest[0])
		if err != nil {
			return nil, err
		}
		for i := from; i <= to; i++ {
			if _, err := ctx.CallBlock(block, nil, []*values.Value{values.NewInt(i)}); err != nil {
				return nil, err
			}
		}
		return self, nil
	}))

	integer.DefineMethod("downto", registry.NewNativeProc("downto", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		rest, block := blockArg(args)
		if len(rest) < 1 || block == nil {
			return nil, registry.NewArgumentError("downto requires a limit and a block")
		}
		from, err := wantInt(self)
		if err != nil {
			return nil, err
		}
		to, err := wantInt(rest[0])
		if err != nil {
			return nil, err
		}
		for i := from; i >= to; i-- {
			if _, err := ctx.CallBlock(block, nil, []*values.Value{values.NewInt(i)}); err != nil {
				return nil, err
			}
		}
		return self, nil
	}))

	integer.DefineMethod("to_s", registry.NewNativeProc("to_s", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		n, err := wantInt(self)
		if err != nil {
			return nil, err
		}
		base := 10
		if len(args) > 0 {
			b, err := wantInt(args[0])
			if err != nil {
				return nil, err
			}
			if b < 2 || b > 36 {
				return nil, registry.NewArgumentError("invalid radix %d", b)
			}
			base = int(b)
		}
		return values.NewString(strconv.FormatInt(n, base)), nil
	}))

	integer.DefineMethod("to_i", registry.NewNativeProc("to_i", selfReturning))
	integer.DefineMethod("to_f", registry.NewNativeProc("to_f", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		n, _ := self.AsInt()
		return values.NewFloat(float64(n)), nil
	}))

	integer.DefineMethod("abs", registry.NewNativeProc("abs", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		n, _ := self.AsInt()
		if n < 0 {
			n = -n
		}
		return values.NewInt(n), nil
	}))

	integer.DefineMethod("even?", registry.NewNativeProc("even?", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		n, _ := self.AsInt()
		return values.NewBool(n%2 == 0), nil
	}))

	integer.DefineMethod("odd?", registry.NewNativeProc("odd?", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		n, _ := self.AsInt()
		return values.NewBool(n%2 != 0), nil
	}))

	integer.DefineMethod("zero?", registry.NewNativeProc("zero?", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		n, _ := self.AsInt()
		return values.NewBool(n == 0), nil
	}))

	integer.DefineMethod("succ", registry.NewNativeProc("succ", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		n, _ := self.AsInt()
		return values.NewInt(n + 1), nil
	}))
}

func selfReturning(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
	return self, nil
}

func initializeFloat(ctx registry.CallContext) {
	float := &ctx.GetClassByName("Float").Module
	defineArithmetic(float)

	float.DefineMethod("to_f", registry.NewNativeProc("to_f", selfReturning))
	float.DefineMethod("to_i", registry.NewNativeProc("to_i", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		f, _ := self.AsFloat()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, &registry.RubyError{Kind: registry.KindTypeMismatch, Message: "float value out of integer range"}
		}
		return values.NewInt(int64(math.Trunc(f))), nil
	}))

	float.DefineMethod("nan?", registry.NewNativeProc("nan?", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		f, _ := self.AsFloat()
		return values.NewBool(math.IsNaN(f)), nil
	}))

	float.DefineMethod("abs", registry.NewNativeProc("abs", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		f, _ := self.AsFloat()
		return values.NewFloat(math.Abs(f)), nil
	}))

	float.DefineMethod("floor", registry.NewNativeProc("floor", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		f, _ := self.AsFloat()
		return values.NewInt(int64(math.Floor(f))), nil
	}))

	float.DefineMethod("ceil", registry.NewNativeProc("ceil", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		f, _ := self.AsFloat()
		return values.NewInt(int64(math.Ceil(f))), nil
	}))

	float.DefineMethod("round", registry.NewNativeProc("round", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		f, _ := self.AsFloat()
		if len(args) > 0 {
			digits, err := wantInt(args[0])
			if err != nil {
				return nil, err
			}
			scale := math.Pow(10, float64(digits))
			return values.NewFloat(math.Round(f*scale) / scale), nil
		}
		return values.NewInt(int64(math.Round(f))), nil
	}))

	float.DefineMethod("to_s", registry.NewNativeProc("to_s", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		return values.NewString(self.Inspect()), nil
	}))
}
