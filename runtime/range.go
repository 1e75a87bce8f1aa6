package runtime

import (
	"github.com/gomrb/gomrb/registry"
	"github.com/gomrb/gomrb/values"
)

func rangeBounds(r *values.Range) (int64, int64, error) {
	lo, ok1 := r.Start.AsInt()
	hi, ok2 := r.End.AsInt()
	if !ok1 || !ok2 {
		return 0, 0, registry.NewTypeMismatch("can't iterate over a non-Integer range")
	}
	if r.Exclusive {
		hi--
	}
	return lo, hi, nil
}

func initializeRange(ctx registry.CallContext) {
	rng := &ctx.GetClassByName("Range").Module

	rng.DefineMethod("each", registry.NewNativeProc("each", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		r, _ := self.AsRange()
		_, block := blockArg(args)
		if block == nil {
			return nil, registry.NewArgumentError("no block given")
		}
		lo, hi, err := rangeBounds(r)
		if err != nil {
			return nil, err
		}
		for i := lo; i <= hi; i++ {
			if _, err := ctx.CallBlock(block, nil, []*values.Value{values.NewInt(i)}); err != nil {
				return nil, err
			}
		}
		return self, nil
	}))

	rng.DefineMethod("to_a", registry.NewNativeProc("to_a", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		r, _ := self.AsRange()
		lo, hi, err := rangeBounds(r)
		if err != nil {
			return nil, err
		}
		var out []*values.Value
		for i := lo; i <= hi; i++ {
			out = append(out, values.NewInt(i))
		}
		return values.NewArray(out), nil
	}))

	rng.DefineMethod("first", registry.NewNativeProc("first", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		r, _ := self.AsRange()
		return r.Start, nil
	}))

	rng.DefineMethod("last", registry.NewNativeProc("last", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		r, _ := self.AsRange()
		return r.End, nil
	}))

	rng.DefineMethod("exclude_end?", registry.NewNativeProc("exclude_end?", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		r, _ := self.AsRange()
		return values.NewBool(r.Exclusive), nil
	}))

	rng.DefineMethod("size", registry.NewNativeProc("size", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		r, _ := self.AsRange()
		lo, hi, err := rangeBounds(r)
		if err != nil {
			return nil, err
		}
		if hi < lo {
			return values.NewInt(0), nil
		}
		return values.NewInt(hi - lo + 1), nil
	}))

	includes := registry.NewNativeProc("include?", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		if len(args) < 1 {
			return nil, registry.NewArgumentError("wrong number of arguments (given 0, expected 1)")
		}
		r, _ := self.AsRange()
		lo, lok := r.Start.AsFloat()
		hi, hok := r.End.AsFloat()
		x, xok := args[0].AsFloat()
		if !lok || !hok || !xok {
			return values.NewBool(false), nil
		}
		if r.Exclusive {
			return values.NewBool(x >= lo && x < hi), nil
		}
		return values.NewBool(x >= lo && x <= hi), nil
	})
	rng.DefineMethod("include?", includes)
	rng.DefineMethod("member?", includes)
	rng.DefineMethod("cover?", includes)
}
