package runtime

import (
	"github.com/gomrb/gomrb/registry"
	"github.com/gomrb/gomrb/values"
)

// Enumerable is built entirely on each: every method wraps the caller's
// block in a native proc and drives the receiver's own iteration, so any
// class that defines each (builtin or user) gets the module for free.
func initializeEnumerable(ctx registry.CallContext) {
	enum := ctx.DefineModule("Enumerable", nil)

	enum.DefineMethod("map", registry.NewNativeProc("map", enumMap))
	enum.DefineMethod("collect", registry.NewNativeProc("collect", enumMap))
	enum.DefineMethod("find", registry.NewNativeProc("find", enumFind))
	enum.DefineMethod("detect", registry.NewNativeProc("detect", enumFind))
	enum.DefineMethod("select", registry.NewNativeProc("select", enumSelect))
	enum.DefineMethod("filter", registry.NewNativeProc("filter", enumSelect))
	enum.DefineMethod("reject", registry.NewNativeProc("reject", enumReject))
	enum.DefineMethod("reduce", registry.NewNativeProc("reduce", enumReduce))
	enum.DefineMethod("inject", registry.NewNativeProc("inject", enumReduce))
	enum.DefineMethod("all?", registry.NewNativeProc("all?", enumAll))
	enum.DefineMethod("any?", registry.NewNativeProc("any?", enumAny))

	for _, name := range []string{"Array", "Range", "Hash"} {
		if c := ctx.GetClassByName(name); c != nil {
			c.Include(enum)
		}
	}
}

// eachWith drives recv's own each with a native block: the Go callback
// becomes an ordinary Proc whose body is a native callable.
func eachWith(ctx registry.CallContext, recv *values.Value, fn registry.NativeFn) error {
	block := values.NewProc(registry.NewNativeProc("<block>", fn))
	_, err := ctx.FuncallWithBlock(recv, "each", nil, block)
	return err
}

func enumMap(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
	_, block := blockArg(args)
	if block == nil {
		return nil, registry.NewArgumentError("no block given")
	}
	results := values.NewArray(nil)
	arr, _ := results.AsArray()
	err := eachWith(ctx, self, func(ctx registry.CallContext, _ *values.Value, elems []*values.Value) (*values.Value, error) {
		res, err := ctx.CallBlock(block, nil, elems)
		if err != nil {
			return nil, err
		}
		arr.Elems = append(arr.Elems, res)
		return res, nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

func enumFind(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
	_, block := blockArg(args)
	if block == nil {
		return nil, registry.NewArgumentError("no block given")
	}
	var found *values.Value
	err := eachWith(ctx, self, func(ctx registry.CallContext, _ *values.Value, elems []*values.Value) (*values.Value, error) {
		if found != nil {
			return values.Nil(), nil
		}
		res, err := ctx.CallBlock(block, nil, elems)
		if err != nil {
			return nil, err
		}
		if res.IsTruthy() && len(elems) > 0 {
			found = elems[0]
		}
		return values.Nil(), nil
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return values.Nil(), nil
	}
	return found, nil
}

func enumSelect(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
	return enumFilterBy(ctx, self, args, true)
}

func enumReject(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
	return enumFilterBy(ctx, self, args, false)
}

func enumFilterBy(ctx registry.CallContext, self *values.Value, args []*values.Value, keep bool) (*values.Value, error) {
	_, block := blockArg(args)
	if block == nil {
		return nil, registry.NewArgumentError("no block given")
	}
	results := values.NewArray(nil)
	arr, _ := results.AsArray()
	err := eachWith(ctx, self, func(ctx registry.CallContext, _ *values.Value, elems []*values.Value) (*values.Value, error) {
		res, err := ctx.CallBlock(block, nil, elems)
		if err != nil {
			return nil, err
		}
		if res.IsTruthy() == keep && len(elems) > 0 {
			arr.Elems = append(arr.Elems, elems[0])
		}
		return values.Nil(), nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

func enumReduce(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
	rest, block := blockArg(args)
	if block == nil {
		return nil, registry.NewArgumentError("no block given")
	}
	var acc *values.Value
	if len(rest) > 0 {
		acc = rest[0]
	}
	err := eachWith(ctx, self, func(ctx registry.CallContext, _ *values.Value, elems []*values.Value) (*values.Value, error) {
		if len(elems) == 0 {
			return values.Nil(), nil
		}
		if acc == nil {
			acc = elems[0]
			return values.Nil(), nil
		}
		res, err := ctx.CallBlock(block, nil, []*values.Value{acc, elems[0]})
		if err != nil {
			return nil, err
		}
		acc = res
		return values.Nil(), nil
	})
	if err != nil {
		return nil, err
	}
	if acc == nil {
		return values.Nil(), nil
	}
	return acc, nil
}

func enumAll(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
	_, block := blockArg(args)
	ok := true
	err := eachWith(ctx, self, func(ctx registry.CallContext, _ *values.Value, elems []*values.Value) (*values.Value, error) {
		if !ok || len(elems) == 0 {
			return values.Nil(), nil
		}
		v := elems[0]
		if block != nil {
			res, err := ctx.CallBlock(block, nil, elems)
			if err != nil {
				return nil, err
			}
			v = res
		}
		if v.IsFalsy() {
			ok = false
		}
		return values.Nil(), nil
	})
	if err != nil {
		return nil, err
	}
	return values.NewBool(ok), nil
}

func enumAny(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
	_, block := blockArg(args)
	found := false
	err := eachWith(ctx, self, func(ctx registry.CallContext, _ *values.Value, elems []*values.Value) (*values.Value, error) {
		if found || len(elems) == 0 {
			return values.Nil(), nil
		}
		v := elems[0]
		if block != nil {
			res, err := ctx.CallBlock(block, nil, elems)
			if err != nil {
				return nil, err
			}
			v = res
		}
		if v.IsTruthy() {
			found = true
		}
		return values.Nil(), nil
	})
	if err != nil {
		return nil, err
	}
	return values.NewBool(found), nil
}
