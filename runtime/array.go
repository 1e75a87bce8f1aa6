package runtime

import (
	"strings"

	"github.com/gomrb/gomrb/registry"
	"github.com/gomrb/gomrb/values"
)

func wantArray(v *values.Value) (*values.Array, error) {
	if a, ok := v.AsArray(); ok {
		return a, nil
	}
	return nil, registry.NewTypeMismatch("no implicit conversion of %s into Array", v.Type)
}

func initializeArray(ctx registry.CallContext) {
	array := &ctx.GetClassByName("Array").Module

	array.DefineMethod("each", registry.NewNativeProc("each", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		arr, _ := self.AsArray()
		_, block := blockArg(args)
		if block == nil {
			return nil, registry.NewArgumentError("no block given")
		}
		for _, e := range arr.Elems {
			if _, err := ctx.CallBlock(block, nil, []*values.Value{e}); err != nil {
				return nil, err
			}
		}
		return self, nil
	}))

	array.DefineMethod("each_with_index", registry.NewNativeProc("each_with_index", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		arr, _ := self.AsArray()
		_, block := blockArg(args)
		if block == nil {
			return nil, registry.NewArgumentError("no block given")
		}
		for i, e := range arr.Elems {
			if _, err := ctx.CallBlock(block, nil, []*values.Value{e, values.NewInt(int64(i))}); err != nil {
				return nil, err
			}
		}
		return self, nil
	}))

	push := registry.NewNativeProc("push", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		arr, _ := self.AsArray()
		arr.Elems = append(arr.Elems, args...)
		return self, nil
	})
	array.DefineMethod("push", push)
	array.DefineMethod("<<", push)
	array.DefineMethod("append", push)

	array.DefineMethod("pop", registry.NewNativeProc("pop", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		arr, _ := self.AsArray()
		if len(arr.Elems) == 0 {
			return values.Nil(), nil
		}
		last := arr.Elems[len(arr.Elems)-1]
		arr.Elems = arr.Elems[:len(arr.Elems)-1]
		return last, nil
	}))

	array.DefineMethod("shift", registry.NewNativeProc("shift", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		arr, _ := self.AsArray()
		if len(arr.Elems) == 0 {
			return values.Nil(), nil
		}
		first := arr.Elems[0]
		arr.Elems = arr.Elems[1:]
		return first, nil
	}))

	array.DefineMethod("unshift", registry.NewNativeProc("unshift", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		arr, _ := self.AsArray()
		arr.Elems = append(append([]*values.Value(nil), args...), arr.Elems...)
		return self, nil
	}))

	size := registry.NewNativeProc("size", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		arr, _ := self.AsArray()
		return values.NewInt(int64(len(arr.Elems))), nil
	})
	array.DefineMethod("size", size)
	array.DefineMethod("length", size)
	array.DefineMethod("count", size)

	array.DefineMethod("empty?", registry.NewNativeProc("empty?", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		arr, _ := self.AsArray()
		return values.NewBool(len(arr.Elems) == 0), nil
	}))

	array.DefineMethod("first", registry.NewNativeProc("first", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		arr, _ := self.AsArray()
		if len(arr.Elems) == 0 {
			return values.Nil(), nil
		}
		return arr.Elems[0], nil
	}))

	array.DefineMethod("last", registry.NewNativeProc("last", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		arr, _ := self.AsArray()
		if len(arr.Elems) == 0 {
			return values.Nil(), nil
		}
		return arr.Elems[len(arr.Elems)-1], nil
	}))

	array.DefineMethod("[]", registry.NewNativeProc("[]", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		arr, _ := self.AsArray()
		if len(args) < 1 {
			return nil, registry.NewArgumentError("wrong number of arguments (given 0, expected 1..2)")
		}
		if r, ok := args[0].AsRange(); ok {
			lo, ok1 := r.Start.AsInt()
			hi, ok2 := r.End.AsInt()
			if !ok1 || !ok2 {
				return nil, registry.NewTypeMismatch("range endpoints must be Integers")
			}
			n := int64(len(arr.Elems))
			if lo < 0 {
				lo += n
			}
			if hi < 0 {
				hi += n
			}
			if r.Exclusive {
				hi--
			}
			if lo < 0 || lo > n {
				return values.Nil(), nil
			}
			if hi >= n {
				hi = n - 1
			}
			if hi < lo {
				return values.NewArray(nil), nil
			}
			return values.NewArray(append([]*values.Value(nil), arr.Elems[lo:hi+1]...)), nil
		}
		i, err := wantInt(args[0])
		if err != nil {
			return nil, err
		}
		if i < 0 {
			i += int64(len(arr.Elems))
		}
		if len(args) > 1 {
			n, err := wantInt(args[1])
			if err != nil {
				return nil, err
			}
			if i < 0 || i > int64(len(arr.Elems)) || n < 0 {
				return values.Nil(), nil
			}
			end := i + n
			if end > int64(len(arr.Elems)) {
				end = int64(len(arr.Elems))
			}
			return values.NewArray(append([]*values.Value(nil), arr.Elems[i:end]...)), nil
		}
		if i < 0 || i >= int64(len(arr.Elems)) {
			return values.Nil(), nil
		}
		return arr.Elems[i], nil
	}))

	array.DefineMethod("[]=", registry.NewNativeProc("[]=", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		arr, _ := self.AsArray()
		if len(args) < 2 {
			return nil, registry.NewArgumentError("wrong number of arguments (given %d, expected 2)", len(args))
		}
		i, err := wantInt(args[0])
		if err != nil {
			return nil, err
		}
		if i < 0 {
			i += int64(len(arr.Elems))
		}
		if i < 0 {
			return nil, registry.NewArgumentError("index %d too small for array", i)
		}
		for int64(len(arr.Elems)) <= i {
			arr.Elems = append(arr.Elems, values.Nil())
		}
		arr.Elems[i] = args[1]
		return args[1], nil
	}))

	array.DefineMethod("join", registry.NewNativeProc("join", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		arr, _ := self.AsArray()
		sep := ""
		if len(args) > 0 {
			s, err := wantString(args[0])
			if err != nil {
				return nil, err
			}
			sep = string(s.Bytes)
		}
		parts := make([]string, len(arr.Elems))
		for i, e := range arr.Elems {
			parts[i] = toDisplayString(ctx, e)
		}
		return values.NewString(strings.Join(parts, sep)), nil
	}))

	array.DefineMethod("include?", registry.NewNativeProc("include?", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		if len(args) < 1 {
			return nil, registry.NewArgumentError("wrong number of arguments (given 0, expected 1)")
		}
		arr, _ := self.AsArray()
		for _, e := range arr.Elems {
			if values.Equal(e, args[0]) {
				return values.NewBool(true), nil
			}
		}
		return values.NewBool(false), nil
	}))

	array.DefineMethod("index", registry.NewNativeProc("index", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		if len(args) < 1 {
			return nil, registry.NewArgumentError("wrong number of arguments (given 0, expected 1)")
		}
		arr, _ := self.AsArray()
		for i, e := range arr.Elems {
			if values.Equal(e, args[0]) {
				return values.NewInt(int64(i)), nil
			}
		}
		return values.Nil(), nil
	}))

	array.DefineMethod("concat", registry.NewNativeProc("concat", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		arr, _ := self.AsArray()
		for _, a := range args {
			other, err := wantArray(a)
			if err != nil {
				return nil, err
			}
			arr.Elems = append(arr.Elems, other.Elems...)
		}
		return self, nil
	}))

	array.DefineMethod("+", registry.NewNativeProc("+", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		if len(args) < 1 {
			return nil, registry.NewArgumentError("wrong number of arguments (given 0, expected 1)")
		}
		arr, _ := self.AsArray()
		other, err := wantArray(args[0])
		if err != nil {
			return nil, err
		}
		out := make([]*values.Value, 0, len(arr.Elems)+len(other.Elems))
		return values.NewArray(append(append(out, arr.Elems...), other.Elems...)), nil
	}))

	array.DefineMethod("reverse", registry.NewNativeProc("reverse", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		arr, _ := self.AsArray()
		out := make([]*values.Value, len(arr.Elems))
		for i, e := range arr.Elems {
			out[len(arr.Elems)-1-i] = e
		}
		return values.NewArray(out), nil
	}))

	array.DefineMethod("to_a", registry.NewNativeProc("to_a", selfReturning))

	array.DefineMethod("==", registry.NewNativeProc("==", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		if len(args) < 1 {
			return values.NewBool(false), nil
		}
		return values.NewBool(values.Equal(self, args[0])), nil
	}))

	array.DefineMethod("inspect", registry.NewNativeProc("inspect", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		return values.NewString(self.Inspect()), nil
	}))
}
