package runtime

import (
	"github.com/gomrb/gomrb/registry"
	"github.com/gomrb/gomrb/values"
)

func initializeHash(ctx registry.CallContext) {
	hash := &ctx.GetClassByName("Hash").Module

	hash.DefineMethod("[]", registry.NewNativeProc("[]", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		if len(args) < 1 {
			return nil, registry.NewArgumentError("wrong number of arguments (given 0, expected 1)")
		}
		h, _ := self.AsHash()
		if v, ok := h.Get(args[0]); ok {
			return v, nil
		}
		return values.Nil(), nil
	}))

	hash.DefineMethod("[]=", registry.NewNativeProc("[]=", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		if len(args) < 2 {
			return nil, registry.NewArgumentError("wrong number of arguments (given %d, expected 2)", len(args))
		}
		h, _ := self.AsHash()
		if !h.Set(args[0], args[1]) {
			return nil, registry.NewTypeMismatch("invalid hash key %s", args[0].Inspect())
		}
		return args[1], nil
	}))

	hash.DefineMethod("fetch", registry.NewNativeProc("fetch", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		rest, block := blockArg(args)
		if len(rest) < 1 {
			return nil, registry.NewArgumentError("wrong number of arguments (given 0, expected 1..2)")
		}
		h, _ := self.AsHash()
		if v, ok := h.Get(rest[0]); ok {
			return v, nil
		}
		if len(rest) > 1 {
			return rest[1], nil
		}
		if block != nil {
			return ctx.CallBlock(block, nil, []*values.Value{rest[0]})
		}
		return nil, &registry.RubyError{Kind: registry.KindKeyError, Message: "key not found: " + rest[0].Inspect()}
	}))

	hash.DefineMethod("each", registry.NewNativeProc("each", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		h, _ := self.AsHash()
		_, block := blockArg(args)
		if block == nil {
			return nil, registry.NewArgumentError("no block given")
		}
		for _, e := range append([]values.HashEntry(nil), h.Entries...) {
			if _, err := ctx.CallBlock(block, nil, []*values.Value{e.Key, e.Value}); err != nil {
				return nil, err
			}
		}
		return self, nil
	}))

	hash.DefineMethod("keys", registry.NewNativeProc("keys", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		h, _ := self.AsHash()
		out := make([]*values.Value, len(h.Entries))
		for i, e := range h.Entries {
			out[i] = e.Key
		}
		return values.NewArray(out), nil
	}))

	hash.DefineMethod("values", registry.NewNativeProc("values", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		h, _ := self.AsHash()
		out := make([]*values.Value, len(h.Entries))
		for i, e := range h.Entries {
			out[i] = e.Value
		}
		return values.NewArray(out), nil
	}))

	size := registry.NewNativeProc("size", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		h, _ := self.AsHash()
		return values.NewInt(int64(h.Len())), nil
	})
	hash.DefineMethod("size", size)
	hash.DefineMethod("length", size)
	hash.DefineMethod("count", size)

	hasKey := registry.NewNativeProc("key?", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		if len(args) < 1 {
			return nil, registry.NewArgumentError("wrong number of arguments (given 0, expected 1)")
		}
		h, _ := self.AsHash()
		return values.NewBool(h.Has(args[0])), nil
	})
	hash.DefineMethod("key?", hasKey)
	hash.DefineMethod("has_key?", hasKey)
	hash.DefineMethod("include?", hasKey)
	hash.DefineMethod("member?", hasKey)

	hash.DefineMethod("delete", registry.NewNativeProc("delete", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		if len(args) < 1 {
			return nil, registry.NewArgumentError("wrong number of arguments (given 0, expected 1)")
		}
		h, _ := self.AsHash()
		if v, ok := h.Delete(args[0]); ok {
			return v, nil
		}
		return values.Nil(), nil
	}))

	hash.DefineMethod("empty?", registry.NewNativeProc("empty?", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		h, _ := self.AsHash()
		return values.NewBool(h.Len() == 0), nil
	}))

	hash.DefineMethod("merge", registry.NewNativeProc("merge", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		h, _ := self.AsHash()
		out := values.NewHash()
		oh, _ := out.AsHash()
		for _, e := range h.Entries {
			oh.Set(e.Key, e.Value)
		}
		for _, a := range args {
			other, ok := a.AsHash()
			if !ok {
				return nil, registry.NewTypeMismatch("no implicit conversion of %s into Hash", a.Type)
			}
			for _, e := range other.Entries {
				oh.Set(e.Key, e.Value)
			}
		}
		return out, nil
	}))

	hash.DefineMethod("to_h", registry.NewNativeProc("to_h", selfReturning))

	hash.DefineMethod("==", registry.NewNativeProc("==", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		if len(args) < 1 {
			return values.NewBool(false), nil
		}
		return values.NewBool(values.Equal(self, args[0])), nil
	}))

	hash.DefineMethod("inspect", registry.NewNativeProc("inspect", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		return values.NewString(self.Inspect()), nil
	}))
}
