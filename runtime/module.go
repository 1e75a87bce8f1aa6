package runtime

import (
	"github.com/gomrb/gomrb/registry"
	"github.com/gomrb/gomrb/values"
)

func initializeModule(ctx registry.CallContext) {
	module := &ctx.GetClassByName("Module").Module

	module.DefineMethod("include", registry.NewNativeProc("include", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		target := moduleRecordOf(self)
		if target == nil {
			return nil, registry.NewTypeMismatch("include target is not a class or module")
		}
		for _, a := range args {
			if a.Type != values.TypeModule {
				return nil, registry.NewTypeMismatch("wrong argument type %s (expected Module)", a.Type)
			}
			target.Include(a.Data.(*registry.Module))
		}
		return self, nil
	}))

	module.DefineMethod("name", registry.NewNativeProc("name", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		m := moduleRecordOf(self)
		if m == nil {
			return values.Nil(), nil
		}
		return values.NewString(m.FullName()), nil
	}))

	module.DefineMethod("to_s", registry.NewNativeProc("to_s", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		m := moduleRecordOf(self)
		if m == nil {
			return values.NewString(self.Inspect()), nil
		}
		return values.NewString(m.FullName()), nil
	}))

	module.DefineMethod("inspect", registry.NewNativeProc("inspect", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		m := moduleRecordOf(self)
		if m == nil {
			return values.NewString(self.Inspect()), nil
		}
		return values.NewString(m.FullName()), nil
	}))

	module.DefineMethod("ancestors", registry.NewNativeProc("ancestors", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		var out []*values.Value
		if c := classRecordOf(self); c != nil {
			for _, m := range registry.LookupChain(c) {
				out = append(out, values.NewString(m.FullName()))
			}
		} else if m := moduleRecordOf(self); m != nil {
			out = append(out, values.NewString(m.FullName()))
		}
		return values.NewArray(out), nil
	}))

	module.DefineMethod("method_defined?", registry.NewNativeProc("method_defined?", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		if len(args) < 1 {
			return nil, registry.NewArgumentError("wrong number of arguments (given 0, expected 1)")
		}
		name, err := symbolOrString(args[0])
		if err != nil {
			return nil, err
		}
		if c := classRecordOf(self); c != nil {
			_, _, ok := registry.ResolveMethod(c, name)
			return values.NewBool(ok), nil
		}
		if m := moduleRecordOf(self); m != nil {
			_, _, ok := registry.ResolveInModule(m, name)
			return values.NewBool(ok), nil
		}
		return values.NewBool(false), nil
	}))

	module.DefineMethod("const_get", registry.NewNativeProc("const_get", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		if len(args) < 1 {
			return nil, registry.NewArgumentError("wrong number of arguments (given 0, expected 1)")
		}
		name, err := symbolOrString(args[0])
		if err != nil {
			return nil, err
		}
		m := moduleRecordOf(self)
		if m != nil {
			if v, ok := m.ConstGet(name); ok {
				return v, nil
			}
		}
		if v, ok := ctx.GetConst(name); ok {
			return v, nil
		}
		return nil, registry.NewNameError(name)
	}))

	module.DefineMethod("const_set", registry.NewNativeProc("const_set", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		if len(args) < 2 {
			return nil, registry.NewArgumentError("wrong number of arguments (given %d, expected 2)", len(args))
		}
		name, err := symbolOrString(args[0])
		if err != nil {
			return nil, err
		}
		if m := moduleRecordOf(self); m != nil {
			m.ConstSet(name, args[1])
		}
		return args[1], nil
	}))

	attrReader := func(target *registry.Module, name string) {
		ivar := "@" + name
		target.DefineMethod(name, registry.NewNativeProc(name, func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
			return self.IVarGet(ivar), nil
		}))
	}
	attrWriter := func(target *registry.Module, name string) {
		ivar := "@" + name
		setter := name + "="
		target.DefineMethod(setter, registry.NewNativeProc(setter, func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
			if len(args) < 1 {
				return nil, registry.NewArgumentError("wrong number of arguments (given 0, expected 1)")
			}
			self.IVarSet(ivar, args[0])
			return args[0], nil
		}))
	}

	module.DefineMethod("attr_reader", registry.NewNativeProc("attr_reader", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		target := moduleRecordOf(self)
		if target == nil {
			return nil, registry.NewTypeMismatch("attr_reader target is not a class or module")
		}
		for _, a := range args {
			name, err := symbolOrString(a)
			if err != nil {
				return nil, err
			}
			attrReader(target, name)
		}
		return values.Nil(), nil
	}))

	module.DefineMethod("attr_writer", registry.NewNativeProc("attr_writer", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		target := moduleRecordOf(self)
		if target == nil {
			return nil, registry.NewTypeMismatch("attr_writer target is not a class or module")
		}
		for _, a := range args {
			name, err := symbolOrString(a)
			if err != nil {
				return nil, err
			}
			attrWriter(target, name)
		}
		return values.Nil(), nil
	}))

	module.DefineMethod("attr_accessor", registry.NewNativeProc("attr_accessor", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		target := moduleRecordOf(self)
		if target == nil {
			return nil, registry.NewTypeMismatch("attr_accessor target is not a class or module")
		}
		for _, a := range args {
			name, err := symbolOrString(a)
			if err != nil {
				return nil, err
			}
			attrReader(target, name)
			attrWriter(target, name)
		}
		return values.Nil(), nil
	}))
}

func initializeClassClass(ctx registry.CallContext) {
	class := &ctx.GetClassByName("Class").Module

	class.DefineMethod("new", registry.NewNativeProc("new", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		c := classRecordOf(self)
		if c == nil {
			return nil, registry.NewTypeMismatch("receiver is not a class")
		}

		var block *values.Value
		if n := len(args); n > 0 && args[n-1].IsProc() {
			block = args[n-1]
			args = args[:n-1]
		}

		var inst *values.Value
		if isExceptionClass(ctx, c) {
			msg := c.FullName()
			if len(args) > 0 {
				if s, ok := args[0].AsString(); ok {
					msg = string(s.Bytes)
				}
			}
			inst = ctx.NewExceptionValue(c, msg)
		} else {
			inst = values.NewInstance(c)
		}

		if _, _, ok := registry.ResolveMethod(c, "initialize"); ok {
			if _, err := ctx.FuncallWithBlock(inst, "initialize", args, block); err != nil {
				return nil, err
			}
		}
		return inst, nil
	}))

	class.DefineMethod("superclass", registry.NewNativeProc("superclass", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		c := classRecordOf(self)
		if c == nil || c.Super == nil {
			return values.Nil(), nil
		}
		return ctx.ClassValue(c.Super), nil
	}))
}

func isExceptionClass(ctx registry.CallContext, c *registry.Class) bool {
	exc := ctx.GetClassByName("Exception")
	return exc != nil && c.IsSubclassOf(exc)
}
