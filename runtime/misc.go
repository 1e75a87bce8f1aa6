package runtime

import (
	"github.com/gomrb/gomrb/registry"
	"github.com/gomrb/gomrb/values"
)

func initializeNilBool(ctx registry.CallContext) {
	nilClass := &ctx.GetClassByName("NilClass").Module

	nilClass.DefineMethod("to_s", registry.NewNativeProc("to_s", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		return values.NewString(""), nil
	}))
	nilClass.DefineMethod("inspect", registry.NewNativeProc("inspect", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		return values.NewString("nil"), nil
	}))
	nilClass.DefineMethod("nil?", registry.NewNativeProc("nil?", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		return values.NewBool(true), nil
	}))
	nilClass.DefineMethod("to_a", registry.NewNativeProc("to_a", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		return values.NewArray(nil), nil
	}))

	boolToS := registry.NewNativeProc("to_s", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		b, _ := self.AsBool()
		if b {
			return values.NewString("true"), nil
		}
		return values.NewString("false"), nil
	})
	boolNot := registry.NewNativeProc("!", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		b, _ := self.AsBool()
		return values.NewBool(!b), nil
	})
	boolAnd := registry.NewNativeProc("&", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		if len(args) < 1 {
			return nil, registry.NewArgumentError("wrong number of arguments (given 0, expected 1)")
		}
		b, _ := self.AsBool()
		return values.NewBool(b && args[0].IsTruthy()), nil
	})
	boolOr := registry.NewNativeProc("|", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		if len(args) < 1 {
			return nil, registry.NewArgumentError("wrong number of arguments (given 0, expected 1)")
		}
		b, _ := self.AsBool()
		return values.NewBool(b || args[0].IsTruthy()), nil
	})

	for _, name := range []string{"TrueClass", "FalseClass"} {
		m := &ctx.GetClassByName(name).Module
		m.DefineMethod("to_s", boolToS)
		m.DefineMethod("inspect", boolToS)
		m.DefineMethod("!", boolNot)
		m.DefineMethod("&", boolAnd)
		m.DefineMethod("|", boolOr)
	}
}

func initializeProc(ctx registry.CallContext) {
	proc := &ctx.GetClassByName("Proc").Module

	call := registry.NewNativeProc("call", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		return ctx.CallBlock(self, nil, args)
	})
	proc.DefineMethod("call", call)
	proc.DefineMethod("[]", call)
	proc.DefineMethod("yield", call)
}

func initializeException(ctx registry.CallContext) {
	exc := &ctx.GetClassByName("Exception").Module

	exc.DefineMethod("message", registry.NewNativeProc("message", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		if e, ok := self.AsException(); ok {
			return values.NewString(e.Message), nil
		}
		return values.NewString(""), nil
	}))

	exc.DefineMethod("to_s", registry.NewNativeProc("to_s", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		if e, ok := self.AsException(); ok {
			return values.NewString(e.Message), nil
		}
		return values.NewString(""), nil
	}))

	exc.DefineMethod("inspect", registry.NewNativeProc("inspect", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		return values.NewString(self.Inspect()), nil
	}))

	exc.DefineMethod("backtrace", registry.NewNativeProc("backtrace", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		if e, ok := self.AsException(); ok {
			out := make([]*values.Value, len(e.Trace))
			for i, t := range e.Trace {
				out[i] = values.NewString(t)
			}
			return values.NewArray(out), nil
		}
		return values.NewArray(nil), nil
	}))
}

func initializeSharedMemory(ctx registry.CallContext) {
	smClass := ctx.GetClassByName("SharedMemory")
	sm := &smClass.Module

	// SharedMemory.new(size) allocates a host-visible byte buffer.
	newFn := registry.NewNativeProc("new", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		if len(args) < 1 {
			return nil, registry.NewArgumentError("wrong number of arguments (given 0, expected 1)")
		}
		size, err := wantInt(args[0])
		if err != nil {
			return nil, err
		}
		if size < 0 {
			return nil, registry.NewArgumentError("negative buffer size")
		}
		return values.NewSharedMemory(int(size)), nil
	})
	scls := ctx.SingletonClass(ctx.ClassValue(smClass))
	scls.DefineMethod("new", newFn)

	sm.DefineMethod("size", registry.NewNativeProc("size", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		buf, ok := self.AsSharedMemory()
		if !ok {
			return nil, registry.NewTypeMismatch("not a SharedMemory")
		}
		return values.NewInt(int64(len(buf.Bytes))), nil
	}))

	sm.DefineMethod("[]", registry.NewNativeProc("[]", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		buf, ok := self.AsSharedMemory()
		if !ok {
			return nil, registry.NewTypeMismatch("not a SharedMemory")
		}
		if len(args) < 1 {
			return nil, registry.NewArgumentError("wrong number of arguments (given 0, expected 1)")
		}
		i, err := wantInt(args[0])
		if err != nil {
			return nil, err
		}
		if i < 0 || int(i) >= len(buf.Bytes) {
			return nil, &registry.RubyError{Kind: registry.KindIndexError, Message: "index out of bounds"}
		}
		return values.NewInt(int64(buf.Bytes[i])), nil
	}))

	sm.DefineMethod("[]=", registry.NewNativeProc("[]=", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		buf, ok := self.AsSharedMemory()
		if !ok {
			return nil, registry.NewTypeMismatch("not a SharedMemory")
		}
		if len(args) < 2 {
			return nil, registry.NewArgumentError("wrong number of arguments (given %d, expected 2)", len(args))
		}
		i, err := wantInt(args[0])
		if err != nil {
			return nil, err
		}
		b, err := wantInt(args[1])
		if err != nil {
			return nil, err
		}
		if i < 0 || int(i) >= len(buf.Bytes) {
			return nil, &registry.RubyError{Kind: registry.KindIndexError, Message: "index out of bounds"}
		}
		buf.Bytes[i] = byte(b)
		return args[1], nil
	}))
}
