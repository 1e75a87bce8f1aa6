package runtime

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/gomrb/gomrb/registry"
	"github.com/gomrb/gomrb/values"
)

func moduleRecordOf(v *values.Value) *registry.Module {
	switch v.Type {
	case values.TypeClass:
		return &v.Data.(*registry.Class).Module
	case values.TypeModule:
		return v.Data.(*registry.Module)
	}
	return nil
}

func classRecordOf(v *values.Value) *registry.Class {
	if v.Type == values.TypeClass {
		return v.Data.(*registry.Class)
	}
	return nil
}

// raiseValue wraps an exception value so it propagates with identity
// intact.
func raiseValue(exc *values.Value) error {
	kind := &registry.RubyError{Kind: registry.KindGeneral}
	if e, ok := exc.AsException(); ok {
		if k, ok := e.Kind.(*registry.RubyError); ok {
			kind = k
		} else {
			kind.Message = e.Message
		}
	}
	return &registry.RaisedError{Exception: exc, Kind: kind}
}

func defaultInspect(ctx registry.CallContext, v *values.Value) string {
	if v.Type == values.TypeInstance {
		names := v.IVarNames()
		sort.Strings(names)
		var b strings.Builder
		b.WriteString("#<")
		b.WriteString(ctx.ClassOf(v).FullName())
		for i, n := range names {
			if i == 0 {
				b.WriteString(" ")
			} else {
				b.WriteString(", ")
			}
			b.WriteString(n)
			b.WriteString("=")
			b.WriteString(v.IVarGet(n).Inspect())
		}
		b.WriteString(">")
		return b.String()
	}
	return v.Inspect()
}

func toDisplayString(ctx registry.CallContext, v *values.Value) string {
	if s, ok := v.AsString(); ok {
		return string(s.Bytes)
	}
	res, err := ctx.Funcall(v, "to_s")
	if err == nil {
		if s, ok := res.AsString(); ok {
			return string(s.Bytes)
		}
	}
	return v.Inspect()
}

func initializeObject(ctx registry.CallContext) {
	object := &ctx.ObjectClass().Module

	object.DefineMethod("class", registry.NewNativeProc("class", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		return ctx.ClassValue(ctx.ClassOf(self)), nil
	}))

	object.DefineMethod("initialize", registry.NewNativeProc("initialize", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		return values.Nil(), nil
	}))

	object.DefineMethod("inspect", registry.NewNativeProc("inspect", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		return values.NewString(defaultInspect(ctx, self)), nil
	}))

	object.DefineMethod("to_s", registry.NewNativeProc("to_s", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		switch self.Type {
		case values.TypeString:
			return self, nil
		case values.TypeInstance:
			return values.NewString(fmt.Sprintf("#<%s>", ctx.ClassOf(self).FullName())), nil
		}
		return values.NewString(self.Inspect()), nil
	}))

	object.DefineMethod("==", registry.NewNativeProc("==", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		if len(args) < 1 {
			return values.NewBool(false), nil
		}
		return values.NewBool(values.Equal(self, args[0])), nil
	}))

	object.DefineMethod("!=", registry.NewNativeProc("!=", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		res, err := ctx.Funcall(self, "==", args...)
		if err != nil {
			return nil, err
		}
		return values.NewBool(res.IsFalsy()), nil
	}))

	object.DefineMethod("equal?", registry.NewNativeProc("equal?", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		if len(args) < 1 {
			return values.NewBool(false), nil
		}
		return values.NewBool(self.ObjectID() == args[0].ObjectID()), nil
	}))

	object.DefineMethod("object_id", registry.NewNativeProc("object_id", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		return values.NewInt(int64(self.ObjectID())), nil
	}))

	object.DefineMethod("nil?", registry.NewNativeProc("nil?", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		return values.NewBool(self.IsNil()), nil
	}))

	isA := registry.NewNativeProc("is_a?", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		if len(args) < 1 {
			return nil, registry.NewArgumentError("wrong number of arguments (given 0, expected 1)")
		}
		target := moduleRecordOf(args[0])
		if target == nil {
			return nil, registry.NewTypeMismatch("class or module required")
		}
		for _, m := range registry.LookupChain(ctx.ClassOf(self)) {
			if m == target {
				return values.NewBool(true), nil
			}
		}
		return values.NewBool(false), nil
	})
	object.DefineMethod("is_a?", isA)
	object.DefineMethod("kind_of?", isA)

	object.DefineMethod("instance_of?", registry.NewNativeProc("instance_of?", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		if len(args) < 1 {
			return nil, registry.NewArgumentError("wrong number of arguments (given 0, expected 1)")
		}
		return values.NewBool(classRecordOf(args[0]) == ctx.ClassOf(self)), nil
	}))

	object.DefineMethod("respond_to?", registry.NewNativeProc("respond_to?", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		if len(args) < 1 {
			return nil, registry.NewArgumentError("wrong number of arguments (given 0, expected 1)")
		}
		name, err := symbolOrString(args[0])
		if err != nil {
			return nil, err
		}
		_, _, ok := registry.ResolveMethod(ctx.ClassOf(self), name)
		return values.NewBool(ok), nil
	}))

	send := registry.NewNativeProc("send", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		if len(args) < 1 {
			return nil, registry.NewArgumentError("no method name given")
		}
		name, err := symbolOrString(args[0])
		if err != nil {
			return nil, err
		}
		return ctx.Funcall(self, name, args[1:]...)
	})
	object.DefineMethod("send", send)
	object.DefineMethod("__send__", send)

	object.DefineMethod("raise", registry.NewNativeProc("raise", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		return nil, kernelRaise(ctx, args)
	}))

	object.DefineMethod("block_given?", registry.NewNativeProc("block_given?", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		return values.NewBool(ctx.BlockGiven()), nil
	}))

	object.DefineMethod("p", registry.NewNativeProc("p", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		for _, a := range args {
			fmt.Fprintln(os.Stdout, ctx.Inspect(a))
		}
		switch len(args) {
		case 0:
			return values.Nil(), nil
		case 1:
			return args[0], nil
		}
		return values.NewArray(append([]*values.Value(nil), args...)), nil
	}))

	object.DefineMethod("puts", registry.NewNativeProc("puts", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		if len(args) == 0 {
			fmt.Fprintln(os.Stdout)
		}
		for _, a := range args {
			if arr, ok := a.AsArray(); ok {
				for _, e := range arr.Elems {
					fmt.Fprintln(os.Stdout, toDisplayString(ctx, e))
				}
				continue
			}
			fmt.Fprintln(os.Stdout, toDisplayString(ctx, a))
		}
		return values.Nil(), nil
	}))

	object.DefineMethod("print", registry.NewNativeProc("print", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		for _, a := range args {
			fmt.Fprint(os.Stdout, toDisplayString(ctx, a))
		}
		return values.Nil(), nil
	}))

	object.DefineMethod("instance_variable_get", registry.NewNativeProc("instance_variable_get", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		if len(args) < 1 {
			return nil, registry.NewArgumentError("wrong number of arguments (given 0, expected 1)")
		}
		name, err := symbolOrString(args[0])
		if err != nil {
			return nil, err
		}
		return self.IVarGet(name), nil
	}))

	object.DefineMethod("instance_variable_set", registry.NewNativeProc("instance_variable_set", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		if len(args) < 2 {
			return nil, registry.NewArgumentError("wrong number of arguments (given %d, expected 2)", len(args))
		}
		name, err := symbolOrString(args[0])
		if err != nil {
			return nil, err
		}
		self.IVarSet(name, args[1])
		return args[1], nil
	}))
}

func symbolOrString(v *values.Value) (string, error) {
	if s, ok := v.AsSymbol(); ok {
		return s, nil
	}
	if s, ok := v.AsString(); ok {
		return string(s.Bytes), nil
	}
	return "", registry.NewTypeMismatch("%s is not a symbol nor a string", v.Inspect())
}

// kernelRaise implements Kernel#raise's argument conventions: no args, a
// message string, an exception class, an exception instance, or a class
// plus message.
func kernelRaise(ctx registry.CallContext, args []*values.Value) error {
	if len(args) == 0 {
		cls := ctx.GetClassByName("RuntimeError")
		return raiseValue(ctx.NewExceptionValue(cls, "unhandled exception"))
	}

	first := args[0]
	if s, ok := first.AsString(); ok {
		cls := ctx.GetClassByName("RuntimeError")
		return raiseValue(ctx.NewExceptionValue(cls, string(s.Bytes)))
	}
	if _, ok := first.AsException(); ok {
		return raiseValue(first)
	}
	if cls := classRecordOf(first); cls != nil {
		msg := cls.FullName()
		if len(args) > 1 {
			msg = toDisplayString(ctx, args[1])
		}
		// Honor a user-defined exception constructor when one exists.
		res, err := ctx.Funcall(first, "new", values.NewString(msg))
		if err == nil {
			if _, ok := res.AsException(); ok {
				return raiseValue(res)
			}
		}
		return raiseValue(ctx.NewExceptionValue(cls, msg))
	}
	return registry.NewTypeMismatch("exception class/object expected")
}
