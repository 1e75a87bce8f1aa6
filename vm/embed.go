package vm

import (
	"github.com/gomrb/gomrb/registry"
	"github.com/gomrb/gomrb/values"
)

// The embedding API: everything a host needs to define classes and
// methods, call into Ruby, and convert values. VM satisfies
// registry.CallContext so native methods reach the same surface.

var _ registry.CallContext = (*VM)(nil)

// Funcall resolves name on recv and invokes it, returning the result or
// the raised exception as an error. When the lookup fails and the
// receiver's chain defines method_missing, the call is retried as
// method_missing(name_sym, *args).
func (vm *VM) Funcall(recv *values.Value, name string, args ...*values.Value) (*values.Value, error) {
	return vm.FuncallWithBlock(recv, name, args, nil)
}

// FuncallWithBlock is Funcall with an explicit block argument.
func (vm *VM) FuncallWithBlock(recv *values.Value, name string, args []*values.Value, block *values.Value) (*values.Value, error) {
	if recv == nil {
		recv = vm.topSelf
	}
	class := vm.ClassOf(recv)
	owner, proc, found := registry.ResolveMethod(class, name)
	if !found {
		mmOwner, mmProc, ok := registry.ResolveMethod(class, "method_missing")
		if !ok {
			return nil, registry.NewNoMethodError(name)
		}
		args = append([]*values.Value{values.NewSymbol(name)}, args...)
		owner, proc, name = mmOwner, mmProc, "method_missing"
	}

	if !proc.IsRubyFunc {
		return vm.callNativeScratch(proc, recv, args, block)
	}
	return vm.callRubyBoundary(proc, recv, name, args, block, owner)
}

// callNativeScratch invokes a native method from host context, giving it
// a small scratch window past the live frame so nested block invocations
// never clobber the receiver.
func (vm *VM) callNativeScratch(proc *registry.Proc, recv *values.Value, args []*values.Value, block *values.Value) (*values.Value, error) {
	callArgs := args
	if block != nil && !block.IsNil() {
		callArgs = append(append([]*values.Value(nil), args...), block)
	}
	savedOffset, savedEnd := vm.regsOffset, vm.frameEnd
	vm.regsOffset = savedEnd
	vm.frameEnd = savedEnd + 2
	vm.regs[vm.regsOffset] = recv
	res, err := proc.Fn(vm, recv, callArgs)
	vm.regsOffset, vm.frameEnd = savedOffset, savedEnd
	if err != nil {
		return nil, err
	}
	if res == nil {
		res = values.Nil()
	}
	return res, nil
}

// callRubyBoundary pushes a boundary frame for a Ruby method invoked from
// host context and runs it to completion.
func (vm *VM) callRubyBoundary(proc *registry.Proc, recv *values.Value, name string, args []*values.Value, block *values.Value, owner *registry.Module) (*values.Value, error) {
	blockGiven := block != nil && !block.IsNil()
	ci := &CallInfo{
		MethodName:  name,
		NArgs:       len(args),
		MethodOwner: owner,
		BlockGiven:  blockGiven,
		Lenient:     !proc.Strict,
		boundary:    true,
	}
	newOffset := vm.frameEnd
	if newOffset+1+len(args)+1 >= MaxRegsSize {
		return nil, registry.NewInternalError("register stack overflow")
	}
	vm.regs[newOffset] = recv
	for i, arg := range args {
		vm.regs[newOffset+1+i] = arg
	}
	if blockGiven {
		vm.regs[newOffset+1+len(args)] = block
	} else {
		vm.regs[newOffset+1+len(args)] = values.Nil()
	}
	if err := vm.pushFrame(ci, proc, newOffset); err != nil {
		return nil, err
	}
	vm.targetClass = TargetContext{Class: vm.ClassOf(recv)}
	return vm.execute(ci)
}

// CallBlock invokes a Proc value with the given receiver (nil uses the
// block's bound self) and arguments. Break and non-local-return
// conditions raised inside the block come back as errors for the caller
// to act on.
func (vm *VM) CallBlock(block *values.Value, recv *values.Value, args []*values.Value) (*values.Value, error) {
	if !block.IsProc() {
		return nil, registry.NewTypeMismatch("not a proc")
	}
	p := block.Data.(*registry.Proc)
	if recv == nil {
		recv = p.Self
		if recv == nil {
			recv = vm.topSelf
		}
	}
	if !p.IsRubyFunc {
		return vm.callNativeScratch(p, recv, args, nil)
	}

	ci := &CallInfo{
		MethodName: p.Name,
		NArgs:      len(args),
		Lenient:    !p.Strict,
		boundary:   true,
	}
	newOffset := vm.frameEnd
	if newOffset+1+len(args)+1 >= MaxRegsSize {
		return nil, registry.NewInternalError("register stack overflow")
	}
	vm.regs[newOffset] = recv
	for i, arg := range args {
		vm.regs[newOffset+1+i] = arg
	}
	vm.regs[newOffset+1+len(args)] = values.Nil()
	if err := vm.pushFrame(ci, p, newOffset); err != nil {
		return nil, err
	}
	return vm.execute(ci)
}

// BlockGiven reports whether the Ruby frame the current native call was
// dispatched from received a block.
func (vm *VM) BlockGiven() bool {
	return vm.callinfo != nil && vm.callinfo.BlockGiven
}

// DefineMethod binds a native function as a method on a class or module.
func (vm *VM) DefineMethod(target *registry.Module, name string, fn registry.NativeFn) {
	target.DefineMethod(name, registry.NewNativeProc(name, fn))
}

// DefineClassMethod binds a native function on the class's singleton
// class, making it callable as Klass.name.
func (vm *VM) DefineClassMethod(c *registry.Class, name string, fn registry.NativeFn) {
	sc := vm.SingletonClass(vm.ClassValue(c))
	sc.DefineMethod(name, registry.NewNativeProc(name, fn))
}

// DefineSingletonMethod binds a native function on one object.
func (vm *VM) DefineSingletonMethod(obj *values.Value, name string, fn registry.NativeFn) {
	sc := vm.SingletonClass(obj)
	sc.DefineMethod(name, registry.NewNativeProc(name, fn))
}

// Inspect renders v through the usual inspect dispatch, falling back to
// the structural rendering when no method is reachable.
func (vm *VM) Inspect(v *values.Value) string {
	res, err := vm.Funcall(v, "inspect")
	if err == nil {
		if s, ok := res.AsString(); ok {
			return string(s.Bytes)
		}
	}
	return v.Inspect()
}

// Host scalar conversions. Total where possible, TypeMismatch otherwise.

// ToInt64 converts an Integer (or Float, truncating) value.
func (vm *VM) ToInt64(v *values.Value) (int64, error) {
	switch v.Type {
	case values.TypeInt:
		return v.Data.(int64), nil
	case values.TypeFloat:
		return int64(v.Data.(float64)), nil
	case values.TypeBool:
		if v.Data.(bool) {
			return 1, nil
		}
		return 0, nil
	}
	return 0, registry.NewTypeMismatch("cannot convert %s into Integer", v.Type)
}

// ToFloat64 converts a numeric value.
func (vm *VM) ToFloat64(v *values.Value) (float64, error) {
	if f, ok := v.AsFloat(); ok {
		return f, nil
	}
	return 0, registry.NewTypeMismatch("cannot convert %s into Float", v.Type)
}

// ToBool converts by Ruby truthiness; total.
func (vm *VM) ToBool(v *values.Value) bool {
	return v.IsTruthy()
}

// ToGoString returns the byte content of a String or the name of a Symbol.
func (vm *VM) ToGoString(v *values.Value) (string, error) {
	if s, ok := v.AsString(); ok {
		return string(s.Bytes), nil
	}
	if s, ok := v.AsSymbol(); ok {
		return s, nil
	}
	return "", registry.NewTypeMismatch("cannot convert %s into String", v.Type)
}

// ToBytes returns a copy of a String's byte buffer.
func (vm *VM) ToBytes(v *values.Value) ([]byte, error) {
	if s, ok := v.AsString(); ok {
		return append([]byte(nil), s.Bytes...), nil
	}
	return nil, registry.NewTypeMismatch("cannot convert %s into String", v.Type)
}

// ToSlice returns the elements of an Array value.
func (vm *VM) ToSlice(v *values.Value) ([]*values.Value, error) {
	if a, ok := v.AsArray(); ok {
		return append([]*values.Value(nil), a.Elems...), nil
	}
	return nil, registry.NewTypeMismatch("cannot convert %s into Array", v.Type)
}
