package vm

import (
	"errors"

	"github.com/gomrb/gomrb/opcodes"
	"github.com/gomrb/gomrb/registry"
	"github.com/gomrb/gomrb/values"
)

// Raise materializes err as the VM's pending exception. A RaisedError
// carries an already-built exception value (Kernel#raise and re-raises
// across the embedding boundary preserve identity); anything else gets a
// fresh exception value of the kind's Ruby-visible class.
func (vm *VM) Raise(err error) {
	var raised *registry.RaisedError
	if errors.As(err, &raised) {
		vm.exception = raised.Exception.(*values.Value)
		return
	}
	var rerr *registry.RubyError
	if errors.As(err, &rerr) {
		vm.exception = vm.exceptionValue(rerr)
		return
	}
	vm.exception = vm.exceptionValue(registry.NewRuntimeError("%s", err.Error()))
}

// exceptionValue builds the exception value for a runtime error kind.
func (vm *VM) exceptionValue(rerr *registry.RubyError) *values.Value {
	cls := vm.builtinOr(rerr.Kind.RubyClassName())
	return values.NewException(&values.Exception{Class: cls, Kind: rerr, Message: rerr.Message})
}

// NewExceptionValue builds an exception value of the given class, used by
// native raise implementations.
func (vm *VM) NewExceptionValue(cls *registry.Class, msg string) *values.Value {
	kind := &registry.RubyError{Kind: registry.KindGeneral, Message: msg}
	return values.NewException(&values.Exception{Class: cls, Kind: kind, Message: msg})
}

// excKind extracts the runtime error kind behind an exception value.
func excKind(exc *values.Value) *registry.RubyError {
	if e, ok := exc.AsException(); ok {
		if k, ok := e.Kind.(*registry.RubyError); ok {
			return k
		}
	}
	return nil
}

// findCatchHandler picks the handler for the faulting instruction: the
// smallest target index strictly greater than the current pc whose
// protected range contains it. Internal conditions only enter ensure
// handlers, so rescue Exception cannot swallow a break or a non-local
// return.
func (vm *VM) findCatchHandler(internalOnly bool) (opcodes.CatchTarget, bool) {
	pcFault := vm.pc - 1
	if pcFault < 0 {
		pcFault = 0
	}
	for _, h := range vm.currentIrep.CatchTargets {
		if internalOnly && h.Kind != 1 {
			continue
		}
		if h.Target > pcFault && h.Start <= pcFault && pcFault < h.End {
			return h, true
		}
	}
	return opcodes.CatchTarget{}, false
}

// unwind advances exception handling by one step: enter a handler in the
// current frame, deliver an internal condition that has reached its
// destination, or pop one frame. done reports that execute must return.
func (vm *VM) unwind(boundary *CallInfo) (done bool, val *values.Value, err error) {
	exc := vm.exception
	kind := excKind(exc)
	internal := kind != nil && kind.Internal()

	if h, ok := vm.findCatchHandler(internal); ok {
		vm.pc = h.Target
		// The slot stays occupied: EXCEPT stores and clears it, RAISEIF
		// re-raises it after an ensure body.
		return false, nil, nil
	}

	if kind != nil && kind.Kind == registry.KindBlockReturn && vm.currentIrep.ID == kind.TargetIrep {
		// Reached the method the block returns from: deliver as its
		// ordinary return value.
		vm.exception = nil
		vm.doReturn(kind.Value.(*values.Value), boundary)
		return false, nil, nil
	}

	if vm.callinfo == nil {
		// Frames exhausted: the exception is the run's terminal result.
		return true, nil, vm.terminalError(exc, kind)
	}

	wasBoundary := vm.callinfo == boundary && vm.callinfo.boundary
	ci := vm.popFrame()
	if wasBoundary {
		vm.exception = nil
		return true, nil, vm.terminalError(exc, kind)
	}

	if kind != nil && kind.Kind == registry.KindBreak && vm.regsOffset == kind.TargetOffset {
		// Back in the frame whose SEND passed the block: the break value
		// becomes that call site's result and iteration ends.
		vm.exception = nil
		vm.setReg(ci.ReturnReg, kind.Value.(*values.Value))
	}
	return false, nil, nil
}

func (vm *VM) terminalError(exc *values.Value, kind *registry.RubyError) error {
	if kind == nil {
		kind = registry.NewRuntimeError("unhandled exception")
	}
	return &registry.RaisedError{Exception: exc, Kind: kind}
}

// opExcept moves the pending exception into a register and clears the
// slot; the handler body decides what to do with it.
func (vm *VM) opExcept(in opcodes.Instruction) {
	if vm.exception != nil {
		vm.setReg(in.A, vm.exception)
		vm.exception = nil
	} else {
		vm.setReg(in.A, values.Nil())
	}
}

// opRescue tests whether the exception in R(a) matches the class in R(b),
// leaving the verdict in R(b).
func (vm *VM) opRescue(in opcodes.Instruction) error {
	excVal := vm.reg(in.A)
	clsVal := vm.reg(in.B)
	cls := classFromValue(clsVal)
	if cls == nil {
		return registry.NewTypeMismatch("class or module required for rescue clause")
	}
	matched := false
	if e, ok := excVal.AsException(); ok {
		if ec, ok := e.Class.(*registry.Class); ok {
			matched = ec.IsSubclassOf(cls)
		}
	} else {
		matched = vm.ClassOf(excVal).IsSubclassOf(cls)
	}
	vm.setReg(in.B, values.NewBool(matched))
	return nil
}

// opRaiseIf re-raises the exception value in R(a); nil means the ensure
// body completed with nothing pending.
func (vm *VM) opRaiseIf(in opcodes.Instruction) error {
	v := vm.reg(in.A)
	if v.IsNil() {
		return nil
	}
	if _, ok := v.AsException(); ok {
		vm.exception = v
		return nil
	}
	// Breaks and non-local returns ride through ensure bodies as
	// exception values too; anything else is a malformed RAISEIF.
	return registry.NewTypeMismatch("exception object expected")
}
