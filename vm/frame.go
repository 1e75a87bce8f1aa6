package vm

import (
	"github.com/gomrb/gomrb/registry"
	"github.com/gomrb/gomrb/values"
)

// pushFrame records the caller's state and switches execution into the
// callee's IREP. The register window must already hold the receiver at
// newOffset and the arguments after it.
func (vm *VM) pushFrame(ci *CallInfo, proc *registry.Proc, newOffset int) error {
	if newOffset+proc.IREP.NRegs > MaxRegsSize {
		return registry.NewInternalError("register stack overflow")
	}
	ci.Prev = vm.callinfo
	ci.PCIrep = vm.currentIrep
	ci.PC = vm.pc
	ci.RegsOffset = vm.regsOffset
	ci.FrameEnd = vm.frameEnd
	ci.TargetClass = vm.targetClass
	ci.Upper = vm.upper
	ci.Kargs = vm.kargs

	vm.callinfo = ci
	vm.regsOffset = newOffset
	vm.frameEnd = newOffset + proc.IREP.NRegs
	vm.currentIrep = proc.IREP
	vm.pc = 0
	vm.upper = proc.Env
	vm.kargs = nil
	return nil
}

// popFrame restores the caller recorded in the current callinfo and
// returns it. Environments captured by blocks created in the popped frame
// take a copy of its register slice and flip their expiry bit, so the
// blocks never again read the reused registers.
func (vm *VM) popFrame() *CallInfo {
	ci := vm.callinfo
	if ci == nil {
		return nil
	}

	if env, ok := vm.curEnv[vm.regsOffset]; ok {
		n := vm.currentIrep.NRegs
		captured := make([]*values.Value, n)
		copy(captured, vm.regs[vm.regsOffset:vm.regsOffset+n])
		env.Capture(captured)
		delete(vm.curEnv, vm.regsOffset)
	}

	vm.callinfo = ci.Prev
	vm.currentIrep = ci.PCIrep
	vm.pc = ci.PC
	vm.regsOffset = ci.RegsOffset
	vm.frameEnd = ci.FrameEnd
	vm.targetClass = ci.TargetClass
	vm.upper = ci.Upper
	vm.kargs = ci.Kargs
	return ci
}

// doReturn delivers val to the caller-designated return register and pops
// the frame. At the top level (no frame to pop) it records val as the
// run's result. When the popped frame is the boundary frame the embedding
// API pushed, control is handed back to the host caller.
func (vm *VM) doReturn(val *values.Value, boundary *CallInfo) {
	if vm.callinfo == nil {
		vm.lastReturn = val
		if vm.pc >= len(vm.currentIrep.Code) {
			vm.halted = true
		}
		return
	}
	ci := vm.popFrame()
	if ci == boundary && ci.boundary {
		vm.boundaryDone = true
		vm.boundaryValue = val
		return
	}
	vm.setReg(ci.ReturnReg, val)
}

// ensureEnv returns the captured-environment record for the current
// frame, creating and registering it on first block creation.
func (vm *VM) ensureEnv() *registry.Env {
	if env, ok := vm.curEnv[vm.regsOffset]; ok {
		return env
	}
	env := registry.NewEnv(vm.currentIrep.ID, vm.regsOffset, vm.upper)
	vm.curEnv[vm.regsOffset] = env
	return env
}

// envReg reads register i of the frame an environment describes: live
// registers while the frame is on the stack, the captured copy afterward.
func (vm *VM) envReg(env *registry.Env, i int) *values.Value {
	if v, fromCopy := env.Reg(i); fromCopy {
		if v == nil {
			return values.Nil()
		}
		return v
	}
	v := vm.regs[env.RegsOffset+i]
	if v == nil {
		return values.Nil()
	}
	return v
}

func (vm *VM) setEnvReg(env *registry.Env, i int, v *values.Value) {
	if env.SetReg(i, v) {
		return
	}
	vm.regs[env.RegsOffset+i] = v
}
