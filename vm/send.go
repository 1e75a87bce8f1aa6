package vm

import (
	"errors"

	"github.com/gomrb/gomrb/opcodes"
	"github.com/gomrb/gomrb/registry"
	"github.com/gomrb/gomrb/values"
)

type sendFlag int

const (
	sendBlock sendFlag = 1 << iota
	sendSelf
)

func (vm *VM) opSend(in opcodes.Instruction, flags sendFlag) error {
	a, nargs := in.A, in.C
	name, err := vm.symName(in.B)
	if err != nil {
		return err
	}
	if nargs == 15 {
		// Packed-argument convention; not produced for the covered subset.
		return registry.NewArgumentError("packed argument calls are not supported")
	}

	var recv *values.Value
	if flags&sendSelf != 0 {
		recv = vm.Self()
		vm.setReg(a, recv)
	} else {
		recv = vm.reg(a)
	}

	var block *values.Value
	if flags&sendBlock != 0 {
		block = vm.reg(a + nargs + 1)
		if !block.IsNil() && !block.IsProc() {
			return registry.NewTypeMismatch("block argument is not a Proc")
		}
	}

	args := make([]*values.Value, nargs)
	for i := range args {
		args[i] = vm.reg(a + 1 + i)
	}

	class := vm.ClassOf(recv)
	owner, proc, found := registry.ResolveMethod(class, name)
	if !found {
		// method_missing keeps dynamic dispatch symmetric for bytecode
		// and host callers alike.
		mmOwner, mmProc, ok := registry.ResolveMethod(class, "method_missing")
		if !ok {
			return registry.NewNoMethodError(name)
		}
		args = append([]*values.Value{values.NewSymbol(name)}, args...)
		owner, proc, name = mmOwner, mmProc, "method_missing"
	}
	return vm.invoke(a, recv, name, args, block, owner, proc)
}

// invoke performs the call protocol for an already-resolved method: a
// native callable runs in place; a Ruby body gets a fresh frame whose
// register 0 aligns with the receiver.
func (vm *VM) invoke(retReg int, recv *values.Value, name string, args []*values.Value, block *values.Value, owner *registry.Module, proc *registry.Proc) error {
	if !proc.IsRubyFunc {
		return vm.callNative(retReg, recv, proc, args, block)
	}

	blockGiven := block != nil && !block.IsNil()
	ci := &CallInfo{
		MethodName:  name,
		NArgs:       len(args),
		ReturnReg:   retReg,
		MethodOwner: owner,
		BlockGiven:  blockGiven,
		Lenient:     !proc.Strict,
	}
	newOffset := vm.regsOffset + retReg
	if newOffset+1+len(args)+1 >= MaxRegsSize {
		return registry.NewInternalError("register stack overflow")
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
		return err
	}
	vm.targetClass = TargetContext{Class: vm.ClassOf(recv)}
	return nil
}

func (vm *VM) callNative(retReg int, recv *values.Value, proc *registry.Proc, args []*values.Value, block *values.Value) error {
	callArgs := args
	if block != nil && !block.IsNil() {
		callArgs = append(append([]*values.Value(nil), args...), block)
	}

	savedOffset := vm.regsOffset
	vm.regsOffset = savedOffset + retReg
	vm.regs[vm.regsOffset] = recv
	res, err := proc.Fn(vm, recv, callArgs)
	vm.regsOffset = savedOffset

	if err != nil {
		var rerr *registry.RubyError
		if errors.As(err, &rerr) && rerr.Kind == registry.KindBreak && rerr.TargetOffset == savedOffset {
			// The iteration the native was driving broke: its value
			// surfaces as this call site's result.
			vm.setReg(retReg, rerr.Value.(*values.Value))
			return nil
		}
		return err
	}
	if res == nil {
		res = values.Nil()
	}
	vm.setReg(retReg, res)
	return nil
}

func (vm *VM) opSuper(in opcodes.Instruction) error {
	ci := vm.callinfo
	if ci == nil || ci.MethodOwner == nil {
		return registry.NewRuntimeError("super called outside of method")
	}
	name := ci.MethodName
	recv := vm.Self()

	var args []*values.Value
	var block *values.Value
	if in.B == 15 {
		arr, ok := vm.reg(in.A + 1).AsArray()
		if !ok {
			return registry.NewInternalError("super argument pack is not an array")
		}
		args = append([]*values.Value(nil), arr.Elems...)
		block = vm.reg(in.A + 2)
	} else {
		args = make([]*values.Value, in.B)
		for i := range args {
			args[i] = vm.reg(in.A + 1 + i)
		}
	}

	owner, proc, ok := registry.ResolveNextMethod(vm.ClassOf(recv), name, ci.MethodOwner)
	if !ok {
		return registry.NewNoMethodError(name)
	}
	vm.setReg(in.A, recv)
	return vm.invoke(in.A, recv, name, args, block, owner, proc)
}

// opCall is the trampoline that runs a Proc sitting in register 0: the
// current frame is rebound to the proc's IREP without pushing a new one.
func (vm *VM) opCall() error {
	recv := vm.Self()
	p, ok := recv.Data.(*registry.Proc)
	if !ok || !recv.IsProc() {
		return registry.NewTypeMismatch("receiver of CALL is not a Proc")
	}
	if !p.IsRubyFunc {
		return registry.NewInternalError("CALL on a native proc")
	}
	if p.Self != nil {
		vm.regs[vm.regsOffset] = p.Self
	}
	vm.currentIrep = p.IREP
	vm.frameEnd = vm.regsOffset + p.IREP.NRegs
	vm.pc = 0
	vm.upper = p.Env
	return nil
}

func (vm *VM) opEnter(in opcodes.Instruction) error {
	spec := opcodes.DecodeASpec(in.A)
	nargs := 0
	blockGiven := false
	if ci := vm.callinfo; ci != nil {
		nargs = ci.NArgs
		blockGiven = ci.BlockGiven
	}

	args := make([]*values.Value, nargs)
	for i := range args {
		args[i] = vm.reg(1 + i)
	}
	block := values.Nil()
	if blockGiven {
		block = vm.reg(1 + nargs)
	}

	// A trailing hash feeds the declared keyword parameters.
	var kwHash *values.Hash
	if (spec.Key > 0 || spec.KDict) && nargs > spec.Req+spec.Post {
		if h, ok := args[nargs-1].AsHash(); ok {
			kwHash = h
			args = args[:nargs-1]
			nargs--
		}
	}

	m1, o, m2 := spec.Req, spec.Opt, spec.Post
	if ci := vm.callinfo; ci != nil && ci.Lenient {
		// Blocks bind loosely: a single array argument auto-splats across
		// multiple parameters, missing parameters become nil, extras drop.
		if nargs == 1 && m1+o+m2 > 1 {
			if arr, ok := args[0].AsArray(); ok {
				args = append([]*values.Value(nil), arr.Elems...)
				nargs = len(args)
			}
		}
		for nargs < m1+m2 {
			args = append(args, values.Nil())
			nargs++
		}
		if !spec.Rest && nargs > m1+o+m2 {
			args = args[:m1+o+m2]
			nargs = len(args)
		}
	}
	if nargs < m1+m2 {
		return registry.NewArgumentError("wrong number of arguments (given %d, expected %d+)", nargs, m1+m2)
	}
	if !spec.Rest && nargs > m1+o+m2 {
		return registry.NewArgumentError("wrong number of arguments (given %d, expected %d..%d)", nargs, m1+m2, m1+o+m2)
	}

	idx := 1
	for i := 0; i < m1; i++ {
		vm.setReg(idx, args[i])
		idx++
	}
	suppliedOpt := nargs - m1 - m2
	if suppliedOpt > o {
		suppliedOpt = o
	}
	for i := 0; i < suppliedOpt; i++ {
		vm.setReg(1+m1+i, args[m1+i])
	}
	idx = 1 + m1 + o
	if spec.Rest {
		rest := append([]*values.Value(nil), args[m1+suppliedOpt:nargs-m2]...)
		vm.setReg(idx, values.NewArray(rest))
		idx++
	}
	for i := 0; i < m2; i++ {
		vm.setReg(idx, args[nargs-m2+i])
		idx++
	}
	if spec.Key > 0 || spec.KDict {
		kd := values.NewHash()
		kdh, _ := kd.AsHash()
		if kwHash != nil {
			for _, e := range kwHash.Entries {
				kdh.Set(e.Key, e.Value)
			}
		}
		vm.setReg(idx, kd)
		idx++
		vm.kargs = &keywordArgs{hash: kdh, consumed: make(map[string]bool)}
	}
	vm.setReg(idx, block)

	// Optional parameters compile to a jump table right after ENTER: one
	// JMP per parameter plus a final one into the body. Skipping as many
	// entries as were supplied lands on the jump that bypasses their
	// default-value code.
	if o > 0 {
		vm.pc += suppliedOpt
	}
	return nil
}

func (vm *VM) opKArg(in opcodes.Instruction) error {
	name, err := vm.symName(in.B)
	if err != nil {
		return err
	}
	if vm.kargs == nil {
		return registry.NewArgumentError("missing keyword: :%s", name)
	}
	v, ok := vm.kargs.hash.Get(values.NewSymbol(name))
	if !ok {
		return registry.NewArgumentError("missing keyword: :%s", name)
	}
	vm.kargs.consumed[name] = true
	vm.setReg(in.A, v)
	return nil
}

func (vm *VM) opKeyP(in opcodes.Instruction) error {
	name, err := vm.symName(in.B)
	if err != nil {
		return err
	}
	present := vm.kargs != nil && vm.kargs.hash.Has(values.NewSymbol(name))
	if present {
		vm.kargs.consumed[name] = true
	}
	vm.setReg(in.A, values.NewBool(present))
	return nil
}

func (vm *VM) opKeyEnd() error {
	if vm.kargs == nil {
		return nil
	}
	for _, e := range vm.kargs.hash.Entries {
		if name, ok := e.Key.AsSymbol(); ok && !vm.kargs.consumed[name] {
			return registry.NewArgumentError("unknown keyword: :%s", name)
		}
	}
	return nil
}

func (vm *VM) opArgAry(in opcodes.Instruction) error {
	b := in.B
	m1 := (b >> 11) & 0x3f
	r := (b >> 10) & 1
	m2 := (b >> 5) & 0x1f
	kd := (b >> 4) & 1
	lv := b & 0xf

	read := func(i int) *values.Value { return vm.reg(i) }
	if lv > 0 {
		env, err := vm.upvarEnv(lv - 1)
		if err != nil {
			return err
		}
		read = func(i int) *values.Value { return vm.envReg(env, i) }
	}

	var args []*values.Value
	for i := 0; i < m1; i++ {
		args = append(args, read(1+i))
	}
	if r == 1 {
		if rest, ok := read(1 + m1).AsArray(); ok {
			args = append(args, rest.Elems...)
		}
	}
	for i := 0; i < m2; i++ {
		args = append(args, read(1+m1+r+i))
	}
	vm.setReg(in.A, values.NewArray(args))
	vm.setReg(in.A+1, read(1+m1+r+m2+kd))
	return nil
}

func (vm *VM) opBlkPush(in opcodes.Instruction) error {
	b := in.B
	m1 := (b >> 11) & 0x3f
	r := (b >> 10) & 1
	m2 := (b >> 5) & 0x1f
	kd := (b >> 4) & 1
	lv := b & 0xf
	idx := m1 + r + m2 + kd + 1

	var blk *values.Value
	if lv == 0 {
		blk = vm.reg(idx)
	} else {
		env, err := vm.upvarEnv(lv - 1)
		if err != nil {
			return err
		}
		blk = vm.envReg(env, idx)
	}
	if blk.IsNil() {
		return &registry.RubyError{Kind: registry.KindLocalJump, Message: "no block given (yield)"}
	}
	vm.setReg(in.A, blk)
	return nil
}

func (vm *VM) opReturnBlk(in opcodes.Instruction, boundary *CallInfo) error {
	if vm.upper == nil {
		vm.doReturn(vm.reg(in.A), boundary)
		return nil
	}
	env := vm.upper
	for env.Upper != nil {
		env = env.Upper
	}
	return &registry.RubyError{
		Kind:       registry.KindBlockReturn,
		Value:      vm.reg(in.A),
		TargetIrep: env.IrepID,
	}
}

func (vm *VM) opBreak(in opcodes.Instruction) error {
	if vm.upper == nil {
		return &registry.RubyError{Kind: registry.KindLocalJump, Message: "break from proc-closure"}
	}
	if vm.upper.Expired() {
		return &registry.RubyError{Kind: registry.KindLocalJump, Message: "break from expired block"}
	}
	return &registry.RubyError{
		Kind:         registry.KindBreak,
		Value:        vm.reg(in.A),
		TargetOffset: vm.upper.RegsOffset,
	}
}

func (vm *VM) opMakeBlock(in opcodes.Instruction) error {
	if in.B < 0 || in.B >= len(vm.currentIrep.Children) {
		return registry.NewInternalError("block child index %d out of range", in.B)
	}
	child := vm.currentIrep.Children[in.B]
	env := vm.ensureEnv()
	proc := &registry.Proc{
		IsRubyFunc: true,
		Name:       "<block>",
		IREP:       child,
		Env:        env,
		Self:       vm.Self(),
		Strict:     in.Opcode == opcodes.LAMBDA,
	}
	vm.setReg(in.A, values.NewProc(proc))
	return nil
}

func (vm *VM) opMakeMethod(in opcodes.Instruction) error {
	if in.B < 0 || in.B >= len(vm.currentIrep.Children) {
		return registry.NewInternalError("method child index %d out of range", in.B)
	}
	child := vm.currentIrep.Children[in.B]
	vm.setReg(in.A, values.NewProc(registry.NewRubyProc("", child)))
	return nil
}
