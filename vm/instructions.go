package vm

import (
	"github.com/gomrb/gomrb/opcodes"
	"github.com/gomrb/gomrb/registry"
	"github.com/gomrb/gomrb/values"
)

// dispatch executes one decoded instruction. Returned errors are raised as
// exceptions by the run loop; control-flow opcodes mutate pc directly.
func (vm *VM) dispatch(in opcodes.Instruction, boundary *CallInfo) error {
	switch in.Opcode {
	case opcodes.NOP, opcodes.DEBUG:
		return nil

	case opcodes.MOVE:
		vm.setReg(in.A, vm.reg(in.B))
		return nil

	case opcodes.LOADL:
		v, err := vm.poolValue(in.B)
		if err != nil {
			return err
		}
		vm.setReg(in.A, v)
		return nil

	case opcodes.LOADI:
		vm.setReg(in.A, values.NewInt(int64(in.B)))
		return nil

	case opcodes.LOADINEG:
		vm.setReg(in.A, values.NewInt(-int64(in.B)))
		return nil

	case opcodes.LOADI_N1, opcodes.LOADI_0, opcodes.LOADI_1, opcodes.LOADI_2,
		opcodes.LOADI_3, opcodes.LOADI_4, opcodes.LOADI_5, opcodes.LOADI_6, opcodes.LOADI_7:
		vm.setReg(in.A, values.NewInt(int64(in.Opcode)-int64(opcodes.LOADI_0)))
		return nil

	case opcodes.LOADI16:
		vm.setReg(in.A, values.NewInt(int64(int16(in.B))))
		return nil

	case opcodes.LOADI32:
		vm.setReg(in.A, values.NewInt(int64(int32(uint32(in.B)<<16|uint32(in.C)))))
		return nil

	case opcodes.LOADSYM:
		name, err := vm.symName(in.B)
		if err != nil {
			return err
		}
		vm.setReg(in.A, values.NewSymbol(name))
		return nil

	case opcodes.LOADNIL:
		vm.setReg(in.A, values.Nil())
		return nil

	case opcodes.LOADSELF:
		vm.setReg(in.A, vm.Self())
		return nil

	case opcodes.LOADT:
		vm.setReg(in.A, values.NewBool(true))
		return nil

	case opcodes.LOADF:
		vm.setReg(in.A, values.NewBool(false))
		return nil

	case opcodes.GETGV, opcodes.GETSV:
		name, err := vm.symName(in.B)
		if err != nil {
			return err
		}
		if v, ok := vm.globals[name]; ok {
			vm.setReg(in.A, v)
		} else {
			vm.setReg(in.A, values.Nil())
		}
		return nil

	case opcodes.SETGV, opcodes.SETSV:
		name, err := vm.symName(in.B)
		if err != nil {
			return err
		}
		vm.globals[name] = vm.reg(in.A)
		return nil

	case opcodes.GETIV:
		name, err := vm.symName(in.B)
		if err != nil {
			return err
		}
		vm.setReg(in.A, vm.Self().IVarGet(name))
		return nil

	case opcodes.SETIV:
		name, err := vm.symName(in.B)
		if err != nil {
			return err
		}
		vm.Self().IVarSet(name, vm.reg(in.A))
		return nil

	case opcodes.GETCV:
		name, err := vm.symName(in.B)
		if err != nil {
			return err
		}
		if v, ok := vm.classVarGet(name); ok {
			vm.setReg(in.A, v)
			return nil
		}
		return registry.NewNameError(name)

	case opcodes.SETCV:
		name, err := vm.symName(in.B)
		if err != nil {
			return err
		}
		vm.classVarSet(name, vm.reg(in.A))
		return nil

	case opcodes.GETCONST:
		name, err := vm.symName(in.B)
		if err != nil {
			return err
		}
		v, ok := vm.constLookup(name)
		if !ok {
			return registry.NewNameError(name)
		}
		vm.setReg(in.A, v)
		return nil

	case opcodes.SETCONST:
		name, err := vm.symName(in.B)
		if err != nil {
			return err
		}
		vm.SetConst(name, vm.reg(in.A))
		return nil

	case opcodes.GETMCNST:
		name, err := vm.symName(in.B)
		if err != nil {
			return err
		}
		mod := vm.moduleOf(vm.reg(in.A))
		if mod == nil {
			return registry.NewTypeMismatch("%s is not a class or module", vm.reg(in.A).Inspect())
		}
		if v, ok := mod.ConstGet(name); ok {
			vm.setReg(in.A, v)
			return nil
		}
		return registry.NewNameError(mod.FullName() + "::" + name)

	case opcodes.SETMCNST:
		name, err := vm.symName(in.B)
		if err != nil {
			return err
		}
		mod := vm.moduleOf(vm.reg(in.A + 1))
		if mod == nil {
			return registry.NewTypeMismatch("%s is not a class or module", vm.reg(in.A+1).Inspect())
		}
		mod.ConstSet(name, vm.reg(in.A))
		return nil

	case opcodes.GETUPVAR:
		env, err := vm.upvarEnv(in.C)
		if err != nil {
			return err
		}
		vm.setReg(in.A, vm.envReg(env, in.B))
		return nil

	case opcodes.SETUPVAR:
		env, err := vm.upvarEnv(in.C)
		if err != nil {
			return err
		}
		vm.setEnvReg(env, in.B, vm.reg(in.A))
		return nil

	case opcodes.GETIDX:
		return vm.opGetIdx(in)

	case opcodes.SETIDX:
		return vm.opSetIdx(in)

	case opcodes.JMP:
		return vm.jumpRel(in, int(int16(uint16(in.A))))

	case opcodes.JMPUW:
		// Unwinding jump out of a protected region. Ensure bodies are
		// entered through catch handlers, so a plain jump suffices here.
		return vm.jumpRel(in, int(int16(uint16(in.A))))

	case opcodes.JMPIF:
		if vm.reg(in.A).IsTruthy() {
			return vm.jumpRel(in, int(int16(uint16(in.B))))
		}
		return nil

	case opcodes.JMPNOT:
		if vm.reg(in.A).IsFalsy() {
			return vm.jumpRel(in, int(int16(uint16(in.B))))
		}
		return nil

	case opcodes.JMPNIL:
		if vm.reg(in.A).IsNil() {
			return vm.jumpRel(in, int(int16(uint16(in.B))))
		}
		return nil

	case opcodes.EXCEPT:
		vm.opExcept(in)
		return nil

	case opcodes.RESCUE:
		return vm.opRescue(in)

	case opcodes.RAISEIF:
		return vm.opRaiseIf(in)

	case opcodes.SSEND:
		return vm.opSend(in, sendSelf)

	case opcodes.SSENDB:
		return vm.opSend(in, sendSelf|sendBlock)

	case opcodes.SEND:
		return vm.opSend(in, 0)

	case opcodes.SENDB:
		return vm.opSend(in, sendBlock)

	case opcodes.CALL:
		return vm.opCall()

	case opcodes.SUPER:
		return vm.opSuper(in)

	case opcodes.ARGARY:
		return vm.opArgAry(in)

	case opcodes.ENTER:
		return vm.opEnter(in)

	case opcodes.KEY_P:
		return vm.opKeyP(in)

	case opcodes.KEYEND:
		return vm.opKeyEnd()

	case opcodes.KARG:
		return vm.opKArg(in)

	case opcodes.RETURN:
		vm.doReturn(vm.reg(in.A), boundary)
		return nil

	case opcodes.RETURN_BLK:
		return vm.opReturnBlk(in, boundary)

	case opcodes.BREAK:
		return vm.opBreak(in)

	case opcodes.BLKPUSH:
		return vm.opBlkPush(in)

	case opcodes.ADD, opcodes.SUB, opcodes.MUL, opcodes.DIV,
		opcodes.EQ, opcodes.LT, opcodes.LE, opcodes.GT, opcodes.GE:
		return vm.opArith(in)

	case opcodes.ADDI, opcodes.SUBI:
		return vm.opArithImmediate(in)

	case opcodes.ARRAY:
		elems := make([]*values.Value, in.B)
		for i := 0; i < in.B; i++ {
			elems[i] = vm.reg(in.A + i)
		}
		vm.setReg(in.A, values.NewArray(elems))
		return nil

	case opcodes.ARRAY2:
		elems := make([]*values.Value, in.C)
		for i := 0; i < in.C; i++ {
			elems[i] = vm.reg(in.B + i)
		}
		vm.setReg(in.A, values.NewArray(elems))
		return nil

	case opcodes.ARYCAT:
		return vm.opAryCat(in)

	case opcodes.ARYPUSH:
		arr, ok := vm.reg(in.A).AsArray()
		if !ok {
			return registry.NewTypeMismatch("not an array")
		}
		for i := 1; i <= in.B; i++ {
			arr.Elems = append(arr.Elems, vm.reg(in.A+i))
		}
		return nil

	case opcodes.ARYDUP:
		arr, ok := vm.reg(in.A).AsArray()
		if !ok {
			return registry.NewTypeMismatch("not an array")
		}
		vm.setReg(in.A, values.NewArray(append([]*values.Value(nil), arr.Elems...)))
		return nil

	case opcodes.AREF:
		arr, ok := vm.reg(in.B).AsArray()
		if !ok {
			return registry.NewTypeMismatch("not an array")
		}
		if in.C < len(arr.Elems) {
			vm.setReg(in.A, arr.Elems[in.C])
		} else {
			vm.setReg(in.A, values.Nil())
		}
		return nil

	case opcodes.ASET:
		arr, ok := vm.reg(in.B).AsArray()
		if !ok {
			return registry.NewTypeMismatch("not an array")
		}
		for len(arr.Elems) <= in.C {
			arr.Elems = append(arr.Elems, values.Nil())
		}
		arr.Elems[in.C] = vm.reg(in.A)
		return nil

	case opcodes.APOST:
		return vm.opAPost(in)

	case opcodes.INTERN:
		s, ok := vm.reg(in.A).AsString()
		if !ok {
			return registry.NewTypeMismatch("not a string")
		}
		vm.setReg(in.A, values.NewSymbol(string(s.Bytes)))
		return nil

	case opcodes.SYMBOL:
		v, err := vm.poolValue(in.B)
		if err != nil {
			return err
		}
		s, ok := v.AsString()
		if !ok {
			return registry.NewTypeMismatch("symbol pool entry is not a string")
		}
		vm.setReg(in.A, values.NewSymbol(string(s.Bytes)))
		return nil

	case opcodes.STRING:
		v, err := vm.poolValue(in.B)
		if err != nil {
			return err
		}
		vm.setReg(in.A, v)
		return nil

	case opcodes.STRCAT:
		return vm.opStrCat(in)

	case opcodes.HASH:
		h := values.NewHash()
		hd, _ := h.AsHash()
		for i := 0; i < in.B; i++ {
			if !hd.Set(vm.reg(in.A+i*2), vm.reg(in.A+i*2+1)) {
				return registry.NewTypeMismatch("invalid hash key %s", vm.reg(in.A+i*2).Inspect())
			}
		}
		vm.setReg(in.A, h)
		return nil

	case opcodes.HASHADD:
		hd, ok := vm.reg(in.A).AsHash()
		if !ok {
			return registry.NewTypeMismatch("not a hash")
		}
		for i := 0; i < in.B; i++ {
			if !hd.Set(vm.reg(in.A+1+i*2), vm.reg(in.A+2+i*2)) {
				return registry.NewTypeMismatch("invalid hash key %s", vm.reg(in.A+1+i*2).Inspect())
			}
		}
		return nil

	case opcodes.HASHCAT:
		dst, ok := vm.reg(in.A).AsHash()
		if !ok {
			return registry.NewTypeMismatch("not a hash")
		}
		src, ok := vm.reg(in.A + 1).AsHash()
		if !ok {
			return registry.NewTypeMismatch("not a hash")
		}
		for _, e := range src.Entries {
			dst.Set(e.Key, e.Value)
		}
		return nil

	case opcodes.LAMBDA, opcodes.BLOCK:
		return vm.opMakeBlock(in)

	case opcodes.METHOD:
		return vm.opMakeMethod(in)

	case opcodes.RANGE_INC:
		vm.setReg(in.A, values.NewRange(vm.reg(in.A), vm.reg(in.A+1), false))
		return nil

	case opcodes.RANGE_EXC:
		vm.setReg(in.A, values.NewRange(vm.reg(in.A), vm.reg(in.A+1), true))
		return nil

	case opcodes.OCLASS:
		vm.setReg(in.A, vm.ClassValue(vm.objectClass))
		return nil

	case opcodes.CLASS:
		return vm.opClass(in)

	case opcodes.MODULE:
		return vm.opModule(in)

	case opcodes.EXEC:
		return vm.opExec(in)

	case opcodes.DEF:
		return vm.opDef(in)

	case opcodes.ALIAS:
		return vm.opAlias(in)

	case opcodes.UNDEF:
		name, err := vm.symName(in.A)
		if err != nil {
			return err
		}
		if t := vm.targetClass.target(); t != nil {
			t.UndefMethod(name)
		}
		return nil

	case opcodes.SCLASS:
		sc := vm.SingletonClass(vm.reg(in.A))
		vm.setReg(in.A, vm.ClassValue(sc))
		return nil

	case opcodes.TCLASS:
		if vm.targetClass.Class != nil {
			vm.setReg(in.A, vm.ClassValue(vm.targetClass.Class))
		} else {
			vm.setReg(in.A, vm.ModuleValue(vm.targetClass.Module))
		}
		return nil

	case opcodes.ERR:
		v, err := vm.poolValue(in.A)
		if err != nil {
			return err
		}
		msg := v.Inspect()
		if s, ok := v.AsString(); ok {
			msg = string(s.Bytes)
		}
		return registry.NewRuntimeError("%s", msg)

	case opcodes.EXT1, opcodes.EXT2, opcodes.EXT3:
		return registry.NewInvalidOpCode("extended operand prefix %s is not supported", in.Opcode)

	case opcodes.STOP:
		vm.halted = true
		return nil

	case opcodes.EPUSH, opcodes.EPOP:
		// Legacy ensure-stack management; catch-handler tables carry this
		// responsibility in RITE 03.
		return nil

	case opcodes.RAISE:
		// Legacy raise; Kernel#raise carries this in RITE 03.
		v := vm.reg(in.A)
		if _, ok := v.AsException(); ok {
			vm.exception = v
			return nil
		}
		return registry.NewTypeMismatch("exception object expected")
	}

	return registry.NewInvalidOpCode("opcode %s is not implemented", in.Opcode)
}

func (vm *VM) symName(i int) (string, error) {
	if i < 0 || i >= len(vm.currentIrep.Syms) {
		return "", registry.NewInternalError("symbol index %d out of range", i)
	}
	return vm.currentIrep.Syms[i], nil
}

// poolValue fetches a constant-pool entry, duplicating strings so bytecode
// mutations never leak back into the pool.
func (vm *VM) poolValue(i int) (*values.Value, error) {
	if i < 0 || i >= len(vm.currentIrep.Pool) {
		return nil, registry.NewInternalError("pool index %d out of range", i)
	}
	v := vm.currentIrep.Pool[i]
	if s, ok := v.AsString(); ok {
		return values.NewStringBytes(append([]byte(nil), s.Bytes...)), nil
	}
	return v, nil
}

// jumpRel moves the pc by a signed byte offset relative to the end of the
// current instruction, translated back into an instruction index.
func (vm *VM) jumpRel(in opcodes.Instruction, offset int) error {
	target := in.Pos + in.Len + offset
	idx, ok := vm.currentIrep.IndexAt(target)
	if !ok {
		return registry.NewInternalError("jump target %d is not an instruction boundary", target)
	}
	vm.pc = idx
	return nil
}

func (vm *VM) upvarEnv(levels int) (*registry.Env, error) {
	env := vm.upper
	for i := 0; i < levels && env != nil; i++ {
		env = env.Upper
	}
	if env == nil {
		return nil, registry.NewInternalError("no enclosing environment at depth %d", levels)
	}
	return env, nil
}

func (vm *VM) opGetIdx(in opcodes.Instruction) error {
	recv := vm.reg(in.A)
	idx := vm.reg(in.A + 1)
	switch recv.Type {
	case values.TypeArray:
		arr, _ := recv.AsArray()
		i, ok := idx.AsInt()
		if !ok {
			return registry.NewTypeMismatch("array index must be an Integer")
		}
		if i < 0 {
			i += int64(len(arr.Elems))
		}
		if i >= 0 && int(i) < len(arr.Elems) {
			vm.setReg(in.A, arr.Elems[i])
		} else {
			vm.setReg(in.A, values.Nil())
		}
		return nil
	case values.TypeHash:
		h, _ := recv.AsHash()
		if v, ok := h.Get(idx); ok {
			vm.setReg(in.A, v)
		} else {
			vm.setReg(in.A, values.Nil())
		}
		return nil
	case values.TypeString:
		s, _ := recv.AsString()
		i, ok := idx.AsInt()
		if !ok {
			return registry.NewTypeMismatch("string index must be an Integer")
		}
		if i < 0 {
			i += int64(len(s.Bytes))
		}
		if i >= 0 && int(i) < len(s.Bytes) {
			vm.setReg(in.A, values.NewStringBytes([]byte{s.Bytes[i]}))
		} else {
			vm.setReg(in.A, values.Nil())
		}
		return nil
	}
	// Anything else goes through ordinary dispatch.
	res, err := vm.Funcall(recv, "[]", idx)
	if err != nil {
		return err
	}
	vm.setReg(in.A, res)
	return nil
}

func (vm *VM) opSetIdx(in opcodes.Instruction) error {
	recv := vm.reg(in.A)
	idx := vm.reg(in.A + 1)
	val := vm.reg(in.A + 2)
	switch recv.Type {
	case values.TypeArray:
		arr, _ := recv.AsArray()
		i, ok := idx.AsInt()
		if !ok {
			return registry.NewTypeMismatch("array index must be an Integer")
		}
		if i < 0 {
			i += int64(len(arr.Elems))
		}
		if i < 0 {
			return registry.NewArgumentError("index %d too small for array", i)
		}
		for int64(len(arr.Elems)) <= i {
			arr.Elems = append(arr.Elems, values.Nil())
		}
		arr.Elems[i] = val
		return nil
	case values.TypeHash:
		h, _ := recv.AsHash()
		if !h.Set(idx, val) {
			return registry.NewTypeMismatch("invalid hash key %s", idx.Inspect())
		}
		return nil
	}
	_, err := vm.Funcall(recv, "[]=", idx, val)
	return err
}

func (vm *VM) opAryCat(in opcodes.Instruction) error {
	dst, ok := vm.reg(in.A).AsArray()
	if !ok {
		return registry.NewTypeMismatch("not an array")
	}
	src := vm.reg(in.A + 1)
	if sa, ok := src.AsArray(); ok {
		dst.Elems = append(dst.Elems, sa.Elems...)
	} else {
		dst.Elems = append(dst.Elems, src)
	}
	return nil
}

func (vm *VM) opAPost(in opcodes.Instruction) error {
	src := vm.reg(in.A)
	arr, ok := src.AsArray()
	if !ok {
		arr = &values.Array{Elems: []*values.Value{src}}
	}
	pre, post := in.B, in.C
	n := len(arr.Elems)
	if n > pre+post {
		rest := append([]*values.Value(nil), arr.Elems[pre:n-post]...)
		vm.setReg(in.A, values.NewArray(rest))
		for i := 0; i < post; i++ {
			vm.setReg(in.A+1+i, arr.Elems[n-post+i])
		}
	} else {
		vm.setReg(in.A, values.NewArray(nil))
		for i := 0; i < post; i++ {
			if pre+i < n {
				vm.setReg(in.A+1+i, arr.Elems[pre+i])
			} else {
				vm.setReg(in.A+1+i, values.Nil())
			}
		}
	}
	return nil
}

func (vm *VM) opStrCat(in opcodes.Instruction) error {
	dst, ok := vm.reg(in.A).AsString()
	if !ok {
		return registry.NewTypeMismatch("not a string")
	}
	rhs := vm.reg(in.A + 1)
	if s, ok := rhs.AsString(); ok {
		dst.Bytes = append(dst.Bytes, s.Bytes...)
		return nil
	}
	res, err := vm.Funcall(rhs, "to_s")
	if err != nil {
		return err
	}
	if s, ok := res.AsString(); ok {
		dst.Bytes = append(dst.Bytes, s.Bytes...)
		return nil
	}
	dst.Bytes = append(dst.Bytes, rhs.Inspect()...)
	return nil
}
