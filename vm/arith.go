package vm

import (
	"github.com/gomrb/gomrb/opcodes"
	"github.com/gomrb/gomrb/registry"
	"github.com/gomrb/gomrb/values"
)

// opArith handles the fused binary operators over R(a) and R(a+1).
// Integer pairs stay Integer, a Float on either side promotes to Float,
// and strings/arrays keep their concatenation semantics. Anything else
// falls back to ordinary method dispatch so user-defined operators work.
func (vm *VM) opArith(in opcodes.Instruction) error {
	lhs := vm.reg(in.A)
	rhs := vm.reg(in.A + 1)

	if lhs.Type == values.TypeInt && rhs.Type == values.TypeInt {
		a := lhs.Data.(int64)
		b := rhs.Data.(int64)
		switch in.Opcode {
		case opcodes.ADD:
			vm.setReg(in.A, values.NewInt(a+b))
		case opcodes.SUB:
			vm.setReg(in.A, values.NewInt(a-b))
		case opcodes.MUL:
			vm.setReg(in.A, values.NewInt(a*b))
		case opcodes.DIV:
			if b == 0 {
				return registry.NewZeroDivisionError()
			}
			vm.setReg(in.A, values.NewInt(floorDiv(a, b)))
		case opcodes.EQ:
			vm.setReg(in.A, values.NewBool(a == b))
		case opcodes.LT:
			vm.setReg(in.A, values.NewBool(a < b))
		case opcodes.LE:
			vm.setReg(in.A, values.NewBool(a <= b))
		case opcodes.GT:
			vm.setReg(in.A, values.NewBool(a > b))
		case opcodes.GE:
			vm.setReg(in.A, values.NewBool(a >= b))
		}
		return nil
	}

	lf, lok := lhs.AsFloat()
	rf, rok := rhs.AsFloat()
	if lok && rok {
		switch in.Opcode {
		case opcodes.ADD:
			vm.setReg(in.A, values.NewFloat(lf+rf))
		case opcodes.SUB:
			vm.setReg(in.A, values.NewFloat(lf-rf))
		case opcodes.MUL:
			vm.setReg(in.A, values.NewFloat(lf*rf))
		case opcodes.DIV:
			// Float division never raises: 0.0/0.0 is NaN.
			vm.setReg(in.A, values.NewFloat(lf/rf))
		case opcodes.EQ:
			vm.setReg(in.A, values.NewBool(lf == rf))
		case opcodes.LT:
			vm.setReg(in.A, values.NewBool(lf < rf))
		case opcodes.LE:
			vm.setReg(in.A, values.NewBool(lf <= rf))
		case opcodes.GT:
			vm.setReg(in.A, values.NewBool(lf > rf))
		case opcodes.GE:
			vm.setReg(in.A, values.NewBool(lf >= rf))
		}
		return nil
	}

	if in.Opcode == opcodes.ADD {
		if ls, ok := lhs.AsString(); ok {
			rs, ok := rhs.AsString()
			if !ok {
				return registry.NewTypeMismatch("no implicit conversion into String")
			}
			joined := make([]byte, 0, len(ls.Bytes)+len(rs.Bytes))
			joined = append(append(joined, ls.Bytes...), rs.Bytes...)
			vm.setReg(in.A, values.NewStringBytes(joined))
			return nil
		}
		if la, ok := lhs.AsArray(); ok {
			ra, ok := rhs.AsArray()
			if !ok {
				return registry.NewTypeMismatch("no implicit conversion into Array")
			}
			joined := make([]*values.Value, 0, len(la.Elems)+len(ra.Elems))
			joined = append(append(joined, la.Elems...), ra.Elems...)
			vm.setReg(in.A, values.NewArray(joined))
			return nil
		}
	}

	if in.Opcode == opcodes.MUL {
		if ls, ok := lhs.AsString(); ok {
			n, ok := rhs.AsInt()
			if !ok || n < 0 {
				return registry.NewTypeMismatch("String#* expects a non-negative Integer")
			}
			out := make([]byte, 0, len(ls.Bytes)*int(n))
			for i := int64(0); i < n; i++ {
				out = append(out, ls.Bytes...)
			}
			vm.setReg(in.A, values.NewStringBytes(out))
			return nil
		}
	}

	if in.Opcode == opcodes.EQ && lhs.Type != values.TypeInstance {
		vm.setReg(in.A, values.NewBool(values.Equal(lhs, rhs)))
		return nil
	}

	// Operator methods defined in Ruby (or by the host) take over.
	res, err := vm.Funcall(lhs, arithMethodName(in.Opcode), rhs)
	if err != nil {
		return err
	}
	vm.setReg(in.A, res)
	return nil
}

func arithMethodName(op opcodes.OpCode) string {
	switch op {
	case opcodes.ADD:
		return "+"
	case opcodes.SUB:
		return "-"
	case opcodes.MUL:
		return "*"
	case opcodes.DIV:
		return "/"
	case opcodes.EQ:
		return "=="
	case opcodes.LT:
		return "<"
	case opcodes.LE:
		return "<="
	case opcodes.GT:
		return ">"
	case opcodes.GE:
		return ">="
	}
	return "+"
}

// floorDiv matches Ruby's integer division, which rounds toward negative
// infinity.
func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// opArithImmediate folds a small immediate into the register's value.
func (vm *VM) opArithImmediate(in opcodes.Instruction) error {
	v := vm.reg(in.A)
	n := int64(in.B)
	if in.Opcode == opcodes.SUBI {
		n = -n
	}
	switch v.Type {
	case values.TypeInt:
		vm.setReg(in.A, values.NewInt(v.Data.(int64)+n))
		return nil
	case values.TypeFloat:
		vm.setReg(in.A, values.NewFloat(v.Data.(float64)+float64(n)))
		return nil
	}
	name := "+"
	if in.Opcode == opcodes.SUBI {
		name = "-"
	}
	res, err := vm.Funcall(v, name, values.NewInt(int64(in.B)))
	if err != nil {
		return err
	}
	vm.setReg(in.A, res)
	return nil
}
