package vm

import (
	"github.com/gomrb/gomrb/opcodes"
	"github.com/gomrb/gomrb/registry"
	"github.com/gomrb/gomrb/values"
)

// Test helpers that assemble decoded instruction vectors directly, the way
// the decoder would produce them from packed bytes.

var testIrepID = 1000

func op(code opcodes.OpCode, operands ...int) opcodes.Instruction {
	in := opcodes.Instruction{Opcode: code}
	if len(operands) > 0 {
		in.A = operands[0]
	}
	if len(operands) > 1 {
		in.B = operands[1]
	}
	if len(operands) > 2 {
		in.C = operands[2]
	}
	return in
}

// asm assigns shapes, byte positions, and lengths, mirroring the decoder.
func asm(ins ...opcodes.Instruction) []opcodes.Instruction {
	pos := 0
	for i := range ins {
		ins[i].Shape = opcodes.ShapeOf(ins[i].Opcode)
		ins[i].Pos = pos
		ins[i].Len = 1 + ins[i].Shape.Len()
		pos += ins[i].Len
	}
	return ins
}

// setJump patches the jump at index from to land on index to, using the
// byte-relative encoding the interpreter expects.
func setJump(code []opcodes.Instruction, from, to int) {
	offset := code[to].Pos - (code[from].Pos + code[from].Len)
	operand := int(uint16(int16(offset)))
	switch code[from].Shape {
	case opcodes.S:
		code[from].A = operand
	case opcodes.BS:
		code[from].B = operand
	}
}

func newIrep(nregs int, code []opcodes.Instruction) *registry.IREP {
	testIrepID++
	return &registry.IREP{
		ID:    testIrepID,
		NRegs: nregs,
		Code:  code,
	}
}

func runScript(t interface {
	Helper()
	Fatalf(format string, args ...interface{})
}, irep *registry.IREP) (*values.Value, error) {
	t.Helper()
	machine := NewEmpty(Config{})
	machine.RootIrep = irep
	return machine.Run()
}

func mustInt(t interface {
	Helper()
	Fatalf(format string, args ...interface{})
}, v *values.Value) int64 {
	t.Helper()
	i, ok := v.AsInt()
	if !ok {
		t.Fatalf("expected Integer, got %s", v.Inspect())
	}
	return i
}
