package vm

import (
	"fmt"

	"github.com/gomrb/gomrb/opcodes"
	"github.com/gomrb/gomrb/registry"
)

// DumpIrep flattens an IREP tree into table rows for diagnostic listings:
// one row per instruction with its IREP id, index, byte position, and the
// rendered operation. Symbol operands are annotated with their names so
// dumps read without the symbol table at hand.
func DumpIrep(root *registry.IREP) [][]string {
	var rows [][]string
	walkIrep(root, &rows)
	return rows
}

func walkIrep(ir *registry.IREP, rows *[][]string) {
	for i, in := range ir.Code {
		*rows = append(*rows, []string{
			fmt.Sprintf("%d", ir.ID),
			fmt.Sprintf("%04d", i),
			fmt.Sprintf("%d", in.Pos),
			in.String(),
			symAnnotation(ir, in),
		})
	}
	for _, child := range ir.Children {
		walkIrep(child, rows)
	}
}

func symAnnotation(ir *registry.IREP, in opcodes.Instruction) string {
	switch in.Opcode {
	case opcodes.SEND, opcodes.SENDB, opcodes.SSEND, opcodes.SSENDB,
		opcodes.LOADSYM, opcodes.GETIV, opcodes.SETIV, opcodes.GETGV,
		opcodes.SETGV, opcodes.GETCONST, opcodes.SETCONST, opcodes.GETMCNST,
		opcodes.CLASS, opcodes.MODULE, opcodes.DEF,
		opcodes.KARG, opcodes.KEY_P:
		if in.B >= 0 && in.B < len(ir.Syms) {
			return ir.Syms[in.B]
		}
	case opcodes.UNDEF:
		if in.A >= 0 && in.A < len(ir.Syms) {
			return ir.Syms[in.A]
		}
	}
	return ""
}
