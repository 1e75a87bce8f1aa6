package vm

import (
	"github.com/gomrb/gomrb/opcodes"
	"github.com/gomrb/gomrb/registry"
	"github.com/gomrb/gomrb/rite"
	"github.com/gomrb/gomrb/values"
)

// BuildIrep decodes a loaded file's flat depth-first IREP records into the
// tree the interpreter executes. IREP ids keep growing across incremental
// loads so environments never confuse frames from different files.
func (vm *VM) BuildIrep(file *rite.File) (*registry.IREP, error) {
	if len(file.Ireps) == 0 {
		return nil, &rite.Error{Kind: rite.ErrInvalidFormat, Message: "file has no code records"}
	}
	root, next, err := vm.buildIrepTree(file.Ireps, 0)
	if err != nil {
		return nil, err
	}
	if next != len(file.Ireps) {
		return nil, &rite.Error{Kind: rite.ErrInvalidFormat, Message: "IREP child counts do not cover the record list"}
	}
	return root, nil
}

func (vm *VM) buildIrepTree(raws []rite.Irep, pos int) (*registry.IREP, int, error) {
	if pos >= len(raws) {
		return nil, 0, &rite.Error{Kind: rite.ErrInvalidFormat, Message: "IREP child count exceeds record list"}
	}
	irep, err := vm.buildIrepOne(&raws[pos])
	if err != nil {
		return nil, 0, err
	}
	next := pos + 1
	for i := 0; i < raws[pos].NChildren; i++ {
		child, n, err := vm.buildIrepTree(raws, next)
		if err != nil {
			return nil, 0, err
		}
		irep.Children = append(irep.Children, child)
		next = n
	}
	return irep, next, nil
}

func (vm *VM) buildIrepOne(raw *rite.Irep) (*registry.IREP, error) {
	if raw.NLocals < 0 || raw.NRegs < 0 {
		return nil, &rite.Error{Kind: rite.ErrInvalidFormat, Message: "negative register count"}
	}
	code, err := opcodes.Decode(raw.Insns)
	if err != nil {
		return nil, err
	}
	targets, err := opcodes.CatchTargets(code, raw.CatchHandlers)
	if err != nil {
		return nil, err
	}

	irep := &registry.IREP{
		ID:           vm.irepSeq,
		NLocals:      raw.NLocals,
		NRegs:        raw.NRegs,
		Code:         code,
		Syms:         raw.Syms,
		CatchTargets: targets,
	}
	vm.irepSeq++

	for _, p := range raw.Pool {
		switch p.Tag {
		case rite.PoolStr, rite.PoolSStr:
			irep.Pool = append(irep.Pool, values.NewString(p.Str))
		case rite.PoolInt32, rite.PoolInt64:
			irep.Pool = append(irep.Pool, values.NewInt(p.Int))
		case rite.PoolFloat:
			irep.Pool = append(irep.Pool, values.NewFloat(p.Float))
		case rite.PoolBigInt:
			// Stored opaque until big integers enter the covered subset.
			irep.Pool = append(irep.Pool, values.NewData(nil, p.Data))
		}
	}
	return irep, nil
}
