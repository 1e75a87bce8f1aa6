package vm

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gomrb/gomrb/opcodes"
	"github.com/gomrb/gomrb/registry"
	"github.com/gomrb/gomrb/rite"
	"github.com/gomrb/gomrb/values"
)

func TestDefineNativeMethodAndFuncall(t *testing.T) {
	machine := NewEmpty(Config{})
	c := machine.DefineClass("Greeter", nil, nil)
	machine.DefineMethod(&c.Module, "greet", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		name, err := ctx.(*VM).ToGoString(args[0])
		if err != nil {
			return nil, err
		}
		return values.NewString("hi " + name), nil
	})

	inst, err := machine.Funcall(machine.ClassValue(c), "new")
	require.NoError(t, err)
	res, err := machine.Funcall(inst, "greet", values.NewString("there"))
	require.NoError(t, err)
	s, _ := res.AsString()
	assert.Equal(t, "hi there", string(s.Bytes))
}

func TestDefineClassMethod(t *testing.T) {
	machine := NewEmpty(Config{})
	c := machine.DefineClass("Factory", nil, nil)
	machine.DefineClassMethod(c, "answer", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		return values.NewInt(42), nil
	})

	res, err := machine.Funcall(machine.ClassValue(c), "answer")
	require.NoError(t, err)
	assert.Equal(t, int64(42), mustInt(t, res))
}

func TestScalarConversions(t *testing.T) {
	machine := NewEmpty(Config{})

	i, err := machine.ToInt64(values.NewInt(5))
	require.NoError(t, err)
	assert.Equal(t, int64(5), i)

	f, err := machine.ToFloat64(values.NewInt(5))
	require.NoError(t, err)
	assert.Equal(t, 5.0, f)

	s, err := machine.ToGoString(values.NewString("x"))
	require.NoError(t, err)
	assert.Equal(t, "x", s)

	b, err := machine.ToBytes(values.NewString("ab"))
	require.NoError(t, err)
	assert.Equal(t, []byte("ab"), b)

	sl, err := machine.ToSlice(values.NewArray([]*values.Value{values.NewInt(1)}))
	require.NoError(t, err)
	require.Len(t, sl, 1)

	assert.True(t, machine.ToBool(values.NewInt(0)))
	assert.False(t, machine.ToBool(values.Nil()))

	_, err = machine.ToInt64(values.NewString("no"))
	assert.Error(t, err)
	_, err = machine.ToSlice(values.NewInt(1))
	assert.Error(t, err)
}

func TestClassValueIdentityShared(t *testing.T) {
	machine := NewEmpty(Config{})
	c := machine.DefineClass("Shared", nil, nil)
	v1 := machine.ClassValue(c)
	v2 := machine.ClassValue(c)
	assert.Same(t, v1, v2)
}

// encodeStream packs decoded-style instructions back into bytes the way
// the compiler would emit them.
func encodeStream(ins ...opcodes.Instruction) []byte {
	var out bytes.Buffer
	for _, in := range ins {
		out.WriteByte(byte(in.Opcode))
		switch opcodes.ShapeOf(in.Opcode) {
		case opcodes.B:
			out.WriteByte(byte(in.A))
		case opcodes.BB:
			out.WriteByte(byte(in.A))
			out.WriteByte(byte(in.B))
		case opcodes.BBB:
			out.WriteByte(byte(in.A))
			out.WriteByte(byte(in.B))
			out.WriteByte(byte(in.C))
		case opcodes.S:
			binary.Write(&out, binary.BigEndian, uint16(in.A))
		case opcodes.BS:
			out.WriteByte(byte(in.A))
			binary.Write(&out, binary.BigEndian, uint16(in.B))
		case opcodes.BSS:
			out.WriteByte(byte(in.A))
			binary.Write(&out, binary.BigEndian, uint16(in.B))
			binary.Write(&out, binary.BigEndian, uint16(in.C))
		case opcodes.W:
			out.WriteByte(byte(in.A >> 16))
			out.WriteByte(byte(in.A >> 8))
			out.WriteByte(byte(in.A))
		}
	}
	return out.Bytes()
}

func fileFromIreps(ireps ...rite.Irep) *rite.File {
	return &rite.File{
		Header: rite.BinaryHeader{Major: "03", Minor: "00"},
		Ireps:  ireps,
	}
}

func TestEvalLoadedPreservesConstants(t *testing.T) {
	// First chunk: FOO = 31
	first := fileFromIreps(rite.Irep{
		NRegs: 4,
		Insns: encodeStream(
			op(opcodes.LOADI, 1, 31),
			op(opcodes.SETCONST, 1, 0),
			op(opcodes.RETURN, 1),
			op(opcodes.STOP),
		),
		Syms: []string{"FOO"},
	})
	// Second chunk: FOO + 9
	second := fileFromIreps(rite.Irep{
		NRegs: 4,
		Insns: encodeStream(
			op(opcodes.GETCONST, 1, 0),
			op(opcodes.ADDI, 1, 9),
			op(opcodes.RETURN, 1),
			op(opcodes.STOP),
		),
		Syms: []string{"FOO"},
	})

	machine, err := New(first, Config{})
	require.NoError(t, err)
	res, err := machine.Run()
	require.NoError(t, err)
	assert.Equal(t, int64(31), mustInt(t, res))

	res, err = machine.EvalLoaded(second)
	require.NoError(t, err)
	assert.Equal(t, int64(40), mustInt(t, res))
}

func TestBuildIrepTree(t *testing.T) {
	file := fileFromIreps(
		rite.Irep{NRegs: 4, NChildren: 2, Insns: encodeStream(op(opcodes.STOP))},
		rite.Irep{NRegs: 2, Insns: encodeStream(op(opcodes.STOP))},
		rite.Irep{NRegs: 2, NChildren: 1, Insns: encodeStream(op(opcodes.STOP))},
		rite.Irep{NRegs: 2, Insns: encodeStream(op(opcodes.STOP))},
	)
	machine := NewEmpty(Config{})
	root, err := machine.BuildIrep(file)
	require.NoError(t, err)
	require.Len(t, root.Children, 2)
	assert.Len(t, root.Children[0].Children, 0)
	require.Len(t, root.Children[1].Children, 1)

	// Distinct ids across the tree.
	seen := map[int]bool{root.ID: true}
	for _, c := range root.Children {
		assert.False(t, seen[c.ID])
		seen[c.ID] = true
	}
}

func TestBuildIrepRejectsBadChildCounts(t *testing.T) {
	machine := NewEmpty(Config{})
	_, err := machine.BuildIrep(fileFromIreps(
		rite.Irep{NRegs: 2, NChildren: 3, Insns: encodeStream(op(opcodes.STOP))},
	))
	require.Error(t, err)
}

func TestFuncallOnNilReceiverUsesTopSelf(t *testing.T) {
	machine := NewEmpty(Config{})
	res, err := machine.Funcall(nil, "class")
	require.NoError(t, err)
	cls := res.Data.(*registry.Class)
	assert.Equal(t, "Object", cls.Name)
}

func TestInspectDispatch(t *testing.T) {
	machine := NewEmpty(Config{})
	assert.Equal(t, "nil", machine.Inspect(values.Nil()))
	assert.Equal(t, ":a", machine.Inspect(values.NewSymbol("a")))
	assert.Equal(t, `"s"`, machine.Inspect(values.NewString("s")))
}
