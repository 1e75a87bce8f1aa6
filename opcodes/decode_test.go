package opcodes

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gomrb/gomrb/rite"
)

func TestDecodeShapes(t *testing.T) {
	stream := []byte{
		byte(NOP),
		byte(MOVE), 1, 2,
		byte(LOADI_3), 4,
		byte(LOADI16), 1, 0x01, 0x02, // BS: 16-bit big-endian
		byte(LOADI32), 1, 0x00, 0x01, 0x00, 0x02, // BSS
		byte(JMP), 0xff, 0xfe, // S, signed -2 once interpreted
		byte(SEND), 1, 0, 2, // BBB
		byte(ENTER), 0x04, 0x40, 0x01, // W
		byte(STOP),
	}
	code, err := Decode(stream)
	require.NoError(t, err)
	require.Len(t, code, 9)

	assert.Equal(t, NOP, code[0].Opcode)
	assert.Equal(t, 0, code[0].Pos)
	assert.Equal(t, 1, code[0].Len)

	assert.Equal(t, MOVE, code[1].Opcode)
	assert.Equal(t, 1, code[1].A)
	assert.Equal(t, 2, code[1].B)

	assert.Equal(t, 4, code[2].A)

	assert.Equal(t, 0x0102, code[3].B)
	assert.Equal(t, 0x0001, code[4].B)
	assert.Equal(t, 0x0002, code[4].C)

	assert.Equal(t, 0xfffe, code[5].A)
	assert.Equal(t, int16(-2), int16(uint16(code[5].A)))

	assert.Equal(t, SEND, code[6].Opcode)
	assert.Equal(t, 2, code[6].C)

	assert.Equal(t, W, code[7].Shape)
	assert.Equal(t, 0x044001, code[7].A)

	// Positions accumulate by instruction length.
	assert.Equal(t, 1, code[1].Pos)
	assert.Equal(t, 4, code[2].Pos)
	assert.Equal(t, stream[len(stream)-1], byte(code[8].Opcode))
}

func TestDecodeErrors(t *testing.T) {
	t.Run("invalid opcode", func(t *testing.T) {
		_, err := Decode([]byte{0xf0})
		var rerr *rite.Error
		require.True(t, errors.As(err, &rerr))
		assert.Equal(t, rite.ErrInvalidOpCode, rerr.Kind)
	})

	t.Run("truncated operands", func(t *testing.T) {
		_, err := Decode([]byte{byte(MOVE), 1})
		var rerr *rite.Error
		require.True(t, errors.As(err, &rerr))
		assert.Equal(t, rite.ErrInvalidOperand, rerr.Kind)
	})
}

func TestCatchTargets(t *testing.T) {
	code, err := Decode([]byte{
		byte(NOP),           // pos 0
		byte(MOVE), 1, 2,    // pos 1
		byte(LOADNIL), 3,    // pos 4
		byte(STOP),          // pos 6
	})
	require.NoError(t, err)

	targets, err := CatchTargets(code, []rite.CatchHandler{
		{Kind: rite.CatchEnsure, Start: 0, End: 4, Target: 6},
		{Kind: rite.CatchRescue, Start: 1, End: 6, Target: 4},
	})
	require.NoError(t, err)
	require.Len(t, targets, 2)

	// Sorted by target instruction index.
	assert.Equal(t, rite.CatchRescue, targets[0].Kind)
	assert.Equal(t, 2, targets[0].Target)
	assert.Equal(t, 1, targets[0].Start)
	assert.Equal(t, 3, targets[0].End)

	assert.Equal(t, rite.CatchEnsure, targets[1].Kind)
	assert.Equal(t, 3, targets[1].Target)
}

func TestCatchTargetsRejectsMisalignedOffset(t *testing.T) {
	code, err := Decode([]byte{byte(MOVE), 1, 2, byte(STOP)})
	require.NoError(t, err)
	_, err = CatchTargets(code, []rite.CatchHandler{{Start: 0, End: 2, Target: 2}})
	var rerr *rite.Error
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, rite.ErrInvalidFormat, rerr.Kind)
}

func TestASpecRoundTrip(t *testing.T) {
	spec := ASpec{Req: 1, Opt: 2, Rest: true, Post: 0, Key: 3, KDict: true, Block: true}
	decoded := DecodeASpec(EncodeASpec(spec))
	assert.Equal(t, spec, decoded)

	// The boundary scenario from the argument protocol: one required,
	// two optional, a rest parameter, no keywords.
	a := EncodeASpec(ASpec{Req: 1, Opt: 2, Rest: true})
	d := DecodeASpec(a)
	assert.Equal(t, 1, d.Req)
	assert.Equal(t, 2, d.Opt)
	assert.True(t, d.Rest)
	assert.Equal(t, 0, d.Key)
	assert.False(t, d.Block)
}

func TestLegacyOpcodesDecode(t *testing.T) {
	code, err := Decode([]byte{byte(EPUSH), 1, byte(EPOP), 0, byte(STOP)})
	require.NoError(t, err)
	require.Len(t, code, 3)
	assert.Equal(t, EPUSH, code[0].Opcode)
	assert.Equal(t, EPOP, code[1].Opcode)
}
