package rite

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// binWriter assembles RITE binaries for the loader tests.
type binWriter struct {
	bytes.Buffer
}

func (w *binWriter) u16(v uint16) { binary.Write(w, binary.BigEndian, v) }
func (w *binWriter) u32(v uint32) { binary.Write(w, binary.BigEndian, v) }

func (w *binWriter) cstr(s string) {
	w.u16(uint16(len(s)))
	w.WriteString(s)
	w.WriteByte(0)
}

type testIrep struct {
	nlocals, nregs, nchildren int
	insns                     []byte
	catchHandlers             []CatchHandler
	pool                      func(w *binWriter) int
	syms                      []string
}

func writeIrepRecord(w *binWriter, ir testIrep) {
	var body binWriter
	body.Write(ir.insns)
	for _, h := range ir.catchHandlers {
		body.WriteByte(h.Kind)
		body.u32(h.Start)
		body.u32(h.End)
		body.u32(h.Target)
	}
	plen := 0
	var poolBuf binWriter
	if ir.pool != nil {
		plen = ir.pool(&poolBuf)
	}
	body.u16(uint16(plen))
	body.Write(poolBuf.Bytes())
	body.u16(uint16(len(ir.syms)))
	for _, s := range ir.syms {
		body.cstr(s)
	}

	w.u32(uint32(16 + body.Len()))
	w.u16(uint16(ir.nlocals))
	w.u16(uint16(ir.nregs))
	w.u16(uint16(ir.nchildren))
	w.u16(uint16(len(ir.catchHandlers)))
	w.u32(uint32(len(ir.insns)))
	w.Write(body.Bytes())
}

func buildBinary(t *testing.T, ireps ...testIrep) []byte {
	t.Helper()
	var sec binWriter
	for _, ir := range ireps {
		writeIrepRecord(&sec, ir)
	}

	var out binWriter
	out.WriteString("RITE")
	out.WriteString("0300")
	sizeAt := out.Len()
	out.u32(0) // patched below
	out.WriteString("MATZ")
	out.WriteString("0000")

	out.WriteString("IREP")
	out.u32(uint32(8 + 4 + sec.Len()))
	out.u32(0x30303030) // rite version field
	out.Write(sec.Bytes())

	out.WriteString("END\x00")
	out.u32(8)

	bin := out.Bytes()
	binary.BigEndian.PutUint32(bin[sizeAt:], uint32(len(bin)))
	return bin
}

func TestLoadMinimal(t *testing.T) {
	// STOP only.
	bin := buildBinary(t, testIrep{nlocals: 1, nregs: 2, insns: []byte{105}})
	file, err := Load(bin)
	require.NoError(t, err)

	assert.Equal(t, "03", file.Header.Major)
	require.Len(t, file.Ireps, 1)
	assert.Equal(t, 1, file.Ireps[0].NLocals)
	assert.Equal(t, 2, file.Ireps[0].NRegs)
	assert.Equal(t, []byte{105}, file.Ireps[0].Insns)
	assert.Nil(t, file.LVar)
}

func TestLoadPoolAndSyms(t *testing.T) {
	bin := buildBinary(t, testIrep{
		nregs: 4,
		insns: []byte{105},
		pool: func(w *binWriter) int {
			// string
			w.WriteByte(PoolStr)
			w.cstr("hello")
			// static string
			w.WriteByte(PoolSStr)
			w.cstr("world")
			// int32, big-endian
			w.WriteByte(PoolInt32)
			binary.Write(w, binary.BigEndian, int32(-7))
			// int64, little-endian
			w.WriteByte(PoolInt64)
			binary.Write(w, binary.LittleEndian, int64(1<<40))
			// float, little-endian
			w.WriteByte(PoolFloat)
			binary.Write(w, binary.LittleEndian, math.Float64bits(3.25))
			// bigint blob
			w.WriteByte(PoolBigInt)
			w.u16(3)
			w.Write([]byte{1, 2, 3})
			return 6
		},
		syms: []string{"puts", "each"},
	})

	file, err := Load(bin)
	require.NoError(t, err)
	ir := file.Ireps[0]
	require.Len(t, ir.Pool, 6)
	assert.Equal(t, "hello", ir.Pool[0].Str)
	assert.Equal(t, "world", ir.Pool[1].Str)
	assert.Equal(t, int64(-7), ir.Pool[2].Int)
	assert.Equal(t, int64(1<<40), ir.Pool[3].Int)
	assert.Equal(t, 3.25, ir.Pool[4].Float)
	assert.Equal(t, []byte{1, 2, 3}, ir.Pool[5].Data)
	assert.Equal(t, []string{"puts", "each"}, ir.Syms)
}

func TestLoadCatchHandlers(t *testing.T) {
	bin := buildBinary(t, testIrep{
		nregs: 4,
		insns: []byte{0, 0, 105}, // NOP NOP STOP
		catchHandlers: []CatchHandler{
			{Kind: CatchRescue, Start: 0, End: 2, Target: 2},
		},
	})
	file, err := Load(bin)
	require.NoError(t, err)
	require.Len(t, file.Ireps[0].CatchHandlers, 1)
	h := file.Ireps[0].CatchHandlers[0]
	assert.Equal(t, CatchRescue, h.Kind)
	assert.Equal(t, uint32(2), h.Target)
}

func TestLoadChildRecords(t *testing.T) {
	bin := buildBinary(t,
		testIrep{nregs: 4, nchildren: 1, insns: []byte{105}},
		testIrep{nregs: 2, insns: []byte{105}},
	)
	file, err := Load(bin)
	require.NoError(t, err)
	require.Len(t, file.Ireps, 2)
	assert.Equal(t, 1, file.Ireps[0].NChildren)
}

func TestLoadSkipsUnknownSections(t *testing.T) {
	bin := buildBinary(t, testIrep{nregs: 2, insns: []byte{105}})
	// Splice an unknown section before END.
	endAt := len(bin) - 8
	var unk binWriter
	unk.WriteString("XYZW")
	unk.u32(12)
	unk.Write([]byte{1, 2, 3, 4})
	spliced := append(append(append([]byte(nil), bin[:endAt]...), unk.Bytes()...), bin[endAt:]...)
	binary.BigEndian.PutUint32(spliced[8:], uint32(len(spliced)))

	file, err := Load(spliced)
	require.NoError(t, err)
	require.Len(t, file.Ireps, 1)
}

func TestLoadErrors(t *testing.T) {
	t.Run("too short", func(t *testing.T) {
		_, err := Load([]byte("RITE03"))
		var rerr *Error
		require.True(t, errors.As(err, &rerr))
		assert.Equal(t, ErrTooShort, rerr.Kind)
	})

	t.Run("bad magic", func(t *testing.T) {
		bin := buildBinary(t, testIrep{nregs: 2, insns: []byte{105}})
		copy(bin, "JUNK")
		_, err := Load(bin)
		var rerr *Error
		require.True(t, errors.As(err, &rerr))
		assert.Equal(t, ErrInvalidFormat, rerr.Kind)
	})

	t.Run("declared size exceeds input", func(t *testing.T) {
		bin := buildBinary(t, testIrep{nregs: 2, insns: []byte{105}})
		binary.BigEndian.PutUint32(bin[8:], uint32(len(bin)+100))
		_, err := Load(bin)
		var rerr *Error
		require.True(t, errors.As(err, &rerr))
		assert.Equal(t, ErrTooShort, rerr.Kind)
	})

	t.Run("unknown pool tag", func(t *testing.T) {
		bin := buildBinary(t, testIrep{
			nregs: 2,
			insns: []byte{105},
			pool: func(w *binWriter) int {
				w.WriteByte(9)
				return 1
			},
		})
		_, err := Load(bin)
		var rerr *Error
		require.True(t, errors.As(err, &rerr))
		assert.Equal(t, ErrUnknownPoolType, rerr.Kind)
		assert.Equal(t, byte(9), rerr.PoolTag)
	})

	t.Run("missing NUL terminator", func(t *testing.T) {
		bin := buildBinary(t, testIrep{
			nregs: 2,
			insns: []byte{105},
			pool: func(w *binWriter) int {
				w.WriteByte(PoolStr)
				w.u16(2)
				w.Write([]byte{'h', 'i', 'x'}) // x where NUL belongs
				return 1
			},
		})
		_, err := Load(bin)
		var rerr *Error
		require.True(t, errors.As(err, &rerr))
		assert.Equal(t, ErrInvalidFormat, rerr.Kind)
	})
}
