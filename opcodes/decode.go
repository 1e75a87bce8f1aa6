package opcodes

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/gomrb/gomrb/rite"
)

// Instruction is one decoded operation: the opcode, pre-extracted operands
// per its shape, and the byte position and length within the original
// packed stream (used to translate catch-handler byte offsets).
type Instruction struct {
	Opcode OpCode
	Shape  Shape
	A      int
	B      int
	C      int
	Pos    int
	Len    int
}

func (in Instruction) String() string {
	switch in.Shape {
	case Z:
		return in.Opcode.String()
	case B, S, W:
		return fmt.Sprintf("%s %d", in.Opcode, in.A)
	case BB, BS:
		return fmt.Sprintf("%s %d %d", in.Opcode, in.A, in.B)
	default:
		return fmt.Sprintf("%s %d %d %d", in.Opcode, in.A, in.B, in.C)
	}
}

// Decode translates one IREP's packed instruction stream into a vector of
// operations with pre-extracted operands.
func Decode(insns []byte) ([]Instruction, error) {
	var out []Instruction
	pos := 0
	for pos < len(insns) {
		op := OpCode(insns[pos])
		if !op.Valid() {
			return nil, &rite.Error{Kind: rite.ErrInvalidOpCode, Message: fmt.Sprintf("opcode byte 0x%02x at offset %d", insns[pos], pos)}
		}
		shape := shapeTable[op]
		n := shape.Len()
		if pos+1+n > len(insns) {
			return nil, &rite.Error{Kind: rite.ErrInvalidOperand, Message: fmt.Sprintf("truncated operands for %s at offset %d", op, pos)}
		}
		in := Instruction{Opcode: op, Shape: shape, Pos: pos, Len: 1 + n}
		o := insns[pos+1 : pos+1+n]
		switch shape {
		case Z:
		case B:
			in.A = int(o[0])
		case BB:
			in.A, in.B = int(o[0]), int(o[1])
		case BBB:
			in.A, in.B, in.C = int(o[0]), int(o[1]), int(o[2])
		case BS:
			in.A = int(o[0])
			in.B = int(binary.BigEndian.Uint16(o[1:3]))
		case BSS:
			in.A = int(o[0])
			in.B = int(binary.BigEndian.Uint16(o[1:3]))
			in.C = int(binary.BigEndian.Uint16(o[3:5]))
		case S:
			in.A = int(binary.BigEndian.Uint16(o[0:2]))
		case W:
			in.A = int(o[0])<<16 | int(o[1])<<8 | int(o[2])
		}
		out = append(out, in)
		pos += 1 + n
	}
	return out, nil
}

// CatchTarget is a catch-handler entry with byte offsets translated to
// instruction indices in the decoded vector.
type CatchTarget struct {
	Kind   byte
	Start  int // first protected instruction index
	End    int // one past the last protected instruction index
	Target int // handler entry instruction index
}

// CatchTargets maps the raw handler table onto the decoded instruction
// vector, sorted by target index so the unwinder can binary-search for the
// next handler at or after the current instruction.
func CatchTargets(code []Instruction, handlers []rite.CatchHandler) ([]CatchTarget, error) {
	if len(handlers) == 0 {
		return nil, nil
	}
	index := make(map[int]int, len(code))
	for i, in := range code {
		index[in.Pos] = i
	}
	byteToIndex := func(pos int) (int, error) {
		if i, ok := index[pos]; ok {
			return i, nil
		}
		// A protected range may end exactly at the end of the stream.
		if len(code) > 0 {
			last := code[len(code)-1]
			if pos == last.Pos+last.Len {
				return len(code), nil
			}
		}
		return 0, &rite.Error{Kind: rite.ErrInvalidFormat, Message: fmt.Sprintf("catch handler offset %d is not an instruction boundary", pos)}
	}

	var out []CatchTarget
	for _, h := range handlers {
		start, err := byteToIndex(int(h.Start))
		if err != nil {
			return nil, err
		}
		end, err := byteToIndex(int(h.End))
		if err != nil {
			return nil, err
		}
		target, err := byteToIndex(int(h.Target))
		if err != nil {
			return nil, err
		}
		out = append(out, CatchTarget{Kind: h.Kind, Start: start, End: end, Target: target})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Target < out[j].Target })
	return out, nil
}

// ASpec is the decoded argument specification carried by an ENTER
// instruction's wide operand.
type ASpec struct {
	Req   int
	Opt   int
	Rest  bool
	Post  int
	Key   int
	KDict bool
	Block bool
}

// DecodeASpec unpacks ENTER's 24-bit operand.
// Layout, high to low: req:5 opt:5 rest:1 post:5 key:5 kdict:1 block:1.
func DecodeASpec(a int) ASpec {
	return ASpec{
		Req:   (a >> 18) & 0x1f,
		Opt:   (a >> 13) & 0x1f,
		Rest:  (a>>12)&1 != 0,
		Post:  (a >> 7) & 0x1f,
		Key:   (a >> 2) & 0x1f,
		KDict: (a>>1)&1 != 0,
		Block: a&1 != 0,
	}
}

// EncodeASpec packs an argument specification back into ENTER's operand
// form. Used by tests and tooling that synthesize instruction streams.
func EncodeASpec(s ASpec) int {
	a := (s.Req&0x1f)<<18 | (s.Opt&0x1f)<<13 | (s.Post&0x1f)<<7 | (s.Key&0x1f)<<2
	if s.Rest {
		a |= 1 << 12
	}
	if s.KDict {
		a |= 1 << 1
	}
	if s.Block {
		a |= 1
	}
	return a
}
