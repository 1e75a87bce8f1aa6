// Package rite parses the RITE binary format (version 03) produced by the
// mruby-family bytecode compilers.
//
// Binary Format Layout:
//
//	[Binary Header]  20 bytes
//	  Magic (4): "RITE"
//	  Major version (2): "03"
//	  Minor version (2)
//	  Size (4, big-endian): total binary size
//	  Compiler name (4), compiler version (4)
//
//	[Sections]  repeated until the END section
//	  Each section starts with a 4-byte identifier and a 4-byte big-endian
//	  self-declared size. Known identifiers: "IREP" (code tree), "LVAR"
//	  (local variable names), "DBG\0" (debug info, skipped), "END\0".
//	  Unknown sections are skipped by honoring their size field.
//
// The IREP section body is a depth-first serialization of the IREP tree:
// per record a fixed header (record size, nlocals, nregs, child count,
// catch-handler count, instruction byte length), the packed instruction
// stream, the catch-handler table, the constant pool, and the symbol table.
// Multi-byte integers in section metadata and length prefixes are
// big-endian, as are 32-bit pool integers; 64-bit pool integers and pool
// floats are little-endian.
package rite

import (
	"encoding/binary"
	"math"
)

// Section identifiers.
const (
	Magic       = "RITE"
	sectionIREP = "IREP"
	sectionLVAR = "LVAR"
	sectionDBG  = "DBG\x00"
	sectionEND  = "END\x00"
)

const (
	binaryHeaderSize = 20
	sectionHeaderSize = 8
	irepSectionHeaderSize = 12
	irepRecordSize  = 16
	catchHandlerSize = 13
)

// Pool entry type tags as emitted by the compiler.
const (
	PoolStr    byte = 0 // mutable string, length-prefixed, NUL-terminated
	PoolInt32  byte = 1
	PoolSStr   byte = 2 // static string, same layout as PoolStr
	PoolInt64  byte = 3
	PoolFloat  byte = 5
	PoolBigInt byte = 7 // stored opaque
)

// PoolValue is one constant-pool entry of an IREP record.
type PoolValue struct {
	Tag   byte
	Str   string
	Int   int64
	Float float64
	Data  []byte // BigInt payload, opaque
}

// CatchHandler protects a byte range of the instruction stream. Kind 0 is a
// rescue handler, kind 1 an ensure handler. Start/End/Target are byte
// offsets; the decoder translates Target into an instruction index.
type CatchHandler struct {
	Kind   byte
	Start  uint32
	End    uint32
	Target uint32
}

// Handler kinds.
const (
	CatchRescue byte = 0
	CatchEnsure byte = 1
)

// BinaryHeader is the fixed-size RITE file header.
type BinaryHeader struct {
	Major           string
	Minor           string
	Size            uint32
	CompilerName    string
	CompilerVersion string
}

// Irep is one raw code record: a method body, block body, or the top-level
// script. Children follow their parent depth-first; NChildren tells the
// tree builder how many of the subsequent records belong under this one.
type Irep struct {
	NLocals   int
	NRegs     int
	NChildren int
	Insns     []byte
	Pool      []PoolValue
	Syms      []string
	CatchHandlers []CatchHandler
}

// LVar holds the raw LVAR section payload. Variable names are resolved
// against the IREP symbol table by the VM when diagnostics want them.
type LVar struct {
	Body []byte
}

// File is a fully parsed RITE binary.
type File struct {
	Header BinaryHeader
	Ireps  []Irep
	LVar   *LVar
}

type reader struct {
	src []byte
	pos int
}

func (r *reader) remaining() int { return len(r.src) - r.pos }

func (r *reader) bytes(n int, what string) ([]byte, error) {
	if n < 0 || r.remaining() < n {
		return nil, errTooShort(what)
	}
	b := r.src[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *reader) u8(what string) (byte, error) {
	b, err := r.bytes(1, what)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *reader) u16be(what string) (uint16, error) {
	b, err := r.bytes(2, what)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *reader) u32be(what string) (uint32, error) {
	b, err := r.bytes(4, what)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

// cstring reads a big-endian length prefix followed by that many bytes and
// a NUL terminator. The terminator is consumed but not returned.
func (r *reader) cstring(what string) (string, error) {
	n, err := r.u16be(what)
	if err != nil {
		return "", err
	}
	b, err := r.bytes(int(n)+1, what)
	if err != nil {
		return "", err
	}
	if b[n] != 0 {
		return "", errInvalidFormat(what + ": missing NUL terminator")
	}
	return string(b[:n]), nil
}

// Load parses a RITE binary. The returned File shares no memory with src
// except the raw instruction streams, which the decoder consumes read-only.
func Load(src []byte) (*File, error) {
	r := &reader{src: src}

	hdr, err := r.bytes(binaryHeaderSize, "binary header")
	if err != nil {
		return nil, err
	}
	if string(hdr[0:4]) != Magic {
		return nil, errInvalidFormat("bad magic")
	}
	file := &File{
		Header: BinaryHeader{
			Major:           string(hdr[4:6]),
			Minor:           string(hdr[6:8]),
			Size:            binary.BigEndian.Uint32(hdr[8:12]),
			CompilerName:    string(hdr[12:16]),
			CompilerVersion: string(hdr[16:20]),
		},
	}
	if int(file.Header.Size) > len(src) {
		return nil, errTooShort("binary header size exceeds input")
	}

	for r.remaining() >= sectionHeaderSize {
		ident := string(r.src[r.pos : r.pos+4])
		size := binary.BigEndian.Uint32(r.src[r.pos+4 : r.pos+8])
		if int(size) < sectionHeaderSize || r.remaining() < int(size) {
			return nil, errTooShort("section " + ident)
		}
		body := r.src[r.pos+sectionHeaderSize : r.pos+int(size)]
		switch ident {
		case sectionIREP:
			ireps, err := parseIrepSection(r.src[r.pos : r.pos+int(size)])
			if err != nil {
				return nil, err
			}
			file.Ireps = ireps
		case sectionLVAR:
			file.LVar = &LVar{Body: append([]byte(nil), body...)}
		case sectionEND:
			r.pos += int(size)
			return file, nil
		default:
			// DBG and anything unknown: honor the declared length and move on.
		}
		r.pos += int(size)
	}

	if len(file.Ireps) == 0 {
		return nil, errInvalidFormat("no IREP section before end of input")
	}
	return file, nil
}

// parseIrepSection decodes the IREP section, including its extra 4-byte
// RITE version field after the common section header.
func parseIrepSection(sec []byte) ([]Irep, error) {
	if len(sec) < irepSectionHeaderSize {
		return nil, errTooShort("IREP section header")
	}
	r := &reader{src: sec, pos: irepSectionHeaderSize}

	var ireps []Irep
	for r.remaining() > 0 {
		irep, err := parseIrepRecord(r)
		if err != nil {
			return nil, err
		}
		ireps = append(ireps, irep)
	}
	if len(ireps) == 0 {
		return nil, errInvalidFormat("empty IREP section")
	}
	return ireps, nil
}

func parseIrepRecord(r *reader) (Irep, error) {
	start := r.pos
	hdr, err := r.bytes(irepRecordSize, "IREP record header")
	if err != nil {
		return Irep{}, err
	}
	recordSize := binary.BigEndian.Uint32(hdr[0:4])
	irep := Irep{
		NLocals:   int(binary.BigEndian.Uint16(hdr[4:6])),
		NRegs:     int(binary.BigEndian.Uint16(hdr[6:8])),
		NChildren: int(binary.BigEndian.Uint16(hdr[8:10])),
	}
	clen := int(binary.BigEndian.Uint16(hdr[10:12]))
	ilen := int(binary.BigEndian.Uint32(hdr[12:16]))
	if recordSize < irepRecordSize || start+int(recordSize) > len(r.src) {
		return Irep{}, errInvalidFormat("IREP record size inconsistent")
	}

	insns, err := r.bytes(ilen, "instruction stream")
	if err != nil {
		return Irep{}, err
	}
	irep.Insns = insns

	for i := 0; i < clen; i++ {
		b, err := r.bytes(catchHandlerSize, "catch handler")
		if err != nil {
			return Irep{}, err
		}
		irep.CatchHandlers = append(irep.CatchHandlers, CatchHandler{
			Kind:   b[0],
			Start:  binary.BigEndian.Uint32(b[1:5]),
			End:    binary.BigEndian.Uint32(b[5:9]),
			Target: binary.BigEndian.Uint32(b[9:13]),
		})
	}

	plen, err := r.u16be("pool length")
	if err != nil {
		return Irep{}, err
	}
	for i := 0; i < int(plen); i++ {
		v, err := parsePoolValue(r)
		if err != nil {
			return Irep{}, err
		}
		irep.Pool = append(irep.Pool, v)
	}

	slen, err := r.u16be("symbol table length")
	if err != nil {
		return Irep{}, err
	}
	for i := 0; i < int(slen); i++ {
		s, err := r.cstring("symbol")
		if err != nil {
			return Irep{}, err
		}
		irep.Syms = append(irep.Syms, s)
	}

	// The record header's size field is authoritative; padding or debug
	// payload between the symbol table and the next record is skipped.
	if r.pos > start+int(recordSize) {
		return Irep{}, errInvalidFormat("IREP record overran its declared size")
	}
	r.pos = start + int(recordSize)
	return irep, nil
}

func parsePoolValue(r *reader) (PoolValue, error) {
	tag, err := r.u8("pool entry tag")
	if err != nil {
		return PoolValue{}, err
	}
	switch tag {
	case PoolStr, PoolSStr:
		s, err := r.cstring("pool string")
		if err != nil {
			return PoolValue{}, err
		}
		return PoolValue{Tag: tag, Str: s}, nil
	case PoolInt32:
		b, err := r.bytes(4, "pool int32")
		if err != nil {
			return PoolValue{}, err
		}
		return PoolValue{Tag: tag, Int: int64(int32(binary.BigEndian.Uint32(b)))}, nil
	case PoolInt64:
		b, err := r.bytes(8, "pool int64")
		if err != nil {
			return PoolValue{}, err
		}
		return PoolValue{Tag: tag, Int: int64(binary.LittleEndian.Uint64(b))}, nil
	case PoolFloat:
		b, err := r.bytes(8, "pool float")
		if err != nil {
			return PoolValue{}, err
		}
		return PoolValue{Tag: tag, Float: math.Float64frombits(binary.LittleEndian.Uint64(b))}, nil
	case PoolBigInt:
		n, err := r.u16be("pool bigint length")
		if err != nil {
			return PoolValue{}, err
		}
		b, err := r.bytes(int(n), "pool bigint")
		if err != nil {
			return PoolValue{}, err
		}
		return PoolValue{Tag: tag, Data: append([]byte(nil), b...)}, nil
	default:
		return PoolValue{}, errUnknownPoolType(tag)
	}
}
