// Package values implements the runtime value model: a tagged sum over
// every datum the interpreter manipulates, plus the canonical projections
// used for hash keys and value equality.
package values

import (
	"fmt"
	"math"
	"strconv"
	"sync/atomic"
)

// ValueType tags the variant held by a Value.
type ValueType byte

const (
	TypeNil ValueType = iota
	TypeBool
	TypeInt
	TypeFloat
	TypeSymbol
	TypeString
	TypeArray
	TypeHash
	TypeRange
	TypeProc
	TypeClass
	TypeModule
	TypeInstance
	TypeException
	TypeData
	TypeSharedMemory
)

var typeNames = [...]string{
	TypeNil:          "nil",
	TypeBool:         "bool",
	TypeInt:          "Integer",
	TypeFloat:        "Float",
	TypeSymbol:       "Symbol",
	TypeString:       "String",
	TypeArray:        "Array",
	TypeHash:         "Hash",
	TypeRange:        "Range",
	TypeProc:         "Proc",
	TypeClass:        "Class",
	TypeModule:       "Module",
	TypeInstance:     "Instance",
	TypeException:    "Exception",
	TypeData:         "Data",
	TypeSharedMemory: "SharedMemory",
}

func (t ValueType) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "unknown"
}

// Value is a runtime value. Data holds the variant payload:
//
//	TypeNil          nil
//	TypeBool         bool
//	TypeInt          int64
//	TypeFloat        float64
//	TypeSymbol       string (interned name)
//	TypeString       *StringBuf
//	TypeArray        *Array
//	TypeHash         *Hash
//	TypeRange        *Range
//	TypeProc         the class system's proc record
//	TypeClass        the class system's class record
//	TypeModule       the class system's module record
//	TypeInstance     *Instance
//	TypeException    *Exception
//	TypeData         host-owned payload
//	TypeSharedMemory *SharedMemory
//
// Class system records stay opaque here to keep this package at the bottom
// of the import graph; they satisfy the Named interface so full names are
// still reachable for hash keys and diagnostics.
type Value struct {
	Type ValueType
	Data interface{}

	objectID  uint64
	Singleton interface{} // lazily created singleton class record
	ivars     map[string]*Value
}

// Named is implemented by class and module records so this package can
// compute hash keys and debug strings without importing the class system.
type Named interface {
	FullName() string
}

// StringBuf is a mutable byte buffer shared by every reference to one
// Ruby string.
type StringBuf struct {
	Bytes []byte
}

// Array is a mutable ordered sequence with shared interior mutability.
type Array struct {
	Elems []*Value
}

// HashEntry retains both the original key object and the value so
// iteration observes the keys the program inserted.
type HashEntry struct {
	Key   *Value
	Value *Value
}

// Hash is a mutable insertion-ordered mapping. The index is keyed by the
// canonical hash-key projection of each key object.
type Hash struct {
	Entries []HashEntry
	index   map[HashKey]int
}

// Range holds two endpoint values and an exclusivity bit.
type Range struct {
	Start     *Value
	End       *Value
	Exclusive bool
}

// Instance carries per-object state for instances of user classes. Class
// is the class system's class record (opaque here).
type Instance struct {
	Class interface{}
}

// Exception is a raised error: its Ruby class, the VM-level error kind
// payload (opaque here), a message, and a captured trace.
type Exception struct {
	Class   interface{}
	Kind    interface{}
	Message string
	Trace   []string
}

// SharedMemory is a bounded mutable byte buffer exposed to the host; Ptr
// carries the host-provided address when one exists.
type SharedMemory struct {
	Bytes []byte
	Ptr   uintptr
}

// DataPayload wraps an opaque host-owned payload bound to a host-defined class.
type DataPayload struct {
	Class interface{}
	Value interface{}
}

// heapIDCounter hands out stable object ids for heap values. The original
// derived these from heap addresses; a counter gives the same guarantee
// (fresh, stable for the value's lifetime) without pinning.
var heapIDCounter uint64

func nextHeapID() uint64 {
	return atomic.AddUint64(&heapIDCounter, 2) + 1024
}

// Fixed ids for immediates, mirroring MRI's conventions: false=0, nil=8,
// true=20, integers 2n+1.
const (
	nilObjectID   = 8
	falseObjectID = 0
	trueObjectID  = 20
)

var nilValue = &Value{Type: TypeNil, objectID: nilObjectID}
var trueValue = &Value{Type: TypeBool, Data: true, objectID: trueObjectID}
var falseValue = &Value{Type: TypeBool, Data: false, objectID: falseObjectID}

// Constructors. Immediates are shared; heap values are fresh.

func Nil() *Value { return nilValue }

func NewBool(b bool) *Value {
	if b {
		return trueValue
	}
	return falseValue
}

func NewInt(i int64) *Value {
	return &Value{Type: TypeInt, Data: i, objectID: integerObjectID(i)}
}

func integerObjectID(i int64) uint64 {
	if i >= math.MaxInt32 {
		return math.MaxUint64
	}
	if i <= math.MinInt32 {
		var minInt64 int64 = math.MinInt64
		return uint64(minInt64)
	}
	return uint64(i)*2 + 1
}

func NewFloat(f float64) *Value {
	return &Value{Type: TypeFloat, Data: f, objectID: math.Float64bits(f)}
}

func NewSymbol(name string) *Value {
	return &Value{Type: TypeSymbol, Data: name, objectID: symbolObjectID(name)}
}

// symbolObjectID derives a deterministic id from the symbol's name so the
// same symbol always reports the same object id (FNV-1a).
func symbolObjectID(name string) uint64 {
	h := uint64(14695981039346656037)
	for i := 0; i < len(name); i++ {
		h ^= uint64(name[i])
		h *= 1099511628211
	}
	return h | 1
}

func NewString(s string) *Value {
	return &Value{Type: TypeString, Data: &StringBuf{Bytes: []byte(s)}, objectID: nextHeapID()}
}

func NewStringBytes(b []byte) *Value {
	return &Value{Type: TypeString, Data: &StringBuf{Bytes: b}, objectID: nextHeapID()}
}

func NewArray(elems []*Value) *Value {
	return &Value{Type: TypeArray, Data: &Array{Elems: elems}, objectID: nextHeapID()}
}

func NewHash() *Value {
	return &Value{Type: TypeHash, Data: &Hash{index: make(map[HashKey]int)}, objectID: nextHeapID()}
}

func NewRange(start, end *Value, exclusive bool) *Value {
	return &Value{Type: TypeRange, Data: &Range{Start: start, End: end, Exclusive: exclusive}, objectID: nextHeapID()}
}

func NewProc(p interface{}) *Value {
	return &Value{Type: TypeProc, Data: p, objectID: nextHeapID()}
}

func NewClass(c interface{}) *Value {
	return &Value{Type: TypeClass, Data: c, objectID: nextHeapID()}
}

func NewModule(m interface{}) *Value {
	return &Value{Type: TypeModule, Data: m, objectID: nextHeapID()}
}

func NewInstance(class interface{}) *Value {
	return &Value{Type: TypeInstance, Data: &Instance{Class: class}, objectID: nextHeapID()}
}

func NewException(e *Exception) *Value {
	return &Value{Type: TypeException, Data: e, objectID: nextHeapID()}
}

func NewData(class, payload interface{}) *Value {
	return &Value{Type: TypeData, Data: &DataPayload{Class: class, Value: payload}, objectID: nextHeapID()}
}

func NewSharedMemory(size int) *Value {
	return &Value{Type: TypeSharedMemory, Data: &SharedMemory{Bytes: make([]byte, size)}, objectID: nextHeapID()}
}

// ObjectID is deterministic for immediates and stable for the lifetime of
// heap values.
func (v *Value) ObjectID() uint64 { return v.objectID }

// Type predicates.

func (v *Value) IsNil() bool    { return v.Type == TypeNil }
func (v *Value) IsBool() bool   { return v.Type == TypeBool }
func (v *Value) IsInt() bool    { return v.Type == TypeInt }
func (v *Value) IsFloat() bool  { return v.Type == TypeFloat }
func (v *Value) IsString() bool { return v.Type == TypeString }
func (v *Value) IsArray() bool  { return v.Type == TypeArray }
func (v *Value) IsHash() bool   { return v.Type == TypeHash }
func (v *Value) IsSymbol() bool { return v.Type == TypeSymbol }
func (v *Value) IsProc() bool   { return v.Type == TypeProc }

// IsFalsy reports Ruby truthiness: only nil and false are falsy.
func (v *Value) IsFalsy() bool {
	return v.Type == TypeNil || (v.Type == TypeBool && !v.Data.(bool))
}

func (v *Value) IsTruthy() bool { return !v.IsFalsy() }

// Payload accessors. Each returns ok=false on a type mismatch; callers in
// the interpreter turn that into a TypeMismatch runtime error.

func (v *Value) AsInt() (int64, bool) {
	if v.Type != TypeInt {
		return 0, false
	}
	return v.Data.(int64), true
}

func (v *Value) AsFloat() (float64, bool) {
	switch v.Type {
	case TypeFloat:
		return v.Data.(float64), true
	case TypeInt:
		return float64(v.Data.(int64)), true
	}
	return 0, false
}

func (v *Value) AsBool() (bool, bool) {
	if v.Type != TypeBool {
		return false, false
	}
	return v.Data.(bool), true
}

func (v *Value) AsSymbol() (string, bool) {
	if v.Type != TypeSymbol {
		return "", false
	}
	return v.Data.(string), true
}

func (v *Value) AsString() (*StringBuf, bool) {
	if v.Type != TypeString {
		return nil, false
	}
	return v.Data.(*StringBuf), true
}

func (v *Value) AsArray() (*Array, bool) {
	if v.Type != TypeArray {
		return nil, false
	}
	return v.Data.(*Array), true
}

func (v *Value) AsHash() (*Hash, bool) {
	if v.Type != TypeHash {
		return nil, false
	}
	return v.Data.(*Hash), true
}

func (v *Value) AsRange() (*Range, bool) {
	if v.Type != TypeRange {
		return nil, false
	}
	return v.Data.(*Range), true
}

func (v *Value) AsException() (*Exception, bool) {
	if v.Type != TypeException {
		return nil, false
	}
	return v.Data.(*Exception), true
}

func (v *Value) AsSharedMemory() (*SharedMemory, bool) {
	if v.Type != TypeSharedMemory {
		return nil, false
	}
	return v.Data.(*SharedMemory), true
}

// IVarGet reads an instance variable, returning nil (the Ruby value) when
// unset.
func (v *Value) IVarGet(name string) *Value {
	if v.ivars == nil {
		return Nil()
	}
	if iv, ok := v.ivars[name]; ok {
		return iv
	}
	return Nil()
}

// IVarSet writes an instance variable, allocating the table on first use.
func (v *Value) IVarSet(name string, val *Value) {
	if v.ivars == nil {
		v.ivars = make(map[string]*Value)
	}
	v.ivars[name] = val
}

// IVarNames returns the defined instance variable names, unordered.
func (v *Value) IVarNames() []string {
	names := make([]string, 0, len(v.ivars))
	for n := range v.ivars {
		names = append(names, n)
	}
	return names
}

// Hash container operations.

// Get looks up by the canonical key projection of key.
func (h *Hash) Get(key *Value) (*Value, bool) {
	hk, ok := HashKeyOf(key)
	if !ok {
		return nil, false
	}
	if i, found := h.index[hk]; found {
		return h.Entries[i].Value, true
	}
	return nil, false
}

// Set inserts or replaces, preserving insertion order for existing keys.
func (h *Hash) Set(key, val *Value) bool {
	hk, ok := HashKeyOf(key)
	if !ok {
		return false
	}
	if h.index == nil {
		h.index = make(map[HashKey]int)
	}
	if i, found := h.index[hk]; found {
		h.Entries[i] = HashEntry{Key: key, Value: val}
		return true
	}
	h.index[hk] = len(h.Entries)
	h.Entries = append(h.Entries, HashEntry{Key: key, Value: val})
	return true
}

// Delete removes the entry for key, returning its value.
func (h *Hash) Delete(key *Value) (*Value, bool) {
	hk, ok := HashKeyOf(key)
	if !ok {
		return nil, false
	}
	i, found := h.index[hk]
	if !found {
		return nil, false
	}
	val := h.Entries[i].Value
	h.Entries = append(h.Entries[:i], h.Entries[i+1:]...)
	delete(h.index, hk)
	for k, j := range h.index {
		if j > i {
			h.index[k] = j - 1
		}
	}
	return val, true
}

// Has reports whether key is present.
func (h *Hash) Has(key *Value) bool {
	hk, ok := HashKeyOf(key)
	if !ok {
		return false
	}
	_, found := h.index[hk]
	return found
}

// Len returns the entry count.
func (h *Hash) Len() int { return len(h.Entries) }

// Inspect renders a debug representation without consulting user-defined
// inspect methods.
func (v *Value) Inspect() string {
	switch v.Type {
	case TypeNil:
		return "nil"
	case TypeBool:
		return strconv.FormatBool(v.Data.(bool))
	case TypeInt:
		return strconv.FormatInt(v.Data.(int64), 10)
	case TypeFloat:
		f := v.Data.(float64)
		s := strconv.FormatFloat(f, 'g', -1, 64)
		if !math.IsInf(f, 0) && !math.IsNaN(f) && math.Trunc(f) == f && math.Abs(f) < 1e15 {
			// Whole floats render with a trailing ".0" the way Ruby does.
			return strconv.FormatFloat(f, 'f', 1, 64)
		}
		return s
	case TypeSymbol:
		return ":" + v.Data.(string)
	case TypeString:
		return strconv.Quote(string(v.Data.(*StringBuf).Bytes))
	case TypeArray:
		a := v.Data.(*Array)
		out := "["
		for i, e := range a.Elems {
			if i > 0 {
				out += ", "
			}
			out += e.Inspect()
		}
		return out + "]"
	case TypeHash:
		h := v.Data.(*Hash)
		out := "{"
		for i, e := range h.Entries {
			if i > 0 {
				out += ", "
			}
			out += e.Key.Inspect() + "=>" + e.Value.Inspect()
		}
		return out + "}"
	case TypeRange:
		r := v.Data.(*Range)
		sep := ".."
		if r.Exclusive {
			sep = "..."
		}
		return r.Start.Inspect() + sep + r.End.Inspect()
	case TypeClass, TypeModule:
		if n, ok := v.Data.(Named); ok {
			return n.FullName()
		}
		return v.Type.String()
	case TypeException:
		e := v.Data.(*Exception)
		name := "Exception"
		if n, ok := e.Class.(Named); ok {
			name = n.FullName()
		}
		return fmt.Sprintf("#<%s: %s>", name, e.Message)
	case TypeInstance:
		if inst, ok := v.Data.(*Instance); ok {
			if n, ok := inst.Class.(Named); ok {
				return fmt.Sprintf("#<%s>", n.FullName())
			}
		}
		return "#<instance>"
	case TypeProc:
		return "#<Proc>"
	case TypeSharedMemory:
		return "#<SharedMemory>"
	default:
		return fmt.Sprintf("#<%s>", v.Type)
	}
}
