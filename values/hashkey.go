package values

import "math"

// HashKey is the canonical immutable projection of a value used as a hash
// key: booleans by bit, integers as themselves, floats by raw bit pattern,
// symbols by name, strings by bytes, classes by full name. Values outside
// these kinds are not hashable.
type HashKey struct {
	Type ValueType
	I    uint64
	S    string
}

// HashKeyOf projects v into its canonical key form. ok is false for
// non-hashable values; the interpreter raises a type error in that case.
func HashKeyOf(v *Value) (HashKey, bool) {
	switch v.Type {
	case TypeBool:
		var bit uint64
		if v.Data.(bool) {
			bit = 1
		}
		return HashKey{Type: TypeBool, I: bit}, true
	case TypeInt:
		return HashKey{Type: TypeInt, I: uint64(v.Data.(int64))}, true
	case TypeFloat:
		return HashKey{Type: TypeFloat, I: math.Float64bits(v.Data.(float64))}, true
	case TypeSymbol:
		return HashKey{Type: TypeSymbol, S: v.Data.(string)}, true
	case TypeString:
		return HashKey{Type: TypeString, S: string(v.Data.(*StringBuf).Bytes)}, true
	case TypeClass:
		if n, ok := v.Data.(Named); ok {
			return HashKey{Type: TypeClass, S: n.FullName()}, true
		}
	}
	return HashKey{}, false
}

// Equal compares two values by the equality projection: scalars by
// payload, strings by bytes, arrays element-wise, hashes order-independent
// by key set and per-key values, ranges by endpoints and exclusivity, and
// anything else by object id.
func Equal(a, b *Value) bool {
	if a == b {
		return true
	}
	// Numeric comparison crosses the Integer/Float divide like Ruby's ==.
	if (a.Type == TypeInt || a.Type == TypeFloat) && (b.Type == TypeInt || b.Type == TypeFloat) {
		if a.Type == TypeInt && b.Type == TypeInt {
			return a.Data.(int64) == b.Data.(int64)
		}
		af, _ := a.AsFloat()
		bf, _ := b.AsFloat()
		return af == bf
	}
	if a.Type != b.Type {
		return false
	}
	switch a.Type {
	case TypeNil:
		return true
	case TypeBool:
		return a.Data.(bool) == b.Data.(bool)
	case TypeSymbol:
		return a.Data.(string) == b.Data.(string)
	case TypeString:
		return string(a.Data.(*StringBuf).Bytes) == string(b.Data.(*StringBuf).Bytes)
	case TypeArray:
		aa := a.Data.(*Array)
		ba := b.Data.(*Array)
		if len(aa.Elems) != len(ba.Elems) {
			return false
		}
		for i := range aa.Elems {
			if !Equal(aa.Elems[i], ba.Elems[i]) {
				return false
			}
		}
		return true
	case TypeHash:
		ah := a.Data.(*Hash)
		bh := b.Data.(*Hash)
		if ah.Len() != bh.Len() {
			return false
		}
		for _, e := range ah.Entries {
			bv, ok := bh.Get(e.Key)
			if !ok || !Equal(e.Value, bv) {
				return false
			}
		}
		return true
	case TypeRange:
		ar := a.Data.(*Range)
		br := b.Data.(*Range)
		return ar.Exclusive == br.Exclusive && Equal(ar.Start, br.Start) && Equal(ar.End, br.End)
	case TypeClass, TypeModule:
		return a.Data == b.Data
	default:
		return a.ObjectID() == b.ObjectID()
	}
}
