package values

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruthiness(t *testing.T) {
	assert.True(t, Nil().IsFalsy())
	assert.True(t, NewBool(false).IsFalsy())
	assert.False(t, NewBool(true).IsFalsy())
	// Zero and the empty string are truthy.
	assert.True(t, NewInt(0).IsTruthy())
	assert.True(t, NewString("").IsTruthy())
	assert.True(t, NewArray(nil).IsTruthy())
}

func TestObjectIDs(t *testing.T) {
	// Immediates are deterministic functions of their payload.
	assert.Equal(t, NewInt(7).ObjectID(), NewInt(7).ObjectID())
	assert.Equal(t, NewSymbol("foo").ObjectID(), NewSymbol("foo").ObjectID())
	assert.NotEqual(t, NewSymbol("foo").ObjectID(), NewSymbol("bar").ObjectID())
	assert.Equal(t, uint64(15), NewInt(7).ObjectID())

	// Heap values get fresh, stable ids.
	s := NewString("x")
	id := s.ObjectID()
	sb, _ := s.AsString()
	sb.Bytes = append(sb.Bytes, 'y')
	assert.Equal(t, id, s.ObjectID())
	assert.NotEqual(t, id, NewString("x").ObjectID())
}

func TestHashKeyProjection(t *testing.T) {
	k1, ok := HashKeyOf(NewString("a"))
	require.True(t, ok)
	k2, ok := HashKeyOf(NewString("a"))
	require.True(t, ok)
	assert.Equal(t, k1, k2)

	// Distinct string and symbol keys with the same spelling stay apart.
	k3, _ := HashKeyOf(NewSymbol("a"))
	assert.NotEqual(t, k1, k3)

	// Float keys project by bit pattern.
	f1, _ := HashKeyOf(NewFloat(1.5))
	f2, _ := HashKeyOf(NewFloat(1.5))
	assert.Equal(t, f1, f2)

	// Containers are not hashable.
	_, ok = HashKeyOf(NewArray(nil))
	assert.False(t, ok)
}

func TestHashContainer(t *testing.T) {
	h := NewHash()
	hd, _ := h.AsHash()

	require.True(t, hd.Set(NewSymbol("a"), NewInt(1)))
	require.True(t, hd.Set(NewString("b"), NewInt(2)))
	require.True(t, hd.Set(NewSymbol("a"), NewInt(3))) // replace keeps order

	assert.Equal(t, 2, hd.Len())
	assert.Equal(t, ":a", hd.Entries[0].Key.Inspect())

	v, ok := hd.Get(NewSymbol("a"))
	require.True(t, ok)
	i, _ := v.AsInt()
	assert.Equal(t, int64(3), i)

	deleted, ok := hd.Delete(NewSymbol("a"))
	require.True(t, ok)
	di, _ := deleted.AsInt()
	assert.Equal(t, int64(3), di)
	assert.Equal(t, 1, hd.Len())

	// Remaining entry still reachable after index reshuffle.
	v, ok = hd.Get(NewString("b"))
	require.True(t, ok)
	bi, _ := v.AsInt()
	assert.Equal(t, int64(2), bi)
}

func TestEqualityProjection(t *testing.T) {
	// Numeric equality crosses the Integer/Float divide.
	assert.True(t, Equal(NewInt(2), NewFloat(2.0)))
	assert.False(t, Equal(NewInt(2), NewFloat(2.5)))

	// Arrays compare element-wise.
	a1 := NewArray([]*Value{NewInt(1), NewString("x")})
	a2 := NewArray([]*Value{NewInt(1), NewString("x")})
	a3 := NewArray([]*Value{NewInt(1)})
	assert.True(t, Equal(a1, a2))
	assert.False(t, Equal(a1, a3))

	// Hashes compare order-independently.
	h1 := NewHash()
	h2 := NewHash()
	hd1, _ := h1.AsHash()
	hd2, _ := h2.AsHash()
	hd1.Set(NewSymbol("a"), NewInt(1))
	hd1.Set(NewSymbol("b"), NewInt(2))
	hd2.Set(NewSymbol("b"), NewInt(2))
	hd2.Set(NewSymbol("a"), NewInt(1))
	assert.True(t, Equal(h1, h2))

	// Ranges compare endpoints and exclusivity.
	assert.True(t, Equal(NewRange(NewInt(1), NewInt(5), false), NewRange(NewInt(1), NewInt(5), false)))
	assert.False(t, Equal(NewRange(NewInt(1), NewInt(5), false), NewRange(NewInt(1), NewInt(5), true)))

	// Everything else falls back to object identity.
	i1 := NewInstance(nil)
	i2 := NewInstance(nil)
	assert.True(t, Equal(i1, i1))
	assert.False(t, Equal(i1, i2))
}

func TestIVars(t *testing.T) {
	v := NewInstance(nil)
	assert.True(t, v.IVarGet("@x").IsNil())
	v.IVarSet("@x", NewInt(9))
	got, _ := v.IVarGet("@x").AsInt()
	assert.Equal(t, int64(9), got)
	assert.Equal(t, []string{"@x"}, v.IVarNames())
}

func TestInspect(t *testing.T) {
	assert.Equal(t, "nil", Nil().Inspect())
	assert.Equal(t, ":sym", NewSymbol("sym").Inspect())
	assert.Equal(t, `"hi"`, NewString("hi").Inspect())
	assert.Equal(t, "[1, 2]", NewArray([]*Value{NewInt(1), NewInt(2)}).Inspect())
	assert.Equal(t, "1..5", NewRange(NewInt(1), NewInt(5), false).Inspect())
	assert.Equal(t, "1...5", NewRange(NewInt(1), NewInt(5), true).Inspect())
	assert.Equal(t, "2.0", NewFloat(2).Inspect())
}
