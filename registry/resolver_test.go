package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gomrb/gomrb/values"
)

func TestLookupChainOrder(t *testing.T) {
	object := NewClass("Object", nil, nil)
	m1 := NewModule("M1")
	m2 := NewModule("M2")

	a := NewClass("A", object, nil)
	a.Include(m1)

	b := NewClass("B", a, nil)
	b.Include(m2)

	var names []string
	for _, m := range LookupChain(b) {
		names = append(names, m.Name)
	}
	// Own module first, then mixins, then the superclass and its mixins.
	assert.Equal(t, []string{"B", "M2", "A", "M1", "Object"}, names)
}

func TestIncludePrecedence(t *testing.T) {
	object := NewClass("Object", nil, nil)
	m := NewModule("M")
	m.DefineMethod("hi", NewNativeProc("hi", nil))

	c := NewClass("C", object, nil)
	c.Include(m)

	// The mixin wins over the superclass...
	object.DefineMethod("hi", NewNativeProc("hi", nil))
	owner, _, ok := ResolveMethod(c, "hi")
	require.True(t, ok)
	assert.Equal(t, m, owner)

	// ...but a method defined directly on the class wins over the mixin.
	own := NewNativeProc("hi", nil)
	c.DefineMethod("hi", own)
	owner, p, ok := ResolveMethod(c, "hi")
	require.True(t, ok)
	assert.Equal(t, &c.Module, owner)
	assert.Equal(t, own, p)
}

func TestIncludeLaterTakesPrecedence(t *testing.T) {
	object := NewClass("Object", nil, nil)
	m1 := NewModule("M1")
	m2 := NewModule("M2")
	m1.DefineMethod("dup", NewNativeProc("dup", nil))
	m2.DefineMethod("dup", NewNativeProc("dup", nil))

	c := NewClass("C", object, nil)
	c.Include(m1)
	c.Include(m2)

	owner, _, ok := ResolveMethod(c, "dup")
	require.True(t, ok)
	assert.Equal(t, m2, owner)
}

func TestResolveDeterministic(t *testing.T) {
	object := NewClass("Object", nil, nil)
	c := NewClass("C", object, nil)
	c.DefineMethod("m", NewNativeProc("m", nil))

	o1, p1, _ := ResolveMethod(c, "m")
	o2, p2, _ := ResolveMethod(c, "m")
	assert.Equal(t, o1, o2)
	assert.Equal(t, p1, p2)
}

func TestResolveNextMethod(t *testing.T) {
	object := NewClass("Object", nil, nil)
	a := NewClass("A", object, nil)
	b := NewClass("B", a, nil)

	pa := NewNativeProc("m", nil)
	pb := NewNativeProc("m", nil)
	po := NewNativeProc("m", nil)
	a.DefineMethod("m", pa)
	b.DefineMethod("m", pb)
	object.DefineMethod("m", po)

	owner, p, ok := ResolveMethod(b, "m")
	require.True(t, ok)
	assert.Equal(t, pb, p)

	// super from B resolves A's method; super from A resolves Object's.
	owner2, p2, ok := ResolveNextMethod(b, "m", owner)
	require.True(t, ok)
	assert.Equal(t, &a.Module, owner2)
	assert.Equal(t, pa, p2)

	owner3, p3, ok := ResolveNextMethod(b, "m", owner2)
	require.True(t, ok)
	assert.Equal(t, &object.Module, owner3)
	assert.Equal(t, po, p3)

	_, _, ok = ResolveNextMethod(b, "m", owner3)
	assert.False(t, ok)
}

func TestResolveMissing(t *testing.T) {
	object := NewClass("Object", nil, nil)
	c := NewClass("C", object, nil)
	_, _, ok := ResolveMethod(c, "missing")
	assert.False(t, ok)
}

func TestFullName(t *testing.T) {
	outer := NewModule("Outer")
	inner := NewModule("Inner")
	inner.SetParent(outer)
	c := NewClass("Thing", nil, inner)

	assert.Equal(t, "Outer::Inner", inner.FullName())
	assert.Equal(t, "Outer::Inner::Thing", c.FullName())
}

func TestSuperclassChainTerminatesAtObject(t *testing.T) {
	object := NewClass("Object", nil, nil)
	a := NewClass("A", object, nil)
	b := NewClass("B", a, nil)

	assert.True(t, b.IsSubclassOf(object))
	assert.True(t, b.IsSubclassOf(a))
	assert.False(t, a.IsSubclassOf(b))

	top := b
	for top.Super != nil {
		top = top.Super
	}
	assert.Equal(t, object, top)
}

func TestEnvCapture(t *testing.T) {
	env := NewEnv(3, 8, nil)
	assert.False(t, env.Expired())

	// Live frame: reads are delegated to the register file.
	_, fromCopy := env.Reg(1)
	assert.False(t, fromCopy)

	one := values.NewInt(1)
	env.Capture([]*values.Value{nil, one})
	assert.True(t, env.Expired())

	got, fromCopy := env.Reg(1)
	assert.True(t, fromCopy)
	assert.Equal(t, one, got)

	// Out-of-range reads through an expired env resolve to nothing
	// rather than live registers.
	got, fromCopy = env.Reg(9)
	assert.True(t, fromCopy)
	assert.Nil(t, got)

	two := values.NewInt(2)
	assert.True(t, env.SetReg(1, two))
	got, _ = env.Reg(1)
	assert.Equal(t, two, got)
}
