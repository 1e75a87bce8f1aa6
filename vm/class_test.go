package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gomrb/gomrb/opcodes"
	"github.com/gomrb/gomrb/registry"
	"github.com/gomrb/gomrb/values"
)

// class Foo; def bar; 42; end; end; Foo.new.bar -- assembled the way the
// compiler lays it out: CLASS + EXEC for the body, METHOD + DEF inside.
func TestClassDefinitionFromBytecode(t *testing.T) {
	machine := NewEmpty(Config{})

	barBody := newIrep(4, asm(
		enterOnly(),
		op(opcodes.LOADI, 1, 42),
		op(opcodes.RETURN, 1),
	))

	classBody := newIrep(6, asm(
		op(opcodes.TCLASS, 1),
		op(opcodes.METHOD, 2, 0),
		op(opcodes.DEF, 1, 0),
		op(opcodes.RETURN, 1),
	))
	classBody.Syms = []string{"bar"}
	classBody.Children = []*registry.IREP{barBody}

	script := newIrep(8, asm(
		op(opcodes.LOADNIL, 1),    // base
		op(opcodes.LOADNIL, 2),    // superclass
		op(opcodes.CLASS, 1, 0),   // R1 = class Foo
		op(opcodes.EXEC, 1, 0),    // run class body
		op(opcodes.GETCONST, 1, 1),
		op(opcodes.SEND, 1, 2, 0), // Foo.new
		op(opcodes.SEND, 1, 3, 0), // .bar
		op(opcodes.RETURN, 1),
		op(opcodes.STOP),
	))
	script.Syms = []string{"Foo", "Foo", "new", "bar"}
	script.Children = []*registry.IREP{classBody}

	machine.RootIrep = script
	res, err := machine.Run()
	require.NoError(t, err)
	assert.Equal(t, int64(42), mustInt(t, res))
}

func TestClassReopening(t *testing.T) {
	machine := NewEmpty(Config{})
	first := machine.DefineClass("Reo", nil, nil)
	second := machine.DefineClass("Reo", nil, nil)
	assert.Same(t, first, second)

	mod := machine.DefineModule("ReoM", nil)
	again := machine.DefineModule("ReoM", nil)
	assert.Same(t, mod, again)
}

func TestNestedClassRegistration(t *testing.T) {
	machine := NewEmpty(Config{})
	outer := machine.DefineModule("Outer", nil)
	inner := machine.DefineClass("Inner", nil, outer)

	assert.Equal(t, "Outer::Inner", inner.FullName())
	v, ok := outer.ConstGet("Inner")
	require.True(t, ok)
	assert.Equal(t, inner, v.Data.(*registry.Class))
}

func TestModuleOpcodeAndConstant(t *testing.T) {
	machine := NewEmpty(Config{})
	script := newIrep(6, asm(
		op(opcodes.LOADNIL, 1),
		op(opcodes.MODULE, 1, 0),
		op(opcodes.GETCONST, 1, 0),
		op(opcodes.RETURN, 1),
		op(opcodes.STOP),
	))
	script.Syms = []string{"Helpers"}

	machine.RootIrep = script
	res, err := machine.Run()
	require.NoError(t, err)
	require.Equal(t, values.TypeModule, res.Type)
	assert.Equal(t, "Helpers", res.Data.(*registry.Module).Name)
}

func TestSingletonClassOpcode(t *testing.T) {
	machine := NewEmpty(Config{})
	c := machine.DefineClass("Sing", nil, nil)

	// def Sing.make; 5; end via SCLASS + METHOD + DEF.
	makeBody := newIrep(4, asm(
		enterOnly(),
		op(opcodes.LOADI_5, 1),
		op(opcodes.RETURN, 1),
	))
	script := newIrep(6, asm(
		op(opcodes.GETCONST, 1, 0),
		op(opcodes.SCLASS, 1),
		op(opcodes.METHOD, 2, 0),
		op(opcodes.DEF, 1, 1),
		op(opcodes.GETCONST, 1, 0),
		op(opcodes.SEND, 1, 1, 0), // Sing.make
		op(opcodes.RETURN, 1),
		op(opcodes.STOP),
	))
	script.Syms = []string{"Sing", "make"}
	script.Children = []*registry.IREP{makeBody}

	machine.RootIrep = script
	res, err := machine.Run()
	require.NoError(t, err)
	assert.Equal(t, int64(5), mustInt(t, res))
	assert.NotNil(t, machine.ClassValue(c).Singleton)
}

func TestAliasOpcode(t *testing.T) {
	machine := NewEmpty(Config{})
	c := machine.DefineClass("Al", nil, nil)
	defineRubyMethod(c, "orig", newIrep(4, asm(
		enterOnly(),
		op(opcodes.LOADI_6, 1),
		op(opcodes.RETURN, 1),
	)))

	// Run "alias also orig" inside the class body.
	body := newIrep(4, asm(
		op(opcodes.ALIAS, 0, 1),
		op(opcodes.LOADNIL, 1),
		op(opcodes.RETURN, 1),
	))
	body.Syms = []string{"also", "orig"}

	script := newIrep(6, asm(
		op(opcodes.GETCONST, 1, 0),
		op(opcodes.EXEC, 1, 0),
		op(opcodes.RETURN, 1),
		op(opcodes.STOP),
	))
	script.Syms = []string{"Al"}
	script.Children = []*registry.IREP{body}

	machine.RootIrep = script
	_, err := machine.Run()
	require.NoError(t, err)

	inst, err := machine.Funcall(machine.ClassValue(c), "new")
	require.NoError(t, err)
	res, err := machine.Funcall(inst, "also")
	require.NoError(t, err)
	assert.Equal(t, int64(6), mustInt(t, res))
}

func TestUndefOpcode(t *testing.T) {
	machine := NewEmpty(Config{})
	c := machine.DefineClass("Un", nil, nil)
	defineRubyMethod(c, "gone", newIrep(4, asm(
		enterOnly(),
		op(opcodes.LOADI_1, 1),
		op(opcodes.RETURN, 1),
	)))

	body := newIrep(4, asm(
		op(opcodes.UNDEF, 0),
		op(opcodes.LOADNIL, 1),
		op(opcodes.RETURN, 1),
	))
	body.Syms = []string{"gone"}

	script := newIrep(6, asm(
		op(opcodes.GETCONST, 1, 0),
		op(opcodes.EXEC, 1, 0),
		op(opcodes.RETURN, 1),
		op(opcodes.STOP),
	))
	script.Syms = []string{"Un"}
	script.Children = []*registry.IREP{body}

	machine.RootIrep = script
	_, err := machine.Run()
	require.NoError(t, err)

	inst, err := machine.Funcall(machine.ClassValue(c), "new")
	require.NoError(t, err)
	_, err = machine.Funcall(inst, "gone")
	require.Error(t, err)
}
