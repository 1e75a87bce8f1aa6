package runtime_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gomrb/gomrb/registry"
	"github.com/gomrb/gomrb/values"
	"github.com/gomrb/gomrb/vm"
)

func newVM(t *testing.T) *vm.VM {
	t.Helper()
	return vm.NewEmpty(vm.Config{})
}

func callInt(t *testing.T, machine *vm.VM, recv *values.Value, name string, args ...*values.Value) int64 {
	t.Helper()
	res, err := machine.Funcall(recv, name, args...)
	require.NoError(t, err)
	i, ok := res.AsInt()
	require.True(t, ok, "expected Integer, got %s", res.Inspect())
	return i
}

func callString(t *testing.T, machine *vm.VM, recv *values.Value, name string, args ...*values.Value) string {
	t.Helper()
	res, err := machine.Funcall(recv, name, args...)
	require.NoError(t, err)
	s, ok := res.AsString()
	require.True(t, ok, "expected String, got %s", res.Inspect())
	return string(s.Bytes)
}

// nativeCounter builds a block proc that sums every value it is called
// with.
func nativeCounter(total *int64) *values.Value {
	return values.NewProc(registry.NewNativeProc("<block>",
		func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
			if len(args) > 0 {
				if n, ok := args[0].AsInt(); ok {
					*total += n
				}
			}
			return values.Nil(), nil
		}))
}

func TestIntegerTimes(t *testing.T) {
	machine := newVM(t)
	var total int64
	var count int64
	block := values.NewProc(registry.NewNativeProc("<block>",
		func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
			n, _ := args[0].AsInt()
			total += n
			count++
			return values.Nil(), nil
		}))
	res, err := machine.Funcall(values.NewInt(5), "times", block)
	require.NoError(t, err)
	assert.Equal(t, int64(5), mustI(t, res))
	assert.Equal(t, int64(10), total) // 0+1+2+3+4
	assert.Equal(t, int64(5), count)
}

func mustI(t *testing.T, v *values.Value) int64 {
	t.Helper()
	i, ok := v.AsInt()
	require.True(t, ok)
	return i
}

func TestIntegerUptoAndPredicates(t *testing.T) {
	machine := newVM(t)
	var total int64
	_, err := machine.Funcall(values.NewInt(3), "upto", values.NewInt(6), nativeCounter(&total))
	require.NoError(t, err)
	assert.Equal(t, int64(18), total)

	res, err := machine.Funcall(values.NewInt(4), "even?")
	require.NoError(t, err)
	assert.True(t, res.IsTruthy())
	res, err = machine.Funcall(values.NewInt(4), "odd?")
	require.NoError(t, err)
	assert.True(t, res.IsFalsy())

	assert.Equal(t, "ff", callString(t, machine, values.NewInt(255), "to_s", values.NewInt(16)))
	assert.Equal(t, int64(7), callInt(t, machine, values.NewInt(-7), "abs"))
}

func TestIntegerModulo(t *testing.T) {
	machine := newVM(t)
	assert.Equal(t, int64(1), callInt(t, machine, values.NewInt(7), "%", values.NewInt(3)))
	// Floored semantics for negative operands.
	assert.Equal(t, int64(2), callInt(t, machine, values.NewInt(-7), "%", values.NewInt(3)))

	_, err := machine.Funcall(values.NewInt(7), "%", values.NewInt(0))
	require.Error(t, err)
}

func TestFloatMethods(t *testing.T) {
	machine := newVM(t)
	res, err := machine.Funcall(values.NewFloat(2.7), "floor")
	require.NoError(t, err)
	assert.Equal(t, int64(2), mustI(t, res))

	res, err = machine.Funcall(values.NewFloat(2.2), "ceil")
	require.NoError(t, err)
	assert.Equal(t, int64(3), mustI(t, res))

	res, err = machine.Funcall(values.NewFloat(2.5), "to_i")
	require.NoError(t, err)
	assert.Equal(t, int64(2), mustI(t, res))

	nan, err := machine.Funcall(values.NewFloat(0), "/", values.NewFloat(0))
	require.NoError(t, err)
	isNan, err := machine.Funcall(nan, "nan?")
	require.NoError(t, err)
	assert.True(t, isNan.IsTruthy())
}

func TestStringMethods(t *testing.T) {
	machine := newVM(t)
	s := values.NewString("hello world")

	assert.Equal(t, int64(11), callInt(t, machine, s, "size"))
	assert.Equal(t, "HELLO WORLD", callString(t, machine, s, "upcase"))
	assert.Equal(t, "hello", callString(t, machine, s, "slice", values.NewInt(0), values.NewInt(5)))

	res, err := machine.Funcall(s, "include?", values.NewString("wor"))
	require.NoError(t, err)
	assert.True(t, res.IsTruthy())

	res, err = machine.Funcall(s, "split")
	require.NoError(t, err)
	parts, _ := res.AsArray()
	require.Len(t, parts.Elems, 2)

	sym, err := machine.Funcall(values.NewString("abc"), "to_sym")
	require.NoError(t, err)
	name, ok := sym.AsSymbol()
	require.True(t, ok)
	assert.Equal(t, "abc", name)

	assert.Equal(t, int64(42), callInt(t, machine, values.NewString(" 42 "), "to_i"))
}

func TestArrayMethods(t *testing.T) {
	machine := newVM(t)
	arr := values.NewArray([]*values.Value{values.NewInt(1), values.NewInt(2), values.NewInt(3)})

	assert.Equal(t, int64(3), callInt(t, machine, arr, "size"))
	assert.Equal(t, int64(1), callInt(t, machine, arr, "first"))
	assert.Equal(t, int64(3), callInt(t, machine, arr, "last"))
	assert.Equal(t, int64(2), callInt(t, machine, arr, "[]", values.NewInt(1)))
	assert.Equal(t, int64(3), callInt(t, machine, arr, "[]", values.NewInt(-1)))
	assert.Equal(t, "1-2-3", callString(t, machine, arr, "join", values.NewString("-")))

	_, err := machine.Funcall(arr, "push", values.NewInt(4))
	require.NoError(t, err)
	assert.Equal(t, int64(4), callInt(t, machine, arr, "size"))

	popped, err := machine.Funcall(arr, "pop")
	require.NoError(t, err)
	assert.Equal(t, int64(4), mustI(t, popped))

	res, err := machine.Funcall(arr, "include?", values.NewInt(2))
	require.NoError(t, err)
	assert.True(t, res.IsTruthy())

	var total int64
	_, err = machine.Funcall(arr, "each", nativeCounter(&total))
	require.NoError(t, err)
	assert.Equal(t, int64(6), total)
}

func TestEnumerableMapOverArray(t *testing.T) {
	machine := newVM(t)
	arr := values.NewArray([]*values.Value{values.NewInt(1), values.NewInt(2), values.NewInt(3)})

	doubler := values.NewProc(registry.NewNativeProc("<block>",
		func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
			n, _ := args[0].AsInt()
			return values.NewInt(n * 2), nil
		}))
	res, err := machine.Funcall(arr, "map", doubler)
	require.NoError(t, err)
	mapped, ok := res.AsArray()
	require.True(t, ok)
	require.Len(t, mapped.Elems, 3)
	assert.Equal(t, int64(4), mustI(t, mapped.Elems[1]))
}

func TestEnumerableReduce(t *testing.T) {
	machine := newVM(t)
	arr := values.NewArray([]*values.Value{values.NewInt(1), values.NewInt(2), values.NewInt(3), values.NewInt(4)})

	add := values.NewProc(registry.NewNativeProc("<block>",
		func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
			a, _ := args[0].AsInt()
			b, _ := args[1].AsInt()
			return values.NewInt(a + b), nil
		}))
	res, err := machine.Funcall(arr, "reduce", add)
	require.NoError(t, err)
	assert.Equal(t, int64(10), mustI(t, res))
}

func TestHashMethods(t *testing.T) {
	machine := newVM(t)
	h := values.NewHash()
	hd, _ := h.AsHash()
	hd.Set(values.NewSymbol("a"), values.NewInt(1))
	hd.Set(values.NewSymbol("b"), values.NewInt(2))

	assert.Equal(t, int64(2), callInt(t, machine, h, "size"))
	assert.Equal(t, int64(1), callInt(t, machine, h, "[]", values.NewSymbol("a")))

	res, err := machine.Funcall(h, "key?", values.NewSymbol("b"))
	require.NoError(t, err)
	assert.True(t, res.IsTruthy())

	keys, err := machine.Funcall(h, "keys")
	require.NoError(t, err)
	karr, _ := keys.AsArray()
	require.Len(t, karr.Elems, 2)
	// Insertion order is preserved.
	k0, _ := karr.Elems[0].AsSymbol()
	assert.Equal(t, "a", k0)

	_, err = machine.Funcall(h, "delete", values.NewSymbol("a"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), callInt(t, machine, h, "size"))

	_, err = machine.Funcall(h, "fetch", values.NewSymbol("zz"))
	require.Error(t, err)
}

func TestRangeMethods(t *testing.T) {
	machine := newVM(t)
	r := values.NewRange(values.NewInt(1), values.NewInt(5), false)

	assert.Equal(t, int64(5), callInt(t, machine, r, "size"))

	res, err := machine.Funcall(r, "to_a")
	require.NoError(t, err)
	arr, _ := res.AsArray()
	require.Len(t, arr.Elems, 5)

	var total int64
	_, err = machine.Funcall(r, "each", nativeCounter(&total))
	require.NoError(t, err)
	assert.Equal(t, int64(15), total)

	exc := values.NewRange(values.NewInt(1), values.NewInt(5), true)
	assert.Equal(t, int64(4), callInt(t, machine, exc, "size"))

	in, err := machine.Funcall(r, "include?", values.NewInt(5))
	require.NoError(t, err)
	assert.True(t, in.IsTruthy())
	in, err = machine.Funcall(exc, "include?", values.NewInt(5))
	require.NoError(t, err)
	assert.True(t, in.IsFalsy())
}

func TestObjectProtocol(t *testing.T) {
	machine := newVM(t)

	res, err := machine.Funcall(values.NewInt(3), "class")
	require.NoError(t, err)
	cls := res.Data.(*registry.Class)
	assert.Equal(t, "Integer", cls.Name)

	isA, err := machine.Funcall(values.NewInt(3), "is_a?", res)
	require.NoError(t, err)
	assert.True(t, isA.IsTruthy())

	nilv, err := machine.Funcall(values.Nil(), "nil?")
	require.NoError(t, err)
	assert.True(t, nilv.IsTruthy())

	resp, err := machine.Funcall(values.NewInt(3), "respond_to?", values.NewSymbol("times"))
	require.NoError(t, err)
	assert.True(t, resp.IsTruthy())

	sent, err := machine.Funcall(values.NewInt(40), "send", values.NewSymbol("+"), values.NewInt(2))
	require.NoError(t, err)
	assert.Equal(t, int64(42), mustI(t, sent))
}

func TestAttrAccessor(t *testing.T) {
	machine := newVM(t)
	c := machine.DefineClass("Point", nil, nil)
	_, err := machine.Funcall(machine.ClassValue(c), "attr_accessor", values.NewSymbol("x"))
	require.NoError(t, err)

	inst, err := machine.Funcall(machine.ClassValue(c), "new")
	require.NoError(t, err)
	_, err = machine.Funcall(inst, "x=", values.NewInt(12))
	require.NoError(t, err)
	assert.Equal(t, int64(12), callInt(t, machine, inst, "x"))
}

func TestExceptionObjects(t *testing.T) {
	machine := newVM(t)
	cls := machine.GetClassByName("ArgumentError")
	require.NotNil(t, cls)
	exc, err := machine.Funcall(machine.ClassValue(cls), "new", values.NewString("bad"))
	require.NoError(t, err)
	assert.Equal(t, "bad", callString(t, machine, exc, "message"))

	res, err := machine.Funcall(exc, "class")
	require.NoError(t, err)
	assert.Equal(t, "ArgumentError", res.Data.(*registry.Class).Name)
}

func TestKernelRaiseFromRuby(t *testing.T) {
	machine := newVM(t)
	_, err := machine.Funcall(machine.TopSelf(), "raise", values.NewString("boom"))
	require.Error(t, err)
	var raised *registry.RaisedError
	require.ErrorAs(t, err, &raised)
	assert.Equal(t, "boom", raised.Kind.Message)
}

func TestSharedMemory(t *testing.T) {
	machine := newVM(t)
	smClass := machine.GetClassByName("SharedMemory")
	require.NotNil(t, smClass)

	buf, err := machine.Funcall(machine.ClassValue(smClass), "new", values.NewInt(8))
	require.NoError(t, err)
	assert.Equal(t, int64(8), callInt(t, machine, buf, "size"))

	_, err = machine.Funcall(buf, "[]=", values.NewInt(3), values.NewInt(200))
	require.NoError(t, err)
	assert.Equal(t, int64(200), callInt(t, machine, buf, "[]", values.NewInt(3)))

	_, err = machine.Funcall(buf, "[]", values.NewInt(8))
	require.Error(t, err)

	raw, ok := buf.AsSharedMemory()
	require.True(t, ok)
	assert.Equal(t, byte(200), raw.Bytes[3])
}

func TestBoolMethods(t *testing.T) {
	machine := newVM(t)
	assert.Equal(t, "true", callString(t, machine, values.NewBool(true), "to_s"))
	res, err := machine.Funcall(values.NewBool(true), "&", values.Nil())
	require.NoError(t, err)
	assert.True(t, res.IsFalsy())
	res, err = machine.Funcall(values.NewBool(false), "|", values.NewInt(0))
	require.NoError(t, err)
	assert.True(t, res.IsTruthy())
}
