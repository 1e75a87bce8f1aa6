package registry

import "github.com/gomrb/gomrb/values"

// CallContext exposes the VM services native method implementations and
// the prelude need, without creating a dependency cycle back to the vm
// package. The interpreter is the only implementation.
type CallContext interface {
	// Funcall resolves and invokes a method on recv, retrying through
	// method_missing when the receiver's chain defines it.
	Funcall(recv *values.Value, name string, args ...*values.Value) (*values.Value, error)

	// FuncallWithBlock is Funcall with an explicit block argument bound
	// to the callee's block slot.
	FuncallWithBlock(recv *values.Value, name string, args []*values.Value, block *values.Value) (*values.Value, error)

	// CallBlock invokes a Proc value. A nil recv uses the block's bound
	// self. Break conditions raised inside the block propagate as errors
	// so native iterators can terminate and surface the break value.
	CallBlock(block *values.Value, recv *values.Value, args []*values.Value) (*values.Value, error)

	// ClassOf returns the class governing method dispatch for v,
	// consulting the singleton-class slot first.
	ClassOf(v *values.Value) *Class

	// SingletonClass lazily materializes v's singleton class.
	SingletonClass(v *values.Value) *Class

	// GetClassByName looks up a seeded builtin class; nil when absent.
	GetClassByName(name string) *Class

	// ObjectClass returns the hierarchy root.
	ObjectClass() *Class

	// GetConst and SetConst access the VM-level constant table.
	GetConst(name string) (*values.Value, bool)
	SetConst(name string, v *values.Value)

	// ClassValue returns the shared "class object" value for a class,
	// cached so repeated references observe one identity.
	ClassValue(c *Class) *values.Value

	// DefineClass, DefineModule, and DefineBuiltinClass create records
	// and register them in the constant tables; DefineBuiltinClass also
	// seeds the builtin table consulted by scalar dispatch.
	DefineClass(name string, super *Class, parent *Module) *Class
	DefineModule(name string, parent *Module) *Module
	DefineBuiltinClass(name string, super *Class) *Class

	// TopSelf returns the synthetic main object.
	TopSelf() *values.Value

	// BlockGiven reports whether the Ruby frame the native was called
	// from received a block.
	BlockGiven() bool

	// NewExceptionValue builds an exception value of the given class.
	NewExceptionValue(cls *Class, msg string) *values.Value

	// Inspect renders v the way the VM's inspect dispatch would,
	// consulting user-defined inspect methods where they exist.
	Inspect(v *values.Value) string
}
