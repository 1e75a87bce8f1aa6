// Package runtime seeds the builtin class hierarchy and binds the native
// methods the covered Ruby subset relies on. Everything here talks to the
// interpreter through registry.CallContext, so the package stays free of a
// vm dependency.
package runtime

import (
	"github.com/gomrb/gomrb/registry"
)

// Bootstrap seeds the builtin classes and their methods into a freshly
// constructed VM. It is idempotent per VM: reopening existing classes is a
// no-op at the definition layer.
func Bootstrap(ctx registry.CallContext) {
	object := ctx.ObjectClass()

	module := ctx.DefineBuiltinClass("Module", object)
	ctx.DefineBuiltinClass("Class", module)

	ctx.DefineBuiltinClass("NilClass", object)
	ctx.DefineBuiltinClass("TrueClass", object)
	ctx.DefineBuiltinClass("FalseClass", object)
	ctx.DefineBuiltinClass("Integer", object)
	ctx.DefineBuiltinClass("Float", object)
	ctx.DefineBuiltinClass("Symbol", object)
	ctx.DefineBuiltinClass("String", object)
	ctx.DefineBuiltinClass("Array", object)
	ctx.DefineBuiltinClass("Hash", object)
	ctx.DefineBuiltinClass("Range", object)
	ctx.DefineBuiltinClass("Proc", object)
	ctx.DefineBuiltinClass("SharedMemory", object)

	exception := ctx.DefineBuiltinClass("Exception", object)
	standard := ctx.DefineBuiltinClass("StandardError", exception)
	ctx.DefineBuiltinClass("InternalError", exception)
	runtimeErr := ctx.DefineBuiltinClass("RuntimeError", standard)
	ctx.DefineBuiltinClass("ArgumentError", standard)
	ctx.DefineBuiltinClass("TypeError", standard)
	nameErr := ctx.DefineBuiltinClass("NameError", standard)
	ctx.DefineBuiltinClass("NoMethodError", nameErr)
	ctx.DefineBuiltinClass("ZeroDivisionError", standard)
	ctx.DefineBuiltinClass("LoadError", standard)
	indexErr := ctx.DefineBuiltinClass("IndexError", standard)
	ctx.DefineBuiltinClass("KeyError", indexErr)
	ctx.DefineBuiltinClass("StopIteration", indexErr)
	ctx.DefineBuiltinClass("RangeError", standard)
	ctx.DefineBuiltinClass("FrozenError", runtimeErr)
	ctx.DefineBuiltinClass("NotImplementedError", standard)
	ctx.DefineBuiltinClass("LocalJumpError", standard)
	ctx.DefineBuiltinClass("IOError", standard)

	initializeObject(ctx)
	initializeModule(ctx)
	initializeClassClass(ctx)
	initializeNilBool(ctx)
	initializeInteger(ctx)
	initializeFloat(ctx)
	initializeSymbol(ctx)
	initializeString(ctx)
	initializeArray(ctx)
	initializeHash(ctx)
	initializeRange(ctx)
	initializeProc(ctx)
	initializeException(ctx)
	initializeEnumerable(ctx)
	initializeSharedMemory(ctx)
}
