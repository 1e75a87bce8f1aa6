package vm

import (
	"github.com/gomrb/gomrb/opcodes"
	"github.com/gomrb/gomrb/registry"
	"github.com/gomrb/gomrb/values"
)

// ClassOf returns the class governing method dispatch for v: the singleton
// class when one exists, the instance's class for instances, and the
// seeded builtin class for scalars and containers.
func (vm *VM) ClassOf(v *values.Value) *registry.Class {
	if v.Singleton != nil {
		return v.Singleton.(*registry.Class)
	}
	switch v.Type {
	case values.TypeInstance:
		if c, ok := v.Data.(*values.Instance).Class.(*registry.Class); ok {
			return c
		}
	case values.TypeException:
		e, _ := v.AsException()
		if c, ok := e.Class.(*registry.Class); ok {
			return c
		}
	case values.TypeData:
		if c, ok := v.Data.(*values.DataPayload).Class.(*registry.Class); ok {
			return c
		}
	case values.TypeClass:
		return vm.builtinOr("Class")
	case values.TypeModule:
		return vm.builtinOr("Module")
	}
	return vm.builtinOr(classNameFor(v))
}

func (vm *VM) builtinOr(name string) *registry.Class {
	if c, ok := vm.builtinClasses[name]; ok {
		return c
	}
	return vm.objectClass
}

var typeClassNames = map[values.ValueType]string{
	values.TypeNil:          "NilClass",
	values.TypeInt:          "Integer",
	values.TypeFloat:        "Float",
	values.TypeSymbol:       "Symbol",
	values.TypeString:       "String",
	values.TypeArray:        "Array",
	values.TypeHash:         "Hash",
	values.TypeRange:        "Range",
	values.TypeProc:         "Proc",
	values.TypeSharedMemory: "SharedMemory",
}

// classNameFor resolves the builtin class name for a scalar value.
func classNameFor(v *values.Value) string {
	if v.Type == values.TypeBool {
		if b, _ := v.AsBool(); b {
			return "TrueClass"
		}
		return "FalseClass"
	}
	if n, ok := typeClassNames[v.Type]; ok {
		return n
	}
	return "Object"
}

// SingletonClass lazily materializes v's singleton class: a fresh
// anonymous class whose superclass is v's current class. The resolver
// consults it ahead of the class.
func (vm *VM) SingletonClass(v *values.Value) *registry.Class {
	if v.Singleton != nil {
		return v.Singleton.(*registry.Class)
	}
	base := vm.ClassOf(v)
	name := "#<Class:" + v.Inspect() + ">"
	sc := registry.NewClass(name, base, base.Parent())
	v.Singleton = sc
	return sc
}

// ClassValue returns the shared "class object" for c. Repeated references
// to one class observe one value identity.
func (vm *VM) ClassValue(c *registry.Class) *values.Value {
	if v, ok := vm.classValues[c]; ok {
		return v
	}
	v := values.NewClass(c)
	vm.classValues[c] = v
	return v
}

// ModuleValue returns the shared value for a module record.
func (vm *VM) ModuleValue(m *registry.Module) *values.Value {
	name := m.FullName()
	if v, ok := vm.consts[name]; ok && v.Type == values.TypeModule && v.Data == m {
		return v
	}
	return values.NewModule(m)
}

// moduleOf extracts the module record behind a class or module value.
func (vm *VM) moduleOf(v *values.Value) *registry.Module {
	switch v.Type {
	case values.TypeClass:
		return &v.Data.(*registry.Class).Module
	case values.TypeModule:
		return v.Data.(*registry.Module)
	}
	return nil
}

// classFromValue extracts a class record, or nil.
func classFromValue(v *values.Value) *registry.Class {
	if v != nil && v.Type == values.TypeClass {
		return v.Data.(*registry.Class)
	}
	return nil
}

// GetClassByName looks up a seeded builtin class; nil when absent.
func (vm *VM) GetClassByName(name string) *registry.Class {
	return vm.builtinClasses[name]
}

// GetConst reads a VM-level constant.
func (vm *VM) GetConst(name string) (*values.Value, bool) {
	v, ok := vm.consts[name]
	return v, ok
}

// SetConst writes a constant into the active definition target; at the
// top level it also lands in the VM constant table.
func (vm *VM) SetConst(name string, v *values.Value) {
	if t := vm.targetClass.target(); t != nil && t != &vm.objectClass.Module {
		t.ConstSet(name, v)
		return
	}
	vm.consts[name] = v
	vm.objectClass.ConstSet(name, v)
}

// constLookup resolves a constant: the active target's namespace chain,
// then the target class's superclass chain, then the VM table.
func (vm *VM) constLookup(name string) (*values.Value, bool) {
	if m := vm.targetClass.target(); m != nil {
		for mod := m; mod != nil; mod = mod.Parent() {
			if v, ok := mod.ConstGet(name); ok {
				return v, true
			}
		}
	}
	if c := vm.targetClass.Class; c != nil {
		for k := c; k != nil; k = k.Super {
			if v, ok := k.ConstGet(name); ok {
				return v, true
			}
		}
	}
	if v, ok := vm.consts[name]; ok {
		return v, true
	}
	return nil, false
}

func (vm *VM) classVarGet(name string) (*values.Value, bool) {
	if m := vm.targetClass.target(); m != nil && m.CVars != nil {
		if v, ok := m.CVars[name]; ok {
			return v, true
		}
	}
	// Walk the superclass chain for inherited class variables.
	if c := vm.targetClass.Class; c != nil {
		for k := c; k != nil; k = k.Super {
			if k.CVars != nil {
				if v, ok := k.CVars[name]; ok {
					return v, true
				}
			}
		}
	}
	return nil, false
}

func (vm *VM) classVarSet(name string, v *values.Value) {
	t := vm.targetClass.target()
	if t == nil {
		t = &vm.objectClass.Module
	}
	if t.CVars == nil {
		t.CVars = make(map[string]*values.Value)
	}
	t.CVars[name] = v
}

// DefineClass creates (or reopens) a class, links it under the superclass,
// and registers it in the parent's constant table; a top-level class goes
// into Object's constant table and the VM table.
func (vm *VM) DefineClass(name string, super *registry.Class, parent *registry.Module) *registry.Class {
	lookupIn := parent
	if lookupIn == nil {
		lookupIn = &vm.objectClass.Module
	}
	if existing, ok := lookupIn.ConstGet(name); ok {
		if c := classFromValue(existing); c != nil {
			return c
		}
	}
	if parent == nil {
		if existing, ok := vm.consts[name]; ok {
			if c := classFromValue(existing); c != nil {
				return c
			}
		}
	}

	if super == nil {
		super = vm.objectClass
	}
	c := registry.NewClass(name, super, parent)
	obj := vm.ClassValue(c)
	if parent != nil {
		parent.ConstSet(name, obj)
	} else {
		vm.consts[name] = obj
		vm.objectClass.ConstSet(name, obj)
	}
	return c
}

// DefineModule creates (or reopens) a module and registers it as a
// constant.
func (vm *VM) DefineModule(name string, parent *registry.Module) *registry.Module {
	lookupIn := parent
	if lookupIn == nil {
		lookupIn = &vm.objectClass.Module
	}
	if existing, ok := lookupIn.ConstGet(name); ok {
		if existing.Type == values.TypeModule {
			return existing.Data.(*registry.Module)
		}
	}

	m := registry.NewModule(name)
	if parent != nil {
		m.SetParent(parent)
	}
	obj := values.NewModule(m)
	if parent != nil {
		parent.ConstSet(name, obj)
	} else {
		vm.consts[name] = obj
		vm.objectClass.ConstSet(name, obj)
	}
	return m
}

// DefineBuiltinClass seeds a class into the builtin table consulted by
// scalar dispatch. Used by the prelude and by hosts extending the VM.
func (vm *VM) DefineBuiltinClass(name string, super *registry.Class) *registry.Class {
	c := vm.DefineClass(name, super, nil)
	vm.builtinClasses[name] = c
	return c
}

func (vm *VM) opClass(in opcodes.Instruction) error {
	name, err := vm.symName(in.B)
	if err != nil {
		return err
	}
	base := vm.reg(in.A)
	superVal := vm.reg(in.A + 1)
	var super *registry.Class
	if !superVal.IsNil() {
		super = classFromValue(superVal)
		if super == nil {
			return registry.NewTypeMismatch("superclass must be a Class (%s given)", superVal.Inspect())
		}
	}
	var parent *registry.Module
	if m := vm.moduleOf(base); m != nil {
		parent = m
	} else if t := vm.targetClass.target(); t != nil && t != &vm.objectClass.Module {
		parent = t
	}
	c := vm.DefineClass(name, super, parent)
	vm.setReg(in.A, vm.ClassValue(c))
	return nil
}

func (vm *VM) opModule(in opcodes.Instruction) error {
	name, err := vm.symName(in.B)
	if err != nil {
		return err
	}
	base := vm.reg(in.A)
	var parent *registry.Module
	if m := vm.moduleOf(base); m != nil {
		parent = m
	} else if t := vm.targetClass.target(); t != nil && t != &vm.objectClass.Module {
		parent = t
	}
	m := vm.DefineModule(name, parent)
	vm.setReg(in.A, values.NewModule(m))
	return nil
}

// opExec runs a class or module body: a child IREP executed with the class
// object as self and the class as the definition target.
func (vm *VM) opExec(in opcodes.Instruction) error {
	recv := vm.reg(in.A)
	if in.B < 0 || in.B >= len(vm.currentIrep.Children) {
		return registry.NewInternalError("EXEC child index %d out of range", in.B)
	}
	child := vm.currentIrep.Children[in.B]
	proc := registry.NewRubyProc("", child)

	ci := &CallInfo{
		MethodName: "<class body>",
		ReturnReg:  in.A,
	}
	newOffset := vm.regsOffset + in.A
	vm.regs[newOffset] = recv
	if err := vm.pushFrame(ci, proc, newOffset); err != nil {
		return err
	}
	switch recv.Type {
	case values.TypeClass:
		vm.targetClass = TargetContext{Class: recv.Data.(*registry.Class)}
	case values.TypeModule:
		vm.targetClass = TargetContext{Module: recv.Data.(*registry.Module)}
	default:
		vm.targetClass = TargetContext{Class: vm.ClassOf(recv)}
	}
	vm.upper = nil
	return nil
}

func (vm *VM) opDef(in opcodes.Instruction) error {
	name, err := vm.symName(in.B)
	if err != nil {
		return err
	}
	target := vm.moduleOf(vm.reg(in.A))
	if target == nil {
		return registry.NewTypeMismatch("method definition target is not a class or module")
	}
	procVal := vm.reg(in.A + 1)
	p, ok := procVal.Data.(*registry.Proc)
	if !ok || !procVal.IsProc() {
		return registry.NewTypeMismatch("method body is not a proc")
	}
	bound := *p
	bound.Name = name
	target.DefineMethod(name, &bound)
	vm.setReg(in.A, values.NewSymbol(name))
	return nil
}

func (vm *VM) opAlias(in opcodes.Instruction) error {
	newName, err := vm.symName(in.A)
	if err != nil {
		return err
	}
	oldName, err := vm.symName(in.B)
	if err != nil {
		return err
	}
	t := vm.targetClass.target()
	if t == nil {
		return registry.NewInternalError("no target for alias")
	}
	var p *registry.Proc
	if vm.targetClass.Class != nil {
		_, proc, ok := registry.ResolveMethod(vm.targetClass.Class, oldName)
		if !ok {
			return registry.NewNoMethodError(oldName)
		}
		p = proc
	} else {
		_, proc, ok := registry.ResolveInModule(t, oldName)
		if !ok {
			return registry.NewNoMethodError(oldName)
		}
		p = proc
	}
	t.DefineMethod(newName, p)
	return nil
}
