// Package registry holds the class and module records, the method
// resolver, and the decoded instruction records (IREPs) that Procs
// execute. It sits between values and vm in the import graph so native
// method implementations never depend on the interpreter directly.
package registry

import (
	"github.com/gomrb/gomrb/opcodes"
	"github.com/gomrb/gomrb/values"
)

// Module is a namespace with a method table, a constant table, and an
// ordered mixin list. The parent pointer is structural only (used for full
// name computation); it never owns its target.
type Module struct {
	Name    string
	Methods map[string]*Proc
	Consts  map[string]*values.Value
	CVars   map[string]*values.Value
	Mixins  []*Module
	parent  *Module
}

// NewModule creates an empty module.
func NewModule(name string) *Module {
	return &Module{
		Name:    name,
		Methods: make(map[string]*Proc),
		Consts:  make(map[string]*values.Value),
	}
}

// Parent returns the enclosing namespace module, or nil at top level.
func (m *Module) Parent() *Module { return m.parent }

// SetParent records the enclosing namespace. The link is non-owning.
func (m *Module) SetParent(p *Module) { m.parent = p }

// FullName joins the namespace chain with "::".
func (m *Module) FullName() string {
	if m.parent == nil {
		return m.Name
	}
	return m.parent.FullName() + "::" + m.Name
}

// DefineMethod inserts or replaces a method.
func (m *Module) DefineMethod(name string, p *Proc) {
	m.Methods[name] = p
}

// UndefMethod removes a method from this module's own table.
func (m *Module) UndefMethod(name string) {
	delete(m.Methods, name)
}

// Include prepends mod to the mixin list so it takes precedence over
// methods inherited from the superclass but is overridden by methods
// defined directly on the includee.
func (m *Module) Include(mod *Module) {
	m.Mixins = append([]*Module{mod}, m.Mixins...)
}

// ConstGet reads a constant from this module's own table.
func (m *Module) ConstGet(name string) (*values.Value, bool) {
	v, ok := m.Consts[name]
	return v, ok
}

// ConstSet writes a constant into this module's table.
func (m *Module) ConstSet(name string, v *values.Value) {
	m.Consts[name] = v
}

// Class is a module with inheritance. Object has no superclass; every
// other class transitively reaches Object.
type Class struct {
	Module
	Super *Class
}

// NewClass creates a class under the optional parent namespace with the
// given superclass (nil only for Object).
func NewClass(name string, super *Class, parent *Module) *Class {
	c := &Class{
		Module: Module{
			Name:    name,
			Methods: make(map[string]*Proc),
			Consts:  make(map[string]*values.Value),
		},
		Super: super,
	}
	c.parent = parent
	return c
}

// IsSubclassOf walks the superclass chain, inclusive of the receiver.
func (c *Class) IsSubclassOf(other *Class) bool {
	for k := c; k != nil; k = k.Super {
		if k == other {
			return true
		}
	}
	return false
}

// IREP is one decoded unit of bytecode: a method body, block body, or the
// top-level script. The root IREP owns its child tree; Procs hold shared
// references to the IREP they run.
type IREP struct {
	ID      int
	NLocals int
	NRegs   int
	Code    []opcodes.Instruction
	Syms    []string
	Pool    []*values.Value
	Children []*IREP
	CatchTargets []opcodes.CatchTarget
	LocalNames   map[int]string

	posIndex map[int]int
}

// IndexAt translates a byte position in the packed stream into the index
// of the decoded instruction starting there.
func (ir *IREP) IndexAt(pos int) (int, bool) {
	if ir.posIndex == nil {
		ir.posIndex = make(map[int]int, len(ir.Code))
		for i, in := range ir.Code {
			ir.posIndex[in.Pos] = i
		}
	}
	i, ok := ir.posIndex[pos]
	return i, ok
}

// NativeFn is a host-implemented method body. A block argument, when one
// was supplied at the call site, arrives as the trailing element of args
// (a Proc value).
type NativeFn func(ctx CallContext, self *values.Value, args []*values.Value) (*values.Value, error)

// Proc is a first-class callable: either a Ruby procedure (IREP plus
// captured environment) or a native callable.
type Proc struct {
	IsRubyFunc bool
	Name       string
	IREP       *IREP
	Fn         NativeFn
	Env        *Env
	Self       *values.Value // bound self for blocks
	Next       *Proc

	// Strict procs (methods, lambdas) enforce their arity; plain blocks
	// pad missing parameters with nil and drop extras.
	Strict bool
}

// NewRubyProc wraps an IREP as a callable method body.
func NewRubyProc(name string, irep *IREP) *Proc {
	return &Proc{IsRubyFunc: true, Name: name, IREP: irep, Strict: true}
}

// NewNativeProc wraps a host function as a callable method body.
func NewNativeProc(name string, fn NativeFn) *Proc {
	return &Proc{Name: name, Fn: fn}
}

// Env is a captured environment: the record that lets a block keep
// addressing its defining frame's locals after that frame returned. While
// the frame is live, reads go through the register file at RegsOffset; once
// the frame returns the frame's register slice is copied in and the expiry
// bit flips, after which only the copy is consulted.
type Env struct {
	IrepID     int
	Upper      *Env
	RegsOffset int
	captured   []*values.Value
	expired    bool
}

// NewEnv records the defining frame's identity.
func NewEnv(irepID, regsOffset int, upper *Env) *Env {
	return &Env{IrepID: irepID, RegsOffset: regsOffset, Upper: upper}
}

// Capture stores the frame's register slice and flips the expiry bit.
// Subsequent Reg/SetReg calls hit the copy, never live registers.
func (e *Env) Capture(regs []*values.Value) {
	e.captured = regs
	e.expired = true
}

// Expired reports whether the defining frame has returned.
func (e *Env) Expired() bool { return e.expired }

// Reg reads local i of the defining frame through the environment.
func (e *Env) Reg(i int) (*values.Value, bool) {
	if !e.expired {
		return nil, false
	}
	if i < 0 || i >= len(e.captured) {
		return nil, true
	}
	return e.captured[i], true
}

// SetReg writes local i of the defining frame through the environment.
func (e *Env) SetReg(i int, v *values.Value) bool {
	if !e.expired {
		return false
	}
	if i >= 0 && i < len(e.captured) {
		e.captured[i] = v
	}
	return true
}
