// Package vm implements the register-based interpreter: the run loop,
// call/return protocol, closure environments, exception unwinding, and the
// embedding API exposed to hosts.
package vm

import (
	"sync/atomic"

	"github.com/gomrb/gomrb/opcodes"
	"github.com/gomrb/gomrb/registry"
	"github.com/gomrb/gomrb/rite"
	"github.com/gomrb/gomrb/runtime"
	"github.com/gomrb/gomrb/values"
)

// MaxRegsSize bounds the global register array. Every frame's window is a
// contiguous suffix of this array starting at the current offset.
const MaxRegsSize = 1024

// Config carries optional VM construction parameters.
type Config struct {
	// InsnLimit caps instruction dispatches per Run; 0 disables the
	// limiter. Exceeding it raises an internal error that bypasses
	// user-level rescues.
	InsnLimit int
}

// TargetContext is the class or module whose body is currently executing;
// method and constant definitions land on it.
type TargetContext struct {
	Class  *registry.Class
	Module *registry.Module
}

func (t TargetContext) target() *registry.Module {
	if t.Module != nil {
		return t.Module
	}
	if t.Class != nil {
		return &t.Class.Module
	}
	return nil
}

// Name returns the full name of the active definition target.
func (t TargetContext) Name() string {
	if m := t.target(); m != nil {
		return m.FullName()
	}
	return ""
}

// CallInfo links a callee frame to its caller: everything needed to
// restore the caller on return, plus the owner module of the resolved
// method so super can resume the lookup chain after it.
type CallInfo struct {
	Prev        *CallInfo
	MethodName  string
	PCIrep      *registry.IREP
	PC          int
	RegsOffset  int
	FrameEnd    int
	TargetClass TargetContext
	NArgs       int
	ReturnReg   int
	MethodOwner *registry.Module
	BlockGiven  bool
	Lenient     bool
	Upper       *registry.Env
	Kargs       *keywordArgs

	// boundary marks frames pushed by the embedding API (Funcall,
	// CallBlock); popping one returns control to the host caller.
	boundary bool
}

type keywordArgs struct {
	hash     *values.Hash
	consumed map[string]bool
}

// VM executes decoded IREPs. All mutable state belongs to exactly one VM
// and is only touched by the interpreter loop currently holding it.
type VM struct {
	RootIrep *registry.IREP

	currentIrep *registry.IREP
	pc          int
	regs        [MaxRegsSize]*values.Value
	regsOffset  int
	frameEnd    int
	callinfo    *CallInfo
	targetClass TargetContext
	exception   *values.Value
	upper       *registry.Env
	kargs       *keywordArgs
	lastReturn  *values.Value

	boundaryDone  bool
	boundaryValue *values.Value

	preempt atomic.Bool
	halted  bool

	insnCount int
	insnLimit int

	objectClass    *registry.Class
	builtinClasses map[string]*registry.Class
	classValues    map[*registry.Class]*values.Value

	globals map[string]*values.Value
	consts  map[string]*values.Value

	// curEnv tracks frames that created block procs, keyed by register
	// window offset; popping such a frame captures its registers into the
	// environment and expires it.
	curEnv map[int]*registry.Env

	irepSeq int
	topSelf *values.Value
}

// New constructs a VM primed to execute the root IREP of a loaded file.
// Construction seeds the builtin class hierarchy via the runtime prelude.
func New(file *rite.File, cfg Config) (*VM, error) {
	vm := newBare(cfg)
	root, err := vm.BuildIrep(file)
	if err != nil {
		return nil, err
	}
	vm.RootIrep = root
	vm.currentIrep = root
	vm.frameEnd = root.NRegs
	return vm, nil
}

// NewEmpty returns a VM whose root IREP is a lone STOP instruction.
// Useful for hosts that only want to define classes and call into them.
func NewEmpty(cfg Config) *VM {
	vm := newBare(cfg)
	irep := &registry.IREP{
		NRegs: 2,
		Code:  []opcodes.Instruction{{Opcode: opcodes.STOP, Shape: opcodes.Z, Len: 1}},
	}
	vm.irepSeq = 1
	vm.RootIrep = irep
	vm.currentIrep = irep
	vm.frameEnd = irep.NRegs
	return vm
}

func newBare(cfg Config) *VM {
	vm := &VM{
		builtinClasses: make(map[string]*registry.Class),
		classValues:    make(map[*registry.Class]*values.Value),
		globals:        make(map[string]*values.Value),
		consts:         make(map[string]*values.Value),
		curEnv:         make(map[int]*registry.Env),
		insnLimit:      cfg.InsnLimit,
	}
	vm.objectClass = registry.NewClass("Object", nil, nil)
	vm.builtinClasses["Object"] = vm.objectClass
	vm.targetClass = TargetContext{Class: vm.objectClass}
	vm.topSelf = values.NewInstance(vm.objectClass)
	runtime.Bootstrap(vm)
	return vm
}

// ObjectClass returns the root of the class hierarchy.
func (vm *VM) ObjectClass() *registry.Class { return vm.objectClass }

// TopSelf returns the synthetic main object top-level code executes under.
func (vm *VM) TopSelf() *values.Value { return vm.topSelf }

// RequestPreemption asks the VM to exit Run at the next opcode boundary.
// Safe to call from another goroutine; execution state stays recoverable
// and the next Run resumes cleanly.
func (vm *VM) RequestPreemption() { vm.preempt.Store(true) }

// InsnCount reports instruction dispatches since the last Run started.
// The count advances only while the limiter is enabled (InsnLimit > 0).
func (vm *VM) InsnCount() int { return vm.insnCount }

// LastException returns the exception value a failed Run terminated with.
func (vm *VM) LastException() *values.Value { return vm.exception }

// Run executes the root IREP until STOP, returning the top-level value or
// the terminal exception as an error.
func (vm *VM) Run() (*values.Value, error) {
	vm.currentIrep = vm.RootIrep
	vm.pc = 0
	vm.regsOffset = 0
	vm.frameEnd = vm.RootIrep.NRegs
	vm.insnCount = 0
	vm.halted = false
	vm.exception = nil
	vm.lastReturn = nil
	return vm.execute(nil)
}

// EvalLoaded runs another loaded file inside this VM, preserving the
// accumulated classes, modules, and constants. It returns that file's
// top-level value.
func (vm *VM) EvalLoaded(file *rite.File) (*values.Value, error) {
	root, err := vm.BuildIrep(file)
	if err != nil {
		return nil, err
	}
	vm.currentIrep = root
	vm.pc = 0
	vm.regsOffset = 0
	vm.frameEnd = root.NRegs
	vm.halted = false
	vm.exception = nil
	vm.lastReturn = nil
	return vm.execute(nil)
}

// reg addresses register i of the current window.
func (vm *VM) reg(i int) *values.Value {
	v := vm.regs[vm.regsOffset+i]
	if v == nil {
		return values.Nil()
	}
	return v
}

func (vm *VM) setReg(i int, v *values.Value) {
	vm.regs[vm.regsOffset+i] = v
}

// Self returns register 0 of the current window.
func (vm *VM) Self() *values.Value { return vm.reg(0) }

// execute is the interpreter loop. A nil boundary runs until STOP; a
// non-nil boundary (pushed by the embedding API) runs until that frame
// returns, handing its value back to the host caller.
func (vm *VM) execute(boundary *CallInfo) (*values.Value, error) {
	if vm.regs[vm.regsOffset] == nil {
		vm.regs[vm.regsOffset] = vm.topSelf
	}

	for {
		if vm.exception != nil {
			done, val, err := vm.unwind(boundary)
			if done {
				return val, err
			}
			continue
		}

		if vm.finished() {
			return vm.finishValue(), nil
		}

		if vm.preempt.Load() {
			vm.preempt.Store(false)
			return vm.returnValue(), nil
		}

		if vm.pc >= len(vm.currentIrep.Code) {
			if vm.callinfo == nil {
				// End of the top-level stream behaves like STOP.
				return vm.returnValue(), nil
			}
			// Fell off the end of a callee IREP: implicit return of nil.
			vm.doReturn(values.Nil(), boundary)
			if vm.finished() {
				return vm.finishValue(), nil
			}
			continue
		}

		in := vm.currentIrep.Code[vm.pc]
		vm.pc++

		if vm.insnLimit > 0 {
			vm.insnCount++
			if vm.insnCount > vm.insnLimit {
				return nil, &registry.RubyError{Kind: registry.KindInsnLimit,
					Message: "instruction limit exceeded"}
			}
		}

		if err := vm.dispatch(in, boundary); err != nil {
			vm.Raise(err)
		}

		if vm.finished() {
			return vm.finishValue(), nil
		}
	}
}

func (vm *VM) finished() bool {
	return vm.halted || vm.boundaryDone
}

func (vm *VM) finishValue() *values.Value {
	if vm.boundaryDone {
		vm.boundaryDone = false
		v := vm.boundaryValue
		vm.boundaryValue = nil
		if v == nil {
			return values.Nil()
		}
		return v
	}
	vm.halted = false
	return vm.returnValue()
}

func (vm *VM) returnValue() *values.Value {
	if vm.lastReturn == nil {
		return values.Nil()
	}
	return vm.lastReturn
}
