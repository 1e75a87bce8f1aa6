package registry

// The method resolver walks the lookup chain: the receiver's singleton
// class when present, then its class, each mixin of that class in order
// (depth-first, skipping modules already seen), then the superclass and
// its mixins, and so on up to Object. The first module whose method table
// contains the name owns the resolution; the owner is retained by the call
// frame so super can resume the chain strictly after it.

func collectModuleChain(m *Module, chain []*Module, seen map[*Module]bool) []*Module {
	if seen[m] {
		return chain
	}
	seen[m] = true
	chain = append(chain, m)
	for _, mixin := range m.Mixins {
		chain = collectModuleChain(mixin, chain, seen)
	}
	return chain
}

// LookupChain produces the ordered module sequence consulted for a
// receiver whose class is c. The sequence is deterministic for a given
// class regardless of call history.
func LookupChain(c *Class) []*Module {
	var chain []*Module
	seen := make(map[*Module]bool)
	for k := c; k != nil; k = k.Super {
		chain = collectModuleChain(&k.Module, chain, seen)
	}
	return chain
}

// ResolveMethod finds name along c's lookup chain, returning the owning
// module and the method body.
func ResolveMethod(c *Class, name string) (*Module, *Proc, bool) {
	for _, m := range LookupChain(c) {
		if p, ok := m.Methods[name]; ok {
			return m, p, true
		}
	}
	return nil, nil, false
}

// ResolveNextMethod finds the entry for name strictly after currentOwner
// in c's lookup chain. This is the super-call resolution: two consecutive
// super calls from distinct chain levels address distinct owners.
func ResolveNextMethod(c *Class, name string, currentOwner *Module) (*Module, *Proc, bool) {
	passed := false
	for _, m := range LookupChain(c) {
		if !passed {
			if m == currentOwner {
				passed = true
			}
			continue
		}
		if p, ok := m.Methods[name]; ok {
			return m, p, true
		}
	}
	return nil, nil, false
}

// ResolveInModule finds name in a module or its mixins only, without any
// superclass walk. Used for module_function-style dispatch.
func ResolveInModule(m *Module, name string) (*Module, *Proc, bool) {
	seen := make(map[*Module]bool)
	for _, mod := range collectModuleChain(m, nil, seen) {
		if p, ok := mod.Methods[name]; ok {
			return mod, p, true
		}
	}
	return nil, nil, false
}
