package script

import (
	"github.com/dop251/goja"

	"github.com/Sentinel-Gate/Sentinelgate/internal/domain/policy"
)

// dslBinding is the Go analogue of sandbox_lua_open: it builds the
// `sandbox` global object whose functions close over engine and policy
// the way sandbox_lua_funcs's entries close over a sandbox pointer passed
// as a Lua upvalue.
type dslBinding struct {
	engine *Engine
	policy *policy.Policy
}

func (b *dslBinding) build(vm *goja.Runtime) (*goja.Object, error) {
	obj := vm.NewObject()

	fns := map[string]func(goja.FunctionCall) goja.Value{
		"default":     b.defaultFn,
		"allow":       b.allowFn,
		"deny":        b.denyFn,
		"on":          b.onFn,
		"paths_allow": b.pathsAllowFn,
		"paths_deny":  b.pathsDenyFn,
		"when":        b.whenFn,
	}
	for name, fn := range fns {
		if err := obj.Set(name, fn); err != nil {
			return nil, err
		}
	}
	if err := installConsts(obj); err != nil {
		return nil, err
	}
	return obj, nil
}
