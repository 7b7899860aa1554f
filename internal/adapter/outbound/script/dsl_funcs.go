package script

import (
	"github.com/dop251/goja"

	"github.com/Sentinel-Gate/Sentinelgate/internal/domain/pathref"
	"github.com/Sentinel-Gate/Sentinelgate/internal/domain/ruleset"
)

func (b *dslBinding) vm() *goja.Runtime { return b.engine.vm }

func (b *dslBinding) argError(msg string) goja.Value {
	panic(b.vm().NewTypeError(msg))
}

// defaultFn implements sandbox.default('allow' | 'deny' | 'defer'),
// installing the ruleset-wide fallback verdict on the tree's root node.
// Grounded on sandbox_lua_default.
func (b *dslBinding) defaultFn(call goja.FunctionCall) goja.Value {
	if len(call.Arguments) != 1 {
		return b.argError("sandbox.default: wrong number of arguments")
	}
	v, err := parseVerdict(call.Arguments[0].String())
	if err != nil {
		return b.argError("sandbox.default: " + err.Error())
	}
	b.policy.Tree().Root().SetTrilean(v, nil)
	return goja.Undefined()
}

// allowFn implements sandbox.allow('foo.bar.baz'). Grounded on
// sandbox_lua_allow.
func (b *dslBinding) allowFn(call goja.FunctionCall) goja.Value {
	return b.setTrilean(call, ruleset.Allow)
}

// denyFn implements sandbox.deny('foo.bar.baz'). Grounded on
// sandbox_lua_deny.
func (b *dslBinding) denyFn(call goja.FunctionCall) goja.Value {
	return b.setTrilean(call, ruleset.Deny)
}

func (b *dslBinding) setTrilean(call goja.FunctionCall, v ruleset.Verdict) goja.Value {
	if len(call.Arguments) != 1 {
		return b.argError("wrong number of arguments")
	}
	name, err := ruleset.ParseName(call.Arguments[0].String())
	if err != nil {
		return b.argError("invalid rule name: " + err.Error())
	}
	b.policy.Tree().GetOrCreate(name).SetTrilean(v, nil)
	return goja.Undefined()
}

// onFn implements sandbox.on('foo.bar.baz', function(rule, cred, ...args) {...}),
// registering the function in the engine's callback registry and
// attaching a CallbackRef to the named rule node. Grounded on
// sandbox_lua_on.
func (b *dslBinding) onFn(call goja.FunctionCall) goja.Value {
	if len(call.Arguments) != 2 {
		return b.argError("sandbox.on: wrong number of arguments")
	}
	name, err := ruleset.ParseName(call.Arguments[0].String())
	if err != nil {
		return b.argError("sandbox.on: invalid rule name: " + err.Error())
	}
	fn, ok := goja.AssertFunction(call.Arguments[1])
	if !ok {
		return b.argError("sandbox.on: second argument must be a function")
	}

	handle := b.engine.register(fn)
	cb := ruleset.NewCallbackRef(b.engine, handle)
	b.policy.Tree().GetOrCreate(name).AddCallback(cb)
	return goja.Undefined()
}

// pathsAllowFn implements sandbox.paths_allow('execute', ['/bin/sh', ...]),
// resolving every listed path and adding it to the vnode.<action> rule's
// whitelist. Grounded on sandbox_lua_paths_allow.
func (b *dslBinding) pathsAllowFn(call goja.FunctionCall) goja.Value {
	return b.pathsFn(call, (*ruleset.Tree).InsertWhitelist)
}

// pathsDenyFn implements sandbox.paths_deny('execute', [...]), the
// blacklist counterpart. Grounded on sandbox_lua_paths_deny.
func (b *dslBinding) pathsDenyFn(call goja.FunctionCall) goja.Value {
	return b.pathsFn(call, (*ruleset.Tree).InsertBlacklist)
}

func (b *dslBinding) pathsFn(call goja.FunctionCall, insert func(*ruleset.Tree, ruleset.Name) (*pathref.List, error)) goja.Value {
	if len(call.Arguments) != 2 {
		return b.argError("wrong number of arguments")
	}
	action := call.Arguments[0].String()
	if action == "" {
		return b.argError("action name must have length > 0")
	}

	obj := call.Arguments[1].ToObject(b.vm())
	var paths []string
	for _, key := range obj.Keys() {
		paths = append(paths, obj.Get(key).String())
	}

	name, err := ruleset.ParseName("vnode." + action)
	if err != nil {
		return b.argError(err.Error())
	}
	// insert always rejects a non-vnode name; the "vnode."+action prefix
	// above means this can never actually fire from the DSL surface, but
	// InsertWhitelist/InsertBlacklist enforce spec.md §4.D's precondition
	// regardless of caller.
	list, err := insert(b.policy.Tree(), name)
	if err != nil {
		return b.argError(err.Error())
	}
	for _, p := range paths {
		ref, err := pathref.New(p, b.engine.resolver)
		if err != nil {
			return b.argError("invalid path " + p + ": " + err.Error())
		}
		list.Add(ref)
	}
	return goja.Undefined()
}

// whenFn implements sandbox.when('foo.bar.baz', celExpression), attaching
// a guard to the rule's existing trilean value. Not part of the original
// sandbox_lua.c surface; see the cel subpackage and SPEC_FULL's sandbox.when
// design note for why this form exists.
func (b *dslBinding) whenFn(call goja.FunctionCall) goja.Value {
	if b.engine.guards == nil {
		return b.argError("sandbox.when: guard expressions are not enabled")
	}
	if len(call.Arguments) != 2 {
		return b.argError("sandbox.when: wrong number of arguments")
	}
	name, err := ruleset.ParseName(call.Arguments[0].String())
	if err != nil {
		return b.argError("sandbox.when: invalid rule name: " + err.Error())
	}
	guard, err := b.engine.guards.Compile(call.Arguments[1].String())
	if err != nil {
		return b.argError("sandbox.when: " + err.Error())
	}

	node := b.policy.Tree().GetOrCreate(name)
	if err := node.AttachGuard(guard); err != nil {
		return b.argError("sandbox.when: " + err.Error())
	}
	return goja.Undefined()
}

func parseVerdict(s string) (ruleset.Verdict, error) {
	switch s {
	case "allow":
		return ruleset.Allow, nil
	case "deny":
		return ruleset.Deny, nil
	case "defer":
		return ruleset.Defer, nil
	default:
		return ruleset.Defer, errInvalidVerdict
	}
}
