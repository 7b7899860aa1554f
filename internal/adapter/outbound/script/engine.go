// Package script implements the embedded scripting engine binding
// (component G): a goja JavaScript runtime exposing a `sandbox` global
// whose default/allow/deny/on/paths_allow/paths_deny/when functions mutate
// a target Policy's rule tree. Grounded on sandbox_lua.c, with Lua's
// lua_State/lua_upvalueindex pattern translated to a Go struct closing
// over the target *policy.Policy.
//
// cel-go (the teacher's own policy-expression dependency) cannot define or
// store callback functions, so it cannot serve as this DSL's engine; goja
// is adopted instead, the same choice the sentrie-sh-sentrie rule engine
// in the retrieval pack makes for embedding a scripting surface in a
// policy evaluator. cel-go is still put to work here as the expression
// language behind sandbox.when guards (see the cel subpackage).
package script

import (
	"fmt"
	"sync"

	"github.com/dop251/goja"

	"github.com/Sentinel-Gate/Sentinelgate/internal/domain/pathref"
	"github.com/Sentinel-Gate/Sentinelgate/internal/domain/policy"
	"github.com/Sentinel-Gate/Sentinelgate/internal/domain/ruleset"
)

// GuardCompiler compiles a sandbox.when guard expression into a
// ruleset.Guard. Implemented by the cel adapter; kept as an interface so
// this package does not depend on cel-go directly.
type GuardCompiler interface {
	Compile(expr string) (ruleset.Guard, error)
}

// Engine is a single goja runtime plus a registry of callback functions
// referenced by handle, the userland analogue of klua_State and Lua's
// LUA_REGISTRYINDEX. A goja Runtime is not safe for concurrent use, so
// every entry point takes mu, mirroring klua_lock/klua_unlock.
type Engine struct {
	mu       sync.Mutex
	vm       *goja.Runtime
	resolver pathref.Resolver
	guards   GuardCompiler

	registry   map[int]goja.Callable
	nextHandle int
}

// NewEngine constructs an Engine. resolver resolves path literals named in
// paths_allow/paths_deny statements; guards compiles sandbox.when
// expressions (pass nil to disable the `when` form entirely).
func NewEngine(resolver pathref.Resolver, guards GuardCompiler) *Engine {
	return &Engine{
		vm:       goja.New(),
		resolver: resolver,
		guards:   guards,
		registry: make(map[int]goja.Callable),
	}
}

// Load parses and runs script against p, installing a fresh `sandbox`
// global bound to p for the duration of the run. Grounded on
// sandbox_lua_load: a parse failure maps to policy.ErrScriptLoad, a
// runtime error during the top-level run maps to policy.ErrScriptRuntime.
func (e *Engine) Load(script string, p *policy.Policy) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	binding := &dslBinding{engine: e, policy: p}
	obj, err := binding.build(e.vm)
	if err != nil {
		return fmt.Errorf("%w: %v", policy.ErrScriptLoad, err)
	}
	if err := e.vm.Set("sandbox", obj); err != nil {
		return fmt.Errorf("%w: %v", policy.ErrScriptLoad, err)
	}

	prog, err := goja.Compile(p.Name(), script, false)
	if err != nil {
		return fmt.Errorf("%w: %v", policy.ErrScriptLoad, err)
	}

	if _, err := e.vm.RunProgram(prog); err != nil {
		return fmt.Errorf("%w: %v", policy.ErrScriptRuntime, err)
	}
	return nil
}

// register stores fn under a fresh handle and returns it, the Go
// analogue of luaL_ref(L, LUA_REGISTRYINDEX).
func (e *Engine) register(fn goja.Callable) int {
	e.nextHandle++
	handle := e.nextHandle
	e.registry[handle] = fn
	return handle
}

// Release implements ruleset.ScriptEngine: forgets a callback's registry
// entry once its last CallbackRef is released.
func (e *Engine) Release(handle int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.registry, handle)
}

// Invoke implements ruleset.ScriptEngine: calls the registered function
// identified by handle, pushing inv's rule and cred tables followed by
// one argument per entry in inv.Args (spec.md §4.G's marshalling
// contract), and interprets the return value as a boolean, the same way
// sandbox_lua_veval treats a Lua function's return as true/false rather
// than a three-way value -- callbacks can never themselves produce Defer.
func (e *Engine) Invoke(handle int, inv ruleset.Invocation) (ruleset.Verdict, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	fn, ok := e.registry[handle]
	if !ok {
		return ruleset.Deny, fmt.Errorf("%w: unknown callback handle %d", policy.ErrScriptRuntime, handle)
	}

	jsArgs := make([]goja.Value, 0, 2+len(inv.Args))
	jsArgs = append(jsArgs, e.buildRuleTable(inv.Rule))
	jsArgs = append(jsArgs, e.buildCredTable(inv.Cred))
	for _, a := range inv.Args {
		jsArgs = append(jsArgs, e.buildArgValue(a))
	}

	result, err := fn(goja.Undefined(), jsArgs...)
	if err != nil {
		return ruleset.Deny, fmt.Errorf("%w: %v", policy.ErrScriptRuntime, err)
	}
	if result.ToBoolean() {
		return ruleset.Allow, nil
	}
	return ruleset.Deny, nil
}

// buildRuleTable builds the `rule = { scope, action, subaction }` table
// spec.md §4.G pushes as the callback's first argument; a position past
// the end of rule's segments is nil, not an empty string.
func (e *Engine) buildRuleTable(rule ruleset.Name) *goja.Object {
	segs := rule.Segments()
	obj := e.vm.NewObject()
	_ = obj.Set("scope", ruleSegment(segs, 0))
	_ = obj.Set("action", ruleSegment(segs, 1))
	_ = obj.Set("subaction", ruleSegment(segs, 2))
	return obj
}

func ruleSegment(segs []string, i int) any {
	if i >= len(segs) {
		return nil
	}
	return segs[i]
}

// buildCredTable builds the `cred = { uid, euid, svuid, gid, egid, svgid,
// groups=[...] }` table spec.md §4.G pushes as the callback's second
// argument.
func (e *Engine) buildCredTable(c ruleset.Cred) *goja.Object {
	obj := e.vm.NewObject()
	_ = obj.Set("uid", c.UID)
	_ = obj.Set("euid", c.EUID)
	_ = obj.Set("svuid", c.SVUID)
	_ = obj.Set("gid", c.GID)
	_ = obj.Set("egid", c.EGID)
	_ = obj.Set("svgid", c.SVGID)
	groups := make([]any, len(c.Groups))
	for i, g := range c.Groups {
		groups[i] = g
	}
	_ = obj.Set("groups", e.vm.NewArray(groups...))
	return obj
}

// buildArgValue builds one per-format-character argument table, matching
// spec.md §4.G's fmt-to-table-shape mapping.
func (e *Engine) buildArgValue(a ruleset.Arg) goja.Value {
	switch a.Kind {
	case ruleset.ArgVnode:
		return e.buildVnodeTable(a.Vnode)
	case ruleset.ArgProcess:
		return e.buildProcessTable(a.Process)
	case ruleset.ArgInt:
		return e.vm.ToValue(a.Int)
	case ruleset.ArgSocket:
		// opaque table (currently empty), per spec.md §4.G.
		return e.vm.NewObject()
	case ruleset.ArgSockaddr:
		return e.buildSockaddrTable(a.Sockaddr)
	default:
		return goja.Undefined()
	}
}

func (e *Engine) buildVnodeTable(v *ruleset.VnodeArg) *goja.Object {
	obj := e.vm.NewObject()
	if v == nil {
		return obj
	}
	_ = obj.Set("name", v.Name)
	_ = obj.Set("type", v.Type)
	_ = obj.Set("mode", v.Mode)
	_ = obj.Set("nlink", v.Nlink)
	_ = obj.Set("uid", v.UID)
	_ = obj.Set("gid", v.GID)
	_ = obj.Set("size", v.Size)
	_ = obj.Set("atime", v.Atime.Unix())
	_ = obj.Set("mtime", v.Mtime.Unix())
	_ = obj.Set("ctime", v.Ctime.Unix())
	_ = obj.Set("birthtime", v.Birthtime.Unix())
	_ = obj.Set("blksize", v.Blksize)
	_ = obj.Set("blocks", v.Blocks)
	_ = obj.Set("ino", v.Ino)
	return obj
}

func (e *Engine) buildProcessTable(p *ruleset.ProcessArg) *goja.Object {
	obj := e.vm.NewObject()
	if p == nil {
		return obj
	}
	_ = obj.Set("pid", p.PID)
	_ = obj.Set("ppid", p.PPID)
	_ = obj.Set("nice", p.Nice)
	_ = obj.Set("comm", p.Comm)
	return obj
}

func (e *Engine) buildSockaddrTable(s *ruleset.SockaddrArg) *goja.Object {
	obj := e.vm.NewObject()
	if s == nil {
		return obj
	}
	_ = obj.Set("family", s.Family)
	switch s.Family {
	case "inet":
		_ = obj.Set("port", s.Port)
		_ = obj.Set("address", s.Address)
	case "inet6":
		_ = obj.Set("port", s.Port)
	case "unix":
		_ = obj.Set("path", s.Path)
	}
	return obj
}
