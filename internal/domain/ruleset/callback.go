package ruleset

import "sync/atomic"

// ScriptEngine is the black-box embedded scripting engine that owns
// registered callback functions. Implemented by the DSL adapter; kept
// narrow here so the domain layer never imports the scripting package.
// Mirrors sandbox_ref.c wrapping a Lua registry index.
type ScriptEngine interface {
	// Release forgets the registry entry identified by handle. Called once
	// the last CallbackRef pointing at it is released.
	Release(handle int)

	// Invoke calls the registered function identified by handle, pushing
	// inv's rule and cred tables followed by inv.Args in order (spec.md
	// §4.G's marshalling contract), and returns its verdict. Each
	// CallbackRef always invokes through the engine it was registered on
	// -- a policy owns its script engine exclusively (spec.md component
	// E), so a callback can never be routed to another policy's registry
	// by accident even when several policies sit on the same evaluation
	// stack.
	Invoke(handle int, inv Invocation) (Verdict, error)
}

// CallbackRef is a reference-counted handle to a script-side callback
// function, the userland analogue of sandbox_ref.c's thin wrapper around a
// Lua registry reference.
type CallbackRef struct {
	engine ScriptEngine
	handle int
	refs   int32
}

// NewCallbackRef wraps a registry handle with an initial reference count of
// one.
func NewCallbackRef(engine ScriptEngine, handle int) *CallbackRef {
	return &CallbackRef{engine: engine, handle: handle, refs: 1}
}

// Handle returns the opaque registry index the scripting engine uses to
// look up the function at call time.
func (c *CallbackRef) Handle() int {
	return c.handle
}

// Invoke calls the referenced function through its owning engine.
func (c *CallbackRef) Invoke(inv Invocation) (Verdict, error) {
	return c.engine.Invoke(c.handle, inv)
}

// Hold increments the reference count, used when a callback rule node is
// copied into a forked/copied policy.
func (c *CallbackRef) Hold() *CallbackRef {
	atomic.AddInt32(&c.refs, 1)
	return c
}

// Release decrements the reference count, freeing the script registry
// entry once it reaches zero.
func (c *CallbackRef) Release() {
	if atomic.AddInt32(&c.refs, -1) > 0 {
		return
	}
	c.engine.Release(c.handle)
}
