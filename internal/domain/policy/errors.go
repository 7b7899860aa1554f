package policy

import "errors"

// Sentinel errors surfaced by policy evaluation and script loading. Wrapped
// with %w so callers can errors.Is against them while still getting a
// descriptive message.
var (
	// ErrScriptLoad is returned when a policy script fails to parse/compile.
	ErrScriptLoad = errors.New("policy: script load failed")

	// ErrScriptRuntime is returned when a loaded script raises, either
	// while running a top-level statement or inside a registered callback
	// at call time (Policy.Evaluate then returns DENY together with it).
	ErrScriptRuntime = errors.New("policy: script runtime error")

	// ErrOutOfMemory is returned when the scripting engine's allocator
	// reports exhaustion, the userland analogue of the kernel module's
	// LUA_ERRMEM handling.
	ErrOutOfMemory = errors.New("policy: script engine out of memory")

	// ErrInvalidRuleStructure is returned when a DSL statement names a
	// malformed rule (empty name, empty segment, conflicting arguments).
	ErrInvalidRuleStructure = errors.New("policy: invalid rule structure")
)
