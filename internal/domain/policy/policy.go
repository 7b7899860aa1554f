// Package policy implements the policy (component E) and policy stack
// (component F) abstractions, along with the per-policy rule combinator
// (component H) that reduces the four rule kinds stored on a matched node
// chain into a single ALLOW/DENY/DEFER verdict. Grounded on sandbox.c's
// sandbox_create/hold/destroy and sandbox_veval/sandbox_list_eval.
package policy

import (
	"sync/atomic"

	"github.com/Sentinel-Gate/Sentinelgate/internal/domain/pathref"
	"github.com/Sentinel-Gate/Sentinelgate/internal/domain/ruleset"
)

// EvalArgs bundles everything a single rule lookup needs: the resolved
// file handle for path-based rules (nil if the request isn't path-shaped),
// the flattened argument map handed to guards (sandbox.when/CEL, which see
// a single "args" map, see the cel adapter), and the requesting
// credential plus typed positional arguments spec.md §4.G's marshalling
// contract pushes to a matched callback. Each matched node's own
// callbacks carry a reference to the engine that registered them
// (ruleset.CallbackRef.Invoke), so EvalArgs itself never needs to name a
// script engine.
type EvalArgs struct {
	Target FileHandleOrNil
	Fields map[string]any
	Cred   ruleset.Cred
	Args   []ruleset.Arg
}

// FileHandleOrNil is pathref.FileHandle, named for clarity at call sites
// where the value is frequently absent.
type FileHandleOrNil = pathref.FileHandle

// Flags is the bitset recognized on a Policy, mirroring sandbox.c's
// SANDBOX_FLAG_* constants.
type Flags uint32

// OnDenyAbort is the one flag bit spec.md recognizes: when set, a DENY
// verdict from this policy delivers an uncatchable termination signal to
// the requesting task instead of just being returned as a verdict.
const OnDenyAbort Flags = 1 << 0

// DenyAbortSignal is panicked by Evaluate when a policy carrying
// OnDenyAbort produces a DENY verdict. It is the userland analogue of the
// kernel module delivering SIGKILL to the current process: "uncatchable"
// here means the panic is not meant to be recovered locally -- callers at
// the kernel-adapter boundary (spec.md's out-of-scope collaborator) are
// expected to recover it only to turn it into whatever terminates their
// equivalent of the requesting task (os.Exit, closing a worker's done
// channel, etc.), never to swallow it and continue.
type DenyAbortSignal struct {
	Rule ruleset.Name
}

func (s DenyAbortSignal) Error() string {
	return "policy: ON_DENY_ABORT fired for rule " + s.Rule.String()
}

// Policy is a named, reference-counted rule tree: one script's worth of
// allow/deny/on/paths_allow/paths_deny/default statements. Construct with
// New; the creator's reference must be released exactly once, typically
// via Stack.Push/Destroy.
type Policy struct {
	name  string
	tree  *ruleset.Tree
	flags Flags
	refs  int32
}

// New creates a Policy with an initial reference count of one and no
// flags set.
func New(name string) *Policy {
	return &Policy{name: name, tree: ruleset.NewTree(), refs: 1}
}

// SetFlags installs flags on the policy, read by Evaluate on every call.
// Used by the SETSPEC installation path (spec.md §6) to apply the flags
// bit supplied alongside the script text.
func (p *Policy) SetFlags(f Flags) {
	p.flags = f
}

// Flags returns the policy's currently installed flag bits.
func (p *Policy) Flags() Flags {
	return p.flags
}

// Name returns the identifier the policy was created with (typically the
// script's source path or a synthetic name for inline scripts).
func (p *Policy) Name() string {
	return p.name
}

// Tree exposes the underlying rule tree so the DSL adapter can populate it
// while the script runs.
func (p *Policy) Tree() *ruleset.Tree {
	return p.tree
}

// Hold increments the reference count and returns the same Policy.
func (p *Policy) Hold() *Policy {
	atomic.AddInt32(&p.refs, 1)
	return p
}

// Release decrements the reference count, destroying the rule tree (and
// transitively every path list and callback reference it holds) once the
// count reaches zero.
func (p *Policy) Release() {
	if atomic.AddInt32(&p.refs, -1) > 0 {
		return
	}
	p.tree.Destroy()
}

// Evaluate finds name's longest-prefix existing node and combines whatever
// rule kinds it carries -- trilean, blacklist, callbacks, whitelist, in
// that order -- into a single verdict. Purely structural nodes
// (SANDBOX_RULETYPE_NONE: created only to give a more specific rule
// somewhere to hang off of) are skipped: the nearest ancestor that carries
// a rule kind is used, and the root (with its default verdict) only when
// no such ancestor exists. Grounded on sandbox.c's sandbox_veval:
// a DENY from any kind short-circuits immediately; an ALLOW records that
// the request has at least one affirmative vote and evaluation continues;
// reaching the end with at least one such vote and no denial allows the
// request, otherwise it defers.
//
// A callback that fails to run fails the request closed: Evaluate returns
// DENY together with the callback's error, and the callbacks after it are
// not run. Nothing in this package logs that error; it reaches the caller
// (and Stack.Evaluate passes it on) as the second return value.
func (p *Policy) Evaluate(name ruleset.Name, args EvalArgs) (ruleset.Verdict, error) {
	v, err := p.evaluate(name, args)
	if v == ruleset.Deny && p.flags&OnDenyAbort != 0 {
		panic(DenyAbortSignal{Rule: name})
	}
	return v, err
}

func (p *Policy) evaluate(name ruleset.Name, args EvalArgs) (ruleset.Verdict, error) {
	// LongestPrefix already restricts its answer to non-NONE nodes
	// (climbing back through any purely structural ancestors), so the
	// node it returns is always ready to evaluate directly.
	node := p.tree.LongestPrefix(name)

	hasAllow := false

	if v, ok := node.Trilean(args.Fields); ok {
		if v == ruleset.Deny {
			return ruleset.Deny, nil
		}
		if v == ruleset.Allow {
			hasAllow = true
		}
	}

	if args.Target != nil && node.HasBlacklist() {
		if node.Blacklist().Contains(args.Target) {
			return ruleset.Deny, nil
		}
		hasAllow = true
	}

	invocation := ruleset.Invocation{Rule: name, Cred: args.Cred, Args: args.Args}
	for _, cb := range node.Callbacks() {
		v, err := cb.Invoke(invocation)
		if err != nil {
			return ruleset.Deny, err
		}
		if v == ruleset.Deny {
			return ruleset.Deny, nil
		}
		if v == ruleset.Allow {
			hasAllow = true
		}
	}

	if args.Target != nil && node.HasWhitelist() {
		if node.Whitelist().Contains(args.Target) {
			return ruleset.Allow, nil
		}
		return ruleset.Deny, nil
	}

	if hasAllow {
		return ruleset.Allow, nil
	}
	return ruleset.Defer, nil
}
