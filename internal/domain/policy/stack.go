package policy

import "github.com/Sentinel-Gate/Sentinelgate/internal/domain/ruleset"

// frame is one persistent cons cell in a Stack. Frames are immutable once
// created and may be shared by multiple Stacks simultaneously (see Copy),
// so a frame is never mutated after construction.
type frame struct {
	policy *Policy
	next   *frame
}

// Stack is a credential-attached, persistent (immutable, structurally
// shared) stack of policies. Evaluation walks from the most recently
// pushed policy to the oldest, stopping at the first decisive verdict.
// Grounded on sandbox.c's sandbox_list_create/push/fork/copy/destroy.
//
// The zero value is an empty, usable Stack.
type Stack struct {
	head *frame
}

// NewStack returns an empty policy stack.
func NewStack() *Stack {
	return &Stack{}
}

// Push returns a new Stack with p prepended, taking over the caller's
// reference to p rather than adding one of its own. The receiver is left
// unmodified, so callers that kept a reference to the pre-push Stack
// continue to see the old contents -- the cons-list divergence a fork
// relies on.
func (s *Stack) Push(p *Policy) *Stack {
	return &Stack{head: &frame{policy: p, next: s.head}}
}

// Copy returns a new Stack that shares the same frame chain as s, after
// taking an additional hold on every policy reachable from it. This is the
// credential-copy/fork operation: both the original and the copy can now
// be Destroyed (or further Pushed) independently without one invalidating
// the other's view of already-pushed policies.
func (s *Stack) Copy() *Stack {
	for f := s.head; f != nil; f = f.next {
		f.policy.Hold()
	}
	return &Stack{head: s.head}
}

// Destroy releases this Stack's hold on every policy it can reach. Shared
// frame nodes are left untouched (they carry no reference count of their
// own); it is each Stack's holds on the underlying Policy objects that
// Destroy gives up.
func (s *Stack) Destroy() {
	for f := s.head; f != nil; f = f.next {
		f.policy.Release()
	}
}

// Empty reports whether the stack holds no policies.
func (s *Stack) Empty() bool {
	return s.head == nil
}

// Policies returns the stack's policies ordered most-recently-pushed
// first, mainly for diagnostics and tests.
func (s *Stack) Policies() []*Policy {
	var out []*Policy
	for f := s.head; f != nil; f = f.next {
		out = append(out, f.policy)
	}
	return out
}

// Evaluate consults every policy on the stack, most recently pushed
// first, and combines their individual verdicts the way sandbox_list_eval
// combines a credential's list of loaded sandboxes: any DENY from any
// policy wins immediately; otherwise if at least one policy voted ALLOW
// (and none denied) the result is ALLOW; if every policy deferred, the
// result is DEFER. Stacking a policy narrows what is allowed, it never
// widens it -- a later, more specific policy cannot override an earlier
// policy's DENY.
func (s *Stack) Evaluate(name ruleset.Name, args EvalArgs) (ruleset.Verdict, error) {
	hasAllow := false
	for f := s.head; f != nil; f = f.next {
		v, err := f.policy.Evaluate(name, args)
		if err != nil {
			return ruleset.Deny, err
		}
		switch v {
		case ruleset.Deny:
			return ruleset.Deny, nil
		case ruleset.Allow:
			hasAllow = true
		}
	}
	if hasAllow {
		return ruleset.Allow, nil
	}
	return ruleset.Defer, nil
}
