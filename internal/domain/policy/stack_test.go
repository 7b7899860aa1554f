package policy

import (
	"testing"

	"github.com/Sentinel-Gate/Sentinelgate/internal/domain/ruleset"
)

func TestStackEvaluateDenyDominatesRegardlessOfOrder(t *testing.T) {
	permissive := New("permissive")
	permissive.Tree().GetOrCreate(mustName(t, "network")).SetTrilean(ruleset.Allow, nil)

	restrictive := New("restrictive")
	restrictive.Tree().GetOrCreate(mustName(t, "network")).SetTrilean(ruleset.Deny, nil)

	s := NewStack().Push(permissive).Push(restrictive)
	v, err := s.Evaluate(mustName(t, "network.socket.open"), EvalArgs{})
	if err != nil || v != ruleset.Deny {
		t.Fatalf("got (%v, %v), want (Deny, nil) -- a deny anywhere on the stack wins", v, err)
	}
}

func TestStackEvaluateFallsThroughDeferringPolicies(t *testing.T) {
	base := New("base")
	base.Tree().GetOrCreate(mustName(t, "network")).SetTrilean(ruleset.Deny, nil)

	// A policy that explicitly defers at its root (sandbox.default('defer'))
	// takes no position of its own and falls through to the rest of the
	// stack, unlike a freshly created policy, which denies by default.
	deferring := New("deferring")
	deferring.Tree().Root().SetTrilean(ruleset.Defer, nil)

	s := NewStack().Push(base).Push(deferring)
	v, _ := s.Evaluate(mustName(t, "network.socket"), EvalArgs{})
	if v != ruleset.Deny {
		t.Fatalf("expected fall-through to base policy, got %v", v)
	}
}

func TestStackCopyDivergesOnPush(t *testing.T) {
	base := New("base")
	original := NewStack().Push(base)
	cpy := original.Copy()

	extra := New("extra")
	extra.Tree().GetOrCreate(mustName(t, "device")).SetTrilean(ruleset.Deny, nil)
	pushed := cpy.Push(extra)

	if len(original.Policies()) != 1 {
		t.Fatalf("original stack mutated by push on its copy: %d policies", len(original.Policies()))
	}
	if len(pushed.Policies()) != 2 {
		t.Fatalf("expected pushed copy to have 2 policies, got %d", len(pushed.Policies()))
	}
}

func TestStackCopyIndependentDestroy(t *testing.T) {
	base := New("base")
	base.Tree().GetOrCreate(mustName(t, "device")).SetTrilean(ruleset.Allow, nil)

	original := NewStack().Push(base)
	cpy := original.Copy()

	original.Destroy()

	v, _ := cpy.Evaluate(mustName(t, "device.open"), EvalArgs{})
	if v != ruleset.Allow {
		t.Fatal("copy should still observe the policy after original is destroyed")
	}

	cpy.Destroy()
	v, _ = base.Evaluate(mustName(t, "device.open"), EvalArgs{})
	if v != ruleset.Deny {
		t.Fatal("policy should be destroyed (and reset to deny-by-default) once both stacks release it")
	}
}

func TestStackEmpty(t *testing.T) {
	s := NewStack()
	if !s.Empty() {
		t.Fatal("new stack should be empty")
	}
	v, err := s.Evaluate(mustName(t, "network.socket"), EvalArgs{})
	if err != nil || v != ruleset.Defer {
		t.Fatalf("empty stack should defer, got (%v, %v)", v, err)
	}
}
