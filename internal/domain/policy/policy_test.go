package policy

import (
	"errors"
	"testing"

	"github.com/Sentinel-Gate/Sentinelgate/internal/domain/pathref"
	"github.com/Sentinel-Gate/Sentinelgate/internal/domain/ruleset"
)

type stubHandle struct{ id string }

func (h stubHandle) Identity() any { return h.id }
func (h stubHandle) Close() error  { return nil }

type stubResolver map[string]string

func (r stubResolver) Resolve(path string) (pathref.FileHandle, error) {
	return stubHandle{id: r[path]}, nil
}

func mustName(t *testing.T, raw string) ruleset.Name {
	t.Helper()
	n, err := ruleset.ParseName(raw)
	if err != nil {
		t.Fatalf("ParseName(%q): %v", raw, err)
	}
	return n
}

func TestEvaluateDeniesByDefaultWithNoRules(t *testing.T) {
	p := New("empty")
	v, err := p.Evaluate(mustName(t, "network.socket.open"), EvalArgs{})
	if err != nil || v != ruleset.Deny {
		t.Fatalf("got (%v, %v), want (Deny, nil) -- a script with no rules still fails closed", v, err)
	}
}

func TestEvaluateTrileanFallsBackToAncestor(t *testing.T) {
	p := New("p")
	p.Tree().GetOrCreate(mustName(t, "network")).SetTrilean(ruleset.Deny, nil)

	v, err := p.Evaluate(mustName(t, "network.socket.open"), EvalArgs{})
	if err != nil || v != ruleset.Deny {
		t.Fatalf("got (%v, %v), want (Deny, nil)", v, err)
	}
}

func TestEvaluateMoreSpecificNodeWins(t *testing.T) {
	p := New("p")
	p.Tree().GetOrCreate(mustName(t, "network")).SetTrilean(ruleset.Deny, nil)
	p.Tree().GetOrCreate(mustName(t, "network.socket")).SetTrilean(ruleset.Allow, nil)

	v, _ := p.Evaluate(mustName(t, "network.socket.open"), EvalArgs{})
	if v != ruleset.Allow {
		t.Fatalf("got %v, want Allow (most specific ancestor)", v)
	}
}

// TestEvaluateClimbsPastStructuralNoneAncestor is the maintainer repro for
// spec.md §8 property 1: allow('network'); allow('network.socket.open')
// leaves network.socket as a purely structural node (created only to route
// to .open, carrying no rule kind of its own). A request for an unrelated
// sibling under network.socket must climb past that structural node to
// network's own ALLOW, not fall through to the tree's root default.
func TestEvaluateClimbsPastStructuralNoneAncestor(t *testing.T) {
	p := New("p")
	p.Tree().GetOrCreate(mustName(t, "network")).SetTrilean(ruleset.Allow, nil)
	p.Tree().GetOrCreate(mustName(t, "network.socket.open")).SetTrilean(ruleset.Allow, nil)

	v, err := p.Evaluate(mustName(t, "network.socket.foobar"), EvalArgs{})
	if err != nil || v != ruleset.Allow {
		t.Fatalf("got (%v, %v), want (Allow, nil) -- network.socket is structural and must be skipped, not treated as a deny-by-default root", v, err)
	}
}

func TestEvaluateBlacklistBeatsTrileanOnSameNode(t *testing.T) {
	p := New("p")
	node := p.Tree().GetOrCreate(mustName(t, "network.socket.open"))
	node.SetTrilean(ruleset.Allow, nil)
	resolver := stubResolver{"/etc/shadow": "inode-1"}
	ref, _ := pathref.New("/etc/shadow", resolver)
	node.Blacklist().Add(ref)

	target, _ := resolver.Resolve("/etc/shadow")
	v, err := p.Evaluate(mustName(t, "network.socket.open"), EvalArgs{Target: target})
	if err != nil || v != ruleset.Deny {
		t.Fatalf("got (%v, %v), want (Deny, nil)", v, err)
	}
}

type stubEngine struct {
	verdict ruleset.Verdict
	err     error
}

func (s stubEngine) Release(int) {}

func (s stubEngine) Invoke(handle int, inv ruleset.Invocation) (ruleset.Verdict, error) {
	return s.verdict, s.err
}

func TestEvaluateCallbackBeatsTrilean(t *testing.T) {
	p := New("p")
	node := p.Tree().GetOrCreate(mustName(t, "process.exec"))
	node.SetTrilean(ruleset.Allow, nil)
	node.AddCallback(ruleset.NewCallbackRef(stubEngine{verdict: ruleset.Deny}, 1))

	v, err := p.Evaluate(mustName(t, "process.exec"), EvalArgs{})
	if err != nil || v != ruleset.Deny {
		t.Fatalf("got (%v, %v), want (Deny, nil)", v, err)
	}
}

type capturingEngine struct {
	got ruleset.Invocation
}

func (c *capturingEngine) Release(int) {}

func (c *capturingEngine) Invoke(handle int, inv ruleset.Invocation) (ruleset.Verdict, error) {
	c.got = inv
	return ruleset.Allow, nil
}

// TestEvaluateCallbackReceivesRuleCredAndArgs exercises spec.md §4.G's
// marshalling contract at the policy layer: the rule name being evaluated,
// the credential passed in EvalArgs, and the typed positional args must
// all reach the callback's Invocation unchanged.
func TestEvaluateCallbackReceivesRuleCredAndArgs(t *testing.T) {
	p := New("p")
	node := p.Tree().GetOrCreate(mustName(t, "process.nice"))
	eng := &capturingEngine{}
	node.AddCallback(ruleset.NewCallbackRef(eng, 1))

	cred := ruleset.Cred{UID: 501, Groups: []uint32{20, 80}}
	args := []ruleset.Arg{
		{Kind: ruleset.ArgProcess, Process: &ruleset.ProcessArg{PID: 42, Comm: "sh"}},
		{Kind: ruleset.ArgInt, Int: 5},
	}
	v, err := p.Evaluate(mustName(t, "process.nice"), EvalArgs{Cred: cred, Args: args})
	if err != nil || v != ruleset.Allow {
		t.Fatalf("got (%v, %v), want (Allow, nil)", v, err)
	}
	if eng.got.Rule.String() != "process.nice" {
		t.Fatalf("callback saw rule %q, want process.nice", eng.got.Rule.String())
	}
	if eng.got.Cred.UID != 501 || len(eng.got.Cred.Groups) != 2 {
		t.Fatalf("callback saw cred %+v, want the passed-in credential", eng.got.Cred)
	}
	if len(eng.got.Args) != 2 || eng.got.Args[1].Int != 5 {
		t.Fatalf("callback saw args %+v, want the passed-in typed args", eng.got.Args)
	}
}

func TestEvaluateCallbackErrorPropagates(t *testing.T) {
	p := New("p")
	node := p.Tree().GetOrCreate(mustName(t, "process.exec"))
	boom := errors.New("boom")
	node.AddCallback(ruleset.NewCallbackRef(stubEngine{err: boom}, 1))

	_, err := p.Evaluate(mustName(t, "process.exec"), EvalArgs{})
	if !errors.Is(err, boom) {
		t.Fatalf("expected callback error to propagate, got %v", err)
	}
}

func TestEvaluateOnDenyAbortPanics(t *testing.T) {
	p := New("p")
	p.SetFlags(OnDenyAbort)
	p.Tree().GetOrCreate(mustName(t, "process.exec")).SetTrilean(ruleset.Deny, nil)

	defer func() {
		r := recover()
		sig, ok := r.(DenyAbortSignal)
		if !ok {
			t.Fatalf("expected a DenyAbortSignal panic, got %v", r)
		}
		if sig.Rule.String() != "process.exec" {
			t.Fatalf("got rule %q, want process.exec", sig.Rule.String())
		}
	}()
	p.Evaluate(mustName(t, "process.exec"), EvalArgs{})
	t.Fatal("Evaluate should have panicked")
}

func TestEvaluateOnDenyAbortDoesNotFireOnAllow(t *testing.T) {
	p := New("p")
	p.SetFlags(OnDenyAbort)
	p.Tree().GetOrCreate(mustName(t, "process.exec")).SetTrilean(ruleset.Allow, nil)

	v, err := p.Evaluate(mustName(t, "process.exec"), EvalArgs{})
	if err != nil || v != ruleset.Allow {
		t.Fatalf("got (%v, %v), want (Allow, nil)", v, err)
	}
}

func TestReleaseDestroysTreeAtZero(t *testing.T) {
	p := New("p")
	p.Tree().GetOrCreate(mustName(t, "device.open")).SetTrilean(ruleset.Allow, nil)
	held := p.Hold()

	p.Release()
	v, _ := held.Evaluate(mustName(t, "device.open"), EvalArgs{})
	if v != ruleset.Allow {
		t.Fatal("tree should survive while a hold remains")
	}

	held.Release()
	v, _ = p.Evaluate(mustName(t, "device.open"), EvalArgs{})
	if v != ruleset.Deny {
		t.Fatal("tree should be destroyed (and reset to deny-by-default) once the last hold is released")
	}
}
