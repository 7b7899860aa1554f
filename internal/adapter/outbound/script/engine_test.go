package script

import (
	"errors"
	"sync"
	"testing"

	"go.uber.org/goleak"

	"github.com/Sentinel-Gate/Sentinelgate/internal/domain/policy"
	"github.com/Sentinel-Gate/Sentinelgate/internal/domain/ruleset"
)

// fakeGuard always returns fixed so sandbox.when tests don't need cel-go.
type fakeGuard struct {
	pass bool
	err  error
}

func (g *fakeGuard) Eval(map[string]any) (bool, error) { return g.pass, g.err }

type fakeCompiler struct {
	guard *fakeGuard
	err   error
}

func (c *fakeCompiler) Compile(expr string) (ruleset.Guard, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.guard, nil
}

func mustParseName(t *testing.T, raw string) ruleset.Name {
	t.Helper()
	n, err := ruleset.ParseName(raw)
	if err != nil {
		t.Fatalf("ParseName(%q): %v", raw, err)
	}
	return n
}

func TestLoadDefaultAllowDeny(t *testing.T) {
	e := NewEngine(&testResolver{}, nil)
	p := policy.New("demo")

	script := `
		sandbox.default("deny");
		sandbox.allow("process.fork");
		sandbox.deny("process.exec");
	`
	if err := e.Load(script, p); err != nil {
		t.Fatalf("Load: %v", err)
	}

	root := p.Tree().Root()
	if v, ok := root.Trilean(nil); !ok || v != ruleset.Deny {
		t.Fatalf("expected root default deny, got (%v, %v)", v, ok)
	}

	fork := p.Tree().GetOrCreate(mustParseName(t, "process.fork"))
	if v, ok := fork.Trilean(nil); !ok || v != ruleset.Allow {
		t.Fatalf("expected process.fork allow, got (%v, %v)", v, ok)
	}

	exec := p.Tree().GetOrCreate(mustParseName(t, "process.exec"))
	if v, ok := exec.Trilean(nil); !ok || v != ruleset.Deny {
		t.Fatalf("expected process.exec deny, got (%v, %v)", v, ok)
	}
}

func TestLoadSyntaxErrorWrapsScriptLoad(t *testing.T) {
	e := NewEngine(&testResolver{}, nil)
	p := policy.New("demo")

	err := e.Load(`this is not valid js {{{`, p)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, policy.ErrScriptLoad) {
		t.Fatalf("expected ErrScriptLoad-wrapped error, got %v", err)
	}
}

func TestOnRegistersCallbackInvokedThroughEngine(t *testing.T) {
	e := NewEngine(&testResolver{}, nil)
	p := policy.New("demo")

	script := `
		sandbox.on("network.connect", function(rule, cred, port) {
			return rule.scope == "network" && port == 22;
		});
	`
	if err := e.Load(script, p); err != nil {
		t.Fatalf("Load: %v", err)
	}

	node := p.Tree().GetOrCreate(mustParseName(t, "network.connect"))
	cbs := node.Callbacks()
	if len(cbs) != 1 {
		t.Fatalf("expected 1 callback, got %d", len(cbs))
	}

	rule := mustParseName(t, "network.connect")
	v, err := e.Invoke(cbs[0].Handle(), ruleset.Invocation{
		Rule: rule,
		Args: []ruleset.Arg{{Kind: ruleset.ArgInt, Int: 22}},
	})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if v != ruleset.Allow {
		t.Fatalf("expected Allow for matching port, got %v", v)
	}

	v, err = e.Invoke(cbs[0].Handle(), ruleset.Invocation{
		Rule: rule,
		Args: []ruleset.Arg{{Kind: ruleset.ArgInt, Int: 80}},
	})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if v != ruleset.Deny {
		t.Fatalf("expected Deny for non-matching port, got %v", v)
	}
}

// TestConcurrentInvokeAndReleaseNoGoroutineLeak drives Invoke against the
// same registered callback from many goroutines at once, then Releases it
// once they have all finished: e.mu must fully serialize access to the
// goja runtime and registry map without leaving any goroutine parked on it.
func TestConcurrentInvokeAndReleaseNoGoroutineLeak(t *testing.T) {
	defer goleak.VerifyNone(t)

	e := NewEngine(&testResolver{}, nil)
	p := policy.New("demo")
	if err := e.Load(`sandbox.on("network.connect", function(args) { return true; });`, p); err != nil {
		t.Fatalf("Load: %v", err)
	}
	node := p.Tree().GetOrCreate(mustParseName(t, "network.connect"))
	handle := node.Callbacks()[0].Handle()
	inv := ruleset.Invocation{Rule: mustParseName(t, "network.connect")}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = e.Invoke(handle, inv)
		}()
	}
	wg.Wait()
	e.Release(handle)
}

func TestReleaseForgetsCallbackHandle(t *testing.T) {
	e := NewEngine(&testResolver{}, nil)
	p := policy.New("demo")

	if err := e.Load(`sandbox.on("device.open", function(args) { return true; });`, p); err != nil {
		t.Fatalf("Load: %v", err)
	}
	node := p.Tree().GetOrCreate(mustParseName(t, "device.open"))
	handle := node.Callbacks()[0].Handle()

	e.Release(handle)
	if _, err := e.Invoke(handle, ruleset.Invocation{}); err == nil {
		t.Fatal("expected error invoking a released handle")
	}
}
