package evaluator

import (
	"context"
	"testing"

	"github.com/Sentinel-Gate/Sentinelgate/internal/domain/policy"
	"github.com/Sentinel-Gate/Sentinelgate/internal/domain/ruleset"
)

func TestSystemBuildsDottedName(t *testing.T) {
	p := policy.New("p")
	p.Tree().GetOrCreate(mustParse(t, "system.mount.unmount")).SetTrilean(ruleset.Deny, nil)
	stack := policy.NewStack().Push(p)

	d := &Dispatcher{}
	// action=8 -> "mount", reqAction=7 -> "unmount"
	v, err := d.System(context.Background(), stack, 8, 7, nil)
	if err != nil || v != ruleset.Deny {
		t.Fatalf("got (%v, %v), want (Deny, nil)", v, err)
	}
}

func TestVnodeShortCircuitsOnExecuteBit(t *testing.T) {
	p := policy.New("p")
	p.Tree().GetOrCreate(mustParse(t, "vnode.execute")).SetTrilean(ruleset.Deny, nil)
	stack := policy.NewStack().Push(p)

	d := &Dispatcher{}
	const executeBit = 1 << 2
	v, err := d.Vnode(context.Background(), stack, executeBit, nil, nil)
	if err != nil || v != ruleset.Defer {
		t.Fatalf("execute bit should never consult rules, got (%v, %v)", v, err)
	}
}

func TestVnodeEvaluatesFirstSetBitWhenExecuteAbsent(t *testing.T) {
	p := policy.New("p")
	p.Tree().GetOrCreate(mustParse(t, "vnode.read_data")).SetTrilean(ruleset.Deny, nil)
	stack := policy.NewStack().Push(p)

	d := &Dispatcher{}
	const readDataBit = 1 << 0
	v, err := d.Vnode(context.Background(), stack, readDataBit, nil, nil)
	if err != nil || v != ruleset.Deny {
		t.Fatalf("got (%v, %v), want (Deny, nil)", v, err)
	}
}

func TestDispatcherEvaluateGeneric(t *testing.T) {
	p := policy.New("p")
	p.Tree().GetOrCreate(mustParse(t, "process.fork")).SetTrilean(ruleset.Allow, nil)
	stack := policy.NewStack().Push(p)

	d := &Dispatcher{}
	v, err := d.Evaluate(context.Background(), stack, mustParse(t, "process.fork"), nil, nil)
	if err != nil || v != ruleset.Allow {
		t.Fatalf("got (%v, %v), want (Allow, nil)", v, err)
	}
}

func TestVnodeBitName(t *testing.T) {
	if got := VnodeBitName(1 << 2); got != "execute" {
		t.Fatalf("VnodeBitName(execute) = %q", got)
	}
}

func mustParse(t *testing.T, raw string) ruleset.Name {
	t.Helper()
	n, err := ruleset.ParseName(raw)
	if err != nil {
		t.Fatalf("ParseName: %v", err)
	}
	return n
}
