package evaluator

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sentinel-Gate/Sentinelgate/internal/domain/pathref"
	"github.com/Sentinel-Gate/Sentinelgate/internal/domain/policy"
	"github.com/Sentinel-Gate/Sentinelgate/internal/domain/ruleset"
)

// EvalCounter receives one increment per completed dispatch, labeled by
// scope and verdict. Implemented by *observability.Metrics; kept as a
// narrow interface here so the domain layer never imports Prometheus
// directly.
type EvalCounter interface {
	Inc(scope, verdict string)
}

// Dispatcher builds the dotted rule name and argument map a given
// authorization scope requires, then hands the lookup to a policy stack.
// It never decides what DEFER means for the caller -- a deferred verdict
// is returned as-is, preserving the kernel's own KAUTH_RESULT_DEFER
// semantics rather than silently promoting it to allow or deny. Dispatcher
// carries no engine reference of its own: each matched rule's callbacks
// already know which engine registered them.
//
// Tracer, Counter, and Adapter are all optional (nil-safe): a zero-value
// Dispatcher behaves exactly as it did before tracing/metrics/marshalling
// were wired in, which is what every existing test still constructs. With
// no Adapter, a matched callback still receives the "rule" table but sees
// a zero-valued "cred" table and no format-string arguments -- the same
// degraded-but-safe shape a harness with no real kernel context produces.
type Dispatcher struct {
	Tracer  trace.Tracer
	Counter EvalCounter
	Adapter KernelAdapter
}

// formatTable maps "scope.action" rule names to the ordered argument
// kinds spec.md §4.I's format string selection describes (e.g. "nice" ->
// process then integer, "bind" -> socket then sockaddr, "socket open" ->
// three integers). An action absent from this table pushes no arguments
// beyond the rule/cred tables, matching "most others -> no extra args".
// Populated at init time below with the vnode scope's uniform "v" format.
var formatTable = map[string][]ruleset.ArgKind{
	"process.nice":   {ruleset.ArgProcess, ruleset.ArgInt},
	"network.bind":   {ruleset.ArgSocket, ruleset.ArgSockaddr},
	"network.socket": {ruleset.ArgInt, ruleset.ArgInt, ruleset.ArgInt},
}

func init() {
	for _, name := range vnodeBits {
		formatTable[ScopeVnode+"."+name] = []ruleset.ArgKind{ruleset.ArgVnode}
	}
}

// marshalArgs asks d.Adapter for the credential and the typed positional
// arguments name's format calls for, in order. Returns the zero Cred and a
// nil Args slice when d.Adapter is nil or name has no entry in
// formatTable, so every caller can unconditionally fold the result into
// EvalArgs.
func (d *Dispatcher) marshalArgs(name ruleset.Name) (ruleset.Cred, []ruleset.Arg) {
	if d.Adapter == nil {
		return ruleset.Cred{}, nil
	}
	cred := d.Adapter.Cred()

	kinds, ok := formatTable[name.Scope()+"."+secondSegment(name)]
	if !ok {
		return cred, nil
	}

	var ints []int64
	intsFetched := false
	args := make([]ruleset.Arg, 0, len(kinds))
	for _, k := range kinds {
		switch k {
		case ruleset.ArgVnode:
			v := d.Adapter.VnodeArg()
			args = append(args, ruleset.Arg{Kind: k, Vnode: &v})
		case ruleset.ArgProcess:
			p := d.Adapter.ProcessArg()
			args = append(args, ruleset.Arg{Kind: k, Process: &p})
		case ruleset.ArgSocket:
			s := d.Adapter.SocketArg()
			args = append(args, ruleset.Arg{Kind: k, Socket: &s})
		case ruleset.ArgSockaddr:
			s := d.Adapter.SockaddrArg()
			args = append(args, ruleset.Arg{Kind: k, Sockaddr: &s})
		case ruleset.ArgInt:
			if !intsFetched {
				ints = d.Adapter.IntArgs(name)
				intsFetched = true
			}
			var v int64
			if len(ints) > 0 {
				v, ints = ints[0], ints[1:]
			}
			args = append(args, ruleset.Arg{Kind: k, Int: v})
		}
	}
	return cred, args
}

func secondSegment(name ruleset.Name) string {
	segs := name.Segments()
	if len(segs) < 2 {
		return ""
	}
	return segs[1]
}

// Request is the normalized shape every scope's hook reduces to before
// reaching the policy stack: a fully qualified rule name, the request
// argument fields visible to guards and callbacks, and (for path-shaped
// requests) the resolved target file handle.
type Request struct {
	Name   ruleset.Name
	Fields map[string]any
	Target pathref.FileHandle
}

func (d *Dispatcher) eval(ctx context.Context, scope string, stack *policy.Stack, req Request) (ruleset.Verdict, error) {
	if d.Tracer != nil {
		var span trace.Span
		ctx, span = d.Tracer.Start(ctx, "sandbox.evaluate", trace.WithAttributes(
			attribute.String("sandbox.rule", req.Name.String()),
		))
		defer span.End()
	}
	_ = ctx // reserved for the callback/guard path, which may itself want span propagation

	cred, args := d.marshalArgs(req.Name)
	v, err := stack.Evaluate(req.Name, policy.EvalArgs{
		Target: req.Target,
		Fields: req.Fields,
		Cred:   cred,
		Args:   args,
	})
	if d.Counter != nil {
		d.Counter.Inc(scope, v.String())
	}
	return v, err
}

// Evaluate dispatches an already-named rule directly against stack,
// bypassing the scope-specific action-code-to-name translation the typed
// methods below perform. Used by harnesses that want to drive the
// evaluator from a rule name a caller already has in hand (e.g. an
// interactive control surface), while still going through the same
// tracing/metrics path every other dispatch does.
func (d *Dispatcher) Evaluate(ctx context.Context, stack *policy.Stack, name ruleset.Name, fields map[string]any, target pathref.FileHandle) (ruleset.Verdict, error) {
	return d.eval(ctx, name.Scope(), stack, Request{Name: name, Fields: fields, Target: target})
}

// buildName joins a scope with one or two string-mapped action segments,
// skipping any that lookup() reported as unknown (empty).
func buildName(scope string, segments ...string) (ruleset.Name, error) {
	raw := scope
	for _, s := range segments {
		if s == "" {
			continue
		}
		raw += "." + s
	}
	return ruleset.ParseName(raw)
}

// System dispatches a KAUTH_SCOPE_SYSTEM-shaped request.
func (d *Dispatcher) System(ctx context.Context, stack *policy.Stack, action, reqAction int, fields map[string]any) (ruleset.Verdict, error) {
	name, err := buildName(ScopeSystem, lookup(systemActions, action), lookup(systemReqActions, reqAction))
	if err != nil {
		return ruleset.Defer, fmt.Errorf("evaluator: system action %d/%d: %w", action, reqAction, err)
	}
	return d.eval(ctx, ScopeSystem, stack, Request{Name: name, Fields: fields})
}

// Process dispatches a KAUTH_SCOPE_PROCESS-shaped request.
func (d *Dispatcher) Process(ctx context.Context, stack *policy.Stack, action int, fields map[string]any) (ruleset.Verdict, error) {
	name, err := buildName(ScopeProcess, lookup(processActions, action))
	if err != nil {
		return ruleset.Defer, fmt.Errorf("evaluator: process action %d: %w", action, err)
	}
	return d.eval(ctx, ScopeProcess, stack, Request{Name: name, Fields: fields})
}

// Network dispatches a KAUTH_SCOPE_NETWORK-shaped request, optionally
// resolving a path-shaped target (e.g. a UNIX-domain socket path) for
// whitelist/blacklist matching.
func (d *Dispatcher) Network(ctx context.Context, stack *policy.Stack, action int, fields map[string]any, target pathref.FileHandle) (ruleset.Verdict, error) {
	name, err := buildName(ScopeNetwork, lookup(networkActions, action))
	if err != nil {
		return ruleset.Defer, fmt.Errorf("evaluator: network action %d: %w", action, err)
	}
	return d.eval(ctx, ScopeNetwork, stack, Request{Name: name, Fields: fields, Target: target})
}

// Machdep dispatches a KAUTH_SCOPE_MACHDEP-shaped request.
func (d *Dispatcher) Machdep(ctx context.Context, stack *policy.Stack, action int, fields map[string]any) (ruleset.Verdict, error) {
	name, err := buildName(ScopeMachdep, lookup(machdepActions, action))
	if err != nil {
		return ruleset.Defer, fmt.Errorf("evaluator: machdep action %d: %w", action, err)
	}
	return d.eval(ctx, ScopeMachdep, stack, Request{Name: name, Fields: fields})
}

// Device dispatches a KAUTH_SCOPE_DEVICE-shaped request against an
// optionally resolved device-node target.
func (d *Dispatcher) Device(ctx context.Context, stack *policy.Stack, action int, fields map[string]any, target pathref.FileHandle) (ruleset.Verdict, error) {
	name, err := buildName(ScopeDevice, lookup(deviceActions, action))
	if err != nil {
		return ruleset.Defer, fmt.Errorf("evaluator: device action %d: %w", action, err)
	}
	return d.eval(ctx, ScopeDevice, stack, Request{Name: name, Fields: fields, Target: target})
}

// Vnode dispatches the vnode listener. rights is the KAUTH_VNODE_*
// bitmask the kernel is asking about, scanned low-to-high in the fixed
// order vnodeBits lists. If the execute bit is set the whole call defers
// unchanged without consulting the tree at all -- sandbox_vnode_listener's
// historical behavior, preserved verbatim (spec open question, not
// resolved here). Otherwise the first set bit in that order names the
// rule and the combinator runs with format "v".
func (d *Dispatcher) Vnode(ctx context.Context, stack *policy.Stack, rights int, target pathref.FileHandle, fields map[string]any) (ruleset.Verdict, error) {
	const executeBit = 1 << 2 // KAUTH_VNODE_EXECUTE, see sandbox_vnode_strmap[2]
	if rights&executeBit != 0 {
		return ruleset.Defer, nil
	}
	for i, bitName := range vnodeBits {
		if rights&(1<<uint(i)) == 0 {
			continue
		}
		name, err := ruleset.ParseName(ScopeVnode + "." + bitName)
		if err != nil {
			return ruleset.Defer, err
		}
		return d.eval(ctx, ScopeVnode, stack, Request{Name: name, Fields: fields, Target: target})
	}
	return ruleset.Defer, nil
}

// VnodeBitName returns the human-readable name of a single KAUTH_VNODE_*
// bit, for diagnostics and trace logging.
func VnodeBitName(bit int) string {
	for i, name := range vnodeBits {
		if 1<<i == bit {
			return name
		}
	}
	return fmt.Sprintf("bit_%d", bit)
}
