// Package device implements the userland analogue of the character
// device and three ioctl requests spec.md §6 sketches but places out of
// scope for the kernel module itself: VERSION, SETSPEC, and NLISTS. A
// Device binds one credential to one script engine and exposes the three
// requests as plain Go methods, so the rest of the module is exercisable
// end-to-end without a real /dev/sandbox node.
package device

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sentinel-Gate/Sentinelgate/internal/domain/credential"
	"github.com/Sentinel-Gate/Sentinelgate/internal/domain/evaluator"
	"github.com/Sentinel-Gate/Sentinelgate/internal/domain/pathref"
	"github.com/Sentinel-Gate/Sentinelgate/internal/domain/policy"
	"github.com/Sentinel-Gate/Sentinelgate/internal/domain/ruleset"
)

// protocolVersion is returned by VERSION. spec.md §6 fixes it at 1.
const protocolVersion = 1

// ScriptLoader parses and runs a policy script against a freshly created
// Policy, installing whatever rules it declares. Implemented by
// script.Engine; named here so this package does not import goja
// directly.
type ScriptLoader interface {
	Load(script string, p *policy.Policy) error
}

// Device is one open handle onto the sandbox control surface: a
// credential whose policy stack SETSPEC pushes onto, and the script
// engine SETSPEC installs through. Grounded on secmodel_sandbox.c's
// sandbox_ioctl dispatch, with KAUTH_CRED_INIT's device-open side effect
// folded into NewDevice.
type Device struct {
	cred   *credential.Credential
	engine ScriptLoader
	logger *slog.Logger
	tracer trace.Tracer
	disp   *evaluator.Dispatcher

	nextPolicyID int
}

// NewDevice opens a Device over a fresh credential, the analogue of a
// process opening /dev/sandbox for the first time. logger and tracer may
// be nil; a nil logger discards, a nil tracer records nothing.
func NewDevice(engine ScriptLoader, logger *slog.Logger, tracer trace.Tracer) *Device {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Device{
		cred:   credential.Init(),
		engine: engine,
		logger: logger,
		tracer: tracer,
		disp:   &evaluator.Dispatcher{Tracer: tracer},
	}
}

// SetCounter attaches the evaluator's per-verdict metrics sink, used by
// Evaluate. Optional: a Device with no counter attached still evaluates
// correctly, it just doesn't record anything.
func (d *Device) SetCounter(counter evaluator.EvalCounter) {
	d.disp.Counter = counter
}

// SetAdapter attaches the kernel-hook-shaped argument source Evaluate uses
// to build spec.md §4.G's cred table and format-string arguments for a
// matched callback. Optional: a Device with no adapter attached still
// evaluates correctly, a matched callback just sees a zero-valued cred and
// no typed arguments, the same degraded-but-safe shape described on
// Dispatcher.
func (d *Device) SetAdapter(adapter evaluator.KernelAdapter) {
	d.disp.Adapter = adapter
}

// Evaluate drives the bound credential's policy stack against a rule name
// the caller already has in hand, the harness-facing entry point onto the
// dispatcher's generic evaluation path (spec.md §4.H's combinator),
// without needing to reconstruct one of the typed kernel scope calls.
func (d *Device) Evaluate(ctx context.Context, name ruleset.Name, fields map[string]any, target pathref.FileHandle) (ruleset.Verdict, error) {
	return d.disp.Evaluate(ctx, d.cred.Stack(), name, fields, target)
}

// Credential exposes the device's bound credential, for a harness that
// wants to drive Evaluator dispatches against the same stack SETSPEC
// populates.
func (d *Device) Credential() *credential.Credential {
	return d.cred
}

// Version implements the VERSION ioctl: returns the protocol version the
// control surface speaks.
func (d *Device) Version() int {
	return protocolVersion
}

// SetSpec implements the SETSPEC ioctl: loads script as a new policy,
// applies flags, and pushes it onto the bound credential's stack.
// Mirrors sandbox_ioctl's SANDBOX_SETSPEC case: a load failure is returned
// as the errno toErrno maps it to (ENOMEM for policy.ErrOutOfMemory,
// EINVAL otherwise) and never partially installs a policy.
func (d *Device) SetSpec(ctx context.Context, script string, flags policy.Flags) error {
	if d.tracer != nil {
		var span trace.Span
		ctx, span = d.tracer.Start(ctx, "sandbox.setspec", trace.WithAttributes(
			attribute.Int64("sandbox.flags", int64(flags)),
		))
		defer span.End()
	}
	_ = ctx

	d.nextPolicyID++
	name := fmt.Sprintf("setspec-%d", d.nextPolicyID)

	p := policy.New(name)
	if err := d.engine.Load(script, p); err != nil {
		p.Release()
		d.logger.Error("setspec: script load failed", "policy", name, "error", err)
		return toErrno(err)
	}
	p.SetFlags(flags)

	d.cred.Push(p)
	d.logger.Info("setspec: policy installed", "policy", name, "flags", flags)
	return nil
}

// NumLists implements the NLISTS ioctl: the process-wide count of
// credentials currently carrying an attached policy stack. Per spec.md
// §5, this is a diagnostic counter and need not be strictly consistent
// with any single Device's view.
func (d *Device) NumLists() int {
	return int(credential.LiveCount())
}

// Close releases the device's bound credential, the analogue of the last
// close() on /dev/sandbox triggering KAUTH_CRED_FREE.
func (d *Device) Close() {
	d.cred.Free()
}
