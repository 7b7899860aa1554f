package evaluator

import "github.com/Sentinel-Gate/Sentinelgate/internal/domain/ruleset"

// KernelAdapter is the seam between a real kauth_listen_scope callback and
// this package: given the opaque arguments a kernel hook receives, it
// extracts the typed values Dispatcher needs to build spec.md §4.G's
// rule/cred/format-string marshalling. The kernel fan-out itself
// (registering with kauth, marshalling struct proc/vnode/socket pointers)
// is out of scope for this port; KernelAdapter exists so a future native
// build, or an in-process test harness, can slot a real implementation in
// without touching Dispatcher.
type KernelAdapter interface {
	// Cred returns the requesting subject's credential fields, pushed as
	// the "cred" table ahead of every callback invocation.
	Cred() ruleset.Cred

	// ProcessArg returns the format char 'p' argument: the process
	// making the request.
	ProcessArg() ruleset.ProcessArg

	// VnodeArg returns the format char 'v' argument: the vnode a vnode-
	// scoped request names.
	VnodeArg() ruleset.VnodeArg

	// SocketArg returns the format char 'o' argument.
	SocketArg() ruleset.SocketArg

	// SockaddrArg returns the format char 'a' argument.
	SockaddrArg() ruleset.SockaddrArg

	// IntArgs returns the format char 'i' arguments for rule, in the
	// order the action's format string calls for them (e.g. one value
	// for "nice"'s trailing 'i', three for "network.socket"'s "iii").
	// Dispatcher consumes them left to right as it walks the action's
	// format; a rule whose format has no 'i' never calls this.
	IntArgs(rule ruleset.Name) []int64
}
