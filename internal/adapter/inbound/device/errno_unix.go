//go:build unix

package device

import (
	"errors"
	"syscall"

	"github.com/Sentinel-Gate/Sentinelgate/internal/domain/policy"
)

// toErrno maps a policy load error to the errno value sandbox_ioctl
// returns to userland, per spec.md §7: ScriptLoadError/ScriptRuntimeError
// surface as EINVAL, allocator exhaustion as ENOMEM.
func toErrno(err error) error {
	switch {
	case errors.Is(err, policy.ErrOutOfMemory):
		return syscall.ENOMEM
	case errors.Is(err, policy.ErrScriptLoad), errors.Is(err, policy.ErrScriptRuntime), errors.Is(err, policy.ErrInvalidRuleStructure):
		return syscall.EINVAL
	default:
		return syscall.EINVAL
	}
}
