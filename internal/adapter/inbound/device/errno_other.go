//go:build !unix

package device

import (
	"errors"

	"github.com/Sentinel-Gate/Sentinelgate/internal/domain/policy"
)

// ErrInvalid and ErrNoMem are the portable fallback sentinels used on
// platforms without syscall.EINVAL/ENOMEM (spec.md §7's "portable
// fallback sentinel otherwise").
var (
	ErrInvalid = errors.New("device: invalid script or flags")
	ErrNoMem   = errors.New("device: script engine out of memory")
)

func toErrno(err error) error {
	if errors.Is(err, policy.ErrOutOfMemory) {
		return ErrNoMem
	}
	return ErrInvalid
}
