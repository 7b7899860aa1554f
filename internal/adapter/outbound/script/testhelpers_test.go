package script

import (
	"fmt"

	"github.com/Sentinel-Gate/Sentinelgate/internal/domain/pathref"
)

// testHandle and testResolver let script tests resolve paths.Allow/Deny
// literals without touching the filesystem.
type testHandle struct{ id string }

func (h *testHandle) Identity() any { return h.id }
func (h *testHandle) Close() error  { return nil }

type testResolver struct {
	fail map[string]bool
}

func (r *testResolver) Resolve(path string) (pathref.FileHandle, error) {
	if r.fail[path] {
		return nil, fmt.Errorf("no such file: %s", path)
	}
	return &testHandle{id: path}, nil
}
