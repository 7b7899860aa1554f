package pathref

import "os"

// osHandle identifies a file by device and inode number, obtained via
// os.Stat. Two paths that are hardlinks or bind-mounts of one another
// compare equal, matching the vnode-identity semantics sandbox_path.c
// relies on.
type osHandle struct {
	dev, ino uint64
	f        *os.File
}

func (h *osHandle) Identity() any {
	return [2]uint64{h.dev, h.ino}
}

func (h *osHandle) Close() error {
	if h.f == nil {
		return nil
	}
	return h.f.Close()
}

// OSResolver resolves paths against the real filesystem.
type OSResolver struct{}

// Resolve implements Resolver.
func (OSResolver) Resolve(path string) (FileHandle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	dev, ino := statIdentity(info)
	return &osHandle{dev: dev, ino: ino, f: f}, nil
}
