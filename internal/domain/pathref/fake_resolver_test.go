package pathref

type fakeHandle struct {
	id     string
	closed bool
}

func (h *fakeHandle) Identity() any { return h.id }
func (h *fakeHandle) Close() error  { h.closed = true; return nil }

// fakeResolver maps path strings directly to identities, so tests can set up
// two distinct paths that resolve to the "same file" (a hardlink analogue)
// without touching the real filesystem.
type fakeResolver struct {
	identities map[string]string
}

func newFakeResolver(identities map[string]string) *fakeResolver {
	return &fakeResolver{identities: identities}
}

func (r *fakeResolver) Resolve(path string) (FileHandle, error) {
	id, ok := r.identities[path]
	if !ok {
		id = path
	}
	return &fakeHandle{id: id}, nil
}
