package pathref

import "sync"

// List is an ordered, concurrency-safe collection of path references, the
// userland equivalent of the kernel module's SLIST-based path lists
// (sandbox_path_list_add/remove/eval in sandbox_path.c).
type List struct {
	mu    sync.RWMutex
	paths []*Ref
}

// NewList returns an empty List.
func NewList() *List {
	return &List{}
}

// Add appends ref to the list. The list takes ownership of the hold passed
// in; callers should not Release ref themselves after a successful Add.
func (l *List) Add(ref *Ref) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.paths = append(l.paths, ref)
}

// Contains reports whether any entry in the list matches the resolved file
// handle, the core of a whitelist/blacklist evaluation.
func (l *List) Contains(h FileHandle) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, p := range l.paths {
		if p.Matches(h) {
			return true
		}
	}
	return false
}

// Len reports the number of entries currently held.
func (l *List) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.paths)
}

// Texts returns the literal path strings in insertion order, mainly for
// diagnostics and tests.
func (l *List) Texts() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, len(l.paths))
	for i, p := range l.paths {
		out[i] = p.Text()
	}
	return out
}

// Release drops the list's hold on every entry it contains. Called when the
// owning rule node (and transitively its policy) is destroyed.
func (l *List) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, p := range l.paths {
		_ = p.Release()
	}
	l.paths = nil
}
