// Package pathref implements reference-counted path handles used by
// whitelist/blacklist rule nodes (component A of the rule-evaluation model).
//
// A Ref pairs the literal path text supplied by policy authors with a
// resolved file identity, so that later lookups can compare the vnode a
// kernel hook presents against the identity recorded at policy-load time
// rather than re-resolving the path string every time. Grounded on
// sandbox_path.c's sandbox_path_create/hold/destroy/isequal.
package pathref

import (
	"fmt"
	"sync/atomic"
)

// FileHandle abstracts the resolved identity of a filesystem path. In the
// original kernel module this is a held vnode pointer; in this userland
// port it is whatever the Resolver below produces, compared by Identity().
type FileHandle interface {
	// Identity returns a comparable value (suitable for ==) that uniquely
	// identifies the underlying file for the lifetime of the reference.
	Identity() any

	// Close releases any resource the handle holds open.
	Close() error
}

// Resolver turns a path string into a FileHandle. Swappable so tests can
// avoid touching the real filesystem.
type Resolver interface {
	Resolve(path string) (FileHandle, error)
}

// Ref is a reference-counted path entry, as stored in a policy's
// whitelist/blacklist path lists. The zero value is not usable; construct
// with New.
type Ref struct {
	text   string
	handle FileHandle
	refs   int32
}

// New creates a Ref with an initial reference count of one. The caller owns
// the returned Ref and must call Release when done with it.
//
// A resolve miss (the named path does not currently exist) is not an
// error: per sandbox_path_create, the Ref is still returned with its
// handle empty, usable but never matching anything until the file is
// re-resolved -- which this port, like the original, never does (spec
// open question: no re-resolution hook exists).
func New(path string, resolver Resolver) (*Ref, error) {
	if path == "" {
		return nil, fmt.Errorf("pathref: empty path")
	}
	handle, _ := resolver.Resolve(path)
	return &Ref{text: path, handle: handle, refs: 1}, nil
}

// Hold increments the reference count and returns the same Ref, mirroring
// sandbox_path_hold's pattern of returning the pointer it was given.
func (r *Ref) Hold() *Ref {
	atomic.AddInt32(&r.refs, 1)
	return r
}

// Release decrements the reference count and, if it drops to zero, closes
// the underlying handle. Safe to call concurrently from multiple holders.
// A Ref that never resolved has nothing to close.
func (r *Ref) Release() error {
	if atomic.AddInt32(&r.refs, -1) > 0 {
		return nil
	}
	if r.handle == nil {
		return nil
	}
	return r.handle.Close()
}

// Text returns the literal path string the Ref was created from.
func (r *Ref) Text() string {
	return r.text
}

// Equal reports whether two Refs carry the same path text. It does not
// compare resolved handles: two different paths naming the same file are
// not Equal (use Matches for file identity).
func (r *Ref) Equal(other *Ref) bool {
	if r == nil || other == nil {
		return r == other
	}
	return r.text == other.text
}

// Matches reports whether the resolved handle presented by a kernel hook
// identifies the same file as this Ref. A Ref that never resolved (the
// ResolveMiss case) never matches anything.
func (r *Ref) Matches(h FileHandle) bool {
	if r == nil || h == nil || r.handle == nil {
		return false
	}
	return r.handle.Identity() == h.Identity()
}
