// Package credential implements the credential-attached policy stack glue
// described by the kauth hooks in secmodel_sandbox.c
// (KAUTH_CRED_COPY/FORK/FREE/INIT): every process credential carries its
// own policy Stack, inherited across fork and shared across credential
// copies until the last reference is released.
package credential

import (
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/Sentinel-Gate/Sentinelgate/internal/domain/policy"
)

// liveCount is the process-wide diagnostic counter spec.md §5 and §6
// describe ("the global count of live stacks is a diagnostic counter and
// need not be strictly consistent" / the NLISTS device request). It is
// incremented on Init and Copy (and so Fork) and decremented on Free;
// Attach and Push never touch it, since they operate on a stack that is
// already live.
var liveCount int64

// LiveCount returns the number of credentials currently carrying an
// attached (not yet freed) policy stack, for the NLISTS external
// interface (spec.md §6).
func LiveCount() int64 {
	return atomic.LoadInt64(&liveCount)
}

// Credential pairs a process credential identity with its attached policy
// stack. The UUID exists purely for log correlation across attach/copy/
// fork/free events; it plays no role in evaluation.
type Credential struct {
	ID    uuid.UUID
	stack *policy.Stack
}

// Init attaches a fresh, empty policy stack to a newly created credential,
// the userland analogue of the KAUTH_CRED_INIT hook.
func Init() *Credential {
	atomic.AddInt64(&liveCount, 1)
	return &Credential{ID: uuid.New(), stack: policy.NewStack()}
}

// Stack returns the credential's attached policy stack.
func (c *Credential) Stack() *policy.Stack {
	return c.stack
}

// Attach replaces the credential's stack outright, destroying the stack it
// previously carried.
func (c *Credential) Attach(s *policy.Stack) {
	if c.stack != nil {
		c.stack.Destroy()
	}
	c.stack = s
}

// Push layers a new policy on top of the credential's existing stack; it
// is what the SETSPEC external interface uses to install a loaded policy.
// policy.Stack.Push is itself persistent, so this changes only which stack
// this Credential points at, not any stack another Credential may still
// be holding.
func (c *Credential) Push(p *policy.Policy) {
	c.stack = c.stack.Push(p)
}

// Copy produces a new Credential that shares the same policy stack
// contents as c, the userland analogue of KAUTH_CRED_COPY: both
// credentials see the same policies until one of them pushes or re-attaches.
func (c *Credential) Copy() *Credential {
	atomic.AddInt64(&liveCount, 1)
	return &Credential{ID: uuid.New(), stack: c.stack.Copy()}
}

// Fork is identical to Copy at the credential layer: NetBSD's kauth
// dispatches KAUTH_CRED_FORK and KAUTH_CRED_COPY to the same secmodel
// handler, and so does this port.
func (c *Credential) Fork() *Credential {
	return c.Copy()
}

// Free releases the credential's hold on its policy stack, the userland
// analogue of KAUTH_CRED_FREE. The credential must not be used afterward.
func (c *Credential) Free() {
	c.stack.Destroy()
	c.stack = nil
	atomic.AddInt64(&liveCount, -1)
}
