package ruleset

import (
	"errors"

	"github.com/Sentinel-Gate/Sentinelgate/internal/domain/pathref"
)

var ErrTrileanRequired = errors.New("ruleset: when() requires allow()/deny()/default() to be set on the same rule first")

// Node is one entry in the rule tree, keyed by a single dotted-name
// segment. A node may simultaneously carry a trilean default, a path
// whitelist, a path blacklist, and zero or more callbacks -- the four rule
// kinds are independent optional sub-stores rather than a single bitset
// field, so that e.g. a node can hold both a blacklist and a callback
// without the combinator needing to disambiguate which "kind" it is.
type Node struct {
	segment  string
	children []*Node

	trilean *Verdict
	guard   Guard

	whitelist *pathref.List
	blacklist *pathref.List
	callbacks []*CallbackRef
}

func newNode(segment string) *Node {
	return &Node{segment: segment}
}

// HasTrilean reports whether this node carries a default-verdict rule.
func (n *Node) HasTrilean() bool {
	return n.trilean != nil
}

// Trilean returns the node's default verdict, evaluating its guard (if any)
// first. A false or erroring guard is reported as Defer with ok=false.
func (n *Node) Trilean(args map[string]any) (verdict Verdict, ok bool) {
	if n.trilean == nil {
		return Defer, false
	}
	if n.guard != nil {
		passed, err := n.guard.Eval(args)
		if err != nil || !passed {
			return Defer, false
		}
	}
	return *n.trilean, true
}

// SetTrilean installs a default verdict and optional guard, replacing any
// previous trilean rule on this node.
func (n *Node) SetTrilean(v Verdict, guard Guard) {
	vv := v
	n.trilean = &vv
	n.guard = guard
}

// AttachGuard installs a guard on this node's existing trilean rule,
// implementing the sandbox.when DSL form: `when` only ever refines a
// default/allow/deny statement already present on the same rule, it never
// creates a trilean rule by itself.
func (n *Node) AttachGuard(guard Guard) error {
	if n.trilean == nil {
		return ErrTrileanRequired
	}
	n.guard = guard
	return nil
}

// HasWhitelist reports whether this node carries a whitelist, without
// lazily allocating one.
func (n *Node) HasWhitelist() bool {
	return n.whitelist != nil
}

// HasBlacklist reports whether this node carries a blacklist, without
// lazily allocating one.
func (n *Node) HasBlacklist() bool {
	return n.blacklist != nil
}

// Whitelist lazily creates and returns the node's whitelist path list.
func (n *Node) Whitelist() *pathref.List {
	if n.whitelist == nil {
		n.whitelist = pathref.NewList()
	}
	return n.whitelist
}

// Blacklist lazily creates and returns the node's blacklist path list.
func (n *Node) Blacklist() *pathref.List {
	if n.blacklist == nil {
		n.blacklist = pathref.NewList()
	}
	return n.blacklist
}

// AddCallback registers a callback reference on this node.
func (n *Node) AddCallback(cb *CallbackRef) {
	n.callbacks = append(n.callbacks, cb)
}

// Callbacks returns the callback references registered on this node, in
// registration order.
func (n *Node) Callbacks() []*CallbackRef {
	return n.callbacks
}

// IsNone reports whether this node carries none of the four rule kinds,
// the equivalent of SANDBOX_RULETYPE_NONE: a structural node created only
// because a more specific rule needed a path to hang off of.
func (n *Node) IsNone() bool {
	return n.trilean == nil && n.whitelist == nil && n.blacklist == nil && len(n.callbacks) == 0
}

// release drops this node's holds on path lists and callback refs. Does not
// recurse into children; Tree.Destroy walks the tree and calls this on
// every node.
func (n *Node) release() {
	if n.whitelist != nil {
		n.whitelist.Release()
	}
	if n.blacklist != nil {
		n.blacklist.Release()
	}
	for _, cb := range n.callbacks {
		cb.Release()
	}
}
