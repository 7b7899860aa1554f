package ruleset

import (
	"errors"
	"sort"
	"sync"

	"github.com/Sentinel-Gate/Sentinelgate/internal/domain/pathref"
)

// ErrWhitelistRequiresVnode is returned by InsertWhitelist/InsertBlacklist
// when asked to attach a path list to a non-vnode-scoped rule, enforcing
// spec.md §4.D's precondition "if kind ∈ {WHITELIST, BLACKLIST} the
// rule's scope must be vnode (else reject)" (see also §8 property 4) at
// the tree level, not just by construction in the sandbox.paths_allow/
// paths_deny DSL bindings that are this invariant's only current callers.
var ErrWhitelistRequiresVnode = errors.New("ruleset: whitelist/blacklist rules are only valid on vnode-scoped rule names")

// Tree is the hierarchical rule store: a prefix tree keyed by rule-name
// segment, with ordered children and longest-prefix lookup. Grounded on
// sandbox_ruleset.c's insert/search/destroy triplet.
type Tree struct {
	mu   sync.RWMutex
	root *Node
}

// NewTree returns a rule tree whose root carries the kernel module's
// deny-by-default posture (sandbox_ruleset_create(KAUTH_RESULT_DENY)): a
// script that never calls sandbox.default() still fails closed.
func NewTree() *Tree {
	root := newNode("")
	root.SetTrilean(Deny, nil)
	return &Tree{root: root}
}

// insertChild finds or creates the child of parent keyed by segment,
// keeping children lexicographically ordered as sandbox_ruleset.c does so
// that tree dumps and iteration are deterministic.
func insertChild(parent *Node, segment string) *Node {
	i := sort.Search(len(parent.children), func(i int) bool {
		return parent.children[i].segment >= segment
	})
	if i < len(parent.children) && parent.children[i].segment == segment {
		return parent.children[i]
	}
	child := newNode(segment)
	parent.children = append(parent.children, nil)
	copy(parent.children[i+1:], parent.children[i:])
	parent.children[i] = child
	return child
}

func findChild(parent *Node, segment string) *Node {
	i := sort.Search(len(parent.children), func(i int) bool {
		return parent.children[i].segment >= segment
	})
	if i < len(parent.children) && parent.children[i].segment == segment {
		return parent.children[i]
	}
	return nil
}

// GetOrCreate walks (creating as needed) the path named by name and
// returns the terminal node, for policy-language statements (allow/deny/
// on/paths_allow/paths_deny/default) to attach rule content to.
func (t *Tree) GetOrCreate(name Name) *Node {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := t.root
	for _, seg := range name.Segments() {
		n = insertChild(n, seg)
	}
	return n
}

// InsertWhitelist returns the whitelist path list for name's node, after
// checking the vnode-scope precondition. Rejects and leaves the tree
// unchanged if name is not vnode-scoped.
func (t *Tree) InsertWhitelist(name Name) (*pathref.List, error) {
	if name.Scope() != "vnode" {
		return nil, ErrWhitelistRequiresVnode
	}
	return t.GetOrCreate(name).Whitelist(), nil
}

// InsertBlacklist is InsertWhitelist's blacklist counterpart.
func (t *Tree) InsertBlacklist(name Name) (*pathref.List, error) {
	if name.Scope() != "vnode" {
		return nil, ErrWhitelistRequiresVnode
	}
	return t.GetOrCreate(name).Blacklist(), nil
}

// Path returns every existing node along name's dotted path, from the root
// down to the deepest node that exists, in order from least specific
// (index 0, the root) to most specific (the last element). A lookup for
// "network.socket.open.tcp" when only "network.socket" has been inserted
// returns the root, the "network" node and the "network.socket" node; it
// does not fabricate deeper nodes that were never inserted.
func (t *Tree) Path(name Name) []*Node {
	t.mu.RLock()
	defer t.mu.RUnlock()
	path := []*Node{t.root}
	n := t.root
	for _, seg := range name.Segments() {
		child := findChild(n, seg)
		if child == nil {
			break
		}
		path = append(path, child)
		n = child
	}
	return path
}

// LongestPrefix returns the longest element-wise prefix of name that is a
// prefix of some inserted rule, restricted to non-NONE nodes (spec.md §8
// property 1): it walks the already-computed Path from most specific back
// to least specific and returns the first node that carries at least one
// rule kind, skipping purely structural (SANDBOX_RULETYPE_NONE) nodes
// created only to route to a deeper, more specific rule. Returns the root
// if nothing on the path carries a rule kind -- the root always qualifies,
// since it carries TRILEAN from construction onward (NewTree, and every
// subsequent `default` statement, always sets it).
//
// Grounded on sandbox_ruleset_search's recursive unwind, which re-checks
// result->type == SANDBOX_RULETYPE_NONE at every level it climbs back
// through on the way out, not just at the deepest match: a single hop to
// the root on finding one NONE node would incorrectly discard a real,
// less-specific rule sitting between the NONE node and the root.
func (t *Tree) LongestPrefix(name Name) *Node {
	path := t.Path(name)
	for i := len(path) - 1; i >= 0; i-- {
		if !path[i].IsNone() {
			return path[i]
		}
	}
	return t.root
}

// Root returns the tree's root node, which carries the ruleset-wide
// default verdict installed by a policy-language `default` statement (or
// the built-in deny-by-default posture if none was ever installed).
func (t *Tree) Root() *Node {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.root
}

// Destroy releases every node's held resources (path lists, callback
// refs), walking the tree depth-first. Called when a Policy's last
// reference is released.
func (t *Tree) Destroy() {
	t.mu.Lock()
	defer t.mu.Unlock()
	var walk func(*Node)
	walk = func(n *Node) {
		for _, c := range n.children {
			walk(c)
		}
		n.release()
	}
	walk(t.root)
	root := newNode("")
	root.SetTrilean(Deny, nil)
	t.root = root
}
