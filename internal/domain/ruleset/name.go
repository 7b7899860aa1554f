// Package ruleset implements the hierarchical rule store: dotted rule
// names (component C), the callback reference wrapper (component B), and
// the prefix tree of rule nodes with longest-prefix lookup (component D).
// Grounded on sandbox_rule.c (name parsing) and sandbox_ruleset.c (tree
// insert/search/destroy).
package ruleset

import (
	"errors"
	"strings"
)

// ErrEmptyName is returned when a rule name has no segments at all.
var ErrEmptyName = errors.New("ruleset: empty rule name")

// Name is a parsed dotted rule name such as "network.socket.open". Segments
// are kept in order; the zero value is not meaningful, use ParseName.
type Name struct {
	raw      string
	segments []string
}

// ParseName splits a dotted rule name into segments, mirroring
// sandbox_rule_parse's validation that a name is non-empty and contains no
// empty segments (e.g. "network..open" is rejected).
func ParseName(raw string) (Name, error) {
	if raw == "" {
		return Name{}, ErrEmptyName
	}
	segments := strings.Split(raw, ".")
	for _, s := range segments {
		if s == "" {
			return Name{}, errors.New("ruleset: empty segment in rule name " + raw)
		}
	}
	return Name{raw: raw, segments: segments}, nil
}

// String returns the original dotted representation.
func (n Name) String() string {
	return n.raw
}

// Segments returns the dot-separated components, e.g.
// ["network","socket","open"].
func (n Name) Segments() []string {
	return n.segments
}

// Scope returns the first segment, identifying which top-level authorization
// scope (system, process, network, machdep, device, vnode, ...) the
// rule belongs to.
func (n Name) Scope() string {
	if len(n.segments) == 0 {
		return ""
	}
	return n.segments[0]
}

// IsVnodeExecute reports whether this rule name is the vnode.execute rule,
// which the evaluator treats specially (see the vnode
// short-circuit design note): it is the one vnode right the vnode listener
// never consults, deferring instead.
func (n Name) IsVnodeExecute() bool {
	return len(n.segments) >= 2 && n.segments[0] == "vnode" && n.segments[1] == "execute"
}
