package ruleset

import "time"

// Cred mirrors the cred table spec.md §4.G pushes to every callback
// invocation: the seven identity fields the evaluator reads off the
// requesting subject's credential (uid, euid, svuid, gid, egid, svgid,
// groups).
type Cred struct {
	UID, EUID, SVUID uint32
	GID, EGID, SVGID uint32
	Groups           []uint32
}

// ArgKind tags which variant an Arg carries. Replaces the source's
// format-string/va_list dispatch (spec.md §9 design note: "replace ...
// with a typed sum ... accepted as a small array; marshaller
// pattern-matches on the variant") with an explicit, exhaustively
// switchable tag.
type ArgKind int

const (
	ArgVnode ArgKind = iota
	ArgProcess
	ArgInt
	ArgSocket
	ArgSockaddr
)

// VnodeArg describes the vnode a request names (format char 'v'). Fields
// are best-effort: a field is left at its zero value when the
// corresponding attribute could not be fetched, matching spec.md §4.G's
// "best-effort; fields missing if attributes unavailable".
type VnodeArg struct {
	Name                            string
	Type                            string // "dir", "chr", "blk", "reg", "fifo", ...
	Mode, Nlink, UID, GID           uint32
	Size                            int64
	Atime, Mtime, Ctime, Birthtime  time.Time
	Blksize, Blocks, Ino            uint64
}

// ProcessArg describes the process a request names (format char 'p').
type ProcessArg struct {
	PID, PPID int
	Nice      int
	Comm      string
}

// SocketArg is the format char 'o' argument: spec.md §4.G describes it as
// "opaque table (currently empty)".
type SocketArg struct{}

// SockaddrArg is the format char 'a' argument. Only the fields relevant to
// Family are meaningful; spec.md §4.G: IPv4 -> {family,port,address},
// IPv6 -> {family,port}, UNIX -> {family,path}, other -> {family}.
type SockaddrArg struct {
	Family  string // "inet", "inet6", "unix", or anything else
	Port    int
	Address string
	Path    string
}

// Arg is one positional argument the evaluator's format string would have
// pushed to a callback, tagged by kind so the marshaller pattern-matches
// the variant instead of scanning a format character. Exactly one of the
// pointer fields is non-nil (or Int is meaningful) depending on Kind.
type Arg struct {
	Kind     ArgKind
	Vnode    *VnodeArg
	Process  *ProcessArg
	Int      int64
	Socket   *SocketArg
	Sockaddr *SockaddrArg
}

// Invocation bundles everything a single callback call needs beyond the
// registry handle itself: the matched rule (pushed as the "rule" table),
// the requesting credential (pushed as "cred"), and the scope-specific
// typed arguments pushed one per format character. Grounded on spec.md
// §4.G's marshalling contract.
type Invocation struct {
	Rule Name
	Cred Cred
	Args []Arg
}
