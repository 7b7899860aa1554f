package script

import "github.com/dop251/goja"

// scriptConst mirrors struct sandbox_lua_const: a name/value pair pushed
// into the `sandbox` table so policy scripts can refer to e.g.
// sandbox.AF_INET instead of a bare integer literal.
type scriptConst struct {
	name  string
	value int64
}

// sandboxConsts is the Go transcription of sandbox_lua_consts. Values are
// the well-known numeric constants from the BSD socket and stat headers;
// policy scripts are data, not code compiled against a particular kernel's
// headers, so these are listed literally rather than imported from
// golang.org/x/sys/unix (whose AF_*/SOCK_*/S_IF* values match these on every
// platform goja policies are expected to run on).
var sandboxConsts = []scriptConst{
	// socket domains (families)
	{"AF_UNIX", 1}, {"PF_UNIX", 1},
	{"AF_INET", 2}, {"PF_INET", 2},
	{"AF_INET6", 24}, {"PF_INET6", 24},

	// socket types
	{"SOCK_STREAM", 1},
	{"SOCK_DGRAM", 2},
	{"SOCK_RAW", 3},
	{"SOCK_SEQPACKET", 5},

	// protocols
	{"IPPROTO_TCP", 6},
	{"IPPROTO_UDP", 17},
	{"IPPROTO_RAW", 255},

	// owner permissions
	{"S_IRWXU", 0000700}, {"S_IRUSR", 0000400}, {"S_IWUSR", 0000200}, {"S_IXUSR", 0000100},
	// group permissions
	{"S_IRWXG", 0000070}, {"S_IRGRP", 0000040}, {"S_IWGRP", 0000020}, {"S_IXGRP", 0000010},
	// other permissions
	{"S_IRWXO", 0000007}, {"S_IROTH", 0000004}, {"S_IWOTH", 0000002}, {"S_IXOTH", 0000001},

	// file types
	{"S_IFMT", 0170000},
	{"S_IFIFO", 0010000},
	{"S_IFCHR", 0020000},
	{"S_IFDIR", 0040000},
	{"S_IFBLK", 0060000},
	{"S_IFREG", 0100000},
	{"S_IFLNK", 0120000},
	{"S_IFSOCK", 0140000},
	{"S_IFWHT", 0160000},
}

// installConsts pushes sandboxConsts onto obj. Grounded on
// sandbox_lua_pushconsts.
func installConsts(obj *goja.Object) error {
	for _, c := range sandboxConsts {
		if err := obj.Set(c.name, c.value); err != nil {
			return err
		}
	}
	return nil
}
