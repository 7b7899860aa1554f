// Package evaluator dispatches kernel-hook-shaped authorization requests
// (component I) to a credential's policy stack, building the dotted rule
// name and argument map each scope's hook needs. Grounded on sandbox.c's
// sandbox_*_strmap tables and sandbox_veval/sandbox_list_eval.
package evaluator

// Scope names mirror the kauth_listen_scope identifiers the kernel module
// registers against: secmodel_sandbox hooks KAUTH_SCOPE_SYSTEM, _PROCESS,
// _NETWORK, _MACHDEP, _DEVICE, and the vnode listener.
const (
	ScopeSystem  = "system"
	ScopeProcess = "process"
	ScopeNetwork = "network"
	ScopeMachdep = "machdep"
	ScopeDevice  = "device"
	ScopeVnode   = "vnode"
)

// systemActions mirrors sandbox_system_strmap, indexed by
// KAUTH_SYSTEM_* action. Index 0 is intentionally empty; these tables are
// 1-based in the original to let a zero action mean "unset".
var systemActions = []string{
	"",
	"accounting", "chroot", "chsysflags", "cpu", "debug", "filehandle",
	"mknod", "mount", "pset", "reboot", "setidcore", "swapctl", "sysctl",
	"time", "module", "fs_reservedspace", "fs_quota", "semaphore",
	"sysvipc", "mqueue", "veriexec", "devmapper", "map_va_zero", "lfs",
	"fs_extattr", "fs_snapshot",
}

// systemReqActions mirrors sandbox_system_req_strmap, the finer-grained
// "what about this action" qualifier some KAUTH_SCOPE_SYSTEM requests
// carry (e.g. system.mount.unmount vs system.mount.update).
var systemReqActions = []string{
	"",
	"chroot", "fchroot", "setstate", "ipkdb", "get", "new", "unmount",
	"update", "assign", "bind", "create", "destroy", "add", "delete",
	"desc", "modify", "prvt", "adjtime", "ntpadjtime", "rtcoffset",
	"system", "timecounters", "get", "manage", "nolimit", "onoff",
	"bypass", "shm_lock", "shm_unlock", "msgq_oversize", "access",
	"modify", "markv", "bmapv", "segclean", "segwait", "fcntl", "umap",
	"device",
}

// processActions mirrors sandbox_process_strmap.
var processActions = []string{
	"",
	"cansee", "corename", "fork", "kevent_filter", "ktrace", "nice",
	"procfs", "ptrace", "rlimit", "scheduler_getaffinity",
	"scheduler_setaffinity", "scheduler_getparam", "scheduler_setparam",
	"setid", "signal", "stopflag",
}

// networkActions mirrors sandbox_network_strmap.
var networkActions = []string{
	"",
	"altq", "bind", "firewall", "interface", "forwsrcrt", "nfs", "route",
	"socket", "interface_ppp", "interface_slip", "interface_strip",
	"interface_tun", "interface_bridge", "ipsec", "interface_pvc", "ipv6",
	"smb",
}

// machdepActions mirrors sandbox_machdep_strmap.
var machdepActions = []string{
	"",
	"cacheflush", "cpu_ucode_apply", "ioperm_get", "ioperm_set", "iopl",
	"ldt_get", "ldt_set", "mtrr_get", "mtrr_set", "nvram", "unmanagedmem",
	"pxg",
}

// deviceActions mirrors sandbox_device_strmap.
var deviceActions = []string{
	"",
	"tty_open", "tty_privset", "tty_sti", "rawio_spec", "rawio_passthru",
	"bluetooth_setpriv", "rnd_adddata", "rnd_adddata_estimate",
	"rnd_getpriv", "rnd_setpriv", "bluetooth_bcsp", "bluetooth_btuart",
	"gpio_pinset", "bluetooth_send", "bluetooth_recv", "tty_virtual",
	"wscons_keyboard_bell", "wscons_keyboard_keyrepeat",
}

// vnodeBits mirrors sandbox_vnode_strmap: bit position i names the
// KAUTH_VNODE_* right; Dispatcher.Vnode evaluates only the lowest set bit
// of a request's action mask.
var vnodeBits = []string{
	"read_data", "write_data", "execute", "delete", "append_data",
	"read_times", "write_times", "read_flags", "write_flags",
	"read_sysflags", "write_sysflags", "rename", "change_ownership",
	"read_security", "write_security", "read_attributes",
	"write_attributes", "read_extattributes", "write_extattributes",
	"retain_suid", "regain_sgid", "revoke",
}

func lookup(table []string, action int) string {
	if action < 0 || action >= len(table) {
		return ""
	}
	return table[action]
}
