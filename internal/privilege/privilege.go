// Package privilege implements the startup privilege reduction described
// in spec.md section 4.9: refuse to run as root, then drop every
// capability except the one the raw socket needs. The intent mirrors the
// original C++ implementation's reducePriv("cap_net_raw+ep"): the binary
// is meant to be launched with an inheritable CAP_NET_RAW file
// capability rather than via setuid-root.
package privilege

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/gbonacini/arpchat/pkg/logger"
)

// Error reports any failure in the privilege-reduction sequence. Every
// failure here is fatal at init, before the raw socket is opened.
type Error struct {
	Step   string
	Reason string
}

func (e *Error) Error() string { return fmt.Sprintf("privilege gate: %s: %s", e.Step, e.Reason) }

var log = logger.Get(logger.Privilege)

// netRawCapMask is the single bit for CAP_NET_RAW within the 32-bit
// capability words used by LINUX_CAPABILITY_VERSION_3.
const netRawCapMask = uint32(1) << unix.CAP_NET_RAW

// Drop refuses to continue if the effective or real UID/GID is 0, then
// sets PR_SET_KEEPCAPS, resets real/effective/saved UID and GID to the
// real UID/GID, and narrows the process capability set to exactly
// {CAP_NET_RAW: effective, permitted}. Any failure aborts before the
// caller opens the raw socket.
func Drop() error {
	if unix.Geteuid() == 0 || unix.Getuid() == 0 {
		return &Error{Step: "uid-check", Reason: "refusing to run as root (effective or real UID 0)"}
	}
	if unix.Getegid() == 0 || unix.Getgid() == 0 {
		return &Error{Step: "gid-check", Reason: "refusing to run as root (effective or real GID 0)"}
	}

	if err := unix.Prctl(unix.PR_SET_KEEPCAPS, 1, 0, 0, 0); err != nil {
		return &Error{Step: "keepcaps", Reason: err.Error()}
	}

	rgid := unix.Getgid()
	if err := unix.Setresgid(rgid, rgid, rgid); err != nil {
		return &Error{Step: "setresgid", Reason: err.Error()}
	}

	ruid := unix.Getuid()
	if err := unix.Setresuid(ruid, ruid, ruid); err != nil {
		return &Error{Step: "setresuid", Reason: err.Error()}
	}

	hdr := unix.CapUserHeader{Version: unix.LINUX_CAPABILITY_VERSION_3, Pid: 0}
	data := [2]unix.CapUserData{
		{Effective: netRawCapMask, Permitted: netRawCapMask, Inheritable: 0},
		{},
	}
	if err := unix.Capset(&hdr, &data[0]); err != nil {
		return &Error{Step: "capset", Reason: err.Error()}
	}

	log.Info("privileges reduced to cap_net_raw=ep", "uid", ruid, "gid", rgid)
	return nil
}
