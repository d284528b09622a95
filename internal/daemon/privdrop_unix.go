/*
dkimsignd - DKIM signing oracle daemon.
Copyright © 2026 dkimsignd contributors

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

//go:build unix

package daemon

import (
	"fmt"
	"os/user"
	"strconv"
	"syscall"
)

// Chroot calls syscall.Chroot(path) followed by a chdir to "/", so
// every subsequent relative path resolves inside the jail. It must run
// after listener sockets and key files are opened, and before
// DropPrivileges.
func Chroot(path string) error {
	if path == "" {
		return nil
	}
	if err := syscall.Chroot(path); err != nil {
		return fmt.Errorf("daemon: chroot %s: %w", path, err)
	}
	return syscall.Chdir("/")
}

// DropPrivileges resolves userName/groupName via os/user and switches
// the process to them, group before user, since once the user ID is
// dropped the process can no longer change its group. A no-op if the
// effective UID is not 0.
func DropPrivileges(userName, groupName string) error {
	if syscall.Geteuid() != 0 {
		return nil
	}
	if userName == "" {
		return fmt.Errorf("daemon: running as root but no user configured to drop to")
	}

	u, err := user.Lookup(userName)
	if err != nil {
		return fmt.Errorf("daemon: user %q: %w", userName, err)
	}

	gid := u.Gid
	if groupName != "" {
		g, err := user.LookupGroup(groupName)
		if err != nil {
			return fmt.Errorf("daemon: group %q: %w", groupName, err)
		}
		gid = g.Gid
	}

	gidNum, err := strconv.Atoi(gid)
	if err != nil {
		return fmt.Errorf("daemon: invalid gid %q: %w", gid, err)
	}
	uidNum, err := strconv.Atoi(u.Uid)
	if err != nil {
		return fmt.Errorf("daemon: invalid uid %q: %w", u.Uid, err)
	}

	if err := syscall.Setgroups([]int{gidNum}); err != nil {
		return fmt.Errorf("daemon: setgroups: %w", err)
	}
	if err := syscall.Setgid(gidNum); err != nil {
		return fmt.Errorf("daemon: setgid: %w", err)
	}
	if err := syscall.Setuid(uidNum); err != nil {
		return fmt.Errorf("daemon: setuid: %w", err)
	}
	return nil
}
