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

//go:build !unix

package daemon

import "fmt"

// Chroot is unsupported outside Unix; it errors unless no chroot was
// requested.
func Chroot(path string) error {
	if path == "" {
		return nil
	}
	return fmt.Errorf("daemon: chroot is not supported on this platform")
}

// DropPrivileges is unsupported outside Unix; it errors unless no
// privilege drop was requested.
func DropPrivileges(userName, groupName string) error {
	if userName == "" && groupName == "" {
		return nil
	}
	return fmt.Errorf("daemon: privilege drop is not supported on this platform")
}
