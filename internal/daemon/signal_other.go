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

//go:build windows || plan9

package daemon

import (
	"os"
	"os/signal"
)

// WaitForShutdown blocks until an interrupt arrives, then returns it.
func WaitForShutdown() os.Signal {
	sig := make(chan os.Signal, 2)
	signal.Notify(sig, os.Interrupt)

	s := <-sig
	go func() {
		<-sig
		os.Exit(1)
	}()
	return s
}
