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

// Package daemon is C8: it binds the configured listeners, drops
// privileges and chroots when started as root, writes the PID file,
// and runs the accept loops until a shutdown signal arrives.
package daemon

import (
	"fmt"
	"net"
	"os"

	"github.com/dkimsignd/dkimsignd/internal/config"
)

// Bind opens a net.Listener for each endpoint, in order. On any
// failure it closes the listeners already opened before returning the
// error, so a partially-bound daemon never starts accepting
// connections.
func Bind(endpoints []config.Endpoint) ([]net.Listener, error) {
	listeners := make([]net.Listener, 0, len(endpoints))

	for _, ep := range endpoints {
		if ep.Network() == "unix" {
			if err := os.RemoveAll(ep.Address()); err != nil && !os.IsNotExist(err) {
				closeAll(listeners)
				return nil, fmt.Errorf("daemon: %s: %w", ep, err)
			}
		}

		ln, err := net.Listen(ep.Network(), ep.Address())
		if err != nil {
			closeAll(listeners)
			return nil, fmt.Errorf("daemon: listen %s: %w", ep, err)
		}
		listeners = append(listeners, ln)
	}

	return listeners, nil
}

func closeAll(listeners []net.Listener) {
	for _, ln := range listeners {
		ln.Close()
	}
}
