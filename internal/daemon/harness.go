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

package daemon

import (
	"fmt"
	"net"
	"os"
	"sync"

	"github.com/dkimsignd/dkimsignd/internal/config"
	"github.com/dkimsignd/dkimsignd/internal/log"
	"github.com/dkimsignd/dkimsignd/internal/server"
)

// Settings is the subset of top-level configuration directives the
// harness itself acts on, independent of key/tag-map declarations
// (those feed the keystore and options packages directly).
type Settings struct {
	Listen []config.Endpoint

	User, Group string
	Chroot      string
	PIDFile     string

	SyslogIdent    string
	SyslogFacility string
	LogLevel       log.Level
	Foreground     bool
}

// NewLogger builds the daemon's top-level Logger from Settings: a
// stderr writer in foreground mode, syslog otherwise.
func NewLogger(s Settings) (log.Logger, error) {
	debug := s.LogLevel >= log.LevelDebug1

	if s.Foreground {
		return log.Logger{Out: log.WriterOutput(os.Stderr, true), Debug: debug}, nil
	}

	out, err := log.SyslogOutput(s.SyslogIdent, log.FacilityByName(s.SyslogFacility))
	if err != nil {
		return log.Logger{}, fmt.Errorf("daemon: syslog: %w", err)
	}
	return log.Logger{Out: out, Debug: debug}, nil
}

// Harness is C8: it owns the bound listeners and runs one
// server.Listener per endpoint until told to shut down.
type Harness struct {
	Settings   Settings
	Log        log.Logger
	Dispatcher *server.Dispatcher
}

// Run binds every configured endpoint, drops privileges and chroots
// if requested, writes the PID file, then serves connections until
// WaitForShutdown returns, at which point it closes the listeners,
// waits for in-flight accept loops to exit, and removes the PID file.
func (h *Harness) Run() error {
	listeners, err := Bind(h.Settings.Listen)
	if err != nil {
		return err
	}

	if err := Chroot(h.Settings.Chroot); err != nil {
		closeAll(listeners)
		return err
	}
	if err := DropPrivileges(h.Settings.User, h.Settings.Group); err != nil {
		closeAll(listeners)
		return err
	}

	if err := WritePIDFile(h.Settings.PIDFile); err != nil {
		closeAll(listeners)
		return err
	}
	defer RemovePIDFile(h.Settings.PIDFile)

	var wg sync.WaitGroup
	for i, ln := range listeners {
		l := &server.Listener{Dispatcher: h.Dispatcher, Log: h.Log}
		wg.Add(1)
		go func(ln net.Listener) {
			defer wg.Done()
			if err := l.Serve(ln); err != nil {
				h.Log.DebugMsg("listener stopped", "error", err.Error())
			}
		}(ln)
		h.Log.Msg("listening", "endpoint", h.Settings.Listen[i].String())
	}

	sig := WaitForShutdown()
	h.Log.Msg("shutting down", "signal", sig.String())
	closeAll(listeners)
	wg.Wait()

	return nil
}
