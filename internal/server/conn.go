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

// Package server implements C5 (the per-connection attribute
// request/response loop), C6 (request dispatch), and C7 (the RSA
// signer) over an accepted stream connection.
package server

import (
	"bufio"
	"net"

	"github.com/dkimsignd/dkimsignd/internal/log"
	"github.com/dkimsignd/dkimsignd/internal/protocol"
)

// Listener is C5's accept loop: it serves one configured endpoint,
// handing every accepted connection to its own goroutine so that a
// connection's requests are processed strictly in order while
// separate connections make independent progress.
type Listener struct {
	Dispatcher *Dispatcher
	Log        log.Logger
}

// Serve accepts connections from ln until it returns an error (which
// happens, by design, when the listener is closed for shutdown).
func (l *Listener) Serve(ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		go l.handleConn(conn)
	}
}

// handleConn implements the per-connection state machine: Idle ->
// ReadingAttributes -> Dispatching -> WritingResponse -> Idle. Each
// blank line triggers Dispatching; the loop exits on EOF, a read
// error, or a write error, at which point the connection is closed.
func (l *Listener) handleConn(conn net.Conn) {
	defer conn.Close()

	r := bufio.NewReader(conn)
	connLog := l.Log

	for {
		req, err := protocol.ReadFrame(r, func(line string) {
			connLog.Msg("malformed request line", "line", line)
		})
		if err != nil {
			return
		}

		resp := l.Dispatcher.Handle(req)

		replaced, err := protocol.WriteFrame(conn, resp)
		if len(replaced) > 0 {
			connLog.Msg("response contained non-octet code points, escaped", "count", len(replaced))
		}
		if err != nil {
			connLog.Error("write error, dropping connection", err)
			return
		}
	}
}
