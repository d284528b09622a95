//go:build !windows && !plan9

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

package log

import (
	"log/syslog"
	"time"
)

type syslogOut struct {
	w     *syslog.Writer
	level [6]func(string) error
}

// Level mirrors the daemon's internal 0-5 verbosity scale used by the
// log_level configuration directive: 0 is the most
// severe, 5 the most verbose.
type Level int

const (
	LevelErr     Level = 0
	LevelWarning Level = 1
	LevelNotice  Level = 2
	LevelInfo    Level = 3
	LevelDebug1  Level = 4
	LevelDebug   Level = 5
)

func (s syslogOut) Write(stamp time.Time, debug bool, msg string) {
	idx := LevelInfo
	if debug {
		idx = LevelDebug
	}
	if err := s.level[idx](msg); err != nil {
		// Nothing sensible to do if syslog itself is unreachable;
		// the message is dropped.
		return
	}
}

// WriteLeveled writes msg at the given internal level, bypassing the
// debug/non-debug split Write uses. Logger itself does not call it;
// Logger's messages go through Write.
func (s syslogOut) WriteLeveled(lvl Level, msg string) {
	_ = s.level[lvl](msg)
}

func (s syslogOut) Close() error {
	return s.w.Close()
}

// SyslogOutput opens a connection to the local syslog daemon under the
// given ident and facility (FacilityByName resolves the
// syslog_facility directive, defaulting to LOG_MAIL), and returns an
// Output backed by it.
func SyslogOutput(ident string, facility syslog.Priority) (Output, error) {
	w, err := syslog.New(facility|syslog.LOG_INFO, ident)
	if err != nil {
		return nil, err
	}
	return syslogOut{
		w: w,
		level: [6]func(string) error{
			LevelErr:     w.Err,
			LevelWarning: w.Warning,
			LevelNotice:  w.Notice,
			LevelInfo:    w.Info,
			LevelDebug1:  w.Debug,
			LevelDebug:   w.Debug,
		},
	}, nil
}

// FacilityByName resolves the syslog_facility directive's value
// ("mail", "daemon", "local0"..."local7", ...) to a syslog.Priority
// facility constant. Defaults to LOG_MAIL, the daemon's natural
// facility, for an empty or unrecognized name.
func FacilityByName(name string) syslog.Priority {
	switch name {
	case "daemon":
		return syslog.LOG_DAEMON
	case "local0":
		return syslog.LOG_LOCAL0
	case "local1":
		return syslog.LOG_LOCAL1
	case "local2":
		return syslog.LOG_LOCAL2
	case "local3":
		return syslog.LOG_LOCAL3
	case "local4":
		return syslog.LOG_LOCAL4
	case "local5":
		return syslog.LOG_LOCAL5
	case "local6":
		return syslog.LOG_LOCAL6
	case "local7":
		return syslog.LOG_LOCAL7
	case "mail", "":
		fallthrough
	default:
		return syslog.LOG_MAIL
	}
}
