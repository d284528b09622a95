//go:build windows || plan9

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
	"errors"
)

type Level int

const (
	LevelErr     Level = 0
	LevelWarning Level = 1
	LevelNotice  Level = 2
	LevelInfo    Level = 3
	LevelDebug1  Level = 4
	LevelDebug   Level = 5
)

// SyslogOutput always fails on platforms without a syslog daemon;
// daemon.NewLogger returns that error unless foreground mode selects
// the stderr writer instead.
func SyslogOutput(ident string, facility int) (Output, error) {
	return nil, errors.New("log: syslog output is not supported on this platform")
}

func FacilityByName(name string) int {
	return 0
}
