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

import "time"

// Output is a destination for formatted log lines. Write receives the
// timestamp, whether the message is a debug-level message, and the
// fully formatted line (no trailing newline).
type Output interface {
	Write(stamp time.Time, debug bool, msg string)
	Close() error
}

type multiOut struct {
	outs []Output
}

func (m multiOut) Write(stamp time.Time, debug bool, msg string) {
	for _, out := range m.outs {
		out.Write(stamp, debug, msg)
	}
}

func (m multiOut) Close() error {
	var err error
	for _, out := range m.outs {
		if cErr := out.Close(); cErr != nil {
			err = cErr
		}
	}
	return err
}

// MultiOutput returns an Output that fans out each write to all of
// outs, in order. Its Close closes all of them and returns the last
// error, if any.
func MultiOutput(outs ...Output) Output {
	return multiOut{outs}
}

type funcOut struct {
	f     func(stamp time.Time, debug bool, msg string)
	close func() error
}

func (f funcOut) Write(stamp time.Time, debug bool, msg string) {
	f.f(stamp, debug, msg)
}

func (f funcOut) Close() error {
	if f.close == nil {
		return nil
	}
	return f.close()
}

// FuncOutput adapts a plain function into an Output, useful for tests
// that want to capture emitted lines without a real sink.
func FuncOutput(f func(stamp time.Time, debug bool, msg string), close func() error) Output {
	return funcOut{f, close}
}

type nopOut struct{}

func (nopOut) Write(time.Time, bool, string) {}
func (nopOut) Close() error                  { return nil }

// NopOutput discards everything written to it.
func NopOutput() Output {
	return nopOut{}
}
