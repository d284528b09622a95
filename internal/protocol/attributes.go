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

package protocol

// Attributes holds one request or response's attribute lines in
// insertion order, with repeated names accumulating into an ordered
// list per the wire format's framing rule.
type Attributes struct {
	order  []string
	values map[string][]string
}

// NewAttributes returns an empty attribute set.
func NewAttributes() *Attributes {
	return &Attributes{values: make(map[string][]string)}
}

// Add appends value to name's list, recording name's first-seen
// position in iteration order.
func (a *Attributes) Add(name, value string) {
	if _, ok := a.values[name]; !ok {
		a.order = append(a.order, name)
	}
	a.values[name] = append(a.values[name], value)
}

// Get returns the first value associated with name.
func (a *Attributes) Get(name string) (string, bool) {
	vs, ok := a.values[name]
	if !ok || len(vs) == 0 {
		return "", false
	}
	return vs[0], true
}

// GetDefault returns the first value associated with name, or def if
// name is absent.
func (a *Attributes) GetDefault(name, def string) string {
	if v, ok := a.Get(name); ok {
		return v
	}
	return def
}

// List returns every value recorded under name, in the order added.
func (a *Attributes) List(name string) []string {
	return a.values[name]
}

// Has reports whether name has at least one value.
func (a *Attributes) Has(name string) bool {
	_, ok := a.values[name]
	return ok
}

// Names returns the attribute names in first-seen order.
func (a *Attributes) Names() []string {
	return append([]string(nil), a.order...)
}

// Lines renders every name/value pair as wire-encoded "name=value"
// lines (without CR LF), in insertion order, and returns any runes
// that had to fall back to the "\x{HHHH}" escape so the caller can
// log them.
func (a *Attributes) Lines() (lines []string, replaced []rune) {
	for _, name := range a.order {
		for _, v := range a.values[name] {
			line, r := EncodeLine(name, v)
			lines = append(lines, line)
			replaced = append(replaced, r...)
		}
	}
	return lines, replaced
}
