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

package options

import "strings"

// TagMap is one `sender_map { ... }` table: a query key (an address,
// "@domain", or a "@.suffix" form, as produced by QueryKeys) mapped to
// the DKIM signature tags that apply when that key matches. A
// "@.suffix" query key also matches an entry written without the
// leading '@' (".example.com", or "." for the catchall).
type TagMap struct {
	Name    string
	Entries map[string]map[string]string
}

// lookup merges every entry in m whose key appears in keys, scanning
// keys in priority order (most to least specific) and merging each
// match's tags into the result with first-seen-wins precedence, so a
// more specific key's tags win over a less specific one's without
// masking tags the less specific key alone would have supplied. It
// reports whether any key matched at all.
func (m TagMap) lookup(keys []string) (map[string]string, bool) {
	var tags map[string]string
	found := false
	for _, k := range keys {
		entry, ok := m.Entries[k]
		if !ok && strings.HasPrefix(k, "@.") {
			entry, ok = m.Entries[k[1:]]
		}
		if ok {
			if !found {
				tags = make(map[string]string, len(entry))
			}
			found = true
			mergeInto(tags, entry)
		}
	}
	return tags, found
}

// mergeInto copies every tag from src into dst that dst does not
// already hold, implementing first-seen-wins precedence.
func mergeInto(dst map[string]string, src map[string]string) {
	for k, v := range src {
		if _, exists := dst[k]; !exists {
			dst[k] = v
		}
	}
}
