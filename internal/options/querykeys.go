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

const recipientDelimiter = '+'

// maxParentLevels caps the "@.sub.example.com, @.example.com, ..."
// suffix chain.
const maxParentLevels = 10

func isUnsplittableLocal(local string) bool {
	lower := strings.ToLower(local)
	base := lower
	if i := strings.IndexByte(lower, recipientDelimiter); i >= 0 {
		base = lower[:i]
	}
	switch base {
	case "postmaster", "mailer-daemon", "double-bounce":
		return true
	}
	if strings.HasPrefix(lower, "owner-") || strings.HasSuffix(lower, "-request") {
		return true
	}
	return false
}

// splitExtension splits local on the recipient delimiter, returning
// ok=false when local is one of the addresses the resolver must treat
// atomically (postmaster-like names, owner-/-request list
// conventions) or when splitting would produce an empty base local
// part.
func splitExtension(local string) (base, ext string, ok bool) {
	if isUnsplittableLocal(local) {
		return "", "", false
	}
	i := strings.IndexByte(local, recipientDelimiter)
	if i <= 0 {
		return "", "", false
	}
	return local[:i], local[i+1:], true
}

// QueryKeys builds the ordered list of lookup keys the resolver
// probes each sender-option tag-map with, in first-match-wins
// priority order, for the address split into local/domain.
func QueryKeys(local, domain string) []string {
	var keys []string
	add := func(k string) { keys = append(keys, k) }

	asIs := local + "@" + domain
	add(asIs)

	base, ext, hasExt := splitExtension(local)
	if hasExt {
		add(base + "+" + ext + "@" + domain)
		add(base + "@" + domain)
		add(base + "+" + ext + "@")
		add(base + "@")
	} else {
		add(local + "@")
	}

	if domain != "" {
		add("@" + domain)

		labels := strings.Split(domain, ".")
		levels := 0
		for i := 0; i < len(labels)-1 && levels < maxParentLevels; i++ {
			add("@." + strings.Join(labels[i+1:], "."))
			levels++
		}
		if levels < maxParentLevels {
			add("@.")
		}
	}

	return dedupPreserveOrder(keys)
}

func dedupPreserveOrder(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, k := range in {
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}
