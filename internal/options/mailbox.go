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

// Package options resolves sender-option tag-maps against a
// request's candidate identities, producing the merged set of DKIM
// signature tags a choose_key request should sign with.
package options

import (
	"errors"
	"strings"
)

// ExtractAddress strips a leading display name, angle brackets, and
// any source route from raw, as found in a "<source-label>
// <quoted-mailbox>" candidate's mailbox portion (e.g. "Alice
// <alice@ex.org>" or "<@relay1,@relay2:bob@ex.org>").
func ExtractAddress(raw string) string {
	raw = strings.TrimSpace(raw)

	if open := strings.IndexByte(raw, '<'); open >= 0 {
		if close := strings.LastIndexByte(raw, '>'); close > open {
			raw = raw[open+1 : close]
		}
	}

	if strings.HasPrefix(raw, "@") {
		if colon := strings.LastIndexByte(raw, ':'); colon >= 0 {
			raw = raw[colon+1:]
		}
	}

	return strings.TrimSpace(raw)
}

// SplitUnquoted splits addr into its local part and domain, undoing
// RFC 5321 quoted-pair escaping in the local part along the way. The
// domain is whatever follows the first unquoted, unescaped '@'; if
// none is found, the whole unquoted string is the local part and
// domain is "". The caller represents that domain-less case with a
// trailing '@' sentinel simply by formatting local+"@"+domain, since
// domain is already empty.
func SplitUnquoted(addr string) (local, domain string, err error) {
	if strings.EqualFold(addr, "postmaster") {
		return addr, "", nil
	}

	var (
		quoted, escaped bool
		unquoted        strings.Builder
		splitAt         = -1
	)

	for _, ch := range addr {
		switch {
		case ch == '"' && !escaped:
			quoted = !quoted
			continue
		case ch == '\\' && !escaped && quoted:
			escaped = true
			continue
		case ch == '@' && !quoted && splitAt < 0:
			splitAt = unquoted.Len()
			escaped = false
			continue
		}
		unquoted.WriteRune(ch)
		escaped = false
	}

	s := unquoted.String()
	if s == "" {
		return "", "", errors.New("options: empty address")
	}
	if splitAt < 0 {
		return s, "", nil
	}
	if splitAt == 0 {
		return "", "", errors.New("options: empty local part")
	}
	return s[:splitAt], s[splitAt:], nil
}
