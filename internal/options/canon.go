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

import (
	"fmt"
	"strings"

	"github.com/emersion/go-msgauth/dkim"
)

// ValidateCanonicalization checks a DKIM "c" tag value, either a bare
// "relaxed"/"simple" form (applied to both header and body) or a
// "header/body" pair, against the two canonicalization algorithms DKIM
// defines. The resolver calls it on each candidate's merged tags, so a
// malformed sender_map entry or sig.c override makes that candidate
// fail key selection at request time rather than being forwarded into
// an unsignable sig.c response attribute. Configuration loading does
// not call it.
func ValidateCanonicalization(c string) error {
	if c == "" {
		return nil
	}

	header, body, ok := strings.Cut(c, "/")
	if !ok {
		body = header
	}

	for _, part := range []string{header, body} {
		switch dkim.Canonicalization(part) {
		case dkim.CanonicalizationRelaxed, dkim.CanonicalizationSimple:
		default:
			return fmt.Errorf("options: invalid canonicalization %q in %q", part, c)
		}
	}
	return nil
}
