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

package keystore

import "strings"

// Query is the set of tags a choose_key/sign round trip uses to pick
// a key: d is required, the rest narrow the match.
type Query struct {
	Domain   string // d
	Selector string // s, optional
	KeyType  string // derived from a's "<keytype>-<hashalg>" form, defaults to "rsa"
	Hash     string // derived from a, optional
	Identity string // i, optional, "local@domain"
}

// Selected is the outcome of a successful Select: the chosen key plus
// the declaration's authoritative domain/selector, which the caller
// must use verbatim in the emitted s/d tags regardless of what was
// asked for (a wildcard query resolves to the literal domain it was
// asked about, not the pattern).
type Selected struct {
	Key      *PrivateKeyRecord
	Domain   string
	Selector string
	Decl     Declaration
}

// Select returns the first declaration compatible with q, in
// declaration order, or ok=false if none match.
func (s *Store) Select(q Query) (Selected, bool) {
	if q.Domain == "" {
		return Selected{}, false
	}
	domain, _ := NormalizeDomain(q.Domain)
	if domain == "" {
		return Selected{}, false
	}

	keytype := q.KeyType
	if keytype == "" {
		keytype = "rsa"
	}

	candidates := s.byDomain[domain]
	if len(candidates) == 0 {
		candidates = s.byDomain["*"]
	}

	for _, idx := range candidates {
		d := s.declarations[idx]
		if !domainMatches(d.Domain, domain) {
			continue
		}
		if q.Selector != "" && d.Selector != q.Selector {
			continue
		}
		if d.K != "" && d.K != keytype {
			continue
		}
		if d.S != "" && !serviceAllowed(d.S) {
			continue
		}
		if q.Hash != "" && d.H != "" && !hashAllowed(d.H, q.Hash) {
			continue
		}
		if q.Identity != "" && !identityAllowed(d, domain, q.Identity) {
			continue
		}

		return Selected{
			Key:      d.Key,
			Domain:   domain,
			Selector: d.Selector,
			Decl:     d,
		}, true
	}

	return Selected{}, false
}

func domainMatches(m DomainMatcher, domain string) bool {
	if m.isWildcard() {
		return m.Pattern.MatchString(domain)
	}
	return m.Literal == domain
}

func serviceAllowed(s string) bool {
	for _, v := range strings.Split(s, ":") {
		if v == "email" || v == "*" {
			return true
		}
	}
	return false
}

func hashAllowed(h, wanted string) bool {
	for _, v := range strings.Split(h, ":") {
		if v == wanted {
			return true
		}
	}
	return false
}

// identityAllowed implements the tag-i filter: subdomain identities
// are rejected when t contains "s" and the identity domain differs
// from the query domain; the local part is checked against g's
// granularity pattern ("*", "A*B", or an exact match).
func identityAllowed(d Declaration, queryDomain, identity string) bool {
	ilocal, idomain, ok := splitIdentity(identity)
	if !ok {
		return false
	}

	if idomain != queryDomain && hasFlag(d.T, "s") {
		return false
	}

	g := d.G
	if g == "" || g == "*" {
		return true
	}
	if star := strings.IndexByte(g, '*'); star >= 0 {
		prefix, suffix := g[:star], g[star+1:]
		return strings.HasPrefix(ilocal, prefix) && strings.HasSuffix(ilocal, suffix)
	}
	return ilocal == g
}

func splitIdentity(identity string) (local, domain string, ok bool) {
	at := strings.LastIndexByte(identity, '@')
	if at < 0 {
		return "", "", false
	}
	return identity[:at], identity[at+1:], true
}

func hasFlag(flags, flag string) bool {
	for _, v := range strings.Split(flags, ":") {
		if v == flag {
			return true
		}
	}
	return false
}

// ParseAlgorithm splits a "rsa-sha256"-shaped sig.a value into its
// key type and hash algorithm. An empty a yields ("rsa", "").
func ParseAlgorithm(a string) (keytype, hash string) {
	if a == "" {
		return "rsa", ""
	}
	dash := strings.IndexByte(a, '-')
	if dash < 0 {
		return a, ""
	}
	return a[:dash], a[dash+1:]
}
