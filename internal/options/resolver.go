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
	"strconv"
	"time"

	"github.com/dkimsignd/dkimsignd/internal/keystore"
)

// Resolver ties a configured list of sender-option tag-maps to a key
// store, producing the merged signature tags and the key a choose_key
// request should use.
type Resolver struct {
	TagMaps  []TagMap
	Defaults map[string]string
	Store    *keystore.Store
}

// catchallDefaults are appended beneath every configured default,
// unconditionally, to guarantee a usable c and a tag even for an
// operator who declares no sender_map or default_tags at all.
var catchallDefaults = map[string]string{
	"c": "relaxed/simple",
	"a": "rsa-sha256",
}

// Candidate is one sender identity offered to the resolver: a
// source label (e.g. "author", "envelope-from") and the raw mailbox
// text as found on the wire, display name and angle brackets
// included.
type Candidate struct {
	Label   string
	Mailbox string
}

// Resolve walks candidates in order (most to least specific sender
// identity, as provided by the request). For each candidate it
// extracts the mailbox, builds the ordered query keys, merges matching
// tag-map entries with the request's own overrides taking precedence,
// fills in the catchall defaults, and attempts key selection. The
// first candidate for which a key is found wins, and its s/d tags are
// overwritten from the selected declaration. If no candidate yields a
// key, the last accumulated tag set is returned with ok=false.
func (r *Resolver) Resolve(candidates []string, overrides map[string]string) (map[string]string, keystore.Selected, bool) {
	cs := make([]Candidate, len(candidates))
	for i, c := range candidates {
		cs[i] = Candidate{Mailbox: c}
	}
	tags, sel, _, _, ok := r.ResolveCandidates(cs, overrides)
	return tags, sel, ok
}

// ResolveCandidates is Resolve's labeled form: it additionally reports
// which candidate was chosen and the plain address extracted from its
// mailbox, as needed to emit the "chosen_candidate" response
// attribute.
func (r *Resolver) ResolveCandidates(candidates []Candidate, overrides map[string]string) (tags map[string]string, sel keystore.Selected, chosen Candidate, address string, ok bool) {
	var last map[string]string

	for _, cand := range candidates {
		addr := ExtractAddress(cand.Mailbox)
		local, domain, err := SplitUnquoted(addr)
		if err != nil {
			continue
		}

		keys := QueryKeys(local, domain)

		t := make(map[string]string, len(overrides)+len(r.Defaults)+2)
		mergeInto(t, overrides)
		for _, tm := range r.TagMaps {
			if found, ok := tm.lookup(keys); ok {
				mergeInto(t, found)
			}
		}
		mergeInto(t, r.Defaults)
		mergeInto(t, catchallDefaults)

		if _, ok := t["d"]; !ok && domain != "" {
			t["d"] = domain
		}
		if err := ValidateCanonicalization(t["c"]); err != nil {
			continue
		}
		last = t

		keytype, hash := keystore.ParseAlgorithm(t["a"])
		s, found := r.Store.Select(keystore.Query{
			Domain:   t["d"],
			Selector: t["s"],
			KeyType:  keytype,
			Hash:     hash,
			Identity: t["i"],
		})
		if !found {
			continue
		}

		t["s"] = s.Selector
		t["d"] = s.Domain
		return t, s, cand, addr, true
	}

	return last, keystore.Selected{}, Candidate{}, "", false
}

// ApplyTTL converts a resolved tag set's pseudo-tag "ttl" (seconds
// from now) into an absolute DKIM "x" expiration tag, relative to now.
// It is a no-op if ttl is absent, and never overrides an "x" the
// candidate already set explicitly. The ttl pseudo-tag is always
// removed, since it is never a real DKIM signature tag.
func ApplyTTL(tags map[string]string, now time.Time) error {
	ttl, ok := tags["ttl"]
	if !ok {
		return nil
	}
	delete(tags, "ttl")

	if _, ok := tags["x"]; ok {
		return nil
	}

	seconds, err := strconv.ParseInt(ttl, 10, 64)
	if err != nil {
		return fmt.Errorf("options: invalid ttl %q: %w", ttl, err)
	}
	tags["x"] = strconv.FormatInt(now.Unix()+seconds, 10)
	return nil
}
