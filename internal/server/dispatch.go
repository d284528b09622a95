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

package server

import (
	"sort"
	"strings"
	"time"

	"github.com/dkimsignd/dkimsignd/internal/log"
	"github.com/dkimsignd/dkimsignd/internal/options"
	"github.com/dkimsignd/dkimsignd/internal/protocol"
)

// Dispatcher is C6: it routes a decoded request to C3+C2 (choose_key)
// or C7 (sign), and renders the result back into response attributes.
type Dispatcher struct {
	Resolver *options.Resolver
	Signer   *Signer
	Log      log.Logger

	// Now defaults to time.Now; overridable for deterministic tests.
	Now func() time.Time
}

func (d *Dispatcher) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// Handle processes one fully-framed request and returns the response
// to write back, with request_id/log_id echoed first when present.
func (d *Dispatcher) Handle(req *protocol.Attributes) *protocol.Attributes {
	resp := protocol.NewAttributes()
	for _, k := range []string{"request_id", "log_id"} {
		if v, ok := req.Get(k); ok {
			resp.Add(k, v)
		}
	}

	switch req.GetDefault("request", "") {
	case "choose_key":
		d.handleChooseKey(req, resp)
	case "sign":
		d.handleSign(req, resp)
	default:
		resp.Add("reason", "unknown request type")
	}

	return resp
}

func splitCandidate(raw string) options.Candidate {
	raw = strings.TrimLeft(raw, " ")
	sp := strings.IndexByte(raw, ' ')
	if sp < 0 {
		return options.Candidate{Label: raw}
	}
	return options.Candidate{Label: raw[:sp], Mailbox: raw[sp+1:]}
}

func sigOverrides(req *protocol.Attributes) map[string]string {
	overrides := make(map[string]string)
	for _, name := range req.Names() {
		if tag, ok := strings.CutPrefix(name, "sig."); ok {
			if v, ok := req.Get(name); ok {
				overrides[tag] = v
			}
		}
	}
	return overrides
}

func (d *Dispatcher) handleChooseKey(req *protocol.Attributes, resp *protocol.Attributes) {
	raw := req.List("candidate")
	candidates := make([]options.Candidate, len(raw))
	for i, c := range raw {
		candidates[i] = splitCandidate(c)
	}

	tags, _, chosen, address, ok := d.Resolver.ResolveCandidates(candidates, sigOverrides(req))

	if err := options.ApplyTTL(tags, d.now()); err != nil {
		d.Log.Error("invalid ttl override", err)
	}

	for _, tag := range orderedTagNames(tags) {
		if tags[tag] == "" {
			continue
		}
		resp.Add("sig."+tag, tags[tag])
	}

	if ok {
		resp.Add("chosen_candidate", chosen.Label+" "+address)
	}
}

// orderedTagNames returns tags's keys in a stable, deterministic
// order so repeated runs of the same request render byte-identical
// responses.
func orderedTagNames(tags map[string]string) []string {
	names := make([]string, 0, len(tags))
	for k := range tags {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func (d *Dispatcher) handleSign(req *protocol.Attributes, resp *protocol.Attributes) {
	digest := req.GetDefault("digest", "")
	digestAlg := req.GetDefault("digest_alg", "")
	dom := req.GetDefault("d", "")
	sel := req.GetDefault("s", "")

	sig, err := d.Signer.Sign(digest, digestAlg, dom, sel)
	if err != nil {
		resp.Add("reason", err.Error())
		return
	}

	resp.Add("d", dom)
	resp.Add("s", sel)
	resp.Add("b", sig)
}
