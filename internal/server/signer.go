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
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dkimsignd/dkimsignd/internal/keystore"
	"github.com/dkimsignd/dkimsignd/internal/log"
)

var digestAlgos = map[string]crypto.Hash{
	"sha1":   crypto.SHA1,
	"sha256": crypto.SHA256,
}

// slowSignThreshold is the RSA signing duration above which Sign logs
// a warning: a well-behaved signature over a 2048 or 4096-bit key
// should never approach this, so crossing it points at CPU starvation
// or a misconfigured oversized key rather than ordinary variance.
const slowSignThreshold = 250 * time.Millisecond

// Signer is C7: it looks up a previously-selected key by (d, s) and
// produces a raw PKCS#1 v1.5 signature over a caller-supplied digest.
// It performs no a/i filtering of its own — that narrowing already
// happened during the choose_key round trip this call follows.
type Signer struct {
	Store *keystore.Store
	Log   log.Logger
}

// Sign validates digest/digestAlg/d/s, finds the matching key, and
// returns the Base64-encoded raw signature bytes. The returned error's
// message is suitable for direct use as a "reason" attribute value.
func (s *Signer) Sign(digestB64, digestAlg, d, sel string) (signatureB64 string, err error) {
	if digestB64 == "" || digestAlg == "" || d == "" || sel == "" {
		var missing []string
		for _, f := range []struct{ name, val string }{
			{"digest", digestB64}, {"digest_alg", digestAlg}, {"d", d}, {"s", sel},
		} {
			if f.val == "" {
				missing = append(missing, f.name)
			}
		}
		return "", fmt.Errorf("cannot sign, missing %v", missing)
	}

	hashFn, ok := digestAlgos[digestAlg]
	if !ok {
		return "", fmt.Errorf("cannot sign: unsupported digest algorithm %q", digestAlg)
	}

	selected, found := s.Store.Select(keystore.Query{Domain: d, Selector: sel})
	if !found {
		return "", fmt.Errorf("cannot sign, signing key not available")
	}

	digest, err := base64.StdEncoding.DecodeString(digestB64)
	if err != nil {
		return "", fmt.Errorf("cannot sign: malformed digest: %v", err)
	}
	if len(digest) != hashFn.Size() {
		return "", fmt.Errorf("cannot sign: digest length %d does not match %s", len(digest), digestAlg)
	}

	start := time.Now()
	sig, err := rsa.SignPKCS1v15(rand.Reader, selected.Key.Key, hashFn, digest)
	elapsed := time.Since(start)
	if err != nil {
		return "", fmt.Errorf("cannot sign: %v", err)
	}

	if elapsed > slowSignThreshold {
		s.Log.Zap().Warn("slow DKIM signature",
			zap.String("domain", selected.Domain),
			zap.String("selector", selected.Selector),
			zap.Duration("elapsed", elapsed),
		)
	}

	return base64.StdEncoding.EncodeToString(sig), nil
}
