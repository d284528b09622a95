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

// Package keystore loads, deduplicates, and indexes DKIM private keys
// and their public-record constraints, and selects among them for a
// signing request.
package keystore

import (
	"bytes"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/miekg/dns"
	"golang.org/x/net/idna"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/alexcesaro/quotedprintable.v3"

	"github.com/dkimsignd/dkimsignd/internal/log"
)

// PrivateKeyRecord is one loaded RSA key, shared by every Declaration
// that points at the same underlying file.
type PrivateKeyRecord struct {
	Path string
	Key  *rsa.PrivateKey

	dedupKey string
}

// DomainMatcher is either a literal lowercased domain or a compiled
// pattern derived from a '*'-wildcarded one.
type DomainMatcher struct {
	Literal string
	Pattern *regexp.Regexp
}

func (d DomainMatcher) String() string {
	if d.Pattern != nil {
		return d.Pattern.String()
	}
	return d.Literal
}

func (d DomainMatcher) isWildcard() bool { return d.Pattern != nil }

// Declaration is one configured "key" block: a signing domain bound
// to a selector, a private key, and the RFC 6376 public-record
// constraints that bound key selection.
type Declaration struct {
	Domain   DomainMatcher
	Selector string
	Key      *PrivateKeyRecord

	V string // default "DKIM1"
	G string // default "*"
	H string // colon-separated hash algorithms, empty = unconstrained
	K string // key type, always "rsa" for file-loaded keys
	S string // service types, empty = unconstrained
	T string // colon-separated flags, "s" forbids subdomain identities
	N string // human notes, quoted-printable encoded

	index int // position in declaration order, assigned by Declare
}

// Store holds the full set of declared keys, indexed for lookup once
// Postprocess has run.
type Store struct {
	Log log.Logger

	declarations []Declaration
	keysByPath   map[string]*PrivateKeyRecord

	byDomain map[string][]int // literal domain -> indices into declarations, in order
	wildcard []int            // indices of wildcard declarations, in declaration order

	warnedWildcard bool
	postprocessed  bool
}

// NewStore returns an empty, mutable Store. Call Declare for each
// configured key, then Postprocess once before using Select.
func NewStore(logger log.Logger) *Store {
	return &Store{
		Log:        logger,
		keysByPath: make(map[string]*PrivateKeyRecord),
	}
}

// Declare validates and appends one key declaration. domain and
// selector must be non-empty; selectors must be unique per literal
// domain. keyPath is read once per distinct (device, inode) pair —
// multiple declarations pointing at the same file share one
// PrivateKeyRecord.
func (s *Store) Declare(domain, selector, keyPath string, opts Options) error {
	if s.postprocessed {
		return fmt.Errorf("keystore: cannot declare keys after Postprocess")
	}
	if domain == "" {
		return fmt.Errorf("keystore: empty signing domain")
	}
	if selector == "" {
		return fmt.Errorf("keystore: empty selector")
	}
	domain, _ = NormalizeDomain(domain)
	selector = strings.ToLower(selector)

	for _, d := range s.declarations {
		if d.Domain.Literal == domain && !d.Domain.isWildcard() && d.Selector == selector {
			return fmt.Errorf("keystore: duplicate selector %q for domain %q", selector, domain)
		}
	}

	rec, err := s.loadKey(keyPath)
	if err != nil {
		return fmt.Errorf("keystore: %s: %w", keyPath, err)
	}

	decl := Declaration{
		Selector: selector,
		Key:      rec,
		V:        opts.V,
		G:        opts.G,
		H:        opts.H,
		K:        "rsa",
		S:        opts.S,
		T:        opts.T,
		N:        opts.N,
		index:    len(s.declarations),
	}
	decl.Domain = DomainMatcher{Literal: domain}

	s.declarations = append(s.declarations, decl)
	s.Log.Msg("key declared", "domain", dns.Fqdn(domain), "selector", selector, "path", keyPath)
	return nil
}

// Options carries the public-record constraint overrides a "key"
// configuration block may set.
type Options struct {
	V, G, H, S, T, N string
}

// dedup by (device, inode) when available (findDedupKey, in
// dedup_unix.go), falling back to the absolute path plus a content
// hash everywhere else.
func (s *Store) loadKey(path string) (*PrivateKeyRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	dedupKey, ok := findDedupKey(path, info)
	if ok {
		if rec, found := s.keysByPath[dedupKey]; found {
			return rec, nil
		}
	}

	pemBlob, err := readAll(f)
	if err != nil {
		return nil, err
	}

	if !ok {
		dedupKey = path + ":" + fmt.Sprintf("%x", contentDigest(pemBlob))
		if rec, found := s.keysByPath[dedupKey]; found {
			return rec, nil
		}
	}

	key, err := parseRSAPrivateKeyPEM(pemBlob)
	if err != nil {
		return nil, err
	}

	rec := &PrivateKeyRecord{Path: path, Key: key, dedupKey: dedupKey}
	s.keysByPath[dedupKey] = rec
	return rec, nil
}

func contentDigest(b []byte) []byte {
	sum := sha256.Sum256(b)
	return sum[:]
}

func readAll(f *os.File) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(f); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// parseRSAPrivateKeyPEM decodes a PEM-encoded RSA private key in
// either PKCS#1 or PKCS#8 form. Other key types (the teacher's
// generic DKIM modifier also accepts Ed25519/ECDSA) are rejected:
// only RSA signing keys are in scope here.
func parseRSAPrivateKeyPEM(pemBlob []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemBlob)
	if block == nil {
		return nil, fmt.Errorf("invalid PEM block")
	}

	var key interface{}
	var err error
	switch block.Type {
	case "PRIVATE KEY":
		key, err = x509.ParsePKCS8PrivateKey(block.Bytes)
	case "RSA PRIVATE KEY":
		key, err = x509.ParsePKCS1PrivateKey(block.Bytes)
	default:
		return nil, fmt.Errorf("unsupported PEM block type %q, only RSA keys are accepted", block.Type)
	}
	if err != nil {
		return nil, err
	}

	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("key is not an RSA private key")
	}
	if err := rsaKey.Validate(); err != nil {
		return nil, err
	}
	rsaKey.Precompute()
	return rsaKey, nil
}

// Postprocess finalizes the store: builds the literal domain index,
// compiles wildcarded domains into patterns, registers them against
// both the synthetic "*" bucket and any already-known literal domain
// they match, quoted-prints N, and fills default V. It must be called
// exactly once, after all Declare calls, before Select is used.
func (s *Store) Postprocess() error {
	if s.postprocessed {
		return fmt.Errorf("keystore: Postprocess called twice")
	}

	s.byDomain = make(map[string][]int)

	for i := range s.declarations {
		d := &s.declarations[i]
		if d.V == "" {
			d.V = "DKIM1"
		}
		if d.G == "" {
			d.G = "*"
		}
		if d.N != "" {
			d.N = quotedPrintable(d.N)
		}

		if strings.Contains(d.Domain.Literal, "*") {
			pat, err := compileWildcard(d.Domain.Literal)
			if err != nil {
				return fmt.Errorf("keystore: domain %q: %w", d.Domain.Literal, err)
			}
			d.Domain.Pattern = pat
			if !s.warnedWildcard {
				s.Log.Msg("wildcard signing domain declared", "domain", d.Domain.Literal)
				s.warnedWildcard = true
			}
			continue
		}

		s.byDomain[d.Domain.Literal] = append(s.byDomain[d.Domain.Literal], i)
	}

	for i := range s.declarations {
		d := &s.declarations[i]
		if !d.Domain.isWildcard() {
			continue
		}
		s.wildcard = append(s.wildcard, i)
		s.byDomain["*"] = append(s.byDomain["*"], i)
		for literal := range s.byDomain {
			if literal != "*" && d.Domain.Pattern.MatchString(literal) {
				s.byDomain[literal] = append(s.byDomain[literal], i)
			}
		}
	}

	for domain := range s.byDomain {
		sortByIndex(s.byDomain[domain], s.declarations)
	}

	s.postprocessed = true
	return nil
}

func sortByIndex(idx []int, decls []Declaration) {
	for i := 1; i < len(idx); i++ {
		j := i
		for j > 0 && decls[idx[j-1]].index > decls[idx[j]].index {
			idx[j-1], idx[j] = idx[j], idx[j-1]
			j--
		}
	}
}

// compileWildcard turns a domain with one or more '*' segments into
// an anchored regular expression, collapsing runs of '*' into a
// single ".*".
func compileWildcard(domain string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteByte('^')
	runs := strings.Split(domain, "*")
	for i, lit := range runs {
		if i != 0 {
			b.WriteString(".*")
		}
		b.WriteString(regexp.QuoteMeta(lit))
	}
	b.WriteByte('$')
	return regexp.Compile(b.String())
}

func quotedPrintable(s string) string {
	var buf bytes.Buffer
	w := quotedprintable.NewWriter(&buf)
	_, _ = w.Write([]byte(s))
	_ = w.Close()
	return buf.String()
}

// NormalizeDomain lowercases and NFC-normalizes domain the way the
// key store's own declared domains are normalized, so a caller
// querying on behalf of a request can match IDN domains declared
// either in Unicode or A-label form.
func NormalizeDomain(domain string) (string, error) {
	ascii, err := idna.ToASCII(domain)
	if err != nil {
		return strings.ToLower(norm.NFC.String(domain)), nil
	}
	return strings.ToLower(ascii), nil
}
