package options

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dkimsignd/dkimsignd/internal/keystore"
	"github.com/dkimsignd/dkimsignd/internal/log"
)

func TestExtractAddress(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Alice <alice@example.org>", "alice@example.org"},
		{"bob@example.org", "bob@example.org"},
		{"<@relay1,@relay2:bob@example.org>", "bob@example.org"},
		{"  <carol@example.org>  ", "carol@example.org"},
	}
	for _, c := range cases {
		if got := ExtractAddress(c.in); got != c.want {
			t.Errorf("ExtractAddress(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestSplitUnquoted(t *testing.T) {
	cases := []struct {
		in, local, domain string
		wantErr           bool
	}{
		{"bob@example.org", "bob", "example.org", false},
		{`"b@b"@example.org`, "b@b", "example.org", false},
		{"postmaster", "postmaster", "", false},
		{"nodomain", "nodomain", "", false},
		{"@example.org", "", "", true},
		{"", "", "", true},
	}
	for _, c := range cases {
		local, domain, err := SplitUnquoted(c.in)
		if c.wantErr {
			if err == nil {
				t.Errorf("SplitUnquoted(%q): expected error", c.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("SplitUnquoted(%q): unexpected error: %v", c.in, err)
			continue
		}
		if local != c.local || domain != c.domain {
			t.Errorf("SplitUnquoted(%q) = (%q, %q), want (%q, %q)", c.in, local, domain, c.local, c.domain)
		}
	}
}

func TestQueryKeysOrderAndExclusions(t *testing.T) {
	keys := QueryKeys("alice+list", "sub.example.org")
	want := []string{
		"alice+list@sub.example.org",
		"alice@sub.example.org",
		"alice+list@",
		"alice@",
		"@sub.example.org",
		"@.example.org",
		"@.org",
		"@.",
	}
	if len(keys) != len(want) {
		t.Fatalf("expected %d deduplicated keys %v, got %v", len(want), want, keys)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("key %d: expected %q, got %q (all keys: %v)", i, want[i], keys[i], keys)
		}
	}
	if len(keys) == 0 {
		t.Fatal("expected at least one query key")
	}
	if keys[0] != "alice+list@sub.example.org" {
		t.Fatalf("as-is key must be first, got %q", keys[0])
	}
	foundAtDomain := false
	for _, k := range keys {
		if k == "@sub.example.org" {
			foundAtDomain = true
		}
	}
	if !foundAtDomain {
		t.Fatalf("expected @domain key among %v", keys)
	}
}

func TestQueryKeysPostmasterNotSplit(t *testing.T) {
	keys := QueryKeys("postmaster+x", "example.org")
	for _, k := range keys {
		if k == "postmaster@example.org" {
			t.Fatalf("postmaster-like local part must not be split, got keys %v", keys)
		}
	}
	if keys[0] != "postmaster+x@example.org" {
		t.Fatalf("expected as-is key first, got %v", keys)
	}
}

func TestQueryKeysParentSuffixChain(t *testing.T) {
	keys := QueryKeys("bob", "a.b.c.example.org")
	want := []string{"@.b.c.example.org", "@.c.example.org", "@.example.org", "@.org", "@."}
	for _, w := range want {
		found := false
		for _, k := range keys {
			if k == w {
				found = true
			}
		}
		if !found {
			t.Errorf("expected suffix key %q among %v", w, keys)
		}
	}
}

func writeRSAKey(t *testing.T, dir, name string) string {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 1024)
	if err != nil {
		t.Fatal(err)
	}
	der := x509.MarshalPKCS1PrivateKey(key)
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := pem.Encode(f, &pem.Block{Type: "RSA PRIVATE KEY", Bytes: der}); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestResolverMergesTagMapsFirstMatchWins(t *testing.T) {
	dir := t.TempDir()
	path := writeRSAKey(t, dir, "s1.pem")

	store := keystore.NewStore(log.Logger{Out: log.NopOutput()})
	if err := store.Declare("example.org", "s1", path, keystore.Options{}); err != nil {
		t.Fatal(err)
	}
	if err := store.Postprocess(); err != nil {
		t.Fatal(err)
	}

	r := &Resolver{
		Store: store,
		TagMaps: []TagMap{
			{
				Name: "overrides",
				Entries: map[string]map[string]string{
					"alice@example.org": {"c": "simple/simple"},
				},
			},
			{
				Name: "domain-wide",
				Entries: map[string]map[string]string{
					"@example.org": {"c": "relaxed/relaxed", "a": "rsa-sha256"},
				},
			},
		},
		Defaults: map[string]string{"c": "relaxed/simple", "a": "rsa-sha256"},
	}

	tags, sel, ok := r.Resolve([]string{"Alice <alice@example.org>"}, nil)
	if !ok {
		t.Fatal("expected key to be selected")
	}
	if tags["c"] != "simple/simple" {
		t.Fatalf("expected most specific tag-map entry to win, got c=%q", tags["c"])
	}
	if sel.Selector != "s1" || sel.Domain != "example.org" {
		t.Fatalf("unexpected selection: %+v", sel)
	}
	if tags["s"] != "s1" || tags["d"] != "example.org" {
		t.Fatalf("expected s/d overwritten from selection, got s=%q d=%q", tags["s"], tags["d"])
	}
}

// TestTagMapLookupMergesAcrossMatchingKeysInSameMap pins the
// within-tag-map merge: a more specific key that only sets some tags
// must not mask tags a less specific key in the *same* tag-map would
// otherwise supply.
func TestTagMapLookupMergesAcrossMatchingKeysInSameMap(t *testing.T) {
	tm := TagMap{
		Name: "mixed-specificity",
		Entries: map[string]map[string]string{
			"alice@example.org": {"c": "simple/simple"},
			"@example.org":      {"c": "relaxed/relaxed", "a": "rsa-sha256"},
		},
	}

	tags, ok := tm.lookup(QueryKeys("alice", "example.org"))
	if !ok {
		t.Fatal("expected at least one key to match")
	}
	if tags["c"] != "simple/simple" {
		t.Fatalf("expected the more specific key's c to win, got %q", tags["c"])
	}
	if tags["a"] != "rsa-sha256" {
		t.Fatalf("expected the less specific key's a to still be supplied, got %q", tags["a"])
	}
}

func TestResolverRequestOverridesWinOverTagMap(t *testing.T) {
	dir := t.TempDir()
	p1 := writeRSAKey(t, dir, "s1.pem")
	p2 := writeRSAKey(t, dir, "s2.pem")

	store := keystore.NewStore(log.Logger{Out: log.NopOutput()})
	if err := store.Declare("example.org", "s1", p1, keystore.Options{H: "sha1"}); err != nil {
		t.Fatal(err)
	}
	if err := store.Declare("example.org", "s2", p2, keystore.Options{H: "sha256"}); err != nil {
		t.Fatal(err)
	}
	if err := store.Postprocess(); err != nil {
		t.Fatal(err)
	}

	r := &Resolver{
		Store:    store,
		TagMaps:  []TagMap{{Name: "m", Entries: map[string]map[string]string{"@example.org": {"a": "rsa-sha1"}}}},
		Defaults: map[string]string{"c": "relaxed/simple", "a": "rsa-sha256"},
	}

	tags, sel, ok := r.Resolve([]string{"bob@example.org"}, map[string]string{"a": "rsa-sha256"})
	if !ok {
		t.Fatal("expected key to be selected")
	}
	if tags["a"] != "rsa-sha256" {
		t.Fatalf("expected request override to win, got a=%q", tags["a"])
	}
	if sel.Selector != "s2" {
		t.Fatalf("expected sha256 key s2 selected, got %+v", sel)
	}
}

func TestResolverFallsThroughCandidates(t *testing.T) {
	dir := t.TempDir()
	p := writeRSAKey(t, dir, "s1.pem")

	store := keystore.NewStore(log.Logger{Out: log.NopOutput()})
	if err := store.Declare("good.example", "s1", p, keystore.Options{}); err != nil {
		t.Fatal(err)
	}
	if err := store.Postprocess(); err != nil {
		t.Fatal(err)
	}

	r := &Resolver{
		Store:    store,
		Defaults: map[string]string{"c": "relaxed/simple", "a": "rsa-sha256"},
	}

	_, sel, ok := r.Resolve([]string{"nobody@unknown.example", "anybody@good.example"}, nil)
	if !ok {
		t.Fatal("expected second candidate to yield a key")
	}
	if sel.Domain != "good.example" {
		t.Fatalf("unexpected selection: %+v", sel)
	}
}

func TestResolverNoCandidateMatches(t *testing.T) {
	store := keystore.NewStore(log.Logger{Out: log.NopOutput()})
	if err := store.Postprocess(); err != nil {
		t.Fatal(err)
	}

	r := &Resolver{Store: store, Defaults: map[string]string{"c": "relaxed/simple"}}
	tags, _, ok := r.Resolve([]string{"nobody@unknown.example"}, nil)
	if ok {
		t.Fatal("expected no match")
	}
	if tags["c"] != "relaxed/simple" {
		t.Fatalf("expected last accumulated tags to still carry defaults, got %+v", tags)
	}
}

func TestValidateCanonicalization(t *testing.T) {
	cases := []struct {
		in      string
		wantErr bool
	}{
		{"", false},
		{"relaxed", false},
		{"simple", false},
		{"relaxed/simple", false},
		{"simple/relaxed", false},
		{"bogus", true},
		{"relaxed/bogus", true},
	}
	for _, c := range cases {
		err := ValidateCanonicalization(c.in)
		if c.wantErr != (err != nil) {
			t.Errorf("ValidateCanonicalization(%q): err=%v, wantErr=%v", c.in, err, c.wantErr)
		}
	}
}

func TestResolverRejectsInvalidCanonicalization(t *testing.T) {
	dir := t.TempDir()
	p := writeRSAKey(t, dir, "s1.pem")

	store := keystore.NewStore(log.Logger{Out: log.NopOutput()})
	if err := store.Declare("example.org", "s1", p, keystore.Options{}); err != nil {
		t.Fatal(err)
	}
	if err := store.Postprocess(); err != nil {
		t.Fatal(err)
	}

	r := &Resolver{Store: store, Defaults: map[string]string{"a": "rsa-sha256"}}
	_, _, ok := r.Resolve([]string{"bob@example.org"}, map[string]string{"c": "bogus/bogus"})
	if ok {
		t.Fatal("expected invalid canonicalization to prevent key selection")
	}
}

func TestApplyTTL(t *testing.T) {
	now := time.Unix(1000, 0)

	tags := map[string]string{"ttl": "60"}
	if err := ApplyTTL(tags, now); err != nil {
		t.Fatal(err)
	}
	if _, ok := tags["ttl"]; ok {
		t.Fatal("expected ttl to be removed")
	}
	if tags["x"] != "1060" {
		t.Fatalf("expected x=1060, got %q", tags["x"])
	}

	tags2 := map[string]string{"ttl": "60", "x": "42"}
	if err := ApplyTTL(tags2, now); err != nil {
		t.Fatal(err)
	}
	if tags2["x"] != "42" {
		t.Fatalf("expected explicit x to be preserved, got %q", tags2["x"])
	}

	tags3 := map[string]string{}
	if err := ApplyTTL(tags3, now); err != nil {
		t.Fatal(err)
	}
	if _, ok := tags3["x"]; ok {
		t.Fatal("expected no x tag when ttl absent")
	}
}
