package server

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dkimsignd/dkimsignd/internal/keystore"
	"github.com/dkimsignd/dkimsignd/internal/log"
	"github.com/dkimsignd/dkimsignd/internal/options"
	"github.com/dkimsignd/dkimsignd/internal/protocol"
)

func genKey(t *testing.T, dir, name string) (*rsa.PrivateKey, string) {
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
	return key, path
}

func newDispatcher(t *testing.T, store *keystore.Store) *Dispatcher {
	t.Helper()
	if err := store.Postprocess(); err != nil {
		t.Fatal(err)
	}
	return &Dispatcher{
		Resolver: &options.Resolver{
			Store:    store,
			Defaults: map[string]string{"c": "relaxed/simple", "a": "rsa-sha256"},
		},
		Signer: &Signer{Store: store},
		Log:    log.Logger{Out: log.NopOutput()},
		Now:    func() time.Time { return time.Unix(1700000000, 0) },
	}
}

func req(pairs ...string) *protocol.Attributes {
	a := protocol.NewAttributes()
	for i := 0; i+1 < len(pairs); i += 2 {
		a.Add(pairs[i], pairs[i+1])
	}
	return a
}

// S1 — basic choose+sign.
func TestScenarioChooseKeyBasic(t *testing.T) {
	dir := t.TempDir()
	store := keystore.NewStore(log.Logger{Out: log.NopOutput()})
	_, path := genKey(t, dir, "sel1.pem")
	if err := store.Declare("example.org", "sel1", path, keystore.Options{}); err != nil {
		t.Fatal(err)
	}
	d := newDispatcher(t, store)

	r := req("request", "choose_key", "candidate", "author <u@example.org>")
	resp := d.Handle(r)

	checkAttr(t, resp, "sig.d", "example.org")
	checkAttr(t, resp, "sig.s", "sel1")
	checkAttr(t, resp, "sig.a", "rsa-sha256")
	checkAttr(t, resp, "sig.c", "relaxed/simple")
	checkAttr(t, resp, "chosen_candidate", "author u@example.org")
}

// S2 — sign round-trip.
func TestScenarioSignRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := keystore.NewStore(log.Logger{Out: log.NopOutput()})
	key, path := genKey(t, dir, "sel1.pem")
	if err := store.Declare("example.org", "sel1", path, keystore.Options{}); err != nil {
		t.Fatal(err)
	}
	d := newDispatcher(t, store)

	sum := sha256.Sum256([]byte("hello\n"))
	digest := base64.StdEncoding.EncodeToString(sum[:])

	r := req("request", "sign", "d", "example.org", "s", "sel1", "digest_alg", "sha256", "digest", digest)
	resp := d.Handle(r)

	checkAttr(t, resp, "d", "example.org")
	checkAttr(t, resp, "s", "sel1")

	b, ok := resp.Get("b")
	if !ok {
		t.Fatal("expected b in response")
	}
	sigBytes, err := base64.StdEncoding.DecodeString(b)
	if err != nil {
		t.Fatal(err)
	}
	if len(sigBytes) != 128 {
		t.Fatalf("expected a 128-byte signature, got %d bytes", len(sigBytes))
	}
	if err := rsa.VerifyPKCS1v15(&key.PublicKey, crypto.SHA256, sum[:], sigBytes); err != nil {
		t.Fatalf("signature failed to verify: %v", err)
	}
}

// S3 — selector constraint via sig.a override.
func TestScenarioSelectorConstraint(t *testing.T) {
	dir := t.TempDir()
	store := keystore.NewStore(log.Logger{Out: log.NopOutput()})
	_, p1 := genKey(t, dir, "sel1.pem")
	_, p2 := genKey(t, dir, "sel2.pem")
	if err := store.Declare("example.org", "sel1", p1, keystore.Options{H: "sha1"}); err != nil {
		t.Fatal(err)
	}
	if err := store.Declare("example.org", "sel2", p2, keystore.Options{H: "sha256"}); err != nil {
		t.Fatal(err)
	}
	d := newDispatcher(t, store)

	r := req("request", "choose_key", "candidate", "author <u@example.org>", "sig.a", "rsa-sha256")
	resp := d.Handle(r)
	checkAttr(t, resp, "sig.s", "sel2")

	r2 := req("request", "choose_key", "candidate", "author <u@example.org>", "sig.a", "rsa-sha1")
	resp2 := d.Handle(r2)
	checkAttr(t, resp2, "sig.s", "sel1")
}

// S5 — no key available.
func TestScenarioNoKeyAvailable(t *testing.T) {
	store := keystore.NewStore(log.Logger{Out: log.NopOutput()})
	d := newDispatcher(t, store)

	r := req("request", "choose_key", "candidate", "author <x@unknown.test>")
	resp := d.Handle(r)
	if resp.Has("sig.s") {
		t.Fatal("expected no sig.s when no key matches")
	}
	if resp.Has("chosen_candidate") {
		t.Fatal("expected no chosen_candidate when no key matches")
	}

	r2 := req("request", "sign", "d", "unknown.test", "s", "anything", "digest_alg", "sha256", "digest", "AAAA")
	resp2 := d.Handle(r2)
	checkAttr(t, resp2, "reason", "cannot sign, signing key not available")
	if resp2.Has("b") {
		t.Fatal("expected no b on failure")
	}
}

// S4 — subdomain rewrite via a sender-option tag-map.
func TestScenarioSubdomainRewrite(t *testing.T) {
	dir := t.TempDir()
	store := keystore.NewStore(log.Logger{Out: log.NopOutput()})
	_, path := genKey(t, dir, "sel1.pem")
	if err := store.Declare("example.com", "sel1", path, keystore.Options{}); err != nil {
		t.Fatal(err)
	}
	if err := store.Postprocess(); err != nil {
		t.Fatal(err)
	}

	d := &Dispatcher{
		Resolver: &options.Resolver{
			Store: store,
			TagMaps: []options.TagMap{
				{Name: "rewrite", Entries: map[string]map[string]string{
					"@.example.com": {"d": "example.com"},
				}},
			},
			Defaults: map[string]string{"c": "relaxed/simple", "a": "rsa-sha256"},
		},
		Signer: &Signer{Store: store},
		Log:    log.Logger{Out: log.NopOutput()},
		Now:    func() time.Time { return time.Unix(1700000000, 0) },
	}

	r := req("request", "choose_key", "candidate", "author <bob@mail.example.com>")
	resp := d.Handle(r)
	checkAttr(t, resp, "sig.d", "example.com")
	checkAttr(t, resp, "sig.s", "sel1")
}

func TestUnknownRequestType(t *testing.T) {
	store := keystore.NewStore(log.Logger{Out: log.NopOutput()})
	d := newDispatcher(t, store)

	r := req("request", "bogus")
	resp := d.Handle(r)
	checkAttr(t, resp, "reason", "unknown request type")
}

func TestRequestIdAndLogIdEchoedFirst(t *testing.T) {
	store := keystore.NewStore(log.Logger{Out: log.NopOutput()})
	d := newDispatcher(t, store)

	r := req("request", "bogus", "request_id", "r1", "log_id", "l1")
	resp := d.Handle(r)
	names := resp.Names()
	if len(names) < 2 || names[0] != "request_id" || names[1] != "log_id" {
		t.Fatalf("expected request_id, log_id first, got %v", names)
	}
}

func checkAttr(t *testing.T, a *protocol.Attributes, name, want string) {
	t.Helper()
	got, ok := a.Get(name)
	if !ok {
		t.Fatalf("expected attribute %q to be present", name)
	}
	if got != want {
		t.Fatalf("%s = %q, want %q", name, got, want)
	}
}
