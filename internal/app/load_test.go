package app

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func writeRSAKey(t *testing.T, dir, name string) string {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 1024)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := pem.Encode(f, &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}); err != nil {
		t.Fatal(err)
	}
	return path
}

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "dkimsignd.conf")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigBuildsDispatcher(t *testing.T) {
	dir := t.TempDir()
	keyPath := writeRSAKey(t, dir, "example.org.pem")

	cfgPath := writeConfig(t, dir, fmt.Sprintf(`
listen tcp://127.0.0.1:8642
foreground
log_level 5

key example.org s1 %s {
	h sha256
}

sender_map {
	"alice@example.org" s=s1 ttl=3600
}

default_tags {
	h sha256
}
`, keyPath))

	cfg, err := LoadConfig(cfgPath, false, false)
	if err != nil {
		t.Fatal(err)
	}

	if len(cfg.Settings.Listen) != 1 || cfg.Settings.Listen[0].Network() != "tcp" {
		t.Fatalf("unexpected listen endpoints: %+v", cfg.Settings.Listen)
	}
	if !cfg.Settings.Foreground {
		t.Fatal("expected foreground=true")
	}
	if cfg.Dispatcher == nil || cfg.Dispatcher.Resolver == nil || cfg.Dispatcher.Signer == nil {
		t.Fatal("expected a fully wired dispatcher")
	}
	if len(cfg.Dispatcher.Resolver.TagMaps) != 1 {
		t.Fatalf("expected one tag map, got %d", len(cfg.Dispatcher.Resolver.TagMaps))
	}
	if cfg.Dispatcher.Resolver.Defaults["h"] != "sha256" {
		t.Fatalf("expected default_tags to carry h=sha256, got %+v", cfg.Dispatcher.Resolver.Defaults)
	}
}

func TestLoadConfigMissingListenFails(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, "foreground\n")

	if _, err := LoadConfig(cfgPath, false, false); err == nil {
		t.Fatal("expected an error for a config file missing a required listen directive")
	}
}

func TestLoadConfigDebugOverrideForcesDebugLevel(t *testing.T) {
	dir := t.TempDir()
	keyPath := writeRSAKey(t, dir, "example.org.pem")
	cfgPath := writeConfig(t, dir, fmt.Sprintf(`
listen unix://%s/dkimsignd.sock
log_level 0

key example.org s1 %s {}
`, dir, keyPath))

	cfg, err := LoadConfig(cfgPath, true, true)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Settings.LogLevel != 5 {
		t.Fatalf("expected --debug to force LevelDebug(5), got %d", cfg.Settings.LogLevel)
	}
	if !cfg.Settings.Foreground {
		t.Fatal("expected --foreground override to apply")
	}
}

func TestLoadConfigRejectsSenderMapKeyWithBlock(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, `
listen tcp://127.0.0.1:8642

sender_map {
	"alice@example.org" {
		s s1
	}
}
`)

	if _, err := LoadConfig(cfgPath, false, false); err == nil {
		t.Fatal("expected an error for a sender_map key written as a block instead of tag=value pairs")
	}
}

func TestLoadConfigRejectsSenderMapMalformedPair(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, `
listen tcp://127.0.0.1:8642

sender_map {
	"alice@example.org" notapair
}
`)

	if _, err := LoadConfig(cfgPath, false, false); err == nil {
		t.Fatal("expected an error for a sender_map argument missing '='")
	}
}
