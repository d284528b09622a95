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

// Command dkimsignd-keygen generates an RSA signing key for a
// (domain, selector) pair: a PEM private key to point a "key"
// configuration directive at, and the DNS TXT record value to publish
// for it.
package main

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "dkimsignd-keygen",
		Usage: "generate an RSA DKIM signing key and its DNS TXT record",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "domain", Required: true, Usage: "signing domain"},
			&cli.StringFlag{Name: "selector", Required: true, Usage: "selector"},
			&cli.IntFlag{Name: "bits", Value: 2048, Usage: "RSA key size in bits"},
			&cli.PathFlag{Name: "out", Required: true, Usage: "output path for the PEM private key; the TXT record is written alongside it with a .dns suffix"},
		},
		Action: generate,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func generate(ctx *cli.Context) error {
	domain := ctx.String("domain")
	selector := ctx.String("selector")
	keyPath := ctx.Path("out")
	bits := ctx.Int("bits")

	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return fmt.Errorf("dkimsignd-keygen: %w", err)
	}

	if err := writePrivateKey(keyPath, key); err != nil {
		return fmt.Errorf("dkimsignd-keygen: %w", err)
	}

	record, err := txtRecord(key)
	if err != nil {
		return fmt.Errorf("dkimsignd-keygen: %w", err)
	}

	dnsPath := keyPath + ".dns"
	if err := os.WriteFile(dnsPath, []byte(record+"\n"), 0o644); err != nil {
		return fmt.Errorf("dkimsignd-keygen: %w", err)
	}

	fmt.Printf("private key written to %s\n", keyPath)
	fmt.Printf("publish the following as a TXT record for %s._domainkey.%s (also written to %s):\n%s\n",
		selector, domain, dnsPath, record)
	return nil
}

// writePrivateKey PEM-encodes key in PKCS#1 form, the format the key
// store's loader accepts, and refuses to overwrite an existing file.
func writePrivateKey(path string, key *rsa.PrivateKey) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()

	return pem.Encode(f, &pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
}

// txtRecord builds the "v=DKIM1; k=rsa; p=..." value the operator
// publishes under "<selector>._domainkey.<domain>".
func txtRecord(key *rsa.PrivateKey) (string, error) {
	pubBlob, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("v=DKIM1; k=rsa; p=%s", base64.StdEncoding.EncodeToString(pubBlob)), nil
}
