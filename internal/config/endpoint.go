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

package config

import (
	"fmt"
	"net"
	"net/url"
	"path/filepath"
	"strings"
)

// RuntimeDirectory is where relative unix:// socket paths in "listen"
// directives are resolved against.
var RuntimeDirectory = "/var/run/dkimsignd"

// Endpoint is one "listen" argument: a tcp://, tls:// or unix://
// address the daemon binds a listener on.
type Endpoint struct {
	Original, Scheme, Host, Port, Path string
}

func (e Endpoint) String() string {
	if e.Original != "" {
		return e.Original
	}
	if e.Scheme == "unix" {
		return "unix://" + e.Path
	}
	s := e.Scheme
	if s != "" {
		s += "://"
	}
	host := e.Host
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	s += host
	if e.Port != "" {
		s += ":" + e.Port
	}
	return s
}

// Network returns the net.Listen network argument for this endpoint:
// "unix" or "tcp".
func (e Endpoint) Network() string {
	if e.Scheme == "unix" {
		return "unix"
	}
	return "tcp"
}

// Address returns the net.Listen address argument for this endpoint.
func (e Endpoint) Address() string {
	if e.Scheme == "unix" {
		return e.Path
	}
	return net.JoinHostPort(e.Host, e.Port)
}

// IsTLS reports whether the endpoint was written with the tls://
// scheme. The daemon does not terminate TLS itself: a tls:// endpoint
// is bound as a plain TCP listener.
func (e Endpoint) IsTLS() bool {
	return e.Scheme == "tls"
}

// ParseEndpoint parses one "listen" argument into an Endpoint.
func ParseEndpoint(str string) (Endpoint, error) {
	input := str

	u, err := url.Parse(str)
	if err != nil {
		return Endpoint{}, err
	}

	switch u.Scheme {
	case "tcp", "tls":
		if u.Host == "" && u.Opaque != "" {
			u.Host = u.Opaque
		}
	case "unix":
		if u.Path == "" && u.Opaque != "" {
			u.Path = u.Opaque
		}

		actualPath := u.Host + u.Path
		if !filepath.IsAbs(actualPath) {
			actualPath = filepath.Join(RuntimeDirectory, actualPath)
		}

		return Endpoint{Original: input, Scheme: u.Scheme, Path: actualPath}, nil
	default:
		return Endpoint{}, fmt.Errorf("unsupported listen scheme: %s", input)
	}

	host, port, err := net.SplitHostPort(u.Host)
	if err != nil {
		host, port, err = net.SplitHostPort(u.Host + ":")
		if err != nil {
			host = u.Host
		}
	}
	if port == "" {
		return Endpoint{}, fmt.Errorf("listen %s: port is required", input)
	}

	return Endpoint{Original: input, Scheme: u.Scheme, Host: host, Port: port}, nil
}
