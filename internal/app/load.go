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

// Package app binds the daemon's configuration file onto the key
// store, sender-options resolver and daemon harness built by the
// internal packages, the way the command-line entry points need them
// assembled.
package app

import (
	"fmt"
	"os"
	"strings"

	"github.com/dkimsignd/dkimsignd/internal/config"
	"github.com/dkimsignd/dkimsignd/internal/daemon"
	"github.com/dkimsignd/dkimsignd/internal/keystore"
	"github.com/dkimsignd/dkimsignd/internal/log"
	"github.com/dkimsignd/dkimsignd/internal/options"
	"github.com/dkimsignd/dkimsignd/internal/server"
)

// Config is everything LoadConfig assembles from a configuration
// file: the daemon's runtime settings plus a ready-to-run dispatcher
// wired to the declared keys and sender-option tag maps.
type Config struct {
	Settings   daemon.Settings
	Dispatcher *server.Dispatcher
	Log        log.Logger
}

// LoadConfig reads path and builds the daemon Config it declares.
// debugOverride and foregroundOverride apply the command line's
// --debug/--foreground flags on top of whatever the file itself says.
func LoadConfig(path string, debugOverride, foregroundOverride bool) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	defer f.Close()

	nodes, err := config.Read(f, path)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	root := config.Node{Name: "dkimsignd.conf", File: path, Children: nodes}

	store := keystore.NewStore(log.Logger{})
	resolver := &options.Resolver{Store: store}

	var settings daemon.Settings
	var listen []string
	var logLevel int

	m := config.NewMap(root)
	m.StringList("listen", true, nil, &listen)
	m.String("user", false, "", &settings.User)
	m.String("group", false, "", &settings.Group)
	m.String("chroot", false, "", &settings.Chroot)
	m.String("pidfile", false, "", &settings.PIDFile)
	m.String("syslog_ident", false, "dkimsignd", &settings.SyslogIdent)
	m.String("syslog_facility", false, "mail", &settings.SyslogFacility)
	m.Int("log_level", false, int(log.LevelInfo), &logLevel)
	m.Bool("foreground", false, &settings.Foreground)

	m.Callback("key", func(_ *config.Map, node config.Node) error {
		return declareKey(store, node)
	})
	m.Callback("sender_map", func(_ *config.Map, node config.Node) error {
		tm, err := parseSenderMap(node)
		if err != nil {
			return err
		}
		resolver.TagMaps = append(resolver.TagMaps, tm)
		return nil
	})
	m.Callback("default_tags", func(_ *config.Map, node config.Node) error {
		tags, err := parseTags(node.Children)
		if err != nil {
			return err
		}
		resolver.Defaults = tags
		return nil
	})

	if _, err := m.Process(); err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	settings.Listen = make([]config.Endpoint, 0, len(listen))
	for _, raw := range listen {
		ep, err := config.ParseEndpoint(raw)
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
		settings.Listen = append(settings.Listen, ep)
	}

	settings.LogLevel = log.Level(logLevel)
	if debugOverride {
		settings.LogLevel = log.LevelDebug
	}
	if foregroundOverride {
		settings.Foreground = true
	}

	logger, err := daemon.NewLogger(settings)
	if err != nil {
		return nil, err
	}
	store.Log = logger

	if err := store.Postprocess(); err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	dispatcher := &server.Dispatcher{
		Resolver: resolver,
		Signer:   &server.Signer{Store: store, Log: logger},
		Log:      logger,
	}

	return &Config{Settings: settings, Dispatcher: dispatcher, Log: logger}, nil
}

// declareKey binds one "key <domain> <selector> <path> { ... }" block
// onto the store, the public-record constraint tags (v, g, h, s, t, n)
// being its optional children.
func declareKey(store *keystore.Store, node config.Node) error {
	if len(node.Args) != 3 {
		return config.NodeErr(node, "key: expected domain, selector and path arguments")
	}
	domain, selector, path := node.Args[0], node.Args[1], node.Args[2]

	var opts keystore.Options
	km := config.NewMap(node)
	km.String("v", false, "", &opts.V)
	km.String("g", false, "", &opts.G)
	km.String("h", false, "", &opts.H)
	km.String("s", false, "", &opts.S)
	km.String("t", false, "", &opts.T)
	km.String("n", false, "", &opts.N)
	if _, err := km.Process(); err != nil {
		return err
	}

	return store.Declare(domain, selector, path, opts)
}

// parseSenderMap binds one "sender_map { ... }" block into a TagMap.
// Each child's own name is a lookup key as options.QueryKeys produces
// them ("bob@example.com", "@example.com", ".example.com", "."), and
// its arguments are "tag=value" pairs rather than the "tag value"
// directive form the rest of the configuration uses, matching the
// wire protocol's own name=value convention.
func parseSenderMap(node config.Node) (options.TagMap, error) {
	tm := options.TagMap{
		Name:    strings.Join(node.Args, " "),
		Entries: make(map[string]map[string]string),
	}

	m := config.NewMap(node)
	m.AllowUnknown()
	unknown, err := m.Process()
	if err != nil {
		return tm, err
	}

	for _, child := range unknown {
		tags, err := parseTagPairs(child)
		if err != nil {
			return tm, err
		}
		tm.Entries[child.Name] = tags
	}

	return tm, nil
}

// parseTagPairs reads one sender_map key's "tag=value" arguments.
func parseTagPairs(node config.Node) (map[string]string, error) {
	if len(node.Children) != 0 {
		return nil, config.NodeErr(node, "sender_map: %s: block not allowed here", node.Name)
	}

	tags := make(map[string]string, len(node.Args))
	for _, arg := range node.Args {
		tag, value, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, config.NodeErr(node, "sender_map: %s: expected tag=value, got %q", node.Name, arg)
		}
		if _, dup := tags[tag]; dup {
			return nil, config.NodeErr(node, "sender_map: %s: duplicate tag: %s", node.Name, tag)
		}
		tags[tag] = value
	}
	return tags, nil
}

// parseTags reads a flat block of "tag value" children into a tag
// map, as used by default_tags.
func parseTags(children []config.Node) (map[string]string, error) {
	tags := make(map[string]string, len(children))
	for _, child := range children {
		if len(child.Args) != 1 {
			return nil, config.NodeErr(child, "%s: expected exactly one argument", child.Name)
		}
		if len(child.Children) != 0 {
			return nil, config.NodeErr(child, "%s: block not allowed here", child.Name)
		}
		if _, dup := tags[child.Name]; dup {
			return nil, config.NodeErr(child, "duplicate tag: %s", child.Name)
		}
		tags[child.Name] = child.Args[0]
	}
	return tags, nil
}
