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
	"reflect"
	"strconv"
	"strings"
	"time"
)

type matcher struct {
	name     string
	required bool
	default_ func() (interface{}, error)
	mapper   func(*Map, Node) (interface{}, error)
	store    *reflect.Value

	callback func(*Map, Node) error
}

func (m *matcher) assign(val interface{}) {
	valRefl := reflect.ValueOf(val)
	if !valRefl.IsValid() {
		valRefl = reflect.Zero(m.store.Type())
	}
	m.store.Set(valRefl)
}

// Map implements reflection-based binding between configuration
// directives and Go variables, the way a daemon's top-level config
// block and each of its key/sender_map blocks are bound onto their
// respective Go structures.
type Map struct {
	allowUnknown bool

	Values  map[string]interface{}
	entries map[string]matcher

	Block Node
}

func NewMap(block Node) *Map {
	return &Map{Block: block}
}

// AllowUnknown makes Process skip directives with no matching entry
// instead of failing, returning them for the caller to handle (used
// for sender_map blocks, whose children are lookup keys rather than
// directive names known in advance).
func (m *Map) AllowUnknown() {
	m.allowUnknown = true
}

// Enum maps a directive to a string that must be a member of allowed.
func (m *Map) Enum(name string, required bool, allowed []string, defaultVal string, store *string) {
	m.Custom(name, required, func() (interface{}, error) {
		return defaultVal, nil
	}, func(_ *Map, node Node) (interface{}, error) {
		if len(node.Children) != 0 {
			return nil, NodeErr(node, "%s: block not allowed here", name)
		}
		if len(node.Args) != 1 {
			return nil, NodeErr(node, "%s: expected exactly one argument", name)
		}
		for _, a := range allowed {
			if a == node.Args[0] {
				return node.Args[0], nil
			}
		}
		return nil, NodeErr(node, "%s: invalid argument %q, valid values are: %v", name, node.Args[0], allowed)
	}, store)
}

// Duration maps a directive to a time.Duration, accepting anything
// time.ParseDuration accepts once its arguments are joined (so "1h
// 2m" and "1h2m" both parse).
func (m *Map) Duration(name string, required bool, defaultVal time.Duration, store *time.Duration) {
	m.Custom(name, required, func() (interface{}, error) {
		return defaultVal, nil
	}, func(_ *Map, node Node) (interface{}, error) {
		if len(node.Args) == 0 {
			return nil, NodeErr(node, "%s: at least one argument is required", name)
		}
		dur, err := time.ParseDuration(strings.Join(node.Args, ""))
		if err != nil {
			return nil, NodeErr(node, "%s: %v", name, err)
		}
		if dur < 0 {
			return nil, NodeErr(node, "%s: duration must not be negative", name)
		}
		return dur, nil
	}, store)
}

// ParseBool accepts the same spellings the daemon's boolean
// directives (foreground, among others) recognize.
func ParseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "1", "true", "on", "yes":
		return true, nil
	case "0", "false", "off", "no":
		return false, nil
	}
	return false, fmt.Errorf("bool argument should be 'yes' or 'no'")
}

// Bool maps a directive's mere presence, or an explicit yes/no
// argument, to a bool.
func (m *Map) Bool(name string, defaultVal bool, store *bool) {
	m.Custom(name, false, func() (interface{}, error) {
		return defaultVal, nil
	}, func(_ *Map, node Node) (interface{}, error) {
		if len(node.Children) != 0 {
			return nil, NodeErr(node, "%s: block not allowed here", name)
		}
		if len(node.Args) == 0 {
			return true, nil
		}
		if len(node.Args) != 1 {
			return nil, NodeErr(node, "%s: expected exactly 1 argument", name)
		}
		b, err := ParseBool(node.Args[0])
		if err != nil {
			return nil, NodeErr(node, "%s: %v", name, err)
		}
		return b, nil
	}, store)
}

// StringList maps a directive to all of its arguments.
func (m *Map) StringList(name string, required bool, defaultVal []string, store *[]string) {
	m.Custom(name, required, func() (interface{}, error) {
		return defaultVal, nil
	}, func(_ *Map, node Node) (interface{}, error) {
		if len(node.Args) == 0 {
			return nil, NodeErr(node, "%s: expected at least one argument", name)
		}
		if len(node.Children) != 0 {
			return nil, NodeErr(node, "%s: block not allowed here", name)
		}
		return node.Args, nil
	}, store)
}

// String maps a directive to its single argument.
func (m *Map) String(name string, required bool, defaultVal string, store *string) {
	m.Custom(name, required, func() (interface{}, error) {
		return defaultVal, nil
	}, func(_ *Map, node Node) (interface{}, error) {
		if len(node.Args) != 1 {
			return nil, NodeErr(node, "%s: expected exactly 1 argument", name)
		}
		if len(node.Children) != 0 {
			return nil, NodeErr(node, "%s: block not allowed here", name)
		}
		return node.Args[0], nil
	}, store)
}

// Int maps a directive to its single integer argument.
func (m *Map) Int(name string, required bool, defaultVal int, store *int) {
	m.Custom(name, required, func() (interface{}, error) {
		return defaultVal, nil
	}, func(_ *Map, node Node) (interface{}, error) {
		if len(node.Args) != 1 {
			return nil, NodeErr(node, "%s: expected exactly 1 argument", name)
		}
		i, err := strconv.Atoi(node.Args[0])
		if err != nil {
			return nil, NodeErr(node, "%s: invalid integer: %s", name, node.Args[0])
		}
		return i, nil
	}, store)
}

// Custom registers a directive binding driven by a caller-supplied
// mapper, for shapes the helpers above don't cover (key and
// sender_map blocks use this to parse their own inner structure).
//
// store must be a settable pointer, or nil to only populate
// Map.Values.
func (m *Map) Custom(name string, required bool, defaultVal func() (interface{}, error), mapper func(*Map, Node) (interface{}, error), store interface{}) {
	if m.entries == nil {
		m.entries = make(map[string]matcher)
	}
	if _, ok := m.entries[name]; ok {
		panic("config.Map.Custom: duplicate matcher for " + name)
	}

	var target *reflect.Value
	ptr := reflect.ValueOf(store)
	if ptr.IsValid() && !ptr.IsNil() {
		val := ptr.Elem()
		if !val.CanSet() {
			panic("config.Map.Custom: store must be a settable pointer")
		}
		target = &val
	}

	m.entries[name] = matcher{
		name:     name,
		required: required,
		default_: defaultVal,
		mapper:   mapper,
		store:    target,
	}
}

// Callback calls mapper once per directive occurrence with the given
// name, with no further processing — used for repeatable blocks such
// as "key" where each occurrence declares a distinct signing key.
func (m *Map) Callback(name string, mapper func(*Map, Node) error) {
	if m.entries == nil {
		m.entries = make(map[string]matcher)
	}
	if _, ok := m.entries[name]; ok {
		panic("config.Map.Callback: duplicate matcher for " + name)
	}
	m.entries[name] = matcher{name: name, callback: mapper}
}

// Process binds Map.Block's children onto the registered directives,
// returning any directives AllowUnknown left unmatched.
func (m *Map) Process() ([]Node, error) {
	block := m.Block
	unknown := make([]Node, 0, len(block.Children))
	matched := make(map[string]bool)
	m.Values = make(map[string]interface{})

	for _, subnode := range block.Children {
		entry, ok := m.entries[subnode.Name]
		if !ok {
			if !m.allowUnknown {
				return nil, NodeErr(subnode, "unexpected directive: %s", subnode.Name)
			}
			unknown = append(unknown, subnode)
			continue
		}

		if entry.callback != nil {
			if err := entry.callback(m, subnode); err != nil {
				return nil, err
			}
			matched[subnode.Name] = true
			continue
		}

		if matched[subnode.Name] {
			return nil, NodeErr(subnode, "duplicate directive: %s", subnode.Name)
		}
		matched[subnode.Name] = true

		val, err := entry.mapper(m, subnode)
		if err != nil {
			return nil, err
		}
		m.Values[entry.name] = val
		if entry.store != nil {
			entry.assign(val)
		}
	}

	for _, entry := range m.entries {
		if matched[entry.name] || entry.mapper == nil {
			continue
		}

		if entry.required {
			return nil, NodeErr(block, "missing required directive: %s", entry.name)
		}
		if entry.default_ == nil {
			continue
		}
		val, err := entry.default_()
		if err != nil {
			return nil, err
		}
		m.Values[entry.name] = val
		if entry.store != nil {
			entry.assign(val)
		}
	}

	return unknown, nil
}
