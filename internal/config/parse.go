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

// Package config reads the daemon's block-structured configuration
// file and binds its directives onto Go values via Map.
//
// The dialect is a trimmed version of the Caddyfile-derived format
// used throughout the teacher codebase this package is descended
// from: no macros, no snippets, no file imports — a single
// configuration file is all this daemon ever reads.
package config

import (
	"errors"
	"fmt"
	"io"
	"unicode"

	"github.com/dkimsignd/dkimsignd/internal/config/lexer"
)

// Node is a parsed configuration block or directive:
//
//	name arg0 arg1 {
//	  child0
//	  child1
//	}
type Node struct {
	Name     string
	Args     []string
	Children []Node
	File     string
	Line     int
}

func validateNodeName(s string) error {
	if len(s) == 0 {
		return errors.New("empty directive name")
	}
	r := []rune(s)
	if unicode.IsDigit(r[0]) {
		return errors.New("directive name cannot start with a digit")
	}
	allowedPunct := map[rune]bool{'.': true, '-': true, '_': true, '@': true}
	for _, ch := range r {
		if !unicode.IsLetter(ch) && !unicode.IsDigit(ch) && !allowedPunct[ch] {
			return fmt.Errorf("character not allowed in directive name: %c", ch)
		}
	}
	return nil
}

type cursor struct {
	toks []lexer.Token
	pos  int // index of current token, -1 before the first
}

func (c *cursor) val() string {
	if c.pos < 0 || c.pos >= len(c.toks) {
		return ""
	}
	return c.toks[c.pos].Text
}

func (c *cursor) tok() lexer.Token {
	if c.pos < 0 || c.pos >= len(c.toks) {
		return lexer.Token{}
	}
	return c.toks[c.pos]
}

func (c *cursor) next() bool {
	if c.pos+1 >= len(c.toks) {
		c.pos = len(c.toks)
		return false
	}
	c.pos++
	return true
}

func (c *cursor) sameLine() bool {
	if c.pos+1 >= len(c.toks) {
		return false
	}
	return c.toks[c.pos+1].Line == c.toks[c.pos].Line
}

func (c *cursor) nextArg() bool {
	if !c.sameLine() {
		return false
	}
	return c.next()
}

func (c *cursor) errf(format string, args ...interface{}) error {
	t := c.tok()
	if t.File == "" {
		return fmt.Errorf(format, args...)
	}
	return fmt.Errorf("%s:%d: %s", t.File, t.Line, fmt.Sprintf(format, args...))
}

// readNode reads the node starting at the cursor's current token
// (the node's name). On return the cursor points at the node's last
// token.
func (c *cursor) readNode() (Node, error) {
	node := Node{File: c.tok().File, Line: c.tok().Line}

	if c.val() == "{" {
		return node, c.errf("unexpected { where a directive name was expected")
	}
	node.Name = c.val()

	for c.nextArg() {
		if c.val() == "{" {
			children, err := c.readNodes()
			if err != nil {
				return node, err
			}
			node.Children = children
			break
		}
		node.Args = append(node.Args, c.val())
	}

	if err := validateNodeName(node.Name); err != nil {
		return node, c.errf("%v", err)
	}

	return node, nil
}

// readNodes reads the nodes of a block. The cursor must be positioned
// on the block's opening "{" when called; on return it points at the
// closing "}".
func (c *cursor) readNodes() ([]Node, error) {
	res := []Node{}
	nesting := 1

	for {
		if !c.next() {
			return res, c.errf("unexpected EOF, missing }")
		}
		if c.val() == "}" {
			nesting--
			return res, nil
		}

		node, err := c.readNode()
		if err != nil {
			return res, err
		}

		if len(node.Args) != 0 && node.Args[len(node.Args)-1] == "}" {
			node.Args = node.Args[:len(node.Args)-1]
			res = append(res, node)
			nesting--
			return res, nil
		}

		res = append(res, node)
	}
}

// Read parses r's top-level directives, naming the source as file in
// error messages.
func Read(r io.Reader, file string) ([]Node, error) {
	toks, err := lexer.Tokenize(r, file)
	if err != nil {
		return nil, err
	}

	c := &cursor{toks: toks, pos: -1}
	var nodes []Node
	for c.next() {
		node, err := c.readNode()
		if err != nil {
			return nodes, err
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

// NodeErr formats err against node's source position, for errors
// discovered during directive binding rather than parsing.
func NodeErr(node Node, format string, args ...interface{}) error {
	if node.File == "" {
		return fmt.Errorf(format, args...)
	}
	return fmt.Errorf("%s:%d: %s", node.File, node.Line, fmt.Sprintf(format, args...))
}
