// Package dfilter compiles display filter expressions into predicates over
// dissected packets.
//
// Supported syntax:
//   - field or protocol presence: "tcp", "dns.qry.name"
//   - comparisons: ==, !=, >, <, >=, <=, eq, ne, gt, lt, ge, le,
//     contains, matches (or ~)
//   - boolean operators: and/&&, or/||, not/!, parentheses
//   - literals: integers (decimal or 0x hex), IP addresses and CIDR networks,
//     MAC addresses, byte strings (aa:bb:cc), quoted strings
//
// Multi-valued fields such as ip.addr match when any occurrence satisfies the
// comparison; "!=" matches when the field is present and no occurrence equals
// the literal.
package dfilter

import (
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/endorses/colorcat/internal/pkg/dissect"
	"github.com/endorses/colorcat/internal/pkg/logger"
)

// SyntaxError reports a filter that does not compile
type SyntaxError struct {
	Offset int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s (at offset %d)", e.Msg, e.Offset)
}

// Predicate is a compiled filter
type Predicate struct {
	text   string
	match  matchFunc
	fields []string
	freed  atomic.Bool
}

// Compile parses and compiles a display filter
func Compile(text string) (*Predicate, error) {
	tree, fields, err := parse(text)
	if err != nil {
		return nil, err
	}
	match, err := compileNode(tree)
	if err != nil {
		return nil, err
	}
	sort.Strings(fields)
	return &Predicate{text: text, match: match, fields: fields}, nil
}

// Match evaluates the predicate. A freed predicate never matches.
func (p *Predicate) Match(pkt *dissect.Packet) bool {
	if p.freed.Load() {
		logger.Error("Evaluated a freed display filter", "filter", p.text)
		return false
	}
	return p.match(pkt)
}

// Fields returns the field abbreviations the filter references, sorted
func (p *Predicate) Fields() []string {
	return p.fields
}

// Free releases the predicate. It must not be evaluated afterwards.
func (p *Predicate) Free() {
	p.freed.Store(true)
}

// Freed reports whether Free has been called
func (p *Predicate) Freed() bool {
	return p.freed.Load()
}

// String returns the filter text the predicate was compiled from
func (p *Predicate) String() string {
	return p.text
}
