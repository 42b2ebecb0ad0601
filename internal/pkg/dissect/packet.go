package dissect

import (
	"net"
	"net/netip"
	"slices"
)

// Packet is the field tree of one dissected packet.
//
// A fresh Packet dissects every field. Once Prime has been called the packet
// switches to selective mode: optional fields are only extracted when they,
// one of their ancestors or one of their descendants was primed. Mandatory
// fields are always extracted, so priming can only skip work, never change
// what a filter over primed fields sees.
type Packet struct {
	Number uint64

	fields    map[string][]Value
	protocols []string
	primed    map[string]struct{}
}

// NewPacket creates an empty field tree for frame number n
func NewPacket(n uint64) *Packet {
	return &Packet{
		Number: n,
		fields: make(map[string][]Value, 32),
	}
}

// Reset clears the tree for reuse, dropping both values and priming
func (p *Packet) Reset(n uint64) {
	p.Number = n
	clear(p.fields)
	p.protocols = p.protocols[:0]
	p.primed = nil
}

// Prime marks a field as wanted. Priming "dns.qry.name" also marks "dns.qry"
// and "dns" so the protocol node is produced.
func (p *Packet) Prime(abbrev string) {
	if p.primed == nil {
		p.primed = make(map[string]struct{})
	}
	p.primed[abbrev] = struct{}{}
	for _, a := range ancestors(abbrev) {
		p.primed[a] = struct{}{}
	}
}

// Primed reports whether the packet is in selective mode
func (p *Packet) Primed() bool {
	return p.primed != nil
}

// Wants reports whether abbrev should be extracted
func (p *Packet) Wants(abbrev string) bool {
	if p.primed == nil {
		return true
	}
	if _, ok := p.primed[abbrev]; ok {
		return true
	}
	for _, a := range ancestors(abbrev) {
		if _, ok := p.primed[a]; ok {
			return true
		}
	}
	return false
}

// Add appends a value to a field. Optional fields not wanted are dropped.
func (p *Packet) Add(abbrev string, v Value) {
	if fi, ok := registry[abbrev]; ok && fi.Optional && !p.Wants(abbrev) {
		return
	}
	p.fields[abbrev] = append(p.fields[abbrev], v)
}

// AddProto records the presence of a protocol. An optional protocol that
// is not wanted still appears in Protocols, so frame.protocols reads the
// same whether or not the packet was primed.
func (p *Packet) AddProto(abbrev string) {
	if !slices.Contains(p.protocols, abbrev) {
		p.protocols = append(p.protocols, abbrev)
	}
	if fi, ok := registry[abbrev]; ok && fi.Optional && !p.Wants(abbrev) {
		return
	}
	p.fields[abbrev] = append(p.fields[abbrev], Value{})
}

// AddUint appends an unsigned integer value
func (p *Packet) AddUint(abbrev string, v uint64) {
	p.Add(abbrev, Value{Uint: v})
}

// AddBool appends a boolean value, stored as 0 or 1
func (p *Packet) AddBool(abbrev string, v bool) {
	var u uint64
	if v {
		u = 1
	}
	p.Add(abbrev, Value{Uint: u})
}

// AddIP appends an IP address value; invalid addresses are ignored
func (p *Packet) AddIP(abbrev string, ip net.IP) {
	addr, ok := netip.AddrFromSlice(ip)
	if !ok {
		return
	}
	p.Add(abbrev, Value{IP: addr.Unmap()})
}

// AddString appends a string value
func (p *Packet) AddString(abbrev, s string) {
	p.Add(abbrev, Value{Str: s})
}

// AddBytes appends a byte sequence (also used for Ethernet addresses)
func (p *Packet) AddBytes(abbrev string, b []byte) {
	p.Add(abbrev, Value{Bytes: b})
}

// Values returns all occurrences of a field
func (p *Packet) Values(abbrev string) []Value {
	return p.fields[abbrev]
}

// Has reports whether the field or protocol is present
func (p *Packet) Has(abbrev string) bool {
	return len(p.fields[abbrev]) > 0
}

// Protocols returns protocol abbreviations in dissection order
func (p *Packet) Protocols() []string {
	return p.protocols
}
