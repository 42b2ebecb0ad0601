// Package dissect turns decoded gopacket packets into flat field trees that
// display filters are evaluated against.
package dissect

import (
	"net/netip"
	"sort"
	"strings"
)

// FieldType is the value type carried by a field
type FieldType int

const (
	// FTProtocol marks a protocol node; it carries no value and is only tested for presence
	FTProtocol FieldType = iota
	FTUint
	FTBool
	FTIP
	FTEther
	FTString
	FTBytes
)

func (t FieldType) String() string {
	switch t {
	case FTProtocol:
		return "protocol"
	case FTUint:
		return "unsigned integer"
	case FTBool:
		return "boolean"
	case FTIP:
		return "IP address"
	case FTEther:
		return "Ethernet address"
	case FTString:
		return "character string"
	case FTBytes:
		return "byte sequence"
	default:
		return "unknown"
	}
}

// FieldInfo describes a registered field
type FieldInfo struct {
	Abbrev string
	Name   string
	Type   FieldType
	// Optional fields are expensive to extract and are skipped on primed
	// packets unless a filter asked for them.
	Optional bool
}

// Value is a single field occurrence. Which member is meaningful depends on
// the field's FieldType.
type Value struct {
	Uint  uint64
	IP    netip.Addr
	Bytes []byte
	Str   string
}

var registry = map[string]FieldInfo{}

func register(abbrev, name string, ft FieldType, optional bool) {
	registry[abbrev] = FieldInfo{Abbrev: abbrev, Name: name, Type: ft, Optional: optional}
}

func init() {
	register("frame", "Frame", FTProtocol, false)
	register("frame.number", "Frame Number", FTUint, false)
	register("frame.len", "Frame Length", FTUint, false)
	register("frame.cap_len", "Capture Length", FTUint, false)
	register("frame.protocols", "Protocols in frame", FTString, true)

	register("eth", "Ethernet", FTProtocol, false)
	register("eth.src", "Source", FTEther, false)
	register("eth.dst", "Destination", FTEther, false)
	register("eth.addr", "Address", FTEther, false)
	register("eth.type", "Type", FTUint, false)

	register("vlan", "802.1Q Virtual LAN", FTProtocol, false)
	register("vlan.id", "ID", FTUint, false)

	register("arp", "Address Resolution Protocol", FTProtocol, false)
	register("arp.opcode", "Opcode", FTUint, false)
	register("arp.src.hw_mac", "Sender MAC address", FTEther, false)
	register("arp.src.proto_ipv4", "Sender IP address", FTIP, false)
	register("arp.dst.proto_ipv4", "Target IP address", FTIP, false)

	register("ip", "Internet Protocol Version 4", FTProtocol, false)
	register("ip.version", "Version", FTUint, false)
	register("ip.src", "Source Address", FTIP, false)
	register("ip.dst", "Destination Address", FTIP, false)
	register("ip.addr", "Source or Destination Address", FTIP, false)
	register("ip.proto", "Protocol", FTUint, false)
	register("ip.ttl", "Time to Live", FTUint, false)
	register("ip.len", "Total Length", FTUint, false)
	register("ip.id", "Identification", FTUint, false)
	register("ip.flags.df", "Don't fragment", FTBool, false)
	register("ip.flags.mf", "More fragments", FTBool, false)

	register("ipv6", "Internet Protocol Version 6", FTProtocol, false)
	register("ipv6.src", "Source Address", FTIP, false)
	register("ipv6.dst", "Destination Address", FTIP, false)
	register("ipv6.addr", "Source or Destination Address", FTIP, false)
	register("ipv6.nxt", "Next Header", FTUint, false)
	register("ipv6.hlim", "Hop Limit", FTUint, false)
	register("ipv6.plen", "Payload Length", FTUint, false)

	register("tcp", "Transmission Control Protocol", FTProtocol, false)
	register("tcp.srcport", "Source Port", FTUint, false)
	register("tcp.dstport", "Destination Port", FTUint, false)
	register("tcp.port", "Source or Destination Port", FTUint, false)
	register("tcp.seq", "Sequence Number", FTUint, false)
	register("tcp.ack", "Acknowledgment Number", FTUint, false)
	register("tcp.len", "TCP Segment Len", FTUint, false)
	register("tcp.window_size", "Window", FTUint, false)
	register("tcp.flags", "Flags", FTUint, false)
	register("tcp.flags.fin", "Fin", FTBool, false)
	register("tcp.flags.syn", "Syn", FTBool, false)
	register("tcp.flags.reset", "Reset", FTBool, false)
	register("tcp.flags.push", "Push", FTBool, false)
	register("tcp.flags.ack", "Acknowledgment", FTBool, false)
	register("tcp.flags.urg", "Urgent", FTBool, false)

	register("udp", "User Datagram Protocol", FTProtocol, false)
	register("udp.srcport", "Source Port", FTUint, false)
	register("udp.dstport", "Destination Port", FTUint, false)
	register("udp.port", "Source or Destination Port", FTUint, false)
	register("udp.length", "Length", FTUint, false)

	register("icmp", "Internet Control Message Protocol", FTProtocol, false)
	register("icmp.type", "Type", FTUint, false)
	register("icmp.code", "Code", FTUint, false)
	register("icmpv6", "Internet Control Message Protocol v6", FTProtocol, false)
	register("icmpv6.type", "Type", FTUint, false)
	register("icmpv6.code", "Code", FTUint, false)
	register("igmp", "Internet Group Management Protocol", FTProtocol, false)

	register("dns", "Domain Name System", FTProtocol, true)
	register("dns.id", "Transaction ID", FTUint, true)
	register("dns.flags.response", "Response", FTBool, true)
	register("dns.qry.name", "Name", FTString, true)
	register("dns.count.queries", "Questions", FTUint, true)
	register("dns.count.answers", "Answer RRs", FTUint, true)

	register("data", "Data", FTProtocol, true)
	register("data.data", "Data", FTBytes, true)
	register("data.len", "Length", FTUint, true)
}

// LookupField returns the registered field for abbrev
func LookupField(abbrev string) (FieldInfo, bool) {
	fi, ok := registry[abbrev]
	return fi, ok
}

// Fields returns all registered fields sorted by abbreviation
func Fields() []FieldInfo {
	out := make([]FieldInfo, 0, len(registry))
	for _, fi := range registry {
		out = append(out, fi)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Abbrev < out[j].Abbrev })
	return out
}

// ancestors returns the parents of a dotted abbreviation, nearest first:
// "dns.qry.name" -> ["dns.qry", "dns"].
func ancestors(abbrev string) []string {
	var out []string
	for {
		idx := strings.LastIndexByte(abbrev, '.')
		if idx < 0 {
			return out
		}
		abbrev = abbrev[:idx]
		out = append(out, abbrev)
	}
}
