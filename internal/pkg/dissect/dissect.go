package dissect

import (
	"strings"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// TCP flag bits as they appear in tcp.flags
const (
	tcpFlagFIN = 0x01
	tcpFlagSYN = 0x02
	tcpFlagRST = 0x04
	tcpFlagPSH = 0x08
	tcpFlagACK = 0x10
	tcpFlagURG = 0x20
	tcpFlagECE = 0x40
	tcpFlagCWR = 0x80
)

// Dissect walks the decoded layers of pkt and fills out. Call out.Prime
// before Dissect to restrict optional fields; calling Dissect on a packet
// that was never primed extracts everything.
func Dissect(pkt gopacket.Packet, out *Packet) {
	data := pkt.Data()
	frameLen := uint64(len(data))
	if md := pkt.Metadata(); md != nil && md.Length > 0 {
		frameLen = uint64(md.Length)
	}

	out.AddProto("frame")
	out.AddUint("frame.number", out.Number)
	out.AddUint("frame.len", frameLen)
	out.AddUint("frame.cap_len", uint64(len(data)))

	for _, layer := range pkt.Layers() {
		switch l := layer.(type) {
		case *layers.Ethernet:
			out.AddProto("eth")
			out.AddBytes("eth.src", l.SrcMAC)
			out.AddBytes("eth.dst", l.DstMAC)
			out.AddBytes("eth.addr", l.SrcMAC)
			out.AddBytes("eth.addr", l.DstMAC)
			out.AddUint("eth.type", uint64(l.EthernetType))
		case *layers.Dot1Q:
			out.AddProto("vlan")
			out.AddUint("vlan.id", uint64(l.VLANIdentifier))
		case *layers.ARP:
			out.AddProto("arp")
			out.AddUint("arp.opcode", uint64(l.Operation))
			out.AddBytes("arp.src.hw_mac", l.SourceHwAddress)
			out.AddIP("arp.src.proto_ipv4", l.SourceProtAddress)
			out.AddIP("arp.dst.proto_ipv4", l.DstProtAddress)
		case *layers.IPv4:
			dissectIPv4(l, out)
		case *layers.IPv6:
			out.AddProto("ipv6")
			out.AddIP("ipv6.src", l.SrcIP)
			out.AddIP("ipv6.dst", l.DstIP)
			out.AddIP("ipv6.addr", l.SrcIP)
			out.AddIP("ipv6.addr", l.DstIP)
			out.AddUint("ipv6.nxt", uint64(l.NextHeader))
			out.AddUint("ipv6.hlim", uint64(l.HopLimit))
			out.AddUint("ipv6.plen", uint64(l.Length))
		case *layers.TCP:
			dissectTCP(l, out)
		case *layers.UDP:
			out.AddProto("udp")
			out.AddUint("udp.srcport", uint64(l.SrcPort))
			out.AddUint("udp.dstport", uint64(l.DstPort))
			out.AddUint("udp.port", uint64(l.SrcPort))
			out.AddUint("udp.port", uint64(l.DstPort))
			out.AddUint("udp.length", uint64(l.Length))
		case *layers.ICMPv4:
			out.AddProto("icmp")
			out.AddUint("icmp.type", uint64(l.TypeCode.Type()))
			out.AddUint("icmp.code", uint64(l.TypeCode.Code()))
		case *layers.ICMPv6:
			out.AddProto("icmpv6")
			out.AddUint("icmpv6.type", uint64(l.TypeCode.Type()))
			out.AddUint("icmpv6.code", uint64(l.TypeCode.Code()))
		case *layers.IGMP, *layers.IGMPv1or2:
			out.AddProto("igmp")
		case *layers.DNS:
			if out.Wants("dns") {
				dissectDNS(l, out)
			} else {
				out.AddProto("dns")
			}
		case *gopacket.Payload:
			if len(*l) == 0 {
				break
			}
			out.AddProto("data")
			if out.Wants("data") {
				out.AddBytes("data.data", []byte(*l))
				out.AddUint("data.len", uint64(len(*l)))
			}
		}
	}

	if out.Wants("frame.protocols") {
		out.AddString("frame.protocols", strings.Join(out.Protocols(), ":"))
	}
}

func dissectIPv4(l *layers.IPv4, out *Packet) {
	out.AddProto("ip")
	out.AddUint("ip.version", uint64(l.Version))
	out.AddIP("ip.src", l.SrcIP)
	out.AddIP("ip.dst", l.DstIP)
	out.AddIP("ip.addr", l.SrcIP)
	out.AddIP("ip.addr", l.DstIP)
	out.AddUint("ip.proto", uint64(l.Protocol))
	out.AddUint("ip.ttl", uint64(l.TTL))
	out.AddUint("ip.len", uint64(l.Length))
	out.AddUint("ip.id", uint64(l.Id))
	out.AddBool("ip.flags.df", l.Flags&layers.IPv4DontFragment != 0)
	out.AddBool("ip.flags.mf", l.Flags&layers.IPv4MoreFragments != 0)
}

func dissectTCP(l *layers.TCP, out *Packet) {
	out.AddProto("tcp")
	out.AddUint("tcp.srcport", uint64(l.SrcPort))
	out.AddUint("tcp.dstport", uint64(l.DstPort))
	out.AddUint("tcp.port", uint64(l.SrcPort))
	out.AddUint("tcp.port", uint64(l.DstPort))
	out.AddUint("tcp.seq", uint64(l.Seq))
	out.AddUint("tcp.ack", uint64(l.Ack))
	out.AddUint("tcp.len", uint64(len(l.Payload)))
	out.AddUint("tcp.window_size", uint64(l.Window))
	out.AddUint("tcp.flags", uint64(TCPFlags(l)))
	out.AddBool("tcp.flags.fin", l.FIN)
	out.AddBool("tcp.flags.syn", l.SYN)
	out.AddBool("tcp.flags.reset", l.RST)
	out.AddBool("tcp.flags.push", l.PSH)
	out.AddBool("tcp.flags.ack", l.ACK)
	out.AddBool("tcp.flags.urg", l.URG)
}

func dissectDNS(l *layers.DNS, out *Packet) {
	out.AddProto("dns")
	out.AddUint("dns.id", uint64(l.ID))
	out.AddBool("dns.flags.response", l.QR)
	out.AddUint("dns.count.queries", uint64(l.QDCount))
	out.AddUint("dns.count.answers", uint64(l.ANCount))
	if out.Wants("dns.qry.name") {
		for _, q := range l.Questions {
			out.AddString("dns.qry.name", string(q.Name))
		}
	}
}

// TCPFlags packs the TCP flag booleans into the on-wire flag byte
func TCPFlags(tcp *layers.TCP) uint8 {
	var f uint8
	if tcp.FIN {
		f |= tcpFlagFIN
	}
	if tcp.SYN {
		f |= tcpFlagSYN
	}
	if tcp.RST {
		f |= tcpFlagRST
	}
	if tcp.PSH {
		f |= tcpFlagPSH
	}
	if tcp.ACK {
		f |= tcpFlagACK
	}
	if tcp.URG {
		f |= tcpFlagURG
	}
	if tcp.ECE {
		f |= tcpFlagECE
	}
	if tcp.CWR {
		f |= tcpFlagCWR
	}
	return f
}
