package dissect

import (
	"fmt"
	"strconv"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// Summary is the packet-list column data for one packet
type Summary struct {
	Src      string
	Dst      string
	SrcPort  string
	DstPort  string
	Protocol string
	Length   int
	Info     string
}

// Summarize extracts the packet-list columns from a decoded packet
func Summarize(pkt gopacket.Packet) Summary {
	s := Summary{
		Src:      "unknown",
		Dst:      "unknown",
		Protocol: "unknown",
		Length:   len(pkt.Data()),
	}
	if md := pkt.Metadata(); md != nil && md.Length > 0 {
		s.Length = md.Length
	}

	if arpLayer := pkt.Layer(layers.LayerTypeARP); arpLayer != nil {
		arp := arpLayer.(*layers.ARP)
		s.Protocol = "ARP"
		s.Src = formatIPv4(arp.SourceProtAddress)
		s.Dst = formatIPv4(arp.DstProtAddress)
		if arp.Operation == layers.ARPRequest {
			s.Info = fmt.Sprintf("Who has %s? Tell %s", s.Dst, s.Src)
		} else {
			s.Info = fmt.Sprintf("%s is at %s", s.Src, formatMAC(arp.SourceHwAddress))
		}
		return s
	}

	if ethLayer := pkt.Layer(layers.LayerTypeEthernet); ethLayer != nil && pkt.NetworkLayer() == nil {
		eth := ethLayer.(*layers.Ethernet)
		s.Src = eth.SrcMAC.String()
		s.Dst = eth.DstMAC.String()
		s.Protocol = eth.EthernetType.String()
		return s
	}

	switch netl := pkt.NetworkLayer().(type) {
	case *layers.IPv4:
		s.Src = netl.SrcIP.String()
		s.Dst = netl.DstIP.String()
		s.Protocol = netl.Protocol.String()
	case *layers.IPv6:
		s.Src = netl.SrcIP.String()
		s.Dst = netl.DstIP.String()
		s.Protocol = netl.NextHeader.String()
	}

	switch trans := pkt.TransportLayer().(type) {
	case *layers.TCP:
		s.Protocol = "TCP"
		s.SrcPort = strconv.Itoa(int(trans.SrcPort))
		s.DstPort = strconv.Itoa(int(trans.DstPort))
		s.Info = fmt.Sprintf("%s -> %s [%s]", s.SrcPort, s.DstPort, FormatTCPFlags(trans))
	case *layers.UDP:
		s.Protocol = "UDP"
		s.SrcPort = strconv.Itoa(int(trans.SrcPort))
		s.DstPort = strconv.Itoa(int(trans.DstPort))
		s.Info = fmt.Sprintf("%s -> %s", s.SrcPort, s.DstPort)
	}

	if dnsLayer := pkt.Layer(layers.LayerTypeDNS); dnsLayer != nil {
		dns := dnsLayer.(*layers.DNS)
		s.Protocol = "DNS"
		if len(dns.Questions) > 0 {
			kind := "query"
			if dns.QR {
				kind = "response"
			}
			s.Info = fmt.Sprintf("Standard %s 0x%04x %s", kind, dns.ID, dns.Questions[0].Name)
		}
	} else if icmpLayer := pkt.Layer(layers.LayerTypeICMPv4); icmpLayer != nil {
		icmp := icmpLayer.(*layers.ICMPv4)
		s.Protocol = "ICMP"
		s.Info = icmp.TypeCode.String()
	} else if icmp6Layer := pkt.Layer(layers.LayerTypeICMPv6); icmp6Layer != nil {
		icmp6 := icmp6Layer.(*layers.ICMPv6)
		s.Protocol = "ICMPv6"
		s.Info = icmp6.TypeCode.String()
	}

	return s
}

// FormatTCPFlags returns the set TCP flags as a space separated list
func FormatTCPFlags(tcp *layers.TCP) string {
	flags := ""
	if tcp.SYN {
		flags += "SYN "
	}
	if tcp.ACK {
		flags += "ACK "
	}
	if tcp.FIN {
		flags += "FIN "
	}
	if tcp.RST {
		flags += "RST "
	}
	if tcp.PSH {
		flags += "PSH "
	}
	if tcp.URG {
		flags += "URG "
	}
	if flags == "" {
		return "NONE"
	}
	return flags[:len(flags)-1]
}

func formatIPv4(b []byte) string {
	if len(b) != 4 {
		return "unknown"
	}
	return fmt.Sprintf("%d.%d.%d.%d", b[0], b[1], b[2], b[3])
}

func formatMAC(b []byte) string {
	if len(b) != 6 {
		return "unknown"
	}
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", b[0], b[1], b[2], b[3], b[4], b[5])
}
