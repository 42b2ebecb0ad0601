// Package dissecttest builds serialized packets for tests that need real
// gopacket decodes rather than hand-filled field trees.
package dissecttest

import (
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"github.com/endorses/colorcat/internal/pkg/dissect"
)

var (
	srcMAC = net.HardwareAddr{0x00, 0x0c, 0x29, 0x1f, 0x3c, 0x4e}
	dstMAC = net.HardwareAddr{0x00, 0x0c, 0x29, 0x1f, 0x3c, 0x4f}
)

func ipv4(src, dst string, proto layers.IPProtocol) (*layers.Ethernet, *layers.IPv4) {
	eth := &layers.Ethernet{
		SrcMAC:       srcMAC,
		DstMAC:       dstMAC,
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Flags:    layers.IPv4DontFragment,
		Protocol: proto,
		SrcIP:    net.ParseIP(src).To4(),
		DstIP:    net.ParseIP(dst).To4(),
	}
	return eth, ip
}

func build(ls ...gopacket.SerializableLayer) gopacket.Packet {
	buffer := gopacket.NewSerializeBuffer()
	options := gopacket.SerializeOptions{ComputeChecksums: true, FixLengths: true}
	if err := gopacket.SerializeLayers(buffer, options, ls...); err != nil {
		panic(err)
	}
	return gopacket.NewPacket(buffer.Bytes(), layers.LayerTypeEthernet, gopacket.Default)
}

// TCP builds an Ethernet/IPv4/TCP SYN packet with an optional payload
func TCP(src, dst string, srcPort, dstPort uint16, payload []byte) gopacket.Packet {
	eth, ip := ipv4(src, dst, layers.IPProtocolTCP)
	tcp := &layers.TCP{
		SrcPort: layers.TCPPort(srcPort),
		DstPort: layers.TCPPort(dstPort),
		Seq:     1000,
		SYN:     len(payload) == 0,
		ACK:     len(payload) > 0,
		PSH:     len(payload) > 0,
		Window:  65535,
	}
	_ = tcp.SetNetworkLayerForChecksum(ip)
	if len(payload) == 0 {
		return build(eth, ip, tcp)
	}
	return build(eth, ip, tcp, gopacket.Payload(payload))
}

// UDP builds an Ethernet/IPv4/UDP packet
func UDP(src, dst string, srcPort, dstPort uint16, payload []byte) gopacket.Packet {
	eth, ip := ipv4(src, dst, layers.IPProtocolUDP)
	udp := &layers.UDP{
		SrcPort: layers.UDPPort(srcPort),
		DstPort: layers.UDPPort(dstPort),
	}
	_ = udp.SetNetworkLayerForChecksum(ip)
	return build(eth, ip, udp, gopacket.Payload(payload))
}

// ICMPEcho builds an Ethernet/IPv4/ICMP echo request
func ICMPEcho(src, dst string) gopacket.Packet {
	eth, ip := ipv4(src, dst, layers.IPProtocolICMPv4)
	icmp := &layers.ICMPv4{
		TypeCode: layers.CreateICMPv4TypeCode(layers.ICMPv4TypeEchoRequest, 0),
		Id:       1,
		Seq:      1,
	}
	return build(eth, ip, icmp, gopacket.Payload([]byte("ping")))
}

// DNSQuery builds an Ethernet/IPv4/UDP/DNS A query for name
func DNSQuery(src, dst, name string) gopacket.Packet {
	eth, ip := ipv4(src, dst, layers.IPProtocolUDP)
	udp := &layers.UDP{SrcPort: 53000, DstPort: 53}
	_ = udp.SetNetworkLayerForChecksum(ip)
	dns := &layers.DNS{
		ID:      0x1234,
		RD:      true,
		QDCount: 1,
		Questions: []layers.DNSQuestion{
			{Name: []byte(name), Type: layers.DNSTypeA, Class: layers.DNSClassIN},
		},
	}
	return build(eth, ip, udp, dns)
}

// ARPRequest builds a broadcast ARP who-has
func ARPRequest(src, dst string) gopacket.Packet {
	eth := &layers.Ethernet{
		SrcMAC:       srcMAC,
		DstMAC:       net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
		EthernetType: layers.EthernetTypeARP,
	}
	arp := &layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         layers.ARPRequest,
		SourceHwAddress:   srcMAC,
		SourceProtAddress: net.ParseIP(src).To4(),
		DstHwAddress:      make([]byte, 6),
		DstProtAddress:    net.ParseIP(dst).To4(),
	}
	return build(eth, arp)
}

// Dissected decodes pkt into a fresh, never-primed field tree
func Dissected(n uint64, pkt gopacket.Packet) *dissect.Packet {
	out := dissect.NewPacket(n)
	dissect.Dissect(pkt, out)
	return out
}
