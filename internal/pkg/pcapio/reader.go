// Package pcapio reads capture files and writes classified packets back out.
package pcapio

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// pcapng section header block type
var ngMagic = []byte{0x0a, 0x0d, 0x0d, 0x0a}

type packetReader interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
}

// Reader decodes the packets of a pcap or pcapng file in order
type Reader struct {
	file     *os.File
	src      packetReader
	linkType layers.LinkType
	format   string
	opts     gopacket.DecodeOptions
}

// Open opens a capture file, detecting pcap and pcapng by magic number
func Open(path string) (*Reader, error) {
	// #nosec G304 -- Path is the capture file named on the command line
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture file: %w", err)
	}
	r, err := newReader(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	r.file = f
	return r, nil
}

func newReader(rd io.Reader) (*Reader, error) {
	br := bufio.NewReader(rd)
	magic, err := br.Peek(4)
	if err != nil {
		return nil, fmt.Errorf("failed to read capture file header: %w", err)
	}

	r := &Reader{opts: gopacket.DecodeOptions{Lazy: true}}
	if bytes.Equal(magic, ngMagic) {
		ng, err := pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
		if err != nil {
			return nil, fmt.Errorf("invalid pcapng file: %w", err)
		}
		r.src, r.linkType, r.format = ng, ng.LinkType(), "pcapng"
		return r, nil
	}

	pr, err := pcapgo.NewReader(br)
	if err != nil {
		return nil, fmt.Errorf("invalid pcap file (magic %#08x): %w", binary.BigEndian.Uint32(magic), err)
	}
	r.src, r.linkType, r.format = pr, pr.LinkType(), "pcap"
	return r, nil
}

// LinkType returns the link type of the capture
func (r *Reader) LinkType() layers.LinkType {
	return r.linkType
}

// Format returns "pcap" or "pcapng"
func (r *Reader) Format() string {
	return r.format
}

// Next returns the next decoded packet, or io.EOF at the end of the file
func (r *Reader) Next() (gopacket.Packet, error) {
	data, ci, err := r.src.ReadPacketData()
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("failed to read packet: %w", err)
	}
	pkt := gopacket.NewPacket(data, r.linkType, r.opts)
	md := pkt.Metadata()
	md.CaptureInfo = ci
	return pkt, nil
}

// Close closes the underlying file
func (r *Reader) Close() error {
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}
