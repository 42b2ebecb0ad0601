package pcapio

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/endorses/colorcat/internal/pkg/dissect/dissecttest"
)

func testPackets() []gopacket.Packet {
	pkts := []gopacket.Packet{
		dissecttest.TCP("10.0.0.1", "10.0.0.2", 40000, 80, nil),
		dissecttest.UDP("10.0.0.1", "10.0.0.2", 40000, 7777, []byte("payload")),
		dissecttest.ICMPEcho("10.0.0.1", "10.0.0.2"),
	}
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i, p := range pkts {
		md := p.Metadata()
		md.Timestamp = base.Add(time.Duration(i) * time.Second)
		md.CaptureLength = len(p.Data())
		md.Length = len(p.Data())
	}
	return pkts
}

func readAll(t *testing.T, path string) (*Reader, []gopacket.Packet) {
	t.Helper()
	r, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	var out []gopacket.Packet
	for {
		pkt, err := r.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		out = append(out, pkt)
	}
	return r, out
}

func TestWriterThenReader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.pcap")

	config := DefaultConfig()
	config.FilePath = path
	config.SyncInterval = 10 * time.Millisecond
	w, err := NewWriter(config)
	require.NoError(t, err)
	assert.Equal(t, path, w.FilePath())

	pkts := testPackets()
	for _, p := range pkts {
		require.NoError(t, w.WritePacket(p))
	}
	require.NoError(t, w.Close())
	require.NoError(t, w.Close(), "second close is a no-op")
	assert.Error(t, w.WritePacket(pkts[0]))

	count, written := w.Stats()
	assert.Equal(t, int64(3), count)
	var total int64
	for _, p := range pkts {
		total += int64(len(p.Data()))
	}
	assert.Equal(t, total, written)

	r, got := readAll(t, path)
	assert.Equal(t, "pcap", r.Format())
	assert.Equal(t, layers.LinkTypeEthernet, r.LinkType())
	require.Len(t, got, 3)
	for i := range pkts {
		assert.Equal(t, pkts[i].Data(), got[i].Data())
		assert.True(t, pkts[i].Metadata().Timestamp.Equal(got[i].Metadata().Timestamp))
	}
	assert.NotNil(t, got[0].Layer(layers.LayerTypeTCP))
	assert.NotNil(t, got[1].Layer(layers.LayerTypeUDP))
}

func TestReader_PcapNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.pcapng")
	f, err := os.Create(path)
	require.NoError(t, err)

	ng, err := pcapgo.NewNgWriter(f, layers.LinkTypeEthernet)
	require.NoError(t, err)
	pkts := testPackets()
	for _, p := range pkts {
		require.NoError(t, ng.WritePacket(p.Metadata().CaptureInfo, p.Data()))
	}
	require.NoError(t, ng.Flush())
	require.NoError(t, f.Close())

	r, got := readAll(t, path)
	assert.Equal(t, "pcapng", r.Format())
	require.Len(t, got, len(pkts))
	assert.Equal(t, pkts[2].Data(), got[2].Data())
	assert.NotNil(t, got[2].Layer(layers.LayerTypeICMPv4))
}

func TestOpen_Errors(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.pcap"))
	assert.Error(t, err)

	garbage := filepath.Join(t.TempDir(), "garbage.pcap")
	require.NoError(t, os.WriteFile(garbage, []byte("definitely not a capture"), 0o600))
	_, err = Open(garbage)
	assert.Error(t, err)

	_, err = newReader(bytes.NewReader([]byte{0x01}))
	assert.Error(t, err)
}

func TestNewWriter_EmptyPath(t *testing.T) {
	_, err := NewWriter(&Config{})
	assert.Error(t, err)
}
