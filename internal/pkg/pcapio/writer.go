package pcapio

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/endorses/colorcat/internal/pkg/logger"
)

// Writer writes packets to a pcap file from a background goroutine
type Writer struct {
	filePath     string
	file         *os.File
	writer       *pcapgo.Writer
	packetChan   chan gopacket.Packet
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	mu           sync.Mutex
	closed       atomic.Bool
	syncTicker   *time.Ticker
	packetCount  atomic.Int64
	bytesWritten atomic.Int64
	writeErr     error
}

// Config for the pcap writer
type Config struct {
	FilePath     string          // Path to pcap file
	LinkType     layers.LinkType // Link type of every written packet
	BufferSize   int             // Channel buffer size
	SyncInterval time.Duration   // How often to sync to disk
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		LinkType:     layers.LinkTypeEthernet,
		BufferSize:   1000,
		SyncInterval: 5 * time.Second,
	}
}

// NewWriter creates the file, writes the pcap header and starts the write loop
func NewWriter(config *Config) (*Writer, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.FilePath == "" {
		return nil, fmt.Errorf("file path cannot be empty")
	}
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultConfig().BufferSize
	}
	if config.SyncInterval <= 0 {
		config.SyncInterval = DefaultConfig().SyncInterval
	}

	// #nosec G304 -- Path is the output file named on the command line
	file, err := os.Create(config.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create pcap file: %w", err)
	}

	pcapWriter := pcapgo.NewWriter(file)
	if err := pcapWriter.WriteFileHeader(65536, config.LinkType); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to write pcap header: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Writer{
		filePath:   config.FilePath,
		file:       file,
		writer:     pcapWriter,
		packetChan: make(chan gopacket.Packet, config.BufferSize),
		ctx:        ctx,
		cancel:     cancel,
		syncTicker: time.NewTicker(config.SyncInterval),
	}

	w.wg.Add(1)
	go w.writeLoop()

	logger.Debug("Created pcap writer", "file", config.FilePath, "link_type", config.LinkType)
	return w, nil
}

// WritePacket queues a packet, blocking while the buffer is full
func (w *Writer) WritePacket(pkt gopacket.Packet) error {
	if w.closed.Load() {
		return fmt.Errorf("writer is closed")
	}
	select {
	case w.packetChan <- pkt:
		return nil
	case <-w.ctx.Done():
		return fmt.Errorf("writer context cancelled")
	}
}

func (w *Writer) writeLoop() {
	defer w.wg.Done()

	for {
		select {
		case pkt, ok := <-w.packetChan:
			if !ok {
				return
			}
			w.writePacketToFile(pkt)

		case <-w.syncTicker.C:
			w.mu.Lock()
			if w.file != nil {
				_ = w.file.Sync()
			}
			w.mu.Unlock()

		case <-w.ctx.Done():
			w.drainPackets()
			return
		}
	}
}

func (w *Writer) writePacketToFile(pkt gopacket.Packet) {
	w.mu.Lock()
	defer w.mu.Unlock()

	data := pkt.Data()
	ci := pkt.Metadata().CaptureInfo
	if ci.CaptureLength != len(data) {
		ci.CaptureLength = len(data)
	}
	if ci.Length < ci.CaptureLength {
		ci.Length = ci.CaptureLength
	}
	if err := w.writer.WritePacket(ci, data); err != nil {
		if w.writeErr == nil {
			w.writeErr = fmt.Errorf("failed to write packet: %w", err)
		}
		logger.Error("Failed to write packet", "error", err, "file", w.filePath)
		return
	}
	w.packetCount.Add(1)
	w.bytesWritten.Add(int64(len(data)))
}

func (w *Writer) drainPackets() {
	for {
		select {
		case pkt, ok := <-w.packetChan:
			if !ok {
				return
			}
			w.writePacketToFile(pkt)
		default:
			return
		}
	}
}

// Close flushes pending packets and closes the file. It returns the first
// write error, if any.
func (w *Writer) Close() error {
	if w.closed.Swap(true) {
		return nil
	}

	close(w.packetChan)
	w.wg.Wait()
	w.cancel()
	w.syncTicker.Stop()

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.file.Sync(); err != nil {
		logger.Warn("Failed to sync pcap file", "error", err, "file", w.filePath)
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("failed to close pcap file: %w", err)
	}

	logger.Debug("Closed pcap writer",
		"file", w.filePath,
		"packets", w.packetCount.Load(),
		"bytes", w.bytesWritten.Load())
	return w.writeErr
}

// Stats returns current writer statistics
func (w *Writer) Stats() (packetCount, bytesWritten int64) {
	return w.packetCount.Load(), w.bytesWritten.Load()
}

// FilePath returns the file path being written to
func (w *Writer) FilePath() string {
	return w.filePath
}
