package main

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"

	"github.com/cwsl/blesniffercore/internal/frame"
	"github.com/cwsl/blesniffercore/internal/hostlink"
)

// captureLog appends every drained Frame to an on-disk log, optionally
// zstd-compressed, for offline replay/debugging: a 4-byte little-endian
// length prefix followed by the same wire body hostlink.EncodeMessage
// would send, one record per Frame.
type captureLog struct {
	file io.Closer
	w    io.Writer
	enc  *zstd.Encoder
}

// openCaptureLog opens (creating/truncating) path for appending capture
// records. When compress is true, records are written through a streaming
// zstd encoder, analogous to the teacher's compressed-log rotation.
func openCaptureLog(path string, compress bool) (*captureLog, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("blesniffer: open capture log %s: %w", path, err)
	}

	log := &captureLog{file: f, w: f}
	if compress {
		enc, err := zstd.NewWriter(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("blesniffer: init zstd encoder: %w", err)
		}
		log.enc = enc
		log.w = enc
	}
	return log, nil
}

// WriteFrame appends one capture record.
func (c *captureLog) WriteFrame(f *frame.Frame) error {
	body := hostlink.EncodeMessage(f)

	var lenPrefix [4]byte
	binary.LittleEndian.PutUint32(lenPrefix[:], uint32(len(body)))

	if _, err := c.w.Write(lenPrefix[:]); err != nil {
		return fmt.Errorf("blesniffer: capture log write: %w", err)
	}
	if _, err := c.w.Write(body); err != nil {
		return fmt.Errorf("blesniffer: capture log write: %w", err)
	}
	return nil
}

// Close flushes the zstd encoder (if any) and closes the underlying file.
func (c *captureLog) Close() error {
	if c.enc != nil {
		if err := c.enc.Close(); err != nil {
			c.file.Close()
			return err
		}
	}
	return c.file.Close()
}
