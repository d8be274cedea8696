package net

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Channel selects the delivery guarantee of a frame.
type Channel byte

const (
	Reliable   Channel = 0 // ordered, never dropped; a full queue disconnects the peer
	Unreliable Channel = 1 // may be dropped under backpressure
)

func (c Channel) String() string {
	switch c {
	case Reliable:
		return "reliable"
	case Unreliable:
		return "unreliable"
	default:
		return fmt.Sprintf("channel(%d)", byte(c))
	}
}

// frameHeaderSize is [2B LE total length][1B channel].
const frameHeaderSize = 3

// MaxFrameSize is the largest frame the 16-bit length can describe.
const MaxFrameSize = 0xFFFF

// Frame is one transport unit: a batch of length-prefixed messages sent on
// one channel.
type Frame struct {
	Channel Channel
	Batch   []byte
}

// ReadFrame reads one frame from r.
// Wire format: [2 bytes LE: total length including header][1 byte channel][batch].
func ReadFrame(r io.Reader) (Frame, error) {
	var header [frameHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return Frame{}, fmt.Errorf("read frame header: %w", err)
	}

	totalLen := int(binary.LittleEndian.Uint16(header[:2]))
	batchLen := totalLen - frameHeaderSize
	if batchLen <= 0 {
		return Frame{}, fmt.Errorf("invalid frame length: %d", totalLen)
	}
	ch := Channel(header[2])
	if ch != Reliable && ch != Unreliable {
		return Frame{}, fmt.Errorf("invalid frame channel: %d", header[2])
	}

	batch := make([]byte, batchLen)
	if _, err := io.ReadFull(r, batch); err != nil {
		return Frame{}, fmt.Errorf("read frame batch (%d bytes): %w", batchLen, err)
	}
	return Frame{Channel: ch, Batch: batch}, nil
}

// DecodeFrame parses a complete frame held in b, as delivered by one
// websocket message.
func DecodeFrame(b []byte) (Frame, error) {
	if len(b) < frameHeaderSize {
		return Frame{}, fmt.Errorf("short frame: %d bytes", len(b))
	}
	if total := int(binary.LittleEndian.Uint16(b[:2])); total != len(b) {
		return Frame{}, fmt.Errorf("frame length %d does not match message length %d", total, len(b))
	}
	ch := Channel(b[2])
	if ch != Reliable && ch != Unreliable {
		return Frame{}, fmt.Errorf("invalid frame channel: %d", b[2])
	}
	if len(b) == frameHeaderSize {
		return Frame{}, fmt.Errorf("empty frame")
	}
	return Frame{Channel: ch, Batch: b[frameHeaderSize:]}, nil
}

// AppendFrame appends the encoded frame to dst.
func AppendFrame(dst []byte, f Frame) []byte {
	dst = binary.LittleEndian.AppendUint16(dst, uint16(len(f.Batch)+frameHeaderSize))
	dst = append(dst, byte(f.Channel))
	return append(dst, f.Batch...)
}

// WriteFrame writes one frame to w in a single Write call.
func WriteFrame(w io.Writer, f Frame) error {
	if len(f.Batch)+frameHeaderSize > MaxFrameSize {
		return fmt.Errorf("frame too large: %d bytes", len(f.Batch)+frameHeaderSize)
	}
	if _, err := w.Write(AppendFrame(make([]byte, 0, len(f.Batch)+frameHeaderSize), f)); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}
