package packet

import (
	"encoding/binary"

	"golang.org/x/text/unicode/norm"
)

// Reader reads little-endian fields from one decoded message.
// Byte 0 is always the opcode. Reads past the end return zero values and set
// the overflow flag, which decoders check once at the end.
type Reader struct {
	data     []byte
	off      int
	overflow bool
}

func NewReader(data []byte) *Reader {
	return &Reader{data: data, off: 1} // skip opcode byte
}

func (r *Reader) Opcode() byte {
	if len(r.data) == 0 {
		return 0
	}
	return r.data[0]
}

// Overflow reports whether any read ran past the end of the message.
func (r *Reader) Overflow() bool { return r.overflow }

func (r *Reader) need(n int) bool {
	if r.off+n > len(r.data) {
		r.overflow = true
		r.off = len(r.data)
		return false
	}
	return true
}

// ReadC reads 1 unsigned byte.
func (r *Reader) ReadC() byte {
	if !r.need(1) {
		return 0
	}
	v := r.data[r.off]
	r.off++
	return v
}

// ReadSC reads 1 signed byte.
func (r *Reader) ReadSC() int8 {
	return int8(r.ReadC())
}

// ReadH reads 2 bytes as little-endian uint16.
func (r *Reader) ReadH() uint16 {
	if !r.need(2) {
		return 0
	}
	v := binary.LittleEndian.Uint16(r.data[r.off:])
	r.off += 2
	return v
}

// ReadD reads 4 bytes as little-endian int32.
func (r *Reader) ReadD() int32 {
	return int32(r.ReadDU())
}

// ReadDU reads 4 bytes as little-endian uint32.
func (r *Reader) ReadDU() uint32 {
	if !r.need(4) {
		return 0
	}
	v := binary.LittleEndian.Uint32(r.data[r.off:])
	r.off += 4
	return v
}

// ReadQ reads 8 bytes as little-endian int64.
func (r *Reader) ReadQ() int64 {
	if !r.need(8) {
		return 0
	}
	v := int64(binary.LittleEndian.Uint64(r.data[r.off:]))
	r.off += 8
	return v
}

// ReadF reads a little-endian float32 stored as its IEEE bits.
func (r *Reader) ReadF() float32 {
	return float32frombits(r.ReadDU())
}

// ReadS reads a null-terminated UTF-8 string and returns it in NFC form, so
// visually identical names compare equal.
func (r *Reader) ReadS() string {
	start := r.off
	for r.off < len(r.data) {
		if r.data[r.off] == 0 {
			raw := r.data[start:r.off]
			r.off++ // skip null terminator
			return norm.NFC.String(string(raw))
		}
		r.off++
	}
	r.overflow = true
	return norm.NFC.String(string(r.data[start:r.off]))
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.data) - r.off
}
