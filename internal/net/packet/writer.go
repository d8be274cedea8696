package packet

import (
	"encoding/binary"
	"math"
)

// Writer builds one server message. All multi-byte writes are little-endian.
// Writers are reused through Reset, so Bytes is only valid until the next
// Reset.
type Writer struct {
	buf []byte
}

func NewWriter() *Writer {
	return &Writer{buf: make([]byte, 0, 64)}
}

func NewWriterWithOpcode(opcode byte) *Writer {
	w := NewWriter()
	w.WriteC(opcode)
	return w
}

// Reset empties the writer while keeping its buffer.
func (w *Writer) Reset() {
	w.buf = w.buf[:0]
}

// WriteC writes 1 byte.
func (w *Writer) WriteC(v byte) {
	w.buf = append(w.buf, v)
}

// WriteSC writes 1 signed byte.
func (w *Writer) WriteSC(v int8) {
	w.buf = append(w.buf, byte(v))
}

// WriteH writes 2 bytes little-endian.
func (w *Writer) WriteH(v uint16) {
	w.buf = binary.LittleEndian.AppendUint16(w.buf, v)
}

// WriteD writes 4 bytes little-endian (signed or unsigned via cast).
func (w *Writer) WriteD(v int32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, uint32(v))
}

// WriteDU writes 4 bytes little-endian unsigned.
func (w *Writer) WriteDU(v uint32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
}

// WriteQ writes 8 bytes little-endian.
func (w *Writer) WriteQ(v int64) {
	w.buf = binary.LittleEndian.AppendUint64(w.buf, uint64(v))
}

// WriteF writes a float32 as its IEEE bits.
func (w *Writer) WriteF(v float32) {
	w.WriteDU(math.Float32bits(v))
}

// WriteS writes a null-terminated UTF-8 string.
func (w *Writer) WriteS(s string) {
	w.buf = append(w.buf, s...)
	w.buf = append(w.buf, 0)
}

// WriteBytes writes raw bytes.
func (w *Writer) WriteBytes(b []byte) {
	w.buf = append(w.buf, b...)
}

// Bytes returns the message content.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Len returns the current length.
func (w *Writer) Len() int {
	return len(w.buf)
}

func float32frombits(b uint32) float32 { return math.Float32frombits(b) }
