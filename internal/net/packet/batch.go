package packet

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// MaxMessageSize is the largest message a batch entry can carry.
const MaxMessageSize = 0xFFFF

// ErrBadBatch is returned when a batch is not a clean sequence of
// length-prefixed messages.
var ErrBadBatch = errors.New("packet: malformed batch")

// AppendMessage appends msg to batch as [2B LE len][msg].
func AppendMessage(batch, msg []byte) []byte {
	batch = binary.LittleEndian.AppendUint16(batch, uint16(len(msg)))
	return append(batch, msg...)
}

// EntrySize is the number of batch bytes a message of n bytes occupies.
func EntrySize(n int) int { return 2 + n }

// SplitBatch returns the messages contained in batch. The returned slices
// alias batch.
func SplitBatch(batch []byte) ([][]byte, error) {
	var msgs [][]byte
	for off := 0; off < len(batch); {
		if len(batch)-off < 2 {
			return nil, fmt.Errorf("%w: truncated length at %d", ErrBadBatch, off)
		}
		n := int(binary.LittleEndian.Uint16(batch[off:]))
		off += 2
		if n == 0 || off+n > len(batch) {
			return nil, fmt.Errorf("%w: bad entry length %d at %d", ErrBadBatch, n, off-2)
		}
		msgs = append(msgs, batch[off:off+n])
		off += n
	}
	return msgs, nil
}
