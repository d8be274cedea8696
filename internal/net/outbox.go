package net

import (
	"sync"

	"github.com/gridrealm/server/internal/net/packet"
	"go.uber.org/zap"
)

var writerPool = sync.Pool{
	New: func() any { return packet.NewWriter() },
}

// Outbox collects outgoing messages during a tick and flushes them once, in
// the send phase. Messages are kept in four buffers: broadcast and per-peer,
// each split by channel. Every peer receives its broadcast entries before
// its own, coalesced into as few frames as max frame size allows.
//
// Outbox is used by the tick goroutine only.
type Outbox struct {
	transport Transport
	audience  func() []uint64
	maxBatch  int

	broadcast [2][]byte
	unicast   [2]map[uint64][]byte

	log *zap.Logger
}

// NewOutbox returns an outbox flushing into t. audience lists the peers that
// receive broadcasts; nil means every connected peer.
func NewOutbox(t Transport, audience func() []uint64, maxFrameSize int, log *zap.Logger) *Outbox {
	if audience == nil {
		audience = t.Peers
	}
	if maxFrameSize <= frameHeaderSize || maxFrameSize > MaxFrameSize {
		maxFrameSize = MaxFrameSize
	}
	return &Outbox{
		transport: t,
		audience:  audience,
		maxBatch:  maxFrameSize - frameHeaderSize,
		unicast:   [2]map[uint64][]byte{make(map[uint64][]byte), make(map[uint64][]byte)},
		log:       log,
	}
}

// encode appends m as one batch entry to dst using a pooled writer.
func (o *Outbox) encode(dst []byte, m packet.Message) ([]byte, bool) {
	w := writerPool.Get().(*packet.Writer)
	w.Reset()
	m.Encode(w)
	defer writerPool.Put(w)

	if packet.EntrySize(w.Len()) > o.maxBatch {
		o.log.Error("message exceeds frame size, dropped",
			zap.Uint8("opcode", m.Opcode()),
			zap.Int("size", w.Len()),
		)
		return dst, false
	}
	return packet.AppendMessage(dst, w.Bytes()), true
}

// Broadcast queues m for every peer in the audience.
func (o *Outbox) Broadcast(ch Channel, m packet.Message) {
	o.broadcast[ch], _ = o.encode(o.broadcast[ch], m)
}

// Send queues m for one peer.
func (o *Outbox) Send(peer uint64, ch Channel, m packet.Message) {
	o.unicast[ch][peer], _ = o.encode(o.unicast[ch][peer], m)
}

// BroadcastExcept queues m for every audience peer but except. It costs one
// unicast entry per recipient.
func (o *Outbox) BroadcastExcept(except uint64, ch Channel, m packet.Message) {
	for _, p := range o.audience() {
		if p != except {
			o.Send(p, ch, m)
		}
	}
}

// Pending reports whether anything is queued.
func (o *Outbox) Pending() bool {
	for ch := range o.broadcast {
		if len(o.broadcast[ch]) > 0 || len(o.unicast[ch]) > 0 {
			return true
		}
	}
	return false
}

// Flush hands every queued message to the transport and resets the buffers.
// Returns the number of frames sent.
func (o *Outbox) Flush() int {
	frames := 0
	for _, ch := range []Channel{Reliable, Unreliable} {
		shared := o.broadcast[ch]
		own := o.unicast[ch]

		if len(shared) > 0 {
			for _, peer := range o.audience() {
				frames += o.sendTo(peer, ch, shared, own[peer])
				delete(own, peer)
			}
		}
		for peer, batch := range own {
			frames += o.sendTo(peer, ch, nil, batch)
			delete(own, peer)
		}
		o.broadcast[ch] = shared[:0]
	}
	return frames
}

// sendTo splits first+second into frames at entry boundaries and sends them.
func (o *Outbox) sendTo(peer uint64, ch Channel, first, second []byte) int {
	frames := 0
	var cur []byte
	emit := func() bool {
		if len(cur) == 0 {
			return true
		}
		err := o.transport.Send(peer, ch, cur)
		cur = nil
		frames++
		if err != nil {
			o.log.Debug("send failed", zap.Uint64("peer", peer), zap.Stringer("channel", ch), zap.Error(err))
			return false
		}
		return true
	}

	for _, buf := range [][]byte{first, second} {
		for off := 0; off < len(buf); {
			n := packet.EntrySize(int(buf[off]) | int(buf[off+1])<<8)
			if len(cur)+n > o.maxBatch && !emit() {
				return frames
			}
			if cur == nil {
				cur = make([]byte, 0, min(o.maxBatch, len(first)+len(second)))
			}
			cur = append(cur, buf[off:off+n]...)
			off += n
		}
	}
	emit()
	return frames
}
