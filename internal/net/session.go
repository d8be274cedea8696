package net

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gridrealm/server/internal/net/packet"
	"go.uber.org/zap"
)

// ErrSlowPeer is returned by Send when the reliable queue is full. The
// session has been closed by the time it is returned.
var ErrSlowPeer = errors.New("net: reliable queue full, peer disconnected")

// Session represents a single client connection. Network I/O runs in
// dedicated goroutines; the tick goroutine only touches the queues.
type Session struct {
	ID   uint64
	IP   string
	conn frameConn

	InQueue    chan []byte // inbound messages, one per batch entry
	reliable   chan Frame
	unreliable chan Frame

	writeTimeout time.Duration
	dropped      atomic.Uint64 // unreliable frames dropped under backpressure

	closeCh   chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool
	onClose   func(*Session)

	log *zap.Logger
}

type sessionOptions struct {
	inSize, reliableSize, unreliableSize int
	writeTimeout                         time.Duration
}

func newSession(conn frameConn, id uint64, opts sessionOptions, onClose func(*Session), log *zap.Logger) *Session {
	return &Session{
		ID:           id,
		IP:           conn.RemoteAddr(),
		conn:         conn,
		InQueue:      make(chan []byte, opts.inSize),
		reliable:     make(chan Frame, opts.reliableSize),
		unreliable:   make(chan Frame, opts.unreliableSize),
		writeTimeout: opts.writeTimeout,
		closeCh:      make(chan struct{}),
		onClose:      onClose,
		log:          log.With(zap.Uint64("peer", id)),
	}
}

// Start launches the reader and writer goroutines.
func (s *Session) Start() {
	go s.readLoop()
	go s.writeLoop()
}

// Send queues one frame without blocking. A full reliable queue closes the
// session; a full unreliable queue drops the frame.
func (s *Session) Send(f Frame) error {
	if s.closed.Load() {
		return ErrUnknownPeer
	}
	switch f.Channel {
	case Unreliable:
		select {
		case s.unreliable <- f:
		default:
			s.dropped.Add(1)
		}
		return nil
	default:
		select {
		case s.reliable <- f:
			return nil
		default:
			s.log.Warn("reliable queue full, disconnecting slow peer")
			s.Close()
			return ErrSlowPeer
		}
	}
}

// Dropped returns how many unreliable frames were discarded.
func (s *Session) Dropped() uint64 { return s.dropped.Load() }

// Close shuts the session down once. onClose runs on the calling goroutine.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.closeCh)
		s.conn.Close()
		if s.onClose != nil {
			s.onClose(s)
		}
	})
}

func (s *Session) IsClosed() bool {
	return s.closed.Load()
}

// readLoop reads frames, splits their batches and pushes every message onto
// InQueue for the tick goroutine.
func (s *Session) readLoop() {
	defer s.Close()

	for {
		f, err := s.conn.ReadFrame()
		if err != nil {
			if !s.closed.Load() {
				s.log.Debug("read error", zap.Error(err))
			}
			return
		}
		msgs, err := packet.SplitBatch(f.Batch)
		if err != nil {
			s.log.Warn("malformed batch, disconnecting", zap.Error(err))
			return
		}

		// Blocking keeps inbound order and throttles only this peer.
		for _, m := range msgs {
			select {
			case s.InQueue <- m:
			case <-s.closeCh:
				return
			}
		}
	}
}

// writeLoop writes queued frames, reliable first.
func (s *Session) writeLoop() {
	defer s.Close()

	for {
		var f Frame
		select {
		case f = <-s.reliable:
		default:
			select {
			case f = <-s.reliable:
			case f = <-s.unreliable:
			case <-s.closeCh:
				return
			}
		}
		if err := s.conn.WriteFrame(f, time.Now().Add(s.writeTimeout)); err != nil {
			if !s.closed.Load() {
				s.log.Debug("write error", zap.Error(err))
			}
			return
		}
	}
}
