package net

import (
	"errors"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/gridrealm/server/internal/config"
	"go.uber.org/zap"
)

// ErrUnknownPeer is returned when a peer id has no live session.
var ErrUnknownPeer = errors.New("net: unknown peer")

// Transport is what the tick goroutine sees of the network.
type Transport interface {
	// Send queues one frame for peer. It never blocks.
	Send(peer uint64, ch Channel, batch []byte) error
	// Peers returns the connected peer ids in ascending order.
	Peers() []uint64
	// Connected reports whether peer still has a live session.
	Connected(peer uint64) bool
	// Drain hands at most limit queued inbound messages of peer to fn.
	Drain(peer uint64, limit int, fn func(msg []byte)) int
	// Kick closes the connection of peer.
	Kick(peer uint64)
}

// Hooks are invoked from transport goroutines.
type Hooks struct {
	OnConnect    func(peer uint64)
	OnDisconnect func(peer uint64)
}

// Hub owns the concurrent peer table shared by every listener.
type Hub struct {
	mu     sync.RWMutex
	peers  map[uint64]*Session
	nextID atomic.Uint64
	opts   sessionOptions
	hooks  Hooks
	log    *zap.Logger
}

func NewHub(cfg config.NetworkConfig, hooks Hooks, log *zap.Logger) *Hub {
	return &Hub{
		peers: make(map[uint64]*Session),
		opts: sessionOptions{
			inSize:         cfg.InQueueSize,
			reliableSize:   cfg.OutQueueSize,
			unreliableSize: cfg.UnreliableQueueSize,
			writeTimeout:   cfg.WriteTimeout,
		},
		hooks: hooks,
		log:   log,
	}
}

// attach registers a new connection, fires OnConnect and starts its loops.
func (h *Hub) attach(conn frameConn) *Session {
	id := h.nextID.Add(1)
	sess := newSession(conn, id, h.opts, h.detach, h.log)

	h.mu.Lock()
	h.peers[id] = sess
	h.mu.Unlock()

	h.log.Info("peer connected", zap.Uint64("peer", id), zap.String("ip", sess.IP))
	if h.hooks.OnConnect != nil {
		h.hooks.OnConnect(id)
	}
	sess.Start()
	return sess
}

func (h *Hub) detach(sess *Session) {
	h.mu.Lock()
	_, ok := h.peers[sess.ID]
	delete(h.peers, sess.ID)
	h.mu.Unlock()
	if !ok {
		return
	}

	h.log.Info("peer disconnected", zap.Uint64("peer", sess.ID), zap.Uint64("dropped_unreliable", sess.Dropped()))
	if h.hooks.OnDisconnect != nil {
		h.hooks.OnDisconnect(sess.ID)
	}
}

func (h *Hub) session(peer uint64) *Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.peers[peer]
}

func (h *Hub) Send(peer uint64, ch Channel, batch []byte) error {
	sess := h.session(peer)
	if sess == nil {
		return ErrUnknownPeer
	}
	return sess.Send(Frame{Channel: ch, Batch: batch})
}

func (h *Hub) Peers() []uint64 {
	h.mu.RLock()
	ids := make([]uint64, 0, len(h.peers))
	for id := range h.peers {
		ids = append(ids, id)
	}
	h.mu.RUnlock()
	slices.Sort(ids)
	return ids
}

func (h *Hub) Connected(peer uint64) bool {
	sess := h.session(peer)
	return sess != nil && !sess.IsClosed()
}

func (h *Hub) Drain(peer uint64, limit int, fn func(msg []byte)) int {
	sess := h.session(peer)
	if sess == nil {
		return 0
	}
	n := 0
	for limit <= 0 || n < limit {
		select {
		case msg := <-sess.InQueue:
			fn(msg)
			n++
		default:
			return n
		}
	}
	return n
}

func (h *Hub) Kick(peer uint64) {
	if sess := h.session(peer); sess != nil {
		sess.Close()
	}
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.peers)
}

// CloseAll disconnects every peer. OnDisconnect fires for each.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	sessions := make([]*Session, 0, len(h.peers))
	for _, s := range h.peers {
		sessions = append(sessions, s)
	}
	h.mu.RUnlock()
	for _, s := range sessions {
		s.Close()
	}
}
