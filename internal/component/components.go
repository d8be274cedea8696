package component

import "time"

// NetworkIdentity links an entity to exactly one connected peer.
type NetworkIdentity struct {
	PeerID uint64
}

// PlayerInfo is the public identity of a player entity.
type PlayerInfo struct {
	CharacterID int64
	AccountID   int64
	Name        string
	Vocation    uint8
	Gender      uint8
}

// MapPosition is the authoritative grid position. It is always on a walkable
// tile while no MovementProgress is attached.
type MapPosition struct {
	X, Y int32
}

func (p MapPosition) Vec() Vec2 { return Vec2{X: p.X, Y: p.Y} }

// Speed is movement speed in pixels per second. Zero or less moves instantly.
type Speed struct {
	PixelsPerSecond float64
}

// Direction is the last facing of the entity.
type Direction struct {
	DX, DY int32
}

func (d Direction) Vec() Vec2 { return Vec2{X: d.DX, Y: d.DY} }

// ClientInputState tracks the highest accepted client sequence id.
type ClientInputState struct {
	LastProcessedSequenceID uint32
}

// Accept records seq if it is newer than every sequence seen so far. Stale
// and duplicate ids report false and leave the state untouched.
func (s *ClientInputState) Accept(seq uint32) bool {
	if seq <= s.LastProcessedSequenceID {
		return false
	}
	s.LastProcessedSequenceID = seq
	return true
}

// --- One-shot intents ---

type MoveIntent struct {
	Direction  Vec2
	SequenceID uint32
}

type AttackIntent struct {
	Direction Vec2
}

// --- Progress components (present only while a transition is in flight) ---

type MovementProgress struct {
	Start    Vec2
	Target   Vec2
	Duration time.Duration
	Elapsed  time.Duration
}

// Fraction returns elapsed/duration clamped to [0,1]. A zero duration is
// already complete.
func (m *MovementProgress) Fraction() float64 {
	if m.Duration <= 0 {
		return 1
	}
	f := float64(m.Elapsed) / float64(m.Duration)
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// Position interpolates between Start and Target.
func (m *MovementProgress) Position() (x, y float64) {
	f := m.Fraction()
	x = float64(m.Start.X) + (float64(m.Target.X)-float64(m.Start.X))*f
	y = float64(m.Start.Y) + (float64(m.Target.Y)-float64(m.Start.Y))*f
	return x, y
}

func (m *MovementProgress) Done() bool { return m.Elapsed >= m.Duration }

type AttackProgress struct {
	Direction Vec2
	Duration  time.Duration
	Elapsed   time.Duration
}

func (a *AttackProgress) Done() bool { return a.Elapsed >= a.Duration }

// --- Persistence obligations ---

// Dirty marks an entity whose state differs from the last successful save.
type Dirty struct{}

// SavePending blocks further save enqueues while CommandID is in flight.
type SavePending struct {
	CommandID string
}

// SaveBackoff delays the next save attempt after failures. NotBefore is
// measured on the simulation clock.
type SaveBackoff struct {
	Failures  int
	NotBefore time.Duration
}
