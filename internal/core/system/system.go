package system

import "time"

// Phase defines execution ordering within a single tick.
type Phase int

const (
	PhaseReceive  Phase = iota // 0: drain transport events into intents
	PhaseValidate              // 1: rules, physics, authoritative mutation
	PhaseProcess               // 2: replication events, async result channels
	PhaseSend                  // 3: flush buffered outbound traffic
)

func (p Phase) String() string {
	switch p {
	case PhaseReceive:
		return "receive"
	case PhaseValidate:
		return "validate"
	case PhaseProcess:
		return "process"
	case PhaseSend:
		return "send"
	default:
		return "unknown"
	}
}

// System is the interface every ECS system implements.
type System interface {
	Phase() Phase
	Update(dt time.Duration)
}

// Disposer is implemented by systems holding resources released at shutdown.
type Disposer interface {
	Dispose()
}
