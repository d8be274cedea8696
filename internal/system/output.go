package system

import (
	"time"

	coresys "github.com/gridrealm/server/internal/core/system"
	"github.com/gridrealm/server/internal/net"
)

// OutputSystem flushes the outbox once per tick.
type OutputSystem struct {
	outbox *net.Outbox
}

func NewOutputSystem(outbox *net.Outbox) *OutputSystem {
	return &OutputSystem{outbox: outbox}
}

func (s *OutputSystem) Phase() coresys.Phase { return coresys.PhaseSend }

func (s *OutputSystem) Update(_ time.Duration) {
	s.outbox.Flush()
}
