package session

import (
	"context"
	"time"

	"github.com/golutra/golutra/internal/triggerbus"
)

// Poller is C5's status poller: a single ticker sweeping every live
// session for the Working -> Online idle transition, rather than a timer
// per session (spec §9 warns a per-session timer goroutine doesn't scale
// past a handful of sessions and is harder to reason about than one sweep).
type Poller struct {
	reg *Registry
}

func NewPoller(reg *Registry) *Poller {
	return &Poller{reg: reg}
}

// Run sweeps every PollInterval until ctx is canceled.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(time.Now())
		}
	}
}

func (p *Poller) tick(now time.Time) {
	for _, ts := range p.reg.List() {
		if ts.idleCheck(now) {
			p.reg.clearWorking(ts.ID)
			p.reg.publish(triggerbus.FactIdle, ts.ID)
			if ev, ok := ts.advanceQueueOnIdle(); ok {
				p.reg.recordAudit(ev)
			}
		}
	}
}
