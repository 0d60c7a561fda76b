package control

import (
	"context"
	"github.com/shimmeringbee/irrigation/zone"
	"github.com/shimmeringbee/logwrap"
	"time"
)

// Supervisor forces zones off once their safety deadline passes. Stops which fail leave the
// deadline armed, so they are retried on every tick until they succeed.
type Supervisor struct {
	controller *Controller
	zones      *zone.Set
	logger     logwrap.Logger
}

func NewSupervisor(c *Controller, zones *zone.Set, l logwrap.Logger) *Supervisor {
	return &Supervisor{controller: c, zones: zones, logger: l}
}

func (s *Supervisor) Tick(ctx context.Context, now time.Time) {
	for _, z := range s.zones.All() {
		if !z.Expired(now) {
			continue
		}

		if z.Failures == 0 {
			s.logger.LogWarn(ctx, "Safety timeout expired, forcing zone off.", logwrap.Datum("zone", z.Index.Number()), logwrap.Datum("deadline", z.Deadline), logwrap.Datum("overdue", now.Sub(z.Deadline).String()))
		} else {
			s.logger.LogDebug(ctx, "Safety timeout still expired, retrying stop.", logwrap.Datum("zone", z.Index.Number()), logwrap.Datum("attempt", z.Failures+1))
		}

		if err := s.controller.HandleRequest(ctx, z.Index, false); err != nil {
			s.logger.LogError(ctx, "Failed to force zone off after safety timeout.", logwrap.Datum("zone", z.Index.Number()), logwrap.Err(err))
		}
	}
}

// ConnectSweep decides when the one time safety sweep runs: on the first transition of radio
// connectivity from down to up, and never again.
type ConnectSweep struct {
	done bool
	last bool
}

// Observe records the current connectivity and reports whether the sweep should run now.
func (c *ConnectSweep) Observe(connected bool) bool {
	rising := connected && !c.last
	c.last = connected

	if rising && !c.done {
		c.done = true
		return true
	}

	return false
}

func (c *ConnectSweep) Done() bool {
	return c.done
}
