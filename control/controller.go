package control

import (
	"context"
	"fmt"
	"github.com/shimmeringbee/irrigation/radio"
	"github.com/shimmeringbee/irrigation/valve"
	"github.com/shimmeringbee/irrigation/zone"
	"github.com/shimmeringbee/logwrap"
	"time"
)

const DefaultFailureEscalation = 10

// Controller applies on/off requests to zones, commanding the valve driver and reflecting the
// outcome to the radio. It is not safe for concurrent use, all calls must come from the control
// loop.
type Controller struct {
	zones     *zone.Set
	driver    valve.Driver
	endpoints []radio.Endpoint
	logger    logwrap.Logger

	clock      func() time.Time
	escalation int
}

func NewController(zones *zone.Set, driver valve.Driver, endpoints []radio.Endpoint, l logwrap.Logger) (*Controller, error) {
	if len(endpoints) != zones.Len() {
		return nil, fmt.Errorf("%d endpoints provided for %d zones", len(endpoints), zones.Len())
	}

	return &Controller{
		zones:      zones,
		driver:     driver,
		endpoints:  endpoints,
		logger:     l,
		clock:      time.Now,
		escalation: DefaultFailureEscalation,
	}, nil
}

// WithClock replaces the source of time, for tests and simulation.
func (c *Controller) WithClock(clock func() time.Time) {
	c.clock = clock
}

// WithFailureEscalation sets how many consecutive failures of a zone are logged as warnings
// before an error is logged.
func (c *Controller) WithFailureEscalation(n int) {
	if n > 0 {
		c.escalation = n
	}
}

// HandleRequest applies a request from the radio. Requests made while the zone is reflecting
// its own state, or which match the reported state, are ignored.
func (c *Controller) HandleRequest(ctx context.Context, i zone.Index, on bool) error {
	return c.apply(ctx, i, on, false)
}

// ForceOff issues a stop to the zone even if it is already reported as off.
func (c *Controller) ForceOff(ctx context.Context, i zone.Index) error {
	return c.apply(ctx, i, false, true)
}

// Sweep forces every zone off.
func (c *Controller) Sweep(ctx context.Context) {
	for _, z := range c.zones.All() {
		if err := c.ForceOff(ctx, z.Index); err != nil {
			c.logger.LogError(ctx, "Failed to force zone off during sweep.", logwrap.Datum("zone", z.Index.Number()), logwrap.Err(err))
		}
	}
}

func (c *Controller) apply(ctx context.Context, i zone.Index, on bool, force bool) error {
	z, err := c.zones.Zone(i)
	if err != nil {
		return err
	}

	ctx = c.logger.AddOptionsToContext(ctx, logwrap.Datum("zone", z.Index.Number()), logwrap.Datum("zoneName", z.Name))

	if z.Updating() {
		c.logger.LogDebug(ctx, "Ignoring request received while reflecting zone state.", logwrap.Datum("requested", zone.FromBool(on).String()))
		return nil
	}

	if !force && z.Reported == zone.FromBool(on) {
		c.logger.LogDebug(ctx, "Ignoring request matching reported zone state.", logwrap.Datum("requested", zone.FromBool(on).String()))
		return nil
	}

	if on {
		c.start(ctx, z)
	} else {
		c.stop(ctx, z)
	}

	return nil
}

func (c *Controller) start(ctx context.Context, z *zone.Zone) {
	minutes := z.SafetyTimeoutMinutes()

	c.logger.LogInfo(ctx, "Received ON request for zone, starting with safety timer.", logwrap.Datum("minutes", minutes))

	code := c.driver.Start(ctx, z.Index.Number(), minutes)
	now := c.clock()

	if code.Failed() {
		z.Reported = zone.Off
		z.Disarm()
		z.RecordFailure(uint8(code), code.Hint(), now)

		c.logger.LogError(ctx, "Failed to start zone, reporting it as off.", logwrap.Datum("code", uint8(code)), logwrap.Datum("hint", code.Hint()))
		c.reflect(ctx, z)
		return
	}

	z.Reported = zone.On
	z.Arm(now)
	z.ClearFailures()

	c.logger.LogInfo(ctx, "Successfully started zone.", logwrap.Datum("deadline", z.Deadline))
	c.reflect(ctx, z)
}

func (c *Controller) stop(ctx context.Context, z *zone.Zone) {
	if z.Reported == zone.On && z.Failures > 0 {
		c.logger.LogDebug(ctx, "Retrying OFF for zone.", logwrap.Datum("failures", z.Failures))
	} else {
		// Only consecutive stop failures count towards escalation.
		z.ClearFailures()
		c.logger.LogInfo(ctx, "Received OFF request for zone.")
	}

	code := c.driver.Stop(ctx, z.Index.Number())
	now := c.clock()

	if code.Failed() {
		z.Reported = zone.On
		z.RecordFailure(uint8(code), code.Hint(), now)

		// The stop is retried on every supervisor tick until it succeeds.
		if !z.Armed() || z.Deadline.After(now) {
			z.ArmAt(now, now)
		}

		switch {
		case z.Failures%c.escalation == 0:
			c.logger.LogError(ctx, "Zone has repeatedly failed to stop, reporting it as on.", logwrap.Datum("failures", z.Failures), logwrap.Datum("code", uint8(code)), logwrap.Datum("hint", code.Hint()))
		case z.Failures == 1:
			c.logger.LogWarn(ctx, "Failed to stop zone, reporting it as on and retrying.", logwrap.Datum("failures", z.Failures), logwrap.Datum("code", uint8(code)), logwrap.Datum("hint", code.Hint()))
		default:
			c.logger.LogDebug(ctx, "Failed to stop zone, retrying.", logwrap.Datum("failures", z.Failures), logwrap.Datum("code", uint8(code)))
		}

		c.reflect(ctx, z)
		return
	}

	z.Reported = zone.Off
	z.Disarm()
	z.ClearFailures()

	c.logger.LogInfo(ctx, "Successfully stopped zone.")
	c.reflect(ctx, z)
}

// reflect writes the reported state to the radio while holding the zone guard, so an endpoint
// that calls back synchronously is not treated as a new request.
func (c *Controller) reflect(ctx context.Context, z *zone.Zone) {
	release, ok := z.Acquire()
	if !ok {
		c.logger.LogWarn(ctx, "Zone already reflecting, skipping reflection.")
		return
	}
	defer release()

	if err := c.endpoints[z.Index].Reflect(ctx, z.Reported.Bool()); err != nil {
		c.logger.LogWarn(ctx, "Failed to reflect zone state to radio.", logwrap.Datum("state", z.Reported.String()), logwrap.Err(err))
	}
}
