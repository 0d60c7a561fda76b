package bridge

import (
	"context"
	"fmt"
	"github.com/shimmeringbee/irrigation/button"
	"github.com/shimmeringbee/irrigation/control"
	"github.com/shimmeringbee/irrigation/radio"
	"github.com/shimmeringbee/irrigation/status"
	"github.com/shimmeringbee/irrigation/valve"
	"github.com/shimmeringbee/irrigation/zone"
	"github.com/shimmeringbee/logwrap"
	"sync"
	"time"
)

const (
	DefaultPollInterval      = 100 * time.Millisecond
	DefaultRemainingInterval = 1 * time.Second
	requestQueueSize         = 32
)

type Config struct {
	PollInterval      time.Duration
	RemainingInterval time.Duration
	FailureEscalation int
}

// Keeper receives a keep alive from every iteration of the control loop.
type Keeper interface {
	Kick(now time.Time)
}

type Hardware struct {
	Indicator    *status.Indicator
	Button       button.Input
	ButtonHold   time.Duration
	Watchdog     Keeper
	FactoryReset func(ctx context.Context)
}

type request struct {
	index zone.Index
	on    bool
}

type Snapshot struct {
	Status    string
	Connected bool
	Swept     bool
	Zones     []zone.Snapshot
	Updated   time.Time
}

// Bridge runs the control loop. All zone state is owned by the goroutine running Run; radio
// requests from other goroutines are queued to it.
type Bridge struct {
	cfg        Config
	zones      *zone.Set
	network    radio.Network
	endpoints  []radio.Endpoint
	controller *control.Controller
	supervisor *control.Supervisor
	logger     logwrap.Logger
	clock      func() time.Time

	aggregator status.Aggregator
	sweep      control.ConnectSweep
	indicator  *status.Indicator
	button     button.Input
	hold       *button.HoldDetector
	watchdog   Keeper
	reset      func(ctx context.Context)

	requests      chan request
	lastRemaining time.Time

	snapshotLock sync.RWMutex
	snapshot     Snapshot
}

func New(cfg Config, zones *zone.Set, driver valve.Driver, network radio.Network, hw Hardware, l logwrap.Logger) (*Bridge, error) {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}

	if cfg.RemainingInterval <= 0 {
		cfg.RemainingInterval = DefaultRemainingInterval
	}

	endpoints, err := radio.Endpoints(network, zones.Len())
	if err != nil {
		return nil, fmt.Errorf("failed to resolve radio endpoints: %w", err)
	}

	controller, err := control.NewController(zones, driver, endpoints, l)
	if err != nil {
		return nil, fmt.Errorf("failed to construct zone controller: %w", err)
	}
	controller.WithFailureEscalation(cfg.FailureEscalation)

	b := &Bridge{
		cfg:        cfg,
		zones:      zones,
		network:    network,
		endpoints:  endpoints,
		controller: controller,
		supervisor: control.NewSupervisor(controller, zones, l),
		logger:     l,
		clock:      time.Now,
		indicator:  hw.Indicator,
		button:     hw.Button,
		hold:       button.NewHoldDetector(hw.ButtonHold),
		watchdog:   hw.Watchdog,
		reset:      hw.FactoryReset,
		requests:   make(chan request, requestQueueSize),
	}

	if b.indicator == nil {
		b.indicator = status.NewIndicator(status.NullOutput{}, status.DefaultBlinkInterval, true, l)
	}

	if b.button == nil {
		b.button = button.NullInput{}
	}

	for i, ep := range endpoints {
		ep.OnRequest(b.requestHandler(zone.Index(i)))
	}

	return b, nil
}

// WithClock replaces the source of time for the loop and the controller.
func (b *Bridge) WithClock(clock func() time.Time) {
	b.clock = clock
	b.controller.WithClock(clock)
}

// requestHandler returns the handler registered with a zone's endpoint. Requests which arrive
// while the zone is reflecting are dropped at once, everything else is queued for the loop.
func (b *Bridge) requestHandler(i zone.Index) radio.RequestHandler {
	z, _ := b.zones.Zone(i)

	return func(on bool) {
		if z.Updating() {
			b.logger.LogDebug(context.Background(), "Dropping radio request received while reflecting zone state.", logwrap.Datum("zone", i.Number()))
			return
		}

		select {
		case b.requests <- request{index: i, on: on}:
		default:
			b.logger.LogWarn(context.Background(), "Request queue full, dropping radio request.", logwrap.Datum("zone", i.Number()), logwrap.Datum("on", on))
		}
	}
}

func (b *Bridge) Run(ctx context.Context) error {
	t := time.NewTicker(b.cfg.PollInterval)
	defer t.Stop()

	b.logger.LogInfo(ctx, "Control loop started.", logwrap.Datum("zones", b.zones.Len()), logwrap.Datum("pollInterval", b.cfg.PollInterval.String()))

	for {
		select {
		case <-ctx.Done():
			b.logger.LogInfo(ctx, "Control loop stopped.")
			return ctx.Err()
		case r := <-b.requests:
			b.handle(ctx, r)
			b.publishSnapshot(b.clock())
		case <-t.C:
			b.Step(ctx)
		}
	}
}

// Handle applies a queued radio request, it must be called from the loop goroutine.
func (b *Bridge) handle(ctx context.Context, r request) {
	if err := b.controller.HandleRequest(ctx, r.index, r.on); err != nil {
		b.logger.LogError(ctx, "Failed to handle radio request.", logwrap.Datum("zone", r.index.Number()), logwrap.Err(err))
	}
}

// Drain applies every queued request, used by tests driving the loop by hand.
func (b *Bridge) Drain(ctx context.Context) {
	for {
		select {
		case r := <-b.requests:
			b.handle(ctx, r)
		default:
			return
		}
	}
}

// Step performs one iteration of the control loop.
func (b *Bridge) Step(ctx context.Context) {
	now := b.clock()
	connected := b.network.Connected()

	if b.sweep.Observe(connected) {
		b.logger.LogInfo(ctx, "First connection to radio, forcing all zones off.")
		b.controller.Sweep(ctx)
	}

	b.supervisor.Tick(ctx, now)

	state, changed := b.aggregator.Update(connected, b.zones.AnyArmed())
	if changed {
		b.logger.LogInfo(ctx, "Bridge status changed.", logwrap.Datum("status", state.String()))
	}
	b.indicator.Show(ctx, state, now)

	if connected && now.Sub(b.lastRemaining) >= b.cfg.RemainingInterval {
		b.lastRemaining = now
		b.reportRemaining(ctx, now)
	}

	b.sampleButton(ctx, now)

	if b.watchdog != nil {
		b.watchdog.Kick(now)
	}

	b.publishSnapshot(now)
}

func (b *Bridge) reportRemaining(ctx context.Context, now time.Time) {
	for _, z := range b.zones.All() {
		if err := b.endpoints[z.Index].ReportRemaining(ctx, z.Remaining(now)); err != nil {
			b.logger.LogDebug(ctx, "Failed to report remaining run time.", logwrap.Datum("zone", z.Index.Number()), logwrap.Err(err))
		}
	}
}

func (b *Bridge) sampleButton(ctx context.Context, now time.Time) {
	switch b.hold.Sample(b.button.Pressed(), now) {
	case button.Pressed:
		b.logger.LogInfo(ctx, "Button pressed, hold for factory reset.")
	case button.Released:
		b.logger.LogInfo(ctx, "Button released.")
	case button.Held:
		b.logger.LogWarn(ctx, "Factory reset triggered.")

		if b.reset != nil {
			b.reset(ctx)
		}
	}
}

func (b *Bridge) publishSnapshot(now time.Time) {
	snap := Snapshot{
		Status:    b.aggregator.State().String(),
		Connected: b.network.Connected(),
		Swept:     b.sweep.Done(),
		Zones:     b.zones.Snapshot(now),
		Updated:   now,
	}

	b.snapshotLock.Lock()
	defer b.snapshotLock.Unlock()

	b.snapshot = snap
}

// Snapshot returns the state as of the last loop iteration, it is safe to call from any
// goroutine.
func (b *Bridge) Snapshot() Snapshot {
	b.snapshotLock.RLock()
	defer b.snapshotLock.RUnlock()

	return b.snapshot
}
