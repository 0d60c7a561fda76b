package bridge

import (
	"context"
	"github.com/shimmeringbee/irrigation/radio"
	"github.com/shimmeringbee/irrigation/status"
	"github.com/shimmeringbee/irrigation/valve"
	"github.com/shimmeringbee/irrigation/valve/simulated"
	"github.com/shimmeringbee/irrigation/zone"
	"github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/logwrap/impl/discard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sync"
	"testing"
	"time"
)

type fakeEndpoint struct {
	lock      sync.Mutex
	handler   radio.RequestHandler
	echo      bool
	reflected []bool
	remaining []uint8
}

func (f *fakeEndpoint) OnRequest(h radio.RequestHandler) {
	f.handler = h
}

func (f *fakeEndpoint) Reflect(_ context.Context, on bool) error {
	f.lock.Lock()
	f.reflected = append(f.reflected, on)
	f.lock.Unlock()

	if f.echo {
		f.handler(on)
	}

	return nil
}

func (f *fakeEndpoint) ReportRemaining(_ context.Context, remaining uint8) error {
	f.lock.Lock()
	defer f.lock.Unlock()

	f.remaining = append(f.remaining, remaining)
	return nil
}

func (f *fakeEndpoint) Reflected() []bool {
	f.lock.Lock()
	defer f.lock.Unlock()

	return append([]bool(nil), f.reflected...)
}

type fakeNetwork struct {
	connected bool
	endpoints []*fakeEndpoint
	erased    int
}

func (f *fakeNetwork) Name() string {
	return "fake"
}

func (f *fakeNetwork) Connected() bool {
	return f.connected
}

func (f *fakeNetwork) Endpoint(i zone.Index) (radio.Endpoint, bool) {
	if int(i) >= len(f.endpoints) {
		return nil, false
	}

	return f.endpoints[i], true
}

func (f *fakeNetwork) Erase() error {
	f.erased++
	return nil
}

type recordingOutput struct {
	writes []bool
}

func (r *recordingOutput) Set(lit bool) error {
	r.writes = append(r.writes, lit)
	return nil
}

type fakeButton struct {
	pressed bool
}

func (f *fakeButton) Pressed() bool {
	return f.pressed
}

type countingKeeper struct {
	kicks int
}

func (c *countingKeeper) Kick(time.Time) {
	c.kicks++
}

type fixture struct {
	bridge  *Bridge
	network *fakeNetwork
	driver  *simulated.Driver
	output  *recordingOutput
	button  *fakeButton
	keeper  *countingKeeper
	resets  int
	now     time.Time
}

func newFixture(t *testing.T, count int, timeout time.Duration) *fixture {
	var defs []zone.Definition
	for i := 0; i < count; i++ {
		defs = append(defs, zone.Definition{Name: "Zone", SafetyTimeout: timeout})
	}

	zones, err := zone.NewSet(defs)
	require.NoError(t, err)

	l := logwrap.New(discard.Discard())

	f := &fixture{
		network: &fakeNetwork{},
		driver:  simulated.New(l),
		output:  &recordingOutput{},
		button:  &fakeButton{},
		keeper:  &countingKeeper{},
		now:     time.Unix(0, 0),
	}

	for i := 0; i < count; i++ {
		f.network.endpoints = append(f.network.endpoints, &fakeEndpoint{})
	}

	hw := Hardware{
		Indicator:    status.NewIndicator(f.output, 500*time.Millisecond, true, l),
		Button:       f.button,
		ButtonHold:   5 * time.Second,
		Watchdog:     f.keeper,
		FactoryReset: func(context.Context) { f.resets++ },
	}

	f.bridge, err = New(Config{PollInterval: 100 * time.Millisecond}, zones, f.driver, f.network, hw, l)
	require.NoError(t, err)
	f.bridge.WithClock(func() time.Time { return f.now })

	return f
}

func (f *fixture) step(d time.Duration) {
	f.now = f.now.Add(d)
	f.bridge.Step(context.Background())
}

func (f *fixture) request(i int, on bool) {
	f.network.endpoints[i].handler(on)
	f.bridge.Drain(context.Background())
}

func TestNew(t *testing.T) {
	t.Run("fails if the network does not expose every zone", func(t *testing.T) {
		zones, err := zone.NewSet([]zone.Definition{{Name: "A", SafetyTimeout: time.Hour}, {Name: "B", SafetyTimeout: time.Hour}})
		require.NoError(t, err)

		network := &fakeNetwork{endpoints: []*fakeEndpoint{{}}}

		_, err = New(Config{}, zones, &valve.MockDriver{}, network, Hardware{}, logwrap.New(discard.Discard()))
		assert.Error(t, err)
	})
}

func TestBridge_ConnectSweep(t *testing.T) {
	t.Run("forces all zones off exactly once on first connection", func(t *testing.T) {
		f := newFixture(t, 4, time.Hour)

		f.step(100 * time.Millisecond)
		for _, ep := range f.network.endpoints {
			assert.Empty(t, ep.Reflected())
		}

		f.network.connected = true
		f.step(100 * time.Millisecond)

		for _, ep := range f.network.endpoints {
			assert.Equal(t, []bool{false}, ep.Reflected())
		}

		f.network.connected = false
		f.step(100 * time.Millisecond)
		f.network.connected = true
		f.step(100 * time.Millisecond)

		for _, ep := range f.network.endpoints {
			assert.Equal(t, []bool{false}, ep.Reflected())
		}

		assert.True(t, f.bridge.Snapshot().Swept)
	})
}

func TestBridge_Requests(t *testing.T) {
	t.Run("a radio request starts the valve and arms the deadline", func(t *testing.T) {
		f := newFixture(t, 4, time.Hour)
		f.network.connected = true
		f.step(100 * time.Millisecond)

		f.request(1, true)

		assert.True(t, f.driver.Running(2))
		assert.Equal(t, []bool{false, true}, f.network.endpoints[1].Reflected())

		f.step(100 * time.Millisecond)
		snap := f.bridge.Snapshot()
		assert.Equal(t, "active", snap.Status)
		assert.Equal(t, zone.On.String(), snap.Zones[1].State)
	})

	t.Run("an echoing endpoint does not queue a second request", func(t *testing.T) {
		f := newFixture(t, 1, time.Hour)
		f.network.connected = true
		f.step(100 * time.Millisecond)

		f.network.endpoints[0].echo = true
		f.request(0, true)

		assert.Equal(t, []bool{false, true}, f.network.endpoints[0].Reflected())
		assert.Empty(t, f.bridge.requests)
	})

	t.Run("the safety timeout stops a running zone", func(t *testing.T) {
		f := newFixture(t, 1, time.Minute)
		f.network.connected = true
		f.step(100 * time.Millisecond)

		f.request(0, true)

		f.step(59 * time.Second)
		assert.Equal(t, zone.On.String(), f.bridge.Snapshot().Zones[0].State)

		f.step(time.Second)
		assert.Equal(t, zone.Off.String(), f.bridge.Snapshot().Zones[0].State)
		assert.False(t, f.driver.Running(1))
	})
}

func TestBridge_Disconnection(t *testing.T) {
	t.Run("blinks while disconnected and still enforces deadlines", func(t *testing.T) {
		f := newFixture(t, 1, time.Minute)
		f.network.connected = true
		f.step(100 * time.Millisecond)

		f.request(0, true)
		f.step(100 * time.Millisecond)
		assert.Equal(t, "active", f.bridge.Snapshot().Status)

		f.network.connected = false
		f.step(100 * time.Millisecond)
		assert.Equal(t, "disconnected", f.bridge.Snapshot().Status)

		writes := len(f.output.writes)
		f.step(500 * time.Millisecond)
		f.step(500 * time.Millisecond)
		assert.Equal(t, writes+2, len(f.output.writes))

		f.step(time.Minute)
		assert.Equal(t, zone.Off.String(), f.bridge.Snapshot().Zones[0].State)
		assert.Equal(t, "disconnected", f.bridge.Snapshot().Status)
	})
}

func TestBridge_RemainingReports(t *testing.T) {
	t.Run("reports remaining time at most once per interval while connected", func(t *testing.T) {
		f := newFixture(t, 1, time.Hour)
		f.network.connected = true

		f.step(100 * time.Millisecond)
		f.step(100 * time.Millisecond)
		f.step(100 * time.Millisecond)
		assert.Len(t, f.network.endpoints[0].remaining, 1)

		f.step(time.Second)
		assert.Len(t, f.network.endpoints[0].remaining, 2)

		f.network.connected = false
		f.step(time.Second)
		assert.Len(t, f.network.endpoints[0].remaining, 2)
	})
}

func TestBridge_Button(t *testing.T) {
	t.Run("holding the button triggers one factory reset", func(t *testing.T) {
		f := newFixture(t, 1, time.Hour)

		f.button.pressed = true
		f.step(100 * time.Millisecond)
		f.step(4 * time.Second)
		assert.Equal(t, 0, f.resets)

		f.step(time.Second)
		f.step(time.Second)
		assert.Equal(t, 1, f.resets)

		f.button.pressed = false
		f.step(100 * time.Millisecond)
		assert.Equal(t, 1, f.resets)
	})
}

func TestBridge_Watchdog(t *testing.T) {
	t.Run("every step kicks the watchdog", func(t *testing.T) {
		f := newFixture(t, 1, time.Hour)

		f.step(100 * time.Millisecond)
		f.step(100 * time.Millisecond)

		assert.Equal(t, 2, f.keeper.kicks)
	})
}

func TestBridge_Run(t *testing.T) {
	t.Run("applies queued requests and stops with the context", func(t *testing.T) {
		f := newFixture(t, 1, time.Hour)
		f.network.connected = true
		f.step(100 * time.Millisecond)
		f.bridge.WithClock(time.Now)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error)

		go func() {
			done <- f.bridge.Run(ctx)
		}()

		f.network.endpoints[0].handler(true)

		assert.Eventually(t, func() bool {
			return f.bridge.Snapshot().Zones[0].State == zone.On.String()
		}, time.Second, 10*time.Millisecond)

		cancel()
		assert.ErrorIs(t, <-done, context.Canceled)
	})
}
