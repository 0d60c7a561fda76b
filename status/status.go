package status

import (
	"context"
	"github.com/shimmeringbee/logwrap"
	"time"
)

type State uint8

const (
	Unknown State = iota
	Disconnected
	Idle
	Active
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Idle:
		return "idle"
	case Active:
		return "active"
	default:
		return "unknown"
	}
}

func Evaluate(connected bool, anyActive bool) State {
	switch {
	case !connected:
		return Disconnected
	case anyActive:
		return Active
	default:
		return Idle
	}
}

// Aggregator tracks the overall state of the bridge.
type Aggregator struct {
	state State
}

// Update evaluates the state and reports whether it changed.
func (a *Aggregator) Update(connected bool, anyActive bool) (State, bool) {
	next := Evaluate(connected, anyActive)
	changed := next != a.state
	a.state = next

	return next, changed
}

func (a *Aggregator) State() State {
	return a.state
}

// Output is a single on/off indicator such as an LED.
type Output interface {
	Set(lit bool) error
}

type NullOutput struct{}

func (NullOutput) Set(bool) error {
	return nil
}

const DefaultBlinkInterval = 500 * time.Millisecond

// Indicator drives an Output from the bridge state: blinking while disconnected and a single
// steady write on entering idle or active.
type Indicator struct {
	output   Output
	interval time.Duration
	idleLit  bool
	logger   logwrap.Logger

	state      State
	lit        bool
	lastToggle time.Time
}

func NewIndicator(output Output, interval time.Duration, idleLit bool, l logwrap.Logger) *Indicator {
	if interval <= 0 {
		interval = DefaultBlinkInterval
	}

	return &Indicator{output: output, interval: interval, idleLit: idleLit, logger: l}
}

func (i *Indicator) Show(ctx context.Context, s State, now time.Time) {
	if s != i.state {
		i.state = s

		switch s {
		case Disconnected:
			i.lastToggle = now
		case Idle:
			i.write(ctx, i.idleLit)
		case Active:
			i.write(ctx, true)
		}

		return
	}

	if s == Disconnected && now.Sub(i.lastToggle) >= i.interval {
		i.lastToggle = now
		i.write(ctx, !i.lit)
	}
}

func (i *Indicator) write(ctx context.Context, lit bool) {
	i.lit = lit

	if err := i.output.Set(lit); err != nil {
		i.logger.LogWarn(ctx, "Failed to write status indicator.", logwrap.Err(err))
	}
}
