package main

import (
	"context"
	"fmt"
	"github.com/shimmeringbee/irrigation/button"
	"github.com/shimmeringbee/irrigation/config"
	"github.com/shimmeringbee/irrigation/status"
	"github.com/shimmeringbee/irrigation/watchdog"
	"github.com/shimmeringbee/logwrap"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

type outputPin interface {
	Out(gpio.Level) error
}

type inputPin interface {
	Read() gpio.Level
}

// gpioOutput drives an LED, ActiveLow inverts the level for LEDs wired to the supply rail.
type gpioOutput struct {
	pin       outputPin
	activeLow bool
}

func (g gpioOutput) Set(lit bool) error {
	return g.pin.Out(gpio.Level(lit != g.activeLow))
}

type gpioInput struct {
	pin       inputPin
	activeLow bool
}

func (g gpioInput) Pressed() bool {
	return bool(g.pin.Read()) != g.activeLow
}

type Hardware struct {
	Output   status.Output
	Input    button.Input
	Watchdog *watchdog.Watchdog
}

// initialiseHardware opens the indicator and button pins, any that are not configured are
// replaced with null implementations so the bridge runs on hosts without GPIO.
func initialiseHardware(cfg config.HardwareConfig, l logwrap.Logger) (Hardware, error) {
	ctx := context.Background()

	hw := Hardware{Output: status.NullOutput{}, Input: button.NullInput{}}

	if len(cfg.Indicator.Pin) > 0 || len(cfg.Button.Pin) > 0 {
		if _, err := host.Init(); err != nil {
			return hw, fmt.Errorf("failed to initialise gpio host drivers: %w", err)
		}
	}

	if len(cfg.Indicator.Pin) > 0 {
		pin := gpioreg.ByName(cfg.Indicator.Pin)
		if pin == nil {
			return hw, fmt.Errorf("failed to find indicator pin '%s'", cfg.Indicator.Pin)
		}

		hw.Output = gpioOutput{pin: pin, activeLow: cfg.Indicator.ActiveLow}
		l.LogInfo(ctx, "Status indicator configured.", logwrap.Datum("pin", pin.Name()))
	} else {
		l.LogWarn(ctx, "No status indicator pin configured.")
	}

	if len(cfg.Button.Pin) > 0 {
		pin := gpioreg.ByName(cfg.Button.Pin)
		if pin == nil {
			return hw, fmt.Errorf("failed to find button pin '%s'", cfg.Button.Pin)
		}

		pull := gpio.PullDown
		if cfg.Button.ActiveLow {
			pull = gpio.PullUp
		}

		if err := pin.In(pull, gpio.NoEdge); err != nil {
			return hw, fmt.Errorf("failed to configure button pin '%s': %w", cfg.Button.Pin, err)
		}

		hw.Input = gpioInput{pin: pin, activeLow: cfg.Button.ActiveLow}
		l.LogInfo(ctx, "Factory reset button configured.", logwrap.Datum("pin", pin.Name()), logwrap.Datum("hold", cfg.Button.Hold.Duration().String()))
	} else {
		l.LogWarn(ctx, "No factory reset button pin configured.")
	}

	hw.Watchdog = initialiseWatchdog(cfg.Watchdog, l)

	return hw, nil
}

func initialiseWatchdog(cfg config.WatchdogConfig, l logwrap.Logger) *watchdog.Watchdog {
	ctx := context.Background()

	if cfg.Disabled {
		l.LogInfo(ctx, "Watchdog disabled by configuration.")
		return watchdog.New(nil, 0, l)
	}

	notifier, timeout, err := watchdog.Systemd()
	if err != nil {
		l.LogWarn(ctx, "Failed to query systemd watchdog, continuing without it.", logwrap.Err(err))
		return watchdog.New(nil, 0, l)
	}

	if timeout == 0 {
		l.LogInfo(ctx, "Not supervised by a systemd watchdog.")
		return watchdog.New(nil, 0, l)
	}

	l.LogInfo(ctx, "Systemd watchdog enabled.", logwrap.Datum("timeout", timeout.String()))
	return watchdog.New(notifier, timeout, l)
}
