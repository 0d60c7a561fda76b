package main

import (
	"context"
	"fmt"
	"github.com/shimmeringbee/irrigation/config"
	"github.com/shimmeringbee/irrigation/valve"
	"github.com/shimmeringbee/irrigation/valve/simulated"
	"github.com/shimmeringbee/irrigation/valve/smartport"
	"github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/logwrap/impl/nest"
	"go.bug.st/serial.v1"
	"io"
)

type serialOpener func(name string, baud int) (io.ReadWriteCloser, error)

func openSerial(name string, baud int) (io.ReadWriteCloser, error) {
	return serial.Open(name, &serial.Mode{BaudRate: baud})
}

// startDriver constructs the valve driver described by cfg, returning it with a function to
// release its resources.
func startDriver(cfg config.DriverConfig, open serialOpener, l logwrap.Logger) (valve.Driver, func() error, error) {
	wl := logwrap.New(nest.Wrap(l))
	wl.AddOptionsToLogger(logwrap.Source(cfg.Type))

	switch dCfg := cfg.Config.(type) {
	case *config.SmartPortDriver:
		port, err := open(dCfg.Port.Name, dCfg.Port.Baud)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open serial port for smartport '%s': %w", dCfg.Port.Name, err)
		}

		d := smartport.New(port, dCfg.CommandTimeout.Duration(), wl)
		return d, d.Close, nil
	case *config.SimulatedDriver:
		wl.LogWarn(context.Background(), "Using simulated valve driver, no valves will be operated.")
		return simulated.New(wl), func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown driver type loaded: %s", cfg.Type)
	}
}
