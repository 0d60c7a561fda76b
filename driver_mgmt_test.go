package main

import (
	"context"
	"errors"
	"github.com/shimmeringbee/irrigation/config"
	"github.com/shimmeringbee/irrigation/valve"
	"github.com/shimmeringbee/irrigation/valve/simulated"
	"github.com/shimmeringbee/irrigation/valve/smartport"
	"github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/logwrap/impl/discard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"io"
	"net"
	"testing"
)

func Test_startDriver(t *testing.T) {
	l := logwrap.New(discard.Discard())

	t.Run("constructs a simulated driver without opening a port", func(t *testing.T) {
		opener := func(string, int) (io.ReadWriteCloser, error) {
			t.Fatal("serial port opened for simulated driver")
			return nil, nil
		}

		d, closer, err := startDriver(config.DriverConfig{Type: "simulated", Config: &config.SimulatedDriver{}}, opener, l)
		require.NoError(t, err)

		_, ok := d.(*simulated.Driver)
		assert.True(t, ok)
		assert.Equal(t, valve.Success, d.Start(context.Background(), 1, 10))
		assert.NoError(t, closer())
	})

	t.Run("opens the configured serial port for smartport", func(t *testing.T) {
		local, remote := net.Pipe()
		defer remote.Close()

		var openedName string
		var openedBaud int

		opener := func(name string, baud int) (io.ReadWriteCloser, error) {
			openedName = name
			openedBaud = baud
			return local, nil
		}

		cfg := config.DriverConfig{Type: "smartport", Config: &config.SmartPortDriver{
			Port:           config.SerialPort{Name: "/dev/ttyUSB0", Baud: 9600},
			CommandTimeout: config.DefaultCommandTimeout,
		}}

		d, closer, err := startDriver(cfg, opener, l)
		require.NoError(t, err)

		_, ok := d.(*smartport.Driver)
		assert.True(t, ok)
		assert.Equal(t, "/dev/ttyUSB0", openedName)
		assert.Equal(t, 9600, openedBaud)
		assert.NoError(t, closer())
	})

	t.Run("returns an error if the port cannot be opened", func(t *testing.T) {
		opener := func(string, int) (io.ReadWriteCloser, error) {
			return nil, errors.New("no such device")
		}

		cfg := config.DriverConfig{Type: "smartport", Config: &config.SmartPortDriver{Port: config.SerialPort{Name: "/dev/ttyUSB9"}}}

		_, _, err := startDriver(cfg, opener, l)
		assert.Error(t, err)
	})

	t.Run("returns an error for an unknown driver", func(t *testing.T) {
		_, _, err := startDriver(config.DriverConfig{Type: "hose"}, nil, l)
		assert.Error(t, err)
	})
}
