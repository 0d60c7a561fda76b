package simulated

import (
	"context"
	"github.com/shimmeringbee/irrigation/valve"
	"github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/logwrap/impl/discard"
	"github.com/stretchr/testify/assert"
	"testing"
	"time"
)

func TestDriver(t *testing.T) {
	l := logwrap.New(discard.Discard())

	t.Run("starting a zone runs it until its timer elapses", func(t *testing.T) {
		now := time.Unix(1000, 0)
		d := New(l)
		d.clock = func() time.Time { return now }

		assert.Equal(t, valve.Success, d.Start(context.Background(), 1, 10))
		assert.True(t, d.Running(1))

		now = now.Add(10 * time.Minute)
		assert.False(t, d.Running(1))
	})

	t.Run("stopping a zone ends the run", func(t *testing.T) {
		d := New(l)

		d.Start(context.Background(), 2, 10)
		assert.Equal(t, valve.Success, d.Stop(context.Background(), 2))
		assert.False(t, d.Running(2))
	})

	t.Run("injected failures are returned until cleared", func(t *testing.T) {
		d := New(l)
		d.Fail(3, valve.InvalidProgram)

		assert.Equal(t, valve.InvalidProgram, d.Start(context.Background(), 3, 10))
		assert.False(t, d.Running(3))

		d.Fail(3, valve.Success)
		assert.Equal(t, valve.Success, d.Start(context.Background(), 3, 10))
	})

	t.Run("validates commands", func(t *testing.T) {
		d := New(l)

		assert.Equal(t, valve.InvalidDuration, d.Start(context.Background(), 1, 500))
		assert.Equal(t, valve.InvalidZone, d.Stop(context.Background(), 0))
	})
}
