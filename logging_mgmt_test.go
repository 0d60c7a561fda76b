package main

import (
	"context"
	"github.com/shimmeringbee/irrigation/config"
	"github.com/shimmeringbee/logwrap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

type capturedMessages struct {
	messages []logwrap.Message
}

func (c *capturedMessages) impl(_ context.Context, m logwrap.Message) {
	c.messages = append(c.messages, m)
}

func Test_constructFilter(t *testing.T) {
	ctx := context.Background()

	t.Run("drops messages above the configured level", func(t *testing.T) {
		c := &capturedMessages{}

		impl, err := constructFilter(config.BaseLogging{Level: "warn"}, c.impl)
		require.NoError(t, err)

		impl(ctx, logwrap.Message{Level: logwrap.Error})
		impl(ctx, logwrap.Message{Level: logwrap.Warn})
		impl(ctx, logwrap.Message{Level: logwrap.Info})

		assert.Len(t, c.messages, 2)
	})

	t.Run("defaults to info", func(t *testing.T) {
		c := &capturedMessages{}

		impl, err := constructFilter(config.BaseLogging{}, c.impl)
		require.NoError(t, err)

		impl(ctx, logwrap.Message{Level: logwrap.Info})
		impl(ctx, logwrap.Message{Level: logwrap.Debug})

		assert.Len(t, c.messages, 1)
	})

	t.Run("keeps only listed subsystems", func(t *testing.T) {
		c := &capturedMessages{}

		impl, err := constructFilter(config.BaseLogging{Level: "info", Subsystems: []string{"smartport"}}, c.impl)
		require.NoError(t, err)

		impl(ctx, logwrap.Message{Level: logwrap.Info, Source: "smartport"})
		impl(ctx, logwrap.Message{Level: logwrap.Info, Source: "mqtt"})

		require.Len(t, c.messages, 1)
		assert.Equal(t, "smartport", c.messages[0].Source)
	})

	t.Run("drops listed subsystems when negated", func(t *testing.T) {
		c := &capturedMessages{}

		impl, err := constructFilter(config.BaseLogging{Level: "info", Subsystems: []string{"smartport"}, NegateSubsystems: true}, c.impl)
		require.NoError(t, err)

		impl(ctx, logwrap.Message{Level: logwrap.Info, Source: "smartport"})
		impl(ctx, logwrap.Message{Level: logwrap.Info, Source: "mqtt"})

		require.Len(t, c.messages, 1)
		assert.Equal(t, "mqtt", c.messages[0].Source)
	})

	t.Run("rejects an unknown level", func(t *testing.T) {
		_, err := constructFilter(config.BaseLogging{Level: "chatty"}, (&capturedMessages{}).impl)
		assert.Error(t, err)
	})
}
