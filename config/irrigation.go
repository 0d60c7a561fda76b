package config

import (
	"encoding/json"
	"fmt"
	"github.com/shimmeringbee/irrigation/valve"
	"time"
)

// Duration is a time.Duration written in JSON as a Go duration string, e.g. "90m".
type Duration time.Duration

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("failed to parse duration '%s': %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

const (
	DefaultSafetyTimeout     = Duration(60 * time.Minute)
	DefaultPollInterval      = Duration(100 * time.Millisecond)
	DefaultFailureEscalation = 10
	DefaultBlinkInterval     = Duration(500 * time.Millisecond)
	DefaultButtonHold        = Duration(5 * time.Second)
	DefaultCommandTimeout    = Duration(2 * time.Second)
	DefaultBaud              = 115200

	MaximumZones = 48

	// MaximumSafetyTimeout is the longest run the valve controller accepts.
	MaximumSafetyTimeout = Duration(valve.MaximumMinutes * time.Minute)
)

type IrrigationConfig struct {
	Name string

	Zones []ZoneConfig

	// SafetyTimeout applies to every zone which does not set its own.
	SafetyTimeout     Duration
	PollInterval      Duration
	FailureEscalation int

	Hardware HardwareConfig
	Driver   DriverConfig
}

type ZoneConfig struct {
	Name          string
	SafetyTimeout *Duration
}

type HardwareConfig struct {
	Indicator IndicatorConfig
	Button    ButtonConfig
	Watchdog  WatchdogConfig
}

// IndicatorConfig describes the status LED, an empty Pin disables it.
type IndicatorConfig struct {
	Pin           string
	ActiveLow     bool
	IdleLit       *bool
	BlinkInterval Duration
}

// ButtonConfig describes the factory reset button, an empty Pin disables it.
type ButtonConfig struct {
	Pin       string
	ActiveLow bool
	Hold      Duration
}

type WatchdogConfig struct {
	Disabled bool
}

func (c *IrrigationConfig) Defaults() {
	if len(c.Name) == 0 {
		c.Name = "Irrigation"
	}

	if c.SafetyTimeout == 0 {
		c.SafetyTimeout = DefaultSafetyTimeout
	}

	if c.PollInterval == 0 {
		c.PollInterval = DefaultPollInterval
	}

	if c.FailureEscalation == 0 {
		c.FailureEscalation = DefaultFailureEscalation
	}

	if c.Hardware.Indicator.BlinkInterval == 0 {
		c.Hardware.Indicator.BlinkInterval = DefaultBlinkInterval
	}

	if c.Hardware.Indicator.IdleLit == nil {
		lit := true
		c.Hardware.Indicator.IdleLit = &lit
	}

	if c.Hardware.Button.Hold == 0 {
		c.Hardware.Button.Hold = DefaultButtonHold
	}

	if len(c.Driver.Type) == 0 {
		c.Driver = DriverConfig{Type: "simulated", Config: &SimulatedDriver{}}
	}

	if sp, ok := c.Driver.Config.(*SmartPortDriver); ok {
		if sp.CommandTimeout == 0 {
			sp.CommandTimeout = DefaultCommandTimeout
		}

		if sp.Port.Baud == 0 {
			sp.Port.Baud = DefaultBaud
		}
	}

	for i := range c.Zones {
		if len(c.Zones[i].Name) == 0 {
			c.Zones[i].Name = fmt.Sprintf("Zone %d", i+1)
		}
	}
}

func (c *IrrigationConfig) Validate() error {
	if len(c.Zones) == 0 {
		return fmt.Errorf("at least one zone must be configured")
	}

	if len(c.Zones) > MaximumZones {
		return fmt.Errorf("at most %d zones may be configured, found %d", MaximumZones, len(c.Zones))
	}

	if c.SafetyTimeout <= 0 {
		return fmt.Errorf("safety timeout must be positive")
	}

	if c.SafetyTimeout > MaximumSafetyTimeout {
		return fmt.Errorf("safety timeout must be at most %s", MaximumSafetyTimeout.Duration())
	}

	for i, z := range c.Zones {
		if z.SafetyTimeout == nil {
			continue
		}

		if *z.SafetyTimeout <= 0 {
			return fmt.Errorf("safety timeout of zone %d must be positive", i+1)
		}

		if *z.SafetyTimeout > MaximumSafetyTimeout {
			return fmt.Errorf("safety timeout of zone %d must be at most %s", i+1, MaximumSafetyTimeout.Duration())
		}
	}

	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}

	if c.FailureEscalation < 1 {
		return fmt.Errorf("failure escalation must be at least one")
	}

	if sp, ok := c.Driver.Config.(*SmartPortDriver); ok && len(sp.Port.Name) == 0 {
		return fmt.Errorf("smartport driver requires a serial port name")
	}

	return nil
}

// ZoneTimeout returns the safety timeout for a zone, falling back to the fleet default.
func (c *IrrigationConfig) ZoneTimeout(i int) time.Duration {
	if z := c.Zones[i]; z.SafetyTimeout != nil {
		return z.SafetyTimeout.Duration()
	}

	return c.SafetyTimeout.Duration()
}
