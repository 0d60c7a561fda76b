package config

import (
	"encoding/json"
	"fmt"
	"github.com/tidwall/gjson"
)

type DriverConfig struct {
	Type   string
	Config any
}

func (d *DriverConfig) UnmarshalJSON(data []byte) error {
	if result := gjson.GetBytes(data, "Type"); !result.Exists() {
		return fmt.Errorf("failed to find driver type information")
	} else {
		d.Type = result.String()
	}

	switch d.Type {
	case "smartport":
		d.Config = &SmartPortDriver{}
	case "simulated":
		d.Config = &SimulatedDriver{}
		if result := gjson.GetBytes(data, "Config"); !result.Exists() {
			return nil
		}
	default:
		return fmt.Errorf("unknown driver configuration type: %s", d.Type)
	}

	if result := gjson.GetBytes(data, "Config"); result.Exists() {
		return json.Unmarshal([]byte(result.Raw), d.Config)
	} else {
		return fmt.Errorf("unable to find Config stanza: %s", d.Type)
	}
}

// SmartPortDriver is a serial link to the microcontroller generating the SmartPort signal.
type SmartPortDriver struct {
	Port           SerialPort
	CommandTimeout Duration
}

type SerialPort struct {
	Name string
	Baud int
}

type SimulatedDriver struct{}
