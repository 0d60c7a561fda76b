package config

import (
	"encoding/json"
	"fmt"
	"github.com/tidwall/gjson"
)

type InterfaceConfig struct {
	Name   string `json:"-"`
	Type   string
	Config any
}

func (g *InterfaceConfig) UnmarshalJSON(data []byte) error {
	if result := gjson.GetBytes(data, "Type"); !result.Exists() {
		return fmt.Errorf("failed to find interface type information")
	} else {
		g.Type = result.String()
	}

	switch g.Type {
	case "http":
		g.Config = &HTTPInterfaceConfig{}
	case "mqtt":
		g.Config = &MQTTInterfaceConfig{}
	case "homekit":
		g.Config = &HomeKitInterfaceConfig{}
	default:
		return fmt.Errorf("unknown interface configuration type: %s", g.Type)
	}

	if result := gjson.GetBytes(data, "Config"); result.Exists() {
		return json.Unmarshal([]byte(result.Raw), g.Config)
	} else {
		return fmt.Errorf("unable to find Config stanza: %s", g.Type)
	}
}

// HTTPInterfaceConfig serves the read only status API, EnabledAPIs selects from "v1" and "pprof".
type HTTPInterfaceConfig struct {
	Port        int
	EnabledAPIs []string
}

// HomeKitInterfaceConfig exposes every zone as a HomeKit switch. Pin is the eight digit setup
// code entered when pairing.
type HomeKitInterfaceConfig struct {
	Pin  string
	Port string
}

type MQTTInterfaceConfig struct {
	Server string

	TLS         *MQTTTLS
	Credentials *MQTTCredentials

	Retained    bool
	QOS         byte
	TopicPrefix string
}

type MQTTTLS struct {
	IgnoreSystemRootCertificates bool
	SkipCertificateVerification  bool
	Key                          string
	Cert                         string
	CACert                       string
}

type MQTTCredentials struct {
	Username string
	Password string
}
