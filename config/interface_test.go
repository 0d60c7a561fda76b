package config

import (
	"encoding/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

func TestParseInterface(t *testing.T) {
	t.Run("errors if json is invalid", func(t *testing.T) {
		data := []byte(`"`)
		ic := InterfaceConfig{}

		err := json.Unmarshal(data, &ic)
		assert.Error(t, err)
	})

	t.Run("errors if type is unknown", func(t *testing.T) {
		data := []byte(`{"Type":"zigbee","Config":{}}`)
		ic := InterfaceConfig{}

		err := json.Unmarshal(data, &ic)
		assert.Error(t, err)
	})

	t.Run("http interface", func(t *testing.T) {
		t.Run("parses successfully", func(t *testing.T) {
			data := []byte(`{"Type":"http","Config":{"Port":3000,"EnabledAPIs":["v1","pprof"]}}`)
			ic := InterfaceConfig{}

			err := json.Unmarshal(data, &ic)
			assert.NoError(t, err)

			httpInt, ok := ic.Config.(*HTTPInterfaceConfig)
			require.True(t, ok)

			assert.Equal(t, 3000, httpInt.Port)
			assert.Equal(t, []string{"v1", "pprof"}, httpInt.EnabledAPIs)
		})
	})

	t.Run("mqtt interface", func(t *testing.T) {
		t.Run("parses successfully", func(t *testing.T) {
			data := []byte(`{
  "Type": "mqtt",
  "Config": {
    "Server": "tls://broker.local:8883",
    "TopicPrefix": "irrigation",
    "QOS": 1,
    "Retained": true,
    "Credentials": { "Username": "bridge", "Password": "secret" },
    "TLS": { "CACert": "/etc/ssl/broker.pem" }
  }
}`)
			ic := InterfaceConfig{}

			err := json.Unmarshal(data, &ic)
			assert.NoError(t, err)

			mqttInt, ok := ic.Config.(*MQTTInterfaceConfig)
			require.True(t, ok)

			assert.Equal(t, "tls://broker.local:8883", mqttInt.Server)
			assert.Equal(t, "irrigation", mqttInt.TopicPrefix)
			assert.Equal(t, byte(1), mqttInt.QOS)
			assert.True(t, mqttInt.Retained)
			assert.Equal(t, "bridge", mqttInt.Credentials.Username)
			assert.Equal(t, "/etc/ssl/broker.pem", mqttInt.TLS.CACert)
		})
	})

	t.Run("homekit interface", func(t *testing.T) {
		t.Run("parses successfully", func(t *testing.T) {
			data := []byte(`{"Type":"homekit","Config":{"Pin":"00102003","Port":"51826"}}`)
			ic := InterfaceConfig{}

			err := json.Unmarshal(data, &ic)
			assert.NoError(t, err)

			hkInt, ok := ic.Config.(*HomeKitInterfaceConfig)
			require.True(t, ok)

			assert.Equal(t, "00102003", hkInt.Pin)
			assert.Equal(t, "51826", hkInt.Port)
		})

		t.Run("errors without a Config stanza", func(t *testing.T) {
			data := []byte(`{"Type":"homekit"}`)
			ic := InterfaceConfig{}

			err := json.Unmarshal(data, &ic)
			assert.Error(t, err)
		})
	})
}
