package config

import (
	"encoding/json"
	"github.com/shimmeringbee/logwrap"
	"github.com/stretchr/testify/assert"
	"testing"
)

func TestParseLogging(t *testing.T) {
	t.Run("errors if json is invalid", func(t *testing.T) {
		data := []byte(`"`)
		gw := LoggingConfig{}

		err := json.Unmarshal(data, &gw)
		assert.Error(t, err)
	})

	t.Run("errors if type is unknown", func(t *testing.T) {
		data := []byte(`{"Type":"unknown"}`)
		gw := LoggingConfig{}

		err := json.Unmarshal(data, &gw)
		assert.Error(t, err)
	})

	t.Run("errors if the level is unknown", func(t *testing.T) {
		data := []byte(`{"Type":"stdout","Config":{"Level":"verbose"}}`)
		gw := LoggingConfig{}

		err := json.Unmarshal(data, &gw)
		assert.Error(t, err)
	})

	t.Run("defaults the level to info", func(t *testing.T) {
		data := []byte(`{"Type":"stdout","Config":{}}`)
		gw := LoggingConfig{}

		err := json.Unmarshal(data, &gw)
		assert.NoError(t, err)
		assert.Equal(t, logwrap.Info, gw.Config.Base().LogLevel())
	})

	t.Run("file logger defaults its rotation", func(t *testing.T) {
		data := []byte(`{"Type":"file","Config":{"Level":"warn"}}`)
		gw := LoggingConfig{}

		err := json.Unmarshal(data, &gw)
		assert.NoError(t, err)

		fileLog, ok := gw.Config.(*FileLogging)
		assert.True(t, ok)
		assert.Equal(t, DefaultLogFilename, fileLog.Filename)
		assert.Equal(t, DefaultLogSize, fileLog.Size)
		assert.Equal(t, DefaultLogCount, fileLog.Count)
		assert.Equal(t, logwrap.Warn, fileLog.LogLevel())
	})

	t.Run("stdout logger", func(t *testing.T) {
		t.Run("parses successfully", func(t *testing.T) {
			data := []byte(`{
  "Type": "stdout",
  "Config": {
    "Level": "debug",
    "Subsystems": [
      "smartport"
    ],
    "NegateSubsystems": true
  }
}`)
			gw := LoggingConfig{}

			err := json.Unmarshal(data, &gw)
			assert.NoError(t, err)

			stdoutLog, ok := gw.Config.(*StdoutLogging)
			assert.True(t, ok)

			assert.Equal(t, "debug", stdoutLog.Level)
			assert.Contains(t, stdoutLog.Subsystems, "smartport")
			assert.True(t, stdoutLog.NegateSubsystems)
		})
	})

	t.Run("file logger", func(t *testing.T) {
		t.Run("parses successfully", func(t *testing.T) {
			data := []byte(`{
  "Type": "file",
  "Config": {
    "Filename": "filename",
    "Size": 1024,
    "Count": 5,
    "Compress": true,
    "Level": "debug",
    "Subsystems": [
      "smartport"
    ],
    "NegateSubsystems": true
  }
}`)
			gw := LoggingConfig{}

			err := json.Unmarshal(data, &gw)
			assert.NoError(t, err)

			fileLog, ok := gw.Config.(*FileLogging)
			assert.True(t, ok)

			assert.Equal(t, "debug", fileLog.Level)
			assert.Contains(t, fileLog.Subsystems, "smartport")
			assert.True(t, fileLog.NegateSubsystems)

			assert.Equal(t, "filename", fileLog.Filename)
			assert.Equal(t, 1024, fileLog.Size)
			assert.Equal(t, 5, fileLog.Count)
			assert.True(t, fileLog.Compress)
		})
	})
}
