package config

import (
	"encoding/json"
	"fmt"
	"github.com/shimmeringbee/logwrap"
	"github.com/tidwall/gjson"
)

const (
	DefaultLogLevel    = "info"
	DefaultLogFilename = "irrigation.log"
	DefaultLogSize     = 10
	DefaultLogCount    = 5
)

// LogLevels maps the level names accepted in logging configuration to logwrap levels.
var LogLevels = map[string]logwrap.LogLevel{
	"panic": logwrap.Panic,
	"fatal": logwrap.Fatal,
	"error": logwrap.Error,
	"warn":  logwrap.Warn,
	"info":  logwrap.Info,
	"debug": logwrap.Debug,
	"trace": logwrap.Trace,
}

// LoggingConfig is one log sink, loaded from a file in the logging configuration directory.
type LoggingConfig struct {
	Name   string `json:"-"`
	Type   string
	Config Sink
}

// Sink is implemented by every logging configuration type.
type Sink interface {
	Base() BaseLogging
}

func (g *LoggingConfig) UnmarshalJSON(data []byte) error {
	if result := gjson.GetBytes(data, "Type"); !result.Exists() {
		return fmt.Errorf("failed to find logging type information")
	} else {
		g.Type = result.String()
	}

	switch g.Type {
	case "stdout":
		g.Config = &StdoutLogging{}
	case "file":
		g.Config = &FileLogging{Filename: DefaultLogFilename, Size: DefaultLogSize, Count: DefaultLogCount}
	default:
		return fmt.Errorf("unknown logging configuration type: %s", g.Type)
	}

	result := gjson.GetBytes(data, "Config")
	if !result.Exists() {
		return fmt.Errorf("unable to find Config stanza: %s", g.Type)
	}

	if err := json.Unmarshal([]byte(result.Raw), g.Config); err != nil {
		return err
	}

	return g.Config.Base().validate()
}

type BaseLogging struct {
	Level string

	NegateSubsystems bool
	Subsystems       []string
}

// LogLevel returns the configured level, defaulting to info.
func (b BaseLogging) LogLevel() logwrap.LogLevel {
	if level, found := LogLevels[b.Level]; found {
		return level
	}

	return LogLevels[DefaultLogLevel]
}

func (b BaseLogging) validate() error {
	if len(b.Level) == 0 {
		return nil
	}

	if _, found := LogLevels[b.Level]; !found {
		return fmt.Errorf("unknown log level '%s'", b.Level)
	}

	return nil
}

// StdoutLogging writes to the process's standard error, which systemd captures to the journal.
type StdoutLogging struct {
	BaseLogging
}

func (s *StdoutLogging) Base() BaseLogging {
	return s.BaseLogging
}

// FileLogging writes to a rotated file in the log directory, Size is in megabytes and Count is
// the number of rotated files kept.
type FileLogging struct {
	BaseLogging

	Filename string
	Size     int
	Count    int
	Compress bool
}

func (f *FileLogging) Base() BaseLogging {
	return f.BaseLogging
}
