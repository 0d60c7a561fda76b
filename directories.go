package main

import (
	"context"
	"flag"
	"github.com/peterbourgon/ff/v3"
	"github.com/shimmeringbee/logwrap"
	"os"
	"path/filepath"
)

const DefaultDirectoryPermissions = 0700

type Directories struct {
	Config string
	Data   string
	Log    string
}

func (d Directories) IrrigationConfig() string {
	return filepath.Join(d.Config, "irrigation.json")
}

func (d Directories) InterfaceConfigs() string {
	return filepath.Join(d.Config, "interfaces")
}

func (d Directories) LoggingConfigs() string {
	return filepath.Join(d.Config, "logging")
}

// InterfaceData is the private data directory of a named interface, holding its identity and
// any pairing state.
func (d Directories) InterfaceData(name string) string {
	return filepath.Join(d.Data, "interfaces", name)
}

func enumerateDirectories(ctx context.Context, l logwrap.Logger) Directories {
	fs := flag.NewFlagSet("irrigation", flag.ExitOnError)

	defaultConfigDirectory, err := defaultDirectory("config")
	if err != nil {
		l.LogFatal(ctx, "Failed to construct default configuration directory.", logwrap.Err(err))
	}

	defaultDataDirectory, err := defaultDirectory("data")
	if err != nil {
		l.LogFatal(ctx, "Failed to construct default data directory.", logwrap.Err(err))
	}

	defaultLogDirectory, err := defaultDirectory("log")
	if err != nil {
		l.LogFatal(ctx, "Failed to construct default log directory.", logwrap.Err(err))
	}

	configDirectory := fs.String("config-directory", defaultConfigDirectory, "location of configuration files")
	dataDirectory := fs.String("data-directory", defaultDataDirectory, "location of data files")
	logDirectory := fs.String("log-directory", defaultLogDirectory, "location of log files")

	if err := ff.Parse(fs, os.Args[1:], ff.WithEnvVarNoPrefix()); err != nil {
		l.LogFatal(ctx, "Failed to parse environment/command line arguments.", logwrap.Err(err))
	}

	for name, dir := range map[string]string{"config": *configDirectory, "data": *dataDirectory, "log": *logDirectory} {
		if err := os.MkdirAll(dir, DefaultDirectoryPermissions); err != nil {
			l.LogFatal(ctx, "Failed to initialise directory.", logwrap.Datum("directory", name), logwrap.Datum("path", dir), logwrap.Err(err))
		}
	}

	return Directories{
		Config: *configDirectory,
		Data:   *dataDirectory,
		Log:    *logDirectory,
	}
}

func defaultDirectory(t string) (string, error) {
	if configDir, err := os.UserConfigDir(); err != nil {
		return "", err
	} else {
		return filepath.Join(configDir, "shimmeringbee", "irrigation", t), nil
	}
}
