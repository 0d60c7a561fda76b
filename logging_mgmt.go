package main

import (
	"context"
	"fmt"
	"github.com/shimmeringbee/irrigation/config"
	"github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/logwrap/impl/filter"
	"github.com/shimmeringbee/logwrap/impl/golog"
	"github.com/shimmeringbee/logwrap/impl/tee"
	"gopkg.in/natefinch/lumberjack.v2"
	"io"
	"log"
	"os"
	"path/filepath"
)

func configureLogging(cfgDir string, logDir string, l logwrap.Logger) (logwrap.Logger, error) {
	logCfg, err := loadLoggingConfigurations(cfgDir)
	if err != nil {
		return l, fmt.Errorf("failed to load logging configurations: %w", err)
	}

	var impls []logwrap.Impl

	for _, cfg := range logCfg {
		var logWriter io.Writer
		baseCfg := cfg.Config.Base()

		switch lCfg := cfg.Config.(type) {
		case *config.StdoutLogging:
			logWriter = os.Stderr
		case *config.FileLogging:
			outFile := filepath.Join(logDir, lCfg.Filename)

			logWriter = &lumberjack.Logger{
				Filename:   outFile,
				MaxSize:    lCfg.Size,
				MaxBackups: lCfg.Count,
				Compress:   lCfg.Compress,
			}
		}

		impl, err := constructFilter(baseCfg, golog.Wrap(log.New(logWriter, "", log.LstdFlags)))
		if err != nil {
			return l, fmt.Errorf("failed to construct filter for logging '%s': %w", cfg.Name, err)
		}

		impls = append(impls, impl)

		l.LogInfo(context.Background(), "Constructed logging.", logwrap.Datum("name", cfg.Name), logwrap.Datum("type", cfg.Type), logwrap.Datum("level", baseCfg.Level))
	}

	if len(impls) == 0 {
		l.LogWarn(context.Background(), "No logging configurations loaded, continuing with stdout/stderr only.")
		return l, nil
	}

	l.LogDebug(context.Background(), "Handing over to new logging configuration.")

	return logwrap.New(tee.Tee(impls...)), nil
}

func constructFilter(cfg config.BaseLogging, base logwrap.Impl) (logwrap.Impl, error) {
	if cfg.Level == "" {
		cfg.Level = config.DefaultLogLevel
	}

	level, found := config.LogLevels[cfg.Level]
	if !found {
		return base, fmt.Errorf("unknown log level '%s'", cfg.Level)
	}

	return filter.Filter(base, func(message logwrap.Message) bool {
		if message.Level > level {
			return false
		}

		if len(cfg.Subsystems) == 0 {
			return true
		}

		found := false

		for _, filterSubsystem := range cfg.Subsystems {
			if filterSubsystem == message.Source {
				found = true
				break
			}
		}

		return cfg.NegateSubsystems != found
	}), nil
}
