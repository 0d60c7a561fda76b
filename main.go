package main

import (
	"context"
	"errors"
	"github.com/shimmeringbee/irrigation/bridge"
	"github.com/shimmeringbee/irrigation/config"
	"github.com/shimmeringbee/irrigation/radio"
	"github.com/shimmeringbee/irrigation/radio/homekit"
	"github.com/shimmeringbee/irrigation/status"
	"github.com/shimmeringbee/irrigation/watchdog"
	"github.com/shimmeringbee/irrigation/zone"
	lw "github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/logwrap/impl/golog"
	"log"
	"os"
	"os/signal"
	"syscall"
)

// ExitFactoryReset is the exit code after a factory reset, the supervisor restarts the process
// which then generates fresh identities.
const ExitFactoryReset = 3

func main() {
	ctx := context.Background()
	l := lw.New(golog.Wrap(log.New(os.Stderr, "", log.LstdFlags)))

	l.LogInfo(ctx, "Shimmering Bee: Irrigation - Copyright 2019-2024 Shimmering Bee Contributors - Starting...")

	directories := enumerateDirectories(ctx, l)

	l.LogInfo(ctx, "Directory enumeration complete.", lw.Datum("directories", directories))

	l, err := configureLogging(directories.LoggingConfigs(), directories.Log, l)
	if err != nil {
		l.LogFatal(ctx, "Failed to configure logging.", lw.Err(err))
	}

	irrigationCfg, err := loadIrrigationConfiguration(directories.IrrigationConfig())
	if err != nil {
		l.LogFatal(ctx, "Failed to load irrigation configuration.", lw.Err(err))
	}

	zones, err := zone.NewSet(zoneDefinitions(irrigationCfg))
	if err != nil {
		l.LogFatal(ctx, "Failed to construct zones.", lw.Err(err))
	}

	l.LogInfo(ctx, "Loaded zones.", lw.Datum("zoneCount", zones.Len()))

	driver, closeDriver, err := startDriver(irrigationCfg.Driver, openSerial, l)
	if err != nil {
		l.LogFatal(ctx, "Failed to start valve driver.", lw.Err(err))
	}

	hw, err := initialiseHardware(irrigationCfg.Hardware, l)
	if err != nil {
		l.LogFatal(ctx, "Failed to initialise hardware.", lw.Err(err))
	}

	interfaceCfgs, err := loadInterfaceConfigurations(directories.InterfaceConfigs())
	if err != nil {
		l.LogFatal(ctx, "Failed to load interface configurations.", lw.Err(err))
	}

	l.LogInfo(ctx, "Starting radio interfaces.")
	networks, startedInterfaces, err := startRadioInterfaces(interfaceCfgs, radioContext{
		zones:       zoneInfo(irrigationCfg),
		name:        irrigationCfg.Name,
		directories: directories,
		watchdog:    hw.Watchdog,
	}, l)
	if err != nil {
		shutdownInterfaces(ctx, startedInterfaces, l)
		l.LogFatal(ctx, "Failed to start radio interfaces.", lw.Err(err))
	}

	multi := &radio.Multi{Networks: networks}
	resetCh := make(chan struct{}, 1)

	indicatorCfg := irrigationCfg.Hardware.Indicator

	b, err := bridge.New(bridge.Config{
		PollInterval:      irrigationCfg.PollInterval.Duration(),
		FailureEscalation: irrigationCfg.FailureEscalation,
	}, zones, driver, multi, bridge.Hardware{
		Indicator:  status.NewIndicator(hw.Output, indicatorCfg.BlinkInterval.Duration(), *indicatorCfg.IdleLit, l),
		Button:     hw.Input,
		ButtonHold: irrigationCfg.Hardware.Button.Hold.Duration(),
		Watchdog:   hw.Watchdog,
		FactoryReset: func(ctx context.Context) {
			if err := multi.Erase(); err != nil {
				l.LogError(ctx, "Failed to erase radio pairing.", lw.Err(err))
			}

			select {
			case resetCh <- struct{}{}:
			default:
			}
		},
	}, l)
	if err != nil {
		shutdownInterfaces(ctx, startedInterfaces, l)
		l.LogFatal(ctx, "Failed to construct bridge.", lw.Err(err))
	}

	l.LogInfo(ctx, "Starting http interfaces.")
	httpInterfaces, err := startHTTPInterfaces(interfaceCfgs, b, l)
	startedInterfaces = append(startedInterfaces, httpInterfaces...)
	if err != nil {
		shutdownInterfaces(ctx, startedInterfaces, l)
		l.LogFatal(ctx, "Failed to start http interfaces.", lw.Err(err))
	}

	runCtx, cancel := context.WithCancel(ctx)
	doneCh := make(chan error, 1)

	go func() {
		doneCh <- b.Run(runCtx)
	}()

	if err := watchdog.Ready(); err != nil {
		l.LogWarn(ctx, "Failed to notify systemd of readiness.", lw.Err(err))
	}

	l.LogInfo(ctx, "Irrigation bridge ready.")

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)

	exitCode := 0

	select {
	case s := <-signalCh:
		l.LogInfo(ctx, "Signal received, shutting down.", lw.Datum("signal", s.String()))
	case <-resetCh:
		l.LogWarn(ctx, "Factory reset complete, exiting for restart.")
		exitCode = ExitFactoryReset
	}

	cancel()

	if err := <-doneCh; err != nil && !errors.Is(err, context.Canceled) {
		l.LogError(ctx, "Control loop terminated with error.", lw.Err(err))
	}

	shutdownInterfaces(ctx, startedInterfaces, l)

	l.LogInfo(ctx, "Shutting down valve driver.")
	if err := closeDriver(); err != nil {
		l.LogError(ctx, "Failed to shutdown valve driver.", lw.Err(err))
	}

	l.LogInfo(ctx, "Shut down complete.")

	if exitCode != 0 {
		os.Exit(exitCode)
	}
}

func shutdownInterfaces(ctx context.Context, interfaces []StartedInterface, l lw.Logger) {
	for _, intf := range interfaces {
		l.LogInfo(ctx, "Shutting down interface.", lw.Datum("interface", intf.Name))

		if err := intf.Shutdown(); err != nil {
			l.LogError(ctx, "Failed to shutdown interface.", lw.Err(err), lw.Datum("interface", intf.Name))
		}
	}
}

func zoneDefinitions(cfg config.IrrigationConfig) []zone.Definition {
	var defs []zone.Definition

	for i, z := range cfg.Zones {
		defs = append(defs, zone.Definition{Name: z.Name, SafetyTimeout: cfg.ZoneTimeout(i)})
	}

	return defs
}

func zoneInfo(cfg config.IrrigationConfig) []homekit.ZoneInfo {
	var info []homekit.ZoneInfo

	for i, z := range cfg.Zones {
		info = append(info, homekit.ZoneInfo{Name: z.Name, SafetyTimeout: cfg.ZoneTimeout(i)})
	}

	return info
}
