package homekit

import (
	"context"
	"fmt"
	"github.com/brutella/hc"
	"github.com/brutella/hc/accessory"
	"github.com/brutella/hc/characteristic"
	"github.com/brutella/hc/service"
	"github.com/shimmeringbee/irrigation/radio"
	"github.com/shimmeringbee/irrigation/zone"
	"github.com/shimmeringbee/logwrap"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

const (
	Manufacturer = "Shimmering Bee"
	Model        = "Irrigation Bridge"

	// MaximumDuration is the upper bound HomeKit accepts for SetDuration and RemainingDuration.
	MaximumDuration = 3600
)

type Config struct {
	Name        string
	Pin         string
	Port        string
	StoragePath string
	Serial      string
	Firmware    string
}

type ZoneInfo struct {
	Name          string
	SafetyTimeout time.Duration
}

var _ radio.Network = (*Network)(nil)

// Network publishes a HomeKit bridge with one switch accessory per zone.
type Network struct {
	cfg    Config
	logger logwrap.Logger

	bridge   *accessory.Bridge
	switches []*ZoneSwitch

	transport hc.Transport
	started   atomic.Bool
}

func New(cfg Config, zones []ZoneInfo, l logwrap.Logger) *Network {
	n := &Network{cfg: cfg, logger: l}

	n.bridge = accessory.NewBridge(accessory.Info{
		Name:             cfg.Name,
		ID:               1,
		SerialNumber:     cfg.Serial,
		Manufacturer:     Manufacturer,
		Model:            Model,
		FirmwareRevision: cfg.Firmware,
	})

	n.bridge.Accessory.OnIdentify(func() {
		l.LogInfo(context.Background(), "HomeKit identify called for bridge.")
	})

	for i, z := range zones {
		info := accessory.Info{
			Name:             z.Name,
			ID:               uint64(i + 2),
			SerialNumber:     fmt.Sprintf("%s-%d", cfg.Serial, i+1),
			Manufacturer:     Manufacturer,
			Model:            Model,
			FirmwareRevision: cfg.Firmware,
		}

		n.switches = append(n.switches, NewZoneSwitch(info, z.SafetyTimeout))
	}

	return n
}

func (n *Network) Name() string {
	return "homekit"
}

func (n *Network) Connected() bool {
	return n.started.Load()
}

func (n *Network) Endpoint(i zone.Index) (radio.Endpoint, bool) {
	if int(i) >= len(n.switches) {
		return nil, false
	}

	return n.switches[i], true
}

// Erase removes the pairing database, controllers must pair again after restart.
func (n *Network) Erase() error {
	if len(n.cfg.StoragePath) == 0 {
		return nil
	}

	if err := os.RemoveAll(n.cfg.StoragePath); err != nil {
		return fmt.Errorf("failed to remove homekit storage: %w", err)
	}

	return nil
}

func (n *Network) Start(ctx context.Context) error {
	var accs []*accessory.Accessory
	for _, s := range n.switches {
		accs = append(accs, s.Accessory)
	}

	transport, err := hc.NewIPTransport(hc.Config{Pin: n.cfg.Pin, Port: n.cfg.Port, StoragePath: n.cfg.StoragePath}, n.bridge.Accessory, accs...)
	if err != nil {
		return fmt.Errorf("failed to construct homekit transport: %w", err)
	}

	n.transport = transport
	go transport.Start()
	n.started.Store(true)

	n.logger.LogInfo(ctx, "HomeKit bridge started.", logwrap.Datum("name", n.cfg.Name), logwrap.Datum("accessories", len(accs)))
	return nil
}

func (n *Network) Stop() error {
	if n.transport == nil {
		return nil
	}

	n.started.Store(false)
	<-n.transport.Stop()
	return nil
}

var _ radio.Endpoint = (*ZoneSwitch)(nil)

// ZoneSwitch is a switch accessory for a single zone. SetDuration carries the safety timeout and
// RemainingDuration counts down while the zone runs.
type ZoneSwitch struct {
	*accessory.Accessory
	Switch *ZoneService

	lock    sync.Mutex
	handler radio.RequestHandler
}

func NewZoneSwitch(info accessory.Info, timeout time.Duration) *ZoneSwitch {
	zs := &ZoneSwitch{}
	zs.Accessory = accessory.New(info, accessory.TypeSwitch)

	zs.Switch = NewZoneService()
	zs.Switch.SetDuration.SetValue(clampDuration(int(timeout / time.Second)))
	zs.AddService(zs.Switch.Service)

	zs.Switch.On.OnValueRemoteUpdate(func(on bool) {
		zs.lock.Lock()
		h := zs.handler
		zs.lock.Unlock()

		if h != nil {
			h(on)
		}
	})

	return zs
}

func (z *ZoneSwitch) OnRequest(h radio.RequestHandler) {
	z.lock.Lock()
	defer z.lock.Unlock()

	z.handler = h
}

// Reflect sets the local value of On, HomeKit does not call remote update handlers for it.
func (z *ZoneSwitch) Reflect(_ context.Context, on bool) error {
	z.Switch.On.SetValue(on)

	if on {
		z.Switch.InUse.SetValue(characteristic.InUseInUse)
	} else {
		z.Switch.InUse.SetValue(characteristic.InUseNotInUse)
		z.Switch.RemainingDuration.SetValue(0)
	}

	return nil
}

func (z *ZoneSwitch) ReportRemaining(_ context.Context, remaining uint8) error {
	seconds := z.Switch.SetDuration.GetValue() * int(remaining) / 255
	z.Switch.RemainingDuration.SetValue(clampDuration(seconds))
	return nil
}

type ZoneService struct {
	*service.Service

	On                *characteristic.On
	InUse             *characteristic.InUse
	SetDuration       *characteristic.SetDuration
	RemainingDuration *characteristic.RemainingDuration
}

func NewZoneService() *ZoneService {
	svc := ZoneService{}
	svc.Service = service.New(service.TypeSwitch)

	svc.On = characteristic.NewOn()
	svc.AddCharacteristic(svc.On.Characteristic)

	svc.InUse = characteristic.NewInUse()
	svc.AddCharacteristic(svc.InUse.Characteristic)
	svc.InUse.SetValue(characteristic.InUseNotInUse)

	svc.SetDuration = characteristic.NewSetDuration()
	svc.AddCharacteristic(svc.SetDuration.Characteristic)

	svc.RemainingDuration = characteristic.NewRemainingDuration()
	svc.AddCharacteristic(svc.RemainingDuration.Characteristic)
	svc.RemainingDuration.SetValue(0)

	return &svc
}

func clampDuration(seconds int) int {
	if seconds < 0 {
		return 0
	}

	if seconds > MaximumDuration {
		return MaximumDuration
	}

	return seconds
}
