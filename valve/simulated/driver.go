package simulated

import (
	"context"
	"github.com/shimmeringbee/irrigation/valve"
	"github.com/shimmeringbee/logwrap"
	"sync"
	"time"
)

var _ valve.Driver = (*Driver)(nil)

// Driver emulates an irrigation controller in memory, including its own run timer.
type Driver struct {
	logger logwrap.Logger
	clock  func() time.Time

	lock     sync.Mutex
	running  map[uint8]time.Time
	failures map[uint8]valve.ErrorCode
}

func New(l logwrap.Logger) *Driver {
	return &Driver{
		logger:   l,
		clock:    time.Now,
		running:  map[uint8]time.Time{},
		failures: map[uint8]valve.ErrorCode{},
	}
}

// Fail makes every subsequent command to the zone return code, Success clears it.
func (d *Driver) Fail(zone uint8, code valve.ErrorCode) {
	d.lock.Lock()
	defer d.lock.Unlock()

	if code == valve.Success {
		delete(d.failures, zone)
	} else {
		d.failures[zone] = code
	}
}

func (d *Driver) Running(zone uint8) bool {
	d.lock.Lock()
	defer d.lock.Unlock()

	until, found := d.running[zone]
	return found && d.clock().Before(until)
}

func (d *Driver) Start(ctx context.Context, zone uint8, minutes uint) valve.ErrorCode {
	if code := d.check(zone, minutes); code.Failed() {
		return code
	}

	d.lock.Lock()
	defer d.lock.Unlock()

	until := d.clock().Add(time.Duration(minutes) * time.Minute)
	d.running[zone] = until

	d.logger.LogInfo(ctx, "Simulated zone started.", logwrap.Datum("zone", zone), logwrap.Datum("until", until))
	return valve.Success
}

func (d *Driver) Stop(ctx context.Context, zone uint8) valve.ErrorCode {
	if code := d.check(zone, 0); code.Failed() {
		return code
	}

	d.lock.Lock()
	defer d.lock.Unlock()

	delete(d.running, zone)

	d.logger.LogInfo(ctx, "Simulated zone stopped.", logwrap.Datum("zone", zone))
	return valve.Success
}

func (d *Driver) check(zone uint8, minutes uint) valve.ErrorCode {
	if code := valve.Validate(zone, minutes); code.Failed() {
		return code
	}

	d.lock.Lock()
	defer d.lock.Unlock()

	return d.failures[zone]
}
