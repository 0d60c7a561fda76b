package watchdog

import (
	"context"
	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/shimmeringbee/logwrap"
	"sync"
	"time"
)

// Notifier delivers a keep alive to whatever supervises the process.
type Notifier interface {
	Notify() error
}

type systemdNotifier struct{}

func (systemdNotifier) Notify() error {
	_, err := daemon.SdNotify(false, daemon.SdNotifyWatchdog)
	return err
}

// Systemd returns a notifier for the systemd watchdog and its timeout, the timeout is zero if
// systemd is not watching this process.
func Systemd() (Notifier, time.Duration, error) {
	timeout, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		return nil, 0, err
	}

	return systemdNotifier{}, timeout, nil
}

// Ready tells systemd that start up is complete.
func Ready() error {
	_, err := daemon.SdNotify(false, daemon.SdNotifyReady)
	return err
}

// Watchdog sends keep alives at half the supervisor timeout when kicked by the control loop.
// While suspended it keeps the supervisor satisfied by itself, for at most the suspension
// window.
type Watchdog struct {
	notifier Notifier
	interval time.Duration
	logger   logwrap.Logger

	lock     sync.Mutex
	lastKick time.Time
	resume   chan struct{}
}

func New(n Notifier, timeout time.Duration, l logwrap.Logger) *Watchdog {
	return &Watchdog{notifier: n, interval: timeout / 2, logger: l}
}

func (w *Watchdog) Enabled() bool {
	return w != nil && w.notifier != nil && w.interval > 0
}

func (w *Watchdog) Kick(now time.Time) {
	if !w.Enabled() {
		return
	}

	w.lock.Lock()
	defer w.lock.Unlock()

	if now.Sub(w.lastKick) < w.interval {
		return
	}

	w.notify()
	w.lastKick = now
}

// Suspend covers an operation which may block the control loop for up to window. Resume must
// be called once it completes.
func (w *Watchdog) Suspend(window time.Duration) {
	if !w.Enabled() {
		return
	}

	w.lock.Lock()
	defer w.lock.Unlock()

	if w.resume != nil {
		return
	}

	resume := make(chan struct{})
	w.resume = resume

	w.logger.LogDebug(context.Background(), "Watchdog suspended.", logwrap.Datum("window", window.String()))

	go func() {
		t := time.NewTicker(w.interval)
		defer t.Stop()

		expire := time.NewTimer(window)
		defer expire.Stop()

		for {
			select {
			case <-t.C:
				w.lock.Lock()
				w.notify()
				w.lock.Unlock()
			case <-expire.C:
				w.logger.LogWarn(context.Background(), "Watchdog suspension window elapsed without resume.", logwrap.Datum("window", window.String()))

				w.lock.Lock()
				if w.resume == resume {
					w.resume = nil
				}
				w.lock.Unlock()
				return
			case <-resume:
				return
			}
		}
	}()
}

func (w *Watchdog) Resume() {
	if !w.Enabled() {
		return
	}

	w.lock.Lock()
	defer w.lock.Unlock()

	if w.resume == nil {
		return
	}

	close(w.resume)
	w.resume = nil

	w.notify()
	w.lastKick = time.Now()

	w.logger.LogDebug(context.Background(), "Watchdog resumed.")
}

func (w *Watchdog) notify() {
	if err := w.notifier.Notify(); err != nil {
		w.logger.LogWarn(context.Background(), "Failed to notify watchdog.", logwrap.Err(err))
	}
}
