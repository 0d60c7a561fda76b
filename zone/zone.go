package zone

import (
	"fmt"
	"sync/atomic"
	"time"
)

type zoneError string

func (z zoneError) Error() string {
	return string(z)
}

const ErrUnknownZone = zoneError("unknown zone")

// MaximumZones is the largest number of zones the single-wire protocol can address.
const MaximumZones = 48

// Index identifies a zone, it is zero based and maps to hardware zone Index+1.
type Index uint8

// Number returns the one based zone number used by the hardware and the radio topics.
func (i Index) Number() uint8 {
	return uint8(i) + 1
}

func (i Index) String() string {
	return fmt.Sprintf("%d", i.Number())
}

type State uint8

const (
	Off State = iota
	On
)

func FromBool(on bool) State {
	if on {
		return On
	}

	return Off
}

func (s State) Bool() bool {
	return s == On
}

func (s State) String() string {
	if s == On {
		return "ON"
	}

	return "OFF"
}

type Failure struct {
	Code uint8
	Hint string
	At   time.Time
}

// Zone is the record of a single irrigation output. Only Reported, Started, Deadline, the
// failure fields and the updating guard change after construction, and only from the control
// loop; the guard alone may be read from other goroutines.
type Zone struct {
	Index         Index
	Name          string
	SafetyTimeout time.Duration

	Reported State
	Started  time.Time
	Deadline time.Time

	Failures    int
	LastFailure *Failure

	updating atomic.Bool
}

// Armed reports whether the zone has a safety deadline.
func (z *Zone) Armed() bool {
	return !z.Deadline.IsZero()
}

func (z *Zone) Arm(now time.Time) {
	z.Started = now
	z.Deadline = now.Add(z.SafetyTimeout)
}

// ArmAt sets a deadline at an explicit time, used to schedule a retry of a stop whose outcome
// is unknown.
func (z *Zone) ArmAt(now time.Time, deadline time.Time) {
	z.Started = now
	z.Deadline = deadline
}

func (z *Zone) Disarm() {
	z.Started = time.Time{}
	z.Deadline = time.Time{}
}

func (z *Zone) Expired(now time.Time) bool {
	return z.Armed() && !now.Before(z.Deadline)
}

// SafetyTimeoutMinutes rounds the safety timeout up to whole minutes, the resolution of the
// hardware timer.
func (z *Zone) SafetyTimeoutMinutes() uint {
	minutes := z.SafetyTimeout / time.Minute

	if z.SafetyTimeout%time.Minute != 0 {
		minutes++
	}

	return uint(minutes)
}

// Remaining returns the fraction of the run still to go scaled to 0-255.
func (z *Zone) Remaining(now time.Time) uint8 {
	if !z.Armed() {
		return 0
	}

	total := z.Deadline.Sub(z.Started)
	left := z.Deadline.Sub(now)

	if total <= 0 || left <= 0 {
		return 0
	}

	if left >= total {
		return 255
	}

	return uint8(int64(left) * 255 / int64(total))
}

func (z *Zone) RecordFailure(code uint8, hint string, now time.Time) {
	z.Failures++
	z.LastFailure = &Failure{Code: code, Hint: hint, At: now}
}

func (z *Zone) ClearFailures() {
	z.Failures = 0
}

// Updating reports whether the controller is currently reflecting this zone's state to the
// radio. It is safe to call from any goroutine.
func (z *Zone) Updating() bool {
	return z.updating.Load()
}

// Acquire takes the reflection guard. The returned release must be called on every exit path,
// ok is false if the guard was already held.
func (z *Zone) Acquire() (release func(), ok bool) {
	if !z.updating.CompareAndSwap(false, true) {
		return func() {}, false
	}

	return func() {
		z.updating.Store(false)
	}, true
}
