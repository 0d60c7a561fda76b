package button

import "time"

const DefaultHoldDuration = 5 * time.Second

// Input reads the current state of a push button.
type Input interface {
	Pressed() bool
}

type NullInput struct{}

func (NullInput) Pressed() bool {
	return false
}

type Event uint8

const (
	None Event = iota
	Pressed
	Released
	Held
)

// HoldDetector turns periodic samples of a button into edge events. Held is emitted once per
// press, when the button has been down continuously for the hold duration.
type HoldDetector struct {
	hold time.Duration

	down      bool
	pressedAt time.Time
	fired     bool
}

func NewHoldDetector(hold time.Duration) *HoldDetector {
	if hold <= 0 {
		hold = DefaultHoldDuration
	}

	return &HoldDetector{hold: hold}
}

func (h *HoldDetector) Sample(pressed bool, now time.Time) Event {
	if !pressed {
		if h.down {
			h.down = false
			h.fired = false
			return Released
		}

		return None
	}

	if !h.down {
		h.down = true
		h.pressedAt = now
		return Pressed
	}

	if !h.fired && now.Sub(h.pressedAt) >= h.hold {
		h.fired = true
		return Held
	}

	return None
}
